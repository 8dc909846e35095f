package scene

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"ssr-engine/core"
)

// LoadGLTF reads a .gltf or .glb file. Each triangle primitive reachable from
// the default scene becomes a Mesh with its node's world transform baked in.
// Metallic-roughness materials are mapped onto the Blinn-Phong terms.
func LoadGLTF(path string) ([]*Mesh, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("gltf open %q: %w", path, err)
	}
	imp := &gltfImporter{
		doc: doc,
		dir: filepath.Dir(path),
		log: core.Logger().With("file", path),
	}
	imp.loadTextures()
	imp.loadMaterials()
	imp.loadPrimitives()

	for _, root := range imp.roots() {
		imp.bake(root, mgl32.Ident4(), 0)
	}
	if len(imp.out) == 0 {
		return nil, fmt.Errorf("gltf %q: %w", path, errNoGeometry)
	}
	return imp.out, nil
}

var errNoGeometry = errors.New("no triangle geometry")

type gltfImporter struct {
	doc *gltf.Document
	dir string
	log *slog.Logger

	textures   []*Texture
	materials  []*Material
	primitives [][]*Mesh // per doc.Meshes entry
	out        []*Mesh
}

func (imp *gltfImporter) loadTextures() {
	imp.textures = make([]*Texture, len(imp.doc.Textures))
	for i, t := range imp.doc.Textures {
		if t.Source == nil || *t.Source >= len(imp.doc.Images) {
			continue
		}
		tex, err := imp.image(*t.Source)
		if err != nil {
			imp.log.Warn("gltf texture skipped", "texture", i, "err", err)
			continue
		}
		imp.textures[i] = tex
	}
}

// image decodes an image stored in a buffer view (.glb) or next to the file.
func (imp *gltfImporter) image(idx int) (*Texture, error) {
	img := imp.doc.Images[idx]
	if img.BufferView != nil {
		data, err := modeler.ReadBufferView(imp.doc, imp.doc.BufferViews[*img.BufferView])
		if err != nil {
			return nil, err
		}
		name := img.Name
		if name == "" {
			name = fmt.Sprintf("image%d", idx)
		}
		return decodeImageBytes(name, data)
	}
	if img.URI == "" || img.IsEmbeddedResource() {
		return nil, fmt.Errorf("image %d has no readable source", idx)
	}
	return LoadTexture(filepath.Join(imp.dir, img.URI))
}

func (imp *gltfImporter) texture(idx int) *Texture {
	if idx < 0 || idx >= len(imp.textures) {
		return nil
	}
	return imp.textures[idx]
}

func (imp *gltfImporter) loadMaterials() {
	imp.materials = make([]*Material, len(imp.doc.Materials))
	for i, src := range imp.doc.Materials {
		mat := DefaultMaterial()
		mat.Name = src.Name
		if pbr := src.PBRMetallicRoughness; pbr != nil {
			base := pbr.BaseColorFactorOrDefault()
			mat.Diffuse = mgl32.Vec3{float32(base[0]), float32(base[1]), float32(base[2])}
			mat.Ambient = mat.Diffuse.Mul(0.1)
			if pbr.BaseColorTexture != nil {
				mat.DiffuseTexture = imp.texture(pbr.BaseColorTexture.Index)
			}
			smooth := 1 - float32(pbr.RoughnessFactorOrDefault())
			mat.Shininess = 1 + 128*smooth*smooth
			spec := 0.04 + 0.7*float32(pbr.MetallicFactorOrDefault())
			mat.Specular = mgl32.Vec3{spec, spec, spec}
		}
		if nt := src.NormalTexture; nt != nil && nt.Index != nil {
			mat.NormalTexture = imp.texture(*nt.Index)
		}
		e := src.EmissiveFactor
		mat.Emitting = e[0] > 0 || e[1] > 0 || e[2] > 0
		imp.materials[i] = mat
	}
}

func (imp *gltfImporter) loadPrimitives() {
	imp.primitives = make([][]*Mesh, len(imp.doc.Meshes))
	for mi, mesh := range imp.doc.Meshes {
		for pi, prim := range mesh.Primitives {
			if prim.Mode != gltf.PrimitiveTriangles {
				continue
			}
			m, err := imp.primitive(prim)
			if err != nil {
				imp.log.Warn("gltf primitive skipped", "mesh", mi, "primitive", pi, "err", err)
				continue
			}
			m.Name = primitiveName(mesh.Name, mi, pi)
			if prim.Material != nil && *prim.Material < len(imp.materials) {
				m.Material = imp.materials[*prim.Material]
			}
			imp.primitives[mi] = append(imp.primitives[mi], m)
		}
	}
}

func primitiveName(mesh string, mi, pi int) string {
	if mesh == "" {
		mesh = fmt.Sprintf("mesh%d", mi)
	}
	if pi == 0 {
		return mesh
	}
	return fmt.Sprintf("%s.%d", mesh, pi)
}

func (imp *gltfImporter) primitive(prim *gltf.Primitive) (*Mesh, error) {
	doc := imp.doc
	pos, ok := prim.Attributes[gltf.POSITION]
	if !ok {
		return nil, errors.New("missing POSITION")
	}
	positions, err := modeler.ReadPosition(doc, doc.Accessors[pos], nil)
	if err != nil {
		return nil, fmt.Errorf("read positions: %w", err)
	}
	var (
		normals [][3]float32
		uvs     [][2]float32
	)
	if a, ok := prim.Attributes[gltf.NORMAL]; ok {
		if normals, err = modeler.ReadNormal(doc, doc.Accessors[a], nil); err != nil {
			imp.log.Debug("gltf normals ignored", "err", err)
		}
	}
	if a, ok := prim.Attributes[gltf.TEXCOORD_0]; ok {
		if uvs, err = modeler.ReadTextureCoord(doc, doc.Accessors[a], nil); err != nil {
			imp.log.Debug("gltf texcoords ignored", "err", err)
		}
	}

	verts := make([]Vertex, len(positions))
	for i := range positions {
		verts[i].Position = positions[i]
		verts[i].Normal = mgl32.Vec3{0, 1, 0}
		if i < len(normals) {
			verts[i].Normal = normals[i]
		}
		if i < len(uvs) {
			verts[i].UV = uvs[i]
		}
	}

	var indices []uint32
	if prim.Indices == nil {
		indices = make([]uint32, len(verts))
		for i := range indices {
			indices[i] = uint32(i)
		}
	} else if indices, err = modeler.ReadIndices(doc, doc.Accessors[*prim.Indices], nil); err != nil {
		return nil, fmt.Errorf("read indices: %w", err)
	}
	if len(normals) < len(verts) {
		generateNormals(verts, indices)
	}
	return CreateMeshFromData("", verts, indices), nil
}

// roots lists the nodes of the default scene, or every parentless node when
// the file names none.
func (imp *gltfImporter) roots() []int {
	doc := imp.doc
	if doc.Scene != nil && *doc.Scene < len(doc.Scenes) {
		return doc.Scenes[*doc.Scene].Nodes
	}
	child := make(map[int]bool)
	for _, n := range doc.Nodes {
		for _, c := range n.Children {
			child[c] = true
		}
	}
	var roots []int
	for i := range doc.Nodes {
		if !child[i] {
			roots = append(roots, i)
		}
	}
	return roots
}

// bake copies the node's primitives into world space and recurses. depth
// stops malformed files whose children form a loop.
func (imp *gltfImporter) bake(idx int, parent mgl32.Mat4, depth int) {
	if idx < 0 || idx >= len(imp.doc.Nodes) || depth > len(imp.doc.Nodes) {
		return
	}
	node := imp.doc.Nodes[idx]
	world := parent.Mul4(localMatrix(node))
	if node.Mesh != nil && *node.Mesh < len(imp.primitives) {
		for _, src := range imp.primitives[*node.Mesh] {
			m := *src
			m.Vertices = append([]Vertex(nil), src.Vertices...)
			m.Transform(world)
			imp.out = append(imp.out, &m)
		}
	}
	for _, c := range node.Children {
		imp.bake(c, world, depth+1)
	}
}

// localMatrix is the node's matrix when present, otherwise T·R·S. Both glTF
// and mgl32 store matrices column-major.
func localMatrix(node *gltf.Node) mgl32.Mat4 {
	if node.Matrix != gltf.DefaultMatrix && node.Matrix != [16]float64{} {
		var m mgl32.Mat4
		for i, v := range node.Matrix {
			m[i] = float32(v)
		}
		return m
	}
	t := node.TranslationOrDefault()
	s := node.ScaleOrDefault()
	q := node.RotationOrDefault()
	rot := mgl32.Quat{W: float32(q[3]), V: mgl32.Vec3{float32(q[0]), float32(q[1]), float32(q[2])}}
	return mgl32.Translate3D(float32(t[0]), float32(t[1]), float32(t[2])).
		Mul4(rot.Mat4()).
		Mul4(mgl32.Scale3D(float32(s[0]), float32(s[1]), float32(s[2])))
}
