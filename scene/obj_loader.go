package scene

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl32"

	"ssr-engine/core"
)

// LoadOBJ reads a Wavefront model. Every group and every material run inside
// a group becomes its own mesh; materials come from the "mtllib" files the
// model names.
func LoadOBJ(path string) ([]*Mesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open obj %q: %w", path, err)
	}
	defer f.Close()

	meshes, err := parseOBJ(f, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("obj %q: %w", path, err)
	}
	return meshes, nil
}

// objRef is one corner of a face as 0-based pool indices, -1 when absent.
type objRef struct{ pos, uv, normal int }

// objGroup collects the deduplicated vertices of one output mesh.
type objGroup struct {
	name     string
	material string
	vertices []Vertex
	indices  []uint32
	seen     map[objRef]uint32
	// set when some corner had no normal, so all normals are rebuilt
	flat bool
}

type objReader struct {
	dir       string
	positions []mgl32.Vec3
	normals   []mgl32.Vec3
	uvs       []mgl32.Vec2
	materials map[string]*Material
	textures  map[string]*Texture
	done      []*objGroup
	group     *objGroup
}

func parseOBJ(r io.Reader, dir string) ([]*Mesh, error) {
	rd := &objReader{
		dir:       dir,
		materials: map[string]*Material{},
		textures:  map[string]*Texture{},
	}
	rd.begin("default", "")

	lines := bufio.NewScanner(r)
	for lines.Scan() {
		fields := strings.Fields(lines.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		rd.statement(fields[0], fields[1:])
	}
	if err := lines.Err(); err != nil {
		return nil, fmt.Errorf("read obj: %w", err)
	}
	rd.begin("", "")

	if len(rd.done) == 0 {
		return nil, errors.New("no faces in model")
	}
	meshes := make([]*Mesh, 0, len(rd.done))
	for _, g := range rd.done {
		if g.flat {
			generateNormals(g.vertices, g.indices)
		}
		m := CreateMeshFromData(g.name, g.vertices, g.indices)
		if mat := rd.materials[g.material]; mat != nil {
			m.Material = mat
		}
		meshes = append(meshes, m)
	}
	return meshes, nil
}

// begin closes the current group, keeping it only if it produced triangles.
func (rd *objReader) begin(name, material string) {
	if g := rd.group; g != nil && len(g.indices) > 0 {
		rd.done = append(rd.done, g)
	}
	rd.group = &objGroup{name: name, material: material, seen: map[objRef]uint32{}}
}

func (rd *objReader) statement(keyword string, args []string) {
	g := rd.group
	switch keyword {
	case "v":
		if v, ok := parseFloats3(args); ok {
			rd.positions = append(rd.positions, v)
		}
	case "vn":
		if v, ok := parseFloats3(args); ok {
			rd.normals = append(rd.normals, v)
		}
	case "vt":
		if uv, ok := parseFloats2(args); ok {
			rd.uvs = append(rd.uvs, uv)
		}
	case "o", "g":
		name := "default"
		if len(args) > 0 {
			name = args[0]
		}
		rd.begin(name, g.material)
	case "usemtl":
		if len(args) > 0 && args[0] != g.material {
			rd.begin(g.name, args[0])
		}
	case "mtllib":
		for _, lib := range args {
			rd.library(filepath.Join(rd.dir, lib))
		}
	case "f":
		rd.face(args)
	}
}

func (rd *objReader) library(path string) {
	mats, err := loadMTL(path, rd.dir, rd.textures)
	if err != nil {
		core.Logger().Warn("mtl load failed", "path", path, "err", err)
		return
	}
	for name, m := range mats {
		rd.materials[name] = m
	}
}

// face fans a polygon of three or more corners into triangles around its
// first corner.
func (rd *objReader) face(corners []string) {
	if len(corners) < 3 {
		return
	}
	first := rd.corner(corners[0])
	prev := rd.corner(corners[1])
	for _, c := range corners[2:] {
		next := rd.corner(c)
		rd.group.indices = append(rd.group.indices, first, prev, next)
		prev = next
	}
}

// corner resolves a "p", "p/t", "p//n" or "p/t/n" token to a group vertex.
func (rd *objReader) corner(tok string) uint32 {
	parts := strings.SplitN(tok, "/", 3)
	for len(parts) < 3 {
		parts = append(parts, "")
	}
	ref := objRef{
		pos:    poolIndex(parts[0], len(rd.positions)),
		uv:     poolIndex(parts[1], len(rd.uvs)),
		normal: poolIndex(parts[2], len(rd.normals)),
	}

	g := rd.group
	if idx, ok := g.seen[ref]; ok {
		return idx
	}
	v := Vertex{Normal: mgl32.Vec3{0, 1, 0}}
	if ref.pos >= 0 {
		v.Position = rd.positions[ref.pos]
	}
	if ref.uv >= 0 {
		v.UV = rd.uvs[ref.uv]
	}
	if ref.normal >= 0 {
		v.Normal = rd.normals[ref.normal]
	} else {
		g.flat = true
	}
	idx := uint32(len(g.vertices))
	g.vertices = append(g.vertices, v)
	g.seen[ref] = idx
	return idx
}

// poolIndex turns a 1-based or negative (relative to the end) OBJ index into
// a 0-based one. Anything unusable yields -1.
func poolIndex(s string, n int) int {
	if s == "" {
		return -1
	}
	i, err := strconv.Atoi(s)
	if err != nil || i == 0 {
		return -1
	}
	if i < 0 {
		i += n
	} else {
		i--
	}
	if i < 0 || i >= n {
		return -1
	}
	return i
}

func parseFloats3(args []string) (mgl32.Vec3, bool) {
	var out mgl32.Vec3
	ok := parseFloats(args, out[:])
	return out, ok
}

func parseFloats2(args []string) (mgl32.Vec2, bool) {
	var out mgl32.Vec2
	ok := parseFloats(args, out[:])
	return out, ok
}

// parseFloats fills dst from the leading args; extra args such as the
// optional w of "vt u v w" are ignored.
func parseFloats(args []string, dst []float32) bool {
	if len(args) < len(dst) {
		return false
	}
	for i := range dst {
		f, err := strconv.ParseFloat(args[i], 32)
		if err != nil {
			return false
		}
		dst[i] = float32(f)
	}
	return true
}

// generateNormals replaces vertex normals with the area-weighted average of
// the triangles sharing each vertex.
func generateNormals(vertices []Vertex, indices []uint32) {
	sum := make([]mgl32.Vec3, len(vertices))
	for t := 0; t+2 < len(indices); t += 3 {
		a, b, c := indices[t], indices[t+1], indices[t+2]
		origin := vertices[a].Position
		n := vertices[b].Position.Sub(origin).Cross(vertices[c].Position.Sub(origin))
		for _, i := range [3]uint32{a, b, c} {
			sum[i] = sum[i].Add(n)
		}
	}
	for i, n := range sum {
		if n.Len() > 0 {
			vertices[i].Normal = n.Normalize()
		}
	}
}

// ── Material libraries ──────────────────────────────────────────────────────

func loadMTL(path, dir string, cache map[string]*Texture) (map[string]*Material, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseMTL(f, dir, cache)
}

// parseMTL reads Blinn-Phong materials. Textures are shared through cache so
// a file used by several maps is decoded once; a texture that fails to load
// is cached as nil and its map is left empty.
func parseMTL(r io.Reader, dir string, cache map[string]*Texture) (map[string]*Material, error) {
	mats := map[string]*Material{}
	var mat *Material

	// Map options such as "-bm 0.5" come before the file name.
	texture := func(args []string) *Texture {
		path := filepath.Join(dir, args[len(args)-1])
		if tex, ok := cache[path]; ok {
			return tex
		}
		tex, err := LoadTexture(path)
		if err != nil {
			core.Logger().Warn("texture load failed", "path", path, "err", err)
			tex = nil
		}
		cache[path] = tex
		return tex
	}

	lines := bufio.NewScanner(r)
	for lines.Scan() {
		fields := strings.Fields(lines.Text())
		if len(fields) < 2 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		keyword, args := fields[0], fields[1:]
		if keyword == "newmtl" {
			mat = DefaultMaterial()
			mat.Name = args[0]
			mats[mat.Name] = mat
			continue
		}
		if mat == nil {
			continue
		}

		switch keyword {
		case "Ka", "Kd", "Ks", "Ke":
			v, ok := parseFloats3(args)
			if !ok {
				continue
			}
			switch keyword {
			case "Ka":
				mat.Ambient = v
			case "Kd":
				mat.Diffuse = v
			case "Ks":
				mat.Specular = v
			case "Ke":
				mat.Emitting = v.Len() > 0
			}
		case "Ns":
			if ns, err := strconv.ParseFloat(args[0], 32); err == nil {
				mat.Shininess = max(1, float32(ns))
			}
		case "map_Kd":
			mat.DiffuseTexture = texture(args)
		case "map_Bump", "map_bump", "bump", "norm":
			mat.NormalTexture = texture(args)
		case "map_Ks":
			mat.SpecularTexture = texture(args)
		}
	}
	return mats, lines.Err()
}
