package opengl

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"
)

// MaxIncludeDepth is how many #include levels may be open below the file
// being preprocessed.
const MaxIncludeDepth = 5

var ErrIncludeDepth = fmt.Errorf("include nesting deeper than %d", MaxIncludeDepth)

// Section sentinels split one file into stages. Text before the first
// sentinel is shared by every stage.
const (
	sectionVertex   = "##GL_VERTEX_SHADER"
	sectionFragment = "##GL_FRAGMENT_SHADER"
	sectionGeometry = "##GL_GEOMETRY_SHADER"
)

// Sources is the expanded GLSL of each stage of one program. Geometry is
// empty when the program has no geometry stage. Files lists every file read,
// includes too, so callers can watch them for changes.
type Sources struct {
	Vertex   string
	Fragment string
	Geometry string
	Files    []string
}

// Preprocess expands includes in a multi-section shader file and splits it
// into stages. Vertex and fragment sections are required.
func Preprocess(fsys fs.FS, name string) (Sources, error) {
	text, files, err := expand(fsys, name)
	if err != nil {
		return Sources{}, err
	}

	var (
		preamble strings.Builder
		sections = map[string]*strings.Builder{}
		current  *strings.Builder
	)
	sc := bufio.NewScanner(strings.NewReader(text))
	for sc.Scan() {
		line := sc.Text()
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "##") {
			switch trimmed {
			case sectionVertex, sectionFragment, sectionGeometry:
			default:
				return Sources{}, fmt.Errorf("%s: unknown section %q", name, trimmed)
			}
			if _, dup := sections[trimmed]; dup {
				return Sources{}, fmt.Errorf("%s: duplicate section %s", name, trimmed)
			}
			current = &strings.Builder{}
			sections[trimmed] = current
			continue
		}
		if current == nil {
			preamble.WriteString(line)
			preamble.WriteByte('\n')
		} else {
			current.WriteString(line)
			current.WriteByte('\n')
		}
	}

	stage := func(key string) string {
		b, ok := sections[key]
		if !ok {
			return ""
		}
		return preamble.String() + b.String()
	}
	src := Sources{
		Vertex:   stage(sectionVertex),
		Fragment: stage(sectionFragment),
		Geometry: stage(sectionGeometry),
		Files:    files,
	}
	if src.Vertex == "" || src.Fragment == "" {
		return Sources{}, fmt.Errorf("%s: needs %s and %s sections", name, sectionVertex, sectionFragment)
	}
	return src, nil
}

// PreprocessFiles expands includes in one file per stage. geometry may be empty.
func PreprocessFiles(fsys fs.FS, vertex, fragment, geometry string) (Sources, error) {
	var src Sources
	for _, st := range []struct {
		name string
		dst  *string
	}{{vertex, &src.Vertex}, {fragment, &src.Fragment}, {geometry, &src.Geometry}} {
		if st.name == "" {
			continue
		}
		text, files, err := expand(fsys, st.name)
		if err != nil {
			return Sources{}, err
		}
		*st.dst = text
		src.Files = append(src.Files, files...)
	}
	if src.Vertex == "" || src.Fragment == "" {
		return Sources{}, fmt.Errorf("%s, %s: vertex and fragment stages are required", vertex, fragment)
	}
	return src, nil
}

// fragment is one file being expanded. The stack of open fragments is the
// include chain, which gives both the nesting depth and cycle detection.
type fragment struct {
	name  string
	lines []string
	next  int
}

func readFragment(fsys fs.FS, name string) (*fragment, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, err
	}
	text := strings.TrimSuffix(string(bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))), "\n")
	return &fragment{name: name, lines: strings.Split(text, "\n")}, nil
}

// ExpandIncludes replaces every `#include "file"` line with the file's
// contents, recursively. Paths are relative to the including file.
func ExpandIncludes(fsys fs.FS, name string) (string, error) {
	text, _, err := expand(fsys, name)
	return text, err
}

func expand(fsys fs.FS, name string) (string, []string, error) {
	root, err := readFragment(fsys, name)
	if err != nil {
		return "", nil, err
	}
	files := []string{name}

	var out strings.Builder
	stack := []*fragment{root}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		if top.next == len(top.lines) {
			stack = stack[:len(stack)-1]
			continue
		}
		line := top.lines[top.next]
		top.next++

		target, ok, err := parseInclude(line)
		if err != nil {
			return "", nil, fmt.Errorf("%s:%d: %w", top.name, top.next, err)
		}
		if !ok {
			out.WriteString(line)
			out.WriteByte('\n')
			continue
		}

		resolved := path.Join(path.Dir(top.name), target)
		for _, open := range stack {
			if open.name == resolved {
				return "", nil, fmt.Errorf("%s:%d: include cycle through %s", top.name, top.next, resolved)
			}
		}
		if len(stack) > MaxIncludeDepth {
			return "", nil, fmt.Errorf("%s:%d: %w", top.name, top.next, ErrIncludeDepth)
		}
		inc, err := readFragment(fsys, resolved)
		if err != nil {
			return "", nil, fmt.Errorf("%s:%d: include %q: %w", top.name, top.next, target, err)
		}
		stack = append(stack, inc)
		files = append(files, resolved)
	}
	return out.String(), files, nil
}

var errMalformedInclude = errors.New(`malformed #include, want #include "file"`)

// parseInclude reports whether line is an include directive and returns
// its quoted target.
func parseInclude(line string) (string, bool, error) {
	trimmed := strings.TrimSpace(line)
	rest, ok := strings.CutPrefix(trimmed, "#include")
	if !ok {
		return "", false, nil
	}
	rest = strings.TrimSpace(rest)
	if len(rest) < 3 || rest[0] != '"' || rest[len(rest)-1] != '"' {
		return "", false, errMalformedInclude
	}
	return rest[1 : len(rest)-1], true, nil
}
