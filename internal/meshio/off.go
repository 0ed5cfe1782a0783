package meshio

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nmxmxh/inos_v1/internal/diag"
)

// OFFMesh is a decoded OFF text mesh: vertex positions plus triangle
// vertex-index triples (spec.md §6 "OFF mesh file").
type OFFMesh struct {
	Vertices  [][3]float64
	Triangles [][3]int
}

// ReadOFF parses the OFF format: "OFF", then "nV nF 0", then nV position
// lines, then nF "3 i j k" triangle lines.
func ReadOFF(r io.Reader) (*OFFMesh, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	if !sc.Scan() {
		return nil, diag.IOError("read_off", "empty file")
	}
	if strings.TrimSpace(sc.Text()) != "OFF" {
		return nil, diag.IOError("read_off", "missing OFF header")
	}

	if !sc.Scan() {
		return nil, diag.IOError("read_off", "missing counts line")
	}
	var nV, nF, nE int
	if _, err := fmt.Sscanf(sc.Text(), "%d %d %d", &nV, &nF, &nE); err != nil {
		return nil, diag.IOError("read_off", "malformed counts line: "+err.Error())
	}

	m := &OFFMesh{Vertices: make([][3]float64, nV), Triangles: make([][3]int, nF)}
	for i := 0; i < nV; i++ {
		if !sc.Scan() {
			return nil, diag.IOError("read_off", "truncated vertex list")
		}
		fields := strings.Fields(sc.Text())
		if len(fields) < 3 {
			return nil, diag.IOError("read_off", "malformed vertex line")
		}
		for k := 0; k < 3; k++ {
			v, err := strconv.ParseFloat(fields[k], 64)
			if err != nil {
				return nil, diag.IOError("read_off", "malformed vertex coordinate: "+err.Error())
			}
			m.Vertices[i][k] = v
		}
	}
	for i := 0; i < nF; i++ {
		if !sc.Scan() {
			return nil, diag.IOError("read_off", "truncated face list")
		}
		fields := strings.Fields(sc.Text())
		if len(fields) < 4 {
			return nil, diag.IOError("read_off", "malformed face line")
		}
		for k := 0; k < 3; k++ {
			idx, err := strconv.Atoi(fields[k+1])
			if err != nil {
				return nil, diag.IOError("read_off", "malformed face index: "+err.Error())
			}
			m.Triangles[i][k] = idx
		}
	}
	return m, nil
}

// BuildEdges derives the directed half-edge list of an OFF triangle
// mesh: one directed edge per triangle side, in that triangle's winding
// order. On a closed manifold mesh each undirected edge is shared by two
// triangles with opposite winding, so it is naturally emitted twice —
// spec.md §8's "triangle-mesh edge build" scenario (octahedron: 8
// triangles · 3 sides == 24 directed edges == 2 · 12 undirected edges).
func (m *OFFMesh) BuildEdges() [][2]int {
	edges := make([][2]int, 0, len(m.Triangles)*3)
	for _, tri := range m.Triangles {
		for k := 0; k < 3; k++ {
			a, b := tri[k], tri[(k+1)%3]
			edges = append(edges, [2]int{a, b})
		}
	}
	return edges
}
