package meshio

import (
	"strings"
	"testing"
)

// octahedronOFF is spec.md §8's scenario 3 fixture: 6 vertices, 8
// triangular faces.
const octahedronOFF = `OFF
6 8 0
1 0 0
-1 0 0
0 1 0
0 -1 0
0 0 1
0 0 -1
3 0 2 4
3 2 1 4
3 1 3 4
3 3 0 4
3 2 0 5
3 1 2 5
3 3 1 5
3 0 3 5
`

func TestReadOFFAndBuildEdges(t *testing.T) {
	m, err := ReadOFF(strings.NewReader(octahedronOFF))
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Vertices) != 6 {
		t.Fatalf("vertices = %d, want 6", len(m.Vertices))
	}
	if len(m.Triangles) != 8 {
		t.Fatalf("triangles = %d, want 8", len(m.Triangles))
	}

	edges := m.BuildEdges()
	if len(edges) != 24 {
		t.Fatalf("|edges| = %d, want 24", len(edges))
	}

	degree := make(map[int]int)
	for _, e := range edges {
		degree[e[0]]++
		degree[e[1]]++
	}
	sum := 0
	for _, d := range degree {
		sum += d
	}
	if sum != 48 {
		t.Fatalf("sum(degree) = %d, want 48", sum)
	}
}

func TestReadOFFRejectsBadHeader(t *testing.T) {
	if _, err := ReadOFF(strings.NewReader("NOTOFF\n3 1 0\n")); err == nil {
		t.Fatal("expected error for missing OFF header")
	}
}

func TestCSVRoundTrip(t *testing.T) {
	var buf strings.Builder
	shape := CSVShape{Components: 3, Precision: 2}
	if err := WriteCSVRow(&buf, shape, []float64{1.5, 2, 3.333}); err != nil {
		t.Fatal(err)
	}
	rows, err := ReadCSVRows(strings.NewReader(buf.String()), 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	want := []float64{1.5, 2, 3.33}
	for i, v := range want {
		if rows[0][i] != v {
			t.Fatalf("component %d = %v, want %v", i, rows[0][i], v)
		}
	}
}

func TestCSVBoolEncoding(t *testing.T) {
	var buf strings.Builder
	shape := CSVShape{Components: 2, IsBool: true}
	if err := WriteCSVRow(&buf, shape, []float64{0, 1}); err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(buf.String()); got != "0, 1" {
		t.Fatalf("got %q, want %q", got, "0, 1")
	}
}
