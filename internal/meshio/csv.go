package meshio

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nmxmxh/inos_v1/internal/diag"
)

// CSVShape describes one field's per-row component layout for CSV
// encoding: a scalar (Components == 1), a fixed-size vector, or a
// row-major matrix (spec.md §6 "vector/matrix elements flattened
// row-major").
type CSVShape struct {
	Components int
	IsBool     bool
	Precision  int // -1 selects %f; otherwise %.<precision>f
}

// WriteCSVRow formats one grid cell's values as spec.md §6 describes:
// comma-separated, with an optional single space after the comma, and
// ", " separating a cell's flattened vector/matrix components.
func WriteCSVRow(w io.Writer, shape CSVShape, values []float64) error {
	if len(values) != shape.Components {
		return diag.IOError("write_csv_row", "value count does not match shape")
	}
	parts := make([]string, len(values))
	for i, v := range values {
		if shape.IsBool {
			if v != 0 {
				parts[i] = "1"
			} else {
				parts[i] = "0"
			}
			continue
		}
		if shape.Precision >= 0 {
			parts[i] = strconv.FormatFloat(v, 'f', shape.Precision, 64)
		} else {
			parts[i] = strconv.FormatFloat(v, 'f', 6, 64)
		}
	}
	_, err := fmt.Fprintln(w, strings.Join(parts, ", "))
	return err
}

// ReadCSVRows reads one row per grid cell, accepting both ", " and ","
// separators (spec.md §6 "comma-separated, with an optional single
// space").
func ReadCSVRows(r io.Reader, components int) ([][]float64, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var rows [][]float64
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Split(line, ",")
		if len(fields) != components {
			return nil, diag.IOError("read_csv_rows", "row has wrong component count")
		}
		row := make([]float64, components)
		for i, f := range fields {
			v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
			if err != nil {
				return nil, diag.IOError("read_csv_rows", "malformed value: "+err.Error())
			}
			row[i] = v
		}
		rows = append(rows, row)
	}
	if err := sc.Err(); err != nil {
		return nil, diag.IOError("read_csv_rows", err.Error())
	}
	return rows, nil
}
