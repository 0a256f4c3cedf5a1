// Cubegate - REST Gateway for Qlik Sense Hypercube Data
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubegate

package extract

import (
	"github.com/tomtom215/cubegate/internal/engine"
)

// totalNode is the qType of a pivot subtotal node.
const totalNode = "T"

// IsTreeFormat reports whether a pivot page's left side is a nested tree
// rather than a flat list of sparse rows.
func IsTreeFormat(left []engine.PivotLeft) bool {
	return len(left) > 0 && len(left[0].Cells) > 0 && !left[0].List && len(left[0].Cells[0].SubNodes) > 0
}

// FlattenTree walks the left tree depth first and joins every leaf with
// the next data row. It returns the rows and the number of data rows
// consumed. Subtotal leaves consume a data row but produce no row.
func FlattenTree(nodes []engine.PivotCell, data [][]engine.Cell, s Schema) ([]Row, int) {
	return flattenNodes(nodes, nil, data, 0, s)
}

func flattenNodes(nodes []engine.PivotCell, path []string, data [][]engine.Cell, cursor int, s Schema) ([]Row, int) {
	var rows []Row
	for _, n := range nodes {
		p := append(path[:len(path):len(path)], n.Text)
		if len(n.SubNodes) > 0 {
			sub, next := flattenNodes(n.SubNodes, p, data, cursor, s)
			rows = append(rows, sub...)
			cursor = next
			continue
		}
		if cursor >= len(data) {
			return rows, cursor
		}
		if n.Type != totalNode {
			rows = append(rows, s.pathRow(p, data[cursor]))
		}
		cursor++
	}
	return rows, cursor
}

func (s Schema) pathRow(path []string, cells []engine.Cell) Row {
	row := make(Row, 0, len(path)+len(s.Measures))
	for i, text := range path {
		row = append(row, Column{Key: s.dimensionLabel(i), Value: text})
	}
	return s.measureValues(row, cells)
}

// FlattenSparse joins each left entry with the data row at the same index.
// Repeat cells take the last real value seen in their column. carry is the
// state left by the previous chunk and is not modified; the updated state
// is returned.
func FlattenSparse(left []engine.PivotLeft, data [][]engine.Cell, s Schema, carry map[int]string) ([]Row, map[int]string) {
	next := make(map[int]string, len(carry))
	for k, v := range carry {
		next[k] = v
	}

	rows := make([]Row, 0, len(left))
	for i, entry := range left {
		row := make(Row, 0, len(entry.Cells)+len(s.Measures))
		for j, c := range entry.Cells {
			text := c.Text
			if c.IsRepeat() {
				text = next[j]
			} else {
				next[j] = text
			}
			row = append(row, Column{Key: sparseLabel(s, entry, j), Value: text})
		}
		var cells []engine.Cell
		if i < len(data) {
			cells = data[i]
		}
		rows = append(rows, s.measureValues(row, cells))
	}
	return rows, next
}

func sparseLabel(s Schema, entry engine.PivotLeft, j int) string {
	if !entry.List && len(entry.Cells) == 1 {
		if len(s.Dimensions) == 0 {
			return "Dimension"
		}
		return s.Dimensions[0].Label
	}
	return s.dimensionLabel(j)
}

// pivotFlattener flattens consecutive pivot pages, threading sparse state
// from one page to the next.
type pivotFlattener struct {
	schema Schema
	carry  map[int]string
}

func (f *pivotFlattener) page(p engine.PivotDataPage) []Row {
	if IsTreeFormat(p.Left) {
		nodes := make([]engine.PivotCell, 0, len(p.Left))
		for _, entry := range p.Left {
			nodes = append(nodes, entry.Cells...)
		}
		rows, _ := FlattenTree(nodes, p.Data, f.schema)
		return rows
	}
	rows, carry := FlattenSparse(p.Left, p.Data, f.schema, f.carry)
	f.carry = carry
	return rows
}

// coverage counts the dimension labels that appear as a key in any row.
func coverage(rows []Row, s Schema) int {
	want := make(map[string]bool, len(s.Dimensions))
	for _, d := range s.Dimensions {
		want[d.Label] = true
	}
	seen := map[string]bool{}
	for _, r := range rows {
		for _, c := range r {
			if want[c.Key] {
				seen[c.Key] = true
			}
		}
		if len(seen) == len(want) {
			break
		}
	}
	return len(seen)
}
