// Cubegate - REST Gateway for Qlik Sense Hypercube Data
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubegate

package extract

import (
	"strconv"

	"github.com/tomtom215/cubegate/internal/engine"
)

// DimensionColumn is a dimension's field reference and row key.
type DimensionColumn struct {
	Field string
	Label string
}

// Schema lists the row keys produced for an object.
type Schema struct {
	Dimensions []DimensionColumn
	Measures   []string
}

// DimensionLabels returns the dimension row keys in order.
func (s Schema) DimensionLabels() []string {
	out := make([]string, len(s.Dimensions))
	for i, d := range s.Dimensions {
		out[i] = d.Label
	}
	return out
}

// dimensionLabel returns the key for path position i.
func (s Schema) dimensionLabel(i int) string {
	if i < len(s.Dimensions) {
		return s.Dimensions[i].Label
	}
	return dimPlaceholder(i)
}

// resolve maps a client-supplied key to a row key: a dimension field or
// label resolves to the dimension label, anything else is used as is.
func (s Schema) resolve(key string) string {
	for _, d := range s.Dimensions {
		if d.Field == key || d.Label == key {
			return d.Label
		}
	}
	return key
}

func dimPlaceholder(i int) string     { return "dim" + strconv.Itoa(i) }
func measurePlaceholder(i int) string { return "Measure_" + strconv.Itoa(i) }

// definitionSchema labels columns from the stored hypercube definition,
// falling back to the evaluated layout's titles and then to the
// expressions themselves.
func definitionSchema(def *engine.HyperCubeDef, hc *engine.HyperCubeLayout) Schema {
	var s Schema
	if def == nil {
		return layoutSchema(hc)
	}
	for i, d := range def.Dimensions {
		label := firstNonEmpty(d.Label(), dimensionTitle(hc, i), d.FieldRef(), dimPlaceholder(i))
		field := d.FieldRef()
		if field == "" {
			field = label
		}
		s.Dimensions = append(s.Dimensions, DimensionColumn{Field: field, Label: label})
	}
	for i, m := range def.Measures {
		s.Measures = append(s.Measures, firstNonEmpty(m.Def.Label, measureTitle(hc, i), m.Def.Def, measurePlaceholder(i)))
	}
	return s.unique()
}

// layoutSchema labels columns from the layout's fallback titles.
func layoutSchema(hc *engine.HyperCubeLayout) Schema {
	var s Schema
	if hc == nil {
		return s
	}
	for i, d := range hc.DimensionInfo {
		label := firstNonEmpty(d.FallbackTitle, dimPlaceholder(i))
		field := label
		if len(d.GroupFieldDefs) > 0 && d.GroupFieldDefs[0] != "" {
			field = d.GroupFieldDefs[0]
		}
		s.Dimensions = append(s.Dimensions, DimensionColumn{Field: field, Label: label})
	}
	for i, m := range hc.MeasureInfo {
		s.Measures = append(s.Measures, firstNonEmpty(m.FallbackTitle, measurePlaceholder(i)))
	}
	return s.unique()
}

// unique suffixes repeated labels so every column keeps its own key.
func (s Schema) unique() Schema {
	seen := map[string]int{}
	next := func(label string) string {
		seen[label]++
		if n := seen[label]; n > 1 {
			return label + "_" + strconv.Itoa(n)
		}
		return label
	}
	for i := range s.Dimensions {
		s.Dimensions[i].Label = next(s.Dimensions[i].Label)
	}
	for i := range s.Measures {
		s.Measures[i] = next(s.Measures[i])
	}
	return s
}

func dimensionTitle(hc *engine.HyperCubeLayout, i int) string {
	if hc != nil && i < len(hc.DimensionInfo) {
		return hc.DimensionInfo[i].FallbackTitle
	}
	return ""
}

func measureTitle(hc *engine.HyperCubeLayout, i int) string {
	if hc != nil && i < len(hc.MeasureInfo) {
		return hc.MeasureInfo[i].FallbackTitle
	}
	return ""
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// measureValues appends measure columns for one data row.
func (s Schema) measureValues(row Row, cells []engine.Cell) Row {
	for j, label := range s.Measures {
		var v interface{}
		if j < len(cells) {
			v = cells[j].Value()
		}
		row = append(row, Column{Key: label, Value: v})
	}
	return row
}
