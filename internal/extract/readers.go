// Cubegate - REST Gateway for Qlik Sense Hypercube Data
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubegate

package extract

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/cubegate/internal/engine"
	"github.com/tomtom215/cubegate/internal/logging"
)

const (
	hyperCubePath = "/qHyperCubeDef"
	fallbackType  = "cubegate-fallback"
)

// readDirect reads the object's own straight hypercube. Columns come back
// in declared order even when the object shows them in another order.
func (x *Extractor) readDirect(ctx context.Context, obj *engine.Object, hc *engine.HyperCubeLayout, p plan) (read, error) {
	schema := layoutSchema(hc)
	dims := len(schema.Dimensions)
	declared := dims + len(schema.Measures)

	width := declared
	visual := make([]int, declared)
	for i := range visual {
		visual[i] = i
	}
	if len(hc.ColumnOrder) > 0 {
		width = len(hc.ColumnOrder)
		for i := range visual {
			visual[i] = -1
		}
		for v, d := range hc.ColumnOrder {
			if d >= 0 && d < declared {
				visual[d] = v
			}
		}
	}

	r := read{total: hc.Size.Cy, schema: schema}
	start, count := p.rowRange(r.total)
	if count <= 0 {
		return r, nil
	}

	chunk := WindowRows(x.opts.CellBudget, x.opts.MaxRows, width)
	err := fetchRange(ctx, start, count, chunk, func(ctx context.Context, top, height int) (int, error) {
		pages, err := obj.GetHyperCubeData(ctx, hyperCubePath, engine.Rect{Top: top, Width: width, Height: height})
		if err != nil {
			return 0, err
		}
		n := 0
		for _, pg := range pages {
			for _, cells := range pg.Matrix {
				r.rows = append(r.rows, declaredRow(schema, visual, cells))
			}
			n += len(pg.Matrix)
		}
		return n, nil
	})
	if err != nil {
		return read{}, fmt.Errorf("read hypercube of %s: %w", obj.ID(), err)
	}
	return r, nil
}

// declaredRow builds a row in declared column order from cells in visual
// order. Declared columns without a visual slot are left out.
func declaredRow(s Schema, visual []int, cells []engine.Cell) Row {
	row := make(Row, 0, len(visual))
	dims := len(s.Dimensions)
	for d, v := range visual {
		if v < 0 || v >= len(cells) {
			continue
		}
		if d < dims {
			row = append(row, Column{Key: s.Dimensions[d].Label, Value: cells[v].Text})
		} else {
			row = append(row, Column{Key: s.Measures[d-dims], Value: cells[v].Value()})
		}
	}
	return row
}

// readPivot reads a pivot hypercube through its left tree under the pivot
// time budget. The object properties are returned for a fallback even
// when the read fails.
func (x *Extractor) readPivot(ctx context.Context, obj *engine.Object, hc *engine.HyperCubeLayout, p plan) (read, *engine.ObjectProperties, error) {
	pctx, cancel := context.WithTimeout(ctx, x.opts.PivotTimeout)
	defer cancel()

	timeout := func(err error) error {
		if errors.Is(pctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return &TimeoutError{ObjectID: obj.ID(), Budget: x.opts.PivotTimeout}
		}
		return err
	}

	props, err := obj.GetProperties(pctx)
	if err != nil {
		return read{}, nil, timeout(fmt.Errorf("get properties of %s: %w", obj.ID(), err))
	}

	r := read{total: hc.Size.Cy, schema: definitionSchema(props.HyperCubeDef, hc)}
	start, count := p.rowRange(r.total)
	if count <= 0 {
		return r, props, nil
	}

	width := len(r.schema.Measures)
	if width < 1 {
		width = 1
	}
	flat := &pivotFlattener{schema: r.schema}
	chunk := WindowRows(x.opts.CellBudget, x.opts.MaxRows, width)
	err = fetchRange(pctx, start, count, chunk, func(ctx context.Context, top, height int) (int, error) {
		pages, err := obj.GetHyperCubePivotData(ctx, hyperCubePath, engine.Rect{Top: top, Width: width, Height: height})
		if err != nil {
			return 0, err
		}
		n := 0
		for _, pg := range pages {
			r.rows = append(r.rows, flat.page(pg)...)
			n += len(pg.Data)
		}
		return n, nil
	})
	if err != nil {
		return read{}, props, timeout(fmt.Errorf("read pivot data of %s: %w", obj.ID(), err))
	}
	return r, props, nil
}

// readStraight rebuilds the object's dimensions and measures as a straight
// session object and reads that instead. The session object is always
// destroyed.
func (x *Extractor) readStraight(ctx context.Context, conn Conn, doc *engine.Doc, obj *engine.Object, props *engine.ObjectProperties, hc *engine.HyperCubeLayout, p plan) (read, error) {
	if props == nil {
		var err error
		if props, err = obj.GetProperties(ctx); err != nil {
			return read{}, fmt.Errorf("get properties of %s: %w", obj.ID(), err)
		}
	}
	if props.HyperCubeDef == nil {
		return read{}, ErrNoHyperCube
	}

	def := StraightDef(props.HyperCubeDef)
	schema := definitionSchema(props.HyperCubeDef, hc)
	dims := len(def.HyperCubeDef.Dimensions)
	width := dims + len(def.HyperCubeDef.Measures)

	wait := time.Duration(dims) * x.opts.PerDimensionTimeout
	if base := conn.ReceiveTimeout(); wait < base {
		wait = base
	}
	restore := conn.SetReceiveTimeout(wait)
	defer restore()

	sobj, err := doc.CreateSessionObject(ctx, def)
	if err != nil {
		return read{}, fmt.Errorf("create straight session object: %w", err)
	}
	defer func() {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
		defer cancel()
		if derr := doc.DestroySessionObject(cctx, sobj.ID()); derr != nil {
			logging.Ctx(ctx).Warn().Err(derr).Str("session_object", sobj.ID()).Msg("Failed to destroy session object")
		}
	}()

	layout, err := sobj.GetLayout(ctx)
	if err != nil {
		return read{}, fmt.Errorf("get layout of session object: %w", err)
	}
	r := read{schema: schema}
	if layout.HyperCube != nil {
		r.total = layout.HyperCube.Size.Cy
	}
	start, count := p.rowRange(r.total)
	if count <= 0 {
		return r, nil
	}

	chunk := WindowRows(x.opts.CellBudget, x.opts.MaxRows, width)
	err = fetchRange(ctx, start, count, chunk, func(ctx context.Context, top, height int) (int, error) {
		pages, err := sobj.GetHyperCubeData(ctx, hyperCubePath, engine.Rect{Top: top, Width: width, Height: height})
		if err != nil {
			return 0, err
		}
		n := 0
		for _, pg := range pages {
			for _, cells := range pg.Matrix {
				r.rows = append(r.rows, straightRow(schema, cells))
			}
			n += len(pg.Matrix)
		}
		return n, nil
	})
	if err != nil {
		return read{}, fmt.Errorf("read straight session object: %w", err)
	}
	return r, nil
}

func straightRow(s Schema, cells []engine.Cell) Row {
	row := make(Row, 0, len(s.Dimensions)+len(s.Measures))
	for i, d := range s.Dimensions {
		var v interface{} = ""
		if i < len(cells) {
			v = cells[i].Text
		}
		row = append(row, Column{Key: d.Label, Value: v})
	}
	if len(cells) > len(s.Dimensions) {
		return s.measureValues(row, cells[len(s.Dimensions):])
	}
	return s.measureValues(row, nil)
}

// StraightDef builds the straight session object definition used when a
// pivot cannot be read. Measures are copied verbatim so library references
// and formatting survive.
func StraightDef(src *engine.HyperCubeDef) engine.SessionObjectDef {
	hc := &engine.HyperCubeDef{
		Mode:            "S",
		SuppressZero:    false,
		SuppressMissing: false,
	}
	for _, d := range src.Dimensions {
		hc.Dimensions = append(hc.Dimensions, engine.Dimension{
			LibraryID: d.LibraryID,
			Def: engine.DimensionDef{
				FieldDefs:   d.Def.FieldDefs,
				FieldLabels: d.Def.FieldLabels,
			},
		})
	}
	hc.Measures = append(hc.Measures, src.Measures...)
	n := len(hc.Dimensions) + len(hc.Measures)
	hc.InterColumnSortOrder = make([]int, n)
	for i := range hc.InterColumnSortOrder {
		hc.InterColumnSortOrder[i] = i
	}
	return engine.SessionObjectDef{
		Info:         engine.Info{Type: fallbackType},
		HyperCubeDef: hc,
	}
}
