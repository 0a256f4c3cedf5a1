// Cubegate - REST Gateway for Qlik Sense Hypercube Data
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubegate

package engine_test

import (
	"context"
	"errors"
	"testing"

	"github.com/tomtom215/cubegate/internal/engine"
	"github.com/tomtom215/cubegate/internal/engine/enginetest"
)

func salesDoc() *enginetest.Doc {
	doc := enginetest.NewDoc("sales.qvf")
	doc.Bookmarks["bm-2024"] = "Year 2024"
	doc.AddObject(&enginetest.Object{
		ID: "tbl1",
		Properties: engine.ObjectProperties{
			Info: engine.Info{ID: "tbl1", Type: "table"},
			HyperCubeDef: &engine.HyperCubeDef{
				Dimensions: []engine.Dimension{{Def: engine.DimensionDef{FieldDefs: []string{"Region"}}}},
				Measures:   []engine.Measure{{Def: engine.MeasureDef{Def: "Sum(Sales)", Label: "Sales"}}},
			},
		},
		Layout: engine.ObjectLayout{
			Info: engine.Info{ID: "tbl1", Type: "table"},
			HyperCube: &engine.HyperCubeLayout{
				Size:          engine.Size{Cx: 2, Cy: 2},
				DimensionInfo: []engine.DimensionInfo{{FallbackTitle: "Region"}},
				MeasureInfo:   []engine.MeasureInfo{{FallbackTitle: "Sales"}},
			},
		},
		Straight: [][]engine.Cell{
			{{Text: "North"}, {Text: "10", Num: engine.NumOf(10)}},
			{{Text: "South"}, {Text: "20", Num: engine.NumOf(20)}},
		},
	})
	return doc
}

func TestGlobal_OpenDocRecoversAlreadyOpen(t *testing.T) {
	ctx := context.Background()
	e := enginetest.New(salesDoc())
	g := engine.NewGlobal(e)

	first, err := g.OpenDoc(ctx, "sales.qvf", false)
	if err != nil {
		t.Fatalf("OpenDoc() error = %v", err)
	}
	second, err := g.OpenDoc(ctx, "sales.qvf", false)
	if err != nil {
		t.Fatalf("second OpenDoc() error = %v", err)
	}
	if second.ID() != first.ID() {
		t.Errorf("recovered doc id = %q, want %q", second.ID(), first.ID())
	}
	if e.Count("GetActiveDoc") != 1 {
		t.Errorf("expected GetActiveDoc to be used once, got %d", e.Count("GetActiveDoc"))
	}
}

func TestGlobal_OpenDocNoDataParams(t *testing.T) {
	e := enginetest.New(salesDoc())
	if _, err := engine.NewGlobal(e).OpenDoc(context.Background(), "sales.qvf", true); err != nil {
		t.Fatalf("OpenDoc() error = %v", err)
	}
	calls := e.Calls()
	if got := string(calls[0].Params); got != `["sales.qvf","","","",true]` {
		t.Errorf("OpenDoc params = %s", got)
	}
}

func TestGlobal_DocListAndVersion(t *testing.T) {
	ctx := context.Background()
	e := enginetest.New(salesDoc(), enginetest.NewDoc("hr.qvf"))
	g := engine.NewGlobal(e)

	docs, err := g.GetDocList(ctx)
	if err != nil {
		t.Fatalf("GetDocList() error = %v", err)
	}
	if len(docs) != 2 || docs[0].DocID != "hr.qvf" {
		t.Errorf("GetDocList() = %+v", docs)
	}
	v, err := g.EngineVersion(ctx)
	if err != nil || v != "14.0.0" {
		t.Errorf("EngineVersion() = %q, %v", v, err)
	}
}

func TestDoc_ObjectData(t *testing.T) {
	ctx := context.Background()
	e := enginetest.New(salesDoc())
	doc, err := engine.NewGlobal(e).OpenDoc(ctx, "sales.qvf", false)
	if err != nil {
		t.Fatalf("OpenDoc() error = %v", err)
	}

	obj, err := doc.GetObject(ctx, "tbl1")
	if err != nil {
		t.Fatalf("GetObject() error = %v", err)
	}
	layout, err := obj.GetLayout(ctx)
	if err != nil {
		t.Fatalf("GetLayout() error = %v", err)
	}
	if layout.HyperCube == nil || layout.HyperCube.Size.Cy != 2 {
		t.Fatalf("unexpected layout %+v", layout)
	}

	pages, err := obj.GetHyperCubeData(ctx, "/qHyperCubeDef", engine.Rect{Top: 1, Width: 2, Height: 5})
	if err != nil {
		t.Fatalf("GetHyperCubeData() error = %v", err)
	}
	if len(pages) != 1 || len(pages[0].Matrix) != 1 {
		t.Fatalf("unexpected pages %+v", pages)
	}
	if got := pages[0].Matrix[0][1].Value(); got != 20.0 {
		t.Errorf("cell value = %v, want 20", got)
	}

	props, err := obj.GetProperties(ctx)
	if err != nil {
		t.Fatalf("GetProperties() error = %v", err)
	}
	if props.HyperCubeDef.Measures[0].Def.Label != "Sales" {
		t.Errorf("measure label = %q", props.HyperCubeDef.Measures[0].Def.Label)
	}
}

func TestDoc_GetObjectMissing(t *testing.T) {
	ctx := context.Background()
	e := enginetest.New(salesDoc())
	doc, _ := engine.NewGlobal(e).OpenDoc(ctx, "sales.qvf", false)

	_, err := doc.GetObject(ctx, "nope")
	if engine.KindOf(err) != engine.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDoc_BookmarksAndSelections(t *testing.T) {
	ctx := context.Background()
	d := salesDoc()
	d.RejectSelect["Locked"] = true
	e := enginetest.New(d)
	doc, _ := engine.NewGlobal(e).OpenDoc(ctx, "sales.qvf", false)

	if err := doc.ApplyBookmark(ctx, "bm-2024"); err != nil {
		t.Fatalf("ApplyBookmark() error = %v", err)
	}
	if err := doc.ApplyBookmark(ctx, "bm-missing"); !errors.Is(err, engine.ErrBookmarkNotApplied) {
		t.Errorf("expected ErrBookmarkNotApplied, got %v", err)
	}

	field, err := doc.GetField(ctx, "Region")
	if err != nil {
		t.Fatalf("GetField() error = %v", err)
	}
	ok, err := field.SelectValues(ctx, []engine.FieldValue{{Text: "North"}}, false, true)
	if err != nil || !ok {
		t.Fatalf("SelectValues() = %v, %v", ok, err)
	}
	if got := d.Selections["Region"]; len(got) != 1 || got[0] != "North" {
		t.Errorf("selections = %v", got)
	}

	locked, _ := doc.GetField(ctx, "Locked")
	if ok, _ := locked.SelectValues(ctx, []engine.FieldValue{{Text: "x"}}, false, true); ok {
		t.Error("expected rejected selection")
	}

	if err := doc.ClearAll(ctx, false); err != nil {
		t.Fatalf("ClearAll() error = %v", err)
	}
	if d.Cleared != 1 || len(d.Selections) != 0 {
		t.Errorf("ClearAll did not clear: cleared=%d selections=%v", d.Cleared, d.Selections)
	}

	bm, err := doc.GetBookmark(ctx, "bm-2024")
	if err != nil {
		t.Fatalf("GetBookmark() error = %v", err)
	}
	layout, err := bm.GetLayout(ctx)
	if err != nil || layout.Meta.Title != "Year 2024" {
		t.Errorf("bookmark layout = %+v, %v", layout, err)
	}
}

func TestDoc_SessionObjectLifecycle(t *testing.T) {
	ctx := context.Background()
	d := salesDoc()
	e := enginetest.New(d)
	doc, _ := engine.NewGlobal(e).OpenDoc(ctx, "sales.qvf", false)

	obj, err := doc.CreateSessionObject(ctx, engine.SessionObjectDef{
		Info:         engine.Info{Type: "probe"},
		HyperCubeDef: &engine.HyperCubeDef{Mode: "S"},
	})
	if err != nil {
		t.Fatalf("CreateSessionObject() error = %v", err)
	}
	if obj.ID() == "" {
		t.Fatal("expected generic id")
	}
	if err := doc.DestroySessionObject(ctx, obj.ID()); err != nil {
		t.Fatalf("DestroySessionObject() error = %v", err)
	}
	if err := doc.DestroySessionObject(ctx, obj.ID()); err == nil {
		t.Error("expected failure destroying an object twice")
	}
	if len(d.Destroyed) != 2 {
		t.Errorf("Destroyed = %v", d.Destroyed)
	}
}

func TestDoc_GetAllInfos(t *testing.T) {
	ctx := context.Background()
	e := enginetest.New(salesDoc())
	doc, _ := engine.NewGlobal(e).OpenDoc(ctx, "sales.qvf", false)

	infos, err := doc.GetAllInfos(ctx)
	if err != nil {
		t.Fatalf("GetAllInfos() error = %v", err)
	}
	types := map[string]string{}
	for _, in := range infos {
		types[in.ID] = in.Type
	}
	if types["bm-2024"] != "bookmark" || types["tbl1"] != "table" {
		t.Errorf("GetAllInfos() = %+v", infos)
	}
}
