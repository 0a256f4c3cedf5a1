// Cubegate - REST Gateway for Qlik Sense Hypercube Data
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubegate

// Package enginetest provides an in-memory engine for tests. An Engine
// answers calls in-process through its Call method and can be served over a
// real websocket with Serve.
package enginetest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/cubegate/internal/engine"
)

// Call is one recorded request.
type Call struct {
	Handle int
	Method string
	Params json.RawMessage
}

// Object is a generic object in a Doc.
type Object struct {
	ID         string
	Type       string
	Properties engine.ObjectProperties
	Layout     engine.ObjectLayout

	// Straight is the full matrix returned by GetHyperCubeData.
	Straight [][]engine.Cell

	// PivotLeft and PivotData are sliced by qTop/qHeight for
	// GetHyperCubePivotData. PivotPage, when set, replaces slicing.
	PivotLeft []engine.PivotLeft
	PivotData [][]engine.Cell
	PivotPage func(rect engine.Rect) engine.PivotDataPage

	// PivotErr fails every pivot read.
	PivotErr *engine.EngineError

	// Delay is applied before answering data calls.
	Delay time.Duration

	// TooLarge fails data requests whose rect has more cells than this.
	TooLarge int
}

// Doc is a document.
type Doc struct {
	ID        string
	Name      string
	Objects   map[string]*Object
	Bookmarks map[string]string

	// SessionData returns the straight matrix of a session object created
	// from def.
	SessionData func(def *engine.HyperCubeDef) [][]engine.Cell

	// RejectSelect makes SelectValues on these fields return false.
	RejectSelect map[string]bool

	Created    []engine.SessionObjectDef
	Destroyed  []string
	Selections map[string][]string
	Cleared    int
	Applied    []string
}

// NewDoc returns an empty Doc.
func NewDoc(id string) *Doc {
	return &Doc{
		ID:           id,
		Name:         id,
		Objects:      map[string]*Object{},
		Bookmarks:    map[string]string{},
		RejectSelect: map[string]bool{},
		Selections:   map[string][]string{},
	}
}

// AddObject adds obj to the document and returns it.
func (d *Doc) AddObject(obj *Object) *Object {
	if obj.Type == "" {
		obj.Type = "GenericObject"
	}
	d.Objects[obj.ID] = obj
	return obj
}

type target struct {
	doc      *Doc
	obj      *Object
	field    string
	bookmark string
}

// Engine is an in-memory engine.
type Engine struct {
	Version string

	mu             sync.Mutex
	docs           map[string]*Doc
	handles        map[int]*target
	nextHandle     int
	activeDoc      string
	calls          []Call
	failNext       map[string]*engine.EngineError
	receiveTimeout time.Duration
	timeouts       []time.Duration
}

// New returns an Engine serving docs.
func New(docs ...*Doc) *Engine {
	e := &Engine{
		Version:        "14.0.0",
		docs:           map[string]*Doc{},
		handles:        map[int]*target{},
		failNext:       map[string]*engine.EngineError{},
		receiveTimeout: 300 * time.Second,
	}
	for _, d := range docs {
		e.docs[d.ID] = d
	}
	return e
}

// Doc returns the document with id.
func (e *Engine) Doc(id string) *Doc {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.docs[id]
}

// FailNext makes the next call of method fail with err.
func (e *Engine) FailNext(method string, err *engine.EngineError) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failNext[method] = err
}

// Calls returns the recorded calls.
func (e *Engine) Calls() []Call {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Call(nil), e.calls...)
}

// Count returns how often method was called.
func (e *Engine) Count(method string) int {
	n := 0
	for _, c := range e.Calls() {
		if c.Method == method {
			n++
		}
	}
	return n
}

// ReceiveTimeout implements the session timeout accessor.
func (e *Engine) ReceiveTimeout() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.receiveTimeout
}

// SetReceiveTimeout records d and returns a restore function.
func (e *Engine) SetReceiveTimeout(d time.Duration) func() {
	e.mu.Lock()
	prev := e.receiveTimeout
	e.receiveTimeout = d
	e.timeouts = append(e.timeouts, d)
	e.mu.Unlock()
	return func() {
		e.mu.Lock()
		e.receiveTimeout = prev
		e.mu.Unlock()
	}
}

// Timeouts returns every value passed to SetReceiveTimeout.
func (e *Engine) Timeouts() []time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]time.Duration(nil), e.timeouts...)
}

// resetSession forgets per-connection state.
func (e *Engine) resetSession() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.activeDoc = ""
}

// Call answers one request in-process. It implements engine.Caller.
func (e *Engine) Call(ctx context.Context, handle int, method string, params, result interface{}) error {
	if params == nil {
		params = []interface{}{}
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return err
	}
	res, delay, eerr := e.dispatch(handle, method, raw)
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return &engine.TransportError{Method: method, Err: ctx.Err()}
		}
	}
	if eerr != nil {
		out := *eerr
		out.Method = method
		return &out
	}
	if result == nil {
		return nil
	}
	b, err := json.Marshal(res)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, result)
}

func (e *Engine) dispatch(handle int, method string, raw json.RawMessage) (interface{}, time.Duration, *engine.EngineError) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.calls = append(e.calls, Call{Handle: handle, Method: method, Params: raw})
	if ferr, ok := e.failNext[method]; ok {
		delete(e.failNext, method)
		return nil, 0, ferr
	}

	if handle == engine.GlobalHandle {
		res, err := e.global(method, raw)
		return res, 0, err
	}
	t, ok := e.handles[handle]
	switch {
	case !ok:
		return nil, 0, &engine.EngineError{Code: -32602, Message: fmt.Sprintf("Invalid handle %d", handle)}
	case t.obj != nil:
		return e.object(t.doc, t.obj, method, raw)
	case t.field != "":
		res, err := e.field(t.doc, t.field, method, raw)
		return res, 0, err
	case t.bookmark != "":
		return map[string]interface{}{"qLayout": engine.ObjectLayout{
			Info: engine.Info{ID: t.bookmark, Type: "bookmark"},
			Meta: engine.Meta{Title: t.doc.Bookmarks[t.bookmark]},
		}}, 0, nil
	default:
		res, err := e.doc(t.doc, method, raw)
		return res, 0, err
	}
}

func (e *Engine) register(t *target) int {
	e.nextHandle++
	e.handles[e.nextHandle] = t
	return e.nextHandle
}

func handleResult(typ string, handle int, id string) map[string]interface{} {
	return map[string]interface{}{"qReturn": map[string]interface{}{
		"qType": typ, "qHandle": handle, "qGenericId": id,
	}}
}

func (e *Engine) global(method string, raw json.RawMessage) (interface{}, *engine.EngineError) {
	switch method {
	case "OpenDoc":
		var params []interface{}
		_ = json.Unmarshal(raw, &params)
		id, _ := params[0].(string)
		doc, ok := e.docs[id]
		if !ok {
			return nil, &engine.EngineError{Code: 1003, Parameter: id, Message: "App not found"}
		}
		if e.activeDoc == id {
			return nil, &engine.EngineError{Code: 1002, Parameter: id, Message: "App already open"}
		}
		e.activeDoc = id
		return handleResult("Doc", e.register(&target{doc: doc}), id), nil
	case "GetActiveDoc":
		doc, ok := e.docs[e.activeDoc]
		if !ok {
			return nil, &engine.EngineError{Code: 1007, Message: "No active document"}
		}
		return handleResult("Doc", e.register(&target{doc: doc}), doc.ID), nil
	case "GetDocList":
		ids := make([]string, 0, len(e.docs))
		for id := range e.docs {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		list := make([]engine.DocListEntry, 0, len(ids))
		for _, id := range ids {
			list = append(list, engine.DocListEntry{DocName: e.docs[id].Name, DocID: id})
		}
		return map[string]interface{}{"qDocList": list}, nil
	case "EngineVersion":
		return map[string]interface{}{"qVersion": map[string]string{"qComponentVersion": e.Version}}, nil
	}
	return nil, unknownMethod(method)
}

func (e *Engine) doc(d *Doc, method string, raw json.RawMessage) (interface{}, *engine.EngineError) {
	switch method {
	case "GetObject":
		var params []string
		_ = json.Unmarshal(raw, &params)
		obj, ok := d.Objects[params[0]]
		if !ok {
			return map[string]interface{}{"qReturn": map[string]interface{}{"qType": nil, "qHandle": nil}}, nil
		}
		return handleResult("GenericObject", e.register(&target{doc: d, obj: obj}), obj.ID), nil
	case "CreateSessionObject":
		var params []engine.SessionObjectDef
		if err := json.Unmarshal(raw, &params); err != nil || len(params) == 0 {
			return nil, &engine.EngineError{Code: -32602, Message: "Invalid params"}
		}
		def := params[0]
		d.Created = append(d.Created, def)
		obj := sessionObject(d, def, len(d.Created))
		d.Objects[obj.ID] = obj
		return handleResult("GenericObject", e.register(&target{doc: d, obj: obj}), obj.ID), nil
	case "DestroySessionObject":
		var params []string
		_ = json.Unmarshal(raw, &params)
		_, ok := d.Objects[params[0]]
		delete(d.Objects, params[0])
		d.Destroyed = append(d.Destroyed, params[0])
		return map[string]bool{"qSuccess": ok}, nil
	case "ApplyBookmark":
		var params []string
		_ = json.Unmarshal(raw, &params)
		_, ok := d.Bookmarks[params[0]]
		if ok {
			d.Applied = append(d.Applied, params[0])
		}
		return map[string]bool{"qSuccess": ok}, nil
	case "ClearAll":
		d.Cleared++
		d.Selections = map[string][]string{}
		return map[string]interface{}{}, nil
	case "GetField":
		var params []string
		_ = json.Unmarshal(raw, &params)
		return handleResult("Field", e.register(&target{doc: d, field: params[0]}), ""), nil
	case "GetAllInfos":
		infos := make([]engine.Info, 0, len(d.Objects)+len(d.Bookmarks))
		for id, obj := range d.Objects {
			typ := obj.Properties.Info.Type
			if typ == "" {
				typ = obj.Layout.Info.Type
			}
			infos = append(infos, engine.Info{ID: id, Type: typ})
		}
		for id := range d.Bookmarks {
			infos = append(infos, engine.Info{ID: id, Type: "bookmark"})
		}
		sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
		return map[string]interface{}{"qInfos": infos}, nil
	case "GetBookmark":
		var params []string
		_ = json.Unmarshal(raw, &params)
		if _, ok := d.Bookmarks[params[0]]; !ok {
			return nil, &engine.EngineError{Code: 2, Parameter: params[0], Message: "Object not found"}
		}
		return handleResult("GenericBookmark", e.register(&target{doc: d, bookmark: params[0]}), params[0]), nil
	}
	return nil, unknownMethod(method)
}

func (e *Engine) field(d *Doc, name, method string, raw json.RawMessage) (interface{}, *engine.EngineError) {
	if method != "SelectValues" {
		return nil, unknownMethod(method)
	}
	var params []json.RawMessage
	_ = json.Unmarshal(raw, &params)
	var values []engine.FieldValue
	if len(params) > 0 {
		_ = json.Unmarshal(params[0], &values)
	}
	if d.RejectSelect[name] {
		return map[string]bool{"qReturn": false}, nil
	}
	texts := make([]string, 0, len(values))
	for _, v := range values {
		texts = append(texts, v.Text)
	}
	d.Selections[name] = texts
	return map[string]bool{"qReturn": true}, nil
}

func (e *Engine) object(d *Doc, obj *Object, method string, raw json.RawMessage) (interface{}, time.Duration, *engine.EngineError) {
	switch method {
	case "GetLayout":
		return map[string]interface{}{"qLayout": obj.Layout}, 0, nil
	case "GetProperties":
		return map[string]interface{}{"qProp": obj.Properties}, 0, nil
	case "GetInfo":
		info := obj.Layout.Info
		if info.ID == "" {
			info.ID = obj.ID
		}
		return map[string]interface{}{"qInfo": info}, 0, nil
	case "GetHyperCubeData":
		rects, err := decodeRects(raw)
		if err != nil {
			return nil, 0, err
		}
		pages := make([]engine.DataPage, 0, len(rects))
		for _, r := range rects {
			if obj.TooLarge > 0 && r.Width*r.Height > obj.TooLarge {
				return nil, obj.Delay, tooLarge()
			}
			pages = append(pages, engine.DataPage{Matrix: sliceMatrix(obj.Straight, r), Area: r})
		}
		return map[string]interface{}{"qDataPages": pages}, obj.Delay, nil
	case "GetHyperCubePivotData":
		if obj.PivotErr != nil {
			return nil, obj.Delay, obj.PivotErr
		}
		rects, err := decodeRects(raw)
		if err != nil {
			return nil, 0, err
		}
		pages := make([]engine.PivotDataPage, 0, len(rects))
		for _, r := range rects {
			if obj.TooLarge > 0 && r.Width*r.Height > obj.TooLarge {
				return nil, obj.Delay, tooLarge()
			}
			if obj.PivotPage != nil {
				pages = append(pages, obj.PivotPage(r))
				continue
			}
			lo, hi := clamp(r.Top, r.Height, len(obj.PivotLeft))
			dlo, dhi := clamp(r.Top, r.Height, len(obj.PivotData))
			pages = append(pages, engine.PivotDataPage{
				Left: obj.PivotLeft[lo:hi],
				Data: obj.PivotData[dlo:dhi],
				Area: r,
			})
		}
		return map[string]interface{}{"qDataPages": pages}, obj.Delay, nil
	}
	return nil, 0, unknownMethod(method)
}

// sessionObject builds the object CreateSessionObject returns.
func sessionObject(d *Doc, def engine.SessionObjectDef, n int) *Object {
	obj := &Object{
		ID:         fmt.Sprintf("session-%d", n),
		Type:       "GenericObject",
		Properties: engine.ObjectProperties{Info: def.Info, HyperCubeDef: def.HyperCubeDef},
	}
	hc := &engine.HyperCubeLayout{Mode: "S"}
	if def.HyperCubeDef != nil {
		for _, dim := range def.HyperCubeDef.Dimensions {
			title := dim.Label()
			if title == "" {
				title = dim.FieldRef()
			}
			hc.DimensionInfo = append(hc.DimensionInfo, engine.DimensionInfo{FallbackTitle: title})
		}
		for _, m := range def.HyperCubeDef.Measures {
			hc.MeasureInfo = append(hc.MeasureInfo, engine.MeasureInfo{FallbackTitle: m.Def.Label})
		}
		if d.SessionData != nil {
			obj.Straight = d.SessionData(def.HyperCubeDef)
		}
	}
	hc.Size = engine.Size{Cx: len(hc.DimensionInfo) + len(hc.MeasureInfo), Cy: len(obj.Straight)}
	obj.Layout = engine.ObjectLayout{Info: engine.Info{ID: obj.ID, Type: def.Info.Type}, HyperCube: hc}
	return obj
}

func decodeRects(raw json.RawMessage) ([]engine.Rect, *engine.EngineError) {
	var params []json.RawMessage
	if err := json.Unmarshal(raw, &params); err != nil || len(params) < 2 {
		return nil, &engine.EngineError{Code: -32602, Message: "Invalid params"}
	}
	var rects []engine.Rect
	if err := json.Unmarshal(params[1], &rects); err != nil {
		return nil, &engine.EngineError{Code: -32602, Message: "Invalid params"}
	}
	return rects, nil
}

func sliceMatrix(m [][]engine.Cell, r engine.Rect) [][]engine.Cell {
	lo, hi := clamp(r.Top, r.Height, len(m))
	out := make([][]engine.Cell, 0, hi-lo)
	for _, row := range m[lo:hi] {
		clo, chi := clamp(r.Left, r.Width, len(row))
		out = append(out, row[clo:chi])
	}
	return out
}

func clamp(start, n, size int) (int, int) {
	if start > size {
		start = size
	}
	end := start + n
	if end > size {
		end = size
	}
	return start, end
}

func tooLarge() *engine.EngineError {
	return &engine.EngineError{Code: 7009, Message: "Result too large"}
}

func unknownMethod(method string) *engine.EngineError {
	return &engine.EngineError{Code: -32601, Parameter: method, Message: "Method not found"}
}
