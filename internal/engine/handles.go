// Cubegate - REST Gateway for Qlik Sense Hypercube Data
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubegate

package engine

import (
	"context"
	"errors"
	"fmt"
)

// Caller performs one JSON-RPC call against a handle. *Session implements it.
type Caller interface {
	Call(ctx context.Context, handle int, method string, params, result interface{}) error
}

// GlobalHandle addresses the engine itself.
const GlobalHandle = -1

// ErrBookmarkNotApplied is returned when the engine reports that a bookmark
// could not be applied.
var ErrBookmarkNotApplied = errors.New("bookmark not applied")

// Global is the engine-wide API.
type Global struct {
	c Caller
}

// NewGlobal returns the global API over c.
func NewGlobal(c Caller) *Global {
	return &Global{c: c}
}

// OpenDoc opens a document. When the engine reports that the document is
// already open in this session, the active document is returned instead.
func (g *Global) OpenDoc(ctx context.Context, docID string, noData bool) (*Doc, error) {
	params := []interface{}{docID}
	if noData {
		params = []interface{}{docID, "", "", "", true}
	}

	var res struct {
		Return handleReturn `json:"qReturn"`
	}
	err := g.c.Call(ctx, GlobalHandle, "OpenDoc", params, &res)
	if err == nil {
		return &Doc{c: g.c, handle: res.Return.Handle, id: docID}, nil
	}
	if KindOf(err) != KindAlreadyOpen {
		return nil, err
	}

	active, aerr := g.GetActiveDoc(ctx)
	if aerr != nil {
		return nil, fmt.Errorf("recover already open document %s: %w", docID, aerr)
	}
	if active.id != "" && active.id != docID {
		return nil, fmt.Errorf("session already has document %s open, wanted %s: %w", active.id, docID, err)
	}
	active.id = docID
	return active, nil
}

// GetActiveDoc returns the document open in this session.
func (g *Global) GetActiveDoc(ctx context.Context) (*Doc, error) {
	var res struct {
		Return handleReturn `json:"qReturn"`
	}
	if err := g.c.Call(ctx, GlobalHandle, "GetActiveDoc", nil, &res); err != nil {
		return nil, err
	}
	return &Doc{c: g.c, handle: res.Return.Handle, id: res.Return.GenericID}, nil
}

// GetDocList lists the documents visible to the engine user.
func (g *Global) GetDocList(ctx context.Context) ([]DocListEntry, error) {
	var res struct {
		DocList []DocListEntry `json:"qDocList"`
	}
	if err := g.c.Call(ctx, GlobalHandle, "GetDocList", nil, &res); err != nil {
		return nil, err
	}
	return res.DocList, nil
}

// EngineVersion returns the engine component version.
func (g *Global) EngineVersion(ctx context.Context) (string, error) {
	var res struct {
		Version struct {
			ComponentVersion string `json:"qComponentVersion"`
		} `json:"qVersion"`
	}
	if err := g.c.Call(ctx, GlobalHandle, "EngineVersion", nil, &res); err != nil {
		return "", err
	}
	return res.Version.ComponentVersion, nil
}

// Doc is an open document.
type Doc struct {
	c      Caller
	handle int
	id     string
}

// Handle returns the raw document handle.
func (d *Doc) Handle() int { return d.handle }

// ID returns the document identifier.
func (d *Doc) ID() string { return d.id }

// GetObject returns a handle to an existing object of the document.
func (d *Doc) GetObject(ctx context.Context, objectID string) (*Object, error) {
	var res struct {
		Return handleReturn `json:"qReturn"`
	}
	if err := d.c.Call(ctx, d.handle, "GetObject", []interface{}{objectID}, &res); err != nil {
		return nil, err
	}
	// A missing object comes back as a null/zero handle rather than an error.
	if res.Return.Handle == 0 && res.Return.Type == "" {
		return nil, &EngineError{Method: "GetObject", Code: codeGenericNotFound, Parameter: objectID, Message: "object not found"}
	}
	return &Object{c: d.c, handle: res.Return.Handle, id: objectID, typ: res.Return.Type}, nil
}

// CreateSessionObject creates a transient object that lives until it is
// destroyed or the session ends.
func (d *Doc) CreateSessionObject(ctx context.Context, def SessionObjectDef) (*Object, error) {
	var res struct {
		Return handleReturn `json:"qReturn"`
	}
	if err := d.c.Call(ctx, d.handle, "CreateSessionObject", []interface{}{def}, &res); err != nil {
		return nil, err
	}
	return &Object{c: d.c, handle: res.Return.Handle, id: res.Return.GenericID, typ: res.Return.Type}, nil
}

// DestroySessionObject removes a session object created by CreateSessionObject.
func (d *Doc) DestroySessionObject(ctx context.Context, objectID string) error {
	var res struct {
		Success bool `json:"qSuccess"`
	}
	if err := d.c.Call(ctx, d.handle, "DestroySessionObject", []interface{}{objectID}, &res); err != nil {
		return err
	}
	if !res.Success {
		return fmt.Errorf("destroy session object %s: engine reported failure", objectID)
	}
	return nil
}

// ApplyBookmark applies a saved selection state to the document.
func (d *Doc) ApplyBookmark(ctx context.Context, bookmarkID string) error {
	var res struct {
		Success bool `json:"qSuccess"`
	}
	if err := d.c.Call(ctx, d.handle, "ApplyBookmark", []interface{}{bookmarkID}, &res); err != nil {
		return err
	}
	if !res.Success {
		return fmt.Errorf("%s: %w", bookmarkID, ErrBookmarkNotApplied)
	}
	return nil
}

// ClearAll clears every selection, including locked ones when lockedAlso is set.
func (d *Doc) ClearAll(ctx context.Context, lockedAlso bool) error {
	return d.c.Call(ctx, d.handle, "ClearAll", []interface{}{lockedAlso}, nil)
}

// GetField returns a handle to a field of the data model.
func (d *Doc) GetField(ctx context.Context, name string) (*Field, error) {
	var res struct {
		Return handleReturn `json:"qReturn"`
	}
	if err := d.c.Call(ctx, d.handle, "GetField", []interface{}{name}, &res); err != nil {
		return nil, err
	}
	return &Field{c: d.c, handle: res.Return.Handle, name: name}, nil
}

// GetAllInfos lists every object of the document.
func (d *Doc) GetAllInfos(ctx context.Context) ([]Info, error) {
	var res struct {
		Infos []Info `json:"qInfos"`
	}
	if err := d.c.Call(ctx, d.handle, "GetAllInfos", nil, &res); err != nil {
		return nil, err
	}
	return res.Infos, nil
}

// GetBookmark returns a handle to a bookmark.
func (d *Doc) GetBookmark(ctx context.Context, bookmarkID string) (*GenericBookmark, error) {
	var res struct {
		Return handleReturn `json:"qReturn"`
	}
	if err := d.c.Call(ctx, d.handle, "GetBookmark", []interface{}{bookmarkID}, &res); err != nil {
		return nil, err
	}
	return &GenericBookmark{c: d.c, handle: res.Return.Handle, id: bookmarkID}, nil
}

// Object is a generic object: a chart, table, pivot or session hypercube.
type Object struct {
	c      Caller
	handle int
	id     string
	typ    string
}

// Handle returns the raw object handle.
func (o *Object) Handle() int { return o.handle }

// ID returns the object identifier (qGenericId for session objects).
func (o *Object) ID() string { return o.id }

// Type returns the engine's object class, for example "GenericObject".
func (o *Object) Type() string { return o.typ }

// GetLayout evaluates the object and returns its layout.
func (o *Object) GetLayout(ctx context.Context) (*ObjectLayout, error) {
	var res struct {
		Layout ObjectLayout `json:"qLayout"`
	}
	if err := o.c.Call(ctx, o.handle, "GetLayout", nil, &res); err != nil {
		return nil, err
	}
	return &res.Layout, nil
}

// GetProperties returns the object's stored definition.
func (o *Object) GetProperties(ctx context.Context) (*ObjectProperties, error) {
	var res struct {
		Prop ObjectProperties `json:"qProp"`
	}
	if err := o.c.Call(ctx, o.handle, "GetProperties", nil, &res); err != nil {
		return nil, err
	}
	return &res.Prop, nil
}

// GetInfo returns the object's id and visualization type.
func (o *Object) GetInfo(ctx context.Context) (Info, error) {
	var res struct {
		Info Info `json:"qInfo"`
	}
	if err := o.c.Call(ctx, o.handle, "GetInfo", nil, &res); err != nil {
		return Info{}, err
	}
	return res.Info, nil
}

// GetHyperCubeData fetches straight data pages from the hypercube at path.
func (o *Object) GetHyperCubeData(ctx context.Context, path string, pages ...Rect) ([]DataPage, error) {
	var res struct {
		DataPages []DataPage `json:"qDataPages"`
	}
	if err := o.c.Call(ctx, o.handle, "GetHyperCubeData", []interface{}{path, pages}, &res); err != nil {
		return nil, err
	}
	return res.DataPages, nil
}

// GetHyperCubePivotData fetches pivot data pages from the hypercube at path.
func (o *Object) GetHyperCubePivotData(ctx context.Context, path string, pages ...Rect) ([]PivotDataPage, error) {
	var res struct {
		DataPages []PivotDataPage `json:"qDataPages"`
	}
	if err := o.c.Call(ctx, o.handle, "GetHyperCubePivotData", []interface{}{path, pages}, &res); err != nil {
		return nil, err
	}
	return res.DataPages, nil
}

// Field is a data model field.
type Field struct {
	c      Caller
	handle int
	name   string
}

// Name returns the field name.
func (f *Field) Name() string { return f.name }

// SelectValues selects values in the field. With toggle false the values
// replace the current selection; softLock overrides locked selections.
// It reports whether the engine accepted the selection.
func (f *Field) SelectValues(ctx context.Context, values []FieldValue, toggle, softLock bool) (bool, error) {
	var res struct {
		Return bool `json:"qReturn"`
	}
	if err := f.c.Call(ctx, f.handle, "SelectValues", []interface{}{values, toggle, softLock}, &res); err != nil {
		return false, err
	}
	return res.Return, nil
}

// GenericBookmark is a bookmark object.
type GenericBookmark struct {
	c      Caller
	handle int
	id     string
}

// ID returns the bookmark identifier.
func (b *GenericBookmark) ID() string { return b.id }

// GetLayout returns the bookmark layout, including its title.
func (b *GenericBookmark) GetLayout(ctx context.Context) (*ObjectLayout, error) {
	var res struct {
		Layout ObjectLayout `json:"qLayout"`
	}
	if err := b.c.Call(ctx, b.handle, "GetLayout", nil, &res); err != nil {
		return nil, err
	}
	return &res.Layout, nil
}
