// Cubegate - REST Gateway for Qlik Sense Hypercube Data
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubegate

package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/tomtom215/cubegate/internal/apperr"
	"github.com/tomtom215/cubegate/internal/engine"
)

// Bookmark is a saved selection state of a document.
type Bookmark struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// ObjectSummary describes a visual object.
type ObjectSummary struct {
	ID         string   `json:"id"`
	Type       string   `json:"type"`
	Title      string   `json:"title,omitempty"`
	Mode       string   `json:"mode,omitempty"`
	Dimensions []string `json:"dimensions"`
	Fields     []string `json:"fields"`
	Measures   []string `json:"measures"`
	Columns    int      `json:"columns"`
	Rows       int      `json:"rows"`
	HyperCube  bool     `json:"hypercube"`
}

// EngineVersion opens a session and returns the engine's version.
func (s *DataService) EngineVersion(ctx context.Context) (string, error) {
	var version string
	err := s.withSession(ctx, func(sess Session) error {
		v, err := engine.NewGlobal(sess).EngineVersion(ctx)
		version = v
		return err
	})
	return version, err
}

// DocList returns the documents the engine user can see.
func (s *DataService) DocList(ctx context.Context) ([]engine.DocListEntry, error) {
	var docs []engine.DocListEntry
	err := s.withSession(ctx, func(sess Session) error {
		list, err := engine.NewGlobal(sess).GetDocList(ctx)
		docs = list
		return err
	})
	return docs, err
}

// Bookmarks lists the bookmarks of app's document, sorted by title.
func (s *DataService) Bookmarks(ctx context.Context, app string) ([]Bookmark, error) {
	a, ok := s.cfg.App(app)
	if !ok {
		return nil, apperr.NotFound("app", app)
	}

	var out []Bookmark
	err := s.withDoc(ctx, a.DocID, func(_ Session, doc *engine.Doc) error {
		infos, err := doc.GetAllInfos(ctx)
		if err != nil {
			return fmt.Errorf("list infos: %w", err)
		}
		for _, info := range infos {
			if info.Type != "bookmark" {
				continue
			}
			bm, err := doc.GetBookmark(ctx, info.ID)
			if err != nil {
				return fmt.Errorf("get bookmark %s: %w", info.ID, err)
			}
			layout, err := bm.GetLayout(ctx)
			if err != nil {
				return fmt.Errorf("bookmark layout %s: %w", info.ID, err)
			}
			out = append(out, Bookmark{ID: info.ID, Title: layout.Meta.Title, Description: layout.Meta.Description})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}

// Inspect summarises objectID in app's document.
func (s *DataService) Inspect(ctx context.Context, app, objectID string) (*ObjectSummary, error) {
	a, ok := s.cfg.App(app)
	if !ok {
		return nil, apperr.NotFound("app", app)
	}

	var sum *ObjectSummary
	err := s.withDoc(ctx, a.DocID, func(_ Session, doc *engine.Doc) error {
		obj, err := doc.GetObject(ctx, objectID)
		if err != nil {
			return err
		}
		layout, err := obj.GetLayout(ctx)
		if err != nil {
			return err
		}
		sum = &ObjectSummary{
			ID:         objectID,
			Type:       layout.Info.Type,
			Title:      layout.Title,
			Dimensions: []string{},
			Fields:     []string{},
			Measures:   []string{},
		}
		if sum.Type == "" {
			sum.Type = obj.Type()
		}
		if layout.Meta.Title != "" && sum.Title == "" {
			sum.Title = layout.Meta.Title
		}
		hc := layout.HyperCube
		if hc == nil {
			return nil
		}
		sum.HyperCube = true
		sum.Mode = hc.Mode
		sum.Columns = hc.Size.Cx
		sum.Rows = hc.Size.Cy
		for _, d := range hc.DimensionInfo {
			sum.Dimensions = append(sum.Dimensions, d.FallbackTitle)
			field := ""
			if len(d.GroupFieldDefs) > 0 {
				field = d.GroupFieldDefs[0]
			}
			sum.Fields = append(sum.Fields, field)
		}
		for _, m := range hc.MeasureInfo {
			sum.Measures = append(sum.Measures, m.FallbackTitle)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sum, nil
}
