// Cubegate - REST Gateway for Qlik Sense Hypercube Data
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubegate

package service

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/tomtom215/cubegate/internal/apperr"
	"github.com/tomtom215/cubegate/internal/cache"
	"github.com/tomtom215/cubegate/internal/config"
	"github.com/tomtom215/cubegate/internal/engine"
	"github.com/tomtom215/cubegate/internal/extract"
	"github.com/tomtom215/cubegate/internal/logging"
)

// Page is one page of a table.
type Page struct {
	ObjectID   string             `json:"object_id"`
	AppID      string             `json:"app_id"`
	AppName    string             `json:"app_name"`
	TableName  string             `json:"table_name"`
	Data       []extract.Row      `json:"data"`
	Pagination extract.Pagination `json:"pagination"`
	Strategy   extract.Strategy   `json:"-"`
}

// pageEntry is the cached form of a Page. Rows are stored as column
// lists so that key order survives the round trip.
type pageEntry struct {
	ObjectID   string             `json:"object_id"`
	AppID      string             `json:"app_id"`
	AppName    string             `json:"app_name"`
	TableName  string             `json:"table_name"`
	Rows       [][]extract.Column `json:"rows"`
	Pagination extract.Pagination `json:"pagination"`
	Strategy   extract.Strategy   `json:"strategy"`
}

func (p *Page) entry() pageEntry {
	rows := make([][]extract.Column, len(p.Data))
	for i, r := range p.Data {
		rows[i] = []extract.Column(r)
	}
	return pageEntry{
		ObjectID:   p.ObjectID,
		AppID:      p.AppID,
		AppName:    p.AppName,
		TableName:  p.TableName,
		Rows:       rows,
		Pagination: p.Pagination,
		Strategy:   p.Strategy,
	}
}

func (e pageEntry) page() *Page {
	rows := make([]extract.Row, len(e.Rows))
	for i, r := range e.Rows {
		rows[i] = extract.Row(r)
	}
	return &Page{
		ObjectID:   e.ObjectID,
		AppID:      e.AppID,
		AppName:    e.AppName,
		TableName:  e.TableName,
		Data:       rows,
		Pagination: e.Pagination,
		Strategy:   e.Strategy,
	}
}

// Target is a resolved (app, table) pair.
type Target struct {
	AppName   string
	TableName string
	App       config.AppConfig
	Table     config.TableConfig
}

// DataService serves table pages.
type DataService struct {
	cfg       *config.Config
	open      OpenFunc
	extractor *extract.Extractor
	sem       *semaphore.Weighted
	group     singleflight.Group
	cache     *cache.Store
	timeout   time.Duration
}

// New returns a DataService. store may be nil to disable page caching.
func New(cfg *config.Config, open OpenFunc, store *cache.Store) *DataService {
	sessions := cfg.Extraction.MaxConcurrentSessions
	if sessions < 1 {
		sessions = 1
	}
	timeout := cfg.Extraction.RequestTimeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &DataService{
		cfg:       cfg,
		open:      open,
		extractor: extract.New(extract.OptionsFromConfig(cfg.Extraction)),
		sem:       semaphore.NewWeighted(int64(sessions)),
		cache:     store,
		timeout:   timeout,
	}
}

// Apps returns the configured app names.
func (s *DataService) Apps() []string {
	return s.cfg.AppNames()
}

// Tables returns the table names of app.
func (s *DataService) Tables(app string) ([]string, error) {
	a, ok := s.cfg.App(app)
	if !ok {
		return nil, apperr.NotFound("app", app)
	}
	return a.TableNames(), nil
}

// Resolve maps logical names onto configuration. An empty table selects
// the app's default table.
func (s *DataService) Resolve(app, table string) (Target, error) {
	a, ok := s.cfg.App(app)
	if !ok {
		return Target{}, apperr.NotFound("app", app)
	}
	if table == "" {
		table = a.DefaultTable
		if table == "" {
			return Target{}, apperr.New(apperr.KindNotFound, "app '%s' has no default table", app).
				WithDetail("resource", "table").
				WithDetail("tables", a.TableNames())
		}
	}
	t, ok := a.Tables[table]
	if !ok {
		return Target{}, apperr.NotFound("table", table).WithDetail("app", app)
	}
	return Target{AppName: app, TableName: table, App: a, Table: t}, nil
}

// Fetch returns one page of a table. The caller waits at most the
// configured request timeout.
func (s *DataService) Fetch(ctx context.Context, target Target, q Query) (*Page, error) {
	q = q.normalized()
	req := buildRequest(target.Table, q)
	key := cache.GenerateKey("page", struct {
		App   string
		Table string
		Query Query
	}{target.AppName, target.TableName, q})

	log := logging.Ctx(ctx).With().
		Str("app", target.AppName).
		Str("table", target.TableName).
		Str("object_id", req.ObjectID).
		Logger()

	if s.cache != nil {
		var entry pageEntry
		if s.cache.GetJSON(key, &entry) {
			log.Debug().Msg("Page served from cache")
			return entry.page(), nil
		}
	}

	// The worker outlives the caller and keeps its log context.
	base := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (v interface{}, err error) {
		// singleflight re-panics on its own goroutine, out of reach of the
		// HTTP recoverer.
		defer func() {
			if p := recover(); p != nil {
				log.Error().
					Str("panic", fmt.Sprint(p)).
					Str("stack", string(debug.Stack())).
					Msg("Extraction worker panicked")
				v, err = nil, apperr.New(apperr.KindInternal, "extraction failed unexpectedly")
			}
		}()
		wctx, cancel := context.WithTimeout(base, s.timeout)
		defer cancel()
		return s.run(wctx, key, target, req)
	})

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Page), nil
	case <-timer.C:
		log.Warn().Dur("timeout", s.timeout).Msg("Request timed out, extraction continues in background")
		return nil, apperr.New(apperr.KindTimeout, "extraction exceeded %s", s.timeout).
			WithDetail("object_id", req.ObjectID)
	case <-ctx.Done():
		return nil, classify(ctx.Err())
	}
}

// run performs one extraction on a fresh session.
func (s *DataService) run(ctx context.Context, key string, target Target, req extract.Request) (*Page, error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, apperr.Wrap(apperr.KindTimeout, err, "no engine session available")
	}
	defer s.sem.Release(1)

	var page *Page
	err := s.withDoc(ctx, target.App.DocID, func(sess Session, doc *engine.Doc) error {
		res, err := s.extractor.Extract(ctx, sess, doc, req)
		if err != nil {
			return err
		}
		page = &Page{
			ObjectID:   req.ObjectID,
			AppID:      target.App.DocID,
			AppName:    target.AppName,
			TableName:  target.TableName,
			Data:       res.Rows,
			Pagination: res.Pagination,
			Strategy:   res.Strategy,
		}
		return nil
	})
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).
			Str("app", target.AppName).
			Str("object_id", req.ObjectID).
			Msg("Extraction failed")
		return nil, err
	}

	if s.cache != nil {
		if cerr := s.cache.SetJSON(key, page.entry()); cerr != nil {
			logging.Ctx(ctx).Warn().Err(cerr).Msg("Failed to cache page")
		}
	}
	return page, nil
}

// withDoc opens a session and the document docID, calls fn and closes the
// session. Errors are classified.
func (s *DataService) withDoc(ctx context.Context, docID string, fn func(Session, *engine.Doc) error) error {
	return s.withSession(ctx, func(sess Session) error {
		doc, err := engine.NewGlobal(sess).OpenDoc(ctx, docID, s.cfg.Engine.NoData)
		if err != nil {
			return fmt.Errorf("open doc %s: %w", docID, err)
		}
		return fn(sess, doc)
	})
}

func (s *DataService) withSession(ctx context.Context, fn func(Session) error) error {
	sess, err := s.open(ctx)
	if err != nil {
		return classify(err)
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			logging.Ctx(ctx).Debug().Err(cerr).Msg("Engine session close failed")
		}
	}()
	return classify(fn(sess))
}
