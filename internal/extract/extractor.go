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

	"github.com/tomtom215/cubegate/internal/config"
	"github.com/tomtom215/cubegate/internal/engine"
	"github.com/tomtom215/cubegate/internal/logging"
	"github.com/tomtom215/cubegate/internal/metrics"
)

// cleanupTimeout bounds ClearAll and DestroySessionObject after the
// request context is done.
const cleanupTimeout = 10 * time.Second

// Strategy names the read path that produced a result.
type Strategy string

const (
	StrategyDirect   Strategy = "direct"
	StrategyPivot    Strategy = "pivot"
	StrategyStraight Strategy = "straight"
)

// Conn is the engine session an extraction runs on.
type Conn interface {
	engine.Caller
	ReceiveTimeout() time.Duration
	SetReceiveTimeout(d time.Duration) (restore func())
}

// Options bound data reads.
type Options struct {
	CellBudget          int
	MaxRows             int
	PerDimensionTimeout time.Duration
	PivotTimeout        time.Duration
}

// OptionsFromConfig converts extraction configuration.
func OptionsFromConfig(cfg config.ExtractionConfig) Options {
	return Options{
		CellBudget:          cfg.CellBudget,
		MaxRows:             cfg.MaxRows,
		PerDimensionTimeout: cfg.PerDimensionTimeout,
		PivotTimeout:        cfg.PivotTimeout,
	}
}

// Selection selects values in an engine field.
type Selection struct {
	Field  string
	Values []string
}

// Request describes one page read.
type Request struct {
	ObjectID   string
	BookmarkID string
	Page       int
	PageSize   int
	Filters    []Condition
	Selections []Selection
	Sort       *Sort
}

// Result is one page of flat rows.
type Result struct {
	Rows       []Row
	Pagination Pagination
	Strategy   Strategy
	Schema     Schema
}

// Extractor reads object hypercubes.
type Extractor struct {
	opts Options
}

// New returns an Extractor. Zero options take the gateway defaults.
func New(opts Options) *Extractor {
	if opts.CellBudget <= 0 {
		opts.CellBudget = 10000
	}
	if opts.MaxRows <= 0 {
		opts.MaxRows = 10000
	}
	if opts.PerDimensionTimeout <= 0 {
		opts.PerDimensionTimeout = 20 * time.Second
	}
	if opts.PivotTimeout <= 0 {
		opts.PivotTimeout = 2 * time.Minute
	}
	return &Extractor{opts: opts}
}

// plan is what a reader needs to know about the requested page.
type plan struct {
	page, size int
	all        bool
	conds      []Condition
	sort       *Sort
}

// rowRange returns the rows a reader must fetch out of total.
func (p plan) rowRange(total int) (int, int) {
	if p.all {
		return 0, total
	}
	start, end := pageBounds(p.page, p.size, total)
	return start, end - start
}

// read is the outcome of one strategy.
type read struct {
	rows   []Row
	total  int
	schema Schema
}

// Extract reads one page of an object. It applies the request's bookmark
// and selections to doc and clears them again before returning. The
// caller owns conn and closes it.
func (x *Extractor) Extract(ctx context.Context, conn Conn, doc *engine.Doc, req Request) (res *Result, err error) {
	if req.Page < 1 || req.PageSize < 1 {
		return nil, fmt.Errorf("invalid page %d / page size %d", req.Page, req.PageSize)
	}
	log := logging.Ctx(ctx).With().Str("object_id", req.ObjectID).Logger()
	start := time.Now()
	strategy := Strategy("none")
	defer func() {
		rows := 0
		if res != nil {
			rows = len(res.Rows)
		}
		metrics.RecordExtraction(string(strategy), rows, time.Since(start), err)
	}()

	stateApplied := false
	defer func() {
		if !stateApplied {
			return
		}
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
		defer cancel()
		if cerr := doc.ClearAll(cctx, false); cerr != nil {
			log.Warn().Err(cerr).Msg("Failed to clear selections after extraction")
		}
	}()

	conds := append([]Condition(nil), req.Filters...)
	if req.BookmarkID != "" {
		stateApplied = true
		if err := doc.ApplyBookmark(ctx, req.BookmarkID); err != nil {
			return nil, fmt.Errorf("apply bookmark %s: %w", req.BookmarkID, err)
		}
	}
	for _, sel := range req.Selections {
		if req.BookmarkID != "" {
			conds = append(conds, Condition{Key: sel.Field, Values: sel.Values})
			continue
		}
		stateApplied = true
		if perr := pushSelection(ctx, doc, sel); perr != nil {
			if engine.IsTransportError(perr) {
				return nil, perr
			}
			log.Warn().Err(perr).Str("field", sel.Field).Msg("Selection not applied in engine, filtering rows instead")
			conds = append(conds, Condition{Key: sel.Field, Values: sel.Values})
		}
	}

	obj, err := doc.GetObject(ctx, req.ObjectID)
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", req.ObjectID, err)
	}
	layout, err := obj.GetLayout(ctx)
	if err != nil {
		return nil, fmt.Errorf("get layout of %s: %w", req.ObjectID, err)
	}
	hc := layout.HyperCube
	if hc == nil {
		return nil, &Error{ObjectID: req.ObjectID, Reason: "unsupported object", Err: ErrNoHyperCube}
	}

	p := plan{
		page:  req.Page,
		size:  req.PageSize,
		all:   len(conds) > 0 || req.Sort != nil,
		conds: conds,
		sort:  req.Sort,
	}

	dims := len(hc.DimensionInfo)
	collapsed := hc.Size.Cx < dims && dims > 0
	emptyWithDims := hc.Size.Cy == 0 && dims > 0

	var r read
	switch {
	case collapsed || emptyWithDims:
		strategy = StrategyPivot
		var perr error
		var props *engine.ObjectProperties
		r, props, perr = x.readPivot(ctx, obj, hc, p)
		if perr == nil && len(r.rows) > 0 && coverage(r.rows, r.schema) >= dims {
			break
		}
		if perr != nil && !recoverable(ctx, perr) {
			return nil, perr
		}

		reason := "coverage"
		if perr != nil {
			reason = "error"
		}
		metrics.ExtractionFallbacks.WithLabelValues(reason).Inc()
		log.Info().Err(perr).Str("reason", reason).Int("dimensions", dims).Int("covered", coverage(r.rows, r.schema)).
			Msg("Pivot read insufficient, falling back to straight table")

		strategy = StrategyStraight
		var serr error
		r, serr = x.readStraight(ctx, conn, doc, obj, props, hc, p)
		if serr != nil {
			if !recoverable(ctx, serr) {
				return nil, serr
			}
			return nil, &Error{ObjectID: req.ObjectID, Reason: "pivot read and straight fallback both failed", Err: errors.Join(perr, serr)}
		}
	default:
		strategy = StrategyDirect
		r, err = x.readDirect(ctx, obj, hc, p)
		if err != nil {
			return nil, err
		}
	}

	return finish(r, p, strategy), nil
}

// finish filters, sorts and paginates rows as the plan requires.
func finish(r read, p plan, strategy Strategy) *Result {
	rows := r.rows
	total := r.total
	if p.all {
		rows = Filter(rows, NewMatcher(r.schema, p.conds))
		if p.sort != nil {
			SortRows(rows, r.schema, *p.sort)
		}
		total = len(rows)
		rows = Paginate(rows, p.page, p.size)
	}
	if rows == nil {
		rows = []Row{}
	}
	return &Result{
		Rows:       rows,
		Pagination: NewPagination(p.page, p.size, total),
		Strategy:   strategy,
		Schema:     r.schema,
	}
}

func pushSelection(ctx context.Context, doc *engine.Doc, sel Selection) error {
	field, err := doc.GetField(ctx, sel.Field)
	if err != nil {
		return err
	}
	values := make([]engine.FieldValue, 0, len(sel.Values))
	for _, v := range sel.Values {
		values = append(values, engine.FieldValue{Text: v})
	}
	ok, err := field.SelectValues(ctx, values, false, true)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("engine rejected selection on %s", sel.Field)
	}
	return nil
}

// recoverable reports whether another strategy may run after err. Once
// the socket failed or the caller gave up nothing else can be read.
func recoverable(ctx context.Context, err error) bool {
	var te *TimeoutError
	switch {
	case ctx.Err() != nil:
		return false
	case errors.As(err, &te):
		return false
	case engine.IsTransportError(err):
		return false
	}
	return true
}
