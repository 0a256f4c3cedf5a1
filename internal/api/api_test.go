// Cubegate - REST Gateway for Qlik Sense Hypercube Data
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubegate

package api

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/tomtom215/cubegate/internal/authz"
	"github.com/tomtom215/cubegate/internal/config"
	"github.com/tomtom215/cubegate/internal/engine"
	"github.com/tomtom215/cubegate/internal/engine/enginetest"
	"github.com/tomtom215/cubegate/internal/service"
)

const (
	salesDoc   = "doc-sales"
	reportKey  = "reporting-key"
	adminKey   = "admin-key"
	hrOnlyKey  = "hr-key"
	apiVersion = "/api/v1"
)

func num(v float64) engine.Cell {
	return engine.Cell{Text: strconv.FormatFloat(v, 'f', -1, 64), Num: engine.NumOf(v)}
}

// salesEngine serves one document with a straight table of rows rows.
func salesEngine(rows int) *enginetest.Engine {
	d := enginetest.NewDoc(salesDoc)
	obj := &enginetest.Object{
		ID:   "tbl",
		Type: "table",
		Layout: engine.ObjectLayout{Info: engine.Info{ID: "tbl", Type: "table"}, HyperCube: &engine.HyperCubeLayout{
			Size:          engine.Size{Cx: 2, Cy: rows},
			DimensionInfo: []engine.DimensionInfo{{FallbackTitle: "Region", GroupFieldDefs: []string{"RegionCode"}}},
			MeasureInfo:   []engine.MeasureInfo{{FallbackTitle: "Sales"}},
		}},
	}
	regions := []string{"North", "South"}
	for i := 0; i < rows; i++ {
		obj.Straight = append(obj.Straight, []engine.Cell{{Text: regions[i%2]}, num(float64(i))})
	}
	d.AddObject(obj)
	return enginetest.New(d)
}

func testConfig() *config.Config {
	return &config.Config{
		Extraction: config.ExtractionConfig{
			CellBudget:            10000,
			MaxRows:               10000,
			PerDimensionTimeout:   time.Second,
			PivotTimeout:          5 * time.Second,
			RequestTimeout:        5 * time.Second,
			MaxConcurrentSessions: 2,
		},
		Apps: map[string]config.AppConfig{
			"sales": {
				DocID:        salesDoc,
				DefaultTable: "orders",
				Tables: map[string]config.TableConfig{
					"orders":  {ObjectID: "tbl", Filters: map[string]string{"region": "RegionCode"}},
					"returns": {ObjectID: "tbl"},
				},
			},
			"hr": {
				DocID:  "doc-hr",
				Tables: map[string]config.TableConfig{"staff": {ObjectID: "staff"}},
			},
		},
		APIKeys: []config.APIKeyConfig{
			{Name: "reporting", Key: reportKey, Apps: map[string][]string{"sales": {"orders"}}},
			{Name: "admin", Key: adminKey, Apps: map[string][]string{"*": {"*"}}},
			{Name: "hr", Key: hrOnlyKey, Apps: map[string][]string{"hr": {"*"}}},
		},
	}
}

type fixture struct {
	server  *enginetest.Server
	handler http.Handler
}

type fixtureOptions struct {
	rows         int
	engineOpts   *engine.Options
	breakerState func() string
	probeEngine  bool
	chi          *ChiMiddlewareConfig
}

func newFixture(t *testing.T, fo fixtureOptions) *fixture {
	t.Helper()
	cfg := testConfig()

	srv := enginetest.Serve(t, salesEngine(fo.rows), enginetest.ServeOptions{})
	opts := srv.Options()
	if fo.engineOpts != nil {
		opts = *fo.engineOpts
	}
	conn := engine.NewConnectorWithOptions(opts, rate.Inf, 1, engine.BreakerSettings{})
	svc := service.New(cfg, service.ConnectorOpener(conn), nil)

	enforcer, err := authz.NewEnforcer(cfg.APIKeys, authz.DefaultEnforcerConfig())
	if err != nil {
		t.Fatalf("NewEnforcer: %v", err)
	}
	t.Cleanup(enforcer.Close)
	keys := authz.NewKeyStore(cfg.APIKeys, time.Minute)
	t.Cleanup(keys.Close)

	breakerState := fo.breakerState
	if breakerState == nil {
		breakerState = conn.State
	}
	handler := NewHandler(HandlerOptions{
		Service:      svc,
		Enforcer:     enforcer,
		BreakerState: breakerState,
		ProbeEngine:  fo.probeEngine,
	})
	access := authz.NewMiddleware(keys, enforcer, "", AccessErrorWriter())
	var chiMW *ChiMiddleware
	if fo.chi != nil {
		chiMW = NewChiMiddleware(fo.chi)
	}

	return &fixture{
		server:  srv,
		handler: NewRouter(handler, access, chiMW, "").SetupChi(),
	}
}

func (f *fixture) do(t *testing.T, key, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if key != "" {
		req.Header.Set(authz.DefaultKeyHeader, key)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func assertError(t *testing.T, rec *httptest.ResponseRecorder, status int, kind string) ErrorResponse {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status = %d, want %d; body %s", rec.Code, status, rec.Body.String())
	}
	var resp ErrorResponse
	decode(t, rec, &resp)
	if resp.Error != kind || resp.StatusCode != status {
		t.Errorf("error = %s/%d, want %s/%d", resp.Error, resp.StatusCode, kind, status)
	}
	if resp.RequestID == "" || resp.RequestID != rec.Header().Get("X-Request-ID") {
		t.Errorf("request_id = %q, header %q", resp.RequestID, rec.Header().Get("X-Request-ID"))
	}
	return resp
}
