// Cubegate - REST Gateway for Qlik Sense Hypercube Data
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubegate

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/tomtom215/cubegate/internal/apperr"
	"github.com/tomtom215/cubegate/internal/config"
	"github.com/tomtom215/cubegate/internal/engine"
	"github.com/tomtom215/cubegate/internal/extract"
	"github.com/tomtom215/cubegate/internal/service"
)

type fakeBackend struct {
	lastQuery  service.Query
	lastTarget service.Target
}

func (f *fakeBackend) EngineVersion(context.Context) (string, error) { return "14.0.0", nil }

func (f *fakeBackend) DocList(context.Context) ([]engine.DocListEntry, error) {
	return []engine.DocListEntry{{DocName: "Sales.qvf", DocID: "doc-sales"}}, nil
}

func (f *fakeBackend) Bookmarks(_ context.Context, app string) ([]service.Bookmark, error) {
	if app != "sales" {
		return nil, apperr.NotFound("app", app)
	}
	return []service.Bookmark{{ID: "bm1", Title: "Current year"}}, nil
}

func (f *fakeBackend) Inspect(_ context.Context, _, objectID string) (*service.ObjectSummary, error) {
	return &service.ObjectSummary{
		ID: objectID, Type: "table", HyperCube: true,
		Dimensions: []string{"Region"}, Measures: []string{"Sum(Sales)"},
		Rows: 250, Columns: 2,
	}, nil
}

func (f *fakeBackend) Resolve(app, table string) (service.Target, error) {
	if table == "" {
		table = "orders"
	}
	return service.Target{AppName: app, TableName: table}, nil
}

func (f *fakeBackend) Fetch(_ context.Context, target service.Target, q service.Query) (*service.Page, error) {
	f.lastTarget, f.lastQuery = target, q
	return &service.Page{
		ObjectID:  "obj1",
		AppName:   target.AppName,
		TableName: target.TableName,
		Data: []extract.Row{
			{{Key: "Region", Value: "North"}, {Key: "Sales", Value: 42.0}},
			{{Key: "Region", Value: "South"}, {Key: "Sales", Value: nil}},
		},
		Pagination: extract.NewPagination(1, 2, 2),
		Strategy:   extract.StrategyDirect,
	}, nil
}

func execute(t *testing.T, b backend, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd(&cli{backend: b})
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestCommands(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantOut []string
		wantErr bool
	}{
		{"version", []string{"version"}, []string{"engine  14.0.0"}, false},
		{"version json", []string{"version", "-o", "json"}, []string{`"engine": "14.0.0"`}, false},
		{"docs", []string{"docs"}, []string{"Sales.qvf", "doc-sales"}, false},
		{"bookmarks", []string{"bookmarks", "sales"}, []string{"Current year", "bm1"}, false},
		{"bookmarks unknown app", []string{"bookmarks", "hr"}, nil, true},
		{"bookmarks needs app", []string{"bookmarks"}, nil, true},
		{"inspect", []string{"inspect", "sales", "obj1"}, []string{"Sum(Sales)", "250 x 2"}, false},
		{"extract", []string{"extract", "sales"}, []string{"orders", "North", "NULL", "page 1/1, 2 rows"}, false},
		{"extract json", []string{"extract", "sales", "returns", "-o", "json"}, []string{`"table_name": "returns"`}, false},
		{"extract bad page", []string{"extract", "sales", "--page", "0"}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, &fakeBackend{}, tt.args...)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Execute() error = %v, wantErr %v", err, tt.wantErr)
			}
			for _, want := range tt.wantOut {
				if !strings.Contains(out, want) {
					t.Errorf("output should contain %q, got:\n%s", want, out)
				}
			}
		})
	}
}

func TestExtractFlags(t *testing.T) {
	b := &fakeBackend{}
	_, err := execute(t, b, "extract", "sales", "orders",
		"--page", "3", "--page-size", "20", "--filter-field", "Region", "--filter-value", "North",
		"--sort-field", "Sales", "--sort-order", "desc", "--yearmonth", "2024-01,2024-02")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	q := b.lastQuery
	if q.Page != 3 || q.PageSize != 20 || q.FilterField != "Region" || q.FilterValue != "North" ||
		q.SortField != "Sales" || q.SortOrder != "desc" {
		t.Errorf("query = %+v", q)
	}
	if len(q.YearMonths) != 2 {
		t.Errorf("YearMonths = %v", q.YearMonths)
	}
	if b.lastTarget.TableName != "orders" {
		t.Errorf("table = %q", b.lastTarget.TableName)
	}
}

func TestHashKey(t *testing.T) {
	out, err := execute(t, nil, "hash-key", "s3cret")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	hash := strings.TrimSpace(out)
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte("s3cret")); err != nil {
		t.Errorf("hash does not verify: %v", err)
	}
}

func TestFlagsOverrideConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := "engine:\n  host: from-file\n  port: 4747\n"
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(config.ConfigPathEnvVar, "")

	var got *config.Config
	c := &cli{connect: func(cfg *config.Config) (backend, error) {
		got = cfg
		return &fakeBackend{}, nil
	}}
	cmd := newRootCmd(c)
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetArgs([]string{"docs", "--config", path, "--engine.host", "from-flag", "--engine.user-id", "svc"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if got == nil {
		t.Fatal("connect was not called")
	}
	if got.Engine.Host != "from-flag" {
		t.Errorf("Engine.Host = %q, want from-flag", got.Engine.Host)
	}
	if got.Engine.Port != 4747 {
		t.Errorf("Engine.Port = %d, want 4747 from file", got.Engine.Port)
	}
	if got.Engine.UserID != "svc" {
		t.Errorf("Engine.UserID = %q", got.Engine.UserID)
	}
}
