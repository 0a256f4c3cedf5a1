// Cubegate - REST Gateway for Qlik Sense Hypercube Data
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubegate

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/cubegate/internal/apperr"
	"github.com/tomtom215/cubegate/internal/authz"
	"github.com/tomtom215/cubegate/internal/logging"
)

// extractionStrategyHeader reports which extraction path served a page.
const extractionStrategyHeader = "X-Extraction-Strategy"

// AppInfo describes one app visible to the caller.
type AppInfo struct {
	Name         string   `json:"name"`
	DefaultTable string   `json:"default_table,omitempty"`
	Tables       []string `json:"tables"`
}

// AppsResponse is the body of GET /apps.
type AppsResponse struct {
	Apps []AppInfo `json:"apps"`
}

// TablesResponse is the body of GET /apps/{app}/tables.
type TablesResponse struct {
	App          string   `json:"app"`
	DefaultTable string   `json:"default_table,omitempty"`
	Tables       []string `json:"tables"`
}

// subject returns the authenticated key name.
func subject(r *http.Request) (string, error) {
	name, ok := authz.SubjectFromContext(r.Context())
	if !ok {
		return "", apperr.New(apperr.KindAuthentication, "no authenticated API key")
	}
	return name, nil
}

// Apps lists the apps, and their tables, the caller's key may read.
func (h *Handler) Apps(w http.ResponseWriter, r *http.Request) {
	sub, err := subject(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	visible, err := h.enforcer.VisibleApps(r.Context(), sub, h.svc.Apps())
	if err != nil {
		writeError(w, r, apperr.Wrap(apperr.KindInternal, err, "authorization failed"))
		return
	}

	resp := AppsResponse{Apps: make([]AppInfo, 0, len(visible))}
	for _, app := range visible {
		info, err := h.appInfo(r, sub, app)
		if err != nil {
			writeError(w, r, err)
			return
		}
		resp.Apps = append(resp.Apps, info)
	}
	respondJSON(w, r, http.StatusOK, resp)
}

// Tables lists the tables of one app the caller's key may read.
func (h *Handler) Tables(w http.ResponseWriter, r *http.Request) {
	sub, err := subject(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	app := chi.URLParam(r, "app")
	info, err := h.appInfo(r, sub, app)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, TablesResponse{
		App:          info.Name,
		DefaultTable: info.DefaultTable,
		Tables:       info.Tables,
	})
}

func (h *Handler) appInfo(r *http.Request, sub, app string) (AppInfo, error) {
	tables, err := h.svc.Tables(app)
	if err != nil {
		return AppInfo{}, err
	}
	visible, err := h.enforcer.VisibleTables(r.Context(), sub, app, tables)
	if err != nil {
		return AppInfo{}, apperr.Wrap(apperr.KindInternal, err, "authorization failed")
	}

	info := AppInfo{Name: app, Tables: visible}
	if target, err := h.svc.Resolve(app, ""); err == nil {
		for _, t := range visible {
			if t == target.TableName {
				info.DefaultTable = t
				break
			}
		}
	}
	if info.Tables == nil {
		info.Tables = []string{}
	}
	return info, nil
}

// DefaultTableData serves a page of the app's default table.
func (h *Handler) DefaultTableData(w http.ResponseWriter, r *http.Request) {
	h.serveData(w, r, chi.URLParam(r, "app"), "")
}

// TableData serves a page of a configured table.
func (h *Handler) TableData(w http.ResponseWriter, r *http.Request) {
	h.serveData(w, r, chi.URLParam(r, "app"), chi.URLParam(r, "table"))
}

func (h *Handler) serveData(w http.ResponseWriter, r *http.Request, app, table string) {
	target, err := h.svc.Resolve(app, table)
	if err != nil {
		writeError(w, r, err)
		return
	}

	req, err := parseDataRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	page, err := h.svc.Fetch(r.Context(), target, req.Query(target.Table, r.URL.Query()))
	if err != nil {
		writeError(w, r, err)
		return
	}

	logging.Ctx(r.Context()).Info().
		Str("app", target.AppName).
		Str("table", target.TableName).
		Str("strategy", string(page.Strategy)).
		Int("rows", len(page.Data)).
		Int("page", page.Pagination.Page).
		Int("total_rows", page.Pagination.TotalRows).
		Msg("Served table page")

	if page.Strategy != "" {
		w.Header().Set(extractionStrategyHeader, string(page.Strategy))
	}
	respondJSON(w, r, http.StatusOK, page)
}
