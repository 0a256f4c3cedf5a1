// Cubegate - REST Gateway for Qlik Sense Hypercube Data
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubegate

package api

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/tomtom215/cubegate/internal/apperr"
	"github.com/tomtom215/cubegate/internal/config"
	"github.com/tomtom215/cubegate/internal/service"
	"github.com/tomtom215/cubegate/internal/validation"
)

const (
	defaultPage     = 1
	defaultPageSize = 100
)

// DataRequest holds the validated query parameters of a data request.
type DataRequest struct {
	Page        int      `query:"page" validate:"min=1,max=1000000"`
	PageSize    int      `query:"page_size" validate:"min=1,max=10000"`
	AllData     bool     `query:"all_data"`
	FilterField string   `query:"filter_field" validate:"required_with=FilterValue"`
	FilterValue string   `query:"filter_value"`
	SortField   string   `query:"sort_field"`
	SortOrder   string   `query:"sort_order" validate:"omitempty,oneof=asc desc"`
	YearMonths  []string `query:"yearmonth" validate:"dive,yearmonth"`
}

// parseDataRequest reads and validates the common data parameters. It
// never touches the engine, so malformed requests fail fast.
func parseDataRequest(r *http.Request) (DataRequest, error) {
	q := r.URL.Query()
	req := DataRequest{
		Page:        defaultPage,
		PageSize:    defaultPageSize,
		FilterField: strings.TrimSpace(q.Get("filter_field")),
		FilterValue: q.Get("filter_value"),
		SortField:   strings.TrimSpace(q.Get("sort_field")),
		SortOrder:   strings.ToLower(strings.TrimSpace(q.Get("sort_order"))),
		YearMonths:  commaValues(q["yearmonth"]),
	}

	var err error
	if req.Page, err = intParam(q, "page", defaultPage); err != nil {
		return req, err
	}
	if req.PageSize, err = intParam(q, "page_size", defaultPageSize); err != nil {
		return req, err
	}
	if req.AllData, err = boolParam(q, "all_data"); err != nil {
		return req, err
	}

	if verr := validation.ValidateStruct(&req); verr != nil {
		return req, verr.ToAppError()
	}
	return req, nil
}

// Query converts the request into a service query, picking up the
// table's configured filter parameters from q.
func (d DataRequest) Query(table config.TableConfig, q url.Values) service.Query {
	out := service.Query{
		Page:        d.Page,
		PageSize:    d.PageSize,
		AllData:     d.AllData,
		FilterField: d.FilterField,
		FilterValue: d.FilterValue,
		SortField:   d.SortField,
		SortOrder:   d.SortOrder,
		YearMonths:  d.YearMonths,
	}
	for param := range table.Filters {
		if vals := commaValues(q[param]); len(vals) > 0 {
			if out.TableFilters == nil {
				out.TableFilters = make(map[string][]string)
			}
			out.TableFilters[param] = vals
		}
	}
	return out
}

func intParam(q url.Values, name string, def int) (int, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.Validation(name+" must be an integer", map[string]interface{}{
			"field": name,
			"tag":   "integer",
			"value": raw,
		})
	}
	return n, nil
}

func boolParam(q url.Values, name string) (bool, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, apperr.Validation(name+" must be true or false", map[string]interface{}{
			"field": name,
			"tag":   "boolean",
			"value": raw,
		})
	}
	return b, nil
}

// commaValues flattens repeated and comma separated values.
func commaValues(in []string) []string {
	var out []string
	for _, v := range in {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
