// Cubegate - REST Gateway for Qlik Sense Hypercube Data
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubegate

package service

import (
	"sort"
	"strings"

	"github.com/tomtom215/cubegate/internal/config"
	"github.com/tomtom215/cubegate/internal/extract"
)

// AllDataPageSize is the page size all_data requests are served with.
const AllDataPageSize = 10000

// yearMonthKey triggers the first-date heuristic when a table has no
// yearmonth_field.
const yearMonthKey = "yearmonth"

// Query is the client's view of a page request.
type Query struct {
	Page     int
	PageSize int
	AllData  bool

	FilterField string
	FilterValue string

	SortField string
	SortOrder string

	YearMonths []string

	// TableFilters holds values of the table's configured filter
	// parameters, keyed by parameter name.
	TableFilters map[string][]string
}

// normalized applies all_data and splits comma lists.
func (q Query) normalized() Query {
	if q.AllData {
		q.Page = 1
		q.PageSize = AllDataPageSize
	}
	q.YearMonths = splitValues(q.YearMonths)
	if len(q.TableFilters) > 0 {
		filters := make(map[string][]string, len(q.TableFilters))
		for k, v := range q.TableFilters {
			if vals := splitValues(v); len(vals) > 0 {
				filters[k] = vals
			}
		}
		q.TableFilters = filters
	}
	return q
}

// splitValues flattens comma lists and drops blanks.
func splitValues(in []string) []string {
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

// buildRequest maps a query onto an extraction request for table.
func buildRequest(table config.TableConfig, q Query) extract.Request {
	req := extract.Request{
		ObjectID:   table.ObjectID,
		BookmarkID: table.BookmarkID,
		Page:       q.Page,
		PageSize:   q.PageSize,
	}

	params := make([]string, 0, len(q.TableFilters))
	for param := range q.TableFilters {
		params = append(params, param)
	}
	sort.Strings(params)
	for _, param := range params {
		field, ok := table.Filters[param]
		if !ok {
			continue
		}
		req.Selections = append(req.Selections, extract.Selection{Field: field, Values: q.TableFilters[param]})
	}

	if len(q.YearMonths) > 0 {
		cond := extract.Condition{Key: yearMonthKey, Values: q.YearMonths, YearMonth: true}
		if table.YearMonthField != "" {
			cond.Key = table.YearMonthField
		}
		req.Filters = append(req.Filters, cond)
	}

	if q.FilterField != "" && q.FilterValue != "" {
		req.Filters = append(req.Filters, extract.Condition{Key: q.FilterField, Values: []string{q.FilterValue}})
	}

	if q.SortField != "" {
		req.Sort = &extract.Sort{Key: q.SortField, Desc: strings.EqualFold(q.SortOrder, "desc")}
	}
	return req
}
