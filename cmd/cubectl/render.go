// Cubegate - REST Gateway for Qlik Sense Hypercube Data
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubegate

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-json"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/tomtom215/cubegate/internal/service"
)

func renderJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func renderTable(w io.Writer, header table.Row, rows []table.Row) {
	if len(rows) == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(header)
	t.AppendRows(rows)
	t.Render()
}

// renderPage prints the rows of a page with its pagination as a footer.
// Columns follow the key order of the first row.
func renderPage(w io.Writer, page *service.Page) {
	_, _ = fmt.Fprintf(w, "%s / %s (object %s, %s)\n", page.AppName, page.TableName, page.ObjectID, page.Strategy)
	if len(page.Data) == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return
	}

	keys := page.Data[0].Keys()
	header := make(table.Row, len(keys))
	for i, k := range keys {
		header[i] = k
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(header)
	for _, r := range page.Data {
		row := make(table.Row, len(keys))
		for i, k := range keys {
			v, _ := r.Get(k)
			row[i] = formatValue(v)
		}
		t.AppendRow(row)
	}
	p := page.Pagination
	t.AppendFooter(table.Row{fmt.Sprintf("page %d/%d, %d rows", p.Page, p.TotalPages, p.TotalRows)})
	t.Render()
}

func formatValue(v interface{}) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprintf("%v", v)
}

func joinList(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}
