// Cubegate - REST Gateway for Qlik Sense Hypercube Data
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubegate

package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/tomtom215/cubegate/internal/authz"
	"github.com/tomtom215/cubegate/internal/service"
)

func newVersionCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show client and engine versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := c.service(cmd)
			if err != nil {
				return err
			}
			version, err := svc.EngineVersion(cmd.Context())
			if err != nil {
				return err
			}
			if c.output == "json" {
				return renderJSON(cmd.OutOrStdout(), map[string]string{"cubectl": Version, "engine": version})
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "cubectl %s\nengine  %s\n", Version, version)
			return nil
		},
	}
}

func newDocsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "docs",
		Short: "List the documents visible to the engine user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := c.service(cmd)
			if err != nil {
				return err
			}
			docs, err := svc.DocList(cmd.Context())
			if err != nil {
				return err
			}
			if c.output == "json" {
				return renderJSON(cmd.OutOrStdout(), docs)
			}
			rows := make([]table.Row, 0, len(docs))
			for _, d := range docs {
				rows = append(rows, table.Row{d.DocName, d.DocID, d.LastModified})
			}
			renderTable(cmd.OutOrStdout(), table.Row{"Name", "Doc ID", "Last Reload"}, rows)
			return nil
		},
	}
}

func newBookmarksCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "bookmarks <app>",
		Short: "List the bookmarks of an app",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := c.service(cmd)
			if err != nil {
				return err
			}
			bookmarks, err := svc.Bookmarks(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if c.output == "json" {
				return renderJSON(cmd.OutOrStdout(), bookmarks)
			}
			rows := make([]table.Row, 0, len(bookmarks))
			for _, b := range bookmarks {
				rows = append(rows, table.Row{b.Title, b.ID, b.Description})
			}
			renderTable(cmd.OutOrStdout(), table.Row{"Title", "ID", "Description"}, rows)
			return nil
		},
	}
}

func newInspectCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <app> <object-id>",
		Short: "Describe a visual object and its hypercube",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := c.service(cmd)
			if err != nil {
				return err
			}
			sum, err := svc.Inspect(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			if c.output == "json" {
				return renderJSON(cmd.OutOrStdout(), sum)
			}
			renderTable(cmd.OutOrStdout(), table.Row{"Property", "Value"}, []table.Row{
				{"ID", sum.ID},
				{"Type", sum.Type},
				{"Title", sum.Title},
				{"Mode", sum.Mode},
				{"HyperCube", sum.HyperCube},
				{"Dimensions", joinList(sum.Dimensions)},
				{"Fields", joinList(sum.Fields)},
				{"Measures", joinList(sum.Measures)},
				{"Size", fmt.Sprintf("%d x %d", sum.Rows, sum.Columns)},
			})
			return nil
		},
	}
}

func newExtractCmd(c *cli) *cobra.Command {
	var q service.Query

	cmd := &cobra.Command{
		Use:   "extract <app> [table]",
		Short: "Extract one page of a configured table",
		Long:  `Extract runs the same selection, filtering and paging as the REST data endpoint. Without a table the app's default table is used.`,
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if q.Page < 1 || q.PageSize < 1 {
				return fmt.Errorf("page and page-size must be at least 1")
			}
			svc, err := c.service(cmd)
			if err != nil {
				return err
			}
			tableName := ""
			if len(args) == 2 {
				tableName = args[1]
			}
			target, err := svc.Resolve(args[0], tableName)
			if err != nil {
				return err
			}
			page, err := svc.Fetch(cmd.Context(), target, q)
			if err != nil {
				return err
			}
			if c.output == "json" {
				return renderJSON(cmd.OutOrStdout(), page)
			}
			renderPage(cmd.OutOrStdout(), page)
			return nil
		},
	}

	f := cmd.Flags()
	f.IntVar(&q.Page, "page", 1, "page number")
	f.IntVar(&q.PageSize, "page-size", 100, "rows per page")
	f.BoolVar(&q.AllData, "all", false, "return every row on one page")
	f.StringVar(&q.FilterField, "filter-field", "", "column to match")
	f.StringVar(&q.FilterValue, "filter-value", "", "value the filter column must equal")
	f.StringVar(&q.SortField, "sort-field", "", "column to sort by")
	f.StringVar(&q.SortOrder, "sort-order", "asc", "sort order (asc|desc)")
	f.StringSliceVar(&q.YearMonths, "yearmonth", nil, "YYYY-MM months to select")
	return cmd
}

func newHashKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-key <key>",
		Short: "Print the key_hash for an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := authz.HashKey(args[0])
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}
