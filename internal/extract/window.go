// Cubegate - REST Gateway for Qlik Sense Hypercube Data
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubegate

package extract

import (
	"context"

	"github.com/tomtom215/cubegate/internal/engine"
	"github.com/tomtom215/cubegate/internal/logging"
	"github.com/tomtom215/cubegate/internal/metrics"
)

// WindowRows returns how many rows one data request may ask for when the
// cube has cols columns: the cell budget split across the columns, capped
// at maxRows and never below one.
func WindowRows(cellBudget, maxRows, cols int) int {
	if cols < 1 {
		cols = 1
	}
	rows := cellBudget / cols
	if maxRows > 0 && rows > maxRows {
		rows = maxRows
	}
	if rows < 1 {
		rows = 1
	}
	return rows
}

// fetchFunc fetches rows [top, top+height) and reports how many arrived.
type fetchFunc func(ctx context.Context, top, height int) (int, error)

// fetchRange fetches rows [start, start+count) in chunks of at most chunk
// rows. The first too-large error halves the chunk size and retries; any
// later error is returned.
func fetchRange(ctx context.Context, start, count, chunk int, fetch fetchFunc) error {
	if chunk < 1 {
		chunk = 1
	}
	end := start + count
	halved := false
	for top := start; top < end; {
		h := chunk
		if top+h > end {
			h = end - top
		}
		got, err := fetch(ctx, top, h)
		if err != nil {
			if !halved && engine.IsTooLarge(err) {
				halved = true
				chunk = (chunk + 1) / 2
				if chunk > h {
					chunk = (h + 1) / 2
				}
				metrics.ExtractionWindowRetries.Inc()
				logging.Ctx(ctx).Debug().Int("top", top).Int("rows", h).Int("retry_rows", chunk).
					Msg("Data window too large, retrying at half size")
				continue
			}
			return err
		}
		if got == 0 {
			return nil
		}
		top += got
	}
	return nil
}
