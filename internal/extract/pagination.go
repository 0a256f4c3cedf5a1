// Cubegate - REST Gateway for Qlik Sense Hypercube Data
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubegate

package extract

// Pagination is the pagination block of a page response.
type Pagination struct {
	Page        int  `json:"page"`
	PageSize    int  `json:"page_size"`
	TotalRows   int  `json:"total_rows"`
	TotalPages  int  `json:"total_pages"`
	HasNext     bool `json:"has_next"`
	HasPrevious bool `json:"has_previous"`
}

// NewPagination computes pagination for total rows. An empty result still
// has one page.
func NewPagination(page, size, total int) Pagination {
	if size < 1 {
		size = 1
	}
	pages := total / size
	if total%size != 0 {
		pages++
	}
	if pages < 1 {
		pages = 1
	}
	return Pagination{
		Page:        page,
		PageSize:    size,
		TotalRows:   total,
		TotalPages:  pages,
		HasNext:     page < pages,
		HasPrevious: page > 1,
	}
}

// Paginate returns the rows of one page. Pages past the end are empty.
func Paginate(rows []Row, page, size int) []Row {
	start, end := pageBounds(page, size, len(rows))
	return rows[start:end]
}

// pageBounds returns the half-open row range of page within total rows.
func pageBounds(page, size, total int) (int, int) {
	if page < 1 || size < 1 || total < 1 {
		return 0, 0
	}
	// Compare in pages so that huge page numbers cannot overflow.
	pages := total / size
	if total%size != 0 {
		pages++
	}
	if page-1 >= pages {
		return total, total
	}
	start := (page - 1) * size
	end := total
	if total-start > size {
		end = start + size
	}
	return start, end
}
