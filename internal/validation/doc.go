// Cubegate - REST Gateway for Qlik Sense Hypercube Data
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubegate

/*
Package validation validates request parameters with go-playground/validator.

The validator is a process-wide singleton so struct metadata is parsed
once. Field names in messages come from the `query` struct tag, so errors
name the query parameter the client sent rather than the Go field.

# Custom Validators

	yearmonth   value parses as a year and month (2024-01, 2024.1, 1/15/2024)

# Usage

	type DataRequest struct {
	    Page     int    `query:"page" validate:"min=1"`
	    PageSize int    `query:"page_size" validate:"min=1,max=10000"`
	    Order    string `query:"sort_order" validate:"omitempty,oneof=asc desc"`
	}

	if verr := validation.ValidateStruct(&req); verr != nil {
	    return verr.ToAppError()
	}

ToAppError returns an apperr ValidationError, which the API renders as
422 with the failing fields in details.
*/
package validation
