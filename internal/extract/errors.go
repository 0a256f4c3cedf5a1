// Cubegate - REST Gateway for Qlik Sense Hypercube Data
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubegate

package extract

import (
	"errors"
	"fmt"
	"time"
)

// ErrNoHyperCube is returned for objects without a hypercube.
var ErrNoHyperCube = errors.New("object has no hypercube")

// Error reports that no strategy could read an object.
type Error struct {
	ObjectID string
	Reason   string
	Err      error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("extract %s: %s", e.ObjectID, e.Reason)
	}
	return fmt.Sprintf("extract %s: %s: %v", e.ObjectID, e.Reason, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// TimeoutError reports that a pivot read exceeded its wall-clock budget.
type TimeoutError struct {
	ObjectID string
	Budget   time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("pivot read of %s exceeded %s; configure a bookmark for this table to narrow the data", e.ObjectID, e.Budget)
}
