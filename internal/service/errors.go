// Cubegate - REST Gateway for Qlik Sense Hypercube Data
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubegate

package service

import (
	"context"
	"errors"

	"github.com/tomtom215/cubegate/internal/apperr"
	"github.com/tomtom215/cubegate/internal/engine"
	"github.com/tomtom215/cubegate/internal/extract"
)

// classify converts an engine or extraction failure into an *apperr.Error.
// Timeouts and transport failures win over anything they wrap, and an
// extraction failure wins over the engine errors joined inside it.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return ae
	}

	var (
		connErr    *engine.ConnectionError
		timeoutErr *extract.TimeoutError
		engineErr  *engine.EngineError
		extractErr *extract.Error
	)
	switch {
	case errors.As(err, &timeoutErr):
		return apperr.Wrap(apperr.KindTimeout, err, "%s", timeoutErr.Error()).
			WithDetail("object_id", timeoutErr.ObjectID)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, engine.ErrReceiveTimeout):
		return apperr.Wrap(apperr.KindTimeout, err, "engine did not answer in time")
	case errors.Is(err, engine.ErrBreakerOpen):
		return apperr.Wrap(apperr.KindConnection, err, "engine temporarily unavailable")
	case errors.As(err, &connErr):
		return apperr.Wrap(apperr.KindConnection, err, "cannot connect to engine").
			WithDetail("endpoints", connErr.Endpoints)
	case engine.IsTransportError(err):
		return apperr.Wrap(apperr.KindConnection, err, "engine connection lost")
	case errors.As(err, &extractErr):
		return apperr.Wrap(apperr.KindExtraction, err, "%s", extractErr.Reason).
			WithDetail("object_id", extractErr.ObjectID)
	case errors.Is(err, engine.ErrBookmarkNotApplied):
		return apperr.Wrap(apperr.KindNotFound, err, "bookmark could not be applied")
	case errors.As(err, &engineErr):
		switch engineErr.Kind() {
		case engine.KindNotFound:
			return apperr.Wrap(apperr.KindNotFound, err, "engine entity not found").
				WithDetail("engine_code", engineErr.Code)
		case engine.KindAccessDenied:
			return apperr.Wrap(apperr.KindAccessDenied, err, "engine denied access").
				WithDetail("engine_code", engineErr.Code)
		default:
			return apperr.Wrap(apperr.KindEngine, err, "engine error").
				WithDetail("engine_code", engineErr.Code).
				WithDetail("engine_message", engineErr.Message)
		}
	case errors.Is(err, context.Canceled):
		return apperr.Wrap(apperr.KindTimeout, err, "request cancelled")
	default:
		return apperr.Wrap(apperr.KindInternal, err, "internal server error")
	}
}
