// Cubegate - REST Gateway for Qlik Sense Hypercube Data
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubegate

package service

import (
	"context"

	"github.com/tomtom215/cubegate/internal/engine"
	"github.com/tomtom215/cubegate/internal/extract"
)

// Session is an engine session owned by one request.
type Session interface {
	extract.Conn
	Close() error
}

// OpenFunc opens a connected session.
type OpenFunc func(ctx context.Context) (Session, error)

// ConnectorOpener opens sessions through c.
func ConnectorOpener(c *engine.Connector) OpenFunc {
	return func(ctx context.Context) (Session, error) {
		sess, err := c.Open(ctx)
		if err != nil {
			return nil, err
		}
		return sess, nil
	}
}
