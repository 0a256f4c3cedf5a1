// Cubegate - REST Gateway for Qlik Sense Hypercube Data
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubegate

package cache

import (
	"fmt"
	"strings"

	"github.com/tomtom215/cubegate/internal/logging"
)

// badgerLogger routes badger's logging through zerolog.
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...interface{}) {
	logging.Error().Str("component", "badger").Msg(trim(format, args))
}

func (badgerLogger) Warningf(format string, args ...interface{}) {
	logging.Warn().Str("component", "badger").Msg(trim(format, args))
}

func (badgerLogger) Infof(format string, args ...interface{}) {
	logging.Debug().Str("component", "badger").Msg(trim(format, args))
}

func (badgerLogger) Debugf(format string, args ...interface{}) {
	logging.Debug().Str("component", "badger").Msg(trim(format, args))
}

func trim(format string, args []interface{}) string {
	return strings.TrimSpace(fmt.Sprintf(format, args...))
}
