// Cubegate - REST Gateway for Qlik Sense Hypercube Data
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubegate

package extract

import (
	"bytes"

	"github.com/goccy/go-json"
)

// Column is one labelled value of a Row.
type Column struct {
	Key   string      `json:"key"`
	Value interface{} `json:"value"`
}

// Row is a flat record whose keys keep dimension-then-measure order. It
// encodes as a JSON object in that order.
type Row []Column

// Get returns the value stored under key.
func (r Row) Get(key string) (interface{}, bool) {
	for _, c := range r {
		if c.Key == key {
			return c.Value, true
		}
	}
	return nil, false
}

// Keys returns the row's keys in order.
func (r Row) Keys() []string {
	keys := make([]string, len(r))
	for i, c := range r {
		keys[i] = c.Key
	}
	return keys
}

// set replaces the value under key or appends a new column.
func (r Row) set(key string, v interface{}) Row {
	for i := range r {
		if r[i].Key == key {
			r[i].Value = v
			return r
		}
	}
	return append(r, Column{Key: key, Value: v})
}

// MarshalJSON implements json.Marshaler.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(c.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(c.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
