// Cubegate - REST Gateway for Qlik Sense Hypercube Data
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubegate

package extract

import (
	"sort"
	"strings"
)

// Condition is a client-side predicate. A row matches when its value
// under Key equals one of Values. With YearMonth set, values are compared
// as YYYY.MM periods instead of exact text.
//
// A Key that names no column of the row is matched by the date heuristic:
// the first date-like value of the row decides.
type Condition struct {
	Key       string
	Values    []string
	YearMonth bool
}

type matcher struct {
	column string
	exact  map[string]bool
	months map[string]bool
	period bool
}

// Matcher evaluates a conjunction of conditions against rows.
type Matcher struct {
	conds []matcher
}

// NewMatcher resolves conditions against s.
func NewMatcher(s Schema, conds []Condition) *Matcher {
	m := &Matcher{}
	for _, c := range conds {
		mc := matcher{
			column: s.resolve(c.Key),
			exact:  map[string]bool{},
			months: map[string]bool{},
			period: c.YearMonth,
		}
		for _, v := range c.Values {
			mc.exact[v] = true
			if ym, ok := NormalizeYearMonth(v); ok {
				mc.months[ym] = true
			}
		}
		m.conds = append(m.conds, mc)
	}
	return m
}

// Empty reports whether the matcher accepts every row.
func (m *Matcher) Empty() bool { return m == nil || len(m.conds) == 0 }

// Match reports whether r satisfies every condition.
func (m *Matcher) Match(r Row) bool {
	if m == nil {
		return true
	}
	for _, c := range m.conds {
		if !c.match(r) {
			return false
		}
	}
	return true
}

func (c matcher) match(r Row) bool {
	v, ok := r.Get(c.column)
	if !ok {
		return c.matchFirstDate(r)
	}
	if c.period {
		ym, ok := ExtractYearMonth(v)
		return ok && c.months[ym]
	}
	return c.exact[stringify(v)]
}

// matchFirstDate applies the year-month heuristic: the first value of the
// row that parses as a date decides.
func (c matcher) matchFirstDate(r Row) bool {
	for _, col := range r {
		if ym, ok := ExtractYearMonth(col.Value); ok {
			return c.months[ym]
		}
	}
	return false
}

// Filter returns the rows matching m.
func Filter(rows []Row, m *Matcher) []Row {
	if m.Empty() {
		return rows
	}
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		if m.Match(r) {
			out = append(out, r)
		}
	}
	return out
}

// Sort describes an in-memory ordering.
type Sort struct {
	Key  string
	Desc bool
}

// SortRows stably sorts rows by the column s.Key names. Numbers order
// numerically and before text; missing values go last in both directions.
func SortRows(rows []Row, schema Schema, s Sort) {
	key := schema.resolve(s.Key)
	sort.SliceStable(rows, func(i, j int) bool {
		a, aok := rows[i].Get(key)
		b, bok := rows[j].Get(key)
		aok = aok && a != nil
		bok = bok && b != nil
		switch {
		case !aok || !bok:
			return aok && !bok
		case s.Desc:
			return less(b, a)
		default:
			return less(a, b)
		}
	})
}

func less(a, b interface{}) bool {
	af, aNum := a.(float64)
	bf, bNum := b.(float64)
	switch {
	case aNum && bNum:
		return af < bf
	case aNum != bNum:
		return aNum
	default:
		return strings.Compare(stringify(a), stringify(b)) < 0
	}
}
