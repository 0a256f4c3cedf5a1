// Cubegate - REST Gateway for Qlik Sense Hypercube Data
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubegate

package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Date layouts recognised by the year-month heuristic, in match order.
// Each entry names the capture groups holding the year and the month.
var dateLayouts = []struct {
	re          *regexp.Regexp
	year, month int
}{
	{regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})$`), 3, 1},       // M/D/YYYY
	{regexp.MustCompile(`^(\d{1,2})[./](\d{1,2})[./](\d{4})$`), 3, 2}, // DD.MM.YYYY, DD/MM/YYYY
	{regexp.MustCompile(`^(\d{4})-(\d{2})-\d{2}`), 1, 2},              // YYYY-MM-DD
	{regexp.MustCompile(`^(\d{4})\.(\d{2})`), 1, 2},                   // YYYY.MM[.DD]
}

// ExtractYearMonth returns the YYYY.MM token of a date-like value.
func ExtractYearMonth(v interface{}) (string, bool) {
	s := strings.TrimSpace(stringify(v))
	if s == "" {
		return "", false
	}
	for _, l := range dateLayouts {
		m := l.re.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		month, err := strconv.Atoi(m[l.month])
		if err != nil || month < 1 || month > 12 {
			continue
		}
		return fmt.Sprintf("%s.%02d", m[l.year], month), true
	}
	return "", false
}

var yearMonthRe = regexp.MustCompile(`^(\d{4})[-./](\d{1,2})$`)

// NormalizeYearMonth turns a requested period ("2024-01", "2024.1",
// "2024/01" or a full date) into a YYYY.MM token.
func NormalizeYearMonth(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if m := yearMonthRe.FindStringSubmatch(s); m != nil {
		month, _ := strconv.Atoi(m[2])
		if month >= 1 && month <= 12 {
			return fmt.Sprintf("%s.%02d", m[1], month), true
		}
		return "", false
	}
	return ExtractYearMonth(s)
}

// stringify renders a cell value for comparison. Numbers use the shortest
// decimal form without exponent.
func stringify(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}
