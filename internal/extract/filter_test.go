// Cubegate - REST Gateway for Qlik Sense Hypercube Data
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubegate

package extract

import (
	"reflect"
	"testing"
)

func salesRows() []Row {
	return []Row{
		{{Key: "Order Date", Value: "2024-01-15"}, {Key: "Region", Value: "North"}, {Key: "Sales", Value: 10.0}},
		{{Key: "Order Date", Value: "2024-02-03"}, {Key: "Region", Value: "South"}, {Key: "Sales", Value: 20.0}},
		{{Key: "Order Date", Value: "31.01.2024"}, {Key: "Region", Value: "South"}, {Key: "Sales", Value: 5.5}},
		{{Key: "Order Date", Value: "n/a"}, {Key: "Region", Value: "East"}, {Key: "Sales", Value: "-"}},
	}
}

func salesSchema() Schema {
	return Schema{
		Dimensions: []DimensionColumn{{Field: "OrderDate", Label: "Order Date"}, {Field: "RegionCode", Label: "Region"}},
		Measures:   []string{"Sales"},
	}
}

func TestMatcher(t *testing.T) {
	tests := []struct {
		name  string
		conds []Condition
		want  []interface{}
	}{
		{"no conditions", nil, []interface{}{"North", "South", "South", "East"}},
		{"by label", []Condition{{Key: "Region", Values: []string{"South"}}}, []interface{}{"South", "South"}},
		{"by field ref", []Condition{{Key: "RegionCode", Values: []string{"North", "East"}}}, []interface{}{"North", "East"}},
		{"by measure label", []Condition{{Key: "Sales", Values: []string{"5.5"}}}, []interface{}{"South"}},
		{"exact text only", []Condition{{Key: "Region", Values: []string{"south"}}}, []interface{}{}},
		{"conjunction", []Condition{
			{Key: "Region", Values: []string{"South"}},
			{Key: "Sales", Values: []string{"20"}},
		}, []interface{}{"South"}},
		{"period on a column", []Condition{{Key: "OrderDate", Values: []string{"2024-01"}, YearMonth: true}}, []interface{}{"North", "South"}},
		{"unknown key uses first date", []Condition{{Key: "yearmonth", Values: []string{"2024-02", "1999-01"}}}, []interface{}{"South"}},
		{"unknown key without a period", []Condition{{Key: "Nope", Values: []string{"x"}}}, []interface{}{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := column(Filter(salesRows(), NewMatcher(salesSchema(), tt.conds)), "Region")
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Filter() regions = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSortRows(t *testing.T) {
	rows := salesRows()
	SortRows(rows, salesSchema(), Sort{Key: "Sales"})
	if got := column(rows, "Sales"); !reflect.DeepEqual(got, []interface{}{5.5, 10.0, 20.0, "-"}) {
		t.Errorf("ascending = %v", got)
	}

	SortRows(rows, salesSchema(), Sort{Key: "Sales", Desc: true})
	if got := column(rows, "Sales"); !reflect.DeepEqual(got, []interface{}{"-", 20.0, 10.0, 5.5}) {
		t.Errorf("descending = %v", got)
	}
}

func TestSortRows_StableAndMissingLast(t *testing.T) {
	rows := []Row{
		{{Key: "id", Value: 1.0}, {Key: "g", Value: "b"}},
		{{Key: "id", Value: 2.0}},
		{{Key: "id", Value: 3.0}, {Key: "g", Value: "a"}},
		{{Key: "id", Value: 4.0}, {Key: "g", Value: "b"}},
	}
	SortRows(rows, Schema{}, Sort{Key: "g", Desc: true})
	if got := column(rows, "id"); !reflect.DeepEqual(got, []interface{}{1.0, 4.0, 3.0, 2.0}) {
		t.Errorf("order = %v", got)
	}
}

func TestRowMarshalJSONKeepsOrder(t *testing.T) {
	r := Row{{Key: "z", Value: "last?"}, {Key: "a", Value: 1.5}, {Key: "m", Value: nil}}
	b, err := r.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON() error = %v", err)
	}
	if string(b) != `{"z":"last?","a":1.5,"m":null}` {
		t.Errorf("MarshalJSON() = %s", b)
	}
}
