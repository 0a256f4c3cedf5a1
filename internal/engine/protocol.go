// Cubegate - REST Gateway for Qlik Sense Hypercube Data
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubegate

package engine

import (
	"bytes"
	"math"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// request is the JSON-RPC envelope written for every call.
type request struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      int64       `json:"id"`
	Handle  int         `json:"handle"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
}

// response is any message read from the socket. Notifications carry a
// method and params but neither result nor error.
type response struct {
	ID     *int64          `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *EngineError    `json:"error,omitempty"`
}

func (r *response) terminal() bool {
	return len(r.Result) > 0 || r.Error != nil
}

// Num is a cell's qNum. The engine sends a JSON number, or the string
// "NaN" when the cell has no numeric representation. Valid is false for
// absent, NaN and infinite values.
type Num struct {
	Value float64
	Valid bool
}

// NumOf returns a valid Num holding v.
func NumOf(v float64) Num {
	return Num{Value: v, Valid: !math.IsNaN(v) && !math.IsInf(v, 0)}
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *Num) UnmarshalJSON(b []byte) error {
	*n = Num{}
	s := string(bytes.TrimSpace(b))
	if s == "" || s == "null" {
		return nil
	}
	if s[0] == '"' {
		unq, err := strconv.Unquote(s)
		if err != nil {
			return nil
		}
		s = strings.TrimSpace(unq)
	}
	switch strings.ToLower(s) {
	case "nan", "inf", "-inf", "+inf", "infinity", "-infinity":
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	*n = NumOf(v)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (n Num) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte(`"NaN"`), nil
	}
	return []byte(strconv.FormatFloat(n.Value, 'g', -1, 64)), nil
}

// Cell is an NxCell from a straight hypercube data page, or an
// NxPivotValuePoint from a pivot data page.
type Cell struct {
	Text       string `json:"qText"`
	Num        Num    `json:"qNum"`
	ElemNumber int    `json:"qElemNumber,omitempty"`
	State      string `json:"qState,omitempty"`
	IsNull     bool   `json:"qIsNull,omitempty"`
}

// Value returns the cell's number when it has a finite one, else its text.
func (c Cell) Value() interface{} {
	if c.Num.Valid {
		return c.Num.Value
	}
	return c.Text
}

// repeatElemNo marks a sparse pivot cell that repeats the previous value.
const repeatElemNo = -2

// PivotCell is an NxPivotDimensionCell, a node of the left dimension tree
// of a pivot data page.
type PivotCell struct {
	Text     string      `json:"qText"`
	ElemNo   *int        `json:"qElemNo,omitempty"`
	Value    Num         `json:"qValue"`
	Type     string      `json:"qType,omitempty"`
	SubNodes []PivotCell `json:"qSubNodes,omitempty"`
}

// IsRepeat reports whether the cell carries no value of its own: no
// element number (or the -2 placeholder) and no text.
func (c PivotCell) IsRepeat() bool {
	return (c.ElemNo == nil || *c.ElemNo == repeatElemNo) && c.Text == ""
}

// PivotLeft is one entry of a pivot page's qLeft array. Depending on the
// object state the engine sends either a single dimension cell or a list
// of cells, one per visible dimension level.
type PivotLeft struct {
	Cells []PivotCell
	List  bool
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *PivotLeft) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '[' {
		p.List = true
		return json.Unmarshal(b, &p.Cells)
	}
	var c PivotCell
	if err := json.Unmarshal(b, &c); err != nil {
		return err
	}
	p.Cells = []PivotCell{c}
	p.List = false
	return nil
}

// MarshalJSON implements json.Marshaler.
func (p PivotLeft) MarshalJSON() ([]byte, error) {
	if p.List || len(p.Cells) != 1 {
		return json.Marshal(p.Cells)
	}
	return json.Marshal(p.Cells[0])
}

// Rect is an NxPage request or area.
type Rect struct {
	Left   int `json:"qLeft"`
	Top    int `json:"qTop"`
	Width  int `json:"qWidth"`
	Height int `json:"qHeight"`
}

// DataPage is an NxDataPage returned by GetHyperCubeData.
type DataPage struct {
	Matrix [][]Cell `json:"qMatrix"`
	Area   Rect     `json:"qArea"`
}

// PivotDataPage is an NxPivotPage returned by GetHyperCubePivotData.
type PivotDataPage struct {
	Left []PivotLeft `json:"qLeft"`
	Top  []PivotCell `json:"qTop,omitempty"`
	Data [][]Cell    `json:"qData"`
	Area Rect        `json:"qArea"`
}

// Size is a hypercube size: qcx columns by qcy rows.
type Size struct {
	Cx int `json:"qcx"`
	Cy int `json:"qcy"`
}

// DimensionInfo is layout metadata for one dimension.
type DimensionInfo struct {
	FallbackTitle  string   `json:"qFallbackTitle"`
	GroupFieldDefs []string `json:"qGroupFieldDefs,omitempty"`
	Cardinal       int      `json:"qCardinal,omitempty"`
}

// MeasureInfo is layout metadata for one measure.
type MeasureInfo struct {
	FallbackTitle string `json:"qFallbackTitle"`
}

// HyperCubeLayout is the evaluated state of a hypercube.
type HyperCubeLayout struct {
	Size          Size            `json:"qSize"`
	DimensionInfo []DimensionInfo `json:"qDimensionInfo"`
	MeasureInfo   []MeasureInfo   `json:"qMeasureInfo"`
	ColumnOrder   []int           `json:"qColumnOrder,omitempty"`
	Mode          string          `json:"qMode,omitempty"`
	NoOfLeftDims  int             `json:"qNoOfLeftDims,omitempty"`
}

// Info is an NxInfo.
type Info struct {
	ID   string `json:"qId,omitempty"`
	Type string `json:"qType,omitempty"`
}

// Meta is the subset of NxMeta the gateway reads.
type Meta struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

// ObjectLayout is a GenericObjectLayout.
type ObjectLayout struct {
	Info      Info             `json:"qInfo"`
	Meta      Meta             `json:"qMeta"`
	HyperCube *HyperCubeLayout `json:"qHyperCube,omitempty"`
	Title     string           `json:"title,omitempty"`
}

// DimensionDef is an NxInlineDimensionDef.
type DimensionDef struct {
	FieldDefs     []string        `json:"qFieldDefs"`
	FieldLabels   []string        `json:"qFieldLabels,omitempty"`
	SortCriterias json.RawMessage `json:"qSortCriterias,omitempty"`
}

// Dimension is an NxDimension.
type Dimension struct {
	LibraryID       string       `json:"qLibraryId,omitempty"`
	Def             DimensionDef `json:"qDef"`
	NullSuppression bool         `json:"qNullSuppression,omitempty"`
}

// FieldRef returns the first field definition, or "".
func (d Dimension) FieldRef() string {
	if len(d.Def.FieldDefs) > 0 {
		return d.Def.FieldDefs[0]
	}
	return ""
}

// Label returns the first field label, or "".
func (d Dimension) Label() string {
	if len(d.Def.FieldLabels) > 0 {
		return d.Def.FieldLabels[0]
	}
	return ""
}

// MeasureDef is an NxInlineMeasureDef.
type MeasureDef struct {
	Def   string `json:"qDef"`
	Label string `json:"qLabel,omitempty"`
}

// Measure is an NxMeasure. The raw JSON it was decoded from is kept so
// that the full definition, including library references, number
// formatting and attribute expressions, can be sent back verbatim.
type Measure struct {
	LibraryID string     `json:"qLibraryId,omitempty"`
	Def       MeasureDef `json:"qDef"`

	raw json.RawMessage
}

type measureFields Measure

// UnmarshalJSON implements json.Unmarshaler.
func (m *Measure) UnmarshalJSON(b []byte) error {
	var f measureFields
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*m = Measure(f)
	m.raw = append(json.RawMessage(nil), b...)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (m Measure) MarshalJSON() ([]byte, error) {
	if len(m.raw) > 0 {
		return m.raw, nil
	}
	return json.Marshal(measureFields(m))
}

// HyperCubeDef is an HyperCubeDef as read from object properties or sent
// to CreateSessionObject.
type HyperCubeDef struct {
	Dimensions           []Dimension `json:"qDimensions"`
	Measures             []Measure   `json:"qMeasures"`
	InterColumnSortOrder []int       `json:"qInterColumnSortOrder,omitempty"`
	SuppressZero         bool        `json:"qSuppressZero"`
	SuppressMissing      bool        `json:"qSuppressMissing"`
	Mode                 string      `json:"qMode,omitempty"`
	InitialDataFetch     []Rect      `json:"qInitialDataFetch,omitempty"`
	ColumnOrder          []int       `json:"qColumnOrder,omitempty"`
}

// ObjectProperties is the subset of GenericObjectProperties the gateway reads.
type ObjectProperties struct {
	Info         Info          `json:"qInfo"`
	HyperCubeDef *HyperCubeDef `json:"qHyperCubeDef,omitempty"`
}

// SessionObjectDef is the definition passed to CreateSessionObject.
type SessionObjectDef struct {
	Info         Info          `json:"qInfo"`
	HyperCubeDef *HyperCubeDef `json:"qHyperCubeDef,omitempty"`
}

// DocListEntry is an entry of GetDocList.
type DocListEntry struct {
	DocName      string  `json:"qDocName"`
	DocID        string  `json:"qDocId"`
	FileSize     float64 `json:"qFileSize,omitempty"`
	LastModified string  `json:"qLastReloadTime,omitempty"`
}

// handleReturn is the qReturn block of calls that yield a new handle.
type handleReturn struct {
	Type      string `json:"qType"`
	Handle    int    `json:"qHandle"`
	GenericID string `json:"qGenericId"`
}

// FieldValue is an NxFieldValue used by SelectValues.
type FieldValue struct {
	Text      string  `json:"qText"`
	IsNumeric bool    `json:"qIsNumeric,omitempty"`
	Number    float64 `json:"qNumber,omitempty"`
}
