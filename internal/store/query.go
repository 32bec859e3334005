package store

import (
	"encoding/json"
	"fmt"
	"reflect"
	"slices"
	"sort"
	"strings"
	"time"
)

type Operator string

const (
	OpEqual        Operator = "equal"
	OpNotEqual     Operator = "notEqual"
	OpLess         Operator = "lessThan"
	OpLessEqual    Operator = "lessThanEqual"
	OpGreater      Operator = "greaterThan"
	OpGreaterEqual Operator = "greaterThanEqual"
	OpSearch       Operator = "search"
	OpContains     Operator = "contains"
	OpIsNull       Operator = "isNull"
	OpIsNotNull    Operator = "isNotNull"
)

type Filter struct {
	Attribute string
	Op        Operator
	Values    []any
}

type Order struct {
	Attribute string
	Desc      bool
}

// Query selects, orders and pages documents. A zero Limit leaves paging to the driver default.
type Query struct {
	Filters []Filter
	Orders  []Order
	Limit   int
	Offset  int
}

func NewQuery(filters ...Filter) Query {
	return Query{Filters: filters}
}

func (q Query) Where(filters ...Filter) Query {
	q.Filters = append(slices.Clip(q.Filters), filters...)
	return q
}

func (q Query) OrderAsc(attr string) Query {
	q.Orders = append(slices.Clip(q.Orders), Order{Attribute: attr})
	return q
}

func (q Query) OrderDesc(attr string) Query {
	q.Orders = append(slices.Clip(q.Orders), Order{Attribute: attr, Desc: true})
	return q
}

func (q Query) Page(limit, offset int) Query {
	q.Limit = limit
	q.Offset = offset
	return q
}

func Equal(attr string, values ...any) Filter {
	return Filter{Attribute: attr, Op: OpEqual, Values: normalizeValues(values)}
}

func NotEqual(attr string, value any) Filter {
	return Filter{Attribute: attr, Op: OpNotEqual, Values: []any{normalizeValue(value)}}
}

func LessThan(attr string, value any) Filter {
	return Filter{Attribute: attr, Op: OpLess, Values: []any{normalizeValue(value)}}
}

func LessThanEqual(attr string, value any) Filter {
	return Filter{Attribute: attr, Op: OpLessEqual, Values: []any{normalizeValue(value)}}
}

func GreaterThan(attr string, value any) Filter {
	return Filter{Attribute: attr, Op: OpGreater, Values: []any{normalizeValue(value)}}
}

func GreaterThanEqual(attr string, value any) Filter {
	return Filter{Attribute: attr, Op: OpGreaterEqual, Values: []any{normalizeValue(value)}}
}

// Search matches a case-insensitive substring of a string attribute.
func Search(attr, term string) Filter {
	return Filter{Attribute: attr, Op: OpSearch, Values: []any{term}}
}

// Contains matches array attributes holding any of the values.
func Contains(attr string, values ...any) Filter {
	return Filter{Attribute: attr, Op: OpContains, Values: normalizeValues(values)}
}

func IsNull(attr string) Filter {
	return Filter{Attribute: attr, Op: OpIsNull}
}

func IsNotNull(attr string) Filter {
	return Filter{Attribute: attr, Op: OpIsNotNull}
}

// Match evaluates every filter against doc.
func (q Query) Match(doc Document) bool {
	for _, f := range q.Filters {
		if !f.Match(doc) {
			return false
		}
	}
	return true
}

// Apply filters, orders and pages docs in-process. Drivers without a native
// query language use it directly.
func (q Query) Apply(docs []Document) *DocumentList {
	matched := make([]Document, 0, len(docs))
	for _, d := range docs {
		if q.Match(d) {
			matched = append(matched, d)
		}
	}

	if len(q.Orders) > 0 {
		sort.SliceStable(matched, func(i, j int) bool {
			for _, o := range q.Orders {
				c := compareNullable(matched[i][o.Attribute], matched[j][o.Attribute])
				if c == 0 {
					continue
				}
				if o.Desc {
					return c > 0
				}
				return c < 0
			}
			return false
		})
	}

	total := len(matched)
	start := min(max(q.Offset, 0), total)
	end := total
	if q.Limit > 0 && start+q.Limit < total {
		end = start + q.Limit
	}

	return &DocumentList{Total: total, Documents: matched[start:end]}
}

func (f Filter) Match(doc Document) bool {
	v, ok := doc[f.Attribute]
	if !ok {
		v = nil
	}

	switch f.Op {
	case OpIsNull:
		return v == nil
	case OpIsNotNull:
		return v != nil
	case OpEqual:
		return f.equalsAny(v)
	case OpNotEqual:
		return !f.equalsAny(v)
	case OpLess, OpLessEqual, OpGreater, OpGreaterEqual:
		if len(f.Values) == 0 || v == nil {
			return false
		}
		c, ok := compareValues(v, f.Values[0])
		if !ok {
			return false
		}
		switch f.Op {
		case OpLess:
			return c < 0
		case OpLessEqual:
			return c <= 0
		case OpGreater:
			return c > 0
		default:
			return c >= 0
		}
	case OpSearch:
		s, ok := v.(string)
		if !ok || len(f.Values) == 0 {
			return false
		}
		return strings.Contains(strings.ToLower(s), strings.ToLower(fmt.Sprint(f.Values[0])))
	case OpContains:
		switch arr := v.(type) {
		case []any:
			for _, el := range arr {
				if f.equalsAny(el) {
					return true
				}
			}
		case []string:
			for _, el := range arr {
				if f.equalsAny(el) {
					return true
				}
			}
		case string:
			for _, want := range f.Values {
				if strings.Contains(arr, fmt.Sprint(want)) {
					return true
				}
			}
		}
		return false
	}
	return false
}

func (f Filter) equalsAny(v any) bool {
	for _, want := range f.Values {
		if c, ok := compareValues(v, want); ok && c == 0 {
			return true
		}
	}
	return false
}

// compareNullable orders nil before every other value.
func compareNullable(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	c, _ := compareValues(a, b)
	return c
}

func compareValues(a, b any) (int, bool) {
	if a == nil || b == nil {
		return 0, false
	}
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			switch {
			case af < bf:
				return -1, true
			case af > bf:
				return 1, true
			}
			return 0, true
		}
	}
	if at, ok := toTime(a); ok {
		if bt, ok := toTime(b); ok {
			return at.Compare(bt), true
		}
	}
	if ab, ok := a.(bool); ok {
		bb, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case ab == bb:
			return 0, true
		case !ab:
			return -1, true
		}
		return 1, true
	}
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		return strings.Compare(as, bs), true
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func toTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		if len(t) < 20 || t[4] != '-' || t[10] != 'T' {
			return time.Time{}, false
		}
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return time.Time{}, false
		}
		return parsed, true
	}
	return time.Time{}, false
}

func normalizeValues(values []any) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = normalizeValue(v)
	}
	return out
}

// normalizeValue reduces named scalar types (such as status enums) to their
// underlying JSON-compatible kind so every driver compares them alike.
func normalizeValue(v any) any {
	switch v.(type) {
	case nil, string, bool, float64, time.Time:
		return v
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	}
	return v
}
