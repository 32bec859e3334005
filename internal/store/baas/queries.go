package baas

import (
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"dormdesk/internal/store"
)

type queryJSON struct {
	Method    string `json:"method"`
	Attribute string `json:"attribute,omitempty"`
	Values    []any  `json:"values,omitempty"`
}

// encodeQueries renders q as repeated queries[] parameters in the platform's JSON query syntax.
func encodeQueries(q store.Query) (url.Values, error) {
	var list []queryJSON

	for _, f := range q.Filters {
		values := make([]any, 0, len(f.Values))
		for _, v := range f.Values {
			values = append(values, wireValue(v))
		}
		list = append(list, queryJSON{Method: string(f.Op), Attribute: f.Attribute, Values: values})
	}
	for _, o := range q.Orders {
		method := "orderAsc"
		if o.Desc {
			method = "orderDesc"
		}
		list = append(list, queryJSON{Method: method, Attribute: o.Attribute})
	}
	if q.Limit > 0 {
		list = append(list, queryJSON{Method: "limit", Values: []any{q.Limit}})
	}
	if q.Offset > 0 {
		list = append(list, queryJSON{Method: "offset", Values: []any{q.Offset}})
	}

	params := url.Values{}
	for _, item := range list {
		raw, err := json.Marshal(item)
		if err != nil {
			return nil, fmt.Errorf("encode query %s: %w", item.Method, err)
		}
		params.Add("queries[]", string(raw))
	}
	return params, nil
}

func wireValue(v any) any {
	switch t := v.(type) {
	case time.Time:
		return store.FormatTime(t)
	case fmt.Stringer:
		return t.String()
	}
	return v
}
