package api

import (
	"bytes"
	"encoding/json"
	"io"
)

func readCapped(r io.Reader, max int64) ([]byte, error) {
	var buf bytes.Buffer
	_, err := io.Copy(&buf, io.LimitReader(r, max))
	return buf.Bytes(), err
}

// decodeAlertList accepts both the bare-array and the paginated
// {"results": [...]} response shapes.
func decodeAlertList(raw []byte) ([]Alert, error) {
	dec := func(b []byte) ([]Alert, error) {
		var out []Alert
		d := json.NewDecoder(bytes.NewReader(b))
		d.UseNumber()
		if err := d.Decode(&out); err != nil {
			return nil, err
		}
		return out, nil
	}

	if out, err := dec(raw); err == nil {
		return out, nil
	}

	var wrapper struct {
		Results json.RawMessage `json:"results"`
	}
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return nil, &Error{Kind: KindMalformed, Detail: "alert list is not JSON", cause: err}
	}
	if wrapper.Results == nil {
		return nil, &Error{Kind: KindMalformed, Detail: "alert list has no recognizable shape"}
	}
	out, err := dec(wrapper.Results)
	if err != nil {
		return nil, &Error{Kind: KindMalformed, Detail: "alert list results are malformed", cause: err}
	}
	return out, nil
}

// decodeStockList accepts a bare array, or a dict wrapping the list under
// "results"/"stocks"/"data", or (last resort) a dict whose object values are
// the stock records.
func decodeStockList(raw []byte) ([]Stock, error) {
	dec := func(b []byte) ([]Stock, error) {
		var out []Stock
		d := json.NewDecoder(bytes.NewReader(b))
		d.UseNumber()
		if err := d.Decode(&out); err != nil {
			return nil, err
		}
		return out, nil
	}

	if out, err := dec(raw); err == nil {
		return out, nil
	}

	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, &Error{Kind: KindMalformed, Detail: "stock list is not JSON", cause: err}
	}
	for _, key := range []string{"results", "stocks", "data"} {
		if inner, ok := m[key]; ok {
			out, err := dec(inner)
			if err != nil {
				return nil, &Error{Kind: KindMalformed, Detail: "stock list under " + key + " is malformed", cause: err}
			}
			return out, nil
		}
	}

	// Dict-of-records fallback: keep object values, drop everything else.
	out := make([]Stock, 0, len(m))
	for _, v := range m {
		var s Stock
		d := json.NewDecoder(bytes.NewReader(v))
		d.UseNumber()
		if err := d.Decode(&s); err == nil && s.Symbol != "" {
			out = append(out, s)
		}
	}
	return out, nil
}
