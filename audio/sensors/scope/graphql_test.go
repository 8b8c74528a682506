package scope

import (
	"encoding/json"
	"testing"
)

func TestGraphql(t *testing.T) {
	s := newTestScope(t, 2, 100, 48000, 1, true)

	query := `{
		params {
			time
			ymin
			smoothing
		}
		columns
		strategy
	}`
	res := s.Query(query, nil)
	if len(res.Errors) > 0 {
		t.Fatal(res.Errors)
	}

	data := struct {
		Data struct {
			Params   Parameters `json:"params"`
			Columns  int        `json:"columns"`
			Strategy string     `json:"strategy"`
		} `json:"data"`
	}{}
	bs, _ := json.Marshal(res)
	if err := json.Unmarshal(bs, &data); err != nil {
		t.Fatal(err)
	}
	if data.Data.Params.Time != 1 || data.Data.Params.YMin != -54 || !data.Data.Params.Smoothing {
		t.Fatal(string(bs))
	}
	if data.Data.Columns != 100 || data.Data.Strategy != "minmax" {
		t.Fatal(string(bs))
	}

	mut := `mutation {
		params(params: {time: 0.5, smoothing: false, gain1: 250}) {
			time
			gain1
		}
		columns(n: 64)
	}`
	res = s.Query(mut, nil)
	if len(res.Errors) > 0 {
		t.Fatal(res.Errors)
	}
	p := s.Params()
	if p.Time != 0.5 || p.Smoothing || p.Gain1 != MaxGain {
		t.Fatal("params not as expected after mut", p)
	}
	if s.Columns() != 64 {
		t.Fatal("columns not as expected after mut", s.Columns())
	}

	vars := map[string]interface{}{"p": map[string]interface{}{"freeze": true}}
	res = s.Query(`mutation ($p: inputParams) { params(params: $p) { freeze } }`, vars)
	if len(res.Errors) > 0 {
		t.Fatal(res.Errors)
	}
	if !s.Params().Freeze {
		t.Fatal("freeze not set through variables")
	}

	if res := s.Query(`{ nope }`, nil); len(res.Errors) == 0 {
		t.Fatal("expected an error for an unknown field")
	}
}
