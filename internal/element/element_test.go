// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package element

import (
	"encoding/json"
	"testing"
)

func TestPropertyValueJSONRoundTrip(t *testing.T) {
	cases := []PropertyValue{
		Bool(true),
		Int(-42),
		UInt(42),
		Float(3.5),
		String("ball"),
		String(""),
	}
	for _, v := range cases {
		data, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal %v: %v", v, err)
		}
		var got PropertyValue
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("unmarshal %s: %v", data, err)
		}
		if !Equal(v, got) {
			t.Errorf("round trip mismatch: %v != %v (json=%s)", v, got, data)
		}
	}
}

func TestPropertyValueJSONInElementMap(t *testing.T) {
	el := NewElement("src", "videotestsrc")
	el.Properties["pattern"] = String("ball")
	el.Properties["is-live"] = Bool(true)

	data, err := json.Marshal(el)
	if err != nil {
		t.Fatal(err)
	}

	var got Element
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	pattern, ok := got.Properties["pattern"].String()
	if !ok || pattern != "ball" {
		t.Errorf("expected pattern=ball, got %v (ok=%v)", got.Properties["pattern"], ok)
	}
}
