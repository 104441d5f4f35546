package types

import "testing"

func TestDimensionKey_RoundTrip(t *testing.T) {
	key := DimensionKey{Values: []string{"chrome", "us", "en"}}

	decoded, err := DimensionKeyFromBytes(key.Bytes())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(decoded.Values) != 3 {
		t.Fatalf("expected 3 values, got %d", len(decoded.Values))
	}
	for i, v := range key.Values {
		if decoded.Values[i] != v {
			t.Errorf("value %d: expected %s, got %s", i, v, decoded.Values[i])
		}
	}
}

func TestDimensionKey_EmptyValues(t *testing.T) {
	key := DimensionKey{Values: []string{"", "us", ""}}
	decoded, err := DimensionKeyFromBytes(key.Bytes())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Values[0] != "" || decoded.Values[2] != "" {
		t.Error("empty values must round-trip")
	}
}

func TestDimensionKey_Truncated(t *testing.T) {
	data := DimensionKey{Values: []string{"chrome", "us"}}.Bytes()
	if _, err := DimensionKeyFromBytes(data[:len(data)-1]); err == nil {
		t.Error("truncated key should fail to decode")
	}
}

func TestDimensionKey_TrailingBytes(t *testing.T) {
	data := DimensionKey{Values: []string{"chrome"}}.Bytes()
	if _, err := DimensionKeyFromBytes(append(data, 0xff)); err == nil {
		t.Error("trailing bytes should fail to decode")
	}
}

func TestDimensionKey_ToMap(t *testing.T) {
	key := DimensionKey{Values: []string{"chrome", "us"}}

	m, err := key.ToMap([]string{"browser", "country"})
	if err != nil {
		t.Fatalf("to map: %v", err)
	}
	if m["browser"] != "chrome" || m["country"] != "us" {
		t.Errorf("unexpected map: %v", m)
	}

	if _, err := key.ToMap([]string{"browser"}); err == nil {
		t.Error("value/name count mismatch should fail")
	}
}
