package types

import (
	"encoding/binary"
	"fmt"
)

// DimensionKey is the dense per-record encoding of all dimension values in
// configured dimension order. External batch drivers hand the builder
// (dimension-key, time-series) pairs keyed this way; the builder decodes the
// key back into per-dimension strings before insertion.
//
// Wire format: uvarint value count, then for each value a uvarint byte
// length followed by the raw UTF-8 bytes.
type DimensionKey struct {
	Values []string
}

// Bytes encodes the key.
func (k DimensionKey) Bytes() []byte {
	size := binary.MaxVarintLen64
	for _, v := range k.Values {
		size += binary.MaxVarintLen64 + len(v)
	}
	buf := make([]byte, 0, size)

	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], uint64(len(k.Values)))
	buf = append(buf, tmp[:n]...)

	for _, v := range k.Values {
		n = binary.PutUvarint(tmp[:], uint64(len(v)))
		buf = append(buf, tmp[:n]...)
		buf = append(buf, v...)
	}
	return buf
}

// DimensionKeyFromBytes decodes a key produced by Bytes.
func DimensionKeyFromBytes(data []byte) (DimensionKey, error) {
	count, n := binary.Uvarint(data)
	if n <= 0 {
		return DimensionKey{}, fmt.Errorf("dimension key: bad value count")
	}
	data = data[n:]

	values := make([]string, 0, count)
	for i := uint64(0); i < count; i++ {
		length, n := binary.Uvarint(data)
		if n <= 0 {
			return DimensionKey{}, fmt.Errorf("dimension key: bad length for value %d", i)
		}
		data = data[n:]
		if uint64(len(data)) < length {
			return DimensionKey{}, fmt.Errorf("dimension key: truncated value %d", i)
		}
		values = append(values, string(data[:length]))
		data = data[length:]
	}
	if len(data) != 0 {
		return DimensionKey{}, fmt.Errorf("dimension key: %d trailing bytes", len(data))
	}
	return DimensionKey{Values: values}, nil
}

// ToMap pairs the key's values with the given dimension names.
func (k DimensionKey) ToMap(dimensionNames []string) (map[string]string, error) {
	if len(k.Values) != len(dimensionNames) {
		return nil, fmt.Errorf("dimension key has %d values, schema has %d dimensions",
			len(k.Values), len(dimensionNames))
	}
	out := make(map[string]string, len(dimensionNames))
	for i, name := range dimensionNames {
		out[name] = k.Values[i]
	}
	return out, nil
}
