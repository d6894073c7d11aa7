package secret

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// EncodePayload produces the sink representation of a payload: a JSON
// object with keys in byte order and no HTML escaping.
//
// Identical payloads always encode to identical bytes, so sink values can be
// compared across runs. Values are written verbatim.
func EncodePayload(payload map[string]string) (string, error) {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := encodeString(k)
		if err != nil {
			return "", fmt.Errorf("encode key %q: %w", k, err)
		}
		vb, err := encodeString(payload[k])
		if err != nil {
			return "", fmt.Errorf("encode value for %q: %w", k, err)
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.String(), nil
}

// DecodePayload parses a sink value produced by EncodePayload.
func DecodePayload(value string) (map[string]string, error) {
	out := map[string]string{}
	if err := json.Unmarshal([]byte(value), &out); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return out, nil
}

func encodeString(s string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
