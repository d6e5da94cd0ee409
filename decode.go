package remoteresource

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Decoder turns an accepted response body into the value exposed by
// [Resource.Data].
//
// A Decoder error turns the poll into an accepted failure. Decoders must not
// retain body; the slice is owned by the poll that produced it.
type Decoder[T any] func(body []byte) (T, error)

// JSONDecoder returns a [Decoder] that unmarshals the body as JSON into T.
// It is the decoder used by [New].
func JSONDecoder[T any]() Decoder[T] {
	return func(body []byte) (T, error) {
		var v T
		if err := json.Unmarshal(body, &v); err != nil {
			return v, err
		}
		return v, nil
	}
}

// RawDecoder is a [Decoder] that exposes the body bytes unchanged.
var RawDecoder Decoder[[]byte] = func(body []byte) ([]byte, error) {
	return append([]byte(nil), body...), nil
}

// StringDecoder is a [Decoder] that exposes the body as a string.
var StringDecoder Decoder[string] = func(body []byte) (string, error) {
	return string(body), nil
}

// JSONOrTextDecoder is a [Decoder] that keeps valid JSON bodies as-is and
// wraps anything else in a JSON string, so that every body can be embedded
// in a JSON document.
var JSONOrTextDecoder Decoder[json.RawMessage] = func(body []byte) (json.RawMessage, error) {
	if len(body) > 0 && json.Valid(body) {
		return append(json.RawMessage(nil), body...), nil
	}
	return json.Marshal(string(body))
}

// JSONFieldDecoder returns a [Decoder] that selects a single field of a JSON
// body using dot notation to navigate nested objects.
//
// For example, "data.items" on {"data": {"items": [1, 2]}} yields [1,2].
// An empty path selects the whole document.
//
// Returns a decode error if the body is not JSON or the path does not exist.
func JSONFieldDecoder(path string) Decoder[json.RawMessage] {
	var parts []string
	if path != "" {
		parts = strings.Split(path, ".")
	}

	return func(body []byte) (json.RawMessage, error) {
		current := json.RawMessage(body)
		for i, part := range parts {
			var obj map[string]json.RawMessage
			if err := json.Unmarshal(current, &obj); err != nil {
				if i == 0 {
					return nil, err
				}
				return nil, fmt.Errorf("field %q is not an object", strings.Join(parts[:i], "."))
			}
			next, ok := obj[part]
			if !ok {
				return nil, fmt.Errorf("field %q not found", strings.Join(parts[:i+1], "."))
			}
			current = next
		}
		if !json.Valid(current) {
			return nil, errors.New("body is not valid JSON")
		}
		return append(json.RawMessage(nil), current...), nil
	}
}
