package value

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// MarshalJSON encodes the object with keys in insertion order.
func (o *Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte('{')

	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}

		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}

		vb, err := json.Marshal(o.vals[k])
		if err != nil {
			return nil, fmt.Errorf("value: encoding key %q: %w", k, err)
		}

		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}

	buf.WriteByte('}')

	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, keeping document key order.
func (o *Object) UnmarshalJSON(data []byte) error {
	v, err := DecodeJSON(data)
	if err != nil {
		return err
	}

	obj, ok := v.(*Object)
	if !ok {
		return fmt.Errorf("value: expected JSON object, got %s", Kind(v))
	}

	*o = *obj

	return nil
}

// MarshalJSON encodes the array elements.
func (a *Array) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.items)
}

// DecodeJSON decodes a single JSON document into containers and primitives.
// Object key order follows the document; numbers decode as float64.
func DecodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	v, err := decodeJSONValue(dec)
	if err != nil {
		return nil, fmt.Errorf("value: decoding JSON: %w", err)
	}

	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("value: decoding JSON: trailing data after document")
	}

	return v, nil
}

func decodeJSONValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	delim, ok := tok.(json.Delim)
	if !ok {
		return tok, nil
	}

	switch delim {
	case '{':
		o := NewObject()

		for dec.More() {
			kt, err := dec.Token()
			if err != nil {
				return nil, err
			}

			key, _ := kt.(string)

			v, err := decodeJSONValue(dec)
			if err != nil {
				return nil, err
			}

			o.Set(key, v)
		}

		if _, err := dec.Token(); err != nil {
			return nil, err
		}

		return o, nil
	case '[':
		a := NewArray()

		for dec.More() {
			v, err := decodeJSONValue(dec)
			if err != nil {
				return nil, err
			}

			a.Append(v)
		}

		if _, err := dec.Token(); err != nil {
			return nil, err
		}

		return a, nil
	default:
		return nil, fmt.Errorf("unexpected delimiter %q", delim)
	}
}
