package value

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// MarshalJSON encodes v in its wire form. Undefined encodes as null; the
// protocol layer carries undefinedness out of band.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// UnmarshalJSON decodes the wire form produced by MarshalJSON.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	decoded, err := fromDecoded(raw)
	if err != nil {
		return err
	}
	*v = decoded
	return nil
}

// fromDecoded is FromInterface plus json.Number handling, which only
// appears on the decode path.
func fromDecoded(x any) (Value, error) {
	switch t := x.(type) {
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Undefined(), fmt.Errorf("decode number %q: %w", t.String(), err)
		}
		return Number(f), nil
	case []any:
		arr := make([]Value, len(t))
		for i, el := range t {
			v, err := fromDecoded(el)
			if err != nil {
				return Undefined(), err
			}
			arr[i] = v
		}
		return Value{kind: KindArray, arr: arr}, nil
	case map[string]any:
		obj := make(map[string]Value, len(t))
		for k, el := range t {
			v, err := fromDecoded(el)
			if err != nil {
				return Undefined(), err
			}
			obj[k] = v
		}
		return Value{kind: KindObject, obj: obj}, nil
	default:
		return FromInterface(x)
	}
}
