package api

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"
)

// encode converts any JSON-marshalable value into a Struct. Values that are
// not JSON objects are wrapped as {"value": v}.
func encode(v any) (*structpb.Struct, error) {
	if v == nil {
		return &structpb.Struct{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		var raw any
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("encode: %w", err)
		}
		m = map[string]any{"value": raw}
	}
	return structpb.NewStruct(m)
}

// decode fills v from a Struct.
func decode(s *structpb.Struct, v any) error {
	if s == nil {
		return nil
	}
	data, err := json.Marshal(s.AsMap())
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}
