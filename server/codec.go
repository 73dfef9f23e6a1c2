package server

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"
)

// toStruct converts any JSON-encodable value to a protobuf Struct by way of
// its JSON form, so typed values (messages, records) arrive as plain objects.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode response: %w", err)
	}

	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("failed to encode response: %w", err)
	}
	return structpb.NewStruct(fields)
}

// fromStruct decodes a protobuf Struct into v through JSON.
func fromStruct(s *structpb.Struct, v any) error {
	data, err := json.Marshal(s.AsMap())
	if err != nil {
		return fmt.Errorf("failed to decode message: %w", err)
	}
	return json.Unmarshal(data, v)
}

func stringField(s *structpb.Struct, name string) string {
	if s == nil {
		return ""
	}
	if v, ok := s.GetFields()[name]; ok {
		return v.GetStringValue()
	}
	return ""
}

func intField(s *structpb.Struct, name string) int {
	if s == nil {
		return 0
	}
	if v, ok := s.GetFields()[name]; ok {
		return int(v.GetNumberValue())
	}
	return 0
}
