package store

import (
	"encoding/json"
	"fmt"
)

// marshalStages serializes a stage-name list to JSON TEXT for the
// flux_types.required_stages / optional_stages columns.
func marshalStages(stages []string) (string, error) {
	if stages == nil {
		stages = []string{}
	}
	data, err := json.Marshal(stages)
	if err != nil {
		return "", fmt.Errorf("marshal stages: %w", err)
	}
	return string(data), nil
}

func unmarshalStages(data string) ([]string, error) {
	if data == "" {
		return []string{}, nil
	}
	var stages []string
	if err := json.Unmarshal([]byte(data), &stages); err != nil {
		return nil, fmt.Errorf("unmarshal stages: %w", err)
	}
	if stages == nil {
		stages = []string{}
	}
	return stages, nil
}

// marshalParsedData serializes a LogEntry's extracted field-role maps to
// the JSON stored in the parsed_data column.
func marshalParsedData(pd ParsedData) (string, error) {
	if pd.IdentifierFields == nil {
		pd.IdentifierFields = map[string]string{}
	}
	if pd.PayloadFields == nil {
		pd.PayloadFields = map[string]string{}
	}
	if pd.ReferenceLinks == nil {
		pd.ReferenceLinks = map[string]string{}
	}
	data, err := json.Marshal(pd)
	if err != nil {
		return "", fmt.Errorf("marshal parsed_data: %w", err)
	}
	return string(data), nil
}

func unmarshalParsedData(data string) (ParsedData, error) {
	var pd ParsedData
	if data == "" {
		return ParsedData{IdentifierFields: map[string]string{}, PayloadFields: map[string]string{}, ReferenceLinks: map[string]string{}}, nil
	}
	if err := json.Unmarshal([]byte(data), &pd); err != nil {
		return ParsedData{}, fmt.Errorf("unmarshal parsed_data: %w", err)
	}
	return pd, nil
}
