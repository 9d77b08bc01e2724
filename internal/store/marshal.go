package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/scorelog/internal/model"
)

// marshalPayload stores a payload as sorted-key JSON TEXT.
func marshalPayload(p model.Object) (string, error) {
	if p == nil {
		return "{}", nil
	}
	data, err := p.MarshalJSON()
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	return string(data), nil
}

// unmarshalPayload parses payload TEXT. Large integers survive because
// parsing goes through json.Number.
func unmarshalPayload(data string) (model.Object, error) {
	if data == "" || data == "{}" {
		return nil, nil
	}
	var obj model.Object
	if err := json.Unmarshal([]byte(data), &obj); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	return obj, nil
}

func marshalSnapshot(s Snapshot) (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}
	return string(data), nil
}

func unmarshalSnapshot(data string) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return Snapshot{}, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return s, nil
}
