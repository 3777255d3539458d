package monitor

import (
	"encoding/json"
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// decodePayload converts a bus payload into T. Hosts publish typed values,
// decoded JSON objects (map[string]any) or raw JSON.
func decodePayload[T any](payload any) (T, error) {
	var out T
	switch v := payload.(type) {
	case T:
		return v, nil
	case *T:
		if v == nil {
			return out, fmt.Errorf("nil %T payload", v)
		}
		return *v, nil
	case json.RawMessage:
		err := json.Unmarshal(v, &out)
		return out, err
	case []byte:
		err := json.Unmarshal(v, &out)
		return out, err
	case nil:
		return out, nil
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           &out,
	})
	if err != nil {
		return out, err
	}
	if err := dec.Decode(payload); err != nil {
		return out, fmt.Errorf("failed to decode %T payload: %w", payload, err)
	}
	return out, nil
}
