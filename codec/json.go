package codec

import (
	"encoding/json"
	"fmt"
)

func decodeJSON(m *Map, src []byte) (interface{}, error) {
	return string(src), nil
}

func decodeJSONB(m *Map, src []byte) (interface{}, error) {
	if len(src) == 0 {
		return nil, fmt.Errorf("jsonb too short")
	}
	if src[0] != 1 {
		return nil, fmt.Errorf("unknown jsonb version number %d", src[0])
	}

	return string(src[1:]), nil
}

func encodeJSON(m *Map, dst []byte, v interface{}) ([]byte, error) {
	b, err := jsonBytes(v)
	if err != nil {
		return nil, err
	}
	return append(dst, b...), nil
}

func encodeJSONB(m *Map, dst []byte, v interface{}) ([]byte, error) {
	b, err := jsonBytes(v)
	if err != nil {
		return nil, err
	}
	dst = append(dst, 1)
	return append(dst, b...), nil
}

func jsonBytes(v interface{}) ([]byte, error) {
	switch v := v.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	case json.RawMessage:
		return v, nil
	default:
		return json.Marshal(v)
	}
}
