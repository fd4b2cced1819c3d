package app

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
)

type HeaderKV map[string]string

// LoadHeadersFromFile reads a flat JSON object of header names to values.
// An empty path yields no headers.
func LoadHeadersFromFile(path string) (HeaderKV, error) {
	if path == "" {
		return HeaderKV{}, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read header file %s: %w", path, err)
	}

	var headers HeaderKV
	if err := json.Unmarshal(content, &headers); err != nil {
		return nil, fmt.Errorf("cannot unmarshal header file %s: %w", path, err)
	}

	return headers, nil
}

func (h HeaderKV) apply(req *http.Request) {
	for key, value := range h {
		req.Header.Set(key, value)
	}
}

func (h HeaderKV) clone() HeaderKV {
	out := make(HeaderKV, len(h))
	for key, value := range h {
		out[key] = value
	}

	return out
}
