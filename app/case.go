package app

import (
	"encoding/json"
	"fmt"
	"os"
)

// Case is one scenario: a single request and the expectations on its
// response. Path may hold range patterns, in which case every expanded path is
// checked with the same expectations.
type Case struct {
	Name          string          `json:"name"`
	Method        Method          `json:"method"`
	Path          string          `json:"path"`
	Body          json.RawMessage `json:"body,omitempty"`
	Headers       HeaderKV        `json:"headers,omitempty"`
	Expect        Expectation     `json:"expect"`
	PatternPrefix *string         `json:"patternPrefix,omitempty"`
	PatternSuffix *string         `json:"patternSuffix,omitempty"`
}

// Expectation lists the checks applied to a response. Zero values skip a
// check. For array bodies Fields, Types and Values apply to every item.
type Expectation struct {
	// Status is the exact status code; 0 accepts any 2xx.
	Status int                        `json:"status,omitempty"`
	Fields []string                   `json:"fields,omitempty"`
	Types  map[string]Kind            `json:"types,omitempty"`
	Values map[string]json.RawMessage `json:"values,omitempty"`
	// Count is the exact number of items of an array body.
	Count *int `json:"count,omitempty"`
	// EchoBody requires every field of the request body to come back unchanged.
	EchoBody bool `json:"echoBody,omitempty"`
	// EqualBody requires the response body to equal the request body.
	EqualBody bool `json:"equalBody,omitempty"`
	// MatchPathID requires body.id to equal the last path segment.
	MatchPathID bool `json:"matchPathId,omitempty"`
	// Idempotent repeats the request and requires a byte-identical body.
	Idempotent bool `json:"idempotent,omitempty"`
}

type Cases struct {
	Cases []Case `json:"cases"`
}

func (c Case) request(path string) Request {
	r := Request{
		Method:  c.Method,
		Path:    path,
		Headers: c.Headers,
	}
	if len(c.Body) > 0 {
		r.Body = c.Body
	}

	return r
}

func (c Case) label() string {
	if c.Name != "" {
		return c.Name
	}

	return fmt.Sprintf("%s %s", c.Method, c.Path)
}

func LoadCasesFromFile(path string) (*Cases, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s file: %w", path, err)
	}

	var cases *Cases
	if err := json.Unmarshal(file, &cases); err != nil {
		return nil, fmt.Errorf("cannot unmarshal %s file: %w", path, err)
	}
	if cases == nil {
		return nil, fmt.Errorf("%s: %w", path, ErrNoCasesDefined)
	}

	return cases, nil
}

// IntPtr is a small helper for building Expectation.Count literals.
func IntPtr(i int) *int {
	return &i
}
