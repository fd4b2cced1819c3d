package app

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

type Shape string

const (
	ShapeEmpty  Shape = "empty"
	ShapeObject Shape = "object"
	ShapeArray  Shape = "array"
)

// Response is a fully read HTTP response. Non-2xx statuses are ordinary
// responses; only transport failures surface as errors.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

func (r *Response) OK() bool {
	return IsSuccess(r.Status)
}

// JSON decodes the body keeping numbers as json.Number so integers survive.
func (r *Response) JSON() (any, error) {
	return decodeJSON(r.Body)
}

func (r *Response) Object() (map[string]any, error) {
	value, err := r.JSON()
	if err != nil {
		return nil, err
	}

	obj, ok := value.(map[string]any)
	if !ok {
		return nil, failf(ErrUnexpectedType, "expected object, got %s", kindOf(value))
	}

	return obj, nil
}

func (r *Response) Objects() ([]map[string]any, error) {
	value, err := r.JSON()
	if err != nil {
		return nil, err
	}

	return asObjects(value)
}

// Shape checks that a non-empty body is an object or an array of objects.
func (r *Response) Shape() (Shape, error) {
	if len(bytes.TrimSpace(r.Body)) == 0 {
		return ShapeEmpty, nil
	}

	value, err := r.JSON()
	if err != nil {
		return "", err
	}

	switch v := value.(type) {
	case map[string]any:
		return ShapeObject, nil
	case []any:
		if _, err := asObjects(v); err != nil {
			return "", fmt.Errorf("%w: %v", ErrUnexpectedShape, err)
		}

		return ShapeArray, nil
	default:
		return "", fmt.Errorf("%w: got %s", ErrUnexpectedShape, kindOf(value))
	}
}

func asObjects(value any) ([]map[string]any, error) {
	items, ok := value.([]any)
	if !ok {
		return nil, failf(ErrUnexpectedType, "expected array, got %s", kindOf(value))
	}

	objects := make([]map[string]any, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, failf(ErrUnexpectedType, "item %d: expected object, got %s", i, kindOf(item))
		}
		objects = append(objects, obj)
	}

	return objects, nil
}

func decodeJSON(body []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, &JSONDecodeError{Body: body, Err: err}
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, &JSONDecodeError{Body: body, Err: fmt.Errorf("trailing data after JSON value")}
	}

	return value, nil
}
