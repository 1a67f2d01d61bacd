// Package render writes projection results to HTTP responses inside a
// {data, meta} envelope.
package render

import (
	"fmt"
	"net/http"

	json "github.com/goccy/go-json"

	"github.com/sinemacula/go-api-toolkit/resource"
)

// Envelope is the response wrapper around projected resources.
type Envelope struct {
	Data interface{} `json:"data"`
	Meta *Meta       `json:"meta,omitempty"`
}

// Meta carries collection metadata.
type Meta struct {
	Count int  `json:"count"`
	Limit *int `json:"limit,omitempty"`
}

// ErrorBody is the response wrapper for failures.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail names one failure.
type ErrorDetail struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// Renderer handles rendering of HTTP responses.
type Renderer struct {
	prettyPrint    bool
	defaultHeaders map[string]string
}

// NewRenderer creates a renderer. Pretty printing is off by default.
func NewRenderer() *Renderer {
	return &Renderer{
		defaultHeaders: make(map[string]string),
	}
}

// NewRendererWithPrettyPrint creates a renderer with indented JSON output.
func NewRendererWithPrettyPrint() *Renderer {
	r := NewRenderer()
	r.prettyPrint = true
	return r
}

// SetDefaultHeader sets a header applied to every response.
func (r *Renderer) SetDefaultHeader(key, value string) {
	r.defaultHeaders[key] = value
}

// Resource writes a single projection.
func (r *Renderer) Resource(w http.ResponseWriter, statusCode int, out *resource.OrderedMap) error {
	return r.JSON(w, statusCode, Envelope{Data: out})
}

// Collection writes a list of projections with a count in the meta block.
func (r *Renderer) Collection(w http.ResponseWriter, statusCode int, out []*resource.OrderedMap, limit *int) error {
	if out == nil {
		out = []*resource.OrderedMap{}
	}
	return r.JSON(w, statusCode, Envelope{
		Data: out,
		Meta: &Meta{Count: len(out), Limit: limit},
	})
}

// Error writes a failure envelope.
func (r *Renderer) Error(w http.ResponseWriter, statusCode int, message string) error {
	return r.JSON(w, statusCode, ErrorBody{
		Error: ErrorDetail{Status: statusCode, Message: message},
	})
}

// JSON renders any payload as a JSON response.
func (r *Renderer) JSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	for key, value := range r.defaultHeaders {
		w.Header().Set(key, value)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)

	encoder := json.NewEncoder(w)
	if r.prettyPrint {
		encoder.SetIndent("", "  ")
	}
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}
