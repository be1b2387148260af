// Package schema serves JSON schemas of the request and response bodies,
// generated from the Go types with github.com/swaggest/jsonschema-go.
package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/swaggest/jsonschema-go"

	"github.com/pders01/repour/internal/models"
	"github.com/pders01/repour/internal/urltranslate"
)

// Schema labels
const (
	LabelCaptureRequest    = "capture-request"
	LabelCaptureResponse   = "capture-response"
	LabelFlattenRequest    = "flatten-request"
	LabelFlattenResponse   = "flatten-response"
	LabelTranslateRequest  = "translate-request"
	LabelTranslateResponse = "translate-response"
	LabelError             = "error"
	LabelValidationError   = "validation-error"
)

// ErrUnknownLabel is returned for a label that was never registered
var ErrUnknownLabel = errors.New("unknown schema label")

// Registry maps labels to types and caches their generated schemas
type Registry struct {
	mu    sync.RWMutex
	types map[string]any
	cache map[string]string
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		types: make(map[string]any),
		cache: make(map[string]string),
	}
}

// Default returns a registry holding every API body
func Default() *Registry {
	r := NewRegistry()
	r.Register(LabelCaptureRequest, models.CaptureRequest{})
	r.Register(LabelCaptureResponse, models.CaptureResponse{})
	r.Register(LabelFlattenRequest, models.FlattenRequest{})
	r.Register(LabelFlattenResponse, models.FlattenResponse{})
	r.Register(LabelTranslateRequest, models.TranslateRequest{})
	r.Register(LabelTranslateResponse, urltranslate.Translation{})
	r.Register(LabelError, models.ErrorResponse{})
	r.Register(LabelValidationError, []models.ValidationError{})
	return r
}

// Register adds a type. Its schema is generated on first Get.
func (r *Registry) Register(label string, v any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[label] = v
	delete(r.cache, label)
}

// Get returns the JSON schema for label
func (r *Registry) Get(label string) (string, error) {
	r.mu.RLock()
	cached, ok := r.cache[label]
	v, registered := r.types[label]
	r.mu.RUnlock()
	if ok {
		return cached, nil
	}
	if !registered {
		return "", fmt.Errorf("%w: %s", ErrUnknownLabel, label)
	}

	generated, err := GenerateJSON(v)
	if err != nil {
		return "", fmt.Errorf("failed to generate schema for %s: %w", label, err)
	}

	r.mu.Lock()
	r.cache[label] = generated
	r.mu.Unlock()
	return generated, nil
}

// Labels returns the registered labels in sorted order
func (r *Registry) Labels() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	labels := make([]string, 0, len(r.types))
	for label := range r.types {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// GenerateJSON reflects v into a JSON schema with all definitions inlined
func GenerateJSON(v any) (string, error) {
	reflector := jsonschema.Reflector{}
	s, err := reflector.Reflect(v, jsonschema.InlineRefs)
	if err != nil {
		return "", err
	}

	data, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
