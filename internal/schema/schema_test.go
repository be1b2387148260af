package schema

import (
	"encoding/json"
	"errors"
	"testing"
)

func parse(t *testing.T, s string) map[string]any {
	t.Helper()
	var parsed map[string]any
	if err := json.Unmarshal([]byte(s), &parsed); err != nil {
		t.Fatalf("generated schema is not valid JSON: %v", err)
	}
	return parsed
}

func TestCaptureRequestSchema(t *testing.T) {
	s, err := Default().Get(LabelCaptureRequest)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	parsed := parse(t, s)

	if parsed["type"] != "object" {
		t.Errorf("expected type=object, got %v", parsed["type"])
	}
	if parsed["additionalProperties"] != false {
		t.Errorf("expected additionalProperties=false, got %v", parsed["additionalProperties"])
	}

	required := map[string]bool{}
	for _, r := range parsed["required"].([]any) {
		required[r.(string)] = true
	}
	for _, field := range []string{"dir", "operation", "description", "url"} {
		if !required[field] {
			t.Errorf("expected %q to be required", field)
		}
	}
	if required["tag_name"] {
		t.Error("tag_name should be optional")
	}

	props := parsed["properties"].(map[string]any)
	url, ok := props["url"].(map[string]any)
	if !ok {
		t.Fatalf("expected inlined url schema, got %T", props["url"])
	}
	if _, ok := url["properties"].(map[string]any)["readwrite"]; !ok {
		t.Error("url schema is missing readwrite")
	}
}

func TestValidationErrorSchemaIsArray(t *testing.T) {
	s, err := Default().Get(LabelValidationError)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if parse(t, s)["type"] != "array" {
		t.Errorf("expected an array schema: %s", s)
	}
}

func TestGetCaches(t *testing.T) {
	r := Default()
	first, err := r.Get(LabelError)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	second, _ := r.Get(LabelError)
	if first != second {
		t.Error("cached schema differs")
	}
}

func TestUnknownLabel(t *testing.T) {
	_, err := Default().Get("pull")
	if !errors.Is(err, ErrUnknownLabel) {
		t.Errorf("expected ErrUnknownLabel, got %v", err)
	}
}

func TestLabelsSorted(t *testing.T) {
	labels := Default().Labels()
	if len(labels) != 8 {
		t.Fatalf("expected 8 labels, got %d", len(labels))
	}
	for i := 1; i < len(labels); i++ {
		if labels[i-1] > labels[i] {
			t.Errorf("labels not sorted: %v", labels)
		}
	}
}
