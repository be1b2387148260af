package models

import (
	"fmt"
	"strings"
)

// Operation names the kind of request a capture belongs to
type Operation string

const (
	OperationPull   Operation = "pull"
	OperationAdjust Operation = "adjust"
)

// ParseOperation accepts an operation name in any case
func ParseOperation(s string) (Operation, error) {
	op := Operation(strings.ToLower(strings.TrimSpace(s)))
	switch op {
	case OperationPull, OperationAdjust:
		return op, nil
	default:
		return "", fmt.Errorf("invalid operation: %q (must be: pull, adjust)", s)
	}
}

// RepositoryURL holds the read-write and read-only addresses of one repository
type RepositoryURL struct {
	ReadWrite string `json:"readwrite" required:"true"`
	ReadOnly  string `json:"readonly" required:"true"`
}

// SnapshotResult is the reference returned for a capture.
// A nil *SnapshotResult means nothing new was captured.
type SnapshotResult struct {
	Tag    string        `json:"tag"`
	Commit string        `json:"commit"`
	URL    RepositoryURL `json:"url"`
}

// SubmoduleEntry is one submodule declared in .gitmodules
type SubmoduleEntry struct {
	Name string `json:"name"`
	Path string `json:"path"`
	URL  string `json:"url,omitempty"`
}
