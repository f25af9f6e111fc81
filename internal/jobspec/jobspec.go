// Package jobspec defines the on-disk description of a batcher run,
// consumed by cmd/forestbatchctl: a query- or iterator-mode batcher job
// with named listeners.
package jobspec

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chtzvt/forestbatch/internal/listener"
)

// JobSpec is the top-level on-disk job description.
type JobSpec struct {
	Version string  `json:"version"`
	Note    string  `json:"note,omitempty"`
	Name    string  `json:"name"`
	Query   *Query  `json:"query,omitempty"`
	Sequence *Sequence `json:"sequence,omitempty"`
	Options Options `json:"options"`
}

// Query configures the server-query (C7) variant.
type Query struct {
	Definition string `json:"definition"`
}

// Sequence configures the iterator (C8) variant: a file-backed lazy
// identifier sequence.
type Sequence struct {
	Path        string `json:"path"`
	Compression string `json:"compression,omitempty"`
}

// Options mirrors the engine's pre-start configuration surface.
type Options struct {
	PageSize       int               `json:"page_size"`
	ThreadCount    int               `json:"thread_count,omitempty"`
	SnapshotMode   bool              `json:"snapshot_mode,omitempty"`
	SuccessListeners []listener.Config `json:"success_listeners"`
	FailureListeners []listener.Config `json:"failure_listeners,omitempty"`
}

// LoadFromFile reads and validates a JobSpec from a JSON file on disk.
func LoadFromFile(path string) (*JobSpec, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}

// Load reads and validates a JobSpec from r.
func Load(r io.Reader) (*JobSpec, error) {
	var js JobSpec
	dec := json.NewDecoder(r)
	if err := dec.Decode(&js); err != nil {
		return nil, err
	}
	if err := js.Validate(); err != nil {
		return nil, err
	}
	return &js, nil
}

// Validate checks required fields are present, mirroring
// JobSpec.Validate missing-field accumulation pattern.
func (j *JobSpec) Validate() error {
	var missing []string

	if j.Version == "" {
		missing = append(missing, "version")
	}
	if j.Query == nil && j.Sequence == nil {
		missing = append(missing, "query or sequence")
	}
	if j.Query != nil && j.Sequence != nil {
		missing = append(missing, "query and sequence are mutually exclusive")
	}
	if j.Query != nil && j.Query.Definition == "" {
		missing = append(missing, "query.definition")
	}
	if j.Sequence != nil && j.Sequence.Path == "" {
		missing = append(missing, "sequence.path")
	}
	if j.Options.PageSize < 0 {
		missing = append(missing, "options.page_size")
	}
	if len(j.Options.SuccessListeners) == 0 {
		missing = append(missing, "options.success_listeners")
	}

	if len(missing) > 0 {
		return fmt.Errorf("jobspec: missing/invalid fields: %s", strings.Join(missing, ", "))
	}
	return nil
}
