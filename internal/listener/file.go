package listener

import (
	"fmt"
	"os"
	"sync"

	"github.com/chtzvt/forestbatch/internal/batch"
	"github.com/chtzvt/forestbatch/internal/idseq"
)

// FileListener appends each delivered identifier to a file, one per
// line, optionally compressed via idseq.NewCompressWriter. A batcher
// run is a single output stream, so this listener opens its file once,
// lazily, on first use.
type fileListener struct {
	mu          sync.Mutex
	path        string
	compression string
	f           *os.File
	w           idseq.CompressWriter
}

func newFileListener(opts map[string]interface{}) (SuccessListener, error) {
	path := toString(opts["path"], "")
	if path == "" {
		return nil, fmt.Errorf("listener: file listener requires non-empty \"path\" option")
	}
	fl := &fileListener{
		path:        path,
		compression: toString(opts["compression"], "none"),
	}
	return fl.deliver, nil
}

func (fl *fileListener) deliver(b batch.Batch) error {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.f == nil {
		f, err := os.OpenFile(fl.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("listener: open %s: %w", fl.path, err)
		}
		w, err := idseq.NewCompressWriter(f, fl.compression)
		if err != nil {
			f.Close()
			return err
		}
		fl.f = f
		fl.w = w
	}

	for _, id := range b.IDs {
		if _, err := fmt.Fprintln(fl.w, id); err != nil {
			return fmt.Errorf("listener: write %s: %w", fl.path, err)
		}
	}
	return nil
}

func init() {
	Register("file", newFileListener)
}
