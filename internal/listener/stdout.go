package listener

import (
	"fmt"
	"io"
	"os"

	"github.com/chtzvt/forestbatch/internal/batch"
)

// StdoutListener writes one identifier per line to w. The registered
// "stdout" listener (newStdoutListener) writes to os.Stdout instead and
// prefixes each line with the shard ID when the "verbose" option is
// truthy. Adapted from the teacher's stdout_sink.go writer.
func StdoutListener(w io.Writer) SuccessListener {
	return func(b batch.Batch) error {
		for _, id := range b.IDs {
			if _, err := fmt.Fprintln(w, id); err != nil {
				return err
			}
		}
		return nil
	}
}

func newStdoutListener(opts map[string]interface{}) (SuccessListener, error) {
	verbose := toBool(opts["verbose"])
	return func(b batch.Batch) error {
		for _, id := range b.IDs {
			if verbose {
				if _, err := fmt.Fprintf(os.Stdout, "%s\t%s\n", b.Shard.ID, id); err != nil {
					return err
				}
				continue
			}
			if _, err := fmt.Fprintln(os.Stdout, id); err != nil {
				return err
			}
		}
		return nil
	}, nil
}

func init() {
	Register("stdout", newStdoutListener)
}
