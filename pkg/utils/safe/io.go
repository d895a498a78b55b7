package safe

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"

	"github.com/db4dd/db4dd/pkg/utils/logging"
)

// Close closes closer and logs a failure. A nil closer is ignored.
func Close(ctx context.Context, closer io.Closer) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		logging.From(ctx).Warn("failed to close", "error", err.Error())
	}
}

// Write writes data to w and logs a failure, e.g. a client that went away mid-response.
// A nil writer is ignored.
func Write(ctx context.Context, w io.Writer, data []byte) {
	if w == nil {
		return
	}
	if _, err := w.Write(data); err != nil {
		logging.From(ctx).Warn("failed to write response", "error", err.Error(), "bytes", len(data))
	}
}

// Remove deletes path and logs a failure. A path that no longer exists is not a failure.
func Remove(ctx context.Context, path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logging.From(ctx).Warn("failed to remove file", "error", err.Error(), "path", path)
	}
}
