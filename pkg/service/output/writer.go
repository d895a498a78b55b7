package output

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/db4dd/db4dd/pkg/utils/safe"
	"github.com/m-mizutani/goerr/v2"
)

const gcsScheme = "gs://"

// Writer stores rendered files and returns where each one was written
type Writer interface {
	Write(ctx context.Context, name string, data []byte) (string, error)
	Close() error
}

// NewWriter returns a GCS writer for gs://bucket/prefix destinations, otherwise a local directory writer
func NewWriter(ctx context.Context, dest string) (Writer, error) {
	if strings.HasPrefix(dest, gcsScheme) {
		return NewGCSWriter(ctx, dest)
	}
	return NewDirWriter(dest)
}

// DirWriter writes files into a local directory. Each file is written to a temporary
// name and renamed, so readers never observe a partial summary.
type DirWriter struct {
	dir string
}

func NewDirWriter(dir string) (*DirWriter, error) {
	if dir == "" {
		return nil, goerr.New("output directory is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, goerr.Wrap(err, "failed to create output directory", goerr.V("dir", dir))
	}
	return &DirWriter{dir: dir}, nil
}

func (w *DirWriter) Write(ctx context.Context, name string, data []byte) (string, error) {
	dst := filepath.Join(w.dir, name)

	tmp, err := os.CreateTemp(w.dir, "."+name+".*.tmp")
	if err != nil {
		return "", goerr.Wrap(err, "failed to create temporary file", goerr.V("path", dst))
	}
	// Gone after a successful rename
	defer safe.Remove(ctx, tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		safe.Close(ctx, tmp)
		return "", goerr.Wrap(err, "failed to write file", goerr.V("path", dst))
	}
	if err := tmp.Close(); err != nil {
		return "", goerr.Wrap(err, "failed to close file", goerr.V("path", dst))
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", goerr.Wrap(err, "failed to rename file", goerr.V("path", dst))
	}
	return dst, nil
}

func (w *DirWriter) Close() error {
	return nil
}

// GCSWriter writes objects under gs://bucket/prefix
type GCSWriter struct {
	client *storage.Client
	bucket string
	prefix string
}

// ParseGCSURL splits gs://bucket/prefix into bucket and prefix
func ParseGCSURL(dest string) (bucket, prefix string, err error) {
	if !strings.HasPrefix(dest, gcsScheme) {
		return "", "", goerr.New("not a gs:// URL", goerr.V("dest", dest))
	}
	rest := strings.TrimPrefix(dest, gcsScheme)
	bucket, prefix, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", goerr.New("bucket is empty", goerr.V("dest", dest))
	}
	return bucket, strings.Trim(prefix, "/"), nil
}

func NewGCSWriter(ctx context.Context, dest string) (*GCSWriter, error) {
	bucket, prefix, err := ParseGCSURL(dest)
	if err != nil {
		return nil, err
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage client")
	}
	return &GCSWriter{client: client, bucket: bucket, prefix: prefix}, nil
}

func (w *GCSWriter) objectName(name string) string {
	if w.prefix == "" {
		return name
	}
	return path.Join(w.prefix, name)
}

func (w *GCSWriter) Write(ctx context.Context, name string, data []byte) (string, error) {
	objName := w.objectName(name)
	ow := w.client.Bucket(w.bucket).Object(objName).NewWriter(ctx)
	ow.ContentType = contentType(name)

	if _, err := ow.Write(data); err != nil {
		_ = ow.Close()
		return "", goerr.Wrap(err, "failed to write object",
			goerr.V("bucket", w.bucket),
			goerr.V("object", objName))
	}
	// the object is committed only when Close succeeds
	if err := ow.Close(); err != nil {
		return "", goerr.Wrap(err, "failed to commit object",
			goerr.V("bucket", w.bucket),
			goerr.V("object", objName))
	}
	return gcsScheme + w.bucket + "/" + objName, nil
}

func (w *GCSWriter) Close() error {
	return w.client.Close()
}

func contentType(name string) string {
	switch filepath.Ext(name) {
	case ".md":
		return "text/markdown; charset=utf-8"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}
