package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/YuminosukeSato/athena/pkg/errors"
)

// File stores one blob per key under Dir as <zone>__<algorithm>.gob.
type File struct {
	Dir string
}

// NewFile creates dir if needed.
func NewFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create model directory %s", dir)
	}
	return &File{Dir: dir}, nil
}

var unsafeName = strings.NewReplacer("/", "_", "\\", "_", "..", "_", ":", "_", " ", "_")

func (f *File) path(k Key) string {
	return filepath.Join(f.Dir, unsafeName.Replace(k.Zone)+"__"+string(k.Algorithm)+".gob")
}

// Save writes the blob atomically through a temporary file.
func (f *File) Save(ctx context.Context, k Key, blob []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(f.Dir, ".model-*")
	if err != nil {
		return errors.Wrap(err, "create temporary model file")
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(blob); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "write model %s", k)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "write model %s", k)
	}
	return errors.Wrapf(os.Rename(tmp.Name(), f.path(k)), "store model %s", k)
}

func (f *File) Load(ctx context.Context, k Key) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	b, err := os.ReadFile(f.path(k))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "read model %s", k)
	}
	return b, true, nil
}
