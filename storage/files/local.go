// Package localfs stores uploaded files on the local filesystem under the
// configured media root.
package localfs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
)

type storage struct {
	root string
}

var _ core.FileStorage = (*storage)(nil)

func NewStorage(conf *core.Config) (core.FileStorage, error) {
	root := conf.Media.Root
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating media root")
	}
	return &storage{root: root}, nil
}

// Save writes r under dir, prefixing the sanitized filename with a random
// ID so concurrent uploads of the same name never collide.
func (fs *storage) Save(_ context.Context, dir, filename string, r io.Reader) (string, error) {
	dir = filepath.Clean(dir)
	if err := os.MkdirAll(filepath.Join(fs.root, dir), 0o755); err != nil {
		return "", errors.Wrap(err, "creating media dir")
	}

	name := fmt.Sprintf("%s_%s", uuid.New().String()[:8], sanitize(filename))
	ref := filepath.Join(dir, name)

	f, err := os.Create(filepath.Join(fs.root, ref))
	if err != nil {
		return "", errors.Wrap(err, "creating media file")
	}
	defer f.Close()

	if _, err = io.Copy(f, r); err != nil {
		_ = os.Remove(f.Name())
		return "", errors.Wrap(err, "writing media file")
	}
	return filepath.ToSlash(ref), nil
}

func (fs *storage) Open(_ context.Context, ref string) (io.ReadCloser, error) {
	path, err := fs.resolve(ref)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening media file")
	}
	return f, nil
}

func (fs *storage) Remove(_ context.Context, ref string) error {
	path, err := fs.resolve(ref)
	if err != nil {
		return err
	}
	if err = os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "removing media file")
	}
	return nil
}

// resolve rejects references escaping the media root.
func (fs *storage) resolve(ref string) (string, error) {
	path := filepath.Join(fs.root, filepath.FromSlash(ref))
	if !strings.HasPrefix(path, filepath.Clean(fs.root)+string(filepath.Separator)) {
		return "", errors.Errorf("invalid file reference %q", ref)
	}
	return path, nil
}

func sanitize(filename string) string {
	name := filepath.Base(filepath.Clean(filename))
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		}
		return '_'
	}, name)
}
