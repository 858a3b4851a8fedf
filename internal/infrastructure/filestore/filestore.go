// Package filestore keeps uploaded documents on local disk addressed by the
// sha256 of their content. Identical uploads share one file.
package filestore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"celiaquia/internal/errs"
	"celiaquia/internal/ports"
)

var ErrInvalidPath = errs.Sentinel(errs.KindValidation, "invalid stored file path")

type LocalStore struct {
	root string
}

var _ ports.FileStore = (*LocalStore)(nil)

func NewLocalStore(root string) (*LocalStore, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("storage root is required")
	}
	if err := os.MkdirAll(filepath.Join(root, "tmp"), 0o755); err != nil {
		return nil, errs.Wrap(err, "create storage root")
	}
	return &LocalStore{root: root}, nil
}

// Put streams r to disk and returns its content address, e.g.
// "ab/ab12...ef.pdf". The extension of filename is kept for operators.
func (s *LocalStore) Put(ctx context.Context, filename string, r io.Reader) (ports.StoredFile, error) {
	if ctx == nil {
		return ports.StoredFile{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return ports.StoredFile{}, errs.Wrap(err, "check context")
	}
	if r == nil {
		return ports.StoredFile{}, errors.New("reader is required")
	}

	tmp, err := os.CreateTemp(filepath.Join(s.root, "tmp"), "upload-*")
	if err != nil {
		return ports.StoredFile{}, errs.Wrap(err, "create temp file")
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	hash := sha256.New()
	size, err := io.Copy(io.MultiWriter(tmp, hash), r)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return ports.StoredFile{}, errs.Wrap(err, "write upload")
	}

	sum := hex.EncodeToString(hash.Sum(nil))
	rel := filepath.ToSlash(filepath.Join(sum[:2], sum+strings.ToLower(filepath.Ext(filename))))
	dst := filepath.Join(s.root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return ports.StoredFile{}, errs.Wrap(err, "create shard dir")
	}
	if _, err := os.Stat(dst); err == nil {
		return ports.StoredFile{Path: rel, Hash: sum, Size: size}, nil
	}
	if err := os.Rename(tmpName, dst); err != nil {
		return ports.StoredFile{}, errs.Wrap(err, "move upload into place")
	}
	return ports.StoredFile{Path: rel, Hash: sum, Size: size}, nil
}

func (s *LocalStore) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	full, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errs.WithKind(err, errs.KindNotFound, "stored file not found")
		}
		return nil, errs.Wrap(err, "open stored file")
	}
	return f, nil
}

// Delete is idempotent.
func (s *LocalStore) Delete(ctx context.Context, path string) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errs.Wrap(err, "delete stored file")
	}
	return nil
}

func (s *LocalStore) resolve(path string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(strings.TrimSpace(path)))
	if clean == "." || filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return "", ErrInvalidPath
	}
	return filepath.Join(s.root, clean), nil
}
