package filestore

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"celiaquia/internal/errs"
)

func TestLocalStorePutOpenDelete(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore() error = %v", err)
	}
	ctx := context.Background()

	first, err := store.Put(ctx, "Certificado.PDF", strings.NewReader("contenido"))
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if !strings.HasSuffix(first.Path, ".pdf") || first.Size != int64(len("contenido")) {
		t.Fatalf("Put() = %#v", first)
	}
	if !strings.HasPrefix(first.Path, first.Hash[:2]+"/") {
		t.Fatalf("Put() path %q not sharded by hash", first.Path)
	}

	second, err := store.Put(ctx, "otro.pdf", strings.NewReader("contenido"))
	if err != nil {
		t.Fatalf("Put(same content) error = %v", err)
	}
	if second.Path != first.Path {
		t.Fatalf("Put(same content) path = %q, want %q", second.Path, first.Path)
	}

	rc, err := store.Open(ctx, first.Path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(body) != "contenido" {
		t.Fatalf("Open() body = %q", body)
	}

	if err := store.Delete(ctx, first.Path); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := store.Delete(ctx, first.Path); err != nil {
		t.Fatalf("Delete(again) error = %v", err)
	}
	if _, err := store.Open(ctx, first.Path); !errs.IsKind(err, errs.KindNotFound) {
		t.Fatalf("Open(deleted) error = %v, want NOT_FOUND", err)
	}
}

func TestLocalStoreRejectsEscapingPaths(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore() error = %v", err)
	}

	for _, path := range []string{"../etc/passwd", "/etc/passwd", ""} {
		if _, err := store.Open(context.Background(), path); !errors.Is(err, ErrInvalidPath) {
			t.Fatalf("Open(%q) error = %v, want ErrInvalidPath", path, err)
		}
	}
}
