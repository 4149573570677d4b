package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/yoockh/yootherapy/internal/utils"
)

func TestLocalStorePutOpen(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	n, err := s.Put(ctx, "speech/2026/10/16/t1-abc.webm", "audio/webm", strings.NewReader("clip"))
	if err != nil || n != 4 {
		t.Fatalf("Put = %d, %v", n, err)
	}

	rc, err := s.Open(ctx, "speech/2026/10/16/t1-abc.webm")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	b, _ := io.ReadAll(rc)
	rc.Close()
	if string(b) != "clip" {
		t.Fatalf("content = %q", b)
	}

	if _, err := s.Open(ctx, "speech/missing.wav"); !errors.Is(err, utils.ErrNotFound) {
		t.Fatalf("missing object err = %v", err)
	}
}

func TestLocalStoreKeysStayUnderRoot(t *testing.T) {
	root := t.TempDir()
	s, err := NewLocalStore(root)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Put(context.Background(), "../../escape.txt", "text/plain", strings.NewReader("x")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "escape.txt")); err != nil {
		t.Fatalf("key should be confined to root: %v", err)
	}
	if _, err := s.Put(context.Background(), "", "text/plain", strings.NewReader("x")); !utils.IsCode(err, utils.CodeInvalidArgument) {
		t.Fatalf("empty key err = %v", err)
	}
}

func TestFetch(t *testing.T) {
	ctx := context.Background()
	s, _ := NewLocalStore(t.TempDir())
	if _, err := s.Put(ctx, "a/b.wav", "audio/wav", strings.NewReader("RIFF")); err != nil {
		t.Fatal(err)
	}

	path, cleanup, err := Fetch(ctx, s, "a/b.wav", t.TempDir())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if filepath.Ext(path) != ".wav" {
		t.Errorf("ext = %q", filepath.Ext(path))
	}
	b, _ := os.ReadFile(path)
	if string(b) != "RIFF" {
		t.Errorf("content = %q", b)
	}
	cleanup()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("cleanup should remove the file")
	}

	if _, _, err := Fetch(ctx, Unavailable{}, "a/b.wav", ""); !errors.Is(err, ErrUnavailable) {
		t.Errorf("unavailable err = %v", err)
	}
}
