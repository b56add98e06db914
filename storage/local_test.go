package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *LocalStore {
	t.Helper()
	s, err := NewLocalStore(filepath.Join(t.TempDir(), "audio"))
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	return s
}

func payload(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i % 251)
	}
	return b
}

func readAll(t *testing.T, rc io.ReadCloser) []byte {
	t.Helper()
	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return b
}

func TestLocalStore_PutGetSizeDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	data := payload(1000)

	n, err := s.Put(ctx, "k1.mp3", bytes.NewReader(data), int64(len(data)), "audio/mpeg")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if n != 1000 {
		t.Fatalf("Put wrote %d", n)
	}

	ok, err := s.Exists(ctx, "k1.mp3")
	if err != nil || !ok {
		t.Fatalf("Exists = %v, %v", ok, err)
	}
	size, err := s.Size(ctx, "k1.mp3")
	if err != nil || size != 1000 {
		t.Fatalf("Size = %d, %v", size, err)
	}

	rc, err := s.Get(ctx, "k1.mp3", 0, -1)
	if err != nil {
		t.Fatalf("Get full: %v", err)
	}
	if got := readAll(t, rc); !bytes.Equal(got, data) {
		t.Fatal("full read mismatch")
	}

	rc, err = s.Get(ctx, "k1.mp3", 100, 100)
	if err != nil {
		t.Fatalf("Get window: %v", err)
	}
	if got := readAll(t, rc); !bytes.Equal(got, data[100:200]) {
		t.Fatalf("window read mismatch, got %d bytes", len(got))
	}

	rc, err = s.Get(ctx, "k1.mp3", 900, -1)
	if err != nil {
		t.Fatalf("Get tail: %v", err)
	}
	if got := readAll(t, rc); !bytes.Equal(got, data[900:]) {
		t.Fatal("tail read mismatch")
	}

	if err := s.Delete(ctx, "k1.mp3"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if ok, _ := s.Exists(ctx, "k1.mp3"); ok {
		t.Fatal("blob still exists after Delete")
	}
	if _, err := s.Size(ctx, "k1.mp3"); !errors.Is(err, ErrBlobNotFound) {
		t.Fatalf("Size after delete err = %v", err)
	}
	if _, err := s.Get(ctx, "k1.mp3", 0, -1); !errors.Is(err, ErrBlobNotFound) {
		t.Fatalf("Get after delete err = %v", err)
	}
	if err := s.Delete(ctx, "k1.mp3"); !errors.Is(err, ErrBlobNotFound) {
		t.Fatalf("second Delete err = %v", err)
	}
}

func TestLocalStore_PutRejectsExistingKey(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if _, err := s.Put(ctx, "dup", strings.NewReader("one"), 3, ""); err != nil {
		t.Fatalf("first Put: %v", err)
	}
	if _, err := s.Put(ctx, "dup", strings.NewReader("two"), 3, ""); !errors.Is(err, ErrBlobExists) {
		t.Fatalf("second Put err = %v, want ErrBlobExists", err)
	}

	rc, _ := s.Get(ctx, "dup", 0, -1)
	if got := string(readAll(t, rc)); got != "one" {
		t.Fatalf("blob overwritten: %q", got)
	}
}

func TestLocalStore_PutSizeMismatchLeavesNothing(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Put(ctx, "short", strings.NewReader("abc"), 10, "")
	if !errors.Is(err, ErrSizeMismatch) {
		t.Fatalf("Put err = %v, want ErrSizeMismatch", err)
	}
	if ok, _ := s.Exists(ctx, "short"); ok {
		t.Fatal("partial blob committed")
	}
	entries, _ := os.ReadDir(s.Dir())
	if len(entries) != 0 {
		t.Fatalf("temp files left behind: %d entries", len(entries))
	}
}

func TestLocalStore_PutCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := newTestStore(t)

	if _, err := s.Put(ctx, "c", strings.NewReader("abc"), -1, ""); !errors.Is(err, context.Canceled) {
		t.Fatalf("Put err = %v, want context.Canceled", err)
	}
	if ok, _ := s.Exists(context.Background(), "c"); ok {
		t.Fatal("blob committed despite cancellation")
	}
}

func TestLocalStore_RejectsTraversalKeys(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for _, key := range []string{"../escape", "a/b", ""} {
		if _, err := s.Put(ctx, key, strings.NewReader("x"), 1, ""); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("Put(%q) err = %v", key, err)
		}
		if _, err := s.Get(ctx, key, 0, -1); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("Get(%q) err = %v", key, err)
		}
	}
}

func TestLocalStore_ReadSurvivesDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	data := payload(4096)
	if _, err := s.Put(ctx, "live", bytes.NewReader(data), int64(len(data)), ""); err != nil {
		t.Fatal(err)
	}

	rc, err := s.Get(ctx, "live", 0, -1)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, "live"); err != nil {
		t.Fatal(err)
	}
	// POSIX: 已打开的句柄仍可读
	if got := readAll(t, rc); !bytes.Equal(got, data) {
		t.Fatal("open reader broken by delete")
	}
}

func TestLocalStore_ListAndStats(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	for _, k := range []string{"a", "b", "c"} {
		if _, err := s.Put(ctx, k, strings.NewReader(k+k), 2, ""); err != nil {
			t.Fatal(err)
		}
	}
	// 临时文件不应出现在列表里
	if err := os.WriteFile(filepath.Join(s.Dir(), tempPrefix+"junk"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	stats, err := CollectStats(ctx, s)
	if err != nil {
		t.Fatalf("CollectStats: %v", err)
	}
	if stats.TotalObjects != 3 || stats.TotalSize != 6 {
		t.Fatalf("stats = %+v", stats)
	}
	if time.Since(stats.LastModified) > time.Minute {
		t.Fatalf("LastModified = %v", stats.LastModified)
	}
}

func TestBlobWatcher_ReportsRemoval(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := newTestStore(t)
	if _, err := s.Put(ctx, "watched", strings.NewReader("x"), 1, ""); err != nil {
		t.Fatal(err)
	}

	removed := make(chan string, 4)
	w, err := NewBlobWatcher(s.Dir(), func(key string) { removed <- key })
	if err != nil {
		t.Fatalf("NewBlobWatcher: %v", err)
	}
	go w.Run(ctx)

	if err := os.Remove(filepath.Join(s.Dir(), "watched")); err != nil {
		t.Fatal(err)
	}

	select {
	case key := <-removed:
		if key != "watched" {
			t.Fatalf("removed key = %q", key)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no removal reported")
	}
}
