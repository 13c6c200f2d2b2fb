package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func newLocal(t *testing.T) *LocalStorage {
	t.Helper()
	s, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func tempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "src.csv")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLocalStorage_Upload(t *testing.T) {
	s := newLocal(t)
	ctx := context.Background()

	src := tempFile(t, "key,count\n/home,6\n")
	if err := s.Upload(ctx, src, "runs/abc/top_paths.csv"); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(s.basePath, "runs", "abc", "top_paths.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "key,count\n/home,6\n" {
		t.Errorf("uploaded content: %q", data)
	}
}

func TestLocalStorage_ListObjects(t *testing.T) {
	s := newLocal(t)
	ctx := context.Background()

	src := tempFile(t, "x")
	for _, obj := range []string{"runs/r1/a.csv", "runs/r1/partitions/status=404.csv", "runs/r2/b.csv"} {
		if err := s.Upload(ctx, src, obj); err != nil {
			t.Fatal(err)
		}
	}

	objects, err := s.ListObjects(ctx, "runs/r1")
	if err != nil {
		t.Fatal(err)
	}
	if len(objects) != 2 {
		t.Errorf("objects under runs/r1: %v", objects)
	}

	objects, err = s.ListObjects(ctx, "runs/nothing")
	if err != nil {
		t.Fatal(err)
	}
	if len(objects) != 0 {
		t.Errorf("missing prefix must list empty: %v", objects)
	}
}

func TestLocalStorage_DeleteIdempotent(t *testing.T) {
	s := newLocal(t)
	ctx := context.Background()

	src := tempFile(t, "x")
	if err := s.Upload(ctx, src, "runs/r/a.csv"); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, "runs/r/a.csv"); err != nil {
		t.Fatal(err)
	}
	// Deleting a missing object is not an error.
	if err := s.Delete(ctx, "runs/r/a.csv"); err != nil {
		t.Errorf("second delete: %v", err)
	}

	objects, err := s.ListObjects(ctx, "runs/r")
	if err != nil {
		t.Fatal(err)
	}
	if len(objects) != 0 {
		t.Errorf("deleted object still listed: %v", objects)
	}
}

func TestLocalStorage_CancelledContext(t *testing.T) {
	s := newLocal(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.Upload(ctx, "whatever", "obj"); err == nil {
		t.Error("expected cancelled upload to fail")
	}
	if _, err := s.ListObjects(ctx, ""); err == nil {
		t.Error("expected cancelled list to fail")
	}
}

func writeRunDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestPublisher_Publish(t *testing.T) {
	s := newLocal(t)
	ctx := context.Background()

	runDir := writeRunDir(t, map[string]string{
		"total_count.csv":           "value\n6\n",
		"partitions/status=404.csv": "client_address,timestamp,path,status_code,user_agent\n",
	})

	p := NewPublisher(s)
	uploaded, err := p.Publish(ctx, "run-1", runDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(uploaded) != 2 {
		t.Fatalf("uploaded: %v", uploaded)
	}

	objects, err := s.ListObjects(ctx, "runs/run-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(objects) != 2 {
		t.Errorf("published objects: %v", objects)
	}
}

func TestPublisher_RepublishClearsStale(t *testing.T) {
	s := newLocal(t)
	ctx := context.Background()
	p := NewPublisher(s)

	first := writeRunDir(t, map[string]string{
		"total_count.csv": "value\n6\n",
		"top_paths.csv":   "key,count\n/home,6\n",
	})
	if _, err := p.Publish(ctx, "run-1", first); err != nil {
		t.Fatal(err)
	}

	// Second publication of the same run carries fewer files; the
	// object from the first pass must not survive beside it.
	second := writeRunDir(t, map[string]string{
		"total_count.csv": "value\n2\n",
	})
	if _, err := p.Publish(ctx, "run-1", second); err != nil {
		t.Fatal(err)
	}

	objects, err := s.ListObjects(ctx, "runs/run-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(objects) != 1 || objects[0] != "runs/run-1/total_count.csv" {
		t.Errorf("stale objects after republish: %v", objects)
	}

	data, err := os.ReadFile(filepath.Join(s.basePath, "runs", "run-1", "total_count.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "value\n2\n" {
		t.Errorf("republished content: %q", data)
	}
}
