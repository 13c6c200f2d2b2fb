package sink

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/snappy"

	"github.com/logmill/logmill/pkg/types"
)

func scanOf(records ...types.LogRecord) RecordScan {
	return func(ctx context.Context, fn func(types.LogRecord) error) error {
		for _, r := range records {
			if err := fn(r); err != nil {
				return err
			}
		}
		return nil
	}
}

func readCSV(t *testing.T, r io.Reader) [][]string {
	t.Helper()
	rows, err := csv.NewReader(r).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	return rows
}

func readCSVFile(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	return readCSV(t, f)
}

func TestDirSink_WriteResult_Pairs(t *testing.T) {
	dir := t.TempDir()
	s, err := NewDirSink(dir, false)
	if err != nil {
		t.Fatal(err)
	}

	res := types.PairsResult("top_paths", []types.Pair{
		{Key: "/home", Count: 6},
		{Key: "/about", Count: 2},
	})
	if err := s.WriteResult(context.Background(), res); err != nil {
		t.Fatal(err)
	}

	rows := readCSVFile(t, filepath.Join(dir, "top_paths.csv"))
	want := [][]string{{"key", "count"}, {"/home", "6"}, {"/about", "2"}}
	assertRows(t, rows, want)
}

func TestDirSink_WriteResult_Scalar(t *testing.T) {
	dir := t.TempDir()
	s, err := NewDirSink(dir, false)
	if err != nil {
		t.Fatal(err)
	}

	if err := s.WriteResult(context.Background(), types.ScalarResult("total_count", 42)); err != nil {
		t.Fatal(err)
	}

	rows := readCSVFile(t, filepath.Join(dir, "total_count.csv"))
	assertRows(t, rows, [][]string{{"value"}, {"42"}})
}

func TestDirSink_WritePartition(t *testing.T) {
	dir := t.TempDir()
	s, err := NewDirSink(dir, false)
	if err != nil {
		t.Fatal(err)
	}

	scan := scanOf(
		types.LogRecord{ClientAddress: "1.1.1.1", Timestamp: "2024-02-01 10:00:00", Path: "/a", StatusCode: 404, UserAgent: "UA"},
		types.LogRecord{ClientAddress: "2.2.2.2", Timestamp: "2024-02-01 10:00:01", Path: "/b", StatusCode: 404, UserAgent: "UA"},
	)
	if err := s.WritePartition(context.Background(), 404, scan); err != nil {
		t.Fatal(err)
	}

	rows := readCSVFile(t, filepath.Join(dir, "partitions", "status=404.csv"))
	if len(rows) != 3 {
		t.Fatalf("rows: %v", rows)
	}
	if rows[1][0] != "1.1.1.1" || rows[2][2] != "/b" {
		t.Errorf("partition rows: %v", rows)
	}
}

func TestDirSink_WritePartition_Compressed(t *testing.T) {
	dir := t.TempDir()
	s, err := NewDirSink(dir, true)
	if err != nil {
		t.Fatal(err)
	}

	scan := scanOf(types.LogRecord{ClientAddress: "1.1.1.1", Path: "/a", StatusCode: 200, UserAgent: "UA"})
	if err := s.WritePartition(context.Background(), 200, scan); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "partitions", "status=200.csv.sz"))
	if err != nil {
		t.Fatal(err)
	}
	rows := readCSV(t, snappy.NewReader(bytes.NewReader(data)))
	if len(rows) != 2 || rows[1][0] != "1.1.1.1" {
		t.Errorf("decompressed rows: %v", rows)
	}
}

func TestDirSink_Deterministic(t *testing.T) {
	res := types.PairsResult("status_distribution", []types.Pair{
		{Key: "404", Count: 4},
		{Key: "200", Count: 2},
	})

	var contents [][]byte
	for i := 0; i < 2; i++ {
		dir := t.TempDir()
		s, err := NewDirSink(dir, false)
		if err != nil {
			t.Fatal(err)
		}
		if err := s.WriteResult(context.Background(), res); err != nil {
			t.Fatal(err)
		}
		data, err := os.ReadFile(filepath.Join(dir, "status_distribution.csv"))
		if err != nil {
			t.Fatal(err)
		}
		contents = append(contents, data)
	}
	if !bytes.Equal(contents[0], contents[1]) {
		t.Error("identical results must render byte-identical files")
	}
}

func TestDirSink_CancelledContext(t *testing.T) {
	dir := t.TempDir()
	s, err := NewDirSink(dir, false)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.WriteResult(ctx, types.ScalarResult("total_count", 1)); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestMulti_FirstErrorWinsAllAttempted(t *testing.T) {
	dir := t.TempDir()
	good, err := NewDirSink(dir, false)
	if err != nil {
		t.Fatal(err)
	}
	bad := &failSink{}

	m := NewMulti(bad, good)
	res := types.ScalarResult("total_count", 1)
	if err := m.WriteResult(context.Background(), res); err == nil {
		t.Fatal("expected the failing sink's error")
	}

	// The healthy sink still received the write.
	if _, err := os.Stat(filepath.Join(dir, "total_count.csv")); err != nil {
		t.Errorf("healthy sink skipped: %v", err)
	}
}

type failSink struct{}

func (f *failSink) WriteResult(context.Context, types.Result) error {
	return os.ErrPermission
}
func (f *failSink) WritePartition(context.Context, int, RecordScan) error {
	return os.ErrPermission
}
func (f *failSink) Close() error { return nil }

func assertRows(t *testing.T, got, want [][]string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("rows: got %v, want %v", got, want)
	}
	for i := range want {
		for j := range want[i] {
			if got[i][j] != want[i][j] {
				t.Errorf("row %d: got %v, want %v", i, got[i], want[i])
			}
		}
	}
}
