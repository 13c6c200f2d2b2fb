package main

import (
	"os"
	"path/filepath"
	"testing"
)

func writeInput(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "access.csv")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRun_Success(t *testing.T) {
	input := writeInput(t,
		"ip,timestamp,url,status,user_agent\n"+
			"1.1.1.1,2024-02-01 10:00:00,/home,200,UA1\n"+
			"2.2.2.2,2024-02-01 10:00:30,/home,404,UA2\n")
	out := filepath.Join(t.TempDir(), "results")

	code := run([]string{"run", "--input", input, "--output", out})
	if code != exitOK {
		t.Fatalf("exit code: got %d, want %d", code, exitOK)
	}

	for _, name := range []string{"total_count.csv", "status_distribution.csv", "results.db"} {
		if _, err := os.Stat(filepath.Join(out, name)); err != nil {
			t.Errorf("missing output %s: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(out, "partitions", "status=404.csv")); err != nil {
		t.Errorf("missing partition export: %v", err)
	}
}

func TestRun_PublishLocal(t *testing.T) {
	input := writeInput(t,
		"ip,timestamp,url,status,user_agent\n"+
			"1.1.1.1,2024-02-01 10:00:00,/home,200,UA\n")
	out := filepath.Join(t.TempDir(), "results")
	publishDir := t.TempDir()

	t.Setenv("LOGMILL_PUBLISH_TYPE", "local")
	t.Setenv("LOGMILL_PUBLISH_PATH", publishDir)

	code := run([]string{"run", "--input", input, "--output", out})
	if code != exitOK {
		t.Fatalf("exit code: got %d, want %d", code, exitOK)
	}

	// The published run prefix holds the flushed sink files.
	runs, err := os.ReadDir(filepath.Join(publishDir, "runs"))
	if err != nil || len(runs) != 1 {
		t.Fatalf("published runs: %v (%v)", runs, err)
	}
	published := filepath.Join(publishDir, "runs", runs[0].Name(), "total_count.csv")
	if _, err := os.Stat(published); err != nil {
		t.Errorf("missing published result: %v", err)
	}
}

func TestRun_MissingInput(t *testing.T) {
	out := t.TempDir()
	code := run([]string{"run", "--input", "/nonexistent/access.csv", "--output", out})
	if code != exitLoadError {
		t.Errorf("exit code: got %d, want %d", code, exitLoadError)
	}
}

func TestRun_NoInputFlag(t *testing.T) {
	code := run([]string{"run", "--output", t.TempDir()})
	if code != exitLoadError {
		t.Errorf("exit code: got %d, want %d", code, exitLoadError)
	}
}

func TestRun_UnknownCommand(t *testing.T) {
	if code := run([]string{"bogus"}); code != exitLoadError {
		t.Errorf("exit code: got %d, want %d", code, exitLoadError)
	}
}

func TestRun_Version(t *testing.T) {
	if code := run([]string{"version"}); code != exitOK {
		t.Errorf("exit code: got %d, want %d", code, exitOK)
	}
}
