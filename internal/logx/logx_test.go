package logx

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

func TestFileSinkWritesAndRotatesOnSize(t *testing.T) {
	dir := t.TempDir()
	l, err := New(Config{
		Sink:        File,
		Dir:         dir,
		Filename:    "server",
		MaxFileSize: 64,
		Level:       Debug,
		QueueSize:   64,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := 0; i < 20; i++ {
		l.Infof("line number %d with some padding text", i)
	}
	l.Close()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) < 2 {
		t.Fatalf("expected rotation to produce multiple files, got %d", len(entries))
	}
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), "server_") || filepath.Ext(e.Name()) != ".log" {
			t.Fatalf("unexpected file name %q", e.Name())
		}
	}
}

func TestLevelGating(t *testing.T) {
	dir := t.TempDir()
	l, err := New(Config{Sink: File, Dir: dir, Filename: "gated", Level: Warn, QueueSize: 16})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l.Debugf("should be dropped")
	l.Infof("should also be dropped")
	l.Warnf("should be kept")
	l.Close()

	data := readAllLogFiles(t, dir)
	if strings.Contains(data, "should be dropped") || strings.Contains(data, "should also be dropped") {
		t.Fatal("expected sub-threshold lines to be dropped")
	}
	if !strings.Contains(data, "should be kept") {
		t.Fatal("expected at-or-above-threshold line to be written")
	}
}

func TestCloseIsIdempotentAndDrains(t *testing.T) {
	dir := t.TempDir()
	l, err := New(Config{Sink: File, Dir: dir, Filename: "drain", Level: Info, QueueSize: 16})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := 0; i < 5; i++ {
		l.Infof("msg %d", i)
	}
	l.Close()
	l.Close()

	data := readAllLogFiles(t, dir)
	for i := 0; i < 5; i++ {
		if !strings.Contains(data, "msg "+strconv.Itoa(i)) {
			t.Fatalf("expected queued message %d to be drained before Close returned", i)
		}
	}
}

func readAllLogFiles(t *testing.T, dir string) string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	var sb strings.Builder
	for _, e := range entries {
		b, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			t.Fatalf("ReadFile: %v", err)
		}
		sb.Write(b)
	}
	return sb.String()
}
