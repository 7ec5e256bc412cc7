//go:build linux

package connection

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/sys/unix"
)

func socketPair(t *testing.T) (a, b int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("Socketpair: %v", err)
	}
	t.Cleanup(func() {
		unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

func writeRoot(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("hello world"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return dir
}

func TestProcessAndWriteFullRoundTrip(t *testing.T) {
	dir := writeRoot(t)
	serverFD, clientFD := socketPair(t)

	req := "GET /index.html HTTP/1.1\r\nHost: x\r\n\r\n"
	if _, err := unix.Write(clientFD, []byte(req)); err != nil {
		t.Fatalf("Write request: %v", err)
	}

	conn := New(serverFD, dir)
	if _, err := conn.Read(); err != nil {
		t.Fatalf("Read: %v", err)
	}
	result, err := conn.Process()
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if result != ResponseReady {
		t.Fatalf("result = %v, want ResponseReady", result)
	}

	for {
		done, err := conn.Write()
		if err != nil {
			t.Fatalf("Write: %v", err)
		}
		if done {
			break
		}
	}
	conn.Close()

	got := readAllFromFD(t, clientFD)
	if !strings.Contains(got, "HTTP/1.1 200 OK") {
		t.Fatalf("expected 200 OK in response, got %q", got)
	}
	if !strings.HasSuffix(got, "hello world") {
		t.Fatalf("expected body to end with file contents, got %q", got)
	}
}

func TestProcessMalformedRequest(t *testing.T) {
	dir := writeRoot(t)
	serverFD, clientFD := socketPair(t)

	if _, err := unix.Write(clientFD, []byte("GARBAGE\r\n\r\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	conn := New(serverFD, dir)
	if _, err := conn.Read(); err != nil {
		t.Fatalf("Read: %v", err)
	}
	result, err := conn.Process()
	if result != Malformed || err == nil {
		t.Fatalf("result = %v err = %v, want Malformed+error", result, err)
	}
	if !conn.HasPendingResponse() {
		t.Fatal("expected a 400 response queued for a malformed request")
	}

	for {
		done, err := conn.Write()
		if err != nil {
			t.Fatalf("Write: %v", err)
		}
		if done {
			break
		}
	}
	conn.Close()

	got := readAllFromFD(t, clientFD)
	if !strings.Contains(got, "HTTP/1.1 400 Bad Request") {
		t.Fatalf("expected 400 Bad Request in response, got %q", got)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	dir := writeRoot(t)
	serverFD, _ := socketPair(t)
	conn := New(serverFD, dir)
	if err := conn.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("second Close should be a no-op, got %v", err)
	}
	if _, err := conn.Read(); err != ErrClosed {
		t.Fatalf("Read after Close = %v, want ErrClosed", err)
	}
}

func readAllFromFD(t *testing.T, fd int) string {
	t.Helper()
	f := os.NewFile(uintptr(fd), "test")
	defer f.Close()
	unix.SetNonblock(fd, false)
	b, err := io.ReadAll(io.LimitReader(f, 4096))
	if err != nil && err != io.EOF {
		t.Fatalf("ReadAll: %v", err)
	}
	return string(b)
}
