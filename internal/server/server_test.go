//go:build linux

package server

import (
	"bufio"
	"io"
	"net"
	"net/textproto"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/lowlatency/yawn/internal/config"
)

func startTestServer(t *testing.T) (*Server, int, string) {
	t.Helper()
	srcDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(srcDir, "index.html"), []byte("hello world"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	cfg := config.Default()
	cfg.ListenIP = "127.0.0.1"
	cfg.ListenPort = 0
	cfg.SrcDir = srcDir
	cfg.Timeout = 60000
	cfg.ThreadPoolNum = 2

	srv, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	port, err := srv.Port()
	if err != nil {
		t.Fatalf("Port: %v", err)
	}

	done := make(chan struct{})
	go func() {
		srv.Run()
		close(done)
	}()
	t.Cleanup(func() {
		srv.Close()
		<-done
	})
	return srv, port, srcDir
}

func TestServerServesStaticFileOverLoopback(t *testing.T) {
	_, port, _ := startTestServer(t)

	conn, err := net.DialTimeout("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)), 2*time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte("GET / HTTP/1.1\r\nHost: localhost\r\nConnection: close\r\n\r\n")); err != nil {
		t.Fatalf("write request: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	reader := textproto.NewReader(bufio.NewReader(conn))
	statusLine, err := reader.ReadLine()
	if err != nil {
		t.Fatalf("read status line: %v", err)
	}
	if statusLine != "HTTP/1.1 200 OK" {
		t.Fatalf("status line = %q, want HTTP/1.1 200 OK", statusLine)
	}

	rest, err := io.ReadAll(reader.R)
	if err != nil && err != io.EOF {
		t.Fatalf("read rest: %v", err)
	}
	if !contains(string(rest), "hello world") {
		t.Errorf("response body missing expected content, got: %q", rest)
	}
}

func TestServerServes404ForMissingFile(t *testing.T) {
	_, port, _ := startTestServer(t)

	conn, err := net.DialTimeout("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)), 2*time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte("GET /nope.html HTTP/1.1\r\nHost: localhost\r\nConnection: close\r\n\r\n")); err != nil {
		t.Fatalf("write request: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	reader := textproto.NewReader(bufio.NewReader(conn))
	statusLine, err := reader.ReadLine()
	if err != nil {
		t.Fatalf("read status line: %v", err)
	}
	if statusLine != "HTTP/1.1 404 Not Found" {
		t.Fatalf("status line = %q, want HTTP/1.1 404 Not Found", statusLine)
	}
}

func contains(haystack, needle string) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}
