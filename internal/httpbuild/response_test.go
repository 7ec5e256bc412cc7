package httpbuild

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lowlatency/yawn/internal/httpparse"
)

func writeRoot(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>hi</html>"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "404.html"), []byte("<html>missing</html>"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return dir
}

func TestBuildServesExistingFile(t *testing.T) {
	dir := writeRoot(t)
	req := &httpparse.Request{Method: "GET", Path: "/index.html"}
	resp := Build(dir, req, true)
	defer resp.Close()

	if resp.Status != 200 {
		t.Fatalf("Status = %d", resp.Status)
	}
	if !strings.Contains(resp.HeaderText, "HTTP/1.1 200 OK") {
		t.Fatalf("HeaderText = %q", resp.HeaderText)
	}
	if !strings.Contains(resp.HeaderText, "Connection: keep-alive") {
		t.Fatal("expected keep-alive header")
	}
	if string(resp.BodyForWrite()) != "<html>hi</html>" {
		t.Fatalf("BodyForWrite = %q", resp.BodyForWrite())
	}
}

func TestBuildMissingFileServesCustom404(t *testing.T) {
	dir := writeRoot(t)
	req := &httpparse.Request{Method: "GET", Path: "/nope.html"}
	resp := Build(dir, req, false)
	defer resp.Close()

	if resp.Status != 404 {
		t.Fatalf("Status = %d", resp.Status)
	}
	if string(resp.BodyForWrite()) != "<html>missing</html>" {
		t.Fatalf("expected custom 404 page body, got %q", resp.BodyForWrite())
	}
	if !strings.Contains(resp.HeaderText, "Connection: close") {
		t.Fatal("expected Connection: close header")
	}
}

func TestBuildConditionalGETReturns304(t *testing.T) {
	dir := writeRoot(t)
	req := &httpparse.Request{Method: "GET", Path: "/index.html"}
	first := Build(dir, req, true)
	etag := extractHeader(first.HeaderText, "ETag")
	first.Close()

	req2 := &httpparse.Request{Method: "GET", Path: "/index.html", ExtraHeaders: map[string]string{"If-None-Match": strings.Trim(etag, `"`)}}
	resp := Build(dir, req2, true)
	defer resp.Close()
	if resp.Status != 304 {
		t.Fatalf("Status = %d, want 304", resp.Status)
	}
}

func TestBuildBadRequestServesCustom400(t *testing.T) {
	dir := writeRoot(t)
	if err := os.WriteFile(filepath.Join(dir, "400.html"), []byte("<html>bad</html>"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	resp := BuildBadRequest(dir)
	defer resp.Close()

	if resp.Status != 400 {
		t.Fatalf("Status = %d, want 400", resp.Status)
	}
	if string(resp.BodyForWrite()) != "<html>bad</html>" {
		t.Fatalf("expected custom 400 page body, got %q", resp.BodyForWrite())
	}
	if !strings.Contains(resp.HeaderText, "Connection: close") {
		t.Fatal("expected Connection: close header")
	}
}

func TestBuildRoutesUnsupportedMethodTo405(t *testing.T) {
	dir := writeRoot(t)
	req := &httpparse.Request{Method: "PUT", Path: "/index.html"}
	resp := Build(dir, req, false)
	defer resp.Close()

	if resp.Status != 405 {
		t.Fatalf("Status = %d, want 405", resp.Status)
	}
}

func extractHeader(headerText, name string) string {
	for _, line := range strings.Split(headerText, "\r\n") {
		if strings.HasPrefix(line, name+": ") {
			return strings.TrimPrefix(line, name+": ")
		}
	}
	return ""
}
