package httpbuild

import (
	"testing"

	"github.com/lowlatency/yawn/internal/httpparse"
)

type fakeStore struct {
	loginOK    bool
	registerOK bool
}

func (f fakeStore) VerifyLogin(string, string) bool      { return f.loginOK }
func (f fakeStore) VerifyAndRegister(string, string) bool { return f.registerOK }

func TestResolveAuthPathMissingCredentials(t *testing.T) {
	req := &httpparse.Request{Path: "/login.html", Form: map[string]string{}}
	if got := resolveAuthPath(req); got != "/error.html" {
		t.Fatalf("got %q, want /error.html", got)
	}
}

func TestResolveAuthPathLoginSuccess(t *testing.T) {
	prev := Store
	Store = fakeStore{loginOK: true}
	defer func() { Store = prev }()

	req := &httpparse.Request{Path: "/login.html", Form: map[string]string{"username": "bob", "password": "x"}}
	if got := resolveAuthPath(req); got != "/welcome.html" {
		t.Fatalf("got %q, want /welcome.html", got)
	}
}

func TestResolveAuthPathLoginFailure(t *testing.T) {
	prev := Store
	Store = fakeStore{loginOK: false}
	defer func() { Store = prev }()

	req := &httpparse.Request{Path: "/login.html", Form: map[string]string{"username": "bob", "password": "wrong"}}
	if got := resolveAuthPath(req); got != "/error.html" {
		t.Fatalf("got %q, want /error.html", got)
	}
}

func TestResolveAuthPathRegisterSuccess(t *testing.T) {
	prev := Store
	Store = fakeStore{registerOK: true}
	defer func() { Store = prev }()

	req := &httpparse.Request{Path: "/register.html", Form: map[string]string{"username": "new", "password": "x"}}
	if got := resolveAuthPath(req); got != "/welcome.html" {
		t.Fatalf("got %q, want /welcome.html", got)
	}
}

func TestResolveAuthPathNonAuthPageUnchanged(t *testing.T) {
	req := &httpparse.Request{Path: "/index.html", Form: map[string]string{"username": "bob", "password": "x"}}
	if got := resolveAuthPath(req); got != "/index.html" {
		t.Fatalf("got %q, want unchanged /index.html", got)
	}
}
