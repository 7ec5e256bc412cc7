package httpbuild

import (
	"strings"

	"github.com/lowlatency/yawn/internal/authstore"
	"github.com/lowlatency/yawn/internal/httpparse"
)

// Store is swappable so tests and a disabled-DB deployment can use
// authstore.Disabled() while a real deployment wires authstore.New.
var Store authstore.Store = authstore.Disabled()

func isFormURLEncoded(req *httpparse.Request) bool {
	return strings.HasPrefix(req.ContentType, "application/x-www-form-urlencoded")
}

// resolveAuthPath is the one dynamic exception to otherwise-static
// resolution: a POST to /login.html or /register.html is intercepted,
// verified against the auth store, and rewritten to a terminal static
// page before the normal resolver ever runs — the resolver has no idea
// auth happened.
func resolveAuthPath(req *httpparse.Request) string {
	switch req.Path {
	case "/login.html", "/register.html":
	default:
		return req.Path
	}

	username := req.Form["username"]
	password := req.Form["password"]
	if username == "" || password == "" {
		return "/error.html"
	}

	var ok bool
	if req.Path == "/register.html" {
		ok = Store.VerifyAndRegister(username, password)
	} else {
		ok = Store.VerifyLogin(username, password)
	}
	if !ok {
		return "/error.html"
	}
	return "/welcome.html"
}
