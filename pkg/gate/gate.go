// Package gate decides, before a page renders, whether the requested path
// may be served to the requester or where to send them instead.
//
// The decision itself is a pure function over (path, session); all I/O —
// the session lookup — stays in the middleware at the boundary.
package gate

import (
	"net/http"
	"net/url"
	"strings"

	"foodhub/pkg/logger"
	"foodhub/pkg/session"
)

// Role is the closed set of account roles the backend issues.
type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleProvider Role = "PROVIDER"
	RoleCustomer Role = "CUSTOMER"
)

// Home is the default landing path for the role.
func (r Role) Home() string {
	switch r {
	case RoleAdmin:
		return "/admin"
	case RoleProvider:
		return "/provider"
	default:
		return "/"
	}
}

// Decision is the outcome of evaluating a navigation: pass the request
// through, or redirect it.
type Decision struct {
	target string
}

// Allow passes the request through unchanged.
func Allow() Decision { return Decision{} }

// RedirectTo sends the requester to path instead.
func RedirectTo(path string) Decision { return Decision{target: path} }

// Allowed reports whether the request may proceed.
func (d Decision) Allowed() bool { return d.target == "" }

// Target is the redirect destination, "" when allowed.
func (d Decision) Target() string { return d.target }

var (
	authPages         = []string{"/login", "/register"}
	protectedPrefixes = []string{"/cart", "/checkout", "/orders", "/profile", "/provider", "/admin", "/dashboard"}
)

// Matches reports whether the gate runs for path. Assets and public API
// routes stay outside the matcher and are never evaluated.
func Matches(path string) bool {
	if path == "/" {
		return true
	}
	for _, p := range authPages {
		if underPrefix(path, p) {
			return true
		}
	}
	for _, p := range protectedPrefixes {
		if underPrefix(path, p) {
			return true
		}
	}
	return false
}

// Evaluate applies the access rules to a navigation. First match wins,
// and the same (path, session) pair always yields the same decision.
func Evaluate(path string, sess *session.Session) Decision {
	authed := sess != nil && sess.User != nil
	var role Role
	if authed {
		role = Role(sess.User.Role)
	}

	// Logged-in users have no business on the auth pages.
	if underAny(path, authPages) {
		if authed {
			return RedirectTo(role.Home())
		}
		return Allow()
	}

	if !authed {
		if underAny(path, protectedPrefixes) {
			return RedirectTo("/login?redirect=" + url.QueryEscape(path))
		}
		return Allow()
	}

	if path == "/" && (role == RoleAdmin || role == RoleProvider) {
		return RedirectTo(role.Home())
	}

	switch role {
	case RoleCustomer:
		if underAny(path, []string{"/provider", "/admin", "/dashboard"}) {
			return RedirectTo("/")
		}
	case RoleProvider:
		if underAny(path, []string{"/admin", "/dashboard"}) {
			return RedirectTo("/provider")
		}
	case RoleAdmin:
		if underAny(path, []string{"/provider", "/dashboard"}) {
			return RedirectTo("/admin")
		}
	}
	return Allow()
}

// underPrefix matches whole path segments: "/provider" covers
// "/provider" and "/provider/menu" but not "/providers".
func underPrefix(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

func underAny(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if underPrefix(path, p) {
			return true
		}
	}
	return false
}

// Gate evaluates navigations through a session resolver.
type Gate struct {
	resolver session.Resolver
	log      *logger.Logger
}

// New returns a gate backed by resolver.
func New(resolver session.Resolver, log *logger.Logger) *Gate {
	return &Gate{resolver: resolver, log: log}
}

// Middleware runs the gate on every matched navigation. A failed session
// lookup is treated as "no session": this is an access-control boundary,
// so ambiguity resolves toward unauthenticated.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !Matches(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		sess, err := g.resolver.Resolve(r.Context(), r.Header.Get("Cookie"))
		if err != nil {
			if g.log != nil {
				g.log.Error(r.Context(), "session lookup failed", "path", r.URL.Path, "error", err)
			}
			sess = nil
		}

		if d := Evaluate(r.URL.Path, sess); !d.Allowed() {
			http.Redirect(w, r, d.Target(), http.StatusFound)
			return
		}

		if sess != nil {
			r = r.WithContext(session.NewContext(r.Context(), sess))
		}
		next.ServeHTTP(w, r)
	})
}
