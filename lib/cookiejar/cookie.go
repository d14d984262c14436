package cookiejar

import (
	"strings"
	"time"
)

// Cookie is a single stored cookie. Expires is the zero time for
// session cookies (Persistent == false).
type Cookie struct {
	Name       string
	Value      string
	Domain     string
	Path       string
	HostOnly   bool
	Secure     bool
	HttpOnly   bool
	Persistent bool
	Expires    time.Time
}

type identity struct {
	name     string
	domain   string
	path     string
	secure   bool
	hostOnly bool
}

func (c Cookie) identity() identity {
	return identity{
		name:     c.Name,
		domain:   c.Domain,
		path:     c.Path,
		secure:   c.Secure,
		hostOnly: c.HostOnly,
	}
}

func (c Cookie) expired(now time.Time) bool {
	return c.Persistent && !c.Expires.After(now)
}

func (c Cookie) domainMatches(host string) bool {
	if c.HostOnly {
		return host == c.Domain
	}
	return domainMatch(host, c.Domain)
}

func domainMatch(host, domain string) bool {
	if host == domain {
		return true
	}
	return strings.HasSuffix(host, "."+domain) && !isIP(host)
}

func isIP(host string) bool {
	return strings.Trim(host, "0123456789.") == "" || strings.Contains(host, ":")
}

func (c Cookie) pathMatches(path string) bool {
	if path == "" {
		path = "/"
	}
	if path == c.Path {
		return true
	}
	if !strings.HasPrefix(path, c.Path) {
		return false
	}
	return strings.HasSuffix(c.Path, "/") || path[len(c.Path)] == '/'
}

// defaultPath implements the default-path algorithm of RFC 6265 section 5.1.4.
func defaultPath(requestPath string) string {
	if requestPath == "" || requestPath[0] != '/' {
		return "/"
	}
	i := strings.LastIndex(requestPath, "/")
	if i == 0 {
		return "/"
	}
	return requestPath[:i]
}
