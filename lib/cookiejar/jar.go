// Package cookiejar is an in-memory cookie store that can be saved to and
// restored from the Netscape cookie file format. It implements
// http.CookieJar so it can be handed straight to an http.Client.
//
// A Jar belongs to a single user session, requests for different users
// must use different jars.
package cookiejar

import (
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"
)

type Jar struct {
	mu      sync.Mutex
	cookies []Cookie
	now     func() time.Time

	onChange func(*Jar)
}

type Option func(*Jar)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(j *Jar) {
		j.now = now
	}
}

// WithChangeHook registers a function that is called every time the
// stored cookie set changes. it is called without the jar's lock held,
// so it may call Serialize.
func WithChangeHook(hook func(*Jar)) Option {
	return func(j *Jar) {
		j.onChange = hook
	}
}

func New(opts ...Option) *Jar {
	j := &Jar{now: time.Now}
	for _, o := range opts {
		o(j)
	}
	return j
}

// SetChangeHook replaces the change hook after construction, this is
// used when a jar restored from storage gets attached to a session.
func (j *Jar) SetChangeHook(hook func(*Jar)) {
	j.mu.Lock()
	j.onChange = hook
	j.mu.Unlock()
}

func (j *Jar) notify(changed bool) {
	if !changed {
		return
	}
	j.mu.Lock()
	hook := j.onChange
	j.mu.Unlock()
	if hook != nil {
		hook(j)
	}
}

// pruneLocked drops expired cookies, the caller must hold j.mu.
func (j *Jar) pruneLocked(now time.Time) bool {
	kept := j.cookies[:0]
	for _, c := range j.cookies {
		if c.expired(now) {
			continue
		}
		kept = append(kept, c)
	}
	pruned := len(kept) != len(j.cookies)
	for i := len(kept); i < len(j.cookies); i++ {
		j.cookies[i] = Cookie{}
	}
	j.cookies = kept
	return pruned
}

// LoadForRequest prunes expired cookies and returns the ones that should
// be sent to u, longer paths first.
func (j *Jar) LoadForRequest(u *url.URL) []Cookie {
	host := canonicalHost(u)
	https := u.Scheme == "https"

	j.mu.Lock()
	pruned := j.pruneLocked(j.now())
	var matched []Cookie
	for _, c := range j.cookies {
		if c.Secure && !https {
			continue
		}
		if !c.domainMatches(host) || !c.pathMatches(u.EscapedPath()) {
			continue
		}
		matched = append(matched, c)
	}
	j.mu.Unlock()

	sort.SliceStable(matched, func(a, b int) bool {
		return len(matched[a].Path) > len(matched[b].Path)
	})

	j.notify(pruned)
	return matched
}

// SaveFromResponse upserts cookies by identity. cookies that are
// already expired remove the stored cookie with the same identity.
// the whole batch is applied under one lock.
func (j *Jar) SaveFromResponse(cookies []Cookie) {
	if len(cookies) == 0 {
		return
	}

	j.mu.Lock()
	now := j.now()
	changed := false
	for _, c := range cookies {
		index := -1
		for i, existing := range j.cookies {
			if existing.identity() == c.identity() {
				index = i
				break
			}
		}

		if c.expired(now) {
			if index >= 0 {
				j.cookies = append(j.cookies[:index], j.cookies[index+1:]...)
				changed = true
			}
			continue
		}
		if index >= 0 {
			if j.cookies[index] != c {
				j.cookies[index] = c
				changed = true
			}
			continue
		}
		j.cookies = append(j.cookies, c)
		changed = true
	}
	j.mu.Unlock()

	j.notify(changed)
}

// All returns a copy of every unexpired cookie in insertion order.
func (j *Jar) All() []Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()

	now := j.now()
	out := make([]Cookie, 0, len(j.cookies))
	for _, c := range j.cookies {
		if c.expired(now) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Value returns the value of the first cookie named `name` that would be
// sent to u.
func (j *Jar) Value(u *url.URL, name string) (string, bool) {
	for _, c := range j.LoadForRequest(u) {
		if c.Name == name {
			return c.Value, true
		}
	}
	return "", false
}

// Cookies implements http.CookieJar.
func (j *Jar) Cookies(u *url.URL) []*http.Cookie {
	stored := j.LoadForRequest(u)
	out := make([]*http.Cookie, len(stored))
	for i, c := range stored {
		out[i] = &http.Cookie{Name: c.Name, Value: c.Value}
	}
	return out
}

// SetCookies implements http.CookieJar.
func (j *Jar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	now := j.now()
	converted := make([]Cookie, 0, len(cookies))
	for _, c := range cookies {
		parsed, ok := fromHTTP(u, c, now)
		if !ok {
			continue
		}
		converted = append(converted, parsed)
	}
	j.SaveFromResponse(converted)
}

func canonicalHost(u *url.URL) string {
	return strings.ToLower(u.Hostname())
}

// fromHTTP applies the storage model of RFC 6265 section 5.3 to a cookie
// received from u. it reports false for cookies that must be ignored.
func fromHTTP(u *url.URL, c *http.Cookie, now time.Time) (Cookie, bool) {
	if c.Name == "" {
		return Cookie{}, false
	}
	host := canonicalHost(u)

	out := Cookie{
		Name:     c.Name,
		Value:    c.Value,
		Path:     c.Path,
		Secure:   c.Secure,
		HttpOnly: c.HttpOnly,
	}

	domain := strings.TrimPrefix(strings.ToLower(c.Domain), ".")
	if domain == "" || domain == host {
		out.Domain = host
		out.HostOnly = domain == ""
	} else {
		if !domainMatch(host, domain) {
			return Cookie{}, false
		}
		out.Domain = domain
	}

	if out.Path == "" || out.Path[0] != '/' {
		out.Path = defaultPath(u.EscapedPath())
	}

	switch {
	case c.MaxAge < 0:
		out.Persistent = true
		out.Expires = time.Unix(0, 0)
	case c.MaxAge > 0:
		out.Persistent = true
		out.Expires = now.Add(time.Duration(c.MaxAge) * time.Second)
	case !c.Expires.IsZero():
		out.Persistent = true
		out.Expires = c.Expires
	}

	return out, true
}
