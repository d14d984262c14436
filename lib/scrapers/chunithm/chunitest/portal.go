// Package chunitest runs a fake chunithm-net portal and authentication
// gateway on local httptest servers.
package chunitest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
)

// how the portal reacts to a request with a dead session
type ExpiryMode int

const (
	// redirect to the /mobile/ landing page
	ExpiryRedirect ExpiryMode = iota
	// redirect to the error page with the invalid session code
	ExpiryErrorPage
)

type Page struct {
	Status int
	Body   string
	// when set the request is redirected here instead
	Redirect string
}

// Portal is a fake portal. the zero session token is never valid, a
// session is created by passing through the gateway with the valid clal.
type Portal struct {
	Service *httptest.Server
	Gateway *httptest.Server

	mu          sync.Mutex
	validClal   string
	token       string
	expiry      ExpiryMode
	maintenance bool

	pages    map[string]Page
	hits     map[string]int
	forms    map[string]url.Values
	headers  map[string]http.Header
	authHits int
	tokenSeq int
}

func NewPortal(validClal string) *Portal {
	p := &Portal{
		validClal: validClal,
		pages:     map[string]Page{},
		hits:      map[string]int{},
		forms:     map[string]url.Values{},
		headers:   map[string]http.Header{},
	}
	p.Service = httptest.NewServer(http.HandlerFunc(p.serveService))
	p.Gateway = httptest.NewServer(http.HandlerFunc(p.serveGateway))
	return p
}

func (p *Portal) Close() {
	p.Service.Close()
	p.Gateway.Close()
}

// AuthUrl mirrors the real gateway url shape.
func (p *Portal) AuthUrl() string {
	return fmt.Sprintf(
		"%s/common_auth/login?site_id=chuniex&redirect_url=%s/mobile/",
		p.Gateway.URL, p.Service.URL,
	)
}

// Handle registers the response for `METHOD /path`.
func (p *Portal) Handle(method, path string, page Page) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pages[method+" "+path] = page
}

func (p *Portal) SetValidClal(clal string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.validClal = clal
}

func (p *Portal) SetExpiry(mode ExpiryMode) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expiry = mode
}

func (p *Portal) SetMaintenance(maintenance bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.maintenance = maintenance
}

// ExpireSession invalidates the current portal session.
func (p *Portal) ExpireSession() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.token = ""
}

// StartSession creates a session as if the gateway was visited and
// returns its token.
func (p *Portal) StartSession() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.newTokenLocked()
}

func (p *Portal) newTokenLocked() string {
	p.tokenSeq++
	p.token = fmt.Sprintf("token%d", p.tokenSeq)
	return p.token
}

func (p *Portal) Hits(method, path string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hits[method+" "+path]
}

func (p *Portal) AuthHits() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.authHits
}

// Form returns the last form posted to path.
func (p *Portal) Form(path string) url.Values {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.forms[path]
}

// Header returns the headers of the last request to `METHOD /path`.
func (p *Portal) Header(method, path string) http.Header {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.headers[method+" "+path]
}

func (p *Portal) serveGateway(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	p.authHits++
	valid := p.validClal
	p.mu.Unlock()

	clal, err := r.Cookie("clal")
	if r.URL.Path != "/common_auth/login" || err != nil || clal.Value != valid {
		w.Write([]byte(`<html><body><form class="login"></form></body></html>`))
		return
	}

	redirect := r.URL.Query().Get("redirect_url")
	if redirect == "" {
		redirect = p.Service.URL + "/mobile/"
	}
	http.Redirect(w, r, redirect+"?ssid=fresh", http.StatusFound)
}

func (p *Portal) serveService(w http.ResponseWriter, r *http.Request) {
	key := r.Method + " " + r.URL.Path

	p.mu.Lock()
	p.hits[key]++
	p.headers[key] = r.Header.Clone()
	var form url.Values
	if r.Method == http.MethodPost {
		r.ParseForm()
		form = r.PostForm
		p.forms[r.URL.Path] = form
	}
	maintenance := p.maintenance
	expiry := p.expiry
	token := p.token
	page, registered := p.pages[key]
	p.mu.Unlock()

	if maintenance {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("maintenance"))
		return
	}

	switch {
	case r.URL.Path == "/mobile/":
		if r.URL.Query().Get("ssid") == "" {
			w.Write([]byte(`<html><body class="top">login</body></html>`))
			return
		}
		p.mu.Lock()
		token = p.newTokenLocked()
		p.mu.Unlock()
		http.SetCookie(w, &http.Cookie{Name: "_t", Value: token, Path: "/"})
		http.SetCookie(w, &http.Cookie{Name: "userId", Value: "1234", Path: "/"})
		http.Redirect(w, r, "/mobile/home/", http.StatusFound)
		return
	case strings.HasPrefix(r.URL.Path, "/mobile/error"):
		code := r.URL.Query().Get("code")
		fmt.Fprintf(w, ErrorPage, code, "Please login again.")
		return
	}

	sent, err := r.Cookie("_t")
	if token == "" || err != nil || sent.Value != token {
		if expiry == ExpiryErrorPage {
			http.Redirect(w, r, "/mobile/error/?code=200004", http.StatusFound)
			return
		}
		http.Redirect(w, r, "/mobile/", http.StatusFound)
		return
	}

	// like the real portal, a form token has to match the session cookie
	if form.Has("token") && form.Get("token") != token {
		http.Redirect(w, r, "/mobile/error/?code=100001", http.StatusFound)
		return
	}

	if !registered {
		http.NotFound(w, r)
		return
	}
	if page.Redirect != "" {
		http.Redirect(w, r, page.Redirect, http.StatusFound)
		return
	}
	if page.Status != 0 {
		w.WriteHeader(page.Status)
	}
	w.Write([]byte(page.Body))
}

// ErrorPage is the portal's error page, formatted with a code and a message.
const ErrorPage = `<html><body><div class="frame01 w460">
<div class="block text_l">
<p class="font_small">Error code: %s</p>
<p class="font_small">%s</p>
</div></div></body></html>`
