package core

import (
	"chuniscrape/lib/cookiejar"
	"chuniscrape/lib/restyutil"
	"chuniscrape/lib/telemetry"
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseUrl   = "https://chunithm-net-eng.com"
	DefaultAuthUrl   = "https://lng-tgk-aime-gw.am-all.net/common_auth/login?site_id=chuniex&redirect_url=https://chunithm-net-eng.com/mobile/&back_url=https://chunithm.sega.com/"
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:109.0) Gecko/20100101 Firefox/119.0"

	// name of the cookie holding the per-session form token
	sessionTokenCookie = "_t"
)

type ClientOptions struct {
	// defaults to DefaultBaseUrl
	BaseUrl string
	// defaults to DefaultAuthUrl
	AuthUrl string
	// defaults to an empty jar
	Jar *cookiejar.Jar

	UserAgent        string
	CloudflareBypass bool
	// 0 means 2 requests per second, negative disables the limit
	RequestsPerSecond float64

	// default to 30s, 30s and 2m
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	CallTimeout    time.Duration

	// dumps every exchange while debug logging is on, can be nil
	DebugOutput restyutil.InstrumentOutput
}

// Client is a session bound http client for chunithm-net. it owns its
// cookie jar and must not be shared between users.
type Client struct {
	BaseUrl *url.URL
	AuthUrl *url.URL
	Jar     *cookiejar.Jar
	Http    *resty.Client

	callTimeout time.Duration
	handler     Handler
}

func orDefault[T comparable](value, fallback T) T {
	var zero T
	if value == zero {
		return fallback
	}
	return value
}

func NewClient(opts ClientOptions) (*Client, error) {
	baseUrl, err := url.Parse(orDefault(opts.BaseUrl, DefaultBaseUrl))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	authUrl, err := url.Parse(orDefault(opts.AuthUrl, DefaultAuthUrl))
	if err != nil {
		return nil, fmt.Errorf("parse auth url: %w", err)
	}
	jar := opts.Jar
	if jar == nil {
		jar = cookiejar.New()
	}
	connectTimeout := orDefault(opts.ConnectTimeout, 30*time.Second)
	readTimeout := orDefault(opts.ReadTimeout, 30*time.Second)

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   connectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		TLSHandshakeTimeout:   connectTimeout,
		ResponseHeaderTimeout: readTimeout,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConnsPerHost:   4,
	}

	client := resty.New()
	client.SetBaseURL(baseUrl.String())
	client.SetTransport(transport)
	if opts.CloudflareBypass {
		client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	}
	client.SetCookieJar(jar)
	// the login flow bounces between the gateway and the portal
	client.SetRedirectPolicy(resty.FlexibleRedirectPolicy(10))

	rps := orDefault(opts.RequestsPerSecond, 2)
	if rps > 0 {
		// max burst >= 2 just means that no requests will be dropped
		rateLimiter := rate.NewLimiter(rate.Limit(rps), 2)
		client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return rateLimiter.Wait(req.Context())
		})
	}

	telemetry.InstrumentResty(client, "scrapers/chunithm/http")
	restyutil.InstrumentClient(client, opts.DebugOutput)

	c := &Client{
		BaseUrl:     baseUrl,
		AuthUrl:     authUrl,
		Jar:         jar,
		Http:        client,
		callTimeout: orDefault(opts.CallTimeout, 2*time.Minute),
	}
	c.handler = Chain(
		c.send,
		UserAgentInterceptor(orDefault(opts.UserAgent, DefaultUserAgent)),
		MaintenanceInterceptor(),
		AuthenticationInterceptor(authUrl),
		ServiceErrorInterceptor(),
	)
	return c, nil
}

// send performs the network call, it is the innermost handler.
func (c *Client) send(ctx context.Context, req *Request) (*Response, error) {
	r := c.Http.R().SetContext(ctx)
	for key, values := range req.Header {
		for _, v := range values {
			r.Header.Add(key, v)
		}
	}
	form := req.Form
	if req.TokenField != "" {
		if token, ok := c.Jar.Value(c.BaseUrl, sessionTokenCookie); ok {
			form = cloneValues(form)
			form.Set(req.TokenField, token)
		}
	}
	if form != nil {
		r.SetFormDataFromValues(form)
	}

	res, err := r.Execute(req.Method, req.URL)
	if err != nil {
		return nil, &TransportError{Method: req.Method, URL: req.URL, Err: err}
	}

	return &Response{
		StatusCode: res.StatusCode(),
		URL:        res.RawResponse.Request.URL,
		Header:     res.Header(),
		Body:       res.Body(),
	}, nil
}

// Do sends req through the interceptor chain. the call timeout covers
// the reauthentication round trip. any final status outside 2xx is a
// TransportError.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	res, err := c.handler(ctx, req)
	if err != nil {
		return nil, err
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, &TransportError{Method: req.Method, URL: req.URL, StatusCode: res.StatusCode}
	}
	return res, nil
}

func (c *Client) Get(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, NewGet(path))
}

func (c *Client) PostForm(ctx context.Context, path string, form url.Values) (*Response, error) {
	return c.Do(ctx, NewPostForm(path, form))
}

// Fetch downloads a resource (usually an image) by absolute url.
func (c *Client) Fetch(ctx context.Context, rawUrl string) ([]byte, error) {
	res, err := c.Get(ctx, rawUrl)
	if err != nil {
		return nil, err
	}
	return res.Body, nil
}

// SessionToken returns the form token the portal expects on every
// state changing POST, it lives in the "_t" cookie.
func (c *Client) SessionToken() (string, error) {
	token, ok := c.Jar.Value(c.BaseUrl, sessionTokenCookie)
	if !ok {
		return "", fmt.Errorf("no %s cookie in session: %w", sessionTokenCookie, ErrInvalidCredential)
	}
	return token, nil
}
