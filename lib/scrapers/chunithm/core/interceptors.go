package core

import (
	"chuniscrape/lib/htmlutil"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// the portal sends a request with a dead session here
	landingPath     = "/mobile/"
	errorPathPrefix = "/mobile/error"
)

var meter = otel.Meter("scrapers/chunithm/core")

var (
	reauthCounter      metric.Int64Counter
	maintenanceCounter metric.Int64Counter
)

func init() {
	var err error
	reauthCounter, err = meter.Int64Counter(
		"chunithm.reauthentications",
		metric.WithDescription("session refreshes through the authentication gateway"),
	)
	if err != nil {
		panic(err)
	}
	maintenanceCounter, err = meter.Int64Counter(
		"chunithm.maintenance",
		metric.WithDescription("responses rejected because of scheduled maintenance"),
	)
	if err != nil {
		panic(err)
	}
}

func UserAgentInterceptor(userAgent string) Interceptor {
	return func(next Handler) Handler {
		return func(ctx context.Context, req *Request) (*Response, error) {
			req = req.clone()
			req.Header.Set("User-Agent", userAgent)
			return next(ctx, req)
		}
	}
}

func MaintenanceInterceptor() Interceptor {
	return func(next Handler) Handler {
		return func(ctx context.Context, req *Request) (*Response, error) {
			res, err := next(ctx, req)
			if err != nil {
				return nil, err
			}
			if res.StatusCode == http.StatusServiceUnavailable {
				maintenanceCounter.Add(ctx, 1)
				slog.WarnContext(ctx, "chunithm-net is under maintenance", "url", req.URL)
				return nil, ErrMaintenance
			}
			return res, nil
		}
	}
}

type sessionState int

const (
	sessionValid sessionState = iota
	sessionExpired
)

func classifySession(res *Response, err error) sessionState {
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) && serviceErr.SessionInvalid() {
		return sessionExpired
	}
	if err == nil && res.URL.Path == landingPath {
		return sessionExpired
	}
	return sessionValid
}

// AuthenticationInterceptor refreshes an expired session by visiting
// authUrl, which exchanges the gateway's login cookie for a new portal
// session, and retries the original request once. when the gateway
// keeps the client on its own host the login cookie itself is dead and
// ErrInvalidCredential is returned.
func AuthenticationInterceptor(authUrl *url.URL) Interceptor {
	return func(next Handler) Handler {
		return func(ctx context.Context, req *Request) (*Response, error) {
			res, err := next(ctx, req)
			if classifySession(res, err) == sessionValid {
				return res, err
			}

			slog.DebugContext(ctx, "session expired, reauthenticating", "url", req.URL)

			authReq := NewGet(authUrl.String())
			if ua := req.Header.Get("User-Agent"); ua != "" {
				authReq.Header.Set("User-Agent", ua)
			}
			authRes, err := next(ctx, authReq)
			if err != nil {
				return nil, err
			}
			if authRes.URL.Host == authUrl.Host {
				reauthCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "invalid_credential")))
				return nil, ErrInvalidCredential
			}
			reauthCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "refreshed")))

			return next(ctx, req)
		}
	}
}

// ServiceErrorInterceptor turns the portal's error page into a ServiceError.
func ServiceErrorInterceptor() Interceptor {
	return func(next Handler) Handler {
		return func(ctx context.Context, req *Request) (*Response, error) {
			res, err := next(ctx, req)
			if err != nil {
				return nil, err
			}
			if !strings.HasPrefix(res.URL.Path, errorPathPrefix) {
				return res, nil
			}
			return nil, parseErrorPage(res)
		}
	}
}

func parseErrorPage(res *Response) error {
	doc, err := res.Document()
	if err != nil {
		return err
	}

	texts := doc.Find(".block.text_l .font_small")
	if texts.Length() == 0 {
		return &ParseError{Page: res.URL.Path, Field: "error code"}
	}

	codeText := htmlutil.Text(texts.Eq(0))
	if after, ok := htmlutil.Between(codeText, ": ", ""); ok {
		codeText = after
	}
	code, err := strconv.Atoi(strings.TrimSpace(codeText))
	if err != nil {
		return &ParseError{Page: res.URL.Path, Field: "error code", Err: err}
	}

	serviceErr := &ServiceError{Code: code}
	if texts.Length() > 1 {
		serviceErr.Message = htmlutil.Text(texts.Eq(1))
	}
	return serviceErr
}
