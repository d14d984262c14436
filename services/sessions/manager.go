// Package sessions keeps one logged in portal client per user, backed by
// the session store.
package sessions

import (
	"chuniscrape/lib/cookiejar"
	"chuniscrape/lib/scrapers/chunithm"
	"chuniscrape/lib/scrapers/chunithm/core"
	"chuniscrape/lib/sessionstore"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("services/sessions")

type Options struct {
	// template for every user's client, Jar is ignored
	Client       core.ClientOptions
	CacheSize    int
	CacheTTL     time.Duration
	PersistDelay time.Duration
}

type Manager struct {
	store   sessionstore.Store
	persist *sessionstore.Debouncer
	client  core.ClientOptions
	cache   *expirable.LRU[string, *chunithm.Client]
	// so concurrent misses restore a user only once
	restoreMu sync.Mutex
}

func NewManager(store sessionstore.Store, opts Options) *Manager {
	size := opts.CacheSize
	if size <= 0 {
		size = 2048
	}
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = time.Minute * 15
	}
	return &Manager{
		store:   store,
		persist: sessionstore.NewDebouncer(store, opts.PersistDelay),
		client:  opts.Client,
		cache:   expirable.NewLRU[string, *chunithm.Client](size, nil, ttl),
	}
}

func (m *Manager) persistHook(user string) func(*cookiejar.Jar) {
	return func(jar *cookiejar.Jar) {
		m.persist.Schedule(user, jar.Serialize())
	}
}

func (m *Manager) newClient(user string, jar *cookiejar.Jar) (*chunithm.Client, error) {
	jar.SetChangeHook(m.persistHook(user))
	opts := m.client
	opts.Jar = jar
	client, err := chunithm.NewClient(opts)
	if err != nil {
		return nil, err
	}
	m.cache.Add(user, client)
	return client, nil
}

// Login validates clal, stores the resulting session under user and
// returns the player's basic profile.
func (m *Manager) Login(ctx context.Context, user, clal string) (chunithm.PlayerProfile, error) {
	ctx, span := tracer.Start(ctx, "Login")
	defer span.End()
	span.SetAttributes(attribute.String("user", user))

	jar, profile, err := chunithm.ValidateLoginCookie(ctx, m.client, clal)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return chunithm.PlayerProfile{}, err
	}

	// an older session of the same user must not overwrite this one
	m.detach(user)
	blob := jar.Serialize()
	err = m.persist.Fence(ctx, user, func(ctx context.Context) error {
		return m.store.Put(ctx, user, blob)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return chunithm.PlayerProfile{}, err
	}
	_, err = m.newClient(user, jar)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return chunithm.PlayerProfile{}, err
	}

	slog.InfoContext(ctx, "logged in", "user", user, "player", profile.Name)
	return profile, nil
}

// Client returns the cached client of user or restores it from the
// store. a user that never logged in gets sessionstore.ErrNotFound.
func (m *Manager) Client(ctx context.Context, user string) (*chunithm.Client, error) {
	cached, hit := m.cache.Get(user)
	if hit {
		return cached, nil
	}

	m.restoreMu.Lock()
	defer m.restoreMu.Unlock()
	cached, hit = m.cache.Get(user)
	if hit {
		return cached, nil
	}

	session, err := m.store.Get(ctx, user)
	if err != nil {
		return nil, err
	}
	jar, err := cookiejar.Deserialize(session.Cookies)
	if err != nil {
		return nil, fmt.Errorf("restore session of %s: %w", user, err)
	}
	return m.newClient(user, jar)
}

// Call runs fn with the client of user. when fn fails because the login
// cookie stopped working the session is forgotten.
func (m *Manager) Call(ctx context.Context, user string, fn func(ctx context.Context, client *chunithm.Client) error) error {
	client, err := m.Client(ctx, user)
	if err != nil {
		return err
	}
	err = fn(ctx, client)
	if errors.Is(err, core.ErrInvalidCredential) {
		slog.WarnContext(ctx, "login cookie expired, forgetting session", "user", user)
		forgetErr := m.Forget(ctx, user)
		if forgetErr != nil {
			return errors.Join(err, forgetErr)
		}
	}
	return err
}

// detach stops the cached client of user from scheduling writes.
func (m *Manager) detach(user string) {
	if client, ok := m.cache.Peek(user); ok {
		client.Core.Jar.SetChangeHook(nil)
	}
}

// Forget drops the session of user locally without telling the portal.
func (m *Manager) Forget(ctx context.Context, user string) error {
	m.detach(user)
	m.cache.Remove(user)
	return m.persist.Fence(ctx, user, func(ctx context.Context) error {
		return m.store.Delete(ctx, user)
	})
}

// Logout ends the portal session and forgets it. the remote logout is
// best effort.
func (m *Manager) Logout(ctx context.Context, user string) error {
	ctx, span := tracer.Start(ctx, "Logout")
	defer span.End()
	span.SetAttributes(attribute.String("user", user))

	client, err := m.Client(ctx, user)
	if errors.Is(err, sessionstore.ErrNotFound) {
		return nil
	}
	if err == nil {
		err = client.Logout(ctx)
	}
	if err != nil {
		slog.WarnContext(ctx, "remote logout failed", "user", user, "err", err)
	}

	err = m.Forget(ctx, user)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// Close writes pending session updates.
func (m *Manager) Close(ctx context.Context) error {
	return m.persist.Flush(ctx)
}

// Users lists every user with a stored session.
func (m *Manager) Users(ctx context.Context) ([]string, error) {
	return m.store.Users(ctx)
}
