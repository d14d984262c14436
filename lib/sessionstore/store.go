// Package sessionstore persists portal sessions (serialized cookie jars)
// keyed by user.
package sessionstore

import (
	"chuniscrape/lib/sessionstore/db"
	"chuniscrape/lib/timezone"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var ErrNotFound = errors.New("session not found")

type Session struct {
	User string
	// netscape cookie file
	Cookies   string
	UpdatedAt time.Time
}

type Store struct {
	db  *sql.DB
	qry *db.Queries
}

func NewStore(database *sql.DB) Store {
	return Store{
		db:  database,
		qry: db.New(database),
	}
}

// Migrate creates the tables if they do not exist yet.
func (s Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, db.Schema)
	return err
}

func (s Store) Get(ctx context.Context, user string) (Session, error) {
	row, err := s.qry.GetSession(ctx, user)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("%s: %w", user, ErrNotFound)
	}
	if err != nil {
		return Session{}, err
	}
	return Session{
		User:      row.User,
		Cookies:   row.Cookies,
		UpdatedAt: time.Unix(row.UpdatedAt, 0).In(timezone.Location),
	}, nil
}

// Put replaces the stored cookies of user.
func (s Store) Put(ctx context.Context, user, cookies string) error {
	return s.qry.PutSession(ctx, db.PutSessionParams{
		User:      user,
		Cookies:   cookies,
		UpdatedAt: timezone.Now().Unix(),
	})
}

// Delete removes the session of user, deleting a missing session is
// not an error.
func (s Store) Delete(ctx context.Context, user string) error {
	_, err := s.qry.DeleteSession(ctx, user)
	return err
}

func (s Store) Users(ctx context.Context) ([]string, error) {
	return s.qry.ListUsers(ctx)
}
