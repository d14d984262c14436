package db

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type ChunithmSession struct {
	User      string
	Cookies   string
	UpdatedAt int64
}

const getSession = `select user, cookies, updated_at from chunithm_session
where user = ?`

func (q *Queries) GetSession(ctx context.Context, user string) (ChunithmSession, error) {
	row := q.db.QueryRowContext(ctx, getSession, user)
	var i ChunithmSession
	err := row.Scan(&i.User, &i.Cookies, &i.UpdatedAt)
	return i, err
}

const putSession = `insert into chunithm_session(user, cookies, updated_at)
values (?, ?, ?)
on conflict (user) do update set
    cookies = excluded.cookies,
    updated_at = excluded.updated_at`

type PutSessionParams struct {
	User      string
	Cookies   string
	UpdatedAt int64
}

func (q *Queries) PutSession(ctx context.Context, arg PutSessionParams) error {
	_, err := q.db.ExecContext(ctx, putSession, arg.User, arg.Cookies, arg.UpdatedAt)
	return err
}

const deleteSession = `delete from chunithm_session where user = ?`

func (q *Queries) DeleteSession(ctx context.Context, user string) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteSession, user)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const listUsers = `select user from chunithm_session order by user`

func (q *Queries) ListUsers(ctx context.Context) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, listUsers)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []string
	for rows.Next() {
		var user string
		if err := rows.Scan(&user); err != nil {
			return nil, err
		}
		items = append(items, user)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
