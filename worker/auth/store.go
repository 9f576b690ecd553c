package auth

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/shortlink-org/bank-saga/config"
	"github.com/shortlink-org/bank-saga/db"
	"github.com/shortlink-org/bank-saga/db/drivers/sqlite"
	"github.com/shortlink-org/bank-saga/db/drivers/sqlite/migrate"
	"github.com/shortlink-org/bank-saga/logger"
	"github.com/shortlink-org/bank-saga/uow"
)

//go:embed migrations/*.sql
var migrations embed.FS

var (
	errNotFound  = errors.New("user not found")
	errDuplicate = errors.New("user id or login already registered")
)

type user struct {
	ID           string
	Login        string
	PasswordHash string
	Role         string
}

// Store is the auth context's datastore.
type Store struct {
	store db.DB
	conn  *sql.DB
}

// NewStore opens the "auth" database and applies its migrations.
func NewStore(ctx context.Context, log logger.Logger, cfg *config.Config) (*Store, error) {
	store, err := db.New(ctx, log, cfg, db.TypeSQLite, "auth")
	if err != nil {
		return nil, err
	}

	conn, ok := store.GetConn().(*sql.DB)
	if !ok {
		_ = store.Close()

		return nil, db.ErrGetConnection
	}

	if err := migrate.Migration(ctx, store, migrations, "auth"); err != nil {
		_ = store.Close()

		return nil, err
	}

	return &Store{store: store, conn: conn}, nil
}

func (s *Store) Close() error {
	return s.store.Close()
}

func (s *Store) Insert(ctx context.Context, u user, at time.Time) error {
	query, args, err := sq.Insert("users").
		Columns("id", "login", "password_hash", "role", "created_at").
		Values(u.ID, u.Login, u.PasswordHash, u.Role, at.UTC().Format(time.RFC3339Nano)).
		ToSql()
	if err != nil {
		return err
	}

	return s.exec(ctx, query, args...)
}

func (s *Store) ByLogin(ctx context.Context, login string) (user, error) {
	query, args, err := sq.Select("id", "login", "password_hash", "role").
		From("users").
		Where(sq.Eq{"login": login}).
		ToSql()
	if err != nil {
		return user{}, err
	}

	var u user

	err = uow.Do(ctx, s.conn, func(ctx context.Context) error {
		tx, err := uow.Tx(ctx)
		if err != nil {
			return err
		}

		return tx.QueryRowContext(ctx, query, args...).Scan(&u.ID, &u.Login, &u.PasswordHash, &u.Role)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return user{}, errNotFound
	}

	if err != nil {
		return user{}, fmt.Errorf("get user: %w", err)
	}

	return u, nil
}

// Delete removes the user and reports whether it existed.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	query, args, err := sq.Delete("users").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return false, err
	}

	var deleted int64

	err = uow.Do(ctx, s.conn, func(ctx context.Context) error {
		tx, err := uow.Tx(ctx)
		if err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}

		deleted, err = res.RowsAffected()

		return err
	})
	if err != nil {
		return false, fmt.Errorf("delete user: %w", err)
	}

	return deleted > 0, nil
}

// Revoke stores a token hash until it expires. Revoking twice is a no-op.
func (s *Store) Revoke(ctx context.Context, tokenHash string, expiresAt time.Time) error {
	query, args, err := sq.Insert("revoked_tokens").
		Options("OR IGNORE").
		Columns("token_hash", "expires_at").
		Values(tokenHash, expiresAt.UTC().Format(time.RFC3339Nano)).
		ToSql()
	if err != nil {
		return err
	}

	return s.exec(ctx, query, args...)
}

// Revoked reports whether tokenHash is revoked and not yet expired at now.
func (s *Store) Revoked(ctx context.Context, tokenHash string, now time.Time) (bool, error) {
	query, args, err := sq.Select("COUNT(*)").
		From("revoked_tokens").
		Where(sq.Eq{"token_hash": tokenHash}).
		Where(sq.Gt{"expires_at": now.UTC().Format(time.RFC3339Nano)}).
		ToSql()
	if err != nil {
		return false, err
	}

	var n int

	err = uow.Do(ctx, s.conn, func(ctx context.Context) error {
		tx, err := uow.Tx(ctx)
		if err != nil {
			return err
		}

		return tx.QueryRowContext(ctx, query, args...).Scan(&n)
	})
	if err != nil {
		return false, fmt.Errorf("query revoked token: %w", err)
	}

	return n > 0, nil
}

// PurgeExpired drops revoked tokens that expired before now.
func (s *Store) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	query, args, err := sq.Delete("revoked_tokens").
		Where(sq.LtOrEq{"expires_at": now.UTC().Format(time.RFC3339Nano)}).
		ToSql()
	if err != nil {
		return 0, err
	}

	var purged int64

	err = uow.Do(ctx, s.conn, func(ctx context.Context) error {
		tx, err := uow.Tx(ctx)
		if err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}

		purged, err = res.RowsAffected()

		return err
	})

	return purged, err
}

func (s *Store) exec(ctx context.Context, query string, args ...any) error {
	return uow.Do(ctx, s.conn, func(ctx context.Context) error {
		tx, err := uow.Tx(ctx)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			if sqlite.IsUniqueViolation(err) {
				return errDuplicate
			}

			return err
		}

		return nil
	})
}
