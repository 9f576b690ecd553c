package client

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/shortlink-org/bank-saga/config"
	"github.com/shortlink-org/bank-saga/contract"
	"github.com/shortlink-org/bank-saga/db"
	"github.com/shortlink-org/bank-saga/db/drivers/sqlite"
	"github.com/shortlink-org/bank-saga/db/drivers/sqlite/migrate"
	"github.com/shortlink-org/bank-saga/logger"
	"github.com/shortlink-org/bank-saga/uow"
)

//go:embed migrations/*.sql
var migrations embed.FS

var (
	errNotFound  = errors.New("client not found")
	errDuplicate = errors.New("cpf or email already registered")
)

// Store is the client context's datastore.
type Store struct {
	store db.DB
	conn  *sql.DB
}

// NewStore opens the "client" database and applies its migrations.
func NewStore(ctx context.Context, log logger.Logger, cfg *config.Config) (*Store, error) {
	store, err := db.New(ctx, log, cfg, db.TypeSQLite, "client")
	if err != nil {
		return nil, err
	}

	conn, ok := store.GetConn().(*sql.DB)
	if !ok {
		_ = store.Close()

		return nil, db.ErrGetConnection
	}

	if err := migrate.Migration(ctx, store, migrations, "client"); err != nil {
		_ = store.Close()

		return nil, err
	}

	return &Store{store: store, conn: conn}, nil
}

func (s *Store) Close() error {
	return s.store.Close()
}

func (s *Store) Insert(ctx context.Context, c contract.Client, at time.Time) error {
	stamp := at.UTC().Format(time.RFC3339Nano)

	query, args, err := sq.Insert("clients").
		Columns("id", "cpf", "name", "email", "phone", "salary", "status", "created_at", "updated_at").
		Values(c.ClientID, c.CPF, c.Name, c.Email, c.Phone, c.Salary.String(), c.Status, stamp, stamp).
		ToSql()
	if err != nil {
		return err
	}

	return uow.Do(ctx, s.conn, func(ctx context.Context) error {
		return exec(ctx, query, args...)
	})
}

func (s *Store) Get(ctx context.Context, id string) (contract.Client, error) {
	query, args, err := sq.Select("id", "cpf", "name", "email", "phone", "salary", "status").
		From("clients").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return contract.Client{}, err
	}

	var (
		c      contract.Client
		salary string
	)

	err = uow.Do(ctx, s.conn, func(ctx context.Context) error {
		tx, err := uow.Tx(ctx)
		if err != nil {
			return err
		}

		return tx.QueryRowContext(ctx, query, args...).
			Scan(&c.ClientID, &c.CPF, &c.Name, &c.Email, &c.Phone, &salary, &c.Status)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return contract.Client{}, errNotFound
	}

	if err != nil {
		return contract.Client{}, fmt.Errorf("get client: %w", err)
	}

	c.Salary, err = contract.ParseMoney(salary)

	return c, err
}

// Update writes the profile fields and status of c.
func (s *Store) Update(ctx context.Context, c contract.Client, at time.Time) error {
	query, args, err := sq.Update("clients").
		SetMap(map[string]any{
			"name":       c.Name,
			"email":      c.Email,
			"phone":      c.Phone,
			"salary":     c.Salary.String(),
			"status":     c.Status,
			"updated_at": at.UTC().Format(time.RFC3339Nano),
		}).
		Where(sq.Eq{"id": c.ClientID}).
		ToSql()
	if err != nil {
		return err
	}

	return uow.Do(ctx, s.conn, func(ctx context.Context) error {
		return exec(ctx, query, args...)
	})
}

// Do runs fn in one transaction.
func (s *Store) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return uow.Do(ctx, s.conn, fn)
}

func exec(ctx context.Context, query string, args ...any) error {
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
}
