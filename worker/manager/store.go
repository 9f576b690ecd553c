package manager

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
	errNotFound  = errors.New("manager not found")
	errDuplicate = errors.New("manager id, cpf or email already registered")
)

// Store is the manager context's datastore.
type Store struct {
	store db.DB
	conn  *sql.DB
}

// NewStore opens the "manager" database and applies its migrations.
func NewStore(ctx context.Context, log logger.Logger, cfg *config.Config) (*Store, error) {
	store, err := db.New(ctx, log, cfg, db.TypeSQLite, "manager")
	if err != nil {
		return nil, err
	}

	conn, ok := store.GetConn().(*sql.DB)
	if !ok {
		_ = store.Close()

		return nil, db.ErrGetConnection
	}

	if err := migrate.Migration(ctx, store, migrations, "manager"); err != nil {
		_ = store.Close()

		return nil, err
	}

	return &Store{store: store, conn: conn}, nil
}

func (s *Store) Close() error {
	return s.store.Close()
}

// Do runs fn in one transaction.
func (s *Store) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return uow.Do(ctx, s.conn, fn)
}

func (s *Store) Insert(ctx context.Context, m contract.CreateManager, at time.Time) error {
	query, args, err := sq.Insert("managers").
		Columns("id", "cpf", "name", "email", "phone", "created_at").
		Values(m.ManagerID, m.CPF, m.Name, m.Email, m.Phone, at.UTC().Format(time.RFC3339Nano)).
		ToSql()
	if err != nil {
		return err
	}

	return exec(ctx, query, args...)
}

func (s *Store) Get(ctx context.Context, id string) (contract.Manager, error) {
	query, args, err := sq.Select("id", "cpf", "name", "email").From("managers").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return contract.Manager{}, err
	}

	tx, err := uow.Tx(ctx)
	if err != nil {
		return contract.Manager{}, err
	}

	var m contract.Manager

	err = tx.QueryRowContext(ctx, query, args...).Scan(&m.ManagerID, &m.CPF, &m.Name, &m.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return contract.Manager{}, errNotFound
	}

	if err != nil {
		return contract.Manager{}, fmt.Errorf("get manager: %w", err)
	}

	return m, nil
}

// Delete removes the manager and reports whether it existed.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	query, args, err := sq.Delete("managers").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return false, err
	}

	tx, err := uow.Tx(ctx)
	if err != nil {
		return false, err
	}

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("delete manager: %w", err)
	}

	n, err := res.RowsAffected()

	return n > 0, err
}

// MarkRolledBack records that id must never be created.
func (s *Store) MarkRolledBack(ctx context.Context, id string, at time.Time) error {
	query, args, err := sq.Insert("rolled_back").
		Options("OR IGNORE").
		Columns("id", "rolled_back_at").
		Values(id, at.UTC().Format(time.RFC3339Nano)).
		ToSql()
	if err != nil {
		return err
	}

	return exec(ctx, query, args...)
}

func (s *Store) RolledBack(ctx context.Context, id string) (bool, error) {
	query, args, err := sq.Select("COUNT(*)").From("rolled_back").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return false, err
	}

	tx, err := uow.Tx(ctx)
	if err != nil {
		return false, err
	}

	var n int
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return false, fmt.Errorf("query rolled back: %w", err)
	}

	return n > 0, nil
}

func (s *Store) InsertNotification(ctx context.Context, n contract.ManagerNotification, accountNumber string) error {
	query, args, err := sq.Insert("notifications").
		Columns("id", "manager_id", "client_id", "account_number", "created_at").
		Values(n.NotificationID, n.ManagerID, n.ClientID, accountNumber, n.NotifiedAt.UTC().Format(time.RFC3339Nano)).
		ToSql()
	if err != nil {
		return err
	}

	return exec(ctx, query, args...)
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
