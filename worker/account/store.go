package account

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strconv"
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

// firstNumber is the number of the first account opened.
const firstNumber = 1000

var (
	errNotFound = errors.New("not found")
	errExists   = errors.New("already exists")
)

// Load is a manager with the number of accounts it owns.
type Load struct {
	ManagerID string
	CPF       string
	Accounts  int
}

// Store is the account context's datastore.
type Store struct {
	store db.DB
	conn  *sql.DB
}

// NewStore opens the "account" database and applies its migrations.
func NewStore(ctx context.Context, log logger.Logger, cfg *config.Config) (*Store, error) {
	store, err := db.New(ctx, log, cfg, db.TypeSQLite, "account")
	if err != nil {
		return nil, err
	}

	conn, ok := store.GetConn().(*sql.DB)
	if !ok {
		_ = store.Close()

		return nil, db.ErrGetConnection
	}

	if err := migrate.Migration(ctx, store, migrations, "account"); err != nil {
		_ = store.Close()

		return nil, err
	}

	return &Store{store: store, conn: conn}, nil
}

// Do runs fn in one transaction.
func (s *Store) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return uow.Do(ctx, s.conn, fn)
}

func (s *Store) Close() error {
	return s.store.Close()
}

func (s *Store) AddManager(ctx context.Context, id, cpf string, at time.Time) error {
	query, args, err := sq.Insert("managers").
		Columns("id", "cpf", "created_at").
		Values(id, cpf, at.UTC().Format(time.RFC3339Nano)).
		ToSql()
	if err != nil {
		return err
	}

	if err := exec(ctx, query, args...); err != nil {
		if sqlite.IsUniqueViolation(err) {
			return errExists
		}

		return fmt.Errorf("insert manager: %w", err)
	}

	return nil
}

func (s *Store) RemoveManager(ctx context.Context, id string) error {
	query, args, err := sq.Delete("managers").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return err
	}

	return exec(ctx, query, args...)
}

// Loads returns every manager with its account count, ordered by manager id.
func (s *Store) Loads(ctx context.Context) ([]Load, error) {
	query, args, err := sq.Select("m.id", "m.cpf", "COUNT(a.number)").
		From("managers m").
		LeftJoin("accounts a ON a.manager_id = m.id").
		GroupBy("m.id", "m.cpf").
		OrderBy("m.id").
		ToSql()
	if err != nil {
		return nil, err
	}

	tx, err := uow.Tx(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query loads: %w", err)
	}
	defer rows.Close()

	var loads []Load

	for rows.Next() {
		var l Load
		if err := rows.Scan(&l.ManagerID, &l.CPF, &l.Accounts); err != nil {
			return nil, err
		}

		loads = append(loads, l)
	}

	return loads, rows.Err()
}

var accountColumns = []string{
	"number", "client_id", "client_cpf", "balance", "credit", "manager_id", "manager_cpf", "created_at", "version",
}

func (s *Store) AccountByClient(ctx context.Context, clientID string) (contract.Account, error) {
	accounts, err := s.accounts(ctx, sq.Eq{"client_id": clientID})
	if err != nil {
		return contract.Account{}, err
	}

	if len(accounts) == 0 {
		return contract.Account{}, errNotFound
	}

	return accounts[0], nil
}

// AccountsOf returns the accounts owned by managerID in number order.
func (s *Store) AccountsOf(ctx context.Context, managerID string) ([]contract.Account, error) {
	return s.accounts(ctx, sq.Eq{"manager_id": managerID})
}

func (s *Store) accounts(ctx context.Context, where sq.Sqlizer) ([]contract.Account, error) {
	query, args, err := sq.Select(accountColumns...).From("accounts").Where(where).OrderBy("number").ToSql()
	if err != nil {
		return nil, err
	}

	tx, err := uow.Tx(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	var out []contract.Account

	for rows.Next() {
		var (
			acc                        contract.Account
			number                     int64
			balance, credit, createdAt string
		)

		err := rows.Scan(&number, &acc.ClientID, &acc.ClientCPF, &balance, &credit, &acc.ManagerID, &acc.ManagerCPF, &createdAt, &acc.Version)
		if err != nil {
			return nil, err
		}

		acc.Number = strconv.FormatInt(number, 10)

		if acc.Balance, err = contract.ParseMoney(balance); err != nil {
			return nil, err
		}

		if acc.Limit, err = contract.ParseMoney(credit); err != nil {
			return nil, err
		}

		if acc.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, err
		}

		out = append(out, acc)
	}

	return out, rows.Err()
}

// NextNumber returns the number the next account gets.
func (s *Store) NextNumber(ctx context.Context) (int64, error) {
	query, args, err := sq.Select(fmt.Sprintf("COALESCE(MAX(number), %d) + 1", firstNumber-1)).From("accounts").ToSql()
	if err != nil {
		return 0, err
	}

	tx, err := uow.Tx(ctx)
	if err != nil {
		return 0, err
	}

	var next int64
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&next); err != nil {
		return 0, fmt.Errorf("next account number: %w", err)
	}

	return next, nil
}

func (s *Store) InsertAccount(ctx context.Context, acc contract.Account) error {
	query, args, err := sq.Insert("accounts").
		Columns(accountColumns...).
		Values(acc.Number, acc.ClientID, acc.ClientCPF, acc.Balance.String(), acc.Limit.String(),
			acc.ManagerID, acc.ManagerCPF, acc.CreatedAt.UTC().Format(time.RFC3339Nano), acc.Version).
		ToSql()
	if err != nil {
		return err
	}

	if err := exec(ctx, query, args...); err != nil {
		if sqlite.IsUniqueViolation(err) {
			return errExists
		}

		return fmt.Errorf("insert account: %w", err)
	}

	return nil
}

// UpdateAccount bumps the version of acc and writes its mutable fields:
// balance, limit and manager.
func (s *Store) UpdateAccount(ctx context.Context, acc *contract.Account) error {
	acc.Version++

	query, args, err := sq.Update("accounts").
		SetMap(map[string]any{
			"balance":     acc.Balance.String(),
			"credit":      acc.Limit.String(),
			"manager_id":  acc.ManagerID,
			"manager_cpf": acc.ManagerCPF,
			"version":     acc.Version,
		}).
		Where(sq.Eq{"client_id": acc.ClientID}).
		ToSql()
	if err != nil {
		return err
	}

	return exec(ctx, query, args...)
}

func (s *Store) InsertTransaction(ctx context.Context, t contract.Transaction) error {
	var destinationBalance sql.NullString
	if t.DestinationBalance != nil {
		destinationBalance = sql.NullString{String: t.DestinationBalance.String(), Valid: true}
	}

	query, args, err := sq.Insert("transactions").
		Columns("id", "type", "amount", "occurred_at", "client_id", "destination_client_id", "balance", "destination_balance").
		Values(t.ID, t.Type, t.Amount.String(), t.At.UTC().Format(time.RFC3339Nano), t.ClientID,
			sql.NullString{String: t.DestinationID, Valid: t.DestinationID != ""}, t.Balance.String(), destinationBalance).
		ToSql()
	if err != nil {
		return err
	}

	if err := exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}

	return nil
}

func exec(ctx context.Context, query string, args ...any) error {
	tx, err := uow.Tx(ctx)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, query, args...)

	return err
}
