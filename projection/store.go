package projection

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
	"github.com/shortlink-org/bank-saga/db/drivers/sqlite/migrate"
	"github.com/shortlink-org/bank-saga/logger"
	"github.com/shortlink-org/bank-saga/uow"
)

//go:embed migrations/*.sql
var migrations embed.FS

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

var errNotFound = errors.New("not found")

// AccountView is the read-model row of one account.
type AccountView struct {
	CreatedAt  time.Time
	Balance    contract.Money
	Limit      contract.Money
	ID         int64
	ClientID   string
	ClientCPF  string
	Number     string
	ManagerID  string
	ManagerCPF string
	Version    int64
}

// TransactionView is the read-model row of one transaction. It belongs to
// the origin account; DestinationBalance is set on transfers only.
type TransactionView struct {
	At                  time.Time
	Amount              contract.Money
	Balance             contract.Money
	DestinationBalance  *contract.Money
	ID                  string
	AccountID           int64
	Type                string
	OriginClientID      string
	DestinationClientID string
}

// Store is the read model's datastore.
type Store struct {
	store db.DB
	conn  *sql.DB
}

// NewStore opens the "projection" database and applies its migrations.
func NewStore(ctx context.Context, log logger.Logger, cfg *config.Config) (*Store, error) {
	store, err := db.New(ctx, log, cfg, db.TypeSQLite, "projection")
	if err != nil {
		return nil, err
	}

	conn, ok := store.GetConn().(*sql.DB)
	if !ok {
		_ = store.Close()

		return nil, db.ErrGetConnection
	}

	if err := migrate.Migration(ctx, store, migrations, "projection"); err != nil {
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

// UpsertAccount creates the view of acc or overwrites it. Fields other than
// the balance are left alone when the view is already at acc's version or a
// later one; the balance follows SetBalance.
func (s *Store) UpsertAccount(ctx context.Context, acc contract.Account) error {
	query, args, err := sq.Insert("account_views").
		Columns("client_id", "client_cpf", "number", "balance", "credit", "manager_id", "manager_cpf", "created_at",
			"version", "balance_version").
		Values(acc.ClientID, acc.ClientCPF, acc.Number, acc.Balance.String(), acc.Limit.String(),
			acc.ManagerID, acc.ManagerCPF, acc.CreatedAt.UTC().Format(timeLayout), acc.Version, acc.Version).
		Suffix(`ON CONFLICT (client_id) DO UPDATE SET
			client_cpf = excluded.client_cpf,
			number = excluded.number,
			credit = excluded.credit,
			manager_id = excluded.manager_id,
			manager_cpf = excluded.manager_cpf,
			created_at = excluded.created_at,
			version = excluded.version
		WHERE excluded.version > account_views.version`).
		ToSql()
	if err != nil {
		return err
	}

	if _, err := exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert account view %s: %w", acc.ClientID, err)
	}

	return s.SetBalance(ctx, acc.ClientID, acc.Balance, acc.Version)
}

// SetBalance moves the balance of the view of clientID to balance as of
// version. A balance already at version or a later one is kept.
func (s *Store) SetBalance(ctx context.Context, clientID string, balance contract.Money, version int64) error {
	query, args, err := sq.Update("account_views").
		Set("balance", balance.String()).
		Set("balance_version", version).
		Where(sq.Eq{"client_id": clientID}).
		Where(sq.Lt{"balance_version": version}).
		ToSql()
	if err != nil {
		return err
	}

	if _, err := exec(ctx, query, args...); err != nil {
		return fmt.Errorf("set balance of %s: %w", clientID, err)
	}

	return nil
}

var accountViewColumns = []string{
	"id", "client_id", "client_cpf", "number", "balance", "credit", "manager_id", "manager_cpf", "created_at", "version",
}

func (s *Store) Account(ctx context.Context, clientID string) (AccountView, error) {
	views, err := s.accounts(ctx, sq.Eq{"client_id": clientID})
	if err != nil {
		return AccountView{}, err
	}

	if len(views) == 0 {
		return AccountView{}, errNotFound
	}

	return views[0], nil
}

// Accounts returns every view ordered by client id.
func (s *Store) Accounts(ctx context.Context) ([]AccountView, error) {
	return s.accounts(ctx, nil)
}

func (s *Store) accounts(ctx context.Context, where sq.Sqlizer) ([]AccountView, error) {
	builder := sq.Select(accountViewColumns...).From("account_views").OrderBy("client_id")
	if where != nil {
		builder = builder.Where(where)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}

	tx, err := uow.Tx(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query account views: %w", err)
	}
	defer rows.Close()

	var out []AccountView

	for rows.Next() {
		var (
			view                       AccountView
			balance, credit, createdAt string
		)

		err := rows.Scan(&view.ID, &view.ClientID, &view.ClientCPF, &view.Number, &balance, &credit,
			&view.ManagerID, &view.ManagerCPF, &createdAt, &view.Version)
		if err != nil {
			return nil, err
		}

		if view.Balance, err = contract.ParseMoney(balance); err != nil {
			return nil, err
		}

		if view.Limit, err = contract.ParseMoney(credit); err != nil {
			return nil, err
		}

		if view.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
			return nil, err
		}

		out = append(out, view)
	}

	return out, rows.Err()
}

// InsertTransaction records t once. It reports false when a view with the
// same id already exists.
func (s *Store) InsertTransaction(ctx context.Context, t TransactionView) (bool, error) {
	var destinationBalance sql.NullString
	if t.DestinationBalance != nil {
		destinationBalance = sql.NullString{String: t.DestinationBalance.String(), Valid: true}
	}

	query, args, err := sq.Insert("transaction_views").
		Options("OR IGNORE").
		Columns("id", "account_id", "occurred_at", "type", "amount", "client_id",
			"destination_client_id", "balance", "destination_balance").
		Values(t.ID, t.AccountID, t.At.UTC().Format(timeLayout), t.Type, t.Amount.String(), t.OriginClientID,
			sql.NullString{String: t.DestinationClientID, Valid: t.DestinationClientID != ""},
			t.Balance.String(), destinationBalance).
		ToSql()
	if err != nil {
		return false, err
	}

	res, err := exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("insert transaction view %s: %w", t.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return n == 1, nil
}

// Movements returns the transactions clientID took part in with a timestamp
// in [from, to), ordered by timestamp.
func (s *Store) Movements(ctx context.Context, clientID string, from, to time.Time) ([]TransactionView, error) {
	return s.transactions(ctx, sq.And{
		involving(clientID),
		sq.GtOrEq{"occurred_at": from.UTC().Format(timeLayout)},
		sq.Lt{"occurred_at": to.UTC().Format(timeLayout)},
	}, 0, "occurred_at", "id")
}

// LastMovementBefore returns the latest transaction clientID took part in
// with a timestamp before at.
func (s *Store) LastMovementBefore(ctx context.Context, clientID string, at time.Time) (TransactionView, error) {
	views, err := s.transactions(ctx, sq.And{
		involving(clientID),
		sq.Lt{"occurred_at": at.UTC().Format(timeLayout)},
	}, 1, "occurred_at DESC", "id DESC")
	if err != nil {
		return TransactionView{}, err
	}

	if len(views) == 0 {
		return TransactionView{}, errNotFound
	}

	return views[0], nil
}

func involving(clientID string) sq.Sqlizer {
	return sq.Or{sq.Eq{"client_id": clientID}, sq.Eq{"destination_client_id": clientID}}
}

func (s *Store) transactions(ctx context.Context, where sq.Sqlizer, limit uint64, orderBy ...string) ([]TransactionView, error) {
	builder := sq.Select("id", "account_id", "occurred_at", "type", "amount", "client_id",
		"COALESCE(destination_client_id, '')", "balance", "destination_balance").
		From("transaction_views").
		Where(where).
		OrderBy(orderBy...)
	if limit > 0 {
		builder = builder.Limit(limit)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}

	tx, err := uow.Tx(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transaction views: %w", err)
	}
	defer rows.Close()

	var out []TransactionView

	for rows.Next() {
		var (
			view                   TransactionView
			at, amount, balance    string
			destinationBalanceText sql.NullString
		)

		err := rows.Scan(&view.ID, &view.AccountID, &at, &view.Type, &amount, &view.OriginClientID,
			&view.DestinationClientID, &balance, &destinationBalanceText)
		if err != nil {
			return nil, err
		}

		if view.At, err = time.Parse(timeLayout, at); err != nil {
			return nil, err
		}

		if view.Amount, err = contract.ParseMoney(amount); err != nil {
			return nil, err
		}

		if view.Balance, err = contract.ParseMoney(balance); err != nil {
			return nil, err
		}

		if destinationBalanceText.Valid {
			destination, err := contract.ParseMoney(destinationBalanceText.String)
			if err != nil {
				return nil, err
			}

			view.DestinationBalance = &destination
		}

		out = append(out, view)
	}

	return out, rows.Err()
}

// Clear deletes every view.
func (s *Store) Clear(ctx context.Context) error {
	for _, table := range []string{"transaction_views", "account_views"} {
		query, args, err := sq.Delete(table).ToSql()
		if err != nil {
			return err
		}

		if _, err := exec(ctx, query, args...); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	return nil
}

func exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	tx, err := uow.Tx(ctx)
	if err != nil {
		return nil, err
	}

	return tx.ExecContext(ctx, query, args...)
}
