package projection

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shortlink-org/bank-saga/contract"
	"github.com/shortlink-org/bank-saga/failure"
	"github.com/shortlink-org/bank-saga/specification"
)

// Movement is one transaction as seen from the account of a statement.
// Balance is that account's balance right after the movement.
type Movement struct {
	At                  time.Time
	Amount              contract.Money
	Balance             contract.Money
	ID                  string
	Type                string
	OriginClientID      string
	DestinationClientID string
}

// DailyBalance is one calendar day (UTC) of a statement. Opening is the
// balance brought into the day and Balance the consolidated balance at its end.
type DailyBalance struct {
	Date      time.Time
	Opening   contract.Money
	Balance   contract.Money
	Movements []Movement
}

// ManagerSummary aggregates the accounts of one manager.
type ManagerSummary struct {
	ManagerID string
	Clients   int
	Positive  contract.Money
	Negative  contract.Money
}

// AccountByClient returns the view of the account of clientID.
func (p *Projector) AccountByClient(ctx context.Context, clientID string) (AccountView, error) {
	if strings.TrimSpace(clientID) == "" {
		return AccountView{}, failure.Validation("account", "clientId is required")
	}

	p.rebuild.RLock()
	defer p.rebuild.RUnlock()

	var view AccountView

	err := p.store.Do(ctx, func(ctx context.Context) error {
		var err error
		view, err = p.store.Account(ctx, clientID)

		return err
	})
	if errors.Is(err, errNotFound) {
		return AccountView{}, failure.NotFound("account", "no account for client %s", clientID)
	}

	if err != nil {
		return AccountView{}, failure.Internal("account", err)
	}

	return view, nil
}

// Statement groups the movements of clientID's account by calendar day for
// every day in [from, to], both inclusive. Days without movements are left
// out; the Opening of the first entry carries the balance of the last movement
// before it, including movements before from, or zero for a new account.
func (p *Projector) Statement(ctx context.Context, clientID string, from, to time.Time) ([]DailyBalance, error) {
	const op = "statement"

	if strings.TrimSpace(clientID) == "" {
		return nil, failure.Validation(op, "clientId is required")
	}

	first, last := day(from), day(to)
	if last.Before(first) {
		return nil, failure.Validation(op, "range ends before it starts: %s > %s",
			first.Format(time.DateOnly), last.Format(time.DateOnly))
	}

	p.rebuild.RLock()
	defer p.rebuild.RUnlock()

	var (
		movements []TransactionView
		opening   = contract.NewMoney(decimal.Zero)
	)

	err := p.store.Do(ctx, func(ctx context.Context) error {
		if _, err := p.store.Account(ctx, clientID); err != nil {
			return err
		}

		before, err := p.store.LastMovementBefore(ctx, clientID, first)
		switch {
		case err == nil:
			opening = balanceOf(clientID, before)
		case !errors.Is(err, errNotFound):
			return err
		}

		movements, err = p.store.Movements(ctx, clientID, first, last.AddDate(0, 0, 1))

		return err
	})
	if errors.Is(err, errNotFound) {
		return nil, failure.NotFound(op, "no account for client %s", clientID)
	}

	if err != nil {
		return nil, failure.Internal(op, err)
	}

	return daily(clientID, opening, movements), nil
}

// daily folds movements, ordered by timestamp, into one entry per day
// starting from the opening balance.
func daily(clientID string, opening contract.Money, views []TransactionView) []DailyBalance {
	out := make([]DailyBalance, 0)
	running := opening

	for _, view := range views {
		movement := Movement{
			At:                  view.At,
			Amount:              view.Amount,
			Balance:             balanceOf(clientID, view),
			ID:                  view.ID,
			Type:                view.Type,
			OriginClientID:      view.OriginClientID,
			DestinationClientID: view.DestinationClientID,
		}

		date := day(view.At)
		if len(out) == 0 || !out[len(out)-1].Date.Equal(date) {
			out = append(out, DailyBalance{Date: date, Opening: running})
		}

		today := &out[len(out)-1]
		today.Movements = append(today.Movements, movement)
		today.Balance = movement.Balance
		running = movement.Balance
	}

	return out
}

// balanceOf returns clientID's balance right after view. An incoming transfer
// carries it as the destination balance.
func balanceOf(clientID string, view TransactionView) contract.Money {
	if view.OriginClientID != clientID && view.DestinationBalance != nil {
		return *view.DestinationBalance
	}

	return view.Balance
}

// TopAccounts returns up to n accounts of managerID, highest balance first.
// Equal balances are ordered by client id.
func (p *Projector) TopAccounts(ctx context.Context, managerID string, n int) ([]AccountView, error) {
	const op = "top accounts"

	if strings.TrimSpace(managerID) == "" {
		return nil, failure.Validation(op, "managerId is required")
	}

	if n < 1 {
		return nil, failure.Validation(op, "n must be positive, got %d", n)
	}

	views, err := p.managed(ctx, ManagedBy(managerID))
	if err != nil {
		return nil, failure.Internal(op, err)
	}

	slices.SortStableFunc(views, func(a, b *AccountView) int {
		if c := b.Balance.Cmp(a.Balance.Decimal); c != 0 {
			return c
		}

		return cmp.Compare(a.ClientID, b.ClientID)
	})

	out := make([]AccountView, 0, min(n, len(views)))
	for _, view := range views[:min(n, len(views))] {
		out = append(out, *view)
	}

	return out, nil
}

// ManagerSummary aggregates the accounts of managerID. A manager without
// accounts has an all-zero summary.
func (p *Projector) ManagerSummary(ctx context.Context, managerID string) (ManagerSummary, error) {
	const op = "manager summary"

	if strings.TrimSpace(managerID) == "" {
		return ManagerSummary{}, failure.Validation(op, "managerId is required")
	}

	views, err := p.managed(ctx, nil)
	if err != nil {
		return ManagerSummary{}, failure.Internal(op, err)
	}

	summary, err := summarize(managerID, views)
	if err != nil {
		return ManagerSummary{}, failure.Internal(op, err)
	}

	return summary, nil
}

// ManagerSummaries aggregates the accounts of every manager that owns one,
// ordered by manager id.
func (p *Projector) ManagerSummaries(ctx context.Context) ([]ManagerSummary, error) {
	const op = "manager summaries"

	views, err := p.managed(ctx, nil)
	if err != nil {
		return nil, failure.Internal(op, err)
	}

	managers := make([]string, 0)
	for _, view := range views {
		managers = append(managers, view.ManagerID)
	}

	slices.Sort(managers)
	managers = slices.Compact(managers)

	out := make([]ManagerSummary, 0, len(managers))

	for _, managerID := range managers {
		summary, err := summarize(managerID, views)
		if err != nil {
			return nil, failure.Internal(op, err)
		}

		out = append(out, summary)
	}

	return out, nil
}

func summarize(managerID string, views []*AccountView) (ManagerSummary, error) {
	managed, err := specification.Filter(views, ManagedBy(managerID))
	if err != nil {
		return ManagerSummary{}, err
	}

	positive, err := specification.Filter(views, specification.NewAndSpecification[AccountView](ManagedBy(managerID), InCredit()))
	if err != nil {
		return ManagerSummary{}, err
	}

	negative, err := specification.Filter(views, specification.NewAndSpecification[AccountView](ManagedBy(managerID), Overdrawn()))
	if err != nil {
		return ManagerSummary{}, err
	}

	return ManagerSummary{
		ManagerID: managerID,
		Clients:   len(managed),
		Positive:  total(positive),
		Negative:  total(negative),
	}, nil
}

// managed loads every view and keeps those satisfying spec, or all when spec is nil.
func (p *Projector) managed(ctx context.Context, spec specification.Specification[AccountView]) ([]*AccountView, error) {
	p.rebuild.RLock()
	defer p.rebuild.RUnlock()

	var views []AccountView

	err := p.store.Do(ctx, func(ctx context.Context) error {
		var err error
		views, err = p.store.Accounts(ctx)

		return err
	})
	if err != nil {
		return nil, err
	}

	rows := make([]*AccountView, 0, len(views))
	for i := range views {
		rows = append(rows, &views[i])
	}

	if spec == nil {
		return rows, nil
	}

	return specification.Filter(rows, spec)
}

func total(views []*AccountView) contract.Money {
	sum := decimal.Zero
	for _, view := range views {
		sum = sum.Add(view.Balance.Decimal)
	}

	return contract.NewMoney(sum)
}

func day(t time.Time) time.Time {
	t = t.UTC()

	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
