/*
Package account is the account context worker: accounts, limits,
manager assignment and money movements.
*/
package account

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shortlink-org/bank-saga/contract"
	cqrsmessage "github.com/shortlink-org/bank-saga/cqrs/message"
	"github.com/shortlink-org/bank-saga/failure"
	"github.com/shortlink-org/bank-saga/limit"
	"github.com/shortlink-org/bank-saga/worker"
)

// Service applies account commands.
type Service struct {
	store *Store
	now   func() time.Time
	newID func() string
}

func NewService(store *Store) *Service {
	return &Service{store: store, now: time.Now, newID: uuid.NewString}
}

// Attach sets the service's handlers on w.
func (s *Service) Attach(w *worker.Worker) {
	w.On(contract.AccountCreate, s.create).
		On(contract.AccountUpdateLimit, s.updateLimit).
		On(contract.AccountAssignManager, s.assignManager).
		On(contract.AccountUnassignManager, s.unassignManager).
		On(contract.AccountTransaction, s.transaction)
}

// SeedManager adds a manager to the assignment pool unless it is already there.
func (s *Service) SeedManager(ctx context.Context, managerID, cpf string) error {
	return s.store.Do(ctx, func(ctx context.Context) error {
		err := s.store.AddManager(ctx, managerID, cpf, s.now())
		if errors.Is(err, errExists) {
			return nil
		}

		return err
	})
}

// create opens the client's account. Without a managerId the least loaded
// manager gets it.
func (s *Service) create(ctx context.Context, cmd cqrsmessage.Envelope) (cqrsmessage.Payload, error) {
	req, err := worker.Decode[contract.CreateAccount](cmd)
	if err != nil {
		return nil, err
	}

	if req.ClientID == "" {
		return nil, failure.Validation(cmd.Type, "clientId must not be blank")
	}

	if req.Salary.IsNegative() {
		return nil, failure.Validation(cmd.Type, "salary must not be negative")
	}

	var acc contract.Account

	err = s.store.Do(ctx, func(ctx context.Context) error {
		if _, err := s.store.AccountByClient(ctx, req.ClientID); err == nil {
			return failure.Conflict(cmd.Type, "client %s already has an account", req.ClientID)
		} else if !errors.Is(err, errNotFound) {
			return err
		}

		loads, err := s.store.Loads(ctx)
		if err != nil {
			return err
		}

		manager, err := pickManager(cmd.Type, loads, req.ManagerID)
		if err != nil {
			return err
		}

		number, err := s.store.NextNumber(ctx)
		if err != nil {
			return err
		}

		acc = contract.Account{
			CreatedAt:  s.now().UTC(),
			Balance:    contract.NewMoney(decimal.Zero),
			Limit:      contract.NewMoney(limit.CreationPolicy.Compute(req.Salary.Decimal, decimal.Zero)),
			ClientID:   req.ClientID,
			ClientCPF:  req.ClientCPF,
			Number:     strconv.FormatInt(number, 10),
			ManagerID:  manager.ManagerID,
			ManagerCPF: manager.CPF,
			Version:    1,
		}

		err = s.store.InsertAccount(ctx, acc)
		if errors.Is(err, errExists) {
			return failure.Conflict(cmd.Type, "client %s already has an account", req.ClientID)
		}

		return err
	})
	if err != nil {
		return nil, classify(cmd.Type, err)
	}

	return cqrsmessage.NewPayload(acc)
}

func pickManager(op string, loads []Load, requested string) (Load, error) {
	if requested == "" {
		manager, ok := LeastLoaded(loads, "")
		if !ok {
			return Load{}, failure.NotFound(op, "no manager available")
		}

		return manager, nil
	}

	for _, l := range loads {
		if l.ManagerID == requested {
			return l, nil
		}
	}

	return Load{}, failure.NotFound(op, "manager %s not found", requested)
}

// updateLimit recalculates the limit from a new salary.
func (s *Service) updateLimit(ctx context.Context, cmd cqrsmessage.Envelope) (cqrsmessage.Payload, error) {
	req, err := worker.Decode[contract.UpdateLimit](cmd)
	if err != nil {
		return nil, err
	}

	if req.ClientID == "" {
		return nil, failure.Validation(cmd.Type, "clientId must not be blank")
	}

	if req.Salary.IsNegative() {
		return nil, failure.Validation(cmd.Type, "salary must not be negative")
	}

	var acc contract.Account

	err = s.store.Do(ctx, func(ctx context.Context) error {
		found, err := s.account(ctx, cmd.Type, req.ClientID)
		if err != nil {
			return err
		}

		acc = found
		acc.Limit = contract.NewMoney(limit.UpdatePolicy.Compute(req.Salary.Decimal, acc.Balance.Decimal))

		return s.store.UpdateAccount(ctx, &acc)
	})
	if err != nil {
		return nil, classify(cmd.Type, err)
	}

	return cqrsmessage.NewPayload(acc)
}

// assignManager adds a manager to the pool and hands it one account of the
// most loaded manager, when that manager owns more than one.
func (s *Service) assignManager(ctx context.Context, cmd cqrsmessage.Envelope) (cqrsmessage.Payload, error) {
	req, err := worker.Decode[contract.AssignManager](cmd)
	if err != nil {
		return nil, err
	}

	if req.ManagerID == "" || req.ManagerCPF == "" {
		return nil, failure.Validation(cmd.Type, "managerId and managerCpf must not be blank")
	}

	moved := contract.ManagerAccounts{ManagerID: req.ManagerID, Accounts: []contract.Account{}}

	err = s.store.Do(ctx, func(ctx context.Context) error {
		if err := s.store.AddManager(ctx, req.ManagerID, req.ManagerCPF, s.now()); err != nil && !errors.Is(err, errExists) {
			return err
		}

		loads, err := s.store.Loads(ctx)
		if err != nil {
			return err
		}

		// a redelivered command finds the account already moved
		for _, l := range loads {
			if l.ManagerID == req.ManagerID && l.Accounts > 0 {
				return nil
			}
		}

		donor, ok := MostLoaded(loads, req.ManagerID)
		if !ok || donor.Accounts <= 1 {
			return nil
		}

		accounts, err := s.store.AccountsOf(ctx, donor.ManagerID)
		if err != nil {
			return err
		}

		acc := accounts[0]
		acc.ManagerID = req.ManagerID
		acc.ManagerCPF = req.ManagerCPF

		if err := s.store.UpdateAccount(ctx, &acc); err != nil {
			return err
		}

		moved.Accounts = append(moved.Accounts, acc)

		return nil
	})
	if err != nil {
		return nil, classify(cmd.Type, err)
	}

	return cqrsmessage.NewPayload(moved)
}

// unassignManager moves a manager's accounts, one at a time, to the least
// loaded remaining manager and drops the manager from the pool.
func (s *Service) unassignManager(ctx context.Context, cmd cqrsmessage.Envelope) (cqrsmessage.Payload, error) {
	req, err := worker.Decode[contract.UnassignManager](cmd)
	if err != nil {
		return nil, err
	}

	if req.ManagerID == "" {
		return nil, failure.Validation(cmd.Type, "managerId must not be blank")
	}

	moved := contract.ManagerAccounts{ManagerID: req.ManagerID, Accounts: []contract.Account{}}

	err = s.store.Do(ctx, func(ctx context.Context) error {
		loads, err := s.store.Loads(ctx)
		if err != nil {
			return err
		}

		known := false
		for _, l := range loads {
			known = known || l.ManagerID == req.ManagerID
		}

		if !known {
			return failure.NotFound(cmd.Type, "manager %s not found", req.ManagerID)
		}

		accounts, err := s.store.AccountsOf(ctx, req.ManagerID)
		if err != nil {
			return err
		}

		for _, acc := range accounts {
			target, ok := LeastLoaded(loads, req.ManagerID)
			if !ok {
				return failure.Conflict(cmd.Type, "manager %s is the last manager and still owns %d accounts", req.ManagerID, len(accounts))
			}

			acc.ManagerID = target.ManagerID
			acc.ManagerCPF = target.CPF

			if err := s.store.UpdateAccount(ctx, &acc); err != nil {
				return err
			}

			loads = moveLoad(loads, req.ManagerID, target.ManagerID)
			moved.Accounts = append(moved.Accounts, acc)
		}

		return s.store.RemoveManager(ctx, req.ManagerID)
	})
	if err != nil {
		return nil, classify(cmd.Type, err)
	}

	return cqrsmessage.NewPayload(moved)
}

// transaction records a deposit, withdrawal or transfer.
func (s *Service) transaction(ctx context.Context, cmd cqrsmessage.Envelope) (cqrsmessage.Payload, error) {
	req, err := worker.Decode[contract.RecordTransaction](cmd)
	if err != nil {
		return nil, err
	}

	if err := validateTransaction(cmd.Type, req); err != nil {
		return nil, err
	}

	t := contract.Transaction{
		At:       s.now().UTC(),
		Amount:   req.Amount,
		ID:       s.newID(),
		Type:     req.Type,
		ClientID: req.ClientID,
	}

	err = s.store.Do(ctx, func(ctx context.Context) error {
		origin, err := s.account(ctx, cmd.Type, req.ClientID)
		if err != nil {
			return err
		}

		t.ClientCPF = origin.ClientCPF

		switch req.Type {
		case contract.TxDeposit:
			origin.Balance = contract.NewMoney(origin.Balance.Add(req.Amount.Decimal))
		case contract.TxWithdrawal, contract.TxTransfer:
			if err := debit(cmd.Type, &origin, req.Amount.Decimal); err != nil {
				return err
			}
		}

		if err := s.store.UpdateAccount(ctx, &origin); err != nil {
			return err
		}

		t.Balance = origin.Balance
		t.Version = origin.Version

		if req.Type == contract.TxTransfer {
			destination, err := s.account(ctx, cmd.Type, req.DestinationID)
			if err != nil {
				return err
			}

			destination.Balance = contract.NewMoney(destination.Balance.Add(req.Amount.Decimal))

			if err := s.store.UpdateAccount(ctx, &destination); err != nil {
				return err
			}

			t.DestinationID = destination.ClientID
			t.DestinationCPF = destination.ClientCPF
			t.DestinationBalance = &destination.Balance
			t.DestinationVersion = destination.Version
		}

		return s.store.InsertTransaction(ctx, t)
	})
	if err != nil {
		return nil, classify(cmd.Type, err)
	}

	return cqrsmessage.NewPayload(t)
}

func validateTransaction(op string, req contract.RecordTransaction) error {
	if req.ClientID == "" {
		return failure.Validation(op, "clientId must not be blank")
	}

	if !req.Amount.IsPositive() {
		return failure.Validation(op, "valor must be positive")
	}

	switch req.Type {
	case contract.TxDeposit, contract.TxWithdrawal:
		return nil
	case contract.TxTransfer:
		if req.DestinationID == "" {
			return failure.Validation(op, "destinoClientId must not be blank for a transfer")
		}

		if req.DestinationID == req.ClientID {
			return failure.Validation(op, "cannot transfer to the same account")
		}

		return nil
	default:
		return failure.Validation(op, "unknown transaction type %q", req.Type)
	}
}

// debit takes amount from acc as long as the balance stays within the limit.
func debit(op string, acc *contract.Account, amount decimal.Decimal) error {
	next := acc.Balance.Sub(amount)
	if next.Add(acc.Limit.Decimal).IsNegative() {
		return failure.Conflict(op, "insufficient funds: balance %s, limit %s, amount %s",
			acc.Balance, acc.Limit, contract.NewMoney(amount))
	}

	acc.Balance = contract.NewMoney(next)

	return nil
}

func (s *Service) account(ctx context.Context, op, clientID string) (contract.Account, error) {
	acc, err := s.store.AccountByClient(ctx, clientID)
	if errors.Is(err, errNotFound) {
		return acc, failure.NotFound(op, "account of client %s not found", clientID)
	}

	return acc, err
}

// LeastLoaded returns the manager owning the fewest accounts, skipping
// exclude. Ties go to the lowest manager id.
func LeastLoaded(loads []Load, exclude string) (Load, bool) {
	return pick(loads, exclude, func(candidate, best Load) bool { return candidate.Accounts < best.Accounts })
}

// MostLoaded returns the manager owning the most accounts, skipping exclude.
// Ties go to the lowest manager id.
func MostLoaded(loads []Load, exclude string) (Load, bool) {
	return pick(loads, exclude, func(candidate, best Load) bool { return candidate.Accounts > best.Accounts })
}

func pick(loads []Load, exclude string, better func(candidate, best Load) bool) (Load, bool) {
	var (
		best  Load
		found bool
	)

	for _, l := range loads {
		if l.ManagerID == exclude {
			continue
		}

		if !found || better(l, best) || (l.Accounts == best.Accounts && l.ManagerID < best.ManagerID) {
			best, found = l, true
		}
	}

	return best, found
}

func moveLoad(loads []Load, from, to string) []Load {
	for i := range loads {
		switch loads[i].ManagerID {
		case from:
			loads[i].Accounts--
		case to:
			loads[i].Accounts++
		}
	}

	return loads
}

// classify keeps classified errors and marks the rest internal.
func classify(op string, err error) error {
	var ferr *failure.Error
	if errors.As(err, &ferr) {
		return err
	}

	return failure.Internal(op, err)
}
