// Package manager is the manager context worker.
package manager

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"time"

	"github.com/google/uuid"

	"github.com/shortlink-org/bank-saga/contract"
	cqrsmessage "github.com/shortlink-org/bank-saga/cqrs/message"
	"github.com/shortlink-org/bank-saga/failure"
	"github.com/shortlink-org/bank-saga/logger"
	"github.com/shortlink-org/bank-saga/worker"
)

// Service applies manager commands.
type Service struct {
	store *Store
	log   logger.Logger
	now   func() time.Time
	newID func() string
}

func NewService(log logger.Logger, store *Store) *Service {
	return &Service{store: store, log: log, now: time.Now, newID: uuid.NewString}
}

// Attach sets the service's handlers on w.
func (s *Service) Attach(w *worker.Worker) {
	w.On(contract.ManagerCreate, s.create).
		On(contract.ManagerRollbackCreate, s.rollbackCreate).
		On(contract.ManagerDelete, s.delete).
		On(contract.ManagerNotify, s.notify)
}

func (s *Service) create(ctx context.Context, cmd cqrsmessage.Envelope) (cqrsmessage.Payload, error) {
	req, err := worker.Decode[contract.CreateManager](cmd)
	if err != nil {
		return nil, err
	}

	if req.ManagerID == "" || req.CPF == "" || req.Name == "" {
		return nil, failure.Validation(cmd.Type, "managerId, cpf and nome must not be blank")
	}

	if _, err := mail.ParseAddress(req.Email); err != nil {
		return nil, failure.Validation(cmd.Type, "email %q is invalid", req.Email)
	}

	err = s.store.Do(ctx, func(ctx context.Context) error {
		rolledBack, err := s.store.RolledBack(ctx, req.ManagerID)
		if err != nil {
			return err
		}

		if rolledBack {
			return failure.Conflict(cmd.Type, "creation of manager %s was rolled back", req.ManagerID)
		}

		return s.store.Insert(ctx, req, s.now())
	})
	if err != nil {
		return nil, storeError(cmd.Type, err)
	}

	return cqrsmessage.NewPayload(contract.Manager{
		ManagerID: req.ManagerID,
		CPF:       req.CPF,
		Name:      req.Name,
		Email:     req.Email,
	})
}

// rollbackCreate undoes manager.create. It may arrive before the create it
// undoes, so it leaves a mark that refuses the late create. It always succeeds.
func (s *Service) rollbackCreate(ctx context.Context, cmd cqrsmessage.Envelope) (cqrsmessage.Payload, error) {
	req, err := worker.Decode[contract.ManagerRef](cmd)
	if err != nil {
		return nil, err
	}

	if req.ManagerID == "" {
		return nil, failure.Validation(cmd.Type, "managerId must not be blank")
	}

	var existed bool

	err = s.store.Do(ctx, func(ctx context.Context) error {
		if err := s.store.MarkRolledBack(ctx, req.ManagerID, s.now()); err != nil {
			return err
		}

		existed, err = s.store.Delete(ctx, req.ManagerID)

		return err
	})
	if err != nil {
		return nil, storeError(cmd.Type, err)
	}

	s.log.InfoWithContext(ctx, "manager creation rolled back",
		slog.String("correlation_id", cmd.CorrelationID),
		slog.String("manager_id", req.ManagerID),
		slog.Bool("existed", existed),
	)

	return cqrsmessage.NewPayload(contract.Manager{ManagerID: req.ManagerID})
}

func (s *Service) delete(ctx context.Context, cmd cqrsmessage.Envelope) (cqrsmessage.Payload, error) {
	req, err := worker.Decode[contract.ManagerRef](cmd)
	if err != nil {
		return nil, err
	}

	if req.ManagerID == "" {
		return nil, failure.Validation(cmd.Type, "managerId must not be blank")
	}

	var m contract.Manager

	err = s.store.Do(ctx, func(ctx context.Context) error {
		found, err := s.store.Get(ctx, req.ManagerID)
		if err != nil {
			return err
		}

		m = found
		_, err = s.store.Delete(ctx, req.ManagerID)

		return err
	})
	if err != nil {
		return nil, storeError(cmd.Type, err)
	}

	return cqrsmessage.NewPayload(m)
}

// notify records a notification to the manager about a new account.
// Delivering it, e.g. by e-mail, happens elsewhere.
func (s *Service) notify(ctx context.Context, cmd cqrsmessage.Envelope) (cqrsmessage.Payload, error) {
	req, err := worker.Decode[contract.NotifyManager](cmd)
	if err != nil {
		return nil, err
	}

	if req.ManagerID == "" || req.ClientID == "" {
		return nil, failure.Validation(cmd.Type, "managerId and clientId must not be blank")
	}

	n := contract.ManagerNotification{
		NotifiedAt:     s.now().UTC(),
		NotificationID: s.newID(),
		ManagerID:      req.ManagerID,
		ClientID:       req.ClientID,
	}

	err = s.store.Do(ctx, func(ctx context.Context) error {
		if _, err := s.store.Get(ctx, req.ManagerID); err != nil {
			return err
		}

		return s.store.InsertNotification(ctx, n, req.AccountNumber)
	})
	if err != nil {
		return nil, storeError(cmd.Type, err)
	}

	return cqrsmessage.NewPayload(n)
}

func storeError(op string, err error) error {
	var ferr *failure.Error

	switch {
	case errors.As(err, &ferr):
		return err
	case errors.Is(err, errNotFound):
		return failure.New(failure.KindNotFound, op, err)
	case errors.Is(err, errDuplicate):
		return failure.New(failure.KindConflict, op, err)
	default:
		return failure.Internal(op, err)
	}
}
