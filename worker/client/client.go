// Package client is the client context worker: registration, approval and profile updates.
package client

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shortlink-org/bank-saga/contract"
	cqrsmessage "github.com/shortlink-org/bank-saga/cqrs/message"
	"github.com/shortlink-org/bank-saga/failure"
	"github.com/shortlink-org/bank-saga/worker"
)

// Service applies client commands.
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
	w.On(contract.ClientRegister, s.register).
		On(contract.ClientApprove, s.approve).
		On(contract.ClientUpdate, s.update)
}

func (s *Service) register(ctx context.Context, cmd cqrsmessage.Envelope) (cqrsmessage.Payload, error) {
	req, err := worker.Decode[contract.RegisterClient](cmd)
	if err != nil {
		return nil, err
	}

	c := contract.Client{
		Salary:   req.Salary,
		ClientID: s.newID(),
		CPF:      strings.TrimSpace(req.CPF),
		Name:     strings.TrimSpace(req.Name),
		Email:    strings.TrimSpace(req.Email),
		Phone:    strings.TrimSpace(req.Phone),
		Status:   contract.StatusPending,
	}

	if c.CPF == "" || c.Name == "" {
		return nil, failure.Validation(cmd.Type, "cpf and nome must not be blank")
	}

	if err := validateProfile(cmd.Type, c); err != nil {
		return nil, err
	}

	if err := s.store.Insert(ctx, c, s.now()); err != nil {
		return nil, storeError(cmd.Type, err)
	}

	return cqrsmessage.NewPayload(c)
}

func (s *Service) approve(ctx context.Context, cmd cqrsmessage.Envelope) (cqrsmessage.Payload, error) {
	req, err := worker.Decode[contract.ApproveClient](cmd)
	if err != nil {
		return nil, err
	}

	if req.ClientID == "" {
		return nil, failure.Validation(cmd.Type, "clientId must not be blank")
	}

	var c contract.Client

	err = s.store.Do(ctx, func(ctx context.Context) error {
		c, err = s.store.Get(ctx, req.ClientID)
		if err != nil {
			return err
		}

		if c.Status == contract.StatusApproved {
			return failure.Conflict(cmd.Type, "client %s is already approved", req.ClientID)
		}

		c.Status = contract.StatusApproved

		return s.store.Update(ctx, c, s.now())
	})
	if err != nil {
		return nil, storeError(cmd.Type, err)
	}

	return cqrsmessage.NewPayload(c)
}

// update changes the given profile fields; blank ones keep their value.
func (s *Service) update(ctx context.Context, cmd cqrsmessage.Envelope) (cqrsmessage.Payload, error) {
	req, err := worker.Decode[contract.UpdateClient](cmd)
	if err != nil {
		return nil, err
	}

	if req.ClientID == "" {
		return nil, failure.Validation(cmd.Type, "clientId must not be blank")
	}

	var c contract.Client

	err = s.store.Do(ctx, func(ctx context.Context) error {
		c, err = s.store.Get(ctx, req.ClientID)
		if err != nil {
			return err
		}

		c.Name = keep(c.Name, req.Name)
		c.Email = keep(c.Email, req.Email)
		c.Phone = keep(c.Phone, req.Phone)
		c.Salary = req.Salary

		if err := validateProfile(cmd.Type, c); err != nil {
			return err
		}

		return s.store.Update(ctx, c, s.now())
	})
	if err != nil {
		return nil, storeError(cmd.Type, err)
	}

	return cqrsmessage.NewPayload(c)
}

func validateProfile(op string, c contract.Client) error {
	if _, err := mail.ParseAddress(c.Email); err != nil {
		return failure.Validation(op, "email %q is invalid", c.Email)
	}

	if c.Salary.IsNegative() {
		return failure.Validation(op, "salario must not be negative")
	}

	return nil
}

func keep(current, next string) string {
	if next = strings.TrimSpace(next); next != "" {
		return next
	}

	return current
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
