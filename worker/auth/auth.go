/*
Package auth is the credentials worker. It stores bcrypt password hashes and
the hashes of revoked tokens; issuing tokens happens elsewhere.
*/
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/shortlink-org/bank-saga/config"
	"github.com/shortlink-org/bank-saga/contract"
	cqrsmessage "github.com/shortlink-org/bank-saga/cqrs/message"
	"github.com/shortlink-org/bank-saga/failure"
	"github.com/shortlink-org/bank-saga/logger"
	"github.com/shortlink-org/bank-saga/worker"
)

var errBadCredentials = errors.New("invalid login or password")

// Service applies auth commands.
type Service struct {
	store *Store
	log   logger.Logger
	now   func() time.Time
	cost  int
}

func NewService(log logger.Logger, cfg *config.Config, store *Store) *Service {
	cfg.SetDefault("AUTH_BCRYPT_COST", bcrypt.DefaultCost)

	return &Service{store: store, log: log, now: time.Now, cost: cfg.GetInt("AUTH_BCRYPT_COST")}
}

// Attach sets the service's handlers on w.
func (s *Service) Attach(w *worker.Worker) {
	w.On(contract.AuthCreateUser, s.createUser).
		On(contract.AuthDeleteUser, s.deleteUser).
		On(contract.AuthRevokeToken, s.revokeToken)
}

func (s *Service) createUser(ctx context.Context, cmd cqrsmessage.Envelope) (cqrsmessage.Payload, error) {
	req, err := worker.Decode[contract.CreateUser](cmd)
	if err != nil {
		return nil, err
	}

	req.Login = strings.TrimSpace(req.Login)

	if req.UserID == "" || req.Login == "" || req.Password == "" {
		return nil, failure.Validation(cmd.Type, "userId, login and password must not be blank")
	}

	if req.Role != contract.RoleClient && req.Role != contract.RoleManager {
		return nil, failure.Validation(cmd.Type, "unknown role %q", req.Role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		// passwords over 72 bytes
		return nil, failure.Validation(cmd.Type, "password rejected: %v", err)
	}

	err = s.store.Insert(ctx, user{ID: req.UserID, Login: req.Login, PasswordHash: string(hash), Role: req.Role}, s.now())
	if errors.Is(err, errDuplicate) {
		return nil, failure.Conflict(cmd.Type, "user %s or login %s already exists", req.UserID, req.Login)
	}

	if err != nil {
		return nil, failure.Internal(cmd.Type, err)
	}

	return cqrsmessage.NewPayload(contract.User{UserID: req.UserID, Login: req.Login, Role: req.Role})
}

// deleteUser succeeds whether or not the user exists; it doubles as the
// compensation of createUser.
func (s *Service) deleteUser(ctx context.Context, cmd cqrsmessage.Envelope) (cqrsmessage.Payload, error) {
	req, err := worker.Decode[contract.DeleteUser](cmd)
	if err != nil {
		return nil, err
	}

	if req.UserID == "" {
		return nil, failure.Validation(cmd.Type, "userId must not be blank")
	}

	existed, err := s.store.Delete(ctx, req.UserID)
	if err != nil {
		return nil, failure.Internal(cmd.Type, err)
	}

	if !existed {
		s.log.InfoWithContext(ctx, "user to delete does not exist",
			slog.String("correlation_id", cmd.CorrelationID),
			slog.String("user_id", req.UserID),
		)
	}

	return cqrsmessage.NewPayload(contract.User{UserID: req.UserID})
}

func (s *Service) revokeToken(ctx context.Context, cmd cqrsmessage.Envelope) (cqrsmessage.Payload, error) {
	req, err := worker.Decode[contract.RevokeToken](cmd)
	if err != nil {
		return nil, err
	}

	if req.Token == "" {
		return nil, failure.Validation(cmd.Type, "token must not be blank")
	}

	if req.ExpiresAt.IsZero() {
		return nil, failure.Validation(cmd.Type, "expiresAt must be set")
	}

	hash := TokenHash(req.Token)

	if err := s.store.Revoke(ctx, hash, req.ExpiresAt); err != nil {
		return nil, failure.Internal(cmd.Type, err)
	}

	return cqrsmessage.NewPayload(contract.TokenRevoked{ExpiresAt: req.ExpiresAt.UTC(), TokenHash: hash})
}

// Verify checks a login and password and returns the user.
func (s *Service) Verify(ctx context.Context, login, password string) (contract.User, error) {
	u, err := s.store.ByLogin(ctx, strings.TrimSpace(login))
	if errors.Is(err, errNotFound) {
		return contract.User{}, failure.New(failure.KindNotFound, "verify", errBadCredentials)
	}

	if err != nil {
		return contract.User{}, failure.Internal("verify", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return contract.User{}, failure.New(failure.KindNotFound, "verify", errBadCredentials)
	}

	return contract.User{UserID: u.ID, Login: u.Login, Role: u.Role}, nil
}

// IsRevoked reports whether token was revoked and has not expired yet.
func (s *Service) IsRevoked(ctx context.Context, token string) (bool, error) {
	return s.store.Revoked(ctx, TokenHash(token), s.now())
}

// TokenHash is the hex SHA-256 of a token; raw tokens are never stored.
func TokenHash(token string) string {
	sum := sha256.Sum256([]byte(token))

	return hex.EncodeToString(sum[:])
}

// PurgeExpired forgets revoked tokens that can no longer be presented.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	purged, err := s.store.PurgeExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}

	if purged > 0 {
		s.log.InfoWithContext(ctx, "expired revoked tokens purged", slog.Int64("count", purged))
	}

	return purged, nil
}
