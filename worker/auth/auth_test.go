package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/crypto/bcrypt"

	"github.com/shortlink-org/bank-saga/config"
	"github.com/shortlink-org/bank-saga/contract"
	cqrsmessage "github.com/shortlink-org/bank-saga/cqrs/message"
	"github.com/shortlink-org/bank-saga/failure"
	"github.com/shortlink-org/bank-saga/logger"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"))
}

func newService(t *testing.T) *Service {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())

	cfg := config.NewWithValues(map[string]any{
		"STORE_SQLITE_DIR": t.TempDir(),
		"AUTH_BCRYPT_COST": bcrypt.MinCost,
	})

	store, err := NewStore(ctx, logger.NewNop(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		cancel()
		_ = store.Close()
	})

	return NewService(logger.NewNop(), cfg, store)
}

func cmd(routingKey string, payload any) cqrsmessage.Envelope {
	return cqrsmessage.NewCommand(routingKey, "corr", cqrsmessage.MustPayload(payload))
}

func TestCreateUserHashesThePassword(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	out, err := svc.createUser(ctx, cmd(contract.AuthCreateUser, contract.CreateUser{
		UserID: "c-1", Login: "ana@bank.test", Password: "s3cret", Role: contract.RoleClient,
	}))
	require.NoError(t, err)
	assert.Equal(t, "c-1", out.String("userId"))
	assert.NotContains(t, out, "password")

	u, err := svc.store.ByLogin(ctx, "ana@bank.test")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret", u.PasswordHash)

	verified, err := svc.Verify(ctx, "ana@bank.test", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, contract.RoleClient, verified.Role)

	_, err = svc.Verify(ctx, "ana@bank.test", "wrong")
	assert.Equal(t, failure.KindNotFound, failure.KindOf(err))
}

func TestCreateUserFailures(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	_, err := svc.createUser(ctx, cmd(contract.AuthCreateUser, contract.CreateUser{
		UserID: "c-1", Login: "ana@bank.test", Password: "x", Role: contract.RoleClient,
	}))
	require.NoError(t, err)

	_, err = svc.createUser(ctx, cmd(contract.AuthCreateUser, contract.CreateUser{
		UserID: "c-2", Login: "ana@bank.test", Password: "x", Role: contract.RoleClient,
	}))
	assert.Equal(t, failure.KindConflict, failure.KindOf(err))

	_, err = svc.createUser(ctx, cmd(contract.AuthCreateUser, contract.CreateUser{
		UserID: "c-3", Login: "bia@bank.test", Password: "x", Role: "ADMIN",
	}))
	assert.Equal(t, failure.KindValidation, failure.KindOf(err))

	_, err = svc.createUser(ctx, cmd(contract.AuthCreateUser, contract.CreateUser{UserID: "c-4", Role: contract.RoleClient}))
	assert.Equal(t, failure.KindValidation, failure.KindOf(err))
}

func TestDeleteUserIsIdempotent(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	_, err := svc.createUser(ctx, cmd(contract.AuthCreateUser, contract.CreateUser{
		UserID: "m-1", Login: "bia@bank.test", Password: "x", Role: contract.RoleManager,
	}))
	require.NoError(t, err)

	for range 2 {
		out, err := svc.deleteUser(ctx, cmd(contract.AuthDeleteUser, contract.DeleteUser{UserID: "m-1"}))
		require.NoError(t, err)
		assert.Equal(t, "m-1", out.String("userId"))
	}

	_, err = svc.Verify(ctx, "bia@bank.test", "x")
	assert.Equal(t, failure.KindNotFound, failure.KindOf(err))
}

func TestRevokeToken(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	for range 2 {
		out, err := svc.revokeToken(ctx, cmd(contract.AuthRevokeToken, contract.RevokeToken{
			Token: "jwt-1", ExpiresAt: now.Add(time.Hour),
		}))
		require.NoError(t, err)
		assert.Equal(t, TokenHash("jwt-1"), out.String("tokenHash"))
	}

	revoked, err := svc.IsRevoked(ctx, "jwt-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = svc.IsRevoked(ctx, "jwt-2")
	require.NoError(t, err)
	assert.False(t, revoked)

	purged, err := svc.store.PurgeExpired(ctx, now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	_, err = svc.revokeToken(ctx, cmd(contract.AuthRevokeToken, contract.RevokeToken{Token: "jwt-3"}))
	assert.Equal(t, failure.KindValidation, failure.KindOf(err))
}
