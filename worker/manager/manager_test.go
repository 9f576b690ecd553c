package manager

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

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

	store, err := NewStore(ctx, logger.NewNop(), config.NewWithValues(map[string]any{"STORE_SQLITE_DIR": t.TempDir()}))
	require.NoError(t, err)
	t.Cleanup(func() {
		cancel()
		_ = store.Close()
	})

	return NewService(logger.NewNop(), store)
}

func cmd(routingKey string, payload any) cqrsmessage.Envelope {
	return cqrsmessage.NewCommand(routingKey, "corr", cqrsmessage.MustPayload(payload))
}

func create(svc *Service, id, cpf, email string) (cqrsmessage.Payload, error) {
	return svc.create(context.Background(), cmd(contract.ManagerCreate, contract.CreateManager{
		ManagerID: id, CPF: cpf, Name: "Bia", Email: email,
	}))
}

func TestCreateAndDelete(t *testing.T) {
	svc := newService(t)

	out, err := create(svc, "m-1", "111", "bia@bank.test")
	require.NoError(t, err)
	assert.Equal(t, "m-1", out.String("managerId"))
	assert.Equal(t, "111", out.String("cpf"))

	_, err = create(svc, "m-2", "111", "other@bank.test")
	assert.Equal(t, failure.KindConflict, failure.KindOf(err), "cpf taken")

	_, err = create(svc, "m-3", "333", "nope")
	assert.Equal(t, failure.KindValidation, failure.KindOf(err))

	out, err = svc.delete(context.Background(), cmd(contract.ManagerDelete, contract.ManagerRef{ManagerID: "m-1"}))
	require.NoError(t, err)
	assert.Equal(t, "bia@bank.test", out.String("email"))

	_, err = svc.delete(context.Background(), cmd(contract.ManagerDelete, contract.ManagerRef{ManagerID: "m-1"}))
	assert.Equal(t, failure.KindNotFound, failure.KindOf(err))
}

func TestRollbackRemovesTheManager(t *testing.T) {
	svc := newService(t)

	_, err := create(svc, "m-1", "111", "bia@bank.test")
	require.NoError(t, err)

	for range 2 {
		out, err := svc.rollbackCreate(context.Background(), cmd(contract.ManagerRollbackCreate, contract.ManagerRef{ManagerID: "m-1"}))
		require.NoError(t, err, "rollback is idempotent")
		assert.Equal(t, "m-1", out.String("managerId"))
	}

	_, err = svc.notify(context.Background(), cmd(contract.ManagerNotify, contract.NotifyManager{ManagerID: "m-1", ClientID: "c-1"}))
	assert.Equal(t, failure.KindNotFound, failure.KindOf(err))
}

func TestRollbackAheadOfCreateRefusesTheCreate(t *testing.T) {
	svc := newService(t)

	_, err := svc.rollbackCreate(context.Background(), cmd(contract.ManagerRollbackCreate, contract.ManagerRef{ManagerID: "m-1"}))
	require.NoError(t, err)

	_, err = create(svc, "m-1", "111", "bia@bank.test")
	assert.Equal(t, failure.KindConflict, failure.KindOf(err))
}

func TestNotify(t *testing.T) {
	svc := newService(t)

	_, err := create(svc, "m-1", "111", "bia@bank.test")
	require.NoError(t, err)

	out, err := svc.notify(context.Background(), cmd(contract.ManagerNotify, contract.NotifyManager{
		ManagerID: "m-1", ClientID: "c-1", AccountNumber: "1000",
	}))
	require.NoError(t, err)

	var n contract.ManagerNotification
	require.NoError(t, out.Decode(&n))
	assert.NotEmpty(t, n.NotificationID)
	assert.Equal(t, "c-1", n.ClientID)
	assert.False(t, n.NotifiedAt.IsZero())
}
