package app

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/shortlink-org/bank-saga/config"
	"github.com/shortlink-org/bank-saga/contract"
	"github.com/shortlink-org/bank-saga/coordinator"
	cqrsmessage "github.com/shortlink-org/bank-saga/cqrs/message"
	"github.com/shortlink-org/bank-saga/failure"
	"github.com/shortlink-org/bank-saga/logger"
	"github.com/shortlink-org/bank-saga/watermill/backends/gochannel"
)

const eventually = 5 * time.Second

type bank struct {
	*App
	backend *gochannel.Backend
	namer   *cqrsmessage.Namer
}

func start(t *testing.T) *bank {
	t.Helper()

	dir := t.TempDir()
	cfg := config.NewWithValues(map[string]any{
		"STORE_SQLITE_DIR":     dir,
		"JOURNAL_LEVELDB_PATH": dir,
		"SAGA_STORE_PATH":      filepath.Join(dir, "saga.db"),
		"SAGA_TIMEOUT":         "10s",
		"AUTH_BCRYPT_COST":     4,
		"ACCOUNT_MANAGERS":     "m-seed:999",
	})

	ctx, cancel := context.WithCancel(context.Background())

	backend := gochannel.New(logger.NewNop(), cfg)

	a, err := New(ctx, logger.NewNop(), cfg, backend, noop.NewMeterProvider(), tracenoop.NewTracerProvider())
	require.NoError(t, err)

	done := make(chan error, 1)

	go func() { done <- a.Run(ctx) }()

	require.NoError(t, a.Client.WaitRunning(ctx, eventually))

	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
		require.NoError(t, a.Close())
	})

	return &bank{App: a, backend: backend, namer: cqrsmessage.NewNamer("bank", "bank")}
}

// register sends client.register and waits for the client.registered event.
func (b *bank) register(t *testing.T, cpf, email, salary string) string {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), eventually)
	defer cancel()

	registered, err := b.backend.Subscriber().Subscribe(ctx, b.namer.Topic(contract.ClientRegistered))
	require.NoError(t, err)

	corr := "register-" + cpf
	require.NoError(t, b.Commands.Send(ctx, cqrsmessage.NewCommand(contract.ClientRegister, corr, cqrsmessage.MustPayload(contract.RegisterClient{
		Salary: contract.MustMoney(salary),
		CPF:    cpf,
		Name:   "Ana",
		Email:  email,
	}))))

	marshaler := cqrsmessage.NewJSONMarshaler("bank")

	for {
		select {
		case msg := <-registered:
			msg.Ack()

			env, err := marshaler.Unmarshal(msg)
			require.NoError(t, err)

			if env.CorrelationID == corr {
				return env.Payload.String("clientId")
			}
		case <-ctx.Done():
			require.FailNow(t, "client.registered not received")
		}
	}
}

func (b *bank) view(t *testing.T, clientID string, ready func(balance, limit string) bool) {
	t.Helper()

	require.Eventually(t, func() bool {
		view, err := b.Projector.AccountByClient(context.Background(), clientID)

		return err == nil && ready(view.Balance.String(), view.Limit.String())
	}, eventually, 20*time.Millisecond)
}

func TestBankEndToEnd(t *testing.T) {
	b := start(t)
	ctx := context.Background()

	created := b.Coordinator.CreateManager(ctx, coordinator.CreateManagerRequest{
		CPF:      "111",
		Name:     "Bia",
		Email:    "bia@bank.test",
		Password: "secret",
	})
	require.True(t, created.Success, "%+v", created)
	assert.Equal(t, coordinator.StepClientReassignment, created.Step)

	detail, ok := created.Detail.(cqrsmessage.Payload)
	require.True(t, ok)
	managerID := detail.String("managerId")
	require.NotEmpty(t, managerID)

	clientID := b.register(t, "222", "ana@bank.test", "2500")

	approved := b.Coordinator.ApproveClient(ctx, coordinator.ApproveClientRequest{
		ClientID:  clientID,
		ManagerID: managerID,
		Password:  "secret",
	})
	require.True(t, approved.Success, "%+v", approved)
	assert.Equal(t, coordinator.StepManagerNotification, approved.Step)
	assert.Equal(t, "completed", approved.Message)

	b.view(t, clientID, func(balance, limit string) bool { return limit == "1250.00" })

	require.NoError(t, b.Commands.Send(ctx, cqrsmessage.NewCommand(contract.AccountTransaction, "deposit-1", cqrsmessage.MustPayload(contract.RecordTransaction{
		Amount:   contract.MustMoney("100"),
		ClientID: clientID,
		Type:     contract.TxDeposit,
	}))))

	b.view(t, clientID, func(balance, _ string) bool { return balance == "100.00" })

	today := time.Now().UTC()
	statement, err := b.Projector.Statement(ctx, clientID, today.AddDate(0, 0, -1), today.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, statement, 1)
	assert.Equal(t, "100.00", statement[0].Balance.String())

	top, err := b.Projector.TopAccounts(ctx, managerID, 5)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, clientID, top[0].ClientID)

	updated := b.Coordinator.UpdateProfile(ctx, coordinator.UpdateProfileRequest{ClientID: clientID, Salary: "1000"})
	require.True(t, updated.Success, "%+v", updated)

	b.view(t, clientID, func(_, limit string) bool { return limit == "500.00" })

	applied, err := b.Rebuild(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, applied, 3)

	view, err := b.Projector.AccountByClient(ctx, clientID)
	require.NoError(t, err)
	assert.Equal(t, "100.00", view.Balance.String())
	assert.Equal(t, "500.00", view.Limit.String())
	assert.Equal(t, managerID, view.ManagerID)
}

func TestBankApproveUnknownClientStopsAtFirstStep(t *testing.T) {
	b := start(t)

	res := b.Coordinator.ApproveClient(context.Background(), coordinator.ApproveClientRequest{ClientID: "nobody", Password: "x"})
	assert.False(t, res.Success)
	assert.Equal(t, coordinator.StepClientApproval, res.Step)
	assert.Equal(t, 404, res.StatusCode)

	_, err := b.Projector.AccountByClient(context.Background(), "nobody")
	assert.Equal(t, failure.KindNotFound, failure.KindOf(err))
}

func TestNewBackendRejectsUnknownKinds(t *testing.T) {
	_, err := NewBackend(context.Background(), logger.NewNop(), config.NewWithValues(map[string]any{"BUS_BACKEND": "carrier-pigeon"}))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errUnknownBackend))

	backend, err := NewBackend(context.Background(), logger.NewNop(), config.NewWithValues(map[string]any{}))
	require.NoError(t, err)
	assert.IsType(t, &gochannel.Backend{}, backend)
	require.NoError(t, backend.Close())
}

func TestSeedManagersRejectsMalformedPairs(t *testing.T) {
	a := &App{}

	err := a.seedManagers(context.Background(), []string{"only-an-id"})
	require.ErrorIs(t, err, errManagerSeed)
}
