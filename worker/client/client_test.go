package client

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

	return NewService(store)
}

func cmd(routingKey string, payload any) cqrsmessage.Envelope {
	return cqrsmessage.NewCommand(routingKey, "corr", cqrsmessage.MustPayload(payload))
}

func register(t *testing.T, svc *Service, cpf, email string) contract.Client {
	t.Helper()

	out, err := svc.register(context.Background(), cmd(contract.ClientRegister, contract.RegisterClient{
		Salary: contract.MustMoney("3000"),
		CPF:    cpf,
		Name:   "Ana",
		Email:  email,
	}))
	require.NoError(t, err)

	var c contract.Client
	require.NoError(t, out.Decode(&c))

	return c
}

func TestRegisterAndApprove(t *testing.T) {
	svc := newService(t)

	c := register(t, svc, "111", "ana@bank.test")
	assert.NotEmpty(t, c.ClientID)
	assert.Equal(t, contract.StatusPending, c.Status)
	assert.Equal(t, "3000.00", c.Salary.String())

	out, err := svc.approve(context.Background(), cmd(contract.ClientApprove, contract.ApproveClient{ClientID: c.ClientID}))
	require.NoError(t, err)
	assert.Equal(t, contract.StatusApproved, out.String("status"))
	assert.Equal(t, "111", out.String("cpf"))
	assert.Equal(t, "ana@bank.test", out.String("email"))

	_, err = svc.approve(context.Background(), cmd(contract.ClientApprove, contract.ApproveClient{ClientID: c.ClientID}))
	assert.Equal(t, failure.KindConflict, failure.KindOf(err))

	_, err = svc.approve(context.Background(), cmd(contract.ClientApprove, contract.ApproveClient{ClientID: "nobody"}))
	assert.Equal(t, failure.KindNotFound, failure.KindOf(err))
}

func TestRegisterRejectsDuplicatesAndBadInput(t *testing.T) {
	svc := newService(t)
	register(t, svc, "111", "ana@bank.test")

	_, err := svc.register(context.Background(), cmd(contract.ClientRegister, contract.RegisterClient{
		CPF: "111", Name: "Other", Email: "other@bank.test",
	}))
	assert.Equal(t, failure.KindConflict, failure.KindOf(err))

	_, err = svc.register(context.Background(), cmd(contract.ClientRegister, contract.RegisterClient{
		CPF: "222", Name: "Other", Email: "not-an-email",
	}))
	assert.Equal(t, failure.KindValidation, failure.KindOf(err))

	_, err = svc.register(context.Background(), cmd(contract.ClientRegister, contract.RegisterClient{
		CPF: "222", Name: "Other", Email: "o@bank.test", Salary: contract.MustMoney("-1"),
	}))
	assert.Equal(t, failure.KindValidation, failure.KindOf(err))
}

func TestUpdateKeepsBlankFields(t *testing.T) {
	svc := newService(t)
	c := register(t, svc, "111", "ana@bank.test")
	register(t, svc, "222", "bia@bank.test")

	out, err := svc.update(context.Background(), cmd(contract.ClientUpdate, contract.UpdateClient{
		ClientID: c.ClientID,
		Phone:    "+55 11 99999-0000",
		Salary:   contract.MustMoney("4200.5"),
	}))
	require.NoError(t, err)
	assert.Equal(t, "Ana", out.String("nome"))
	assert.Equal(t, "ana@bank.test", out.String("email"))
	assert.Equal(t, "+55 11 99999-0000", out.String("telefone"))
	assert.Equal(t, "4200.50", out.String("salario"))

	_, err = svc.update(context.Background(), cmd(contract.ClientUpdate, contract.UpdateClient{
		ClientID: c.ClientID,
		Email:    "bia@bank.test",
	}))
	assert.Equal(t, failure.KindConflict, failure.KindOf(err), "email taken")

	_, err = svc.update(context.Background(), cmd(contract.ClientUpdate, contract.UpdateClient{ClientID: "nobody"}))
	assert.Equal(t, failure.KindNotFound, failure.KindOf(err))
}
