package contract_test

import (
	"testing"

	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shortlink-org/bank-saga/contract"
)

func TestMoneyEncodesFixedScale(t *testing.T) {
	raw, err := json.Marshal(contract.MustMoney("1250"))
	require.NoError(t, err)
	assert.JSONEq(t, `"1250.00"`, string(raw))
}

func TestMoneyAcceptsStringsAndNumbers(t *testing.T) {
	var v struct {
		A contract.Money `json:"a"`
		B contract.Money `json:"b"`
		C contract.Money `json:"c"`
	}

	require.NoError(t, json.Unmarshal([]byte(`{"a":"-500.5","b":42.25,"c":null}`), &v))
	assert.Equal(t, "-500.50", v.A.String())
	assert.Equal(t, "42.25", v.B.String())
	assert.True(t, v.C.IsZero())

	require.Error(t, json.Unmarshal([]byte(`{"a":"abc"}`), &v))
}

func TestAccountFieldNames(t *testing.T) {
	raw, err := json.Marshal(contract.Account{
		ClientID:  "c-1",
		ClientCPF: "123",
		Number:    "1001",
		Balance:   contract.MustMoney("0"),
		Limit:     contract.MustMoney("1250"),
		ManagerID: "m-1",
	})
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))

	for _, key := range []string{"clientId", "clientCpf", "numero", "saldo", "limite", "managerId", "managerCpf", "dataCriacao", "versao"} {
		assert.Contains(t, fields, key)
	}
}

func TestEventKeysPairEveryCommand(t *testing.T) {
	keys := contract.EventKeys()
	assert.Len(t, keys, len(contract.Commands())*2)
	assert.Contains(t, keys, "account.create-failed")
	assert.Contains(t, keys, "transaction.recorded")
}

func TestCommandOfResolvesTerminalEvents(t *testing.T) {
	assert.Equal(t, contract.AccountCreate, contract.CommandOf(contract.AccountCreated))
	assert.Equal(t, contract.AccountCreate, contract.CommandOf("account.create-failed"))
	assert.Equal(t, contract.ManagerRollbackCreate, contract.CommandOf(contract.ManagerCreateRolledBack))
	assert.Empty(t, contract.CommandOf("account.bogus-failed"))
	assert.Empty(t, contract.CommandOf("account.create"))
}
