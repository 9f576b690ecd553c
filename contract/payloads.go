package contract

import (
	"time"
)

// Transaction types.
const (
	TxDeposit    = "DEPOSITO"
	TxWithdrawal = "SAQUE"
	TxTransfer   = "TRANSFERENCIA"
)

// Roles of credentials.
const (
	RoleClient  = "CLIENTE"
	RoleManager = "GERENTE"
)

// Client statuses.
const (
	StatusPending  = "PENDENTE"
	StatusApproved = "APROVADO"
)

// Account is the account projection payload of account.created and account.updated.
// Version starts at 1 and grows with every change of the account.
type Account struct {
	CreatedAt  time.Time `json:"dataCriacao"`
	Balance    Money     `json:"saldo"`
	Limit      Money     `json:"limite"`
	ClientID   string    `json:"clientId"`
	ClientCPF  string    `json:"clientCpf"`
	Number     string    `json:"numero"`
	ManagerID  string    `json:"managerId"`
	ManagerCPF string    `json:"managerCpf"`
	Version    int64     `json:"versao"`
}

// Transaction is the payload of transaction.recorded. Destination fields are
// set on transfers only. The versions are those of the accounts right after
// the transaction.
type Transaction struct {
	At                 time.Time `json:"dataHora"`
	Amount             Money     `json:"valor"`
	Balance            Money     `json:"saldo"`
	DestinationBalance *Money    `json:"saldoDestino,omitempty"`
	ID                 string    `json:"id"`
	Type               string    `json:"tipo"`
	ClientID           string    `json:"clientId"`
	ClientCPF          string    `json:"clientCpf"`
	DestinationID      string    `json:"destinoClientId,omitempty"`
	DestinationCPF     string    `json:"destinoCpf,omitempty"`
	Version            int64     `json:"versao"`
	DestinationVersion int64     `json:"versaoDestino,omitempty"`
}

// Failure is the payload of every *-failed event.
type Failure struct {
	Payload map[string]any `json:"payload"`
	Reason  string         `json:"reason"`
	Kind    string         `json:"kind"`
	Status  int            `json:"status"`
}

// ManagerAccounts is the payload of account.manager-assigned and
// account.manager-unassigned: the accounts whose manager changed.
type ManagerAccounts struct {
	ManagerID string    `json:"managerId"`
	Accounts  []Account `json:"accounts"`
}

// Commands.

type RegisterClient struct {
	Salary Money  `json:"salario"`
	CPF    string `json:"cpf"`
	Name   string `json:"nome"`
	Email  string `json:"email"`
	Phone  string `json:"telefone,omitempty"`
}

type ApproveClient struct {
	ClientID string `json:"clientId"`
}

type UpdateClient struct {
	Salary   Money  `json:"salario"`
	ClientID string `json:"clientId"`
	Name     string `json:"nome,omitempty"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"telefone,omitempty"`
}

// Client is the payload of client.registered, client.approved and client.updated.
type Client struct {
	Salary   Money  `json:"salario"`
	ClientID string `json:"clientId"`
	CPF      string `json:"cpf"`
	Name     string `json:"nome"`
	Email    string `json:"email"`
	Phone    string `json:"telefone,omitempty"`
	Status   string `json:"status"`
}

type CreateAccount struct {
	Salary    Money  `json:"salary"`
	ClientID  string `json:"clientId"`
	ClientCPF string `json:"clientCpf"`
	ManagerID string `json:"managerId,omitempty"`
}

type UpdateLimit struct {
	Salary   Money  `json:"salary"`
	ClientID string `json:"clientId"`
}

type AssignManager struct {
	ManagerID  string `json:"managerId"`
	ManagerCPF string `json:"managerCpf"`
}

type UnassignManager struct {
	ManagerID string `json:"managerId"`
}

type RecordTransaction struct {
	Amount        Money  `json:"valor"`
	ClientID      string `json:"clientId"`
	Type          string `json:"tipo"`
	DestinationID string `json:"destinoClientId,omitempty"`
}

type CreateUser struct {
	UserID   string `json:"userId"`
	Login    string `json:"login"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// User is the payload of auth.user-created and auth.user-deleted. It never
// carries the password.
type User struct {
	UserID string `json:"userId"`
	Login  string `json:"login,omitempty"`
	Role   string `json:"role,omitempty"`
}

type DeleteUser struct {
	UserID string `json:"userId"`
}

type RevokeToken struct {
	ExpiresAt time.Time `json:"expiresAt"`
	Token     string    `json:"token"`
}

type TokenRevoked struct {
	ExpiresAt time.Time `json:"expiresAt"`
	TokenHash string    `json:"tokenHash"`
}

type CreateManager struct {
	ManagerID string `json:"managerId"`
	CPF       string `json:"cpf"`
	Name      string `json:"nome"`
	Email     string `json:"email"`
	Phone     string `json:"telefone,omitempty"`
}

// Manager is the payload of manager.created, manager.create-rolled-back and manager.deleted.
type Manager struct {
	ManagerID string `json:"managerId"`
	CPF       string `json:"cpf,omitempty"`
	Name      string `json:"nome,omitempty"`
	Email     string `json:"email,omitempty"`
}

type ManagerRef struct {
	ManagerID string `json:"managerId"`
}

type NotifyManager struct {
	ManagerID     string `json:"managerId"`
	ClientID      string `json:"clientId"`
	AccountNumber string `json:"numero"`
}

type ManagerNotification struct {
	NotifiedAt     time.Time `json:"notifiedAt"`
	NotificationID string    `json:"notificationId"`
	ManagerID      string    `json:"managerId"`
	ClientID       string    `json:"clientId"`
}
