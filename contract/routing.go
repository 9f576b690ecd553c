package contract

import "strings"

// Command routing keys.
const (
	ClientRegister = "client.register"
	ClientApprove  = "client.approve"
	ClientUpdate   = "client.update"

	AccountCreate          = "account.create"
	AccountUpdateLimit     = "account.update-limit"
	AccountAssignManager   = "account.assign-manager"
	AccountUnassignManager = "account.unassign-manager"
	AccountTransaction     = "account.transaction"

	AuthCreateUser  = "auth.create-user"
	AuthDeleteUser  = "auth.delete-user"
	AuthRevokeToken = "auth.revoke-token"

	ManagerCreate         = "manager.create"
	ManagerRollbackCreate = "manager.rollback-create"
	ManagerDelete         = "manager.delete"
	ManagerNotify         = "manager.notify"
)

// Success event routing keys. The failure event of a command is
// message.FailureKey(command).
const (
	ClientRegistered = "client.registered"
	ClientApproved   = "client.approved"
	ClientUpdated    = "client.updated"

	AccountCreated           = "account.created"
	AccountUpdated           = "account.updated"
	AccountManagerAssigned   = "account.manager-assigned"
	AccountManagerUnassigned = "account.manager-unassigned"
	TransactionRecorded      = "transaction.recorded"

	AuthUserCreated  = "auth.user-created"
	AuthUserDeleted  = "auth.user-deleted"
	AuthTokenRevoked = "auth.token-revoked"

	ManagerCreated          = "manager.created"
	ManagerCreateRolledBack = "manager.create-rolled-back"
	ManagerDeleted          = "manager.deleted"
	ManagerNotified         = "manager.notified"
)

// SuccessEvents maps every command onto its success event.
var SuccessEvents = map[string]string{
	ClientRegister: ClientRegistered,
	ClientApprove:  ClientApproved,
	ClientUpdate:   ClientUpdated,

	AccountCreate:          AccountCreated,
	AccountUpdateLimit:     AccountUpdated,
	AccountAssignManager:   AccountManagerAssigned,
	AccountUnassignManager: AccountManagerUnassigned,
	AccountTransaction:     TransactionRecorded,

	AuthCreateUser:  AuthUserCreated,
	AuthDeleteUser:  AuthUserDeleted,
	AuthRevokeToken: AuthTokenRevoked,

	ManagerCreate:         ManagerCreated,
	ManagerRollbackCreate: ManagerCreateRolledBack,
	ManagerDelete:         ManagerDeleted,
	ManagerNotify:         ManagerNotified,
}

// EventKeys returns every success and failure routing key, sorted by command.
func EventKeys() []string {
	keys := make([]string, 0, len(SuccessEvents)*2) //nolint:mnd // success + failure
	for _, command := range Commands() {
		keys = append(keys, SuccessEvents[command], command+"-failed")
	}

	return keys
}

// Commands returns every command routing key in a stable order.
func Commands() []string {
	return []string{
		ClientRegister, ClientApprove, ClientUpdate,
		AccountCreate, AccountUpdateLimit, AccountAssignManager, AccountUnassignManager, AccountTransaction,
		AuthCreateUser, AuthDeleteUser, AuthRevokeToken,
		ManagerCreate, ManagerRollbackCreate, ManagerDelete, ManagerNotify,
	}
}

var commandsBySuccess = func() map[string]string {
	out := make(map[string]string, len(SuccessEvents))
	for command, event := range SuccessEvents {
		out[event] = command
	}

	return out
}()

// CommandOf returns the command whose terminal event is eventKey, or "" when
// eventKey is not a terminal event.
func CommandOf(eventKey string) string {
	if command, ok := strings.CutSuffix(eventKey, "-failed"); ok {
		if _, known := SuccessEvents[command]; known {
			return command
		}

		return ""
	}

	return commandsBySuccess[eventKey]
}
