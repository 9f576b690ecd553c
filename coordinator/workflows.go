package coordinator

import (
	"github.com/shortlink-org/bank-saga/contract"
	"github.com/shortlink-org/bank-saga/cqrs/message"
)

// Workflow kinds.
const (
	KindApproveClient = "approve-client"
	KindCreateManager = "create-manager"
	KindDeleteManager = "delete-manager"
	KindUpdateProfile = "update-profile"
)

// Step names.
const (
	StepClientApproval        = "client-approval"
	StepAccountCreation       = "account-creation"
	StepCredentials           = "credentials"
	StepManagerNotification   = "manager-notification"
	StepManagerCreation       = "manager-creation"
	StepClientReassignment    = "client-reassignment"
	StepAccountRedistribution = "account-redistribution"
	StepManagerRemoval        = "manager-removal"
	StepCredentialsRemoval    = "credentials-removal"
	StepProfileUpdate         = "profile-update"
	StepLimitRecalculation    = "limit-recalculation"
)

// Workflows returns every workflow the coordinator runs.
func Workflows() []Workflow {
	return []Workflow{approveClient(), createManager(), deleteManager(), updateProfile()}
}

// approveClient: client-approval -> account-creation -> credentials -> manager-notification.
// The account gets the requested manager or, when none is given, the least loaded one.
func approveClient() Workflow {
	return Workflow{
		Kind: KindApproveClient,
		Steps: []StepDef{
			{
				Name:    StepClientApproval,
				Command: contract.ClientApprove,
				Build: func(s *State) message.Payload {
					return message.MustPayload(contract.ApproveClient{ClientID: s.Input.String("clientId")})
				},
			},
			{
				Name:    StepAccountCreation,
				Command: contract.AccountCreate,
				Build: func(s *State) message.Payload {
					client := s.Result(StepClientApproval)

					return message.Payload{
						"clientId":  s.Input.String("clientId"),
						"clientCpf": client.String("cpf"),
						"salary":    client["salario"],
						"managerId": s.Input.String("managerId"),
					}
				},
			},
			{
				Name:    StepCredentials,
				Command: contract.AuthCreateUser,
				Build: func(s *State) message.Payload {
					return message.MustPayload(contract.CreateUser{
						UserID:   s.Input.String("clientId"),
						Login:    s.Result(StepClientApproval).String("email"),
						Password: s.Input.String("password"),
						Role:     contract.RoleClient,
					})
				},
			},
			{
				Name:       StepManagerNotification,
				Command:    contract.ManagerNotify,
				Degradable: true,
				Build: func(s *State) message.Payload {
					account := s.Result(StepAccountCreation)

					return message.MustPayload(contract.NotifyManager{
						ManagerID:     account.String("managerId"),
						ClientID:      s.Input.String("clientId"),
						AccountNumber: account.String("numero"),
					})
				},
			},
		},
		Output: func(s *State) any {
			return s.Result(StepAccountCreation)
		},
	}
}

// createManager: manager-creation -> credentials -> client-reassignment.
// The first two steps are compensated when a later one fails.
func createManager() Workflow {
	managerRef := func(s *State) message.Payload {
		return message.MustPayload(contract.ManagerRef{ManagerID: s.Input.String("managerId")})
	}

	return Workflow{
		Kind: KindCreateManager,
		Steps: []StepDef{
			{
				Name:         StepManagerCreation,
				Command:      contract.ManagerCreate,
				Compensation: contract.ManagerRollbackCreate,
				Build: func(s *State) message.Payload {
					return message.MustPayload(contract.CreateManager{
						ManagerID: s.Input.String("managerId"),
						CPF:       s.Input.String("cpf"),
						Name:      s.Input.String("nome"),
						Email:     s.Input.String("email"),
						Phone:     s.Input.String("telefone"),
					})
				},
				BuildCompensation: managerRef,
			},
			{
				Name:         StepCredentials,
				Command:      contract.AuthCreateUser,
				Compensation: contract.AuthDeleteUser,
				Build: func(s *State) message.Payload {
					return message.MustPayload(contract.CreateUser{
						UserID:   s.Input.String("managerId"),
						Login:    s.Input.String("email"),
						Password: s.Input.String("password"),
						Role:     contract.RoleManager,
					})
				},
				BuildCompensation: func(s *State) message.Payload {
					return message.MustPayload(contract.DeleteUser{UserID: s.Input.String("managerId")})
				},
			},
			{
				Name:    StepClientReassignment,
				Command: contract.AccountAssignManager,
				Build: func(s *State) message.Payload {
					return message.MustPayload(contract.AssignManager{
						ManagerID:  s.Input.String("managerId"),
						ManagerCPF: s.Input.String("cpf"),
					})
				},
			},
		},
		Output: func(s *State) any {
			out := message.Payload{}
			for k, v := range s.Result(StepManagerCreation) {
				out[k] = v
			}

			out["accounts"] = s.Result(StepClientReassignment)["accounts"]

			return out
		},
	}
}

// deleteManager: account-redistribution -> manager-removal -> credentials-removal.
func deleteManager() Workflow {
	managerRef := func(s *State) message.Payload {
		return message.MustPayload(contract.ManagerRef{ManagerID: s.Input.String("managerId")})
	}

	return Workflow{
		Kind: KindDeleteManager,
		Steps: []StepDef{
			{
				Name:    StepAccountRedistribution,
				Command: contract.AccountUnassignManager,
				Build:   managerRef,
			},
			{
				Name:    StepManagerRemoval,
				Command: contract.ManagerDelete,
				Build:   managerRef,
			},
			{
				Name:    StepCredentialsRemoval,
				Command: contract.AuthDeleteUser,
				Build: func(s *State) message.Payload {
					return message.MustPayload(contract.DeleteUser{UserID: s.Input.String("managerId")})
				},
			},
		},
		Output: func(s *State) any {
			return s.Result(StepAccountRedistribution)
		},
	}
}

// updateProfile: profile-update -> limit-recalculation.
func updateProfile() Workflow {
	return Workflow{
		Kind: KindUpdateProfile,
		Steps: []StepDef{
			{
				Name:    StepProfileUpdate,
				Command: contract.ClientUpdate,
				Build: func(s *State) message.Payload {
					return message.Payload{
						"clientId": s.Input.String("clientId"),
						"nome":     s.Input.String("nome"),
						"email":    s.Input.String("email"),
						"telefone": s.Input.String("telefone"),
						"salario":  s.Input.String("salario"),
					}
				},
			},
			{
				Name:    StepLimitRecalculation,
				Command: contract.AccountUpdateLimit,
				Build: func(s *State) message.Payload {
					return message.Payload{
						"clientId": s.Input.String("clientId"),
						"salary":   s.Input.String("salario"),
					}
				},
			},
		},
		Output: func(s *State) any {
			return message.Payload{
				"client":  s.Result(StepProfileUpdate),
				"account": s.Result(StepLimitRecalculation),
			}
		},
	}
}
