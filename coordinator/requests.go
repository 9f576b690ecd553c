package coordinator

import (
	"slices"
	"strings"

	"github.com/shortlink-org/bank-saga/contract"
	"github.com/shortlink-org/bank-saga/cqrs/message"
	"github.com/shortlink-org/bank-saga/failure"
)

// ApproveClientRequest approves a pending client. ManagerID is optional.
type ApproveClientRequest struct {
	ClientID  string
	ManagerID string
	Password  string
}

func (r ApproveClientRequest) validate() (message.Payload, error) {
	const op = "approve client"

	if err := required(op, map[string]string{"clientId": r.ClientID, "password": r.Password}); err != nil {
		return nil, err
	}

	return message.Payload{
		"clientId":  strings.TrimSpace(r.ClientID),
		"managerId": strings.TrimSpace(r.ManagerID),
		"password":  r.Password,
	}, nil
}

// CreateManagerRequest creates a manager and the credentials to sign in with.
type CreateManagerRequest struct {
	CPF      string
	Name     string
	Email    string
	Phone    string
	Password string
}

func (r CreateManagerRequest) validate(managerID string) (message.Payload, error) {
	const op = "create manager"

	err := required(op, map[string]string{
		"cpf":      r.CPF,
		"nome":     r.Name,
		"email":    r.Email,
		"password": r.Password,
	})
	if err != nil {
		return nil, err
	}

	return message.Payload{
		"managerId": managerID,
		"cpf":       strings.TrimSpace(r.CPF),
		"nome":      strings.TrimSpace(r.Name),
		"email":     strings.TrimSpace(r.Email),
		"telefone":  strings.TrimSpace(r.Phone),
		"password":  r.Password,
	}, nil
}

// DeleteManagerRequest deletes a manager after moving its accounts away.
type DeleteManagerRequest struct {
	ManagerID string
}

func (r DeleteManagerRequest) validate() (message.Payload, error) {
	if err := required("delete manager", map[string]string{"managerId": r.ManagerID}); err != nil {
		return nil, err
	}

	return message.Payload{"managerId": strings.TrimSpace(r.ManagerID)}, nil
}

// UpdateProfileRequest updates a client's profile and recalculates the limit from Salary.
type UpdateProfileRequest struct {
	ClientID string
	Name     string
	Email    string
	Phone    string
	Salary   string
}

func (r UpdateProfileRequest) validate() (message.Payload, error) {
	const op = "update profile"

	if err := required(op, map[string]string{"clientId": r.ClientID, "salario": r.Salary}); err != nil {
		return nil, err
	}

	salary, err := contract.ParseMoney(strings.TrimSpace(r.Salary))
	if err != nil {
		return nil, failure.Validation(op, "salario %q is not a decimal", r.Salary)
	}

	if salary.IsNegative() {
		return nil, failure.Validation(op, "salario must not be negative")
	}

	return message.Payload{
		"clientId": strings.TrimSpace(r.ClientID),
		"nome":     strings.TrimSpace(r.Name),
		"email":    strings.TrimSpace(r.Email),
		"telefone": strings.TrimSpace(r.Phone),
		"salario":  salary.String(),
	}, nil
}

func required(op string, fields map[string]string) error {
	var missing []string

	for name, value := range fields {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}

	if len(missing) == 0 {
		return nil
	}

	slices.Sort(missing)

	return failure.Validation(op, "%s must not be blank", strings.Join(missing, ", "))
}
