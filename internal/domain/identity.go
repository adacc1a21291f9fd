package domain

import "fmt"

// ExecutionIdentity is the principal a ServiceUnit runs as. It carries only
// the minimal operational roles; anonymous external access is a separate,
// explicit grant so it stays auditable on its own.
type ExecutionIdentity struct {
	AccountID    string   `json:"account_id" yaml:"account_id"`
	DisplayName  string   `json:"display_name,omitempty" yaml:"display_name,omitempty"`
	Roles        []string `json:"roles" yaml:"roles"`
	PublicInvoke bool     `json:"public_invoke" yaml:"public_invoke"`
}

func (id *ExecutionIdentity) Validate() error {
	if err := ValidateResourceName(id.AccountID); err != nil {
		return err
	}
	if len(id.Roles) == 0 {
		return fmt.Errorf("%w: identity requires at least one role", ErrInvalidInput)
	}
	return nil
}
