package domain

import "fmt"

// Stack is the deploy-time configuration bundle: the unit plus the
// infrastructure scoped around it. It is passed explicitly through the deploy
// path rather than living in ambient global state.
type Stack struct {
	Unit           ServiceUnit                 `yaml:"unit"`
	Fabric         NetworkFabric               `yaml:"fabric"`
	Connector      Connector                   `yaml:"connector"`
	Identity       ExecutionIdentity           `yaml:"identity"`
	Repositories   map[Role]RegistryRepository `yaml:"repositories"`
	ProxyStableTag string                      `yaml:"proxy_stable_tag"`
}

// Validate checks every part of the bundle and their cross-references.
func (s *Stack) Validate() error {
	if err := s.Unit.Validate(); err != nil {
		return fmt.Errorf("unit: %w", err)
	}
	if err := s.Fabric.Validate(); err != nil {
		return fmt.Errorf("fabric: %w", err)
	}
	if err := s.Connector.Validate(); err != nil {
		return fmt.Errorf("connector: %w", err)
	}
	if s.Connector.FabricName != s.Fabric.Name {
		return fmt.Errorf("%w: connector bound to %q, fabric is %q", ErrInvalidInput, s.Connector.FabricName, s.Fabric.Name)
	}
	if err := s.Identity.Validate(); err != nil {
		return fmt.Errorf("identity: %w", err)
	}
	for _, role := range Roles {
		repo, ok := s.Repositories[role]
		if !ok {
			return fmt.Errorf("%w: missing repository for role %q", ErrInvalidInput, role)
		}
		if err := repo.Validate(); err != nil {
			return fmt.Errorf("repository %q: %w", role, err)
		}
	}
	if s.ProxyStableTag == "" {
		return fmt.Errorf("%w: proxy stable tag is required", ErrInvalidInput)
	}
	return nil
}
