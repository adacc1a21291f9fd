// Package health evaluates ServiceUnit readiness from container startup
// probes and the declared dependency order between containers.
package health

import "github.com/meridian-platform/stackd/internal/domain"

// ContainerState is one container's position in the unit health report.
type ContainerState struct {
	Role       domain.Role `json:"role"`
	ProbeReady bool        `json:"probe_ready"`
	Ready      bool        `json:"ready"` // probe ready AND all dependencies ready
}

// Report is the unit-level health view consumed by the deployment system and
// any monitoring layer. A probe failure on a dependency does not stop the
// dependent container from running; it only gates this report.
type Report struct {
	Unit       string                         `json:"unit"`
	Healthy    bool                           `json:"healthy"`
	Containers map[domain.Role]ContainerState `json:"containers"`
}

// Evaluate combines per-container probe outcomes into the unit report. A
// container with declared dependencies is ready only once every dependency is
// ready; the unit is healthy when all containers are ready.
func Evaluate(unit *domain.ServiceUnit, probeReady map[domain.Role]bool) Report {
	report := Report{
		Unit:       unit.Name,
		Containers: make(map[domain.Role]ContainerState, len(unit.Containers)),
	}

	ready := func(role domain.Role) bool { return probeReady[role] }

	healthy := true
	for i := range unit.Containers {
		c := &unit.Containers[i]
		state := ContainerState{
			Role:       c.Role,
			ProbeReady: ready(c.Role),
			Ready:      ready(c.Role),
		}
		for _, dep := range c.DependsOn {
			if !ready(dep) {
				state.Ready = false
			}
		}
		if !state.Ready {
			healthy = false
		}
		report.Containers[c.Role] = state
	}
	report.Healthy = healthy
	return report
}
