package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-platform/stackd/internal/domain"
	"github.com/meridian-platform/stackd/internal/health"
	"github.com/meridian-platform/stackd/internal/manifest"
	"github.com/meridian-platform/stackd/internal/port"
	"github.com/meridian-platform/stackd/internal/service"
)

// UnitReader serves unit lookups and live status.
type UnitReader interface {
	GetUnit(ctx context.Context, name string) (*domain.ServiceUnit, error)
	ListUnits(ctx context.Context) ([]*domain.ServiceUnit, error)
	Status(ctx context.Context, name string) (*service.UnitStatus, error)
	Health(ctx context.Context, name string) (health.Report, error)
}

// StackRemover tears a stack down.
type StackRemover interface {
	Teardown(ctx context.Context, stack *domain.Stack) error
}

type UnitHandler struct {
	status    UnitReader
	teardowns StackRemover
	logs      port.LogQuerier
	namespace string
}

func NewUnitHandler(status UnitReader, teardowns StackRemover, logs port.LogQuerier, namespace string) *UnitHandler {
	return &UnitHandler{status: status, teardowns: teardowns, logs: logs, namespace: namespace}
}

func (h *UnitHandler) List(w http.ResponseWriter, r *http.Request) {
	units, err := h.status.ListUnits(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, units)
}

func (h *UnitHandler) Get(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "unit")
	unit, err := h.status.GetUnit(r.Context(), name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, unit)
}

func (h *UnitHandler) Status(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "unit")
	status, err := h.status.Status(r.Context(), name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *UnitHandler) Health(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "unit")
	report, err := h.status.Health(r.Context(), name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// Teardown destroys the unit and its infrastructure. The caller supplies the
// stack manifest so the full resource graph can be walked in reverse.
func (h *UnitHandler) Teardown(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "unit")
	var m manifest.Stack
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		writeError(w, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err))
		return
	}
	stack, err := m.ToDomain()
	if err != nil {
		writeError(w, err)
		return
	}
	if stack.Unit.Name != name {
		writeError(w, fmt.Errorf("%w: manifest unit %q does not match path %q", domain.ErrInvalidInput, stack.Unit.Name, name))
		return
	}
	if err := h.teardowns.Teardown(r.Context(), stack); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": name})
}

func (h *UnitHandler) GetLogs(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "unit")
	container := r.URL.Query().Get("container")

	since := time.Hour
	if raw := r.URL.Query().Get("since"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			writeError(w, fmt.Errorf("%w: bad since %q", domain.ErrInvalidInput, raw))
			return
		}
		since = d
	}

	limit := 1000
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			limit = v
		}
	}

	end := time.Now()
	logs, err := h.logs.QueryUnitLogs(r.Context(), h.namespace, name, container, end.Add(-since), end, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"logs": logs})
}
