package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-platform/stackd/internal/domain"
	"github.com/meridian-platform/stackd/internal/manifest"
	"github.com/meridian-platform/stackd/internal/service"
)

// DeployRunner is the deploy path the handler drives.
type DeployRunner interface {
	Deploy(ctx context.Context, stack *domain.Stack, req service.DeployRequest) (*domain.Revision, error)
}

// RevisionReader looks up deploy results.
type RevisionReader interface {
	GetRevision(ctx context.Context, id string) (*domain.Revision, error)
}

// PipelineRunner builds all three images and deploys the result.
type PipelineRunner interface {
	Run(ctx context.Context, stack *domain.Stack, version string) (*domain.Revision, error)
}

type DeployHandler struct {
	deploys   DeployRunner
	revisions RevisionReader
	pipelines PipelineRunner
}

func NewDeployHandler(deploys DeployRunner, revisions RevisionReader, pipelines PipelineRunner) *DeployHandler {
	return &DeployHandler{deploys: deploys, revisions: revisions, pipelines: pipelines}
}

type deployRequest struct {
	Stack         manifest.Stack `json:"stack"`
	Version       string         `json:"version"`
	RedeployProxy bool           `json:"redeploy_proxy"`
}

type deployResult struct {
	Revision *domain.Revision `json:"revision"`
	Message  string           `json:"message,omitempty"`
}

func (h *DeployHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req deployRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err))
		return
	}
	stack, err := req.Stack.ToDomain()
	if err != nil {
		writeError(w, err)
		return
	}

	rev, err := h.deploys.Deploy(r.Context(), stack, service.DeployRequest{
		Version:       req.Version,
		RedeployProxy: req.RedeployProxy,
	})
	if err != nil {
		// A failed rollout still produced a revision record; surface it so
		// the caller can inspect what was attempted.
		if rev != nil {
			writeJSON(w, http.StatusUnprocessableEntity, deployResult{Revision: rev, Message: err.Error()})
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, deployResult{Revision: rev})
}

// RunPipeline builds the unit's images from source and deploys them in one
// call. Unavailable when the control plane runs without a build backend.
func (h *DeployHandler) RunPipeline(w http.ResponseWriter, r *http.Request) {
	if h.pipelines == nil {
		writeError(w, fmt.Errorf("%w: no build backend configured", domain.ErrInvalidInput))
		return
	}
	var req deployRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err))
		return
	}
	stack, err := req.Stack.ToDomain()
	if err != nil {
		writeError(w, err)
		return
	}

	rev, err := h.pipelines.Run(r.Context(), stack, req.Version)
	if err != nil {
		if rev != nil {
			writeJSON(w, http.StatusUnprocessableEntity, deployResult{Revision: rev, Message: err.Error()})
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, deployResult{Revision: rev})
}

func (h *DeployHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rev, err := h.revisions.GetRevision(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rev)
}
