package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/domain/formschema"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/infrastructure/monitoring/logging"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/pkg/errors"
)

// AuthorHeader names the admin who edits a form definition.
const AuthorHeader = "X-Author-ID"

// FormSchemaRegistry is the registry surface the handler needs.
type FormSchemaRegistry interface {
	ListModules(ctx context.Context) ([]formschema.Module, error)
	Get(ctx context.Context, serviceID int64) (*formschema.Schema, error)
	Upsert(ctx context.Context, serviceID int64, doc []byte, authorID int64) (formschema.UpsertResult, error)
}

type FormSchemaHandler struct {
	registry FormSchemaRegistry
	logger   logging.Logger
}

func NewFormSchemaHandler(registry FormSchemaRegistry, logger logging.Logger) *FormSchemaHandler {
	return &FormSchemaHandler{registry: registry, logger: logger}
}

type FormSchemaResponse struct {
	ServiceID int64           `json:"service_id"`
	AuthorID  int64           `json:"author_id,omitempty"`
	UpdatedAt *time.Time      `json:"updated_at,omitempty"`
	Schema    json.RawMessage `json:"schema"`
}

type UpsertFormSchemaResponse struct {
	ServiceID int64                   `json:"service_id"`
	Result    formschema.UpsertResult `json:"result"`
}

// Upsert handles PUT /api/v1/services/{serviceID}/form-schema. The body is
// the form definition document.
func (h *FormSchemaHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	serviceID, err := pathID(r, "serviceID")
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	authorID, err := authorFromRequest(r)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	doc, err := io.ReadAll(r.Body)
	if err != nil {
		writeBodyError(w, r, err)
		return
	}

	res, err := h.registry.Upsert(r.Context(), serviceID, doc, authorID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	status := http.StatusOK
	if res == formschema.UpsertInserted {
		status = http.StatusCreated
	}
	writeJSON(w, status, UpsertFormSchemaResponse{ServiceID: serviceID, Result: res})
}

// Get handles GET /api/v1/services/{serviceID}/form-schema.
func (h *FormSchemaHandler) Get(w http.ResponseWriter, r *http.Request) {
	serviceID, err := pathID(r, "serviceID")
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	s, err := h.registry.Get(r.Context(), serviceID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	if s == nil {
		writeAppError(w, r, errors.NotFound("form schema not found").WithDetail(strconv.FormatInt(serviceID, 10)))
		return
	}

	resp := FormSchemaResponse{ServiceID: serviceID, AuthorID: s.AuthorID, Schema: s.Raw}
	if !s.UpdatedAt.IsZero() {
		updated := s.UpdatedAt
		resp.UpdatedAt = &updated
	}
	if len(resp.Schema) == 0 {
		raw, err := json.Marshal(s)
		if err != nil {
			writeAppError(w, r, errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode form schema"))
			return
		}
		resp.Schema = raw
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListModules handles GET /api/v1/form-schemas/modules.
func (h *FormSchemaHandler) ListModules(w http.ResponseWriter, r *http.Request) {
	mods, err := h.registry.ListModules(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	if mods == nil {
		mods = []formschema.Module{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"modules": mods})
}

func authorFromRequest(r *http.Request) (int64, error) {
	raw := strings.TrimSpace(r.Header.Get(AuthorHeader))
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 0 {
		return 0, errors.Validation("invalid " + AuthorHeader).WithDetail(raw)
	}
	return id, nil
}
