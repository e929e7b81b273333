package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/application/reporting"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/infrastructure/monitoring/logging"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/pkg/errors"
)

type StatusReporter interface {
	Build(ctx context.Context, mode reporting.Mode) (*reporting.Tree, error)
}

type DelayReporter interface {
	Build(ctx context.Context, now time.Time) (*reporting.Tree, error)
}

type AttachmentResolver interface {
	Resolve(ctx context.Context, caseID int64) (map[string][]map[string]string, error)
}

// ReportHandler serves the report trees and case attachment listings.
type ReportHandler struct {
	status      StatusReporter
	delay       DelayReporter
	attachments AttachmentResolver
	logger      logging.Logger
	now         func() time.Time
}

func NewReportHandler(status StatusReporter, delay DelayReporter, attachments AttachmentResolver, logger logging.Logger) *ReportHandler {
	return &ReportHandler{status: status, delay: delay, attachments: attachments, logger: logger, now: time.Now}
}

// CaseStatus handles GET /api/v1/reports/case-status?mode=pending|prepared.
// The mode defaults to pending.
func (h *ReportHandler) CaseStatus(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("mode")
	if raw == "" {
		raw = string(reporting.ModePending)
	}
	mode, err := reporting.ParseMode(raw)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	tree, err := h.status.Build(r.Context(), mode)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tree)
}

// TATDelay handles GET /api/v1/reports/tat-delay. An RFC 3339 as_of
// parameter evaluates the report at another instant.
func (h *ReportHandler) TATDelay(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeAppError(w, r, errors.Validation("as_of must be an RFC 3339 timestamp").WithDetail(raw))
			return
		}
		now = t
	}
	tree, err := h.delay.Build(r.Context(), now)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tree)
}

// Attachments handles GET /api/v1/cases/{caseID}/attachments.
func (h *ReportHandler) Attachments(w http.ResponseWriter, r *http.Request) {
	caseID, err := pathID(r, "caseID")
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	files, err := h.attachments.Resolve(r.Context(), caseID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"case_id": caseID, "attachments": files})
}
