package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/domain/annexure"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/infrastructure/monitoring/logging"
)

// AnnexureWriter migrates and writes one case row of a service table.
type AnnexureWriter interface {
	EnsureAndUpsert(ctx context.Context, rec annexure.Record) (annexure.WriteOutcome, error)
}

type AnnexureHandler struct {
	writer AnnexureWriter
	logger logging.Logger
}

func NewAnnexureHandler(writer AnnexureWriter, logger logging.Logger) *AnnexureHandler {
	return &AnnexureHandler{writer: writer, logger: logger}
}

// UpsertAnnexureRequest carries the field values of one case row. A null
// value clears the column.
type UpsertAnnexureRequest struct {
	BranchID   int64              `json:"branch_id"`
	CustomerID int64              `json:"customer_id"`
	Fields     map[string]*string `json:"fields"`
}

type UpsertAnnexureResponse struct {
	CaseID  int64                 `json:"case_id"`
	Table   string                `json:"table"`
	Outcome annexure.WriteOutcome `json:"outcome"`
}

// Upsert handles PUT /api/v1/cases/{caseID}/annexures/{table}.
func (h *AnnexureHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	caseID, err := pathID(r, "caseID")
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	var req UpsertAnnexureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBodyError(w, r, err)
		return
	}

	rec := annexure.Record{
		CaseID:     caseID,
		BranchID:   req.BranchID,
		CustomerID: req.CustomerID,
		Table:      chi.URLParam(r, "table"),
		Fields:     req.Fields,
	}
	outcome, err := h.writer.EnsureAndUpsert(r.Context(), rec)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	status := http.StatusOK
	if outcome == annexure.OutcomeInserted {
		status = http.StatusCreated
	}
	writeJSON(w, status, UpsertAnnexureResponse{CaseID: caseID, Table: rec.Table, Outcome: outcome})
}
