package handler

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/helpmed-dispatch/internal/ledger"
	"github.com/mmeshcher/helpmed-dispatch/internal/model"
	"github.com/mmeshcher/helpmed-dispatch/internal/persist"
	"github.com/mmeshcher/helpmed-dispatch/internal/store"
)

type transactionRequest struct {
	Type        model.TransactionType   `json:"type" validate:"omitempty,oneof=SUBSCRIPTION ADDITIONAL_SERVICE CORPORATE_CONTRACT PARTICULAR MANUAL_ENTRY"`
	Amount      int64                   `json:"amount" validate:"required,gt=0"`
	Status      model.TransactionStatus `json:"status" validate:"omitempty,oneof=COMPLETED PENDING CANCELLED"`
	PlanType    model.PlanType          `json:"plan_type"`
	PlanSubtype string                  `json:"plan_subtype"`
	CompanyName string                  `json:"company_name"`
	Description string                  `json:"description"`
}

type patchRequest struct {
	Amount      *int64                   `json:"amount" validate:"omitempty,gt=0"`
	Status      *model.TransactionStatus `json:"status"`
	Date        *time.Time               `json:"date"`
	Description *string                  `json:"description"`
	Reason      string                   `json:"reason"`
}

type deleteRequest struct {
	Reason string `json:"reason"`
}

const dateLayout = "2006-01-02"

func parseBound(v string, end bool) (time.Time, bool) {
	if v == "" {
		return time.Time{}, true
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, true
	}
	t, err := time.Parse(dateLayout, v)
	if err != nil {
		return time.Time{}, false
	}
	if end {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, true
}

// ListTransactions возвращает операции журнала с фильтрами ?type=&status=&from=&to=.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	from, okFrom := parseBound(q.Get("from"), false)
	to, okTo := parseBound(q.Get("to"), true)
	if !okFrom || !okTo {
		writeError(w, http.StatusBadRequest, "invalid date filter")
		return
	}

	writeJSON(w, http.StatusOK, h.service.Transactions(r.Context(), ledger.Filter{
		Type:   model.TransactionType(q.Get("type")),
		Status: model.TransactionStatus(q.Get("status")),
		From:   from,
		To:     to,
	}))
}

// CreateTransaction добавляет операцию вручную.
func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity(w, r)
	if !ok {
		return
	}

	var req transactionRequest
	if !h.decode(w, r, &req) {
		return
	}

	tx, err := h.service.AppendTransaction(r.Context(), store.ManualEntry{
		Type:        req.Type,
		Amount:      req.Amount,
		Status:      req.Status,
		PlanType:    req.PlanType,
		PlanSubtype: req.PlanSubtype,
		CompanyName: req.CompanyName,
		Description: req.Description,
	})
	if err != nil {
		h.fail(w, "create transaction", err)
		return
	}

	h.logger.Info("manual transaction added",
		zap.String("transaction_id", tx.ID.String()),
		zap.String("admin_id", caller.UserID.String()),
		zap.Int64("amount", tx.Amount),
	)
	writeJSON(w, http.StatusCreated, tx)
}

// UpdateTransaction корректирует операцию с обязательной причиной.
func (h *Handler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req patchRequest
	if !h.decode(w, r, &req) {
		return
	}

	tx, err := h.service.UpdateTransaction(r.Context(), id, ledger.Patch{
		Amount:      req.Amount,
		Status:      req.Status,
		Date:        req.Date,
		Description: req.Description,
	}, req.Reason)
	if err != nil {
		h.fail(w, "update transaction", err, zap.String("transaction_id", id.String()))
		return
	}

	writeJSON(w, http.StatusOK, tx)
}

// DeleteTransaction удаляет операцию. Причина передаётся в теле или в ?reason=.
func (h *Handler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	reason := r.URL.Query().Get("reason")
	if reason == "" && r.ContentLength != 0 {
		var req deleteRequest
		if !h.decode(w, r, &req) {
			return
		}
		reason = req.Reason
	}

	c, err := h.service.DeleteTransaction(r.Context(), id, reason)
	if err != nil {
		h.fail(w, "delete transaction", err, zap.String("transaction_id", id.String()))
		return
	}

	writeJSON(w, http.StatusOK, c)
}

// ListCorrections возвращает журнал корректировок.
func (h *Handler) ListCorrections(w http.ResponseWriter, r *http.Request) {
	corrections := h.service.Corrections(r.Context())
	if corrections == nil {
		corrections = []model.Correction{}
	}
	writeJSON(w, http.StatusOK, corrections)
}

// RevenueSummary возвращает агрегаты доходов.
func (h *Handler) RevenueSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.RevenueSummary(r.Context()))
}

// PersistenceFailures возвращает последние сбои сохранения и уведомлений.
func (h *Handler) PersistenceFailures(w http.ResponseWriter, r *http.Request) {
	failures := []persist.Failure{}
	if h.failures != nil {
		if recent := h.failures.Failures(); recent != nil {
			failures = recent
		}
	}
	writeJSON(w, http.StatusOK, failures)
}
