package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/helpmed-dispatch/internal/emergency"
	"github.com/mmeshcher/helpmed-dispatch/internal/ledger"
	"github.com/mmeshcher/helpmed-dispatch/internal/registration"
	"github.com/mmeshcher/helpmed-dispatch/internal/repository"
	"github.com/mmeshcher/helpmed-dispatch/internal/store"
	"github.com/mmeshcher/helpmed-dispatch/internal/usage"
)

type errorResponse struct {
	Error string `json:"error"`
}

var (
	notFoundErrors = []error{
		store.ErrUserNotFound,
		store.ErrRegistrationNotFound,
		store.ErrEmergencyNotFound,
		store.ErrCompanyNotFound,
		ledger.ErrTransactionNotFound,
	}
	conflictErrors = []error{
		store.ErrDuplicateUsername,
		store.ErrDuplicateEmail,
		store.ErrDuplicateCompany,
		store.ErrDuplicateRUC,
		repository.ErrUserExists,
		repository.ErrCompanyExists,
		registration.ErrAlreadyReviewed,
		emergency.ErrInvalidTransition,
		emergency.ErrTerminal,
	}
	invalidErrors = []error{
		store.ErrInvalidRUC,
		store.ErrInvalidAmount,
		store.ErrUnknownServiceType,
		registration.ErrUnknownPlan,
		registration.ErrReasonRequired,
		registration.ErrCompanyRequired,
		registration.ErrInvalidEmployees,
		ledger.ErrReasonRequired,
		ledger.ErrInvalidStatus,
		emergency.ErrUnknownStatus,
		emergency.ErrUnitRequired,
		emergency.ErrInvalidETA,
		emergency.ErrRecordIncomplete,
		emergency.ErrUnknownServiceType,
		usage.ErrInvalidAmount,
		usage.ErrNoPlan,
		usage.ErrUnknownBucket,
		usage.ErrUnlimitedBucket,
		usage.ErrNotGrantable,
	}
)

func isAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func statusFor(err error) int {
	switch {
	case isAny(err, notFoundErrors):
		return http.StatusNotFound
	case isAny(err, conflictErrors):
		return http.StatusConflict
	case isAny(err, invalidErrors):
		return http.StatusUnprocessableEntity
	case errors.Is(err, store.ErrInvalidCredentials):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// fail отвечает клиенту по типу ошибки. Непредвиденные ошибки логируются и скрываются.
func (h *Handler) fail(w http.ResponseWriter, op string, err error, fields ...zap.Field) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error(op+" error", append(fields, zap.Error(err))...)
		writeError(w, status, http.StatusText(status))
		return
	}
	writeError(w, status, err.Error())
}

// decode читает JSON-тело запроса и проверяет его по тегам validate.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}

	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			writeError(w, http.StatusBadRequest, "invalid field "+verrs[0].Namespace()+": "+verrs[0].Tag())
			return false
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}

	return true
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}
