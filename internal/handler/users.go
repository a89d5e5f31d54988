package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/mmeshcher/helpmed-dispatch/internal/entitlement"
	"github.com/mmeshcher/helpmed-dispatch/internal/model"
)

type grantRequest struct {
	Grants map[model.ServiceType]int `json:"grants" validate:"required,min=1,dive,gt=0"`
	Charge bool                      `json:"charge"`
}

type grantResponse struct {
	User        *model.User        `json:"user"`
	Transaction *model.Transaction `json:"transaction,omitempty"`
}

type companyGrantRequest struct {
	Amount int `json:"amount" validate:"required,gt=0"`
}

type entitlementResponse struct {
	ServiceType model.ServiceType `json:"service_type"`
	entitlement.Decision
}

// ListUsers возвращает пользователей с необязательным фильтром ?role=.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	role := model.Role(r.URL.Query().Get("role"))
	switch role {
	case "", model.RoleFamiliar, model.RoleCorporate, model.RoleExternal, model.RoleAmbulance, model.RoleAdmin:
	default:
		writeError(w, http.StatusBadRequest, "invalid role filter")
		return
	}

	writeJSON(w, http.StatusOK, h.service.ListUsers(r.Context(), role))
}

// GetUser возвращает пользователя. Доступно самому пользователю и администратору.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok || !allowSelf(w, caller, id) {
		return
	}

	u, err := h.service.User(r.Context(), id)
	if err != nil {
		h.fail(w, "get user", err, zap.String("user_id", id.String()))
		return
	}

	writeJSON(w, http.StatusOK, u)
}

// DeactivateUser деактивирует пользователя.
func (h *Handler) DeactivateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	u, err := h.service.DeactivateUser(r.Context(), id)
	if err != nil {
		h.fail(w, "deactivate user", err, zap.String("user_id", id.String()))
		return
	}

	writeJSON(w, http.StatusOK, u)
}

// GetEntitlement проверяет право пользователя на услугу ?service_type= без списания.
func (h *Handler) GetEntitlement(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok || !allowSelf(w, caller, id) {
		return
	}

	st := model.ServiceType(r.URL.Query().Get("service_type"))
	if !st.Valid() {
		writeError(w, http.StatusBadRequest, "invalid service_type")
		return
	}

	d, err := h.service.Entitlement(r.Context(), id, st)
	if err != nil {
		h.fail(w, "check entitlement", err, zap.String("user_id", id.String()))
		return
	}

	writeJSON(w, http.StatusOK, entitlementResponse{ServiceType: st, Decision: d})
}

// GrantExtra начисляет пользователю дополнительные услуги.
func (h *Handler) GrantExtra(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req grantRequest
	if !h.decode(w, r, &req) {
		return
	}
	for st := range req.Grants {
		if !st.Valid() {
			writeError(w, http.StatusBadRequest, "invalid service type "+string(st))
			return
		}
	}

	u, tx, err := h.service.GrantExtra(r.Context(), id, req.Grants, req.Charge)
	if err != nil {
		h.fail(w, "grant extra services", err, zap.String("user_id", id.String()))
		return
	}

	writeJSON(w, http.StatusOK, grantResponse{User: u, Transaction: tx})
}

// ListCompanies возвращает внешние компании.
func (h *Handler) ListCompanies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.ListCompanies(r.Context()))
}

// GrantCompanyServices пополняет общий пул услуг компании.
func (h *Handler) GrantCompanyServices(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req companyGrantRequest
	if !h.decode(w, r, &req) {
		return
	}

	c, err := h.service.GrantCompanyServices(r.Context(), id, req.Amount)
	if err != nil {
		h.fail(w, "grant company services", err, zap.String("company_id", id.String()))
		return
	}

	writeJSON(w, http.StatusOK, c)
}
