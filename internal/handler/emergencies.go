package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/mmeshcher/helpmed-dispatch/internal/entitlement"
	"github.com/mmeshcher/helpmed-dispatch/internal/model"
	"github.com/mmeshcher/helpmed-dispatch/internal/store"
)

type locationRequest struct {
	Address   string  `json:"address" validate:"required"`
	Latitude  float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" validate:"gte=-180,lte=180"`
	Reference string  `json:"reference"`
}

type emergencyRequest struct {
	ServiceType model.ServiceType   `json:"service_type" validate:"required"`
	Kind        model.EmergencyKind `json:"kind" validate:"omitempty,oneof=medical sos accident transfer"`
	Description string              `json:"description"`
	Location    locationRequest     `json:"location"`
}

type emergencyResponse struct {
	Emergency   *model.Emergency     `json:"emergency"`
	Entitlement entitlement.Decision `json:"entitlement"`
	Transaction *model.Transaction   `json:"transaction,omitempty"`
}

type assignRequest struct {
	Unit string `json:"unit" validate:"required"`
}

type etaRequest struct {
	Minutes int `json:"minutes" validate:"required,gt=0"`
}

type statusRequest struct {
	Status model.EmergencyStatus `json:"status" validate:"required"`
	Note   string                `json:"note"`
}

type completeRequest struct {
	Diagnosis         string            `json:"diagnosis" validate:"required"`
	Treatment         string            `json:"treatment"`
	AttendedBy        string            `json:"attended_by" validate:"required"`
	Notes             string            `json:"notes"`
	ActualServiceType model.ServiceType `json:"actual_service_type"`
}

// RequestService проверяет право на услугу и создаёт вызов. Отказ возвращается с кодом 403.
func (h *Handler) RequestService(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity(w, r)
	if !ok {
		return
	}

	var req emergencyRequest
	if !h.decode(w, r, &req) {
		return
	}
	if !req.ServiceType.Valid() {
		writeError(w, http.StatusBadRequest, "invalid service_type")
		return
	}

	out, err := h.service.RequestService(r.Context(), store.ServiceRequest{
		UserID:      caller.UserID,
		ServiceType: req.ServiceType,
		Kind:        req.Kind,
		Description: req.Description,
		Location: model.Location{
			Address:   req.Location.Address,
			Latitude:  req.Location.Latitude,
			Longitude: req.Location.Longitude,
			Reference: req.Location.Reference,
		},
	})
	if err != nil {
		h.fail(w, "request service", err, zap.String("user_id", caller.UserID.String()))
		return
	}

	if !out.Decision.Allowed {
		writeJSON(w, http.StatusForbidden, out.Decision)
		return
	}

	writeJSON(w, http.StatusCreated, emergencyResponse{
		Emergency:   out.Emergency,
		Entitlement: out.Decision,
		Transaction: out.Transaction,
	})
}

// ListEmergencies возвращает вызовы. Персонал видит все, остальные только свои.
func (h *Handler) ListEmergencies(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity(w, r)
	if !ok {
		return
	}

	f := store.EmergencyFilter{Status: model.EmergencyStatus(r.URL.Query().Get("status"))}
	if !isStaff(caller) {
		f.UserID = &caller.UserID
	}

	writeJSON(w, http.StatusOK, h.service.ListEmergencies(r.Context(), f))
}

// GetEmergency возвращает вызов владельцу или персоналу.
func (h *Handler) GetEmergency(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	e, err := h.service.Emergency(r.Context(), id)
	if err != nil {
		h.fail(w, "get emergency", err, zap.String("emergency_id", id.String()))
		return
	}
	if !isStaff(caller) && e.UserID != caller.UserID {
		writeError(w, http.StatusNotFound, "emergency not found")
		return
	}

	writeJSON(w, http.StatusOK, e)
}

// AssignEmergency назначает бригаду.
func (h *Handler) AssignEmergency(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req assignRequest
	if !h.decode(w, r, &req) {
		return
	}

	e, err := h.service.AssignEmergency(r.Context(), id, req.Unit)
	if err != nil {
		h.fail(w, "assign emergency", err, zap.String("emergency_id", id.String()))
		return
	}

	writeJSON(w, http.StatusOK, e)
}

// SetEstimatedArrival устанавливает ожидаемое время прибытия.
func (h *Handler) SetEstimatedArrival(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req etaRequest
	if !h.decode(w, r, &req) {
		return
	}

	e, err := h.service.SetEstimatedArrival(r.Context(), id, req.Minutes)
	if err != nil {
		h.fail(w, "set eta", err, zap.String("emergency_id", id.String()))
		return
	}

	writeJSON(w, http.StatusOK, e)
}

// UpdateEmergencyStatus переводит вызов в новый статус.
func (h *Handler) UpdateEmergencyStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req statusRequest
	if !h.decode(w, r, &req) {
		return
	}

	e, err := h.service.UpdateEmergencyStatus(r.Context(), id, req.Status, req.Note)
	if err != nil {
		h.fail(w, "update emergency status", err,
			zap.String("emergency_id", id.String()),
			zap.String("status", string(req.Status)),
		)
		return
	}

	writeJSON(w, http.StatusOK, e)
}

// CompleteEmergency завершает вызов с медицинским заключением.
func (h *Handler) CompleteEmergency(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req completeRequest
	if !h.decode(w, r, &req) {
		return
	}

	e, err := h.service.CompleteEmergency(r.Context(), id, model.MedicalRecord{
		Diagnosis:         req.Diagnosis,
		Treatment:         req.Treatment,
		AttendedBy:        req.AttendedBy,
		Notes:             req.Notes,
		ActualServiceType: req.ActualServiceType,
	})
	if err != nil {
		h.fail(w, "complete emergency", err, zap.String("emergency_id", id.String()))
		return
	}

	writeJSON(w, http.StatusOK, e)
}
