package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/mmeshcher/helpmed-dispatch/internal/model"
	"github.com/mmeshcher/helpmed-dispatch/internal/store"
)

type companyRequest struct {
	Name           string `json:"name" validate:"required"`
	RUC            string `json:"ruc" validate:"required,numeric,len=11"`
	EmployeesCount int    `json:"employees_count" validate:"gte=0"`
}

type registrationRequest struct {
	FullName       string          `json:"full_name" validate:"required"`
	DocumentNumber string          `json:"document_number"`
	Email          string          `json:"email" validate:"required,email"`
	Phone          string          `json:"phone"`
	Address        string          `json:"address"`
	Username       string          `json:"username" validate:"required,min=3"`
	Password       string          `json:"password" validate:"required,min=6"`
	PlanType       model.PlanType  `json:"plan_type" validate:"required,oneof=familiar corporate external"`
	PlanSubtype    string          `json:"plan_subtype" validate:"required"`
	Company        *companyRequest `json:"company,omitempty"`
	Affiliates     int             `json:"affiliates" validate:"gte=0"`
}

type approveResponse struct {
	Request      *model.RegistrationRequest `json:"request"`
	User         *model.User                `json:"user"`
	Transactions []model.Transaction        `json:"transactions"`
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

// SubmitRegistration принимает заявку на подключение плана.
func (h *Handler) SubmitRegistration(w http.ResponseWriter, r *http.Request) {
	var req registrationRequest
	if !h.decode(w, r, &req) {
		return
	}

	sub := store.Submission{
		Applicant: model.Applicant{
			FullName:       req.FullName,
			DocumentNumber: req.DocumentNumber,
			Email:          req.Email,
			Phone:          req.Phone,
			Address:        req.Address,
			Username:       req.Username,
		},
		Password:    req.Password,
		PlanType:    req.PlanType,
		PlanSubtype: req.PlanSubtype,
		Affiliates:  req.Affiliates,
	}
	if req.Company != nil {
		sub.Company = &model.CompanyInfo{
			Name:           req.Company.Name,
			RUC:            req.Company.RUC,
			EmployeesCount: req.Company.EmployeesCount,
		}
	}

	created, err := h.service.SubmitRegistration(r.Context(), sub)
	if err != nil {
		h.fail(w, "submit registration", err, zap.String("username", req.Username))
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

// ListRegistrations возвращает заявки, по умолчанию все.
func (h *Handler) ListRegistrations(w http.ResponseWriter, r *http.Request) {
	status := model.RegistrationStatus(r.URL.Query().Get("status"))
	switch status {
	case "", model.RegistrationPending, model.RegistrationApproved, model.RegistrationRejected:
	default:
		writeError(w, http.StatusBadRequest, "invalid status filter")
		return
	}

	writeJSON(w, http.StatusOK, h.service.ListRegistrations(r.Context(), status))
}

// ApproveRegistration одобряет заявку и создаёт пользователя.
func (h *Handler) ApproveRegistration(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	res, err := h.service.ApproveRegistration(r.Context(), id)
	if err != nil {
		h.fail(w, "approve registration", err, zap.String("request_id", id.String()))
		return
	}

	writeJSON(w, http.StatusOK, approveResponse{
		Request:      res.Request,
		User:         res.User,
		Transactions: res.Transactions,
	})
}

// RejectRegistration отклоняет заявку с обязательной причиной.
func (h *Handler) RejectRegistration(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req rejectRequest
	if !h.decode(w, r, &req) {
		return
	}

	rejected, err := h.service.RejectRegistration(r.Context(), id, req.Reason)
	if err != nil {
		h.fail(w, "reject registration", err, zap.String("request_id", id.String()))
		return
	}

	writeJSON(w, http.StatusOK, rejected)
}
