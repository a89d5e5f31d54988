// Package registration превращает одобренную заявку в пользователя с планом и биллингом.
package registration

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mmeshcher/helpmed-dispatch/internal/model"
	"github.com/mmeshcher/helpmed-dispatch/internal/plan"
)

var (
	// ErrUnknownPlan возвращается, если пары (тип, подтип) нет в каталоге.
	ErrUnknownPlan = errors.New("unknown plan")
	// ErrAlreadyReviewed возвращается при повторном рассмотрении заявки.
	ErrAlreadyReviewed = errors.New("registration request already reviewed")
	// ErrReasonRequired возвращается при отклонении заявки без причины.
	ErrReasonRequired = errors.New("rejection reason is required")
	// ErrCompanyRequired возвращается, если у корпоративной или внешней заявки нет данных компании.
	ErrCompanyRequired = errors.New("company data is required")
	// ErrInvalidEmployees возвращается при неположительном числе сотрудников.
	ErrInvalidEmployees = errors.New("employees count must be positive")
)

// Result содержит итог одобрения заявки.
type Result struct {
	Request      *model.RegistrationRequest
	User         *model.User
	Transactions []model.Transaction
}

// Validate проверяет заявку на соответствие каталогу и обязательным полям компании.
func Validate(req *model.RegistrationRequest) error {
	if _, ok := plan.Lookup(req.PlanType, req.PlanSubtype); !ok {
		return fmt.Errorf("%w: %s/%s", ErrUnknownPlan, req.PlanType, req.PlanSubtype)
	}

	switch req.PlanType {
	case model.PlanCorporate:
		if req.Company == nil || strings.TrimSpace(req.Company.Name) == "" || req.Company.RUC == "" {
			return ErrCompanyRequired
		}
		if req.Company.EmployeesCount <= 0 {
			return ErrInvalidEmployees
		}
	case model.PlanExternal:
		if req.Company == nil || strings.TrimSpace(req.Company.Name) == "" || req.Company.RUC == "" {
			return ErrCompanyRequired
		}
	}

	return nil
}

// Approve одобряет заявку: создаёт пользователя и операции для журнала доходов.
// Заявку можно рассмотреть только один раз.
func Approve(req *model.RegistrationRequest, now time.Time) (*Result, error) {
	if req.Status != model.RegistrationPending {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyReviewed, req.Status)
	}

	def, ok := plan.Lookup(req.PlanType, req.PlanSubtype)
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrUnknownPlan, req.PlanType, req.PlanSubtype)
	}

	employees := 0
	if req.Company != nil {
		employees = req.Company.EmployeesCount
	}

	u := &model.User{
		ID:           uuid.New(),
		Username:     req.Applicant.Username,
		PasswordHash: append([]byte(nil), req.Applicant.PasswordHash...),
		Role:         roleFor(req.PlanType),
		FullName:     req.Applicant.FullName,
		Email:        req.Applicant.Email,
		Phone:        req.Applicant.Phone,
		Active:       true,
		Plan:         def.InitialPlan(employees, req.Affiliates),
		ServiceUsage: def.InitialUsage(now),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	var txs []model.Transaction
	userID := u.ID

	switch def.Type {
	case model.PlanFamiliar:
		u.Billing = &model.Billing{
			MonthlyCost:     def.AnnualPrice / 12,
			NextBillingDate: now.AddDate(0, 1, 0),
		}
		txs = append(txs, model.Transaction{
			Type:        model.TxSubscription,
			Amount:      def.AnnualPrice,
			Date:        now,
			PlanType:    def.Type,
			PlanSubtype: def.Subtype,
			UserID:      &userID,
			Description: fmt.Sprintf("%s subscription for %s", def.Name, u.FullName),
		})
	case model.PlanCorporate:
		amount := def.ContractAmount(employees)
		u.Billing = &model.Billing{
			MonthlyCost:     amount / 12,
			NextBillingDate: now.AddDate(0, 1, 0),
		}
		txs = append(txs, model.Transaction{
			Type:        model.TxCorporateContract,
			Amount:      amount,
			Date:        now,
			PlanType:    def.Type,
			PlanSubtype: def.Subtype,
			UserID:      &userID,
			CompanyName: req.Company.Name,
			Description: fmt.Sprintf("%s contract for %d employees", def.Name, employees),
		})
	}

	reviewed := req.Clone()
	reviewed.Status = model.RegistrationApproved
	reviewed.UserID = &userID
	reviewed.ReviewedAt = &now
	reviewed.Applicant.PasswordHash = nil

	return &Result{Request: reviewed, User: u, Transactions: txs}, nil
}

// Reject отклоняет заявку с обязательной причиной.
func Reject(req *model.RegistrationRequest, reason string, now time.Time) (*model.RegistrationRequest, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrReasonRequired
	}
	if req.Status != model.RegistrationPending {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyReviewed, req.Status)
	}

	reviewed := req.Clone()
	reviewed.Status = model.RegistrationRejected
	reviewed.RejectionReason = reason
	reviewed.ReviewedAt = &now
	reviewed.Applicant.PasswordHash = nil

	return reviewed, nil
}

func roleFor(t model.PlanType) model.Role {
	switch t {
	case model.PlanCorporate:
		return model.RoleCorporate
	case model.PlanExternal:
		return model.RoleExternal
	default:
		return model.RoleFamiliar
	}
}
