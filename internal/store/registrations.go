package store

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/helpmed-dispatch/internal/model"
	"github.com/mmeshcher/helpmed-dispatch/internal/plan"
	"github.com/mmeshcher/helpmed-dispatch/internal/registration"
	"github.com/mmeshcher/helpmed-dispatch/internal/usage"
	"github.com/mmeshcher/helpmed-dispatch/internal/validation"
)

// Submission содержит данные новой заявки с паролем в открытом виде.
type Submission struct {
	Applicant   model.Applicant
	Password    string
	PlanType    model.PlanType
	PlanSubtype string
	Company     *model.CompanyInfo
	Affiliates  int
}

// SubmitRegistration создаёт заявку в статусе pending.
func (s *Store) SubmitRegistration(_ context.Context, sub Submission) (*model.RegistrationRequest, error) {
	req := &model.RegistrationRequest{
		ID:          uuid.New(),
		Applicant:   sub.Applicant,
		PlanType:    sub.PlanType,
		PlanSubtype: sub.PlanSubtype,
		Affiliates:  sub.Affiliates,
		Status:      model.RegistrationPending,
	}
	if sub.Company != nil {
		c := *sub.Company
		c.Name = strings.TrimSpace(c.Name)
		c.RUC = strings.TrimSpace(c.RUC)
		req.Company = &c
	}
	req.Applicant.Email = strings.TrimSpace(req.Applicant.Email)
	req.Applicant.Username = strings.TrimSpace(req.Applicant.Username)

	if err := registration.Validate(req); err != nil {
		return nil, err
	}
	if req.PlanType == model.PlanCorporate && !validation.IsValidRUC(req.Company.RUC) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRUC, req.Company.RUC)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(sub.Password), s.passwordCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	req.Applicant.PasswordHash = hash

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkDuplicates(req); err != nil {
		return nil, err
	}

	req.CreatedAt = s.now()
	s.registrations[req.ID] = req
	s.persistRegistration(req)

	return req.Clone(), nil
}

func (s *Store) checkDuplicates(req *model.RegistrationRequest) error {
	username := normalize(req.Applicant.Username)
	email := normalize(req.Applicant.Email)

	if _, ok := s.usernames[username]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateUsername, req.Applicant.Username)
	}
	for _, u := range s.users {
		if email != "" && normalize(u.Email) == email {
			return fmt.Errorf("%w: %s", ErrDuplicateEmail, req.Applicant.Email)
		}
	}

	for _, r := range s.registrations {
		if r.Status == model.RegistrationPending {
			if normalize(r.Applicant.Username) == username {
				return fmt.Errorf("%w: %s", ErrDuplicateUsername, req.Applicant.Username)
			}
			if email != "" && normalize(r.Applicant.Email) == email {
				return fmt.Errorf("%w: %s", ErrDuplicateEmail, req.Applicant.Email)
			}
		}

		// Одобренные корпоративные заявки соответствуют корпоративным пользователям.
		if req.PlanType != model.PlanCorporate || r.PlanType != model.PlanCorporate {
			continue
		}
		if r.Status == model.RegistrationRejected || r.Company == nil {
			continue
		}
		if strings.EqualFold(r.Company.Name, req.Company.Name) {
			return fmt.Errorf("%w: %s", ErrDuplicateCompany, req.Company.Name)
		}
		if r.Company.RUC == req.Company.RUC {
			return fmt.Errorf("%w: %s", ErrDuplicateRUC, req.Company.RUC)
		}
	}

	return nil
}

// ListRegistrations возвращает заявки с указанным статусом (или все), от новых к старым.
func (s *Store) ListRegistrations(_ context.Context, status model.RegistrationStatus) []*model.RegistrationRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res := make([]*model.RegistrationRequest, 0, len(s.registrations))
	for _, r := range s.registrations {
		if status != "" && r.Status != status {
			continue
		}
		res = append(res, r.Clone())
	}
	slices.SortFunc(res, func(a, b *model.RegistrationRequest) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return res
}

// ApproveRegistration одобряет заявку: создаёт пользователя и операции дохода.
func (s *Store) ApproveRegistration(_ context.Context, id uuid.UUID) (*registration.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.registrations[id]
	if !ok {
		return nil, ErrRegistrationNotFound
	}
	if req.Status == model.RegistrationPending {
		if _, taken := s.usernames[normalize(req.Applicant.Username)]; taken {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateUsername, req.Applicant.Username)
		}
	}

	now := s.now()
	res, err := registration.Approve(req, now)
	if err != nil {
		return nil, err
	}

	if res.User.Plan != nil && res.User.Plan.Type == model.PlanExternal {
		s.linkCompany(res.User, req.Company)
	}

	s.registrations[id] = res.Request
	s.persistRegistration(res.Request)
	s.putUser(res.User)
	s.persistUser(res.User)

	appended := make([]model.Transaction, 0, len(res.Transactions))
	for _, tx := range res.Transactions {
		tx := s.ledger.Append(tx)
		appended = append(appended, tx)
		s.persistTransaction(tx)
	}
	res.Transactions = appended
	if len(appended) > 0 {
		s.revenueChanged()
	}

	s.logger.Info("registration approved",
		zap.String("request_id", id.String()),
		zap.String("user_id", res.User.ID.String()),
		zap.String("plan", string(res.User.Plan.Type)+"/"+res.User.Plan.Subtype),
	)
	s.sendNotification(res.User.ID, nil, "registration_approved",
		"Registro aprobado", "Su plan "+res.User.Plan.Name+" está activo.")

	res.User = res.User.Clone()
	res.Request = res.Request.Clone()
	return res, nil
}

// linkCompany привязывает внешнего пользователя к компании по RUC, создавая её при необходимости.
// Пул лимитированной компании инициализируется при первом одобрении.
func (s *Store) linkCompany(u *model.User, info *model.CompanyInfo) {
	now := s.now()

	c, ok := s.companyByRUC(info.RUC)
	if !ok {
		c = &model.Company{
			ID:        uuid.New(),
			Name:      info.Name,
			RUC:       info.RUC,
			CreatedAt: now,
			UpdatedAt: now,
		}
	} else {
		cp := *c
		c = &cp
	}

	if u.Plan.Quota == model.QuotaMetered {
		if def, found := plan.Lookup(u.Plan.Type, u.Plan.Subtype); found && c.TotalServices == 0 {
			c.TotalServices = def.CompanyPool
			c.RemainingServices = def.CompanyPool
			c.UpdatedAt = now
		}
		*u = *usage.SetCompanyRemaining(u, c.RemainingServices)
	}

	id := c.ID
	u.Plan.CompanyID = &id
	s.companies[c.ID] = c
	s.persistCompany(c)
}

// RejectRegistration отклоняет заявку. Без причины заявка остаётся pending.
func (s *Store) RejectRegistration(_ context.Context, id uuid.UUID, reason string) (*model.RegistrationRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.registrations[id]
	if !ok {
		return nil, ErrRegistrationNotFound
	}

	reviewed, err := registration.Reject(req, reason, s.now())
	if err != nil {
		return nil, err
	}

	s.registrations[id] = reviewed
	s.persistRegistration(reviewed)

	return reviewed.Clone(), nil
}
