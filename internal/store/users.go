package store

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/helpmed-dispatch/internal/entitlement"
	"github.com/mmeshcher/helpmed-dispatch/internal/model"
	"github.com/mmeshcher/helpmed-dispatch/internal/plan"
	"github.com/mmeshcher/helpmed-dispatch/internal/usage"
)

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Authenticate проверяет логин и пароль и возвращает пользователя.
func (s *Store) Authenticate(_ context.Context, username, password string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.usernames[normalize(username)]
	if !ok {
		return nil, ErrInvalidCredentials
	}
	u := s.users[id]
	if !u.Active {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return u.Clone(), nil
}

// CreateStaffUser создаёт администратора или бригаду скорой помощи.
func (s *Store) CreateStaffUser(_ context.Context, role model.Role, username, password, fullName string) (*model.User, error) {
	if role != model.RoleAdmin && role != model.RoleAmbulance {
		return nil, fmt.Errorf("role %s cannot be created directly", role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.passwordCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.usernames[normalize(username)]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateUsername, username)
	}

	now := s.now()
	u := &model.User{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: hash,
		Role:         role,
		FullName:     fullName,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.putUser(u)
	s.persistUser(u)

	return u.Clone(), nil
}

// BootstrapAdmin создаёт администратора, если пользователя с таким логином ещё нет.
func (s *Store) BootstrapAdmin(ctx context.Context, username, password string) (bool, error) {
	s.mu.RLock()
	_, exists := s.usernames[normalize(username)]
	s.mu.RUnlock()
	if exists {
		return false, nil
	}

	if _, err := s.CreateStaffUser(ctx, model.RoleAdmin, username, password, "Administrador"); err != nil {
		return false, err
	}
	return true, nil
}

// User возвращает пользователя по идентификатору.
func (s *Store) User(_ context.Context, id uuid.UUID) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return u.Clone(), nil
}

// ListUsers возвращает пользователей указанной роли (или всех) в порядке создания.
func (s *Store) ListUsers(_ context.Context, role model.Role) []*model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res := make([]*model.User, 0, len(s.users))
	for _, u := range s.users {
		if role != "" && u.Role != role {
			continue
		}
		res = append(res, u.Clone())
	}
	slices.SortFunc(res, func(a, b *model.User) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return res
}

// DeactivateUser помечает пользователя неактивным. Пользователи не удаляются.
func (s *Store) DeactivateUser(_ context.Context, id uuid.UUID) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}

	next := u.Clone()
	next.Active = false
	if next.Plan != nil {
		next.Plan.Status = model.PlanStatusInactive
	}
	next.UpdatedAt = s.now()

	s.putUser(next)
	s.persistUser(next)

	return next.Clone(), nil
}

// Entitlement проверяет право пользователя на услугу без изменения состояния.
func (s *Store) Entitlement(_ context.Context, id uuid.UUID, serviceType model.ServiceType) (entitlement.Decision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return entitlement.Decision{}, ErrUserNotFound
	}
	return entitlement.CanRequestService(u, serviceType), nil
}

// GrantExtra начисляет дополнительные услуги. При charge в журнал доходов
// добавляется операция ADDITIONAL_SERVICE по прейскуранту. Если хотя бы одно
// начисление невозможно, состояние не меняется.
func (s *Store) GrantExtra(_ context.Context, id uuid.UUID, grants map[model.ServiceType]int, charge bool) (*model.User, *model.Transaction, error) {
	if len(grants) == 0 {
		return nil, nil, ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, nil, ErrUserNotFound
	}

	types := make([]model.ServiceType, 0, len(grants))
	for st := range grants {
		types = append(types, st)
	}
	slices.Sort(types)

	next := u
	var amount int64
	var parts []string
	for _, st := range types {
		n := grants[st]
		price, ok := plan.ServicePrice(st)
		if !ok {
			return nil, nil, fmt.Errorf("%w: %s", ErrUnknownServiceType, st)
		}
		granted, err := usage.GrantExtra(next, st, n)
		if err != nil {
			return nil, nil, err
		}
		next = granted
		amount += price * int64(n)
		parts = append(parts, strconv.Itoa(n)+" "+string(st))
	}
	next.UpdatedAt = s.now()

	s.putUser(next)
	s.persistUser(next)

	var tx *model.Transaction
	if charge && amount > 0 {
		userID := next.ID
		entry := model.Transaction{
			Type:        model.TxAdditionalService,
			Amount:      amount,
			UserID:      &userID,
			Description: "extra services: " + strings.Join(parts, ", "),
		}
		if next.Plan != nil {
			entry.PlanType = next.Plan.Type
			entry.PlanSubtype = next.Plan.Subtype
			entry.CompanyID = next.Plan.CompanyID
		}
		appended := s.ledger.Append(entry)
		tx = &appended
		s.persistTransaction(appended)
		s.revenueChanged()
	}

	return next.Clone(), tx, nil
}

// ListCompanies возвращает внешние компании в порядке создания.
func (s *Store) ListCompanies(_ context.Context) []*model.Company {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res := make([]*model.Company, 0, len(s.companies))
	for _, c := range s.companies {
		cp := *c
		res = append(res, &cp)
	}
	slices.SortFunc(res, func(a, b *model.Company) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return res
}

// GrantCompanyServices увеличивает общий пул услуг внешней компании.
func (s *Store) GrantCompanyServices(_ context.Context, id uuid.UUID, amount int) (*model.Company, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.companies[id]
	if !ok {
		return nil, ErrCompanyNotFound
	}

	next := *c
	next.TotalServices += amount
	next.RemainingServices += amount
	next.UpdatedAt = s.now()
	s.companies[id] = &next
	s.persistCompany(&next)
	s.syncCompanyMembers(&next)

	cp := next
	return &cp, nil
}

func (s *Store) companyByRUC(ruc string) (*model.Company, bool) {
	for _, c := range s.companies {
		if c.RUC == ruc {
			return c, true
		}
	}
	return nil, false
}

// syncCompanyMembers переносит остаток пула компании в снимки её пользователей.
func (s *Store) syncCompanyMembers(c *model.Company) {
	for _, u := range s.users {
		if u.Plan == nil || u.Plan.CompanyID == nil || *u.Plan.CompanyID != c.ID {
			continue
		}
		if u.Plan.Quota != model.QuotaMetered || u.ServiceUsage == nil {
			continue
		}
		if u.ServiceUsage.CurrentPeriod.CompanyRemaining == c.RemainingServices {
			continue
		}
		next := usage.SetCompanyRemaining(u, c.RemainingServices)
		next.UpdatedAt = s.now()
		s.putUser(next)
		s.persistUser(next)
	}
}
