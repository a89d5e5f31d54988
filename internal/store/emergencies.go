package store

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/helpmed-dispatch/internal/emergency"
	"github.com/mmeshcher/helpmed-dispatch/internal/entitlement"
	"github.com/mmeshcher/helpmed-dispatch/internal/model"
	"github.com/mmeshcher/helpmed-dispatch/internal/plan"
	"github.com/mmeshcher/helpmed-dispatch/internal/usage"
)

// ServiceRequest описывает запрос пользователя на услугу.
type ServiceRequest struct {
	UserID      uuid.UUID
	ServiceType model.ServiceType
	Kind        model.EmergencyKind
	Location    model.Location
	Description string
}

// ServiceOutcome содержит результат запроса услуги. При отказе Emergency равен nil.
type ServiceOutcome struct {
	Decision    entitlement.Decision
	Emergency   *model.Emergency
	Transaction *model.Transaction
}

// EmergencyFilter ограничивает выборку вызовов. Пустые поля не ограничивают выборку.
type EmergencyFilter struct {
	UserID *uuid.UUID
	Status model.EmergencyStatus
}

// RequestService проверяет право на услугу и при положительном решении
// списывает её и создаёт вызов. Отказ не меняет состояние.
func (s *Store) RequestService(_ context.Context, r ServiceRequest) (*ServiceOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	price, priced := plan.ServicePrice(r.ServiceType)
	if !priced {
		return nil, fmt.Errorf("%w: %s", ErrUnknownServiceType, r.ServiceType)
	}

	u, ok := s.users[r.UserID]
	if !ok {
		return nil, ErrUserNotFound
	}

	decision := entitlement.CanRequestService(u, r.ServiceType)
	if s.metrics != nil {
		s.metrics.Entitlement.WithLabelValues(string(r.ServiceType), fmt.Sprint(decision.Allowed)).Inc()
	}
	if !decision.Allowed {
		s.logger.Info("service refused",
			zap.String("user_id", u.ID.String()),
			zap.String("service_type", string(r.ServiceType)),
			zap.String("reason", decision.Reason),
		)
		return &ServiceOutcome{Decision: decision}, nil
	}

	now := s.now()
	next, _ := usage.ApplyUsage(u, r.ServiceType)
	next.UpdatedAt = now
	s.putUser(next)
	s.persistUser(next)

	if next.Plan.Quota == model.QuotaMetered && next.Plan.CompanyID != nil {
		if c, found := s.companies[*next.Plan.CompanyID]; found {
			cp := *c
			if cp.RemainingServices > 0 {
				cp.RemainingServices--
			}
			cp.UsedServices++
			cp.UpdatedAt = now
			s.companies[cp.ID] = &cp
			s.persistCompany(&cp)
			s.syncCompanyMembers(&cp)
		}
	}

	e := emergency.New(emergency.Request{
		UserID:      r.UserID,
		Kind:        r.Kind,
		ServiceType: r.ServiceType,
		Location:    r.Location,
		Description: r.Description,
	}, now)
	s.emergencies[e.ID] = e
	s.persistEmergency(e)

	out := &ServiceOutcome{Decision: decision, Emergency: e.Clone()}

	if next.Plan.Quota == model.QuotaUnrestricted {
		userID := next.ID
		tx := s.ledger.Append(model.Transaction{
			Type:        model.TxParticular,
			Amount:      price,
			Status:      model.TxPending,
			PlanType:    next.Plan.Type,
			PlanSubtype: next.Plan.Subtype,
			UserID:      &userID,
			CompanyID:   next.Plan.CompanyID,
			Description: fmt.Sprintf("%s service %s", r.ServiceType, e.ID),
		})
		s.persistTransaction(tx)
		s.revenueChanged()
		out.Transaction = &tx
	}

	s.logger.Info("emergency requested",
		zap.String("emergency_id", e.ID.String()),
		zap.String("user_id", u.ID.String()),
		zap.String("service_type", string(r.ServiceType)),
	)
	s.sendNotification(u.ID, e, "emergency_requested",
		"Solicitud recibida", "Su solicitud de "+string(r.ServiceType)+" fue registrada.")

	return out, nil
}

// Emergency возвращает вызов по идентификатору.
func (s *Store) Emergency(_ context.Context, id uuid.UUID) (*model.Emergency, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.emergencies[id]
	if !ok {
		return nil, ErrEmergencyNotFound
	}
	return e.Clone(), nil
}

// ListEmergencies возвращает вызовы, подходящие под фильтр, от новых к старым.
func (s *Store) ListEmergencies(_ context.Context, f EmergencyFilter) []*model.Emergency {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res := make([]*model.Emergency, 0, len(s.emergencies))
	for _, e := range s.emergencies {
		if f.UserID != nil && e.UserID != *f.UserID {
			continue
		}
		if f.Status != "" && e.Status != f.Status {
			continue
		}
		res = append(res, e.Clone())
	}
	slices.SortFunc(res, func(a, b *model.Emergency) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return res
}

// AssignEmergency назначает бригаду на вызов.
func (s *Store) AssignEmergency(_ context.Context, id uuid.UUID, unit string) (*model.Emergency, error) {
	return s.updateEmergency(id, "assign", func(e *model.Emergency) (*model.Emergency, error) {
		return emergency.Assign(e, unit, s.now())
	})
}

// UpdateEmergencyStatus переводит вызов в новый статус.
func (s *Store) UpdateEmergencyStatus(_ context.Context, id uuid.UUID, status model.EmergencyStatus, note string) (*model.Emergency, error) {
	return s.updateEmergency(id, "status", func(e *model.Emergency) (*model.Emergency, error) {
		return emergency.Advance(e, status, note, s.now())
	})
}

// SetEstimatedArrival устанавливает ожидаемое время прибытия.
func (s *Store) SetEstimatedArrival(_ context.Context, id uuid.UUID, minutes int) (*model.Emergency, error) {
	return s.updateEmergency(id, "eta", func(e *model.Emergency) (*model.Emergency, error) {
		return emergency.SetEstimatedArrival(e, minutes, s.now())
	})
}

// CompleteEmergency завершает вызов. Если бригада переклассифицировала услугу,
// списание переносится на фактический тип.
func (s *Store) CompleteEmergency(_ context.Context, id uuid.UUID, record model.MedicalRecord) (*model.Emergency, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.emergencies[id]
	if !ok {
		return nil, ErrEmergencyNotFound
	}

	next, reclassified, err := emergency.Complete(e, record, s.now())
	if err != nil {
		s.logger.Warn("emergency completion refused",
			zap.String("emergency_id", id.String()),
			zap.Error(err),
		)
		return nil, err
	}

	if reclassified {
		moved := false
		if u, found := s.users[e.UserID]; found {
			updated, restored, charged := usage.Reclassify(u, e.ServiceType, next.MedicalRecord.ActualServiceType)
			if restored || charged {
				updated.UpdatedAt = s.now()
				s.putUser(updated)
				s.persistUser(updated)
				moved = true
			}
			if restored && !charged {
				s.logger.Info("reclassified service not charged, target bucket exhausted",
					zap.String("emergency_id", id.String()),
					zap.String("user_id", u.ID.String()),
					zap.String("service_type", string(next.MedicalRecord.ActualServiceType)),
				)
			}
		}
		next.MedicalRecord.Reclassified = moved
	}

	s.emergencies[id] = next
	s.persistEmergency(next)
	s.sendNotification(next.UserID, next, "emergency_completed",
		"Atención finalizada", "Su atención fue completada.")

	return next.Clone(), nil
}

func (s *Store) updateEmergency(id uuid.UUID, op string, apply func(*model.Emergency) (*model.Emergency, error)) (*model.Emergency, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.emergencies[id]
	if !ok {
		return nil, ErrEmergencyNotFound
	}

	next, err := apply(e)
	if err != nil {
		s.logger.Warn("emergency update refused",
			zap.String("emergency_id", id.String()),
			zap.String("op", op),
			zap.String("status", string(e.Status)),
			zap.Error(err),
		)
		return nil, err
	}

	s.emergencies[id] = next
	s.persistEmergency(next)
	if next.Status != e.Status {
		s.sendNotification(next.UserID, next, "emergency_"+string(next.Status),
			"Estado de su atención", "Estado actual: "+string(next.Status))
	}

	return next.Clone(), nil
}
