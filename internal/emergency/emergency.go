// Package emergency описывает жизненный цикл вызова с явной таблицей переходов.
package emergency

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mmeshcher/helpmed-dispatch/internal/model"
)

var (
	// ErrInvalidTransition возвращается при недопустимой смене статуса.
	ErrInvalidTransition = errors.New("invalid emergency status transition")
	// ErrUnknownStatus возвращается для статуса вне перечня.
	ErrUnknownStatus = errors.New("unknown emergency status")
	// ErrUnitRequired возвращается при назначении без указания бригады.
	ErrUnitRequired = errors.New("assigned unit is required")
	// ErrInvalidETA возвращается при неположительном времени прибытия.
	ErrInvalidETA = errors.New("estimated arrival must be positive minutes")
	// ErrTerminal возвращается при изменении завершённого или отменённого вызова.
	ErrTerminal = errors.New("emergency is closed")
	// ErrRecordIncomplete возвращается, если в медзаключении нет диагноза или врача.
	ErrRecordIncomplete = errors.New("medical record requires diagnosis and attending party")
	// ErrUnknownServiceType возвращается для фактического типа услуги вне перечня.
	ErrUnknownServiceType = errors.New("unknown actual service type")
)

var transitions = map[model.EmergencyStatus][]model.EmergencyStatus{
	model.EmergencyRequested:    {model.EmergencyAssigned, model.EmergencyCancelled},
	model.EmergencyAssigned:     {model.EmergencyEnRoute, model.EmergencyCancelled},
	model.EmergencyEnRoute:      {model.EmergencyOnScene, model.EmergencyCancelled},
	model.EmergencyOnScene:      {model.EmergencyTransferring, model.EmergencyCompleted},
	model.EmergencyTransferring: {model.EmergencyCompleted},
	model.EmergencyCompleted:    nil,
	model.EmergencyCancelled:    nil,
}

// CanTransition сообщает, допустим ли переход from → to.
func CanTransition(from, to model.EmergencyStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal сообщает, является ли статус конечным.
func IsTerminal(s model.EmergencyStatus) bool {
	next, ok := transitions[s]
	return ok && len(next) == 0
}

// Request описывает новый вызов.
type Request struct {
	UserID      uuid.UUID
	Kind        model.EmergencyKind
	ServiceType model.ServiceType
	Location    model.Location
	Description string
}

// New создаёт вызов в статусе requested.
func New(r Request, now time.Time) *model.Emergency {
	kind := r.Kind
	if kind == "" {
		kind = model.KindMedical
	}
	return &model.Emergency{
		ID:          uuid.New(),
		UserID:      r.UserID,
		Kind:        kind,
		ServiceType: r.ServiceType,
		Description: r.Description,
		Location:    r.Location,
		Status:      model.EmergencyRequested,
		History: []model.StatusChange{
			{To: model.EmergencyRequested, ChangedAt: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Advance переводит вызов в статус to. Переход в completed выполняется только через Complete.
func Advance(e *model.Emergency, to model.EmergencyStatus, note string, now time.Time) (*model.Emergency, error) {
	if _, ok := transitions[to]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStatus, to)
	}
	if to == model.EmergencyCompleted {
		return nil, fmt.Errorf("%w: use completion with a medical record", ErrInvalidTransition)
	}
	return transition(e, to, note, now)
}

// Assign назначает бригаду и переводит вызов в assigned.
func Assign(e *model.Emergency, unit string, now time.Time) (*model.Emergency, error) {
	unit = strings.TrimSpace(unit)
	if unit == "" {
		return nil, ErrUnitRequired
	}
	next, err := transition(e, model.EmergencyAssigned, "unit "+unit, now)
	if err != nil {
		return nil, err
	}
	next.AssignedUnit = unit
	return next, nil
}

// SetEstimatedArrival устанавливает ожидаемое время прибытия в минутах.
func SetEstimatedArrival(e *model.Emergency, minutes int, now time.Time) (*model.Emergency, error) {
	if minutes <= 0 {
		return nil, ErrInvalidETA
	}
	if IsTerminal(e.Status) {
		return nil, ErrTerminal
	}
	next := e.Clone()
	next.EstimatedArrivalMins = &minutes
	next.UpdatedAt = now
	return next, nil
}

// Complete завершает вызов и прикрепляет медицинское заключение.
// Второе значение сообщает, переклассифицирован ли тип услуги.
func Complete(e *model.Emergency, record model.MedicalRecord, now time.Time) (*model.Emergency, bool, error) {
	if strings.TrimSpace(record.Diagnosis) == "" || strings.TrimSpace(record.AttendedBy) == "" {
		return nil, false, ErrRecordIncomplete
	}
	if record.ActualServiceType != "" && !record.ActualServiceType.Valid() {
		return nil, false, fmt.Errorf("%w: %q", ErrUnknownServiceType, record.ActualServiceType)
	}

	next, err := transition(e, model.EmergencyCompleted, "", now)
	if err != nil {
		return nil, false, err
	}

	reclassified := record.ActualServiceType != "" && record.ActualServiceType != e.ServiceType
	if record.ActualServiceType == "" {
		record.ActualServiceType = e.ServiceType
	}
	record.Reclassified = reclassified
	record.CompletedAt = now
	next.MedicalRecord = &record

	return next, reclassified, nil
}

func transition(e *model.Emergency, to model.EmergencyStatus, note string, now time.Time) (*model.Emergency, error) {
	if IsTerminal(e.Status) {
		return nil, fmt.Errorf("%w: %s", ErrTerminal, e.Status)
	}
	if !CanTransition(e.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, e.Status, to)
	}

	next := e.Clone()
	next.History = append(next.History, model.StatusChange{
		From:      e.Status,
		To:        to,
		Note:      note,
		ChangedAt: now,
	})
	next.Status = to
	next.UpdatedAt = now

	return next, nil
}
