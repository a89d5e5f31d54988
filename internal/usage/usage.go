// Package usage применяет списание и начисление услуг к снимку пользователя.
// Все функции возвращают новую копию пользователя и не изменяют исходную.
package usage

import (
	"errors"
	"fmt"

	"github.com/mmeshcher/helpmed-dispatch/internal/model"
)

var (
	// ErrInvalidAmount возвращается при попытке начислить неположительное количество услуг.
	ErrInvalidAmount = errors.New("grant amount must be positive")
	// ErrNoPlan возвращается, если у пользователя нет плана или счётчиков.
	ErrNoPlan = errors.New("user has no plan")
	// ErrUnknownBucket возвращается, если в плане нет корзины для указанного типа услуги.
	ErrUnknownBucket = errors.New("service type is not part of the plan")
	// ErrUnlimitedBucket возвращается при начислении в безлимитную корзину.
	ErrUnlimitedBucket = errors.New("bucket is unlimited")
	// ErrNotGrantable возвращается для планов, которым нельзя начислить услуги.
	ErrNotGrantable = errors.New("plan does not accept extra services")
)

// ApplyUsage списывает одну услугу. Второе значение сообщает, было ли списание.
// Исчерпанный счётчик не уходит ниже нуля: операция становится пустой.
func ApplyUsage(u *model.User, serviceType model.ServiceType) (*model.User, bool) {
	next := u.Clone()
	if next == nil || next.Plan == nil || next.ServiceUsage == nil {
		return next, false
	}

	p := &next.ServiceUsage.CurrentPeriod

	switch next.Plan.Quota {
	case model.QuotaFlexible, model.QuotaContract, model.QuotaMetered:
		if next.Plan.Quota == model.QuotaContract && serviceType != model.ServiceEmergency {
			return next, false
		}
		if p.RemainingServices <= 0 {
			p.RemainingServices = 0
			return next, false
		}
		if next.Plan.Quota == model.QuotaMetered && p.CompanyRemaining <= 0 {
			p.CompanyRemaining = 0
			return next, false
		}
		p.RemainingServices--
		p.UsedServices++
		if next.Plan.Quota == model.QuotaMetered {
			p.CompanyRemaining--
		}
		return next, true
	case model.QuotaBreakdown:
		b, ok := p.Breakdown[serviceType]
		if !ok {
			return next, false
		}
		if !b.Unlimited && b.Used >= b.Limit {
			return next, false
		}
		b.Used++
		p.Breakdown[serviceType] = b
		return next, true
	case model.QuotaUnrestricted:
		p.UsedServices++
		return next, true
	}

	return next, false
}

// GrantExtra начисляет amount дополнительных услуг типа serviceType.
// Для гибкого, корпоративного и внешнего лимитированного планов тип услуги не важен.
func GrantExtra(u *model.User, serviceType model.ServiceType, amount int) (*model.User, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	next := u.Clone()
	if next == nil || next.Plan == nil || next.ServiceUsage == nil {
		return nil, ErrNoPlan
	}

	p := &next.ServiceUsage.CurrentPeriod

	switch next.Plan.Quota {
	case model.QuotaFlexible:
		p.TotalServices += amount
		p.RemainingServices += amount
		p.ExtraGranted += amount
		next.Plan.TotalServices += amount
	case model.QuotaBreakdown:
		b, ok := p.Breakdown[serviceType]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownBucket, serviceType)
		}
		if b.Unlimited {
			return nil, fmt.Errorf("%w: %s", ErrUnlimitedBucket, serviceType)
		}
		b.Limit += amount
		b.Extra += amount
		p.Breakdown[serviceType] = b
		p.ExtraGranted += amount
	case model.QuotaContract:
		next.Plan.ContractServices += amount
		next.Plan.TotalServices += amount
		p.TotalServices += amount
		p.RemainingServices += amount
		p.ExtraGranted += amount
	case model.QuotaMetered:
		next.Plan.TotalServices += amount
		p.TotalServices += amount
		p.RemainingServices += amount
		p.ExtraGranted += amount
	default:
		return nil, fmt.Errorf("%w: %s", ErrNotGrantable, next.Plan.Quota)
	}

	return next, nil
}

// Reclassify переносит одну списанную услугу из корзины from в корзину to.
// В from возвращается одна единица, если она была списана; в to списание
// выполняется только при наличии остатка. restored и charged сообщают,
// изменились ли корзины from и to соответственно.
func Reclassify(u *model.User, from, to model.ServiceType) (next *model.User, restored, charged bool) {
	next = u.Clone()
	if next == nil || next.Plan == nil || next.ServiceUsage == nil || from == to {
		return next, false, false
	}
	if next.Plan.Quota != model.QuotaBreakdown {
		return next, false, false
	}

	p := &next.ServiceUsage.CurrentPeriod

	if b, ok := p.Breakdown[from]; ok && b.Used > 0 {
		b.Used--
		p.Breakdown[from] = b
		restored = true
	}

	if b, ok := p.Breakdown[to]; ok && (b.Unlimited || b.Used < b.Limit) {
		b.Used++
		p.Breakdown[to] = b
		charged = true
	}

	return next, restored, charged
}

// SetCompanyRemaining обновляет в снимке пользователя остаток пула компании.
func SetCompanyRemaining(u *model.User, remaining int) *model.User {
	next := u.Clone()
	if next == nil || next.ServiceUsage == nil {
		return next
	}
	if remaining < 0 {
		remaining = 0
	}
	next.ServiceUsage.CurrentPeriod.CompanyRemaining = remaining
	return next
}
