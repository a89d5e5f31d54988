// Package entitlement решает, может ли пользователь запросить услугу по своему плану.
package entitlement

import (
	"fmt"

	"github.com/mmeshcher/helpmed-dispatch/internal/model"
)

// ReasonCorporateEmergencyOnly задаёт фиксированную причину отказа корпоративному клиенту.
const ReasonCorporateEmergencyOnly = "corporate contracts only cover emergency services"

// Decision содержит результат проверки права на услугу.
type Decision struct {
	Allowed               bool   `json:"allowed"`
	Reason                string `json:"reason,omitempty"`
	Remaining             *int   `json:"remaining,omitempty"`
	Unlimited             bool   `json:"unlimited"`
	CanPurchaseAdditional bool   `json:"can_purchase_additional"`
}

func allow(remaining int) Decision {
	return Decision{Allowed: true, Remaining: &remaining}
}

func deny(reason string) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// CanRequestService проверяет право пользователя на услугу serviceType.
// Функция чистая: решение зависит только от переданного снимка пользователя.
func CanRequestService(u *model.User, serviceType model.ServiceType) Decision {
	if u == nil {
		return deny("user not found")
	}
	if !u.Active {
		return deny("account is inactive")
	}

	switch u.Role {
	case model.RoleAdmin, model.RoleAmbulance:
		return deny(fmt.Sprintf("role %s cannot request services", u.Role))
	}

	if !serviceType.Valid() {
		return deny(fmt.Sprintf("unknown service type %q", serviceType))
	}
	if u.Plan == nil || u.ServiceUsage == nil {
		return deny("user has no plan")
	}
	if u.Plan.Status != model.PlanStatusActive {
		return deny(fmt.Sprintf("plan is %s", u.Plan.Status))
	}

	period := u.ServiceUsage.CurrentPeriod

	switch u.Plan.Quota {
	case model.QuotaFlexible:
		return flexible(u.Plan, period)
	case model.QuotaBreakdown:
		return breakdown(period, serviceType)
	case model.QuotaContract:
		return contract(period, serviceType)
	case model.QuotaUnrestricted:
		return Decision{Allowed: true, Unlimited: true}
	case model.QuotaMetered:
		return metered(period)
	default:
		return deny(fmt.Sprintf("unsupported quota kind %q", u.Plan.Quota))
	}
}

func flexible(p *model.Plan, period model.Period) Decision {
	if period.RemainingServices > 0 {
		return allow(period.RemainingServices)
	}
	d := deny(fmt.Sprintf(
		"shared pool of %d services exhausted for the titleholder and %d affiliates",
		period.TotalServices, p.Affiliates,
	))
	zero := 0
	d.Remaining = &zero
	d.CanPurchaseAdditional = true
	return d
}

func breakdown(period model.Period, serviceType model.ServiceType) Decision {
	b, ok := period.Breakdown[serviceType]
	if !ok {
		return deny(fmt.Sprintf("service %s is not included in the plan", serviceType))
	}
	if b.Unlimited {
		return Decision{Allowed: true, Unlimited: true}
	}
	if b.Used < b.Limit {
		return allow(b.Remaining())
	}
	d := deny(fmt.Sprintf("limit of %d %s services reached", b.Limit, serviceType))
	zero := 0
	d.Remaining = &zero
	d.CanPurchaseAdditional = true
	return d
}

func contract(period model.Period, serviceType model.ServiceType) Decision {
	if serviceType != model.ServiceEmergency {
		return deny(ReasonCorporateEmergencyOnly)
	}
	if period.RemainingServices > 0 {
		return allow(period.RemainingServices)
	}
	d := deny(fmt.Sprintf("contract services exhausted (%d of %d used)", period.UsedServices, period.TotalServices))
	zero := 0
	d.Remaining = &zero
	d.CanPurchaseAdditional = true
	return d
}

func metered(period model.Period) Decision {
	remaining := min(period.RemainingServices, period.CompanyRemaining)
	if period.RemainingServices <= 0 {
		d := deny("individual annual services exhausted")
		d.Remaining = &remaining
		return d
	}
	if period.CompanyRemaining <= 0 {
		d := deny("company services exhausted")
		d.Remaining = &remaining
		return d
	}
	return allow(remaining)
}
