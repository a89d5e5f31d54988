// Package plan содержит каталог тарифных планов HelpMED и прайс-лист услуг.
package plan

import (
	"time"

	"github.com/mmeshcher/helpmed-dispatch/internal/model"
)

// BucketSpec задаёт начальный лимит корзины. Unlimited перекрывает Limit.
type BucketSpec struct {
	Limit     int
	Unlimited bool
}

// Definition описывает тарифный план из каталога.
type Definition struct {
	Type    model.PlanType
	Subtype string
	Name    string
	Quota   model.QuotaKind

	// AnnualPrice задаёт годовую стоимость семейного плана.
	AnnualPrice int64
	// SharedPool задаёт размер общего пула гибкого плана.
	SharedPool int
	Breakdown  map[model.ServiceType]BucketSpec

	// PerEmployeeMonthly задаёт ставку корпоративного контракта за сотрудника в месяц.
	PerEmployeeMonthly int64
	ContractServices   int

	IndividualAnnual int
	CompanyPool      int
}

type key struct {
	planType model.PlanType
	subtype  string
}

var catalog = map[key]Definition{
	{model.PlanFamiliar, "help"}: {
		Type:        model.PlanFamiliar,
		Subtype:     "help",
		Name:        "Plan Help",
		Quota:       model.QuotaFlexible,
		AnnualPrice: 118800,
		SharedPool:  16,
	},
	{model.PlanFamiliar, "basic"}: {
		Type:        model.PlanFamiliar,
		Subtype:     "basic",
		Name:        "Plan Básico",
		Quota:       model.QuotaBreakdown,
		AnnualPrice: 71880,
		Breakdown: map[model.ServiceType]BucketSpec{
			model.ServiceEmergency:    {Unlimited: true},
			model.ServiceUrgency:      {Limit: 2},
			model.ServiceHomeDoctor:   {Limit: 2},
			model.ServiceTransfer:     {Limit: 1},
			model.ServiceVideoConsult: {Limit: 6},
		},
	},
	{model.PlanFamiliar, "vip"}: {
		Type:        model.PlanFamiliar,
		Subtype:     "vip",
		Name:        "Plan VIP",
		Quota:       model.QuotaBreakdown,
		AnnualPrice: 155880,
		Breakdown: map[model.ServiceType]BucketSpec{
			model.ServiceEmergency:    {Unlimited: true},
			model.ServiceUrgency:      {Limit: 6},
			model.ServiceHomeDoctor:   {Limit: 4},
			model.ServiceTransfer:     {Limit: 2},
			model.ServiceVideoConsult: {Unlimited: true},
		},
	},
	{model.PlanFamiliar, "gold"}: {
		Type:        model.PlanFamiliar,
		Subtype:     "gold",
		Name:        "Plan Dorado",
		Quota:       model.QuotaBreakdown,
		AnnualPrice: 239880,
		Breakdown: map[model.ServiceType]BucketSpec{
			model.ServiceEmergency:    {Unlimited: true},
			model.ServiceUrgency:      {Unlimited: true},
			model.ServiceHomeDoctor:   {Limit: 8},
			model.ServiceTransfer:     {Limit: 4},
			model.ServiceVideoConsult: {Unlimited: true},
		},
	},
	{model.PlanCorporate, "protected_area"}: {
		Type:               model.PlanCorporate,
		Subtype:            "protected_area",
		Name:               "Área Protegida",
		Quota:              model.QuotaContract,
		PerEmployeeMonthly: 1000,
		ContractServices:   24,
	},
	{model.PlanCorporate, "enterprise"}: {
		Type:               model.PlanCorporate,
		Subtype:            "enterprise",
		Name:               "Empresarial",
		Quota:              model.QuotaContract,
		PerEmployeeMonthly: 1800,
		ContractServices:   60,
	},
	{model.PlanExternal, "unlimited"}: {
		Type:    model.PlanExternal,
		Subtype: "unlimited",
		Name:    "Externo Ilimitado",
		Quota:   model.QuotaUnrestricted,
	},
	{model.PlanExternal, "metered"}: {
		Type:             model.PlanExternal,
		Subtype:          "metered",
		Name:             "Externo Medido",
		Quota:            model.QuotaMetered,
		IndividualAnnual: 6,
		CompanyPool:      120,
	},
}

var servicePrices = map[model.ServiceType]int64{
	model.ServiceEmergency:    25000,
	model.ServiceUrgency:      15000,
	model.ServiceHomeDoctor:   12000,
	model.ServiceTransfer:     18000,
	model.ServiceVideoConsult: 5000,
}

// Lookup возвращает определение плана по типу и подтипу.
func Lookup(planType model.PlanType, subtype string) (Definition, bool) {
	d, ok := catalog[key{planType, subtype}]
	return d, ok
}

// ServicePrice возвращает прейскурантную цену услуги в сентимо.
func ServicePrice(st model.ServiceType) (int64, bool) {
	p, ok := servicePrices[st]
	return p, ok
}

// ContractAmount возвращает годовую стоимость корпоративного контракта.
func (d Definition) ContractAmount(employees int) int64 {
	return int64(employees) * d.PerEmployeeMonthly * 12
}

// InitialPlan формирует план нового пользователя.
func (d Definition) InitialPlan(employees, affiliates int) *model.Plan {
	p := &model.Plan{
		Type:           d.Type,
		Subtype:        d.Subtype,
		Name:           d.Name,
		Status:         model.PlanStatusActive,
		Quota:          d.Quota,
		EmployeesCount: employees,
		Affiliates:     affiliates,
		AnnualPrice:    d.AnnualPrice,
	}

	switch d.Quota {
	case model.QuotaFlexible:
		p.TotalServices = d.SharedPool
	case model.QuotaContract:
		p.TotalServices = d.ContractServices
		p.ContractServices = d.ContractServices
		p.AnnualPrice = d.ContractAmount(employees)
	case model.QuotaMetered:
		p.TotalServices = d.IndividualAnnual
	}

	return p
}

// InitialUsage формирует счётчики использования на период в один год от now.
func (d Definition) InitialUsage(now time.Time) *model.ServiceUsage {
	period := model.Period{
		StartedAt: now,
		EndsAt:    now.AddDate(1, 0, 0),
	}

	switch d.Quota {
	case model.QuotaFlexible:
		period.TotalServices = d.SharedPool
		period.RemainingServices = d.SharedPool
	case model.QuotaBreakdown:
		period.Breakdown = make(map[model.ServiceType]model.Bucket, len(d.Breakdown))
		for st, spec := range d.Breakdown {
			period.Breakdown[st] = model.Bucket{Limit: spec.Limit, Unlimited: spec.Unlimited}
		}
	case model.QuotaContract:
		period.TotalServices = d.ContractServices
		period.RemainingServices = d.ContractServices
	case model.QuotaMetered:
		period.TotalServices = d.IndividualAnnual
		period.RemainingServices = d.IndividualAnnual
	}

	return &model.ServiceUsage{CurrentPeriod: period}
}
