package usage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/helpmed-dispatch/internal/model"
)

func flexibleUser(total int) *model.User {
	return &model.User{
		Role:   model.RoleFamiliar,
		Active: true,
		Plan:   &model.Plan{Quota: model.QuotaFlexible, Status: model.PlanStatusActive, TotalServices: total},
		ServiceUsage: &model.ServiceUsage{CurrentPeriod: model.Period{
			TotalServices:     total,
			RemainingServices: total,
		}},
	}
}

func breakdownUser() *model.User {
	return &model.User{
		Role:   model.RoleFamiliar,
		Active: true,
		Plan:   &model.Plan{Quota: model.QuotaBreakdown, Status: model.PlanStatusActive},
		ServiceUsage: &model.ServiceUsage{CurrentPeriod: model.Period{
			Breakdown: map[model.ServiceType]model.Bucket{
				model.ServiceEmergency:  {Unlimited: true},
				model.ServiceUrgency:    {Limit: 2},
				model.ServiceHomeDoctor: {Limit: 1},
			},
		}},
	}
}

func TestApplyUsage_FlexibleClampsAtZero(t *testing.T) {
	u := flexibleUser(16)

	for n := 1; n <= 20; n++ {
		u, _ = ApplyUsage(u, model.ServiceUrgency)
		p := u.ServiceUsage.CurrentPeriod
		want := max(16-n, 0)
		require.Equal(t, want, p.RemainingServices, "after %d requests", n)
		require.Equal(t, p.TotalServices, p.UsedServices+p.RemainingServices)
	}
}

func TestApplyUsage_DoesNotMutateInput(t *testing.T) {
	u := breakdownUser()

	next, applied := ApplyUsage(u, model.ServiceUrgency)
	require.True(t, applied)

	assert.Equal(t, 0, u.ServiceUsage.CurrentPeriod.Breakdown[model.ServiceUrgency].Used)
	assert.Equal(t, 1, next.ServiceUsage.CurrentPeriod.Breakdown[model.ServiceUrgency].Used)
}

func TestApplyUsage_BreakdownNeverExceedsLimit(t *testing.T) {
	u := breakdownUser()

	var err error
	for i := range 10 {
		u, _ = ApplyUsage(u, model.ServiceHomeDoctor)
		if i == 3 {
			u, err = GrantExtra(u, model.ServiceHomeDoctor, 2)
			require.NoError(t, err)
		}
		b := u.ServiceUsage.CurrentPeriod.Breakdown[model.ServiceHomeDoctor]
		require.LessOrEqual(t, b.Used, b.Limit)
	}

	b := u.ServiceUsage.CurrentPeriod.Breakdown[model.ServiceHomeDoctor]
	assert.Equal(t, 3, b.Limit)
	assert.Equal(t, 3, b.Used)
	assert.Equal(t, 2, b.Extra)

	_, applied := ApplyUsage(u, model.ServiceHomeDoctor)
	assert.False(t, applied)
}

func TestApplyUsage_UnlimitedBucketCounts(t *testing.T) {
	u := breakdownUser()
	for range 5 {
		var applied bool
		u, applied = ApplyUsage(u, model.ServiceEmergency)
		require.True(t, applied)
	}
	assert.Equal(t, 5, u.ServiceUsage.CurrentPeriod.Breakdown[model.ServiceEmergency].Used)
}

func TestApplyUsage_ContractOnlyEmergency(t *testing.T) {
	u := &model.User{
		Plan:         &model.Plan{Quota: model.QuotaContract, ContractServices: 2, TotalServices: 2},
		ServiceUsage: &model.ServiceUsage{CurrentPeriod: model.Period{TotalServices: 2, RemainingServices: 2}},
	}

	next, applied := ApplyUsage(u, model.ServiceTransfer)
	assert.False(t, applied)
	assert.Equal(t, 2, next.ServiceUsage.CurrentPeriod.RemainingServices)

	next, applied = ApplyUsage(u, model.ServiceEmergency)
	assert.True(t, applied)
	assert.Equal(t, 1, next.ServiceUsage.CurrentPeriod.RemainingServices)
}

func TestGrantExtra_Flexible(t *testing.T) {
	u := flexibleUser(16)
	u.ServiceUsage.CurrentPeriod.RemainingServices = 0
	u.ServiceUsage.CurrentPeriod.UsedServices = 16

	next, err := GrantExtra(u, model.ServiceUrgency, 4)
	require.NoError(t, err)

	p := next.ServiceUsage.CurrentPeriod
	assert.Equal(t, 4, p.RemainingServices)
	assert.Equal(t, 20, p.TotalServices)
	assert.Equal(t, 4, p.ExtraGranted)
	assert.Equal(t, p.TotalServices, p.UsedServices+p.RemainingServices)

	next, err = GrantExtra(next, model.ServiceUrgency, 1)
	require.NoError(t, err)
	assert.Equal(t, 5, next.ServiceUsage.CurrentPeriod.ExtraGranted)
}

func TestGrantExtra_CorporateGrowsContract(t *testing.T) {
	u := &model.User{
		Role:         model.RoleCorporate,
		Plan:         &model.Plan{Quota: model.QuotaContract, ContractServices: 24, TotalServices: 24},
		ServiceUsage: &model.ServiceUsage{CurrentPeriod: model.Period{TotalServices: 24, UsedServices: 24}},
	}

	next, err := GrantExtra(u, model.ServiceEmergency, 5)
	require.NoError(t, err)

	assert.Equal(t, 29, next.Plan.ContractServices)
	assert.Equal(t, 5, next.ServiceUsage.CurrentPeriod.RemainingServices)
	assert.Equal(t, 24, u.Plan.ContractServices)
}

func TestGrantExtra_Errors(t *testing.T) {
	u := breakdownUser()

	_, err := GrantExtra(u, model.ServiceUrgency, 0)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = GrantExtra(u, model.ServiceEmergency, 1)
	assert.ErrorIs(t, err, ErrUnlimitedBucket)

	_, err = GrantExtra(u, model.ServiceTransfer, 1)
	assert.ErrorIs(t, err, ErrUnknownBucket)

	_, err = GrantExtra(&model.User{}, model.ServiceUrgency, 1)
	assert.ErrorIs(t, err, ErrNoPlan)

	unrestricted := &model.User{
		Plan:         &model.Plan{Quota: model.QuotaUnrestricted},
		ServiceUsage: &model.ServiceUsage{},
	}
	_, err = GrantExtra(unrestricted, model.ServiceUrgency, 1)
	assert.ErrorIs(t, err, ErrNotGrantable)
}

func TestApplyUsage_MeteredNeedsCompanyPool(t *testing.T) {
	u := &model.User{
		Plan: &model.Plan{Quota: model.QuotaMetered, TotalServices: 6},
		ServiceUsage: &model.ServiceUsage{CurrentPeriod: model.Period{
			TotalServices:     6,
			RemainingServices: 6,
			CompanyRemaining:  1,
		}},
	}

	next, applied := ApplyUsage(u, model.ServiceUrgency)
	require.True(t, applied)
	assert.Equal(t, 5, next.ServiceUsage.CurrentPeriod.RemainingServices)
	assert.Equal(t, 0, next.ServiceUsage.CurrentPeriod.CompanyRemaining)

	again, applied := ApplyUsage(next, model.ServiceUrgency)
	assert.False(t, applied, "company pool is exhausted")
	assert.Equal(t, 5, again.ServiceUsage.CurrentPeriod.RemainingServices)
	assert.Equal(t, 1, again.ServiceUsage.CurrentPeriod.UsedServices)
	assert.Equal(t, 0, again.ServiceUsage.CurrentPeriod.CompanyRemaining)
}

func TestReclassify(t *testing.T) {
	u := breakdownUser()
	u, _ = ApplyUsage(u, model.ServiceUrgency)

	next, restored, charged := Reclassify(u, model.ServiceUrgency, model.ServiceHomeDoctor)
	require.True(t, restored)
	require.True(t, charged)
	assert.Equal(t, 0, next.ServiceUsage.CurrentPeriod.Breakdown[model.ServiceUrgency].Used)
	assert.Equal(t, 1, next.ServiceUsage.CurrentPeriod.Breakdown[model.ServiceHomeDoctor].Used)

	again, _ := ApplyUsage(next, model.ServiceUrgency)
	again, restored, charged = Reclassify(again, model.ServiceUrgency, model.ServiceHomeDoctor)
	assert.True(t, restored, "origin bucket is always restored")
	assert.False(t, charged, "target bucket is exhausted")
	assert.Equal(t, 0, again.ServiceUsage.CurrentPeriod.Breakdown[model.ServiceUrgency].Used)
	assert.Equal(t, 1, again.ServiceUsage.CurrentPeriod.Breakdown[model.ServiceHomeDoctor].Used)
}

func TestReclassify_NothingToRestore(t *testing.T) {
	u := breakdownUser()

	next, restored, charged := Reclassify(u, model.ServiceUrgency, model.ServiceHomeDoctor)
	assert.False(t, restored)
	assert.True(t, charged)
	assert.Equal(t, 0, next.ServiceUsage.CurrentPeriod.Breakdown[model.ServiceUrgency].Used)
	assert.Equal(t, 1, next.ServiceUsage.CurrentPeriod.Breakdown[model.ServiceHomeDoctor].Used)
}

func TestReclassify_FlexibleUntouched(t *testing.T) {
	u := flexibleUser(16)
	u, _ = ApplyUsage(u, model.ServiceUrgency)

	next, restored, charged := Reclassify(u, model.ServiceUrgency, model.ServiceEmergency)
	assert.False(t, restored)
	assert.False(t, charged)
	assert.Equal(t, u.ServiceUsage.CurrentPeriod, next.ServiceUsage.CurrentPeriod)
}
