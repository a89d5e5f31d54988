package registration

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/helpmed-dispatch/internal/model"
)

var now = time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)

func pendingRequest(planType model.PlanType, subtype string) *model.RegistrationRequest {
	return &model.RegistrationRequest{
		ID: uuid.New(),
		Applicant: model.Applicant{
			FullName:     "Rosa Quispe",
			Email:        "rosa@example.pe",
			Username:     "rquispe",
			PasswordHash: []byte("hash"),
		},
		PlanType:    planType,
		PlanSubtype: subtype,
		Affiliates:  2,
		Status:      model.RegistrationPending,
		CreatedAt:   now.Add(-time.Hour),
	}
}

func TestApprove_FamiliarHelp(t *testing.T) {
	req := pendingRequest(model.PlanFamiliar, "help")

	res, err := Approve(req, now)
	require.NoError(t, err)

	u := res.User
	assert.Equal(t, model.RoleFamiliar, u.Role)
	assert.True(t, u.Active)
	assert.Equal(t, "Plan Help", u.Plan.Name)
	assert.Equal(t, model.QuotaFlexible, u.Plan.Quota)
	assert.Equal(t, 16, u.ServiceUsage.CurrentPeriod.TotalServices)
	assert.Equal(t, 16, u.ServiceUsage.CurrentPeriod.RemainingServices)
	assert.Equal(t, []byte("hash"), u.PasswordHash)

	require.Len(t, res.Transactions, 1)
	tx := res.Transactions[0]
	assert.Equal(t, model.TxSubscription, tx.Type)
	assert.Equal(t, int64(118800), tx.Amount)
	assert.Equal(t, model.PlanFamiliar, tx.PlanType)
	require.NotNil(t, tx.UserID)
	assert.Equal(t, u.ID, *tx.UserID)

	require.NotNil(t, u.Billing)
	assert.Equal(t, int64(118800/12), u.Billing.MonthlyCost)
	assert.Equal(t, now.AddDate(0, 1, 0), u.Billing.NextBillingDate)

	assert.Equal(t, model.RegistrationApproved, res.Request.Status)
	require.NotNil(t, res.Request.UserID)
	assert.Equal(t, u.ID, *res.Request.UserID)
	assert.Nil(t, res.Request.Applicant.PasswordHash)
	assert.Equal(t, model.RegistrationPending, req.Status, "input request must stay untouched")
}

func TestApprove_BreakdownTiers(t *testing.T) {
	tests := []struct {
		subtype  string
		urgency  int
		transfer int
	}{
		{subtype: "basic", urgency: 2, transfer: 1},
		{subtype: "vip", urgency: 6, transfer: 2},
		{subtype: "gold", urgency: 0, transfer: 4},
	}

	for _, tt := range tests {
		t.Run(tt.subtype, func(t *testing.T) {
			res, err := Approve(pendingRequest(model.PlanFamiliar, tt.subtype), now)
			require.NoError(t, err)

			b := res.User.ServiceUsage.CurrentPeriod.Breakdown
			assert.True(t, b[model.ServiceEmergency].Unlimited)
			if tt.urgency > 0 {
				assert.Equal(t, tt.urgency, b[model.ServiceUrgency].Limit)
			} else {
				assert.True(t, b[model.ServiceUrgency].Unlimited)
			}
			assert.Equal(t, tt.transfer, b[model.ServiceTransfer].Limit)
		})
	}
}

func TestApprove_CorporateContract(t *testing.T) {
	req := pendingRequest(model.PlanCorporate, "enterprise")
	req.Company = &model.CompanyInfo{Name: "Minera Andina SAC", RUC: "20100070970", EmployeesCount: 40}

	res, err := Approve(req, now)
	require.NoError(t, err)

	assert.Equal(t, model.RoleCorporate, res.User.Role)
	assert.Equal(t, 60, res.User.Plan.ContractServices)
	assert.Equal(t, 60, res.User.ServiceUsage.CurrentPeriod.RemainingServices)

	require.Len(t, res.Transactions, 1)
	assert.Equal(t, model.TxCorporateContract, res.Transactions[0].Type)
	assert.Equal(t, int64(40*1800*12), res.Transactions[0].Amount)
	assert.Equal(t, "Minera Andina SAC", res.Transactions[0].CompanyName)
}

func TestApprove_ExternalHasNoTransaction(t *testing.T) {
	req := pendingRequest(model.PlanExternal, "metered")
	req.Company = &model.CompanyInfo{Name: "Seguros Sol", RUC: "20100070970"}

	res, err := Approve(req, now)
	require.NoError(t, err)
	assert.Equal(t, model.RoleExternal, res.User.Role)
	assert.Empty(t, res.Transactions)
	assert.Equal(t, 6, res.User.ServiceUsage.CurrentPeriod.RemainingServices)
}

func TestApprove_OnlyOnce(t *testing.T) {
	req := pendingRequest(model.PlanFamiliar, "help")

	res, err := Approve(req, now)
	require.NoError(t, err)

	_, err = Approve(res.Request, now)
	assert.ErrorIs(t, err, ErrAlreadyReviewed)
}

func TestApprove_UnknownPlan(t *testing.T) {
	_, err := Approve(pendingRequest(model.PlanFamiliar, "platinum"), now)
	assert.ErrorIs(t, err, ErrUnknownPlan)
}

func TestReject(t *testing.T) {
	req := pendingRequest(model.PlanFamiliar, "vip")

	_, err := Reject(req, "   ", now)
	require.ErrorIs(t, err, ErrReasonRequired)
	assert.Equal(t, model.RegistrationPending, req.Status)
	assert.Empty(t, req.RejectionReason)

	rejected, err := Reject(req, "documento ilegible", now)
	require.NoError(t, err)
	assert.Equal(t, model.RegistrationRejected, rejected.Status)
	assert.Equal(t, "documento ilegible", rejected.RejectionReason)
	require.NotNil(t, rejected.ReviewedAt)

	_, err = Reject(rejected, "again", now)
	assert.ErrorIs(t, err, ErrAlreadyReviewed)

	_, err = Approve(rejected, now)
	assert.ErrorIs(t, err, ErrAlreadyReviewed)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     *model.RegistrationRequest
		wantErr error
	}{
		{name: "familiar ok", req: pendingRequest(model.PlanFamiliar, "basic")},
		{name: "unknown plan", req: pendingRequest(model.PlanExternal, "vip"), wantErr: ErrUnknownPlan},
		{
			name:    "corporate without company",
			req:     pendingRequest(model.PlanCorporate, "enterprise"),
			wantErr: ErrCompanyRequired,
		},
		{
			name: "corporate without employees",
			req: func() *model.RegistrationRequest {
				r := pendingRequest(model.PlanCorporate, "enterprise")
				r.Company = &model.CompanyInfo{Name: "ACME", RUC: "20100070970"}
				return r
			}(),
			wantErr: ErrInvalidEmployees,
		},
		{
			name:    "external without company",
			req:     pendingRequest(model.PlanExternal, "unlimited"),
			wantErr: ErrCompanyRequired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.req)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
