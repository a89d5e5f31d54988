// Package handler содержит HTTP-обработчики API сервиса HelpMED.
package handler

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mmeshcher/helpmed-dispatch/internal/entitlement"
	"github.com/mmeshcher/helpmed-dispatch/internal/ledger"
	"github.com/mmeshcher/helpmed-dispatch/internal/metrics"
	"github.com/mmeshcher/helpmed-dispatch/internal/middleware"
	"github.com/mmeshcher/helpmed-dispatch/internal/model"
	"github.com/mmeshcher/helpmed-dispatch/internal/persist"
	"github.com/mmeshcher/helpmed-dispatch/internal/registration"
	"github.com/mmeshcher/helpmed-dispatch/internal/store"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	Authenticate(ctx context.Context, username, password string) (*model.User, error)

	SubmitRegistration(ctx context.Context, sub store.Submission) (*model.RegistrationRequest, error)
	ListRegistrations(ctx context.Context, status model.RegistrationStatus) []*model.RegistrationRequest
	ApproveRegistration(ctx context.Context, id uuid.UUID) (*registration.Result, error)
	RejectRegistration(ctx context.Context, id uuid.UUID, reason string) (*model.RegistrationRequest, error)

	User(ctx context.Context, id uuid.UUID) (*model.User, error)
	ListUsers(ctx context.Context, role model.Role) []*model.User
	DeactivateUser(ctx context.Context, id uuid.UUID) (*model.User, error)
	Entitlement(ctx context.Context, id uuid.UUID, serviceType model.ServiceType) (entitlement.Decision, error)
	GrantExtra(ctx context.Context, id uuid.UUID, grants map[model.ServiceType]int, charge bool) (*model.User, *model.Transaction, error)
	ListCompanies(ctx context.Context) []*model.Company
	GrantCompanyServices(ctx context.Context, id uuid.UUID, amount int) (*model.Company, error)

	RequestService(ctx context.Context, r store.ServiceRequest) (*store.ServiceOutcome, error)
	Emergency(ctx context.Context, id uuid.UUID) (*model.Emergency, error)
	ListEmergencies(ctx context.Context, f store.EmergencyFilter) []*model.Emergency
	AssignEmergency(ctx context.Context, id uuid.UUID, unit string) (*model.Emergency, error)
	UpdateEmergencyStatus(ctx context.Context, id uuid.UUID, status model.EmergencyStatus, note string) (*model.Emergency, error)
	SetEstimatedArrival(ctx context.Context, id uuid.UUID, minutes int) (*model.Emergency, error)
	CompleteEmergency(ctx context.Context, id uuid.UUID, record model.MedicalRecord) (*model.Emergency, error)

	AppendTransaction(ctx context.Context, e store.ManualEntry) (model.Transaction, error)
	UpdateTransaction(ctx context.Context, id uuid.UUID, patch ledger.Patch, reason string) (model.Transaction, error)
	DeleteTransaction(ctx context.Context, id uuid.UUID, reason string) (model.Correction, error)
	Transactions(ctx context.Context, f ledger.Filter) []model.Transaction
	Corrections(ctx context.Context) []model.Correction
	RevenueSummary(ctx context.Context) model.Summary
}

// FailureSource отдаёт последние сбои сохранения.
type FailureSource interface {
	Failures() []persist.Failure
}

// Options задаёт необязательные зависимости Handler.
type Options struct {
	Failures  FailureSource
	Metrics   *metrics.Metrics
	Gatherer  prometheus.Gatherer
	LoginRate float64
}

// Handler реализует HTTP-обработчики API сервиса HelpMED.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
	validate       *validator.Validate
	failures       FailureSource
	metrics        *metrics.Metrics
	gatherer       prometheus.Gatherer
	loginLimiter   *rate.Limiter
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware, opts Options) *Handler {
	loginRate := opts.LoginRate
	if loginRate <= 0 {
		loginRate = 5
	}

	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
		validate:       validator.New(validator.WithRequiredStructEnabled()),
		failures:       opts.Failures,
		metrics:        opts.Metrics,
		gatherer:       opts.Gatherer,
		loginLimiter:   rate.NewLimiter(rate.Limit(loginRate), int(loginRate)+1),
	}
}

func identity(w http.ResponseWriter, r *http.Request) (middleware.Identity, bool) {
	id, ok := middleware.GetIdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
	}
	return id, ok
}

func isStaff(id middleware.Identity) bool {
	return id.Role == model.RoleAdmin || id.Role == model.RoleAmbulance
}

// allowSelf разрешает доступ к данным пользователя target ему самому и администратору.
func allowSelf(w http.ResponseWriter, id middleware.Identity, target uuid.UUID) bool {
	if id.Role == model.RoleAdmin || id.UserID == target {
		return true
	}
	writeError(w, http.StatusForbidden, http.StatusText(http.StatusForbidden))
	return false
}
