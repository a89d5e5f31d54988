// Package store владеет состоянием приложения HelpMED. Все коллекции
// изменяются только через методы Store. Читатели получают копии, так что
// заменённая запись никогда не видна наполовину.
package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/helpmed-dispatch/internal/ledger"
	"github.com/mmeshcher/helpmed-dispatch/internal/metrics"
	"github.com/mmeshcher/helpmed-dispatch/internal/model"
	"github.com/mmeshcher/helpmed-dispatch/internal/notify"
	"github.com/mmeshcher/helpmed-dispatch/internal/persist"
)

var (
	// ErrUserNotFound возвращается, если пользователь не найден.
	ErrUserNotFound = errors.New("user not found")
	// ErrRegistrationNotFound возвращается, если заявка не найдена.
	ErrRegistrationNotFound = errors.New("registration request not found")
	// ErrEmergencyNotFound возвращается, если вызов не найден.
	ErrEmergencyNotFound = errors.New("emergency not found")
	// ErrCompanyNotFound возвращается, если компания не найдена.
	ErrCompanyNotFound = errors.New("company not found")
	// ErrInvalidCredentials возвращается при неверном логине или пароле.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrDuplicateUsername возвращается, если логин уже занят.
	ErrDuplicateUsername = errors.New("username already taken")
	// ErrDuplicateEmail возвращается, если email уже используется.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrDuplicateCompany возвращается, если компания с таким названием уже зарегистрирована.
	ErrDuplicateCompany = errors.New("company name already registered")
	// ErrDuplicateRUC возвращается, если компания с таким RUC уже зарегистрирована.
	ErrDuplicateRUC = errors.New("company RUC already registered")
	// ErrInvalidRUC возвращается при неверном RUC.
	ErrInvalidRUC = errors.New("invalid RUC")
	// ErrInvalidAmount возвращается при неположительном количестве или сумме.
	ErrInvalidAmount = errors.New("amount must be positive")
	// ErrUnknownServiceType возвращается для типа услуги без прейскурантной цены.
	ErrUnknownServiceType = errors.New("unknown service type")
)

// Repository описывает контракт сохранения, используемый хранилищем состояния.
type Repository interface {
	SaveUser(ctx context.Context, u *model.User) error
	SaveRegistration(ctx context.Context, r *model.RegistrationRequest) error
	SaveCompany(ctx context.Context, c *model.Company) error
	SaveEmergency(ctx context.Context, e *model.Emergency) error
	SaveTransaction(ctx context.Context, t model.Transaction) error
	DeleteTransaction(ctx context.Context, id uuid.UUID) error
	SaveCorrection(ctx context.Context, c model.Correction) error
}

// Notifier создаёт уведомления во внешнем API.
type Notifier interface {
	Notify(ctx context.Context, n notify.Notification) (*notify.Notification, error)
}

// Queue принимает отложенные операции сохранения.
type Queue interface {
	Enqueue(op persist.Op) bool
}

// Options задаёт зависимости Store. Любое поле может быть пустым.
type Options struct {
	Repository   Repository
	Notifier     Notifier
	Queue        Queue
	Metrics      *metrics.Metrics
	Logger       *zap.Logger
	Location     *time.Location
	Now          func() time.Time
	PasswordCost int
}

// Store хранит состояние приложения.
type Store struct {
	mu sync.RWMutex

	users         map[uuid.UUID]*model.User
	usernames     map[string]uuid.UUID
	registrations map[uuid.UUID]*model.RegistrationRequest
	companies     map[uuid.UUID]*model.Company
	emergencies   map[uuid.UUID]*model.Emergency
	ledger        *ledger.Ledger

	repo         Repository
	notifier     Notifier
	queue        Queue
	metrics      *metrics.Metrics
	logger       *zap.Logger
	now          func() time.Time
	passwordCost int
}

// New создаёт пустое хранилище состояния.
func New(opts Options) *Store {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cost := opts.PasswordCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}

	s := &Store{
		users:         make(map[uuid.UUID]*model.User),
		usernames:     make(map[string]uuid.UUID),
		registrations: make(map[uuid.UUID]*model.RegistrationRequest),
		companies:     make(map[uuid.UUID]*model.Company),
		emergencies:   make(map[uuid.UUID]*model.Emergency),
		ledger:        ledger.New(opts.Location, now),
		repo:          opts.Repository,
		notifier:      opts.Notifier,
		queue:         opts.Queue,
		metrics:       opts.Metrics,
		logger:        logger,
		now:           now,
		passwordCost:  cost,
	}

	return s
}

// Hydrate загружает ранее сохранённое состояние. Вызывается до начала обслуживания запросов.
func (s *Store) Hydrate(snap *model.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range snap.Users {
		s.putUser(u.Clone())
	}
	for _, r := range snap.Registrations {
		s.registrations[r.ID] = r.Clone()
	}
	for _, c := range snap.Companies {
		cp := *c
		s.companies[c.ID] = &cp
	}
	for _, e := range snap.Emergencies {
		s.emergencies[e.ID] = e.Clone()
	}
	s.ledger.Load(snap.Transactions, snap.Corrections)
	s.revenueChanged()

	s.logger.Info("state hydrated",
		zap.Int("users", len(s.users)),
		zap.Int("registrations", len(s.registrations)),
		zap.Int("emergencies", len(s.emergencies)),
		zap.Int("transactions", len(snap.Transactions)),
	)
}

func (s *Store) putUser(u *model.User) {
	s.users[u.ID] = u
	s.usernames[normalize(u.Username)] = u.ID
}

func (s *Store) enqueue(name string, id uuid.UUID, run func(ctx context.Context) error) {
	if s.queue == nil {
		return
	}
	s.queue.Enqueue(persist.Op{Name: name, EntityID: id.String(), Run: run})
}

func (s *Store) persistUser(u *model.User) {
	if s.repo == nil {
		return
	}
	snapshot := u.Clone()
	s.enqueue("save_user", u.ID, func(ctx context.Context) error {
		return s.repo.SaveUser(ctx, snapshot)
	})
}

func (s *Store) persistRegistration(r *model.RegistrationRequest) {
	if s.repo == nil {
		return
	}
	snapshot := r.Clone()
	s.enqueue("save_registration", r.ID, func(ctx context.Context) error {
		return s.repo.SaveRegistration(ctx, snapshot)
	})
}

func (s *Store) persistCompany(c *model.Company) {
	if s.repo == nil {
		return
	}
	snapshot := *c
	s.enqueue("save_company", c.ID, func(ctx context.Context) error {
		return s.repo.SaveCompany(ctx, &snapshot)
	})
}

func (s *Store) persistEmergency(e *model.Emergency) {
	if s.repo == nil {
		return
	}
	snapshot := e.Clone()
	s.enqueue("save_emergency", e.ID, func(ctx context.Context) error {
		return s.repo.SaveEmergency(ctx, snapshot)
	})
}

func (s *Store) persistTransaction(t model.Transaction) {
	if s.repo == nil {
		return
	}
	s.enqueue("save_transaction", t.ID, func(ctx context.Context) error {
		return s.repo.SaveTransaction(ctx, t)
	})
}

func (s *Store) persistCorrection(c model.Correction) {
	if s.repo == nil {
		return
	}
	s.enqueue("save_correction", c.ID, func(ctx context.Context) error {
		if err := s.repo.SaveCorrection(ctx, c); err != nil {
			return err
		}
		if c.Action == model.CorrectionDelete {
			return s.repo.DeleteTransaction(ctx, c.TransactionID)
		}
		return s.repo.SaveTransaction(ctx, *c.After)
	})
}

func (s *Store) sendNotification(userID uuid.UUID, e *model.Emergency, kind, title, message string) {
	if s.notifier == nil {
		return
	}
	n := notify.Notification{
		UserID:    userID.String(),
		Kind:      kind,
		Title:     title,
		Message:   message,
		CreatedAt: s.now().UTC(),
	}
	if e != nil {
		n.EmergencyID = e.ID.String()
	}
	s.enqueue("notify_"+kind, userID, func(ctx context.Context) error {
		_, err := s.notifier.Notify(ctx, n)
		return err
	})
}

func (s *Store) revenueChanged() {
	if s.metrics != nil {
		s.metrics.RevenueTotal.Set(float64(s.ledger.Summary().TotalRevenue))
	}
}
