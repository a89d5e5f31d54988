// Package model содержит доменные сущности диспетчерского сервиса HelpMED.
package model

import (
	"time"

	"github.com/google/uuid"
)

// Role описывает роль пользователя системы.
type Role string

const (
	RoleFamiliar  Role = "familiar"
	RoleCorporate Role = "corporate"
	RoleExternal  Role = "external"
	RoleAmbulance Role = "ambulance"
	RoleAdmin     Role = "admin"
)

// ServiceType описывает тип медицинской услуги и одновременно ключ корзины лимитов.
type ServiceType string

const (
	ServiceEmergency    ServiceType = "emergency"
	ServiceUrgency      ServiceType = "urgency"
	ServiceHomeDoctor   ServiceType = "home_doctor"
	ServiceTransfer     ServiceType = "transfer"
	ServiceVideoConsult ServiceType = "video_consult"
)

// ServiceTypes перечисляет все известные типы услуг в порядке отображения.
var ServiceTypes = []ServiceType{
	ServiceEmergency,
	ServiceUrgency,
	ServiceHomeDoctor,
	ServiceTransfer,
	ServiceVideoConsult,
}

// Valid сообщает, является ли тип услуги известным.
func (t ServiceType) Valid() bool {
	for _, st := range ServiceTypes {
		if st == t {
			return true
		}
	}
	return false
}

// PlanType описывает семейство тарифного плана.
type PlanType string

const (
	PlanFamiliar  PlanType = "familiar"
	PlanCorporate PlanType = "corporate"
	PlanExternal  PlanType = "external"
)

// QuotaKind определяет, как считается квота плана.
type QuotaKind string

const (
	// QuotaFlexible означает единый общий счётчик на все типы услуг и всех аффилиатов.
	QuotaFlexible QuotaKind = "flexible"
	// QuotaBreakdown означает независимые корзины по типам услуг.
	QuotaBreakdown QuotaKind = "breakdown"
	// QuotaContract означает корпоративный контракт только на экстренные вызовы.
	QuotaContract QuotaKind = "contract"
	// QuotaUnrestricted относится к внешнему клиенту, оплачивающему каждую услугу напрямую.
	QuotaUnrestricted QuotaKind = "unrestricted"
	// QuotaMetered относится к внешнему клиенту с личным годовым лимитом и общим лимитом компании.
	QuotaMetered QuotaKind = "metered"
)

// PlanStatus описывает состояние плана пользователя.
type PlanStatus string

const (
	PlanStatusActive    PlanStatus = "active"
	PlanStatusSuspended PlanStatus = "suspended"
	PlanStatusInactive  PlanStatus = "inactive"
)

// Plan описывает тарифный план пользователя.
type Plan struct {
	Type             PlanType   `json:"type"`
	Subtype          string     `json:"subtype"`
	Name             string     `json:"name"`
	Status           PlanStatus `json:"status"`
	Quota            QuotaKind  `json:"quota"`
	TotalServices    int        `json:"total_services"`
	ContractServices int        `json:"contract_services,omitempty"`
	EmployeesCount   int        `json:"employees_count,omitempty"`
	Affiliates       int        `json:"affiliates"`
	CompanyID        *uuid.UUID `json:"company_id,omitempty"`
	AnnualPrice      int64      `json:"annual_price"`
}

// Bucket хранит лимит одного типа услуг.
type Bucket struct {
	Limit     int  `json:"limit"`
	Used      int  `json:"used"`
	Extra     int  `json:"extra"`
	Unlimited bool `json:"unlimited"`
}

// Remaining возвращает остаток корзины, не меньше нуля.
func (b Bucket) Remaining() int {
	if b.Used >= b.Limit {
		return 0
	}
	return b.Limit - b.Used
}

// Period описывает использование услуг за текущий период.
type Period struct {
	TotalServices     int                    `json:"total_services"`
	UsedServices      int                    `json:"used_services"`
	RemainingServices int                    `json:"remaining_services"`
	ExtraGranted      int                    `json:"extra_granted"`
	Breakdown         map[ServiceType]Bucket `json:"breakdown,omitempty"`
	CompanyRemaining  int                    `json:"company_remaining,omitempty"`
	StartedAt         time.Time              `json:"started_at"`
	EndsAt            time.Time              `json:"ends_at"`
}

// ServiceUsage хранит сведения об использовании услуг пользователем.
type ServiceUsage struct {
	CurrentPeriod Period `json:"current_period"`
}

// Billing описывает параметры биллинга пользователя.
type Billing struct {
	MonthlyCost     int64     `json:"monthly_cost"`
	NextBillingDate time.Time `json:"next_billing_date"`
}

// User представляет пользователя системы любой роли.
type User struct {
	ID           uuid.UUID     `json:"id"`
	Username     string        `json:"username"`
	PasswordHash []byte        `json:"-"`
	Role         Role          `json:"role"`
	FullName     string        `json:"full_name"`
	Email        string        `json:"email"`
	Phone        string        `json:"phone,omitempty"`
	Active       bool          `json:"active"`
	Plan         *Plan         `json:"plan,omitempty"`
	ServiceUsage *ServiceUsage `json:"service_usage,omitempty"`
	Billing      *Billing      `json:"billing,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// Clone возвращает глубокую копию пользователя.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	if u.PasswordHash != nil {
		c.PasswordHash = append([]byte(nil), u.PasswordHash...)
	}
	if u.Plan != nil {
		p := *u.Plan
		if u.Plan.CompanyID != nil {
			id := *u.Plan.CompanyID
			p.CompanyID = &id
		}
		c.Plan = &p
	}
	if u.ServiceUsage != nil {
		su := *u.ServiceUsage
		if u.ServiceUsage.CurrentPeriod.Breakdown != nil {
			su.CurrentPeriod.Breakdown = make(map[ServiceType]Bucket, len(u.ServiceUsage.CurrentPeriod.Breakdown))
			for k, v := range u.ServiceUsage.CurrentPeriod.Breakdown {
				su.CurrentPeriod.Breakdown[k] = v
			}
		}
		c.ServiceUsage = &su
	}
	if u.Billing != nil {
		b := *u.Billing
		c.Billing = &b
	}
	return &c
}

// RegistrationStatus описывает статус заявки на регистрацию.
type RegistrationStatus string

const (
	RegistrationPending  RegistrationStatus = "pending"
	RegistrationApproved RegistrationStatus = "approved"
	RegistrationRejected RegistrationStatus = "rejected"
)

// Applicant содержит анкетные данные заявителя.
type Applicant struct {
	FullName       string `json:"full_name"`
	DocumentNumber string `json:"document_number"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	Address        string `json:"address"`
	Username       string `json:"username"`
	PasswordHash   []byte `json:"-"`
}

// CompanyInfo содержит данные компании из заявки корпоративного или внешнего плана.
type CompanyInfo struct {
	Name           string `json:"name"`
	RUC            string `json:"ruc"`
	EmployeesCount int    `json:"employees_count"`
}

// RegistrationRequest описывает заявку на подключение плана.
type RegistrationRequest struct {
	ID              uuid.UUID          `json:"id"`
	Applicant       Applicant          `json:"applicant"`
	PlanType        PlanType           `json:"plan_type"`
	PlanSubtype     string             `json:"plan_subtype"`
	Company         *CompanyInfo       `json:"company,omitempty"`
	Affiliates      int                `json:"affiliates"`
	Status          RegistrationStatus `json:"status"`
	RejectionReason string             `json:"rejection_reason,omitempty"`
	UserID          *uuid.UUID         `json:"user_id,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	ReviewedAt      *time.Time         `json:"reviewed_at,omitempty"`
}

// Clone возвращает глубокую копию заявки.
func (r *RegistrationRequest) Clone() *RegistrationRequest {
	if r == nil {
		return nil
	}
	c := *r
	if r.Applicant.PasswordHash != nil {
		c.Applicant.PasswordHash = append([]byte(nil), r.Applicant.PasswordHash...)
	}
	if r.Company != nil {
		ci := *r.Company
		c.Company = &ci
	}
	if r.UserID != nil {
		id := *r.UserID
		c.UserID = &id
	}
	if r.ReviewedAt != nil {
		t := *r.ReviewedAt
		c.ReviewedAt = &t
	}
	return &c
}

// Company описывает внешнюю компанию-партнёра с общим пулом услуг.
type Company struct {
	ID                uuid.UUID `json:"id"`
	Name              string    `json:"name"`
	RUC               string    `json:"ruc"`
	TotalServices     int       `json:"total_services"`
	UsedServices      int       `json:"used_services"`
	RemainingServices int       `json:"remaining_services"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// EmergencyStatus описывает этап жизненного цикла вызова.
type EmergencyStatus string

const (
	EmergencyRequested    EmergencyStatus = "requested"
	EmergencyAssigned     EmergencyStatus = "assigned"
	EmergencyEnRoute      EmergencyStatus = "en_route"
	EmergencyOnScene      EmergencyStatus = "on_scene"
	EmergencyTransferring EmergencyStatus = "transferring"
	EmergencyCompleted    EmergencyStatus = "completed"
	EmergencyCancelled    EmergencyStatus = "cancelled"
)

// EmergencyKind описывает характер обращения.
type EmergencyKind string

const (
	KindMedical  EmergencyKind = "medical"
	KindSOS      EmergencyKind = "sos"
	KindAccident EmergencyKind = "accident"
	KindTransfer EmergencyKind = "transfer"
)

// Location задаёт место вызова.
type Location struct {
	Address   string  `json:"address"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Reference string  `json:"reference,omitempty"`
}

// MedicalRecord содержит медицинское заключение, прикрепляемое при завершении вызова.
type MedicalRecord struct {
	Diagnosis         string      `json:"diagnosis"`
	Treatment         string      `json:"treatment"`
	AttendedBy        string      `json:"attended_by"`
	Notes             string      `json:"notes,omitempty"`
	ActualServiceType ServiceType `json:"actual_service_type,omitempty"`
	Reclassified      bool        `json:"reclassified"`
	CompletedAt       time.Time   `json:"completed_at"`
}

// StatusChange фиксирует смену статуса вызова.
type StatusChange struct {
	From      EmergencyStatus `json:"from"`
	To        EmergencyStatus `json:"to"`
	Note      string          `json:"note,omitempty"`
	ChangedAt time.Time       `json:"changed_at"`
}

// Emergency описывает отдельный вызов (запрос услуги).
type Emergency struct {
	ID                   uuid.UUID       `json:"id"`
	UserID               uuid.UUID       `json:"user_id"`
	Kind                 EmergencyKind   `json:"kind"`
	ServiceType          ServiceType     `json:"service_type"`
	Description          string          `json:"description,omitempty"`
	Location             Location        `json:"location"`
	Status               EmergencyStatus `json:"status"`
	AssignedUnit         string          `json:"assigned_unit,omitempty"`
	EstimatedArrivalMins *int            `json:"estimated_arrival_time,omitempty"`
	MedicalRecord        *MedicalRecord  `json:"medical_record,omitempty"`
	History              []StatusChange  `json:"history"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// Clone возвращает глубокую копию вызова.
func (e *Emergency) Clone() *Emergency {
	if e == nil {
		return nil
	}
	c := *e
	if e.EstimatedArrivalMins != nil {
		v := *e.EstimatedArrivalMins
		c.EstimatedArrivalMins = &v
	}
	if e.MedicalRecord != nil {
		mr := *e.MedicalRecord
		c.MedicalRecord = &mr
	}
	c.History = append([]StatusChange(nil), e.History...)
	return &c
}

// TransactionType описывает вид финансовой операции.
type TransactionType string

const (
	TxSubscription      TransactionType = "SUBSCRIPTION"
	TxAdditionalService TransactionType = "ADDITIONAL_SERVICE"
	TxCorporateContract TransactionType = "CORPORATE_CONTRACT"
	TxParticular        TransactionType = "PARTICULAR"
	TxManualEntry       TransactionType = "MANUAL_ENTRY"
)

// TransactionTypes перечисляет известные виды операций.
var TransactionTypes = []TransactionType{
	TxSubscription,
	TxAdditionalService,
	TxCorporateContract,
	TxParticular,
	TxManualEntry,
}

// Known сообщает, входит ли вид операции в фиксированный перечень.
func (t TransactionType) Known() bool {
	for _, tt := range TransactionTypes {
		if tt == t {
			return true
		}
	}
	return false
}

// TransactionStatus описывает статус финансовой операции.
type TransactionStatus string

const (
	TxCompleted TransactionStatus = "COMPLETED"
	TxPending   TransactionStatus = "PENDING"
	TxCancelled TransactionStatus = "CANCELLED"
)

// Valid сообщает, является ли статус допустимым.
func (s TransactionStatus) Valid() bool {
	return s == TxCompleted || s == TxPending || s == TxCancelled
}

// Transaction представляет неизменяемую запись финансового журнала. Суммы хранятся в сентимо.
type Transaction struct {
	ID          uuid.UUID         `json:"id"`
	Type        TransactionType   `json:"type"`
	Amount      int64             `json:"amount"`
	Date        time.Time         `json:"date"`
	Status      TransactionStatus `json:"status"`
	PlanType    PlanType          `json:"plan_type,omitempty"`
	PlanSubtype string            `json:"plan_subtype,omitempty"`
	UserID      *uuid.UUID        `json:"user_id,omitempty"`
	CompanyID   *uuid.UUID        `json:"company_id,omitempty"`
	CompanyName string            `json:"company_name,omitempty"`
	Description string            `json:"description,omitempty"`
}

// CorrectionAction описывает вид корректировки журнала.
type CorrectionAction string

const (
	CorrectionUpdate CorrectionAction = "update"
	CorrectionDelete CorrectionAction = "delete"
)

// Correction фиксирует корректировку уже записанной операции.
type Correction struct {
	ID            uuid.UUID        `json:"id"`
	TransactionID uuid.UUID        `json:"transaction_id"`
	Action        CorrectionAction `json:"action"`
	Before        Transaction      `json:"before"`
	After         *Transaction     `json:"after,omitempty"`
	Reason        string           `json:"reason"`
	At            time.Time        `json:"at"`
}

// Summary содержит агрегаты по журналу, пересчитываемые целиком.
type Summary struct {
	TotalRevenue     int64                     `json:"total_revenue"`
	ByType           map[TransactionType]int64 `json:"by_type"`
	ByPlan           map[PlanType]int64        `json:"by_plan"`
	Today            int64                     `json:"today"`
	Last7Days        int64                     `json:"last_7_days"`
	ThisMonth        int64                     `json:"this_month"`
	ThisYear         int64                     `json:"this_year"`
	PendingAmount    int64                     `json:"pending_amount"`
	TransactionCount int                       `json:"transaction_count"`
	CompletedCount   int                       `json:"completed_count"`
	GeneratedAt      time.Time                 `json:"generated_at"`
}

// Snapshot содержит полное состояние приложения, загружаемое из хранилища при старте.
type Snapshot struct {
	Users         []*User
	Registrations []*RegistrationRequest
	Companies     []*Company
	Emergencies   []*Emergency
	Transactions  []Transaction
	Corrections   []Correction
}
