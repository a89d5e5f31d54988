// Package ledger реализует журнал доходов: добавление операций, корректировки и агрегаты.
package ledger

import (
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mmeshcher/helpmed-dispatch/internal/model"
)

var (
	// ErrTransactionNotFound возвращается, если операция с указанным идентификатором не найдена.
	ErrTransactionNotFound = errors.New("transaction not found")
	// ErrReasonRequired возвращается при корректировке без указания причины.
	ErrReasonRequired = errors.New("correction reason is required")
	// ErrInvalidStatus возвращается при попытке установить неизвестный статус.
	ErrInvalidStatus = errors.New("invalid transaction status")
)

// Ledger хранит операции в порядке добавления и журнал корректировок.
// Ledger не потокобезопасен, синхронизацию обеспечивает владелец.
type Ledger struct {
	txs         []model.Transaction
	corrections []model.Correction
	summary     model.Summary
	loc         *time.Location
	now         func() time.Time
}

// New создаёт пустой журнал. Границы периодов считаются в часовом поясе loc.
func New(loc *time.Location, now func() time.Time) *Ledger {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	l := &Ledger{loc: loc, now: now}
	l.recompute()
	return l
}

// Load заменяет содержимое журнала ранее сохранёнными данными.
func (l *Ledger) Load(txs []model.Transaction, corrections []model.Correction) {
	l.txs = slices.Clone(txs)
	slices.SortStableFunc(l.txs, func(a, b model.Transaction) int {
		return a.Date.Compare(b.Date)
	})
	l.corrections = slices.Clone(corrections)
	l.recompute()
}

// Append добавляет операцию. Идентификатор присваивается всегда,
// статус по умолчанию COMPLETED, дата по умолчанию текущая.
func (l *Ledger) Append(entry model.Transaction) model.Transaction {
	entry.ID = uuid.New()
	if entry.Status == "" {
		entry.Status = model.TxCompleted
	}
	if entry.Date.IsZero() {
		entry.Date = l.now()
	}
	l.txs = append(l.txs, entry)
	l.recompute()
	return entry
}

// Patch описывает изменяемые поля операции при корректировке.
type Patch struct {
	Amount      *int64
	Status      *model.TransactionStatus
	Date        *time.Time
	Description *string
}

// Update корректирует операцию и журналирует корректировку.
func (l *Ledger) Update(id uuid.UUID, patch Patch, reason string) (model.Transaction, model.Correction, error) {
	if strings.TrimSpace(reason) == "" {
		return model.Transaction{}, model.Correction{}, ErrReasonRequired
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return model.Transaction{}, model.Correction{}, ErrInvalidStatus
	}

	idx := l.index(id)
	if idx < 0 {
		return model.Transaction{}, model.Correction{}, ErrTransactionNotFound
	}

	before := l.txs[idx]
	after := before
	if patch.Amount != nil {
		after.Amount = *patch.Amount
	}
	if patch.Status != nil {
		after.Status = *patch.Status
	}
	if patch.Date != nil {
		after.Date = *patch.Date
	}
	if patch.Description != nil {
		after.Description = *patch.Description
	}

	l.txs[idx] = after

	c := model.Correction{
		ID:            uuid.New(),
		TransactionID: id,
		Action:        model.CorrectionUpdate,
		Before:        before,
		After:         &after,
		Reason:        reason,
		At:            l.now(),
	}
	l.corrections = append(l.corrections, c)
	l.recompute()

	return after, c, nil
}

// Delete удаляет операцию из журнала, сохраняя её в журнале корректировок.
func (l *Ledger) Delete(id uuid.UUID, reason string) (model.Correction, error) {
	if strings.TrimSpace(reason) == "" {
		return model.Correction{}, ErrReasonRequired
	}

	idx := l.index(id)
	if idx < 0 {
		return model.Correction{}, ErrTransactionNotFound
	}

	before := l.txs[idx]
	l.txs = slices.Delete(l.txs, idx, idx+1)

	c := model.Correction{
		ID:            uuid.New(),
		TransactionID: id,
		Action:        model.CorrectionDelete,
		Before:        before,
		Reason:        reason,
		At:            l.now(),
	}
	l.corrections = append(l.corrections, c)
	l.recompute()

	return c, nil
}

// Get возвращает операцию по идентификатору.
func (l *Ledger) Get(id uuid.UUID) (model.Transaction, bool) {
	idx := l.index(id)
	if idx < 0 {
		return model.Transaction{}, false
	}
	return l.txs[idx], true
}

// Filter задаёт условия выборки операций. Пустые поля не ограничивают выборку.
type Filter struct {
	Type   model.TransactionType
	Status model.TransactionStatus
	From   time.Time
	To     time.Time
}

// List возвращает операции, подходящие под фильтр, от новых к старым.
func (l *Ledger) List(f Filter) []model.Transaction {
	res := make([]model.Transaction, 0, len(l.txs))
	for i := len(l.txs) - 1; i >= 0; i-- {
		t := l.txs[i]
		if f.Type != "" && t.Type != f.Type {
			continue
		}
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		if !f.From.IsZero() && t.Date.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && t.Date.After(f.To) {
			continue
		}
		res = append(res, t)
	}
	return res
}

// Corrections возвращает журнал корректировок в порядке их выполнения.
func (l *Ledger) Corrections() []model.Correction {
	return slices.Clone(l.corrections)
}

// Summary возвращает агрегаты, рассчитанные при последнем изменении журнала.
func (l *Ledger) Summary() model.Summary {
	return cloneSummary(l.summary)
}

// Refresh пересчитывает агрегаты относительно текущего момента.
// Нужен, когда границы периодов сдвинулись без изменения журнала.
func (l *Ledger) Refresh() model.Summary {
	l.recompute()
	return l.Summary()
}

func (l *Ledger) recompute() {
	l.summary = Summarize(l.txs, l.now().In(l.loc))
}

func (l *Ledger) index(id uuid.UUID) int {
	return slices.IndexFunc(l.txs, func(t model.Transaction) bool { return t.ID == id })
}

func cloneSummary(s model.Summary) model.Summary {
	c := s
	c.ByType = make(map[model.TransactionType]int64, len(s.ByType))
	for k, v := range s.ByType {
		c.ByType[k] = v
	}
	c.ByPlan = make(map[model.PlanType]int64, len(s.ByPlan))
	for k, v := range s.ByPlan {
		c.ByPlan[k] = v
	}
	return c
}
