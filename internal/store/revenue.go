package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/helpmed-dispatch/internal/ledger"
	"github.com/mmeshcher/helpmed-dispatch/internal/model"
)

// ManualEntry описывает операцию, добавляемую администратором вручную.
type ManualEntry struct {
	Type        model.TransactionType
	Amount      int64
	Status      model.TransactionStatus
	PlanType    model.PlanType
	PlanSubtype string
	UserID      *uuid.UUID
	CompanyName string
	Description string
}

// AppendTransaction добавляет операцию в журнал доходов. Тип по умолчанию MANUAL_ENTRY.
func (s *Store) AppendTransaction(_ context.Context, e ManualEntry) (model.Transaction, error) {
	if e.Amount <= 0 {
		return model.Transaction{}, ErrInvalidAmount
	}
	if e.Type == "" {
		e.Type = model.TxManualEntry
	}
	if e.Status != "" && !e.Status.Valid() {
		return model.Transaction{}, fmt.Errorf("%w: %s", ledger.ErrInvalidStatus, e.Status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := s.ledger.Append(model.Transaction{
		Type:        e.Type,
		Amount:      e.Amount,
		Status:      e.Status,
		PlanType:    e.PlanType,
		PlanSubtype: e.PlanSubtype,
		UserID:      e.UserID,
		CompanyName: strings.TrimSpace(e.CompanyName),
		Description: strings.TrimSpace(e.Description),
	})
	s.persistTransaction(tx)
	s.revenueChanged()

	return tx, nil
}

// UpdateTransaction корректирует операцию с обязательной причиной.
func (s *Store) UpdateTransaction(_ context.Context, id uuid.UUID, patch ledger.Patch, reason string) (model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, c, err := s.ledger.Update(id, patch, reason)
	if err != nil {
		return model.Transaction{}, err
	}
	s.persistCorrection(c)
	s.revenueChanged()

	s.logger.Info("transaction corrected",
		zap.String("transaction_id", id.String()),
		zap.String("reason", c.Reason),
	)
	return tx, nil
}

// DeleteTransaction удаляет операцию с обязательной причиной.
func (s *Store) DeleteTransaction(_ context.Context, id uuid.UUID, reason string) (model.Correction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.ledger.Delete(id, reason)
	if err != nil {
		return model.Correction{}, err
	}
	s.persistCorrection(c)
	s.revenueChanged()

	s.logger.Info("transaction deleted",
		zap.String("transaction_id", id.String()),
		zap.String("reason", c.Reason),
	)
	return c, nil
}

// Transactions возвращает операции журнала, от новых к старым.
func (s *Store) Transactions(_ context.Context, f ledger.Filter) []model.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.List(f)
}

// Corrections возвращает журнал корректировок.
func (s *Store) Corrections(_ context.Context) []model.Correction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.Corrections()
}

// RevenueSummary пересчитывает и возвращает агрегаты доходов на текущий момент.
func (s *Store) RevenueSummary(_ context.Context) model.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Refresh()
}
