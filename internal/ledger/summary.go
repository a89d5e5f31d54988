package ledger

import (
	"time"

	"github.com/mmeshcher/helpmed-dispatch/internal/model"
)

// Summarize строит агрегаты по списку операций с нуля.
// В доход попадают только операции COMPLETED одного из пяти известных видов.
// Окна «сегодня», «7 дней», «месяц» и «год» отсчитываются от now в его часовом поясе.
func Summarize(txs []model.Transaction, now time.Time) model.Summary {
	s := model.Summary{
		ByType:           make(map[model.TransactionType]int64, len(model.TransactionTypes)),
		ByPlan:           make(map[model.PlanType]int64),
		TransactionCount: len(txs),
		GeneratedAt:      now,
	}
	for _, t := range model.TransactionTypes {
		s.ByType[t] = 0
	}

	loc := now.Location()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	week := today.AddDate(0, 0, -6)
	month := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
	year := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, loc)

	for _, t := range txs {
		if !t.Type.Known() {
			continue
		}
		if t.Status == model.TxPending {
			s.PendingAmount += t.Amount
		}
		if t.Status != model.TxCompleted {
			continue
		}

		s.CompletedCount++
		s.TotalRevenue += t.Amount
		s.ByType[t.Type] += t.Amount
		if t.PlanType != "" {
			s.ByPlan[t.PlanType] += t.Amount
		}

		d := t.Date.In(loc)
		if !d.Before(today) {
			s.Today += t.Amount
		}
		if !d.Before(week) {
			s.Last7Days += t.Amount
		}
		if !d.Before(month) {
			s.ThisMonth += t.Amount
		}
		if !d.Before(year) {
			s.ThisYear += t.Amount
		}
	}

	return s
}
