package analytics

import (
	"context"

	"escrowflow/notification"
	"escrowflow/transaction"
)

// Calculator computes read-only aggregates over the entity store. It keeps no
// cache; every call recomputes from a fresh read, which at this scale is
// cheaper than keeping a projection correct.
type Calculator struct {
	transactions  transaction.Repository
	notifications notification.Repository
}

// NewCalculator wires the calculator over the injected repositories.
func NewCalculator(transactions transaction.Repository, notifications notification.Repository) *Calculator {
	return &Calculator{transactions: transactions, notifications: notifications}
}

// Counts buckets a profile's transactions by status.
type Counts struct {
	All        int
	InProgress int
	Completed  int
	Disputed   int
}

// Stats summarizes a profile's history. SuccessRate is a percentage;
// AverageValue is in the smallest currency unit.
type Stats struct {
	Total        int
	Completed    int
	SuccessRate  float64
	AverageValue int64
}

// EscrowBalance is the sum held for the profile: every in-progress
// transaction the profile is party to. Disputed funds stay frozen and are not
// part of the available balance; completed funds have been released.
func (c *Calculator) EscrowBalance(ctx context.Context, profileID string) (int64, error) {
	txs, err := c.transactions.List(ctx, transaction.Filter{
		ProfileID: profileID,
		Bucket:    transaction.StatusInProgress,
	})
	if err != nil {
		return 0, err
	}

	var sum int64
	for _, t := range txs {
		sum += t.Amount
	}
	return sum, nil
}

// CountsByStatus sizes the filter buckets for the profile.
func (c *Calculator) CountsByStatus(ctx context.Context, profileID string) (Counts, error) {
	txs, err := c.transactions.List(ctx, transaction.Filter{ProfileID: profileID})
	if err != nil {
		return Counts{}, err
	}

	counts := Counts{All: len(txs)}
	for _, t := range txs {
		switch t.Status {
		case transaction.StatusInProgress:
			counts.InProgress++
		case transaction.StatusCompleted:
			counts.Completed++
		case transaction.StatusDisputed:
			counts.Disputed++
		}
	}
	return counts, nil
}

// ProfileStats computes totals, the completion rate, and the average deal
// value. A profile with no transactions gets zeroes, never a division error.
func (c *Calculator) ProfileStats(ctx context.Context, profileID string) (Stats, error) {
	txs, err := c.transactions.List(ctx, transaction.Filter{ProfileID: profileID})
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{Total: len(txs)}
	if stats.Total == 0 {
		return stats, nil
	}

	var totalAmount int64
	for _, t := range txs {
		totalAmount += t.Amount
		if t.Status == transaction.StatusCompleted {
			stats.Completed++
		}
	}
	stats.SuccessRate = float64(stats.Completed) / float64(stats.Total) * 100
	stats.AverageValue = totalAmount / int64(stats.Total)
	return stats, nil
}

// UnreadCount counts the profile's unread notifications.
func (c *Calculator) UnreadCount(ctx context.Context, profileID string) (int, error) {
	return c.notifications.CountUnread(ctx, profileID)
}
