package oracles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Oracle struct {
	Name string
	SQL  string
}

// All returns the invariant checks run against a live database while actors
// hammer the lifecycle. Each query must return zero rows; any row is a
// violation.
func All() []Oracle {
	return []Oracle{
		{
			Name: "O1_completed_bucket_matches_stage",
			SQL: `SELECT id, stage, status FROM transactions
                  WHERE status = 'completed' AND stage <> 'completed'`,
		},
		{
			Name: "O2_dispute_narrative_present",
			SQL: `SELECT id FROM transactions
                  WHERE status = 'disputed'
                    AND (dispute_details IS NULL OR dispute_details = '')`,
		},
		{
			Name: "O3_single_transaction_per_agreement",
			SQL: `SELECT agreement_id, COUNT(*) FROM transactions
                  WHERE agreement_id IS NOT NULL
                  GROUP BY agreement_id HAVING COUNT(*) > 1`,
		},
		{
			Name: "O4_accepted_agreement_has_transaction",
			SQL: `SELECT a.id FROM agreements a
                  WHERE a.status = 'accepted'
                    AND NOT EXISTS (SELECT 1 FROM transactions t WHERE t.agreement_id = a.id)`,
		},
		{
			Name: "O5_rejected_agreement_has_feedback",
			SQL: `SELECT id FROM agreements
                  WHERE status = 'rejected' AND (feedback IS NULL OR feedback = '')`,
		},
		{
			Name: "O6_resolved_agreement_has_timestamp",
			SQL: `SELECT id FROM agreements
                  WHERE status <> 'pending' AND responded_at IS NULL`,
		},
		{
			Name: "O7_transaction_roles_distinct",
			SQL: `SELECT id FROM transactions
                  WHERE buyer_profile_id = seller_profile_id`,
		},
		{
			Name: "O8_notification_recipient_is_party",
			SQL: `SELECT n.id FROM notifications n
                  JOIN transactions t ON t.id = n.related_id
                  WHERE n.recipient_profile_id NOT IN (t.buyer_profile_id, t.seller_profile_id)`,
		},
		{
			Name: "O9_single_current_profile",
			SQL: `SELECT COUNT(*) FROM current_profile HAVING COUNT(*) > 1`,
		},
	}
}

// Run executes all oracles and returns the first failure (name and a sample
// row) or an empty name when every check passes.
func Run(ctx context.Context, pool *pgxpool.Pool) (string, string, error) {
	for _, o := range All() {
		rows, err := pool.Query(ctx, o.SQL)
		if err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
		has := rows.Next()
		if has {
			vals, err := rows.Values()
			rows.Close()
			if err != nil {
				return o.Name, "", err
			}
			return o.Name, fmt.Sprintf("%v", vals), nil
		}
		rows.Close()
	}
	return "", "", nil
}
