package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/kevin07696/subscription-service/internal/domain"
	"github.com/kevin07696/subscription-service/internal/domain/ports"
)

const queryTimeout = 5 * time.Second

// errNoChange rolls back the transaction opened for a mutation that turned
// out to be a no-op
var errNoChange = errors.New("no change")

// SubscriptionStore persists accounts in three tables: billing_accounts holds
// the current record and the version, subscription_history and payment_ledger
// are insert-only. The ledger's (user_id, payment_id) primary key backs the
// idempotent upsert rule at the storage level.
type SubscriptionStore struct {
	db ports.DBPort
}

var _ ports.SubscriptionStore = (*SubscriptionStore)(nil)

// NewSubscriptionStore creates a store on top of db
func NewSubscriptionStore(db ports.DBPort) *SubscriptionStore {
	return &SubscriptionStore{db: db}
}

// Get loads the account without locking it
func (s *SubscriptionStore) Get(ctx context.Context, userID string) (*domain.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var acc *domain.Account
	err := s.db.WithReadOnlyTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		acc, err = loadAccount(ctx, tx, userID, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	return acc, nil
}

// Mutate locks the account row for the duration of fn and the writes that follow
func (s *SubscriptionStore) Mutate(ctx context.Context, userID string, fn ports.MutateFunc) (*domain.Account, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var acc *domain.Account
	err := s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO billing_accounts (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`,
			userID,
		); err != nil {
			return fmt.Errorf("ensure account: %w", err)
		}

		var err error
		acc, err = loadAccount(ctx, tx, userID, true)
		if err != nil {
			return err
		}

		changed, err := fn(acc)
		if err != nil {
			return err
		}
		if !changed {
			return errNoChange
		}
		return saveAccount(ctx, tx, acc)
	})

	switch {
	case errors.Is(err, errNoChange):
		return acc, false, nil
	case err != nil:
		return nil, false, err
	}
	return acc, true, nil
}

// ListLapsed returns users whose trial or cancelled plan ended before now
func (s *SubscriptionStore) ListLapsed(ctx context.Context, now time.Time, limit int) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.db.DB().Query(ctx, `
		SELECT user_id FROM billing_accounts
		WHERE end_date < $1
		  AND (status = 'cancelled' OR (status = 'active' AND plan_type = 'trial'))
		ORDER BY user_id
		LIMIT $2`,
		now, limit,
	)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "list lapsed accounts", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "scan lapsed accounts", err)
	}
	return ids, nil
}

type currentRow struct {
	StartDate             *time.Time
	EndDate               *time.Time
	PlanType              *string
	Status                *string
	PaymentID             *string
	GatewaySubscriptionID *string
	Amount                *int64
	AutoRenew             *bool
	Version               int64
}

func loadAccount(ctx context.Context, tx ports.DBTX, userID string, forUpdate bool) (*domain.Account, error) {
	query := `
		SELECT version, plan_type, status, start_date, end_date, payment_id,
		       gateway_subscription_id, amount, auto_renew
		FROM billing_accounts WHERE user_id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var row currentRow
	err := tx.QueryRow(ctx, query, userID).Scan(
		&row.Version, &row.PlanType, &row.Status, &row.StartDate, &row.EndDate,
		&row.PaymentID, &row.GatewaySubscriptionID, &row.Amount, &row.AutoRenew,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "load account", err)
	}

	current, err := row.record()
	if err != nil {
		return nil, err
	}
	history, err := loadHistory(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	payments, err := loadPayments(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	return domain.RestoreAccount(userID, current, history, payments, row.Version), nil
}

func (r currentRow) record() (*domain.SubscriptionRecord, error) {
	if r.PlanType == nil {
		return nil, nil
	}
	rec, err := toRecord(*r.PlanType, deref(r.Status), r.StartDate, r.EndDate)
	if err != nil {
		return nil, err
	}
	rec.PaymentID = deref(r.PaymentID)
	rec.GatewaySubscriptionID = deref(r.GatewaySubscriptionID)
	if r.Amount != nil {
		rec.Amount = *r.Amount
	}
	if r.AutoRenew != nil {
		rec.AutoRenew = *r.AutoRenew
	}
	return rec, nil
}

func loadHistory(ctx context.Context, tx ports.DBTX, userID string) ([]domain.SubscriptionRecord, error) {
	rows, err := tx.Query(ctx, `
		SELECT plan_type, status, start_date, end_date, payment_id,
		       gateway_subscription_id, amount, auto_renew
		FROM subscription_history WHERE user_id = $1 ORDER BY seq`,
		userID,
	)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "load history", err)
	}
	defer rows.Close()

	var history []domain.SubscriptionRecord
	for rows.Next() {
		var (
			planType, status, paymentID string
			gatewaySubID                *string
			start, end                  time.Time
			amount                      int64
			autoRenew                   bool
		)
		if err := rows.Scan(&planType, &status, &start, &end, &paymentID, &gatewaySubID, &amount, &autoRenew); err != nil {
			return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "scan history", err)
		}
		rec, err := toRecord(planType, status, &start, &end)
		if err != nil {
			return nil, err
		}
		rec.PaymentID = paymentID
		rec.GatewaySubscriptionID = deref(gatewaySubID)
		rec.Amount = amount
		rec.AutoRenew = autoRenew
		history = append(history, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "iterate history", err)
	}
	return history, nil
}

func loadPayments(ctx context.Context, tx ports.DBTX, userID string) ([]domain.PaymentRecord, error) {
	rows, err := tx.Query(ctx, `
		SELECT payment_id, amount, paid_at, plan_type, status, source
		FROM payment_ledger WHERE user_id = $1 ORDER BY seq`,
		userID,
	)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "load payments", err)
	}
	defer rows.Close()

	var payments []domain.PaymentRecord
	for rows.Next() {
		var (
			p                        domain.PaymentRecord
			planType, status, source string
		)
		if err := rows.Scan(&p.ID, &p.Amount, &p.Date, &planType, &status, &source); err != nil {
			return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "scan payment", err)
		}
		plan, err := domain.ParsePlanType(planType)
		if err != nil {
			return nil, err
		}
		p.Type = plan
		p.Status = domain.PaymentStatus(status)
		p.Source = domain.PaymentSource(source)
		p.Date = p.Date.UTC()
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "iterate payments", err)
	}
	return payments, nil
}

func saveAccount(ctx context.Context, tx ports.DBTX, acc *domain.Account) error {
	historyBase := len(acc.History()) - len(acc.PendingHistory())
	for i, rec := range acc.PendingHistory() {
		if _, err := tx.Exec(ctx, `
			INSERT INTO subscription_history
			    (user_id, seq, plan_type, status, start_date, end_date, payment_id,
			     gateway_subscription_id, amount, auto_renew)
			VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9, $10)`,
			acc.UserID(), historyBase+i, string(rec.Type), string(rec.Status), rec.StartDate, rec.EndDate,
			rec.PaymentID, rec.GatewaySubscriptionID, rec.Amount, rec.AutoRenew,
		); err != nil {
			return domain.WrapError(domain.ErrorCodeDatabaseError, "append history", err)
		}
	}

	ledgerBase := len(acc.Payments()) - len(acc.PendingPayments())
	for i, p := range acc.PendingPayments() {
		tag, err := tx.Exec(ctx, `
			INSERT INTO payment_ledger (user_id, payment_id, seq, amount, paid_at, plan_type, status, source)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (user_id, payment_id) DO NOTHING`,
			acc.UserID(), p.ID, ledgerBase+i, p.Amount, p.Date, string(p.Type), string(p.Status), string(p.Source),
		)
		if err != nil {
			return domain.WrapError(domain.ErrorCodeDatabaseError, "append payment", err)
		}
		if tag.RowsAffected() == 0 {
			// the row lock makes this unreachable unless the ledger was written outside Mutate
			return domain.WrapError(domain.ErrorCodeDatabaseError, "append payment",
				fmt.Errorf("payment %s already in ledger", p.ID))
		}
	}

	cur := acc.Current()
	if cur == nil {
		return fmt.Errorf("account %s changed without a current record", acc.UserID())
	}
	var version int64
	err := tx.QueryRow(ctx, `
		UPDATE billing_accounts
		SET plan_type = $2, status = $3, start_date = $4, end_date = $5, payment_id = $6,
		    gateway_subscription_id = NULLIF($7, ''), amount = $8, auto_renew = $9,
		    version = version + 1, updated_at = now()
		WHERE user_id = $1
		RETURNING version`,
		acc.UserID(), string(cur.Type), string(cur.Status), cur.StartDate, cur.EndDate, cur.PaymentID,
		cur.GatewaySubscriptionID, cur.Amount, cur.AutoRenew,
	).Scan(&version)
	if err != nil {
		return domain.WrapError(domain.ErrorCodeDatabaseError, "update current record", err)
	}

	acc.MarkPersisted(version)
	return nil
}

func toRecord(planType, status string, start, end *time.Time) (*domain.SubscriptionRecord, error) {
	plan, err := domain.ParsePlanType(planType)
	if err != nil {
		return nil, err
	}
	st, err := domain.ParseSubscriptionStatus(status)
	if err != nil {
		return nil, err
	}
	rec := &domain.SubscriptionRecord{Type: plan, Status: st}
	if start != nil {
		rec.StartDate = start.UTC()
	}
	if end != nil {
		rec.EndDate = end.UTC()
	}
	return rec, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
