package domain

import "time"

// Account is the billing aggregate of one user: the current subscription
// record, the append-only history of superseded records and the payment
// ledger. Every transition pushes the superseded current record onto history
// before replacing it; history and ledger entries are never modified.
type Account struct {
	current  *SubscriptionRecord
	userID   string
	history  []SubscriptionRecord
	payments []PaymentRecord
	version  int64

	// lengths at load time; stores persist only entries past these marks
	persistedHistory  int
	persistedPayments int
}

// NewAccount creates an empty account for userID
func NewAccount(userID string) *Account {
	return &Account{userID: userID}
}

// RestoreAccount rebuilds an account from persisted state
func RestoreAccount(userID string, current *SubscriptionRecord, history []SubscriptionRecord, payments []PaymentRecord, version int64) *Account {
	a := &Account{
		userID:   userID,
		history:  append([]SubscriptionRecord(nil), history...),
		payments: append([]PaymentRecord(nil), payments...),
		version:  version,
	}
	if current != nil {
		c := *current
		a.current = &c
	}
	a.persistedHistory = len(a.history)
	a.persistedPayments = len(a.payments)
	return a
}

// Clone returns a deep copy carrying the same persistence marks
func (a *Account) Clone() *Account {
	c := RestoreAccount(a.userID, a.current, a.history, a.payments, a.version)
	c.persistedHistory = a.persistedHistory
	c.persistedPayments = a.persistedPayments
	return c
}

func (a *Account) UserID() string { return a.userID }

func (a *Account) Version() int64 { return a.version }

// Current returns a copy of the current record, nil when no plan was ever selected
func (a *Account) Current() *SubscriptionRecord {
	if a.current == nil {
		return nil
	}
	c := *a.current
	return &c
}

// History returns the superseded records in chronological order
func (a *Account) History() []SubscriptionRecord {
	return append([]SubscriptionRecord(nil), a.history...)
}

// Payments returns the ledger in append order
func (a *Account) Payments() []PaymentRecord {
	return append([]PaymentRecord(nil), a.payments...)
}

// HasPayment reports whether the ledger already holds paymentID
func (a *Account) HasPayment(paymentID string) bool {
	for i := range a.payments {
		if a.payments[i].ID == paymentID {
			return true
		}
	}
	return false
}

// PendingHistory returns history entries appended since the account was loaded
func (a *Account) PendingHistory() []SubscriptionRecord {
	return append([]SubscriptionRecord(nil), a.history[a.persistedHistory:]...)
}

// PendingPayments returns ledger entries appended since the account was loaded
func (a *Account) PendingPayments() []PaymentRecord {
	return append([]PaymentRecord(nil), a.payments[a.persistedPayments:]...)
}

// MarkPersisted records that all pending entries were written at version
func (a *Account) MarkPersisted(version int64) {
	a.version = version
	a.persistedHistory = len(a.history)
	a.persistedPayments = len(a.payments)
}

func (a *Account) supersede(next SubscriptionRecord) {
	if a.current != nil {
		a.history = append(a.history, *a.current)
	}
	a.current = &next
}

// ApplyPayment makes a confirmed payment the current plan. It is an
// idempotent upsert keyed by the payment id: when the ledger already holds
// act.PaymentID nothing changes and false is returned. Both the client and
// the webhook writer go through here.
func (a *Account) ApplyPayment(act Activation) (bool, error) {
	if err := act.Validate(); err != nil {
		return false, err
	}
	if a.HasPayment(act.PaymentID) {
		return false, nil
	}

	start := NormalizeTime(act.StartDate)
	end, err := ComputeEndDate(act.Plan, start)
	if err != nil {
		return false, err
	}

	a.supersede(SubscriptionRecord{
		Type:                  act.Plan,
		Status:                SubscriptionStatusActive,
		StartDate:             start,
		EndDate:               end,
		PaymentID:             act.PaymentID,
		GatewaySubscriptionID: act.GatewaySubscriptionID,
		Amount:                act.Amount,
		AutoRenew:             act.Plan.Renewable(),
	})
	a.payments = append(a.payments, PaymentRecord{
		ID:     act.PaymentID,
		Amount: act.Amount,
		Date:   start,
		Type:   act.Plan,
		Status: PaymentStatusSucceeded,
		Source: act.Source,
	})
	return true, nil
}

// Renew extends a lapsed Active Monthly or Annual plan from now and appends a
// simulated ledger entry. It returns false when the current record is not
// eligible: no plan, not Active, not lapsed, or a Trial.
func (a *Account) Renew(now time.Time) (bool, error) {
	cur := a.current
	if cur == nil || !cur.IsActive() || !IsLapsed(cur, now) || !cur.Type.Renewable() {
		return false, nil
	}

	now = NormalizeTime(now)
	paymentID := RenewalPaymentID(now)
	if a.HasPayment(paymentID) {
		return false, nil
	}
	end, err := ComputeEndDate(cur.Type, now)
	if err != nil {
		return false, err
	}

	next := *cur
	next.StartDate = now
	next.EndDate = end
	next.PaymentID = paymentID
	next.AutoRenew = true
	a.supersede(next)

	a.payments = append(a.payments, PaymentRecord{
		ID:     paymentID,
		Amount: cur.Amount,
		Date:   now,
		Type:   cur.Type,
		Status: PaymentStatusSimulated,
		Source: PaymentSourceRenewal,
	})
	return true, nil
}

// Cancel stops auto renewal without touching the end date, so access lasts
// through the grace period. Cancelling a cancelled plan is a no-op.
func (a *Account) Cancel() (bool, error) {
	cur := a.current
	if cur == nil {
		return false, ErrSubscriptionNotFound
	}
	switch cur.Status {
	case SubscriptionStatusCancelled:
		return false, nil
	case SubscriptionStatusExpired:
		return false, ErrNoActiveSubscription
	}

	next := *cur
	next.Status = SubscriptionStatusCancelled
	next.AutoRenew = false
	a.supersede(next)
	return true, nil
}

// Expire moves a lapsed Trial or a lapsed Cancelled record to Expired.
// Lapsed Monthly and Annual Active records are left for Renew.
func (a *Account) Expire(now time.Time) bool {
	if !a.ExpiryDue(now) {
		return false
	}
	next := *a.current
	next.Status = SubscriptionStatusExpired
	next.AutoRenew = false
	a.supersede(next)
	return true
}

// ExpiryDue reports whether Expire would change the account at now
func (a *Account) ExpiryDue(now time.Time) bool {
	cur := a.current
	if cur == nil || !IsLapsed(cur, now) {
		return false
	}
	switch cur.Status {
	case SubscriptionStatusCancelled:
		return true
	case SubscriptionStatusActive:
		return !cur.Type.Renewable()
	}
	return false
}
