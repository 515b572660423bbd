package debtsummary

import (
	"context"
	"time"
)

// Status colors by payment recency.
const (
	StatusNone   = "none"   // paid within the last two weeks
	StatusYellow = "yellow" // 14-30 days silent
	StatusRed    = "red"    // more than 30 days silent
)

// PaymentStatus is the recency classification for one customer.
type PaymentStatus struct {
	LastPaymentDate      time.Time `json:"lastPaymentDate"`
	DaysSinceLastPayment int       `json:"daysSinceLastPayment"`
	StatusColor          string    `json:"statusColor"`
}

// LastPaymentSource yields the most recent payment date per customer.
// The ledger implements this; the deriver reads live rather than from the
// summary store so the status never lags an in-flight aggregation.
type LastPaymentSource interface {
	LastPaymentDates(ctx context.Context) (map[string]time.Time, error)
}

// StatusDeriver computes payment statuses on demand; nothing is persisted.
type StatusDeriver struct {
	source LastPaymentSource
	now    func() time.Time
}

func NewStatusDeriver(source LastPaymentSource) *StatusDeriver {
	return &StatusDeriver{source: source, now: time.Now}
}

// CalculateStatus buckets every paying customer by days since their most
// recent payment: under 14 days is fine, 14-30 turns yellow, beyond 30 red.
func (d *StatusDeriver) CalculateStatus(ctx context.Context) (map[string]PaymentStatus, error) {
	lastDates, err := d.source.LastPaymentDates(ctx)
	if err != nil {
		return nil, err
	}
	now := d.now().UTC()
	out := make(map[string]PaymentStatus, len(lastDates))
	for customerID, last := range lastDates {
		days := int(now.Sub(last).Hours() / 24)
		status := PaymentStatus{
			LastPaymentDate:      last,
			DaysSinceLastPayment: days,
		}
		switch {
		case days < 14:
			status.StatusColor = StatusNone
		case days <= 30:
			status.StatusColor = StatusYellow
		default:
			status.StatusColor = StatusRed
		}
		out[customerID] = status
	}
	return out, nil
}
