package ledger

import (
	"context"

	"github.com/shopspring/decimal"

	"billtrack/internal/core"
)

// Source reads the remote transaction collection of one principal.
// Implementations return records ordered by OccurredAt descending.
type Source interface {
	Fetch(ctx context.Context, principal string) ([]core.Transaction, error)
}

// DueWriter performs the targeted due update. It returns an error wrapping
// core.ErrNotFound when no record of principal has the given id.
type DueWriter interface {
	UpdateDue(ctx context.Context, principal, id string, due decimal.Decimal) error
}

// Unsubscribe releases a change feed subscription.
type Unsubscribe func()

// ChangeFeed delivers a trigger for every remote insert, update or delete of
// principal's records. onChange may be called from any goroutine.
type ChangeFeed interface {
	Subscribe(ctx context.Context, principal string, onChange func()) (Unsubscribe, error)
}

// LossReportingFeed is a ChangeFeed whose subscriptions can fail after they
// started. onLost runs at most once; onChange is not called after it.
type LossReportingFeed interface {
	ChangeFeed
	SubscribeWithLoss(ctx context.Context, principal string, onChange func(), onLost func(error)) (Unsubscribe, error)
}
