package ledger

import (
	"slices"
	"time"

	"billtrack/internal/core"
)

// Snapshot is an immutable view of a principal's records at one refresh.
type Snapshot struct {
	Principal   string
	Version     uint64
	RefreshedAt time.Time
	records     []core.Transaction
}

func newSnapshot(principal string, version uint64, at time.Time, records []core.Transaction) Snapshot {
	own := slices.Clone(records)
	slices.SortStableFunc(own, func(a, b core.Transaction) int {
		return b.OccurredAt.Compare(a.OccurredAt)
	})
	return Snapshot{Principal: principal, Version: version, RefreshedAt: at, records: own}
}

// Records returns a copy of the records, newest first.
func (s Snapshot) Records() []core.Transaction {
	if len(s.records) == 0 {
		return []core.Transaction{}
	}
	return slices.Clone(s.records)
}

func (s Snapshot) Len() int {
	return len(s.records)
}

// Find looks up a record by id.
func (s Snapshot) Find(id string) (core.Transaction, bool) {
	for _, r := range s.records {
		if r.ID == id {
			return r, true
		}
	}
	return core.Transaction{}, false
}
