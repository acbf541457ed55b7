// Package dedup filters exact repeats out of an incoming transaction batch.
// Matching is by composite key only; near-duplicates are deliberately not
// detected.
package dedup

import (
	"time"

	"github.com/rmassis/fiflow/internal/domain/transaction"
)

// Window returns the inclusive date range spanned by a batch. The store read
// backing deduplication is bounded by this range, never the whole history.
func Window(txs []transaction.Transaction) (time.Time, time.Time, bool) {
	if len(txs) == 0 {
		return time.Time{}, time.Time{}, false
	}
	min, max := txs[0].Date, txs[0].Date
	for _, tx := range txs[1:] {
		if tx.Date.Before(min) {
			min = tx.Date
		}
		if tx.Date.After(max) {
			max = tx.Date
		}
	}
	return min, max, true
}

// Filter splits incoming transactions into fresh ones and a duplicate count.
// A transaction is a duplicate when its composite key already exists among
// the stored window. Keys are not added to the set as the batch is scanned,
// so repeats inside one batch pass through untouched; only the store decides
// what already exists.
func Filter(incoming, existing []transaction.Transaction) ([]transaction.Transaction, int) {
	seen := make(map[string]struct{}, len(existing))
	for _, tx := range existing {
		seen[tx.DedupKey()] = struct{}{}
	}

	fresh := make([]transaction.Transaction, 0, len(incoming))
	duplicates := 0
	for _, tx := range incoming {
		if _, ok := seen[tx.DedupKey()]; ok {
			duplicates++
			continue
		}
		fresh = append(fresh, tx)
	}
	return fresh, duplicates
}
