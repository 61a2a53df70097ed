// Package utxo selects unspent outputs to fund a transaction.
//
// Selection is largest-first: it minimizes the input count, which keeps
// both the fee and the signing work low.
package utxo

import (
	"fmt"
	"sort"
)

const (
	// DustThreshold is the value below which an output is only spent when
	// nothing else can fund the transaction.
	DustThreshold int64 = 500_000

	// MaxInputs caps the inputs of a single transaction.
	MaxInputs = 20
)

// UTXO is an unspent output as reported by the resolver.
type UTXO struct {
	TxHash string `json:"tx_hash"`
	TxPos  uint32 `json:"tx_pos"`
	Value  int64  `json:"value"`
	Height int64  `json:"height"`
}

// Outpoint returns "txid:vout".
func (u UTXO) Outpoint() string {
	return fmt.Sprintf("%s:%d", u.TxHash, u.TxPos)
}

// Selection is the chosen input set.
type Selection struct {
	Selected   []UTXO
	TotalValue int64
}

// Total returns the sum of the values in utxos.
func Total(utxos []UTXO) int64 {
	var sum int64
	for _, u := range utxos {
		sum += u.Value
	}
	return sum
}

// Select picks inputs worth at least totalNeeded.
//
//  1. Empty input fails with NO_UTXOS; a wallet total below the target
//     fails with INSUFFICIENT_TOTAL_VALUE.
//  2. UTXOs are sorted by value, largest first (stable).
//  3. Dust is set aside unless that leaves nothing.
//  4. The first pass accumulates until the target or MaxInputs is reached.
//  5. A short first pass is followed by a second walk over the full sorted
//     list, dust included, skipping what is already selected.
//
// Select does not modify utxos.
func Select(utxos []UTXO, totalNeeded int64) (*Selection, error) {
	if len(utxos) == 0 {
		return nil, &SelectionError{Code: ErrNoUTXOs, Needed: totalNeeded}
	}

	total := Total(utxos)
	if total < totalNeeded {
		return nil, &SelectionError{Code: ErrInsufficientTotalValue, Needed: totalNeeded, Available: total}
	}

	sorted := make([]UTXO, len(utxos))
	copy(sorted, utxos)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Value > sorted[j].Value
	})

	working := make([]int, 0, len(sorted))
	for i, u := range sorted {
		if u.Value >= DustThreshold {
			working = append(working, i)
		}
	}
	if len(working) == 0 {
		for i := range sorted {
			working = append(working, i)
		}
	}

	var (
		picked = make(map[int]struct{}, MaxInputs)
		order  = make([]int, 0, MaxInputs)
		sum    int64
	)

	walk := func(indices []int) {
		for _, i := range indices {
			if sum >= totalNeeded || len(order) >= MaxInputs {
				return
			}
			if _, ok := picked[i]; ok {
				continue
			}
			picked[i] = struct{}{}
			order = append(order, i)
			sum += sorted[i].Value
		}
	}

	walk(working)

	if sum < totalNeeded {
		all := make([]int, len(sorted))
		for i := range all {
			all[i] = i
		}
		walk(all)
	}

	if sum < totalNeeded {
		code := ErrCannotMeetTarget
		if len(order) >= MaxInputs {
			code = ErrTooManyInputs
		}
		return nil, &SelectionError{Code: code, Needed: totalNeeded, Available: sum, Selected: len(order)}
	}

	sel := &Selection{Selected: make([]UTXO, 0, len(order)), TotalValue: sum}
	for _, i := range order {
		sel.Selected = append(sel.Selected, sorted[i])
	}
	return sel, nil
}
