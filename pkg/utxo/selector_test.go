package utxo

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func utxos(values ...int64) []UTXO {
	out := make([]UTXO, len(values))
	for i, v := range values {
		out[i] = UTXO{TxHash: fmt.Sprintf("%064x", i+1), TxPos: uint32(i), Value: v}
	}
	return out
}

func values(sel *Selection) []int64 {
	out := make([]int64, len(sel.Selected))
	for i, u := range sel.Selected {
		out[i] = u.Value
	}
	return out
}

func requireCode(t *testing.T, err error, code string) *SelectionError {
	t.Helper()
	var selErr *SelectionError
	require.True(t, errors.As(err, &selErr), "expected *SelectionError, got %v", err)
	require.Equal(t, code, selErr.Code)
	return selErr
}

func TestSelectLargestFirst(t *testing.T) {
	// Every value is dust, so the dust filter falls back to the full set.
	sel, err := Select(utxos(100, 50, 30), 120)
	require.NoError(t, err)
	assert.Equal(t, []int64{100, 50}, values(sel))
	assert.Equal(t, int64(150), sel.TotalValue)
}

func TestSelectErrors(t *testing.T) {
	t.Run("no utxos", func(t *testing.T) {
		_, err := Select(nil, 1)
		requireCode(t, err, ErrNoUTXOs)
	})

	t.Run("insufficient total", func(t *testing.T) {
		_, err := Select(utxos(1_000_000, 2_000_000), 5_000_000)
		selErr := requireCode(t, err, ErrInsufficientTotalValue)
		assert.Equal(t, int64(5_000_000), selErr.Needed)
		assert.Equal(t, int64(3_000_000), selErr.Available)
		assert.ErrorIs(t, err, &SelectionError{Code: ErrInsufficientTotalValue})
	})

	t.Run("too many inputs", func(t *testing.T) {
		vals := make([]int64, 25)
		for i := range vals {
			vals[i] = 1_000_000
		}

		_, err := Select(utxos(vals...), 25_000_000)
		selErr := requireCode(t, err, ErrTooManyInputs)
		assert.Equal(t, MaxInputs, selErr.Selected)
		assert.Equal(t, int64(20_000_000), selErr.Available)
		assert.Contains(t, err.Error(), "consolidate")
	})
}

func TestSelectEdgeCases(t *testing.T) {
	t.Run("exact match", func(t *testing.T) {
		sel, err := Select(utxos(3_000_000, 2_000_000), 5_000_000)
		require.NoError(t, err)
		assert.Equal(t, int64(5_000_000), sel.TotalValue)
		assert.Len(t, sel.Selected, 2)
	})

	t.Run("single utxo exceeds target", func(t *testing.T) {
		sel, err := Select(utxos(600_000, 90_000_000, 700_000), 1_000_000)
		require.NoError(t, err)
		assert.Equal(t, []int64{90_000_000}, values(sel))
	})

	t.Run("dust skipped when not needed", func(t *testing.T) {
		sel, err := Select(utxos(499_999, 800_000, 700_000), 1_200_000)
		require.NoError(t, err)
		assert.Equal(t, []int64{800_000, 700_000}, values(sel))
	})

	t.Run("dust used in second pass", func(t *testing.T) {
		sel, err := Select(utxos(400_000, 800_000, 300_000), 1_100_000)
		require.NoError(t, err)
		assert.Equal(t, []int64{800_000, 400_000}, values(sel))
	})

	t.Run("all dust", func(t *testing.T) {
		sel, err := Select(utxos(1000, 2000, 3000), 4500)
		require.NoError(t, err)
		assert.Equal(t, []int64{3000, 2000}, values(sel))
	})

	t.Run("stable order for equal values", func(t *testing.T) {
		in := utxos(1_000_000, 1_000_000, 1_000_000)
		sel, err := Select(in, 2_000_000)
		require.NoError(t, err)
		assert.Equal(t, in[0].Outpoint(), sel.Selected[0].Outpoint())
		assert.Equal(t, in[1].Outpoint(), sel.Selected[1].Outpoint())
	})

	t.Run("input not modified", func(t *testing.T) {
		in := utxos(1, 3, 2)
		_, err := Select(in, 4)
		require.NoError(t, err)
		assert.Equal(t, []int64{1, 3, 2}, []int64{in[0].Value, in[1].Value, in[2].Value})
	})

	t.Run("cap reached with dust padding", func(t *testing.T) {
		vals := []int64{5_000_000}
		for i := 0; i < 30; i++ {
			vals = append(vals, 10_000)
		}
		sel, err := Select(utxos(vals...), 5_100_000)
		require.NoError(t, err)
		assert.Len(t, sel.Selected, 11)
	})
}
