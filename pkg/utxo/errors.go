package utxo

import "fmt"

// Selection error codes.
const (
	ErrNoUTXOs                = "NO_UTXOS"
	ErrInsufficientTotalValue = "INSUFFICIENT_TOTAL_VALUE"
	ErrCannotMeetTarget       = "CANNOT_MEET_TARGET"
	ErrTooManyInputs          = "TOO_MANY_INPUTS"
)

// SelectionError reports why no input set could be chosen. Needed and
// Available are in satoshis; Available is the wallet total for
// INSUFFICIENT_TOTAL_VALUE and the best reachable total otherwise.
type SelectionError struct {
	Code      string
	Needed    int64
	Available int64
	Selected  int // inputs picked before giving up
}

func (e *SelectionError) Error() string {
	switch e.Code {
	case ErrNoUTXOs:
		return "selection error [NO_UTXOS]: no unspent outputs available"
	case ErrTooManyInputs:
		return fmt.Sprintf("selection error [%s]: need %d but %d inputs (the maximum) only reach %d; consolidate the wallet",
			e.Code, e.Needed, e.Selected, e.Available)
	default:
		return fmt.Sprintf("selection error [%s]: need %d, available %d", e.Code, e.Needed, e.Available)
	}
}

// Is matches another *SelectionError by code.
func (e *SelectionError) Is(target error) bool {
	t, ok := target.(*SelectionError)
	return ok && t.Code == e.Code
}
