package tx

// Size heuristic for a P2PKH transaction, in bytes.
const (
	InputSizeEstimate  = 180
	OutputSizeEstimate = 34
	BaseSizeEstimate   = 10

	// FeePerByte is the relay fee rate in satoshis per byte.
	FeePerByte = 100
)

// EstimateFee returns round((nIn*180 + nOut*34 + 10) * 100 * 1.5): the
// size heuristic at FeePerByte with a 50% margin.
func EstimateFee(nIn, nOut int) int64 {
	size := int64(nIn*InputSizeEstimate + nOut*OutputSizeEstimate + BaseSizeEstimate)
	// size * 100 * 1.5 is always an integer, so the rounding is exact.
	return size * FeePerByte * 3 / 2
}
