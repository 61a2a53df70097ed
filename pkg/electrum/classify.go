package electrum

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrBroadcastRejected        = errors.New("broadcast rejected")
	ErrInvalidBroadcastResponse = errors.New("invalid broadcast response")
)

// rejectionMarkers are substrings that relays put in plain-text rejection
// messages. Servers that report rejections only as text (no JSON-RPC error
// object) are classified with this list.
var rejectionMarkers = []string{
	"TX rejected",
	"error",
	"Error",
	"failed",
	"Failed",
	"-22",
}

// ClassifyBroadcastResponse turns a broadcast response into a txid or an
// error. resp may be a raw JSON-RPC response line, a JSON string, or plain
// text. A JSON-RPC error object is checked first, then the rejection
// markers; what remains must be a 64 character hex txid.
func ClassifyBroadcastResponse(resp string) (string, error) {
	text := strings.TrimSpace(resp)

	if strings.HasPrefix(text, "{") {
		var r response
		if err := json.Unmarshal([]byte(text), &r); err == nil {
			if rpcErr := r.rpcError(); rpcErr != nil {
				return "", fmt.Errorf("%w: %w", ErrBroadcastRejected, rpcErr)
			}

			var result string
			if err := json.Unmarshal(r.Result, &result); err != nil {
				return "", fmt.Errorf("%w: result is not a string: %s", ErrInvalidBroadcastResponse, r.Result)
			}
			text = strings.TrimSpace(result)
		}
	} else if strings.HasPrefix(text, `"`) {
		var s string
		if err := json.Unmarshal([]byte(text), &s); err == nil {
			text = strings.TrimSpace(s)
		}
	}

	for _, marker := range rejectionMarkers {
		if strings.Contains(text, marker) {
			return "", fmt.Errorf("%w: %s", ErrBroadcastRejected, text)
		}
	}

	if !isTxID(text) {
		return "", fmt.Errorf("%w: %q", ErrInvalidBroadcastResponse, text)
	}

	return strings.ToLower(text), nil
}

func isTxID(s string) bool {
	if len(s) != 64 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !('0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F') {
			return false
		}
	}
	return true
}
