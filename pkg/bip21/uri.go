// Package bip21 implements LanaCoin payment request URIs in the BIP 21
// style.
//
// URI Format:
//
//	lana:<address>?amount=<amount>&label=<label>&message=<message>
//
// Multiple recipients are supported with indexed parameters:
//
//	lana:?address.1=<addr1>&amount.1=<amt1>&address.2=<addr2>&amount.2=<amt2>
//
// Amounts are decimal LANA strings and are converted to satoshis without
// floating point.
package bip21

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/suffix-labs/lana-tx/pkg/chaincfg"
	"github.com/suffix-labs/lana-tx/pkg/crypto"
)

const (
	amountDecimals = 8
	maxIndex       = 9999
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrWrongScheme     = errors.New("wrong URI scheme")
	ErrUnknownRequired = errors.New("unsupported required parameter")
)

// PaymentRequest is a parsed payment URI.
type PaymentRequest struct {
	Payments []Payment
}

// Payment is one recipient of a payment request.
type Payment struct {
	Address string
	Amount  *int64 // satoshis; nil lets the payer choose
	Label   *string
	Message *string
}

// ParseOption configures Parse.
type ParseOption func(*parseConfig)

type parseConfig struct {
	skipChecksum bool
}

// WithLegacyAddresses accepts addresses whose checksum does not verify,
// matching the builder's legacy decoding. Length and version are still
// checked.
func WithLegacyAddresses() ParseOption {
	return func(c *parseConfig) {
		c.skipChecksum = true
	}
}

// Parse parses a payment URI for the network. The scheme prefix is
// optional; every address must be valid for params.
//
// Example:
//
//	req, err := bip21.Parse("lana:LVtW...?amount=1.5&label=coffee", &chaincfg.MainNetParams)
func Parse(uri string, params *chaincfg.Params, opts ...ParseOption) (*PaymentRequest, error) {
	var cfg parseConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	uri = strings.TrimSpace(uri)

	head, _, _ := strings.Cut(uri, "?")
	if i := strings.Index(head, ":"); i >= 0 {
		if !strings.EqualFold(uri[:i], params.URIScheme) {
			return nil, fmt.Errorf("%w %q, want %q", ErrWrongScheme, uri[:i], params.URIScheme)
		}
		uri = uri[i+1:]
	}

	baseAddress, query, _ := strings.Cut(uri, "?")

	values, err := url.ParseQuery(query)
	if err != nil {
		return nil, fmt.Errorf("failed to parse query: %w", err)
	}

	for key := range values {
		name, _, _ := strings.Cut(key, ".")
		if strings.HasPrefix(name, "req-") {
			return nil, fmt.Errorf("%w: %s", ErrUnknownRequired, key)
		}
	}

	var payments []Payment
	if hasIndexedParams(values) {
		if baseAddress != "" {
			values.Set("address", baseAddress)
		}
		payments, err = parseIndexedPayments(values)
	} else {
		var p Payment
		p, err = parsePayment(values, "")
		if baseAddress != "" {
			p.Address = baseAddress
		}
		payments = []Payment{p}
	}
	if err != nil {
		return nil, err
	}

	for i, p := range payments {
		if p.Address == "" {
			return nil, fmt.Errorf("payment %d missing address", i)
		}
		if _, err := crypto.DecodeAddress(p.Address, params, cfg.skipChecksum); err != nil {
			return nil, fmt.Errorf("payment %d: %w", i, err)
		}
		payments[i].Address = crypto.NormalizeAddress(p.Address)
	}

	return &PaymentRequest{Payments: payments}, nil
}

// parsePayment reads the parameters carrying suffix (empty or ".N").
func parsePayment(values url.Values, suffix string) (Payment, error) {
	p := Payment{Address: values.Get("address" + suffix)}

	if s := values.Get("amount" + suffix); s != "" {
		amount, err := ParseAmount(s)
		if err != nil {
			return p, err
		}
		p.Amount = &amount
	}

	if label := values.Get("label" + suffix); label != "" {
		p.Label = &label
	}

	if message := values.Get("message" + suffix); message != "" {
		p.Message = &message
	}

	return p, nil
}

// parseIndexedPayments reads address.N style parameters in index order.
// Index 0 may be written without a suffix.
func parseIndexedPayments(values url.Values) ([]Payment, error) {
	seen := map[int]struct{}{}
	for key := range values {
		if idx := extractIndex(key); idx >= 0 {
			seen[idx] = struct{}{}
		}
	}
	if values.Get("address") != "" {
		seen[0] = struct{}{}
	}

	indices := make([]int, 0, len(seen))
	for idx := range seen {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	payments := make([]Payment, 0, len(indices))
	for _, idx := range indices {
		p, err := parsePayment(values, fmt.Sprintf(".%d", idx))
		if err != nil {
			return nil, fmt.Errorf("payment %d: %w", idx, err)
		}

		if idx == 0 {
			plain, err := parsePayment(values, "")
			if err != nil {
				return nil, fmt.Errorf("payment 0: %w", err)
			}
			p = mergePayment(plain, p)
		}

		if p.Address == "" {
			return nil, fmt.Errorf("payment %d missing address", idx)
		}
		payments = append(payments, p)
	}

	return payments, nil
}

func mergePayment(base, indexed Payment) Payment {
	if indexed.Address == "" {
		indexed.Address = base.Address
	}
	if indexed.Amount == nil {
		indexed.Amount = base.Amount
	}
	if indexed.Label == nil {
		indexed.Label = base.Label
	}
	if indexed.Message == nil {
		indexed.Message = base.Message
	}
	return indexed
}

func hasIndexedParams(values url.Values) bool {
	for key := range values {
		if extractIndex(key) >= 0 {
			return true
		}
	}
	return false
}

// extractIndex returns N for "name.N", or -1.
func extractIndex(key string) int {
	_, suffix, ok := strings.Cut(key, ".")
	if !ok {
		return -1
	}

	idx, err := strconv.Atoi(suffix)
	if err != nil || idx < 0 || idx > maxIndex {
		return -1
	}
	return idx
}

// ParseAmount converts a decimal LANA amount ("1", "0.5", "12.34567890")
// to satoshis. At most 8 fractional digits are accepted.
func ParseAmount(s string) (int64, error) {
	whole, frac, hasDot := strings.Cut(s, ".")
	if whole == "" && frac == "" {
		return 0, fmt.Errorf("%w %q", ErrInvalidAmount, s)
	}
	if hasDot && frac == "" {
		return 0, fmt.Errorf("%w %q: trailing decimal point", ErrInvalidAmount, s)
	}
	if len(frac) > amountDecimals {
		return 0, fmt.Errorf("%w %q: more than %d decimals", ErrInvalidAmount, s, amountDecimals)
	}
	if !isDigits(whole) || !isDigits(frac) {
		return 0, fmt.Errorf("%w %q", ErrInvalidAmount, s)
	}

	var coins int64
	if whole != "" {
		var err error
		coins, err = strconv.ParseInt(whole, 10, 64)
		if err != nil || coins > math.MaxInt64/chaincfg.SatoshiPerCoin {
			return 0, fmt.Errorf("%w %q: out of range", ErrInvalidAmount, s)
		}
	}

	var sats int64
	if frac != "" {
		padded := frac + strings.Repeat("0", amountDecimals-len(frac))
		sats, _ = strconv.ParseInt(padded, 10, 64)
	}

	total := coins * chaincfg.SatoshiPerCoin
	if total > math.MaxInt64-sats {
		return 0, fmt.Errorf("%w %q: out of range", ErrInvalidAmount, s)
	}
	return total + sats, nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// FormatAmount renders satoshis as a decimal LANA string without trailing
// zeros.
func FormatAmount(sats int64) string {
	sign := ""
	if sats < 0 {
		sign = "-"
		sats = -sats
	}

	s := fmt.Sprintf("%s%d.%08d", sign, sats/chaincfg.SatoshiPerCoin, sats%chaincfg.SatoshiPerCoin)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

// ============================================================================
// Encoding
// ============================================================================

// Encode renders the request as a URI. Single payments use the plain form,
// several payments the indexed form.
func (req *PaymentRequest) Encode(params *chaincfg.Params) string {
	scheme := params.URIScheme + ":"

	switch len(req.Payments) {
	case 0:
		return scheme
	case 1:
		p := req.Payments[0]
		values := encodeParams(p, "")
		uri := scheme + p.Address
		if len(values) > 0 {
			uri += "?" + values.Encode()
		}
		return uri
	}

	values := url.Values{}
	for i, p := range req.Payments {
		suffix := fmt.Sprintf(".%d", i)
		values.Set("address"+suffix, p.Address)
		for k, v := range encodeParams(p, suffix) {
			values[k] = v
		}
	}
	return scheme + "?" + values.Encode()
}

func encodeParams(p Payment, suffix string) url.Values {
	values := url.Values{}
	if p.Amount != nil {
		values.Set("amount"+suffix, FormatAmount(*p.Amount))
	}
	if p.Label != nil {
		values.Set("label"+suffix, *p.Label)
	}
	if p.Message != nil {
		values.Set("message"+suffix, *p.Message)
	}
	return values
}
