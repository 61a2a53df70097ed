// Package api builds, signs and broadcasts LanaCoin P2PKH payments.
//
// The flow of Build is:
//
//  1. Validate the request and decode every address
//  2. Decode the WIF key and pick the public key encoding that matches the
//     sender address
//  3. List the sender's UTXOs through the resolver
//  4. Select inputs and converge on a fee (at most 10 rounds)
//  5. Add recipient outputs and, above ChangeThreshold, a change output
//  6. Fetch every spent scriptPubKey (in parallel)
//  7. Sign each input against its own SIGHASH_ALL preimage
//  8. Serialize
//
// Nothing leaves the process until Send broadcasts the finished
// transaction, so a failure at any step leaves no trace on the network.
package api

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/suffix-labs/lana-tx/pkg/chaincfg"
	"github.com/suffix-labs/lana-tx/pkg/crypto"
	"github.com/suffix-labs/lana-tx/pkg/electrum"
	"github.com/suffix-labs/lana-tx/pkg/tx"
	"github.com/suffix-labs/lana-tx/pkg/ulogger"
	"github.com/suffix-labs/lana-tx/pkg/utxo"
	"golang.org/x/sync/errgroup"
)

const (
	// ChangeThreshold is the smallest leftover returned as change. Smaller
	// amounts go to the fee.
	ChangeThreshold int64 = 1000

	// MaxFeeIterations bounds the fee and selection fixed-point search.
	MaxFeeIterations = 10

	DefaultFetchConcurrency = 4
)

// Recipient is a payment to one address.
type Recipient struct {
	Address string
	Amount  int64 // satoshis
}

// BuildRequest describes a payment.
type BuildRequest struct {
	SenderAddress string
	Recipients    []Recipient
	PrivateKeyWIF string

	// Servers, when set, are used instead of the builder's resolver.
	Servers []string
}

// BuildResult is a signed transaction ready for broadcast.
type BuildResult struct {
	RawTxHex      string
	TxID          string
	InputCount    int
	OutputCount   int
	SelectedUTXOs []utxo.UTXO
	Amount        int64 // sum paid to recipients
	Fee           int64 // inputs minus outputs
	Change        int64 // 0 when no change output was added
}

// SendResult is a broadcast transaction.
type SendResult struct {
	BuildResult
	BroadcastTxID string
}

// Option configures a Builder.
type Option func(*Builder)

// WithParams selects the network. The default is mainnet.
func WithParams(params *chaincfg.Params) Option {
	return func(b *Builder) { b.params = params }
}

// WithClock sets the source of the transaction nTime.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) { b.now = now }
}

// WithLegacyAddressDecoding skips the Base58Check checksum when decoding
// sender and recipient addresses, as the legacy wallet did. A mistyped
// address then produces a valid-looking script paying to the wrong hash;
// enable only for byte-for-byte compatibility.
func WithLegacyAddressDecoding() Option {
	return func(b *Builder) { b.skipChecksum = true }
}

// WithRFC6979Nonces signs with RFC 6979 nonces instead of the legacy
// SHA-256(key || hash) derivation.
func WithRFC6979Nonces() Option {
	return func(b *Builder) { b.signOpts = append(b.signOpts, crypto.WithNonceRFC6979()) }
}

// WithFetchConcurrency bounds parallel scriptPubKey lookups.
func WithFetchConcurrency(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.fetchConcurrency = n
		}
	}
}

// WithResolverFactory sets how a resolver is created for requests that
// carry their own server list. The returned func releases it.
func WithResolverFactory(f func(servers []string) (electrum.Resolver, func(), error)) Option {
	return func(b *Builder) { b.newResolver = f }
}

// Builder builds and sends transactions. It holds no per-request state and
// may be shared between goroutines.
type Builder struct {
	resolver         electrum.Resolver
	logger           ulogger.Logger
	params           *chaincfg.Params
	now              func() time.Time
	skipChecksum     bool
	signOpts         []crypto.SignOption
	fetchConcurrency int
	newResolver      func(servers []string) (electrum.Resolver, func(), error)
}

// NewBuilder returns a Builder. resolver may be nil if every request
// carries Servers.
func NewBuilder(resolver electrum.Resolver, logger ulogger.Logger, opts ...Option) *Builder {
	b := &Builder{
		resolver:         resolver,
		logger:           logger,
		params:           &chaincfg.MainNetParams,
		now:              time.Now,
		fetchConcurrency: DefaultFetchConcurrency,
	}

	b.newResolver = func(servers []string) (electrum.Resolver, func(), error) {
		c, err := electrum.NewClient(electrum.Config{Servers: servers}, b.params, b.logger)
		if err != nil {
			return nil, nil, err
		}
		return c, c.Close, nil
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// ============================================================================
// Build
// ============================================================================

// Build selects inputs, signs and serializes a transaction without
// broadcasting it.
//
// Returns:
//   - The signed transaction and its accounting
//   - *BuildError on failure
func (b *Builder) Build(ctx context.Context, req *BuildRequest) (*BuildResult, error) {
	resolver, release, err := b.resolverFor(req)
	if err != nil {
		return nil, err
	}
	defer release()

	return b.build(ctx, resolver, req)
}

// Send builds the transaction and broadcasts it. Broadcasting the same
// signed bytes again is safe; calling Send again is not, since it selects
// and signs afresh.
func (b *Builder) Send(ctx context.Context, req *BuildRequest) (*SendResult, error) {
	resolver, release, err := b.resolverFor(req)
	if err != nil {
		return nil, err
	}
	defer release()

	built, err := b.build(ctx, resolver, req)
	if err != nil {
		return nil, err
	}

	txid, err := resolver.Broadcast(ctx, built.RawTxHex)
	if err != nil {
		return nil, newBuildError(ErrBroadcastFailed, err, "broadcasting %s", built.TxID)
	}

	if txid != built.TxID {
		b.logger.Warnf("server reported txid %s for transaction %s", txid, built.TxID)
	}

	b.logger.Infof("broadcast %s", txid)

	return &SendResult{BuildResult: *built, BroadcastTxID: txid}, nil
}

func (b *Builder) resolverFor(req *BuildRequest) (electrum.Resolver, func(), error) {
	if req != nil && len(req.Servers) > 0 {
		r, release, err := b.newResolver(req.Servers)
		if err != nil {
			return nil, nil, newBuildError(ErrResolverFailed, err, "connecting to servers")
		}
		return r, release, nil
	}

	if b.resolver == nil {
		return nil, nil, newBuildError(ErrInvalidRequest, nil, "no resolver and no servers given")
	}

	return b.resolver, func() {}, nil
}

// payment is a validated request.
type payment struct {
	senderHash [20]byte
	outputs    []*tx.Output
	amount     int64
}

func (b *Builder) build(ctx context.Context, resolver electrum.Resolver, req *BuildRequest) (*BuildResult, error) {
	p, err := b.validate(req)
	if err != nil {
		return nil, err
	}

	key, err := crypto.ParsePrivateKeyWIF(req.PrivateKeyWIF, b.params)
	if err != nil {
		return nil, newBuildError(ErrInvalidKey, err, "decoding private key")
	}

	pubKey, err := crypto.SelectSigningKey(key, req.SenderAddress, b.params)
	if err != nil {
		return nil, newBuildError(ErrKeyAddressMismatch, err, "key does not control %s", req.SenderAddress)
	}

	utxos, err := resolver.ListUnspent(ctx, req.SenderAddress)
	if err != nil {
		return nil, newBuildError(ErrResolverFailed, err, "listing unspent outputs")
	}
	if len(utxos) == 0 {
		return nil, newBuildError(ErrNoUTXOs, nil, "%s has no unspent outputs", req.SenderAddress)
	}

	sel, fee, err := b.selectWithFee(utxos, p.amount, len(p.outputs)+1)
	if err != nil {
		return nil, err
	}

	t := tx.New(b.params, uint32(b.now().Unix()))
	for _, u := range sel.Selected {
		in, err := tx.NewInput(u.TxHash, u.TxPos)
		if err != nil {
			return nil, newBuildError(ErrResolverFailed, err, "unspent output %s", u.Outpoint())
		}
		t.AddInput(in)
	}
	t.Outputs = append(t.Outputs, p.outputs...)

	change := sel.TotalValue - p.amount - fee
	if change > ChangeThreshold {
		t.AddOutput(uint64(change), tx.P2PKHScript(p.senderHash))
	} else {
		b.logger.Debugf("leftover %d added to fee", change)
		fee += change
		change = 0
	}

	prevScripts, err := b.fetchScripts(ctx, resolver, sel.Selected, p.senderHash)
	if err != nil {
		return nil, err
	}

	if err := tx.NewSigner(t, key, pubKey, b.signOpts...).SignAll(prevScripts); err != nil {
		return nil, newBuildError(ErrSigningFailed, err, "signing inputs")
	}

	rawHex, err := t.Hex()
	if err != nil {
		return nil, newBuildError(ErrSigningFailed, err, "serializing transaction")
	}
	txid, err := t.TxID()
	if err != nil {
		return nil, newBuildError(ErrSigningFailed, err, "hashing transaction")
	}

	b.logger.Infof("built %s: %d inputs, %d outputs, amount %d, fee %d, change %d",
		txid, len(t.Inputs), len(t.Outputs), p.amount, fee, change)

	return &BuildResult{
		RawTxHex:      rawHex,
		TxID:          txid,
		InputCount:    len(t.Inputs),
		OutputCount:   len(t.Outputs),
		SelectedUTXOs: sel.Selected,
		Amount:        p.amount,
		Fee:           fee,
		Change:        change,
	}, nil
}

func (b *Builder) validate(req *BuildRequest) (*payment, error) {
	if req == nil {
		return nil, newBuildError(ErrInvalidRequest, nil, "nil request")
	}
	if req.SenderAddress == "" {
		return nil, newBuildError(ErrInvalidRequest, nil, "missing sender address")
	}
	if len(req.Recipients) == 0 {
		return nil, newBuildError(ErrInvalidRequest, nil, "no recipients")
	}
	if req.PrivateKeyWIF == "" {
		return nil, newBuildError(ErrInvalidRequest, nil, "missing private key")
	}

	senderHash, err := crypto.DecodeAddress(req.SenderAddress, b.params, b.skipChecksum)
	if err != nil {
		return nil, newBuildError(ErrInvalidAddress, err, "sender address")
	}

	p := &payment{senderHash: senderHash}
	for i, r := range req.Recipients {
		if r.Amount <= 0 {
			return nil, newBuildError(ErrInvalidRequest, nil, "recipient %d: amount must be positive, got %d", i, r.Amount)
		}
		if p.amount > math.MaxInt64-r.Amount {
			return nil, newBuildError(ErrInvalidRequest, nil, "recipient amounts overflow")
		}

		h, err := crypto.DecodeAddress(r.Address, b.params, b.skipChecksum)
		if err != nil {
			return nil, newBuildError(ErrInvalidAddress, err, "recipient %d", i)
		}

		p.amount += r.Amount
		p.outputs = append(p.outputs, &tx.Output{Value: uint64(r.Amount), ScriptPubKey: tx.P2PKHScript(h)})
	}

	return p, nil
}

// selectWithFee alternates selection and fee estimation until the fee for
// the selected input count no longer grows. nOut includes the change
// output.
func (b *Builder) selectWithFee(utxos []utxo.UTXO, amount int64, nOut int) (*utxo.Selection, int64, error) {
	fee := tx.EstimateFee(1, nOut)

	for i := 0; i < MaxFeeIterations; i++ {
		sel, err := utxo.Select(utxos, amount+fee)
		if err != nil {
			return nil, 0, selectionError(err)
		}

		needed := tx.EstimateFee(len(sel.Selected), nOut)
		if needed <= fee {
			b.logger.Debugf("fee converged after %d rounds: %d inputs, fee %d", i+1, len(sel.Selected), needed)
			return sel, needed, nil
		}

		fee = needed
	}

	return nil, 0, newBuildError(ErrFeeNotConverged, nil, "fee did not converge after %d rounds", MaxFeeIterations)
}

func selectionError(err error) *BuildError {
	var selErr *utxo.SelectionError
	if !errors.As(err, &selErr) {
		return newBuildError(ErrInsufficientFunds, err, "selecting inputs")
	}

	switch selErr.Code {
	case utxo.ErrNoUTXOs:
		return newBuildError(ErrNoUTXOs, err, "no unspent outputs")
	case utxo.ErrTooManyInputs:
		return newBuildError(ErrTooManyInputs, err,
			"the %d largest outputs hold %d of the %d needed; consolidate the wallet", selErr.Selected, selErr.Available, selErr.Needed)
	default:
		return newBuildError(ErrInsufficientFunds, err, "need %d, available %d", selErr.Needed, selErr.Available)
	}
}

// fetchScripts resolves the scriptPubKey spent by each input and checks it
// pays to the sender.
func (b *Builder) fetchScripts(ctx context.Context, resolver electrum.Resolver, selected []utxo.UTXO, senderHash [20]byte) ([][]byte, error) {
	scripts := make([][]byte, len(selected))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.fetchConcurrency)

	for i, u := range selected {
		i, u := i, u // per-iteration copies (go 1.21 loop semantics)
		g.Go(func() error {
			script, err := resolver.GetScriptPubKey(gctx, u.TxHash, u.TxPos)
			if err != nil {
				return fmt.Errorf("%s: %w", u.Outpoint(), err)
			}

			h, err := tx.ExtractP2PKHHash(script)
			if err != nil {
				return fmt.Errorf("%s: %w", u.Outpoint(), err)
			}
			if h != senderHash {
				return fmt.Errorf("%s does not pay to the sender", u.Outpoint())
			}

			scripts[i] = script
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, newBuildError(ErrResolverFailed, err, "resolving previous outputs")
	}

	return scripts, nil
}
