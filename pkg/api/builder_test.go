package api

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suffix-labs/lana-tx/pkg/chaincfg"
	"github.com/suffix-labs/lana-tx/pkg/codec"
	"github.com/suffix-labs/lana-tx/pkg/crypto"
	"github.com/suffix-labs/lana-tx/pkg/electrum"
	"github.com/suffix-labs/lana-tx/pkg/tx"
	"github.com/suffix-labs/lana-tx/pkg/ulogger"
	"github.com/suffix-labs/lana-tx/pkg/utxo"
)

var (
	params    = &chaincfg.MainNetParams
	fixedTime = time.Unix(1_700_000_000, 0)
)

type wallet struct {
	key     *crypto.PrivateKey
	wif     string
	address string
	script  []byte
}

func newWallet(t *testing.T, hexKey string, compressed bool) *wallet {
	t.Helper()

	key, err := crypto.PrivateKeyFromHex(hexKey)
	require.NoError(t, err)

	var pub []byte
	if compressed {
		c := key.PublicKeyCompressed()
		pub = c[:]
	} else {
		u := key.PublicKeyUncompressed()
		pub = u[:]
	}

	return &wallet{
		key:     key,
		wif:     key.EncodeWIF(compressed, params),
		address: crypto.PublicKeyToAddress(pub, params),
		script:  tx.P2PKHScript(crypto.Hash160(pub)),
	}
}

// fakeResolver serves a fixed UTXO set whose outputs all pay to one script.
type fakeResolver struct {
	mu          sync.Mutex
	utxos       []utxo.UTXO
	script      []byte
	listErr     error
	scriptErr   error
	broadcastFn func(rawHex string) (string, error)
	broadcasts  []string
	lookups     int
}

func (f *fakeResolver) ListUnspent(_ context.Context, _ string) ([]utxo.UTXO, error) {
	return f.utxos, f.listErr
}

func (f *fakeResolver) GetScriptPubKey(_ context.Context, txid string, vout uint32) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++

	if f.scriptErr != nil {
		return nil, f.scriptErr
	}
	for _, u := range f.utxos {
		if u.TxHash == txid && u.TxPos == vout {
			return f.script, nil
		}
	}
	return nil, tx.ErrOutputNotFound
}

func (f *fakeResolver) Broadcast(_ context.Context, rawHex string) (string, error) {
	f.mu.Lock()
	f.broadcasts = append(f.broadcasts, rawHex)
	f.mu.Unlock()

	if f.broadcastFn != nil {
		return f.broadcastFn(rawHex)
	}
	parsed, err := tx.ParseHex(rawHex)
	if err != nil {
		return "", err
	}
	return parsed.TxID()
}

func coins(values ...int64) []utxo.UTXO {
	out := make([]utxo.UTXO, len(values))
	for i, v := range values {
		out[i] = utxo.UTXO{TxHash: fmt.Sprintf("%064x", i+1), TxPos: uint32(i % 3), Value: v, Height: 1000}
	}
	return out
}

func requireBuildError(t *testing.T, err error, code string) *BuildError {
	t.Helper()
	var buildErr *BuildError
	require.True(t, errors.As(err, &buildErr), "expected *BuildError, got %v", err)
	require.Equal(t, code, buildErr.Code, buildErr.Error())
	return buildErr
}

func TestBuildConservesValue(t *testing.T) {
	sender := newWallet(t, "a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1", true)
	recipient := newWallet(t, "b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2", true)

	resolver := &fakeResolver{utxos: coins(10_000_000), script: sender.script}
	builder := NewBuilder(resolver, ulogger.NewVerboseTestLogger(t), WithClock(func() time.Time { return fixedTime }))

	res, err := builder.Build(context.Background(), &BuildRequest{
		SenderAddress: sender.address,
		Recipients:    []Recipient{{Address: recipient.address, Amount: 5_000_000}},
		PrivateKeyWIF: sender.wif,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, res.InputCount)
	assert.Equal(t, 2, res.OutputCount)
	assert.Equal(t, tx.EstimateFee(1, 2), res.Fee)
	assert.Equal(t, int64(10_000_000-5_000_000)-res.Fee, res.Change)

	parsed, err := tx.ParseHex(res.RawTxHex)
	require.NoError(t, err)
	assert.Equal(t, uint32(fixedTime.Unix()), parsed.Time)
	assert.Equal(t, int32(1), parsed.Version)

	// Outputs plus fee equal the input value exactly.
	assert.Equal(t, uint64(10_000_000), parsed.OutputTotal()+uint64(res.Fee))
	assert.Equal(t, recipient.script, parsed.Outputs[0].ScriptPubKey)
	assert.Equal(t, uint64(5_000_000), parsed.Outputs[0].Value)
	assert.Equal(t, sender.script, parsed.Outputs[1].ScriptPubKey)

	// The scriptSig recovers a key that hashes to the sender address.
	sig, pub, err := tx.ExtractP2PKHPubKey(parsed.Inputs[0].ScriptSig)
	require.NoError(t, err)
	assert.Equal(t, sender.address, crypto.PublicKeyToAddress(pub, params))

	sighash, err := parsed.SignatureHash(0, sender.script, crypto.SigHashAll)
	require.NoError(t, err)
	assert.True(t, crypto.VerifySignature(pub, sighash, sig[:len(sig)-1]))

	txid, err := parsed.TxID()
	require.NoError(t, err)
	assert.Equal(t, txid, res.TxID)
	assert.Empty(t, resolver.broadcasts, "Build never broadcasts")
}

func TestBuildUncompressedSender(t *testing.T) {
	sender := newWallet(t, "c3c3c3c3c3c3c3c3c3c3c3c3c3c3c3c3c3c3c3c3c3c3c3c3c3c3c3c3c3c3c3c3", false)
	recipient := newWallet(t, "b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2", true)

	resolver := &fakeResolver{utxos: coins(3_000_000, 2_000_000), script: sender.script}
	builder := NewBuilder(resolver, ulogger.TestLogger{})

	res, err := builder.Build(context.Background(), &BuildRequest{
		SenderAddress: sender.address,
		Recipients:    []Recipient{{Address: recipient.address, Amount: 4_000_000}},
		PrivateKeyWIF: sender.wif,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.InputCount)

	parsed, err := tx.ParseHex(res.RawTxHex)
	require.NoError(t, err)
	for i, in := range parsed.Inputs {
		sig, pub, err := tx.ExtractP2PKHPubKey(in.ScriptSig)
		require.NoError(t, err)
		assert.Len(t, pub, crypto.PubKeyUncompressedLen)

		sighash, err := parsed.SignatureHash(i, sender.script, crypto.SigHashAll)
		require.NoError(t, err)
		assert.True(t, crypto.VerifySignature(pub, sighash, sig[:len(sig)-1]), "input %d", i)
	}
	assert.Equal(t, 2, resolver.lookups)
}

func TestBuildDeterministic(t *testing.T) {
	sender := newWallet(t, "a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1", true)
	recipient := newWallet(t, "b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2", true)
	req := &BuildRequest{
		SenderAddress: sender.address,
		Recipients:    []Recipient{{Address: recipient.address, Amount: 1_000_000}},
		PrivateKeyWIF: sender.wif,
	}
	clock := WithClock(func() time.Time { return fixedTime })

	resolver := &fakeResolver{utxos: coins(5_000_000), script: sender.script}
	a, err := NewBuilder(resolver, ulogger.TestLogger{}, clock).Build(context.Background(), req)
	require.NoError(t, err)
	b, err := NewBuilder(resolver, ulogger.TestLogger{}, clock).Build(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, a.RawTxHex, b.RawTxHex)

	c, err := NewBuilder(resolver, ulogger.TestLogger{}, clock, WithRFC6979Nonces()).Build(context.Background(), req)
	require.NoError(t, err)
	assert.NotEqual(t, a.RawTxHex, c.RawTxHex)
}

func TestBuildChangeBelowThresholdGoesToFee(t *testing.T) {
	sender := newWallet(t, "a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1", true)
	recipient := newWallet(t, "b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2", true)

	fee := tx.EstimateFee(1, 2)
	resolver := &fakeResolver{utxos: coins(1_000_000 + fee + 500), script: sender.script}

	res, err := NewBuilder(resolver, ulogger.TestLogger{}).Build(context.Background(), &BuildRequest{
		SenderAddress: sender.address,
		Recipients:    []Recipient{{Address: recipient.address, Amount: 1_000_000}},
		PrivateKeyWIF: sender.wif,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.OutputCount)
	assert.Zero(t, res.Change)
	assert.Equal(t, fee+500, res.Fee)
}

func TestBuildFeeLoopAddsInputs(t *testing.T) {
	sender := newWallet(t, "a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1", true)
	recipient := newWallet(t, "b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2", true)

	// 5,000,000 alone covers the amount but not the fee.
	resolver := &fakeResolver{utxos: coins(5_000_000, 600_000, 600_000), script: sender.script}

	res, err := NewBuilder(resolver, ulogger.TestLogger{}).Build(context.Background(), &BuildRequest{
		SenderAddress: sender.address,
		Recipients:    []Recipient{{Address: recipient.address, Amount: 5_000_000}},
		PrivateKeyWIF: sender.wif,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.InputCount)
	assert.Equal(t, tx.EstimateFee(2, 2), res.Fee)
	assert.Equal(t, int64(5_600_000-5_000_000)-res.Fee, res.Change)
}

func TestBuildErrors(t *testing.T) {
	sender := newWallet(t, "a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1", true)
	recipient := newWallet(t, "b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2", true)
	pay := []Recipient{{Address: recipient.address, Amount: 1_000_000}}

	manyCoins := make([]int64, 25)
	for i := range manyCoins {
		manyCoins[i] = 600_000
	}

	payload := append([]byte{params.AddressVersion}, make([]byte, 20)...)
	badChecksum := codec.Base58Encode(append(payload, 1, 2, 3, 4))

	tests := []struct {
		name     string
		resolver *fakeResolver
		req      *BuildRequest
		code     string
	}{
		{"nil request", &fakeResolver{}, nil, ErrInvalidRequest},
		{"no recipients", &fakeResolver{}, &BuildRequest{SenderAddress: sender.address, PrivateKeyWIF: sender.wif}, ErrInvalidRequest},
		{"zero amount", &fakeResolver{}, &BuildRequest{SenderAddress: sender.address, PrivateKeyWIF: sender.wif, Recipients: []Recipient{{Address: recipient.address}}}, ErrInvalidRequest},
		{"bad recipient", &fakeResolver{}, &BuildRequest{SenderAddress: sender.address, PrivateKeyWIF: sender.wif, Recipients: []Recipient{{Address: badChecksum, Amount: 1}}}, ErrInvalidAddress},
		{"bad key", &fakeResolver{}, &BuildRequest{SenderAddress: sender.address, PrivateKeyWIF: "notawif", Recipients: pay}, ErrInvalidKey},
		{"key mismatch", &fakeResolver{}, &BuildRequest{SenderAddress: sender.address, PrivateKeyWIF: recipient.wif, Recipients: pay}, ErrKeyAddressMismatch},
		{"no utxos", &fakeResolver{}, &BuildRequest{SenderAddress: sender.address, PrivateKeyWIF: sender.wif, Recipients: pay}, ErrNoUTXOs},
		{"resolver down", &fakeResolver{listErr: errors.New("connection refused")}, &BuildRequest{SenderAddress: sender.address, PrivateKeyWIF: sender.wif, Recipients: pay}, ErrResolverFailed},
		{"insufficient", &fakeResolver{utxos: coins(900_000)}, &BuildRequest{SenderAddress: sender.address, PrivateKeyWIF: sender.wif, Recipients: pay}, ErrInsufficientFunds},
		{"too many inputs", &fakeResolver{utxos: coins(manyCoins...), script: sender.script}, &BuildRequest{SenderAddress: sender.address, PrivateKeyWIF: sender.wif, Recipients: []Recipient{{Address: recipient.address, Amount: 14_000_000}}}, ErrTooManyInputs},
		{"script lookup fails", &fakeResolver{utxos: coins(5_000_000), scriptErr: errors.New("timeout")}, &BuildRequest{SenderAddress: sender.address, PrivateKeyWIF: sender.wif, Recipients: pay}, ErrResolverFailed},
		{"foreign utxo", &fakeResolver{utxos: coins(5_000_000), script: recipient.script}, &BuildRequest{SenderAddress: sender.address, PrivateKeyWIF: sender.wif, Recipients: pay}, ErrResolverFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBuilder(tt.resolver, ulogger.TestLogger{}).Build(context.Background(), tt.req)
			requireBuildError(t, err, tt.code)
		})
	}
}

func TestBuildInsufficientFundsCarriesAmounts(t *testing.T) {
	sender := newWallet(t, "a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1", true)
	recipient := newWallet(t, "b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2", true)

	_, err := NewBuilder(&fakeResolver{utxos: coins(1_000_000)}, ulogger.TestLogger{}).Build(context.Background(), &BuildRequest{
		SenderAddress: sender.address,
		Recipients:    []Recipient{{Address: recipient.address, Amount: 1_000_000}},
		PrivateKeyWIF: sender.wif,
	})
	requireBuildError(t, err, ErrInsufficientFunds)

	var selErr *utxo.SelectionError
	require.True(t, errors.As(err, &selErr))
	assert.Equal(t, int64(1_000_000), selErr.Available)
	assert.Equal(t, 1_000_000+tx.EstimateFee(1, 2), selErr.Needed)
}

func TestLegacyAddressDecoding(t *testing.T) {
	sender := newWallet(t, "a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1", true)

	hash := [20]byte{9, 9, 9}
	payload := append([]byte{params.AddressVersion}, hash[:]...)
	badChecksum := codec.Base58Encode(append(payload, 0, 0, 0, 0))

	resolver := &fakeResolver{utxos: coins(5_000_000), script: sender.script}
	res, err := NewBuilder(resolver, ulogger.TestLogger{}, WithLegacyAddressDecoding()).Build(context.Background(), &BuildRequest{
		SenderAddress: sender.address,
		Recipients:    []Recipient{{Address: badChecksum, Amount: 1_000_000}},
		PrivateKeyWIF: sender.wif,
	})
	require.NoError(t, err)

	parsed, err := tx.ParseHex(res.RawTxHex)
	require.NoError(t, err)
	assert.Equal(t, tx.P2PKHScript(hash), parsed.Outputs[0].ScriptPubKey)
}

func TestSend(t *testing.T) {
	sender := newWallet(t, "a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1", true)
	recipient := newWallet(t, "b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2", true)
	req := &BuildRequest{
		SenderAddress: sender.address,
		Recipients:    []Recipient{{Address: recipient.address, Amount: 2_000_000}},
		PrivateKeyWIF: sender.wif,
	}

	t.Run("broadcasts the built bytes", func(t *testing.T) {
		resolver := &fakeResolver{utxos: coins(5_000_000), script: sender.script}

		res, err := NewBuilder(resolver, ulogger.TestLogger{}).Send(context.Background(), req)
		require.NoError(t, err)
		require.Len(t, resolver.broadcasts, 1)
		assert.Equal(t, res.RawTxHex, resolver.broadcasts[0])
		assert.Equal(t, res.TxID, res.BroadcastTxID)
	})

	t.Run("rejection", func(t *testing.T) {
		resolver := &fakeResolver{
			utxos:  coins(5_000_000),
			script: sender.script,
			broadcastFn: func(string) (string, error) {
				return electrum.ClassifyBroadcastResponse("TX rejected: 66: insufficient priority")
			},
		}

		_, err := NewBuilder(resolver, ulogger.TestLogger{}).Send(context.Background(), req)
		requireBuildError(t, err, ErrBroadcastFailed)
		assert.ErrorIs(t, err, electrum.ErrBroadcastRejected)
	})

	t.Run("nothing broadcast when signing inputs fail", func(t *testing.T) {
		resolver := &fakeResolver{utxos: coins(5_000_000), scriptErr: errors.New("unreachable")}

		_, err := NewBuilder(resolver, ulogger.TestLogger{}).Send(context.Background(), req)
		requireBuildError(t, err, ErrResolverFailed)
		assert.Empty(t, resolver.broadcasts)
	})
}

func TestRequestServers(t *testing.T) {
	sender := newWallet(t, "a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1", true)
	recipient := newWallet(t, "b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2", true)
	fake := &fakeResolver{utxos: coins(5_000_000), script: sender.script}

	var gotServers []string
	released := false
	factory := WithResolverFactory(func(servers []string) (electrum.Resolver, func(), error) {
		gotServers = servers
		return fake, func() { released = true }, nil
	})

	_, err := NewBuilder(nil, ulogger.TestLogger{}, factory).Build(context.Background(), &BuildRequest{
		SenderAddress: sender.address,
		Recipients:    []Recipient{{Address: recipient.address, Amount: 1_000_000}},
		PrivateKeyWIF: sender.wif,
		Servers:       []string{"tcp://electrum.example:50001"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"tcp://electrum.example:50001"}, gotServers)
	assert.True(t, released)

	_, err = NewBuilder(nil, ulogger.TestLogger{}).Build(context.Background(), &BuildRequest{SenderAddress: sender.address})
	requireBuildError(t, err, ErrInvalidRequest)

	_, err = NewBuilder(nil, ulogger.TestLogger{}).Build(context.Background(), &BuildRequest{Servers: []string{"no-port"}})
	requireBuildError(t, err, ErrResolverFailed)
	assert.True(t, strings.Contains(err.Error(), "no-port"))
}
