package electrum

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/suffix-labs/lana-tx/pkg/chaincfg"
	"github.com/suffix-labs/lana-tx/pkg/codec"
	"github.com/suffix-labs/lana-tx/pkg/crypto"
	"github.com/suffix-labs/lana-tx/pkg/tx"
	"github.com/suffix-labs/lana-tx/pkg/ulogger"
	"github.com/suffix-labs/lana-tx/pkg/utxo"
)

const (
	DefaultRequestTimeout   = 15 * time.Second
	DefaultBroadcastTimeout = 45 * time.Second
	DefaultDialTimeout      = 10 * time.Second
	DefaultCacheTTL         = 10 * time.Minute

	// maxResponseSize bounds a single response line.
	maxResponseSize = 16 << 20
)

var (
	ErrNoServers         = errors.New("no electrum servers configured")
	ErrAllServersFailed  = errors.New("all electrum servers failed")
	ErrTxIDMismatch      = errors.New("server returned a transaction with a different txid")
	ErrMalformedResponse = errors.New("malformed electrum response")
)

// Config configures a Client.
type Config struct {
	// Servers are tried in order. Accepted forms: tcp://host:port,
	// ssl://host:port, tls://host:port and host:port (TLS).
	Servers []string

	RequestTimeout   time.Duration
	BroadcastTimeout time.Duration
	DialTimeout      time.Duration

	// CacheTTL is how long fetched raw transactions are kept. Zero uses
	// DefaultCacheTTL.
	CacheTTL time.Duration

	// TLSConfig overrides the TLS settings for ssl:// endpoints.
	TLSConfig *tls.Config

	ClientName string
}

type endpoint struct {
	network string // "tcp" or "tls"
	address string
}

func (e endpoint) String() string {
	if e.network == "tcp" {
		return "tcp://" + e.address
	}
	return "ssl://" + e.address
}

func parseEndpoint(s string) (endpoint, error) {
	s = strings.TrimSpace(s)

	ep := endpoint{network: "tls", address: s}
	switch {
	case strings.HasPrefix(s, "tcp://"):
		ep = endpoint{network: "tcp", address: strings.TrimPrefix(s, "tcp://")}
	case strings.HasPrefix(s, "ssl://"):
		ep.address = strings.TrimPrefix(s, "ssl://")
	case strings.HasPrefix(s, "tls://"):
		ep.address = strings.TrimPrefix(s, "tls://")
	}

	if _, _, err := net.SplitHostPort(ep.address); err != nil {
		return endpoint{}, fmt.Errorf("invalid electrum server %q: %w", s, err)
	}
	return ep, nil
}

// Client is an Electrum Resolver with ordered fail-over across servers.
// Each request uses its own connection, so a Client is safe for
// concurrent use.
type Client struct {
	cfg       Config
	endpoints []endpoint
	params    *chaincfg.Params
	logger    ulogger.Logger
	txCache   *ttlcache.Cache[string, string]
	nextID    atomic.Uint64
}

// NewClient validates the server list and starts the raw transaction
// cache. Call Close when done.
func NewClient(cfg Config, params *chaincfg.Params, logger ulogger.Logger) (*Client, error) {
	if len(cfg.Servers) == 0 {
		return nil, ErrNoServers
	}

	endpoints := make([]endpoint, 0, len(cfg.Servers))
	for _, s := range cfg.Servers {
		ep, err := parseEndpoint(s)
		if err != nil {
			return nil, err
		}
		endpoints = append(endpoints, ep)
	}

	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.BroadcastTimeout <= 0 {
		cfg.BroadcastTimeout = DefaultBroadcastTimeout
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if cfg.ClientName == "" {
		cfg.ClientName = "lana-tx"
	}

	c := &Client{
		cfg:       cfg,
		endpoints: endpoints,
		params:    params,
		logger:    logger,
		txCache: ttlcache.New[string, string](
			ttlcache.WithTTL[string, string](cfg.CacheTTL),
			ttlcache.WithDisableTouchOnHit[string, string](),
		),
	}

	go c.txCache.Start()

	return c, nil
}

// Close stops the cache janitor.
func (c *Client) Close() {
	c.txCache.Stop()
}

// ServerVersion performs the version handshake with the first reachable
// server and returns its software and protocol versions.
func (c *Client) ServerVersion(ctx context.Context) (software, protocol string, err error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	var result []string
	if err := c.call(ctx, methodServerVersion, []interface{}{c.cfg.ClientName, defaultProtocolVersion}, &result); err != nil {
		return "", "", err
	}
	if len(result) != 2 {
		return "", "", fmt.Errorf("%w: server.version returned %d fields", ErrMalformedResponse, len(result))
	}
	return result[0], result[1], nil
}

// GetTransaction returns the raw hex of txid. Results are cached; the
// returned transaction is checked to hash to txid.
func (c *Client) GetTransaction(ctx context.Context, txid string) (string, error) {
	txid = strings.ToLower(strings.TrimSpace(txid))

	if item := c.txCache.Get(txid); item != nil {
		return item.Value(), nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	var rawHex string
	if err := c.call(ctx, methodTransactionGet, []interface{}{txid}, &rawHex); err != nil {
		return "", fmt.Errorf("fetching transaction %s: %w", txid, err)
	}

	raw, err := codec.DecodeHex(rawHex)
	if err != nil {
		return "", fmt.Errorf("%w: transaction %s: %w", ErrMalformedResponse, txid, err)
	}

	sum := crypto.Sha256d(raw)
	if got := codec.EncodeHex(codec.ReverseBytes(sum[:])); got != txid {
		return "", fmt.Errorf("%w: asked for %s, got %s", ErrTxIDMismatch, txid, got)
	}

	c.txCache.Set(txid, rawHex, ttlcache.DefaultTTL)

	return rawHex, nil
}

// GetScriptPubKey implements Resolver.
func (c *Client) GetScriptPubKey(ctx context.Context, txid string, vout uint32) ([]byte, error) {
	rawHex, err := c.GetTransaction(ctx, txid)
	if err != nil {
		return nil, err
	}

	raw, err := codec.DecodeHex(rawHex)
	if err != nil {
		return nil, err
	}

	script, err := tx.ScriptPubKey(raw, vout)
	if err != nil {
		return nil, fmt.Errorf("transaction %s: %w", txid, err)
	}

	return script, nil
}

// ScriptHash returns the Electrum script hash of a P2PKH address: the
// reversed SHA-256 of its scriptPubKey, in hex.
func ScriptHash(address string, params *chaincfg.Params) (string, error) {
	h, err := crypto.DecodeAddress(address, params, false)
	if err != nil {
		return "", err
	}

	sum := crypto.Sha256(tx.P2PKHScript(h))
	return codec.EncodeHex(codec.ReverseBytes(sum[:])), nil
}

// ListUnspent implements Resolver.
func (c *Client) ListUnspent(ctx context.Context, address string) ([]utxo.UTXO, error) {
	scriptHash, err := ScriptHash(address, c.params)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	var entries []unspentEntry
	if err := c.call(ctx, methodListUnspent, []interface{}{scriptHash}, &entries); err != nil {
		return nil, fmt.Errorf("listing unspent for %s: %w", address, err)
	}

	utxos := make([]utxo.UTXO, 0, len(entries))
	for _, e := range entries {
		if e.Value <= 0 {
			continue
		}
		utxos = append(utxos, utxo.UTXO{TxHash: e.TxHash, TxPos: e.TxPos, Value: e.Value, Height: e.Height})
	}

	c.logger.Debugf("%d unspent outputs for %s", len(utxos), address)

	return utxos, nil
}

// Broadcast implements Resolver. The call is capped at BroadcastTimeout.
// Relaying the same signed bytes twice is harmless, so a server that
// cannot be reached is skipped in favour of the next one.
func (c *Client) Broadcast(ctx context.Context, rawTxHex string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.BroadcastTimeout)
	defer cancel()

	line, err := c.roundTrip(ctx, methodBroadcast, []interface{}{rawTxHex})
	if err != nil {
		return "", err
	}

	return ClassifyBroadcastResponse(string(line))
}

// call performs a request and decodes the result into out. Server-side
// errors are returned as *RPCError.
func (c *Client) call(ctx context.Context, method string, params []interface{}, out interface{}) error {
	line, err := c.roundTrip(ctx, method, params)
	if err != nil {
		return err
	}

	var resp response
	if err := json.Unmarshal(line, &resp); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	if rpcErr := resp.rpcError(); rpcErr != nil {
		return rpcErr
	}

	if err := json.Unmarshal(resp.Result, out); err != nil {
		return fmt.Errorf("%w: decoding %s result: %w", ErrMalformedResponse, method, err)
	}

	return nil
}

// roundTrip sends one request to the first server that answers and
// returns the raw response line.
func (c *Client) roundTrip(ctx context.Context, method string, params []interface{}) ([]byte, error) {
	var errs []error

	for _, ep := range c.endpoints {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}

		line, err := c.exchange(ctx, ep, method, params)
		if err == nil {
			return line, nil
		}

		c.logger.Warnf("electrum %s %s failed: %v", ep, method, err)
		errs = append(errs, fmt.Errorf("%s: %w", ep, err))
	}

	return nil, fmt.Errorf("%w: %w", ErrAllServersFailed, errors.Join(errs...))
}

func (c *Client) dial(ctx context.Context, ep endpoint) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: c.cfg.DialTimeout}

	if ep.network == "tcp" {
		return dialer.DialContext(ctx, "tcp", ep.address)
	}

	tlsCfg := c.cfg.TLSConfig
	if tlsCfg == nil {
		host, _, _ := net.SplitHostPort(ep.address)
		tlsCfg = &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12}
	}

	td := &tls.Dialer{NetDialer: dialer, Config: tlsCfg}
	return td.DialContext(ctx, "tcp", ep.address)
}

// exchange opens a connection, performs the version handshake (unless the
// request is the handshake itself) and sends the request.
func (c *Client) exchange(ctx context.Context, ep endpoint, method string, params []interface{}) ([]byte, error) {
	conn, err := c.dial(ctx, ep)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	reader := bufio.NewReaderSize(conn, 64*1024)

	if method != methodServerVersion {
		if _, err := c.send(conn, reader, methodServerVersion, []interface{}{c.cfg.ClientName, defaultProtocolVersion}); err != nil {
			return nil, fmt.Errorf("handshake: %w", err)
		}
	}

	return c.send(conn, reader, method, params)
}

func (c *Client) send(conn net.Conn, reader *bufio.Reader, method string, params []interface{}) ([]byte, error) {
	id := c.nextID.Add(1)

	payload, err := json.Marshal(request{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	if err != nil {
		return nil, err
	}

	if _, err := conn.Write(append(payload, '\n')); err != nil {
		return nil, fmt.Errorf("writing %s: %w", method, err)
	}

	for {
		line, err := readLine(reader)
		if err != nil {
			return nil, fmt.Errorf("reading %s response: %w", method, err)
		}

		var head response
		if err := json.Unmarshal(line, &head); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
		}

		// Skip notifications and stale replies.
		if head.ID == nil || *head.ID != id {
			continue
		}

		return line, nil
	}
}

func readLine(r *bufio.Reader) ([]byte, error) {
	var line []byte
	for {
		chunk, isPrefix, err := r.ReadLine()
		if err != nil {
			return nil, err
		}
		line = append(line, chunk...)
		if len(line) > maxResponseSize {
			return nil, fmt.Errorf("response exceeds %d bytes", maxResponseSize)
		}
		if !isPrefix {
			return line, nil
		}
	}
}
