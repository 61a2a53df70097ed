package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/suffix-labs/lana-tx/pkg/api"
	"github.com/suffix-labs/lana-tx/pkg/bip21"
	"github.com/suffix-labs/lana-tx/pkg/chaincfg"
	"github.com/suffix-labs/lana-tx/pkg/codec"
	"github.com/suffix-labs/lana-tx/pkg/crypto"
	"github.com/suffix-labs/lana-tx/pkg/electrum"
	"github.com/suffix-labs/lana-tx/pkg/tx"
	"github.com/suffix-labs/lana-tx/pkg/ulogger"
	"github.com/urfave/cli/v2"
)

// env is what every action needs: settings, a logger and where to print.
type env struct {
	cfg    Config
	params *chaincfg.Params
	logger ulogger.Logger
	out    io.Writer
}

func newEnv(c *cli.Context) (*env, error) {
	cfg, err := configFromContext(c)
	if err != nil {
		return nil, err
	}

	logger := ulogger.New("lana-tx",
		ulogger.WithLevel(strings.ToUpper(cfg.LogLevel)),
		ulogger.WithPretty(!cfg.JSONLogs),
		ulogger.WithWriter(c.App.ErrWriter),
	)

	return &env{
		cfg:    cfg,
		params: cfg.Params(),
		logger: logger,
		out:    c.App.Writer,
	}, nil
}

func (e *env) client() (*electrum.Client, error) {
	if err := e.cfg.requireServers(); err != nil {
		return nil, err
	}

	return electrum.NewClient(electrum.Config{
		Servers:          e.cfg.Servers,
		RequestTimeout:   e.cfg.RequestTimeout,
		BroadcastTimeout: e.cfg.BroadcastTimeout,
		ClientName:       "lana-tx/" + version,
	}, e.params, e.logger)
}

func (e *env) uriOptions() []bip21.ParseOption {
	if e.cfg.LegacyAddresses {
		return []bip21.ParseOption{bip21.WithLegacyAddresses()}
	}
	return nil
}

func (e *env) builder(resolver electrum.Resolver) *api.Builder {
	opts := []api.Option{api.WithParams(e.params)}
	if e.cfg.LegacyAddresses {
		opts = append(opts, api.WithLegacyAddressDecoding())
	}
	if e.cfg.RFC6979 {
		opts = append(opts, api.WithRFC6979Nonces())
	}

	return api.NewBuilder(resolver, e.logger, opts...)
}

func cmdAddress(c *cli.Context) error {
	e, err := newEnv(c)
	if err != nil {
		return err
	}

	key, err := crypto.ParsePrivateKeyWIF(c.String("wif"), e.params)
	if err != nil {
		return err
	}

	compressed := key.PublicKeyCompressed()
	uncompressed := key.PublicKeyUncompressed()

	fmt.Fprintf(e.out, "compressed:   %s\n", crypto.PublicKeyToAddress(compressed[:], e.params))
	fmt.Fprintf(e.out, "uncompressed: %s\n", crypto.PublicKeyToAddress(uncompressed[:], e.params))
	fmt.Fprintf(e.out, "wif flag:     %s\n", compressionName(key.Compressed()))

	return nil
}

func compressionName(compressed bool) string {
	if compressed {
		return "compressed"
	}
	return "uncompressed"
}

func cmdValidate(c *cli.Context) error {
	e, err := newEnv(c)
	if err != nil {
		return err
	}

	if c.NArg() != 1 {
		return errors.New("expected one address")
	}
	addr := c.Args().First()

	var ok bool
	if c.Bool("lenient") {
		ok = crypto.IsValidAddressLenient(addr)
	} else {
		ok = crypto.IsValidAddress(addr, e.params)
	}

	if !ok {
		return fmt.Errorf("%w: %s", crypto.ErrInvalidAddress, crypto.NormalizeAddress(addr))
	}

	fmt.Fprintln(e.out, "valid")

	return nil
}

func cmdKeygen(c *cli.Context) error {
	e, err := newEnv(c)
	if err != nil {
		return err
	}

	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return err
	}

	compressed := !c.Bool("uncompressed")

	var pub []byte
	if compressed {
		p := key.PublicKeyCompressed()
		pub = p[:]
	} else {
		p := key.PublicKeyUncompressed()
		pub = p[:]
	}

	fmt.Fprintf(e.out, "wif:     %s\n", key.EncodeWIF(compressed, e.params))
	fmt.Fprintf(e.out, "address: %s\n", crypto.PublicKeyToAddress(pub, e.params))

	return nil
}

func cmdParseURI(c *cli.Context) error {
	e, err := newEnv(c)
	if err != nil {
		return err
	}

	if c.NArg() != 1 {
		return errors.New("expected one URI")
	}

	req, err := bip21.Parse(c.Args().First(), e.params, e.uriOptions()...)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ADDRESS\tAMOUNT\tLABEL\tMESSAGE")

	for _, p := range req.Payments {
		amount := "-"
		if p.Amount != nil {
			amount = bip21.FormatAmount(*p.Amount)
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.Address, amount, deref(p.Label), deref(p.Message))
	}

	return w.Flush()
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

func cmdUTXOs(c *cli.Context) error {
	e, err := newEnv(c)
	if err != nil {
		return err
	}

	client, err := e.client()
	if err != nil {
		return err
	}
	defer client.Close()

	utxos, err := client.ListUnspent(c.Context, c.String("address"))
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "OUTPOINT\tVALUE\tHEIGHT")

	var total int64
	for _, u := range utxos {
		total += u.Value
		fmt.Fprintf(w, "%s\t%s\t%d\n", u.Outpoint(), bip21.FormatAmount(u.Value), u.Height)
	}

	fmt.Fprintf(w, "total\t%s %s\t\n", bip21.FormatAmount(total), e.params.Ticker)

	return w.Flush()
}

// buildRequest assembles a request from --from, --wif and either --to or
// --uri.
func buildRequest(c *cli.Context, e *env) (*api.BuildRequest, error) {
	req := &api.BuildRequest{
		SenderAddress: c.String("from"),
		PrivateKeyWIF: c.String("wif"),
	}

	to := c.StringSlice("to")
	uri := c.String("uri")

	switch {
	case len(to) > 0 && uri != "":
		return nil, errors.New("use either --to or --uri")
	case uri != "":
		pr, err := bip21.Parse(uri, e.params, e.uriOptions()...)
		if err != nil {
			return nil, err
		}

		for i, p := range pr.Payments {
			if p.Amount == nil {
				return nil, fmt.Errorf("payment %d has no amount", i)
			}
			req.Recipients = append(req.Recipients, api.Recipient{Address: p.Address, Amount: *p.Amount})
		}
	case len(to) > 0:
		for _, r := range to {
			recipient, err := parseRecipient(r)
			if err != nil {
				return nil, err
			}
			req.Recipients = append(req.Recipients, recipient)
		}
	default:
		return nil, errors.New("no recipients: pass --to or --uri")
	}

	return req, nil
}

// parseRecipient parses "address:amount" with the amount in coins.
func parseRecipient(s string) (api.Recipient, error) {
	addr, amount, ok := strings.Cut(s, ":")
	if !ok {
		return api.Recipient{}, fmt.Errorf("recipient %q: expected address:amount", s)
	}

	sats, err := bip21.ParseAmount(amount)
	if err != nil {
		return api.Recipient{}, fmt.Errorf("recipient %q: %w", s, err)
	}

	return api.Recipient{Address: strings.TrimSpace(addr), Amount: sats}, nil
}

func printBuildResult(w io.Writer, res *api.BuildResult, params *chaincfg.Params) {
	fmt.Fprintf(w, "txid:    %s\n", res.TxID)
	fmt.Fprintf(w, "inputs:  %d\n", res.InputCount)
	fmt.Fprintf(w, "outputs: %d\n", res.OutputCount)
	fmt.Fprintf(w, "amount:  %s %s\n", bip21.FormatAmount(res.Amount), params.Ticker)
	fmt.Fprintf(w, "fee:     %s %s\n", bip21.FormatAmount(res.Fee), params.Ticker)
	fmt.Fprintf(w, "change:  %s %s\n", bip21.FormatAmount(res.Change), params.Ticker)
	fmt.Fprintf(w, "raw:     %s\n", res.RawTxHex)
}

func cmdBuild(c *cli.Context) error {
	e, err := newEnv(c)
	if err != nil {
		return err
	}

	req, err := buildRequest(c, e)
	if err != nil {
		return err
	}

	client, err := e.client()
	if err != nil {
		return err
	}
	defer client.Close()

	res, err := e.builder(client).Build(c.Context, req)
	if err != nil {
		return err
	}

	printBuildResult(e.out, res, e.params)

	return nil
}

func cmdSend(c *cli.Context) error {
	e, err := newEnv(c)
	if err != nil {
		return err
	}

	req, err := buildRequest(c, e)
	if err != nil {
		return err
	}

	client, err := e.client()
	if err != nil {
		return err
	}
	defer client.Close()

	res, err := e.builder(client).Send(c.Context, req)
	if err != nil {
		return err
	}

	printBuildResult(e.out, &res.BuildResult, e.params)
	fmt.Fprintf(e.out, "broadcast: %s\n", res.BroadcastTxID)

	return nil
}

func cmdDecode(c *cli.Context) error {
	e, err := newEnv(c)
	if err != nil {
		return err
	}

	var rawHex string

	switch txid := c.String("txid"); {
	case txid != "":
		client, err := e.client()
		if err != nil {
			return err
		}
		defer client.Close()

		if rawHex, err = client.GetTransaction(c.Context, txid); err != nil {
			return err
		}
	case c.NArg() == 1:
		rawHex = strings.TrimSpace(c.Args().First())
	default:
		return errors.New("expected a raw transaction or --txid")
	}

	t, err := tx.ParseHex(rawHex)
	if err != nil {
		return err
	}

	return printTransaction(e.out, t, e.params)
}

func printTransaction(out io.Writer, t *tx.Transaction, params *chaincfg.Params) error {
	txid, err := t.TxID()
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "txid:     %s\n", txid)
	fmt.Fprintf(out, "version:  %d\n", t.Version)
	fmt.Fprintf(out, "time:     %d\n", t.Time)
	fmt.Fprintf(out, "locktime: %d\n", t.LockTime)

	for i, in := range t.Inputs {
		fmt.Fprintf(out, "input %d:  %s:%d seq=%08x", i, in.PrevTxIDHex(), in.PrevVout, in.Sequence)
		if _, pub, err := tx.ExtractP2PKHPubKey(in.ScriptSig); err == nil {
			fmt.Fprintf(out, " pubkey=%s", codec.EncodeHex(pub))
		}
		fmt.Fprintln(out)
	}

	for i, o := range t.Outputs {
		dest := "script=" + codec.EncodeHex(o.ScriptPubKey)
		if h, err := tx.ExtractP2PKHHash(o.ScriptPubKey); err == nil {
			dest = addressFromHash(h, params)
		}
		fmt.Fprintf(out, "output %d: %s %s %s\n", i, bip21.FormatAmount(int64(o.Value)), params.Ticker, dest)
	}

	return nil
}

func addressFromHash(h [20]byte, params *chaincfg.Params) string {
	return codec.Base58CheckEncode(append([]byte{params.AddressVersion}, h[:]...))
}

func cmdVersion(c *cli.Context) error {
	e, err := newEnv(c)
	if err != nil {
		return err
	}

	fmt.Fprintf(e.out, "lana-tx %s (%s)\n", version, e.params.Name)

	if len(e.cfg.Servers) == 0 {
		return nil
	}

	client, err := e.client()
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(c.Context, e.cfg.RequestTimeout)
	defer cancel()

	software, protocol, err := client.ServerVersion(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(e.out, "server:  %s (protocol %s)\n", software, protocol)

	return nil
}
