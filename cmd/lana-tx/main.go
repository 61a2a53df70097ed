// lana-tx builds, signs and broadcasts LanaCoin P2PKH transactions.
//
// Example usage:
//
//	# Show the addresses of a key
//	lana-tx address --wif <WIF>
//
//	# List unspent outputs
//	lana-tx --server ssl://electrum.example:50002 utxos --address <addr>
//
//	# Build and print a signed transaction without broadcasting it
//	lana-tx --server ssl://electrum.example:50002 build --from <addr> --to <addr>:1.5 --wif <WIF>
//
//	# Build and broadcast
//	lana-tx --server ssl://electrum.example:50002 send --from <addr> --uri "lana:<addr>?amount=1.5" --wif <WIF>
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

var version = "dev"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	wifFlag := &cli.StringFlag{
		Name:     "wif",
		Usage:    "private key in Wallet Import Format",
		EnvVars:  []string{"LANA_WIF"},
		Required: true,
	}

	paymentFlags := []cli.Flag{
		&cli.StringFlag{
			Name:     "from",
			Usage:    "sender address",
			Required: true,
		},
		&cli.StringSliceFlag{
			Name:  "to",
			Usage: "recipient as address:amount, amount in LANA (repeatable)",
		},
		&cli.StringFlag{
			Name:  "uri",
			Usage: "payment request URI (lana:...)",
		},
		wifFlag,
	}

	return &cli.App{
		Name:    "lana-tx",
		Usage:   "LanaCoin transaction builder",
		Version: version,
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			{
				Name:   "address",
				Usage:  "Show the compressed and uncompressed addresses of a key",
				Action: cmdAddress,
				Flags:  []cli.Flag{wifFlag},
			},
			{
				Name:      "validate",
				Usage:     "Check an address",
				ArgsUsage: "<address>",
				Action:    cmdValidate,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "lenient",
						Usage: "ignore the checksum (legacy wallet check)",
					},
				},
			},
			{
				Name:   "keygen",
				Usage:  "Generate a new key",
				Action: cmdKeygen,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "uncompressed",
						Usage: "use the uncompressed public key",
					},
				},
			},
			{
				Name:      "parse-uri",
				Usage:     "Parse a payment request URI",
				ArgsUsage: "<uri>",
				Action:    cmdParseURI,
			},
			{
				Name:   "utxos",
				Usage:  "List the unspent outputs of an address",
				Action: cmdUTXOs,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "address",
						Usage:    "address to query",
						Required: true,
					},
				},
			},
			{
				Name:   "build",
				Usage:  "Build and sign a transaction without broadcasting it",
				Action: cmdBuild,
				Flags:  paymentFlags,
			},
			{
				Name:   "send",
				Usage:  "Build, sign and broadcast a transaction",
				Action: cmdSend,
				Flags:  paymentFlags,
			},
			{
				Name:      "decode",
				Usage:     "Decode a raw transaction",
				ArgsUsage: "<hex>",
				Action:    cmdDecode,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "txid",
						Usage: "fetch the transaction from the server instead",
					},
				},
			},
			{
				Name:   "version",
				Usage:  "Show version information",
				Action: cmdVersion,
			},
		},
	}
}
