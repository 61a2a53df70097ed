package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/suffix-labs/lana-tx/pkg/chaincfg"
	"github.com/suffix-labs/lana-tx/pkg/electrum"
	"github.com/urfave/cli/v2"
)

// Config holds the settings shared by every command. Flags override
// LANA_* environment variables, which override the defaults.
type Config struct {
	Network          string
	Servers          []string
	RequestTimeout   time.Duration
	BroadcastTimeout time.Duration
	LogLevel         string
	JSONLogs         bool
	LegacyAddresses  bool
	RFC6979          bool
}

func DefaultConfig() Config {
	return Config{
		Network:          chaincfg.MainNetParams.Name,
		RequestTimeout:   electrum.DefaultRequestTimeout,
		BroadcastTimeout: electrum.DefaultBroadcastTimeout,
		LogLevel:         "INFO",
	}
}

// Validate checks the settings that do not depend on the command.
func (c Config) Validate() error {
	if _, ok := chaincfg.ByName(c.Network); !ok {
		return fmt.Errorf("unknown network %q", c.Network)
	}
	if c.RequestTimeout <= 0 {
		return errors.New("request timeout must be positive")
	}
	if c.BroadcastTimeout <= 0 {
		return errors.New("broadcast timeout must be positive")
	}

	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG", "INFO", "WARN", "ERROR":
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}

	return nil
}

// Params returns the chain parameters of the configured network.
func (c Config) Params() *chaincfg.Params {
	p, _ := chaincfg.ByName(c.Network)
	return p
}

// requireServers reports an error for commands that need the network.
func (c Config) requireServers() error {
	if len(c.Servers) == 0 {
		return errors.New("no electrum servers: pass --server or set LANA_SERVERS")
	}
	return nil
}

func globalFlags() []cli.Flag {
	def := DefaultConfig()

	return []cli.Flag{
		&cli.StringFlag{
			Name:    "network",
			Usage:   "network name",
			Value:   def.Network,
			EnvVars: []string{"LANA_NETWORK"},
		},
		&cli.StringSliceFlag{
			Name:    "server",
			Usage:   "electrum server, tried in order (tcp://host:port, ssl://host:port or host:port for TLS)",
			EnvVars: []string{"LANA_SERVERS"},
		},
		&cli.DurationFlag{
			Name:    "timeout",
			Usage:   "per-request timeout",
			Value:   def.RequestTimeout,
			EnvVars: []string{"LANA_TIMEOUT"},
		},
		&cli.DurationFlag{
			Name:    "broadcast-timeout",
			Usage:   "broadcast timeout",
			Value:   def.BroadcastTimeout,
			EnvVars: []string{"LANA_BROADCAST_TIMEOUT"},
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "DEBUG, INFO, WARN or ERROR",
			Value:   def.LogLevel,
			EnvVars: []string{"LANA_LOG_LEVEL"},
		},
		&cli.BoolFlag{
			Name:    "log-json",
			Usage:   "write logs as JSON lines",
			EnvVars: []string{"LANA_LOG_JSON"},
		},
		&cli.BoolFlag{
			Name:  "legacy-addresses",
			Usage: "do not verify address checksums in --to, --uri and parse-uri (legacy wallet behaviour)",
		},
		&cli.BoolFlag{
			Name:  "rfc6979",
			Usage: "derive signing nonces with RFC 6979",
		},
	}
}

func configFromContext(c *cli.Context) (Config, error) {
	cfg := Config{
		Network:          c.String("network"),
		Servers:          c.StringSlice("server"),
		RequestTimeout:   c.Duration("timeout"),
		BroadcastTimeout: c.Duration("broadcast-timeout"),
		LogLevel:         c.String("log-level"),
		JSONLogs:         c.Bool("log-json"),
		LegacyAddresses:  c.Bool("legacy-addresses"),
		RFC6979:          c.Bool("rfc6979"),
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
