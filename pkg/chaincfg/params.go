// Package chaincfg holds the network parameters of LanaCoin and other
// Bitcoin-derived coins that share its transaction layout (a 4-byte nTime
// field after the version).
package chaincfg

// Params describes a network.
type Params struct {
	Name string

	// AddressVersion prefixes HASH160(pubkey) in P2PKH addresses.
	AddressVersion byte

	// WIFVersion prefixes private keys in Wallet Import Format.
	WIFVersion byte

	// TxVersion is written in the first 4 bytes of every transaction.
	TxVersion int32

	// URIScheme is the payment request URI scheme (without the colon).
	URIScheme string

	// Ticker is the display unit name.
	Ticker string
}

// Transaction and value constants shared by every LanaCoin network.
const (
	SatoshiPerCoin  = 100_000_000 // 1 LANA = 100,000,000 satoshis
	DefaultSequence = 0xffffffff  // Final sequence; no relative locktime
	DefaultLockTime = 0
)

// MainNetParams are the LanaCoin mainnet parameters.
var MainNetParams = Params{
	Name:           "mainnet",
	AddressVersion: 0x30,
	WIFVersion:     0xb0,
	TxVersion:      1,
	URIScheme:      "lana",
	Ticker:         "LANA",
}

// ByName returns the parameters registered under name.
func ByName(name string) (*Params, bool) {
	switch name {
	case "", MainNetParams.Name:
		p := MainNetParams
		return &p, true
	default:
		return nil, false
	}
}
