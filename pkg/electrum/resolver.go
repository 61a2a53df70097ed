// Package electrum resolves UTXOs and previous outputs and broadcasts
// transactions through Electrum servers.
package electrum

import (
	"context"

	"github.com/suffix-labs/lana-tx/pkg/utxo"
)

// Resolver is the network collaborator of the transaction builder.
type Resolver interface {
	// GetScriptPubKey returns the locking script of output vout of txid.
	GetScriptPubKey(ctx context.Context, txid string, vout uint32) ([]byte, error)

	// ListUnspent returns the unspent outputs paying to address.
	ListUnspent(ctx context.Context, address string) ([]utxo.UTXO, error)

	// Broadcast relays a signed transaction and returns its txid.
	Broadcast(ctx context.Context, rawTxHex string) (string, error)
}
