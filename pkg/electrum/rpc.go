package electrum

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Electrum protocol methods.
const (
	methodServerVersion    = "server.version"
	methodTransactionGet   = "blockchain.transaction.get"
	methodListUnspent      = "blockchain.scripthash.listunspent"
	methodBroadcast        = "blockchain.transaction.broadcast"
	defaultProtocolVersion = "1.4"
)

type request struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type response struct {
	ID     *uint64             `json:"id"`
	Method string              `json:"method,omitempty"`
	Result jsoniter.RawMessage `json:"result"`
	Error  jsoniter.RawMessage `json:"error"`
}

// RPCError is an error object returned by the server.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	if e.Code == 0 {
		return fmt.Sprintf("electrum error: %s", e.Message)
	}
	return fmt.Sprintf("electrum error %d: %s", e.Code, e.Message)
}

// rpcError decodes the error member, which servers send either as an
// object or as a bare string.
func (r *response) rpcError() *RPCError {
	if len(r.Error) == 0 || string(r.Error) == "null" {
		return nil
	}

	var obj RPCError
	if err := json.Unmarshal(r.Error, &obj); err == nil {
		return &obj
	}

	var msg string
	if err := json.Unmarshal(r.Error, &msg); err == nil {
		return &RPCError{Message: msg}
	}

	return &RPCError{Message: string(r.Error)}
}

type unspentEntry struct {
	TxHash string `json:"tx_hash"`
	TxPos  uint32 `json:"tx_pos"`
	Value  int64  `json:"value"`
	Height int64  `json:"height"`
}
