package tx

import (
	"errors"
	"fmt"

	"github.com/suffix-labs/lana-tx/pkg/crypto"
)

var ErrSignatureInvalid = errors.New("signature failed verification")

// Signer signs the P2PKH inputs of a transaction with one key.
//
// Each input gets its own SIGHASH_ALL digest, a DER signature with the
// hash type byte appended, and a scriptSig of push(sig) || push(pubkey).
// Every signature is verified against pubKey before it is stored.
type Signer struct {
	tx     *Transaction
	key    *crypto.PrivateKey
	pubKey []byte
	opts   []crypto.SignOption
}

// NewSigner returns a Signer that signs with key and places pubKey (the
// compressed or uncompressed encoding matching the sender address) in
// each scriptSig.
func NewSigner(t *Transaction, key *crypto.PrivateKey, pubKey []byte, opts ...crypto.SignOption) *Signer {
	return &Signer{tx: t, key: key, pubKey: pubKey, opts: opts}
}

// SignInput signs input idx, which spends an output locked by prevScript.
//
// Returns an error if:
//   - idx is out of range
//   - signing fails
//   - the produced signature does not verify
func (s *Signer) SignInput(idx int, prevScript []byte) error {
	sighash, err := s.tx.SignatureHash(idx, prevScript, crypto.SigHashAll)
	if err != nil {
		return fmt.Errorf("computing sighash: %w", err)
	}

	der, err := crypto.SignECDSA(s.key, sighash, s.opts...)
	if err != nil {
		return fmt.Errorf("signing input %d: %w", idx, err)
	}

	if !crypto.VerifySignature(s.pubKey, sighash, der) {
		return fmt.Errorf("input %d: %w", idx, ErrSignatureInvalid)
	}

	signature := append(der, crypto.SigHashAll)

	scriptSig, err := P2PKHScriptSig(signature, s.pubKey)
	if err != nil {
		return fmt.Errorf("input %d: %w", idx, err)
	}
	s.tx.Inputs[idx].ScriptSig = scriptSig

	return nil
}

// SignAll signs every input; prevScripts[i] is the script spent by input i.
// Scripts are only written once every input has signed successfully.
func (s *Signer) SignAll(prevScripts [][]byte) error {
	if len(prevScripts) != len(s.tx.Inputs) {
		return fmt.Errorf("have %d previous scripts for %d inputs", len(prevScripts), len(s.tx.Inputs))
	}

	staged := &Signer{tx: s.tx.unsignedCopy(), key: s.key, pubKey: s.pubKey, opts: s.opts}
	for i, script := range prevScripts {
		if err := staged.SignInput(i, script); err != nil {
			return err
		}
	}

	for i, in := range staged.tx.Inputs {
		s.tx.Inputs[i].ScriptSig = in.ScriptSig
	}
	return nil
}

// unsignedCopy copies t with fresh input structs so scripts can be set
// without touching t.
func (t *Transaction) unsignedCopy() *Transaction {
	cp := *t
	cp.Inputs = make([]*Input, len(t.Inputs))
	for i, in := range t.Inputs {
		c := *in
		cp.Inputs[i] = &c
	}
	return &cp
}
