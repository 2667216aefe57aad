// Package chainerr collects the sentinel error values returned by the ledger,
// node, miner, and wallet packages so callers can distinguish rejection
// reasons with errors.Is rather than string matching.
package chainerr

import "errors"

var (
	// ErrInvalidBlock is returned by Blockchain.AddBlock for any failure not
	// otherwise classified below.
	ErrInvalidBlock = errors.New("invalid block")
	// ErrInvalidBlockHeader covers prev-hash linkage and proof-of-work failures.
	ErrInvalidBlockHeader = errors.New("invalid block header")
	ErrInvalidMerkleRoot  = errors.New("invalid merkle root")
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrInvalidSignature   = errors.New("invalid signature")

	ErrInvalidTransactionInput  = errors.New("invalid transaction input")
	ErrInvalidTransactionOutput = errors.New("invalid transaction output")
	ErrInvalidHash              = errors.New("invalid hash")
	ErrInvalidPublicKey         = errors.New("invalid public key")
	ErrInvalidPrivateKey        = errors.New("invalid private key")

	// ErrInsufficientFunds is a wallet-local error: no combination of owned,
	// unmarked UTXOs covers the requested amount plus fee.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrNotFound is a general lookup-failure sentinel. The ledger's own
	// lookups do not return it: Blockchain.BlockAt reports a missing height
	// through its bool result.
	ErrNotFound = errors.New("not found")

	// ErrUnsolicitedReply is returned when a peer sends a reply-only message
	// variant (UTXOs, Template, Difference, TemplateValidity, NodeList) on a
	// connection where it is not the solicited response; the handler closes
	// the connection.
	ErrUnsolicitedReply = errors.New("unsolicited reply message")
)
