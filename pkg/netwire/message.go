// Package netwire implements the length-prefixed CBOR wire protocol shared
// by the node, miner, and wallet processes (spec.md §6).
package netwire

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/gochain/gochain/pkg/crypto"
	"github.com/gochain/gochain/pkg/ledger"
)

// Kind identifies which of the 15 Message variants is present.
type Kind string

const (
	KindFetchUTXOs       Kind = "FetchUTXOs"
	KindUTXOs            Kind = "UTXOs"
	KindSubmitTransaction Kind = "SubmitTransaction"
	KindNewTransaction   Kind = "NewTransaction"
	KindFetchTemplate    Kind = "FetchTemplate"
	KindTemplate         Kind = "Template"
	KindValidateTemplate Kind = "ValidateTemplate"
	KindTemplateValidity Kind = "TemplateValidity"
	KindSubmitTemplate   Kind = "SubmitTemplate"
	KindDiscoverNodes    Kind = "DiscoverNodes"
	KindNodeList         Kind = "NodeList"
	KindAskDifference    Kind = "AskDifference"
	KindDifference       Kind = "Difference"
	KindFetchBlock       Kind = "FetchBlock"
	KindNewBlock         Kind = "NewBlock"
)

// UTXOWire is the (output, marked) pair sent in a UTXOs reply.
type UTXOWire struct {
	_      struct{} `cbor:",toarray"`
	Output ledger.TransactionOutput
	Marked bool
}

// Message is a tagged union over the 15 wire variants. Exactly one payload
// field is populated, selected by Kind; the rest are left at their zero
// value. Construct instances with the Msg* helpers rather than composite
// literals, so Kind and payload can never disagree.
type Message struct {
	Kind Kind

	PublicKey    crypto.PublicKey   // FetchUTXOs, FetchTemplate
	UTXOs        []UTXOWire         // UTXOs
	Transaction  ledger.Transaction // SubmitTransaction, NewTransaction
	Block        ledger.Block       // Template, ValidateTemplate, SubmitTemplate, NewBlock
	Valid        bool               // TemplateValidity
	NodeNames    []string           // NodeList
	Height       uint32             // AskDifference
	Difference   int32              // Difference
	BlockIndex   uint64             // FetchBlock
}

func MsgFetchUTXOs(pk crypto.PublicKey) Message { return Message{Kind: KindFetchUTXOs, PublicKey: pk} }
func MsgUTXOs(u []UTXOWire) Message             { return Message{Kind: KindUTXOs, UTXOs: u} }
func MsgSubmitTransaction(tx ledger.Transaction) Message {
	return Message{Kind: KindSubmitTransaction, Transaction: tx}
}
func MsgNewTransaction(tx ledger.Transaction) Message {
	return Message{Kind: KindNewTransaction, Transaction: tx}
}
func MsgFetchTemplate(pk crypto.PublicKey) Message {
	return Message{Kind: KindFetchTemplate, PublicKey: pk}
}
func MsgTemplate(b ledger.Block) Message { return Message{Kind: KindTemplate, Block: b} }
func MsgValidateTemplate(b ledger.Block) Message {
	return Message{Kind: KindValidateTemplate, Block: b}
}
func MsgTemplateValidity(v bool) Message { return Message{Kind: KindTemplateValidity, Valid: v} }
func MsgSubmitTemplate(b ledger.Block) Message {
	return Message{Kind: KindSubmitTemplate, Block: b}
}
func MsgDiscoverNodes() Message          { return Message{Kind: KindDiscoverNodes} }
func MsgNodeList(names []string) Message { return Message{Kind: KindNodeList, NodeNames: names} }
func MsgAskDifference(h uint32) Message  { return Message{Kind: KindAskDifference, Height: h} }
func MsgDifference(d int32) Message      { return Message{Kind: KindDifference, Difference: d} }
func MsgFetchBlock(h uint64) Message     { return Message{Kind: KindFetchBlock, BlockIndex: h} }
func MsgNewBlock(b ledger.Block) Message { return Message{Kind: KindNewBlock, Block: b} }

// payload returns the single value to encode for m's Kind.
func (m Message) payload() interface{} {
	switch m.Kind {
	case KindFetchUTXOs, KindFetchTemplate:
		return m.PublicKey
	case KindUTXOs:
		return m.UTXOs
	case KindSubmitTransaction, KindNewTransaction:
		return m.Transaction
	case KindTemplate, KindValidateTemplate, KindSubmitTemplate, KindNewBlock:
		return m.Block
	case KindTemplateValidity:
		return m.Valid
	case KindDiscoverNodes:
		return struct{}{}
	case KindNodeList:
		return m.NodeNames
	case KindAskDifference:
		return m.Height
	case KindDifference:
		return m.Difference
	case KindFetchBlock:
		return m.BlockIndex
	default:
		return nil
	}
}

// MarshalCBOR encodes m as a single-key map {Kind: payload}, the externally
// tagged representation spec.md's "tagged union" calls for.
func (m Message) MarshalCBOR() ([]byte, error) {
	wire := map[Kind]interface{}{m.Kind: m.payload()}
	return crypto.Marshal(wire)
}

// UnmarshalCBOR decodes the single-key map written by MarshalCBOR, routing
// the payload into the field matching its key.
func (m *Message) UnmarshalCBOR(data []byte) error {
	var wire map[Kind]cbor.RawMessage
	if err := crypto.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("netwire: decoding message envelope: %w", err)
	}
	if len(wire) != 1 {
		return fmt.Errorf("netwire: message envelope must have exactly one key, got %d", len(wire))
	}
	for kind, raw := range wire {
		m.Kind = kind
		switch kind {
		case KindFetchUTXOs, KindFetchTemplate:
			return crypto.Unmarshal(raw, &m.PublicKey)
		case KindUTXOs:
			return crypto.Unmarshal(raw, &m.UTXOs)
		case KindSubmitTransaction, KindNewTransaction:
			return crypto.Unmarshal(raw, &m.Transaction)
		case KindTemplate, KindValidateTemplate, KindSubmitTemplate, KindNewBlock:
			return crypto.Unmarshal(raw, &m.Block)
		case KindTemplateValidity:
			return crypto.Unmarshal(raw, &m.Valid)
		case KindDiscoverNodes:
			return nil
		case KindNodeList:
			return crypto.Unmarshal(raw, &m.NodeNames)
		case KindAskDifference:
			return crypto.Unmarshal(raw, &m.Height)
		case KindDifference:
			return crypto.Unmarshal(raw, &m.Difference)
		case KindFetchBlock:
			return crypto.Unmarshal(raw, &m.BlockIndex)
		default:
			return fmt.Errorf("netwire: unknown message kind %q", kind)
		}
	}
	return nil
}

// IsReplyOnly reports whether m is a reply-only variant that a peer must
// never send unsolicited (spec.md §4.7's final table row).
func (m Message) IsReplyOnly() bool {
	switch m.Kind {
	case KindUTXOs, KindTemplate, KindDifference, KindTemplateValidity, KindNodeList:
		return true
	default:
		return false
	}
}
