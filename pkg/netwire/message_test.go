package netwire

import (
	"bytes"
	"testing"

	"github.com/gochain/gochain/pkg/crypto"
	"github.com/gochain/gochain/pkg/ledger"
	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T) crypto.PublicKey {
	t.Helper()
	_, pub, err := crypto.GenerateKeypair()
	require.NoError(t, err)
	return pub
}

func testBlock(t *testing.T, pub crypto.PublicKey) ledger.Block {
	t.Helper()
	out, err := ledger.NewTransactionOutput(5_000_000_000, pub)
	require.NoError(t, err)
	coinbase := ledger.Transaction{Outputs: []ledger.TransactionOutput{out}}
	root, err := ledger.CalculateMerkleRoot([]ledger.Transaction{coinbase})
	require.NoError(t, err)
	return ledger.Block{
		Header: ledger.BlockHeader{
			PrevBlockHash: crypto.ZeroHash,
			MerkleRoot:    root,
			Target:        crypto.MinTarget,
		},
		Transactions: []ledger.Transaction{coinbase},
	}
}

func testTransaction(t *testing.T, pub crypto.PublicKey) ledger.Transaction {
	t.Helper()
	out, err := ledger.NewTransactionOutput(1000, pub)
	require.NoError(t, err)
	return ledger.Transaction{Outputs: []ledger.TransactionOutput{out}}
}

// roundTrip sends m through an in-memory pipe and decodes it back,
// exercising the real length-prefixed wire path rather than just
// MarshalCBOR/UnmarshalCBOR directly.
func roundTrip(t *testing.T, m Message) Message {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Send(&buf, m))
	decoded, err := Receive(&buf)
	require.NoError(t, err)
	return decoded
}

func TestMessageRoundTripAllVariants(t *testing.T) {
	pub := testKey(t)
	block := testBlock(t, pub)
	tx := testTransaction(t, pub)

	cases := map[Kind]Message{
		KindFetchUTXOs:        MsgFetchUTXOs(pub),
		KindUTXOs:             MsgUTXOs([]UTXOWire{{Output: tx.Outputs[0], Marked: true}}),
		KindSubmitTransaction: MsgSubmitTransaction(tx),
		KindNewTransaction:    MsgNewTransaction(tx),
		KindFetchTemplate:     MsgFetchTemplate(pub),
		KindTemplate:          MsgTemplate(block),
		KindValidateTemplate:  MsgValidateTemplate(block),
		KindTemplateValidity:  MsgTemplateValidity(true),
		KindSubmitTemplate:    MsgSubmitTemplate(block),
		KindDiscoverNodes:     MsgDiscoverNodes(),
		KindNodeList:          MsgNodeList([]string{"127.0.0.1:9000", "127.0.0.1:9001"}),
		KindAskDifference:     MsgAskDifference(42),
		KindDifference:        MsgDifference(-7),
		KindFetchBlock:        MsgFetchBlock(13),
		KindNewBlock:          MsgNewBlock(block),
	}

	require.Len(t, cases, 15, "every Kind variant must be covered")

	for kind, original := range cases {
		decoded := roundTrip(t, original)
		require.Equal(t, kind, decoded.Kind)
		require.Equal(t, original, decoded)
	}
}

func TestIsReplyOnly(t *testing.T) {
	replyOnly := []Message{
		MsgUTXOs(nil),
		MsgTemplate(ledger.Block{}),
		MsgDifference(0),
		MsgTemplateValidity(false),
		MsgNodeList(nil),
	}
	for _, m := range replyOnly {
		require.True(t, m.IsReplyOnly(), "expected %s to be reply-only", m.Kind)
	}

	requestOrGossip := []Message{
		MsgFetchUTXOs(crypto.PublicKey{}),
		MsgSubmitTransaction(ledger.Transaction{}),
		MsgNewTransaction(ledger.Transaction{}),
		MsgFetchTemplate(crypto.PublicKey{}),
		MsgValidateTemplate(ledger.Block{}),
		MsgSubmitTemplate(ledger.Block{}),
		MsgDiscoverNodes(),
		MsgAskDifference(0),
		MsgFetchBlock(0),
		MsgNewBlock(ledger.Block{}),
	}
	for _, m := range requestOrGossip {
		require.False(t, m.IsReplyOnly(), "expected %s to not be reply-only", m.Kind)
	}
}

func TestUnmarshalRejectsMultiKeyEnvelope(t *testing.T) {
	data, err := crypto.Marshal(map[Kind]interface{}{
		KindDiscoverNodes: struct{}{},
		KindAskDifference: uint32(1),
	})
	require.NoError(t, err)

	var m Message
	err = m.UnmarshalCBOR(data)
	require.Error(t, err)
}
