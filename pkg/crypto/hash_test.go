package crypto

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOfIsDeterministic(t *testing.T) {
	type payload struct {
		_ struct{} `cbor:",toarray"`
		A uint64
		B string
	}
	v := payload{A: 42, B: "hello"}

	h1, err := Of(v)
	require.NoError(t, err)
	h2, err := Of(v)
	require.NoError(t, err)
	require.Equal(t, h1, h2)
}

func TestOfDistinguishesValues(t *testing.T) {
	h1 := MustOf("a")
	h2 := MustOf("b")
	require.NotEqual(t, h1, h2)
}

func TestMatchesTarget(t *testing.T) {
	low := HashFromBig(big.NewInt(100))
	high := HashFromBig(big.NewInt(200))
	require.True(t, low.MatchesTarget(high))
	require.False(t, high.MatchesTarget(low))
}

func TestHashCBORRoundTrip(t *testing.T) {
	h := MustOf("round-trip-me")
	data, err := Marshal(h)
	require.NoError(t, err)

	var decoded Hash
	require.NoError(t, Unmarshal(data, &decoded))
	require.Equal(t, h, decoded)
}

func TestMinTargetIsUpperBound(t *testing.T) {
	require.True(t, MinTarget.Cmp(ZeroHash) > 0)
}
