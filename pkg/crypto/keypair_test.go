package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	priv, pub, err := GenerateKeypair()
	require.NoError(t, err)

	h := MustOf("payload")
	sig, err := priv.Sign(h)
	require.NoError(t, err)

	require.True(t, Verify(pub, h, sig))
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	priv, _, err := GenerateKeypair()
	require.NoError(t, err)
	_, otherPub, err := GenerateKeypair()
	require.NoError(t, err)

	h := MustOf("payload")
	sig, err := priv.Sign(h)
	require.NoError(t, err)

	require.False(t, Verify(otherPub, h, sig))
}

func TestPublicKeyPEMRoundTrip(t *testing.T) {
	_, pub, err := GenerateKeypair()
	require.NoError(t, err)

	data, err := pub.SavePEM()
	require.NoError(t, err)

	loaded, err := LoadPublicKeyPEM(data)
	require.NoError(t, err)
	require.True(t, pub.Equal(loaded))
}

func TestPrivateKeyCBORRoundTrip(t *testing.T) {
	priv, pub, err := GenerateKeypair()
	require.NoError(t, err)

	data, err := priv.SaveCBOR()
	require.NoError(t, err)

	loaded, err := LoadPrivateKeyCBOR(data)
	require.NoError(t, err)
	require.True(t, loaded.Public().Equal(pub))
}

func TestPublicKeyCBORRoundTrip(t *testing.T) {
	_, pub, err := GenerateKeypair()
	require.NoError(t, err)

	data, err := Marshal(pub)
	require.NoError(t, err)

	var loaded PublicKey
	require.NoError(t, Unmarshal(data, &loaded))
	require.True(t, pub.Equal(loaded))
}
