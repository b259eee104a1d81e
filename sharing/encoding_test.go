package sharing

import (
	"strings"
	"testing"

	"github.com/ruteri/wallet-kernel/cryptoutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShareEncodeParse(t *testing.T) {
	generated, err := Split([]byte("correct horse battery staple"), 5, 3)
	require.NoError(t, err)

	for _, share := range generated.Shares {
		text, err := share.Encode()
		require.NoError(t, err)
		require.True(t, strings.HasPrefix(text, SharePrefix))

		parsed, err := ParseShare(text)
		require.NoError(t, err)
		assert.Equal(t, share.SplitID, parsed.SplitID)
		assert.Equal(t, share.Index, parsed.Index)
		assert.Equal(t, share.Threshold, parsed.Threshold)
		assert.Equal(t, share.Total, parsed.Total)
		assert.Equal(t, share.Payload, parsed.Payload)
	}
}

func TestParseShare_ToleratesTranscription(t *testing.T) {
	generated, err := Split([]byte("seed"), 2, 2)
	require.NoError(t, err)

	text, err := generated.Shares[1].Encode()
	require.NoError(t, err)

	spaced := strings.ToLower(text[:10]) + "  " + text[10:20] + "\n" + text[20:]
	parsed, err := ParseShare(spaced)
	require.NoError(t, err)
	assert.Equal(t, 2, parsed.Index)
}

func TestParseShare_Malformed(t *testing.T) {
	generated, err := Split([]byte("seed material"), 3, 2)
	require.NoError(t, err)
	text, err := generated.Shares[0].Encode()
	require.NoError(t, err)

	flipped := []byte(text)
	last := len(flipped) - 3
	if flipped[last] == 'A' {
		flipped[last] = 'B'
	} else {
		flipped[last] = 'A'
	}

	for name, input := range map[string]string{
		"no prefix":     strings.TrimPrefix(text, SharePrefix),
		"bad base32":    SharePrefix + "!!!!",
		"too short":     SharePrefix + "AAAA",
		"checksum":      string(flipped),
		"empty payload": "",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseShare(input)
			require.ErrorIs(t, err, ErrMalformedShare)
		})
	}
}

func TestSealedShares(t *testing.T) {
	generated, err := Split([]byte("guardian protected seed"), 3, 2)
	require.NoError(t, err)

	pub, priv, err := cryptoutils.RandomGuardianKeypair()
	require.NoError(t, err)

	sealed, err := SealForGuardian(generated.Shares[2], pub)
	require.NoError(t, err)

	opened, err := OpenSealedShare(sealed, priv)
	require.NoError(t, err)
	assert.Equal(t, generated.Shares[2].Payload, opened.Payload)
	assert.Equal(t, 3, opened.Index)

	_, otherPriv, err := cryptoutils.RandomGuardianKeypair()
	require.NoError(t, err)
	_, err = OpenSealedShare(sealed, otherPriv)
	require.ErrorIs(t, err, cryptoutils.ErrDecryption)
}
