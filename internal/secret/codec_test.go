package secret

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	codec := New("test-key")

	for _, plain := range []string{"Secret123", "", "пароль", "a b c . d"} {
		enc, err := codec.Encrypt(plain)
		require.NoError(t, err)
		assert.NotEqual(t, plain, enc)

		dec, err := codec.Decrypt(enc)
		require.NoError(t, err)
		assert.Equal(t, plain, dec)
	}
}

func TestEncryptIsNonDeterministic(t *testing.T) {
	codec := New("test-key")

	a, err := codec.Encrypt("same value")
	require.NoError(t, err)
	b, err := codec.Encrypt("same value")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestCompare(t *testing.T) {
	codec := New("test-key")

	enc, err := codec.Encrypt("Secret123")
	require.NoError(t, err)

	ok, err := codec.Compare("Secret123", enc)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = codec.Compare("wrong", enc)
	require.NoError(t, err)
	assert.False(t, ok)

	// garbage ciphertext compares as false, not as an error
	ok, err = codec.Compare("Secret123", "not-a-ciphertext")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWrongKeyFailsDecrypt(t *testing.T) {
	enc, err := New("key-one").Encrypt("Secret123")
	require.NoError(t, err)

	_, err = New("key-two").Decrypt(enc)
	assert.ErrorIs(t, err, ErrBadCiphertext)
}

func TestUnkeyedCodecRefusesEverything(t *testing.T) {
	codec := New("")
	assert.False(t, codec.Keyed())

	_, err := codec.Encrypt("x")
	assert.ErrorIs(t, err, ErrNoCryptKey)
	_, err = codec.Decrypt("x")
	assert.ErrorIs(t, err, ErrNoCryptKey)
	_, err = codec.Compare("x", "y")
	assert.ErrorIs(t, err, ErrNoCryptKey)
}

func TestGenerateSecretShape(t *testing.T) {
	long, err := GenerateSecret(64)
	require.NoError(t, err)

	// one char is dropped per spliced separator
	assert.Len(t, long, 62)
	assert.Equal(t, byte('.'), long[3])
	assert.Equal(t, byte('.'), long[28])
	assert.Equal(t, 2, strings.Count(long, "."))

	short, err := GenerateSecret(16)
	require.NoError(t, err)
	assert.Len(t, short, 15)
	assert.Equal(t, byte('.'), short[3])
	assert.Equal(t, 1, strings.Count(short, "."))
}

func TestGenerateSecretIsRandom(t *testing.T) {
	a, err := GenerateSecret(32)
	require.NoError(t, err)
	b, err := GenerateSecret(32)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestHashIsDeterministic(t *testing.T) {
	assert.Equal(t, Hash("token"), Hash("token"))
	assert.NotEqual(t, Hash("token"), Hash("token2"))
	assert.Len(t, Hash("token"), 64)
}
