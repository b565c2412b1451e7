package memo

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	alicePassword = "correct horse battery staple"
	bobPassword   = "hunter2"

	aliceMemoWIF = "5KB7SF84AmoAQ7Y9Z1uySqY6DXhCsmC9LrjGKYtLr2H87rTnAzj"
	aliceMemoPub = "BTS7P5uSU4szYzWc5KmxATECNvtCUjvEG2LmXTcP9WKh6Svxa2Mzw"
	bobMemoPub   = "BTS7YvyryQX2RWkdNkMNan5DBq6zAUWa3GSKxTDWensKbiEC6J1Zw"

	memoNonce      = "16066947577223184451"
	memoCiphertext = "9afaed784af6008271cbc09d32ddd28d2edf90792cfb6591663288ad16e7b904"
	memoText       = "hello from alice"
)

func TestPrivateKeyFromWIF(t *testing.T) {
	t.Parallel()

	key, err := PrivateKeyFromWIF("5HueCGU8rMjxEXxiPuD5BDku4MkFqeZyd4dZ1jvhTVqvbTLvyTJ")
	require.NoError(t, err)
	assert.Equal(t, "0c28fca386c7a227600b2fe50b7cae11ec86d3bf1fbe471be89827e19d72aa1d", hex.EncodeToString(key.Bytes()))
	assert.Equal(t, "02d0de0aaeaefad02b8bdc8a01a1b8b11c696bd3d66a2c5f10780d95b7df42645c", hex.EncodeToString(key.PublicKey().Compressed()))
	assert.Equal(t, "BTS6UUbAGbTLLWfY2gAc8XmjGBz2c7WT4fYB5r1L1aHDwAY88ujex", key.PublicKey().String())
	assert.Equal(t, "5HueCGU8rMjxEXxiPuD5BDku4MkFqeZyd4dZ1jvhTVqvbTLvyTJ", key.WIF())
}

func TestPrivateKeyFromWIF_Invalid(t *testing.T) {
	t.Parallel()

	tcs := []struct {
		name string
		wif  string
	}{
		{name: "bad checksum", wif: "5HueCGU8rMjxEXxiPuD5BDku4MkFqeZyd4dZ1jvhTVqvbTLvyTK"},
		{name: "not base58", wif: "0OIl"},
		{name: "too short", wif: "5HueCGU8rMjx"},
	}

	for _, tc := range tcs {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := PrivateKeyFromWIF(tc.wif)
			require.ErrorIs(t, err, ErrInvalidKey)
		})
	}
}

func TestDeriveMemoKey(t *testing.T) {
	t.Parallel()

	alice, err := DeriveMemoKey("alice", alicePassword)
	require.NoError(t, err)
	assert.Equal(t, aliceMemoWIF, alice.WIF())
	assert.Equal(t, aliceMemoPub, alice.PublicKey().String())

	bob, err := DeriveMemoKey("bob", bobPassword)
	require.NoError(t, err)
	assert.Equal(t, bobMemoPub, bob.PublicKey().String())
}

func TestParsePublicKey(t *testing.T) {
	t.Parallel()

	pub, err := ParsePublicKey(aliceMemoPub)
	require.NoError(t, err)
	assert.Equal(t, aliceMemoPub, pub.String())
	assert.Equal(t, "TEST"+aliceMemoPub[3:], pub.StringWithPrefix("TEST"))

	_, err = ParsePublicKey("GPH" + aliceMemoPub[3:])
	require.ErrorIs(t, err, ErrInvalidKey)

	corrupted := aliceMemoPub[:len(aliceMemoPub)-1] + "x"
	_, err = ParsePublicKey(corrupted)
	require.ErrorIs(t, err, ErrInvalidKey)
}

func TestSharedSecretIsSymmetric(t *testing.T) {
	t.Parallel()

	alice, err := DeriveMemoKey("alice", alicePassword)
	require.NoError(t, err)
	bob, err := DeriveMemoKey("bob", bobPassword)
	require.NoError(t, err)

	ab, err := SharedSecret(alice, bob.PublicKey())
	require.NoError(t, err)
	ba, err := SharedSecret(bob, alice.PublicKey())
	require.NoError(t, err)

	assert.Len(t, ab, 64)
	assert.Equal(t, ab, ba)
	assert.Equal(t, "b882dec74ee1d56cfa8ac3324ade2c55322ade68d65229ca71a84d6cee0cbac708768a65e7f0328dfcf6d347ee215428f43d5cfc6e1c903963e5673aa9e7bff3", hex.EncodeToString(ab))
}

func TestEncrypt_KnownVector(t *testing.T) {
	t.Parallel()

	alice, err := DeriveMemoKey("alice", alicePassword)
	require.NoError(t, err)
	bobPub, err := ParsePublicKey(bobMemoPub)
	require.NoError(t, err)

	ciphertext, err := Encrypt(alice, bobPub, memoNonce, []byte(memoText))
	require.NoError(t, err)
	assert.Equal(t, memoCiphertext, hex.EncodeToString(ciphertext))
}

func TestDecryptMemo_BothSides(t *testing.T) {
	t.Parallel()

	alice, err := DeriveMemoKey("alice", alicePassword)
	require.NoError(t, err)
	bob, err := DeriveMemoKey("bob", bobPassword)
	require.NoError(t, err)

	text, err := DecryptMemo(bob, aliceMemoPub, bobMemoPub, memoNonce, memoCiphertext)
	require.NoError(t, err)
	assert.Equal(t, memoText, text)

	text, err = DecryptMemo(alice, aliceMemoPub, bobMemoPub, memoNonce, memoCiphertext)
	require.NoError(t, err)
	assert.Equal(t, memoText, text)
}

func TestDecryptMemo_Failures(t *testing.T) {
	t.Parallel()

	bob, err := DeriveMemoKey("bob", bobPassword)
	require.NoError(t, err)
	mallory, err := DeriveMemoKey("mallory", "secret")
	require.NoError(t, err)

	_, err = DecryptMemo(mallory, aliceMemoPub, bobMemoPub, memoNonce, memoCiphertext)
	require.ErrorIs(t, err, ErrForeignMemo)

	_, err = DecryptMemo(bob, aliceMemoPub, bobMemoPub, "1", memoCiphertext)
	require.ErrorIs(t, err, ErrChecksumMismatch)

	_, err = DecryptMemo(bob, aliceMemoPub, bobMemoPub, memoNonce, "zz")
	require.ErrorIs(t, err, ErrInvalidCiphertext)

	_, err = DecryptMemo(bob, aliceMemoPub, bobMemoPub, memoNonce, memoCiphertext[:30])
	require.ErrorIs(t, err, ErrInvalidCiphertext)
}

func TestEncryptDecrypt_EmptyMessage(t *testing.T) {
	t.Parallel()

	alice, err := DeriveMemoKey("alice", alicePassword)
	require.NoError(t, err)
	bob, err := DeriveMemoKey("bob", bobPassword)
	require.NoError(t, err)

	ciphertext, err := Encrypt(alice, bob.PublicKey(), "42", nil)
	require.NoError(t, err)
	assert.Len(t, ciphertext, 16)

	plain, err := Decrypt(bob, alice.PublicKey(), "42", ciphertext)
	require.NoError(t, err)
	assert.Empty(t, plain)
}
