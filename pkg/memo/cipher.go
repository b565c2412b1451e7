package memo

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto/ecies"
)

var (
	ErrInvalidKey        = errors.New("invalid key")
	ErrInvalidCiphertext = errors.New("invalid ciphertext")
	ErrChecksumMismatch  = errors.New("invalid key, could not decrypt message")
	ErrForeignMemo       = errors.New("memo is not addressed to this key")
)

const sharedKeyLength = 32

// SharedSecret returns sha512 of the x coordinate of priv*pub. Both sides
// of a memo derive the same secret.
func SharedSecret(priv *PrivateKey, pub *PublicKey) ([]byte, error) {
	x, err := ecies.ImportECDSA(priv.key).GenerateShared(ecies.ImportECDSAPublic(pub.key), sharedKeyLength, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	sum := sha512.Sum512(x)
	return sum[:], nil
}

// Encrypt encrypts message for the holder of the private key matching pub.
// The nonce must be unique per message; its decimal text keys the cipher.
func Encrypt(priv *PrivateKey, pub *PublicKey, nonce string, message []byte) ([]byte, error) {
	block, iv, err := memoCipher(priv, pub, nonce)
	if err != nil {
		return nil, err
	}

	sum := sha256.Sum256(message)
	plain := append(append([]byte{}, sum[:checksumLength]...), message...)
	plain = pkcs7Pad(plain, block.BlockSize())

	out := make([]byte, len(plain))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, plain)
	return out, nil
}

// Decrypt reverses Encrypt. Either side of the memo can decrypt it with its
// own private key and the other side's public key.
func Decrypt(priv *PrivateKey, pub *PublicKey, nonce string, ciphertext []byte) ([]byte, error) {
	block, iv, err := memoCipher(priv, pub, nonce)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) == 0 || len(ciphertext)%block.BlockSize() != 0 {
		return nil, fmt.Errorf("%w: length %d is not a multiple of the block size", ErrInvalidCiphertext, len(ciphertext))
	}

	plain := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, ciphertext)

	plain, err = pkcs7Unpad(plain, block.BlockSize())
	if err != nil {
		return nil, ErrChecksumMismatch
	}
	if len(plain) < checksumLength {
		return nil, ErrChecksumMismatch
	}

	checksum, message := plain[:checksumLength], plain[checksumLength:]
	sum := sha256.Sum256(message)
	if !bytes.Equal(sum[:checksumLength], checksum) {
		return nil, ErrChecksumMismatch
	}
	return message, nil
}

// DecryptMemo decrypts the hex message of a transfer memo sent between the
// from and to keys. priv must belong to one of them.
func DecryptMemo(priv *PrivateKey, from, to, nonce, messageHex string) (string, error) {
	fromKey, err := ParsePublicKey(from)
	if err != nil {
		return "", fmt.Errorf("memo sender key: %w", err)
	}
	toKey, err := ParsePublicKey(to)
	if err != nil {
		return "", fmt.Errorf("memo recipient key: %w", err)
	}

	var other *PublicKey
	switch own := priv.PublicKey(); {
	case own.Equal(fromKey):
		other = toKey
	case own.Equal(toKey):
		other = fromKey
	default:
		return "", ErrForeignMemo
	}

	ciphertext, err := hex.DecodeString(messageHex)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidCiphertext, err)
	}

	message, err := Decrypt(priv, other, nonce, ciphertext)
	if err != nil {
		return "", err
	}
	return string(message), nil
}

// memoCipher derives the AES-256 key and IV from sha512(nonce + hex(secret)).
func memoCipher(priv *PrivateKey, pub *PublicKey, nonce string) (cipher.Block, []byte, error) {
	secret, err := SharedSecret(priv, pub)
	if err != nil {
		return nil, nil, err
	}

	seed := sha512.Sum512([]byte(nonce + hex.EncodeToString(secret)))
	block, err := aes.NewCipher(seed[:32])
	if err != nil {
		return nil, nil, err
	}
	return block, seed[32:48], nil
}

func pkcs7Pad(b []byte, blockSize int) []byte {
	n := blockSize - len(b)%blockSize
	return append(b, bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(b []byte, blockSize int) ([]byte, error) {
	if len(b) == 0 {
		return nil, ErrInvalidCiphertext
	}
	n := int(b[len(b)-1])
	if n == 0 || n > blockSize || n > len(b) {
		return nil, ErrInvalidCiphertext
	}
	for _, v := range b[len(b)-n:] {
		if int(v) != n {
			return nil, ErrInvalidCiphertext
		}
	}
	return b[:len(b)-n], nil
}
