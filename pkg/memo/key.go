package memo

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/mr-tron/base58"
	"golang.org/x/crypto/ripemd160"
)

const (
	// DefaultAddressPrefix is the public key prefix of the BitShares mainnet.
	DefaultAddressPrefix = "BTS"

	wifVersion     = 0x80
	checksumLength = 4

	// MemoRole is the key role that encrypts transfer memos.
	MemoRole = "memo"
)

// PrivateKey is a secp256k1 private key.
type PrivateKey struct {
	key *ecdsa.PrivateKey
}

// PrivateKeyFromSeed derives a key as sha256(seed), the way wallets turn a
// brain key or an account password into keys.
func PrivateKeyFromSeed(seed string) (*PrivateKey, error) {
	sum := sha256.Sum256([]byte(seed))
	key, err := crypto.ToECDSA(sum[:])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	return &PrivateKey{key: key}, nil
}

// DeriveKey derives the key of an account role from the account password.
func DeriveKey(account, role, password string) (*PrivateKey, error) {
	return PrivateKeyFromSeed(account + role + password)
}

// DeriveMemoKey derives the memo key of an account from its password.
func DeriveMemoKey(account, password string) (*PrivateKey, error) {
	return DeriveKey(account, MemoRole, password)
}

// PrivateKeyFromWIF decodes a key in wallet import format.
func PrivateKeyFromWIF(wif string) (*PrivateKey, error) {
	raw, err := base58.Decode(wif)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	if len(raw) != 1+32+checksumLength {
		return nil, fmt.Errorf("%w: unexpected WIF length %d", ErrInvalidKey, len(raw))
	}
	if raw[0] != wifVersion {
		return nil, fmt.Errorf("%w: unexpected WIF version 0x%02x", ErrInvalidKey, raw[0])
	}

	payload, checksum := raw[:len(raw)-checksumLength], raw[len(raw)-checksumLength:]
	if !bytes.Equal(doubleSHA256(payload)[:checksumLength], checksum) {
		return nil, fmt.Errorf("%w: WIF checksum mismatch", ErrInvalidKey)
	}

	key, err := crypto.ToECDSA(payload[1:])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	return &PrivateKey{key: key}, nil
}

// WIF encodes the key in wallet import format.
func (k *PrivateKey) WIF() string {
	payload := append([]byte{wifVersion}, crypto.FromECDSA(k.key)...)
	return base58.Encode(append(payload, doubleSHA256(payload)[:checksumLength]...))
}

// Bytes returns the 32-byte scalar.
func (k *PrivateKey) Bytes() []byte {
	return crypto.FromECDSA(k.key)
}

func (k *PrivateKey) PublicKey() *PublicKey {
	return &PublicKey{key: &k.key.PublicKey}
}

// PublicKey is a secp256k1 public key.
type PublicKey struct {
	key *ecdsa.PublicKey
}

// ParsePublicKey decodes a "BTS..." public key.
func ParsePublicKey(s string) (*PublicKey, error) {
	return ParsePublicKeyWithPrefix(s, DefaultAddressPrefix)
}

// ParsePublicKeyWithPrefix decodes a public key of a chain with another
// address prefix.
func ParsePublicKeyWithPrefix(s, prefix string) (*PublicKey, error) {
	if !strings.HasPrefix(s, prefix) {
		return nil, fmt.Errorf("%w: expected prefix %s", ErrInvalidKey, prefix)
	}

	raw, err := base58.Decode(s[len(prefix):])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	if len(raw) != 33+checksumLength {
		return nil, fmt.Errorf("%w: unexpected public key length %d", ErrInvalidKey, len(raw))
	}

	compressed, checksum := raw[:33], raw[33:]
	if !bytes.Equal(ripemd160Sum(compressed)[:checksumLength], checksum) {
		return nil, fmt.Errorf("%w: public key checksum mismatch", ErrInvalidKey)
	}

	key, err := crypto.DecompressPubkey(compressed)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	return &PublicKey{key: key}, nil
}

// Compressed returns the 33-byte SEC1 encoding.
func (p *PublicKey) Compressed() []byte {
	return crypto.CompressPubkey(p.key)
}

// String encodes the key with the default address prefix.
func (p *PublicKey) String() string {
	return p.StringWithPrefix(DefaultAddressPrefix)
}

func (p *PublicKey) StringWithPrefix(prefix string) string {
	compressed := p.Compressed()
	return prefix + base58.Encode(append(compressed, ripemd160Sum(compressed)[:checksumLength]...))
}

// Equal reports whether both keys are the same point.
func (p *PublicKey) Equal(other *PublicKey) bool {
	if p == nil || other == nil {
		return p == other
	}
	return bytes.Equal(p.Compressed(), other.Compressed())
}

func doubleSHA256(b []byte) []byte {
	first := sha256.Sum256(b)
	second := sha256.Sum256(first[:])
	return second[:]
}

func ripemd160Sum(b []byte) []byte {
	h := ripemd160.New()
	h.Write(b)
	return h.Sum(nil)
}
