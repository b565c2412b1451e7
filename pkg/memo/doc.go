// Package memo implements the key encodings and the memo cipher of
// BitShares transfers.
//
// Keys are secp256k1. Private keys travel in wallet import format, public
// keys as "BTS" followed by base58(compressed point + ripemd160 checksum).
// A memo is AES-256-CBC encrypted with a key derived from the ECDH secret of
// sender and recipient and a per-memo nonce, and starts with a 4-byte sha256
// checksum of the plaintext.
package memo
