package store

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/nix-community/go-nix/pkg/nixbase32"
	"github.com/nix-community/go-nix/pkg/storepath"
)

// CompressHash folds hash into size bytes with xor.
func CompressHash(hash []byte, size int) []byte {
	out := make([]byte, size)
	for i, b := range hash {
		out[i%size] ^= b
	}
	return out
}

// makePath computes the store path for a fingerprint of the given type,
// inner hash and name.
func makePath(storeDir, typ string, inner []byte, name string) Path {
	fingerprint := typ + ":sha256:" + hex.EncodeToString(inner) + ":" + storeDir + ":" + name
	sum := sha256.Sum256([]byte(fingerprint))
	return Path{Hash: nixbase32.EncodeToString(CompressHash(sum[:], storepath.PathHashSize)), Name: name}
}
