// Package similarity turns article texts into shingle signatures and orders
// a batch of documents so that near-duplicates end up adjacent: pairwise
// Jaccard distances feed a 2-opt tour over the batch.
package similarity

import (
	"crypto/md5"
	"fmt"
)

// HashBuckets is the size of the signature bucket space.
const HashBuckets = 1000000

// DefaultShingleLength is the shingle window size used when no explicit
// length is configured.
const DefaultShingleLength = 8

// Signature is the sparse set of hash buckets hit by a text's shingles.
type Signature map[uint32]struct{}

// NewSignature hashes every distinct shingle of text into one of
// HashBuckets buckets. Each distinct shingle is hashed exactly once.
// A non-positive shingle length is a hard input error.
func NewSignature(text string, shingleLength int) (Signature, error) {
	if shingleLength <= 0 {
		return nil, fmt.Errorf("shingle length must be positive, got %d", shingleLength)
	}

	sig := make(Signature)
	seen := make(map[string]struct{})

	for i := 0; i+shingleLength <= len(text); i++ {
		shingle := text[i : i+shingleLength]
		if _, ok := seen[shingle]; ok {
			continue
		}
		seen[shingle] = struct{}{}
		sig[bucket(shingle)] = struct{}{}
	}

	return sig, nil
}

// bucket reduces the md5 digest of a shingle modulo HashBuckets, treating
// the digest as one big-endian integer.
func bucket(shingle string) uint32 {
	sum := md5.Sum([]byte(shingle))

	var mod uint64
	for _, b := range sum {
		mod = (mod<<8 | uint64(b)) % HashBuckets
	}
	return uint32(mod)
}

// Jaccard computes |A ∩ B| / |A ∪ B| for two signatures. An empty union
// yields 0 rather than a division by zero.
func Jaccard(a, b Signature) float64 {
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}

	intersection := 0
	for bucket := range small {
		if _, ok := large[bucket]; ok {
			intersection++
		}
	}

	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
