// Copyright 2025 Google LLC. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package merkle builds binary hash trees over document content hashes and
// verifies the per-leaf inclusion proofs they produce.
package merkle

import (
	"crypto/sha256"
	"hash"

	"github.com/zeebo/blake3"
)

// Domain separation prefixes. Leaf and interior node hashes live in disjoint
// domains so a leaf hash can never be reinterpreted as an interior node hash.
const (
	leafHashPrefix = 0
	nodeHashPrefix = 1
)

// TreeHasher computes the leaf and interior node hashes of a tree using a
// 256-bit digest. HashLeaf doubles as the document content hash: the leaf
// hash of a document is the hash of its raw bytes.
type TreeHasher struct {
	newHash func() hash.Hash
}

// NewSHA256 returns a TreeHasher backed by SHA-256, the default algorithm.
func NewSHA256() TreeHasher {
	return TreeHasher{newHash: sha256.New}
}

// NewBLAKE3 returns a TreeHasher backed by BLAKE3 with a 256-bit output.
func NewBLAKE3() TreeHasher {
	return TreeHasher{newHash: func() hash.Hash { return blake3.New() }}
}

// HashLeaf returns the leaf hash of the data passed in, prefixed by the leaf
// domain separator.
func (t TreeHasher) HashLeaf(leaf []byte) []byte {
	h := t.newHash()
	h.Write([]byte{leafHashPrefix})
	h.Write(leaf)
	return h.Sum(nil)
}

// HashChildren returns the interior node hash of the two child hashes l and
// r. The hashed structure is nodeHashPrefix||l||r, so the operation is
// order-preserving and sibling position matters during verification.
func (t TreeHasher) HashChildren(l, r []byte) []byte {
	h := t.newHash()
	h.Write([]byte{nodeHashPrefix})
	h.Write(l)
	h.Write(r)
	return h.Sum(nil)
}

// Size returns the number of bytes in output hashes.
func (t TreeHasher) Size() int {
	return t.newHash().Size()
}
