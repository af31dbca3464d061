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

package merkle

import (
	"github.com/google/docproof"
)

// Tree is the result of building a batch tree: the root hash, the tree
// height, and one inclusion proof path per input leaf, in input order.
// Height is ceil(log2(leafCount)); a single-leaf tree has height 0, an empty
// proof path, and a root equal to the leaf hash.
type Tree struct {
	RootHash []byte
	Height   int
	Paths    [][]docproof.ProofPathElement
}

// BuildTree builds a binary hash tree over the ordered leaf hashes and emits
// a proof path for every leaf.
//
// Levels are combined pairwise with HashChildren. When a level has an odd
// number of nodes the last node is paired with a copy of itself rather than
// promoted unchanged. The same policy is assumed by the proof verifier; the
// two are incompatible with promote-unchanged schemes such as RFC 6962, and
// changing the policy invalidates every stored proof path.
//
// Building over zero leaves fails with docproof.ErrEmptyBatch.
func BuildTree(hasher TreeHasher, leafHashes [][]byte) (*Tree, error) {
	if len(leafHashes) == 0 {
		return nil, docproof.ErrEmptyBatch
	}

	paths := make([][]docproof.ProofPathElement, len(leafHashes))
	level := make([][]byte, len(leafHashes))
	copy(level, leafHashes)

	// pos[i] is the node index of input leaf i within the current level.
	pos := make([]int, len(leafHashes))
	for i := range pos {
		pos[i] = i
	}

	height := 0
	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}
		for i, n := range pos {
			if n%2 == 0 {
				paths[i] = append(paths[i], docproof.ProofPathElement{
					Hash:     level[n+1],
					Position: docproof.PositionRight,
				})
			} else {
				paths[i] = append(paths[i], docproof.ProofPathElement{
					Hash:     level[n-1],
					Position: docproof.PositionLeft,
				})
			}
			pos[i] = n / 2
		}
		next := make([][]byte, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			next[i/2] = hasher.HashChildren(level[i], level[i+1])
		}
		level = next
		height++
	}

	return &Tree{RootHash: level[0], Height: height, Paths: paths}, nil
}
