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
	"bytes"
	"fmt"

	"github.com/google/docproof"
)

// RootMismatchError occurs when a proof path does not reproduce the claimed
// root hash.
type RootMismatchError struct {
	ExpectedRoot   []byte
	CalculatedRoot []byte
}

func (e RootMismatchError) Error() string {
	return fmt.Sprintf("calculated root %x does not match expected root %x", e.CalculatedRoot, e.ExpectedRoot)
}

// Verifier recomputes roots from inclusion proof paths. It is stateless and
// safe for concurrent use.
type Verifier struct {
	hasher TreeHasher
}

// NewVerifier returns a Verifier using the given hasher, which must match the
// hasher the trees were built with.
func NewVerifier(hasher TreeHasher) Verifier {
	return Verifier{hasher: hasher}
}

// RootFromPath folds the proof path over leafHash and returns the root it
// implies. A left sibling is combined as HashChildren(sibling, running), a
// right sibling as HashChildren(running, sibling). An empty path returns the
// leaf hash itself.
func (v Verifier) RootFromPath(leafHash []byte, path []docproof.ProofPathElement) []byte {
	running := leafHash
	for _, el := range path {
		if el.Position == docproof.PositionLeft {
			running = v.hasher.HashChildren(el.Hash, running)
		} else {
			running = v.hasher.HashChildren(running, el.Hash)
		}
	}
	return running
}

// CheckInclusion recomputes the root from leafHash and path and compares it
// to root, returning a RootMismatchError on mismatch.
func (v Verifier) CheckInclusion(leafHash []byte, path []docproof.ProofPathElement, root []byte) error {
	calc := v.RootFromPath(leafHash, path)
	if !bytes.Equal(calc, root) {
		return RootMismatchError{ExpectedRoot: root, CalculatedRoot: calc}
	}
	return nil
}

// VerifyInclusion reports whether the proof path proves leafHash is included
// under root. A mismatch is an expected outcome and is reported as false,
// never as an error.
func (v Verifier) VerifyInclusion(leafHash []byte, path []docproof.ProofPathElement, root []byte) bool {
	return v.CheckInclusion(leafHash, path, root) == nil
}
