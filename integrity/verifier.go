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

// Package integrity answers the question "does this document still match its
// proof of record?". It dispatches to the Merkle leaf of record when one
// exists, falls back to the timestamp-proof chain, and reports a distinct
// no-proof outcome when the document has neither.
package integrity

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/google/docproof"
	"github.com/google/docproof/hashchain"
	"github.com/google/docproof/merkle"
	"github.com/google/docproof/storage"
)

// Verifier performs integrity checks. Checks are pure reads: the same inputs
// always produce the same result and no state is mutated.
type Verifier struct {
	store  storage.Storage
	merkle merkle.Verifier
	signer *hashchain.Signer
}

// New creates a Verifier reading from store. The hasher must match the one
// the proofs were created with.
func New(store storage.Storage, hasher merkle.TreeHasher) *Verifier {
	return &Verifier{store: store, merkle: merkle.NewVerifier(hasher)}
}

// SetSigner enables HMAC signature checks on timestamp proofs and batch
// seals. Without a signer only hash and chain structure are checked, which
// is the common case for read-side verifiers that do not hold the key.
func (v *Verifier) SetSigner(s *hashchain.Signer) {
	v.signer = s
}

// VerifyDocument checks currentHash against the document's proof of record.
// A Merkle leaf takes precedence over a timestamp-proof chain; a document
// with neither yields StatusNoProof. An error is returned only when the
// check could not run (storage failure), never for a failed check.
func (v *Verifier) VerifyDocument(ctx context.Context, documentID string, currentHash []byte) (docproof.VerificationResult, error) {
	leaf, batch, err := v.store.LeafByDocument(ctx, documentID)
	switch {
	case err == nil:
		return v.verifyLeaf(leaf, batch, currentHash), nil
	case !errors.Is(err, storage.ErrNotFound):
		return docproof.VerificationResult{}, fmt.Errorf("look up merkle leaf for %q: %w", documentID, err)
	}

	chain, err := v.store.ProofChain(ctx, documentID)
	if err != nil {
		return docproof.VerificationResult{}, fmt.Errorf("load proof chain for %q: %w", documentID, err)
	}
	if len(chain) == 0 {
		return docproof.VerificationResult{
			Status:  docproof.StatusNoProof,
			Message: fmt.Sprintf("no integrity proof of record for document %q", documentID),
		}, nil
	}
	return v.verifyChain(documentID, chain, currentHash), nil
}

func (v *Verifier) verifyLeaf(leaf *docproof.LeafRecord, batch *docproof.MerkleBatch, currentHash []byte) docproof.VerificationResult {
	if !bytes.Equal(currentHash, leaf.LeafHash) {
		return docproof.VerificationResult{
			Status:  docproof.StatusTampered,
			Message: fmt.Sprintf("content hash does not match leaf %d of batch %d", leaf.LeafIndex, batch.ID),
		}
	}
	if err := v.merkle.CheckInclusion(leaf.LeafHash, leaf.ProofPath, batch.RootHash); err != nil {
		return docproof.VerificationResult{
			Status:  docproof.StatusTampered,
			Message: fmt.Sprintf("stored proof path for leaf %d does not reproduce the root of batch %d: %v", leaf.LeafIndex, batch.ID, err),
		}
	}
	if v.signer != nil && !v.signer.VerifyBatch(batch.RootHash, batch.BatchTimestamp, batch.BatchSignature) {
		return docproof.VerificationResult{
			Status:  docproof.StatusTampered,
			Message: fmt.Sprintf("batch %d seal signature is invalid", batch.ID),
		}
	}
	return docproof.VerificationResult{
		Status:  docproof.StatusVerified,
		Message: fmt.Sprintf("verified against leaf %d of merkle batch %d", leaf.LeafIndex, batch.ID),
	}
}

func (v *Verifier) verifyChain(documentID string, chain []*docproof.TimestampProof, currentHash []byte) docproof.VerificationResult {
	// The store returns the full chain, so the first proof must be a
	// genesis proof with no predecessor.
	if len(chain[0].PreviousProofHash) != 0 {
		return docproof.VerificationResult{
			Status:  docproof.StatusTampered,
			Message: fmt.Sprintf("proof chain for %q does not start at a genesis proof", documentID),
		}
	}
	if !hashchain.VerifyChain(chain) {
		return docproof.VerificationResult{
			Status:  docproof.StatusTampered,
			Message: fmt.Sprintf("timestamp proof chain for %q is broken", documentID),
		}
	}
	latest := chain[len(chain)-1]
	if v.signer != nil && !v.signer.VerifyProof(latest.DocumentID, latest.ProofHash, latest.ProofTimestamp, latest.HMACSignature) {
		return docproof.VerificationResult{
			Status:  docproof.StatusTampered,
			Message: fmt.Sprintf("timestamp proof %d signature is invalid", latest.ID),
		}
	}
	if !bytes.Equal(currentHash, latest.ProofHash) {
		return docproof.VerificationResult{
			Status:  docproof.StatusTampered,
			Message: fmt.Sprintf("content hash does not match timestamp proof %d", latest.ID),
		}
	}
	return docproof.VerificationResult{
		Status:  docproof.StatusVerified,
		Message: fmt.Sprintf("verified against timestamp proof chain of length %d", len(chain)),
	}
}
