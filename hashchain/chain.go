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

// Package hashchain creates and verifies per-document chains of HMAC-signed
// timestamp proofs. Each new proof for a document links back to the previous
// one through its hash, forming an append-only audit trail.
package hashchain

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/google/docproof"
	"github.com/google/docproof/merkle"
	"github.com/google/docproof/storage"
	"github.com/google/docproof/util/clock"
	"k8s.io/klog/v2"
)

// ContentHash returns the content hash of raw document bytes. It is the same
// digest used for Merkle leaves, so a document hashes identically whichever
// proof mechanism covers it.
func ContentHash(hasher merkle.TreeHasher, data []byte) []byte {
	return hasher.HashLeaf(data)
}

// Chainer appends timestamp proofs for documents, linking each proof to the
// most recent prior proof of the same document.
type Chainer struct {
	store      storage.Storage
	signer     *Signer
	timeSource clock.TimeSource
}

// NewChainer creates a Chainer writing to store, signing with signer and
// timestamping from timeSource.
func NewChainer(store storage.Storage, signer *Signer, timeSource clock.TimeSource) *Chainer {
	return &Chainer{store: store, signer: signer, timeSource: timeSource}
}

// AppendProof creates, signs and persists a new timestamp proof over
// contentHash for the document. If the document already has proofs, the new
// proof's PreviousProofHash is set to the latest proof's hash. The returned
// record carries the ID assigned by the store.
func (c *Chainer) AppendProof(ctx context.Context, documentID string, contentHash []byte) (*docproof.TimestampProof, error) {
	prev, err := c.store.LatestProof(ctx, documentID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("look up latest proof for %q: %w", documentID, err)
	}

	now := c.timeSource.Now()
	proof := &docproof.TimestampProof{
		DocumentID:     documentID,
		ProofHash:      contentHash,
		ProofTimestamp: now,
		HMACSignature:  c.signer.SignProof(documentID, contentHash, now),
	}
	if prev != nil {
		proof.PreviousProofHash = prev.ProofHash
	}

	id, err := c.store.StoreProof(ctx, proof)
	if err != nil {
		return nil, fmt.Errorf("store timestamp proof for %q: %w", documentID, err)
	}
	proof.ID = id
	klog.V(1).Infof("appended timestamp proof %d for document %q", id, documentID)
	return proof, nil
}

// VerifyChain walks proofs from oldest to newest and reports whether every
// proof's PreviousProofHash equals the preceding proof's hash. Chains of
// length zero or one are trivially intact. A broken link is reported as
// false; VerifyChain never returns an error.
func VerifyChain(proofs []*docproof.TimestampProof) bool {
	for i := 1; i < len(proofs); i++ {
		if !bytes.Equal(proofs[i].PreviousProofHash, proofs[i-1].ProofHash) {
			return false
		}
	}
	return true
}
