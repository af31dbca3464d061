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

// Package storage defines the persistence boundary of the proof engine.
// Implementations live in the subpackages; the engine only ever talks to
// these interfaces.
package storage

import (
	"context"
	"errors"

	"github.com/google/docproof"
)

// ErrNotFound is returned when a requested record does not exist. It is an
// expected condition, not a failure; callers check it with errors.Is.
var ErrNotFound = errors.New("storage: record not found")

// Storage is the persistence layer for batches, leaves and timestamp proofs.
// The underlying store is the sole arbiter of consistency: StoreBatch must
// commit the batch and all of its leaves in one atomic unit, so a reader can
// never observe a batch without its leaves or vice versa.
type Storage interface {
	// PendingDocuments returns IDs of documents with no Merkle leaf of
	// record, oldest first, up to limit.
	PendingDocuments(ctx context.Context, limit int) ([]string, error)

	// LeafByDocument returns the leaf of record for a document together
	// with its owning batch, or ErrNotFound if the document is unbatched.
	LeafByDocument(ctx context.Context, documentID string) (*docproof.LeafRecord, *docproof.MerkleBatch, error)

	// BatchByID returns a batch and its leaves in leaf index order, or
	// ErrNotFound.
	BatchByID(ctx context.Context, batchID int64) (*docproof.MerkleBatch, []*docproof.LeafRecord, error)

	// StoreBatch atomically persists a sealed batch and all of its leaves,
	// returning the assigned batch ID.
	StoreBatch(ctx context.Context, batch *docproof.MerkleBatch, leaves []*docproof.LeafRecord) (int64, error)

	// LatestProof returns the most recent timestamp proof for a document,
	// or ErrNotFound if the document has none.
	LatestProof(ctx context.Context, documentID string) (*docproof.TimestampProof, error)

	// ProofChain returns every timestamp proof for a document, oldest
	// first. A document with no proofs yields an empty slice, not an error.
	ProofChain(ctx context.Context, documentID string) ([]*docproof.TimestampProof, error)

	// StoreProof appends a timestamp proof, returning the assigned ID.
	// Proofs are append-only; there is no update or delete.
	StoreProof(ctx context.Context, proof *docproof.TimestampProof) (int64, error)
}

// ContentSource provides the raw bytes of a document so its content hash can
// be computed. Content lives outside the proof store (object storage, a
// directory, a test map); this interface is the seam between them.
type ContentSource interface {
	Content(ctx context.Context, documentID string) ([]byte, error)
}
