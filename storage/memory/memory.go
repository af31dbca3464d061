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

// Package memory provides a map-backed storage.Storage and
// storage.ContentSource with the same atomicity semantics as the SQL
// implementation. It backs tests and local experimentation; nothing is
// persisted across process restarts.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/docproof"
	"github.com/google/docproof/storage"
)

// ErrInjected is the error returned by operations that were told to fail.
var ErrInjected = errors.New("memory: injected storage failure")

// Storage implements storage.Storage and storage.ContentSource in memory.
// All methods are safe for concurrent use.
type Storage struct {
	mu       sync.Mutex
	docOrder []string
	contents map[string][]byte

	batches     map[int64]*docproof.MerkleBatch
	batchLeaves map[int64][]*docproof.LeafRecord
	leafByDoc   map[string]int64
	proofs      map[string][]*docproof.TimestampProof

	nextBatchID int64
	nextProofID int64

	failStoreBatch int
}

// New creates an empty Storage.
func New() *Storage {
	return &Storage{
		contents:    make(map[string][]byte),
		batches:     make(map[int64]*docproof.MerkleBatch),
		batchLeaves: make(map[int64][]*docproof.LeafRecord),
		leafByDoc:   make(map[string]int64),
		proofs:      make(map[string][]*docproof.TimestampProof),
	}
}

// AddDocument registers a document and its content. Documents become pending
// in insertion order.
func (s *Storage) AddDocument(documentID string, content []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.contents[documentID]; !ok {
		s.docOrder = append(s.docOrder, documentID)
	}
	s.contents[documentID] = content
}

// FailNextStoreBatch makes the next n StoreBatch calls fail with ErrInjected.
func (s *Storage) FailNextStoreBatch(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failStoreBatch = n
}

// Content implements storage.ContentSource.
func (s *Storage) Content(_ context.Context, documentID string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	content, ok := s.contents[documentID]
	if !ok {
		return nil, fmt.Errorf("content for document %q: %w", documentID, storage.ErrNotFound)
	}
	return content, nil
}

// PendingDocuments implements storage.Storage.
func (s *Storage) PendingDocuments(_ context.Context, limit int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var pending []string
	for _, id := range s.docOrder {
		if _, batched := s.leafByDoc[id]; batched {
			continue
		}
		pending = append(pending, id)
		if len(pending) == limit {
			break
		}
	}
	return pending, nil
}

// LeafByDocument implements storage.Storage.
func (s *Storage) LeafByDocument(_ context.Context, documentID string) (*docproof.LeafRecord, *docproof.MerkleBatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	batchID, ok := s.leafByDoc[documentID]
	if !ok {
		return nil, nil, fmt.Errorf("merkle leaf for document %q: %w", documentID, storage.ErrNotFound)
	}
	for _, leaf := range s.batchLeaves[batchID] {
		if leaf.DocumentID == documentID {
			return leaf, s.batches[batchID], nil
		}
	}
	return nil, nil, fmt.Errorf("merkle leaf for document %q: %w", documentID, storage.ErrNotFound)
}

// BatchByID implements storage.Storage.
func (s *Storage) BatchByID(_ context.Context, batchID int64) (*docproof.MerkleBatch, []*docproof.LeafRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch, ok := s.batches[batchID]
	if !ok {
		return nil, nil, fmt.Errorf("batch %d: %w", batchID, storage.ErrNotFound)
	}
	return batch, s.batchLeaves[batchID], nil
}

// StoreBatch implements storage.Storage. The batch and its leaves become
// visible together or not at all.
func (s *Storage) StoreBatch(_ context.Context, batch *docproof.MerkleBatch, leaves []*docproof.LeafRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failStoreBatch > 0 {
		s.failStoreBatch--
		return 0, ErrInjected
	}
	for _, leaf := range leaves {
		if _, exists := s.leafByDoc[leaf.DocumentID]; exists {
			return 0, fmt.Errorf("document %q already has a merkle leaf of record", leaf.DocumentID)
		}
	}
	s.nextBatchID++
	id := s.nextBatchID
	stored := *batch
	stored.ID = id
	s.batches[id] = &stored
	s.batchLeaves[id] = leaves
	for _, leaf := range leaves {
		s.leafByDoc[leaf.DocumentID] = id
	}
	return id, nil
}

// LatestProof implements storage.Storage.
func (s *Storage) LatestProof(_ context.Context, documentID string) (*docproof.TimestampProof, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	chain := s.proofs[documentID]
	if len(chain) == 0 {
		return nil, fmt.Errorf("timestamp proof for document %q: %w", documentID, storage.ErrNotFound)
	}
	return chain[len(chain)-1], nil
}

// ProofChain implements storage.Storage.
func (s *Storage) ProofChain(_ context.Context, documentID string) ([]*docproof.TimestampProof, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	chain := s.proofs[documentID]
	out := make([]*docproof.TimestampProof, len(chain))
	copy(out, chain)
	return out, nil
}

// StoreProof implements storage.Storage.
func (s *Storage) StoreProof(_ context.Context, proof *docproof.TimestampProof) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextProofID++
	stored := *proof
	stored.ID = s.nextProofID
	s.proofs[proof.DocumentID] = append(s.proofs[proof.DocumentID], &stored)
	return stored.ID, nil
}
