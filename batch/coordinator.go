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

// Package batch folds pending documents into sealed Merkle batches. The
// Coordinator performs one batching pass; the Runner schedules passes on a
// timer and guarantees they never overlap.
package batch

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"github.com/google/docproof"
	"github.com/google/docproof/hashchain"
	"github.com/google/docproof/merkle"
	"github.com/google/docproof/storage"
	"github.com/google/docproof/util/clock"
)

// Options control batching policy. The zero value gets sensible defaults.
type Options struct {
	// MaxBatchSize caps the number of documents folded into one batch.
	MaxBatchSize int
	// MinBatchSize is the pending-document threshold below which a
	// scheduled pass does nothing, trading proof latency for batch
	// efficiency. It only applies to scheduled passes; explicit
	// CreateBatch calls are not subject to it.
	MinBatchSize int
	// HashWorkers bounds how many documents are fetched and hashed
	// concurrently during batch creation.
	HashWorkers int
	// StoreAttempts is how many times a failed batch commit is attempted
	// before the error is surfaced.
	StoreAttempts int
}

func (o *Options) applyDefaults() {
	if o.MaxBatchSize <= 0 {
		o.MaxBatchSize = 100
	}
	if o.MinBatchSize <= 0 {
		o.MinBatchSize = 10
	}
	if o.HashWorkers <= 0 {
		o.HashWorkers = 4
	}
	if o.StoreAttempts <= 0 {
		o.StoreAttempts = 3
	}
}

// Coordinator selects pending documents and seals them into Merkle batches.
type Coordinator struct {
	store      storage.Storage
	source     storage.ContentSource
	hasher     merkle.TreeHasher
	signer     *hashchain.Signer
	timeSource clock.TimeSource
	opts       Options
}

// NewCoordinator creates a Coordinator. All collaborators are required.
func NewCoordinator(store storage.Storage, source storage.ContentSource, hasher merkle.TreeHasher, signer *hashchain.Signer, timeSource clock.TimeSource, opts Options) *Coordinator {
	opts.applyDefaults()
	return &Coordinator{
		store:      store,
		source:     source,
		hasher:     hasher,
		signer:     signer,
		timeSource: timeSource,
		opts:       opts,
	}
}

// SelectPending returns documents with no Merkle leaf of record, oldest
// first, up to max.
func (c *Coordinator) SelectPending(ctx context.Context, max int) ([]string, error) {
	return c.store.PendingDocuments(ctx, max)
}

// CreateBatch hashes the documents' content, builds the tree and persists
// the batch together with all leaf records in one atomic commit. The commit
// is attempted up to Options.StoreAttempts times before the error is
// surfaced; an empty documentIDs fails immediately with ErrEmptyBatch.
func (c *Coordinator) CreateBatch(ctx context.Context, documentIDs []string, metadata map[string]string) (int64, error) {
	if len(documentIDs) == 0 {
		return 0, docproof.ErrEmptyBatch
	}

	leafHashes := make([][]byte, len(documentIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.HashWorkers)
	for i, id := range documentIDs {
		i, id := i, id
		g.Go(func() error {
			content, err := c.source.Content(gctx, id)
			if err != nil {
				return fmt.Errorf("fetch content for %q: %w", id, err)
			}
			leafHashes[i] = c.hasher.HashLeaf(content)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	tree, err := merkle.BuildTree(c.hasher, leafHashes)
	if err != nil {
		return 0, err
	}

	now := c.timeSource.Now()
	batch := &docproof.MerkleBatch{
		BatchTimestamp: now,
		RootHash:       tree.RootHash,
		LeafCount:      int64(len(documentIDs)),
		TreeHeight:     tree.Height,
		BatchSignature: c.signer.SignBatch(tree.RootHash, now),
		Metadata:       metadata,
	}
	leaves := make([]*docproof.LeafRecord, len(documentIDs))
	for i, id := range documentIDs {
		leaves[i] = &docproof.LeafRecord{
			DocumentID: id,
			LeafHash:   leafHashes[i],
			LeafIndex:  int64(i),
			ProofPath:  tree.Paths[i],
		}
	}

	var batchID int64
	for attempt := 1; ; attempt++ {
		batchID, err = c.store.StoreBatch(ctx, batch, leaves)
		if err == nil {
			break
		}
		if attempt >= c.opts.StoreAttempts || ctx.Err() != nil {
			return 0, fmt.Errorf("store batch of %d leaves after %d attempts: %w", len(leaves), attempt, err)
		}
		klog.Warningf("batch store attempt %d/%d failed, retrying: %v", attempt, c.opts.StoreAttempts, err)
	}
	klog.Infof("sealed batch %d: %d leaves, height %d, root %x", batchID, len(leaves), tree.Height, tree.RootHash)
	return batchID, nil
}

// ExecutePass performs a single scheduled batching pass: select pending
// documents and, if at least MinBatchSize have accumulated, seal them into a
// batch. It returns the number of documents batched; zero means the pass was
// a no-op.
func (c *Coordinator) ExecutePass(ctx context.Context) (int, error) {
	ids, err := c.SelectPending(ctx, c.opts.MaxBatchSize)
	if err != nil {
		return 0, fmt.Errorf("select pending documents: %w", err)
	}
	if len(ids) < c.opts.MinBatchSize {
		klog.V(1).Infof("%d pending documents below threshold %d, skipping pass", len(ids), c.opts.MinBatchSize)
		return 0, nil
	}
	if _, err := c.CreateBatch(ctx, ids, nil); err != nil {
		return 0, err
	}
	return len(ids), nil
}
