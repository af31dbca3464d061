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

package batch

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/google/docproof"
	"github.com/google/docproof/hashchain"
	"github.com/google/docproof/merkle"
	"github.com/google/docproof/storage/memory"
	"github.com/google/docproof/util/clock"
)

func testCoordinator(t *testing.T, store *memory.Storage, opts Options) *Coordinator {
	t.Helper()
	signer, err := hashchain.NewSigner([]byte("test-key"))
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	ts := clock.NewFake(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	return NewCoordinator(store, store, merkle.NewSHA256(), signer, ts, opts)
}

func addDocuments(store *memory.Storage, n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("d%d", i+1)
		store.AddDocument(ids[i], []byte(fmt.Sprintf("content of d%d", i+1)))
	}
	return ids
}

func TestCreateBatchEmpty(t *testing.T) {
	c := testCoordinator(t, memory.New(), Options{})
	if _, err := c.CreateBatch(context.Background(), nil, nil); !errors.Is(err, docproof.ErrEmptyBatch) {
		t.Fatalf("CreateBatch(nil): err=%v, want ErrEmptyBatch", err)
	}
}

func TestCreateBatchSealsTree(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	ids := addDocuments(store, 5)
	c := testCoordinator(t, store, Options{})

	batchID, err := c.CreateBatch(ctx, ids, map[string]string{"origin": "test"})
	if err != nil {
		t.Fatalf("CreateBatch: %v", err)
	}

	batch, leaves, err := store.BatchByID(ctx, batchID)
	if err != nil {
		t.Fatalf("BatchByID: %v", err)
	}
	if got, want := batch.LeafCount, int64(5); got != want {
		t.Errorf("LeafCount=%v, want %v", got, want)
	}
	if got, want := batch.TreeHeight, 3; got != want {
		t.Errorf("TreeHeight=%v, want %v", got, want)
	}
	if diff := cmp.Diff(map[string]string{"origin": "test"}, batch.Metadata); diff != "" {
		t.Errorf("Metadata diff (-want +got):\n%v", diff)
	}

	hasher := merkle.NewSHA256()
	verifier := merkle.NewVerifier(hasher)
	for i, leaf := range leaves {
		if got, want := leaf.LeafIndex, int64(i); got != want {
			t.Errorf("leaf %d: LeafIndex=%v, want %v", i, got, want)
		}
		if got, want := leaf.DocumentID, ids[i]; got != want {
			t.Errorf("leaf %d: DocumentID=%v, want %v", i, got, want)
		}
		if !verifier.VerifyInclusion(leaf.LeafHash, leaf.ProofPath, batch.RootHash) {
			t.Errorf("leaf %d: stored proof path does not verify against batch root", i)
		}
	}

	signer, _ := hashchain.NewSigner([]byte("test-key"))
	if !signer.VerifyBatch(batch.RootHash, batch.BatchTimestamp, batch.BatchSignature) {
		t.Error("batch seal signature does not verify")
	}

	// Batched documents are no longer pending.
	pending, err := c.SelectPending(ctx, 100)
	if err != nil {
		t.Fatalf("SelectPending: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("SelectPending after batch=%v, want none", pending)
	}
}

func TestCreateBatchRetriesStore(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	ids := addDocuments(store, 3)
	c := testCoordinator(t, store, Options{StoreAttempts: 3})

	store.FailNextStoreBatch(2)
	if _, err := c.CreateBatch(ctx, ids, nil); err != nil {
		t.Fatalf("CreateBatch with 2 injected failures: %v, want success on third attempt", err)
	}
}

func TestCreateBatchSurfacesPersistentFailure(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	ids := addDocuments(store, 3)
	c := testCoordinator(t, store, Options{StoreAttempts: 3})

	store.FailNextStoreBatch(3)
	if _, err := c.CreateBatch(ctx, ids, nil); !errors.Is(err, memory.ErrInjected) {
		t.Fatalf("CreateBatch with 3 injected failures: err=%v, want ErrInjected", err)
	}
}

func TestCreateBatchMissingContent(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	store.AddDocument("d1", []byte("present"))
	c := testCoordinator(t, store, Options{})

	if _, err := c.CreateBatch(ctx, []string{"d1", "ghost"}, nil); err == nil {
		t.Fatal("CreateBatch with missing content succeeded, want error")
	}
	// Nothing may be committed when hashing fails.
	pending, err := store.PendingDocuments(ctx, 100)
	if err != nil {
		t.Fatalf("PendingDocuments: %v", err)
	}
	if diff := cmp.Diff([]string{"d1"}, pending); diff != "" {
		t.Errorf("pending diff (-want +got):\n%v", diff)
	}
}

func TestExecutePassThreshold(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	addDocuments(store, 5)
	c := testCoordinator(t, store, Options{MinBatchSize: 10})

	n, err := c.ExecutePass(ctx)
	if err != nil {
		t.Fatalf("ExecutePass: %v", err)
	}
	if n != 0 {
		t.Errorf("ExecutePass below threshold batched %v documents, want 0", n)
	}

	addDocuments(store, 10)
	n, err = c.ExecutePass(ctx)
	if err != nil {
		t.Fatalf("ExecutePass: %v", err)
	}
	if got, want := n, 10; got != want {
		t.Errorf("ExecutePass batched %v documents, want %v", got, want)
	}
}

func TestExecutePassRespectsMaxBatchSize(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	addDocuments(store, 30)
	c := testCoordinator(t, store, Options{MaxBatchSize: 25, MinBatchSize: 10})

	n, err := c.ExecutePass(ctx)
	if err != nil {
		t.Fatalf("ExecutePass: %v", err)
	}
	if got, want := n, 25; got != want {
		t.Errorf("ExecutePass batched %v documents, want %v", got, want)
	}
	pending, err := store.PendingDocuments(ctx, 100)
	if err != nil {
		t.Fatalf("PendingDocuments: %v", err)
	}
	if got, want := len(pending), 5; got != want {
		t.Errorf("%v documents still pending, want %v", got, want)
	}
}
