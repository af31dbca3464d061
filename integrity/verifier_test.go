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

package integrity

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/google/docproof"
	"github.com/google/docproof/batch"
	"github.com/google/docproof/hashchain"
	"github.com/google/docproof/merkle"
	"github.com/google/docproof/storage/memory"
	"github.com/google/docproof/util/clock"
)

var testTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func testSigner(t *testing.T) *hashchain.Signer {
	t.Helper()
	signer, err := hashchain.NewSigner([]byte("test-key"))
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	return signer
}

// Uploads d1..d5, seals them into one batch, then checks every verification
// outcome a caller can observe.
func TestVerifyDocumentBatchScenario(t *testing.T) {
	ctx := context.Background()
	hasher := merkle.NewSHA256()
	store := memory.New()
	signer := testSigner(t)

	contents := map[string][]byte{}
	var ids []string
	for i := 1; i <= 5; i++ {
		id := fmt.Sprintf("d%d", i)
		content := []byte(fmt.Sprintf("content of %v", id))
		store.AddDocument(id, content)
		contents[id] = content
		ids = append(ids, id)
	}

	coordinator := batch.NewCoordinator(store, store, hasher, signer, clock.NewFake(testTime), batch.Options{})
	pending, err := coordinator.SelectPending(ctx, 100)
	if err != nil {
		t.Fatalf("SelectPending: %v", err)
	}
	if diff := cmp.Diff(ids, pending); diff != "" {
		t.Fatalf("pending diff (-want +got):\n%v", diff)
	}
	batchID, err := coordinator.CreateBatch(ctx, pending, nil)
	if err != nil {
		t.Fatalf("CreateBatch: %v", err)
	}
	sealed, _, err := store.BatchByID(ctx, batchID)
	if err != nil {
		t.Fatalf("BatchByID: %v", err)
	}
	if sealed.LeafCount != 5 || sealed.TreeHeight != 3 {
		t.Fatalf("sealed batch has leafCount=%v height=%v, want 5 and 3", sealed.LeafCount, sealed.TreeHeight)
	}

	verifier := New(store, hasher)
	verifier.SetSigner(signer)

	// Unmodified content verifies.
	result, err := verifier.VerifyDocument(ctx, "d3", hasher.HashLeaf(contents["d3"]))
	if err != nil {
		t.Fatalf("VerifyDocument: %v", err)
	}
	if got, want := result.Status, docproof.StatusVerified; got != want {
		t.Errorf("Status=%v, want %v (%v)", got, want, result.Message)
	}

	// Verification is a pure read: same inputs, same result.
	again, err := verifier.VerifyDocument(ctx, "d3", hasher.HashLeaf(contents["d3"]))
	if err != nil {
		t.Fatalf("VerifyDocument: %v", err)
	}
	if diff := cmp.Diff(result, again); diff != "" {
		t.Errorf("repeated verification diff (-first +second):\n%v", diff)
	}

	// Modified content is reported as tampered.
	result, err = verifier.VerifyDocument(ctx, "d3", hasher.HashLeaf([]byte("modified content")))
	if err != nil {
		t.Fatalf("VerifyDocument: %v", err)
	}
	if got, want := result.Status, docproof.StatusTampered; got != want {
		t.Errorf("Status after modification=%v, want %v", got, want)
	}

	// A document with no proof at all is a distinct outcome.
	result, err = verifier.VerifyDocument(ctx, "d99", hasher.HashLeaf([]byte("whatever")))
	if err != nil {
		t.Fatalf("VerifyDocument: %v", err)
	}
	if got, want := result.Status, docproof.StatusNoProof; got != want {
		t.Errorf("Status without proof=%v, want %v", got, want)
	}
}

func TestVerifyDocumentTimestampChain(t *testing.T) {
	ctx := context.Background()
	hasher := merkle.NewSHA256()
	store := memory.New()
	signer := testSigner(t)
	ts := clock.NewFake(testTime)
	chainer := hashchain.NewChainer(store, signer, ts)

	v1 := hashchain.ContentHash(hasher, []byte("draft"))
	if _, err := chainer.AppendProof(ctx, "doc", v1); err != nil {
		t.Fatalf("AppendProof: %v", err)
	}
	ts.Advance(time.Hour)
	v2 := hashchain.ContentHash(hasher, []byte("final"))
	if _, err := chainer.AppendProof(ctx, "doc", v2); err != nil {
		t.Fatalf("AppendProof: %v", err)
	}

	verifier := New(store, hasher)
	verifier.SetSigner(signer)

	// Current content matches the newest proof in the chain.
	result, err := verifier.VerifyDocument(ctx, "doc", v2)
	if err != nil {
		t.Fatalf("VerifyDocument: %v", err)
	}
	if got, want := result.Status, docproof.StatusVerified; got != want {
		t.Errorf("Status=%v, want %v (%v)", got, want, result.Message)
	}

	// Content matching only an older proof counts as modified since.
	result, err = verifier.VerifyDocument(ctx, "doc", v1)
	if err != nil {
		t.Fatalf("VerifyDocument: %v", err)
	}
	if got, want := result.Status, docproof.StatusTampered; got != want {
		t.Errorf("Status for superseded content=%v, want %v", got, want)
	}
}

func TestVerifyDocumentBrokenChain(t *testing.T) {
	ctx := context.Background()
	hasher := merkle.NewSHA256()
	store := memory.New()
	signer := testSigner(t)

	// Store a chain whose middle link does not reference its predecessor.
	hashes := [][]byte{
		hashchain.ContentHash(hasher, []byte("v1")),
		hashchain.ContentHash(hasher, []byte("v2")),
		hashchain.ContentHash(hasher, []byte("v3")),
	}
	for i, h := range hashes {
		proof := &docproof.TimestampProof{
			DocumentID:     "doc",
			ProofHash:      h,
			ProofTimestamp: testTime.Add(time.Duration(i) * time.Hour),
			HMACSignature:  signer.SignProof("doc", h, testTime.Add(time.Duration(i)*time.Hour)),
		}
		if i == 1 {
			proof.PreviousProofHash = hashes[0]
		} else if i == 2 {
			proof.PreviousProofHash = hashchain.ContentHash(hasher, []byte("forged"))
		}
		if _, err := store.StoreProof(ctx, proof); err != nil {
			t.Fatalf("StoreProof: %v", err)
		}
	}

	verifier := New(store, hasher)
	result, err := verifier.VerifyDocument(ctx, "doc", hashes[2])
	if err != nil {
		t.Fatalf("VerifyDocument: %v", err)
	}
	if got, want := result.Status, docproof.StatusTampered; got != want {
		t.Errorf("Status for broken chain=%v, want %v (%v)", got, want, result.Message)
	}
}

// A Merkle leaf takes precedence: once a document is batched, its old
// timestamp chain no longer decides the outcome.
func TestVerifyDocumentLeafPrecedence(t *testing.T) {
	ctx := context.Background()
	hasher := merkle.NewSHA256()
	store := memory.New()
	signer := testSigner(t)
	ts := clock.NewFake(testTime)

	content := []byte("the document")
	store.AddDocument("doc", content)
	chainer := hashchain.NewChainer(store, signer, ts)
	staleHash := hashchain.ContentHash(hasher, []byte("older revision"))
	if _, err := chainer.AppendProof(ctx, "doc", staleHash); err != nil {
		t.Fatalf("AppendProof: %v", err)
	}

	coordinator := batch.NewCoordinator(store, store, hasher, signer, ts, batch.Options{})
	if _, err := coordinator.CreateBatch(ctx, []string{"doc"}, nil); err != nil {
		t.Fatalf("CreateBatch: %v", err)
	}

	verifier := New(store, hasher)
	result, err := verifier.VerifyDocument(ctx, "doc", hasher.HashLeaf(content))
	if err != nil {
		t.Fatalf("VerifyDocument: %v", err)
	}
	if got, want := result.Status, docproof.StatusVerified; got != want {
		t.Errorf("Status=%v, want %v (%v); merkle leaf should take precedence over the stale chain", got, want, result.Message)
	}
}
