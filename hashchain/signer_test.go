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

package hashchain

import (
	"testing"
	"time"

	"github.com/google/docproof/merkle"
)

func TestNewSignerEmptyKey(t *testing.T) {
	if _, err := NewSigner(nil); err == nil {
		t.Error("NewSigner(nil)=nil error, want error")
	}
}

func TestSignerProofRoundTrip(t *testing.T) {
	hasher := merkle.NewSHA256()
	signer, err := NewSigner([]byte("key-one"))
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	otherSigner, err := NewSigner([]byte("key-two"))
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}

	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	hash := hasher.HashLeaf([]byte("content"))
	sig := signer.SignProof("doc-1", hash, ts)

	for _, tc := range []struct {
		desc string
		ok   bool
		got  bool
	}{
		{desc: "valid", ok: true, got: signer.VerifyProof("doc-1", hash, ts, sig)},
		{desc: "wrong key", ok: false, got: otherSigner.VerifyProof("doc-1", hash, ts, sig)},
		{desc: "wrong document", ok: false, got: signer.VerifyProof("doc-2", hash, ts, sig)},
		{desc: "wrong hash", ok: false, got: signer.VerifyProof("doc-1", hasher.HashLeaf([]byte("other")), ts, sig)},
		{desc: "wrong time", ok: false, got: signer.VerifyProof("doc-1", hash, ts.Add(time.Second), sig)},
	} {
		if tc.got != tc.ok {
			t.Errorf("%v: VerifyProof=%v, want %v", tc.desc, tc.got, tc.ok)
		}
	}
}

func TestSignerBatchRoundTrip(t *testing.T) {
	hasher := merkle.NewSHA256()
	signer, err := NewSigner([]byte("key-one"))
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	root := hasher.HashChildren(hasher.HashLeaf([]byte("a")), hasher.HashLeaf([]byte("b")))

	sig := signer.SignBatch(root, ts)
	if !signer.VerifyBatch(root, ts, sig) {
		t.Error("valid batch seal does not verify")
	}
	if signer.VerifyBatch(hasher.HashLeaf([]byte("a")), ts, sig) {
		t.Error("batch seal verified against a different root")
	}
}
