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

// Package docproof contains the core types for document integrity proofs.
//
// Documents are covered by one of two proof mechanisms of record: a leaf in
// an immutable Merkle batch, or a per-document chain of HMAC-signed timestamp
// proofs. The packages below this one build, persist and verify those
// artifacts; this package defines the shapes they exchange.
package docproof

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// Position indicates which side of the running hash a proof path sibling
// occupies at its tree level.
type Position string

// Valid Position values. These appear verbatim in the serialized proof path
// format and must not change.
const (
	PositionLeft  Position = "left"
	PositionRight Position = "right"
)

// ProofPathElement is one level of a Merkle inclusion proof: the sibling hash
// and the side it sits on. A full proof path is ordered leaf to root.
type ProofPathElement struct {
	Hash     []byte
	Position Position
}

// jsonProofPathElement is the interop wire form of a ProofPathElement:
// {"hash": <lowercase hex>, "position": "left"|"right"}.
type jsonProofPathElement struct {
	Hash     string   `json:"hash"`
	Position Position `json:"position"`
}

// MarshalJSON renders the element in the wire format, with the hash as a
// lowercase hex string.
func (e ProofPathElement) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonProofPathElement{
		Hash:     hex.EncodeToString(e.Hash),
		Position: e.Position,
	})
}

// UnmarshalJSON parses the wire format, rejecting malformed hashes and
// unknown positions.
func (e *ProofPathElement) UnmarshalJSON(data []byte) error {
	var w jsonProofPathElement
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	h, err := hex.DecodeString(w.Hash)
	if err != nil {
		return fmt.Errorf("proof path hash is not valid hex: %v", err)
	}
	if w.Position != PositionLeft && w.Position != PositionRight {
		return fmt.Errorf("unknown proof path position %q", w.Position)
	}
	e.Hash = h
	e.Position = w.Position
	return nil
}

// LeafRecord ties one document to its place in a Merkle batch. The proof path
// plus the owning batch's root hash are sufficient to re-verify the leaf
// without any other leaves.
type LeafRecord struct {
	DocumentID string
	LeafHash   []byte
	LeafIndex  int64
	ProofPath  []ProofPathElement
}

// MerkleBatch is an immutable group of leaves sealed under one root hash.
// Batches are created in a single atomic commit together with all of their
// leaves; no leaf is ever added to or removed from an existing batch.
type MerkleBatch struct {
	ID             int64
	BatchTimestamp time.Time
	RootHash       []byte
	LeafCount      int64
	TreeHeight     int
	BatchSignature []byte
	Metadata       map[string]string
}

// TimestampProof is a standalone integrity record for one document. Proofs
// for the same document form a backward chain through PreviousProofHash,
// which is empty for the first proof of a document.
type TimestampProof struct {
	ID                int64
	DocumentID        string
	ProofHash         []byte
	ProofTimestamp    time.Time
	HMACSignature     []byte
	PreviousProofHash []byte
}

// Status is the outcome of an integrity check. The three states are distinct
// by design: callers must render "no proof" differently from both success and
// tamper detection.
type Status int

const (
	// StatusNoProof means the document has no proof of record at all.
	StatusNoProof Status = iota
	// StatusVerified means the presented hash matched the proof of record.
	StatusVerified
	// StatusTampered means the check ran and the document content does not
	// match its proof of record.
	StatusTampered
)

func (s Status) String() string {
	switch s {
	case StatusNoProof:
		return "NO_PROOF"
	case StatusVerified:
		return "VERIFIED"
	case StatusTampered:
		return "TAMPERED"
	default:
		return fmt.Sprintf("UNKNOWN_STATUS(%d)", int(s))
	}
}

// VerificationResult is the value returned by integrity checks. Verification
// failure is an expected outcome and is reported here, never as an error.
type VerificationResult struct {
	Status  Status
	Message string
}

// Valid reports whether the check concluded the document is untampered.
func (r VerificationResult) Valid() bool {
	return r.Status == StatusVerified
}
