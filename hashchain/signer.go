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
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"time"
)

// Signer produces HMAC-SHA256 authentication tags over proof records and
// batch seals. The key is injected at construction; key management and
// rotation are the caller's concern.
type Signer struct {
	key []byte
}

// NewSigner creates a Signer with the given key. An empty key is rejected.
func NewSigner(key []byte) (*Signer, error) {
	if len(key) == 0 {
		return nil, errors.New("hashchain: signing key must not be empty")
	}
	k := make([]byte, len(key))
	copy(k, key)
	return &Signer{key: k}, nil
}

// The signed structure is length-unambiguous: the document ID is terminated
// by a NUL (IDs never contain one), hashes are fixed width, and the
// timestamp is 8 bytes of Unix seconds, big endian.
func (s *Signer) sign(documentID string, h []byte, ts time.Time) []byte {
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(documentID))
	mac.Write([]byte{0})
	mac.Write(h)
	var sec [8]byte
	binary.BigEndian.PutUint64(sec[:], uint64(ts.Unix()))
	mac.Write(sec[:])
	return mac.Sum(nil)
}

// SignProof returns the signature for a timestamp proof.
func (s *Signer) SignProof(documentID string, proofHash []byte, ts time.Time) []byte {
	return s.sign(documentID, proofHash, ts)
}

// VerifyProof reports whether sig is a valid signature for the proof fields.
func (s *Signer) VerifyProof(documentID string, proofHash []byte, ts time.Time, sig []byte) bool {
	return hmac.Equal(s.SignProof(documentID, proofHash, ts), sig)
}

// SignBatch returns the seal signature for a batch root.
func (s *Signer) SignBatch(rootHash []byte, ts time.Time) []byte {
	return s.sign("", rootHash, ts)
}

// VerifyBatch reports whether sig is a valid seal for the batch root.
func (s *Signer) VerifyBatch(rootHash []byte, ts time.Time, sig []byte) bool {
	return hmac.Equal(s.SignBatch(rootHash, ts), sig)
}
