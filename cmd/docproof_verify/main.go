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

// The docproof_verify binary checks one document's current content against
// its proof of record and prints the outcome, including the stored proof
// path for transparency.
//
// Exit codes: 0 verified, 1 tampered, 2 no proof of record.
package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"os"

	"k8s.io/klog/v2"

	"github.com/google/docproof"
	"github.com/google/docproof/hashchain"
	"github.com/google/docproof/integrity"
	"github.com/google/docproof/merkle"
	"github.com/google/docproof/storage"
	"github.com/google/docproof/storage/mysql"
)

var (
	mysqlURI      = flag.String("mysql_uri", "docproof:docproof@tcp(127.0.0.1:3306)/docproof", "Connection URI for the MySQL proof store")
	documentID    = flag.String("document_id", "", "ID of the document to verify")
	file          = flag.String("file", "", "Path to the document's current content")
	hashAlgorithm = flag.String("hash_algorithm", "sha256", "Content hash algorithm, one of: sha256, blake3")
	hmacKeyFile   = flag.String("hmac_key_file", "", "Optional HMAC key file; when set, proof signatures are checked too")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	defer klog.Flush()

	if *documentID == "" || *file == "" {
		klog.Exitf("--document_id and --file must be set")
	}
	var hasher merkle.TreeHasher
	switch *hashAlgorithm {
	case "sha256":
		hasher = merkle.NewSHA256()
	case "blake3":
		hasher = merkle.NewBLAKE3()
	default:
		klog.Exitf("Unknown --hash_algorithm %q", *hashAlgorithm)
	}
	content, err := os.ReadFile(*file)
	if err != nil {
		klog.Exitf("Failed to read %v: %v", *file, err)
	}

	ctx := context.Background()
	db, err := mysql.OpenDB(*mysqlURI)
	if err != nil {
		klog.Exitf("Failed to open MySQL database: %v", err)
	}
	defer db.Close()
	store := mysql.New(db)

	verifier := integrity.New(store, hasher)
	if *hmacKeyFile != "" {
		key, err := os.ReadFile(*hmacKeyFile)
		if err != nil {
			klog.Exitf("Failed to read --hmac_key_file: %v", err)
		}
		signer, err := hashchain.NewSigner(bytes.TrimSpace(key))
		if err != nil {
			klog.Exitf("Failed to create signer: %v", err)
		}
		verifier.SetSigner(signer)
	}

	currentHash := hashchain.ContentHash(hasher, content)
	result, err := verifier.VerifyDocument(ctx, *documentID, currentHash)
	if err != nil {
		klog.Exitf("Verification could not run: %v", err)
	}

	fmt.Printf("%v: %v\n", result.Status, result.Message)
	fmt.Printf("content hash: %v\n", hex.EncodeToString(currentHash))
	printProofPath(ctx, store, *documentID)

	switch result.Status {
	case docproof.StatusVerified:
		os.Exit(0)
	case docproof.StatusTampered:
		os.Exit(1)
	default:
		os.Exit(2)
	}
}

// printProofPath shows the stored leaf proof path when the document is
// covered by a Merkle batch, so the proof can be checked independently.
func printProofPath(ctx context.Context, store storage.Storage, documentID string) {
	leaf, batch, err := store.LeafByDocument(ctx, documentID)
	if errors.Is(err, storage.ErrNotFound) {
		return
	}
	if err != nil {
		klog.Warningf("Failed to load proof path: %v", err)
		return
	}
	fmt.Printf("merkle batch %d (sealed %v, %d leaves, height %d)\n",
		batch.ID, batch.BatchTimestamp.UTC().Format("2006-01-02 15:04:05"), batch.LeafCount, batch.TreeHeight)
	fmt.Printf("root: %v\n", hex.EncodeToString(batch.RootHash))
	fmt.Printf("leaf %d proof path (leaf to root):\n", leaf.LeafIndex)
	for i, el := range leaf.ProofPath {
		fmt.Printf("  %2d: %-5v %v\n", i, el.Position, hex.EncodeToString(el.Hash))
	}
}
