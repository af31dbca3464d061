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

// Package mysql provides a MySQL-backed implementation of storage.Storage.
// Batch commits rely on MySQL transactions for the required atomicity: the
// batch row and every leaf row land in one transaction or not at all.
package mysql

import (
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql" // mysql driver
	"k8s.io/klog/v2"

	"github.com/google/docproof"
	"github.com/google/docproof/storage"
)

const (
	selectPendingSQL = `SELECT d.document_id FROM documents d
		LEFT JOIN merkle_tree_leaves l ON d.document_id = l.document_id
		WHERE l.document_id IS NULL
		ORDER BY d.created_at, d.document_id
		LIMIT ?`

	insertBatchSQL = `INSERT INTO merkle_tree_batches(batch_timestamp, root_hash, leaf_count, tree_height, batch_signature, metadata)
		VALUES(?, ?, ?, ?, ?, ?)`

	insertLeafSQL = `INSERT INTO merkle_tree_leaves(batch_id, leaf_index, document_id, leaf_hash, proof_path)
		VALUES(?, ?, ?, ?, ?)`

	selectLeafByDocumentSQL = `SELECT l.leaf_index, l.leaf_hash, l.proof_path,
			b.batch_id, b.batch_timestamp, b.root_hash, b.leaf_count, b.tree_height, b.batch_signature, b.metadata
		FROM merkle_tree_leaves l
		JOIN merkle_tree_batches b ON l.batch_id = b.batch_id
		WHERE l.document_id = ?`

	selectBatchSQL = `SELECT batch_id, batch_timestamp, root_hash, leaf_count, tree_height, batch_signature, metadata
		FROM merkle_tree_batches WHERE batch_id = ?`

	selectBatchLeavesSQL = `SELECT document_id, leaf_index, leaf_hash, proof_path
		FROM merkle_tree_leaves WHERE batch_id = ? ORDER BY leaf_index`

	selectLatestProofSQL = `SELECT proof_id, document_id, proof_hash, proof_timestamp, hmac_signature, previous_proof_hash
		FROM timestamp_proofs WHERE document_id = ? ORDER BY proof_id DESC LIMIT 1`

	selectProofChainSQL = `SELECT proof_id, document_id, proof_hash, proof_timestamp, hmac_signature, previous_proof_hash
		FROM timestamp_proofs WHERE document_id = ? ORDER BY proof_id`

	insertProofSQL = `INSERT INTO timestamp_proofs(document_id, proof_hash, proof_timestamp, hmac_signature, previous_proof_hash)
		VALUES(?, ?, ?, ?, ?)`
)

// OpenDB opens a MySQL database from a go-sql-driver DSN. Timestamp columns
// are scanned as time.Time, so parseTime is forced on if the DSN does not
// set it.
func OpenDB(dsn string) (*sql.DB, error) {
	if !strings.Contains(dsn, "parseTime") {
		if strings.Contains(dsn, "?") {
			dsn += "&parseTime=true"
		} else {
			dsn += "?parseTime=true"
		}
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	return db, nil
}

// Storage implements storage.Storage over MySQL.
type Storage struct {
	db *sql.DB
}

// New creates a Storage using the given database handle.
func New(db *sql.DB) *Storage {
	return &Storage{db: db}
}

// CheckDatabaseAccessible pings the database.
func (s *Storage) CheckDatabaseAccessible(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// PendingDocuments implements storage.Storage.
func (s *Storage) PendingDocuments(ctx context.Context, limit int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, selectPendingSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("select pending documents: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// StoreBatch implements storage.Storage. The batch row and all leaf rows are
// written in a single transaction.
func (s *Storage) StoreBatch(ctx context.Context, batch *docproof.MerkleBatch, leaves []*docproof.LeafRecord) (int64, error) {
	metadata, err := marshalMetadata(batch.Metadata)
	if err != nil {
		return 0, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin batch transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			klog.Warningf("rollback after failed batch store: %v", err)
		}
	}()

	res, err := tx.ExecContext(ctx, insertBatchSQL,
		batch.BatchTimestamp, hex.EncodeToString(batch.RootHash), batch.LeafCount,
		batch.TreeHeight, hex.EncodeToString(batch.BatchSignature), metadata)
	if err != nil {
		return 0, fmt.Errorf("insert batch: %w", err)
	}
	batchID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	stmt, err := tx.PrepareContext(ctx, insertLeafSQL)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()
	for _, leaf := range leaves {
		path, err := json.Marshal(leaf.ProofPath)
		if err != nil {
			return 0, fmt.Errorf("marshal proof path for %q: %v", leaf.DocumentID, err)
		}
		if _, err := stmt.ExecContext(ctx, batchID, leaf.LeafIndex, leaf.DocumentID,
			hex.EncodeToString(leaf.LeafHash), path); err != nil {
			return 0, fmt.Errorf("insert leaf %d (%q): %w", leaf.LeafIndex, leaf.DocumentID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit batch: %w", err)
	}
	return batchID, nil
}

// LeafByDocument implements storage.Storage.
func (s *Storage) LeafByDocument(ctx context.Context, documentID string) (*docproof.LeafRecord, *docproof.MerkleBatch, error) {
	row := s.db.QueryRowContext(ctx, selectLeafByDocumentSQL, documentID)
	var (
		leafIndex          int64
		leafHash, pathJSON string
		batch              docproof.MerkleBatch
		rootHash, sig      string
		metadata           sql.NullString
	)
	err := row.Scan(&leafIndex, &leafHash, &pathJSON,
		&batch.ID, &batch.BatchTimestamp, &rootHash, &batch.LeafCount, &batch.TreeHeight, &sig, &metadata)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, fmt.Errorf("merkle leaf for document %q: %w", documentID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("select merkle leaf for %q: %w", documentID, err)
	}
	leaf := &docproof.LeafRecord{DocumentID: documentID, LeafIndex: leafIndex}
	if leaf.LeafHash, err = hex.DecodeString(leafHash); err != nil {
		return nil, nil, fmt.Errorf("leaf hash for %q is not valid hex: %v", documentID, err)
	}
	if err := json.Unmarshal([]byte(pathJSON), &leaf.ProofPath); err != nil {
		return nil, nil, fmt.Errorf("unmarshal proof path for %q: %v", documentID, err)
	}
	if err := fillBatch(&batch, rootHash, sig, metadata); err != nil {
		return nil, nil, err
	}
	return leaf, &batch, nil
}

// BatchByID implements storage.Storage.
func (s *Storage) BatchByID(ctx context.Context, batchID int64) (*docproof.MerkleBatch, []*docproof.LeafRecord, error) {
	row := s.db.QueryRowContext(ctx, selectBatchSQL, batchID)
	var (
		batch         docproof.MerkleBatch
		rootHash, sig string
		metadata      sql.NullString
	)
	err := row.Scan(&batch.ID, &batch.BatchTimestamp, &rootHash, &batch.LeafCount, &batch.TreeHeight, &sig, &metadata)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, fmt.Errorf("batch %d: %w", batchID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("select batch %d: %w", batchID, err)
	}
	if err := fillBatch(&batch, rootHash, sig, metadata); err != nil {
		return nil, nil, err
	}

	rows, err := s.db.QueryContext(ctx, selectBatchLeavesSQL, batchID)
	if err != nil {
		return nil, nil, fmt.Errorf("select leaves of batch %d: %w", batchID, err)
	}
	defer rows.Close()
	var leaves []*docproof.LeafRecord
	for rows.Next() {
		var (
			leaf               docproof.LeafRecord
			leafHash, pathJSON string
		)
		if err := rows.Scan(&leaf.DocumentID, &leaf.LeafIndex, &leafHash, &pathJSON); err != nil {
			return nil, nil, err
		}
		if leaf.LeafHash, err = hex.DecodeString(leafHash); err != nil {
			return nil, nil, fmt.Errorf("leaf hash for %q is not valid hex: %v", leaf.DocumentID, err)
		}
		if err := json.Unmarshal([]byte(pathJSON), &leaf.ProofPath); err != nil {
			return nil, nil, fmt.Errorf("unmarshal proof path for %q: %v", leaf.DocumentID, err)
		}
		leaves = append(leaves, &leaf)
	}
	return &batch, leaves, rows.Err()
}

// LatestProof implements storage.Storage.
func (s *Storage) LatestProof(ctx context.Context, documentID string) (*docproof.TimestampProof, error) {
	proof, err := scanProof(s.db.QueryRowContext(ctx, selectLatestProofSQL, documentID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("timestamp proof for document %q: %w", documentID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("select latest proof for %q: %w", documentID, err)
	}
	return proof, nil
}

// ProofChain implements storage.Storage.
func (s *Storage) ProofChain(ctx context.Context, documentID string) ([]*docproof.TimestampProof, error) {
	rows, err := s.db.QueryContext(ctx, selectProofChainSQL, documentID)
	if err != nil {
		return nil, fmt.Errorf("select proof chain for %q: %w", documentID, err)
	}
	defer rows.Close()
	var chain []*docproof.TimestampProof
	for rows.Next() {
		proof, err := scanProof(rows)
		if err != nil {
			return nil, err
		}
		chain = append(chain, proof)
	}
	return chain, rows.Err()
}

// StoreProof implements storage.Storage.
func (s *Storage) StoreProof(ctx context.Context, proof *docproof.TimestampProof) (int64, error) {
	var prev sql.NullString
	if len(proof.PreviousProofHash) > 0 {
		prev = sql.NullString{String: hex.EncodeToString(proof.PreviousProofHash), Valid: true}
	}
	res, err := s.db.ExecContext(ctx, insertProofSQL, proof.DocumentID,
		hex.EncodeToString(proof.ProofHash), proof.ProofTimestamp,
		hex.EncodeToString(proof.HMACSignature), prev)
	if err != nil {
		return 0, fmt.Errorf("insert timestamp proof for %q: %w", proof.DocumentID, err)
	}
	return res.LastInsertId()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProof(row scanner) (*docproof.TimestampProof, error) {
	var (
		proof     docproof.TimestampProof
		hash, sig string
		prev      sql.NullString
		ts        time.Time
	)
	if err := row.Scan(&proof.ID, &proof.DocumentID, &hash, &ts, &sig, &prev); err != nil {
		return nil, err
	}
	proof.ProofTimestamp = ts
	var err error
	if proof.ProofHash, err = hex.DecodeString(hash); err != nil {
		return nil, fmt.Errorf("proof hash for %q is not valid hex: %v", proof.DocumentID, err)
	}
	if proof.HMACSignature, err = hex.DecodeString(sig); err != nil {
		return nil, fmt.Errorf("proof signature for %q is not valid hex: %v", proof.DocumentID, err)
	}
	if prev.Valid {
		if proof.PreviousProofHash, err = hex.DecodeString(prev.String); err != nil {
			return nil, fmt.Errorf("previous proof hash for %q is not valid hex: %v", proof.DocumentID, err)
		}
	}
	return &proof, nil
}

func fillBatch(batch *docproof.MerkleBatch, rootHash, sig string, metadata sql.NullString) error {
	var err error
	if batch.RootHash, err = hex.DecodeString(rootHash); err != nil {
		return fmt.Errorf("root hash of batch %d is not valid hex: %v", batch.ID, err)
	}
	if batch.BatchSignature, err = hex.DecodeString(sig); err != nil {
		return fmt.Errorf("signature of batch %d is not valid hex: %v", batch.ID, err)
	}
	if metadata.Valid && metadata.String != "null" {
		if err := json.Unmarshal([]byte(metadata.String), &batch.Metadata); err != nil {
			return fmt.Errorf("unmarshal metadata of batch %d: %v", batch.ID, err)
		}
	}
	return nil
}

func marshalMetadata(m map[string]string) (sql.NullString, error) {
	if len(m) == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshal batch metadata: %v", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}
