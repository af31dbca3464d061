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

// The docproof_batcher binary periodically folds pending documents into
// sealed Merkle batches.
package main

import (
	"bytes"
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"k8s.io/klog/v2"

	"github.com/google/docproof/batch"
	"github.com/google/docproof/hashchain"
	"github.com/google/docproof/merkle"
	"github.com/google/docproof/storage"
	"github.com/google/docproof/storage/mysql"
	"github.com/google/docproof/util/clock"
)

var (
	mysqlURI      = flag.String("mysql_uri", "docproof:docproof@tcp(127.0.0.1:3306)/docproof", "Connection URI for the MySQL proof store")
	contentDir    = flag.String("content_dir", "", "Directory holding document content, one file per document ID")
	hmacKeyFile   = flag.String("hmac_key_file", "", "File containing the HMAC signing key")
	hashAlgorithm = flag.String("hash_algorithm", "sha256", "Content hash algorithm, one of: sha256, blake3")
	runInterval   = flag.Duration("run_interval", 5*time.Minute, "Interval between batching passes")
	maxBatchSize  = flag.Int("max_batch_size", 100, "Maximum number of documents per batch")
	minBatchSize  = flag.Int("min_batch_size", 10, "Minimum number of pending documents before a pass seals a batch")
	httpEndpoint  = flag.String("http_endpoint", "localhost:8091", "Endpoint for HTTP metrics and health (host:port)")
)

func newHasher(name string) (merkle.TreeHasher, bool) {
	switch name {
	case "sha256":
		return merkle.NewSHA256(), true
	case "blake3":
		return merkle.NewBLAKE3(), true
	}
	return merkle.TreeHasher{}, false
}

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	defer klog.Flush()

	if *contentDir == "" {
		klog.Exitf("--content_dir must be set")
	}
	hasher, ok := newHasher(*hashAlgorithm)
	if !ok {
		klog.Exitf("Unknown --hash_algorithm %q", *hashAlgorithm)
	}
	key, err := os.ReadFile(*hmacKeyFile)
	if err != nil {
		klog.Exitf("Failed to read --hmac_key_file: %v", err)
	}
	signer, err := hashchain.NewSigner(bytes.TrimSpace(key))
	if err != nil {
		klog.Exitf("Failed to create signer: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	db, err := mysql.OpenDB(*mysqlURI)
	if err != nil {
		klog.Exitf("Failed to open MySQL database: %v", err)
	}
	defer db.Close()
	store := mysql.New(db)
	if err := store.CheckDatabaseAccessible(ctx); err != nil {
		klog.Exitf("Database is not accessible: %v", err)
	}

	coordinator := batch.NewCoordinator(store, storage.NewFileSource(*contentDir), hasher, signer, clock.System, batch.Options{
		MaxBatchSize: *maxBatchSize,
		MinBatchSize: *minBatchSize,
	})
	runner := batch.NewRunner(coordinator, *runInterval)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := store.CheckDatabaseAccessible(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	})
	go func() {
		klog.Infof("HTTP server listening on %v", *httpEndpoint)
		if err := http.ListenAndServe(*httpEndpoint, mux); err != nil {
			klog.Errorf("HTTP server exited: %v", err)
		}
	}()

	klog.Infof("docproof batcher starting: interval %v, batch size %d-%d, hash %v", *runInterval, *minBatchSize, *maxBatchSize, *hashAlgorithm)
	runner.Run(ctx)
	klog.Info("docproof batcher stopped")
}
