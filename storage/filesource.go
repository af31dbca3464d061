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

package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FileSource resolves document content as files under a root directory, with
// the document ID as the relative path.
type FileSource struct {
	root string
}

// NewFileSource returns a ContentSource reading from the given directory.
func NewFileSource(root string) *FileSource {
	return &FileSource{root: root}
}

// Content returns the bytes of the named document, or ErrNotFound if no such
// file exists. Document IDs must be relative paths inside the root.
func (s *FileSource) Content(_ context.Context, documentID string) ([]byte, error) {
	if filepath.IsAbs(documentID) || strings.Contains(documentID, "..") {
		return nil, fmt.Errorf("document ID %q is not a relative path inside the content root", documentID)
	}
	b, err := os.ReadFile(filepath.Join(s.root, filepath.FromSlash(documentID)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("content for document %q: %w", documentID, ErrNotFound)
	}
	return b, err
}
