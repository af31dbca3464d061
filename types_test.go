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

package docproof

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// The proof path wire format is an interop contract and must stay exactly
// [{"hash": <lowercase hex>, "position": "left"|"right"}, ...].
func TestProofPathWireFormat(t *testing.T) {
	path := []ProofPathElement{
		{Hash: []byte{0xab, 0xcd}, Position: PositionRight},
		{Hash: []byte{0x01, 0x2f}, Position: PositionLeft},
	}
	got, err := json.Marshal(path)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `[{"hash":"abcd","position":"right"},{"hash":"012f","position":"left"}]`
	if string(got) != want {
		t.Errorf("Marshal=%s, want %s", got, want)
	}

	var back []ProofPathElement
	if err := json.Unmarshal(got, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if diff := cmp.Diff(path, back); diff != "" {
		t.Errorf("round trip diff (-want +got):\n%v", diff)
	}
}

func TestProofPathElementUnmarshalErrors(t *testing.T) {
	for _, tc := range []struct {
		desc string
		in   string
	}{
		{desc: "bad hex", in: `{"hash":"zz","position":"left"}`},
		{desc: "odd length hex", in: `{"hash":"abc","position":"left"}`},
		{desc: "unknown position", in: `{"hash":"ab","position":"up"}`},
		{desc: "missing position", in: `{"hash":"ab"}`},
	} {
		var el ProofPathElement
		if err := json.Unmarshal([]byte(tc.in), &el); err == nil {
			t.Errorf("%v: Unmarshal(%v)=nil error, want error", tc.desc, tc.in)
		}
	}
}

func TestStatusString(t *testing.T) {
	for _, tc := range []struct {
		status Status
		want   string
	}{
		{status: StatusNoProof, want: "NO_PROOF"},
		{status: StatusVerified, want: "VERIFIED"},
		{status: StatusTampered, want: "TAMPERED"},
	} {
		if got := tc.status.String(); got != tc.want {
			t.Errorf("Status(%d).String()=%v, want %v", int(tc.status), got, tc.want)
		}
	}
	if !(VerificationResult{Status: StatusVerified}).Valid() {
		t.Error("VerificationResult{StatusVerified}.Valid()=false, want true")
	}
	if (VerificationResult{Status: StatusTampered}).Valid() {
		t.Error("VerificationResult{StatusTampered}.Valid()=true, want false")
	}
}
