// Copyright 2025 Google LLC
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

package tvmdbg

import "testing"

func newTestAvailableLines() *AvailableLines {
	a := &AvailableLines{}
	a.add("a.fc", 10)
	a.add("a.fc", 12)
	return a
}

func TestBreakpointStoreSetAssignsMonotonicIDs(t *testing.T) {
	store := NewBreakpointStore(newTestAvailableLines())
	bp1 := store.Set("a.fc", 10)
	bp2 := store.Set("a.fc", 10)

	if bp1.ID == bp2.ID {
		t.Fatal("expected distinct ids for two Set calls at the same line")
	}
	if got := store.List("a.fc"); len(got) != 2 {
		t.Fatalf("List() len = %d, want 2", len(got))
	}
}

func TestBreakpointStoreVerification(t *testing.T) {
	store := NewBreakpointStore(newTestAvailableLines())

	verified := store.Set("a.fc", 10)
	if !verified.Verified {
		t.Error("line 10 is available, expected Verified = true")
	}

	unverified := store.Set("a.fc", 999)
	if unverified.Verified {
		t.Error("line 999 is not available, expected Verified = false")
	}
}

func TestBreakpointStoreHasBreakpointDedupesDuplicates(t *testing.T) {
	store := NewBreakpointStore(newTestAvailableLines())
	store.Set("a.fc", 10)
	store.Set("a.fc", 10)

	if !store.HasBreakpoint("a.fc", 10) {
		t.Fatal("expected HasBreakpoint to find line 10")
	}
	if store.HasBreakpoint("a.fc", 11) {
		t.Fatal("line 11 has no breakpoint")
	}
}

func TestBreakpointStoreClearOnlyTouchesOnePath(t *testing.T) {
	store := NewBreakpointStore(newTestAvailableLines())
	store.Set("a.fc", 10)
	store.Set("b.fc", 10)

	store.Clear("a.fc")

	if len(store.List("a.fc")) != 0 {
		t.Error("expected a.fc breakpoints cleared")
	}
	if len(store.List("b.fc")) != 1 {
		t.Error("expected b.fc breakpoints untouched")
	}

	store.Clear("a.fc")
	if len(store.List("a.fc")) != 0 {
		t.Error("clearing twice should remain a no-op")
	}
}
