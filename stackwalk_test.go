// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package v8pm

import "testing"

func TestStackWalkerWalksToSentinel(t *testing.T) {
	h := baseMemHost()
	meta, err := Load(h, nil)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	// Three frames chained by saved-fp at offset 0, the innermost two
	// carrying a non-SMI marker (ordinary JS frames) and the outermost
	// carrying the SMI-zero sentinel marker that ends the walk.
	fp0 := uint32(0xA000)
	fp1 := uint32(0xA100)
	fp2 := uint32(0xA200)

	h.PutUint32(fp0, fp1) // saved fp
	h.PutUint32(fp0+uint32(meta.OffFPMarker), 0x1001)

	h.PutUint32(fp1, fp2)
	h.PutUint32(fp1+uint32(meta.OffFPMarker), 0x1001)

	h.PutUint32(fp2+uint32(meta.OffFPMarker), 0) // SMI(0), sentinel

	h.SetRegister(DefaultThreadID, "ebp", fp0)

	walker, err := NewStackWalker(h, meta, DefaultThreadID)
	if err != nil {
		t.Fatalf("NewStackWalker() failed: %v", err)
	}

	var visited []uint32
	if err := walker.Walk(func(fp uint32) error {
		visited = append(visited, fp)
		return nil
	}); err != nil {
		t.Fatalf("Walk() failed: %v", err)
	}

	want := []uint32{fp0, fp1, fp2}
	if len(visited) != len(want) {
		t.Fatalf("Walk() visited %v, want %v", visited, want)
	}
	for i := range want {
		if visited[i] != want[i] {
			t.Errorf("Walk()[%d] = %#x, want %#x", i, visited[i], want[i])
		}
	}
}

func TestStackWalkerVisitorError(t *testing.T) {
	h := baseMemHost()
	meta, err := Load(h, nil)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	fp0 := uint32(0xA300)
	h.PutUint32(fp0+uint32(meta.OffFPMarker), 0) // sentinel on the very first frame
	h.SetRegister(DefaultThreadID, "ebp", fp0)

	walker, err := NewStackWalker(h, meta, DefaultThreadID)
	if err != nil {
		t.Fatalf("NewStackWalker() failed: %v", err)
	}

	stop := ErrUsage
	callCount := 0
	err = walker.Walk(func(fp uint32) error {
		callCount++
		return stop
	})
	if err != stop {
		t.Errorf("Walk() error = %v, want %v", err, stop)
	}
	if callCount != 1 {
		t.Errorf("visitor called %d times, want 1", callCount)
	}
}

func TestStackWalkerMissingRegister(t *testing.T) {
	h := baseMemHost()
	meta, err := Load(h, nil)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if _, err := NewStackWalker(h, meta, 99); err == nil {
		t.Error("NewStackWalker() succeeded for a thread with no registers recorded")
	}
}
