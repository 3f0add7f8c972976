// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package v8pm

import "testing"

// testTags mirrors baseMemHost's v8dbg_* tag constants (fuzz.go): SMI tag
// 0 mask 1, Failure tag 3 mask 3, HeapObject tag 1 mask 3.
func testTags() TagConfig {
	return TagConfig{
		SmiTag:            0,
		SmiTagMask:        1,
		SmiValueShift:     1,
		FailureTag:        3,
		FailureTagMask:    3,
		HeapObjectTag:     1,
		HeapObjectTagMask: 3,
	}
}

func TestClassify(t *testing.T) {
	c := testTags()

	tests := []struct {
		name string
		w    Word
		want Kind
	}{
		{"smi zero", 0, KindSMI},
		{"smi six", Word(3 << 1), KindSMI},
		{"heap object", 0x1001, KindHeapObject},
		{"failure", 3, KindFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Classify(tt.w)
			if err != nil {
				t.Fatalf("Classify(%#x) returned error: %v", tt.w, err)
			}
			if got != tt.want {
				t.Errorf("Classify(%#x) = %s, want %s", tt.w, got, tt.want)
			}
		})
	}
}

func TestSMIValue(t *testing.T) {
	c := testTags()
	w := Word(3 << 1)
	if got := c.SMIValue(w); got != 3 {
		t.Errorf("SMIValue(%#x) = %d, want 3", w, got)
	}
}

func TestHeapAddress(t *testing.T) {
	c := testTags()
	w := Word(0x2001)
	if got := c.HeapAddress(w); got != 0x2000 {
		t.Errorf("HeapAddress(%#x) = %#x, want 0x2000", w, got)
	}
}

func TestClassifyOrder(t *testing.T) {
	// Failure is checked before SMI/HeapObject; with the HeapObject mask
	// narrowed to the low bit, word 3 matches both the Failure pattern
	// (tag 3, mask 3) and the HeapObject pattern (tag 1, mask 1), and
	// must classify as Failure.
	c := testTags()
	c.HeapObjectTagMask = 1
	if !c.IsFailure(3) || !c.IsHeapObject(3) {
		t.Fatalf("word 3 should match both the Failure and HeapObject patterns")
	}
	got, err := c.Classify(3)
	if err != nil {
		t.Fatalf("Classify(3) returned error: %v", err)
	}
	if got != KindFailure {
		t.Errorf("Classify(3) = %s, want Failure", got)
	}
}

func TestClassifyUnclassifiable(t *testing.T) {
	// mask/tag combinations chosen so no known tag matches word 2.
	c := TagConfig{
		SmiTag: 0, SmiTagMask: 0xFF,
		FailureTag: 1, FailureTagMask: 0xFF,
		HeapObjectTag: 5, HeapObjectTagMask: 0xFF,
	}
	if _, err := c.Classify(2); err != ErrUnclassifiableWord {
		t.Errorf("Classify(2) error = %v, want ErrUnclassifiableWord", err)
	}
}
