// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package v8pm

import "testing"

func TestLoadNoV8Support(t *testing.T) {
	h := NewMemHost(0x1000, 1<<12)
	if _, err := Load(h, nil); err != ErrSmiTagSymbolMissing {
		t.Errorf("Load() on a target with no v8dbg_SmiTag error = %v, want ErrSmiTagSymbolMissing", err)
	}
}

func TestLoadConstants(t *testing.T) {
	h := baseMemHost()
	meta, err := Load(h, nil)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if meta.Tags.SmiTag != 0 || meta.Tags.HeapObjectTag != fuzzHeapTag {
		t.Errorf("Tags = %+v, want SmiTag=0 HeapObjectTag=%d", meta.Tags, fuzzHeapTag)
	}
	if meta.OffFPContext != 8 || meta.OffFPMarker != 4 || meta.OffFPFunction != 12 {
		t.Errorf("frame offsets = %d/%d/%d, want 8/4/12", meta.OffFPContext, meta.OffFPMarker, meta.OffFPFunction)
	}
	if meta.Constants["FirstNonstringType"] != 0x80 {
		t.Errorf("Constants[FirstNonstringType] = %d, want 0x80", meta.Constants["FirstNonstringType"])
	}
}

func TestLoadParentFieldWiring(t *testing.T) {
	h := baseMemHost()
	h.DefineSymbol("v8dbg_class_HeapObject__map__Map", 0x300, fuzzHeapTag+0)
	h.DefineSymbol("v8dbg_class_JSObject__elements__FixedArray", 0x304, fuzzHeapTag+4)
	h.DefineSymbol("v8dbg_parent_JSObject__HeapObject", 0x308, 0)

	meta, err := Load(h, nil)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	parent, ok := meta.FindClass("HeapObject")
	if !ok {
		t.Fatal("HeapObject class not created")
	}
	child, ok := meta.FindClass("JSObject")
	if !ok {
		t.Fatal("JSObject class not created")
	}
	if child.Parent != parent {
		t.Errorf("JSObject.Parent = %v, want HeapObject", child.Parent)
	}
	if parent.Start != 0 || parent.End != fuzzHeapTag+PointerSize {
		t.Errorf("HeapObject Start/End = %d/%d, want 0/%d", parent.Start, parent.End, fuzzHeapTag+PointerSize)
	}
	if child.Start != parent.End {
		t.Errorf("JSObject.Start = %d, want %d (parent's End)", child.Start, parent.End)
	}
}

func TestLoadMissingConstant(t *testing.T) {
	h := NewMemHost(0x1000, 1<<12)
	h.DefineSymbol("v8dbg_SmiTag", 0x1100, 0)
	// Every other required constant symbol is absent.
	if _, err := Load(h, nil); err == nil {
		t.Error("Load() succeeded despite missing required constants")
	}
}

func TestLoadTooManyClasses(t *testing.T) {
	h := baseMemHost()
	addr := uint32(0x400)
	for i := 0; i < 10; i++ {
		name := string(rune('A' + i))
		h.DefineSymbol("v8dbg_class_"+name+"__field__int", addr, 0)
		addr += PointerSize
	}
	if _, err := Load(h, &Options{MaxClasses: 2}); err == nil {
		t.Error("Load() succeeded despite exceeding MaxClasses")
	}
}

func TestFixupClassOffsetsMaxField(t *testing.T) {
	// End is the maximum own-field offset + PointerSize, not the last
	// field in declaration order (the deviation from the C source
	// recorded in DESIGN.md).
	c := &Class{
		Name: "Mixed",
		Fields: []Field{
			{Name: "b", Offset: 12},
			{Name: "a", Offset: 4},
		},
	}
	fixupClassOffsets(c)
	if c.End != 12+PointerSize {
		t.Errorf("End = %d, want %d", c.End, 12+PointerSize)
	}
}
