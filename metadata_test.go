// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package v8pm

import "testing"

func TestClassNoOwnFields(t *testing.T) {
	root := &Class{Name: "Object"}
	fixupClassOffsets(root)
	if !root.NoOwnFields() {
		t.Errorf("fieldless root class reports own fields (Start=%d End=%d)", root.Start, root.End)
	}

	withFields := &Class{Name: "HeapObject", Fields: []Field{{Name: "map", Offset: 0}}}
	fixupClassOffsets(withFields)
	if withFields.NoOwnFields() {
		t.Errorf("class with own fields reports NoOwnFields")
	}

	// A subclass that adds no fields of its own still inherits a nonzero
	// End from its parent, so it is NOT NoOwnFields — only a fieldless
	// root class with End == 0 is.
	child := &Class{Name: "JSObject", Parent: withFields}
	fixupClassOffsets(child)
	if child.NoOwnFields() {
		t.Errorf("fieldless subclass of a class with fields reports NoOwnFields (Start=%d End=%d)", child.Start, child.End)
	}
	if child.Start == 0 {
		t.Errorf("fieldless subclass Start = 0, want inherited parent End (%d)", withFields.End)
	}
}

func TestMetadataStoreListClasses(t *testing.T) {
	m := NewMetadataStore()
	m.classFindCreate("Zebra")
	m.classFindCreate("Apple")
	m.classFindCreate("Mango")

	got := m.ListClasses()
	want := []string{"Apple", "Mango", "Zebra"}
	if len(got) != len(want) {
		t.Fatalf("ListClasses() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ListClasses()[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestClassFindField(t *testing.T) {
	c := &Class{Name: "String", Fields: []Field{{Name: "length", Offset: 4}}}
	f, ok := c.FindField("length")
	if !ok || f.Offset != 4 {
		t.Errorf("FindField(length) = %+v, %v, want {length 4}, true", f, ok)
	}
	if _, ok := c.FindField("missing"); ok {
		t.Errorf("FindField(missing) unexpectedly found")
	}
}

func TestEnumTableLookup(t *testing.T) {
	var e EnumTable
	e.Append(1, "First")
	e.Append(2, "Second")
	e.Append(1, "Duplicate")

	if got := e.Lookup(1, "?"); got != "First" {
		t.Errorf("Lookup(1) = %s, want First (first-registered wins)", got)
	}
	if got := e.Lookup(99, "default"); got != "default" {
		t.Errorf("Lookup(99) = %s, want default", got)
	}

	entries := e.Entries()
	if len(entries) != 3 {
		t.Fatalf("Entries() len = %d, want 3", len(entries))
	}
}
