// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package v8pm

import "sort"

// Field is a named, offset-addressed pointer-sized slot within a Class.
// Offset is the raw V8 C++ offset; the HeapObjectTag adjustment is
// applied once per read: by HeapReader.HeapOffset for named-field reads,
// and by ObjectPrinter.printField when it prints a class's fields.
type Field struct {
	Name   string
	Offset int32
}

// PointerSize is the width, in bytes, of every heap field and SMI/tagged
// word this module understands. v8pm is 32-bit-pointer only.
const PointerSize = 4

// Class describes a V8 C++ heap object class: an optional parent (single
// inheritance), an ordered list of own fields, and the computed [Start,
// End) byte range those own fields occupy within an instance.
type Class struct {
	Name   string
	Parent *Class
	Fields []Field // insertion order
	Start  int32
	End    int32

	offsetsResolved bool
}

// FindField returns the named field among this class's own fields.
func (c *Class) FindField(name string) (Field, bool) {
	for _, f := range c.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// NoOwnFields reports whether this class contributes no fields of its
// own, the same literal End == 0 test obj_print_class uses to choose
// between a one-line "ClassName < Parent" header and a full braced
// field dump. Only a fieldless root class (no parent, no fields) has
// End == 0; a fieldless subclass of a fielded parent inherits a
// nonzero End from that parent and is NOT NoOwnFields.
func (c *Class) NoOwnFields() bool {
	return c.End == 0
}

// EnumEntry is one (value, label) pair in an EnumTable.
type EnumEntry struct {
	Value int32
	Label string
}

// EnumTable is an insertion-ordered set of (value, label) pairs. Multiple
// entries may share a value; Lookup returns the first one registered.
type EnumTable struct {
	entries []EnumEntry
}

// Append registers a new entry, keeping registration order.
func (e *EnumTable) Append(value int32, label string) {
	e.entries = append(e.entries, EnumEntry{Value: value, Label: label})
}

// Lookup returns the label of the first-registered entry matching value,
// or dflt if none match.
func (e EnumTable) Lookup(value int32, dflt string) string {
	for _, ent := range e.entries {
		if ent.Value == value {
			return ent.Label
		}
	}
	return dflt
}

// Entries returns the table's entries in registration order.
func (e EnumTable) Entries() []EnumEntry {
	return e.entries
}

// MetadataStore holds every class, field, enum table, and constant
// discovered during autoconfiguration. It is built once by Load and is
// read-only for the remainder of the process, so it can be shared freely
// across commands without locking.
type MetadataStore struct {
	classes map[string]*Class

	InstanceType EnumTable
	FrameType    EnumTable

	Constants map[string]int32
	Tags      TagConfig

	// Resolved offsets required directly by the runtime.
	OffMapInstanceAttributes int32
	OffSeqAsciiStringChars   int32
	OffFixedArrayData        int32
	OffOddballToString       int32

	// Frame-pointer slot offsets.
	OffFPContext  int32
	OffFPMarker   int32
	OffFPFunction int32
}

// NewMetadataStore returns an empty store ready for the Autoconfigurator
// to populate.
func NewMetadataStore() *MetadataStore {
	return &MetadataStore{
		classes:   make(map[string]*Class),
		Constants: make(map[string]int32),
	}
}

// classFindCreate returns the named class, creating it (with End
// unresolved, indicated by offsetsResolved == false) if it doesn't exist
// yet. Mirrors mdb_v8.c's conf_class_findcreate, minus the linked-list
// bookkeeping: a plain map suffices.
func (m *MetadataStore) classFindCreate(name string) *Class {
	if c, ok := m.classes[name]; ok {
		return c
	}
	c := &Class{Name: name}
	m.classes[name] = c
	return c
}

// FindClass returns the named class.
func (m *MetadataStore) FindClass(name string) (*Class, bool) {
	c, ok := m.classes[name]
	return c, ok
}

// FindField returns the named field on the named class.
func (m *MetadataStore) FindField(class, field string) (Field, bool) {
	c, ok := m.classes[class]
	if !ok {
		return Field{}, false
	}
	return c.FindField(field)
}

// ListClasses returns every class name in lexicographic order. Sorting
// happens here, at listing time, not via insertion discipline.
func (m *MetadataStore) ListClasses() []string {
	names := make([]string, 0, len(m.classes))
	for name := range m.classes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
