// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package v8pm

import (
	"fmt"
	"os"
	"strings"

	"github.com/v8pm/v8pm/log"
)

// Options configures autoconfiguration the same way pe.Options configures
// PE parsing: sane defaults, overridable guard rails, an optional logger.
type Options struct {
	// Logger receives the Error/Info records Load emits during
	// autoconfiguration. It is not passed on to the readers and decoders
	// built afterwards. Defaults to a filtered stdout logger at LevelError,
	// mirroring pe.New's default.
	Logger log.Logger

	// MaxClasses caps the number of distinct v8dbg_class_*/v8dbg_parent_*
	// classes autoconfiguration will create, guarding against a hostile
	// or corrupted binary claiming an unbounded symbol table.
	MaxClasses int

	// MaxEnumEntries caps the number of v8dbg_type_*/v8dbg_frametype_*
	// entries per table.
	MaxEnumEntries int

	// MaxConcatDepth bounds String Decoder recursion through cons-string
	// trees, guarding against a corrupted or adversarial cons chain
	// driving the decoder into unbounded recursion. Defaults to 1024.
	MaxConcatDepth int
}

// Default guard-rail values, analogous to MaxDefaultCOFFSymbolsCount /
// MaxDefaultRelocEntriesCount in the teacher's symbol.go/reloc.go.
const (
	DefaultMaxClasses     = 4096
	DefaultMaxEnumEntries = 4096
	DefaultMaxConcatDepth = 1024
)

func (o *Options) withDefaults() *Options {
	opts := Options{}
	if o != nil {
		opts = *o
	}
	if opts.MaxClasses == 0 {
		opts.MaxClasses = DefaultMaxClasses
	}
	if opts.MaxEnumEntries == 0 {
		opts.MaxEnumEntries = DefaultMaxEnumEntries
	}
	if opts.MaxConcatDepth == 0 {
		opts.MaxConcatDepth = DefaultMaxConcatDepth
	}
	return &opts
}

// constantSlots lists every v8dbg_* scalar this module reads directly
// by symbol name. Symbol name -> destination.
type constantSlot struct {
	symbol string
	set    func(*MetadataStore, int32)
}

func constantSlots() []constantSlot {
	return []constantSlot{
		{"v8dbg_SmiTag", func(m *MetadataStore, v int32) { m.Tags.SmiTag = Word(v) }},
		{"v8dbg_SmiTagMask", func(m *MetadataStore, v int32) { m.Tags.SmiTagMask = Word(v) }},
		{"v8dbg_SmiValueShift", func(m *MetadataStore, v int32) { m.Tags.SmiValueShift = uint(v) }},
		{"v8dbg_FailureTag", func(m *MetadataStore, v int32) { m.Tags.FailureTag = Word(v) }},
		{"v8dbg_FailureTagMask", func(m *MetadataStore, v int32) { m.Tags.FailureTagMask = Word(v) }},
		{"v8dbg_HeapObjectTag", func(m *MetadataStore, v int32) { m.Tags.HeapObjectTag = Word(v) }},
		{"v8dbg_HeapObjectTagMask", func(m *MetadataStore, v int32) { m.Tags.HeapObjectTagMask = Word(v) }},
		{"v8dbg_off_fp_context", func(m *MetadataStore, v int32) { m.OffFPContext = v }},
		{"v8dbg_off_fp_marker", func(m *MetadataStore, v int32) { m.OffFPMarker = v }},
		{"v8dbg_off_fp_function", func(m *MetadataStore, v int32) { m.OffFPFunction = v }},
		{"v8dbg_FirstNonstringType", func(m *MetadataStore, v int32) { m.Constants["FirstNonstringType"] = v }},
		{"v8dbg_IsNotStringMask", func(m *MetadataStore, v int32) { m.Constants["IsNotStringMask"] = v }},
		{"v8dbg_StringTag", func(m *MetadataStore, v int32) { m.Constants["StringTag"] = v }},
		{"v8dbg_NotStringTag", func(m *MetadataStore, v int32) { m.Constants["NotStringTag"] = v }},
		{"v8dbg_StringEncodingMask", func(m *MetadataStore, v int32) { m.Constants["StringEncodingMask"] = v }},
		{"v8dbg_AsciiStringTag", func(m *MetadataStore, v int32) { m.Constants["AsciiStringTag"] = v }},
		{"v8dbg_TwoByteStringTag", func(m *MetadataStore, v int32) { m.Constants["TwoByteStringTag"] = v }},
		{"v8dbg_StringRepresentationMask", func(m *MetadataStore, v int32) { m.Constants["StringRepresentationMask"] = v }},
		{"v8dbg_SeqStringTag", func(m *MetadataStore, v int32) { m.Constants["SeqStringTag"] = v }},
		{"v8dbg_ConsStringTag", func(m *MetadataStore, v int32) { m.Constants["ConsStringTag"] = v }},
		{"v8dbg_ExternalStringTag", func(m *MetadataStore, v int32) { m.Constants["ExternalStringTag"] = v }},
	}
}

// Load runs autoconfiguration once: it mines the target's symbol table
// for v8dbg_* metadata, populates a fresh MetadataStore, and returns it.
// A missing v8dbg_SmiTag is a graceful "no V8 support" result
// (ErrSmiTagSymbolMissing), never a crash — the target may simply not
// embed a V8 heap; a missing constant or offset is a hard
// ErrConstantMissing/ErrOffsetUnresolved abort, since those symbols are
// required for any further heap interpretation to be trustworthy. A
// guard-rail limit hit or any other symbol-iteration failure is returned
// as the plain error that caused it.
func Load(h Host, opts *Options) (*MetadataStore, error) {
	o := opts.withDefaults()

	logger := newConfigLogger(o)

	// Step 1: presence probe.
	if _, err := h.LookupSymbol("v8dbg_SmiTag"); err != nil {
		return nil, ErrSmiTagSymbolMissing
	}

	m := NewMetadataStore()
	cfg := &autoconfigurator{host: h, meta: m, opts: o, logger: logger}

	// Step 2: symbol-iteration visitor dispatch.
	if err := h.IterateSymbols(cfg.visit); err != nil {
		logger.Errorf("failed to autoconfigure V8 support: %v", err)
		return nil, err
	}

	// Step 5 (done before step 3 in this implementation, matching the C
	// source's ordering: parent/field symbols are all known by the time
	// iteration finishes, so the inheritance fixup can run immediately).
	for _, name := range m.ListClasses() {
		fixupClassOffsets(m.classes[name])
	}

	// Step 3: constant population.
	for _, slot := range constantSlots() {
		sym, err := h.LookupSymbol(slot.symbol)
		if err != nil {
			logger.Errorf("failed to read %q: %v", slot.symbol, err)
			return nil, fmt.Errorf("%w: %s", ErrConstantMissing, slot.symbol)
		}
		var buf [4]byte
		if err := h.ReadMemory(sym.Address, buf[:]); err != nil {
			logger.Errorf("failed to read %q: %v", slot.symbol, err)
			return nil, fmt.Errorf("%w: %s", ErrConstantMissing, slot.symbol)
		}
		slot.set(m, decodeLE32(buf[:]))
	}

	// Step 4: offset precomputation for the four directly-used fields.
	required := []struct {
		class, field string
		dst          *int32
	}{
		{"Map", "instance_attributes", &m.OffMapInstanceAttributes},
		{"SeqAsciiString", "chars", &m.OffSeqAsciiStringChars},
		{"FixedArray", "data", &m.OffFixedArrayData},
		{"Oddball", "to_string", &m.OffOddballToString},
	}
	for _, r := range required {
		field, ok := m.FindField(r.class, r.field)
		if !ok {
			logger.Errorf("couldn't find class %q field %q", r.class, r.field)
			return nil, fmt.Errorf("%w: %s.%s", ErrOffsetUnresolved, r.class, r.field)
		}
		*r.dst = field.Offset - int32(m.Tags.HeapObjectTag)
	}

	logger.Infof("loaded V8 support")
	return m, nil
}

func newConfigLogger(o *Options) *log.Helper {
	if o.Logger != nil {
		return log.NewHelper(o.Logger)
	}
	return log.NewHelper(log.NewFilter(log.NewStdLogger(os.Stdout), log.FilterLevel(log.LevelError)))
}

type autoconfigurator struct {
	host         Host
	meta         *MetadataStore
	opts         *Options
	logger       *log.Helper
	typeCount    int
	frameTypeCnt int
}

// visit dispatches one discovered global symbol by its v8dbg_* prefix.
func (c *autoconfigurator) visit(sym Symbol) error {
	switch {
	case strings.HasPrefix(sym.Name, "v8dbg_parent_"):
		return c.updateParent(sym)
	case strings.HasPrefix(sym.Name, "v8dbg_class_"):
		return c.updateField(sym)
	case strings.HasPrefix(sym.Name, "v8dbg_type_"):
		return c.updateType(sym)
	case strings.HasPrefix(sym.Name, "v8dbg_frametype_"):
		return c.updateFrameType(sym)
	}
	return nil
}

// nextPart splits the remainder of a "__"-joined metadata symbol name,
// mirroring mdb_v8.c's conf_next_part.
func nextPart(rest string) (head, tail string, ok bool) {
	idx := strings.Index(rest, "__")
	if idx < 0 {
		return "", "", false
	}
	return rest[:idx], rest[idx+2:], true
}

func (c *autoconfigurator) classFindCreate(name string) (*Class, error) {
	if cl, ok := c.meta.classes[name]; ok {
		return cl, nil
	}
	if len(c.meta.classes) >= c.opts.MaxClasses {
		return nil, fmt.Errorf("too many V8 classes (limit %d)", c.opts.MaxClasses)
	}
	return c.meta.classFindCreate(name), nil
}

// updateParent handles "v8dbg_parent_CHILD__PARENT".
func (c *autoconfigurator) updateParent(sym Symbol) error {
	rest := strings.TrimPrefix(sym.Name, "v8dbg_parent_")
	child, parent, ok := nextPart(rest)
	if !ok {
		c.logger.Errorf("malformed symbol name: %s", sym.Name)
		return nil
	}
	childClass, err := c.classFindCreate(child)
	if err != nil {
		return err
	}
	parentClass, err := c.classFindCreate(parent)
	if err != nil {
		return err
	}
	childClass.Parent = parentClass
	return nil
}

// updateField handles "v8dbg_class_CLASS__FIELD__TYPE". The TYPE suffix
// is part of the symbol's name only; it is never consulted at runtime.
func (c *autoconfigurator) updateField(sym Symbol) error {
	rest := strings.TrimPrefix(sym.Name, "v8dbg_class_")
	class, afterClass, ok := nextPart(rest)
	if !ok {
		c.logger.Errorf("malformed symbol name: %s", sym.Name)
		return nil
	}
	field, _, ok := nextPart(afterClass)
	if !ok {
		c.logger.Errorf("malformed symbol name: %s", sym.Name)
		return nil
	}

	var buf [4]byte
	if err := c.host.ReadMemory(sym.Address, buf[:]); err != nil {
		c.logger.Errorf("failed to read symbol %q: %v", sym.Name, err)
		return nil
	}

	cl, err := c.classFindCreate(class)
	if err != nil {
		return err
	}
	cl.Fields = append(cl.Fields, Field{Name: field, Offset: decodeLE32(buf[:])})
	return nil
}

func (c *autoconfigurator) updateType(sym Symbol) error {
	rest := strings.TrimPrefix(sym.Name, "v8dbg_type_")
	class, _, ok := nextPart(rest)
	if !ok {
		c.logger.Errorf("malformed symbol name: %s", sym.Name)
		return nil
	}
	if c.typeCount >= c.opts.MaxEnumEntries {
		return fmt.Errorf("too many V8 types (limit %d)", c.opts.MaxEnumEntries)
	}
	var buf [4]byte
	if err := c.host.ReadMemory(sym.Address, buf[:]); err != nil {
		c.logger.Errorf("failed to read symbol %q: %v", sym.Name, err)
		return nil
	}
	c.meta.InstanceType.Append(decodeLE32(buf[:]), class)
	c.typeCount++
	return nil
}

func (c *autoconfigurator) updateFrameType(sym Symbol) error {
	name := strings.TrimPrefix(sym.Name, "v8dbg_frametype_")
	if c.frameTypeCnt >= c.opts.MaxEnumEntries {
		return fmt.Errorf("too many V8 frame types (limit %d)", c.opts.MaxEnumEntries)
	}
	var buf [4]byte
	if err := c.host.ReadMemory(sym.Address, buf[:]); err != nil {
		c.logger.Errorf("failed to read symbol %q: %v", sym.Name, err)
		return nil
	}
	c.meta.FrameType.Append(decodeLE32(buf[:]), name)
	c.frameTypeCnt++
	return nil
}

// fixupClassOffsets mirrors mdb_v8.c's conf_class_compute_offsets:
// recursively ensure the parent's End is resolved, then Start =
// parent.End (or 0), End = largest own-field offset + PointerSize (or Start).
func fixupClassOffsets(cl *Class) {
	if cl.offsetsResolved {
		return
	}
	if cl.Parent != nil {
		fixupClassOffsets(cl.Parent)
		cl.Start = cl.Parent.End
	} else {
		cl.Start = 0
	}

	if len(cl.Fields) == 0 {
		cl.End = cl.Start
	} else {
		max := cl.Fields[0].Offset
		for _, f := range cl.Fields[1:] {
			if f.Offset > max {
				max = f.Offset
			}
		}
		cl.End = max + PointerSize
	}
	cl.offsetsResolved = true
}

func decodeLE32(b []byte) int32 {
	v := uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
	return int32(v)
}
