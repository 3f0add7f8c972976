// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package v8pm

// MaxPrintedStringLen bounds the inline string value printed alongside a
// field, so one enormous string can't blow out a single field line.
const MaxPrintedStringLen = 256

// ObjectPrinter walks a class's inheritance chain and fields, rendering
// each field with its kind and, for strings, its value.
type ObjectPrinter struct {
	meta     *MetadataStore
	reader   *HeapReader
	strs     *StringDecoder
	describe *Describer
	out      Printer
}

// NewObjectPrinter builds an ObjectPrinter that writes through out.
func NewObjectPrinter(meta *MetadataStore, reader *HeapReader, strs *StringDecoder, describe *Describer, out Printer) *ObjectPrinter {
	return &ObjectPrinter{meta: meta, reader: reader, strs: strs, describe: describe, out: out}
}

// Print renders the heap object at addr as an instance of class.
//
// If we have no fields, we just print a simple inheritance hierarchy.
// If we have fields but our parent doesn't, our header includes the
// inheritance hierarchy.
func (p *ObjectPrinter) Print(addr uint32, class *Class) {
	if class.NoOwnFields() {
		p.out.Printf("%s ", class.Name)
		if class.Parent != nil {
			p.out.Printf("< ")
			p.Print(addr, class.Parent)
		}
		return
	}

	p.out.Printf("%#x %s", addr, class.Name)
	if class.Start == 0 && class.Parent != nil {
		p.out.Printf(" < ")
		p.Print(addr, class.Parent)
	}
	p.out.Printf(" {\n")
	p.out.IncIndent(4)

	if class.Start > 0 && class.Parent != nil {
		p.Print(addr, class.Parent)
	}
	for _, f := range class.Fields {
		p.printField(addr, f)
	}

	p.out.DecIndent(4)
	p.out.Printf("}\n")
}

func (p *ObjectPrinter) printField(addr uint32, f Field) {
	target := uint32(int64(addr) + int64(f.Offset) - int64(p.meta.Tags.HeapObjectTag))
	var buf [PointerSize]byte
	var host Host = p.reader.host
	if err := host.ReadMemory(target, buf[:]); err != nil {
		p.out.Printf("%#x %s (unreadable)\n", target, f.Name)
		return
	}
	w := Word(decodeLE32(buf[:]))

	desc, err := p.describe.Describe(w)
	if err != nil {
		p.out.Printf("%#x %s (unreadable)\n", target, f.Name)
		return
	}

	if desc.Type != 0 {
		typeName := p.meta.InstanceType.Lookup(int32(desc.Type), "<unknown>")
		if isStringType(p.meta, desc.Type) {
			var sink BufSink
			sink.Reset(MaxPrintedStringLen)
			if err := p.strs.Decode(w, false, &sink); err == nil {
				p.out.Printf("%#x %s: %s: \"%s\"\n", target, f.Name, typeName, sink.String())
				return
			}
		}
	}

	p.out.Printf("%#x %s: %s\n", target, f.Name, desc.Text)
}

func isStringType(meta *MetadataStore, typeByte byte) bool {
	return int32(typeByte) < meta.Constants["FirstNonstringType"]
}
