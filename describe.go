// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package v8pm

import "fmt"

// Describer renders a human-readable type description for any
// pointer-sized word, the shared logic behind both `describe-type` and
// print-object's auto-detection, mirroring mdb_v8.c's
// obj_jstype. A description has Type == 0 when the word was a SMI or
// Failure (short-circuited, no class lookup performed), and also for a
// heap object whose instance-type byte is 0.
type Describer struct {
	meta   *MetadataStore
	reader *HeapReader
	strs   *StringDecoder
}

// NewDescriber builds a Describer over the given components.
func NewDescriber(meta *MetadataStore, reader *HeapReader, strs *StringDecoder) *Describer {
	return &Describer{meta: meta, reader: reader, strs: strs}
}

// Description is the result of describing one word.
type Description struct {
	Text string
	Type byte // instance-type byte; 0 for SMI/Failure
}

// Describe classifies w and renders its description. For an Oddball, the
// description includes the oddball's string value (e.g. `Oddball:
// "undefined"`), matching obj_jstype's special case.
func (d *Describer) Describe(w Word) (Description, error) {
	if d.meta.Tags.IsFailure(w) {
		return Description{Text: "'Failure' object"}, nil
	}
	if d.meta.Tags.IsSMI(w) {
		return Description{Text: fmt.Sprintf("SMI: value = %d", d.meta.Tags.SMIValue(w))}, nil
	}

	typeByte, err := d.reader.ReadTypeByte(uint32(w))
	if err != nil {
		return Description{}, err
	}

	typeName := d.meta.InstanceType.Lookup(int32(typeByte), "<unknown>")
	text := typeName

	if typeName == "Oddball" {
		strPtr, err := d.reader.ReadHeapPtr(uint32(w), "Oddball", "to_string")
		if err == nil {
			var sink BufSink
			sink.Reset(256)
			if d.strs.Decode(strPtr, false, &sink) == nil {
				text = fmt.Sprintf("%s: \"%s\"", typeName, sink.String())
			}
		}
	}

	return Description{Text: text, Type: typeByte}, nil
}
