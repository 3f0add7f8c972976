// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package v8pm

import "errors"

// Errors
var (
	// ErrSmiTagSymbolMissing is returned when the target does not export
	// v8dbg_SmiTag, meaning it carries no V8 postmortem metadata at all.
	ErrSmiTagSymbolMissing = errors.New("v8dbg_SmiTag symbol not found, no V8 support")

	// ErrConstantMissing is returned when a required v8dbg_* constant
	// symbol could not be read from the target.
	ErrConstantMissing = errors.New("required v8dbg constant symbol missing")

	// ErrOffsetUnresolved is returned when one of the four offsets the
	// runtime needs directly (Map.instance_attributes, SeqAsciiString.chars,
	// FixedArray.data, Oddball.to_string) could not be resolved.
	ErrOffsetUnresolved = errors.New("required heap offset could not be resolved")

	// ErrMalformedSymbol names the condition of a v8dbg_* symbol name that
	// does not split into the expected "__"-separated parts. Autoconfiguration
	// does not return it: it logs such a symbol and skips it.
	ErrMalformedSymbol = errors.New("malformed v8dbg metadata symbol name")

	// ErrClassNotFound names the condition of a class that is not present
	// in the Metadata Store. No function returns it: Commands.PrintObject
	// reports an unknown class itself and exits with ExitUsage.
	ErrClassNotFound = errors.New("class not found")

	// ErrFieldNotFound is returned when a named field is not present on a
	// class in the Metadata Store.
	ErrFieldNotFound = errors.New("field not found")

	// ErrNotSMI is returned when a value expected to be a SMI is not.
	ErrNotSMI = errors.New("expected SMI value")

	// ErrNotHeapObject is returned when a value expected to be a
	// HeapObject is not.
	ErrNotHeapObject = errors.New("expected HeapObject value")

	// ErrMapNotHeapObject is returned when a heap object's Map pointer is
	// not itself a HeapObject — every live V8 object's Map slot must
	// tag as a HeapObject, so this means the target is corrupted.
	ErrMapNotHeapObject = errors.New("heap object map is not itself a heap object")

	// ErrUnclassifiableWord is returned when a word matches none of the
	// SMI/Failure/HeapObject tag patterns.
	ErrUnclassifiableWord = errors.New("word does not match any known tag pattern")

	// ErrNotAString names the condition of a heap object whose instance
	// type is not a string type. The string decoder does not return it: it
	// writes "<not a string>" to the sink and succeeds.
	ErrNotAString = errors.New("not a string")

	// ErrConcatDepthExceeded is returned when a concatenation-tree string
	// nests deeper than the configured maximum, guarding against
	// pathological or cyclic structures.
	ErrConcatDepthExceeded = errors.New("concatenation string depth limit exceeded")

	// ErrUnknownStringRepresentation is returned when a string's
	// representation bits match none of sequential, cons, or external.
	ErrUnknownStringRepresentation = errors.New("unknown string representation")

	// ErrExternalStringUnsupported is returned when no
	// ExternalStringResolver is configured for a target whose strings
	// include external (out-of-heap) representations.
	ErrExternalStringUnsupported = errors.New("external string backing not configured")

	// ErrExternalStringNotASCII is returned when an external string's
	// backing data is non-empty and not ASCII.
	ErrExternalStringNotASCII = errors.New("external string backing is not ASCII")

	// ErrOutsideBoundary is returned when a read would reach past the
	// bounds of the mapped target.
	ErrOutsideBoundary = errors.New("reading data outside boundary")

	// ErrUnknownFrameType names the condition of a frame marker SMI that
	// matches no entry in the frame-type table. The frame decoder does not
	// return it: it labels such a frame "<unknown frame type>".
	ErrUnknownFrameType = errors.New("unknown frame type")

	// ErrUsage indicates a malformed command invocation.
	ErrUsage = errors.New("usage error")
)
