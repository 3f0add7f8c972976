// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package v8pm

// ExitStatus is a command's outcome, mirroring the host's dcmd return
// codes: success, a hard failure, or a malformed invocation.
type ExitStatus int

const (
	// ExitOK is returned on success.
	ExitOK ExitStatus = iota
	// ExitErr is returned on a hard failure (unreadable target, missing metadata).
	ExitErr
	// ExitUsage is returned on a malformed invocation.
	ExitUsage
)

// Commands wires every decoding-engine component together behind the
// user-facing operations: listing classes/types/specials, describing
// and printing objects and strings, and walking frames.
type Commands struct {
	host     OutputHost
	meta     *MetadataStore
	reader   *HeapReader
	strs     *StringDecoder
	printer  *ObjectPrinter
	describe *Describer
	frames   *FrameDecoder
	roots    *RootTable
}

// NewCommands assembles a Commands surface over an already-loaded
// MetadataStore and a concrete OutputHost. opts may be nil.
func NewCommands(host OutputHost, meta *MetadataStore, ext ExternalStringResolver, opts *Options) *Commands {
	o := opts.withDefaults()
	reader := NewHeapReader(host, meta, nil)
	strs := NewStringDecoder(reader, ext, o.MaxConcatDepth, nil)
	describer := NewDescriber(meta, reader, strs)
	printer := NewObjectPrinter(meta, reader, strs, describer, host)
	roots := NewRootTable(host, meta)
	frames := NewFrameDecoder(host, meta, reader, strs, host, roots)
	return &Commands{
		host:     host,
		meta:     meta,
		reader:   reader,
		strs:     strs,
		printer:  printer,
		describe: describer,
		frames:   frames,
		roots:    roots,
	}
}

// ListClasses prints every known class name, one per line, in
// lexicographic order.
func (c *Commands) ListClasses() ExitStatus {
	for _, name := range c.meta.ListClasses() {
		c.host.Printf("%s\n", name)
	}
	return ExitOK
}

// ListTypes prints the instance-type table: label and value, in
// registration order.
func (c *Commands) ListTypes() ExitStatus {
	for _, e := range c.meta.InstanceType.Entries() {
		c.host.Printf("%-40s %d\n", e.Label, e.Value)
	}
	return ExitOK
}

// ListSpecials prints the well-known oddball addresses resolved through
// the roots table.
func (c *Commands) ListSpecials() ExitStatus {
	for _, name := range RootNames {
		addr, err := c.roots.Lookup(name)
		if err != nil {
			c.host.Printf("%s: (unavailable)\n", name)
			continue
		}
		c.host.Printf("%-12s %#x\n", name, addr)
	}
	return ExitOK
}

// DescribeType prints a one-line description of the word at addr.
func (c *Commands) DescribeType(addr uint32) ExitStatus {
	desc, err := c.describe.Describe(Word(addr))
	if err != nil {
		c.host.Printf("%#x: (unreadable)\n", addr)
		return ExitErr
	}
	c.host.Printf("%#x: %s\n", addr, desc.Text)
	return ExitOK
}

// PrintObject prints the object at addr as className, or auto-detects
// the class when className is empty.
func (c *Commands) PrintObject(addr uint32, className string) ExitStatus {
	w := Word(addr)
	if c.meta.Tags.IsSMI(w) || c.meta.Tags.IsFailure(w) {
		desc, _ := c.describe.Describe(w)
		c.host.Printf("%s\n", desc.Text)
		return ExitOK
	}

	if className == "" {
		typeByte, err := c.reader.ReadTypeByte(addr)
		if err != nil {
			c.host.Printf("%#x: (unreadable)\n", addr)
			return ExitErr
		}
		className = c.meta.InstanceType.Lookup(int32(typeByte), "")
		if className == "" {
			c.host.Printf("%#x: <unknown type>\n", addr)
			return ExitErr
		}
	}

	class, ok := c.meta.FindClass(className)
	if !ok {
		c.host.Printf("unknown class %q\n", className)
		return ExitUsage
	}
	c.printer.Print(addr, class)
	return ExitOK
}

// PrintString decodes and prints the string at addr.
func (c *Commands) PrintString(addr uint32, verbose bool) ExitStatus {
	var sink BufSink
	sink.Reset(4096)
	if err := c.strs.Decode(Word(addr), verbose, &sink); err != nil {
		c.host.Printf("(error decoding string: %v)\n", err)
		return ExitErr
	}
	c.host.Printf("%s\n", sink.String())
	return ExitOK
}

// PrintFrame decodes and prints one frame.
func (c *Commands) PrintFrame(fp uint32, verbose bool) ExitStatus {
	f, err := c.frames.Decode(fp)
	if err != nil {
		c.host.Printf("%#x: (unreadable frame: %v)\n", fp, err)
		return ExitErr
	}
	c.printFrame(f, verbose)
	return ExitOK
}

func (c *Commands) printFrame(f Frame, verbose bool) {
	switch f.Kind {
	case FrameJavaScript:
		c.host.Printf("%#x %s at %s %s\n", f.FP, f.Name, f.ScriptName, f.Line)
		if verbose {
			c.host.Printf("    function: %#x\n", f.FunctionAddr)
		}
	default:
		c.host.Printf("%#x %s\n", f.FP, f.MarkName)
	}
}

// PrintStack walks the default thread's frame-pointer chain, printing
// every frame innermost-first.
func (c *Commands) PrintStack(verbose bool) ExitStatus {
	return c.WalkFrames(DefaultThreadID, verbose)
}

// WalkFrames walks tid's frame-pointer chain, printing every frame.
func (c *Commands) WalkFrames(tid int, verbose bool) ExitStatus {
	walker, err := NewStackWalker(c.host, c.meta, tid)
	if err != nil {
		c.host.Printf("failed to walk thread %d: %v\n", tid, err)
		return ExitErr
	}

	status := ExitOK
	err = walker.Walk(func(fp uint32) error {
		f, ferr := c.frames.Decode(fp)
		if ferr != nil {
			c.host.Printf("%#x: (unreadable frame: %v)\n", fp, ferr)
			status = ExitErr
			return nil
		}
		c.printFrame(f, verbose)
		return nil
	})
	if err != nil {
		c.host.Printf("stack walk aborted: %v\n", err)
		return ExitErr
	}
	return status
}
