// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package classfile

import "fmt"

// LinkedClass is a ClassFile with its superclass chain resolved against a
// batch of other decoded classes, and its members' descriptors parsed.
type LinkedClass struct {
	Version     Version
	Name        string
	AccessFlags AccessFlags

	// Super is nil for java/lang/Object (super_class == 0), and when
	// super_class does not resolve to a Class entry. Otherwise it is
	// non-nil: if the superclass was not present in the batch
	// passed to Link, Super is a placeholder carrying only its Name, and
	// SuperPlaceholder is true.
	Super            *LinkedClass
	SuperPlaceholder bool

	// Placeholder is true when this LinkedClass itself is a name-only stub
	// created because some other class's super_class pointed to it and it
	// was not present in the batch passed to Link.
	Placeholder bool

	Fields     []LinkedField
	Methods    []LinkedMethod
	Attributes []ResolvedAttribute
}

// LinkedField is a field_info with its descriptor parsed and its
// attributes resolved.
type LinkedField struct {
	AccessFlags AccessFlags
	Name        string
	Descriptor  FieldDescriptor
	Attributes  []ResolvedAttribute

	// ConstantValue is non-nil when the field carries a ConstantValue
	// attribute that narrowed successfully against Descriptor.
	ConstantValue any
}

// LinkedMethod is a method_info with its descriptor parsed and its
// attributes resolved.
type LinkedMethod struct {
	AccessFlags AccessFlags
	Name        string
	Descriptor  MethodDescriptor
	Attributes  []ResolvedAttribute

	// Code is nil for abstract and native methods, which carry no Code
	// attribute.
	Code *CodeAttribute
}

// Link resolves a batch of independently decoded class files against each
// other: each class's superclass reference is followed to another entry in
// raw when present, and left as a name-only placeholder otherwise (the
// superclass lives in a library not included in this batch - java/lang/Object
// itself, most commonly). The result is keyed by binary class name.
//
// Resolution is memoized per class name, so a class referenced as a
// superclass from multiple places is linked once; a class that is its own
// (direct or indirect) superclass - never valid bytecode, but not something
// Link asserts - resolves to the in-progress stub rather than recursing
// forever.
func Link(raw []*ClassFile) (map[string]*LinkedClass, error) {
	return LinkWithOptions(raw, nil)
}

// LinkWithOptions is Link with an explicit Options, controlling whether
// method bytecode is disassembled at all and where diagnostic events go.
func LinkWithOptions(raw []*ClassFile, opts *Options) (map[string]*LinkedClass, error) {
	byName := make(map[string]*ClassFile, len(raw))
	for _, rc := range raw {
		name, ok := rc.Name()
		if !ok {
			return nil, fmt.Errorf("classfile: class file with unresolvable this_class name")
		}
		byName[name] = rc
	}

	l := &linker{raw: byName, linked: make(map[string]*LinkedClass, len(raw)), opts: opts}
	for name, rc := range byName {
		if _, err := l.linkClass(name, rc); err != nil {
			return nil, fmt.Errorf("classfile: linking %s: %w", name, err)
		}
	}
	return l.linked, nil
}

type linker struct {
	raw    map[string]*ClassFile
	linked map[string]*LinkedClass
	opts   *Options
}

func (l *linker) linkClass(name string, rc *ClassFile) (*LinkedClass, error) {
	if existing, ok := l.linked[name]; ok {
		return existing, nil
	}

	lc := &LinkedClass{Version: rc.Version, Name: name, AccessFlags: rc.AccessFlags}
	l.linked[name] = lc

	if superName, ok := rc.SuperName(); ok {
		super, placeholder, err := l.resolveSuper(superName)
		if err != nil {
			return nil, err
		}
		lc.Super = super
		lc.SuperPlaceholder = placeholder
	}

	for _, attr := range rc.Attributes {
		resolved := ResolveAttribute(rc.ConstantPool, attr, ScopeClass)
		l.logAttributeError(name, resolved)
		lc.Attributes = append(lc.Attributes, resolved)
	}
	for _, f := range rc.Fields {
		lc.Fields = append(lc.Fields, l.linkField(name, rc, f))
	}
	for _, m := range rc.Methods {
		lc.Methods = append(lc.Methods, l.linkMethod(name, rc, m))
	}

	return lc, nil
}

func (l *linker) resolveSuper(name string) (*LinkedClass, bool, error) {
	if existing, ok := l.linked[name]; ok {
		return existing, existing.Placeholder, nil
	}
	if rawSuper, ok := l.raw[name]; ok {
		linked, err := l.linkClass(name, rawSuper)
		return linked, false, err
	}

	l.opts.logger().Debug("superclass not present in linked batch, using placeholder", "super", name)
	placeholder := &LinkedClass{Name: name, Placeholder: true}
	l.linked[name] = placeholder
	return placeholder, true, nil
}

func (l *linker) logAttributeError(className string, resolved ResolvedAttribute) {
	if resolved.Type != AttrError {
		return
	}
	l.opts.logger().Debug("attribute did not resolve",
		"class", className, "attribute", resolved.Error.Name, "reason", resolved.Error.Message)
}

func (l *linker) linkField(className string, rc *ClassFile, f MemberInfo) LinkedField {
	name, _ := rc.ConstantPool.UTF8(f.NameIndex)
	descStr, _ := rc.ConstantPool.UTF8(f.DescriptorIndex)
	desc, err := ParseFieldDescriptor(descStr)
	if err != nil {
		desc = FieldDescriptor{}
	}

	lf := LinkedField{AccessFlags: f.AccessFlags, Name: name, Descriptor: desc}
	for _, raw := range f.Attributes {
		resolved := ResolveAttribute(rc.ConstantPool, raw, ScopeField)
		if resolved.Type == AttrConstantValue {
			if v, ok := rc.ConstantPool.ConstantValueFor(desc, resolved.ConstantValueIndex); ok {
				lf.ConstantValue = v
			} else {
				resolved = errorAttribute("ConstantValue", "constant pool entry does not match field descriptor", raw.Data)
			}
		}
		l.logAttributeError(className, resolved)
		lf.Attributes = append(lf.Attributes, resolved)
	}
	return lf
}

func (l *linker) linkMethod(className string, rc *ClassFile, m MemberInfo) LinkedMethod {
	name, _ := rc.ConstantPool.UTF8(m.NameIndex)
	descStr, _ := rc.ConstantPool.UTF8(m.DescriptorIndex)
	desc, err := ParseMethodDescriptor(descStr)
	if err != nil {
		desc = MethodDescriptor{}
	}

	lm := LinkedMethod{AccessFlags: m.AccessFlags, Name: name, Descriptor: desc}
	for _, raw := range m.Attributes {
		resolved := ResolveAttribute(rc.ConstantPool, raw, ScopeMethod)
		if resolved.Type == AttrCode {
			lm.Code = resolved.Code
			if !(l.opts != nil && l.opts.Fast) {
				lm.Code.Instructions = DecodeInstructions(lm.Code.Code)
			}
		}
		l.logAttributeError(className, resolved)
		lm.Attributes = append(lm.Attributes, resolved)
	}
	return lm
}
