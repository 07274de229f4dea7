package vm

import (
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf16"

	"tsbc/internal/ir"
	"tsbc/internal/types"
	"tsbc/internal/value"
)

// Host implements the library classes lowered code calls into.
type Host interface {
	// New instantiates a host class.
	New(vm *VM, class *types.Class, ctor *types.Method, args []value.Value) (value.Value, error)
	// Init runs a host constructor on an object of a unit subclass.
	Init(vm *VM, obj *value.Object, ctor *types.Method, args []value.Value) error
	// Invoke calls a host method. recv is null for static methods.
	Invoke(vm *VM, recv value.Value, m *types.Method, args []value.Value) (value.Value, error)
	// StaticField reads a static field of a host class.
	StaticField(vm *VM, f *ir.FieldRef) (value.Value, error)
}

// CoreHost implements the core catalog of typeindex.Core.
type CoreHost struct {
	Stdout io.Writer
	Stderr io.Writer

	out, err *value.Object
	ids      map[*value.Object]int64
}

// NewCoreHost returns a host printing System.out to stdout. A nil writer
// discards output.
func NewCoreHost(stdout io.Writer) *CoreHost {
	if stdout == nil {
		stdout = io.Discard
	}
	return &CoreHost{Stdout: stdout, Stderr: io.Discard, ids: make(map[*value.Object]int64)}
}

func unsupported(m *types.Method) error {
	return fmt.Errorf("vm: host method %s is not supported", m)
}

func (h *CoreHost) New(vm *VM, class *types.Class, ctor *types.Method, args []value.Value) (value.Value, error) {
	obj := &value.Object{Class: class.Name}
	if vm.idx.IsAssignable(class, types.Throwable) {
		obj.Native = &value.Exception{}
		return value.Obj(obj), h.Init(vm, obj, ctor, args)
	}
	switch class.Name {
	case "java.lang.Object":
	case "java.lang.String":
		if len(args) == 1 {
			return args[0], nil
		}
		return value.Str(""), nil
	case "java.lang.StringBuilder":
		b := &strings.Builder{}
		if len(args) == 1 && args[0].Kind != value.KindInt {
			s, err := vm.Stringify(args[0], ctor.Params[0])
			if err != nil {
				return value.Null, err
			}
			b.WriteString(s)
		}
		obj.Native = b
	case "java.util.ArrayList":
		obj.Native = &[]value.Value{}
	default:
		return value.Null, unsupported(ctor)
	}
	return value.Obj(obj), nil
}

func (h *CoreHost) Init(vm *VM, obj *value.Object, ctor *types.Method, args []value.Value) error {
	e := obj.Exception()
	if e == nil {
		if ctor.Owner.Name == types.Object.Name {
			return nil
		}
		return unsupported(ctor)
	}
	if len(args) > 0 && args[0].Kind == value.KindString {
		e.Message, e.HasMessage = args[0].Str, true
	}
	if len(args) > 1 && args[1].Kind == value.KindObject {
		e.Cause = args[1].Obj
	}
	return nil
}

func (h *CoreHost) StaticField(vm *VM, f *ir.FieldRef) (value.Value, error) {
	switch f.Owner.Name + "." + f.Name {
	case "java.lang.Integer.MAX_VALUE":
		return value.Int(math.MaxInt32), nil
	case "java.lang.Integer.MIN_VALUE":
		return value.Int(math.MinInt32), nil
	case "java.lang.System.out":
		if h.out == nil {
			h.out = &value.Object{Class: "java.io.PrintStream", Native: h.Stdout}
		}
		return value.Obj(h.out), nil
	case "java.lang.System.err":
		if h.err == nil {
			h.err = &value.Object{Class: "java.io.PrintStream", Native: h.Stderr}
		}
		return value.Obj(h.err), nil
	}
	return value.Null, fmt.Errorf("vm: host field %s.%s is not supported", f.Owner, f.Name)
}

func (h *CoreHost) Invoke(vm *VM, recv value.Value, m *types.Method, args []value.Value) (value.Value, error) {
	if m.Static {
		return h.static(vm, m, args)
	}
	switch recv.Kind {
	case value.KindString:
		return h.stringMethod(vm, recv.Str, m, args)
	case value.KindObject:
		if e := recv.Obj.Exception(); e != nil {
			if v, ok := throwableMethod(recv.Obj, e, m, args); ok {
				return v, nil
			}
		}
		switch n := recv.Obj.Native.(type) {
		case value.Value:
			if v, ok := boxedMethod(recv, n, m, args); ok {
				return v, nil
			}
		case *strings.Builder:
			return builderMethod(vm, recv, n, m, args)
		case io.Writer:
			return printMethod(vm, n, m, args)
		case *[]value.Value:
			return h.listMethod(vm, recv, n, m, args)
		case *listIter:
			switch m.Name {
			case "hasNext":
				return value.Bool(n.pos < len(*n.list)), nil
			case "next":
				if n.pos >= len(*n.list) {
					return value.Null, value.Throw("java.util.NoSuchElementException", "no more elements")
				}
				n.pos++
				return (*n.list)[n.pos-1], nil
			}
		}
	}
	return h.objectMethod(vm, recv, m, args)
}

// objectMethod implements the methods every value inherits from Object.
func (h *CoreHost) objectMethod(vm *VM, recv value.Value, m *types.Method, args []value.Value) (value.Value, error) {
	switch {
	case m.Name == "equals" && len(args) == 1:
		if b, ok := value.Unbox(recv); ok {
			o, ok := value.Unbox(args[0])
			return value.Bool(ok && args[0].Obj.Class == recv.Obj.Class && o == b), nil
		}
		return value.Bool(identical(recv, args[0])), nil
	case m.Name == "hashCode" && len(args) == 0:
		return value.Int(h.hash(recv)), nil
	case m.Name == "toString" && len(args) == 0:
		return value.Str(recv.String()), nil
	}
	return value.Null, unsupported(m)
}

func (h *CoreHost) hash(v value.Value) int64 {
	switch v.Kind {
	case value.KindString:
		return stringHash(v.Str)
	case value.KindObject:
		if b, ok := value.Unbox(v); ok {
			f := fnv.New32a()
			f.Write([]byte(b.String()))
			return int64(int32(f.Sum32()))
		}
		id, ok := h.ids[v.Obj]
		if !ok {
			id = int64(len(h.ids) + 1)
			h.ids[v.Obj] = id
		}
		return id
	}
	return 0
}

func stringHash(s string) int64 {
	var h int32
	for _, c := range utf16.Encode([]rune(s)) {
		h = 31*h + int32(c)
	}
	return int64(h)
}

func (h *CoreHost) static(vm *VM, m *types.Method, args []value.Value) (value.Value, error) {
	switch m.Owner.Name {
	case "java.lang.String":
		switch m.Name {
		case "valueOf":
			s, err := vm.Stringify(args[0], m.Params[0])
			return value.Str(s), err
		case "format":
			return formatString(args[0].Str, args[1])
		case "join":
			parts := make([]string, len(args[1].Arr.Elems))
			for i, p := range args[1].Arr.Elems {
				s, err := vm.Stringify(p, types.Object)
				if err != nil {
					return value.Null, err
				}
				parts[i] = s
			}
			return value.Str(strings.Join(parts, args[0].String())), nil
		}
	case "java.lang.Integer":
		switch m.Name {
		case "parseInt":
			n, err := strconv.ParseInt(strings.TrimSpace(args[0].Str), 10, 32)
			if err != nil {
				return value.Null, value.Throw("java.lang.NumberFormatException", fmt.Sprintf("For input string: %q", args[0].Str))
			}
			return value.Int(n), nil
		case "toString":
			return value.Str(strconv.FormatInt(args[0].Int, 10)), nil
		}
	case "java.lang.Math":
		return mathMethod(m, args)
	case "java.lang.System":
		if m.Name == "currentTimeMillis" {
			return value.Int(time.Now().UnixMilli()), nil
		}
	case "java.util.List", "java.util.Arrays":
		switch m.Name {
		case "of", "asList":
			elems := slices.Clone(args[0].Arr.Elems)
			return value.Obj(&value.Object{Class: "java.util.ArrayList", Native: &elems}), nil
		case "sort":
			if args[0].IsNull() {
				return value.Null, npe("sort")
			}
			slices.SortFunc(args[0].Arr.Elems, func(a, b value.Value) int {
				return compareInt(a.Int, b.Int)
			})
			return value.Null, nil
		}
	}
	if m.Name == "valueOf" && len(m.Params) == 1 {
		if p, ok := m.Params[0].(*types.Primitive); ok {
			return value.Box(p, args[0]), nil
		}
	}
	return value.Null, unsupported(m)
}

func compareInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// formatString supports the %s, %d and %f conversions of String.format.
func formatString(format string, args value.Value) (value.Value, error) {
	var goArgs []any
	if args.Kind == value.KindArray {
		for _, a := range args.Arr.Elems {
			if b, ok := value.Unbox(a); ok {
				a = b
			}
			switch a.Kind {
			case value.KindInt:
				goArgs = append(goArgs, a.Int)
			case value.KindFloat:
				goArgs = append(goArgs, a.Float)
			case value.KindBool:
				goArgs = append(goArgs, a.Bool)
			default:
				goArgs = append(goArgs, a.String())
			}
		}
	}
	format = strings.ReplaceAll(format, "%n", "\n")
	return value.Str(fmt.Sprintf(format, goArgs...)), nil
}

func mathMethod(m *types.Method, args []value.Value) (value.Value, error) {
	p := prim(m.Result)
	isFloat := p.Kind == types.PrimFloat || p.Kind == types.PrimDouble
	switch m.Name {
	case "max", "min":
		a, b := args[0], args[1]
		if isFloat {
			if m.Name == "max" {
				return value.Float(math.Max(a.Float, b.Float)), nil
			}
			return value.Float(math.Min(a.Float, b.Float)), nil
		}
		if (m.Name == "max") == (a.Int >= b.Int) {
			return a, nil
		}
		return b, nil
	case "abs":
		if isFloat {
			return value.Float(math.Abs(args[0].Float)), nil
		}
		if args[0].Int < 0 {
			return value.Int(wrap(-args[0].Int, p)), nil
		}
		return args[0], nil
	}
	return value.Null, unsupported(m)
}

func (h *CoreHost) stringMethod(vm *VM, s string, m *types.Method, args []value.Value) (value.Value, error) {
	units := utf16.Encode([]rune(s))
	bounds := func(i int64) error {
		if i < 0 || i > int64(len(units)) {
			return value.Throw("java.lang.StringIndexOutOfBoundsException", fmt.Sprintf("index %d, length %d", i, len(units)))
		}
		return nil
	}
	switch m.Name {
	case "length":
		return value.Int(int64(len(units))), nil
	case "charAt":
		if err := bounds(args[0].Int); err != nil || args[0].Int == int64(len(units)) {
			return value.Null, value.Throw("java.lang.StringIndexOutOfBoundsException", fmt.Sprintf("index %d, length %d", args[0].Int, len(units)))
		}
		return value.Int(int64(units[args[0].Int])), nil
	case "isEmpty":
		return value.Bool(len(units) == 0), nil
	case "substring":
		begin, end := args[0].Int, int64(len(units))
		if len(args) == 2 {
			end = args[1].Int
		}
		if err := bounds(begin); err != nil {
			return value.Null, err
		}
		if err := bounds(end); err != nil || end < begin {
			return value.Null, value.Throw("java.lang.StringIndexOutOfBoundsException", fmt.Sprintf("begin %d, end %d, length %d", begin, end, len(units)))
		}
		return value.Str(string(utf16.Decode(units[begin:end]))), nil
	case "concat":
		return value.Str(s + args[0].Str), nil
	case "indexOf":
		needle := args[0].Str
		if args[0].Kind == value.KindInt {
			needle = string(rune(args[0].Int))
		}
		i := strings.Index(s, needle)
		if i < 0 {
			return value.Int(-1), nil
		}
		return value.Int(int64(len(utf16.Encode([]rune(s[:i]))))), nil
	case "equals":
		return value.Bool(args[0].Kind == value.KindString && args[0].Str == s), nil
	case "compareTo":
		if args[0].IsNull() {
			return value.Null, npe("compare to")
		}
		return value.Int(int64(compareUnits(units, utf16.Encode([]rune(args[0].Str))))), nil
	case "trim":
		return value.Str(strings.TrimFunc(s, func(r rune) bool { return r <= ' ' })), nil
	case "strip":
		return value.Str(strings.TrimSpace(s)), nil
	case "isBlank":
		return value.Bool(strings.TrimSpace(s) == ""), nil
	case "toUpperCase":
		return value.Str(strings.ToUpper(s)), nil
	case "toString":
		return value.Str(s), nil
	case "repeat":
		if args[0].Int < 0 {
			return value.Null, value.Throw("java.lang.IllegalArgumentException", "count is negative: "+strconv.FormatInt(args[0].Int, 10))
		}
		return value.Str(strings.Repeat(s, int(args[0].Int))), nil
	case "hashCode":
		return value.Int(stringHash(s)), nil
	}
	return h.objectMethod(vm, value.Str(s), m, args)
}

func compareUnits(a, b []uint16) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return int(a[i]) - int(b[i])
		}
	}
	return len(a) - len(b)
}

func throwableMethod(obj *value.Object, e *value.Exception, m *types.Method, args []value.Value) (value.Value, bool) {
	switch m.Name {
	case "getMessage":
		if !e.HasMessage {
			return value.Null, true
		}
		return value.Str(e.Message), true
	case "getCause":
		return value.Obj(e.Cause), true
	case "addSuppressed":
		if args[0].Kind == value.KindObject && args[0].Obj != obj {
			e.Suppressed = append(e.Suppressed, args[0].Obj)
		}
		return value.Null, true
	case "getSuppressed":
		elems := make([]value.Value, len(e.Suppressed))
		for i, s := range e.Suppressed {
			elems[i] = value.Obj(s)
		}
		return value.NewArray(types.Throwable, elems), true
	}
	return value.Null, false
}

func boxedMethod(recv, v value.Value, m *types.Method, args []value.Value) (value.Value, bool) {
	from, _ := types.Unbox(types.NewClass(recv.Obj.Class))
	if from == nil {
		return value.Null, false
	}
	switch m.Name {
	case "intValue", "longValue", "doubleValue", "booleanValue", "charValue":
		return numeric(v, from, prim(m.Result)), true
	case "compareTo":
		o, ok := value.Unbox(args[0])
		if !ok {
			return value.Null, false
		}
		if v.Kind == value.KindFloat {
			switch {
			case v.Float < o.Float:
				return value.Int(-1), true
			case v.Float > o.Float:
				return value.Int(1), true
			}
			return value.Int(0), true
		}
		return value.Int(int64(compareInt(v.Int, o.Int))), true
	}
	return value.Null, false
}

func builderMethod(vm *VM, recv value.Value, b *strings.Builder, m *types.Method, args []value.Value) (value.Value, error) {
	switch m.Name {
	case "append":
		s, err := vm.Stringify(args[0], m.Params[0])
		if err != nil {
			return value.Null, err
		}
		b.WriteString(s)
		return recv, nil
	case "length":
		return value.Int(int64(len(utf16.Encode([]rune(b.String()))))), nil
	case "charAt":
		units := utf16.Encode([]rune(b.String()))
		if args[0].Int < 0 || args[0].Int >= int64(len(units)) {
			return value.Null, value.Throw("java.lang.StringIndexOutOfBoundsException", fmt.Sprintf("index %d, length %d", args[0].Int, len(units)))
		}
		return value.Int(int64(units[args[0].Int])), nil
	case "reverse":
		r := []rune(b.String())
		slices.Reverse(r)
		b.Reset()
		b.WriteString(string(r))
		return recv, nil
	case "toString":
		return value.Str(b.String()), nil
	}
	return value.Null, unsupported(m)
}

func printMethod(vm *VM, w io.Writer, m *types.Method, args []value.Value) (value.Value, error) {
	switch m.Name {
	case "println", "print":
		var s string
		if len(args) == 1 {
			var err error
			if s, err = vm.Stringify(args[0], m.Params[0]); err != nil {
				return value.Null, err
			}
		}
		if m.Name == "println" {
			s += "\n"
		}
		if _, err := io.WriteString(w, s); err != nil {
			return value.Null, value.Throw("java.io.IOException", err.Error())
		}
		return value.Null, nil
	case "close":
		return value.Null, nil
	}
	return value.Null, unsupported(m)
}

type listIter struct {
	list *[]value.Value
	pos  int
}

func (h *CoreHost) listMethod(vm *VM, recv value.Value, l *[]value.Value, m *types.Method, args []value.Value) (value.Value, error) {
	index := func(i int64, size int) error {
		if i < 0 || i >= int64(size) {
			return value.Throw("java.lang.IndexOutOfBoundsException", fmt.Sprintf("Index %d out of bounds for length %d", i, size))
		}
		return nil
	}
	switch m.Name {
	case "add":
		if len(args) == 1 {
			*l = append(*l, args[0])
			return value.Bool(true), nil
		}
		if err := index(args[0].Int, len(*l)+1); err != nil {
			return value.Null, err
		}
		*l = slices.Insert(*l, int(args[0].Int), args[1])
		return value.Null, nil
	case "get":
		if err := index(args[0].Int, len(*l)); err != nil {
			return value.Null, err
		}
		return (*l)[args[0].Int], nil
	case "size":
		return value.Int(int64(len(*l))), nil
	case "isEmpty":
		return value.Bool(len(*l) == 0), nil
	case "iterator":
		return value.Obj(&value.Object{Class: "java.util.ArrayList$Itr", Native: &listIter{list: l}}), nil
	case "forEach":
		accept, ok := vm.idx.SingleAbstractMethod(types.NewClass("java.util.function.Consumer"))
		if !ok {
			return value.Null, unsupported(m)
		}
		if args[0].IsNull() {
			return value.Null, npe("call forEach with")
		}
		for _, el := range *l {
			if _, err := vm.dispatch(args[0], accept, []value.Value{el}); err != nil {
				return value.Null, err
			}
		}
		return value.Null, nil
	}
	return h.objectMethod(vm, recv, m, args)
}
