package typeindex

import (
	"fmt"
	"sync"

	"tsbc/internal/types"
)

type memberFlag int

const (
	fStatic memberFlag = 1 << iota
	fAbstract
	fDefault
	fVarargs
)

type coreClass struct {
	info *ClassInfo
}

func class(name, super string, ifaces ...string) *coreClass {
	return &coreClass{info: &ClassInfo{Name: name, Super: super, Interfaces: ifaces}}
}

func iface(name string, extends ...string) *coreClass {
	return &coreClass{info: &ClassInfo{Name: name, Interfaces: extends, Interface: true}}
}

func (c *coreClass) since(v string) *coreClass {
	c.info.Since = v
	return c
}

func (c *coreClass) method(name, desc string, flags memberFlag, since ...string) *coreClass {
	m := coreMethod(c.info.Name, name, desc, flags, since...)
	if c.info.Interface && flags&(fStatic|fDefault) == 0 {
		m.Abstract = true
	}
	c.info.Methods = append(c.info.Methods, m)
	return c
}

func (c *coreClass) ctor(desc string, flags memberFlag, since ...string) *coreClass {
	c.info.Constructors = append(c.info.Constructors, coreMethod(c.info.Name, types.ConstructorName, desc, flags, since...))
	return c
}

func (c *coreClass) field(name, desc string, flags memberFlag) *coreClass {
	t, err := types.ParseDescriptor(desc)
	if err != nil {
		panic(fmt.Sprintf("core catalog: %s.%s: %v", c.info.Name, name, err))
	}
	c.info.Fields = append(c.info.Fields, &Field{
		Owner:  c.info.Type(),
		Name:   name,
		Type:   t,
		Static: flags&fStatic != 0,
		Final:  true,
	})
	return c
}

func coreMethod(owner, name, desc string, flags memberFlag, since ...string) *types.Method {
	params, result, err := types.ParseMethodDescriptor(desc)
	if err != nil {
		panic(fmt.Sprintf("core catalog: %s.%s: %v", owner, name, err))
	}
	m := &types.Method{
		Owner:    types.NewClass(owner),
		Name:     name,
		Params:   params,
		Result:   result,
		Static:   flags&fStatic != 0,
		Abstract: flags&fAbstract != 0,
		Default:  flags&fDefault != 0,
		Varargs:  flags&fVarargs != 0,
	}
	if len(since) > 0 {
		m.Since = since[0]
	}
	return m
}

const (
	obj = "Ljava/lang/Object;"
	str = "Ljava/lang/String;"
	sb  = "Ljava/lang/StringBuilder;"
)

var (
	coreOnce sync.Once
	coreList []*ClassInfo
)

// Core returns the built-in catalog of the host's core library classes.
// The returned values are shared and must not be modified.
func Core() []*ClassInfo {
	coreOnce.Do(func() {
		for _, c := range coreClasses() {
			coreList = append(coreList, c.info)
		}
	})
	return coreList
}

func coreClasses() []*coreClass {
	return []*coreClass{
		class("java.lang.Object", "").
			ctor("()V", 0).
			method("equals", "("+obj+")Z", 0).
			method("hashCode", "()I", 0).
			method("toString", "()"+str, 0),
		iface("java.io.Serializable"),
		iface("java.lang.Cloneable"),
		iface("java.lang.Comparable").
			method("compareTo", "("+obj+")I", 0),
		iface("java.lang.CharSequence").
			method("length", "()I", 0).
			method("charAt", "(I)C", 0).
			method("isEmpty", "()Z", fDefault, "15"),
		class("java.lang.String", "java.lang.Object", "java.io.Serializable", "java.lang.Comparable", "java.lang.CharSequence").
			ctor("()V", 0).
			ctor("("+str+")V", 0).
			method("length", "()I", 0).
			method("charAt", "(I)C", 0).
			method("isEmpty", "()Z", 0).
			method("substring", "(I)"+str, 0).
			method("substring", "(II)"+str, 0).
			method("concat", "("+str+")"+str, 0).
			method("indexOf", "(I)I", 0).
			method("indexOf", "("+str+")I", 0).
			method("equals", "("+obj+")Z", 0).
			method("compareTo", "("+str+")I", 0).
			method("trim", "()"+str, 0).
			method("toUpperCase", "()"+str, 0).
			method("toString", "()"+str, 0).
			method("repeat", "(I)"+str, 0, "11").
			method("isBlank", "()Z", 0, "11").
			method("strip", "()"+str, 0, "11").
			method("valueOf", "(Z)"+str, fStatic).
			method("valueOf", "(C)"+str, fStatic).
			method("valueOf", "(I)"+str, fStatic).
			method("valueOf", "(J)"+str, fStatic).
			method("valueOf", "(F)"+str, fStatic).
			method("valueOf", "(D)"+str, fStatic).
			method("valueOf", "("+obj+")"+str, fStatic).
			method("format", "("+str+"[Ljava/lang/Object;)"+str, fStatic|fVarargs).
			method("join", "(Ljava/lang/CharSequence;[Ljava/lang/CharSequence;)"+str, fStatic|fVarargs, "1.8"),
		class("java.lang.Number", "java.lang.Object", "java.io.Serializable").
			ctor("()V", 0).
			method("intValue", "()I", fAbstract).
			method("longValue", "()J", fAbstract).
			method("doubleValue", "()D", fAbstract),
		class("java.lang.Boolean", "java.lang.Object", "java.io.Serializable", "java.lang.Comparable").
			method("valueOf", "(Z)Ljava/lang/Boolean;", fStatic).
			method("booleanValue", "()Z", 0),
		class("java.lang.Character", "java.lang.Object", "java.io.Serializable", "java.lang.Comparable").
			method("valueOf", "(C)Ljava/lang/Character;", fStatic).
			method("charValue", "()C", 0),
		class("java.lang.Byte", "java.lang.Number", "java.lang.Comparable").
			method("valueOf", "(B)Ljava/lang/Byte;", fStatic),
		class("java.lang.Short", "java.lang.Number", "java.lang.Comparable").
			method("valueOf", "(S)Ljava/lang/Short;", fStatic),
		class("java.lang.Integer", "java.lang.Number", "java.lang.Comparable").
			field("MAX_VALUE", "I", fStatic).
			field("MIN_VALUE", "I", fStatic).
			method("valueOf", "(I)Ljava/lang/Integer;", fStatic).
			method("parseInt", "("+str+")I", fStatic).
			method("toString", "(I)"+str, fStatic).
			method("intValue", "()I", 0),
		class("java.lang.Long", "java.lang.Number", "java.lang.Comparable").
			method("valueOf", "(J)Ljava/lang/Long;", fStatic).
			method("longValue", "()J", 0),
		class("java.lang.Float", "java.lang.Number", "java.lang.Comparable").
			method("valueOf", "(F)Ljava/lang/Float;", fStatic),
		class("java.lang.Double", "java.lang.Number", "java.lang.Comparable").
			method("valueOf", "(D)Ljava/lang/Double;", fStatic).
			method("doubleValue", "()D", 0),
		class("java.lang.Math", "java.lang.Object").
			method("max", "(II)I", fStatic).
			method("max", "(JJ)J", fStatic).
			method("max", "(FF)F", fStatic).
			method("max", "(DD)D", fStatic).
			method("min", "(II)I", fStatic).
			method("min", "(JJ)J", fStatic).
			method("min", "(FF)F", fStatic).
			method("min", "(DD)D", fStatic).
			method("abs", "(I)I", fStatic).
			method("abs", "(J)J", fStatic).
			method("abs", "(F)F", fStatic).
			method("abs", "(D)D", fStatic),
		class("java.lang.StringBuilder", "java.lang.Object", "java.io.Serializable", "java.lang.CharSequence").
			ctor("()V", 0).
			ctor("(I)V", 0).
			ctor("("+str+")V", 0).
			ctor("(Ljava/lang/CharSequence;)V", 0).
			method("append", "(Z)"+sb, 0).
			method("append", "(C)"+sb, 0).
			method("append", "(I)"+sb, 0).
			method("append", "(J)"+sb, 0).
			method("append", "(F)"+sb, 0).
			method("append", "(D)"+sb, 0).
			method("append", "("+str+")"+sb, 0).
			method("append", "("+obj+")"+sb, 0).
			method("append", "(Ljava/lang/CharSequence;)"+sb, 0).
			method("length", "()I", 0).
			method("charAt", "(I)C", 0).
			method("reverse", "()"+sb, 0).
			method("toString", "()"+str, 0),
		iface("java.lang.AutoCloseable").
			method("close", "()V", 0),
		iface("java.io.Closeable", "java.lang.AutoCloseable").
			method("close", "()V", 0),
		class("java.lang.Throwable", "java.lang.Object", "java.io.Serializable").
			ctor("()V", 0).
			ctor("("+str+")V", 0).
			ctor("("+str+"Ljava/lang/Throwable;)V", 0).
			method("getMessage", "()"+str, 0).
			method("getCause", "()Ljava/lang/Throwable;", 0).
			method("addSuppressed", "(Ljava/lang/Throwable;)V", 0).
			method("getSuppressed", "()[Ljava/lang/Throwable;", 0),
		class("java.lang.Exception", "java.lang.Throwable").
			ctor("()V", 0).
			ctor("("+str+")V", 0).
			ctor("("+str+"Ljava/lang/Throwable;)V", 0),
		class("java.lang.RuntimeException", "java.lang.Exception").
			ctor("()V", 0).
			ctor("("+str+")V", 0).
			ctor("("+str+"Ljava/lang/Throwable;)V", 0),
		class("java.lang.IllegalStateException", "java.lang.RuntimeException").
			ctor("()V", 0).
			ctor("("+str+")V", 0),
		class("java.lang.IllegalArgumentException", "java.lang.RuntimeException").
			ctor("()V", 0).
			ctor("("+str+")V", 0),
		class("java.io.IOException", "java.lang.Exception").
			ctor("()V", 0).
			ctor("("+str+")V", 0),
		iface("java.lang.Runnable").
			method("run", "()V", 0),
		iface("java.util.Iterator").
			method("hasNext", "()Z", 0).
			method("next", "()"+obj, 0),
		iface("java.lang.Iterable").
			method("iterator", "()Ljava/util/Iterator;", 0).
			method("forEach", "(Ljava/util/function/Consumer;)V", fDefault, "1.8"),
		iface("java.util.Collection", "java.lang.Iterable").
			method("size", "()I", 0).
			method("isEmpty", "()Z", 0).
			method("add", "("+obj+")Z", 0),
		iface("java.util.List", "java.util.Collection").
			method("get", "(I)"+obj, 0).
			method("of", "([Ljava/lang/Object;)Ljava/util/List;", fStatic|fVarargs, "9"),
		class("java.util.ArrayList", "java.lang.Object", "java.util.List", "java.lang.Cloneable", "java.io.Serializable").
			ctor("()V", 0).
			ctor("(I)V", 0).
			method("add", "("+obj+")Z", 0).
			method("add", "(I"+obj+")V", 0).
			method("get", "(I)"+obj, 0).
			method("size", "()I", 0).
			method("isEmpty", "()Z", 0).
			method("iterator", "()Ljava/util/Iterator;", 0),
		class("java.util.Arrays", "java.lang.Object").
			method("asList", "([Ljava/lang/Object;)Ljava/util/List;", fStatic|fVarargs).
			method("sort", "([I)V", fStatic),
		iface("java.util.Comparator").since("1.2").
			method("compare", "("+obj+obj+")I", 0).
			method("equals", "("+obj+")Z", 0).
			method("reversed", "()Ljava/util/Comparator;", fDefault, "1.8"),
		iface("java.util.function.Supplier").since("1.8").
			method("get", "()"+obj, 0),
		iface("java.util.function.Consumer").since("1.8").
			method("accept", "("+obj+")V", 0).
			method("andThen", "(Ljava/util/function/Consumer;)Ljava/util/function/Consumer;", fDefault),
		iface("java.util.function.Function").since("1.8").
			method("apply", "("+obj+")"+obj, 0).
			method("andThen", "(Ljava/util/function/Function;)Ljava/util/function/Function;", fDefault).
			method("identity", "()Ljava/util/function/Function;", fStatic),
		iface("java.util.function.BiFunction").since("1.8").
			method("apply", "("+obj+obj+")"+obj, 0),
		iface("java.util.function.Predicate").since("1.8").
			method("test", "("+obj+")Z", 0).
			method("negate", "()Ljava/util/function/Predicate;", fDefault),
		iface("java.util.function.IntBinaryOperator").since("1.8").
			method("applyAsInt", "(II)I", 0),
		iface("java.util.function.IntUnaryOperator").since("1.8").
			method("applyAsInt", "(I)I", 0),
		iface("java.util.function.IntSupplier").since("1.8").
			method("getAsInt", "()I", 0),
		iface("java.util.function.IntPredicate").since("1.8").
			method("test", "(I)Z", 0),
		class("java.io.PrintStream", "java.lang.Object", "java.io.Closeable").
			method("println", "()V", 0).
			method("println", "(Z)V", 0).
			method("println", "(C)V", 0).
			method("println", "(I)V", 0).
			method("println", "(J)V", 0).
			method("println", "(F)V", 0).
			method("println", "(D)V", 0).
			method("println", "("+str+")V", 0).
			method("println", "("+obj+")V", 0).
			method("print", "("+str+")V", 0).
			method("close", "()V", 0),
		class("java.lang.System", "java.lang.Object").
			field("out", "Ljava/io/PrintStream;", fStatic).
			field("err", "Ljava/io/PrintStream;", fStatic).
			method("currentTimeMillis", "()J", fStatic),
	}
}

// NewCore returns the core catalog as a Static index for target.
func NewCore(target string) *Static {
	s, err := NewStatic(target, Core()...)
	if err != nil {
		panic(err)
	}
	return s
}
