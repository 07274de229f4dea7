package types

import (
	"fmt"
	"strings"
)

var primitivesByDesc = map[byte]*Primitive{
	'Z': Boolean,
	'B': Byte,
	'S': Short,
	'C': Char,
	'I': Int,
	'J': Long,
	'F': Float,
	'D': Double,
	'V': Void,
}

// ParseDescriptor parses a single field descriptor.
func ParseDescriptor(desc string) (Type, error) {
	t, n, err := parseOne(desc, 0)
	if err != nil {
		return nil, err
	}
	if n != len(desc) {
		return nil, fmt.Errorf("descriptor %q: trailing data at %d", desc, n)
	}
	return t, nil
}

// ParseMethodDescriptor splits "(params)result" into its parameter and
// result types.
func ParseMethodDescriptor(desc string) ([]Type, Type, error) {
	if !strings.HasPrefix(desc, "(") {
		return nil, nil, fmt.Errorf("method descriptor %q: missing '('", desc)
	}
	var params []Type
	i := 1
	for i < len(desc) && desc[i] != ')' {
		t, n, err := parseOne(desc, i)
		if err != nil {
			return nil, nil, err
		}
		if IsVoid(t) {
			return nil, nil, fmt.Errorf("method descriptor %q: void parameter", desc)
		}
		params = append(params, t)
		i = n
	}
	if i >= len(desc) {
		return nil, nil, fmt.Errorf("method descriptor %q: missing ')'", desc)
	}
	result, err := ParseDescriptor(desc[i+1:])
	if err != nil {
		return nil, nil, err
	}
	return params, result, nil
}

func parseOne(desc string, i int) (Type, int, error) {
	if i >= len(desc) {
		return nil, i, fmt.Errorf("descriptor %q: unexpected end", desc)
	}
	switch c := desc[i]; c {
	case 'L':
		end := strings.IndexByte(desc[i:], ';')
		if end < 0 {
			return nil, i, fmt.Errorf("descriptor %q: unterminated class name", desc)
		}
		name := desc[i+1 : i+end]
		if name == "" {
			return nil, i, fmt.Errorf("descriptor %q: empty class name", desc)
		}
		return NewClass(strings.ReplaceAll(name, "/", ".")), i + end + 1, nil
	case '[':
		elem, n, err := parseOne(desc, i+1)
		if err != nil {
			return nil, i, err
		}
		if IsVoid(elem) {
			return nil, i, fmt.Errorf("descriptor %q: array of void", desc)
		}
		return &Array{Elem: elem}, n, nil
	default:
		p, ok := primitivesByDesc[c]
		if !ok {
			return nil, i, fmt.Errorf("descriptor %q: bad character %q at %d", desc, c, i)
		}
		return p, i + 1, nil
	}
}
