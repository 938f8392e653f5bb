package paramtype

import (
	"fmt"
	"strings"
)

// Parse 解析类型字符串：
//
//	T ::= primitive | array<T> | map<T,T> | struct<name:T, ...>
//
// 关键字大小写不敏感，允许任意空白；未知基础类型按 string 处理，
// 形如 decimal(10,2) 的长度参数会被忽略。
func Parse(s string) (Type, error) {
	p := &parser{input: s}
	p.skipSpace()
	if p.eof() {
		return nil, fmt.Errorf("%w: empty type", ErrInvalidType)
	}
	t, err := p.parseType()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if !p.eof() {
		return nil, p.errorf("unexpected %q", p.input[p.pos:])
	}
	return t, nil
}

// MustParse 仅用于常量场景，解析失败直接 panic
func MustParse(s string) Type {
	t, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return t
}

// ParseOrString 解析失败时返回 string，供读取历史元数据使用
func ParseOrString(s string) Type {
	t, err := Parse(s)
	if err != nil {
		return StringType()
	}
	return t
}

type parser struct {
	input string
	pos   int
}

func (p *parser) eof() bool { return p.pos >= len(p.input) }

func (p *parser) peek() byte {
	if p.eof() {
		return 0
	}
	return p.input[p.pos]
}

func (p *parser) skipSpace() {
	for !p.eof() {
		switch p.input[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *parser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s at offset %d in %q", ErrInvalidType, fmt.Sprintf(format, args...), p.pos, p.input)
}

func (p *parser) expect(ch byte) error {
	p.skipSpace()
	if p.peek() != ch {
		if p.eof() {
			return p.errorf("expected %q, got end of input", ch)
		}
		return p.errorf("expected %q, got %q", ch, p.peek())
	}
	p.pos++
	return nil
}

func isIdentChar(ch byte) bool {
	return ch == '_' || ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z' || ch >= '0' && ch <= '9'
}

func (p *parser) ident() string {
	p.skipSpace()
	start := p.pos
	for !p.eof() && isIdentChar(p.input[p.pos]) {
		p.pos++
	}
	return p.input[start:p.pos]
}

func (p *parser) parseType() (Type, error) {
	name := p.ident()
	if name == "" {
		if p.eof() {
			return nil, p.errorf("expected type, got end of input")
		}
		return nil, p.errorf("expected type, got %q", p.peek())
	}
	switch strings.ToLower(name) {
	case "array", "list":
		if err := p.expect('<'); err != nil {
			return nil, err
		}
		elem, err := p.parseType()
		if err != nil {
			return nil, err
		}
		if err := p.expect('>'); err != nil {
			return nil, err
		}
		return Array{Elem: elem}, nil
	case "map":
		if err := p.expect('<'); err != nil {
			return nil, err
		}
		key, err := p.parseType()
		if err != nil {
			return nil, err
		}
		if err := p.expect(','); err != nil {
			return nil, err
		}
		val, err := p.parseType()
		if err != nil {
			return nil, err
		}
		if err := p.expect('>'); err != nil {
			return nil, err
		}
		return Map{Key: key, Value: val}, nil
	case "struct":
		return p.parseStruct()
	}
	if err := p.skipLengthArgs(); err != nil {
		return nil, err
	}
	return NewPrimitive(name), nil
}

func (p *parser) parseStruct() (Type, error) {
	if err := p.expect('<'); err != nil {
		return nil, err
	}
	var fields []Field
	seen := make(map[string]struct{})
	for {
		name := p.ident()
		if name == "" {
			return nil, p.errorf("expected field name")
		}
		if _, dup := seen[name]; dup {
			return nil, p.errorf("duplicate struct field %q", name)
		}
		seen[name] = struct{}{}
		if err := p.expect(':'); err != nil {
			return nil, err
		}
		t, err := p.parseType()
		if err != nil {
			return nil, err
		}
		fields = append(fields, Field{Name: name, Type: t})
		p.skipSpace()
		if p.peek() == ',' {
			p.pos++
			continue
		}
		if err := p.expect('>'); err != nil {
			return nil, err
		}
		return Nested{Fields: fields}, nil
	}
}

// skipLengthArgs 跳过 decimal(10,2) / varchar(64) 之类的长度参数
func (p *parser) skipLengthArgs() error {
	p.skipSpace()
	if p.peek() != '(' {
		return nil
	}
	p.pos++
	for !p.eof() {
		ch := p.input[p.pos]
		switch {
		case ch == ')':
			p.pos++
			return nil
		case ch >= '0' && ch <= '9', ch == ',', ch == ' ':
			p.pos++
		default:
			return p.errorf("invalid length argument %q", ch)
		}
	}
	return p.errorf("unclosed length argument")
}
