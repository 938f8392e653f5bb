package paramtype

import (
	"errors"
	"strings"
)

// ErrInvalidType 类型字符串无法解析
var ErrInvalidType = errors.New("invalid parameter type")

// Kind 参数类型分类
type Kind int

const (
	KindPrimitive Kind = iota
	KindArray
	KindMap
	KindNested
)

func (k Kind) String() string {
	switch k {
	case KindPrimitive:
		return "primitive"
	case KindArray:
		return "array"
	case KindMap:
		return "map"
	case KindNested:
		return "nested"
	}
	return "unknown"
}

// 基础类型名称（均为小写规范形式）
const (
	String   = "string"
	Int      = "int"
	Bigint   = "bigint"
	Float    = "float"
	Double   = "double"
	Boolean  = "boolean"
	Date     = "date"
	Datetime = "datetime"
)

var knownBases = map[string]string{
	"string":    String,
	"varchar":   String,
	"text":      String,
	"int":       Int,
	"integer":   Int,
	"bigint":    Bigint,
	"long":      Bigint,
	"float":     Float,
	"double":    Double,
	"boolean":   Boolean,
	"bool":      Boolean,
	"date":      Date,
	"datetime":  Datetime,
	"timestamp": Datetime,
}

// Type 参数类型：Primitive / Array / Map / Nested 之一
type Type interface {
	Kind() Kind
	// String 规范化文本形式，可被 Parse 还原，指纹计算依赖它
	String() string
	isType()
}

// Primitive 基础类型
type Primitive struct {
	Base string
}

// Array 数组类型
type Array struct {
	Elem Type
}

// Map 键值类型
type Map struct {
	Key   Type
	Value Type
}

// Field 嵌套结构中的一个字段
type Field struct {
	Name string
	Type Type
}

// Nested 嵌套结构，字段保持声明顺序
type Nested struct {
	Fields []Field
}

func (Primitive) Kind() Kind { return KindPrimitive }
func (Array) Kind() Kind     { return KindArray }
func (Map) Kind() Kind       { return KindMap }
func (Nested) Kind() Kind    { return KindNested }

func (Primitive) isType() {}
func (Array) isType()     {}
func (Map) isType()       {}
func (Nested) isType()    {}

func (p Primitive) String() string {
	if p.Base == "" {
		return String
	}
	return p.Base
}

func (a Array) String() string {
	return "array<" + typeString(a.Elem) + ">"
}

func (m Map) String() string {
	return "map<" + typeString(m.Key) + "," + typeString(m.Value) + ">"
}

func (n Nested) String() string {
	var b strings.Builder
	b.WriteString("struct<")
	for i, f := range n.Fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(f.Name)
		b.WriteByte(':')
		b.WriteString(typeString(f.Type))
	}
	b.WriteByte('>')
	return b.String()
}

func typeString(t Type) string {
	if t == nil {
		return String
	}
	return t.String()
}

// NewPrimitive 按名称构造基础类型，未知名称退化为 string
func NewPrimitive(name string) Primitive {
	if base, ok := knownBases[strings.ToLower(strings.TrimSpace(name))]; ok {
		return Primitive{Base: base}
	}
	return Primitive{Base: String}
}

// StringType 默认类型
func StringType() Type { return Primitive{Base: String} }

// Equal 结构相等
func Equal(a, b Type) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch av := a.(type) {
	case Primitive:
		return av.String() == b.(Primitive).String()
	case Array:
		return Equal(av.Elem, b.(Array).Elem)
	case Map:
		bm := b.(Map)
		return Equal(av.Key, bm.Key) && Equal(av.Value, bm.Value)
	case Nested:
		bn := b.(Nested)
		if len(av.Fields) != len(bn.Fields) {
			return false
		}
		for i := range av.Fields {
			if av.Fields[i].Name != bn.Fields[i].Name || !Equal(av.Fields[i].Type, bn.Fields[i].Type) {
				return false
			}
		}
		return true
	}
	return false
}
