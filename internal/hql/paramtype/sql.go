package paramtype

import (
	"fmt"
	"strings"
)

var castTargets = map[string]string{
	Int:     "INT",
	Bigint:  "BIGINT",
	Float:   "FLOAT",
	Double:  "DOUBLE",
	Boolean: "BOOLEAN",
}

// NeedsCast get_json_object 返回字符串，数值与布尔类型需要显式 CAST
func NeedsCast(t Type) bool {
	_, ok := CastTarget(t)
	return ok
}

// CastTarget 返回 HQL 中的 CAST 目标类型
func CastTarget(t Type) (string, bool) {
	p, ok := t.(Primitive)
	if !ok {
		return "", false
	}
	target, ok := castTargets[p.String()]
	return target, ok
}

// Explodable 数组与 map 可以通过 LATERAL VIEW 展开
func Explodable(t Type) bool {
	if t == nil {
		return false
	}
	k := t.Kind()
	return k == KindArray || k == KindMap
}

// Expr 参数字段的取值表达式
type Expr struct {
	SQL        string // 最终表达式（可能带 CAST）
	Raw        string // 未转换的 get_json_object 调用
	Explodable bool
}

// JSONExtract 生成 get_json_object(<column>, '<path>')
func JSONExtract(column, path string) string {
	return fmt.Sprintf("get_json_object(%s, '%s')", column, strings.ReplaceAll(path, "'", "''"))
}

// Cast 包装 CAST(expr AS T)，不需要转换时原样返回
func Cast(expr string, t Type) string {
	if target, ok := CastTarget(t); ok {
		return fmt.Sprintf("CAST(%s AS %s)", expr, target)
	}
	return expr
}

// ParamExpr 按类型生成参数取值表达式。数组、map 与嵌套结构返回 JSON 文本。
func ParamExpr(t Type, column, path string) Expr {
	raw := JSONExtract(column, path)
	if t == nil {
		t = StringType()
	}
	return Expr{
		SQL:        Cast(raw, t),
		Raw:        raw,
		Explodable: Explodable(t),
	}
}

// Explosion 一个 LATERAL VIEW 展开
type Explosion struct {
	Clause string // LATERAL VIEW OUTER explode(...) lv_x AS ...
	Select string // 展开后在 SELECT 中引用的表达式
}

// Explode 为数组或 map 参数生成 LATERAL VIEW；map 取 value 列，key 列通过 <name>_key 引用
func Explode(t Type, raw, name string) (Explosion, bool) {
	view := "lv_" + name
	switch v := t.(type) {
	case Array:
		col := name + "_item"
		return Explosion{
			Clause: fmt.Sprintf(`LATERAL VIEW OUTER explode(split(regexp_replace(%s, '^\\[|\\]$|"', ''), ',')) %s AS %s`, raw, view, col),
			Select: Cast(view+"."+col, v.Elem),
		}, true
	case Map:
		key, val := name+"_key", name+"_value"
		return Explosion{
			Clause: fmt.Sprintf(`LATERAL VIEW OUTER explode(str_to_map(regexp_replace(%s, '^\\{|\\}$|"', ''), ',', ':')) %s AS %s, %s`, raw, view, key, val),
			Select: Cast(view+"."+val, v.Value),
		}, true
	}
	return Explosion{}, false
}
