package hql

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strings"

	"HQLPreview/internal/hql/paramtype"

	"github.com/spf13/cast"
)

// 支持的操作符
var comparisonOps = map[string]struct{}{
	"=": {}, "!=": {}, "<": {}, "<=": {}, ">": {}, ">=": {}, "LIKE": {},
}

// predicateScope 条件字段解析的上下文
type predicateScope struct {
	sc       *scope
	selected map[string]string // 小写输出列名 -> 表达式
	// others join 中的其他事件，参数按所属事件限定
	others []*scope
	// fallback 其他分支定义而本分支缺失的参数（UNION），从本分支参数列提取
	fallback []Parameter
}

func newPredicateScope(sc *scope, frags []fragment) *predicateScope {
	selected := make(map[string]string, len(frags))
	for _, f := range frags {
		selected[strings.ToLower(f.name)] = f.expr
	}
	return &predicateScope{sc: sc, selected: selected}
}

// resolve 字段解析顺序：限定名原样 > 已选字段别名 > 基础字段 > 事件参数 > <alias>.<field>
func (e *emitter) resolve(ps *predicateScope, field string) string {
	if qualifiedRe.MatchString(field) {
		return field
	}
	if expr, ok := ps.selected[strings.ToLower(field)]; ok {
		return expr
	}
	sc := ps.sc
	if e.cfg.isBaseColumn(field) {
		return sc.qualify(field)
	}
	if p, ok := sc.findParam(field, ""); ok {
		return paramtype.ParamExpr(p.Type, sc.qualify(e.cfg.ParamsColumn), p.path()).SQL
	}
	for _, other := range ps.others {
		if p, ok := other.findParam(field, ""); ok {
			return paramtype.ParamExpr(p.Type, other.qualify(e.cfg.ParamsColumn), p.path()).SQL
		}
	}
	for _, p := range ps.fallback {
		if p.Name == field {
			return paramtype.ParamExpr(p.Type, sc.qualify(e.cfg.ParamsColumn), p.path()).SQL
		}
	}
	return sc.qualify(field)
}

// emitConditions 按顺序生成用户条件及其连接符，不做优先级分组，拼接见 whereClause
func (e *emitter) emitConditions(ps *predicateScope, conds []WhereCondition) (preds []string, ops []string, err error) {
	for i, c := range conds {
		pred, err := e.emitCondition(i, e.resolve(ps, c.Field), c)
		if err != nil {
			return nil, nil, err
		}
		op := c.LogicalOp
		if op == "" {
			op = "AND"
		}
		preds = append(preds, pred)
		ops = append(ops, op)
	}
	return preds, ops, nil
}

func (e *emitter) emitCondition(idx int, field string, c WhereCondition) (string, error) {
	path := fmt.Sprintf("where_conditions[%d].value", idx)
	op := c.Operator
	switch op {
	case "IS NULL", "IS NOT NULL":
		return field + " " + op, nil
	case "IN", "NOT IN":
		items, ok := listValues(c.Value)
		if !ok || len(items) == 0 {
			return "", invalidRequest(path, "%s requires a non-empty list", op)
		}
		lits := make([]string, 0, len(items))
		for _, item := range items {
			lit, err := renderLiteral(path, item)
			if err != nil {
				return "", err
			}
			lits = append(lits, lit)
		}
		return fmt.Sprintf("%s %s (%s)", field, op, strings.Join(lits, ", ")), nil
	case "BETWEEN":
		items, ok := listValues(c.Value)
		if !ok || len(items) != 2 {
			return "", invalidRequest(path, "BETWEEN requires [lo, hi]")
		}
		lo, err := renderLiteral(path, items[0])
		if err != nil {
			return "", err
		}
		hi, err := renderLiteral(path, items[1])
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s BETWEEN %s AND %s", field, lo, hi), nil
	}
	if _, ok := comparisonOps[op]; !ok {
		return "", fmt.Errorf("%w: %q at where_conditions[%d].operator", ErrUnsupportedOperator, c.Operator, idx)
	}
	lit, err := renderLiteral(path, c.Value)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s %s %s", field, op, lit), nil
}

// listValues IN / BETWEEN 的取值列表，兼容 []string 等具体类型的切片
func listValues(v any) ([]any, bool) {
	if items, err := cast.ToSliceE(v); err == nil {
		return items, true
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items, true
}

// renderLiteral 字符串加单引号（内部单引号双写），数值原样，布尔为 TRUE/FALSE，空值为 NULL
func renderLiteral(path string, v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "NULL", nil
	case string:
		return QuoteString(x), nil
	case bool:
		if x {
			return "TRUE", nil
		}
		return "FALSE", nil
	case json.Number:
		if _, err := x.Float64(); err != nil {
			return "", invalidRequest(path, "invalid number %q", x.String())
		}
		return x.String(), nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return cast.ToStringE(x)
	case float32, float64:
		f, err := cast.ToFloat64E(x)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return "", invalidRequest(path, "invalid number %v", x)
		}
		return cast.ToStringE(x)
	}
	return "", invalidRequest(path, "unsupported literal type %T", v)
}

// QuoteString HQL 字符串字面量
func QuoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// whereClause 拼接 WHERE：分区与事件过滤在前，用户条件在后；用户条件含 OR 时整体加括号
func whereClause(fixed []string, preds, ops []string) string {
	var parts []string
	parts = append(parts, fixed...)
	if len(preds) > 0 {
		hasOr := false
		for _, op := range ops[1:] {
			if op == "OR" {
				hasOr = true
				break
			}
		}
		if hasOr {
			var b strings.Builder
			b.WriteByte('(')
			for i, p := range preds {
				if i > 0 {
					b.WriteString(" " + ops[i] + " ")
				}
				b.WriteString(p)
			}
			b.WriteByte(')')
			parts = append(parts, b.String())
		} else {
			parts = append(parts, preds...)
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(parts, "\n  AND ")
}

// partitionPredicate <alias>.ds = '<var>'
func (e *emitter) partitionPredicate(sc *scope, partitionVar string) string {
	return sc.qualify("ds") + " = " + QuoteString(partitionVar)
}

// eventPredicate all_view 按事件名过滤，未配置事件列时为空
func (e *emitter) eventPredicate(sc *scope) string {
	if e.cfg.EventColumn == "" {
		return ""
	}
	return sc.qualify(e.cfg.EventColumn) + " = " + QuoteString(sc.event.Name)
}

// scopeFilters 单个事件的分区与事件过滤
func (e *emitter) scopeFilters(sc *scope, partitionVar string) []string {
	out := []string{e.partitionPredicate(sc, partitionVar)}
	if ev := e.eventPredicate(sc); ev != "" {
		out = append(out, ev)
	}
	return out
}
