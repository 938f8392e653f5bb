package hql

import (
	"fmt"
	"regexp"
	"strings"

	"HQLPreview/internal/hql/paramtype"
)

var jsonPathRe = regexp.MustCompile(`^\$(\.[A-Za-z0-9_\-]+|\[[0-9]+\]|\[\*\])+$`)

// scope 一个事件在语句中的上下文
type scope struct {
	alias  string // e / e1 / e2 ...
	game   *Game
	event  *Event
	params []Parameter // 仅启用的参数
}

func (s *scope) qualify(col string) string {
	if s.alias == "" {
		return col
	}
	return s.alias + "." + col
}

func (s *scope) sourceTable() string {
	if s.event.SourceTable != "" {
		return s.event.SourceTable
	}
	return SourceTableName(*s.game)
}

// findParam 先按名称，再按 JSON 路径查找参数
func (s *scope) findParam(name, path string) (Parameter, bool) {
	for _, p := range s.params {
		if p.Name == name {
			return p, true
		}
	}
	if path != "" {
		for _, p := range s.params {
			if p.path() == path {
				return p, true
			}
		}
	}
	return Parameter{}, false
}

// fragment SELECT 列表中的一项
type fragment struct {
	expr    string
	name    string // 输出列名
	as      bool
	comment string
	lateral string
	typ     paramtype.Type
}

func (f fragment) render() string {
	if f.as {
		return f.expr + " AS " + f.name
	}
	return f.expr
}

// emitter 字段与条件的 SQL 片段生成
type emitter struct {
	cfg GeneratorConfig
}

func fieldPathOf(idx int, key string) string {
	if key == "" {
		return fmt.Sprintf("fields[%d]", idx)
	}
	return fmt.Sprintf("fields[%d].%s", idx, key)
}

// emitField 生成单个字段的 SELECT 片段
func (e *emitter) emitField(sc *scope, idx int, ref FieldRef) (fragment, error) {
	switch ref.FieldType {
	case FieldBase:
		if !identifierRe.MatchString(ref.FieldName) {
			return fragment{}, invalidRequest(fieldPathOf(idx, "fieldName"), "base field %q is not a column name", ref.FieldName)
		}
		if ref.Explode {
			return fragment{}, invalidRequest(fieldPathOf(idx, "explode"), "only array or map parameters can be exploded")
		}
		name := ref.Alias
		if name == "" {
			name = ref.FieldName
		}
		return fragment{
			expr:    sc.qualify(ref.FieldName),
			name:    name,
			as:      name != ref.FieldName,
			comment: firstNonEmpty(ref.Comment, baseColumnComments[strings.ToLower(ref.FieldName)]),
		}, nil
	case FieldParam:
		frag, _, err := e.emitParam(sc, idx, ref)
		return frag, err
	case FieldCalc:
		if ref.Alias == "" {
			return fragment{}, invalidRequest(fieldPathOf(idx, "alias"), "calc field requires an alias")
		}
		if ref.Explode {
			return fragment{}, invalidRequest(fieldPathOf(idx, "explode"), "only array or map parameters can be exploded")
		}
		return fragment{expr: ref.FieldName, name: ref.Alias, as: true, comment: ref.Comment}, nil
	}
	return fragment{}, invalidRequest(fieldPathOf(idx, "fieldType"), "unknown field type %q", ref.FieldType)
}

// paramType 参数字段的最终类型：castType 优先，其次参数定义，默认 string
func paramType(idx int, ref FieldRef, p Parameter, found bool) (paramtype.Type, error) {
	if ref.CastType != "" {
		t, err := paramtype.Parse(ref.CastType)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", fieldPathOf(idx, "castType"), err)
		}
		return t, nil
	}
	if found && p.Type != nil {
		return p.Type, nil
	}
	return paramtype.StringType(), nil
}

// resolveParamPath 请求路径优先，其次参数配置的路径，最后推导为 $.<fieldName>
func resolveParamPath(idx int, ref FieldRef, p Parameter, found bool) (string, error) {
	path := ref.JSONPath
	if path == "" {
		if found {
			path = p.path()
		} else {
			path = "$." + ref.FieldName
		}
	}
	if !jsonPathRe.MatchString(path) {
		return "", fmt.Errorf("%w: %s: %q must start with $. and use plain keys", ErrInvalidJSONPath, fieldPathOf(idx, "jsonPath"), path)
	}
	return path, nil
}

// emitParam 生成参数字段片段，found 表示参数在该事件上有定义
func (e *emitter) emitParam(sc *scope, idx int, ref FieldRef) (frag fragment, found bool, err error) {
	p, found := sc.findParam(ref.FieldName, ref.JSONPath)
	path, err := resolveParamPath(idx, ref, p, found)
	if err != nil {
		return fragment{}, false, err
	}
	typ, err := paramType(idx, ref, p, found)
	if err != nil {
		return fragment{}, false, err
	}
	name := ref.Alias
	if name == "" {
		name = ref.FieldName
	}
	if !identifierRe.MatchString(name) {
		return fragment{}, false, invalidRequest(fieldPathOf(idx, "alias"), "%q is not a valid column name, set an alias", name)
	}

	expr := paramtype.ParamExpr(typ, sc.qualify(e.cfg.ParamsColumn), path)
	frag = fragment{
		expr:    expr.SQL,
		name:    name,
		as:      true,
		comment: firstNonEmpty(ref.Comment, p.Description),
		typ:     typ,
	}
	if ref.Explode {
		x, ok := paramtype.Explode(typ, expr.Raw, name)
		if !ok {
			return fragment{}, false, invalidRequest(fieldPathOf(idx, "explode"), "only array or map parameters can be exploded, %q is %s", ref.FieldName, typ)
		}
		frag.expr = x.Select
		frag.lateral = x.Clause
	}
	return frag, found, nil
}

// nullFragment UNION 中在该分支无法解析的字段
func nullFragment(name string) fragment {
	return fragment{expr: "NULL", name: name, as: true}
}

// checkAliases 输出列名大小写不敏感唯一
func checkAliases(frags []fragment) error {
	seen := make(map[string]struct{}, len(frags))
	for _, f := range frags {
		key := strings.ToLower(f.name)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateAlias, f.name)
		}
		seen[key] = struct{}{}
	}
	return nil
}

// renderSelectList 每行一个字段，注释放在逗号之后
func renderSelectList(frags []fragment, includeComments bool) string {
	lines := make([]string, 0, len(frags))
	for i, f := range frags {
		var b strings.Builder
		b.WriteString("  ")
		b.WriteString(f.render())
		if i < len(frags)-1 {
			b.WriteByte(',')
		}
		if includeComments && f.comment != "" {
			b.WriteString("  -- ")
			b.WriteString(sanitizeComment(f.comment))
		}
		lines = append(lines, b.String())
	}
	return strings.Join(lines, "\n")
}

func sanitizeComment(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// lateralViews 去重并保持首次出现的顺序
func lateralViews(frags []fragment) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, f := range frags {
		if f.lateral == "" {
			continue
		}
		if _, ok := seen[f.lateral]; ok {
			continue
		}
		seen[f.lateral] = struct{}{}
		out = append(out, f.lateral)
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
