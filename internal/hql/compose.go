package hql

import (
	"fmt"
	"strings"
)

// compose 按模式生成完整语句
func (e *emitter) compose(req *Request, scopes []*scope) (string, error) {
	if len(req.Fields) == 0 {
		return "", ErrEmptyFieldList
	}
	switch req.Mode {
	case ModeSingle:
		return e.single(req, scopes[0])
	case ModeJoin:
		return e.join(req, scopes)
	case ModeUnion:
		return e.union(req, scopes)
	}
	return "", invalidRequest("mode", "unknown mode %q", req.Mode)
}

// selectFragments single / join 模式下的 SELECT 列表，增量补丁复用
func (e *emitter) selectFragments(req *Request, scopes []*scope) ([]fragment, error) {
	if len(req.Fields) == 0 {
		return nil, ErrEmptyFieldList
	}
	var frags []fragment
	for i, ref := range req.Fields {
		sc := scopes[0]
		if req.Mode == ModeJoin {
			var err error
			if sc, err = assignScope(i, ref, scopes); err != nil {
				return nil, err
			}
		}
		frag, err := e.emitField(sc, i, ref)
		if err != nil {
			return nil, err
		}
		frags = append(frags, frag)
	}
	if err := checkAliases(frags); err != nil {
		return nil, err
	}
	return frags, nil
}

func writeHeader(b *strings.Builder, req *Request, viewName string) {
	if req.Options.SQLMode == SQLModeView {
		b.WriteString("CREATE OR REPLACE VIEW ")
		b.WriteString(viewName)
		b.WriteString(" AS\n")
	}
}

func (e *emitter) single(req *Request, sc *scope) (string, error) {
	frags, err := e.selectFragments(req, []*scope{sc})
	if err != nil {
		return "", err
	}
	preds, ops, err := e.emitConditions(newPredicateScope(sc, frags), req.WhereConditions)
	if err != nil {
		return "", err
	}

	view := req.Options.ViewNameOverride
	if view == "" {
		view = sc.event.TargetTable
	}
	if view == "" {
		view = TargetTableName(*sc.game, sc.event.Name)
	}

	var b strings.Builder
	writeHeader(&b, req, view)
	b.WriteString("SELECT\n")
	b.WriteString(renderSelectList(frags, req.Options.IncludeComments))
	b.WriteString("\nFROM ")
	b.WriteString(sc.sourceTable())
	b.WriteString(" AS ")
	b.WriteString(sc.alias)
	for _, lv := range lateralViews(frags) {
		b.WriteString("\n")
		b.WriteString(lv)
	}
	b.WriteString("\n")
	b.WriteString(whereClause(e.scopeFilters(sc, req.Options.PartitionVar), preds, ops))
	b.WriteString(";")
	return b.String(), nil
}

// assignScope join 模式下字段归属：显式 eventId > 基础/计算字段归第一个事件 >
// 参数归唯一定义它的事件；多个事件都有定义时报错，都没有时归第一个事件
func assignScope(idx int, ref FieldRef, scopes []*scope) (*scope, error) {
	if ref.EventID != 0 {
		for _, sc := range scopes {
			if sc.event.ID == ref.EventID {
				return sc, nil
			}
		}
		return nil, invalidRequest(fieldPathOf(idx, "eventId"), "event %d is not part of the request", ref.EventID)
	}
	if ref.FieldType != FieldParam {
		return scopes[0], nil
	}
	var hits []*scope
	for _, sc := range scopes {
		if _, ok := sc.findParam(ref.FieldName, ref.JSONPath); ok {
			hits = append(hits, sc)
		}
	}
	switch len(hits) {
	case 0:
		return scopes[0], nil
	case 1:
		return hits[0], nil
	}
	aliases := make([]string, 0, len(hits))
	for _, sc := range hits {
		aliases = append(aliases, sc.alias)
	}
	return nil, invalidRequest(fieldPathOf(idx, ""), "parameter %q is defined on %s, set eventId to choose one", ref.FieldName, strings.Join(aliases, ", "))
}

func (e *emitter) join(req *Request, scopes []*scope) (string, error) {
	jt, key := req.Options.JoinType, req.Options.JoinKey
	if !identifierRe.MatchString(key) || !e.cfg.isBaseColumn(key) {
		return "", invalidRequest("options.join_key", "%q is not a base column", key)
	}
	if (jt == JoinRight || jt == JoinFull) && len(scopes) != 2 {
		return "", invalidRequest("options.join_type", "%s JOIN supports exactly two events", jt)
	}

	frags, err := e.selectFragments(req, scopes)
	if err != nil {
		return "", err
	}
	laterals := make(map[*scope][]string)
	for i, ref := range req.Fields {
		if frags[i].lateral == "" {
			continue
		}
		sc, _ := assignScope(i, ref, scopes)
		if !containsString(laterals[sc], frags[i].lateral) {
			laterals[sc] = append(laterals[sc], frags[i].lateral)
		}
	}

	ps := newPredicateScope(scopes[0], frags)
	ps.others = scopes[1:]
	preds, ops, err := e.emitConditions(ps, req.WhereConditions)
	if err != nil {
		return "", err
	}

	pv := req.Options.PartitionVar
	first := scopes[0]
	var from strings.Builder
	from.WriteString("FROM ")
	from.WriteString(first.sourceTable())
	from.WriteString(" ")
	from.WriteString(first.alias)
	for _, lv := range laterals[first] {
		from.WriteString("\n" + lv)
	}
	for k, sc := range scopes[1:] {
		if k == 0 && len(laterals[first]) == 0 {
			from.WriteString(" ")
		} else {
			from.WriteString("\n")
		}
		from.WriteString(fmt.Sprintf("%s JOIN %s %s", jt, sc.sourceTable(), sc.alias))
		for _, lv := range laterals[sc] {
			from.WriteString("\n" + lv)
		}
		if len(laterals[sc]) > 0 {
			from.WriteString("\n")
		} else {
			from.WriteString(" ")
		}
		on := []string{
			fmt.Sprintf("%s = %s", first.qualify(key), sc.qualify(key)),
			fmt.Sprintf("%s = %s", first.qualify("ds"), sc.qualify("ds")),
		}
		switch jt {
		case JoinLeft:
			on = append(on, e.scopeFilters(sc, pv)...)
		case JoinRight:
			on = append(on, e.scopeFilters(first, pv)...)
		case JoinFull:
			for _, s := range []*scope{first, sc} {
				if ev := e.eventPredicate(s); ev != "" {
					on = append(on, ev)
				}
			}
		}
		from.WriteString("ON " + strings.Join(on, " AND "))
	}

	var fixed []string
	switch jt {
	case JoinLeft:
		fixed = e.scopeFilters(first, pv)
	case JoinRight:
		fixed = e.scopeFilters(scopes[1], pv)
	case JoinFull:
		second := scopes[1]
		fixed = append(fixed, fmt.Sprintf("(%s OR %s)", e.partitionPredicate(first, pv), e.partitionPredicate(second, pv)))
		for _, s := range scopes {
			if ev := e.eventPredicate(s); ev != "" {
				fixed = append(fixed, fmt.Sprintf("(%s OR %s IS NULL)", ev, s.qualify(e.cfg.EventColumn)))
			}
		}
	default:
		for _, s := range scopes {
			fixed = append(fixed, e.scopeFilters(s, pv)...)
		}
	}

	view := req.Options.ViewNameOverride
	if view == "" {
		events := make([]*Event, 0, len(scopes))
		for _, s := range scopes {
			events = append(events, s.event)
		}
		view = compositeViewName(*first.game, events, "join")
	}

	var b strings.Builder
	writeHeader(&b, req, view)
	b.WriteString("SELECT\n")
	b.WriteString(renderSelectList(frags, req.Options.IncludeComments))
	b.WriteString("\n")
	b.WriteString(from.String())
	b.WriteString("\n")
	b.WriteString(whereClause(fixed, preds, ops))
	b.WriteString(";")
	return b.String(), nil
}

// unionBranches 逐个事件解析同一组字段；某分支缺失而其他分支存在的参数输出 NULL，
// 各分支类型不一致时统一按 string 处理
func (e *emitter) unionBranches(req *Request, scopes []*scope) ([][]fragment, error) {
	branches := make([][]fragment, len(scopes))
	for i, ref := range req.Fields {
		if ref.FieldType != FieldParam {
			for k, sc := range scopes {
				frag, err := e.emitField(sc, i, ref)
				if err != nil {
					return nil, err
				}
				branches[k] = append(branches[k], frag)
			}
			continue
		}

		frags := make([]fragment, len(scopes))
		found := make([]bool, len(scopes))
		anyFound := false
		for k, sc := range scopes {
			frag, ok, err := e.emitParam(sc, i, ref)
			if err != nil {
				return nil, err
			}
			frags[k], found[k] = frag, ok
			anyFound = anyFound || ok
		}
		if anyFound && ref.CastType == "" && !ref.Explode && !sameTypes(frags, found) {
			widened := ref
			widened.CastType = "string"
			for k, sc := range scopes {
				if !found[k] {
					continue
				}
				frag, _, err := e.emitParam(sc, i, widened)
				if err != nil {
					return nil, err
				}
				frags[k] = frag
			}
		}
		for k := range scopes {
			if anyFound && !found[k] {
				frags[k] = nullFragment(frags[k].name)
			}
			branches[k] = append(branches[k], frags[k])
		}
	}
	for _, frags := range branches {
		if err := checkAliases(frags); err != nil {
			return nil, err
		}
	}
	return branches, nil
}

func sameTypes(frags []fragment, found []bool) bool {
	var first *fragment
	for k := range frags {
		if !found[k] {
			continue
		}
		if first == nil {
			first = &frags[k]
			continue
		}
		if first.typ == nil || frags[k].typ == nil || first.typ.String() != frags[k].typ.String() {
			return false
		}
	}
	return true
}

func (e *emitter) union(req *Request, scopes []*scope) (string, error) {
	branches, err := e.unionBranches(req, scopes)
	if err != nil {
		return "", err
	}

	view := req.Options.ViewNameOverride
	if view == "" {
		events := make([]*Event, 0, len(scopes))
		for _, s := range scopes {
			events = append(events, s.event)
		}
		view = compositeViewName(*scopes[0].game, events, "union")
	}

	var b strings.Builder
	writeHeader(&b, req, view)
	for k, sc := range scopes {
		if k > 0 {
			b.WriteString("\nUNION ALL\n")
		}
		ps := newPredicateScope(sc, branches[k])
		for j, other := range scopes {
			if j == k {
				continue
			}
			for _, p := range other.params {
				if _, ok := sc.findParam(p.Name, ""); !ok {
					ps.fallback = append(ps.fallback, p)
				}
			}
		}
		preds, ops, err := e.emitConditions(ps, req.WhereConditions)
		if err != nil {
			return "", err
		}
		b.WriteString("SELECT\n")
		b.WriteString(renderSelectList(branches[k], req.Options.IncludeComments))
		b.WriteString("\nFROM ")
		b.WriteString(sc.sourceTable())
		b.WriteString(" AS ")
		b.WriteString(sc.alias)
		for _, lv := range lateralViews(branches[k]) {
			b.WriteString("\n" + lv)
		}
		b.WriteString("\n")
		b.WriteString(whereClause(e.scopeFilters(sc, req.Options.PartitionVar), preds, ops))
	}
	b.WriteString(";")
	return b.String(), nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
