package hql

import (
	"context"
	"encoding/json"
	"strings"

	"HQLPreview/internal/hql/cache"
)

// Outcome 增量生成的结果类型
type Outcome string

const (
	OutcomeCacheHit Outcome = "CACHE_HIT"
	OutcomePatched  Outcome = "PATCHED"
	OutcomeFull     Outcome = "FULL"
)

// Diff 两次请求的差异
type Diff struct {
	AddedFields    []string `json:"added_fields"`
	RemovedFields  []string `json:"removed_fields"`
	ChangedWhere   bool     `json:"changed_where"`
	ChangedEvents  bool     `json:"changed_events"`
	ChangedMode    bool     `json:"changed_mode"`
	ChangedOptions bool     `json:"changed_options"`
}

func (d *Diff) fieldsOnly() bool {
	return !d.ChangedWhere && !d.ChangedEvents && !d.ChangedMode && !d.ChangedOptions
}

// IncrementalInput 增量生成输入，PreviousRequest 为空时从缓存按 HQL 文本还原
type IncrementalInput struct {
	Request         *Request
	PreviousHQL     string
	PreviousRequest *Request
}

// IncrementalResult 增量生成结果
type IncrementalResult struct {
	Result
	Incremental     bool    `json:"incremental"`
	Outcome         Outcome `json:"outcome"`
	Diff            *Diff   `json:"diff,omitempty"`
	PerformanceGain float64 `json:"performance_gain"`
}

// GenerateIncremental 基于上一次的 HQL 生成新语句。只增或只删字段时直接修改 SELECT 列表，
// 其余情况全量生成；补丁失败时静默回退到全量生成。
func (e *Engine) GenerateIncremental(ctx context.Context, in IncrementalInput) (*IncrementalResult, error) {
	start := e.clock()
	if !e.cfg.EnableIncremental || strings.TrimSpace(in.PreviousHQL) == "" {
		return e.fullIncremental(ctx, in.Request, nil, 0)
	}

	cur, fp, err := e.prepare(in.Request)
	if err != nil {
		return nil, err
	}
	log := e.logger.WithField("fingerprint", shortFingerprint(fp))

	prev, prevTime := e.previousRequest(ctx, in)
	if prev == nil {
		log.Debug("previous request unknown, regenerating")
		res, err := e.fullIncremental(ctx, in.Request, nil, 0)
		if err != nil {
			return nil, err
		}
		res.Diff = diffFromHQL(in.PreviousHQL, res.HQL)
		return res, nil
	}

	prevFP, err := fingerprintOf(prev)
	if err != nil {
		return nil, err
	}
	if prevFP == fp {
		res := Result{
			HQL:         in.PreviousHQL,
			Fingerprint: fp,
			Cached:      true,
			Warnings:    cur.Warnings,
		}
		if gen, ok := e.Lookup(fp); ok {
			res.Performance, res.Validation = gen.Performance, gen.Validation
		}
		res.GenerationTimeMs = msSince(e.clock, start)
		return &IncrementalResult{
			Result:          res,
			Incremental:     true,
			Outcome:         OutcomeCacheHit,
			Diff:            &Diff{AddedFields: []string{}, RemovedFields: []string{}},
			PerformanceGain: gain(prevTime, res.GenerationTimeMs),
		}, nil
	}

	diff := diffRequests(prev, cur)
	if patchable(diff, prev, cur) {
		if hql, ok := e.patch(ctx, in.PreviousHQL, prev, cur); ok {
			gen := Generation{HQL: hql, Request: cur}
			if cur.Options.IncludePerformance {
				e.inspect(&gen, len(cur.Fields))
			}
			gen.GenerationTimeMs = msSince(e.clock, start)
			e.cache.Put(fp, gen)
			log.WithFields(map[string]any{"added": diff.AddedFields, "removed": diff.RemovedFields}).Info("hql patched")
			res := e.result(fp, gen, false, gen.GenerationTimeMs, cur.Warnings)
			return &IncrementalResult{
				Result:          *res,
				Incremental:     true,
				Outcome:         OutcomePatched,
				Diff:            diff,
				PerformanceGain: gain(prevTime, gen.GenerationTimeMs),
			}, nil
		}
		log.Debug("patch failed, regenerating")
	}
	return e.fullIncremental(ctx, in.Request, diff, prevTime)
}

func (e *Engine) fullIncremental(ctx context.Context, req *Request, diff *Diff, prevTime float64) (*IncrementalResult, error) {
	res, err := e.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	return &IncrementalResult{
		Result:          *res,
		Outcome:         OutcomeFull,
		Diff:            diff,
		PerformanceGain: gain(prevTime, res.GenerationTimeMs),
	}, nil
}

// previousRequest 还原上一次的规范化请求及其生成耗时。
// 调用方给出的请求只有在引擎对它的输出与 PreviousHQL 完全一致时才采用，
// 否则按 HQL 文本在缓存中查找。
func (e *Engine) previousRequest(ctx context.Context, in IncrementalInput) (*Request, float64) {
	if in.PreviousRequest != nil {
		if prev, prevTime, ok := e.verifiedPrevious(ctx, in.PreviousRequest, in.PreviousHQL); ok {
			return prev, prevTime
		}
		e.logger.Debug("previous_hql does not match previous_request, ignoring previous_request")
	}
	var found *Generation
	e.cache.Range(func(entry cache.Entry[Generation]) bool {
		if entry.Value.HQL == in.PreviousHQL && entry.Value.Request != nil {
			v := entry.Value
			found = &v
			return false
		}
		return true
	})
	if found == nil {
		return nil, 0
	}
	return found.Request.Clone(), found.GenerationTimeMs
}

func (e *Engine) verifiedPrevious(ctx context.Context, req *Request, prevHQL string) (*Request, float64, bool) {
	prev, fp, err := e.prepare(req)
	if err != nil {
		return nil, 0, false
	}
	if gen, ok := e.Lookup(fp); ok {
		return prev, gen.GenerationTimeMs, gen.HQL == prevHQL
	}
	gen, err := e.generate(ctx, prev)
	if err != nil {
		return nil, 0, false
	}
	e.cache.Put(fp, *gen)
	return prev, gen.GenerationTimeMs, gen.HQL == prevHQL
}

func gain(prevMs, newMs float64) float64 {
	if prevMs <= 0 || newMs <= 0 {
		return 1.0
	}
	return prevMs / newMs
}

func outputName(f FieldRef) string {
	if f.Alias != "" {
		return f.Alias
	}
	return f.FieldName
}

func fieldKey(f FieldRef) string {
	b, _ := json.Marshal(f)
	return string(b)
}

func sameJSON(a, b any) bool {
	ab, errA := json.Marshal(a)
	bb, errB := json.Marshal(b)
	return errA == nil && errB == nil && string(ab) == string(bb)
}

// diffRequests 字段按完整定义比较，修改过的字段同时出现在新增与删除中
func diffRequests(prev, cur *Request) *Diff {
	d := &Diff{
		AddedFields:    []string{},
		RemovedFields:  []string{},
		ChangedWhere:   !sameJSON(prev.WhereConditions, cur.WhereConditions),
		ChangedEvents:  !sameJSON(prev.Events, cur.Events),
		ChangedMode:    prev.Mode != cur.Mode,
		ChangedOptions: !sameJSON(prev.Options, cur.Options),
	}
	prevKeys := make(map[string]int)
	for _, f := range prev.Fields {
		prevKeys[fieldKey(f)]++
	}
	curKeys := make(map[string]int)
	for _, f := range cur.Fields {
		curKeys[fieldKey(f)]++
	}
	for _, f := range cur.Fields {
		k := fieldKey(f)
		if prevKeys[k] > 0 {
			prevKeys[k]--
			continue
		}
		d.AddedFields = append(d.AddedFields, outputName(f))
	}
	for _, f := range prev.Fields {
		k := fieldKey(f)
		if curKeys[k] > 0 {
			curKeys[k]--
			continue
		}
		d.RemovedFields = append(d.RemovedFields, outputName(f))
	}
	return d
}

// patchable 仅字段变化、单纯增加或单纯删除、原有顺序不变、不涉及 LATERAL VIEW，
// 且 WHERE 未引用变化的字段
func patchable(d *Diff, prev, cur *Request) bool {
	if cur.Mode != ModeSingle && cur.Mode != ModeJoin {
		return false
	}
	if !d.fieldsOnly() {
		return false
	}
	added, removed := len(d.AddedFields) > 0, len(d.RemovedFields) > 0
	if added == removed {
		return false
	}
	short, long := prev.Fields, cur.Fields
	if removed {
		short, long = cur.Fields, prev.Fields
	}
	if !isSubsequence(short, long) {
		return false
	}
	changed := make(map[string]struct{})
	for _, name := range append(append([]string{}, d.AddedFields...), d.RemovedFields...) {
		changed[strings.ToLower(name)] = struct{}{}
	}
	for _, f := range long {
		if _, ok := changed[strings.ToLower(outputName(f))]; ok && f.Explode {
			return false
		}
	}
	for _, c := range cur.WhereConditions {
		if _, ok := changed[strings.ToLower(c.Field)]; ok {
			return false
		}
	}
	return true
}

func isSubsequence(short, long []FieldRef) bool {
	i := 0
	for _, f := range long {
		if i < len(short) && fieldKey(short[i]) == fieldKey(f) {
			i++
		}
	}
	return i == len(short)
}

// selectListBounds 返回 "SELECT\n" 与 "\nFROM " 之间的区间
func selectListBounds(hql string) (int, int, bool) {
	idx := strings.Index(hql, "SELECT\n")
	if idx < 0 || idx > 0 && hql[idx-1] != '\n' {
		return 0, 0, false
	}
	start := idx + len("SELECT\n")
	end := strings.Index(hql[start:], "\nFROM ")
	if end < 0 {
		return 0, 0, false
	}
	return start, start + end, true
}

// patch 用新请求的 SELECT 列表替换旧语句中的列表，其余部分保持不变
func (e *Engine) patch(ctx context.Context, prevHQL string, prev, cur *Request) (string, bool) {
	start, end, ok := selectListBounds(prevHQL)
	if !ok {
		return "", false
	}
	if lines := strings.Split(prevHQL[start:end], "\n"); len(lines) != len(prev.Fields) {
		return "", false
	}
	scopes, err := e.resolveScopes(ctx, cur)
	if err != nil {
		return "", false
	}
	em := &emitter{cfg: e.cfg}
	frags, err := em.selectFragments(cur, scopes)
	if err != nil {
		return "", false
	}
	return prevHQL[:start] + renderSelectList(frags, cur.Options.IncludeComments) + prevHQL[end:], true
}

// diffFromHQL 无法还原上一次请求时，按两条语句的输出列名估算差异
func diffFromHQL(prevHQL, newHQL string) *Diff {
	prevNames, newNames := selectNames(prevHQL), selectNames(newHQL)
	d := &Diff{AddedFields: []string{}, RemovedFields: []string{}}
	prevSet := make(map[string]struct{}, len(prevNames))
	for _, n := range prevNames {
		prevSet[strings.ToLower(n)] = struct{}{}
	}
	newSet := make(map[string]struct{}, len(newNames))
	for _, n := range newNames {
		newSet[strings.ToLower(n)] = struct{}{}
		if _, ok := prevSet[strings.ToLower(n)]; !ok {
			d.AddedFields = append(d.AddedFields, n)
		}
	}
	for _, n := range prevNames {
		if _, ok := newSet[strings.ToLower(n)]; !ok {
			d.RemovedFields = append(d.RemovedFields, n)
		}
	}
	return d
}

// selectNames 从每行一个字段的 SELECT 列表中取输出列名
func selectNames(hql string) []string {
	start, end, ok := selectListBounds(hql)
	if !ok {
		return nil
	}
	var names []string
	for _, line := range strings.Split(hql[start:end], "\n") {
		if i := strings.Index(line, "  -- "); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSuffix(strings.TrimSpace(line), ",")
		if line == "" {
			continue
		}
		if i := strings.LastIndex(line, " AS "); i >= 0 {
			line = line[i+len(" AS "):]
		} else if i := strings.LastIndex(line, "."); i >= 0 {
			line = line[i+1:]
		}
		names = append(names, strings.TrimSpace(line))
	}
	return names
}
