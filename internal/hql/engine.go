package hql

import (
	"context"
	"fmt"
	"time"

	"HQLPreview/internal/hql/cache"
	"HQLPreview/internal/hql/inspect"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// Result 一次生成的结果
type Result struct {
	HQL              string                    `json:"hql"`
	Fingerprint      string                    `json:"fingerprint"`
	Cached           bool                      `json:"cached"`
	GenerationTimeMs float64                   `json:"generation_time_ms"`
	Performance      *inspect.Performance      `json:"performance,omitempty"`
	Validation       *inspect.ValidationResult `json:"validation,omitempty"`
	Warnings         []string                  `json:"warnings,omitempty"`
}

// Generation 缓存中保存的生成结果
type Generation struct {
	HQL              string                    `json:"hql"`
	Performance      *inspect.Performance      `json:"performance,omitempty"`
	Validation       *inspect.ValidationResult `json:"validation,omitempty"`
	Request          *Request                  `json:"request"`
	GenerationTimeMs float64                   `json:"generation_time_ms"`
}

// Engine HQL 生成引擎，缓存归引擎实例所有，可并发调用
type Engine struct {
	repo   Repository
	cfg    GeneratorConfig
	cache  *cache.LRU[Generation]
	flight singleflight.Group
	logger logrus.FieldLogger
	clock  func() time.Time
}

// NewEngine 创建引擎
func NewEngine(repo Repository, cfg GeneratorConfig, logger logrus.FieldLogger) *Engine {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Engine{
		repo:   repo,
		cfg:    cfg,
		cache:  cache.New[Generation](cfg.CacheCapacity),
		logger: logger.WithField("component", "hql_engine"),
		clock:  time.Now,
	}
}

// Config 生效中的配置
func (e *Engine) Config() GeneratorConfig { return e.cfg }

// ParseRequest 按引擎配置解析 JSON 请求
func (e *Engine) ParseRequest(raw []byte) (*Request, error) {
	return ParseRequest(raw, ParseOptions{AllowLegacyFieldNames: e.cfg.AllowLegacyFieldNames})
}

// prepare 复制、校验并补齐默认值，返回规范化请求及其指纹
func (e *Engine) prepare(req *Request) (*Request, string, error) {
	if req == nil {
		return nil, "", invalidRequest("", "request is empty")
	}
	r := req.Clone()
	if err := r.Validate(); err != nil {
		return nil, "", err
	}
	r.applyDefaults(e.cfg)
	fp, err := fingerprintOf(r)
	if err != nil {
		return nil, "", err
	}
	return r, fp, nil
}

// Fingerprint 请求指纹
func (e *Engine) Fingerprint(req *Request) (string, error) {
	_, fp, err := e.prepare(req)
	return fp, err
}

// Generate 生成 HQL，相同指纹的请求直接命中缓存
func (e *Engine) Generate(ctx context.Context, req *Request) (*Result, error) {
	start := e.clock()
	r, fp, err := e.prepare(req)
	if err != nil {
		return nil, err
	}
	log := e.logger.WithFields(logrus.Fields{"fingerprint": shortFingerprint(fp), "mode": r.Mode})
	if len(r.Warnings) > 0 {
		log.WithField("warnings", r.Warnings).Warn("request uses deprecated keys")
	}

	if entry, ok := e.cache.Get(fp); ok {
		log.WithField("hit_count", entry.HitCount).Debug("hql cache hit")
		return e.result(fp, entry.Value, true, msSince(e.clock, start), r.Warnings), nil
	}

	v, err, shared := e.flight.Do(fp, func() (any, error) {
		gen, err := e.generate(ctx, r)
		if err != nil {
			return nil, err
		}
		e.cache.Put(fp, *gen)
		return gen, nil
	})
	if err != nil {
		if IsUserError(err) {
			log.WithError(err).Warn("hql generation rejected")
		} else {
			log.WithError(err).Error("hql generation failed")
		}
		return nil, err
	}
	gen := v.(*Generation)
	elapsed := gen.GenerationTimeMs
	if shared {
		elapsed = msSince(e.clock, start)
	}
	log.WithFields(logrus.Fields{"fields": len(r.Fields), "elapsed_ms": elapsed}).Info("hql generated")
	return e.result(fp, *gen, shared, elapsed, r.Warnings), nil
}

func (e *Engine) result(fp string, gen Generation, cached bool, elapsed float64, warnings []string) *Result {
	return &Result{
		HQL:              gen.HQL,
		Fingerprint:      fp,
		Cached:           cached,
		GenerationTimeMs: elapsed,
		Performance:      gen.Performance,
		Validation:       gen.Validation,
		Warnings:         warnings,
	}
}

// generate 未命中缓存时的完整生成流程
func (e *Engine) generate(ctx context.Context, r *Request) (*Generation, error) {
	start := e.clock()
	if len(r.Fields) == 0 {
		return nil, ErrEmptyFieldList
	}
	scopes, err := e.resolveScopes(ctx, r)
	if err != nil {
		return nil, err
	}
	em := &emitter{cfg: e.cfg}
	hql, err := em.compose(r, scopes)
	if err != nil {
		return nil, err
	}
	gen := &Generation{HQL: hql, Request: r}
	if r.Options.IncludePerformance {
		e.inspect(gen, len(r.Fields))
	}
	gen.GenerationTimeMs = msSince(e.clock, start)
	return gen, nil
}

// inspect 校验并评估生成结果；生成的语句不应出现语法错误，出现时只记录日志
func (e *Engine) inspect(gen *Generation, fieldCount int) {
	v := inspect.Validate(gen.HQL)
	if !v.IsValid {
		e.logger.WithField("errors", v.SyntaxErrors).Error("generated hql failed validation")
	}
	p := inspect.AnalyzeWithFieldCount(gen.HQL, fieldCount)
	gen.Validation, gen.Performance = &v, &p
}

// resolveScopes 读取事件元数据并分配别名：单事件为 e，多事件为 e1..eN
func (e *Engine) resolveScopes(ctx context.Context, r *Request) ([]*scope, error) {
	games := make(map[int64]*Game)
	scopes := make([]*scope, 0, len(r.Events))
	for i, ref := range r.Events {
		path := fmt.Sprintf("events[%d]", i)
		game, ok := games[ref.GameGID]
		if !ok {
			g, err := e.repo.GetGame(ctx, ref.GameGID)
			if err != nil {
				return nil, fmt.Errorf("%w: get game %d: %w", ErrRepository, ref.GameGID, err)
			}
			if g == nil {
				return nil, fmt.Errorf("%w: %s: game %d", ErrEventNotFound, path, ref.GameGID)
			}
			games[ref.GameGID], game = g, g
		}
		ev, err := e.repo.GetEvent(ctx, ref.EventID)
		if err != nil {
			return nil, fmt.Errorf("%w: get event %d: %w", ErrRepository, ref.EventID, err)
		}
		if ev == nil || ev.GameGID != ref.GameGID {
			return nil, fmt.Errorf("%w: %s: event %d of game %d", ErrEventNotFound, path, ref.EventID, ref.GameGID)
		}
		params, err := e.repo.ListParameters(ctx, ev.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: list parameters of event %d: %w", ErrRepository, ev.ID, err)
		}
		active := make([]Parameter, 0, len(params))
		for _, p := range params {
			if p.Active {
				active = append(active, p)
			}
		}
		alias := "e"
		if r.Mode != ModeSingle {
			alias = fmt.Sprintf("e%d", i+1)
		}
		scopes = append(scopes, &scope{alias: alias, game: game, event: ev, params: active})
	}
	return scopes, nil
}

// Validate 校验任意 HQL 文本
func (e *Engine) Validate(hql string) inspect.ValidationResult {
	return inspect.Validate(hql)
}

// Analyze 评估任意 HQL 文本，req 不为空时记录字段数
func (e *Engine) Analyze(hql string, req *Request) inspect.Performance {
	if req != nil {
		return inspect.AnalyzeWithFieldCount(hql, len(req.Fields))
	}
	return inspect.Analyze(hql)
}

// CacheStats 缓存统计
func (e *Engine) CacheStats() cache.Stats {
	return e.cache.Stats()
}

// ClearCache 清空缓存
func (e *Engine) ClearCache() {
	e.cache.Clear()
	e.logger.Info("hql cache cleared")
}

// Lookup 按指纹读取缓存，不计入命中统计
func (e *Engine) Lookup(fingerprint string) (Generation, bool) {
	entry, ok := e.cache.Peek(fingerprint)
	return entry.Value, ok
}

func msSince(clock func() time.Time, start time.Time) float64 {
	return float64(clock().Sub(start)) / float64(time.Millisecond)
}

func shortFingerprint(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
