package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"HQLPreview/internal/hql"
	"HQLPreview/internal/hql/cache"
	"HQLPreview/internal/hql/inspect"
	"HQLPreview/internal/interfaces"
	"HQLPreview/internal/model"
	"HQLPreview/internal/repository"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

// HQLService 生成引擎外的一层：历史记录、跨实例共享与指标上报。
// metadata / history / shared / observer 均可为 nil。
type HQLService struct {
	engine   *hql.Engine
	metadata repository.MetadataRepository
	history  repository.HistoryRepository
	shared   interfaces.SharedHQLStore
	observer interfaces.GenerationObserver
	logger   *logrus.Logger
}

// NewHQLService 创建 HQLService
func NewHQLService(engine *hql.Engine, metadata repository.MetadataRepository, history repository.HistoryRepository, shared interfaces.SharedHQLStore, observer interfaces.GenerationObserver, logger *logrus.Logger) *HQLService {
	return &HQLService{
		engine:   engine,
		metadata: metadata,
		history:  history,
		shared:   shared,
		observer: observer,
		logger:   logger,
	}
}

// IncrementalPayload 增量生成请求中请求体之外的字段
type IncrementalPayload struct {
	PreviousHQL     string          `json:"previous_hql"`
	PreviousRequest json.RawMessage `json:"previous_request"`
}

// Generate 解析请求体并生成 HQL
func (s *HQLService) Generate(ctx context.Context, raw []byte) (*hql.Result, error) {
	start := time.Now()
	req, err := s.engine.ParseRequest(raw)
	if err != nil {
		s.observeError(err)
		return nil, err
	}
	res, err := s.engine.Generate(ctx, req)
	if err != nil {
		s.observeError(err)
		return nil, err
	}
	outcome := hql.OutcomeFull
	if res.Cached {
		outcome = hql.OutcomeCacheHit
	}
	s.afterGenerate(ctx, req, res, outcome, time.Since(start))
	return res, nil
}

// GenerateIncremental 请求体为 Request 加上 previous_hql / previous_request
func (s *HQLService) GenerateIncremental(ctx context.Context, raw []byte) (*hql.IncrementalResult, error) {
	start := time.Now()
	req, err := s.engine.ParseRequest(raw)
	if err != nil {
		s.observeError(err)
		return nil, err
	}
	var payload IncrementalPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: malformed json: %v", hql.ErrInvalidRequest, err)
	}
	in := hql.IncrementalInput{Request: req, PreviousHQL: payload.PreviousHQL}
	if len(payload.PreviousRequest) > 0 && string(payload.PreviousRequest) != "null" {
		// 上一次请求无法解析时按未提供处理，由引擎从缓存还原或全量生成
		prev, err := s.engine.ParseRequest(payload.PreviousRequest)
		if err != nil {
			s.logger.WithError(err).Warn("ignore invalid previous_request")
		} else {
			in.PreviousRequest = prev
		}
	}

	res, err := s.engine.GenerateIncremental(ctx, in)
	if err != nil {
		s.observeError(err)
		return nil, err
	}
	s.afterGenerate(ctx, req, &res.Result, res.Outcome, time.Since(start))
	return res, nil
}

func (s *HQLService) afterGenerate(ctx context.Context, req *hql.Request, res *hql.Result, outcome hql.Outcome, elapsed time.Duration) {
	if s.observer != nil {
		s.observer.ObserveGeneration(req.Mode, string(outcome), res.Cached, elapsed.Seconds())
		s.observer.SetCacheSize(s.engine.CacheStats().Size)
		if res.Validation != nil {
			s.observer.ObserveValidation(res.Validation.IsValid, len(res.Validation.Warnings))
		}
		if res.Performance != nil {
			s.observer.ObserveScore(res.Performance.Level, res.Performance.Score)
		}
	}
	if s.shared != nil && !res.Cached {
		if err := s.shared.Set(ctx, res.Fingerprint, res.HQL); err != nil {
			s.logger.WithError(err).WithField("fingerprint", res.Fingerprint).Warn("共享缓存写入失败")
		}
	}
	if s.history != nil {
		rec, err := newRecord(req, res, outcome)
		if err == nil {
			err = s.history.Save(ctx, rec)
		}
		if err != nil {
			s.logger.WithError(err).WithField("fingerprint", res.Fingerprint).Warn("生成记录保存失败")
		}
	}
}

func newRecord(req *hql.Request, res *hql.Result, outcome hql.Outcome) (*model.GenerationRecord, error) {
	ids := make([]int64, 0, len(req.Events))
	for _, e := range req.Events {
		ids = append(ids, e.EventID)
	}
	eventIDs, err := json.Marshal(ids)
	if err != nil {
		return nil, fmt.Errorf("序列化事件ID失败: %w", err)
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("序列化请求失败: %w", err)
	}
	rec := &model.GenerationRecord{
		Fingerprint:      res.Fingerprint,
		Mode:             req.Mode,
		EventIDs:         datatypes.JSON(eventIDs),
		Request:          datatypes.JSON(body),
		HQL:              res.HQL,
		Outcome:          string(outcome),
		Cached:           res.Cached,
		GenerationTimeMs: res.GenerationTimeMs,
	}
	if len(req.Events) > 0 {
		rec.GameGID = req.Events[0].GameGID
	}
	if res.Performance != nil {
		score := res.Performance.Score
		rec.Score = &score
		rec.Level = res.Performance.Level
	}
	return rec, nil
}

func (s *HQLService) observeError(err error) {
	kind := hql.ErrorKind(err)
	if s.observer != nil {
		s.observer.ObserveError(kind)
	}
	if !hql.IsUserError(err) {
		s.logger.WithError(err).WithField("kind", kind).Error("HQL 生成失败")
	}
}

// Validate 校验用户提交的 HQL
func (s *HQLService) Validate(text string) inspect.ValidationResult {
	v := s.engine.Validate(text)
	if s.observer != nil {
		s.observer.ObserveValidation(v.IsValid, len(v.Warnings))
	}
	return v
}

// Analyze 评估用户提交的 HQL
func (s *HQLService) Analyze(text string) inspect.Performance {
	p := s.engine.Analyze(text, nil)
	if s.observer != nil {
		s.observer.ObserveScore(p.Level, p.Score)
	}
	return p
}

// CacheStats 进程内缓存统计
func (s *HQLService) CacheStats() cache.Stats {
	return s.engine.CacheStats()
}

// ClearCache 清空进程内缓存，共享缓存依赖 TTL 过期
func (s *HQLService) ClearCache() {
	s.engine.ClearCache()
	if s.observer != nil {
		s.observer.SetCacheSize(0)
	}
}

// HistoryListResult 历史列表返回
type HistoryListResult struct {
	Page     int                       `json:"page"`
	PageSize int                       `json:"page_size"`
	Total    int64                     `json:"total"`
	Items    []*model.GenerationRecord `json:"items"`
}

// pagination 与仓储层一致的分页默认值
func pagination(page, pageSize int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}

// ListHistory 分页查询生成历史
func (s *HQLService) ListHistory(ctx context.Context, filter repository.HistoryFilter, page, pageSize int) (*HistoryListResult, error) {
	page, pageSize = pagination(page, pageSize)
	if s.history == nil {
		return &HistoryListResult{Page: page, PageSize: pageSize, Items: []*model.GenerationRecord{}}, nil
	}
	records, total, err := s.history.List(ctx, filter, page, pageSize)
	if err != nil {
		return nil, fmt.Errorf("查询生成历史失败: %w", err)
	}
	if records == nil {
		records = []*model.GenerationRecord{}
	}
	return &HistoryListResult{Page: page, PageSize: pageSize, Total: total, Items: records}, nil
}

// EventSummary 事件列表项
type EventSummary struct {
	ID          int64  `json:"id"`
	GameGID     int64  `json:"game_gid"`
	EventName   string `json:"event_name"`
	EventNameCN string `json:"event_name_cn"`
	CategoryID  int64  `json:"category_id"`
}

// EventListResult 事件列表返回
type EventListResult struct {
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
	Total    int64          `json:"total"`
	Items    []EventSummary `json:"items"`
}

// ListEvents 按游戏分页查询可选事件，供前端选择生成对象
func (s *HQLService) ListEvents(ctx context.Context, gameGID int64, page, pageSize int) (*EventListResult, error) {
	page, pageSize = pagination(page, pageSize)
	result := &EventListResult{Page: page, PageSize: pageSize, Items: []EventSummary{}}
	if s.metadata == nil {
		return result, nil
	}
	events, total, err := s.metadata.ListEvents(ctx, gameGID, page, pageSize)
	if err != nil {
		return nil, fmt.Errorf("查询事件列表失败: %w", err)
	}
	result.Total = total
	for _, e := range events {
		result.Items = append(result.Items, EventSummary{
			ID:          e.ID,
			GameGID:     e.GameGID,
			EventName:   e.EventName,
			EventNameCN: e.EventNameCN,
			CategoryID:  e.CategoryID,
		})
	}
	return result, nil
}

// HQLLookup 按指纹查询的结果
type HQLLookup struct {
	Fingerprint string `json:"fingerprint"`
	HQL         string `json:"hql"`
	Source      string `json:"source"` // memory / redis / history
}

// LookupHQL 依次查进程内缓存、共享缓存、生成历史；都没有时返回 nil, nil
func (s *HQLService) LookupHQL(ctx context.Context, fingerprint string) (*HQLLookup, error) {
	if gen, ok := s.engine.Lookup(fingerprint); ok {
		return &HQLLookup{Fingerprint: fingerprint, HQL: gen.HQL, Source: "memory"}, nil
	}
	if s.shared != nil {
		text, ok, err := s.shared.Get(ctx, fingerprint)
		if err != nil {
			s.logger.WithError(err).WithField("fingerprint", fingerprint).Warn("共享缓存读取失败")
		} else if ok {
			return &HQLLookup{Fingerprint: fingerprint, HQL: text, Source: "redis"}, nil
		}
	}
	if s.history != nil {
		rec, err := s.history.GetLatestByFingerprint(ctx, fingerprint)
		if err != nil {
			return nil, fmt.Errorf("查询生成历史失败: %w", err)
		}
		if rec != nil {
			return &HQLLookup{Fingerprint: fingerprint, HQL: rec.HQL, Source: "history"}, nil
		}
	}
	return nil, nil
}
