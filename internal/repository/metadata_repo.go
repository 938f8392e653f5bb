package repository

import (
	"context"
	"errors"

	"HQLPreview/internal/hql"
	"HQLPreview/internal/hql/paramtype"
	"HQLPreview/internal/model"

	"gorm.io/gorm"
)

// MetadataRepository 游戏/事件/参数元数据的只读仓储，供生成引擎使用
type MetadataRepository interface {
	hql.Repository
	// ListEvents 按游戏分页查询事件
	ListEvents(ctx context.Context, gameGID int64, page, pageSize int) ([]*model.Event, int64, error)
}

type metadataRepository struct {
	db *gorm.DB
}

// NewMetadataRepository 创建 MetadataRepository 实例
func NewMetadataRepository(db *gorm.DB) MetadataRepository {
	return &metadataRepository{db: db}
}

// GetGame 通过 gid 获取游戏，不存在时返回 nil, nil
func (r *metadataRepository) GetGame(ctx context.Context, gid int64) (*hql.Game, error) {
	var g model.Game
	if err := r.db.WithContext(ctx).Where("gid = ?", gid).First(&g).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return toGame(&g), nil
}

// GetEvent 通过事件 id 获取事件，不存在时返回 nil, nil
func (r *metadataRepository) GetEvent(ctx context.Context, eventID int64) (*hql.Event, error) {
	var e model.Event
	if err := r.db.WithContext(ctx).Where("id = ?", eventID).First(&e).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return toEvent(&e), nil
}

// ListParameters 查询事件启用的参数，按 id 排序
func (r *metadataRepository) ListParameters(ctx context.Context, eventID int64) ([]hql.Parameter, error) {
	var params []*model.EventParam
	if err := r.db.WithContext(ctx).
		Where("event_id = ? AND is_active = ?", eventID, true).
		Order("id ASC").
		Find(&params).Error; err != nil {
		return nil, err
	}
	out := make([]hql.Parameter, 0, len(params))
	for _, p := range params {
		out = append(out, toParameter(p))
	}
	return out, nil
}

// ListEvents 按游戏分页查询事件
func (r *metadataRepository) ListEvents(ctx context.Context, gameGID int64, page, pageSize int) ([]*model.Event, int64, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}

	db := r.db.WithContext(ctx).Model(&model.Event{})
	if gameGID > 0 {
		db = db.Where("game_gid = ?", gameGID)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var events []*model.Event
	if err := db.
		Order("id ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&events).Error; err != nil {
		return nil, 0, err
	}
	return events, total, nil
}

func toGame(g *model.Game) *hql.Game {
	odsDB := g.OdsDB
	if odsDB == "" {
		odsDB = "ieu_ods"
	}
	return &hql.Game{GID: g.GID, Name: g.Name, OdsDB: odsDB}
}

func toEvent(e *model.Event) *hql.Event {
	return &hql.Event{
		ID:          e.ID,
		GameGID:     e.GameGID,
		Name:        e.EventName,
		NameCN:      e.EventNameCN,
		SourceTable: e.SourceTable,
		TargetTable: e.TargetTable,
		CategoryID:  e.CategoryID,
	}
}

// toParameter 无法识别的类型按 string 处理
func toParameter(p *model.EventParam) hql.Parameter {
	return hql.Parameter{
		ID:          p.ID,
		EventID:     p.EventID,
		Name:        p.ParamName,
		Type:        paramtype.ParseOrString(p.ParamType),
		JSONPath:    p.JSONPath,
		Description: p.Description,
		Active:      p.IsActive,
	}
}
