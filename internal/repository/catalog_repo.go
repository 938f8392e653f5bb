package repository

import (
	"context"
	"fmt"
	"io"
	"os"

	"HQLPreview/internal/hql"
	"HQLPreview/internal/hql/paramtype"

	"gopkg.in/yaml.v3"
)

// catalogFile 离线元数据文件格式，供命令行工具与测试使用
type catalogFile struct {
	Games []catalogGame `yaml:"games"`
}

type catalogGame struct {
	GID    int64          `yaml:"gid"`
	Name   string         `yaml:"name"`
	OdsDB  string         `yaml:"ods_db"`
	Events []catalogEvent `yaml:"events"`
}

type catalogEvent struct {
	ID          int64          `yaml:"id"`
	Name        string         `yaml:"name"`
	NameCN      string         `yaml:"name_cn"`
	SourceTable string         `yaml:"source_table"`
	TargetTable string         `yaml:"target_table"`
	CategoryID  int64          `yaml:"category_id"`
	Params      []catalogParam `yaml:"params"`
}

type catalogParam struct {
	Name        string `yaml:"name"`
	Type        string `yaml:"type"`
	JSONPath    string `yaml:"json_path"`
	Description string `yaml:"description"`
	Active      *bool  `yaml:"active"` // 缺省为启用
}

// CatalogRepository 内存元数据，实现 hql.Repository
type CatalogRepository struct {
	games  map[int64]*hql.Game
	events map[int64]*hql.Event
	params map[int64][]hql.Parameter
}

// LoadCatalogFile 从 YAML 文件加载元数据
func LoadCatalogFile(path string) (*CatalogRepository, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开元数据文件失败: %w", err)
	}
	defer f.Close()
	return LoadCatalog(f)
}

// LoadCatalog 解析 YAML 元数据；事件 id 重复、参数类型非法时报错
func LoadCatalog(r io.Reader) (*CatalogRepository, error) {
	var file catalogFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil && err != io.EOF {
		return nil, fmt.Errorf("解析元数据失败: %w", err)
	}

	repo := &CatalogRepository{
		games:  make(map[int64]*hql.Game),
		events: make(map[int64]*hql.Event),
		params: make(map[int64][]hql.Parameter),
	}
	var paramID int64
	for _, g := range file.Games {
		if g.GID <= 0 {
			return nil, fmt.Errorf("游戏 %q 缺少 gid", g.Name)
		}
		odsDB := g.OdsDB
		if odsDB == "" {
			odsDB = "ieu_ods"
		}
		repo.games[g.GID] = &hql.Game{GID: g.GID, Name: g.Name, OdsDB: odsDB}
		for _, e := range g.Events {
			if _, dup := repo.events[e.ID]; dup {
				return nil, fmt.Errorf("事件 id %d 重复", e.ID)
			}
			repo.events[e.ID] = &hql.Event{
				ID:          e.ID,
				GameGID:     g.GID,
				Name:        e.Name,
				NameCN:      e.NameCN,
				SourceTable: e.SourceTable,
				TargetTable: e.TargetTable,
				CategoryID:  e.CategoryID,
			}
			for _, p := range e.Params {
				typ := paramtype.StringType()
				if p.Type != "" {
					t, err := paramtype.Parse(p.Type)
					if err != nil {
						return nil, fmt.Errorf("事件 %d 参数 %s: %w", e.ID, p.Name, err)
					}
					typ = t
				}
				paramID++
				repo.params[e.ID] = append(repo.params[e.ID], hql.Parameter{
					ID:          paramID,
					EventID:     e.ID,
					Name:        p.Name,
					Type:        typ,
					JSONPath:    p.JSONPath,
					Description: p.Description,
					Active:      p.Active == nil || *p.Active,
				})
			}
		}
	}
	return repo, nil
}

// GetGame 不存在时返回 nil, nil
func (r *CatalogRepository) GetGame(_ context.Context, gid int64) (*hql.Game, error) {
	if g, ok := r.games[gid]; ok {
		c := *g
		return &c, nil
	}
	return nil, nil
}

// GetEvent 不存在时返回 nil, nil
func (r *CatalogRepository) GetEvent(_ context.Context, eventID int64) (*hql.Event, error) {
	if e, ok := r.events[eventID]; ok {
		c := *e
		return &c, nil
	}
	return nil, nil
}

// ListParameters 只返回启用的参数
func (r *CatalogRepository) ListParameters(_ context.Context, eventID int64) ([]hql.Parameter, error) {
	var out []hql.Parameter
	for _, p := range r.params[eventID] {
		if p.Active {
			out = append(out, p)
		}
	}
	return out, nil
}
