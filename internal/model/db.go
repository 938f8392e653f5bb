package model

import (
	"time"

	"gorm.io/datatypes"
)

type Game struct {
	GID       int64     `gorm:"column:gid;primaryKey;autoIncrement:false;comment:游戏GID"`
	Name      string    `gorm:"column:name;type:varchar(128);not null;comment:游戏名称"`
	OdsDB     string    `gorm:"column:ods_db;type:varchar(64);not null;default:ieu_ods;comment:ODS库名"`
	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;default:now();comment:创建时间"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamp;default:now();comment:更新时间"`
}

type Event struct {
	ID          int64     `gorm:"column:id;primaryKey;autoIncrement;comment:自增主键ID"`
	GameGID     int64     `gorm:"column:game_gid;type:bigint;not null;index;comment:所属游戏GID"`
	EventName   string    `gorm:"column:event_name;type:varchar(128);not null;comment:事件英文名"`
	EventNameCN string    `gorm:"column:event_name_cn;type:varchar(128);comment:事件中文名"`
	SourceTable string    `gorm:"column:source_table;type:varchar(256);comment:ODS源表，为空按规则推导"`
	TargetTable string    `gorm:"column:target_table;type:varchar(256);comment:DWD目标视图，为空按规则推导"`
	CategoryID  int64     `gorm:"column:category_id;type:bigint;default:0;comment:事件分类"`
	CreatedAt   time.Time `gorm:"column:created_at;type:timestamp;default:now();comment:创建时间"`
	UpdatedAt   time.Time `gorm:"column:updated_at;type:timestamp;default:now();comment:更新时间"`
}

type EventParam struct {
	ID          int64     `gorm:"column:id;primaryKey;autoIncrement;comment:自增主键ID"`
	EventID     int64     `gorm:"column:event_id;type:bigint;not null;index;comment:关联事件ID"`
	ParamName   string    `gorm:"column:param_name;type:varchar(128);not null;comment:参数名"`
	ParamType   string    `gorm:"column:param_type;type:varchar(256);default:string;comment:参数类型，如 int / array<string>"`
	JSONPath    string    `gorm:"column:json_path;type:varchar(256);comment:JSON路径，为空时为 $.<参数名>"`
	Description string    `gorm:"column:description;type:varchar(512);comment:参数说明"`
	IsActive    bool      `gorm:"column:is_active;type:boolean;default:true;comment:是否启用"`
	CreatedAt   time.Time `gorm:"column:created_at;type:timestamp;default:now();comment:创建时间"`
	UpdatedAt   time.Time `gorm:"column:updated_at;type:timestamp;default:now();comment:更新时间"`
}

// GenerationRecord 生成历史
type GenerationRecord struct {
	ID               uint64         `gorm:"column:id;primaryKey;autoIncrement;comment:自增主键ID"`
	RecordUUID       string         `gorm:"column:record_uuid;type:varchar(64);uniqueIndex;not null;comment:全局唯一ID"`
	Fingerprint      string         `gorm:"column:fingerprint;type:char(64);index;not null;comment:请求指纹"`
	Mode             string         `gorm:"column:mode;type:varchar(16);not null;comment:组合模式：single/join/union"`
	GameGID          int64          `gorm:"column:game_gid;type:bigint;index;comment:首个事件的游戏GID"`
	EventIDs         datatypes.JSON `gorm:"column:event_ids;type:jsonb;not null;comment:事件ID列表"`
	Request          datatypes.JSON `gorm:"column:request;type:jsonb;not null;comment:规范化请求"`
	HQL              string         `gorm:"column:hql;type:text;not null;comment:生成的HQL"`
	Score            *int           `gorm:"column:score;type:int;comment:性能评分"`
	Level            string         `gorm:"column:level;type:varchar(8);comment:性能等级"`
	Outcome          string         `gorm:"column:outcome;type:varchar(16);comment:增量结果：CACHE_HIT/PATCHED/FULL"`
	Cached           bool           `gorm:"column:cached;type:boolean;default:false;comment:是否命中缓存"`
	GenerationTimeMs float64        `gorm:"column:generation_time_ms;type:numeric(12,3);default:0;comment:生成耗时（毫秒）"`
	CreatedAt        time.Time      `gorm:"column:created_at;type:timestamp;default:now();comment:创建时间"`
}

func (Game) TableName() string             { return "games" }
func (Event) TableName() string            { return "events" }
func (EventParam) TableName() string       { return "event_params" }
func (GenerationRecord) TableName() string { return "generation_records" }
