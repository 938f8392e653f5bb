package hql

import (
	"context"
	"fmt"
	"strings"

	"HQLPreview/internal/hql/paramtype"
)

// Game 游戏元数据
type Game struct {
	GID   int64
	Name  string
	OdsDB string
}

// Event 埋点事件元数据
type Event struct {
	ID          int64
	GameGID     int64
	Name        string // 事件英文名，如 role.login
	NameCN      string
	SourceTable string // 为空时按规则推导
	TargetTable string // 为空时按规则推导
	CategoryID  int64
}

// Parameter 事件参数
type Parameter struct {
	ID          int64
	EventID     int64
	Name        string
	Type        paramtype.Type
	JSONPath    string
	Description string
	Active      bool
}

// path 参数的 JSON 路径，未配置时为 $.<name>
func (p Parameter) path() string {
	if p.JSONPath != "" {
		return p.JSONPath
	}
	return "$." + p.Name
}

// Repository 引擎对元数据的只读访问。未找到时返回 nil, nil；
// ListParameters 只需返回启用的参数，引擎仍会再过滤一次。
type Repository interface {
	GetGame(ctx context.Context, gid int64) (*Game, error)
	GetEvent(ctx context.Context, eventID int64) (*Event, error)
	ListParameters(ctx context.Context, eventID int64) ([]Parameter, error)
}

const (
	domesticOdsDB = "ieu_ods"
	domesticCdmDB = "ieu_cdm"
)

// SourceTableName ODS 全量视图：<ods_db>.ods_<gid>_all_view
func SourceTableName(g Game) string {
	return fmt.Sprintf("%s.ods_%d_all_view", g.OdsDB, g.GID)
}

// DWDDatabase ieu_ods 对应 ieu_cdm，其余沿用 ods 库
func DWDDatabase(odsDB string) string {
	if odsDB == domesticOdsDB {
		return domesticCdmDB
	}
	return odsDB
}

// SanitizeEventName 事件名中的 . 替换为 _
func SanitizeEventName(name string) string {
	return strings.ReplaceAll(name, ".", "_")
}

// TargetTableName 单事件 DWD 视图：<dwd_db>.v_dwd_<gid>_<event>_di
func TargetTableName(g Game, eventName string) string {
	return fmt.Sprintf("%s.v_dwd_%d_%s_di", DWDDatabase(g.OdsDB), g.GID, SanitizeEventName(eventName))
}

// compositeViewName 多事件视图：v_dwd_<gid>_<e1>_<sep>_<e2>..._di
func compositeViewName(g Game, events []*Event, sep string) string {
	names := make([]string, 0, len(events))
	for _, ev := range events {
		names = append(names, SanitizeEventName(ev.Name))
	}
	return fmt.Sprintf("%s.v_dwd_%d_%s_di", DWDDatabase(g.OdsDB), g.GID, strings.Join(names, "_"+sep+"_"))
}
