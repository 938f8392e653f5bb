package hql

import (
	"strings"

	"HQLPreview/internal/hql/cache"
)

// GeneratorConfig 生成引擎配置
type GeneratorConfig struct {
	CacheCapacity         int      // LRU 条目上限
	PartitionVar          string   // 分区变量，默认 ${bizdate}
	SQLMode               string   // VIEW / SELECT
	JoinKey               string   // join 模式默认关联键
	JoinType              string   // join 模式默认类型
	EventColumn           string   // all_view 中的事件名列，为空时不加事件过滤
	ParamsColumn          string   // JSON 参数列
	BaseColumns           []string // 基础字段
	AllowLegacyFieldNames bool     // 是否接受 field_name 等旧字段名
	EnableIncremental     bool
}

// DefaultGeneratorConfig 默认配置
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		CacheCapacity:         cache.DefaultCapacity,
		PartitionVar:          "${bizdate}",
		SQLMode:               SQLModeView,
		JoinKey:               "role_id",
		JoinType:              JoinInner,
		EventColumn:           "event_name",
		ParamsColumn:          "params",
		BaseColumns:           []string{"ds", "tm", "role_id", "account_id", "utdid", "envinfo"},
		AllowLegacyFieldNames: true,
		EnableIncremental:     true,
	}
}

// withDefaults 用默认值补齐未配置的项
func (c GeneratorConfig) withDefaults() GeneratorConfig {
	d := DefaultGeneratorConfig()
	if c.CacheCapacity <= 0 {
		c.CacheCapacity = d.CacheCapacity
	}
	if c.PartitionVar == "" {
		c.PartitionVar = d.PartitionVar
	}
	if c.SQLMode == "" {
		c.SQLMode = d.SQLMode
	}
	c.SQLMode = strings.ToUpper(c.SQLMode)
	if c.JoinKey == "" {
		c.JoinKey = d.JoinKey
	}
	if c.JoinType == "" {
		c.JoinType = d.JoinType
	}
	c.JoinType = strings.ToUpper(c.JoinType)
	if c.ParamsColumn == "" {
		c.ParamsColumn = d.ParamsColumn
	}
	if len(c.BaseColumns) == 0 {
		c.BaseColumns = d.BaseColumns
	}
	return c
}

// isBaseColumn 基础字段以及 all_view 自带的事件名、参数列
func (c GeneratorConfig) isBaseColumn(name string) bool {
	for _, col := range c.BaseColumns {
		if strings.EqualFold(col, name) {
			return true
		}
	}
	return strings.EqualFold(name, c.ParamsColumn) || c.EventColumn != "" && strings.EqualFold(name, c.EventColumn)
}

// baseColumnComments 基础字段的默认注释
var baseColumnComments = map[string]string{
	"ds":         "分区日期",
	"tm":         "事件时间",
	"role_id":    "角色ID",
	"account_id": "账号ID",
	"utdid":      "设备ID",
	"envinfo":    "环境信息",
	"event_name": "事件名称",
	"params":     "事件参数",
}
