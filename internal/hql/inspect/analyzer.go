package inspect

import "fmt"

// 性能等级
const (
	LevelLow    = "low"
	LevelMedium = "medium"
	LevelHigh   = "high"
)

// 扣分规则
const (
	penaltyNoPartition = 20
	penaltySelectStar  = 15
	penaltyPerJoin     = 5
	penaltyPerSubquery = 10
	penaltyPerLateral  = 5
	freeJoins          = 1
	freeSubqueryLevels = 1
	freeLateralViews   = 2
	lowThreshold       = 80
	mediumThreshold    = 60
	maxScore           = 100
)

// Metrics 结构指标
type Metrics struct {
	HasPartitionFilter bool `json:"has_partition_filter"`
	SelectStar         bool `json:"select_star"`
	JoinCount          int  `json:"join_count"`
	SubqueryDepth      int  `json:"subquery_depth"`
	UnionCount         int  `json:"union_count"`
	LateralViewCount   int  `json:"lateral_view_count"`
	DistinctTables     int  `json:"distinct_tables"`
	FieldCount         *int `json:"field_count,omitempty"`
}

// Performance 性能评估结果
type Performance struct {
	Score   int     `json:"score"`
	Level   string  `json:"level"`
	Issues  []Issue `json:"issues"`
	Metrics Metrics `json:"metrics"`
}

// Analyze 根据 HQL 结构打分，满分 100
func Analyze(hql string) Performance {
	return analyze(hql, nil)
}

// AnalyzeWithFieldCount 额外记录请求中的字段数
func AnalyzeWithFieldCount(hql string, fieldCount int) Performance {
	return analyze(hql, &fieldCount)
}

func analyze(hql string, fieldCount *int) Performance {
	tokens, _ := Tokenize(hql)
	f := collectFacts(tokens)

	m := Metrics{
		HasPartitionFilter: f.partitionFilter,
		SelectStar:         len(f.selectStars) > 0,
		JoinCount:          f.joinCount,
		SubqueryDepth:      f.subqueryDepth,
		UnionCount:         f.unionCount,
		LateralViewCount:   f.lateralViewCount,
		DistinctTables:     len(f.tables),
		FieldCount:         fieldCount,
	}

	score := maxScore
	issues := []Issue{}
	pos := func(t *Token) (int, int) {
		if t == nil {
			return 1, 1
		}
		return t.Line, t.Column
	}

	if !m.HasPartitionFilter {
		score -= penaltyNoPartition
		line, col := pos(f.firstSelect)
		issues = append(issues, Issue{Line: line, Column: col, Severity: SeverityWarning,
			Message:    "no partition filter, the query scans every partition",
			Suggestion: "filter on ds = '${bizdate}'"})
	}
	if m.SelectStar {
		score -= penaltySelectStar
		t := f.selectStars[0]
		issues = append(issues, Issue{Line: t.Line, Column: t.Column, Severity: SeverityWarning,
			Message:    "SELECT * defeats column pruning",
			Suggestion: "select only the columns you need"})
	}
	if extra := m.JoinCount - freeJoins; extra > 0 {
		score -= extra * penaltyPerJoin
		line, col := pos(f.firstSelect)
		issues = append(issues, Issue{Line: line, Column: col, Severity: SeverityInfo,
			Message:    fmt.Sprintf("%d joins in one statement", m.JoinCount),
			Suggestion: "consider materializing intermediate joins"})
	}
	if extra := m.SubqueryDepth - freeSubqueryLevels; extra > 0 {
		score -= extra * penaltyPerSubquery
		line, col := pos(f.firstSelect)
		issues = append(issues, Issue{Line: line, Column: col, Severity: SeverityInfo,
			Message:    fmt.Sprintf("subqueries nested %d levels deep", m.SubqueryDepth),
			Suggestion: "flatten nested subqueries or use CTEs"})
	}
	if extra := m.LateralViewCount - freeLateralViews; extra > 0 {
		score -= extra * penaltyPerLateral
		line, col := pos(f.firstSelect)
		issues = append(issues, Issue{Line: line, Column: col, Severity: SeverityInfo,
			Message:    fmt.Sprintf("%d LATERAL VIEW explodes multiply the row count", m.LateralViewCount),
			Suggestion: "explode fewer columns per view"})
	}

	if score < 0 {
		score = 0
	}
	if score > maxScore {
		score = maxScore
	}
	sortIssues(issues)
	return Performance{Score: score, Level: LevelFor(score), Issues: issues, Metrics: m}
}

// LevelFor 分数对应的等级
func LevelFor(score int) string {
	switch {
	case score >= lowThreshold:
		return LevelLow
	case score >= mediumThreshold:
		return LevelMedium
	default:
		return LevelHigh
	}
}
