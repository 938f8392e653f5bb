package inspect

import "fmt"

// ValidationResult 校验结果
type ValidationResult struct {
	IsValid      bool    `json:"is_valid"`
	SyntaxErrors []Issue `json:"syntax_errors"`
	Warnings     []Issue `json:"warnings"`
}

// Validate 对 HQL 做轻量的结构与风格检查。
// 结果只取决于输入文本，重复调用结果一致，任何输入都不会 panic。
func Validate(hql string) ValidationResult {
	tokens, lexical := Tokenize(hql)
	errs := append([]Issue{}, lexical...)
	warns := []Issue{}

	significant := 0
	for _, t := range tokens {
		if t.Type != TokenSemicolon {
			significant++
		}
	}
	if significant == 0 {
		errs = append(errs, Issue{Line: 1, Column: 1, Severity: SeverityError,
			Message: "empty statement", Suggestion: "provide a SELECT statement"})
		sortIssues(errs)
		return ValidationResult{IsValid: false, SyntaxErrors: errs, Warnings: warns}
	}

	errs = append(errs, checkParens(tokens)...)

	f := collectFacts(tokens)
	if f.firstSelect == nil {
		errs = append(errs, Issue{Line: 1, Column: 1, Severity: SeverityError,
			Message: "missing SELECT clause", Suggestion: "the statement must contain a SELECT"})
	}
	if !f.hasFrom {
		line, col := 1, 1
		if f.firstSelect != nil {
			line, col = f.firstSelect.Line, f.firstSelect.Column
		}
		errs = append(errs, Issue{Line: line, Column: col, Severity: SeverityError,
			Message: "missing FROM clause", Suggestion: "add FROM <table> after the select list"})
	}
	for _, t := range f.trailingCommas {
		errs = append(errs, Issue{Line: t.Line, Column: t.Column, Severity: SeverityError,
			Message: "trailing comma before FROM", Suggestion: "remove the comma after the last select item"})
	}

	if !f.partitionFilter && f.firstSelect != nil {
		pos := f.firstSelect
		if f.firstWhere != nil {
			pos = f.firstWhere
		}
		warns = append(warns, Issue{Line: pos.Line, Column: pos.Column, Severity: SeverityWarning,
			Message:    "missing partition filter on ds",
			Suggestion: "add WHERE ds = '${bizdate}' to avoid a full table scan"})
	}
	for _, t := range f.selectStars {
		warns = append(warns, Issue{Line: t.Line, Column: t.Column, Severity: SeverityWarning,
			Message:    "SELECT * reads every column",
			Suggestion: "list the required columns explicitly"})
	}
	for _, t := range f.reservedRefs {
		warns = append(warns, Issue{Line: t.Line, Column: t.Column, Severity: SeverityWarning,
			Message:    fmt.Sprintf("column name %q is a reserved word", t.Value),
			Suggestion: fmt.Sprintf("quote it as `%s`", t.Value)})
	}
	for _, t := range f.reservedAliases {
		warns = append(warns, Issue{Line: t.Line, Column: t.Column, Severity: SeverityWarning,
			Message:    fmt.Sprintf("alias %q is a reserved word", t.Value),
			Suggestion: fmt.Sprintf("rename the alias or quote it as `%s`", t.Value)})
	}

	sortIssues(errs)
	sortIssues(warns)
	return ValidationResult{IsValid: len(errs) == 0, SyntaxErrors: errs, Warnings: warns}
}

func checkParens(tokens []Token) []Issue {
	var issues []Issue
	var open []Token
	for _, t := range tokens {
		switch t.Type {
		case TokenLParen:
			open = append(open, t)
		case TokenRParen:
			if len(open) == 0 {
				issues = append(issues, Issue{Line: t.Line, Column: t.Column, Severity: SeverityError,
					Message: "unmatched closing parenthesis", Suggestion: "remove the extra )"})
				continue
			}
			open = open[:len(open)-1]
		}
	}
	for _, t := range open {
		issues = append(issues, Issue{Line: t.Line, Column: t.Column, Severity: SeverityError,
			Message: "unclosed parenthesis", Suggestion: "add the matching )"})
	}
	return issues
}
