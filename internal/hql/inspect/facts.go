package inspect

import "strings"

// reservedWords Hive 保留字中容易被误用为列名或别名的部分
var reservedWords = map[string]struct{}{
	"ALL": {}, "ALTER": {}, "AND": {}, "ARRAY": {}, "AS": {}, "BETWEEN": {}, "BIGINT": {},
	"BOOLEAN": {}, "BY": {}, "CASE": {}, "CAST": {}, "CREATE": {}, "CROSS": {}, "CURRENT": {},
	"DATE": {}, "DECIMAL": {}, "DELETE": {}, "DISTINCT": {}, "DOUBLE": {}, "DROP": {}, "ELSE": {},
	"END": {}, "EXISTS": {}, "FALSE": {}, "FLOAT": {}, "FOR": {}, "FROM": {}, "FULL": {},
	"FUNCTION": {}, "GROUP": {}, "GROUPING": {}, "HAVING": {}, "IN": {}, "INNER": {}, "INSERT": {},
	"INT": {}, "INTERVAL": {}, "INTO": {}, "IS": {}, "JOIN": {}, "LATERAL": {}, "LEFT": {},
	"LIKE": {}, "LIMIT": {}, "MAP": {}, "NOT": {}, "NULL": {}, "OF": {}, "ON": {}, "OR": {},
	"ORDER": {}, "OUTER": {}, "OVER": {}, "PARTITION": {}, "RANGE": {}, "RIGHT": {}, "ROWS": {},
	"SELECT": {}, "SET": {}, "TABLE": {}, "THEN": {}, "TIMESTAMP": {}, "TO": {}, "TRUE": {},
	"UNION": {}, "UPDATE": {}, "USER": {}, "USING": {}, "VALUES": {}, "VIEW": {}, "WHEN": {},
	"WHERE": {}, "WINDOW": {}, "WITH": {},
}

// IsReserved 是否为保留字
func IsReserved(word string) bool {
	_, ok := reservedWords[strings.ToUpper(word)]
	return ok
}

var clauseKeywords = map[string]struct{}{
	"SELECT": {}, "FROM": {}, "WHERE": {}, "GROUP": {}, "HAVING": {}, "ORDER": {},
	"LIMIT": {}, "ON": {}, "JOIN": {}, "UNION": {}, "LATERAL": {},
}

// facts 从词法单元中提取的结构特征，校验器与分析器共用
type facts struct {
	tokens []Token

	firstSelect *Token
	firstWhere  *Token
	hasFrom     bool

	partitionFilter bool
	selectStars     []Token
	reservedRefs    []Token
	reservedAliases []Token
	trailingCommas  []Token

	joinCount        int
	unionCount       int
	lateralViewCount int
	subqueryDepth    int
	tables           []string
}

func collectFacts(tokens []Token) *facts {
	f := &facts{tokens: tokens}
	clause := ""
	seenTables := make(map[string]struct{})

	at := func(i int) Token {
		if i < 0 || i >= len(tokens) {
			return Token{Type: TokenEOF}
		}
		return tokens[i]
	}

	for i, tok := range tokens {
		prev, next := at(i-1), at(i+1)

		if tok.Type == TokenWord {
			upper := tok.Upper()
			// 限定名中的单词（a.from）不作为关键字处理
			if prev.Type != TokenDot {
				if _, ok := clauseKeywords[upper]; ok {
					clause = upper
				}
				switch upper {
				case "SELECT":
					if f.firstSelect == nil {
						t := tok
						f.firstSelect = &t
					}
					if tok.Depth > f.subqueryDepth {
						f.subqueryDepth = tok.Depth
					}
				case "FROM":
					f.hasFrom = true
					f.addTable(tokens, i, seenTables)
				case "WHERE":
					if f.firstWhere == nil {
						t := tok
						f.firstWhere = &t
					}
				case "JOIN":
					f.joinCount++
					f.addTable(tokens, i, seenTables)
				case "UNION":
					f.unionCount++
				case "LATERAL":
					if next.IsKeyword("VIEW") {
						f.lateralViewCount++
					}
				}
			}

			if strings.EqualFold(tok.Value, "ds") && clause == "WHERE" &&
				(next.Type == TokenOperator && next.Value == "=" || next.IsKeyword("IN")) {
				f.partitionFilter = true
			}

			if clause == "SELECT" {
				if prev.Type == TokenDot && at(i-2).Type == TokenWord && IsReserved(tok.Value) {
					f.reservedRefs = append(f.reservedRefs, tok)
				}
				if prev.IsKeyword("AS") && IsReserved(tok.Value) && endsSelectItem(next) {
					f.reservedAliases = append(f.reservedAliases, tok)
				}
			}
		}

		if tok.Type == TokenAsterisk && clause == "SELECT" {
			if prev.IsKeyword("SELECT") || prev.IsKeyword("DISTINCT") || prev.Type == TokenComma || prev.Type == TokenDot {
				f.selectStars = append(f.selectStars, tok)
			}
		}

		if tok.Type == TokenComma && next.IsKeyword("FROM") {
			f.trailingCommas = append(f.trailingCommas, tok)
		}
	}
	return f
}

func endsSelectItem(t Token) bool {
	return t.Type == TokenEOF || t.Type == TokenComma || t.Type == TokenSemicolon || t.IsKeyword("FROM")
}

// addTable 记录 FROM / JOIN 之后的表名（db.table），子查询跳过
func (f *facts) addTable(tokens []Token, kw int, seen map[string]struct{}) {
	i := kw + 1
	if i >= len(tokens) || (tokens[i].Type != TokenWord && tokens[i].Type != TokenQuotedIdent) {
		return
	}
	name := tokens[i].Value
	for i+2 < len(tokens) && tokens[i+1].Type == TokenDot &&
		(tokens[i+2].Type == TokenWord || tokens[i+2].Type == TokenQuotedIdent) {
		name += "." + tokens[i+2].Value
		i += 2
	}
	name = strings.ToLower(name)
	if _, ok := seen[name]; ok {
		return
	}
	seen[name] = struct{}{}
	f.tables = append(f.tables, name)
}
