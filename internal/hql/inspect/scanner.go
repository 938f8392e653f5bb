package inspect

import (
	"strings"
	"unicode/utf8"
)

// TokenType 词法单元类型
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenWord
	TokenNumber
	TokenString
	TokenQuotedIdent // `name`
	TokenVariable    // ${var}
	TokenLParen
	TokenRParen
	TokenComma
	TokenDot
	TokenAsterisk
	TokenSemicolon
	TokenOperator
	TokenComment
)

// Token 带位置信息的词法单元，行列均从 1 开始
type Token struct {
	Type   TokenType
	Value  string
	Line   int
	Column int
	Depth  int // 所在括号深度
}

// Upper 关键字比较用
func (t Token) Upper() string {
	return strings.ToUpper(t.Value)
}

// IsKeyword 判断是否为给定关键字（大小写不敏感）
func (t Token) IsKeyword(kw string) bool {
	return t.Type == TokenWord && strings.EqualFold(t.Value, kw)
}

// scanner 手写的 HQL 词法扫描器，只识别校验与分析需要的结构，不做完整语法解析
type scanner struct {
	input   string
	pos     int
	readPos int
	ch      byte
	line    int
	col     int
	depth   int

	tokens []Token
	issues []Issue
}

func newScanner(input string) *scanner {
	s := &scanner{input: input, line: 1, col: 0}
	s.readChar()
	return s
}

func (s *scanner) readChar() {
	if s.ch == '\n' {
		s.line++
		s.col = 0
	}
	if s.readPos >= len(s.input) {
		s.ch = 0
	} else {
		s.ch = s.input[s.readPos]
	}
	s.pos = s.readPos
	s.readPos++
	// 列号按字符计，多字节 UTF-8 的后续字节不计列
	if utf8.RuneStart(s.ch) {
		s.col++
	}
}

func (s *scanner) peekChar() byte {
	if s.readPos >= len(s.input) {
		return 0
	}
	return s.input[s.readPos]
}

func (s *scanner) eof() bool { return s.pos >= len(s.input) }

func (s *scanner) errorAt(line, col int, msg, suggestion string) {
	s.issues = append(s.issues, Issue{
		Line:       line,
		Column:     col,
		Severity:   SeverityError,
		Message:    msg,
		Suggestion: suggestion,
	})
}

// scan 扫描整个输入，词法错误记录在 issues 中，扫描本身不会失败
func (s *scanner) scan() ([]Token, []Issue) {
	for !s.eof() {
		if isSpace(s.ch) {
			s.readChar()
			continue
		}
		line, col := s.line, s.col
		start := s.pos
		switch {
		case s.ch == '-' && s.peekChar() == '-':
			for !s.eof() && s.ch != '\n' {
				s.readChar()
			}
			s.emit(TokenComment, s.input[start:s.pos], line, col)
		case s.ch == '/' && s.peekChar() == '*':
			s.readChar()
			s.readChar()
			closed := false
			for !s.eof() {
				if s.ch == '*' && s.peekChar() == '/' {
					s.readChar()
					s.readChar()
					closed = true
					break
				}
				s.readChar()
			}
			if !closed {
				s.errorAt(line, col, "unclosed block comment", "add the closing */")
			}
			s.emit(TokenComment, s.input[start:s.pos], line, col)
		case s.ch == '\'' || s.ch == '"':
			s.readQuoted(s.ch, line, col)
		case s.ch == '`':
			s.readChar()
			for !s.eof() && s.ch != '`' {
				s.readChar()
			}
			if s.eof() {
				s.errorAt(line, col, "unbalanced backtick", "close the quoted identifier with `")
				s.emit(TokenQuotedIdent, s.input[start+1:s.pos], line, col)
				continue
			}
			s.emit(TokenQuotedIdent, s.input[start+1:s.pos], line, col)
			s.readChar()
		case s.ch == '$' && s.peekChar() == '{':
			for !s.eof() && s.ch != '}' {
				s.readChar()
			}
			if !s.eof() {
				s.readChar()
			}
			s.emit(TokenVariable, s.input[start:s.pos], line, col)
		case isLetter(s.ch):
			for !s.eof() && (isLetter(s.ch) || isDigit(s.ch)) {
				s.readChar()
			}
			s.emit(TokenWord, s.input[start:s.pos], line, col)
		case isDigit(s.ch):
			for !s.eof() && (isDigit(s.ch) || s.ch == '.') {
				s.readChar()
			}
			s.emit(TokenNumber, s.input[start:s.pos], line, col)
		case s.ch == '(':
			s.readChar()
			s.emit(TokenLParen, "(", line, col)
			s.depth++
		case s.ch == ')':
			s.readChar()
			if s.depth > 0 {
				s.depth--
			}
			s.emit(TokenRParen, ")", line, col)
		case s.ch == ',':
			s.readChar()
			s.emit(TokenComma, ",", line, col)
		case s.ch == '.':
			s.readChar()
			s.emit(TokenDot, ".", line, col)
		case s.ch == '*':
			s.readChar()
			s.emit(TokenAsterisk, "*", line, col)
		case s.ch == ';':
			s.readChar()
			s.emit(TokenSemicolon, ";", line, col)
		default:
			s.readOperator(line, col)
		}
	}
	return s.tokens, s.issues
}

func (s *scanner) emit(typ TokenType, value string, line, col int) {
	s.tokens = append(s.tokens, Token{Type: typ, Value: value, Line: line, Column: col, Depth: s.depth})
}

// readQuoted 读取字符串字面量，支持反斜杠转义与连续两个引号
func (s *scanner) readQuoted(quote byte, line, col int) {
	s.readChar()
	start := s.pos
	for !s.eof() {
		switch s.ch {
		case '\\':
			s.readChar()
			if !s.eof() {
				s.readChar()
			}
			continue
		case quote:
			if s.peekChar() == quote {
				s.readChar()
				s.readChar()
				continue
			}
			s.emit(TokenString, s.input[start:s.pos], line, col)
			s.readChar()
			return
		}
		s.readChar()
	}
	if quote == '\'' {
		s.errorAt(line, col, "unbalanced single quote", "close the string literal with '")
	} else {
		s.errorAt(line, col, "unbalanced double quote", `close the string literal with "`)
	}
	s.emit(TokenString, s.input[start:], line, col)
}

func (s *scanner) readOperator(line, col int) {
	first := s.ch
	s.readChar()
	value := string(first)
	switch first {
	case '<':
		if s.ch == '=' || s.ch == '>' {
			value += string(s.ch)
			s.readChar()
		}
	case '>', '!', '=':
		if s.ch == '=' {
			value += string(s.ch)
			s.readChar()
		}
	}
	s.emit(TokenOperator, value, line, col)
}

func isSpace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r'
}

func isLetter(ch byte) bool {
	return ch == '_' || ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z'
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

// Tokenize 返回去掉注释后的词法单元以及词法错误
func Tokenize(hql string) ([]Token, []Issue) {
	tokens, issues := newScanner(hql).scan()
	out := tokens[:0:0]
	for _, t := range tokens {
		if t.Type != TokenComment {
			out = append(out, t)
		}
	}
	return out, issues
}
