package sqlexec

import (
	"strings"
	"unicode"
)

// Statement is one SQL statement cut out of a multi-statement string.
type Statement struct {
	SQL          string // statement text without the terminating semicolon
	Verb         string // first keyword, upper-cased
	Placeholders int    // number of ? placeholders outside literals and comments
	ReturnsRows  bool   // statement produces a result set

	// Offsets holds the byte offset in SQL of every placeholder counted in
	// Placeholders, in order.
	Offsets []int
}

var rowVerbs = map[string]bool{
	"SELECT":  true,
	"WITH":    true,
	"VALUES":  true,
	"SHOW":    true,
	"EXPLAIN": true,
	"TABLE":   true,
	"PRAGMA":  true,
}

var dmlVerbs = map[string]bool{
	"INSERT": true,
	"UPDATE": true,
	"DELETE": true,
	"MERGE":  true,
}

// IsDML reports whether the statement modifies rows.
func (s Statement) IsDML() bool {
	return dmlVerbs[s.Verb]
}

// Split cuts sql into statements on semicolons that are not inside a
// quoted string, a quoted identifier, a comment or a dollar-quoted body.
// Statements holding only whitespace or comments are dropped.
func Split(sql string) []Statement {
	var (
		stmts       []Statement
		code        strings.Builder
		start       int
		marks       []int
		significant bool
	)

	flush := func(end int) {
		if significant {
			raw := sql[start:end]
			lead := start + len(raw) - len(strings.TrimLeftFunc(raw, unicode.IsSpace))
			offsets := make([]int, len(marks))
			for k, m := range marks {
				offsets[k] = m - lead
			}
			stmts = append(stmts, classify(strings.TrimSpace(raw), code.String(), offsets))
		}
		code.Reset()
		marks = nil
		significant = false
	}

	for i := 0; i < len(sql); {
		c := sql[i]
		switch {
		case c == '\'' && escapePrefix(sql, i):
			i = skipEscaped(sql, i)
			code.WriteByte(' ')
			significant = true
		case c == '\'' || c == '"':
			i = skipQuoted(sql, i, c)
			code.WriteByte(' ')
			significant = true
		case c == '-' && i+1 < len(sql) && sql[i+1] == '-':
			i = skipLineComment(sql, i)
			code.WriteByte(' ')
		case c == '/' && i+1 < len(sql) && sql[i+1] == '*':
			i = skipBlockComment(sql, i)
			code.WriteByte(' ')
		case c == '$':
			if tag, ok := dollarTag(sql, i); ok {
				i = skipDollarQuoted(sql, i, tag)
				code.WriteByte(' ')
				significant = true
				continue
			}
			code.WriteByte(c)
			significant = true
			i++
		case c == ';':
			flush(i)
			i++
			start = i
		default:
			if c == '?' {
				marks = append(marks, i)
			}
			if !isSpace(c) {
				significant = true
			}
			code.WriteByte(c)
			i++
		}
	}
	flush(len(sql))

	return stmts
}

func classify(text, code string, offsets []int) Statement {
	words := strings.FieldsFunc(strings.ToUpper(code), func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_')
	})

	st := Statement{SQL: text, Placeholders: len(offsets), Offsets: offsets}
	if len(words) > 0 {
		st.Verb = words[0]
	}
	st.ReturnsRows = rowVerbs[st.Verb]
	for _, w := range words {
		if w == "RETURNING" {
			st.ReturnsRows = true
			break
		}
	}
	return st
}

// skipQuoted returns the index just past the closing quote. A doubled quote
// inside the literal is an escaped quote.
func skipQuoted(s string, i int, q byte) int {
	for j := i + 1; j < len(s); j++ {
		if s[j] != q {
			continue
		}
		if j+1 < len(s) && s[j+1] == q {
			j++
			continue
		}
		return j + 1
	}
	return len(s)
}

// escapePrefix reports whether the quote at i opens a PostgreSQL E'...'
// string, that is it follows a lone E or e.
func escapePrefix(s string, i int) bool {
	if i == 0 || (s[i-1] != 'E' && s[i-1] != 'e') {
		return false
	}
	return i == 1 || !isTagChar(s[i-2])
}

// skipEscaped is skipQuoted for E'...' strings, where a backslash escapes
// the next byte as well.
func skipEscaped(s string, i int) int {
	for j := i + 1; j < len(s); j++ {
		switch s[j] {
		case '\\':
			j++
		case '\'':
			if j+1 < len(s) && s[j+1] == '\'' {
				j++
				continue
			}
			return j + 1
		}
	}
	return len(s)
}

func skipLineComment(s string, i int) int {
	if idx := strings.IndexByte(s[i:], '\n'); idx >= 0 {
		return i + idx + 1
	}
	return len(s)
}

// skipBlockComment honours PostgreSQL's nested block comments.
func skipBlockComment(s string, i int) int {
	depth := 0
	for j := i; j < len(s); {
		switch {
		case j+1 < len(s) && s[j] == '/' && s[j+1] == '*':
			depth++
			j += 2
		case j+1 < len(s) && s[j] == '*' && s[j+1] == '/':
			depth--
			j += 2
			if depth == 0 {
				return j
			}
		default:
			j++
		}
	}
	return len(s)
}

// dollarTag recognises $$ and $tag$ openers. Positional parameters such as
// $1 are not tags, and neither is a $ that continues an identifier.
func dollarTag(s string, i int) (string, bool) {
	if i > 0 && isTagChar(s[i-1]) {
		return "", false
	}
	j := i + 1
	if j < len(s) && s[j] >= '0' && s[j] <= '9' {
		return "", false
	}
	for j < len(s) && isTagChar(s[j]) {
		j++
	}
	if j < len(s) && s[j] == '$' {
		return s[i : j+1], true
	}
	return "", false
}

func skipDollarQuoted(s string, i int, tag string) int {
	body := i + len(tag)
	if idx := strings.Index(s[body:], tag); idx >= 0 {
		return body + idx + len(tag)
	}
	return len(s)
}

func isTagChar(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c >= 0x80
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}
