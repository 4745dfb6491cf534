package builder

import (
	"strings"
)

// line is one logical line of routine source.
type line struct {
	num    int // physical line the logical line starts on
	indent int
	text   string
}

const tabWidth = 4

// lex splits src into logical lines: comments stripped, bracketed and
// backslash continuations joined, blank lines and docstrings dropped, and the
// common leading indentation removed.
func lex(src string) ([]line, error) {
	phys := strings.Split(strings.ReplaceAll(src, "\r\n", "\n"), "\n")
	var out []line

	for i := 0; i < len(phys); i++ {
		raw := expandTabs(phys[i])
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}
		if q := docQuote(trimmed); q != "" {
			start := i + 1
			if strings.Contains(trimmed[3:], q) {
				continue
			}
			for i++; i < len(phys) && !strings.Contains(phys[i], q); i++ {
			}
			if i >= len(phys) {
				return nil, errorf(start, "unterminated docstring")
			}
			continue
		}

		indent := len(raw) - len(strings.TrimLeft(raw, " "))
		num := i + 1
		text, depth, err := scanLine(raw[indent:], 0, num)
		if err != nil {
			return nil, err
		}
		for depth > 0 || strings.HasSuffix(text, `\`) {
			sep := "\n"
			if depth == 0 {
				text = strings.TrimSuffix(text, `\`)
				sep = " "
			}
			i++
			if i >= len(phys) {
				return nil, errorf(num, "unexpected end of routine inside a bracketed expression")
			}
			var more string
			more, depth, err = scanLine(strings.TrimSpace(expandTabs(phys[i])), depth, i+1)
			if err != nil {
				return nil, err
			}
			text = strings.TrimRight(text, " ") + sep + more
		}

		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		out = append(out, line{num: num, indent: indent, text: text})
	}
	return dedent(out), nil
}

// scanLine strips a trailing # or // comment from s and returns the bracket
// depth after it, starting from depth.
func scanLine(s string, depth, num int) (string, int, error) {
	inString := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch ch {
			case '\\':
				i++
			case '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '#':
			return strings.TrimRight(s[:i], " "), depth, nil
		case '/':
			if i+1 < len(s) && s[i+1] == '/' {
				return strings.TrimRight(s[:i], " "), depth, nil
			}
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
			if depth < 0 {
				return "", 0, errorf(num, "unmatched %q", string(ch))
			}
		}
	}
	if inString {
		return "", 0, errorf(num, "unterminated string literal")
	}
	return s, depth, nil
}

func expandTabs(s string) string {
	n := 0
	for n < len(s) && (s[n] == ' ' || s[n] == '\t') {
		n++
	}
	if !strings.Contains(s[:n], "\t") {
		return s
	}
	width := 0
	for _, ch := range s[:n] {
		if ch == '\t' {
			width += tabWidth
		} else {
			width++
		}
	}
	return strings.Repeat(" ", width) + s[n:]
}

func docQuote(s string) string {
	for _, q := range []string{`"""`, `'''`} {
		if strings.HasPrefix(s, q) {
			return q
		}
	}
	return ""
}

func dedent(lines []line) []line {
	if len(lines) == 0 {
		return lines
	}
	least := lines[0].indent
	for _, l := range lines[1:] {
		if l.indent < least {
			least = l.indent
		}
	}
	for i := range lines {
		lines[i].indent -= least
	}
	return lines
}
