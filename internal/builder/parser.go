package builder

import (
	"regexp"
	"strings"
)

type stmtKind int

const (
	sPass stmtKind = iota
	sAssign
	sAwaitAssign
	sAwait
	sExpr
	sIf
	sWhile
	sFor
	sBreak
	sContinue
	sReturn
	sYield
	sRaise
	sTry
)

// stmt is one parsed statement. Which fields are set depends on kind.
type stmt struct {
	kind stmtKind
	line int

	name string // assignment target, loop value name
	key  string // loop key name (two-name for)
	expr string // value, condition, iterable or call source

	body   []*stmt
	orelse []*stmt

	// try statements
	handler    []*stmt
	hasHandler bool
	finally    []*stmt
	hasFinally bool
	types      []string
	errName    string
}

var (
	identRe   = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	annotated = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)\s*:\s*\S.*$`)
	forRe     = regexp.MustCompile(`(?s)^for\s+\(?\s*([A-Za-z_][A-Za-z0-9_]*)\s*(?:,\s*([A-Za-z_][A-Za-z0-9_]*)\s*)?\)?\s+in\s+(.+)$`)
	exceptRe  = regexp.MustCompile(`(?s)^except(?:\s+(.+?))?(?:\s+as\s+([A-Za-z_][A-Za-z0-9_]*))?$`)
)

// unsupported maps leading keywords to the construct they introduce.
var unsupported = map[string]string{
	"def":      "nested function definitions",
	"class":    "class definitions",
	"import":   "import statements",
	"from":     "import statements",
	"with":     "with statements",
	"global":   "global declarations",
	"nonlocal": "nonlocal declarations",
	"lambda":   "lambda expressions",
	"del":      "del statements",
	"async":    "async for/with/def",
}

type parser struct {
	lines []line
	pos   int
	// open holds the indentation widths of the blocks being parsed, outermost
	// first: the indent map from block depth to width.
	open []int
}

func parse(lines []line) ([]*stmt, error) {
	p := &parser{lines: lines}
	if len(lines) == 0 {
		return nil, nil
	}
	stmts, err := p.block(lines[0].indent)
	if err != nil {
		return nil, err
	}
	if p.pos < len(p.lines) {
		return nil, errorf(p.lines[p.pos].num, "unindent does not match any outer indentation level")
	}
	return stmts, nil
}

func (p *parser) block(indent int) ([]*stmt, error) {
	p.open = append(p.open, indent)
	defer func() { p.open = p.open[:len(p.open)-1] }()

	var out []*stmt
	for p.pos < len(p.lines) {
		ln := p.lines[p.pos]
		if ln.indent < indent {
			if !p.isOpen(ln.indent) {
				return nil, errorf(ln.num, "unindent does not match any outer indentation level")
			}
			break
		}
		if ln.indent > indent {
			return nil, errorf(ln.num, "unexpected indent")
		}
		s, err := p.statement(ln)
		if err != nil {
			return nil, err
		}
		if s != nil {
			out = append(out, s)
		}
	}
	return out, nil
}

func (p *parser) isOpen(indent int) bool {
	for _, w := range p.open {
		if w == indent {
			return true
		}
	}
	return false
}

// suite parses the indented block that follows the compound header ln.
func (p *parser) suite(ln line) ([]*stmt, error) {
	if p.pos >= len(p.lines) || p.lines[p.pos].indent <= ln.indent {
		return nil, errorf(ln.num, "expected an indented block")
	}
	return p.block(p.lines[p.pos].indent)
}

// peek returns the next line if it continues the compound statement at ln's
// indentation with keyword kw.
func (p *parser) peek(ln line, kw string) (line, bool) {
	if p.pos >= len(p.lines) {
		return line{}, false
	}
	next := p.lines[p.pos]
	if next.indent != ln.indent || keyword(next.text) != kw {
		return line{}, false
	}
	return next, true
}

func (p *parser) statement(ln line) (*stmt, error) {
	kw := keyword(ln.text)
	if what, ok := unsupported[kw]; ok {
		return nil, errorf(ln.num, "unsupported construct: %s", what)
	}
	if strings.HasPrefix(ln.text, "@") {
		return nil, errorf(ln.num, "decorators are only allowed before the routine definition")
	}

	switch kw {
	case "if":
		return p.ifStmt(ln, "if")
	case "while", "for":
		return p.loop(ln, kw)
	case "try":
		return p.tryStmt(ln)
	case "elif", "else", "except", "finally":
		return nil, errorf(ln.num, "unexpected %q without a matching statement", kw)
	}

	p.pos++
	s := &stmt{line: ln.num}
	switch kw {
	case "pass":
		return nil, exact(ln, "pass")
	case "break":
		s.kind = sBreak
		return s, exact(ln, "break")
	case "continue":
		s.kind = sContinue
		return s, exact(ln, "continue")
	case "return":
		s.kind = sReturn
		s.expr = strings.TrimSpace(strings.TrimPrefix(ln.text, "return"))
		return s, nil
	case "yield":
		s.kind = sYield
		s.expr = strings.TrimSpace(strings.TrimPrefix(ln.text, "yield"))
		if keyword(s.expr) == "from" {
			return nil, errorf(ln.num, "unsupported construct: yield from")
		}
		if s.expr == "" {
			s.expr = "None"
		}
		return s, nil
	case "raise":
		s.kind = sRaise
		s.expr = strings.TrimSpace(strings.TrimPrefix(ln.text, "raise"))
		if s.expr == "" {
			return nil, errorf(ln.num, "bare raise is not supported; raise a value")
		}
		return s, nil
	case "await":
		s.kind = sAwait
		s.expr = strings.TrimSpace(strings.TrimPrefix(ln.text, "await"))
		return s, nil
	}

	if i := assignIndex(ln.text); i >= 0 {
		return p.assignment(ln, s, i)
	}
	s.kind = sExpr
	s.expr = ln.text
	return s, nil
}

func exact(ln line, kw string) error {
	if ln.text != kw {
		return errorf(ln.num, "unexpected text after %q", kw)
	}
	return nil
}

func (p *parser) assignment(ln line, s *stmt, i int) (*stmt, error) {
	target := strings.TrimSpace(ln.text[:i])
	value := strings.TrimSpace(ln.text[i+1:])

	op := ""
	if n := len(target); n > 0 && strings.ContainsRune("+-*/%", rune(target[n-1])) {
		op = target[n-1:]
		target = strings.TrimSpace(target[:n-1])
	}
	if m := annotated.FindStringSubmatch(target); m != nil && op == "" {
		target = m[1]
	}
	switch {
	case identRe.MatchString(target):
	case strings.Contains(target, ","):
		return nil, errorf(ln.num, "unsupported construct: tuple assignment")
	default:
		return nil, errorf(ln.num, "unsupported assignment target %q", target)
	}
	if value == "" {
		return nil, errorf(ln.num, "missing value in assignment to %q", target)
	}
	if keyword(value) == "lambda" {
		return nil, errorf(ln.num, "unsupported construct: lambda expressions")
	}

	s.name = target
	if keyword(value) == "await" {
		if op != "" {
			return nil, errorf(ln.num, "augmented assignment from await is not supported")
		}
		s.kind = sAwaitAssign
		s.expr = strings.TrimSpace(strings.TrimPrefix(value, "await"))
		return s, nil
	}
	s.kind = sAssign
	s.expr = value
	if op != "" {
		s.expr = target + " " + op + " (" + value + ")"
	}
	return s, nil
}

func (p *parser) ifStmt(ln line, kw string) (*stmt, error) {
	cond, err := header(ln, kw)
	if err != nil {
		return nil, err
	}
	p.pos++
	body, err := p.suite(ln)
	if err != nil {
		return nil, err
	}
	s := &stmt{kind: sIf, line: ln.num, expr: cond, body: body}

	if next, ok := p.peek(ln, "elif"); ok {
		sub, err := p.ifStmt(next, "elif")
		if err != nil {
			return nil, err
		}
		s.orelse = []*stmt{sub}
	} else if next, ok := p.peek(ln, "else"); ok {
		if _, err := header(next, "else"); err != nil {
			return nil, err
		}
		p.pos++
		if s.orelse, err = p.suite(next); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (p *parser) loop(ln line, kw string) (*stmt, error) {
	rest, err := header(ln, kw)
	if err != nil {
		return nil, err
	}
	s := &stmt{kind: sWhile, line: ln.num, expr: rest}
	if kw == "for" {
		m := forRe.FindStringSubmatch("for " + rest)
		if m == nil {
			return nil, errorf(ln.num, "malformed for statement")
		}
		s.kind = sFor
		if m[2] != "" {
			s.key, s.name = m[1], m[2]
		} else {
			s.name = m[1]
		}
		s.expr = strings.TrimSpace(m[3])
	}
	p.pos++
	if s.body, err = p.suite(ln); err != nil {
		return nil, err
	}
	if _, ok := p.peek(ln, "else"); ok {
		return nil, errorf(p.lines[p.pos].num, "unsupported construct: %s-else", kw)
	}
	return s, nil
}

func (p *parser) tryStmt(ln line) (*stmt, error) {
	if _, err := header(ln, "try"); err != nil {
		return nil, err
	}
	p.pos++
	body, err := p.suite(ln)
	if err != nil {
		return nil, err
	}
	s := &stmt{kind: sTry, line: ln.num, body: body}

	if next, ok := p.peek(ln, "except"); ok {
		clause, err := header(next, "except")
		if err != nil {
			return nil, err
		}
		m := exceptRe.FindStringSubmatch(strings.TrimSpace("except " + clause))
		if m == nil {
			return nil, errorf(next.num, "malformed except clause")
		}
		if m[1] != "" {
			for _, t := range strings.Split(strings.Trim(m[1], "() "), ",") {
				if t = strings.TrimSpace(t); t != "" {
					s.types = append(s.types, t)
				}
			}
		}
		s.errName = m[2]
		s.hasHandler = true
		p.pos++
		if s.handler, err = p.suite(next); err != nil {
			return nil, err
		}
		if again, ok := p.peek(ln, "except"); ok {
			return nil, errorf(again.num, "unsupported construct: multiple except clauses")
		}
	}
	if next, ok := p.peek(ln, "else"); ok {
		return nil, errorf(next.num, "unsupported construct: try-else")
	}
	if next, ok := p.peek(ln, "finally"); ok {
		if _, err := header(next, "finally"); err != nil {
			return nil, err
		}
		s.hasFinally = true
		p.pos++
		if s.finally, err = p.suite(next); err != nil {
			return nil, err
		}
	}
	if !s.hasHandler && !s.hasFinally {
		return nil, errorf(ln.num, "try statement needs an except or finally clause")
	}
	return s, nil
}

// header returns the text between keyword kw and the trailing colon.
func header(ln line, kw string) (string, error) {
	if !strings.HasSuffix(ln.text, ":") {
		return "", errorf(ln.num, "expected ':' at the end of the %s statement; bodies must start on their own line", kw)
	}
	rest := strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(ln.text, kw), ":"))
	switch kw {
	case "if", "elif", "while", "for":
		if rest == "" {
			return "", errorf(ln.num, "missing condition in %s statement", kw)
		}
	case "else", "try", "finally":
		if rest != "" {
			return "", errorf(ln.num, "unexpected text after %q", kw)
		}
	}
	return rest, nil
}

// keyword returns the leading identifier of text.
func keyword(text string) string {
	end := 0
	for end < len(text) && (isIdentByte(text[end])) {
		end++
	}
	return text[:end]
}

func isIdentByte(b byte) bool {
	return b == '_' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}

// assignIndex returns the index of the top-level '=' of an assignment, or -1.
// Comparison operators, '=' inside brackets and string literals are skipped.
func assignIndex(text string) int {
	depth := 0
	inString := false
	for i := 0; i < len(text); i++ {
		ch := text[i]
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
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case '=':
			if depth != 0 {
				continue
			}
			if i+1 < len(text) && (text[i+1] == '=' || text[i+1] == '>') {
				i++
				continue
			}
			if i > 0 && strings.ContainsRune("=!<>", rune(text[i-1])) {
				continue
			}
			return i
		case '?':
			if depth == 0 {
				return -1
			}
		}
	}
	return -1
}
