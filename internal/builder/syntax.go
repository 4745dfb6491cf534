package builder

import "strings"

// translateOps rewrites the word operators of the routine language into HCL
// operators outside string literals: "and" → &&, "or" → ||, "not" → !,
// "is not" → != and "is" → ==.
func translateOps(src string) string {
	var b strings.Builder
	inString := false
	prev := byte(0) // last non-space byte written outside strings
	for i := 0; i < len(src); {
		ch := src[i]
		if inString {
			b.WriteByte(ch)
			switch ch {
			case '\\':
				if i+1 < len(src) {
					b.WriteByte(src[i+1])
					i++
				}
			case '"':
				inString = false
			}
			i++
			continue
		}
		if ch == '"' {
			inString = true
			b.WriteByte(ch)
			prev = ch
			i++
			continue
		}
		if !isWordStart(ch) {
			b.WriteByte(ch)
			if ch != ' ' && ch != '\t' && ch != '\n' {
				prev = ch
			}
			i++
			continue
		}

		j := i
		for j < len(src) && isWordByte(src[j]) {
			j++
		}
		word := src[i:j]
		if prev == '.' {
			b.WriteString(word)
			prev = 'a'
			i = j
			continue
		}
		switch word {
		case "and":
			b.WriteString("&&")
		case "or":
			b.WriteString("||")
		case "not":
			b.WriteString("!")
		case "is":
			k := j
			for k < len(src) && src[k] == ' ' {
				k++
			}
			if strings.HasPrefix(src[k:], "not") && (k+3 == len(src) || !isWordByte(src[k+3])) {
				b.WriteString("!=")
				j = k + 3
			} else {
				b.WriteString("==")
			}
		default:
			b.WriteString(word)
		}
		prev = 'a'
		i = j
	}
	return b.String()
}

func isWordStart(b byte) bool {
	return b == '_' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z'
}

// isWordByte includes '-', which HCL allows inside identifiers.
func isWordByte(b byte) bool {
	return isIdentByte(b) || b == '-'
}
