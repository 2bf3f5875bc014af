package annotation

import "strings"

// checkParentheses reports whether s has balanced parentheses and, if not,
// a short reason.
func checkParentheses(s string) (bool, string) {
	depth := 0
	for _, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return false, "closing parenthesis without an opening one"
			}
		}
	}
	if depth > 0 {
		return false, "unclosed parenthesis"
	}
	return true, ""
}

// splitTags returns the non-empty tags of s in order, with grouping
// parentheses removed and whitespace trimmed. empty reports a missing tag:
// a leading or trailing comma, two commas in a row, or a comma right after
// '(' or right before ')'.
func splitTags(s string) (tags []string, empty bool) {
	var cur strings.Builder
	// prev is the last significant token: '(' ',' ')' or 't' for a tag.
	prev := byte('(')
	flush := func() {
		t := strings.TrimSpace(cur.String())
		cur.Reset()
		if t != "" {
			tags = append(tags, t)
			prev = 't'
		}
	}
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case ',':
			flush()
			if prev != 't' && prev != ')' {
				empty = true
			}
			prev = ','
		case '(':
			flush()
			prev = '('
		case ')':
			flush()
			if prev == ',' {
				empty = true
			}
			prev = ')'
		default:
			cur.WriteByte(c)
		}
	}
	flush()
	if prev == ',' {
		empty = true
	}
	return tags, empty
}

// tagPrefix returns the library prefix of tag ("sc" in "sc:Sensory-event").
// A ':' after the first '/' belongs to a value and is not a prefix.
func tagPrefix(tag string) (string, bool) {
	i := strings.IndexByte(tag, ':')
	if i <= 0 {
		return "", false
	}
	if j := strings.IndexByte(tag, '/'); j >= 0 && j < i {
		return "", false
	}
	return tag[:i], true
}
