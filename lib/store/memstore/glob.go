package memstore

// globMatch matches s against a redis style glob pattern supporting
// '*', '?', character classes ("[abc]", "[a-z]", "[^a]") and '\' escapes.
// Unlike path.Match, '/' has no special meaning.
func globMatch(pattern, s string) bool {
	for len(pattern) > 0 {
		switch pattern[0] {
		case '*':
			// Collapse consecutive stars
			for len(pattern) > 0 && pattern[0] == '*' {
				pattern = pattern[1:]
			}
			if len(pattern) == 0 {
				return true
			}
			for i := 0; i <= len(s); i++ {
				if globMatch(pattern, s[i:]) {
					return true
				}
			}
			return false
		case '?':
			if len(s) == 0 {
				return false
			}
			pattern, s = pattern[1:], s[1:]
		case '[':
			if len(s) == 0 {
				return false
			}
			matched, rest, ok := matchClass(pattern[1:], s[0])
			if !ok {
				// Unterminated class, treat '[' literally
				if s[0] != '[' {
					return false
				}
				pattern, s = pattern[1:], s[1:]
				continue
			}
			if !matched {
				return false
			}
			pattern, s = rest, s[1:]
		case '\\':
			if len(pattern) > 1 {
				pattern = pattern[1:]
			}
			fallthrough
		default:
			if len(s) == 0 || pattern[0] != s[0] {
				return false
			}
			pattern, s = pattern[1:], s[1:]
		}
	}
	return len(s) == 0
}

// matchClass matches c against the class starting after '[' and returns the
// pattern after the closing ']'
func matchClass(class string, c byte) (matched bool, rest string, ok bool) {
	negate := false
	if len(class) > 0 && class[0] == '^' {
		negate = true
		class = class[1:]
	}
	for i := 0; i < len(class); i++ {
		switch {
		case class[i] == ']':
			return matched != negate, class[i+1:], true
		case class[i] == '\\' && i+1 < len(class):
			i++
			if class[i] == c {
				matched = true
			}
		case i+2 < len(class) && class[i+1] == '-' && class[i+2] != ']':
			lo, hi := class[i], class[i+2]
			if lo > hi {
				lo, hi = hi, lo
			}
			if c >= lo && c <= hi {
				matched = true
			}
			i += 2
		default:
			if class[i] == c {
				matched = true
			}
		}
	}
	return false, "", false
}
