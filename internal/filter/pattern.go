package filter

import (
	"regexp"
	"strings"
)

// compiledPattern is an rsync-style glob compiled to a regular expression.
type compiledPattern struct {
	re      *regexp.Regexp
	source  string
	dirOnly bool // trailing "/": only matches directories
}

// compilePattern compiles pattern. A leading "/" or any inner "/" anchors the
// pattern at the scan root; otherwise it may match any trailing path
// segment sequence, typically the basename.
func compilePattern(pattern string) (*compiledPattern, error) {
	cp := &compiledPattern{source: pattern}

	if trimmed, ok := strings.CutSuffix(pattern, "/"); ok {
		cp.dirOnly = true
		pattern = trimmed
	}

	anchored := strings.Contains(pattern, "/")
	pattern = strings.TrimPrefix(pattern, "/")

	expr := globToRegex(pattern) + "$"
	if anchored {
		expr = "^" + expr
	} else {
		expr = "(^|/)" + expr
	}

	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, err
	}
	cp.re = re
	return cp, nil
}

func (cp *compiledPattern) match(relPath string, isDir bool) bool {
	if cp.dirOnly && !isDir {
		return false
	}
	return cp.re.MatchString(relPath)
}

func (cp *compiledPattern) String() string { return cp.source }

// globToRegex translates glob syntax: "**/" spans directories, "**" matches
// anything, "*" and "?" stay within one segment, and [...] classes pass
// through with "!" negation.
func globToRegex(glob string) string {
	var b strings.Builder
	for i := 0; i < len(glob); i++ {
		switch glob[i] {
		case '*':
			switch {
			case strings.HasPrefix(glob[i:], "**/"):
				b.WriteString("(.*/)?")
				i += 2
			case strings.HasPrefix(glob[i:], "**"):
				b.WriteString(".*")
				i++
			default:
				b.WriteString("[^/]*")
			}
		case '?':
			b.WriteString("[^/]")
		case '[':
			end := classEnd(glob, i)
			if end < 0 {
				b.WriteString(`\[`)
				continue
			}
			class := glob[i+1 : end]
			if rest, ok := strings.CutPrefix(class, "!"); ok {
				class = "^" + rest
			}
			b.WriteString("[" + class + "]")
			i = end
		default:
			b.WriteString(regexp.QuoteMeta(glob[i : i+1]))
		}
	}
	return b.String()
}

// classEnd returns the index of the "]" closing the class opened at start,
// or -1 when the class is unterminated.
func classEnd(glob string, start int) int {
	j := start + 1
	if j < len(glob) && glob[j] == '!' {
		j++
	}
	if j < len(glob) && glob[j] == ']' {
		j++
	}
	for ; j < len(glob); j++ {
		if glob[j] == ']' {
			return j
		}
	}
	return -1
}
