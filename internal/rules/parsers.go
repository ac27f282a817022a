package rules

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// DefaultParsers recognizes sed-style regex rules and literal "a => b" rules.
// Regex comes first so "s/x => y/z/" is not read as a literal.
func DefaultParsers() []Parser {
	return []Parser{RegexParser{}, LiteralParser{}}
}

// LiteralParser handles "from => to". Matching ignores case.
type LiteralParser struct{}

func (LiteralParser) CanParse(line string) bool {
	return strings.Contains(line, "=>")
}

func (LiteralParser) Parse(line string) (Rule, error) {
	from, to, _ := strings.Cut(line, "=>")
	from = strings.TrimSpace(from)
	if from == "" {
		return nil, errors.New("literal rule source cannot be empty")
	}
	re, err := regexp.Compile("(?i)" + regexp.QuoteMeta(from))
	if err != nil {
		return nil, fmt.Errorf("invalid literal source: %w", err)
	}
	return replaceRule{re: re, replacement: strings.TrimSpace(to), global: true}, nil
}

// RegexParser handles s<d>pattern<d>replacement<d>flags with any
// non-alphanumeric delimiter d. Rules are case-insensitive; g replaces every
// match, m and s set the matching regexp flags.
type RegexParser struct{}

func (RegexParser) CanParse(line string) bool {
	return len(line) > 1 && line[0] == 's' && !isWordOrSpace(line[1])
}

func (RegexParser) Parse(line string) (Rule, error) {
	if len(line) < 2 {
		return nil, errors.New("invalid regex rule")
	}
	delim := line[1]
	if isWordOrSpace(delim) {
		return nil, errors.New("regex delimiter must be non-alphanumeric")
	}

	pattern, next, err := scanDelimited(line, 2, delim)
	if err != nil {
		return nil, fmt.Errorf("invalid regex pattern: %w", err)
	}
	replacement, next, err := scanDelimited(line, next, delim)
	if err != nil {
		return nil, fmt.Errorf("invalid regex replacement: %w", err)
	}

	inline := "i"
	global := false
	for _, flag := range strings.TrimSpace(line[next:]) {
		switch flag {
		case 'i', ' ':
		case 'g':
			global = true
		case 'm', 's':
			if !strings.ContainsRune(inline, flag) {
				inline += string(flag)
			}
		default:
			return nil, fmt.Errorf("unsupported regex flag %q", flag)
		}
	}

	re, err := regexp.Compile("(?" + inline + ")" + pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regex: %w", err)
	}
	return replaceRule{re: re, replacement: replacement, global: global}, nil
}

type replaceRule struct {
	re          *regexp.Regexp
	replacement string
	global      bool
}

func (r replaceRule) Apply(input string) (string, bool) {
	if r.global {
		output := r.re.ReplaceAllString(input, r.replacement)
		return output, output != input
	}

	loc := r.re.FindStringSubmatchIndex(input)
	if loc == nil {
		return input, false
	}
	expanded := r.re.ExpandString(nil, r.replacement, input, loc)
	output := input[:loc[0]] + string(expanded) + input[loc[1]:]
	return output, output != input
}

// scanDelimited reads up to the next unescaped delim. Escapes are kept so the
// regexp engine sees them.
func scanDelimited(line string, start int, delim byte) (string, int, error) {
	if start >= len(line) {
		return "", 0, errors.New("unexpected end of expression")
	}

	var b strings.Builder
	escaped := false
	for i := start; i < len(line); i++ {
		c := line[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\':
			escaped = true
		case c == delim:
			return b.String(), i + 1, nil
		}
		b.WriteByte(c)
	}
	return "", 0, errors.New("unterminated expression")
}

func isWordOrSpace(c byte) bool {
	return (c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9') ||
		c == ' ' || c == '\t'
}
