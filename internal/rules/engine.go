// Package rules rewrites committed dictation segments with deterministic
// substitutions, e.g. "pull request => PR" or "s/\bdeep\s*gram\b/Deepgram/g".
package rules

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
)

const defaultIterationLimit = 30

// Engine applies substitutions until the text stops changing.
type Engine struct {
	rules []rule
	limit int
}

type rule interface {
	apply(input string) (string, bool)
}

// Load reads rules from a file. A blank path or a missing file yields an
// engine without rules.
func Load(path string, limit int, inline []string) (*Engine, error) {
	engine := &Engine{limit: limit}
	if engine.limit <= 0 {
		engine.limit = defaultIterationLimit
	}

	if strings.TrimSpace(path) != "" {
		f, err := os.Open(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read rules file %q: %w", path, err)
		default:
			parsed, parseErr := parse(f)
			_ = f.Close()
			if parseErr != nil {
				return nil, fmt.Errorf("failed to parse rules file %q: %w", path, parseErr)
			}
			engine.rules = append(engine.rules, parsed...)
		}
	}

	if len(inline) > 0 {
		parsed, err := parse(strings.NewReader(strings.Join(inline, "\n")))
		if err != nil {
			return nil, fmt.Errorf("failed to parse inline rules: %w", err)
		}
		engine.rules = append(engine.rules, parsed...)
	}

	return engine, nil
}

// parse compiles one rule per non-blank, non-comment line.
func parse(r io.Reader) ([]rule, error) {
	var parsed []rule
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		compiled, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		parsed = append(parsed, compiled)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return parsed, nil
}

// Len reports the number of compiled rules.
func (e *Engine) Len() int {
	return len(e.rules)
}

// Apply runs every rule in order, repeating until a full pass changes nothing
// or the iteration limit is reached.
func (e *Engine) Apply(text string) (string, error) {
	result := text
	for i := 0; i < e.limit && len(e.rules) > 0; i++ {
		changed := false
		for _, r := range e.rules {
			next, ok := r.apply(result)
			if ok {
				result = next
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	return result, nil
}

func parseLine(line string) (rule, error) {
	if isSedRule(line) {
		return parseSedRule(line)
	}
	if strings.Contains(line, "=>") {
		return parseLiteralRule(line)
	}
	return nil, errors.New("unsupported rule format")
}

// literalRule replaces every case-insensitive occurrence of a phrase.
type literalRule struct {
	re          *regexp.Regexp
	replacement string
}

func parseLiteralRule(line string) (rule, error) {
	from, to, _ := strings.Cut(line, "=>")
	from = strings.TrimSpace(from)
	if from == "" {
		return nil, errors.New("literal rule source cannot be empty")
	}
	re, err := regexp.Compile("(?i)" + regexp.QuoteMeta(from))
	if err != nil {
		return nil, fmt.Errorf("invalid literal source: %w", err)
	}
	return literalRule{re: re, replacement: strings.TrimSpace(to)}, nil
}

func (r literalRule) apply(input string) (string, bool) {
	output := r.re.ReplaceAllLiteralString(input, r.replacement)
	return output, output != input
}

// sedRule is s<d>pattern<d>replacement<d>flags. Matching is case-insensitive
// unless overridden inside the pattern; without g only the first match changes.
type sedRule struct {
	re          *regexp.Regexp
	replacement string
	global      bool
}

func isSedRule(line string) bool {
	return len(line) > 1 && line[0] == 's' && !isWordOrSpace(line[1])
}

func parseSedRule(line string) (rule, error) {
	delim := line[1]
	fields, rest, err := splitDelimited(line[2:], delim, 2)
	if err != nil {
		return nil, err
	}

	modes := "i"
	global := false
	for _, flag := range strings.TrimSpace(rest) {
		switch flag {
		case 'g':
			global = true
		case 'i':
		case 'm', 's':
			modes += string(flag)
		case ' ':
		default:
			return nil, fmt.Errorf("unsupported regex flag %q", flag)
		}
	}

	re, err := regexp.Compile("(?" + modes + ")" + fields[0])
	if err != nil {
		return nil, fmt.Errorf("invalid regex: %w", err)
	}
	return sedRule{re: re, replacement: fields[1], global: global}, nil
}

func (r sedRule) apply(input string) (string, bool) {
	if r.global {
		output := r.re.ReplaceAllString(input, r.replacement)
		return output, output != input
	}

	loc := r.re.FindStringSubmatchIndex(input)
	if loc == nil {
		return input, false
	}
	var expanded []byte
	expanded = r.re.ExpandString(expanded, r.replacement, input, loc)
	output := input[:loc[0]] + string(expanded) + input[loc[1]:]
	return output, output != input
}

// splitDelimited reads n fields terminated by delim. Escaped delimiters are
// unescaped; other escapes pass through to the regex engine.
func splitDelimited(s string, delim byte, n int) ([]string, string, error) {
	fields := make([]string, 0, n)
	var current strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\\' && i+1 < len(s) {
			if s[i+1] == delim {
				current.WriteByte(delim)
			} else {
				current.WriteByte(c)
				current.WriteByte(s[i+1])
			}
			i++
			continue
		}
		if c == delim {
			fields = append(fields, current.String())
			current.Reset()
			if len(fields) == n {
				return fields, s[i+1:], nil
			}
			continue
		}
		current.WriteByte(c)
	}
	return nil, "", errors.New("unterminated expression")
}

func isWordOrSpace(c byte) bool {
	return (c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9') ||
		c == ' ' || c == '\t'
}
