package rules

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/afero"

	"voxdispatch/internal/domain"
)

const defaultIterationLimit = 30

// Rule rewrites dictated text. changed reports whether output differs.
type Rule interface {
	Apply(input string) (output string, changed bool)
}

// Parser compiles one rules-file line.
type Parser interface {
	CanParse(line string) bool
	Parse(line string) (Rule, error)
}

// Engine applies substitution rules to dictated text until it stops changing.
type Engine struct {
	rules          []Rule
	iterationLimit int
}

// Load reads a rules file. A blank path or a missing file yields an engine
// that passes text through unchanged.
func Load(fsys afero.Fs, path string, iterationLimit int) (*Engine, error) {
	return LoadWithParsers(fsys, path, iterationLimit, DefaultParsers())
}

func LoadWithParsers(fsys afero.Fs, path string, iterationLimit int, parsers []Parser) (*Engine, error) {
	if iterationLimit <= 0 {
		iterationLimit = defaultIterationLimit
	}
	if len(parsers) == 0 {
		parsers = DefaultParsers()
	}

	engine := &Engine{iterationLimit: iterationLimit}
	if strings.TrimSpace(path) == "" {
		return engine, nil
	}

	contents, err := afero.ReadFile(fsys, path)
	if errors.Is(err, fs.ErrNotExist) {
		return engine, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read rules file %q: %v", domain.ErrConfig, path, err)
	}

	rules, err := Parse(string(contents), parsers)
	if err != nil {
		return nil, fmt.Errorf("%w: rules file %q: %v", domain.ErrConfig, path, err)
	}
	engine.rules = rules
	return engine, nil
}

// Parse compiles rules text. Blank lines and # comments are skipped.
func Parse(contents string, parsers []Parser) ([]Rule, error) {
	var rules []Rule
	for index, raw := range strings.Split(contents, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parser, ok := lo.Find(parsers, func(p Parser) bool { return p.CanParse(line) })
		if !ok {
			return nil, fmt.Errorf("line %d: unsupported rule format", index+1)
		}
		rule, err := parser.Parse(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", index+1, err)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// Len returns the number of compiled rules.
func (e *Engine) Len() int {
	return len(e.rules)
}

// Apply runs every rule in file order, repeating the sweep until a pass
// changes nothing or the iteration limit is reached.
func (e *Engine) Apply(text string) (string, error) {
	result := text
	for iteration := 0; iteration < e.iterationLimit; iteration++ {
		changed := false
		for _, rule := range e.rules {
			if next, ok := rule.Apply(result); ok {
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
