package contract

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	errspkg "github.com/drblury/auditflow/internal/runtime/errors"
)

var paramToken = regexp.MustCompile(`\{([^/{}]+)\}`)

// Matcher is the compiled form of one path template.
type Matcher struct {
	Template string
	// Names holds the parameter names in template order.
	Names   []string
	pattern *regexp.Regexp

	literalSegments int
	literalLength   int
}

// Match applies the matcher to a concrete path and zips the captured values
// with Names positionally.
func (m *Matcher) Match(path string) (map[string]string, bool) {
	groups := m.pattern.FindStringSubmatch(path)
	if groups == nil {
		return nil, false
	}
	params := make(map[string]string, len(m.Names))
	for i, name := range m.Names {
		params[name] = groups[i+1]
	}
	return params, true
}

// Compiled is the immutable set of matchers built from a contract. It is safe
// for concurrent use once returned by Compile.
type Compiled struct {
	matchers []*Matcher
}

// Empty returns a resolver that never matches. It is used when path
// parameter resolution is disabled.
func Empty() *Compiled {
	return &Compiled{}
}

// Compile builds matchers for every template that declares path parameters.
//
// Templates are ordered so overlapping templates resolve deterministically:
// more literal segments first, then longer literal text, then the template
// text itself.
func Compile(doc Document) (*Compiled, error) {
	if doc.Templates == nil {
		return nil, errspkg.ErrContractRequired
	}
	if len(doc.Templates) == 0 {
		return nil, errspkg.ErrContractEmpty
	}

	matchers := make([]*Matcher, 0, len(doc.Templates))
	for tmpl, def := range doc.Templates {
		if strings.TrimSpace(tmpl) == "" {
			return nil, fmt.Errorf("%w: template with empty key", errspkg.ErrInvalidPathTemplate)
		}
		if def == nil {
			return nil, fmt.Errorf("%w: %q has no definition", errspkg.ErrInvalidPathTemplate, tmpl)
		}
		if !def.HasPathParameters() {
			continue
		}
		m, err := compileTemplate(tmpl)
		if err != nil {
			return nil, err
		}
		matchers = append(matchers, m)
	}

	sort.Slice(matchers, func(i, j int) bool {
		a, b := matchers[i], matchers[j]
		if a.literalSegments != b.literalSegments {
			return a.literalSegments > b.literalSegments
		}
		if a.literalLength != b.literalLength {
			return a.literalLength > b.literalLength
		}
		return a.Template < b.Template
	})

	return &Compiled{matchers: matchers}, nil
}

func compileTemplate(tmpl string) (*Matcher, error) {
	m := &Matcher{Template: tmpl}

	var expr strings.Builder
	expr.WriteString("^")
	last := 0
	for _, loc := range paramToken.FindAllStringSubmatchIndex(tmpl, -1) {
		literal := tmpl[last:loc[0]]
		if strings.ContainsAny(literal, "{}") {
			return nil, fmt.Errorf("%w: %q", errspkg.ErrInvalidPathTemplate, tmpl)
		}
		expr.WriteString(regexp.QuoteMeta(literal))
		expr.WriteString("([^/]+)")
		m.Names = append(m.Names, strings.TrimSpace(tmpl[loc[2]:loc[3]]))
		m.literalLength += len(literal)
		last = loc[1]
	}
	tail := tmpl[last:]
	if strings.ContainsAny(tail, "{}") {
		return nil, fmt.Errorf("%w: %q", errspkg.ErrInvalidPathTemplate, tmpl)
	}
	tail = strings.TrimSuffix(tail, "/")
	expr.WriteString(regexp.QuoteMeta(tail))
	expr.WriteString("/?$")
	m.literalLength += len(tail)

	for _, segment := range strings.Split(strings.Trim(tmpl, "/"), "/") {
		if segment != "" && !strings.Contains(segment, "{") {
			m.literalSegments++
		}
	}

	pattern, err := regexp.Compile(expr.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", errspkg.ErrInvalidPathTemplate, tmpl, err)
	}
	m.pattern = pattern
	return m, nil
}

// Resolve returns the path parameters of the first matching template, or an
// empty map when no template matches.
func (c *Compiled) Resolve(path string) map[string]string {
	if c != nil {
		for _, m := range c.matchers {
			if params, ok := m.Match(path); ok {
				return params
			}
		}
	}
	return map[string]string{}
}

// Templates lists the compiled templates in match order.
func (c *Compiled) Templates() []string {
	if c == nil {
		return nil
	}
	out := make([]string, len(c.matchers))
	for i, m := range c.matchers {
		out[i] = m.Template
	}
	return out
}

// Len reports the number of compiled matchers.
func (c *Compiled) Len() int {
	if c == nil {
		return 0
	}
	return len(c.matchers)
}
