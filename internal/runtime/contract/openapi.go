package contract

import (
	"fmt"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/getkin/kin-openapi/openapi3"

	errspkg "github.com/drblury/auditflow/internal/runtime/errors"
)

// FromOpenAPI converts an OpenAPI document into a contract Document. A path
// item that is null in the document is kept as a nil template so Compile
// rejects it.
func FromOpenAPI(doc *openapi3.T) (Document, error) {
	if doc == nil || doc.Paths == nil {
		return Document{}, errspkg.ErrContractRequired
	}

	items := doc.Paths.Map()
	out := Document{Templates: make(map[string]*Template, len(items))}
	for path, item := range items {
		if item == nil {
			out.Templates[path] = nil
			continue
		}
		tmpl := &Template{
			Parameters: convertParameters(item.Parameters),
			Operations: make(map[string]*Operation),
		}
		for method, op := range item.Operations() {
			if op == nil {
				continue
			}
			tmpl.Operations[method] = &Operation{Parameters: convertParameters(op.Parameters)}
		}
		out.Templates[path] = tmpl
	}
	return out, nil
}

func convertParameters(refs openapi3.Parameters) []Parameter {
	params := make([]Parameter, 0, len(refs))
	for _, ref := range refs {
		if ref == nil || ref.Value == nil {
			continue
		}
		params = append(params, Parameter{Name: ref.Value.Name, In: ref.Value.In})
	}
	return params
}

// LoadOpenAPI loads the first file matching pattern in lexical order. The
// pattern may be a plain path or a doublestar glob such as "api/**/*.yaml".
func LoadOpenAPI(pattern string) (*openapi3.T, string, error) {
	if pattern == "" {
		return nil, "", errspkg.ErrContractRequired
	}
	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, "", fmt.Errorf("expand contract pattern %q: %w", pattern, err)
	}
	if len(matches) == 0 {
		return nil, "", fmt.Errorf("%w: %s", errspkg.ErrContractNotFound, pattern)
	}
	sort.Strings(matches)
	path := matches[0]

	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = true
	doc, err := loader.LoadFromFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("failed to load api contract from %s: %w", path, err)
	}
	return doc, path, nil
}

// Load locates, parses and compiles the contract named by pattern.
func Load(pattern string) (*Compiled, error) {
	doc, _, err := LoadOpenAPI(pattern)
	if err != nil {
		return nil, err
	}
	converted, err := FromOpenAPI(doc)
	if err != nil {
		return nil, err
	}
	return Compile(converted)
}
