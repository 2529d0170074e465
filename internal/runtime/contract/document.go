// Package contract compiles the path templates of an API contract into
// matchers and resolves path parameters of concrete request paths.
package contract

// InPath is the parameter location that marks a template as carrying path
// parameters.
const InPath = "path"

// Document is the in-memory form of an API contract: path templates keyed by
// their template text.
type Document struct {
	Templates map[string]*Template
}

// Template describes one path template. Parameters declared here apply to
// every operation of the template.
type Template struct {
	Parameters []Parameter
	Operations map[string]*Operation
}

// Operation is one HTTP method under a template.
type Operation struct {
	Parameters []Parameter
}

// Parameter is a named parameter tagged with its location (path, query,
// header, cookie).
type Parameter struct {
	Name string
	In   string
}

// HasPathParameters reports whether the template or any of its operations
// declares a parameter located in the path.
func (t *Template) HasPathParameters() bool {
	if t == nil {
		return false
	}
	if anyInPath(t.Parameters) {
		return true
	}
	for _, op := range t.Operations {
		if op != nil && anyInPath(op.Parameters) {
			return true
		}
	}
	return false
}

func anyInPath(params []Parameter) bool {
	for _, p := range params {
		if p.In == InPath {
			return true
		}
	}
	return false
}
