package runtime

import (
	"context"
	"net/http"
	"strings"

	"github.com/drblury/auditflow/internal/runtime/capture"
	envelopepkg "github.com/drblury/auditflow/internal/runtime/envelope"
	loggingpkg "github.com/drblury/auditflow/internal/runtime/logging"
)

// Requests whose path contains one of these fragments are never audited.
var excludedPathFragments = []string{"/health", "/actuator"}

// IsExcludedPath reports whether requests to path bypass auditing.
func IsExcludedPath(path string) bool {
	for _, fragment := range excludedPathFragments {
		if strings.Contains(path, fragment) {
			return true
		}
	}
	return false
}

// Middleware wraps next with request and response auditing. It satisfies the
// func(http.Handler) http.Handler shape used by chi and net/http stacks.
// With auditing disabled next is returned unchanged.
func (s *Service) Middleware(next http.Handler) http.Handler {
	if s == nil || !s.enabled {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if IsExcludedPath(r.URL.Path) {
			s.metrics.RecordSkipped(ReasonExcludedPath)
			next.ServeHTTP(w, r)
			return
		}
		s.serveAudited(w, r, next)
	})
}

func (s *Service) serveAudited(w http.ResponseWriter, r *http.Request, next http.Handler) {
	// Publishing outlives a cancelled request; the sink's call timeout bounds it.
	ctx := context.WithoutCancel(r.Context())
	fields := loggingpkg.LogFields{"method": r.Method, "path": r.URL.Path}

	captured := capture.NewRequest(r)
	if err := captured.Err(); err != nil {
		s.Logger.Error("Unable to parse request payload for audit", err, fields)
	}

	headers := envelopepkg.HeaderMap(r.Header)
	s.producer.Publish(ctx, s.builder.FromRequest(envelopepkg.RequestContext{
		ContextPath: s.contextPath,
		Headers:     headers,
		Query:       envelopepkg.QueryMap(r.URL.Query()),
		PathParams:  s.contract.Resolve(s.servletPath(r.URL.Path)),
		Body:        captured.Body(),
	}))

	// A panic in next leaves the buffer uncommitted so outer recovery can
	// still write its own status.
	resp := capture.NewResponse(w)
	next.ServeHTTP(resp, r)

	s.auditResponse(ctx, resp, headers, fields)
	if err := resp.CopyBodyToResponse(); err != nil {
		s.Logger.Error("Unable to copy captured response to client", err, fields)
	}
}

func (s *Service) auditResponse(ctx context.Context, resp *capture.Response, headers map[string]string, fields loggingpkg.LogFields) {
	body, err := resp.Body()
	if err != nil {
		s.Logger.Error("Unable to parse response payload for audit", err, fields)
		body = ""
	}
	if body == "" {
		s.metrics.RecordSkipped(ReasonEmptyResponse)
		return
	}
	s.producer.Publish(ctx, s.builder.FromResponse(envelopepkg.ResponseContext{
		ContextPath: s.contextPath,
		Headers:     headers,
		Body:        body,
	}))
}

// servletPath strips the configured context path so the remainder can be
// matched against the contract templates.
func (s *Service) servletPath(path string) string {
	if s.contextPath == "" {
		return path
	}
	rest, ok := strings.CutPrefix(path, s.contextPath)
	if !ok || (rest != "" && rest[0] != '/') {
		return path
	}
	if rest == "" {
		return "/"
	}
	return rest
}

func normalizeContextPath(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	if p == "" {
		return ""
	}
	return "/" + p
}
