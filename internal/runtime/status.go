package runtime

import (
	"net/http"

	"github.com/drblury/auditflow/internal/runtime/jsoncodec"
)

// Status summarizes the wiring of the audit pipeline. It never includes
// credentials.
type Status struct {
	Enabled      bool     `json:"enabled"`
	PubSubSystem string   `json:"pubsubSystem"`
	Topic        string   `json:"topic"`
	Endpoints    []string `json:"endpoints"`
	ContextPath  string   `json:"contextPath,omitempty"`
	Templates    []string `json:"templates"`
}

// Status reports the current wiring.
func (s *Service) Status() Status {
	st := Status{
		Enabled:     s.Enabled(),
		Topic:       AuditTopic,
		Endpoints:   s.Endpoints(),
		ContextPath: s.contextPath,
		Templates:   s.contract.Templates(),
	}
	if s.Conf != nil {
		st.PubSubSystem = s.Conf.PubSubSystem
	}
	if st.Endpoints == nil {
		st.Endpoints = []string{}
	}
	if st.Templates == nil {
		st.Templates = []string{}
	}
	return st
}

// StatusHandler serves Status as JSON. Mount it under an excluded path such
// as /actuator/audit so that reading it is not audited itself.
func (s *Service) StatusHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := jsoncodec.Encode(w, s.Status()); err != nil {
			s.Logger.Error("Failed to encode audit status", err, nil)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		}
	})
}
