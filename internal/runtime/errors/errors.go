package errors

import sterrors "errors"

var (
	ErrConfigRequired           = sterrors.New("auditflow: configuration is required")
	ErrLoggerRequired           = sterrors.New("auditflow: logger is required")
	ErrPublisherRequired        = sterrors.New("auditflow: publisher is required")
	ErrTopicRequired            = sterrors.New("auditflow: topic is required")
	ErrEnvelopeRequired         = sterrors.New("auditflow: audit envelope is required")
	ErrContractRequired         = sterrors.New("auditflow: api contract is required")
	ErrContractEmpty            = sterrors.New("auditflow: api contract defines no paths")
	ErrContractNotFound         = sterrors.New("auditflow: no api contract found at the configured location")
	ErrInvalidPathTemplate      = sterrors.New("auditflow: invalid path template in api contract")
	ErrResponseAlreadyCommitted = sterrors.New("auditflow: captured response already copied to client")
)

// ConfigValidationError reports every configuration problem found at startup.
type ConfigValidationError struct {
	Err error
}

func (e ConfigValidationError) Error() string {
	return "auditflow: invalid configuration: " + e.Err.Error()
}

func (e ConfigValidationError) Unwrap() error {
	return e.Err
}
