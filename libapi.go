package auditflow

import (
	runtimepkg "github.com/drblury/auditflow/internal/runtime"
	configpkg "github.com/drblury/auditflow/internal/runtime/config"
	contractpkg "github.com/drblury/auditflow/internal/runtime/contract"
	envelopepkg "github.com/drblury/auditflow/internal/runtime/envelope"
	errspkg "github.com/drblury/auditflow/internal/runtime/errors"
	idspkg "github.com/drblury/auditflow/internal/runtime/ids"
	jsoncodec "github.com/drblury/auditflow/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/auditflow/internal/runtime/logging"
	metadatapkg "github.com/drblury/auditflow/internal/runtime/metadata"
	transportpkg "github.com/drblury/auditflow/internal/runtime/transport"
	newtransport "github.com/drblury/auditflow/transport"
)

type (
	Config               = configpkg.Config
	BrokerConfig         = configpkg.BrokerConfig
	HTTPAuditConfig      = configpkg.HTTPAuditConfig
	Service              = runtimepkg.Service
	ServiceDependencies  = runtimepkg.ServiceDependencies
	Status               = runtimepkg.Status
	Transport            = transportpkg.Transport
	TransportFactory     = transportpkg.Factory
	TransportFactoryFunc = transportpkg.FactoryFunc

	Producer       = runtimepkg.Producer
	AuditPublisher = runtimepkg.AuditPublisher
	AuditMetrics   = runtimepkg.AuditMetrics

	Envelope        = envelopepkg.Envelope
	EnvelopeBuilder = envelopepkg.Builder
	RequestContext  = envelopepkg.RequestContext
	ResponseContext = envelopepkg.ResponseContext

	Contract         = contractpkg.Compiled
	ContractDocument = contractpkg.Document
	ContractTemplate = contractpkg.Template

	Metadata = metadatapkg.Metadata

	LogFields                 = loggingpkg.LogFields
	ServiceLogger             = loggingpkg.ServiceLogger
	EntryLogger               = loggingpkg.EntryLogger
	EntryLoggerAdapter[T any] = loggingpkg.EntryLoggerAdapter[T]

	ConfigValidationError = errspkg.ConfigValidationError

	// Modular transport types
	TransportBuilder      = newtransport.Builder
	TransportConfig       = newtransport.Config
	TransportRegistry     = newtransport.Registry
	TransportCapabilities = newtransport.Capabilities
)

var (
	NewService     = runtimepkg.NewService
	TryNewService  = runtimepkg.TryNewService
	ValidateConfig = configpkg.ValidateConfig
	LoadConfig     = configpkg.Load
	DefaultConfig  = configpkg.Defaults

	NewAuditPublisher      = runtimepkg.NewAuditPublisher
	NewAuditMetrics        = runtimepkg.NewAuditMetrics
	NewMessageFromEnvelope = runtimepkg.NewMessageFromEnvelope
	NewEnvelopeBuilder     = envelopepkg.NewBuilder
	IsExcludedPath         = runtimepkg.IsExcludedPath

	LoadContract    = contractpkg.Load
	CompileContract = contractpkg.Compile
	EmptyContract   = contractpkg.Empty

	// Transport registry. Import individual sinks via
	// _ "github.com/drblury/auditflow/transport/kafka" when building a
	// custom registry; the Service registers all built-in sinks.
	DefaultTransportRegistry  = newtransport.DefaultRegistry
	RegisterTransport         = newtransport.Register
	RegisterTransportWithCaps = newtransport.RegisterWithCapabilities
	BuildTransport            = newtransport.Build
	GetCapabilities           = newtransport.GetCapabilities

	Marshal       = jsoncodec.Marshal
	MarshalIndent = jsoncodec.MarshalIndent
	Unmarshal     = jsoncodec.Unmarshal
	Encode        = jsoncodec.Encode
	Decode        = jsoncodec.Decode

	ErrConfigRequired           = errspkg.ErrConfigRequired
	ErrLoggerRequired           = errspkg.ErrLoggerRequired
	ErrPublisherRequired        = errspkg.ErrPublisherRequired
	ErrTopicRequired            = errspkg.ErrTopicRequired
	ErrEnvelopeRequired         = errspkg.ErrEnvelopeRequired
	ErrContractRequired         = errspkg.ErrContractRequired
	ErrContractEmpty            = errspkg.ErrContractEmpty
	ErrContractNotFound         = errspkg.ErrContractNotFound
	ErrInvalidPathTemplate      = errspkg.ErrInvalidPathTemplate
	ErrResponseAlreadyCommitted = errspkg.ErrResponseAlreadyCommitted
	ErrUnknownTransport         = newtransport.ErrUnknownTransport

	NewSlogServiceLogger      = loggingpkg.NewSlogServiceLogger
	NewZapServiceLogger       = loggingpkg.NewZapServiceLogger
	NewWatermillServiceLogger = loggingpkg.NewWatermillServiceLogger

	NewMetadata = metadatapkg.New
	Selects     = metadatapkg.Selects

	CreateULID    = idspkg.CreateULID
	NewEnvelopeID = idspkg.NewEnvelopeID
)

// Audit constants.
const (
	AuditTopic     = runtimepkg.AuditTopic
	AuditEventName = envelopepkg.EventName

	MetadataKeyEventName     = metadatapkg.KeyEventName
	MetadataKeyCorrelationID = metadatapkg.KeyCorrelationID
	MetadataKeyContentType   = metadatapkg.KeyContentType
	MetadataKeyTraceID       = metadatapkg.KeyTraceID
	MetadataKeySpanID        = metadatapkg.KeySpanID

	DefaultUserIDHeader            = configpkg.DefaultUserIDHeader
	DefaultClientCorrelationHeader = configpkg.DefaultClientCorrelationHeader
)

func NewEntryServiceLogger[T EntryLoggerAdapter[T]](entry T) ServiceLogger {
	return loggingpkg.NewEntryServiceLogger(entry)
}
