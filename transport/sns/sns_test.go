package sns

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	watermillsns "github.com/ThreeDotsLabs/watermill-aws/sns"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/auditflow/internal/runtime/config"
	"github.com/drblury/auditflow/transport"
)

func sinkConfig() *config.Config {
	cfg := config.Defaults()
	cfg.PubSubSystem = TransportName
	cfg.Broker.CallTimeout = 3 * time.Second
	cfg.AWS = config.AWSConfig{Region: "eu-west-1", AccountID: "123456789012"}
	return &cfg
}

type stubResolver struct {
	topics []string
}

func (r *stubResolver) ResolveTopic(_ context.Context, topic string) (watermillsns.TopicArn, error) {
	r.topics = append(r.topics, topic)
	return watermillsns.TopicArn("arn:aws:sns:eu-west-1:123456789012:" + topic), nil
}

type nopPublisher struct{}

func (nopPublisher) Publish(string, ...*message.Message) error { return nil }
func (nopPublisher) Close() error                              { return nil }

func stubFactories(t *testing.T) (*stubResolver, *watermillsns.PublisherConfig) {
	t.Helper()
	originalLoader, originalResolver, originalPublisher := DefaultConfigLoader, TopicResolverFactory, PublisherFactory
	t.Cleanup(func() {
		DefaultConfigLoader, TopicResolverFactory, PublisherFactory = originalLoader, originalResolver, originalPublisher
	})

	resolver := &stubResolver{}
	captured := &watermillsns.PublisherConfig{}
	DefaultConfigLoader = func(ctx context.Context, opts ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, nil
	}
	TopicResolverFactory = func(accountID, region string) (watermillsns.TopicResolver, error) {
		return resolver, nil
	}
	PublisherFactory = func(cfg watermillsns.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
		*captured = cfg
		return nopPublisher{}, nil
	}
	return resolver, captured
}

func TestRegister(t *testing.T) {
	original := transport.DefaultRegistry
	t.Cleanup(func() { transport.DefaultRegistry = original })
	transport.DefaultRegistry = transport.NewRegistry()
	Register()

	caps := transport.GetCapabilities(TransportName)
	assert.Equal(t, "sns", caps.Name)
	assert.True(t, caps.SupportsHeaders)
	assert.False(t, caps.RequiresBroker)
	assert.Equal(t, transport.SNSCapabilities, Capabilities())
}

func TestTopicName(t *testing.T) {
	assert.Equal(t, "jms-topic-auditing-event", TopicName("jms.topic.auditing.event"))
	assert.Equal(t, "audit_events-1", TopicName("audit_events-1"))
	assert.Equal(t, "a-b-c", TopicName("a/b c"))
}

func TestBuild(t *testing.T) {
	resolver, captured := stubFactories(t)

	tr, err := Build(context.Background(), sinkConfig(), watermill.NopLogger{})
	require.NoError(t, err)

	assert.Nil(t, tr.Subscriber)
	assert.Equal(t, []string{"arn:aws:sns:eu-west-1:123456789012:*"}, tr.Endpoints)
	assert.Equal(t, "eu-west-1", captured.AWSConfig.Region)
	assert.Empty(t, captured.OptFns)

	arn, err := captured.TopicResolver.ResolveTopic(context.Background(), "jms.topic.auditing.event")
	require.NoError(t, err)
	assert.Equal(t, watermillsns.TopicArn("arn:aws:sns:eu-west-1:123456789012:jms-topic-auditing-event"), arn)
	assert.Equal(t, []string{"jms-topic-auditing-event"}, resolver.topics)
}

func TestBuildWithLocalstackEndpoint(t *testing.T) {
	_, captured := stubFactories(t)

	cfg := sinkConfig()
	cfg.AWS.AccountID = ""
	cfg.AWS.Endpoint = "http://localhost:4566"
	cfg.AWS.AccessKeyID = "test"
	cfg.AWS.SecretAccessKey = "test"

	tr, err := Build(context.Background(), cfg, watermill.NopLogger{})
	require.NoError(t, err)
	assert.Len(t, captured.OptFns, 1)
	assert.Equal(t, []string{"http://localhost:4566"}, tr.Endpoints)
}

func TestBuildErrors(t *testing.T) {
	t.Run("config loader fails", func(t *testing.T) {
		stubFactories(t)
		DefaultConfigLoader = func(ctx context.Context, opts ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
			return aws.Config{}, errors.New("config error")
		}
		_, err := Build(context.Background(), sinkConfig(), watermill.NopLogger{})
		assert.ErrorContains(t, err, "config error")
	})

	t.Run("invalid endpoint", func(t *testing.T) {
		stubFactories(t)
		cfg := sinkConfig()
		cfg.AWS.Endpoint = "localhost"
		_, err := Build(context.Background(), cfg, watermill.NopLogger{})
		assert.ErrorContains(t, err, "invalid endpoint")
	})

	t.Run("publisher factory fails", func(t *testing.T) {
		stubFactories(t)
		PublisherFactory = func(cfg watermillsns.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
			return nil, errors.New("publisher error")
		}
		_, err := Build(context.Background(), sinkConfig(), watermill.NopLogger{})
		assert.ErrorContains(t, err, "publisher error")
	})
}

func TestResolveAccountAndRegion(t *testing.T) {
	cfg := sinkConfig()
	account, region := resolveAccountAndRegion(cfg, watermill.NopLogger{}, "us-east-1")
	assert.Equal(t, "123456789012", account)
	assert.Equal(t, "eu-west-1", region)

	cfg.AWS.Region = ""
	cfg.AWS.AccountID = "'123'"
	cfg.AWS.Endpoint = "http://localhost:4566"
	account, region = resolveAccountAndRegion(cfg, watermill.NopLogger{}, "us-east-1")
	assert.Equal(t, localstackAccountID, account)
	assert.Equal(t, "us-east-1", region)
}
