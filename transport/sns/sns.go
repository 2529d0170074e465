// Package sns provides the AWS SNS audit sink. Envelopes are published to an
// SNS topic derived from the audit topic name; subscribers attach their own
// SQS queues or endpoints to it.
package sns

import (
	"context"
	"fmt"
	nethttp "net/http"
	"net/url"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	watermillsns "github.com/ThreeDotsLabs/watermill-aws/sns"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	amazonsns "github.com/aws/aws-sdk-go-v2/service/sns"
	smithyendpoints "github.com/aws/smithy-go/endpoints"

	"github.com/drblury/auditflow/transport"
)

// TransportName is the name used to register this transport.
const TransportName = "sns"

const (
	localstackAccountID = "000000000000"
	awsAccountIDLength  = 12
)

// DefaultConfigLoader allows overriding the AWS config loader for testing.
var DefaultConfigLoader = awsconfig.LoadDefaultConfig

// TopicResolverFactory allows overriding the topic resolver creation for testing.
var TopicResolverFactory = func(accountID, region string) (watermillsns.TopicResolver, error) {
	return watermillsns.NewGenerateArnTopicResolver(accountID, region)
}

// PublisherFactory allows overriding the publisher creation for testing.
var PublisherFactory = func(cfg watermillsns.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return watermillsns.NewPublisher(cfg, logger)
}

func init() {
	Register()
}

// Register registers the SNS transport with the default registry.
func Register() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.SNSCapabilities)
}

// Build creates the SNS sink. It only publishes.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	awsCfg, err := loadAWSConfig(ctx, cfg, logger)
	if err != nil {
		return transport.Transport{}, err
	}

	accountID, region := resolveAccountAndRegion(cfg, logger, awsCfg.Region)
	resolver, err := TopicResolverFactory(accountID, region)
	if err != nil {
		logger.Error("Failed to create SNS topic resolver", err, watermill.LogFields{
			"accountID": accountID,
			"region":    region,
		})
		return transport.Transport{}, fmt.Errorf("sns: %w", err)
	}

	optFns, err := endpointOptions(cfg)
	if err != nil {
		return transport.Transport{}, err
	}

	publisher, err := PublisherFactory(watermillsns.PublisherConfig{
		AWSConfig:     *awsCfg,
		OptFns:        optFns,
		TopicResolver: topicNameResolver{next: resolver},
		Marshaler:     watermillsns.DefaultMarshalerUnmarshaler{},
	}, logger)
	if err != nil {
		return transport.Transport{}, err
	}

	logger.Info("Created SNS publisher", watermill.LogFields{
		"accountID":       accountID,
		"region":          region,
		"custom_endpoint": cfg.GetAWSEndpoint() != "",
	})

	return transport.Transport{
		Publisher: publisher,
		Endpoints: []string{endpointName(cfg, accountID, region)},
	}, nil
}

// Capabilities returns the capabilities of this transport.
func Capabilities() transport.Capabilities {
	return transport.SNSCapabilities
}

// TopicName maps a topic to a valid SNS topic name. SNS allows only
// alphanumerics, hyphens and underscores, so jms.topic.auditing.event
// becomes jms-topic-auditing-event.
func TopicName(topic string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '-'
	}, topic)
}

type topicNameResolver struct {
	next watermillsns.TopicResolver
}

func (r topicNameResolver) ResolveTopic(ctx context.Context, topic string) (watermillsns.TopicArn, error) {
	return r.next.ResolveTopic(ctx, TopicName(topic))
}

func loadAWSConfig(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (*aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error

	if region := cfg.GetAWSRegion(); region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	if accessKey, secretKey := cfg.GetAWSAccessKeyID(), cfg.GetAWSSecretAccessKey(); accessKey != "" && secretKey != "" {
		logger.Info("Using static AWS credentials from config", nil)
		opts = append(opts, awsconfig.WithCredentialsProvider(staticCredentialsProvider(accessKey, secretKey)))
	}

	awsCfg, err := DefaultConfigLoader(ctx, opts...)
	if err != nil {
		logger.Error("Failed to load AWS config", err, watermill.LogFields{"requested_region": cfg.GetAWSRegion()})
		return nil, fmt.Errorf("sns: load aws config: %w", err)
	}
	// Some loaders ignore the region option.
	if region := cfg.GetAWSRegion(); region != "" {
		awsCfg.Region = region
	}

	tlsCfg, err := transport.ClientTLS(cfg)
	if err != nil {
		return nil, fmt.Errorf("sns: %w", err)
	}
	client := &nethttp.Client{Timeout: cfg.GetCallTimeout()}
	if tlsCfg != nil {
		rt := nethttp.DefaultTransport.(*nethttp.Transport).Clone()
		rt.TLSClientConfig = tlsCfg
		client.Transport = rt
	}
	awsCfg.HTTPClient = client

	return &awsCfg, nil
}

func endpointOptions(cfg transport.Config) ([]func(*amazonsns.Options), error) {
	raw := cfg.GetAWSEndpoint()
	if raw == "" {
		return nil, nil
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("sns: invalid endpoint %q", raw)
	}
	return []func(*amazonsns.Options){
		amazonsns.WithEndpointResolverV2(watermillsns.OverrideEndpointResolver{
			Endpoint: smithyendpoints.Endpoint{URI: *parsed},
		}),
	}, nil
}

func resolveAccountAndRegion(cfg transport.Config, logger watermill.LoggerAdapter, fallbackRegion string) (string, string) {
	accountID := strings.Trim(cfg.GetAWSAccountID(), "\"' ")
	region := cfg.GetAWSRegion()
	if region == "" {
		region = fallbackRegion
	}

	localstack := cfg.GetAWSEndpoint() != ""
	switch {
	case accountID == "" && localstack:
		logger.Info("AWS account ID empty; using LocalStack default", watermill.LogFields{"accountID": localstackAccountID})
		accountID = localstackAccountID
	case len(accountID) != awsAccountIDLength && localstack:
		logger.Info("Invalid AWS account ID; falling back to LocalStack default", watermill.LogFields{"accountID": accountID})
		accountID = localstackAccountID
	}
	return accountID, region
}

func endpointName(cfg transport.Config, accountID, region string) string {
	if raw := cfg.GetAWSEndpoint(); raw != "" {
		if u, err := url.Parse(raw); err == nil {
			return u.Redacted()
		}
	}
	return fmt.Sprintf("arn:aws:sns:%s:%s:*", region, accountID)
}

func staticCredentialsProvider(accessKeyID, secretAccessKey string) aws.CredentialsProvider {
	return aws.CredentialsProviderFunc(func(ctx context.Context) (aws.Credentials, error) {
		return aws.Credentials{
			AccessKeyID:     accessKeyID,
			SecretAccessKey: secretAccessKey,
		}, nil
	})
}
