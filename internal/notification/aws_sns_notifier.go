package notification

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/stellar/go-stellar-sdk/support/log"
)

const (
	tenantIDAttribute = "tenantId"
	realmAttribute    = "realm"
	// SNS subjects are limited to 100 characters.
	maxSubjectLength = 100
)

type awsSNSInterface interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// awsSNSNotifier publishes notifications to an SNS topic. Subscribers filter on the tenantId and realm attributes.
type awsSNSNotifier struct {
	snsService awsSNSInterface
	topicARN   string
}

var _ Notifier = (*awsSNSNotifier)(nil)

func (a *awsSNSNotifier) NotifierType() NotifierType {
	return NotifierTypeAWSSNS
}

func (a *awsSNSNotifier) Notify(ctx context.Context, n Notification) error {
	if err := n.Validate(); err != nil {
		return fmt.Errorf("validating notification: %w", err)
	}

	attributes := map[string]types.MessageAttributeValue{
		tenantIDAttribute: stringAttribute(n.TenantID),
		realmAttribute:    stringAttribute(n.Realm),
	}
	for name, value := range n.Attributes {
		if _, reserved := attributes[name]; reserved || value == "" {
			continue
		}
		attributes[name] = stringAttribute(value)
	}

	subject := n.Subject
	if len(subject) > maxSubjectLength {
		subject = subject[:maxSubjectLength]
	}

	message := n.Message
	if message == "" {
		message = n.Subject
	}

	output, err := a.snsService.Publish(ctx, &sns.PublishInput{
		TopicArn:          aws.String(a.topicARN),
		Subject:           aws.String(subject),
		Message:           aws.String(message),
		MessageAttributes: attributes,
	})
	if err != nil {
		return fmt.Errorf("publishing AWS SNS notification: %w", err)
	}

	log.Ctx(ctx).Debugf("AWS SNS published notification %s for tenant %s", aws.ToString(output.MessageId), n.Realm)
	return nil
}

func stringAttribute(value string) types.MessageAttributeValue {
	return types.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(value)}
}

// NewAWSSNSNotifier creates a notifier that publishes to the SNS topic topicARN.
func NewAWSSNSNotifier(ctx context.Context, accessKeyID, secretAccessKey, region, topicARN string) (Notifier, error) {
	topicARN = strings.TrimSpace(topicARN)
	if topicARN == "" {
		return nil, fmt.Errorf("aws sns topic ARN is empty")
	}

	cfg, err := loadAWSConfig(ctx, accessKeyID, secretAccessKey, region)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config for SNS: %w", err)
	}

	return &awsSNSNotifier{snsService: sns.NewFromConfig(cfg), topicARN: topicARN}, nil
}

func loadAWSConfig(ctx context.Context, accessKeyID, secretAccessKey, region string) (aws.Config, error) {
	if accessKeyID == "" {
		return aws.Config{}, fmt.Errorf("aws accessKeyID is empty")
	}
	if secretAccessKey == "" {
		return aws.Config{}, fmt.Errorf("aws secretAccessKey is empty")
	}
	if region == "" {
		return aws.Config{}, fmt.Errorf("aws region is empty")
	}

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, "")),
	)
	if err != nil {
		return aws.Config{}, fmt.Errorf("loading default AWS config: %w", err)
	}
	return cfg, nil
}
