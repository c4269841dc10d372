// Package notification delivers tenant lifecycle notifications to the people operating the tenant.
package notification

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
)

type NotifierType string

const (
	// NotifierTypeDryRun logs the notifications, for development environments.
	NotifierTypeDryRun NotifierType = "DRY_RUN"
	// NotifierTypeAWSSNS publishes the notifications to an AWS SNS topic.
	NotifierTypeAWSSNS NotifierType = "AWS_SNS"
)

func (nt NotifierType) All() []NotifierType {
	return []NotifierType{NotifierTypeDryRun, NotifierTypeAWSSNS}
}

func ParseNotifierType(notifierTypeStr string) (NotifierType, error) {
	nType := NotifierType(strings.ToUpper(strings.TrimSpace(notifierTypeStr)))
	if slices.Contains(NotifierType("").All(), nType) {
		return nType, nil
	}
	return "", fmt.Errorf("invalid notifier type %q", notifierTypeStr)
}

var (
	ErrTenantRequired  = errors.New("tenant id and realm are required")
	ErrSubjectRequired = errors.New("subject is required")
)

type Notification struct {
	TenantID   string
	Realm      string
	Subject    string
	Message    string
	Attributes map[string]string
}

func (n Notification) Validate() error {
	if n.TenantID == "" || n.Realm == "" {
		return ErrTenantRequired
	}
	if strings.TrimSpace(n.Subject) == "" {
		return ErrSubjectRequired
	}
	return nil
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
	NotifierType() NotifierType
}

type NotifierOptions struct {
	NotifierType NotifierType

	// AWS
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	AWSRegion          string
	AWSSNSTopicARN     string
}

func GetNotifier(ctx context.Context, opts NotifierOptions) (Notifier, error) {
	switch opts.NotifierType {
	case NotifierTypeDryRun:
		return NewDryRunNotifier(), nil
	case NotifierTypeAWSSNS:
		return NewAWSSNSNotifier(ctx, opts.AWSAccessKeyID, opts.AWSSecretAccessKey, opts.AWSRegion, opts.AWSSNSTopicARN)
	default:
		return nil, fmt.Errorf("unknown notifier type: %q", opts.NotifierType)
	}
}
