// Package notify publishes reconciliation failure notifications.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/roach88/vaultsync/internal/secret"
)

// maxSubjectLen is the SNS limit on message subjects.
const maxSubjectLen = 100

// Publisher is the subset of the SNS client the notifier uses.
type Publisher interface {
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Identity resolves the AWS account the process runs under.
type Identity interface {
	GetCallerIdentity(ctx context.Context, in *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// SNS publishes failure reports to an SNS topic.
type SNS struct {
	publisher Publisher
	identity  Identity
	topicARN  string
	region    string

	mu      sync.Mutex
	account string
}

// NewSNS creates a notifier publishing to topicARN.
func NewSNS(publisher Publisher, identity Identity, topicARN, region string) *SNS {
	return &SNS{
		publisher: publisher,
		identity:  identity,
		topicARN:  topicARN,
		region:    region,
	}
}

// NewSNSFromConfig creates a notifier using clients built from cfg.
func NewSNSFromConfig(cfg aws.Config, topicARN string) *SNS {
	return NewSNS(sns.NewFromConfig(cfg), sts.NewFromConfig(cfg), topicARN, cfg.Region)
}

// Notify publishes one message listing every failed identifier.
func (n *SNS) Notify(ctx context.Context, prefix string, errs []secret.ItemError) error {
	account, err := n.accountID(ctx)
	if err != nil {
		return fmt.Errorf("resolve account: %w", err)
	}
	msg, err := Message(account, n.region, errs)
	if err != nil {
		return err
	}

	_, err = n.publisher.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(n.topicARN),
		Subject:  aws.String(Subject(prefix)),
		Message:  aws.String(msg),
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", n.topicARN, err)
	}
	return nil
}

// accountID caches the first successful lookup; failures are retried on the
// next notification.
func (n *SNS) accountID(ctx context.Context) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.account != "" {
		return n.account, nil
	}
	out, err := n.identity.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", err
	}
	n.account = aws.ToString(out.Account)
	return n.account, nil
}

// Message renders the notification body.
func Message(account, region string, errs []secret.ItemError) (string, error) {
	body, err := json.Marshal(errs)
	if err != nil {
		return "", fmt.Errorf("encode failures: %w", err)
	}
	return fmt.Sprintf("Account: %s, Region: %s. Failed to create/update the following secrets: %s",
		account, region, body), nil
}

// Subject renders the notification subject, ASCII-quoted and truncated to
// the SNS limit.
func Subject(prefix string) string {
	s := fmt.Sprintf("vaultsync: failures syncing %+q", prefix)
	if len(s) > maxSubjectLen {
		s = s[:maxSubjectLen]
	}
	return s
}
