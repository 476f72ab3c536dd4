package sns

import (
	"context"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/go-carrier-billing/internal/config"
)

// SMSSender delivers post-completion notification texts via AWS SNS.
type SMSSender interface {
	SendSMS(ctx context.Context, to, message string) error
}

type sender struct {
	client   *sns.Client
	senderID string
}

func NewSender(cfg *config.Config) (SMSSender, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.SNSRegion),
	)
	if err != nil {
		return nil, err
	}
	return &sender{client: sns.NewFromConfig(awsCfg), senderID: cfg.SNSSenderID}, nil
}

func (s *sender) SendSMS(ctx context.Context, to, message string) error {
	_, err := s.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber: &to,
		Message:     &message,
		MessageAttributes: map[string]types.MessageAttributeValue{
			"AWS.SNS.SMS.SenderID": strAttr(s.senderID),
			// Billing confirmations must not be throttled as promotional traffic.
			"AWS.SNS.SMS.SMSType": strAttr("Transactional"),
		},
	})
	return err
}

func strAttr(v string) types.MessageAttributeValue {
	dt := "String"
	return types.MessageAttributeValue{DataType: &dt, StringValue: &v}
}
