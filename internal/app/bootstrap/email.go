package bootstrap

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	appconfig "github.com/wolfman30/hotel-concierge-platform/internal/config"
	"github.com/wolfman30/hotel-concierge-platform/internal/notify"
	"github.com/wolfman30/hotel-concierge-platform/pkg/logging"
)

// BuildPaymentMailer wires the configured email provider behind the payment
// link mailer. SES is the only provider that needs AWS credentials.
func BuildPaymentMailer(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*notify.PaymentLinkMailer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	var ses notify.SESAPI
	if cfg.EmailProvider == "ses" {
		awsCfg, err := LoadAWSConfig(ctx, cfg)
		if err != nil {
			return nil, err
		}
		ses = sesv2.NewFromConfig(awsCfg)
	}
	sender := notify.NewSender(notify.SenderConfig{
		Provider:       cfg.EmailProvider,
		SendGridAPIKey: cfg.SendGridAPIKey,
		FromEmail:      cfg.EmailFromAddress,
		FromName:       cfg.EmailFromName,
	}, ses, logger)
	return notify.NewPaymentLinkMailer(sender, logger), nil
}
