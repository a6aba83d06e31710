package notify

import (
	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/types"
	"github.com/trigg3rX/triggerx-jobqueue/pkg/logging"
	"github.com/trigg3rX/triggerx-jobqueue/pkg/retry"
)

// Settings selects the channels to build. Empty credentials leave a channel
// out.
type Settings struct {
	MinLevel       types.AlertLevel
	RatePerMinute  int
	TelegramToken  string
	TelegramChatID int64
	Email          EmailConfig
	WebhookURL     string
}

// Build returns a notifier with a log channel plus every configured
// external channel. A channel that cannot be built is logged and skipped.
func Build(s Settings, logger logging.Logger) *Notifier {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	n := New(s.MinLevel, s.RatePerMinute, logger, NewLogChannel(logger.With("component", "alerts")))

	if s.TelegramToken != "" {
		if ch, err := NewTelegramChannel(s.TelegramToken, s.TelegramChatID); err != nil {
			logger.Warnf("Telegram alerts disabled: %v", err)
		} else {
			n.Add(ch)
		}
	}
	if s.Email.Host != "" && len(s.Email.To) > 0 {
		if ch, err := NewEmailChannel(s.Email); err != nil {
			logger.Warnf("Email alerts disabled: %v", err)
		} else {
			n.Add(ch)
		}
	}
	if s.WebhookURL != "" {
		client, err := retry.NewHTTPClient(retry.DefaultHTTPRetryConfig(), logger)
		if err == nil {
			var ch *WebhookChannel
			if ch, err = NewWebhookChannel(s.WebhookURL, client); err == nil {
				n.Add(ch)
			}
		}
		if err != nil {
			logger.Warnf("Webhook alerts disabled: %v", err)
		}
	}
	logger.Infof("Alert notifications enabled on %v", n.Channels())
	return n
}
