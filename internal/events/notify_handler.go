package events

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hamed0406/healthwatch/internal/domain"
	"github.com/hamed0406/healthwatch/internal/notify"
)

// NotifyHandler mails the website's alert address when a website is added
// to or removed from monitoring. App events are not mailed.
type NotifyHandler struct {
	Notifier notify.Notifier
	Log      *zap.Logger
}

func (h NotifyHandler) Handle(ctx context.Context, e Event) error {
	if e.Target.Kind != domain.KindWebsite || e.Recipient == "" {
		return nil
	}
	subject, body := lifecycleMessage(e)
	if subject == "" {
		return nil
	}
	if err := h.Notifier.Send(ctx, e.Recipient, subject, body); err != nil {
		h.Log.Warn("lifecycle_mail_failed",
			zap.String("target", e.Target.String()),
			zap.String("kind", string(e.Kind)),
			zap.Error(err),
		)
		return fmt.Errorf("lifecycle mail for %s: %w", e.Target, err)
	}
	return nil
}

func lifecycleMessage(e Event) (subject, body string) {
	var b strings.Builder
	b.WriteString("Dear Administrator,\n\n")
	switch e.Kind {
	case TargetAdded:
		subject = "🆕 Website Added to Monitoring: " + e.Name
		b.WriteString("A new website has been added to monitoring.\n\n")
		b.WriteString("Website Details:\n")
		fmt.Fprintf(&b, "- Name: %s\n- URL: %s\n- Alert Email: %s\n", e.Name, e.URL, e.Recipient)
		fmt.Fprintf(&b, "- Check Interval: Every %d seconds\n\n", e.CheckInterval)
		b.WriteString("You will be notified if any issues are detected.\n\n")
	case TargetRemoved:
		subject = "🗑️ Website Removed from Monitoring: " + e.Name
		fmt.Fprintf(&b, "The website '%s' has been permanently removed from monitoring.\n\n", e.Name)
		fmt.Fprintf(&b, "Deleted Website Details:\n- Name: %s\n- URL: %s\n\n", e.Name, e.URL)
		b.WriteString("All checks and alerts for this website have been discontinued.\n\n")
	default:
		return "", ""
	}
	b.WriteString("Best regards,\nhealthwatch")
	return subject, b.String()
}
