package blocks

import (
	"context"

	gomail "github.com/wneessen/go-mail"

	"github.com/strandlabs/strand/internal/domain"
	"github.com/strandlabs/strand/internal/ports"
)

// EmailSend delivers one message over SMTP. Demo mode logs the message and
// reports success without dialing anything.
type EmailSend struct {
	Base
	smtp *SMTPOptions
}

func (e *EmailSend) Execute(ctx context.Context, config map[string]interface{}, input interface{}, ectx ports.ExecutionContext) domain.NodeResult {
	to, err := requiredString(config, "to")
	if err != nil {
		return domain.FailedResult(err.Error())
	}
	subject, err := requiredString(config, "subject")
	if err != nil {
		return domain.FailedResult(err.Error())
	}
	body := stringOption(config, "body", "")

	if ectx.Mode() != domain.ModeProduction {
		ectx.Logger().Info("email suppressed outside production mode",
			"to", to,
			"subject", subject,
		)
		return domain.CompletedResult(map[string]interface{}{"sent": false, "to": to})
	}

	if e.smtp == nil {
		return domain.FailedResult("email.send requires SMTP settings")
	}

	msg := gomail.NewMsg()
	if err := msg.From(e.smtp.From); err != nil {
		return domain.FailedResult("invalid from address: " + err.Error())
	}
	if err := msg.To(to); err != nil {
		return domain.FailedResult("invalid to address: " + err.Error())
	}
	msg.Subject(subject)
	if boolOption(config, "html", false) {
		msg.SetBodyString(gomail.TypeTextHTML, body)
	} else {
		msg.SetBodyString(gomail.TypeTextPlain, body)
	}

	opts := []gomail.Option{
		gomail.WithPort(e.smtp.Port),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
	}
	if e.smtp.Password != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(e.smtp.Username),
			gomail.WithPassword(e.smtp.Password),
		)
	}

	client, err := gomail.NewClient(e.smtp.Host, opts...)
	if err != nil {
		return domain.FailedResult("failed to build SMTP client: " + err.Error())
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return domain.FailedResult("failed to send email: " + err.Error())
	}

	return domain.CompletedResult(map[string]interface{}{"sent": true, "to": to})
}
