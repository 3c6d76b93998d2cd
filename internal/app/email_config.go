package app

import (
	"github.com/charlesng35/adboard/internal/services"
	"github.com/charlesng35/adboard/pkg/mail"
)

// SMTPSettings converts EmailConfig to the mail package representation.
func (c EmailConfig) SMTPSettings() mail.SMTPSettings {
	return mail.SMTPSettings{
		Enabled:  c.SMTP.Enabled,
		Host:     c.SMTP.Host,
		Port:     c.SMTP.Port,
		Username: c.SMTP.Username,
		Password: c.SMTP.Password,
		From:     c.SMTP.From,
		UseTLS:   c.SMTP.UseTLS,
		Timeout:  c.SMTP.Timeout,
	}
}

// ServiceOptions converts InvitationConfig into InvitationService options.
// The notifier is wired separately since it needs a mailer.
func (c InvitationConfig) ServiceOptions() []services.InvitationOption {
	opts := []services.InvitationOption{
		services.WithInvitationTTL(c.TTL),
		services.WithInvitationTokenSize(c.TokenBytes),
	}
	if c.BaseURL != "" {
		opts = append(opts, services.WithInvitationBaseURL(c.BaseURL))
	}
	return opts
}
