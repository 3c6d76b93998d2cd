package notifications

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	htmltemplate "html/template"
	"text/template"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/adboard/internal/models"
	"github.com/charlesng35/adboard/pkg/mail"
)

const invitationSubject = "You have been invited to {{.Workspace}}"

const invitationText = `{{.Inviter}} invited you to join {{.Workspace}} as {{.Role}}.

Accept the invitation:
{{.Link}}

The invitation expires on {{.Expires}}.
`

const invitationHTML = `<p>{{.Inviter}} invited you to join <strong>{{.Workspace}}</strong> as {{.Role}}.</p>
<p><a href="{{.Link}}">Accept the invitation</a></p>
<p>The invitation expires on {{.Expires}}.</p>
`

var (
	subjectTemplate = template.Must(template.New("subject").Parse(invitationSubject))
	textTemplate    = template.Must(template.New("text").Parse(invitationText))
	htmlTemplate    = htmltemplate.Must(htmltemplate.New("html").Parse(invitationHTML))
)

type invitationView struct {
	Workspace string
	Inviter   string
	Role      string
	Link      string
	Expires   string
}

// InvitationMailer emails new invitations to their recipients.
type InvitationMailer struct {
	db     *gorm.DB
	mailer mail.Mailer
}

// NewInvitationMailer builds a notifier that looks up display names in db and
// delivers through mailer.
func NewInvitationMailer(db *gorm.DB, mailer mail.Mailer) (*InvitationMailer, error) {
	if db == nil {
		return nil, errors.New("invitation mailer: db is required")
	}
	if mailer == nil {
		return nil, errors.New("invitation mailer: mailer is required")
	}
	return &InvitationMailer{db: db, mailer: mailer}, nil
}

// InvitationCreated renders and sends the invitation email. Without a link
// the recipient has nothing to act on, so nothing is sent.
func (m *InvitationMailer) InvitationCreated(ctx context.Context, invitation models.WorkspaceInvitation, _ string, link string) error {
	if link == "" {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	view, err := m.view(ctx, invitation, link)
	if err != nil {
		return err
	}

	var subject, text, html bytes.Buffer
	if err := subjectTemplate.Execute(&subject, view); err != nil {
		return fmt.Errorf("invitation mailer: render subject: %w", err)
	}
	if err := textTemplate.Execute(&text, view); err != nil {
		return fmt.Errorf("invitation mailer: render text: %w", err)
	}
	if err := htmlTemplate.Execute(&html, view); err != nil {
		return fmt.Errorf("invitation mailer: render html: %w", err)
	}

	return m.mailer.Send(ctx, mail.Message{
		To:      []string{invitation.Email},
		Subject: subject.String(),
		Text:    text.String(),
		HTML:    html.String(),
	})
}

func (m *InvitationMailer) view(ctx context.Context, invitation models.WorkspaceInvitation, link string) (invitationView, error) {
	view := invitationView{
		Workspace: "a workspace",
		Inviter:   "A teammate",
		Role:      string(invitation.Role),
		Link:      link,
		Expires:   invitation.ExpiresAt.UTC().Format(time.RFC1123),
	}

	var workspace models.Workspace
	err := m.db.WithContext(ctx).Select("id", "name").Take(&workspace, "id = ?", invitation.WorkspaceID).Error
	switch {
	case err == nil:
		view.Workspace = workspace.Name
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return view, fmt.Errorf("invitation mailer: load workspace: %w", err)
	}

	var inviter models.Profile
	err = m.db.WithContext(ctx).Select("id", "email", "full_name").Take(&inviter, "id = ?", invitation.InvitedBy).Error
	switch {
	case err == nil && inviter.FullName != "":
		view.Inviter = inviter.FullName
	case err == nil:
		view.Inviter = inviter.Email
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return view, fmt.Errorf("invitation mailer: load inviter: %w", err)
	}
	return view, nil
}
