// Package handoff builds the email compose links a finished request is
// handed to, and optionally pings the studio about it.
package handoff

import (
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/webforge-dev/webforge/model"
)

// Handoff is everything the email client needs for one submitted request.
type Handoff struct {
	RequestID  uuid.UUID
	Version    model.Version
	Body       string
	MailtoURL  string
	WebmailURL string
}

type Composer struct {
	To      string
	Subject string
}

// Body formats the message. The enhanced text is only included when it was
// the selected version.
func Body(raw, enhanced string, v model.Version) string {
	var b strings.Builder
	b.WriteString("Project Description:\n")
	b.WriteString(raw)
	if v == model.Enhanced && enhanced != "" {
		b.WriteString("\n\nAI Analysis:\n")
		b.WriteString(enhanced)
	}
	return b.String()
}

// MailtoURL returns a mailto link with the subject and body encoded the way
// encodeURIComponent would.
func (c Composer) MailtoURL(body string) string {
	return "mailto:" + c.To + "?subject=" + encodeComponent(c.Subject) + "&body=" + encodeComponent(body)
}

// WebmailURL returns a Gmail compose link for visitors without a mail client.
func (c Composer) WebmailURL(body string) string {
	q := url.Values{}
	q.Set("view", "cm")
	q.Set("fs", "1")
	q.Set("to", c.To)
	q.Set("su", c.Subject)
	q.Set("body", body)
	return "https://mail.google.com/mail/?" + q.Encode()
}

// Compose builds the handoff for a request and the chosen version.
func (c Composer) Compose(req *model.ProjectRequest, v model.Version) Handoff {
	body := Body(req.RawText, req.EnhancedText, v)
	return Handoff{
		RequestID:  req.ID,
		Version:    v,
		Body:       body,
		MailtoURL:  c.MailtoURL(body),
		WebmailURL: c.WebmailURL(body),
	}
}

// componentUnescaper restores the characters encodeURIComponent leaves alone
// but QueryEscape escapes.
var componentUnescaper = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

func encodeComponent(s string) string {
	return componentUnescaper.Replace(url.QueryEscape(s))
}
