package utils

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"gopkg.in/gomail.v2"

	"venturelink/engine"
)

// Embedded email template shared by every negotiation/meeting event mail.
const eventTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>{{.Subject}}</title>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { color: #2c3e50; border-bottom: 1px solid #eee; padding-bottom: 10px; }
        .content { margin: 20px 0; }
        .button { display: inline-block; padding: 10px 20px; background-color: #3498db; color: white; text-decoration: none; border-radius: 4px; }
        .footer { margin-top: 30px; font-size: 12px; color: #7f8c8d; text-align: center; }
    </style>
</head>
<body>
    <div class="header">
        <h2>{{.Subject}}</h2>
    </div>

    <div class="content">
        <p>Hello {{.RecipientName}},</p>
        <p>{{.Body}}</p>
        {{if .CTAURL}}
        <p style="text-align: center;">
            <a href="{{.CTAURL}}" class="button">{{.CTALabel}}</a>
        </p>
        <p>Or copy and paste this link into your browser:<br>
        <small>{{.CTAURL}}</small></p>
        {{end}}
    </div>

    <div class="footer">
        <p>You received this email because you are part of an active negotiation.</p>
        <p>© {{.Year}} VentureLink. All rights reserved.</p>
    </div>
</body>
</html>`

// Mailer sends templated event emails over SMTP. Sends are best effort: the
// dispatcher logs failures and never propagates them.
type Mailer struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string

	tmpl *template.Template
}

func NewMailer(host string, port int, username, password, fromName, fromEmail string) *Mailer {
	return &Mailer{
		host:      host,
		port:      port,
		username:  username,
		password:  password,
		fromName:  fromName,
		fromEmail: fromEmail,
		tmpl:      template.Must(template.New("event").Parse(eventTemplate)),
	}
}

// SendEventMail renders and sends one mail per recipient so each greeting
// carries the recipient's own name.
func (m *Mailer) SendEventMail(payload engine.EmailPayload) error {
	for _, recipient := range payload.Recipients {
		var body bytes.Buffer
		err := m.tmpl.Execute(&body, struct {
			Subject       string
			RecipientName string
			Body          string
			CTAURL        string
			CTALabel      string
			Year          int
		}{
			Subject:       payload.Subject,
			RecipientName: recipient.Name,
			Body:          payload.Body,
			CTAURL:        payload.CTAURL,
			CTALabel:      payload.CTALabel,
			Year:          time.Now().Year(),
		})
		if err != nil {
			return fmt.Errorf("render event mail: %w", err)
		}

		msg := gomail.NewMessage()
		msg.SetHeader("From", fmt.Sprintf("%s <%s>", m.fromName, m.fromEmail))
		msg.SetHeader("To", recipient.Address)
		msg.SetHeader("Subject", payload.Subject)
		msg.SetBody("text/html", body.String())

		dialer := gomail.NewDialer(m.host, m.port, m.username, m.password)
		if err := dialer.DialAndSend(msg); err != nil {
			return fmt.Errorf("send event mail to %s: %w", recipient.Address, err)
		}
	}
	return nil
}
