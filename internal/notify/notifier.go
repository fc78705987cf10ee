package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	texttemplate "text/template"
	"time"

	"github.com/wneessen/go-mail"
)

const subjectFormat = "Notificación de Infracción Detectada: placa %s"

var bodyTemplate = template.Must(template.New("infraction").Parse(`<html>
  <body>
    <p>Estimado propietario,</p>
    <p>Se ha detectado una infracción de tránsito asociada a la placa <strong>{{.Plate}}</strong>.</p>
    <p><strong>Detalles del Reporte:</strong></p>
    <ul>
      <li><strong>Placa:</strong> {{.Plate}}</li>
      <li><strong>Descripción de la Infracción:</strong> {{.Description}}</li>
    </ul>
    <p>Por favor, tome las medidas necesarias. Este es un sistema de notificación automatizado.</p>
    <p>Atentamente,<br>El Sistema de Monitoreo de Tránsito</p>
  </body>
</html>
`))

var plainTemplate = texttemplate.Must(texttemplate.New("infraction-plain").Parse(`Estimado propietario,

Se ha detectado una infracción de tránsito asociada a la placa {{.Plate}}.

Detalles del Reporte:
- Placa: {{.Plate}}
- Descripción de la Infracción: {{.Description}}

Por favor, tome las medidas necesarias. Este es un sistema de notificación automatizado.

Atentamente,
El Sistema de Monitoreo de Tránsito
`))

type Config struct {
	Host     string
	Port     int
	Address  string
	Password string
	Timeout  time.Duration
}

type sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// Notifier emails owners over implicit TLS (SMTPS). The relay certificate is verified.
type Notifier struct {
	from   string
	client sender
}

func New(cfg Config) (*Notifier, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("notify: sender address is required")
	}
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithSSL(),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.Address),
		mail.WithPassword(cfg.Password),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(cfg.Timeout))
	}
	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("notify: smtp client: %w", err)
	}
	return &Notifier{from: cfg.Address, client: client}, nil
}

// Send renders and delivers the infraction notice. Every failure comes back
// as an error; Send never panics on transport problems.
func (n *Notifier) Send(ctx context.Context, toEmail, plate, description string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("notify: send panicked: %v", r)
		}
	}()

	msg, err := n.buildMessage(toEmail, plate, description)
	if err != nil {
		return err
	}
	if err := n.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("notify: deliver to %s: %w", toEmail, err)
	}
	return nil
}

// buildMessage produces a multipart/alternative message: plain text first,
// HTML as the preferred alternative.
func (n *Notifier) buildMessage(toEmail, plate, description string) (*mail.Msg, error) {
	plain, err := renderPlain(plate, description)
	if err != nil {
		return nil, err
	}
	body, err := renderBody(plate, description)
	if err != nil {
		return nil, err
	}

	msg := mail.NewMsg()
	if err := msg.From(n.from); err != nil {
		return nil, fmt.Errorf("notify: from address: %w", err)
	}
	if err := msg.To(toEmail); err != nil {
		return nil, fmt.Errorf("notify: recipient address: %w", err)
	}
	msg.Subject(fmt.Sprintf(subjectFormat, plate))
	msg.SetBodyString(mail.TypeTextPlain, plain)
	msg.AddAlternativeString(mail.TypeTextHTML, body)
	return msg, nil
}

func renderPlain(plate, description string) (string, error) {
	var buf bytes.Buffer
	err := plainTemplate.Execute(&buf, struct {
		Plate       string
		Description string
	}{plate, description})
	if err != nil {
		return "", fmt.Errorf("notify: render plain body: %w", err)
	}
	return buf.String(), nil
}

func renderBody(plate, description string) (string, error) {
	var buf bytes.Buffer
	err := bodyTemplate.Execute(&buf, struct {
		Plate       string
		Description string
	}{plate, description})
	if err != nil {
		return "", fmt.Errorf("notify: render body: %w", err)
	}
	return buf.String(), nil
}

// Disabled fails every send with reason. It stands in when the SMTP client
// cannot be configured so reports still flow and surface as notify failures.
type Disabled struct {
	Reason error
}

func (d Disabled) Send(context.Context, string, string, string) error {
	return fmt.Errorf("notify: disabled: %w", d.Reason)
}
