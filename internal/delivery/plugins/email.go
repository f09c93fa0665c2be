package plugins

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/BATSNet/sims-sub000/internal/delivery"
	"github.com/BATSNet/sims-sub000/internal/incident"
	"github.com/Songmu/retry"
)

// smtpRetries is the number of quick transport-level retries around one SMTP
// submission, independent of the orchestrator's per-template retry policy.
const smtpRetries = 2

// Email delivers incidents as plain-text mail over SMTP.
type Email struct {
	host     string
	port     int
	from     string
	to       []string
	startTLS bool
	username string
	password string
	timeout  time.Duration
}

// NewEmail builds the email plugin from integration config and credentials.
func NewEmail(cfg map[string]any, creds map[string]string) (delivery.Plugin, error) {
	port := cfgInt(cfg, "smtp_port")
	if port == 0 {
		port = 587
	}
	return &Email{
		host:     cfgString(cfg, "smtp_host"),
		port:     port,
		from:     cfgString(cfg, "from_email"),
		to:       cfgStringList(cfg, "to_emails"),
		startTLS: cfgBool(cfg, "starttls"),
		username: creds["username"],
		password: creds["password"],
		timeout:  timeout(cfg),
	}, nil
}

// ValidateConfig checks the SMTP endpoint and addressing fields.
func (e *Email) ValidateConfig() error {
	if e.host == "" {
		return fmt.Errorf("smtp_host is required")
	}
	if e.from == "" {
		return fmt.Errorf("from_email is required")
	}
	if len(e.to) == 0 {
		return fmt.Errorf("to_emails must list at least one recipient")
	}
	for _, addr := range e.to {
		if !strings.Contains(addr, "@") {
			return fmt.Errorf("to_emails entry %q is not an email address", addr)
		}
	}
	return nil
}

// Send renders the mail body and submits it. The template's first line, when
// prefixed "Subject:", becomes the subject; otherwise a default subject
// embedding the incident code is used.
func (e *Email) Send(ctx context.Context, inc *incident.Incident, org *incident.Organization, payloadTemplate string) delivery.Result {
	start := time.Now()

	subject, body, derr := e.renderMail(inc, org, payloadTemplate)
	if derr != nil {
		return delivery.Failure(derr, time.Since(start))
	}

	msg := e.buildMessage(subject, body)
	err := retry.Retry(smtpRetries, time.Second, func() error {
		return e.submit(ctx, msg)
	})

	result := delivery.Result{
		Success:        err == nil,
		Duration:       time.Since(start),
		RequestURL:     fmt.Sprintf("smtp://%s", net.JoinHostPort(e.host, strconv.Itoa(e.port))),
		RequestPayload: msg,
	}
	if err != nil {
		result.ErrorMessage = fmt.Sprintf("smtp submission failed: %v", err)
		result.TimedOut = ctx.Err() == context.DeadlineExceeded
		result.Retryable = true
	}
	return result
}

// TestConnection dials the SMTP server and says EHLO, nothing more.
func (e *Email) TestConnection(ctx context.Context) (bool, string) {
	if err := e.ValidateConfig(); err != nil {
		return false, err.Error()
	}
	addr := net.JoinHostPort(e.host, strconv.Itoa(e.port))
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		return false, fmt.Sprintf("smtp server unreachable: %v", err)
	}
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))
	client, err := smtp.NewClient(conn, e.host)
	if err != nil {
		conn.Close()
		return false, fmt.Sprintf("smtp handshake failed: %v", err)
	}
	defer client.Close()
	if err := client.Hello("sims-delivery"); err != nil {
		return false, fmt.Sprintf("smtp EHLO failed: %v", err)
	}
	return true, "smtp server reachable"
}

// renderMail produces the subject and plain-text body. An empty template
// yields a default summary body.
func (e *Email) renderMail(inc *incident.Incident, org *incident.Organization, payloadTemplate string) (subject, body string, derr *delivery.Error) {
	subject = fmt.Sprintf("[%s] Incident %s: %s", strings.ToUpper(string(inc.Priority)), inc.Code, inc.Title)

	if strings.TrimSpace(payloadTemplate) == "" {
		body = defaultMailBody(inc, org)
		return subject, body, nil
	}

	tmpl, err := parseTemplate(payloadTemplate)
	if err != nil {
		return "", "", delivery.NewError(delivery.ErrorTypeProtocol, "parse_template", "", err)
	}
	var buf strings.Builder
	if err := tmpl.Execute(&buf, newTemplateData(inc, org)); err != nil {
		return "", "", delivery.NewError(delivery.ErrorTypeProtocol, "render_template", "", err)
	}
	body = buf.String()

	// First line "Subject: ..." overrides the default subject.
	if strings.HasPrefix(body, "Subject:") {
		line, rest, _ := strings.Cut(body, "\n")
		subject = strings.TrimSpace(strings.TrimPrefix(line, "Subject:"))
		body = strings.TrimPrefix(rest, "\n")
	}
	return subject, body, nil
}

func defaultMailBody(inc *incident.Incident, org *incident.Organization) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Incident %s has been reported to %s.\n\n", inc.Code, org.Name)
	fmt.Fprintf(&b, "Title:    %s\n", inc.Title)
	fmt.Fprintf(&b, "Priority: %s\n", inc.Priority)
	fmt.Fprintf(&b, "Category: %s\n", inc.Category)
	fmt.Fprintf(&b, "Status:   %s\n", inc.Status)
	if inc.HasPosition() {
		fmt.Fprintf(&b, "Position: %.6f, %.6f\n", *inc.Latitude, *inc.Longitude)
	}
	fmt.Fprintf(&b, "\n%s\n", inc.Description)
	if inc.Transcript != "" {
		fmt.Fprintf(&b, "\nVoice transcript:\n%s\n", inc.Transcript)
	}
	fmt.Fprintf(&b, "\nReported at %s\n", inc.CreatedAt.UTC().Format(time.RFC1123))
	return b.String()
}

func (e *Email) buildMessage(subject, body string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", e.from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(e.to, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return b.String()
}

// submit performs one SMTP submission with optional STARTTLS and LOGIN/PLAIN
// auth.
func (e *Email) submit(ctx context.Context, msg string) error {
	addr := net.JoinHostPort(e.host, strconv.Itoa(e.port))

	dialer := &net.Dialer{Timeout: e.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	// The timeout bounds the whole SMTP conversation, not just the dial.
	deadline := time.Now().Add(e.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)

	client, err := smtp.NewClient(conn, e.host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer client.Close()

	if err := client.Hello("sims-delivery"); err != nil {
		return fmt.Errorf("EHLO: %w", err)
	}

	if e.startTLS {
		if ok, _ := client.Extension("STARTTLS"); !ok {
			return fmt.Errorf("server does not support STARTTLS")
		}
		if err := client.StartTLS(&tls.Config{ServerName: e.host}); err != nil {
			return fmt.Errorf("STARTTLS: %w", err)
		}
	}

	if e.username != "" && e.password != "" {
		auth := smtp.PlainAuth("", e.username, e.password, e.host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	}

	if err := client.Mail(e.from); err != nil {
		return fmt.Errorf("MAIL FROM: %w", err)
	}
	for _, rcpt := range e.to {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("RCPT TO %s: %w", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("DATA: %w", err)
	}
	if _, err := w.Write([]byte(msg)); err != nil {
		w.Close()
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close message: %w", err)
	}
	return client.Quit()
}
