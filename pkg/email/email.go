package email

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"
)

// Send delivers one plain-text message. The connection is bounded by
// timeout so a stalled SMTP server fails the current phase instead of
// hanging the job.
func Send(server string, port int, username, password, from string, to []string, subject, body string, timeout time.Duration) error {
	if server == "" || from == "" {
		return fmt.Errorf("smtp configuration incomplete")
	}
	for _, addr := range to {
		if !strings.Contains(addr, "@") {
			return fmt.Errorf("invalid email address: %s", addr)
		}
	}

	addr := fmt.Sprintf("%s:%d", server, port)
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return fmt.Errorf("smtp dial %s: %w", addr, err)
	}
	_ = conn.SetDeadline(time.Now().Add(timeout))

	c, err := smtp.NewClient(conn, server)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: server}); err != nil {
			return fmt.Errorf("smtp starttls: %w", err)
		}
	}
	if username != "" && password != "" {
		if err := c.Auth(smtp.PlainAuth("", username, password, server)); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := c.Mail(from); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return fmt.Errorf("smtp rcpt %s: %w", rcpt, err)
		}
	}

	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		from, strings.Join(to, ", "), subject, body)
	if _, err := w.Write([]byte(msg)); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp close data: %w", err)
	}
	return c.Quit()
}
