package smtp

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strings"

	"github.com/printpoint/handoff/internal/core/domain"
)

// Sender delivers pickup-code messages over SMTP. Destinations that are
// not email addresses (phone numbers for an SMS gateway) are rejected
// here; wiring an SMS provider means adding another sender, not
// extending this one.
type Sender struct {
	addr string
	from string
	auth smtp.Auth

	// send is swapped in tests.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

type Config struct {
	Addr     string
	From     string
	Username string
	Password string
}

func NewSender(cfg Config) (*Sender, error) {
	if cfg.Addr == "" || cfg.From == "" {
		return nil, fmt.Errorf("smtp addr and from are required")
	}
	host, _, err := net.SplitHostPort(cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("smtp addr must be host:port: %w", err)
	}

	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, host)
	}
	return &Sender{
		addr: cfg.Addr,
		from: cfg.From,
		auth: auth,
		send: smtp.SendMail,
	}, nil
}

func (s *Sender) Deliver(ctx context.Context, destination, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !strings.Contains(destination, "@") {
		return domain.WrapError(domain.ErrValidation, "deliver message",
			fmt.Errorf("destination %q is not an email address", destination))
	}

	msg := strings.Join([]string{
		"From: " + s.from,
		"To: " + destination,
		"Subject: Your document is ready for pickup",
		"",
		body,
	}, "\r\n")

	if err := s.send(s.addr, s.auth, s.from, []string{destination}, []byte(msg)); err != nil {
		return domain.WrapError(domain.ErrDelivery, "deliver message", err)
	}
	return nil
}
