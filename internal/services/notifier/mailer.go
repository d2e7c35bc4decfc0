package notifier

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	config "github.com/NordCoder/netwatch/internal/config/notifier"
	"go.uber.org/zap"
)

// Mailer delivers plain-text mail over SMTP, optionally over implicit TLS.
type Mailer struct {
	addr       string
	auth       smtp.Auth
	useTLS     bool
	timeout    time.Duration
	from       string
	subjPrefix string

	log *zap.Logger
}

func NewMailer(cfg config.SMTP, log *zap.Logger) *Mailer {
	if log == nil {
		log = zap.NewNop()
	}
	var auth smtp.Auth
	if cfg.User != "" || cfg.Password != "" {
		auth = smtp.PlainAuth("", cfg.User, cfg.Password, hostOf(cfg.Addr))
	}
	return &Mailer{
		addr:       cfg.Addr,
		auth:       auth,
		useTLS:     cfg.UseTLS,
		timeout:    cfg.Timeout,
		from:       cfg.From,
		subjPrefix: cfg.SubjPrefix,
		log:        log.With(zap.String("component", "notifier.mailer")),
	}
}

func (m *Mailer) message(to, subject, body string) []byte {
	subj := strings.TrimSpace(m.subjPrefix + " " + subject)
	return []byte(
		"From: " + m.from + "\r\n" +
			"To: " + to + "\r\n" +
			"Subject: " + subj + "\r\n" +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/plain; charset=utf-8\r\n" +
			"\r\n" + body + "\r\n")
}

func (m *Mailer) Send(ctx context.Context, to, subject, body string) error {
	start := time.Now()
	log := m.log.With(zap.String("smtp_addr", m.addr), zap.Bool("tls", m.useTLS), zap.String("to", to))

	c, err := m.dial(ctx)
	if err != nil {
		log.Error("smtp connect failed", zap.Error(err))
		return err
	}
	defer func() { _ = c.Close() }()

	if err := m.transact(c, to, m.message(to, subject, body)); err != nil {
		log.Error("smtp transaction failed", zap.Error(err))
		return err
	}
	_ = c.Quit()
	log.Info("email sent", zap.Duration("elapsed", time.Since(start)))
	return nil
}

func (m *Mailer) dial(ctx context.Context) (*smtp.Client, error) {
	host := hostOf(m.addr)
	nd := &net.Dialer{Timeout: m.timeout}

	var (
		conn net.Conn
		err  error
	)
	if m.useTLS {
		conn, err = (&tls.Dialer{NetDialer: nd, Config: &tls.Config{ServerName: host}}).DialContext(ctx, "tcp", m.addr)
	} else {
		conn, err = nd.DialContext(ctx, "tcp", m.addr)
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", m.addr, err)
	}
	if m.timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(m.timeout))
	}
	c, err := smtp.NewClient(conn, host)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("greeting: %w", err)
	}
	return c, nil
}

// transact runs STARTTLS (plain connections only), AUTH, MAIL, RCPT and DATA.
func (m *Mailer) transact(c *smtp.Client, to string, msg []byte) error {
	type step struct {
		name string
		run  func() error
	}
	steps := []step{
		{"starttls", func() error {
			if ok, _ := c.Extension("STARTTLS"); m.useTLS || !ok {
				return nil
			}
			return c.StartTLS(&tls.Config{ServerName: hostOf(m.addr)})
		}},
		{"auth", func() error {
			if ok, _ := c.Extension("AUTH"); m.auth == nil || !ok {
				return nil
			}
			return c.Auth(m.auth)
		}},
		{"mail from", func() error { return c.Mail(m.from) }},
		{"rcpt to", func() error { return c.Rcpt(to) }},
		{"data", func() error {
			w, err := c.Data()
			if err != nil {
				return err
			}
			if _, err := w.Write(msg); err != nil {
				_ = w.Close()
				return err
			}
			return w.Close()
		}},
	}
	for _, s := range steps {
		if err := s.run(); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return nil
}

func hostOf(addr string) string {
	h, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return h
}
