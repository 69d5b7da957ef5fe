package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	netmail "net/mail"
	"net/smtp"
	"net/textproto"
	"strconv"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/sethvargo/go-retry"
)

type MailerConfig struct {
	Host     string
	Port     int
	Username string
	Password string

	// Defaults to Username.
	From string
	// One or more comma separated addresses.
	To string

	DialTimeout time.Duration
}

// Mailer sends messages over SMTP, one session per message.
type Mailer struct {
	addr     string
	host     string
	username string
	password string
	from     *mail.Address
	to       []*mail.Address

	dialTimeout time.Duration
	retryDelay  time.Duration
	now         func() time.Time
}

// NewMailer validates the addresses up front so that a typo fails at start
// rather than on the first digest.
func NewMailer(cfg MailerConfig) (*Mailer, error) {
	if cfg.Host == "" {
		return nil, errors.New("smtp host is required")
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}

	from, err := netmail.ParseAddress(cfg.From)
	if err != nil {
		return nil, fmt.Errorf("invalid sender address %q: %w", cfg.From, err)
	}
	to, err := netmail.ParseAddressList(cfg.To)
	if err != nil {
		return nil, fmt.Errorf("invalid recipient address %q: %w", cfg.To, err)
	}

	return &Mailer{
		addr:        net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		host:        cfg.Host,
		username:    cfg.Username,
		password:    cfg.Password,
		from:        from,
		to:          to,
		dialTimeout: cfg.DialTimeout,
		retryDelay:  time.Second,
		now:         time.Now,
	}, nil
}

// Send delivers msg to every recipient.
//
// Returned errors wrap either [ErrFatal] or [ErrTransient].
func (m *Mailer) Send(ctx context.Context, msg Message) error {
	body, err := m.compose(msg)
	if err != nil {
		return fmt.Errorf("%w: error composing message: %w", ErrTransient, err)
	}

	c, err := m.dial(ctx)
	if err != nil {
		return fmt.Errorf("%w: error connecting to smtp server: %w", ErrTransient, err)
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: m.host}); err != nil {
			return fmt.Errorf("%w: error starting tls: %w", ErrTransient, err)
		}
	}

	if m.username != "" {
		if err := c.Auth(smtp.PlainAuth("", m.username, m.password, m.host)); err != nil {
			return fmt.Errorf("%w: error authenticating: %w", classifyAuth(err), err)
		}
	}

	if err := c.Mail(m.from.Address); err != nil {
		return fmt.Errorf("%w: error setting sender: %w", classify(err), err)
	}
	for _, to := range m.to {
		if err := c.Rcpt(to.Address); err != nil {
			return fmt.Errorf("%w: error adding recipient %s: %w", classify(err), to.Address, err)
		}
	}

	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("%w: error starting data: %w", ErrTransient, err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("%w: error writing message: %w", ErrTransient, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("%w: error finishing message: %w", ErrTransient, err)
	}

	// The message is accepted at this point, a failed goodbye doesn't matter.
	_ = c.Quit()

	return nil
}

// dial connects and reads the greeting, retrying a couple of times.
func (m *Mailer) dial(ctx context.Context) (*smtp.Client, error) {
	var c *smtp.Client
	b := retry.WithMaxRetries(2, retry.NewConstant(m.retryDelay))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		d := net.Dialer{Timeout: m.dialTimeout}
		conn, err := d.DialContext(ctx, "tcp", m.addr)
		if err != nil {
			return retry.RetryableError(err)
		}

		cli, err := smtp.NewClient(conn, m.host)
		if err != nil {
			conn.Close()
			return retry.RetryableError(err)
		}
		c = cli

		return nil
	})

	return c, err
}

func (m *Mailer) compose(msg Message) ([]byte, error) {
	var h mail.Header
	h.SetDate(m.now())
	h.SetAddressList("From", []*mail.Address{m.from})
	h.SetAddressList("To", m.to)
	h.SetSubject(msg.Subject)
	h.SetContentType("text/html", map[string]string{"charset": "utf-8"})
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("error generating message id: %w", err)
	}

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("error creating message writer: %w", err)
	}
	if _, err := io.WriteString(w, msg.HTML); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// classify treats permanent (5xx) replies as fatal, everything else as
// worth another try.
func classify(err error) error {
	var tpErr *textproto.Error
	if errors.As(err, &tpErr) && tpErr.Code >= 500 && tpErr.Code < 600 {
		return ErrFatal
	}

	return ErrTransient
}

// classifyAuth is classify for the AUTH exchange. A dropped connection is
// worth another try, but a refusal from the auth mechanism itself (say,
// PlainAuth on an unencrypted connection) won't change on its own.
func classifyAuth(err error) error {
	var (
		tpErr  *textproto.Error
		netErr net.Error
	)
	switch {
	case errors.As(err, &tpErr):
		return classify(err)
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF), errors.As(err, &netErr):
		return ErrTransient
	default:
		return ErrFatal
	}
}
