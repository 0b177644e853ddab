package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/alwitt/goutils"
	"github.com/apex/log"
	"github.com/go-playground/validator/v10"
)

// SMTPParams SMTP relay parameters
type SMTPParams struct {
	// Host relay host name
	Host string `mapstructure:"host" json:"host" validate:"required"`
	// Port relay port
	Port int `mapstructure:"port" json:"port" validate:"required,gt=0,lt=65536"`
	// Username optional PLAIN auth user
	Username string `mapstructure:"username" json:"username"`
	// Password optional PLAIN auth password
	Password string `mapstructure:"password" json:"-"`
	// From sender address
	From string `mapstructure:"from" json:"from" validate:"required,email"`
}

// smtpNotifier delivers messages through an SMTP relay
type smtpNotifier struct {
	goutils.Component
	params SMTPParams
}

/*
NewSMTPNotifier define a notifier delivering through an SMTP relay

STARTTLS is used whenever the relay offers it.

	@param params SMTPParams - relay parameters
	@returns notifier
*/
func NewSMTPNotifier(params SMTPParams) (Notifier, error) {
	if err := validator.New().Struct(&params); err != nil {
		return nil, fmt.Errorf("invalid SMTP parameters [%w]", err)
	}
	return &smtpNotifier{
		Component: goutils.Component{
			LogTags: log.Fields{
				"module": "notify", "component": "smtp", "relay": params.Host,
			},
			LogTagModifiers: []goutils.LogMetadataModifier{
				goutils.ModifyLogMetadataByRestRequestParam,
			},
		},
		params: params,
	}, nil
}

// headerSafe strip line breaks from a header value
func headerSafe(value string) string {
	return strings.NewReplacer("\r", "", "\n", "").Replace(value)
}

// composeMessage build the RFC 5322 message
func composeMessage(from, to, subject, body string) []byte {
	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", headerSafe(from))
	fmt.Fprintf(&msg, "To: %s\r\n", headerSafe(to))
	fmt.Fprintf(&msg, "Subject: %s\r\n", headerSafe(subject))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(strings.ReplaceAll(strings.ReplaceAll(body, "\r\n", "\n"), "\n", "\r\n"))
	return msg.Bytes()
}

func (n *smtpNotifier) Send(ctx context.Context, to, subject, body string) error {
	logTags := n.GetLogTagsForContext(ctx)

	addr := net.JoinHostPort(n.params.Host, strconv.Itoa(n.params.Port))
	dialer := net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to relay %s [%w]", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			_ = conn.Close()
			return fmt.Errorf("failed to set relay connection deadline [%w]", err)
		}
	}

	client, err := smtp.NewClient(conn, n.params.Host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("relay %s handshake failed [%w]", addr, err)
	}
	defer func() {
		_ = client.Close()
	}()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: n.params.Host}); err != nil {
			return fmt.Errorf("relay %s STARTTLS failed [%w]", addr, err)
		}
	}

	if n.params.Username != "" {
		auth := smtp.PlainAuth("", n.params.Username, n.params.Password, n.params.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("relay %s auth failed [%w]", addr, err)
		}
	}

	if err := client.Mail(n.params.From); err != nil {
		return fmt.Errorf("relay rejected sender [%w]", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("relay rejected recipient [%w]", err)
	}
	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("relay refused message data [%w]", err)
	}
	if _, err := writer.Write(composeMessage(n.params.From, to, subject, body)); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write message [%w]", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("relay did not accept message [%w]", err)
	}

	log.WithFields(logTags).Debug("Message handed to relay")
	return client.Quit()
}
