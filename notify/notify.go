// Package notify - delivery of one-time codes to secret recipients
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alwitt/goutils"
	"github.com/apex/log"
)

// Notifier delivers a message to a recipient
type Notifier interface {
	/*
		Send deliver a message

			@param ctx context.Context - execution context
			@param to string - recipient address
			@param subject string - message subject
			@param body string - plain text message body
	*/
	Send(ctx context.Context, to, subject, body string) error
}

/*
OTPMessage compose the message carrying a one-time code

	@param code string - the one-time code
	@param validity time.Duration - how long the code stays valid
	@returns subject and body
*/
func OTPMessage(code string, validity time.Duration) (string, string) {
	return "Your one-time code",
		fmt.Sprintf(
			"Someone shared a secret with you.\n\nYour one-time code is: %s\n\nIt expires in %d minutes.\n",
			code,
			int(validity.Minutes()),
		)
}

// AsyncNotifier fire-and-forget wrapper around another Notifier
type AsyncNotifier struct {
	goutils.Component
	inner       Notifier
	sendTimeout time.Duration
	inflight    sync.WaitGroup
}

/*
NewAsync wrap a notifier so Send returns immediately

Delivery runs in the background, detached from the caller's cancellation. Failures are
logged and never retried.

	@param inner Notifier - the notifier doing the delivery
	@param sendTimeout time.Duration - bound on each delivery
	@returns async notifier
*/
func NewAsync(inner Notifier, sendTimeout time.Duration) *AsyncNotifier {
	return &AsyncNotifier{
		Component: goutils.Component{
			LogTags: log.Fields{"module": "notify", "component": "async"},
			LogTagModifiers: []goutils.LogMetadataModifier{
				goutils.ModifyLogMetadataByRestRequestParam,
			},
		},
		inner:       inner,
		sendTimeout: sendTimeout,
	}
}

// Send queue the message for background delivery. Never returns an error.
func (n *AsyncNotifier) Send(ctx context.Context, to, subject, body string) error {
	logTags := n.GetLogTagsForContext(ctx)
	sendCtx := context.WithoutCancel(ctx)
	n.inflight.Add(1)
	go func() {
		defer n.inflight.Done()
		lclCtx, cancel := context.WithTimeout(sendCtx, n.sendTimeout)
		defer cancel()
		if err := n.inner.Send(lclCtx, to, subject, body); err != nil {
			log.WithError(err).WithFields(logTags).Error("Message delivery failed")
			return
		}
		log.WithFields(logTags).Debug("Message delivered")
	}()
	return nil
}

// Wait block until all queued deliveries finish
func (n *AsyncNotifier) Wait() {
	n.inflight.Wait()
}

// consoleNotifier logs messages instead of delivering them
type consoleNotifier struct {
	goutils.Component
}

/*
NewConsoleNotifier define a notifier which writes messages to the log

For local development only, as it logs the one-time codes.

	@returns notifier
*/
func NewConsoleNotifier() Notifier {
	return &consoleNotifier{
		Component: goutils.Component{
			LogTags: log.Fields{"module": "notify", "component": "console"},
			LogTagModifiers: []goutils.LogMetadataModifier{
				goutils.ModifyLogMetadataByRestRequestParam,
			},
		},
	}
}

func (n *consoleNotifier) Send(ctx context.Context, to, subject, body string) error {
	log.WithFields(n.GetLogTagsForContext(ctx)).
		WithField("to", to).
		WithField("subject", subject).
		Info(body)
	return nil
}
