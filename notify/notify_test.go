package notify_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	mocknotify "github.com/alwitt/secretshare/mocks/notify"
	"github.com/alwitt/secretshare/notify"
	"github.com/apex/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestOTPMessage(t *testing.T) {
	assert := assert.New(t)

	subject, body := notify.OTPMessage("012345", time.Minute*10)
	assert.NotEmpty(subject)
	assert.NotContains(subject, "012345")
	assert.Contains(body, "012345")
	assert.Contains(body, "10 minutes")
}

func TestAsyncNotifier(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	mockNotifier := mocknotify.NewNotifier(t)
	uut := notify.NewAsync(mockNotifier, time.Second)

	// Case 0: caller cancellation does not abort delivery
	{
		delivered := make(chan struct{}, 1)
		mockNotifier.On(
			"Send", mock.Anything, "a@b.com", "subject", "body",
		).Run(func(args mock.Arguments) {
			ctx, ok := args.Get(0).(context.Context)
			assert.True(ok)
			assert.Nil(ctx.Err())
			_, hasDeadline := ctx.Deadline()
			assert.True(hasDeadline)
			delivered <- struct{}{}
		}).Return(nil).Once()

		callCtx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.Nil(uut.Send(callCtx, "a@b.com", "subject", "body"))
		uut.Wait()
		select {
		case <-delivered:
		default:
			assert.Fail("message not delivered")
		}
	}

	// Case 1: delivery failure is swallowed
	{
		mockNotifier.On(
			"Send", mock.Anything, "c@d.com", "subject", "body",
		).Return(fmt.Errorf("dummy error")).Once()
		assert.Nil(uut.Send(context.Background(), "c@d.com", "subject", "body"))
		uut.Wait()
	}
}

func TestConsoleNotifier(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	uut := notify.NewConsoleNotifier()
	assert.Nil(uut.Send(context.Background(), "a@b.com", "subject", "body"))
}
