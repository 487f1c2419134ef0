package push

import (
	"context"
	"fmt"
	"net/http"

	"pitstop/config"
	"pitstop/internal/apperrors"
	"pitstop/internal/models"

	webpush "github.com/SherClockHolmes/webpush-go"
)

// ErrSubscriptionGone marks an endpoint the push service reports as
// permanently removed. It wraps ErrNotFound so retry policies treat it as
// non-retryable; the dispatcher queues the subscription for deletion.
var ErrSubscriptionGone = fmt.Errorf("push subscription gone: %w", apperrors.ErrNotFound)

// Transport delivers an encrypted payload to one device endpoint.
type Transport interface {
	Deliver(ctx context.Context, subscription *models.PushSubscription, payload []byte) error
}

type webpushTransport struct {
	options webpush.Options
}

func NewWebPushTransport(config config.Config) Transport {
	return &webpushTransport{
		options: webpush.Options{
			Subscriber:      config.VapidContact,
			VAPIDPublicKey:  config.VapidPublicKey,
			VAPIDPrivateKey: config.VapidPrivateKey,
			TTL:             60,
		},
	}
}

func (t *webpushTransport) Deliver(
	ctx context.Context,
	subscription *models.PushSubscription,
	payload []byte,
) error {
	sub := &webpush.Subscription{
		Endpoint: subscription.Endpoint,
		Keys: webpush.Keys{
			P256dh: subscription.P256dhKey,
			Auth:   subscription.AuthKey,
		},
	}

	options := t.options
	resp, err := webpush.SendNotificationWithContext(ctx, payload, sub, &options)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrTransport, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusGone, resp.StatusCode == http.StatusNotFound:
		return ErrSubscriptionGone
	case resp.StatusCode >= 400:
		return fmt.Errorf("%w: push service returned %d", apperrors.ErrTransport, resp.StatusCode)
	}

	return nil
}
