// Package telegram implements messaging.Dialer on top of the MTProto
// client from gotd/td.
package telegram

import (
	"context"
	stderrors "errors"
	"sync"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/rs/zerolog/log"

	"github.com/filegram/filegram/internal/config"
	"github.com/filegram/filegram/internal/errors"
	"github.com/filegram/filegram/messaging"
)

var _ messaging.Dialer = (*Dialer)(nil)

type Dialer struct {
	appID   int
	appHash string
}

func NewDialer(cfg config.TelegramConfig) *Dialer {
	return &Dialer{
		appID:   cfg.GetAppID(),
		appHash: cfg.GetAppHash(),
	}
}

// Dial connects to Telegram. gotd keeps the connection alive only while
// client.Run's callback runs, so the callback parks on a context that Close
// cancels; that turns the run-scoped model into the Conn handle the rest of
// the gateway expects.
func (d *Dialer) Dial(ctx context.Context, savedSession []byte) (messaging.Conn, error) {
	storage := &session.StorageMemory{}
	if len(savedSession) > 0 {
		if err := storage.StoreSession(ctx, savedSession); err != nil {
			return nil, errors.Wrapf(err, "restore saved session")
		}
	}

	client := telegram.NewClient(d.appID, d.appHash, telegram.Options{
		SessionStorage: storage,
	})

	runCtx, cancel := context.WithCancel(context.Background())
	c := &conn{
		client:  client,
		storage: storage,
		cancel:  cancel,
		done:    make(chan error, 1),
	}

	connected := make(chan struct{})
	go func() {
		c.done <- client.Run(runCtx, func(ctx context.Context) error {
			close(connected)
			<-ctx.Done()
			return ctx.Err()
		})
	}()

	select {
	case <-connected:
		return c, nil
	case err := <-c.done:
		cancel()
		return nil, errors.Wrapf(errors.ErrUpstreamUnavailable, "connect: %v", err)
	case <-ctx.Done():
		cancel()
		<-c.done
		return nil, ctx.Err()
	}
}

type conn struct {
	client  *telegram.Client
	storage *session.StorageMemory
	cancel  context.CancelFunc
	done    chan error

	closeOnce sync.Once
}

func (c *conn) SavedSession(ctx context.Context) ([]byte, error) {
	data, err := c.storage.LoadSession(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "load session")
	}
	return data, nil
}

func (c *conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		err = <-c.done
	})
	if err != nil && !stderrors.Is(err, context.Canceled) {
		log.Err(err).Msg("telegram connection closed with error")
		return err
	}
	return nil
}
