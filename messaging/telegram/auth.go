package telegram

import (
	"context"

	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"

	"github.com/filegram/filegram/internal/errors"
	"github.com/filegram/filegram/messaging"
)

// RPC error types Telegram answers a bad handshake with. Anything else on
// the sign-in path is treated as an upstream failure.
var rejectionTypes = []string{
	"PHONE_CODE_INVALID",
	"PHONE_CODE_EXPIRED",
	"PHONE_CODE_EMPTY",
	"PHONE_NUMBER_INVALID",
	"PHONE_NUMBER_UNOCCUPIED",
	"PHONE_NUMBER_BANNED",
	"SESSION_PASSWORD_NEEDED",
}

func (c *conn) SignIn(ctx context.Context, phone string, prompt messaging.CodePrompt) (messaging.User, error) {
	code := auth.CodeAuthenticatorFunc(func(ctx context.Context, _ *tg.AuthSentCode) (string, error) {
		return prompt(ctx)
	})

	flow := auth.NewFlow(auth.CodeOnly(phone, code), auth.SendCodeOptions{})
	if err := flow.Run(ctx, c.client.Auth()); err != nil {
		if tgerr.Is(err, rejectionTypes...) {
			return messaging.User{}, errors.Wrapf(errors.ErrSignInRejected, "%v", err)
		}
		return messaging.User{}, errors.Wrapf(errors.ErrUpstreamUnavailable, "sign in: %v", err)
	}

	self, err := c.client.Self(ctx)
	if err != nil {
		return messaging.User{}, errors.Wrapf(errors.ErrUpstreamUnavailable, "self: %v", err)
	}

	return messaging.User{
		ID:       self.ID,
		Username: self.Username,
		Phone:    self.Phone,
	}, nil
}
