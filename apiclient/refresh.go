package apiclient

import (
	"context"
	"fmt"

	"github.com/jrsteele09/academy-portal/credentials"
	perrors "github.com/jrsteele09/academy-portal/internal/errors"
	"github.com/rs/zerolog/log"
)

// refreshAfter returns an access token to retry with after failedToken was rejected.
//
// When the stored token already differs from failedToken another request has refreshed in
// the meantime and that token is reused. Otherwise one refresh call is made, shared by every
// request that fails concurrently.
func (c *Client) refreshAfter(ctx context.Context, failedToken string) (string, error) {
	if tok, err := credentials.LoadToken(ctx, c.store); err == nil && tok != nil && tok.AccessToken != failedToken {
		return tok.AccessToken, nil
	}

	v, err, shared := c.refreshes.Do(refreshFlightKey, func() (any, error) {
		return c.refresh(context.WithoutCancel(ctx))
	})
	if err != nil {
		return "", err
	}
	if shared {
		log.Debug().Msg("joined in-flight token refresh")
	}
	return v.(string), nil
}

// refresh exchanges the stored refresh token for a new access token. Any failure ends the
// session: both tokens are cleared and the session-ended hooks run. A session that was logged
// out or replaced while the exchange ran is left alone.
func (c *Client) refresh(ctx context.Context) (string, error) {
	gen := c.sessionGeneration()

	refreshToken, err := credentials.RefreshToken(ctx, c.store)
	if err != nil {
		log.Err(err).Msg("refresh token unreadable, session ended")
		c.endSession(ctx, gen)
		return "", fmt.Errorf("[apiclient refresh] %w: %w", perrors.ErrSessionEnded, err)
	}
	if refreshToken == "" {
		log.Info().Msg("no refresh token available, session ended")
		c.endSession(ctx, gen)
		return "", fmt.Errorf("[apiclient refresh] %w", perrors.ErrNoRefreshToken)
	}

	access, err := c.RefreshToken(ctx, refreshToken)
	if err != nil {
		log.Warn().Err(err).Msg("token refresh failed, session ended")
		c.endSession(ctx, gen)
		return "", fmt.Errorf("[apiclient refresh] %w", perrors.ErrSessionEnded)
	}

	c.genMu.Lock()
	defer c.genMu.Unlock()
	if c.generation != gen {
		log.Info().Msg("session changed during token refresh, new access token dropped")
		return "", fmt.Errorf("[apiclient refresh] %w", perrors.ErrSessionEnded)
	}
	if err := credentials.SaveAccessToken(ctx, c.store, access); err != nil {
		return "", fmt.Errorf("[apiclient refresh] %w", err)
	}
	log.Info().Time("expires_at", credentials.AccessExpiry(access)).Msg("access token refreshed")
	return access, nil
}

// endSession clears the tokens of generation gen and runs the session-ended hooks. Nothing
// happens when the session has moved on since gen.
func (c *Client) endSession(ctx context.Context, gen uint64) {
	c.genMu.Lock()
	if c.generation != gen {
		c.genMu.Unlock()
		return
	}
	if err := credentials.ClearTokens(ctx, c.store); err != nil {
		log.Err(err).Msg("failed to clear stored tokens")
	}
	c.genMu.Unlock()
	c.fireSessionEnded()
}
