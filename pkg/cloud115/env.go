package cloud115

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/go115/cloud115/internal/config"
	"github.com/go115/cloud115/internal/logger"
	"github.com/go115/cloud115/pkg/protocol"
)

// NewFromEnv logs in with the credential found in CLOUD115_UID, CLOUD115_CID,
// CLOUD115_SEID and CLOUD115_KID. A .env file in the working directory and
// the YAML file named by CLOUD115_CONFIG (default ~/.config/cloud115.yaml)
// are consulted as well. CLOUD115_BASE_URL, CLOUD115_USER_AGENT,
// CLOUD115_TIMEOUT_SECONDS and CLOUD115_RATE_LIMIT tune the session.
func NewFromEnv(ctx context.Context, opts ...Option) (*Agent, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}
	return NewFromConfig(ctx, cfg, opts...)
}

// NewFromConfig logs in with an already resolved configuration.
func NewFromConfig(ctx context.Context, cfg *config.Config, opts ...Option) (*Agent, error) {
	if !cfg.Credential.Complete() {
		return nil, fmt.Errorf("%w: set %s, %s and %s", ErrIncompleteCredential, config.KeyUID, config.KeyCID, config.KeySEID)
	}
	logger.SetLevel(cfg.LogLevel)

	var sessionOpts []protocol.Option
	if cfg.UserAgent != "" {
		sessionOpts = append(sessionOpts, protocol.WithUserAgent(cfg.UserAgent))
	}
	if cfg.BaseURL != "" {
		sessionOpts = append(sessionOpts, protocol.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		sessionOpts = append(sessionOpts, protocol.WithTimeout(cfg.Timeout))
	}
	if cfg.RateLimit > 0 {
		burst := int(cfg.RateLimit)
		if burst < 1 {
			burst = 1
		}
		sessionOpts = append(sessionOpts, protocol.WithRateLimiter(rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)))
	}

	base := []Option{
		WithLogger(logger.Log),
		WithAppVersion(cfg.AppVersion),
		WithSessionOptions(sessionOpts...),
	}
	return Login(ctx, Credential{
		UID:  cfg.Credential.UID,
		CID:  cfg.Credential.CID,
		SEID: cfg.Credential.SEID,
		KID:  cfg.Credential.KID,
	}, append(base, opts...)...)
}
