package objectstore

import (
	"context"
	"fmt"
	"time"

	"invites.fest2.fun/configs/configslog"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 100 * time.Millisecond
	DefaultPresignTTL  = 7 * 24 * time.Hour

	// MaxRetryDelay caps the wait between two upload attempts.
	MaxRetryDelay = time.Minute
)

// Options tunes the retry budget and link lifetime of a Client.
type Options struct {
	MaxAttempts uint
	BaseDelay   time.Duration
	PresignTTL  time.Duration
	// OnAttempt is called before every upload attempt (1-based).
	OnAttempt func(attempt int)
	// OnRetry is called after a failed attempt with the delay before the next one.
	OnRetry func(err error, delay time.Duration)
}

// Client uploads with bounded exponential backoff: the wait after the k-th
// failed attempt is BaseDelay * 2^(k-1).
type Client struct {
	store Store
	opts  Options
}

// NewClient wraps a Store. Zero options fall back to 3 attempts, 100ms base delay and 7 day links.
func NewClient(store Store, opts Options) *Client {
	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = DefaultBaseDelay
	}
	if opts.PresignTTL <= 0 {
		opts.PresignTTL = DefaultPresignTTL
	}
	return &Client{store: store, opts: opts}
}

func (c *Client) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.opts.BaseDelay
	b.RandomizationFactor = 0
	b.Multiplier = 2
	b.MaxInterval = maxRetryInterval(c.opts.BaseDelay, c.opts.MaxAttempts)
	return b
}

// maxRetryInterval is base doubled once per attempt, stopping at MaxRetryDelay
// so large attempt budgets cannot overflow. A base above the cap is kept as is.
func maxRetryInterval(base time.Duration, attempts uint) time.Duration {
	if base >= MaxRetryDelay {
		return base
	}
	d := base
	for i := uint(0); i < attempts && d < MaxRetryDelay; i++ {
		d *= 2
	}
	return min(d, MaxRetryDelay)
}

// Upload stores data under key and returns a presigned access URL for it.
func (c *Client) Upload(ctx context.Context, data []byte, key, contentType string) (Artifact, error) {
	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		if c.opts.OnAttempt != nil {
			c.opts.OnAttempt(attempt)
		}
		return struct{}{}, c.store.Put(ctx, data, key, contentType)
	},
		backoff.WithBackOff(c.newBackOff()),
		backoff.WithMaxTries(c.opts.MaxAttempts),
		backoff.WithNotify(func(err error, delay time.Duration) {
			configslog.Log.Warn("Object upload failed, retrying",
				zap.String("key", key), zap.Int("attempt", attempt), zap.Duration("delay", delay), zap.Error(err))
			if c.opts.OnRetry != nil {
				c.opts.OnRetry(err, delay)
			}
		}),
	)
	if err != nil {
		configslog.Log.Error("Object upload gave up",
			zap.String("key", key), zap.Int("attempts", attempt), zap.Error(err))
		return Artifact{}, fmt.Errorf("%w: %s after %d attempts: %w", ErrUploadFailed, key, attempt, err)
	}

	link, err := c.store.Presign(ctx, key, c.opts.PresignTTL)
	if err != nil {
		return Artifact{}, fmt.Errorf("presign %s: %w", key, err)
	}
	configslog.SLog.Debugf("Object uploaded: key=%s attempts=%d", key, attempt)
	return Artifact{Key: key, URL: link, URI: URI(c.store.Bucket(), key)}, nil
}

// Fetch reads back the object behind an access URL returned by Upload.
func (c *Client) Fetch(ctx context.Context, accessURL string) ([]byte, error) {
	key, err := KeyFromURL(accessURL, c.store.Bucket())
	if err != nil {
		return nil, err
	}
	data, err := c.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", key, err)
	}
	return data, nil
}
