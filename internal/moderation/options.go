package moderation

import (
	"time"

	"plaza.social/internal/realtime"
)

// DefaultBanDuration applies when a ban request names no duration.
const DefaultBanDuration = 7 * 24 * time.Hour

// MaxBanDuration caps a single ban.
const MaxBanDuration = 365 * 24 * time.Hour

type options struct {
	now         func() time.Time
	publisher   realtime.Publisher
	banDuration time.Duration
}

// Option customises a Workflow or BanService.
type Option func(*options)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithPublisher announces report and ban changes on a realtime feed.
func WithPublisher(p realtime.Publisher) Option {
	return func(o *options) {
		o.publisher = p
	}
}

// WithDefaultBanDuration overrides DefaultBanDuration.
func WithDefaultBanDuration(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.banDuration = d
		}
	}
}

func newOptions(opts []Option) options {
	o := options{
		now:         func() time.Time { return time.Now().UTC() },
		banDuration: DefaultBanDuration,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
