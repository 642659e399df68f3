package telegram

import (
	"strings"
	"time"

	coreconfig "github.com/m3rciful/menubot/core/config"
	"github.com/m3rciful/menubot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// MiddlewareOptions customises the shared chain.
type MiddlewareOptions struct {
	OnLimited func(tele.Context) error
	// MaintenanceNotice renders the maintenance text for a language.
	MaintenanceNotice func(lang string) string
}

// DefaultMiddlewares builds the shared middleware chain for bots.
func DefaultMiddlewares(cfg *coreconfig.Config, opts MiddlewareOptions) []Middleware {
	mws := []Middleware{
		{Name: "recover", Use: middleware.RecoverMiddleware},
		{Name: "metrics", Use: middleware.MessageMetricsMiddleware},
	}

	if cfg != nil {
		interval := time.Duration(cfg.RateLimit.IntervalMS) * time.Millisecond
		if interval > 0 {
			ex := make(map[string]struct{}, len(cfg.RateLimit.ExcludeUpdates))
			for _, t := range cfg.RateLimit.ExcludeUpdates {
				ex[strings.ToLower(t)] = struct{}{}
			}
			mws = append(mws, Middleware{
				Name: "rate_limit",
				Use: middleware.RateLimitMiddleware(middleware.RateLimitOptions{
					Interval:  interval,
					Exclude:   ex,
					OnLimited: opts.OnLimited,
				}),
			})
		}

		if cfg.Maintenance.Enabled {
			mws = append(mws, Middleware{
				Name: "maintenance",
				Use: middleware.MaintenanceMiddleware(middleware.MaintenanceOptions{
					Enabled:   true,
					Whitelist: cfg.Maintenance.Whitelist,
					Notice:    opts.MaintenanceNotice,
				}),
			})
		}
	}

	mws = append(mws, Middleware{Name: "logger", Use: middleware.LoggerMiddleware})
	return mws
}
