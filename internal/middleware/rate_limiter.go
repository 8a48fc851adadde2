package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"guidedesk/internal/utils"
	"guidedesk/pkg/logger"
)

// DenyObserver is told about every rejected request. *metrics.Metrics
// satisfies it.
type DenyObserver interface {
	RateLimited(path string)
}

// RateLimiter throttles per signed-in guide, falling back to the client IP
// when no guide is on the context.
type RateLimiter struct {
	limiter  *limiter.Limiter
	observer DenyObserver
	logger   *logger.Logger
}

// NewRateLimiter parses rate ("30-M", "5-S", ...). A nil store uses memory.
func NewRateLimiter(rate string, store limiter.Store, log *logger.Logger) (*RateLimiter, error) {
	r, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, err
	}
	if store == nil {
		store = memory.NewStore()
	}
	if log == nil {
		log = logger.Discard()
	}
	return &RateLimiter{
		limiter: limiter.New(store, r),
		logger:  log.WithField("component", "rate_limiter"),
	}, nil
}

func (l *RateLimiter) WithObserver(observer DenyObserver) *RateLimiter {
	l.observer = observer
	return l
}

func (l *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetString(utils.ContextGuideID)
		if key == "" {
			key = "ip:" + c.ClientIP()
		}

		lctx, err := l.limiter.Get(c.Request.Context(), key)
		if err != nil {
			// Fail open while the store is unreachable.
			l.logger.WithError(err).Warn("Rate limit store unavailable")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(lctx.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(lctx.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(lctx.Reset, 10))

		if lctx.Reached {
			retry := time.Until(time.Unix(lctx.Reset, 0))
			if retry < time.Second {
				retry = time.Second
			}
			c.Header("Retry-After", strconv.Itoa(int(retry.Seconds())))

			path := c.FullPath()
			if l.observer != nil {
				l.observer.RateLimited(path)
			}
			l.logger.WithFields(map[string]interface{}{
				"key":  key,
				"path": path,
			}).Warn("Rate limit reached")

			utils.TooManyRequestsResponse(c)
			c.Abort()
			return
		}

		c.Next()
	}
}
