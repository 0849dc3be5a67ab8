package progress

import (
	"sync"

	"golang.org/x/time/rate"
)

// LimiterPool hands out one token bucket per chat so concurrent jobs in the
// same chat share Telegram's per-chat edit budget.
type LimiterPool struct {
	mu       sync.Mutex
	limiters map[int64]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// NewLimiterPool creates a pool allowing perSecond edits per chat.
// A non-positive perSecond disables limiting.
func NewLimiterPool(perSecond float64, burst int) *LimiterPool {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &LimiterPool{
		limiters: make(map[int64]*rate.Limiter),
		limit:    limit,
		burst:    burst,
	}
}

// Get returns the limiter for chatID, creating it on first use.
func (p *LimiterPool) Get(chatID int64) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()

	l, ok := p.limiters[chatID]
	if !ok {
		l = rate.NewLimiter(p.limit, p.burst)
		p.limiters[chatID] = l
	}
	return l
}
