package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/nao1215/fsnd/pkg/envelope"
)

// maxBuckets はクライアント別バケットの上限。
const maxBuckets = 10000

// bucket はクライアント1件分のトークンバケットと最終アクセス時刻。
type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// clientLimiter はクライアントIPごとのトークンバケットを保持する。
// 上限に達した場合、満タンまで回復したバケットを捨て、それでも空かなければ最も古いものを捨てる。
type clientLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	perSecond rate.Limit
	burst     int
	capacity  int
	now       func() time.Time
}

func newClientLimiter(perSecond float64, burst, capacity int) *clientLimiter {
	return &clientLimiter{
		buckets:   make(map[string]*bucket),
		perSecond: rate.Limit(perSecond),
		burst:     burst,
		capacity:  capacity,
		now:       time.Now,
	}
}

// allow はipのバケットからトークンを1つ消費できるかを返す。
func (l *clientLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[ip]
	if !ok {
		if len(l.buckets) >= l.capacity {
			l.evict(now)
		}
		b = &bucket{lim: rate.NewLimiter(l.perSecond, l.burst)}
		l.buckets[ip] = b
	}
	b.seen = now
	return b.lim.AllowN(now, 1)
}

// evict は新しいバケットのための空きを作る。
func (l *clientLimiter) evict(now time.Time) {
	// 満タンのバケットは新規作成と区別がつかないため、捨てても制限は緩まない
	for ip, b := range l.buckets {
		if b.lim.TokensAt(now) >= float64(l.burst) {
			delete(l.buckets, ip)
		}
	}
	if len(l.buckets) < l.capacity {
		return
	}

	var (
		oldestIP string
		oldest   time.Time
	)
	for ip, b := range l.buckets {
		if oldestIP == "" || b.seen.Before(oldest) {
			oldestIP, oldest = ip, b.seen
		}
	}
	delete(l.buckets, oldestIP)
}

// RateLimit はクライアントIPごとのトークンバケットでリクエストを制限するGinミドルウェアを返す。
// perSecondが0以下の場合は制限しない。クライアントIPはc.ClientIPで求めるため、
// エンジンのSetTrustedProxiesで信頼するプロキシを限定しておくこと。
func RateLimit(perSecond float64, burst int) gin.HandlerFunc {
	if perSecond <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	if burst < 1 {
		burst = 1
	}
	limiter := newClientLimiter(perSecond, burst, maxBuckets)

	return func(c *gin.Context) {
		if !limiter.allow(c.ClientIP()) {
			c.Header("Retry-After", "1")
			envelope.Status(c, http.StatusTooManyRequests)
			return
		}
		c.Next()
	}
}
