package api

import (
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"

	"github.com/danielgtaylor/huma/v2"
)

// rateLimited rejects a client that starts generations too often. Client
// identity is the remote address, already rewritten by middleware.RealIP.
func (s *Server) rateLimited(ctx huma.Context, next func(huma.Context)) {
	if s.limiter == nil {
		next(ctx)
		return
	}

	key := clientIP(ctx.RemoteAddr())
	d := s.limiter.Take(key)
	if d.Allowed {
		ctx.SetHeader("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		next(ctx)
		return
	}

	wait := int(math.Ceil(d.RetryAfter.Seconds()))
	if wait < 1 {
		wait = 60
	}
	s.logger.Warn("rate limit exceeded", "ip", key, "path", ctx.URL().Path, "retry_after_s", wait)
	ctx.SetHeader("Retry-After", strconv.Itoa(wait))
	_ = huma.WriteErr(s.api, ctx, http.StatusTooManyRequests,
		fmt.Sprintf("リクエストが多すぎます。%d秒後にもう一度お試しください。", wait))
}

// clientIP strips the port from a remote address.
func clientIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
