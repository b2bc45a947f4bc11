package orders_api

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/BearBump/TrackDesk/internal/models"
)

type ctxKey int

const (
	ctxSession ctxKey = iota
	ctxToken
)

func sessionFrom(ctx context.Context) *models.Session {
	s, _ := ctx.Value(ctxSession).(*models.Session)
	return s
}

func tokenFrom(ctx context.Context) string {
	t, _ := ctx.Value(ctxToken).(string)
	return t
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(h[len(prefix):])
}

// requireSession пускает дальше только запросы с живой сессией.
func (api *OrdersAPI) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeFail(w, http.StatusUnauthorized, codeUnauthorized, "Missing bearer token", nil)
			return
		}
		sess, err := api.admins.Session(r.Context(), token)
		if err != nil {
			writeError(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), ctxSession, sess)
		ctx = context.WithValue(ctx, ctxToken, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// rateLimit считает запросы по IP в минутном окне. Если Redis недоступен,
// запрос пропускается.
func (api *OrdersAPI) rateLimit(scope string, perMinute int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if api.limiter == nil || perMinute <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := "ratelimit:" + scope + ":" + clientIP(r, api.limits.TrustedProxies)
			ok, _, err := api.limiter.Allow(r.Context(), key, perMinute, time.Minute)
			if err != nil {
				slog.Warn("rate limiter unavailable", "scope", scope, "error", err.Error())
			} else if !ok {
				w.Header().Set("Retry-After", "60")
				writeFail(w, http.StatusTooManyRequests, codeRateLimited, "Too many requests", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP берёт адрес соединения. X-Forwarded-For и X-Real-IP читаются только
// когда соединение пришло от доверенного прокси, иначе клиент подставил бы
// любой адрес и обошёл лимит.
func clientIP(r *http.Request, trusted []netip.Prefix) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	peer, err := netip.ParseAddr(host)
	if err != nil || !isTrusted(peer, trusted) {
		return host
	}

	// XFF дописывается справа каждым прокси: идём с конца до первого недоверенного адреса.
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			a, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
			if err != nil {
				break
			}
			if !isTrusted(a, trusted) {
				return a.Unmap().String()
			}
		}
		return host
	}
	if a, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); err == nil {
		return a.Unmap().String()
	}
	return host
}

func isTrusted(a netip.Addr, trusted []netip.Prefix) bool {
	a = a.Unmap()
	for _, p := range trusted {
		if p.Contains(a) {
			return true
		}
	}
	return false
}
