package xhttp

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	XForwardedFor    = "X-Forwarded-For"
	XContentTypeOpts = "X-Content-Type-Options"
	XFrameOpts       = "X-Frame-Options"
	ReferrerPolicy   = "Referrer-Policy"
	XRequestID       = "X-Request-ID"
	XRateLimitReason = "X-RateLimit-Reason"
	XClientSessionID = "X-Client-Session-ID"
)

const (
	ContentType     = "Content-Type"
	ContentEncoding = "Content-Encoding"
	ContentLength   = "Content-Length"
	AcceptEncoding  = "Accept-Encoding"
	Accept          = "Accept"
	Authorization   = "Authorization"
	Vary            = "Vary"
	Upgrade         = "Upgrade"
	CacheControl    = "Cache-Control"
)

const (
	applicationJSON = "application/json"
	bearerPrefix    = "Bearer "
)

func SetHeaderRequestID(w http.ResponseWriter, requestID string) {
	w.Header().Set(XRequestID, requestID)
}

func GetRequestHeaderRequestID(r *http.Request) string {
	return r.Header.Get(XRequestID)
}

func SetHeaderContentTypeApplicationJSON(w http.ResponseWriter) {
	w.Header().Set(ContentType, applicationJSON)
}

func SetHeaderRetryAfter(w http.ResponseWriter, retryAfter time.Duration) {
	const retryAfterHeader = "Retry-After"
	secs := int(math.Ceil(retryAfter.Seconds()))
	w.Header().Set(retryAfterHeader, strconv.Itoa(max(secs, 1)))
}

func SetRequestHeaderSessionID(r *http.Request, sessionID string) {
	r.Header.Set(XClientSessionID, sessionID)
}

func GetRequestHeaderSessionID(r *http.Request) string {
	return r.Header.Get(XClientSessionID)
}

func SetRequestHeaderAcceptJSON(r *http.Request) {
	r.Header.Set(Accept, applicationJSON)
}

func SetBearer(h http.Header, token string) {
	h.Set(Authorization, bearerPrefix+token)
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(authHeader string) (string, bool) {
	if len(authHeader) < len(bearerPrefix) || !strings.EqualFold(authHeader[:len(bearerPrefix)], bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(authHeader[len(bearerPrefix):])
	return token, token != ""
}

// IsWebsocketUpgrade reports whether r asks to switch to the websocket protocol.
func IsWebsocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get(Upgrade), "websocket")
}
