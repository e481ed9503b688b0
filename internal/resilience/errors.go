package resilience

import (
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/sashabaranov/go-openai"
)

// TransientError marks an error as safe to retry.
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string { return e.Err.Error() }

func (e *TransientError) Unwrap() error { return e.Err }

// NewTransientError wraps err as transient with an optional HTTP status.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// StatusCode extracts the HTTP status carried by a provider error, or 0.
func StatusCode(err error) int {
	if err == nil {
		return 0
	}

	var te *TransientError
	if errors.As(err, &te) && te.StatusCode != 0 {
		return te.StatusCode
	}
	var aerr *anthropic.Error
	if errors.As(err, &aerr) {
		return aerr.StatusCode
	}
	var oerr *openai.APIError
	if errors.As(err, &oerr) {
		return oerr.HTTPStatusCode
	}
	var rerr *openai.RequestError
	if errors.As(err, &rerr) {
		return rerr.HTTPStatusCode
	}
	return 0
}

// IsTransientStatus reports whether an HTTP status is worth retrying.
// 529 is Anthropic's overloaded status.
func IsTransientStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout,
		529:
		return true
	default:
		return false
	}
}

var transientPatterns = []string{
	"connection reset by peer",
	"broken pipe",
	"temporary failure in name resolution",
	"tls handshake timeout",
	"i/o timeout",
	"server closed idle connection",
	"unexpected eof",
}

// IsTransient reports whether err is worth retrying: explicit
// TransientErrors, retryable provider statuses, network timeouts and
// resets, and an open circuit.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	if errors.Is(err, ErrCircuitOpen) {
		return true
	}
	if code := StatusCode(err); code != 0 {
		return IsTransientStatus(code)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// Classify labels an error "transient" or "permanent" for prediction
// metadata and run summaries.
func Classify(err error) string {
	if IsTransient(err) {
		return "transient"
	}
	return "permanent"
}

// RetryAfter returns the server's Retry-After hint from an Anthropic error
// response, when present.
func RetryAfter(err error) (time.Duration, bool) {
	var aerr *anthropic.Error
	if !errors.As(err, &aerr) || aerr.Response == nil {
		return 0, false
	}
	v := aerr.Response.Header.Get("Retry-After")
	if v == "" {
		return 0, false
	}
	secs, perr := strconv.Atoi(v)
	if perr != nil || secs < 0 {
		return 0, false
	}
	return time.Duration(secs) * time.Second, true
}
