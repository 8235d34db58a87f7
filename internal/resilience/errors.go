package resilience

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// RetrievalError is returned when a remote artifact cannot be fetched.
// Transient is true for rate limiting (429), server errors (5xx) and
// network failures; permanent failures (404 and other 4xx) are not retried.
type RetrievalError struct {
	URL        string
	StatusCode int
	Transient  bool
	Err        error
}

func (e *RetrievalError) Error() string {
	switch {
	case e.Err != nil && e.StatusCode > 0:
		return fmt.Sprintf("retrieval: %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("retrieval: %s: %v", e.URL, e.Err)
	default:
		return fmt.Sprintf("retrieval: %s: status %d", e.URL, e.StatusCode)
	}
}

func (e *RetrievalError) Unwrap() error {
	return e.Err
}

// NewStatusError classifies a non-2xx HTTP response.
func NewStatusError(url string, statusCode int) *RetrievalError {
	return &RetrievalError{
		URL:        url,
		StatusCode: statusCode,
		Transient:  IsTransientHTTPStatus(statusCode),
	}
}

// NewNetworkError wraps a transport-level failure. It is transient when the
// underlying error looks like a timeout, reset or DNS hiccup.
func NewNetworkError(url string, err error) *RetrievalError {
	return &RetrievalError{URL: url, Err: err, Transient: isTransientNetwork(err)}
}

// IsTransient returns true if the error (or any error in its chain) is a
// transient RetrievalError, or if it matches common transient error patterns
// (network timeouts, connection resets, DNS failures).
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var re *RetrievalError
	if errors.As(err, &re) {
		return re.Transient
	}

	return isTransientNetwork(err)
}

// IsPermanent reports whether err is a RetrievalError that must not be retried.
func IsPermanent(err error) bool {
	var re *RetrievalError
	return errors.As(err, &re) && !re.Transient
}

func isTransientNetwork(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	// Connection reset / refused / DNS.
	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	// String-based heuristics for wrapped errors from HTTP clients.
	msg := strings.ToLower(err.Error())
	transientPatterns := []string{
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
		"server closed idle connection",
		"transport connection broken",
		"unexpected eof",
	}
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

// IsTransientHTTPStatus returns true if the HTTP status code indicates a
// transient server-side issue that is safe to retry.
func IsTransientHTTPStatus(statusCode int) bool {
	return statusCode == 429 || (statusCode >= 500 && statusCode <= 599)
}
