package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"net/url"
	"syscall"
	"time"
	"unicode/utf8"

	"github.com/hamed0406/healthwatch/internal/domain"
)

// BodyLimit is how many characters of a response body are kept for diagnostics.
const BodyLimit = 1000

// ConnectionErrorMessage marks a result whose host refused or could not be
// reached; the monitor runs a DNS diagnosis for these.
const ConnectionErrorMessage = "connection error"

// Prober issues one probe against a target. Implementations never fail:
// every outcome is encoded in the returned result.
type Prober interface {
	Probe(ctx context.Context, t domain.Target) domain.CheckResult
}

// HTTPChecker probes targets with a GET request.
type HTTPChecker struct {
	Client *http.Client
	Now    func() time.Time
}

// NewHTTPChecker returns a checker whose deadline comes from each target.
// The default client follows redirects.
func NewHTTPChecker() *HTTPChecker {
	return &HTTPChecker{
		Client: &http.Client{},
		Now:    time.Now,
	}
}

// Probe fetches the target URL within its timeout and compares the status
// code with the one the target expects.
func (h *HTTPChecker) Probe(ctx context.Context, t domain.Target) domain.CheckResult {
	now := h.Now
	if now == nil {
		now = time.Now
	}
	res := domain.CheckResult{
		Target:    t.Ref(),
		CheckedAt: now().UTC(),
	}
	if w := t.OwnerWebsite(); w != nil {
		res.WebsiteID = w.ID
	}

	ctx, cancel := context.WithTimeout(ctx, t.Timeout())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.TargetURL(), nil)
	if err != nil {
		res.ErrorMessage = "request error: " + err.Error()
		return res
	}

	start := time.Now()
	resp, err := h.Client.Do(req)
	if err != nil {
		res.ErrorMessage = classifyErr(err, t.TimeoutSecs())
		return res
	}
	defer resp.Body.Close()

	// Keep whatever arrived; a short read still counts as a completed exchange.
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, BodyLimit*utf8.UTFMax))
	latency := roundMillis(time.Since(start))

	code := resp.StatusCode
	res.StatusCode = &code
	res.Latency = &latency
	res.ResponseBody = truncate(raw, BodyLimit)
	res.Online = code == t.ExpectedStatus()
	if !res.Online {
		res.ErrorMessage = fmt.Sprintf("expected status %d, got %d", t.ExpectedStatus(), code)
	}
	return res
}

func classifyErr(err error, timeoutSeconds int) string {
	if isTimeout(err) {
		return fmt.Sprintf("request timed out after %ds", timeoutSeconds)
	}
	if isConnectionError(err) {
		return ConnectionErrorMessage
	}
	var ue *url.Error
	if errors.As(err, &ue) {
		err = ue.Err
	}
	return "request error: " + err.Error()
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func isConnectionError(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EHOSTUNREACH) || errors.Is(err, syscall.ENETUNREACH) {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

func roundMillis(d time.Duration) float64 {
	return math.Round(d.Seconds()*1000) / 1000
}

// truncate keeps the first n characters, dropping a trailing partial rune.
func truncate(b []byte, n int) string {
	count := 0
	for i := 0; i < len(b); {
		if count == n {
			return string(b[:i])
		}
		r, size := utf8.DecodeRune(b[i:])
		if r == utf8.RuneError && size <= 1 && !utf8.FullRune(b[i:]) {
			return string(b[:i])
		}
		i += size
		count++
	}
	return string(b)
}
