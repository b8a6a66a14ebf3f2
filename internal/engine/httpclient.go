package engine

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rangepull/rangepull/internal/utils"
)

// ProbeResult is what probing an origin tells the caller before a task
// is created (§4.1).
type ProbeResult struct {
	SupportsRange bool
	TotalBytes    *int64
	Filename      string
	FinalURL      string
}

// newHTTPClient builds a client tuned per §4.1: redirect cap 10,
// connect+read timeout, optional proxy.
func newHTTPClient(cfg *RuntimeConfig) (*http.Client, error) {
	transport := &http.Transport{}

	if proxy := cfg.GetProxyURL(); proxy != "" {
		proxyURL, err := url.Parse(proxy)
		if err != nil {
			return nil, newErr(ErrInvalidURL, "invalid proxy url", err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	return &http.Client{
		Transport: transport,
		Timeout:   cfg.GetTimeout(),
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= RedirectCap {
				return fmt.Errorf("stopped after %d redirects", RedirectCap)
			}
			return nil
		},
	}, nil
}

// Probe discovers range support, total size, suggested filename, and the
// final URL after redirects (§4.1).
func Probe(ctx context.Context, rawURL string, cfg *RuntimeConfig) (*ProbeResult, error) {
	if _, err := url.ParseRequestURI(rawURL); err != nil {
		return nil, newErr(ErrInvalidURL, "invalid url: "+rawURL, err)
	}

	client, err := newHTTPClient(cfg)
	if err != nil {
		return nil, err
	}

	result := &ProbeResult{FinalURL: rawURL}

	headResp, headErr := doRequest(ctx, client, http.MethodHead, rawURL, cfg, nil)
	if headErr == nil {
		defer drainAndClose(headResp)
		if headResp.StatusCode >= 200 && headResp.StatusCode < 300 {
			applyHeadMetadata(headResp, result)
		}
	}

	if result.TotalBytes == nil {
		rangeResp, rangeErr := doRequest(ctx, client, http.MethodGet, rawURL, cfg, map[string]string{"Range": "bytes=0-0"})
		if rangeErr != nil {
			if headErr != nil {
				return nil, newErr(ErrTransport, "probe request failed", rangeErr)
			}
		} else {
			defer drainAndClose(rangeResp)
			switch rangeResp.StatusCode {
			case http.StatusPartialContent:
				result.SupportsRange = true
				if total, ok := parseContentRangeTotal(rangeResp.Header.Get("Content-Range")); ok {
					result.TotalBytes = &total
				}
				result.FinalURL = rangeResp.Request.URL.String()
				if result.Filename == "" {
					result.Filename = utils.DetermineFilename(result.FinalURL, rangeResp.Header)
				}
			case http.StatusOK:
				result.SupportsRange = false
				if cl := rangeResp.Header.Get("Content-Length"); cl != "" {
					if n, err := strconv.ParseInt(cl, 10, 64); err == nil {
						result.TotalBytes = &n
					}
				}
				result.FinalURL = rangeResp.Request.URL.String()
				if result.Filename == "" {
					result.Filename = utils.DetermineFilename(result.FinalURL, rangeResp.Header)
				}
			default:
				if headErr != nil || headResp.StatusCode < 200 || headResp.StatusCode >= 300 {
					return nil, newErr(ErrProtocolMismatch, fmt.Sprintf("unexpected status code: %d", rangeResp.StatusCode), nil)
				}
			}
		}
	}

	if result.Filename == "" {
		result.Filename = "download"
	}

	return result, nil
}

func applyHeadMetadata(resp *http.Response, result *ProbeResult) {
	if resp.Header.Get("Accept-Ranges") == "bytes" {
		result.SupportsRange = true
	}
	if cl := resp.Header.Get("Content-Length"); cl != "" {
		if n, err := strconv.ParseInt(cl, 10, 64); err == nil {
			result.TotalBytes = &n
		}
	}
	result.FinalURL = resp.Request.URL.String()
	result.Filename = utils.DetermineFilename(result.FinalURL, resp.Header)
}

func parseContentRangeTotal(contentRange string) (int64, bool) {
	if contentRange == "" {
		return 0, false
	}
	idx := strings.LastIndex(contentRange, "/")
	if idx == -1 {
		return 0, false
	}
	sizeStr := contentRange[idx+1:]
	if sizeStr == "*" {
		return 0, false
	}
	n, err := strconv.ParseInt(sizeStr, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// FetchRange fetches the inclusive byte range [start, end] and returns
// the response body in full (§4.1). A non-2xx status is a ProtocolMismatch
// error. When expectPartial is set (a multi-worker ranged fetch, where
// every worker asks for a different sub-range of the same file), a 200
// response is also rejected as a ProtocolMismatch rather than accepted and
// truncated: a server that ignores Range and returns the full body would
// otherwise have its bytes silently (and wrongly) written as if they were
// just this worker's slice, corrupting the file (§6).
func FetchRange(ctx context.Context, rawURL string, start, end int64, cfg *RuntimeConfig, expectPartial bool) ([]byte, error) {
	client, err := newHTTPClient(cfg)
	if err != nil {
		return nil, err
	}

	resp, err := doRequest(ctx, client, http.MethodGet, rawURL, cfg, map[string]string{
		"Range": fmt.Sprintf("bytes=%d-%d", start, end),
	})
	if err != nil {
		return nil, newErr(ErrTransport, "fetch range failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK && expectPartial {
		io.Copy(io.Discard, resp.Body)
		return nil, newErr(ErrProtocolMismatch, "server returned 200 instead of 206 for a multi-worker ranged request", nil)
	}
	if resp.StatusCode != http.StatusPartialContent && resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, newErr(ErrProtocolMismatch, fmt.Sprintf("unexpected status for range request: %d", resp.StatusCode), nil)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newErr(ErrTransport, "reading range body failed", err)
	}
	return data, nil
}

func doRequest(ctx context.Context, client *http.Client, method, rawURL string, cfg *RuntimeConfig, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, newErr(ErrInvalidURL, "failed to build request", err)
	}
	req.Header.Set("User-Agent", cfg.GetUserAgent())
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return client.Do(req)
}

func drainAndClose(resp *http.Response) {
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
