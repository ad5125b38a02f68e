package collector

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultTimeout = 30 * time.Second

// newHTTPClient builds a client with an optional proxy. insecure skips TLS verification,
// which the local brokerage gateway requires.
func newHTTPClient(proxyURL string, insecure bool) *http.Client {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	if insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &http.Client{
		Timeout:   defaultTimeout,
		Transport: transport,
	}
}

// getJSON issues a GET and decodes a 200 response into out.
func getJSON(ctx context.Context, client *http.Client, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", redact(endpoint), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d, body: %s", resp.StatusCode, truncate(string(body), 200))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

// redact strips query parameters so API tokens never reach the logs.
func redact(endpoint string) string {
	if i := strings.IndexByte(endpoint, '?'); i >= 0 {
		return endpoint[:i]
	}
	return endpoint
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// toFloat converts a loosely typed JSON value. Nil and unparseable values become NaN.
// Strings may carry a trailing "%" (scaled to a fraction) and brokerage prefixes such as "C".
func toFloat(v interface{}) float64 {
	switch n := v.(type) {
	case nil:
		return math.NaN()
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(n, ",", ""))
		s = strings.TrimLeft(s, "CH")
		scale := 1.0
		if strings.HasSuffix(s, "%") {
			s = strings.TrimSuffix(s, "%")
			scale = 0.01
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return math.NaN()
		}
		return f * scale
	case map[string]interface{}:
		if inner, ok := n["v"]; ok {
			return toFloat(inner)
		}
		return math.NaN()
	default:
		return math.NaN()
	}
}

// firstValid returns the first candidate that is a usable positive price.
func firstValid(candidates ...float64) (float64, bool) {
	for _, c := range candidates {
		if !math.IsNaN(c) && !math.IsInf(c, 0) && c > 0 {
			return c, true
		}
	}
	return 0, false
}

func midOf(bid, ask float64) float64 {
	if math.IsNaN(bid) || math.IsNaN(ask) {
		return math.NaN()
	}
	return (bid + ask) / 2
}
