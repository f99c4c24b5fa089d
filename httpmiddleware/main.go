package httpmiddleware

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type HttpRequestStruct struct {
	Method  string
	Url     string
	Body    io.Reader
	Headers map[string]string
}

var client = &http.Client{
	Transport: otelhttp.NewTransport(http.DefaultTransport),
	Timeout:   90 * time.Second,
}

// HttpRequest performs a single HTTP round trip through the traced client
// and returns the response body. Non-2xx statuses are returned as errors
// along with the body so callers can log the provider's message.
func HttpRequest(args HttpRequestStruct) ([]byte, error) {
	req, err := http.NewRequest(args.Method, args.Url, args.Body)
	if err != nil {
		return nil, fmt.Errorf("could not build request: %w", err)
	}

	for key, value := range args.Headers {
		req.Header.Set(key, value)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("could not read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return respBody, fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}
