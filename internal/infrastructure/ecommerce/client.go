package ecommerce

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/storefront/backend/internal/domain/integration"
)

// maxResponseSize caps how much of a platform response body is read (10MB)
const maxResponseSize = 10 * 1024 * 1024

// IdempotencyKeyHeader carries the per-call key on mutating requests
const IdempotencyKeyHeader = "Idempotency-Key"

// apiRequest is one platform call before signing
type apiRequest struct {
	HTTPMethod string
	Path       string
	Query      url.Values
	Header     http.Header
	// Form is encoded as the body when Body is nil
	Form url.Values
	Body []byte
	// Mutation marks calls that change platform state
	Mutation bool
}

// requestSigner adds credentials and the platform signature to a request
type requestSigner func(req *apiRequest) error

// baseClient is the request path shared by every connector: rate limit,
// timeout, idempotency key, signing, bounded read and error classification.
type baseClient struct {
	platform   integration.PlatformCode
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	timeout    time.Duration
	sign       requestSigner
}

func newBaseClient(platform integration.PlatformCode, baseURL string, account *integration.ChannelAccount, httpClient *http.Client, sign requestSigner) *baseClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	perMinute := account.RequestsPerMinute()
	burst := max(1, perMinute/10)
	return &baseClient{
		platform:   platform,
		baseURL:    baseURL,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), burst),
		timeout:    account.RequestTimeout(),
		sign:       sign,
	}
}

// do sends the request and returns the response body of a 2xx reply.
// Every failure is a *integration.ConnectorError.
func (c *baseClient) do(ctx context.Context, req *apiRequest) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, integration.NewConnectorError(integration.ConnectorErrTimeout, "%s: waiting for rate limiter: %v", c.platform, ctx.Err())
		}
		return nil, integration.NewConnectorError(integration.ConnectorErrRateLimited, "%s: local rate limit: %v", c.platform, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if req.Header == nil {
		req.Header = http.Header{}
	}
	if req.Mutation && req.Header.Get(IdempotencyKeyHeader) == "" {
		req.Header.Set(IdempotencyKeyHeader, uuid.NewString())
	}
	if c.sign != nil {
		if err := c.sign(req); err != nil {
			return nil, integration.NewConnectorError(integration.ConnectorErrValidation, "%s: signing request: %v", c.platform, err)
		}
	}

	body := req.Body
	if body == nil && req.Form != nil {
		body = []byte(req.Form.Encode())
		if req.Header.Get("Content-Type") == "" {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded;charset=utf-8")
		}
	}

	target := c.baseURL + req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.HTTPMethod, target, bytes.NewReader(body))
	if err != nil {
		return nil, integration.NewConnectorError(integration.ConnectorErrValidation, "%s: building request: %v", c.platform, err)
	}
	httpReq.Header = req.Header
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, c.classifyTransportError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize+1))
	if err != nil {
		return nil, c.classifyTransportError(err)
	}
	if len(respBody) > maxResponseSize {
		return nil, integration.NewConnectorError(integration.ConnectorErrBadResponse, "%s: response exceeds %d bytes", c.platform, maxResponseSize)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, classifyHTTPStatus(c.platform, resp.StatusCode, respBody)
	}
	return respBody, nil
}

func (c *baseClient) classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return integration.NewConnectorError(integration.ConnectorErrTimeout, "%s: request timed out after %s", c.platform, c.timeout)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return integration.NewConnectorError(integration.ConnectorErrTimeout, "%s: %v", c.platform, err)
	}
	return integration.NewConnectorError(integration.ConnectorErrPlatformUnavailable, "%s: %v", c.platform, err)
}

func classifyHTTPStatus(platform integration.PlatformCode, status int, body []byte) error {
	snippet := string(body)
	if len(snippet) > 256 {
		snippet = snippet[:256]
	}
	var code integration.ConnectorErrorCode
	switch {
	case status == http.StatusTooManyRequests:
		code = integration.ConnectorErrRateLimited
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		code = integration.ConnectorErrUnauthorized
	case status == http.StatusNotFound:
		code = integration.ConnectorErrNotFound
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		code = integration.ConnectorErrValidation
	case status == http.StatusRequestTimeout, status == http.StatusGatewayTimeout:
		code = integration.ConnectorErrTimeout
	case status == http.StatusBadGateway, status == http.StatusServiceUnavailable:
		code = integration.ConnectorErrPlatformUnavailable
	case status >= http.StatusInternalServerError:
		code = integration.ConnectorErrServerError
	default:
		code = integration.ConnectorErrBadResponse
	}
	return integration.NewConnectorError(code, "%s: HTTP %d: %s", platform, status, snippet)
}

// decodeJSON unmarshals a platform response, mapping parse failures to
// BAD_RESPONSE.
func decodeJSON(platform integration.PlatformCode, body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return integration.NewConnectorError(integration.ConnectorErrBadResponse, "%s: failed to parse response: %v", platform, err)
	}
	return nil
}

func marshalParams(platform integration.PlatformCode, v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, integration.NewConnectorError(integration.ConnectorErrValidation, "%s: %v", platform, err)
	}
	return b, nil
}

func notFound(platform integration.PlatformCode, kind, id string) error {
	return integration.NewConnectorError(integration.ConnectorErrNotFound, "%s: %s %s not found", platform, kind, id)
}

func formatUnix(t time.Time) string {
	return fmt.Sprintf("%d", t.Unix())
}
