package rest

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/paularlott/loom/build"

	"github.com/vmihailenco/msgpack/v5"
)

const (
	ContentTypeJSON    = "application/json"
	ContentTypeMsgPack = "application/msgpack"
)

type RESTClient struct {
	baseURL     *url.URL
	token       string
	tokenKey    string
	tokenFormat string
	userAgent   string
	contentType string
	HTTPClient  *http.Client
	headers     map[string]string
}

func NewClient(baseURL string, token string, insecureSkipVerify bool) (*RESTClient, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %s, error: %v", baseURL, err)
	}

	restClient := &RESTClient{
		baseURL:     parsed,
		token:       token,
		tokenKey:    "Authorization",
		tokenFormat: "Bearer %s",
		userAgent:   "loom v" + build.Version,
		contentType: ContentTypeJSON,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		headers: make(map[string]string),
	}

	restClient.HTTPClient.Transport = &http.Transport{
		TLSClientConfig:     &tls.Config{InsecureSkipVerify: insecureSkipVerify},
		MaxConnsPerHost:     32 * 2,
		MaxIdleConns:        32 * 2,
		MaxIdleConnsPerHost: 32,
		IdleConnTimeout:     30 * time.Second,
	}

	return restClient, nil
}

func (c *RESTClient) Close() {
	c.HTTPClient.CloseIdleConnections()
}

func (c *RESTClient) SetTimeout(timeout time.Duration) *RESTClient {
	c.HTTPClient.Timeout = timeout
	return c
}

func (c *RESTClient) SetContentType(contentType string) *RESTClient {
	c.contentType = contentType
	return c
}

func (c *RESTClient) SetUserAgent(userAgent string) *RESTClient {
	c.userAgent = userAgent
	return c
}

func (c *RESTClient) SetBaseUrl(baseURL string) (*RESTClient, error) {
	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %s, error: %v", baseURL, err)
	}

	c.baseURL = parsedURL

	return c, nil
}

func (c *RESTClient) SetAuthToken(token string) *RESTClient {
	c.token = token
	return c
}

func (c *RESTClient) SetTokenKey(key string) *RESTClient {
	c.tokenKey = key
	return c
}

func (c *RESTClient) SetTokenFormat(format string) *RESTClient {
	c.tokenFormat = format
	return c
}

func (c *RESTClient) SetHeader(key, value string) *RESTClient {
	c.headers[key] = value
	return c
}

func (c *RESTClient) DeleteHeader(key string) *RESTClient {
	delete(c.headers, key)
	return c
}

func (c *RESTClient) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json, application/msgpack")
	req.Header.Set("Content-Type", c.contentType)
	req.Header.Set("User-Agent", c.userAgent)
	if c.token != "" {
		req.Header.Set(c.tokenKey, fmt.Sprintf(c.tokenFormat, c.token))
	}

	// Add custom headers
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}
}

func (c *RESTClient) Get(ctx context.Context, path string, response interface{}) (int, error) {
	rel, err := url.Parse(path)
	if err != nil {
		return 0, fmt.Errorf("invalid path: %s, error: %v", path, err)
	}

	u := c.baseURL.ResolveReference(rel)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return 0, err
	}

	c.setHeaders(req)
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return 0, err
	}

	defer resp.Body.Close()

	if response != nil {
		contentType := resp.Header.Get("Content-Type")
		if strings.Contains(contentType, ContentTypeMsgPack) {
			err = msgpack.NewDecoder(resp.Body).Decode(response)
		} else {
			err = json.NewDecoder(resp.Body).Decode(response)
		}
	}
	return resp.StatusCode, err
}

func (c *RESTClient) SendData(ctx context.Context, method string, path string, request interface{}, response interface{}, successCode int) (int, error) {
	var data []byte
	var err error

	rel, err := url.Parse(path)
	if err != nil {
		return 0, fmt.Errorf("invalid path: %s, error: %v", path, err)
	}

	u := c.baseURL.ResolveReference(rel)

	if c.contentType == ContentTypeMsgPack {
		data, err = msgpack.Marshal(request)
	} else {
		data, err = json.Marshal(request)
	}
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), bytes.NewReader(data))
	if err != nil {
		return 0, err
	}

	c.setHeaders(req)
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if (successCode == 0 && resp.StatusCode >= http.StatusBadRequest) || (successCode > 0 && resp.StatusCode != successCode) {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, fmt.Errorf("unexpected status code: %d: %s", resp.StatusCode, string(bodyBytes))
	}

	if response != nil {
		contentType := resp.Header.Get("Content-Type")
		if strings.Contains(contentType, ContentTypeMsgPack) {
			err = msgpack.NewDecoder(resp.Body).Decode(response)
		} else {
			err = json.NewDecoder(resp.Body).Decode(response)
		}
		if err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}

func (c *RESTClient) Post(ctx context.Context, path string, request interface{}, response interface{}, successCode int) (int, error) {
	return c.SendData(ctx, http.MethodPost, path, request, response, successCode)
}

func (c *RESTClient) Put(ctx context.Context, path string, request interface{}, response interface{}, successCode int) (int, error) {
	return c.SendData(ctx, http.MethodPut, path, request, response, successCode)
}

func (c *RESTClient) Delete(ctx context.Context, path string, request interface{}, response interface{}, successCode int) (int, error) {
	return c.SendData(ctx, http.MethodDelete, path, request, response, successCode)
}

// StreamEventFunc receives one SSE frame: the event name (empty when the
// server sent no event: line) and the raw data payload. Return true to stop
// reading the stream.
type StreamEventFunc func(event string, data []byte) (isDone bool, err error)

// StreamEvents issues a request and reads the response as a named-event SSE
// stream. onResponse, when given, is called with the HTTP response before
// the first frame so callers can pick up headers.
func (c *RESTClient) StreamEvents(ctx context.Context, method string, path string, request interface{}, onResponse func(*http.Response), fn StreamEventFunc) error {
	var data []byte
	var err error

	if c.contentType == ContentTypeMsgPack {
		data, err = msgpack.Marshal(request)
	} else {
		data, err = json.Marshal(request)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	rel, err := url.Parse(path)
	if err != nil {
		return fmt.Errorf("invalid path: %s, error: %v", path, err)
	}
	u := c.baseURL.ResolveReference(rel)

	req, err := http.NewRequestWithContext(ctx, method, u.String(), bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	c.setHeaders(req)
	req.Header.Set("Accept", "text/event-stream")

	// Streaming requests rely on the context for cancellation rather than
	// the client timeout
	originalTimeout := c.HTTPClient.Timeout
	c.HTTPClient.Timeout = 0

	resp, err := c.HTTPClient.Do(req)

	c.HTTPClient.Timeout = originalTimeout

	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status code: %d: %s", resp.StatusCode, string(bodyBytes))
	}

	if onResponse != nil {
		onResponse(resp)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var eventName string

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := strings.TrimRight(scanner.Text(), "\r")

		// A blank line ends the frame, the next frame starts as the default
		// unnamed event
		if line == "" {
			eventName = ""
			continue
		}

		if strings.HasPrefix(line, "event:") {
			eventName = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			continue
		}

		if !strings.HasPrefix(line, "data:") {
			// Skip id:, retry: and comment lines
			continue
		}

		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" {
			continue
		}

		if payload == "[DONE]" {
			break
		}

		isDone, err := fn(eventName, []byte(payload))
		if err != nil {
			return err
		}
		if isDone {
			break
		}
	}

	return scanner.Err()
}

// Define a constraint for pointer types
type Pointer[T any] interface {
	*T
}

// StreamData reads a data-only SSE stream of JSON chunks, decoding each
// frame into T. Frames that fail to decode are skipped.
func StreamData[P Pointer[T], T any](
	c *RESTClient,
	ctx context.Context,
	method string,
	path string,
	request interface{},
	fn func(P) (bool, error),
) error {
	return c.StreamEvents(ctx, method, path, request, nil,
		func(event string, data []byte) (bool, error) {
			chunk := new(T)
			if err := json.Unmarshal(data, chunk); err != nil {
				// Skip malformed chunks
				return false, nil
			}
			return fn(chunk)
		})
}
