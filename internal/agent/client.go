package agent

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/paularlott/loom/internal/log"
	"github.com/paularlott/loom/internal/util/rest"

	"github.com/google/uuid"
)

// RequestIDHeader is set by the agent service on the streaming response and
// scopes all per-request state downstream
const RequestIDHeader = "X-Snowflake-Request-Id"

// Client talks to the remote agent service
type Client struct {
	restClient *rest.RESTClient
}

// Config holds configuration for the agent client
type Config struct {
	Endpoint string
	Token    string
	Timeout  time.Duration
}

// New creates a new agent service client
func New(config Config) (*Client, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("agent endpoint is required")
	}

	// Ensure the endpoint has a trailing slash for proper URL resolution
	if !strings.HasSuffix(config.Endpoint, "/") {
		config.Endpoint = config.Endpoint + "/"
	}

	if config.Timeout == 0 {
		config.Timeout = 5 * time.Minute
	}

	restClient, err := rest.NewClient(config.Endpoint, config.Token, false)
	if err != nil {
		return nil, fmt.Errorf("failed to create REST client: %w", err)
	}

	restClient.SetTimeout(config.Timeout)
	restClient.SetTokenFormat("Bearer %s")
	restClient.SetContentType(rest.ContentTypeJSON)

	return &Client{
		restClient: restClient,
	}, nil
}

// RESTClient exposes the underlying REST client, used by tests
func (c *Client) RESTClient() *rest.RESTClient {
	return c.restClient
}

// EventStream is a pull iterator over the parsed envelopes of one agent
// response
type EventStream struct {
	envelopeChan <-chan Envelope
	errorChan    <-chan error
	requestID    chan string
	ctx          context.Context
	id           string
	current      *Envelope
	err          error
	done         bool
}

// StreamMessage sends a message request and streams the response events.
// Envelopes are delivered in arrival order, the request id is taken from
// the response headers with a generated fallback.
func (c *Client) StreamMessage(ctx context.Context, req SendMessageRequest) *EventStream {
	logger := log.WithGroup("agent")

	envelopeChan := make(chan Envelope, 50)
	errorChan := make(chan error, 1)
	requestID := make(chan string, 1)

	req.Stream = true

	go func() {
		defer close(envelopeChan)
		defer close(errorChan)

		ctx, cancel := context.WithTimeout(ctx, 10*time.Minute)
		defer cancel()

		err := c.restClient.StreamEvents(ctx, "POST", "v2/messages", req,
			func(resp *http.Response) {
				id := resp.Header.Get(RequestIDHeader)
				if id == "" {
					id = uuid.NewString()
					logger.Debug("missing request id header, generated one", "request_id", id)
				}
				requestID <- id
			},
			func(event string, data []byte) (bool, error) {
				envelope := ParseEvent(event, data)

				select {
				case envelopeChan <- envelope:
				case <-ctx.Done():
					return true, ctx.Err()
				}

				// The stream is drained to the [DONE] marker, done handling
				// lives with the consumer
				return false, nil
			})
		if err != nil {
			logger.Error("event stream failed", "error", err)
			errorChan <- err
		}
	}()

	return &EventStream{
		envelopeChan: envelopeChan,
		errorChan:    errorChan,
		requestID:    requestID,
		ctx:          ctx,
	}
}

// RequestID blocks until the response headers have been seen and returns
// the request id, or "" if the stream failed before headers arrived
func (s *EventStream) RequestID() string {
	for s.id == "" {
		// The id is buffered before any error can land, prefer it so a
		// late failure does not mark the stream done early
		select {
		case id := <-s.requestID:
			s.id = id
			continue
		default:
		}

		select {
		case id := <-s.requestID:
			s.id = id
		case <-s.ctx.Done():
			return s.id
		case err, ok := <-s.errorChan:
			if !ok {
				// Producer finished cleanly, the id may still be buffered
				s.errorChan = nil
				select {
				case id := <-s.requestID:
					s.id = id
				default:
				}
				return s.id
			}
			s.err = err
			s.done = true
			return s.id
		}
	}

	return s.id
}

// Next advances to the next envelope. Buffered envelopes drain to
// exhaustion before any producer error is reported, a mid-stream failure
// never drops frames that already arrived.
func (s *EventStream) Next() bool {
	if s.done {
		return false
	}

	select {
	case envelope, ok := <-s.envelopeChan:
		if !ok {
			s.done = true

			// The producer has finished, pick up its error if it left one
			if s.errorChan != nil && s.err == nil {
				select {
				case err, ok := <-s.errorChan:
					if ok {
						s.err = err
					}
				default:
				}
			}
			return false
		}
		s.current = &envelope
		return true

	case <-s.ctx.Done():
		s.err = s.ctx.Err()
		s.done = true
		return false
	}
}

func (s *EventStream) Current() Envelope {
	if s.current == nil {
		return Envelope{}
	}
	return *s.current
}

func (s *EventStream) Err() error {
	return s.err
}
