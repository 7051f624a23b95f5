package sonic

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/newtron-network/fpmsyncd/pkg/util"
)

// RouteResponseChannel carries orchagent's ROUTE_TABLE programming results.
const RouteResponseChannel = "APPL_DB_" + RouteTable + "_RESPONSE_CHANNEL"

// StatusSuccess is the err_str of a successfully programmed route.
const StatusSuccess = "SWSS_RC_SUCCESS"

// Response is one route programming result.
type Response struct {
	Op     string
	Key    string
	Fields map[string]string
}

// Success reports whether the route was programmed.
func (r *Response) Success() bool {
	return r.Fields["err_str"] == StatusSuccess
}

// DecodeResponse parses a response notification. The payload is a flat
// JSON string array: op, key, then field/value pairs.
func DecodeResponse(payload string) (*Response, error) {
	var items []string
	if err := json.Unmarshal([]byte(payload), &items); err != nil {
		return nil, util.NewDecodeError("response", err.Error())
	}
	if len(items) < 2 || len(items)%2 != 0 {
		return nil, util.NewDecodeError("response", fmt.Sprintf("%d items", len(items)))
	}
	r := &Response{Op: items[0], Key: items[1], Fields: make(map[string]string, len(items)/2-1)}
	for i := 2; i < len(items); i += 2 {
		r.Fields[items[i]] = items[i+1]
	}
	return r, nil
}

// EncodeResponse is the inverse of DecodeResponse.
func EncodeResponse(r *Response) (string, error) {
	items := []string{r.Op, r.Key}
	for k, v := range r.Fields {
		items = append(items, k, v)
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ApplStateDBClient subscribes to route programming responses.
type ApplStateDBClient struct {
	client
}

// NewApplStateDBClient creates a new APPL_STATE_DB client.
func NewApplStateDBClient(addr string, db int) *ApplStateDBClient {
	return &ApplStateDBClient{client: newClient(addr, db)}
}

// ResponseStream delivers decoded responses until closed.
type ResponseStream struct {
	ps *redis.PubSub
	ch chan *Response
}

// SubscribeResponses subscribes to channel and returns once the
// subscription is confirmed. Undecodable notifications are logged and
// skipped.
func (c *ApplStateDBClient) SubscribeResponses(ctx context.Context, channel string) (*ResponseStream, error) {
	ps := c.rdb.Subscribe(ctx, channel)
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("subscribing to %s: %w", channel, err)
	}

	s := &ResponseStream{ps: ps, ch: make(chan *Response, 64)}
	go s.run()
	return s, nil
}

func (s *ResponseStream) run() {
	defer close(s.ch)
	for msg := range s.ps.Channel() {
		r, err := DecodeResponse(msg.Payload)
		if err != nil {
			util.WithField("channel", msg.Channel).Errorf("dropping response: %v", err)
			continue
		}
		s.ch <- r
	}
}

// Responses returns the delivery channel. It is closed after Close.
func (s *ResponseStream) Responses() <-chan *Response {
	return s.ch
}

// Close ends the subscription.
func (s *ResponseStream) Close() error {
	return s.ps.Close()
}
