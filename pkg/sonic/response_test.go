package sonic

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/newtron-network/fpmsyncd/internal/testutil"
	"github.com/newtron-network/fpmsyncd/pkg/util"
)

func TestDecodeResponse(t *testing.T) {
	r, err := DecodeResponse(`["SWSS_RC_SUCCESS","Vrf10:10.0.0.0/24","err_str","SWSS_RC_SUCCESS","protocol","bgp"]`)
	if err != nil {
		t.Fatalf("DecodeResponse: %v", err)
	}
	if r.Key != "Vrf10:10.0.0.0/24" || r.Fields["protocol"] != "bgp" || !r.Success() {
		t.Errorf("response = %+v", r)
	}

	bad := []string{
		`not json`,
		`["only-op"]`,
		`["op","key","dangling"]`,
	}
	for _, p := range bad {
		if _, err := DecodeResponse(p); !errors.Is(err, util.ErrMalformed) {
			t.Errorf("DecodeResponse(%q) error = %v, want ErrMalformed", p, err)
		}
	}
}

func TestResponse_Success(t *testing.T) {
	r := &Response{Fields: map[string]string{"err_str": "SWSS_RC_NOT_FOUND"}}
	if r.Success() {
		t.Error("SWSS_RC_NOT_FOUND reported as success")
	}
}

func TestApplStateDBClient_SubscribeResponses(t *testing.T) {
	mr := testutil.StartRedis(t)
	c := NewApplStateDBClient(mr.Addr(), ApplStateDBNum)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	stream, err := c.SubscribeResponses(ctx, RouteResponseChannel)
	if err != nil {
		t.Fatalf("SubscribeResponses: %v", err)
	}
	defer stream.Close()

	payload, err := EncodeResponse(&Response{
		Op:     "SWSS_RC_SUCCESS",
		Key:    "10.0.0.0/24",
		Fields: map[string]string{"err_str": "SWSS_RC_SUCCESS", "protocol": "bgp"},
	})
	if err != nil {
		t.Fatalf("EncodeResponse: %v", err)
	}
	mr.Publish(RouteResponseChannel, "garbage")
	mr.Publish(RouteResponseChannel, payload)

	select {
	case r := <-stream.Responses():
		if r.Key != "10.0.0.0/24" || !r.Success() {
			t.Errorf("response = %+v", r)
		}
	case <-ctx.Done():
		t.Fatal("no response delivered")
	}
}
