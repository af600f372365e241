package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestStripCodeFence(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{`{"origin": "e2"}`, `{"origin": "e2"}`},
		{"```json\n{\"origin\": \"e2\"}\n```", `{"origin": "e2"}`},
		{"```\n{\"origin\": \"e2\"}\n```", `{"origin": "e2"}`},
		{"  {\"origin\": \"e2\"}  ", `{"origin": "e2"}`},
	}
	for _, tc := range cases {
		if got := stripCodeFence(tc.in); got != tc.want {
			t.Fatalf("stripCodeFence(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestMoveReplyDecoding(t *testing.T) {
	raw := `{"origin": "e7", "destination": "e8", "promotion": "q", "reasoning": "promote", "confidence": 0.9}`
	var reply MoveReply
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if reply.Origin != "e7" || reply.Destination != "e8" || reply.Promotion != "q" {
		t.Fatalf("reply = %+v", reply)
	}
	if reply.Confidence != 0.9 {
		t.Fatalf("confidence = %v", reply.Confidence)
	}
}

func TestTransientClassification(t *testing.T) {
	base := errors.New("connection refused")
	if !IsTransient(transient(base)) {
		t.Fatalf("wrapped error should classify as transient")
	}
	if IsTransient(base) {
		t.Fatalf("bare error should not classify as transient")
	}
	if IsTransient(nil) {
		t.Fatalf("nil should not classify as transient")
	}

	wrapped := fmt.Errorf("call failed: %w", transient(base))
	if !IsTransient(wrapped) {
		t.Fatalf("transient marker should survive wrapping")
	}
	if !errors.Is(wrapped, base) {
		t.Fatalf("underlying error should stay reachable")
	}
}

func TestTransientStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		if !transientStatus(code) {
			t.Fatalf("status %d should be transient", code)
		}
	}
	for _, code := range []int{400, 401, 403, 404, 422} {
		if transientStatus(code) {
			t.Fatalf("status %d should be permanent", code)
		}
	}
}

func TestComputeDeadline(t *testing.T) {
	c := NewClient("openai", "https://example.invalid/v1", "m", "k", WithTimeout(time.Minute))

	dl := c.computeDeadline(context.Background())
	if remaining := time.Until(dl); remaining < 55*time.Second || remaining > 65*time.Second {
		t.Fatalf("default deadline off: %v", remaining)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	dl = c.computeDeadline(ctx)
	if remaining := time.Until(dl); remaining > 2*time.Second {
		t.Fatalf("context deadline should win when earlier: %v", remaining)
	}
}

func TestCompleteRequiresConfiguration(t *testing.T) {
	c := NewClient("openai", "", "", "")
	if _, err := c.Complete(context.Background(), "prompt"); err == nil {
		t.Fatalf("unconfigured client should error")
	}
}
