package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"metaplan/internal/plan"
)

type scriptedProvider struct {
	calls   int
	results []error
	output  string
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Complete(ctx context.Context, req Request) (string, error) {
	i := p.calls
	p.calls++
	if i < len(p.results) && p.results[i] != nil {
		return "", p.results[i]
	}
	return p.output, nil
}

func newTestClient(p Provider, maxAttempts int) (*Client, *[]time.Duration) {
	c := NewClient(p, maxAttempts, time.Second, nil)
	var slept []time.Duration
	c.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return c, &slept
}

func TestCompleteRetriesTransientThenSucceeds(t *testing.T) {
	p := &scriptedProvider{
		results: []error{
			&TransientError{Err: errors.New("429")},
			&TransientError{Err: errors.New("503")},
			nil,
		},
		output: "ok",
	}
	c, slept := newTestClient(p, 3)

	out, err := c.Complete(context.Background(), Request{})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if out != "ok" {
		t.Fatalf("unexpected output %q", out)
	}
	if p.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", p.calls)
	}
	// Backoff doubles per attempt: 1s then 2s.
	if len(*slept) != 2 || (*slept)[0] != time.Second || (*slept)[1] != 2*time.Second {
		t.Fatalf("unexpected backoff schedule: %v", *slept)
	}
}

func TestCompleteStopsOnFatal(t *testing.T) {
	p := &scriptedProvider{results: []error{&FatalError{Err: errors.New("401")}}}
	c, slept := newTestClient(p, 3)

	_, err := c.Complete(context.Background(), Request{})
	var fe *FatalError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FatalError, got %v", err)
	}
	if p.calls != 1 {
		t.Fatalf("fatal errors must not be retried, got %d attempts", p.calls)
	}
	if len(*slept) != 0 {
		t.Fatalf("no backoff after a fatal error: %v", *slept)
	}
}

func TestCompleteExhaustsRetries(t *testing.T) {
	p := &scriptedProvider{
		results: []error{
			&TransientError{Err: errors.New("one")},
			&TransientError{Err: errors.New("two")},
			&TransientError{Err: errors.New("three")},
		},
	}
	c, _ := newTestClient(p, 3)

	_, err := c.Complete(context.Background(), Request{})
	var ee *ExhaustedError
	if !errors.As(err, &ee) {
		t.Fatalf("expected ExhaustedError, got %v", err)
	}
	if ee.Attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", ee.Attempts)
	}
	if p.calls != 3 {
		t.Fatalf("expected exactly 3 provider calls, got %d", p.calls)
	}
}

func TestCompleteObservesContextCancellation(t *testing.T) {
	p := &scriptedProvider{results: []error{&TransientError{Err: errors.New("slow")}}}
	c := NewClient(p, 3, time.Hour, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Complete(ctx, Request{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestCompleteWithoutProvider(t *testing.T) {
	c := NewClient(nil, 3, time.Second, nil)
	_, err := c.Complete(context.Background(), Request{})
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestBackoffCaps(t *testing.T) {
	c := NewClient(&MockProvider{}, 10, time.Second, nil)
	if got := c.backoff(1); got != time.Second {
		t.Fatalf("attempt 1: %v", got)
	}
	if got := c.backoff(4); got != 8*time.Second {
		t.Fatalf("attempt 4: %v", got)
	}
	if got := c.backoff(9); got != 30*time.Second {
		t.Fatalf("backoff must cap at 30s, got %v", got)
	}
}

func TestOpenAIProviderClassifiesStatuses(t *testing.T) {
	cases := []struct {
		status    int
		transient bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusBadGateway, true},
		{http.StatusUnauthorized, false},
		{http.StatusForbidden, false},
		{http.StatusBadRequest, false},
	}

	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		}))
		p, err := NewOpenAIProvider(srv.URL, "key", "model", time.Second)
		if err != nil {
			t.Fatalf("new provider: %v", err)
		}
		_, err = p.Complete(context.Background(), Request{System: "s", User: "u"})
		srv.Close()

		if err == nil {
			t.Fatalf("status %d: expected error", tc.status)
		}
		if IsTransient(err) != tc.transient {
			t.Fatalf("status %d: transient=%v, want %v (%v)", tc.status, IsTransient(err), tc.transient, err)
		}
	}
}

func TestOpenAIProviderParsesCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer key" {
			t.Errorf("unexpected auth header %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"date\":\"2026-03-02\"}"}}]}`))
	}))
	defer srv.Close()

	p, err := NewOpenAIProvider(srv.URL, "key", "model", time.Second)
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	out, err := p.Complete(context.Background(), Request{System: "s", User: "u"})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if out != `{"date":"2026-03-02"}` {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestOpenAIProviderSendsJSONMode(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		decoded := map[string]any{}
		if err := json.NewDecoder(r.Body).Decode(&decoded); err != nil {
			t.Errorf("decode request: %v", err)
		}
		body = decoded
		w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	p, err := NewOpenAIProvider(srv.URL, "key", "model", time.Second)
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}

	if _, err := p.Complete(context.Background(), Request{System: "s", User: "u", JSONMode: true}); err != nil {
		t.Fatalf("complete: %v", err)
	}
	rf, ok := body["response_format"].(map[string]any)
	if !ok || rf["type"] != "json_object" {
		t.Fatalf("expected response_format json_object, got %+v", body["response_format"])
	}

	if _, err := p.Complete(context.Background(), Request{System: "s", User: "u"}); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, present := body["response_format"]; present {
		t.Fatalf("response_format must be omitted without JSONMode: %+v", body)
	}
}

func TestOpenAIProviderRequiresKey(t *testing.T) {
	if _, err := NewOpenAIProvider("", "  ", "model", time.Second); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestMockProviderProducesValidPlan(t *testing.T) {
	p := &MockProvider{}
	out, err := p.Complete(context.Background(), Request{User: "Plan the day 2026-03-02 for user u1."})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}

	parsed, err := plan.Parse(out)
	if err != nil {
		t.Fatalf("mock output must parse: %v", err)
	}
	if parsed.Date != "2026-03-02" {
		t.Fatalf("mock must echo the prompt date, got %s", parsed.Date)
	}
	if err := plan.Validate(parsed, plan.Refs{}); err != nil {
		t.Fatalf("mock plan must validate against an empty context: %v", err)
	}

	again, err := p.Complete(context.Background(), Request{User: "Plan the day 2026-03-02 for user u1."})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if again != out {
		t.Fatalf("mock provider must be deterministic")
	}
}
