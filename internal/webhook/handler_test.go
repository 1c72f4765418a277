package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/time/rate"

	"jirabridge/internal/bridge"
	"jirabridge/pkg/logx"
)

type fakeProcessor struct {
	result  bridge.Result
	calls   int
	lastEnv bridge.Envelope
}

func (p *fakeProcessor) Process(_ context.Context, env bridge.Envelope, _ bridge.Settings, _ bridge.Capabilities) bridge.Result {
	p.calls++
	p.lastEnv = env
	return p.result
}

func testDeps(p *fakeProcessor) Deps {
	return Deps{
		Processor: p,
		Settings: func() (bridge.Settings, []string) {
			st, warns := bridge.ParseSettings("", "name", "", false, "")
			return st, warns
		},
	}
}

func TestHandlerProcessesEvent(t *testing.T) {
	t.Parallel()
	proc := &fakeProcessor{result: bridge.Result{
		IssueKey:  "PRJ-1",
		EventType: "jira:issue_created",
		Outcomes:  []bridge.Outcome{{Username: "bob", Sent: true}},
		Attempts:  1,
		Sent:      1,
	}}
	h := NewHandler(testDeps(proc), nil, logx.Nop())

	body := `{"webhookEvent":"jira:issue_created","issue":{"key":"PRJ-1"}}`
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got Response
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("bad response JSON: %v", err)
	}
	if !got.Success {
		t.Fatal("Success must be true at the transport level")
	}
	if got.Parsed.IssueKey != "PRJ-1" || got.Parsed.Sent != 1 {
		t.Fatalf("parsed = %+v", got.Parsed)
	}
	if got.Warnings == nil {
		t.Fatal("warnings must encode as [] not null")
	}
	if proc.calls != 1 || proc.lastEnv["webhookEvent"] != "jira:issue_created" {
		t.Fatalf("processor calls=%d env=%v", proc.calls, proc.lastEnv)
	}
}

func TestHandlerSuccessDespiteDeliveryFailures(t *testing.T) {
	t.Parallel()
	proc := &fakeProcessor{result: bridge.Result{
		IssueKey:  "PRJ-2",
		EventType: "jira:issue_created",
		Outcomes:  []bridge.Outcome{{Username: "bob", Tag: bridge.TagSendFailed}},
		Attempts:  1,
		Warnings:  []string{"send failed for bob"},
	}}
	h := NewHandler(testDeps(proc), nil, logx.Nop())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{}`)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 even with zero deliveries", rec.Code)
	}
	var got Response
	_ = json.Unmarshal(rec.Body.Bytes(), &got)
	if !got.Success {
		t.Fatal("delivery failures are data, not transport errors")
	}
	if len(got.Warnings) != 1 || len(got.Parsed.Outcomes) != 1 || got.Parsed.Outcomes[0].Tag != bridge.TagSendFailed {
		t.Fatalf("response = %+v", got)
	}
}

func TestHandlerMalformedJSON(t *testing.T) {
	t.Parallel()
	proc := &fakeProcessor{}
	h := NewHandler(testDeps(proc), nil, logx.Nop())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{not json`)))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if proc.calls != 0 {
		t.Fatal("malformed body must not reach the pipeline")
	}
	var got Response
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("error response must still be JSON: %v", err)
	}
	if got.Success {
		t.Fatal("Success must be false for a rejected body")
	}
}

func TestHandlerMethodNotAllowed(t *testing.T) {
	t.Parallel()
	h := NewHandler(testDeps(&fakeProcessor{}), nil, logx.Nop())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/webhook", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}

func TestHandlerRateLimit(t *testing.T) {
	t.Parallel()
	proc := &fakeProcessor{}
	// Burst of one: the second immediate request must be rejected.
	h := NewHandler(testDeps(proc), rate.NewLimiter(1, 1), logx.Nop())

	first := httptest.NewRecorder()
	h.ServeHTTP(first, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{}`)))
	if first.Code != http.StatusOK {
		t.Fatalf("first status = %d", first.Code)
	}

	second := httptest.NewRecorder()
	h.ServeHTTP(second, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{}`)))
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second status = %d, want 429", second.Code)
	}
	if proc.calls != 1 {
		t.Fatalf("processor calls = %d, want 1", proc.calls)
	}
}

func TestWithAuth(t *testing.T) {
	t.Parallel()
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := withAuth("s3cret", next)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: status = %d, want 401", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/webhook", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong token: status = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/webhook", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("valid token: status = %d, want 200", rec.Code)
	}
}

func TestConfigDefaults(t *testing.T) {
	t.Parallel()
	cfg := Config{Enabled: true}.withDefaults()
	if cfg.Addr != "127.0.0.1:8077" {
		t.Fatalf("Addr = %q", cfg.Addr)
	}
	if cfg.Path != "/webhook" {
		t.Fatalf("Path = %q", cfg.Path)
	}
	if cfg.RatePerSec != 10 {
		t.Fatalf("RatePerSec = %d", cfg.RatePerSec)
	}

	cfg = Config{Path: "hooks/jira/"}.withDefaults()
	if cfg.Path != "/hooks/jira" {
		t.Fatalf("normalized Path = %q", cfg.Path)
	}
}

func TestIsLoopbackAddr(t *testing.T) {
	t.Parallel()
	tests := []struct {
		addr string
		want bool
	}{
		{"127.0.0.1:8077", true},
		{"localhost:8077", true},
		{"[::1]:8077", true},
		{"0.0.0.0:8077", false},
		{":8077", false},
		{"192.168.1.5:8077", false},
		{"not-an-addr", false},
	}
	for _, tt := range tests {
		if got := isLoopbackAddr(tt.addr); got != tt.want {
			t.Fatalf("isLoopbackAddr(%q) = %v, want %v", tt.addr, got, tt.want)
		}
	}
}
