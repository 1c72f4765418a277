package webhook

import (
	"encoding/json"
	"net/http"

	"golang.org/x/time/rate"

	"jirabridge/internal/bridge"
	logx "jirabridge/pkg/logx"
)

const maxBodyBytes = 1 << 20 // 1 MiB

// Response is the transport-level reply. Success reflects only whether an
// event was accepted and processed; per-recipient delivery failures are data
// inside Parsed and Warnings.
type Response struct {
	Success  bool     `json:"success"`
	Message  string   `json:"message"`
	Parsed   Parsed   `json:"parsed"`
	Warnings []string `json:"warnings"`
}

type Parsed struct {
	IssueKey     string    `json:"issue_key"`
	EventType    string    `json:"event_type"`
	Participants int       `json:"participants"`
	Attempts     int       `json:"attempts"`
	Sent         int       `json:"sent"`
	Outcomes     []Outcome `json:"outcomes"`
}

type Outcome struct {
	Username string `json:"username"`
	Sent     bool   `json:"sent"`
	Tag      string `json:"tag,omitempty"`
}

type handler struct {
	deps    Deps
	limiter *rate.Limiter
	log     logx.Logger
}

// NewHandler builds the event endpoint handler. limiter may be nil to
// disable rate limiting.
func NewHandler(deps Deps, limiter *rate.Limiter, log logx.Logger) http.Handler {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &handler{deps: deps, limiter: limiter, log: log}
}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.limiter != nil && !h.limiter.Allow() {
		http.Error(w, "too many requests", http.StatusTooManyRequests)
		return
	}

	var env bridge.Envelope
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&env); err != nil {
		// The one non-200 business case: with no parseable event there is
		// nothing to process.
		h.log.Debug("rejected malformed body", logx.Err(err))
		writeJSON(w, http.StatusBadRequest, Response{
			Message:  "invalid JSON body",
			Warnings: []string{},
		})
		return
	}

	st, warnings := h.deps.Settings()
	result := h.deps.Processor.Process(r.Context(), env, st, h.deps.Capabilities)
	warnings = append(warnings, result.Warnings...)
	if warnings == nil {
		warnings = []string{}
	}

	outcomes := make([]Outcome, 0, len(result.Outcomes))
	for _, o := range result.Outcomes {
		outcomes = append(outcomes, Outcome{Username: o.Username, Sent: o.Sent, Tag: o.Tag})
	}

	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Message: result.Message(),
		Parsed: Parsed{
			IssueKey:     result.IssueKey,
			EventType:    result.EventType,
			Participants: result.Participants,
			Attempts:     result.Attempts,
			Sent:         result.Sent,
			Outcomes:     outcomes,
		},
		Warnings: warnings,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
