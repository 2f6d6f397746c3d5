package web

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/front-init/message-relay/internal/metrics"
	"github.com/front-init/message-relay/internal/protocol"
)

const (
	// ConfirmationPath is where a successful submission is redirected
	ConfirmationPath = "/message.html"

	missingFieldsText = "Both 'username' and 'message' fields are required"
)

// Relay hands an encoded submission to the listener
type Relay interface {
	Send(ctx context.Context, payload []byte) error
}

// SubmitHandler turns form posts into datagrams.
// It never touches the store; the listener is the only writer.
type SubmitHandler struct {
	relay            Relay
	logger           *slog.Logger
	metrics          *metrics.Metrics
	maxBodyBytes     int64
	maxDatagramBytes int
}

// NewSubmitHandler creates the POST /message handler.
// maxDatagramBytes should match the listener's receive buffer.
func NewSubmitHandler(relay Relay, logger *slog.Logger, m *metrics.Metrics, maxBodyBytes int64, maxDatagramBytes int) *SubmitHandler {
	return &SubmitHandler{
		relay:            relay,
		logger:           logger,
		metrics:          m,
		maxBodyBytes:     maxBodyBytes,
		maxDatagramBytes: maxDatagramBytes,
	}
}

func (h *SubmitHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	submission, status, err := h.readSubmission(w, r)
	if err != nil {
		h.reject(w, r, status, err)
		return
	}

	payload, err := protocol.Encode(submission)
	if err != nil {
		h.reject(w, r, http.StatusBadRequest, err)
		return
	}

	if len(payload) > h.maxDatagramBytes {
		h.metrics.RecordSubmission("too_large")
		writeText(w, http.StatusRequestEntityTooLarge, "Message is too long to be delivered")
		return
	}

	if err := h.relay.Send(r.Context(), payload); err != nil {
		h.metrics.RecordSubmission("relay_failed")
		h.logger.Error("Failed to relay submission",
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("error", err.Error()),
		)
		writeText(w, http.StatusInternalServerError, "Message could not be delivered, please try again")
		return
	}

	h.metrics.RecordSubmission("relayed")
	h.metrics.RecordRelayedDatagram(len(payload))
	h.logger.Debug("Submission relayed",
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("username", submission.Username),
		slog.Int("payload_size", len(payload)),
	)

	http.Redirect(w, r, ConfirmationPath, http.StatusFound)
}

// readSubmission parses the url-encoded body. Only the body counts; the
// first non-empty value wins when a field repeats.
func (h *SubmitHandler) readSubmission(w http.ResponseWriter, r *http.Request) (protocol.Submission, int, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return protocol.Submission{}, http.StatusRequestEntityTooLarge, err
		}
		return protocol.Submission{}, http.StatusBadRequest, err
	}

	values := parseForm(string(body))
	submission := protocol.Submission{
		Username: strings.TrimSpace(values.Get(protocol.FieldUsername)),
		Message:  strings.TrimSpace(values.Get(protocol.FieldMessage)),
	}
	if err := submission.Validate(); err != nil {
		return submission, http.StatusBadRequest, err
	}

	return submission, http.StatusOK, nil
}

// parseForm decodes an url-encoded body leniently: pairs are split on '&'
// only, pairs without '=' or with an empty value are skipped, and broken
// percent escapes are kept as literal text instead of failing the body.
func parseForm(body string) url.Values {
	values := url.Values{}
	for _, pair := range strings.Split(body, "&") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || value == "" {
			continue
		}
		values.Add(unescapeForm(key), unescapeForm(value))
	}
	return values
}

func unescapeForm(s string) string {
	s = strings.ReplaceAll(s, "+", " ")
	if !strings.Contains(s, "%") {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && i+2 < len(s) {
			if c, err := strconv.ParseUint(s[i+1:i+3], 16, 8); err == nil {
				b.WriteByte(byte(c))
				i += 2
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return strings.ToValidUTF8(b.String(), "\uFFFD")
}

func (h *SubmitHandler) reject(w http.ResponseWriter, r *http.Request, status int, err error) {
	h.logger.Debug("Submission rejected",
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.Int("status", status),
		slog.String("error", err.Error()),
	)

	if status == http.StatusRequestEntityTooLarge {
		h.metrics.RecordSubmission("too_large")
		writeText(w, status, "Request body is too large")
		return
	}

	h.metrics.RecordSubmission("invalid")
	writeText(w, http.StatusBadRequest, missingFieldsText)
}

func writeText(w http.ResponseWriter, status int, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, text)
}
