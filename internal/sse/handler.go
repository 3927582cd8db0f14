package sse

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	// retryAfter tells EventSource how long to wait before reconnecting.
	retryAfter    = 3 * time.Second
	writeDeadline = 60 * time.Second
)

// Handler serves GET /api/v1/events.
//
// Query parameters:
//
//	topics       comma separated topics, e.g. "history,schedule"
//	lastEventId  fallback for clients that cannot send the Last-Event-ID header
type Handler struct {
	manager *Manager
	logger  *slog.Logger
}

// NewHandler creates a Handler bound to manager.
func NewHandler(manager *Manager, logger *slog.Logger) *Handler {
	return &Handler{manager: manager, logger: logger}
}

// frame is one text/event-stream message.
type frame struct {
	event string
	data  any
	id    uint64
	retry time.Duration
}

func (f frame) encode() ([]byte, error) {
	payload, err := json.Marshal(f.data)
	if err != nil {
		return nil, err
	}

	var b bytes.Buffer
	if f.retry > 0 {
		b.WriteString("retry: ")
		b.WriteString(strconv.FormatInt(f.retry.Milliseconds(), 10))
		b.WriteByte('\n')
	}
	if f.id > 0 {
		b.WriteString("id: ")
		b.WriteString(strconv.FormatUint(f.id, 10))
		b.WriteByte('\n')
	}
	b.WriteString("event: ")
	b.WriteString(f.event)
	b.WriteString("\ndata: ")
	b.Write(payload)
	b.WriteString("\n\n")
	return b.Bytes(), nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if r.Context().Err() != nil {
		return
	}

	sub := subscriptionFrom(r)

	client, err := h.manager.Connect(sub)
	if errors.Is(err, ErrClosed) {
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	}
	if err != nil {
		h.logger.Error("failed to register SSE client", slog.String("error", err.Error()))
		http.Error(w, "failed to open event stream", http.StatusInternalServerError)
		return
	}
	defer h.manager.Disconnect(client.ID)

	hdr := w.Header()
	hdr.Set("Content-Type", "text/event-stream")
	hdr.Set("Cache-Control", "no-cache")
	hdr.Set("Connection", "keep-alive")
	hdr.Set("X-Accel-Buffering", "no")

	rc := http.NewResponseController(w)
	log := h.logger.With(slog.String("client_id", client.ID))

	send := func(f frame) bool {
		msg, err := f.encode()
		if err != nil {
			log.Error("failed to encode event", slog.String("event", f.event), slog.String("error", err.Error()))
			return true
		}
		if _, err := w.Write(msg); err != nil {
			log.Info("client went away during write")
			return false
		}
		if err := rc.Flush(); err != nil {
			log.Info("client went away during flush")
			return false
		}
		if err := rc.SetWriteDeadline(time.Now().Add(writeDeadline)); err != nil && !errors.Is(err, http.ErrNotSupported) {
			log.Debug("failed to extend write deadline", slog.String("error", err.Error()))
		}
		return true
	}

	if !send(frame{
		event: "connected",
		retry: retryAfter,
		data: map[string]any{
			"client_id": client.ID,
			"seq":       h.manager.LastSeq(),
			"topics":    sub.Topics,
		},
	}) {
		return
	}
	if client.Resync && !send(frame{event: "resync", data: map[string]any{"since": sub.LastSeq}}) {
		return
	}

	for {
		select {
		case d, ok := <-client.Events():
			if !ok {
				return
			}
			if !send(frame{event: string(d.Event.Type), id: d.Seq, data: d.Event}) {
				return
			}
		case <-client.Done():
			return
		case <-r.Context().Done():
			return
		}
	}
}

func subscriptionFrom(r *http.Request) Subscription {
	var sub Subscription

	q := r.URL.Query()
	for _, t := range strings.Split(q.Get("topics"), ",") {
		if t = strings.TrimSpace(strings.ToLower(t)); t != "" {
			sub.Topics = append(sub.Topics, t)
		}
	}

	last := r.Header.Get("Last-Event-ID")
	if last == "" {
		last = q.Get("lastEventId")
	}
	if n, err := strconv.ParseUint(strings.TrimSpace(last), 10, 64); err == nil {
		sub.LastSeq = n
	}
	return sub
}
