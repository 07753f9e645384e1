package web

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/dbehnke/p25-nexus/pkg/calllog"
	"github.com/dbehnke/p25-nexus/pkg/database"
	"github.com/dbehnke/p25-nexus/pkg/logger"
	"github.com/dbehnke/p25-nexus/pkg/p25"
)

const (
	defaultLimit = 50
	maxLimit     = 1000
)

// Sources supplies the data the API serves. Every field is optional.
type Sources struct {
	Stats    func() map[string]p25.ProcessorStats
	Active   func() []calllog.Call
	Messages *database.MessageRepository
	Calls    *database.CallRepository
}

// History keeps the most recent events in memory
type History struct {
	mu     sync.RWMutex
	events []p25.Event
	next   int
	full   bool
}

// NewHistory creates a history holding up to size events
func NewHistory(size int) *History {
	if size <= 0 {
		size = 1
	}
	return &History{events: make([]p25.Event, size)}
}

// Add records an event, evicting the oldest when full
func (h *History) Add(ev p25.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events[h.next] = ev
	h.next++
	if h.next == len(h.events) {
		h.next = 0
		h.full = true
	}
}

// Recent returns up to limit events, newest first, optionally for one channel
func (h *History) Recent(channel string, limit int) []p25.Event {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := h.next
	if h.full {
		n = len(h.events)
	}
	out := make([]p25.Event, 0, min(n, limit))
	for i := 1; i <= n && len(out) < limit; i++ {
		ev := h.events[(h.next-i+len(h.events))%len(h.events)]
		if channel != "" && ev.Channel != channel {
			continue
		}
		out = append(out, ev)
	}
	return out
}

// API handles REST API endpoints
type API struct {
	logger  *logger.Logger
	src     Sources
	history *History
	started time.Time
	clients func() int
}

// NewAPI creates a new API instance
func NewAPI(src Sources, history *History, log *logger.Logger) *API {
	return &API{
		logger:  log,
		src:     src,
		history: history,
		started: time.Now(),
	}
}

// HandleStatus handles the /api/status endpoint
func (a *API) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	version, commit, build := GetVersionInfo()
	stats := map[string]p25.ProcessorStats{}
	if a.src.Stats != nil {
		stats = a.src.Stats()
	}
	clients := 0
	if a.clients != nil {
		clients = a.clients()
	}

	a.writeJSON(w, map[string]interface{}{
		"status":     "running",
		"service":    "p25-nexus",
		"version":    version,
		"commit":     commit,
		"build_time": build,
		"uptime":     int64(time.Since(a.started).Seconds()),
		"channels":   stats,
		"clients":    clients,
	})
}

// HandleMessages handles the /api/messages endpoint. Stored messages are
// served when a database is configured, otherwise the in-memory history.
func (a *API) HandleMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	channel := r.URL.Query().Get("channel")
	kind := r.URL.Query().Get("kind")

	if a.src.Messages != nil {
		var (
			records []database.MessageRecord
			err     error
		)
		if kind != "" {
			records, err = a.src.Messages.GetByKind(kind, limit)
		} else {
			records, err = a.src.Messages.GetRecent(channel, limit)
		}
		if err != nil {
			a.logger.Error("Failed to query messages", logger.Error(err))
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		a.writeJSON(w, records)
		return
	}

	events := []p25.Event{}
	if a.history != nil {
		for _, ev := range a.history.Recent(channel, maxLimit) {
			if kind != "" && ev.Message.Kind() != kind {
				continue
			}
			events = append(events, ev)
			if len(events) == limit {
				break
			}
		}
	}
	a.writeJSON(w, events)
}

// HandleCalls handles the /api/calls endpoint
func (a *API) HandleCalls(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	active := []calllog.Call{}
	if a.src.Active != nil {
		active = a.src.Active()
	}
	recent := []database.CallRecord{}
	if a.src.Calls != nil {
		var err error
		if tg := r.URL.Query().Get("talkgroup"); tg != "" {
			n, perr := strconv.Atoi(tg)
			if perr != nil {
				http.Error(w, "Invalid talkgroup", http.StatusBadRequest)
				return
			}
			recent, err = a.src.Calls.GetByTalkgroup(n, limit)
		} else {
			recent, err = a.src.Calls.GetRecent(limit)
		}
		if err != nil {
			a.logger.Error("Failed to query calls", logger.Error(err))
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
	}

	a.writeJSON(w, map[string]interface{}{
		"active": active,
		"recent": recent,
	})
}

func (a *API) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Warn("Failed to encode response", logger.Error(err))
	}
}

func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	s := r.URL.Query().Get("limit")
	if s == "" {
		return defaultLimit, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		http.Error(w, "Invalid limit", http.StatusBadRequest)
		return 0, false
	}
	return min(n, maxLimit), true
}
