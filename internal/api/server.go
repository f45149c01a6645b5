package api

import (
	"math"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"

	"github.com/navarlu/Historian/internal/app/pipeline"
	"github.com/navarlu/Historian/internal/domain"
	"github.com/navarlu/Historian/internal/ports"
)

// Server is the HTTP control surface: loop start/stop/status, the catalog
// with per-tag freshness, and the selection / loop-assignment documents.
// It only reads and writes configuration; sampling itself never goes
// through here.
type Server struct {
	sup    *pipeline.Supervisor
	store  ports.CatalogStore
	latest ports.LatestQuerier
	obs    ports.Observability

	rawMeasurement   string
	defaultMachineID string
	now              func() time.Time
}

func NewServer(
	sup *pipeline.Supervisor,
	store ports.CatalogStore,
	latest ports.LatestQuerier,
	obs ports.Observability,
	rawMeasurement string,
	defaultMachineID string,
) *Server {
	if defaultMachineID == "" {
		defaultMachineID = "Kepware"
	}
	return &Server{
		sup:              sup,
		store:            store,
		latest:           latest,
		obs:              obs,
		rawMeasurement:   rawMeasurement,
		defaultMachineID: defaultMachineID,
		now:              time.Now,
	}
}

// Routes mounts every control endpoint, including the legacy /api/pid
// aliases kept for older tooling.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/api", func(r chi.Router) {
		r.Get("/logging/status", s.handleStatus(pipeline.KindRaw))
		r.Post("/logging/start", s.handleStart(pipeline.KindRaw, "Raw tag logging"))
		r.Post("/logging/stop", s.handleStop(pipeline.KindRaw, "Raw tag logging"))

		r.Get("/loops/logging/status", s.handleStatus(pipeline.KindLoop))
		r.Post("/loops/logging/start", s.handleStart(pipeline.KindLoop, "Loop logging"))
		r.Post("/loops/logging/stop", s.handleStop(pipeline.KindLoop, "Loop logging"))

		r.Get("/selection", s.handleGetSelection)
		r.Post("/selection", s.handleSaveSelection)

		r.Get("/loops", s.handleGetLoops)
		r.Post("/loops", s.handleSaveLoops)

		r.Get("/catalog", s.handleCatalog)

		// Backward-compatible aliases for older tooling.
		r.Get("/pid/templates", s.handleGetLoops)
		r.Post("/pid/templates", s.handleSaveLoops)
		r.Get("/pid/logging/status", s.handleStatus(pipeline.KindLoop))
		r.Post("/pid/logging/start", s.handleStart(pipeline.KindLoop, "Loop logging"))
		r.Post("/pid/logging/stop", s.handleStop(pipeline.KindLoop, "Loop logging"))
	})

	return r
}

func (s *Server) handleStatus(kind pipeline.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"running": s.sup.Running(kind)})
	}
}

func (s *Server) handleStart(kind pipeline.Kind, label string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		started, err := s.sup.Start(kind)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
			return
		}
		if !started {
			writeJSON(w, http.StatusOK, map[string]any{"message": label + " already running."})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"message": label + " started."})
	}
}

func (s *Server) handleStop(kind pipeline.Kind, label string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := s.sup.Stop(kind); err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"message": label + " stopped."})
	}
}

func (s *Server) handleGetSelection(w http.ResponseWriter, r *http.Request) {
	tags, err := s.store.Selection(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	if tags == nil {
		tags = []domain.Tag{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tags": tags})
}

func (s *Server) handleSaveSelection(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Tags []domain.Tag `json:"tags"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid JSON body"})
		return
	}

	clean := make([]domain.Tag, 0, len(payload.Tags))
	for _, tag := range payload.Tags {
		nodeID := strings.TrimSpace(tag.NodeID)
		if nodeID == "" {
			continue
		}
		label := strings.TrimSpace(tag.Label)
		if label == "" {
			label = nodeID
		}
		clean = append(clean, domain.Tag{NodeID: nodeID, Label: label})
	}

	if err := s.store.SaveSelection(r.Context(), clean); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"saved": len(clean)})
}

func (s *Server) handleGetLoops(w http.ResponseWriter, r *http.Request) {
	loops, err := s.store.LoopAssignments(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	if loops == nil {
		loops = []domain.LoopAssignment{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"loops": loops})
}

func (s *Server) handleSaveLoops(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Loops []domain.LoopAssignment `json:"loops"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid JSON body"})
		return
	}

	clean := make([]domain.LoopAssignment, 0, len(payload.Loops))
	for _, loop := range payload.Loops {
		loopID := strings.TrimSpace(loop.LoopID)
		if loopID == "" {
			continue
		}
		machineID := strings.TrimSpace(loop.MachineID)
		if machineID == "" {
			machineID = s.defaultMachineID
		}
		clean = append(clean, domain.LoopAssignment{
			LoopID:    loopID,
			MachineID: machineID,
			PVNodeID:  strings.TrimSpace(loop.PVNodeID),
			SPNodeID:  strings.TrimSpace(loop.SPNodeID),
			CONodeID:  strings.TrimSpace(loop.CONodeID),
			PVLabel:   strings.TrimSpace(loop.PVLabel),
			SPLabel:   strings.TrimSpace(loop.SPLabel),
			COLabel:   strings.TrimSpace(loop.COLabel),
		})
	}

	if err := s.store.SaveLoopAssignments(r.Context(), clean); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"saved": len(clean)})
}

type catalogItem struct {
	NodeID     string           `json:"nodeid"`
	Label      string           `json:"label"`
	Value      *float64         `json:"value"`
	LastTime   string           `json:"last_time"`
	AgeSeconds *int             `json:"age_seconds"`
	State      domain.Freshness `json:"state"`
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	if s.latest == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "sink does not support latest-value queries"})
		return
	}

	started := time.Now()
	now := s.now()

	latest, err := s.latest.LatestBySource(r.Context(), s.rawMeasurement)
	if err != nil {
		s.obs.LogError("catalog_query_failed", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}

	items := make([]catalogItem, 0, len(latest))
	counts := map[domain.Freshness]int{
		domain.FreshnessLive:    0,
		domain.FreshnessRecent:  0,
		domain.FreshnessCached:  0,
		domain.FreshnessStale:   0,
		domain.FreshnessUnknown: 0,
	}
	maxAge := 0

	for _, lv := range latest {
		item := catalogItem{NodeID: lv.NodeID, Label: lv.Label}
		age := domain.AgeUnknown
		if !lv.Time.IsZero() {
			age = int(now.Sub(lv.Time).Seconds())
			item.LastTime = lv.Time.UTC().Format(time.RFC3339)
			ageCopy := age
			item.AgeSeconds = &ageCopy
			if age > maxAge {
				maxAge = age
			}
		}
		if lv.HasValue {
			rounded := math.Round(lv.Value*100) / 100
			item.Value = &rounded
		}
		item.State = domain.ClassifyReading(age, lv.FromCache)
		counts[item.State]++
		items = append(items, item)
	}

	sort.Slice(items, func(i, j int) bool {
		li, lj := strings.ToLower(items[i].Label), strings.ToLower(items[j].Label)
		if li != lj {
			return li < lj
		}
		return strings.ToLower(items[i].NodeID) < strings.ToLower(items[j].NodeID)
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"meta": map[string]any{
			"measurement":     s.rawMeasurement,
			"total":           len(items),
			"counts":          counts,
			"max_age_seconds": maxAge,
			"query_ms":        time.Since(started).Milliseconds(),
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
