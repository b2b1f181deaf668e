// Command schedulerd wires the scheduling core to its storage backend and
// observability sinks and runs the dispatch/collection driver loop. It is
// deliberately thin: the producer-facing submit/cancel/resubmit/status API
// and the visualization dashboard are external collaborators that talk to
// the scheduler package directly, not built here.
package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/watlab/autocontrol/config"
	"github.com/watlab/autocontrol/observability"
	"github.com/watlab/autocontrol/scheduler"
	"github.com/watlab/autocontrol/store"
	"github.com/watlab/autocontrol/task"
	"github.com/watlab/autocontrol/timeline"
)

// multiRecorder fans a scheduling decision out to every configured sink.
type multiRecorder struct {
	sinks []scheduler.Recorder
}

func (m *multiRecorder) Decision(kind string, t *task.Task) {
	for _, sink := range m.sinks {
		sink.Decision(kind, t)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("schedulerd: encode response: %v", err)
	}
}

func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var taskStore func() (store.TaskStore, error)
	switch cfg.StoreBackend {
	case "postgres":
		taskStore = func() (store.TaskStore, error) {
			return store.NewPostgresStore(ctx, cfg.PostgresDSN)
		}
	default:
		taskStore = func() (store.TaskStore, error) { return store.NewMemoryStore(), nil }
	}

	scheduled, err := taskStore()
	if err != nil {
		log.Fatalf("schedulerd: open scheduled store: %v", err)
	}
	active, err := taskStore()
	if err != nil {
		log.Fatalf("schedulerd: open active store: %v", err)
	}
	history, err := taskStore()
	if err != nil {
		log.Fatalf("schedulerd: open history store: %v", err)
	}

	events := timeline.NewStore(cfg.TimelineLimit)
	hub := timeline.NewHub()
	recorder := &multiRecorder{sinks: []scheduler.Recorder{events, hub, observability.MetricsRecorder{}}}

	sched, err := scheduler.New(scheduled, active, history, cfg.Scheduler, recorder)
	if err != nil {
		log.Fatalf("schedulerd: construct scheduler: %v", err)
	}

	go hub.Run(ctx)
	go scheduler.NewDriver(sched).Run(ctx)

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/timeline/stream", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("schedulerd: websocket upgrade failed: %v", err)
			return
		}
		hub.Register(conn)
	})
	mux.HandleFunc("/timeline/events", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, events.All())
	})

	log.Printf("schedulerd listening on %s (store=%s)", cfg.HTTPAddr, cfg.StoreBackend)
	log.Fatal(http.ListenAndServe(cfg.HTTPAddr, mux))
}
