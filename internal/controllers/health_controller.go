package controllers

import (
	"fmt"
	json "github.com/goccy/go-json"
	"net/http"
	"parasited/internal/services"
	"parasited/internal/structures"
	"time"
)

type HealthController struct {
	queue     services.MutationQueueInterface
	hub       services.ChangeHubInterface
	driver    string
	startTime time.Time
}

type healthResponse struct {
	Status        string  `json:"status"`
	Uptime        string  `json:"uptime"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	StoreDriver   string  `json:"store_driver"`
	QueueDepth    int     `json:"queue_depth"`
	Subscribers   int     `json:"subscribers"`
}

func (hc *HealthController) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(hc.startTime)
	resp := healthResponse{
		Status:        "ok",
		Uptime:        formatDuration(uptime),
		UptimeSeconds: uptime.Seconds(),
		StoreDriver:   hc.driver,
		QueueDepth:    hc.queue.Depth(),
		Subscribers:   hc.hub.Count(),
	}

	gson, err := json.Marshal(resp)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(gson)
}

func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh%dm%ds", hours, minutes, seconds)
}

func NewHealthController(conf *structures.Config, queue services.MutationQueueInterface, hub services.ChangeHubInterface) *HealthController {
	return &HealthController{
		queue:     queue,
		hub:       hub,
		driver:    conf.Storage.Driver,
		startTime: time.Now(),
	}
}
