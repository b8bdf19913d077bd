package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/isharee/backend/internal/db"
)

// HealthHandler reports process and database health.
type HealthHandler struct {
	Pool db.Pool
}

// Handle implements GET /healthz. When a pool is configured, an unreachable
// database turns the report into a 503 so load balancers stop routing here.
func (h HealthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	payload := map[string]string{"status": "ok"}
	status := http.StatusOK

	if h.Pool != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := pingDatabase(ctx, h.Pool); err != nil {
			payload["status"] = "degraded"
			payload["database"] = "unreachable"
			status = http.StatusServiceUnavailable
		} else {
			payload["database"] = "ok"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func pingDatabase(ctx context.Context, pool db.Pool) error {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()
	return conn.Conn().Ping(ctx)
}
