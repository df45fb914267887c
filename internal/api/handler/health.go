package handler

import (
	"context"
	"net/http"

	"github.com/resreg/resreg/internal/api/middleware"
	"github.com/resreg/resreg/internal/api/response"
	"github.com/resreg/resreg/internal/directory"
)

// DBPinger checks database connectivity.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles the GET /health endpoint.
type HealthHandler struct {
	dirChecker directory.HealthChecker
	db         DBPinger
	version    string
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(dirChecker directory.HealthChecker, db DBPinger, version string) *HealthHandler {
	return &HealthHandler{
		dirChecker: dirChecker,
		db:         db,
		version:    version,
	}
}

type directoryStatus struct {
	Connected bool    `json:"connected"`
	Detail    *string `json:"detail,omitempty"`
}

type healthData struct {
	Status    string          `json:"status"`
	Version   string          `json:"version"`
	Database  bool            `json:"database"`
	Directory directoryStatus `json:"directory"`
}

// ServeHTTP handles the health check request.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	status := "healthy"

	dbOK := true
	if h.db != nil {
		dbOK = h.db.Ping(r.Context()) == nil
	}
	if !dbOK {
		status = "degraded"
	}

	connectivity := directory.ConnectivityStatus{Connected: true}
	if h.dirChecker != nil {
		connectivity = h.dirChecker.CheckConnectivity(r.Context())
	}

	dir := directoryStatus{Connected: connectivity.Connected}
	if !connectivity.Connected {
		status = "degraded"
		if connectivity.Detail != "" {
			detail := connectivity.Detail
			dir.Detail = &detail
		}
	}

	data := healthData{
		Status:    status,
		Version:   h.version,
		Database:  dbOK,
		Directory: dir,
	}

	response.Success(w, http.StatusOK, data, requestID)
}
