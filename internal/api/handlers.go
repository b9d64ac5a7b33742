package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/priyankverma/cowrite/backend/internal/room"
	"github.com/priyankverma/cowrite/backend/internal/store"
	"github.com/priyankverma/cowrite/backend/internal/ws"
)

type API struct {
	hub      *ws.Hub
	registry *room.Registry
	store    *store.Store
}

func New(hub *ws.Hub, registry *room.Registry, st *store.Store) *API {
	return &API{
		hub:      hub,
		registry: registry,
		store:    st,
	}
}

// Router assembles the HTTP surface. The websocket endpoint is wired
// by the caller.
func (a *API) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/create-room", a.CreateRoomHandler).Methods(http.MethodGet)
	r.HandleFunc("/health", a.HealthHandler).Methods(http.MethodGet)
	r.HandleFunc("/api/stats", a.StatsHandler).Methods(http.MethodGet)
	r.HandleFunc("/api/versions", a.ListVersionsHandler).Methods(http.MethodGet)
	r.HandleFunc("/api/versions/{id:[0-9]+}", a.GetVersionHandler).Methods(http.MethodGet)
	r.HandleFunc("/api/versions/{id:[0-9]+}", a.DeleteVersionHandler).Methods(http.MethodDelete)
	return r
}

func jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

func errorResponse(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

// CreateRoomHandler allocates a fresh room id and registers an empty
// room under it.
func (a *API) CreateRoomHandler(w http.ResponseWriter, r *http.Request) {
	roomID := a.registry.Create()
	jsonResponse(w, http.StatusOK, map[string]string{"roomId": roomID})
}

func (a *API) HealthHandler(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) StatsHandler(w http.ResponseWriter, r *http.Request) {
	stats := map[string]interface{}{
		"registered_rooms": a.registry.Count(),
		"active_rooms":     a.hub.GetRoomCount(),
		"active_clients":   a.hub.GetClientCount(),
		"timestamp":        time.Now().UTC().Format(time.RFC3339),
	}

	if a.store != nil {
		storeStats, err := a.store.GetStats()
		if err == nil {
			stats["stored_documents"] = storeStats["document_count"]
			stats["stored_versions"] = storeStats["version_count"]
		}
	}

	jsonResponse(w, http.StatusOK, stats)
}

// Version handlers

type VersionResponse struct {
	ID          int       `json:"id"`
	RoomID      string    `json:"room_id"`
	Name        string    `json:"name"`
	Content     string    `json:"content,omitempty"` // Omit in list view
	ContentHash string    `json:"content_hash"`
	IsAuto      bool      `json:"is_auto"`
	CreatedAt   time.Time `json:"created_at"`
}

func (a *API) ListVersionsHandler(w http.ResponseWriter, r *http.Request) {
	if a.store == nil {
		errorResponse(w, http.StatusServiceUnavailable, "Persistence disabled")
		return
	}

	roomID := r.URL.Query().Get("room_id")
	if roomID == "" {
		errorResponse(w, http.StatusBadRequest, "room_id is required")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}

	versions, err := a.store.ListVersions(roomID, limit, offset)
	if err != nil {
		errorResponse(w, http.StatusInternalServerError, "Failed to list versions")
		return
	}

	response := make([]VersionResponse, len(versions))
	for i, v := range versions {
		response[i] = VersionResponse{
			ID:          v.ID,
			RoomID:      v.RoomID,
			Name:        v.Name,
			ContentHash: v.ContentHash,
			IsAuto:      v.IsAuto,
			CreatedAt:   v.CreatedAt,
		}
	}

	total, _ := a.store.GetVersionCount(roomID)

	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"versions": response,
		"total":    total,
		"limit":    limit,
		"offset":   offset,
	})
}

// GetVersionHandler retrieves a specific version with full content.
func (a *API) GetVersionHandler(w http.ResponseWriter, r *http.Request) {
	if a.store == nil {
		errorResponse(w, http.StatusServiceUnavailable, "Persistence disabled")
		return
	}

	versionID, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid version ID")
		return
	}

	version, err := a.store.GetVersion(versionID)
	if err != nil {
		errorResponse(w, http.StatusInternalServerError, "Failed to get version")
		return
	}
	if version == nil {
		errorResponse(w, http.StatusNotFound, "Version not found")
		return
	}

	jsonResponse(w, http.StatusOK, VersionResponse{
		ID:          version.ID,
		RoomID:      version.RoomID,
		Name:        version.Name,
		Content:     version.Content,
		ContentHash: version.ContentHash,
		IsAuto:      version.IsAuto,
		CreatedAt:   version.CreatedAt,
	})
}

func (a *API) DeleteVersionHandler(w http.ResponseWriter, r *http.Request) {
	if a.store == nil {
		errorResponse(w, http.StatusServiceUnavailable, "Persistence disabled")
		return
	}

	versionID, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid version ID")
		return
	}

	if err := a.store.DeleteVersion(versionID); err != nil {
		errorResponse(w, http.StatusInternalServerError, "Failed to delete version")
		return
	}

	jsonResponse(w, http.StatusOK, map[string]string{"message": "Version deleted"})
}
