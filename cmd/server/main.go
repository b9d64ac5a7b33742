package main

import (
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/priyankverma/cowrite/backend/internal/api"
	"github.com/priyankverma/cowrite/backend/internal/room"
	"github.com/priyankverma/cowrite/backend/internal/snapshot"
	"github.com/priyankverma/cowrite/backend/internal/store"
	"github.com/priyankverma/cowrite/backend/internal/ws"
)

func main() {
	dbPath := os.Getenv("COWRITE_DB_PATH")
	if dbPath == "" {
		dbPath = "./data/cowrite.db"
	}

	st, err := store.New(dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer st.Close()

	registry := room.NewRegistry()

	hub := ws.NewHub(registry, st)
	go hub.Run()

	snap := snapshot.New(registry, st, snapshot.DefaultConfig())
	snap.Start()

	apiHandler := api.New(hub, registry, st)
	router := apiHandler.Router()

	// WebSocket endpoint
	router.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWs(hub, w, r)
	})

	// Apply CORS middleware
	handler := corsMiddleware(router)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down server...")
		snap.Stop()
		st.Close()
		os.Exit(0)
	}()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Cowrite server starting on :%s", port)
	log.Printf("Database: %s", dbPath)
	log.Println("Endpoints:")
	log.Println("  - WebSocket:   /ws")
	log.Println("  - Create room: GET /create-room")
	log.Println("  - Health:      GET /health")
	log.Println("  - Stats:       GET /api/stats")
	log.Println("  - Versions:    GET /api/versions?room_id={id}")
	log.Println("  - Version:     GET/DELETE /api/versions/{id}")

	if err := http.ListenAndServe(":"+port, handler); err != nil {
		log.Fatal("ListenAndServe: ", err)
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
