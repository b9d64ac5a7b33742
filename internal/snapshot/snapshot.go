package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/priyankverma/cowrite/backend/internal/room"
	"github.com/priyankverma/cowrite/backend/internal/store"
)

type Config struct {
	Interval         time.Duration
	KeepAutoVersions int
}

func DefaultConfig() Config {
	return Config{
		Interval:         5 * time.Minute,
		KeepAutoVersions: 20,
	}
}

// Service periodically snapshots live room documents into the version
// history. Snapshots are disaster-recovery points only; they are never
// read back into live rooms.
type Service struct {
	registry *room.Registry
	store    *store.Store
	config   Config
	stop     chan struct{}
	wg       sync.WaitGroup
}

func New(registry *room.Registry, st *store.Store, config Config) *Service {
	return &Service{
		registry: registry,
		store:    st,
		config:   config,
		stop:     make(chan struct{}),
	}
}

func (s *Service) Start() {
	s.wg.Add(1)
	go s.run()
	log.Printf("Snapshot service started (interval: %v, keep: %d auto versions)",
		s.config.Interval, s.config.KeepAutoVersions)
}

func (s *Service) Stop() {
	close(s.stop)
	s.wg.Wait()
	log.Println("Snapshot service stopped")
}

func (s *Service) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.snapshotAllRooms()
		}
	}
}

func (s *Service) snapshotAllRooms() {
	snapshotted := 0
	for _, rm := range s.registry.Rooms() {
		if !rm.Hydrated() {
			continue
		}
		created, err := s.snapshotRoom(rm)
		if err != nil {
			log.Printf("Snapshot failed for room %s: %v", rm.ID, err)
			continue
		}
		if created {
			snapshotted++
		}
	}

	if snapshotted > 0 {
		log.Printf("Snapshotted %d rooms", snapshotted)
	}
}

// snapshotRoom writes one auto version for the room unless its content
// is empty or unchanged since the latest version.
func (s *Service) snapshotRoom(rm *room.Room) (bool, error) {
	content := rm.Content()
	if content == "" {
		return false, nil
	}

	hash := hashContent(content)
	latest, err := s.store.GetLatestVersion(rm.ID)
	if err != nil {
		return false, err
	}
	if latest != nil && latest.ContentHash == hash {
		return false, nil
	}

	name := fmt.Sprintf("Auto-save %s", time.Now().Format("Jan 2, 3:04 PM"))
	if _, err := s.store.CreateVersion(rm.ID, name, content, hash, true); err != nil {
		return false, err
	}

	if err := s.store.DeleteOldAutoVersions(rm.ID, s.config.KeepAutoVersions); err != nil {
		log.Printf("Failed to prune auto versions for room %s: %v", rm.ID, err)
	}

	return true, nil
}

// SnapshotNow snapshots a single room immediately.
func (s *Service) SnapshotNow(rm *room.Room) (bool, error) {
	return s.snapshotRoom(rm)
}

func hashContent(content string) string {
	h := sha256.Sum256([]byte(content))
	return hex.EncodeToString(h[:8])
}
