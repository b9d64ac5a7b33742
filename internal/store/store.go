package store

import (
	"database/sql"
	"log"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Store is the durable mirror of room documents. It is never
// authoritative: live collaboration reads and writes in-memory room
// state, and this layer only trails it for recovery.
type Store struct {
	db *sql.DB
}

type Version struct {
	ID          int       `json:"id"`
	RoomID      string    `json:"room_id"`
	Name        string    `json:"name"`
	Content     string    `json:"content"`
	ContentHash string    `json:"content_hash"`
	IsAuto      bool      `json:"is_auto"`
	CreatedAt   time.Time `json:"created_at"`
}

func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	// WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, err
	}

	if err := createTables(db); err != nil {
		return nil, err
	}

	log.Printf("Store initialized at %s", dbPath)
	return &Store{db: db}, nil
}

func createTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS rooms (
		id TEXT PRIMARY KEY,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS documents (
		room_id TEXT PRIMARY KEY,
		content TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (room_id) REFERENCES rooms(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS document_versions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		room_id TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL,
		content_hash TEXT NOT NULL,
		is_auto BOOLEAN DEFAULT FALSE,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (room_id) REFERENCES rooms(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_document_versions_room_id ON document_versions(room_id);
	CREATE INDEX IF NOT EXISTS idx_document_versions_created_at ON document_versions(room_id, created_at DESC);
	`

	_, err := db.Exec(schema)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureRoom(id string) error {
	_, err := s.db.Exec("INSERT OR IGNORE INTO rooms (id) VALUES (?)", id)
	return err
}

// Document operations

// LoadDocument returns the stored content for a room, creating an
// empty record if none exists yet.
func (s *Store) LoadDocument(roomID string) (string, error) {
	var content string
	err := s.db.QueryRow(
		"SELECT content FROM documents WHERE room_id = ?",
		roomID,
	).Scan(&content)
	if err == sql.ErrNoRows {
		if err := s.SaveDocument(roomID, ""); err != nil {
			return "", err
		}
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return content, nil
}

// SaveDocument upserts the mirrored content for a room. Callers issue
// saves in acceptance order, so the last write is the freshest.
func (s *Store) SaveDocument(roomID, content string) error {
	if err := s.ensureRoom(roomID); err != nil {
		return err
	}

	_, err := s.db.Exec(`
		INSERT INTO documents (room_id, content, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(room_id) DO UPDATE SET
			content = excluded.content,
			updated_at = CURRENT_TIMESTAMP
	`, roomID, content)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(
		"UPDATE rooms SET updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		roomID,
	)
	return err
}

// Version operations

// CreateVersion saves a point-in-time snapshot of a room's document.
func (s *Store) CreateVersion(roomID, name, content, contentHash string, isAuto bool) (*Version, error) {
	if err := s.ensureRoom(roomID); err != nil {
		return nil, err
	}

	result, err := s.db.Exec(`
		INSERT INTO document_versions (room_id, name, content, content_hash, is_auto)
		VALUES (?, ?, ?, ?, ?)
	`, roomID, name, content, contentHash, isAuto)
	if err != nil {
		return nil, err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}

	return s.GetVersion(int(id))
}

// GetVersion retrieves a specific version by ID.
func (s *Store) GetVersion(id int) (*Version, error) {
	row := s.db.QueryRow(`
		SELECT id, room_id, name, content, content_hash, is_auto, created_at
		FROM document_versions WHERE id = ?
	`, id)

	var v Version
	err := row.Scan(&v.ID, &v.RoomID, &v.Name, &v.Content, &v.ContentHash, &v.IsAuto, &v.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// ListVersions returns versions for a room, newest first.
func (s *Store) ListVersions(roomID string, limit, offset int) ([]Version, error) {
	rows, err := s.db.Query(`
		SELECT id, room_id, name, content, content_hash, is_auto, created_at
		FROM document_versions
		WHERE room_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, roomID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []Version
	for rows.Next() {
		var v Version
		if err := rows.Scan(&v.ID, &v.RoomID, &v.Name, &v.Content, &v.ContentHash, &v.IsAuto, &v.CreatedAt); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

func (s *Store) GetVersionCount(roomID string) (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM document_versions WHERE room_id = ?", roomID).Scan(&count)
	return count, err
}

// GetLatestVersion returns the most recent version for a room.
func (s *Store) GetLatestVersion(roomID string) (*Version, error) {
	row := s.db.QueryRow(`
		SELECT id, room_id, name, content, content_hash, is_auto, created_at
		FROM document_versions
		WHERE room_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, roomID)

	var v Version
	err := row.Scan(&v.ID, &v.RoomID, &v.Name, &v.Content, &v.ContentHash, &v.IsAuto, &v.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *Store) DeleteVersion(id int) error {
	_, err := s.db.Exec("DELETE FROM document_versions WHERE id = ?", id)
	return err
}

// DeleteOldAutoVersions removes old auto snapshots, keeping the most
// recent N per room.
func (s *Store) DeleteOldAutoVersions(roomID string, keepCount int) error {
	_, err := s.db.Exec(`
		DELETE FROM document_versions
		WHERE room_id = ? AND is_auto = TRUE AND id NOT IN (
			SELECT id FROM document_versions
			WHERE room_id = ? AND is_auto = TRUE
			ORDER BY created_at DESC, id DESC
			LIMIT ?
		)
	`, roomID, roomID, keepCount)
	return err
}

// Stats

func (s *Store) GetStats() (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var roomCount int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM rooms").Scan(&roomCount); err != nil {
		return nil, err
	}
	stats["room_count"] = roomCount

	var documentCount int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM documents").Scan(&documentCount); err != nil {
		return nil, err
	}
	stats["document_count"] = documentCount

	var versionCount int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM document_versions").Scan(&versionCount); err != nil {
		return nil, err
	}
	stats["version_count"] = versionCount

	return stats, nil
}
