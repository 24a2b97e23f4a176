// Modul: store.go
// Beschreibung: Konvertierungs-History in SQLite.
// Enthaelt Store (lazy geoeffnet), Record, Recent, Summary.

package history

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/laserweed/modelconv/convert"
)

// ErrDisabled - kein Datenbankpfad konfiguriert
var ErrDisabled = errors.New("history deaktiviert")

// Entry ist eine gespeicherte Konvertierung.
type Entry struct {
	ID        int64     `json:"id"`
	RunID     string    `json:"run_id"`
	Model     string    `json:"model"`
	Type      string    `json:"type"`
	Status    string    `json:"status"`
	OutputDir string    `json:"output_dir"`
	SizeBytes int64     `json:"size_bytes"`
	Seconds   float64   `json:"seconds"`
	Quantized bool      `json:"quantized"`
	Degraded  bool      `json:"degraded"`
	Strategy  string    `json:"strategy"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Store speichert Konvertierungen. Die Datenbank wird beim ersten Zugriff geoeffnet.
type Store struct {
	DBPath string

	// dbMu schuetzt nur die Initialisierung
	dbMu sync.Mutex
	db   *database
}

// Open erstellt einen Store fuer path. Leerer Pfad liefert ErrDisabled.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, ErrDisabled
	}
	s := &Store{DBPath: path}
	if err := s.ensureDB(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureDB() error {
	s.dbMu.Lock()
	defer s.dbMu.Unlock()

	if s.db != nil {
		return nil
	}
	if s.DBPath == "" {
		return ErrDisabled
	}
	if dir := filepath.Dir(s.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create history directory: %w", err)
		}
	}

	db, err := newDatabase(s.DBPath)
	if err != nil {
		return err
	}
	s.db = db
	return nil
}

// Close schliesst die Datenbank
func (s *Store) Close() error {
	s.dbMu.Lock()
	defer s.dbMu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Record speichert ein Outcome unter einer Lauf-ID.
func (s *Store) Record(runID string, o convert.Outcome) error {
	if err := s.ensureDB(); err != nil {
		return err
	}

	created := o.Timestamp
	if created.IsZero() {
		created = time.Now().UTC()
	}

	_, err := s.db.conn.Exec(`
		INSERT INTO conversions (run_id, model, type, status, output_dir, size_bytes, seconds, quantized, degraded, strategy, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, o.Model, o.Type, string(o.Status), o.OutputDir, o.SizeBytes, o.ConversionTime,
		o.Quantized, o.Degraded, o.Strategy, o.Error, created,
	)
	if err != nil {
		return fmt.Errorf("record conversion: %w", err)
	}
	return nil
}

// Recent liefert die letzten limit Eintraege, neueste zuerst.
func (s *Store) Recent(limit int) ([]Entry, error) {
	if err := s.ensureDB(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.conn.Query(`
		SELECT id, run_id, model, type, status, output_dir, size_bytes, seconds, quantized, degraded, strategy, error, created_at
		FROM conversions
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.RunID, &e.Model, &e.Type, &e.Status, &e.OutputDir, &e.SizeBytes,
			&e.Seconds, &e.Quantized, &e.Degraded, &e.Strategy, &e.Error, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Summary zaehlt die Eintraege pro Status.
func (s *Store) Summary() (map[string]int, error) {
	if err := s.ensureDB(); err != nil {
		return nil, err
	}

	rows, err := s.db.conn.Query(`SELECT status, COUNT(*) FROM conversions GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
