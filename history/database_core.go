// database_core.go - Kern-Datenbank-Funktionen der Konvertierungs-History
// Enthält: database struct, newDatabase, Close, init, migrate

package history

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3" // SQLite-Treiber registrieren
)

// currentSchemaVersion wird bei Schema-Änderungen erhöht.
const currentSchemaVersion = 2

// database umhüllt die SQLite-Verbindung.
// Schreiber werden von SQLite serialisiert, WAL erlaubt parallele Leser.
type database struct {
	conn *sql.DB
}

// newDatabase öffnet die Datenbank und initialisiert das Schema
func newDatabase(dbPath string) (*database, error) {
	conn, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	db := &database{conn: conn}
	if err := db.init(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initialize database: %w", err)
	}
	return db, nil
}

// Close schließt die Datenbankverbindung
func (db *database) Close() error {
	_, _ = db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE);")
	return db.conn.Close()
}

// init legt das Schema an. Neue Datenbanken starten direkt mit der aktuellen Version.
func (db *database) init() error {
	schema := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS meta (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		schema_version INTEGER NOT NULL DEFAULT %d
	);

	INSERT OR IGNORE INTO meta (id) VALUES (1);

	CREATE TABLE IF NOT EXISTS conversions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL DEFAULT '',
		model TEXT NOT NULL,
		type TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		output_dir TEXT NOT NULL DEFAULT '',
		size_bytes INTEGER NOT NULL DEFAULT 0,
		seconds REAL NOT NULL DEFAULT 0,
		quantized BOOLEAN NOT NULL DEFAULT 0,
		degraded BOOLEAN NOT NULL DEFAULT 0,
		strategy TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_conversions_run_id ON conversions(run_id);
	CREATE INDEX IF NOT EXISTS idx_conversions_model ON conversions(model);
	`, currentSchemaVersion)

	if _, err := db.conn.Exec(schema); err != nil {
		return err
	}

	if err := db.migrate(); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

// migrate bringt ältere Datenbanken auf currentSchemaVersion
func (db *database) migrate() error {
	version, err := db.getSchemaVersion()
	if err != nil {
		return fmt.Errorf("get schema version: %w", err)
	}

	for version < currentSchemaVersion {
		switch version {
		case 1:
			// degraded Spalte für Platzhalter-Ergebnisse
			if err := db.migrateV1ToV2(); err != nil {
				return fmt.Errorf("migrate v1 to v2: %w", err)
			}
			version = 2
		default:
			return fmt.Errorf("unbekannte schema-version %d", version)
		}
	}
	return nil
}

func (db *database) getSchemaVersion() (int, error) {
	var version int
	err := db.conn.QueryRow("SELECT schema_version FROM meta WHERE id = 1").Scan(&version)
	return version, err
}

func (db *database) migrateV1ToV2() error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var count int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM pragma_table_info('conversions') WHERE name = 'degraded'`).Scan(&count); err != nil {
		return err
	}
	if count == 0 {
		if _, err := tx.Exec(`ALTER TABLE conversions ADD COLUMN degraded BOOLEAN NOT NULL DEFAULT 0`); err != nil {
			return fmt.Errorf("add degraded column: %w", err)
		}
	}
	if _, err := tx.Exec(`UPDATE meta SET schema_version = 2`); err != nil {
		return err
	}
	return tx.Commit()
}
