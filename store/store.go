// Package store persists parsed molecules in a SQLite dataset.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Array is one stored numeric array with its shape.
type Array struct {
	Shape []int     `json:"shape"`
	Data  []float64 `json:"data"`
}

// System is one molecule row: species labels, flat positions in atomic
// units, and the named property arrays.
type System struct {
	Species    []string
	Positions  []float64
	Properties map[string]Array
}

// Store is the SQLite dataset sink.
type Store struct {
	db *sql.DB
}

// Open opens or creates the dataset database at path and ensures the
// schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS systems (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			natoms INTEGER NOT NULL,
			species TEXT NOT NULL,
			positions TEXT NOT NULL,
			properties TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS metadata (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// AddSystems inserts a batch of systems in one transaction.
func (s *Store) AddSystems(systems []System) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(
		`INSERT INTO systems (natoms, species, positions, properties) VALUES (?, ?, ?, ?)`,
	)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()
	for _, sys := range systems {
		if err := insert(stmt, sys); err != nil {
			tx.Rollback()
			return fmt.Errorf("inserting system: %w", err)
		}
	}
	return tx.Commit()
}

func insert(stmt *sql.Stmt, sys System) error {
	species, err := json.Marshal(sys.Species)
	if err != nil {
		return err
	}
	positions, err := json.Marshal(sys.Positions)
	if err != nil {
		return err
	}
	props, err := json.Marshal(sys.Properties)
	if err != nil {
		return err
	}
	_, err = stmt.Exec(len(sys.Species), species, positions, props)
	return err
}

// Count returns the number of stored systems.
func (s *Store) Count() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT count(*) FROM systems`).Scan(&n)
	return n, err
}

// Systems reads back every stored system in insertion order.
func (s *Store) Systems() ([]System, error) {
	rows, err := s.db.Query(
		`SELECT species, positions, properties FROM systems ORDER BY id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []System
	for rows.Next() {
		var species, positions, props []byte
		if err := rows.Scan(&species, &positions, &props); err != nil {
			return nil, err
		}
		var sys System
		if err := json.Unmarshal(species, &sys.Species); err != nil {
			return nil, fmt.Errorf("decoding species: %w", err)
		}
		if err := json.Unmarshal(positions, &sys.Positions); err != nil {
			return nil, fmt.Errorf("decoding positions: %w", err)
		}
		if err := json.Unmarshal(props, &sys.Properties); err != nil {
			return nil, fmt.Errorf("decoding properties: %w", err)
		}
		out = append(out, sys)
	}
	return out, rows.Err()
}

// SetMetadata upserts the given metadata keys.
func (s *Store) SetMetadata(md map[string]string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	for k, v := range md {
		if _, err := tx.Exec(
			`INSERT INTO metadata (key, value) VALUES (?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
			k, v,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("setting metadata %q: %w", k, err)
		}
	}
	return tx.Commit()
}

// Metadata reads back all metadata keys.
func (s *Store) Metadata() (map[string]string, error) {
	rows, err := s.db.Query(`SELECT key, value FROM metadata`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	md := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		md[k] = v
	}
	return md, rows.Err()
}
