// Package registry provides SQLite-backed, append-only persistence for
// trained model artifacts. Every save creates a new version; existing
// versions are never overwritten, so an abandoned training run can never
// corrupt committed state.
package registry

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // register sqlite driver

	"github.com/nsightlabs/spendintel/internal/engine"
	"github.com/nsightlabs/spendintel/internal/model"
)

// Registry is the versioned artifact store.
type Registry struct {
	db *sql.DB
}

// Open opens or creates the registry database at the given path.
func Open(dbPath string) (*Registry, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating registry dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=synchronous(normal)")
	if err != nil {
		return nil, fmt.Errorf("opening registry db: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Registry{db: db}, nil
}

// Close closes the registry database.
func (r *Registry) Close() error {
	return r.db.Close()
}

// Save appends a new artifact version and returns its version id. The
// artifact's VersionID is used when set; a missing id or timestamp is
// assigned here. Concurrent saves for the same kind and group serialize
// on the database; the newest seq wins LoadLatest.
func (r *Registry) Save(a *model.ModelArtifact) (string, error) {
	versionID := a.VersionID
	if versionID == "" {
		versionID = uuid.NewString()
	}
	createdAt := a.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	schemaJSON, err := json.Marshal(a.Schema)
	if err != nil {
		return "", fmt.Errorf("serializing schema: %w", err)
	}
	metricsJSON, err := json.Marshal(a.Metrics)
	if err != nil {
		return "", fmt.Errorf("serializing metrics: %w", err)
	}

	var dept, cat, cur string
	if a.Group != nil {
		dept, cat, cur = a.Group.Department, a.Group.Category, string(a.Group.Currency)
	}

	tx, err := r.db.Begin()
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(`INSERT INTO artifacts
		(version_id, kind, department, category, currency,
		 params, schema, metrics, training_size, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		versionID, string(a.Kind), dept, cat, cur,
		string(a.Params), string(schemaJSON), string(metricsJSON),
		a.TrainingSize, createdAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", fmt.Errorf("saving artifact: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing artifact: %w", err)
	}
	return versionID, nil
}

const selectColumns = `version_id, kind, department, category, currency,
	params, schema, metrics, training_size, created_at`

// LoadLatest returns the most recently saved artifact of the given kind.
// key is required for forecasting artifacts and ignored otherwise. Fails
// with NoArtifactError when nothing matches.
func (r *Registry) LoadLatest(kind model.ModelKind, key *model.GroupKey) (*model.ModelArtifact, error) {
	var row *sql.Row
	if key != nil {
		row = r.db.QueryRow(`SELECT `+selectColumns+` FROM artifacts
			WHERE kind = ? AND department = ? AND category = ? AND currency = ?
			ORDER BY seq DESC LIMIT 1`,
			string(kind), key.Department, key.Category, string(key.Currency))
	} else {
		row = r.db.QueryRow(`SELECT `+selectColumns+` FROM artifacts
			WHERE kind = ? ORDER BY seq DESC LIMIT 1`, string(kind))
	}

	a, err := scanArtifact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &engine.NoArtifactError{Kind: kind, Group: key}
	}
	return a, err
}

// LoadVersion returns the exact artifact version, failing with
// VersionNotFoundError on a miss.
func (r *Registry) LoadVersion(kind model.ModelKind, versionID string) (*model.ModelArtifact, error) {
	row := r.db.QueryRow(`SELECT `+selectColumns+` FROM artifacts
		WHERE kind = ? AND version_id = ?`, string(kind), versionID)

	a, err := scanArtifact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &engine.VersionNotFoundError{Kind: kind, VersionID: versionID}
	}
	return a, err
}

// VersionInfo summarizes one stored artifact version.
type VersionInfo struct {
	VersionID    string
	Kind         model.ModelKind
	Group        *model.GroupKey
	TrainingSize int
	CreatedAt    time.Time
}

// ListVersions returns all versions of a kind, newest first.
func (r *Registry) ListVersions(kind model.ModelKind) ([]VersionInfo, error) {
	rows, err := r.db.Query(`SELECT version_id, kind, department, category, currency,
		training_size, created_at FROM artifacts WHERE kind = ? ORDER BY seq DESC`,
		string(kind))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var infos []VersionInfo
	for rows.Next() {
		var info VersionInfo
		var kindStr, dept, cat, cur, createdAt string
		if err := rows.Scan(&info.VersionID, &kindStr, &dept, &cat, &cur,
			&info.TrainingSize, &createdAt); err != nil {
			return nil, err
		}
		info.Kind = model.ModelKind(kindStr)
		info.Group = groupFromColumns(dept, cat, cur)
		info.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

func scanArtifact(row *sql.Row) (*model.ModelArtifact, error) {
	var a model.ModelArtifact
	var kindStr, dept, cat, cur, params, schemaJSON, metricsJSON, createdAt string
	err := row.Scan(&a.VersionID, &kindStr, &dept, &cat, &cur,
		&params, &schemaJSON, &metricsJSON, &a.TrainingSize, &createdAt)
	if err != nil {
		return nil, err
	}

	a.Kind = model.ModelKind(kindStr)
	a.Group = groupFromColumns(dept, cat, cur)
	a.Params = json.RawMessage(params)
	if err := json.Unmarshal([]byte(schemaJSON), &a.Schema); err != nil {
		return nil, fmt.Errorf("decoding artifact schema: %w", err)
	}
	if err := json.Unmarshal([]byte(metricsJSON), &a.Metrics); err != nil {
		return nil, fmt.Errorf("decoding artifact metrics: %w", err)
	}
	a.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("decoding artifact timestamp: %w", err)
	}
	return &a, nil
}

func groupFromColumns(dept, cat, cur string) *model.GroupKey {
	if dept == "" && cat == "" && cur == "" {
		return nil
	}
	return &model.GroupKey{Department: dept, Category: cat, Currency: model.Currency(cur)}
}
