package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"

	"wablast/internal/job"
	logx "wablast/pkg/logx"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// dialect holds the statements that differ between SQL drivers.
type dialect struct {
	name      string
	migration string
	insert    string
}

var (
	sqliteDialect = dialect{
		name:      "sqlite",
		migration: "migrations/sqlite.sql",
		insert:    `INSERT INTO jobs(id, position, data) VALUES(?, ?, ?)`,
	}
	postgresDialect = dialect{
		name:      "postgres",
		migration: "migrations/postgres.sql",
		insert:    `INSERT INTO jobs(id, position, data) VALUES($1, $2, $3)`,
	}
)

// sqlStore keeps one row per job; position preserves collection order.
// Save replaces every row inside a single transaction.
type sqlStore struct {
	db  *sql.DB
	d   dialect
	log logx.Logger
}

func newSQLStore(db *sql.DB, d dialect, log logx.Logger) *sqlStore {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &sqlStore{db: db, d: d, log: log}
}

func (s *sqlStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile(s.d.migration)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, string(b)); err != nil {
		return fmt.Errorf("%s migrate: %w", s.d.name, err)
	}
	return nil
}

func (s *sqlStore) Load(ctx context.Context) ([]job.Job, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, data FROM jobs ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("%s load: %w", s.d.name, err)
	}
	defer rows.Close()

	out := []job.Job{}
	for rows.Next() {
		var id string
		var data []byte
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("%s scan: %w", s.d.name, err)
		}
		var j job.Job
		if err := json.Unmarshal(data, &j); err != nil {
			s.log.Error("unreadable job record kept as stored", logx.String("id", id), logx.Err(err))
			j, _ = job.DecodeRecord(data)
		}
		if j.ID == "" {
			j.ID = id
		}
		out = append(out, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s load: %w", s.d.name, err)
	}
	return out, nil
}

func (s *sqlStore) Save(ctx context.Context, jobs []job.Job) (err error) {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s begin: %w", s.d.name, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM jobs`); err != nil {
		return fmt.Errorf("%s clear: %w", s.d.name, err)
	}
	for i, j := range jobs {
		data := j.Raw()
		if !j.Unreadable() {
			var mErr error
			if data, mErr = json.Marshal(j); mErr != nil {
				err = fmt.Errorf("encode job %s: %w", j.ID, mErr)
				return err
			}
		}
		if _, err = tx.ExecContext(ctx, s.d.insert, j.ID, i, string(data)); err != nil {
			return fmt.Errorf("%s insert %s: %w", s.d.name, j.ID, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%s commit: %w", s.d.name, err)
	}
	return nil
}

func (s *sqlStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
