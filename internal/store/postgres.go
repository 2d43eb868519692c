package store

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/GoncaloVaranda/field-sync-app-sub000/internal/db"
	"github.com/GoncaloVaranda/field-sync-app-sub000/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgresStore wraps an existing pool. Tests hand it a mock pool.
func NewPostgresStore(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS worksheets (
	id         INTEGER PRIMARY KEY,
	metadata   JSONB NOT NULL,
	features   JSONB NOT NULL,
	operations JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS assignments (
	worksheet_id      INTEGER NOT NULL REFERENCES worksheets(id) ON DELETE CASCADE,
	operation_code    TEXT NOT NULL,
	rural_property_id TEXT NOT NULL,
	polygon_id        INTEGER NOT NULL,
	operator          TEXT NOT NULL DEFAULT '',
	status            TEXT NOT NULL DEFAULT 'unassigned',
	start_date        TEXT NOT NULL DEFAULT '',
	end_date          TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (worksheet_id, operation_code, rural_property_id, polygon_id, operator)
);

CREATE TABLE IF NOT EXISTS activities (
	id                TEXT PRIMARY KEY,
	worksheet_id      INTEGER NOT NULL,
	operation_code    TEXT NOT NULL,
	rural_property_id TEXT NOT NULL,
	polygon_id        INTEGER NOT NULL,
	operator          TEXT NOT NULL DEFAULT '',
	start_date        TEXT NOT NULL DEFAULT '',
	end_date          TEXT NOT NULL DEFAULT '',
	notes             TEXT NOT NULL DEFAULT '',
	gps_track         TEXT NOT NULL DEFAULT '',
	photos            JSONB NOT NULL DEFAULT '[]',
	final             BOOLEAN NOT NULL DEFAULT false
);

CREATE INDEX IF NOT EXISTS idx_assignments_status ON assignments(status);
CREATE INDEX IF NOT EXISTS idx_activities_assignment
	ON activities(worksheet_id, operation_code, rural_property_id, polygon_id, operator);
CREATE UNIQUE INDEX IF NOT EXISTS idx_activities_open
	ON activities(worksheet_id, operation_code, rural_property_id, polygon_id, operator)
	WHERE end_date = '';
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateWorksheet(ctx context.Context, ws model.Worksheet) error {
	metadata, features, operations, err := marshalWorksheet(ws)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx,
		`INSERT INTO worksheets (id, metadata, features, operations) VALUES ($1, $2, $3, $4)`,
		ws.ID, metadata, features, operations,
	); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "worksheets_pkey" {
			return ErrWorksheetExists
		}
		return eris.Wrapf(err, "postgres: insert worksheet %d", ws.ID)
	}

	for _, op := range ws.Operations {
		for _, f := range ws.Features {
			if _, err := tx.Exec(ctx,
				`INSERT INTO assignments (worksheet_id, operation_code, rural_property_id, polygon_id, operator, status)
				 VALUES ($1, $2, $3, $4, '', $5)`,
				ws.ID, op.Code, f.RuralPropertyID, f.PolygonID, string(model.StatusUnassigned),
			); err != nil {
				return eris.Wrapf(err, "postgres: seed assignment %s/%s", op.Code, f.RuralPropertyID)
			}
		}
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit worksheet")
}

func (s *PostgresStore) GetWorksheet(ctx context.Context, id int) (*model.Worksheet, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, metadata, features, operations FROM worksheets WHERE id = $1`, id)

	var ws model.Worksheet
	var metadata, features, operations []byte
	if err := row.Scan(&ws.ID, &metadata, &features, &operations); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrapf(err, "postgres: get worksheet %d", id)
	}
	if err := unmarshalWorksheet(&ws, metadata, features, operations); err != nil {
		return nil, err
	}
	return &ws, nil
}

func (s *PostgresStore) ListWorksheets(ctx context.Context) ([]model.Worksheet, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, metadata, features, operations FROM worksheets ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list worksheets")
	}
	defer rows.Close()

	var sheets []model.Worksheet
	for rows.Next() {
		var ws model.Worksheet
		var metadata, features, operations []byte
		if err := rows.Scan(&ws.ID, &metadata, &features, &operations); err != nil {
			return nil, eris.Wrap(err, "postgres: scan worksheet")
		}
		if err := unmarshalWorksheet(&ws, metadata, features, operations); err != nil {
			return nil, err
		}
		sheets = append(sheets, ws)
	}
	return sheets, eris.Wrap(rows.Err(), "postgres: list worksheets iterate")
}

func (s *PostgresStore) DeleteWorksheet(ctx context.Context, id int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM activities WHERE worksheet_id = $1`, id); err != nil {
		return eris.Wrapf(err, "postgres: delete activities for worksheet %d", id)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM assignments WHERE worksheet_id = $1`, id); err != nil {
		return eris.Wrapf(err, "postgres: delete assignments for worksheet %d", id)
	}
	tag, err := tx.Exec(ctx, `DELETE FROM worksheets WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete worksheet %d", id)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit delete")
}

func (s *PostgresStore) GetAssignment(ctx context.Context, key model.AssignmentKey) (*model.Assignment, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT worksheet_id, operation_code, rural_property_id, polygon_id, operator, status, start_date, end_date
		 FROM assignments
		 WHERE worksheet_id = $1 AND operation_code = $2 AND rural_property_id = $3 AND polygon_id = $4 AND operator = $5`,
		key.WorksheetID, key.OperationCode, key.RuralPropertyID, key.PolygonID, key.Operator,
	)

	var a model.Assignment
	err := row.Scan(&a.WorksheetID, &a.OperationCode, &a.RuralPropertyID, &a.PolygonID, &a.Operator,
		&a.Status, &a.StartDate, &a.EndDate)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get assignment")
	}

	acts, err := s.activitiesFor(ctx, a.AssignmentKey)
	if err != nil {
		return nil, err
	}
	a.Activities = acts
	return &a, nil
}

func (s *PostgresStore) ListAssignments(ctx context.Context, filter AssignmentFilter) ([]model.Assignment, error) {
	query := `SELECT worksheet_id, operation_code, rural_property_id, polygon_id, operator, status, start_date, end_date
		FROM assignments WHERE 1=1`
	var args []any

	if filter.WorksheetID != 0 {
		args = append(args, filter.WorksheetID)
		query += ` AND worksheet_id = $1`
	}
	if filter.OperationCode != "" {
		args = append(args, filter.OperationCode)
		query += ` AND operation_code = $` + strconv.Itoa(len(args))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += ` AND status = $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY worksheet_id, operation_code, rural_property_id, polygon_id`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list assignments")
	}
	defer rows.Close()

	var out []model.Assignment
	for rows.Next() {
		var a model.Assignment
		if err := rows.Scan(&a.WorksheetID, &a.OperationCode, &a.RuralPropertyID, &a.PolygonID, &a.Operator,
			&a.Status, &a.StartDate, &a.EndDate); err != nil {
			return nil, eris.Wrap(err, "postgres: scan assignment")
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: list assignments iterate")
	}

	for i := range out {
		acts, err := s.activitiesFor(ctx, out[i].AssignmentKey)
		if err != nil {
			return nil, err
		}
		out[i].Activities = acts
	}
	return out, nil
}

func (s *PostgresStore) UpdateAssignmentCAS(ctx context.Context, key model.AssignmentKey, expect model.Status, updated model.Assignment) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE assignments SET operator = $1, status = $2, start_date = $3, end_date = $4
		 WHERE worksheet_id = $5 AND operation_code = $6 AND rural_property_id = $7 AND polygon_id = $8 AND operator = $9 AND status = $10`,
		updated.Operator, string(updated.Status), updated.StartDate, updated.EndDate,
		key.WorksheetID, key.OperationCode, key.RuralPropertyID, key.PolygonID, key.Operator, string(expect),
	)
	if err != nil {
		return false, eris.Wrap(err, "postgres: update assignment")
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) InsertActivity(ctx context.Context, key model.AssignmentKey, act model.Activity) error {
	photos, err := marshalPhotos(act.Photos)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO activities (id, worksheet_id, operation_code, rural_property_id, polygon_id, operator, start_date, end_date, notes, gps_track, photos, final)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		act.ID, key.WorksheetID, key.OperationCode, key.RuralPropertyID, key.PolygonID, key.Operator,
		act.StartDate, act.EndDate, act.Notes, act.GPSTrack, photos, act.Final,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "idx_activities_open" {
			return ErrActivityOpen
		}
		return eris.Wrapf(err, "postgres: insert activity %s", act.ID)
	}
	return nil
}

func (s *PostgresStore) GetActivity(ctx context.Context, id string) (*model.Activity, model.AssignmentKey, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, worksheet_id, operation_code, rural_property_id, polygon_id, operator, start_date, end_date, notes, gps_track, photos, final
		 FROM activities WHERE id = $1`, id)

	var act model.Activity
	var key model.AssignmentKey
	var photos []byte
	err := row.Scan(&act.ID, &key.WorksheetID, &key.OperationCode, &key.RuralPropertyID, &key.PolygonID, &key.Operator,
		&act.StartDate, &act.EndDate, &act.Notes, &act.GPSTrack, &photos, &act.Final)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, key, ErrNotFound
	}
	if err != nil {
		return nil, key, eris.Wrapf(err, "postgres: get activity %s", id)
	}
	if act.Photos, err = unmarshalPhotos(photos); err != nil {
		return nil, key, err
	}
	return &act, key, nil
}

func (s *PostgresStore) UpdateActivityCAS(ctx context.Context, updated model.Activity, expect model.Activity) (bool, error) {
	photos, err := marshalPhotos(updated.Photos)
	if err != nil {
		return false, err
	}
	expectPhotos, err := marshalPhotos(expect.Photos)
	if err != nil {
		return false, err
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE activities SET start_date = $1, end_date = $2, notes = $3, gps_track = $4, photos = $5, final = $6
		 WHERE id = $7 AND end_date = $8 AND notes = $9 AND gps_track = $10 AND photos = $11`,
		updated.StartDate, updated.EndDate, updated.Notes, updated.GPSTrack, photos, updated.Final,
		updated.ID, expect.EndDate, expect.Notes, expect.GPSTrack, expectPhotos,
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: update activity %s", updated.ID)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) activitiesFor(ctx context.Context, key model.AssignmentKey) ([]model.Activity, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, start_date, end_date, notes, gps_track, photos, final FROM activities
		 WHERE worksheet_id = $1 AND operation_code = $2 AND rural_property_id = $3 AND polygon_id = $4 AND operator = $5
		 ORDER BY start_date, id`,
		key.WorksheetID, key.OperationCode, key.RuralPropertyID, key.PolygonID, key.Operator,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list activities")
	}
	defer rows.Close()

	var acts []model.Activity
	for rows.Next() {
		var act model.Activity
		var photos []byte
		if err := rows.Scan(&act.ID, &act.StartDate, &act.EndDate, &act.Notes, &act.GPSTrack, &photos, &act.Final); err != nil {
			return nil, eris.Wrap(err, "postgres: scan activity")
		}
		if act.Photos, err = unmarshalPhotos(photos); err != nil {
			return nil, err
		}
		acts = append(acts, act)
	}
	return acts, eris.Wrap(rows.Err(), "postgres: list activities iterate")
}
