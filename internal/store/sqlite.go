package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/GoncaloVaranda/field-sync-app-sub000/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL
// mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

// The partial unique index on open activities is what makes concurrent
// StartActivity calls safe: only one row with an empty end_date may
// exist per assignment.
const sqliteMigration = `
CREATE TABLE IF NOT EXISTS worksheets (
	id         INTEGER PRIMARY KEY,
	metadata   TEXT NOT NULL,
	features   TEXT NOT NULL,
	operations TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
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
	photos            TEXT NOT NULL DEFAULT '[]',
	final             INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_assignments_status ON assignments(status);
CREATE INDEX IF NOT EXISTS idx_activities_assignment
	ON activities(worksheet_id, operation_code, rural_property_id, polygon_id, operator);
CREATE UNIQUE INDEX IF NOT EXISTS idx_activities_open
	ON activities(worksheet_id, operation_code, rural_property_id, polygon_id, operator)
	WHERE end_date = '';
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateWorksheet(ctx context.Context, ws model.Worksheet) error {
	metadata, features, operations, err := marshalWorksheet(ws)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO worksheets (id, metadata, features, operations) VALUES (?, ?, ?, ?)`,
		ws.ID, metadata, features, operations,
	); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: worksheets.id") {
			return ErrWorksheetExists
		}
		return eris.Wrapf(err, "sqlite: insert worksheet %d", ws.ID)
	}

	// Seed one unassigned assignment per operation/parcel pairing.
	for _, op := range ws.Operations {
		for _, f := range ws.Features {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO assignments (worksheet_id, operation_code, rural_property_id, polygon_id, operator, status)
				 VALUES (?, ?, ?, ?, '', ?)`,
				ws.ID, op.Code, f.RuralPropertyID, f.PolygonID, string(model.StatusUnassigned),
			); err != nil {
				return eris.Wrapf(err, "sqlite: seed assignment %s/%s", op.Code, f.RuralPropertyID)
			}
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit worksheet")
}

func (s *SQLiteStore) GetWorksheet(ctx context.Context, id int) (*model.Worksheet, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, metadata, features, operations FROM worksheets WHERE id = ?`, id)

	var ws model.Worksheet
	var metadata, features, operations []byte
	if err := row.Scan(&ws.ID, &metadata, &features, &operations); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrapf(err, "sqlite: get worksheet %d", id)
	}
	if err := unmarshalWorksheet(&ws, metadata, features, operations); err != nil {
		return nil, err
	}
	return &ws, nil
}

func (s *SQLiteStore) ListWorksheets(ctx context.Context) ([]model.Worksheet, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, metadata, features, operations FROM worksheets ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list worksheets")
	}
	defer rows.Close()

	var sheets []model.Worksheet
	for rows.Next() {
		var ws model.Worksheet
		var metadata, features, operations []byte
		if err := rows.Scan(&ws.ID, &metadata, &features, &operations); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan worksheet")
		}
		if err := unmarshalWorksheet(&ws, metadata, features, operations); err != nil {
			return nil, err
		}
		sheets = append(sheets, ws)
	}
	return sheets, eris.Wrap(rows.Err(), "sqlite: list worksheets iterate")
}

func (s *SQLiteStore) DeleteWorksheet(ctx context.Context, id int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM activities WHERE worksheet_id = ?`, id); err != nil {
		return eris.Wrapf(err, "sqlite: delete activities for worksheet %d", id)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM assignments WHERE worksheet_id = ?`, id); err != nil {
		return eris.Wrapf(err, "sqlite: delete assignments for worksheet %d", id)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM worksheets WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete worksheet %d", id)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit delete")
}

func (s *SQLiteStore) GetAssignment(ctx context.Context, key model.AssignmentKey) (*model.Assignment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT worksheet_id, operation_code, rural_property_id, polygon_id, operator, status, start_date, end_date
		 FROM assignments
		 WHERE worksheet_id = ? AND operation_code = ? AND rural_property_id = ? AND polygon_id = ? AND operator = ?`,
		key.WorksheetID, key.OperationCode, key.RuralPropertyID, key.PolygonID, key.Operator,
	)
	a, err := scanAssignment(row)
	if err != nil {
		return nil, err
	}

	acts, err := s.activitiesFor(ctx, a.AssignmentKey)
	if err != nil {
		return nil, err
	}
	a.Activities = acts
	return a, nil
}

func (s *SQLiteStore) ListAssignments(ctx context.Context, filter AssignmentFilter) ([]model.Assignment, error) {
	query := `SELECT worksheet_id, operation_code, rural_property_id, polygon_id, operator, status, start_date, end_date
		FROM assignments WHERE 1=1`
	var args []any

	if filter.WorksheetID != 0 {
		query += ` AND worksheet_id = ?`
		args = append(args, filter.WorksheetID)
	}
	if filter.OperationCode != "" {
		query += ` AND operation_code = ?`
		args = append(args, filter.OperationCode)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY worksheet_id, operation_code, rural_property_id, polygon_id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list assignments")
	}
	defer rows.Close()

	var out []model.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: list assignments iterate")
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

func (s *SQLiteStore) UpdateAssignmentCAS(ctx context.Context, key model.AssignmentKey, expect model.Status, updated model.Assignment) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE assignments SET operator = ?, status = ?, start_date = ?, end_date = ?
		 WHERE worksheet_id = ? AND operation_code = ? AND rural_property_id = ? AND polygon_id = ? AND operator = ? AND status = ?`,
		updated.Operator, string(updated.Status), updated.StartDate, updated.EndDate,
		key.WorksheetID, key.OperationCode, key.RuralPropertyID, key.PolygonID, key.Operator, string(expect),
	)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: update assignment")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: update assignment rows affected")
	}
	return n > 0, nil
}

func (s *SQLiteStore) InsertActivity(ctx context.Context, key model.AssignmentKey, act model.Activity) error {
	photos, err := marshalPhotos(act.Photos)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO activities (id, worksheet_id, operation_code, rural_property_id, polygon_id, operator, start_date, end_date, notes, gps_track, photos, final)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		act.ID, key.WorksheetID, key.OperationCode, key.RuralPropertyID, key.PolygonID, key.Operator,
		act.StartDate, act.EndDate, act.Notes, act.GPSTrack, photos, act.Final,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: activities.worksheet_id") {
			return ErrActivityOpen
		}
		return eris.Wrapf(err, "sqlite: insert activity %s", act.ID)
	}
	return nil
}

func (s *SQLiteStore) GetActivity(ctx context.Context, id string) (*model.Activity, model.AssignmentKey, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, worksheet_id, operation_code, rural_property_id, polygon_id, operator, start_date, end_date, notes, gps_track, photos, final
		 FROM activities WHERE id = ?`, id)

	var act model.Activity
	var key model.AssignmentKey
	var photos []byte
	err := row.Scan(&act.ID, &key.WorksheetID, &key.OperationCode, &key.RuralPropertyID, &key.PolygonID, &key.Operator,
		&act.StartDate, &act.EndDate, &act.Notes, &act.GPSTrack, &photos, &act.Final)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, key, ErrNotFound
	}
	if err != nil {
		return nil, key, eris.Wrapf(err, "sqlite: get activity %s", id)
	}
	if act.Photos, err = unmarshalPhotos(photos); err != nil {
		return nil, key, err
	}
	return &act, key, nil
}

func (s *SQLiteStore) UpdateActivityCAS(ctx context.Context, updated model.Activity, expect model.Activity) (bool, error) {
	photos, err := marshalPhotos(updated.Photos)
	if err != nil {
		return false, err
	}
	expectPhotos, err := marshalPhotos(expect.Photos)
	if err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE activities SET start_date = ?, end_date = ?, notes = ?, gps_track = ?, photos = ?, final = ?
		 WHERE id = ? AND end_date = ? AND notes = ? AND gps_track = ? AND photos = ?`,
		updated.StartDate, updated.EndDate, updated.Notes, updated.GPSTrack, photos, updated.Final,
		updated.ID, expect.EndDate, expect.Notes, expect.GPSTrack, expectPhotos,
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: update activity %s", updated.ID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: update activity rows affected")
	}
	return n > 0, nil
}

func (s *SQLiteStore) activitiesFor(ctx context.Context, key model.AssignmentKey) ([]model.Activity, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, start_date, end_date, notes, gps_track, photos, final FROM activities
		 WHERE worksheet_id = ? AND operation_code = ? AND rural_property_id = ? AND polygon_id = ? AND operator = ?
		 ORDER BY start_date, id`,
		key.WorksheetID, key.OperationCode, key.RuralPropertyID, key.PolygonID, key.Operator,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list activities")
	}
	defer rows.Close()

	var acts []model.Activity
	for rows.Next() {
		var act model.Activity
		var photos []byte
		if err := rows.Scan(&act.ID, &act.StartDate, &act.EndDate, &act.Notes, &act.GPSTrack, &photos, &act.Final); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan activity")
		}
		if act.Photos, err = unmarshalPhotos(photos); err != nil {
			return nil, err
		}
		acts = append(acts, act)
	}
	return acts, eris.Wrap(rows.Err(), "sqlite: list activities iterate")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAssignment(row rowScanner) (*model.Assignment, error) {
	var a model.Assignment
	err := row.Scan(&a.WorksheetID, &a.OperationCode, &a.RuralPropertyID, &a.PolygonID, &a.Operator,
		&a.Status, &a.StartDate, &a.EndDate)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan assignment")
	}
	return &a, nil
}

func marshalWorksheet(ws model.Worksheet) (metadata, features, operations []byte, err error) {
	if metadata, err = json.Marshal(ws.Metadata); err != nil {
		return nil, nil, nil, eris.Wrap(err, "store: marshal metadata")
	}
	if features, err = json.Marshal(ws.Features); err != nil {
		return nil, nil, nil, eris.Wrap(err, "store: marshal features")
	}
	if operations, err = json.Marshal(ws.Operations); err != nil {
		return nil, nil, nil, eris.Wrap(err, "store: marshal operations")
	}
	return metadata, features, operations, nil
}

func unmarshalWorksheet(ws *model.Worksheet, metadata, features, operations []byte) error {
	if err := json.Unmarshal(metadata, &ws.Metadata); err != nil {
		return eris.Wrapf(err, "store: unmarshal metadata for worksheet %d", ws.ID)
	}
	if err := json.Unmarshal(features, &ws.Features); err != nil {
		return eris.Wrapf(err, "store: unmarshal features for worksheet %d", ws.ID)
	}
	if err := json.Unmarshal(operations, &ws.Operations); err != nil {
		return eris.Wrapf(err, "store: unmarshal operations for worksheet %d", ws.ID)
	}
	return nil
}

func marshalPhotos(photos []string) ([]byte, error) {
	if photos == nil {
		photos = []string{}
	}
	b, err := json.Marshal(photos)
	return b, eris.Wrap(err, "store: marshal photos")
}

func unmarshalPhotos(raw []byte) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var photos []string
	if err := json.Unmarshal(raw, &photos); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal photos")
	}
	if len(photos) == 0 {
		return nil, nil
	}
	return photos, nil
}
