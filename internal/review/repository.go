package review

import (
	"context"
	"database/sql"
	"time"
)

type Repository interface {
	UpsertScene(ctx context.Context, scene *Scene) error
	GetScene(ctx context.Context, id string) (*Scene, error)
	ListScenes(ctx context.Context) ([]*Scene, error)
	SetSceneReviewed(ctx context.Context, id string, reviewed bool) error
	CountUnreviewedScenes(ctx context.Context) (int, error)

	ReplaceTags(ctx context.Context, tags []*Tag) error
	GetTag(ctx context.Context, id string) (*Tag, error)
	GetTagByName(ctx context.Context, name string) (*Tag, error)
	ListTags(ctx context.Context) ([]*Tag, error)

	ReplaceSceneMarkers(ctx context.Context, sceneID string, markers []*Marker) error
	GetMarker(ctx context.Context, id string) (*Marker, error)
	ListMarkers(ctx context.Context, sceneID string) ([]*Marker, error)
	SaveMarker(ctx context.Context, marker *Marker) error
	DeleteMarker(ctx context.Context, id string) error

	CreateJob(ctx context.Context, job *Job) error
	GetJob(ctx context.Context, id string) (*Job, error)
	ListJobs(ctx context.Context, limit int) ([]*Job, error)
	ListPendingJobs(ctx context.Context) ([]*Job, error)
	UpdateJobStatus(ctx context.Context, id, status, errorMsg string) error
	UpdateJobProgress(ctx context.Context, id string, progress int) error

	AddEvent(ctx context.Context, event *Event) error
	ListEvents(ctx context.Context, sceneID string, limit int) ([]*Event, error)

	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const sceneColumns = `s.id, s.title, s.path, s.duration, s.frame_rate, s.reviewed, s.synced_at,
	(SELECT COUNT(*) FROM markers m WHERE m.scene_id = s.id)`

func (r *SQLiteRepository) UpsertScene(ctx context.Context, s *Scene) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO scenes (id, title, path, duration, frame_rate, reviewed, synced_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			path = excluded.path,
			duration = excluded.duration,
			frame_rate = excluded.frame_rate,
			reviewed = excluded.reviewed,
			synced_at = excluded.synced_at
	`, s.ID, s.Title, s.Path, s.Duration, s.FrameRate, boolToInt(s.Reviewed), s.SyncedAt.UTC().Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) GetScene(ctx context.Context, id string) (*Scene, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sceneColumns+` FROM scenes s WHERE s.id = ?`, id)

	var s Scene
	var reviewed int
	var syncedAt string
	err := row.Scan(&s.ID, &s.Title, &s.Path, &s.Duration, &s.FrameRate, &reviewed, &syncedAt, &s.MarkerCount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.Reviewed = reviewed == 1
	s.SyncedAt, _ = time.Parse(time.RFC3339, syncedAt)
	return &s, nil
}

func (r *SQLiteRepository) ListScenes(ctx context.Context) ([]*Scene, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+sceneColumns+` FROM scenes s ORDER BY s.title, s.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scenes []*Scene
	for rows.Next() {
		var s Scene
		var reviewed int
		var syncedAt string
		if err := rows.Scan(&s.ID, &s.Title, &s.Path, &s.Duration, &s.FrameRate, &reviewed, &syncedAt, &s.MarkerCount); err != nil {
			return nil, err
		}
		s.Reviewed = reviewed == 1
		s.SyncedAt, _ = time.Parse(time.RFC3339, syncedAt)
		scenes = append(scenes, &s)
	}
	return scenes, rows.Err()
}

func (r *SQLiteRepository) SetSceneReviewed(ctx context.Context, id string, reviewed bool) error {
	_, err := r.db.ExecContext(ctx, "UPDATE scenes SET reviewed = ? WHERE id = ?", boolToInt(reviewed), id)
	return err
}

func (r *SQLiteRepository) CountUnreviewedScenes(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM scenes WHERE reviewed = 0").Scan(&count)
	return count, err
}

// ReplaceTags swaps the whole tag cache in one transaction.
func (r *SQLiteRepository) ReplaceTags(ctx context.Context, tags []*Tag) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM tags"); err != nil {
		return err
	}
	for _, t := range tags {
		if _, err := tx.ExecContext(ctx, "INSERT INTO tags (id, name) VALUES (?, ?)", t.ID, t.Name); err != nil {
			return err
		}
	}
	for _, t := range tags {
		for _, pid := range t.ParentIDs {
			if _, err := tx.ExecContext(ctx,
				"INSERT OR IGNORE INTO tag_parents (tag_id, parent_id) VALUES (?, ?)", t.ID, pid); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

func (r *SQLiteRepository) GetTag(ctx context.Context, id string) (*Tag, error) {
	return r.getTag(ctx, "SELECT id, name FROM tags WHERE id = ?", id)
}

// GetTagByName matches exactly first, then case-insensitively.
func (r *SQLiteRepository) GetTagByName(ctx context.Context, name string) (*Tag, error) {
	t, err := r.getTag(ctx, "SELECT id, name FROM tags WHERE name = ? ORDER BY id LIMIT 1", name)
	if err != nil || t != nil {
		return t, err
	}
	return r.getTag(ctx, "SELECT id, name FROM tags WHERE name = ? COLLATE NOCASE ORDER BY id LIMIT 1", name)
}

func (r *SQLiteRepository) getTag(ctx context.Context, query string, arg string) (*Tag, error) {
	var t Tag
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&t.ID, &t.Name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, "SELECT parent_id FROM tag_parents WHERE tag_id = ? ORDER BY parent_id", t.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var pid string
		if err := rows.Scan(&pid); err != nil {
			return nil, err
		}
		t.ParentIDs = append(t.ParentIDs, pid)
	}
	return &t, rows.Err()
}

func (r *SQLiteRepository) ListTags(ctx context.Context) ([]*Tag, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, name FROM tags ORDER BY name, id")
	if err != nil {
		return nil, err
	}

	var tags []*Tag
	byID := make(map[string]*Tag)
	for rows.Next() {
		var t Tag
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			rows.Close()
			return nil, err
		}
		tags = append(tags, &t)
		byID[t.ID] = &t
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	// The pool holds one connection, so parents are read after the first
	// result set is closed.
	prows, err := r.db.QueryContext(ctx, "SELECT tag_id, parent_id FROM tag_parents ORDER BY tag_id, parent_id")
	if err != nil {
		return nil, err
	}
	defer prows.Close()
	for prows.Next() {
		var tagID, parentID string
		if err := prows.Scan(&tagID, &parentID); err != nil {
			return nil, err
		}
		if t, ok := byID[tagID]; ok {
			t.ParentIDs = append(t.ParentIDs, parentID)
		}
	}
	return tags, prows.Err()
}

// ReplaceSceneMarkers drops the cached markers of a scene and stores the
// given set in their place.
func (r *SQLiteRepository) ReplaceSceneMarkers(ctx context.Context, sceneID string, markers []*Marker) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM markers WHERE scene_id = ?", sceneID); err != nil {
		return err
	}
	for _, m := range markers {
		if err := insertMarker(ctx, tx, m); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// SaveMarker inserts or replaces a single marker and its tags.
func (r *SQLiteRepository) SaveMarker(ctx context.Context, m *Marker) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM markers WHERE id = ?", m.ID); err != nil {
		return err
	}
	if err := insertMarker(ctx, tx, m); err != nil {
		return err
	}
	return tx.Commit()
}

func insertMarker(ctx context.Context, tx *sql.Tx, m *Marker) error {
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = time.Now().UTC()
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO markers (id, scene_id, title, primary_tag_id, seconds, end_seconds, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, m.ID, m.SceneID, m.Title, m.PrimaryTagID, m.Seconds, nullFloat(m.EndSeconds), m.UpdatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return err
	}
	for i, tagID := range m.TagIDs {
		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO marker_tags (marker_id, tag_id, position) VALUES (?, ?, ?)",
			m.ID, tagID, i); err != nil {
			return err
		}
	}
	return nil
}

func (r *SQLiteRepository) GetMarker(ctx context.Context, id string) (*Marker, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, scene_id, title, primary_tag_id, seconds, end_seconds, updated_at
		FROM markers WHERE id = ?
	`, id)

	var m Marker
	var end sql.NullFloat64
	var updatedAt string
	err := row.Scan(&m.ID, &m.SceneID, &m.Title, &m.PrimaryTagID, &m.Seconds, &end, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if end.Valid {
		m.EndSeconds = &end.Float64
	}
	m.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

	rows, err := r.db.QueryContext(ctx, "SELECT tag_id FROM marker_tags WHERE marker_id = ? ORDER BY position", id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	m.TagIDs = []string{}
	for rows.Next() {
		var tagID string
		if err := rows.Scan(&tagID); err != nil {
			return nil, err
		}
		m.TagIDs = append(m.TagIDs, tagID)
	}
	return &m, rows.Err()
}

// ListMarkers returns the markers of a scene ordered by start time.
func (r *SQLiteRepository) ListMarkers(ctx context.Context, sceneID string) ([]*Marker, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, scene_id, title, primary_tag_id, seconds, end_seconds, updated_at
		FROM markers WHERE scene_id = ? ORDER BY seconds, id
	`, sceneID)
	if err != nil {
		return nil, err
	}

	var markers []*Marker
	byID := make(map[string]*Marker)
	for rows.Next() {
		var m Marker
		var end sql.NullFloat64
		var updatedAt string
		if err := rows.Scan(&m.ID, &m.SceneID, &m.Title, &m.PrimaryTagID, &m.Seconds, &end, &updatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		if end.Valid {
			v := end.Float64
			m.EndSeconds = &v
		}
		m.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		m.TagIDs = []string{}
		markers = append(markers, &m)
		byID[m.ID] = &m
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	trows, err := r.db.QueryContext(ctx, `
		SELECT mt.marker_id, mt.tag_id FROM marker_tags mt
		JOIN markers m ON m.id = mt.marker_id
		WHERE m.scene_id = ? ORDER BY mt.marker_id, mt.position
	`, sceneID)
	if err != nil {
		return nil, err
	}
	defer trows.Close()
	for trows.Next() {
		var markerID, tagID string
		if err := trows.Scan(&markerID, &tagID); err != nil {
			return nil, err
		}
		if m, ok := byID[markerID]; ok {
			m.TagIDs = append(m.TagIDs, tagID)
		}
	}
	return markers, trows.Err()
}

func (r *SQLiteRepository) DeleteMarker(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM markers WHERE id = ?", id)
	return err
}

func (r *SQLiteRepository) CreateJob(ctx context.Context, j *Job) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO jobs (id, type, status, scene_id, progress, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, j.ID, j.Type, j.Status, nullString(j.SceneID), j.Progress, nullString(j.Error),
		j.CreatedAt.UTC().Format(time.RFC3339), j.UpdatedAt.UTC().Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) GetJob(ctx context.Context, id string) (*Job, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, type, status, scene_id, progress, error, created_at, updated_at
		FROM jobs WHERE id = ?
	`, id)

	var j Job
	var sceneID, errMsg sql.NullString
	var createdAt, updatedAt string
	err := row.Scan(&j.ID, &j.Type, &j.Status, &sceneID, &j.Progress, &errMsg, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	j.SceneID = sceneID.String
	j.Error = errMsg.String
	j.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	j.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &j, nil
}

func (r *SQLiteRepository) ListJobs(ctx context.Context, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, type, status, scene_id, progress, error, created_at, updated_at
		FROM jobs ORDER BY created_at DESC, rowid DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanJobs(rows)
}

func (r *SQLiteRepository) ListPendingJobs(ctx context.Context) ([]*Job, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, type, status, scene_id, progress, error, created_at, updated_at
		FROM jobs WHERE status = 'pending' ORDER BY created_at ASC, rowid ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanJobs(rows)
}

func (r *SQLiteRepository) scanJobs(rows *sql.Rows) ([]*Job, error) {
	var jobs []*Job
	for rows.Next() {
		var j Job
		var sceneID, errMsg sql.NullString
		var createdAt, updatedAt string

		if err := rows.Scan(&j.ID, &j.Type, &j.Status, &sceneID, &j.Progress, &errMsg, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		j.SceneID = sceneID.String
		j.Error = errMsg.String
		j.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		j.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		jobs = append(jobs, &j)
	}
	return jobs, rows.Err()
}

func (r *SQLiteRepository) UpdateJobStatus(ctx context.Context, id, status, errorMsg string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET status = ?, error = ?, updated_at = ? WHERE id = ?
	`, status, nullString(errorMsg), time.Now().UTC().Format(time.RFC3339), id)
	return err
}

func (r *SQLiteRepository) UpdateJobProgress(ctx context.Context, id string, progress int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET progress = ?, updated_at = ? WHERE id = ?
	`, progress, time.Now().UTC().Format(time.RFC3339), id)
	return err
}

func (r *SQLiteRepository) AddEvent(ctx context.Context, e *Event) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO review_events (scene_id, marker_id, action, detail, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, e.SceneID, nullString(e.MarkerID), e.Action, nullString(e.Detail), e.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return err
	}
	e.ID, err = res.LastInsertId()
	return err
}

// ListEvents returns the newest events of a scene first.
func (r *SQLiteRepository) ListEvents(ctx context.Context, sceneID string, limit int) ([]*Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, scene_id, marker_id, action, detail, created_at
		FROM review_events WHERE scene_id = ? ORDER BY id DESC LIMIT ?
	`, sceneID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		var e Event
		var markerID, detail sql.NullString
		var createdAt string
		if err := rows.Scan(&e.ID, &e.SceneID, &markerID, &e.Action, &detail, &createdAt); err != nil {
			return nil, err
		}
		e.MarkerID = markerID.String
		e.Detail = detail.String
		e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		events = append(events, &e)
	}
	return events, rows.Err()
}

func (r *SQLiteRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (r *SQLiteRepository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

func closeRows(rows *sql.Rows) error {
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	return rows.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
