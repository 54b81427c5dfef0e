package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/brickvault/platform/internal/app/domain/audit"
	"github.com/brickvault/platform/internal/app/domain/document"
	"github.com/brickvault/platform/internal/app/domain/flag"
	"github.com/brickvault/platform/internal/app/domain/notification"
	"github.com/brickvault/platform/internal/app/domain/visit"
)

// --- DocumentStore ----------------------------------------------------------

type documentRow struct {
	ID          string    `db:"id"`
	OwnerUserID string    `db:"owner_user_id"`
	EntityID    string    `db:"entity_id"`
	Kind        string    `db:"kind"`
	FileName    string    `db:"file_name"`
	ContentType string    `db:"content_type"`
	SizeBytes   int64     `db:"size_bytes"`
	ObjectKey   string    `db:"object_key"`
	SHA256      string    `db:"sha256"`
	CreatedAt   time.Time `db:"created_at"`
}

func (r documentRow) toDomain() document.Document {
	return document.Document{
		ID:          r.ID,
		OwnerUserID: r.OwnerUserID,
		EntityID:    r.EntityID,
		Kind:        document.Kind(r.Kind),
		FileName:    r.FileName,
		ContentType: r.ContentType,
		SizeBytes:   r.SizeBytes,
		ObjectKey:   r.ObjectKey,
		SHA256:      r.SHA256,
		CreatedAt:   r.CreatedAt.UTC(),
	}
}

const documentColumns = `id, owner_user_id, entity_id, kind, file_name, content_type, size_bytes, object_key, sha256, created_at`

func (s *Store) CreateDocument(ctx context.Context, d document.Document) (document.Document, error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	d.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, owner_user_id, entity_id, kind, file_name, content_type, size_bytes, object_key, sha256, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, d.ID, d.OwnerUserID, d.EntityID, d.Kind, d.FileName, d.ContentType, d.SizeBytes, d.ObjectKey, d.SHA256, d.CreatedAt)
	if err != nil {
		return document.Document{}, mapErr(err)
	}
	return d, nil
}

func (s *Store) GetDocument(ctx context.Context, id string) (document.Document, error) {
	var row documentRow
	err := s.db.GetContext(ctx, &row, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)
	if err != nil {
		return document.Document{}, mapErr(err)
	}
	return row.toDomain(), nil
}

func (s *Store) ListDocuments(ctx context.Context, ownerUserID string) ([]document.Document, error) {
	var rows []documentRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+documentColumns+` FROM documents
		WHERE $1 = '' OR owner_user_id::text = $1
		ORDER BY created_at
	`, ownerUserID)
	if err != nil {
		return nil, mapErr(err)
	}
	out := make([]document.Document, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *Store) ListDocumentsByEntity(ctx context.Context, entityID string) ([]document.Document, error) {
	var rows []documentRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+documentColumns+` FROM documents WHERE entity_id = $1 ORDER BY created_at
	`, entityID)
	if err != nil {
		return nil, mapErr(err)
	}
	out := make([]document.Document, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return mapErr(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return mapErr(sql.ErrNoRows)
	}
	return nil
}

// --- NotificationStore ------------------------------------------------------

type notificationRow struct {
	ID        string       `db:"id"`
	UserID    string       `db:"user_id"`
	Level     string       `db:"level"`
	Title     string       `db:"title"`
	Body      string       `db:"body"`
	Ref       string       `db:"ref"`
	Read      bool         `db:"read"`
	CreatedAt time.Time    `db:"created_at"`
	ReadAt    sql.NullTime `db:"read_at"`
}

func (r notificationRow) toDomain() notification.Notification {
	return notification.Notification{
		ID:        r.ID,
		UserID:    r.UserID,
		Level:     notification.Level(r.Level),
		Title:     r.Title,
		Body:      r.Body,
		Ref:       r.Ref,
		Read:      r.Read,
		CreatedAt: r.CreatedAt.UTC(),
		ReadAt:    fromNullTime(r.ReadAt),
	}
}

const notificationColumns = `id, user_id, level, title, body, ref, read, created_at, read_at`

func (s *Store) CreateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Level == "" {
		n.Level = notification.LevelInfo
	}
	n.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, level, title, body, ref, read, created_at, read_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, n.ID, n.UserID, n.Level, n.Title, n.Body, n.Ref, n.Read, n.CreatedAt, toNullTime(n.ReadAt))
	if err != nil {
		return notification.Notification{}, mapErr(err)
	}
	return n, nil
}

func (s *Store) GetNotification(ctx context.Context, id string) (notification.Notification, error) {
	var row notificationRow
	err := s.db.GetContext(ctx, &row, `SELECT `+notificationColumns+` FROM notifications WHERE id = $1`, id)
	if err != nil {
		return notification.Notification{}, mapErr(err)
	}
	return row.toDomain(), nil
}

func (s *Store) ListNotifications(ctx context.Context, userID string, unreadOnly bool) ([]notification.Notification, error) {
	var rows []notificationRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+notificationColumns+` FROM notifications
		WHERE user_id = $1 AND ($2 = FALSE OR read = FALSE)
		ORDER BY created_at
	`, userID, unreadOnly)
	if err != nil {
		return nil, mapErr(err)
	}
	out := make([]notification.Notification, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *Store) MarkRead(ctx context.Context, id string) (notification.Notification, error) {
	_, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET read = TRUE, read_at = $2 WHERE id = $1 AND read = FALSE
	`, id, time.Now().UTC())
	if err != nil {
		return notification.Notification{}, mapErr(err)
	}
	return s.GetNotification(ctx, id)
}

func (s *Store) MarkAllRead(ctx context.Context, userID string) (int, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET read = TRUE, read_at = $2 WHERE user_id = $1 AND read = FALSE
	`, userID, time.Now().UTC())
	if err != nil {
		return 0, mapErr(err)
	}
	rows, _ := result.RowsAffected()
	return int(rows), nil
}

// --- AuditStore -------------------------------------------------------------

type auditRow struct {
	ID         string    `db:"id"`
	ActorID    string    `db:"actor_id"`
	ActorRole  string    `db:"actor_role"`
	Action     string    `db:"action"`
	Entity     string    `db:"entity"`
	EntityID   string    `db:"entity_id"`
	Metadata   []byte    `db:"metadata"`
	RemoteAddr string    `db:"remote_addr"`
	CreatedAt  time.Time `db:"created_at"`
}

func (r auditRow) toDomain() audit.Event {
	ev := audit.Event{
		ID:         r.ID,
		ActorID:    r.ActorID,
		ActorRole:  r.ActorRole,
		Action:     r.Action,
		Entity:     r.Entity,
		EntityID:   r.EntityID,
		RemoteAddr: r.RemoteAddr,
		CreatedAt:  r.CreatedAt.UTC(),
	}
	if len(r.Metadata) > 0 {
		_ = json.Unmarshal(r.Metadata, &ev.Metadata)
	}
	return ev
}

func (s *Store) AppendEvent(ctx context.Context, ev audit.Event) (audit.Event, error) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	metadataJSON, err := json.Marshal(ev.Metadata)
	if err != nil {
		return audit.Event{}, err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_events (id, actor_id, actor_role, action, entity, entity_id, metadata, remote_addr, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, ev.ID, ev.ActorID, ev.ActorRole, ev.Action, ev.Entity, ev.EntityID, metadataJSON, ev.RemoteAddr, ev.CreatedAt)
	if err != nil {
		return audit.Event{}, mapErr(err)
	}
	return ev, nil
}

func (s *Store) ListEvents(ctx context.Context, entity string, limit int) ([]audit.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []auditRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, actor_id, actor_role, action, entity, entity_id, metadata, remote_addr, created_at
		FROM audit_events
		WHERE $1 = '' OR entity = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, entity, limit)
	if err != nil {
		return nil, mapErr(err)
	}
	out := make([]audit.Event, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// --- FlagStore --------------------------------------------------------------

type flagRow struct {
	Key            string    `db:"key"`
	Description    string    `db:"description"`
	Enabled        bool      `db:"enabled"`
	RolloutPercent int       `db:"rollout_percent"`
	UpdatedBy      string    `db:"updated_by"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

func (r flagRow) toDomain() flag.Flag {
	return flag.Flag{
		Key:            r.Key,
		Description:    r.Description,
		Enabled:        r.Enabled,
		RolloutPercent: r.RolloutPercent,
		UpdatedBy:      r.UpdatedBy,
		CreatedAt:      r.CreatedAt.UTC(),
		UpdatedAt:      r.UpdatedAt.UTC(),
	}
}

const flagColumns = `key, description, enabled, rollout_percent, updated_by, created_at, updated_at`

func (s *Store) UpsertFlag(ctx context.Context, f flag.Flag) (flag.Flag, error) {
	now := time.Now().UTC()
	f.CreatedAt = now
	f.UpdatedAt = now

	var row flagRow
	err := s.db.GetContext(ctx, &row, `
		INSERT INTO feature_flags (key, description, enabled, rollout_percent, updated_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (key) DO UPDATE
		SET description = EXCLUDED.description, enabled = EXCLUDED.enabled,
		    rollout_percent = EXCLUDED.rollout_percent, updated_by = EXCLUDED.updated_by, updated_at = EXCLUDED.updated_at
		RETURNING `+flagColumns+`
	`, f.Key, f.Description, f.Enabled, f.RolloutPercent, f.UpdatedBy, f.CreatedAt, f.UpdatedAt)
	if err != nil {
		return flag.Flag{}, mapErr(err)
	}
	return row.toDomain(), nil
}

func (s *Store) GetFlag(ctx context.Context, key string) (flag.Flag, error) {
	var row flagRow
	err := s.db.GetContext(ctx, &row, `SELECT `+flagColumns+` FROM feature_flags WHERE key = $1`, key)
	if err != nil {
		return flag.Flag{}, mapErr(err)
	}
	return row.toDomain(), nil
}

func (s *Store) ListFlags(ctx context.Context) ([]flag.Flag, error) {
	var rows []flagRow
	err := s.db.SelectContext(ctx, &rows, `SELECT `+flagColumns+` FROM feature_flags ORDER BY key`)
	if err != nil {
		return nil, mapErr(err)
	}
	out := make([]flag.Flag, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *Store) DeleteFlag(ctx context.Context, key string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM feature_flags WHERE key = $1`, key)
	if err != nil {
		return mapErr(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return mapErr(sql.ErrNoRows)
	}
	return nil
}

// --- VisitStore -------------------------------------------------------------

type visitRow struct {
	ID           string    `db:"id"`
	PropertyID   string    `db:"property_id"`
	InvestorID   string    `db:"investor_id"`
	ScheduledAt  time.Time `db:"scheduled_at"`
	Status       string    `db:"status"`
	Note         string    `db:"note"`
	ReminderSent bool      `db:"reminder_sent"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r visitRow) toDomain() visit.Visit {
	return visit.Visit{
		ID:           r.ID,
		PropertyID:   r.PropertyID,
		InvestorID:   r.InvestorID,
		ScheduledAt:  r.ScheduledAt.UTC(),
		Status:       visit.Status(r.Status),
		Note:         r.Note,
		ReminderSent: r.ReminderSent,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
}

const visitColumns = `id, property_id, investor_id, scheduled_at, status, note, reminder_sent, created_at, updated_at`

func (s *Store) CreateVisit(ctx context.Context, v visit.Visit) (visit.Visit, error) {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.Status == "" {
		v.Status = visit.StatusRequested
	}
	now := time.Now().UTC()
	v.CreatedAt = now
	v.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO visits (id, property_id, investor_id, scheduled_at, status, note, reminder_sent, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, v.ID, v.PropertyID, v.InvestorID, v.ScheduledAt.UTC(), v.Status, v.Note, v.ReminderSent, v.CreatedAt, v.UpdatedAt)
	if err != nil {
		return visit.Visit{}, mapErr(err)
	}
	return v, nil
}

func (s *Store) UpdateVisit(ctx context.Context, v visit.Visit) (visit.Visit, error) {
	existing, err := s.GetVisit(ctx, v.ID)
	if err != nil {
		return visit.Visit{}, err
	}
	v.PropertyID = existing.PropertyID
	v.InvestorID = existing.InvestorID
	v.CreatedAt = existing.CreatedAt
	v.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE visits
		SET scheduled_at = $2, status = $3, note = $4, reminder_sent = $5, updated_at = $6
		WHERE id = $1
	`, v.ID, v.ScheduledAt.UTC(), v.Status, v.Note, v.ReminderSent, v.UpdatedAt)
	if err != nil {
		return visit.Visit{}, mapErr(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return visit.Visit{}, mapErr(sql.ErrNoRows)
	}
	return v, nil
}

func (s *Store) GetVisit(ctx context.Context, id string) (visit.Visit, error) {
	var row visitRow
	err := s.db.GetContext(ctx, &row, `SELECT `+visitColumns+` FROM visits WHERE id = $1`, id)
	if err != nil {
		return visit.Visit{}, mapErr(err)
	}
	return row.toDomain(), nil
}

func (s *Store) ListVisits(ctx context.Context, propertyID, investorID string) ([]visit.Visit, error) {
	var rows []visitRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+visitColumns+` FROM visits
		WHERE ($1 = '' OR property_id::text = $1) AND ($2 = '' OR investor_id::text = $2)
		ORDER BY created_at
	`, propertyID, investorID)
	if err != nil {
		return nil, mapErr(err)
	}
	out := make([]visit.Visit, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *Store) ListDueReminders(ctx context.Context, from, to time.Time) ([]visit.Visit, error) {
	var rows []visitRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+visitColumns+` FROM visits
		WHERE status = 'confirmed' AND reminder_sent = FALSE AND scheduled_at BETWEEN $1 AND $2
		ORDER BY scheduled_at
	`, from.UTC(), to.UTC())
	if err != nil {
		return nil, mapErr(err)
	}
	out := make([]visit.Visit, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}
