package memory

import (
	"context"
	"time"

	"github.com/brickvault/platform/internal/app/domain/audit"
	"github.com/brickvault/platform/internal/app/domain/document"
	"github.com/brickvault/platform/internal/app/domain/flag"
	"github.com/brickvault/platform/internal/app/domain/notification"
	"github.com/brickvault/platform/internal/app/domain/visit"
)

// DocumentStore implementation ------------------------------------------------

func (s *Store) CreateDocument(_ context.Context, d document.Document) (document.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d.ID == "" {
		d.ID = s.nextIDLocked()
	}
	d.CreatedAt = time.Now().UTC()
	s.documents[d.ID] = d
	return d, nil
}

func (s *Store) GetDocument(_ context.Context, id string) (document.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.documents[id]
	if !ok {
		return document.Document{}, notFound("document", id)
	}
	return d, nil
}

func (s *Store) ListDocuments(_ context.Context, ownerUserID string) ([]document.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []document.Document
	for _, d := range s.documents {
		if ownerUserID == "" || d.OwnerUserID == ownerUserID {
			out = append(out, d)
		}
	}
	sortByCreated(out, func(d document.Document) time.Time { return d.CreatedAt })
	return out, nil
}

func (s *Store) ListDocumentsByEntity(_ context.Context, entityID string) ([]document.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []document.Document
	for _, d := range s.documents {
		if d.EntityID == entityID {
			out = append(out, d)
		}
	}
	sortByCreated(out, func(d document.Document) time.Time { return d.CreatedAt })
	return out, nil
}

func (s *Store) DeleteDocument(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.documents[id]; !ok {
		return notFound("document", id)
	}
	delete(s.documents, id)
	return nil
}

// NotificationStore implementation --------------------------------------------

func (s *Store) CreateNotification(_ context.Context, n notification.Notification) (notification.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n.ID == "" {
		n.ID = s.nextIDLocked()
	}
	n.CreatedAt = time.Now().UTC()
	if n.Level == "" {
		n.Level = notification.LevelInfo
	}
	s.notifications[n.ID] = n
	return n, nil
}

func (s *Store) GetNotification(_ context.Context, id string) (notification.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.notifications[id]
	if !ok {
		return notification.Notification{}, notFound("notification", id)
	}
	return n, nil
}

func (s *Store) ListNotifications(_ context.Context, userID string, unreadOnly bool) ([]notification.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []notification.Notification
	for _, n := range s.notifications {
		if n.UserID != userID {
			continue
		}
		if unreadOnly && n.Read {
			continue
		}
		out = append(out, n)
	}
	sortByCreated(out, func(n notification.Notification) time.Time { return n.CreatedAt })
	return out, nil
}

func (s *Store) MarkRead(_ context.Context, id string) (notification.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notifications[id]
	if !ok {
		return notification.Notification{}, notFound("notification", id)
	}
	if !n.Read {
		n.Read = true
		n.ReadAt = time.Now().UTC()
		s.notifications[id] = n
	}
	return n, nil
}

func (s *Store) MarkAllRead(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	count := 0
	for id, n := range s.notifications {
		if n.UserID == userID && !n.Read {
			n.Read = true
			n.ReadAt = now
			s.notifications[id] = n
			count++
		}
	}
	return count, nil
}

// AuditStore implementation ---------------------------------------------------

func (s *Store) AppendEvent(_ context.Context, ev audit.Event) (audit.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ev.ID == "" {
		ev.ID = s.nextIDLocked()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	s.auditEvents = append(s.auditEvents, ev)
	return ev, nil
}

func (s *Store) ListEvents(_ context.Context, entity string, limit int) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []audit.Event
	for i := len(s.auditEvents) - 1; i >= 0; i-- {
		ev := s.auditEvents[i]
		if entity != "" && ev.Entity != entity {
			continue
		}
		out = append(out, ev)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// FlagStore implementation ----------------------------------------------------

func (s *Store) UpsertFlag(_ context.Context, f flag.Flag) (flag.Flag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if existing, ok := s.flags[f.Key]; ok {
		f.CreatedAt = existing.CreatedAt
	} else {
		f.CreatedAt = now
	}
	f.UpdatedAt = now
	s.flags[f.Key] = f
	return f, nil
}

func (s *Store) GetFlag(_ context.Context, key string) (flag.Flag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.flags[key]
	if !ok {
		return flag.Flag{}, notFound("flag", key)
	}
	return f, nil
}

func (s *Store) ListFlags(_ context.Context) ([]flag.Flag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]flag.Flag, 0, len(s.flags))
	for _, f := range s.flags {
		out = append(out, f)
	}
	sortByCreated(out, func(f flag.Flag) time.Time { return f.CreatedAt })
	return out, nil
}

func (s *Store) DeleteFlag(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.flags[key]; !ok {
		return notFound("flag", key)
	}
	delete(s.flags, key)
	return nil
}

// VisitStore implementation ---------------------------------------------------

func (s *Store) CreateVisit(_ context.Context, v visit.Visit) (visit.Visit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v.ID == "" {
		v.ID = s.nextIDLocked()
	}
	now := time.Now().UTC()
	v.CreatedAt = now
	v.UpdatedAt = now
	if v.Status == "" {
		v.Status = visit.StatusRequested
	}
	s.visits[v.ID] = v
	return v, nil
}

func (s *Store) UpdateVisit(_ context.Context, v visit.Visit) (visit.Visit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.visits[v.ID]
	if !ok {
		return visit.Visit{}, notFound("visit", v.ID)
	}
	v.PropertyID = existing.PropertyID
	v.InvestorID = existing.InvestorID
	v.CreatedAt = existing.CreatedAt
	v.UpdatedAt = time.Now().UTC()
	s.visits[v.ID] = v
	return v, nil
}

func (s *Store) GetVisit(_ context.Context, id string) (visit.Visit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.visits[id]
	if !ok {
		return visit.Visit{}, notFound("visit", id)
	}
	return v, nil
}

func (s *Store) ListVisits(_ context.Context, propertyID, investorID string) ([]visit.Visit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []visit.Visit
	for _, v := range s.visits {
		if propertyID != "" && v.PropertyID != propertyID {
			continue
		}
		if investorID != "" && v.InvestorID != investorID {
			continue
		}
		out = append(out, v)
	}
	sortByCreated(out, func(v visit.Visit) time.Time { return v.CreatedAt })
	return out, nil
}

func (s *Store) ListDueReminders(_ context.Context, from, to time.Time) ([]visit.Visit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []visit.Visit
	for _, v := range s.visits {
		if v.Status != visit.StatusConfirmed || v.ReminderSent {
			continue
		}
		if v.ScheduledAt.Before(from) || v.ScheduledAt.After(to) {
			continue
		}
		out = append(out, v)
	}
	sortByCreated(out, func(v visit.Visit) time.Time { return v.CreatedAt })
	return out, nil
}
