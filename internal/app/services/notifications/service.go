// Package notifications stores per-user notifications and fans them out to
// live subscribers.
package notifications

import (
	"context"
	"fmt"
	"strings"

	"github.com/brickvault/platform/internal/app/domain/notification"
	"github.com/brickvault/platform/internal/app/storage"
	"github.com/brickvault/platform/pkg/logger"
)

// Hub fans notifications out to live subscribers. Nil disables streaming.
type Hub interface {
	Publish(n notification.Notification)
	Subscribe(userID string) (<-chan notification.Notification, func())
}

// Service manages notifications.
type Service struct {
	store storage.NotificationStore
	hub   Hub
	log   *logger.Logger
}

// New constructs a notification service.
func New(store storage.NotificationStore, hub Hub, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("notifications")
	}
	return &Service{store: store, hub: hub, log: log}
}

// Notify stores a notification and publishes it to live subscribers.
func (s *Service) Notify(ctx context.Context, userID string, level notification.Level, title, body, ref string) error {
	userID = strings.TrimSpace(userID)
	title = strings.TrimSpace(title)
	if userID == "" {
		return fmt.Errorf("user_id is required")
	}
	if title == "" {
		return fmt.Errorf("title is required")
	}
	if level == "" {
		level = notification.LevelInfo
	}

	created, err := s.store.CreateNotification(ctx, notification.Notification{
		UserID: userID,
		Level:  level,
		Title:  title,
		Body:   strings.TrimSpace(body),
		Ref:    strings.TrimSpace(ref),
	})
	if err != nil {
		return err
	}

	if s.hub != nil {
		s.hub.Publish(created)
	}
	return nil
}

// Get returns a single notification.
func (s *Service) Get(ctx context.Context, id string) (notification.Notification, error) {
	return s.store.GetNotification(ctx, id)
}

// List returns a user's notifications.
func (s *Service) List(ctx context.Context, userID string, unreadOnly bool) ([]notification.Notification, error) {
	return s.store.ListNotifications(ctx, userID, unreadOnly)
}

// MarkRead marks one notification as read.
func (s *Service) MarkRead(ctx context.Context, id string) (notification.Notification, error) {
	return s.store.MarkRead(ctx, id)
}

// MarkAllRead marks all of a user's notifications as read.
func (s *Service) MarkAllRead(ctx context.Context, userID string) (int, error) {
	return s.store.MarkAllRead(ctx, userID)
}

// Stream subscribes to a user's live notifications. The returned cancel
// function must be called when the consumer goes away.
func (s *Service) Stream(userID string) (<-chan notification.Notification, func()) {
	if s.hub == nil {
		ch := make(chan notification.Notification)
		close(ch)
		return ch, func() {}
	}
	return s.hub.Subscribe(userID)
}
