// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"
	"errors"
	"time"

	"sgbus_bot/internal/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Storage is the interface for the persistence operations the bot uses.
type Storage interface {
	EnsureUser(ctx context.Context, chatID int64, name string) error
	GetUser(ctx context.Context, chatID int64) (*model.User, error)
	SetAlertsOptIn(ctx context.Context, chatID int64, optIn bool) error
	ListAlertSubscribers(ctx context.Context) ([]int64, error)

	RecordStopView(ctx context.Context, v model.ViewedStop) error
	LastViewedStop(ctx context.Context, userID int64) (*model.ViewedStop, error)

	AddFavourite(ctx context.Context, f *model.Favourite) (bool, error)
	ListFavourites(ctx context.Context, userID int64) ([]model.Favourite, error)
	DeleteFavourite(ctx context.Context, userID int64, stopCode string) error
	BeginRename(ctx context.Context, userID int64, stopCode string) (*model.Favourite, error)
	PendingRename(ctx context.Context, userID int64) (*model.Favourite, error)
	CompleteRename(ctx context.Context, userID int64, stopCode, newName string) error
	CancelRename(ctx context.Context, userID int64) error

	StartFeedback(ctx context.Context, userID int64) error
	HasPendingFeedback(ctx context.Context, userID int64) (bool, error)
	SubmitFeedback(ctx context.Context, userID int64, text, submittedAt string) error
	AbandonFeedback(ctx context.Context, userID int64) error

	StartDraft(ctx context.Context, userID int64) (*model.Schedule, error)
	ActiveDraft(ctx context.Context, userID int64) (*model.Schedule, error)
	UpdateDraft(ctx context.Context, s *model.Schedule) error
	FinalizeDraft(ctx context.Context, draftID int64, timeOfDay string) (bool, error)
	DeleteDraft(ctx context.Context, draftID int64) error
	ListSchedules(ctx context.Context, userID int64) ([]model.Schedule, error)
	ListDueSchedules(ctx context.Context, timeOfDay string) ([]model.Schedule, error)
	DeleteSchedule(ctx context.Context, userID, id int64) error

	AlertSeen(ctx context.Context, message string) (bool, error)
	RecordAlert(ctx context.Context, message string, seenAt time.Time) error

	Close() error
}
