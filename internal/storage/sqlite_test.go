package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"sgbus_bot/internal/model"
)

var ignoreScheduleMeta = cmpopts.IgnoreFields(model.Schedule{}, "ID", "CreatedAt")

func newTestDB(t *testing.T) *SQLite {
	t.Helper()
	s, err := NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestEnsureUserIsInsertIfAbsent(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	if err := s.EnsureUser(ctx, 100, "Alice"); err != nil {
		t.Fatalf("ensure user: %v", err)
	}
	if err := s.SetAlertsOptIn(ctx, 100, false); err != nil {
		t.Fatalf("opt out: %v", err)
	}
	if err := s.EnsureUser(ctx, 100, "Alice Renamed"); err != nil {
		t.Fatalf("ensure user again: %v", err)
	}

	got, err := s.GetUser(ctx, 100)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	want := &model.User{ChatID: 100, Name: "Alice", AlertsOptIn: false}
	if diff := cmp.Diff(want, got, cmpopts.IgnoreFields(model.User{}, "CreatedAt")); diff != "" {
		t.Errorf("GetUser mismatch (-want +got):\n%s", diff)
	}

	if _, err := s.GetUser(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetUser(999) error = %v, want ErrNotFound", err)
	}
}

func TestListAlertSubscribers(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	for _, id := range []int64{3, 1, 2} {
		if err := s.EnsureUser(ctx, id, ""); err != nil {
			t.Fatalf("ensure user %d: %v", id, err)
		}
	}
	if err := s.SetAlertsOptIn(ctx, 2, false); err != nil {
		t.Fatalf("opt out: %v", err)
	}

	got, err := s.ListAlertSubscribers(ctx)
	if err != nil {
		t.Fatalf("list subscribers: %v", err)
	}
	if diff := cmp.Diff([]int64{1, 3}, got); diff != "" {
		t.Errorf("subscribers mismatch (-want +got):\n%s", diff)
	}
}

func TestLastViewedStop(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	if _, err := s.LastViewedStop(ctx, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	base := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	views := []model.ViewedStop{
		{UserID: 1, StopCode: "14141", Description: "HARBOURFRONT", ViewedAt: base},
		{UserID: 1, StopCode: "67729", Description: "SENGKANG STN", ViewedAt: base.Add(time.Minute)},
		{UserID: 1, StopCode: "14141", Description: "HARBOURFRONT", ViewedAt: base.Add(2 * time.Minute)},
	}
	for _, v := range views {
		if err := s.RecordStopView(ctx, v); err != nil {
			t.Fatalf("record view: %v", err)
		}
	}

	got, err := s.LastViewedStop(ctx, 1)
	if err != nil {
		t.Fatalf("last viewed: %v", err)
	}
	if diff := cmp.Diff("14141", got.StopCode); diff != "" {
		t.Errorf("stop code mismatch (-want +got):\n%s", diff)
	}
}

func TestFavourites(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	fav := &model.Favourite{UserID: 1, StopCode: "14141", Description: "HARBOURFRONT STN"}
	added, err := s.AddFavourite(ctx, fav)
	if err != nil || !added {
		t.Fatalf("add favourite: added=%v err=%v", added, err)
	}

	added, err = s.AddFavourite(ctx, &model.Favourite{UserID: 1, StopCode: "14141", Description: "OTHER"})
	if err != nil {
		t.Fatalf("duplicate add: %v", err)
	}
	if added {
		t.Error("duplicate favourite should be a no-op")
	}

	got, err := s.GetFavourite(ctx, 1, "14141")
	if err != nil {
		t.Fatalf("get favourite: %v", err)
	}
	want := &model.Favourite{
		UserID:            1,
		StopCode:          "14141",
		Description:       "HARBOURFRONT STN",
		CustomDescription: "HARBOURFRONT STN",
		RenameState:       model.RenameIdle,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("favourite mismatch (-want +got):\n%s", diff)
	}

	if err := s.DeleteFavourite(ctx, 1, "14141"); err != nil {
		t.Fatalf("delete favourite: %v", err)
	}
	favs, err := s.ListFavourites(ctx, 1)
	if err != nil {
		t.Fatalf("list favourites: %v", err)
	}
	if diff := cmp.Diff(0, len(favs)); diff != "" {
		t.Errorf("favourite count mismatch (-want +got):\n%s", diff)
	}
}

func TestRenameLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	for _, code := range []string{"14141", "67729"} {
		if _, err := s.AddFavourite(ctx, &model.Favourite{UserID: 1, StopCode: code, Description: "STOP " + code}); err != nil {
			t.Fatalf("add favourite: %v", err)
		}
	}

	if _, err := s.PendingRename(ctx, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected no pending rename, got %v", err)
	}
	if _, err := s.BeginRename(ctx, 1, "00000"); !errors.Is(err, ErrNotFound) {
		t.Errorf("BeginRename unknown stop error = %v, want ErrNotFound", err)
	}

	if _, err := s.BeginRename(ctx, 1, "14141"); err != nil {
		t.Fatalf("begin rename: %v", err)
	}
	if _, err := s.BeginRename(ctx, 1, "67729"); err != nil {
		t.Fatalf("begin second rename: %v", err)
	}

	pending, err := s.PendingRename(ctx, 1)
	if err != nil {
		t.Fatalf("pending rename: %v", err)
	}
	if diff := cmp.Diff("67729", pending.StopCode); diff != "" {
		t.Errorf("only the latest rename should be pending (-want +got):\n%s", diff)
	}

	if err := s.CompleteRename(ctx, 1, "67729", "HOME"); err != nil {
		t.Fatalf("complete rename: %v", err)
	}
	got, _ := s.GetFavourite(ctx, 1, "67729")
	if diff := cmp.Diff("HOME", got.CustomDescription); diff != "" {
		t.Errorf("custom description mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(model.RenameIdle, got.RenameState); diff != "" {
		t.Errorf("rename state mismatch (-want +got):\n%s", diff)
	}

	if _, err := s.BeginRename(ctx, 1, "14141"); err != nil {
		t.Fatalf("begin rename: %v", err)
	}
	if err := s.CancelRename(ctx, 1); err != nil {
		t.Fatalf("cancel rename: %v", err)
	}
	if _, err := s.PendingRename(ctx, 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected rename cancelled, got %v", err)
	}
}

func TestFeedbackSession(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	if err := s.SubmitFeedback(ctx, 1, "too early", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("submit without session error = %v, want ErrNotFound", err)
	}

	for i := 0; i < 2; i++ {
		if err := s.StartFeedback(ctx, 1); err != nil {
			t.Fatalf("start feedback: %v", err)
		}
	}
	pending, err := s.HasPendingFeedback(ctx, 1)
	if err != nil || !pending {
		t.Fatalf("expected pending feedback, got %v %v", pending, err)
	}

	if err := s.SubmitFeedback(ctx, 1, "arrival times lag", "2025-01-01 08:00:00"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	pending, _ = s.HasPendingFeedback(ctx, 1)
	if pending {
		t.Error("session should be closed after submit")
	}

	if err := s.StartFeedback(ctx, 1); err != nil {
		t.Fatalf("start feedback: %v", err)
	}
	if err := s.SubmitFeedback(ctx, 1, "second report", "2025-01-02 08:00:00"); err != nil {
		t.Fatalf("submit: %v", err)
	}

	if err := s.StartFeedback(ctx, 1); err != nil {
		t.Fatalf("start feedback: %v", err)
	}
	if err := s.AbandonFeedback(ctx, 1); err != nil {
		t.Fatalf("abandon: %v", err)
	}

	got, err := s.ListFeedback(ctx, 1)
	if err != nil {
		t.Fatalf("list feedback: %v", err)
	}
	want := []model.Feedback{
		{UserID: 1, Text: "arrival times lag", SubmittedAt: "2025-01-01 08:00:00", State: model.FeedbackIdle},
		{UserID: 1, Text: "second report", SubmittedAt: "2025-01-02 08:00:00", State: model.FeedbackIdle},
	}
	if diff := cmp.Diff(want, got, cmpopts.IgnoreFields(model.Feedback{}, "ID")); diff != "" {
		t.Errorf("feedback log mismatch (-want +got):\n%s", diff)
	}
}

func TestDraftLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	if _, err := s.ActiveDraft(ctx, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected no draft, got %v", err)
	}

	draft, err := s.StartDraft(ctx, 1)
	if err != nil {
		t.Fatalf("start draft: %v", err)
	}
	if diff := cmp.Diff(model.StageAwaitingStopCode, draft.Stage); diff != "" {
		t.Errorf("stage mismatch (-want +got):\n%s", diff)
	}

	draft.StopCode = "14141"
	draft.Description = "HARBOURFRONT STN"
	draft.Services = []string{"10", "30", "65"}
	draft.Stage = model.StageAwaitingBuses
	if err := s.UpdateDraft(ctx, draft); err != nil {
		t.Fatalf("update draft: %v", err)
	}

	draft.Buses = model.NewBusSelection("30", "65")
	draft.Stage = model.StageAwaitingTime
	if err := s.UpdateDraft(ctx, draft); err != nil {
		t.Fatalf("update draft: %v", err)
	}

	active, err := s.ActiveDraft(ctx, 1)
	if err != nil {
		t.Fatalf("active draft: %v", err)
	}
	want := &model.Schedule{
		UserID:      1,
		StopCode:    "14141",
		Description: "HARBOURFRONT STN",
		Stage:       model.StageAwaitingTime,
		Buses:       model.NewBusSelection("30", "65"),
		Services:    []string{"10", "30", "65"},
	}
	if diff := cmp.Diff(want, active, ignoreScheduleMeta); diff != "" {
		t.Errorf("draft mismatch (-want +got):\n%s", diff)
	}

	created, err := s.FinalizeDraft(ctx, draft.ID, "08:05")
	if err != nil || !created {
		t.Fatalf("finalize: created=%v err=%v", created, err)
	}
	if _, err := s.ActiveDraft(ctx, 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected no draft after finalize, got %v", err)
	}

	due, err := s.ListDueSchedules(ctx, "08:05")
	if err != nil {
		t.Fatalf("list due: %v", err)
	}
	want.Stage = model.StageComplete
	want.TimeOfDay = "08:05"
	if diff := cmp.Diff([]model.Schedule{*want}, due, ignoreScheduleMeta); diff != "" {
		t.Errorf("due schedules mismatch (-want +got):\n%s", diff)
	}

	if err := s.UpdateDraft(ctx, &due[0]); err == nil {
		t.Error("UpdateDraft on a complete schedule should fail")
	}
}

func TestFinalizeDuplicateScheduleIsNoop(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	finalize := func() bool {
		t.Helper()
		d, err := s.StartDraft(ctx, 1)
		if err != nil {
			t.Fatalf("start draft: %v", err)
		}
		d.StopCode, d.Description, d.Stage = "14141", "HARBOURFRONT", model.StageAwaitingTime
		if err := s.UpdateDraft(ctx, d); err != nil {
			t.Fatalf("update draft: %v", err)
		}
		created, err := s.FinalizeDraft(ctx, d.ID, "07:30")
		if err != nil {
			t.Fatalf("finalize: %v", err)
		}
		return created
	}

	if !finalize() {
		t.Fatal("first schedule should be created")
	}
	if finalize() {
		t.Error("identical schedule should not be created twice")
	}

	list, err := s.ListSchedules(ctx, 1)
	if err != nil {
		t.Fatalf("list schedules: %v", err)
	}
	if diff := cmp.Diff(1, len(list)); diff != "" {
		t.Errorf("schedule count mismatch (-want +got):\n%s", diff)
	}
	if _, err := s.ActiveDraft(ctx, 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("duplicate draft should be dropped, got %v", err)
	}
}

func TestStartDraftDiscardsStaleDrafts(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	d, _ := s.StartDraft(ctx, 1)
	d.StopCode, d.Stage = "14141", model.StageAwaitingBuses
	d.Buses = model.NewBusSelection("10")
	if err := s.UpdateDraft(ctx, d); err != nil {
		t.Fatalf("update draft: %v", err)
	}

	fresh, err := s.StartDraft(ctx, 1)
	if err != nil {
		t.Fatalf("restart draft: %v", err)
	}
	active, err := s.ActiveDraft(ctx, 1)
	if err != nil {
		t.Fatalf("active draft: %v", err)
	}
	if diff := cmp.Diff(fresh.ID, active.ID); diff != "" {
		t.Errorf("active draft mismatch (-want +got):\n%s", diff)
	}
	if !active.Buses.IsAll() || active.StopCode != "" {
		t.Errorf("fresh draft carries residue: %+v", active)
	}
}

func TestDeleteDraftKeepsCompleteSchedules(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	d, _ := s.StartDraft(ctx, 1)
	d.StopCode, d.Stage = "14141", model.StageAwaitingTime
	_ = s.UpdateDraft(ctx, d)
	if _, err := s.FinalizeDraft(ctx, d.ID, "09:00"); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	if err := s.DeleteDraft(ctx, d.ID); err != nil {
		t.Fatalf("delete draft: %v", err)
	}
	list, _ := s.ListSchedules(ctx, 1)
	if diff := cmp.Diff(1, len(list)); diff != "" {
		t.Errorf("complete schedule should survive DeleteDraft (-want +got):\n%s", diff)
	}

	if err := s.DeleteSchedule(ctx, 2, d.ID); err != nil {
		t.Fatalf("delete other user's schedule: %v", err)
	}
	list, _ = s.ListSchedules(ctx, 1)
	if diff := cmp.Diff(1, len(list)); diff != "" {
		t.Errorf("schedule owned by another user must survive (-want +got):\n%s", diff)
	}

	if err := s.DeleteSchedule(ctx, 1, d.ID); err != nil {
		t.Fatalf("delete schedule: %v", err)
	}
	list, _ = s.ListSchedules(ctx, 1)
	if diff := cmp.Diff(0, len(list)); diff != "" {
		t.Errorf("schedule count mismatch (-want +got):\n%s", diff)
	}
}

func TestAlertLog(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	if _, err := s.LatestAlert(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected empty log, got %v", err)
	}

	base := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	for i, msg := range []string{"NSL delay", "EWL breakdown", "NSL delay"} {
		if err := s.RecordAlert(ctx, msg, base.Add(time.Duration(i)*time.Minute)); err != nil {
			t.Fatalf("record alert: %v", err)
		}
	}

	latest, err := s.LatestAlert(ctx)
	if err != nil {
		t.Fatalf("latest alert: %v", err)
	}
	if diff := cmp.Diff("EWL breakdown", latest.Message); diff != "" {
		t.Errorf("latest alert mismatch (-want +got):\n%s", diff)
	}

	seen, err := s.AlertSeen(ctx, "NSL delay")
	if err != nil || !seen {
		t.Errorf("AlertSeen(NSL delay) = %v, %v", seen, err)
	}
	seen, _ = s.AlertSeen(ctx, "CCL fault")
	if seen {
		t.Error("AlertSeen(CCL fault) should be false")
	}
}
