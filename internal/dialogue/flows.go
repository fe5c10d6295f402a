package dialogue

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"sgbus_bot/internal/messages"
	"sgbus_bot/internal/model"
	"sgbus_bot/internal/storage"
)

// StartFeedback opens a feedback session.
func (m *Machine) StartFeedback(ctx context.Context, userID int64) (Reply, error) {
	defer m.lock(userID)()
	if err := m.store.StartFeedback(ctx, userID); err != nil {
		return Reply{}, err
	}
	return Reply{Text: messages.FeedbackPrompt, ForceReply: true}, nil
}

// StartSchedule discards any unfinished draft and opens a new wizard.
func (m *Machine) StartSchedule(ctx context.Context, userID int64) (Reply, error) {
	defer m.lock(userID)()
	if _, err := m.store.StartDraft(ctx, userID); err != nil {
		return Reply{}, err
	}
	return Reply{Text: messages.ScheduleAskStop, ForceReply: true}, nil
}

// StartRename puts a favourite into the awaiting-name state.
func (m *Machine) StartRename(ctx context.Context, userID int64, code string) (Reply, error) {
	defer m.lock(userID)()
	fav, err := m.store.BeginRename(ctx, userID, code)
	if errors.Is(err, storage.ErrNotFound) {
		return text(messages.FavouriteInvalid(code)), nil
	}
	if err != nil {
		return Reply{}, err
	}
	return Reply{Text: messages.RenamePrompt(*fav), ForceReply: true}, nil
}

// ToggleBus flips one service in the selection of the stage-2 draft.
func (m *Machine) ToggleBus(ctx context.Context, userID int64, bus string) (Reply, error) {
	defer m.lock(userID)()
	draft, err := m.draftAt(ctx, userID, model.StageAwaitingBuses)
	if err != nil || draft == nil {
		return text(messages.ScheduleNotActive), err
	}
	if len(draft.Services) > 0 && !slices.Contains(draft.Services, bus) {
		return m.selectionReply(draft), nil
	}

	draft.Buses = draft.Buses.Toggle(bus)
	if err := m.store.UpdateDraft(ctx, draft); err != nil {
		return Reply{}, err
	}
	return m.selectionReply(draft), nil
}

// ConfirmBuses freezes the selection and moves the draft to the time step.
func (m *Machine) ConfirmBuses(ctx context.Context, userID int64) (Reply, error) {
	defer m.lock(userID)()
	draft, err := m.draftAt(ctx, userID, model.StageAwaitingBuses)
	if err != nil || draft == nil {
		return text(messages.ScheduleNotActive), err
	}

	draft.Stage = model.StageAwaitingTime
	if err := m.store.UpdateDraft(ctx, draft); err != nil {
		return Reply{}, err
	}
	return Reply{Text: messages.ScheduleAskTime(draft.StopCode), ForceReply: true}, nil
}

// draftAt returns the active draft if it is at stage, or nil.
func (m *Machine) draftAt(ctx context.Context, userID int64, stage model.Stage) (*model.Schedule, error) {
	draft, err := m.store.ActiveDraft(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("active draft: %w", err)
	}
	if draft.Stage != stage {
		return nil, nil
	}
	return draft, nil
}

// AddFavourite bookmarks a stop given as a command argument.
func (m *Machine) AddFavourite(ctx context.Context, userID int64, arg string) (Reply, error) {
	code := strings.TrimSpace(strings.ReplaceAll(arg, "/", ""))
	if code == "" {
		return text(messages.AddFavouriteHelp), nil
	}
	if !IsStopCode(code) {
		return text(messages.FavouriteInvalid(code)), nil
	}
	stop, ok := m.stops.Stop(code)
	if !ok {
		return text(messages.FavouriteInvalid(code)), nil
	}
	return m.addFavourite(ctx, userID, stop.Code, stop.Description)
}

// AddLastViewedFavourite bookmarks the stop the user looked up most recently.
func (m *Machine) AddLastViewedFavourite(ctx context.Context, userID int64) (Reply, error) {
	last, err := m.store.LastViewedStop(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return text(messages.NoRecentStop), nil
	}
	if err != nil {
		return Reply{}, err
	}
	return m.addFavourite(ctx, userID, last.StopCode, last.Description)
}

func (m *Machine) addFavourite(ctx context.Context, userID int64, code, description string) (Reply, error) {
	added, err := m.store.AddFavourite(ctx, &model.Favourite{UserID: userID, StopCode: code, Description: description})
	if err != nil {
		return Reply{}, err
	}
	if added {
		m.log.Info("favourite added", "chat_id", userID, "stop_code", code)
	}
	return text(messages.FavouriteAdded(code)), nil
}

// Favourites renders one reply per favourite, each with its own buttons.
func (m *Machine) Favourites(ctx context.Context, userID int64) ([]Reply, error) {
	favs, err := m.store.ListFavourites(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(favs) == 0 {
		return []Reply{text(messages.NoFavourites)}, nil
	}
	out := make([]Reply, 0, len(favs))
	for _, f := range favs {
		out = append(out, Reply{Text: messages.FormatFavourite(f), Buttons: favouriteButtons(f.StopCode)})
	}
	return out, nil
}

// RemoveFavourite deletes a favourite.
func (m *Machine) RemoveFavourite(ctx context.Context, userID int64, code string) (Reply, error) {
	if err := m.store.DeleteFavourite(ctx, userID, code); err != nil {
		return Reply{}, err
	}
	return text(messages.FavouriteDeleted(code)), nil
}

// Schedules renders one reply per complete schedule.
func (m *Machine) Schedules(ctx context.Context, userID int64) ([]Reply, error) {
	list, err := m.store.ListSchedules(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return []Reply{text(messages.NoSchedules)}, nil
	}
	out := make([]Reply, 0, len(list))
	for _, s := range list {
		out = append(out, Reply{Text: messages.FormatSchedule(s), Buttons: scheduleButtons(s.ID)})
	}
	return out, nil
}

// RemoveSchedule deletes a complete schedule owned by the user.
func (m *Machine) RemoveSchedule(ctx context.Context, userID, id int64) (Reply, error) {
	if err := m.store.DeleteSchedule(ctx, userID, id); err != nil {
		return Reply{}, err
	}
	return text(messages.ScheduleRemoved), nil
}

// Settings renders the schedule menu and the alert preference.
func (m *Machine) Settings(ctx context.Context, userID int64) ([]Reply, error) {
	optIn := true
	u, err := m.store.GetUser(ctx, userID)
	switch {
	case err == nil:
		optIn = u.AlertsOptIn
	case !errors.Is(err, storage.ErrNotFound):
		return nil, err
	}
	return []Reply{
		{Text: messages.SettingsIntro, Buttons: settingsButtons()},
		{Text: messages.AlertsPrompt(optIn), Buttons: alertButtons()},
	}, nil
}

// SetAlerts records the alert preference.
func (m *Machine) SetAlerts(ctx context.Context, userID int64, on bool) (Reply, error) {
	if err := m.store.SetAlertsOptIn(ctx, userID, on); err != nil {
		return Reply{}, err
	}
	return Reply{Text: messages.AlertsPrompt(on), Buttons: alertButtons()}, nil
}
