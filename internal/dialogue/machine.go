// Package dialogue routes each user utterance through the user's active
// multi-step flow, or interprets it as a free-form query when none is active.
package dialogue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"sgbus_bot/internal/arrivals"
	"sgbus_bot/internal/localtime"
	"sgbus_bot/internal/messages"
	"sgbus_bot/internal/model"
	"sgbus_bot/internal/storage"
)

// exitKeyword aborts feedback and schedule flows when contained in the utterance.
const exitKeyword = "exit"

// renameAbort is the only text that cancels a rename.
const renameAbort = "/exit"

// minFeedbackLen is exclusive: feedback must be longer than this many characters.
const minFeedbackLen = 5

// Stops is the reference directory as seen by the dialogue.
type Stops interface {
	Stop(code string) (model.BusStop, bool)
	Search(query string, limit int) []model.BusStop
	HasService(serviceNo string) bool
	RouteStops(serviceNo string) map[int][]model.Route
}

// Arrivals provides live arrival data.
type Arrivals interface {
	Board(ctx context.Context, stopCode string) (*arrivals.Board, error)
	Services(ctx context.Context, stopCode string) ([]string, error)
}

// FlowKind identifies which flow consumes the next utterance.
type FlowKind int

// Flow kinds in priority order.
const (
	FlowIdle FlowKind = iota
	FlowRename
	FlowFeedback
	FlowScheduleStopCode
	FlowScheduleBuses
	FlowScheduleTime
)

func (k FlowKind) String() string {
	switch k {
	case FlowRename:
		return "rename"
	case FlowFeedback:
		return "feedback"
	case FlowScheduleStopCode:
		return "schedule_stop_code"
	case FlowScheduleBuses:
		return "schedule_buses"
	case FlowScheduleTime:
		return "schedule_time"
	default:
		return "idle"
	}
}

// ActiveFlow is the single flow that owns the user's next utterance.
// Favourite is set for FlowRename, Draft for the schedule flows.
type ActiveFlow struct {
	Kind      FlowKind
	Favourite *model.Favourite
	Draft     *model.Schedule
}

// Machine is the per-user dialogue state machine. All state lives in the store.
type Machine struct {
	store    storage.Storage
	stops    Stops
	arrivals Arrivals
	clock    *localtime.Clock
	log      *slog.Logger

	mu    sync.Mutex
	users map[int64]*sync.Mutex
}

// New creates a Machine.
func New(store storage.Storage, stops Stops, arr Arrivals, clock *localtime.Clock, log *slog.Logger) *Machine {
	return &Machine{
		store:    store,
		stops:    stops,
		arrivals: arr,
		clock:    clock,
		log:      log,
		users:    make(map[int64]*sync.Mutex),
	}
}

// lock serialises flow mutations of one user.
func (m *Machine) lock(userID int64) func() {
	m.mu.Lock()
	l, ok := m.users[userID]
	if !ok {
		l = &sync.Mutex{}
		m.users[userID] = l
	}
	m.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Resolve determines the user's active flow, honouring the priority
// rename > feedback > schedule stage 1 > stage 2 > stage 3.
func (m *Machine) Resolve(ctx context.Context, userID int64) (ActiveFlow, error) {
	fav, err := m.store.PendingRename(ctx, userID)
	switch {
	case err == nil:
		return ActiveFlow{Kind: FlowRename, Favourite: fav}, nil
	case !errors.Is(err, storage.ErrNotFound):
		return ActiveFlow{}, fmt.Errorf("pending rename: %w", err)
	}

	pending, err := m.store.HasPendingFeedback(ctx, userID)
	if err != nil {
		return ActiveFlow{}, fmt.Errorf("pending feedback: %w", err)
	}
	if pending {
		return ActiveFlow{Kind: FlowFeedback}, nil
	}

	draft, err := m.store.ActiveDraft(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return ActiveFlow{Kind: FlowIdle}, nil
	}
	if err != nil {
		return ActiveFlow{}, fmt.Errorf("active draft: %w", err)
	}
	switch draft.Stage {
	case model.StageAwaitingStopCode:
		return ActiveFlow{Kind: FlowScheduleStopCode, Draft: draft}, nil
	case model.StageAwaitingBuses:
		return ActiveFlow{Kind: FlowScheduleBuses, Draft: draft}, nil
	case model.StageAwaitingTime:
		return ActiveFlow{Kind: FlowScheduleTime, Draft: draft}, nil
	}
	return ActiveFlow{Kind: FlowIdle}, nil
}

// Handle consumes one utterance.
func (m *Machine) Handle(ctx context.Context, userID int64, raw string) (Reply, error) {
	defer m.lock(userID)()

	flow, err := m.Resolve(ctx, userID)
	if err != nil {
		return Reply{}, err
	}
	m.log.Debug("handle utterance", "chat_id", userID, "flow", flow.Kind.String())

	msg := normalise(raw)
	switch flow.Kind {
	case FlowRename:
		return m.handleRename(ctx, userID, flow.Favourite, raw)
	case FlowFeedback:
		return m.handleFeedback(ctx, userID, raw, msg)
	case FlowScheduleStopCode:
		return m.handleStopCode(ctx, flow.Draft, msg)
	case FlowScheduleBuses:
		return m.handleBusesPending(ctx, flow.Draft, msg)
	case FlowScheduleTime:
		return m.handleTime(ctx, flow.Draft, msg)
	default:
		return m.interpret(ctx, userID, msg)
	}
}

func (m *Machine) handleRename(ctx context.Context, userID int64, fav *model.Favourite, raw string) (Reply, error) {
	if raw == renameAbort {
		if err := m.store.CancelRename(ctx, userID); err != nil {
			return Reply{}, err
		}
		return text(messages.RenameQuit), nil
	}

	name := strings.ToUpper(strings.TrimSpace(raw))
	if err := m.store.CompleteRename(ctx, userID, fav.StopCode, name); err != nil {
		return Reply{}, err
	}
	m.log.Info("favourite renamed", "chat_id", userID, "stop_code", fav.StopCode)
	return text(messages.RenameDone(fav.Description, name)), nil
}

func (m *Machine) handleFeedback(ctx context.Context, userID int64, raw, msg string) (Reply, error) {
	switch {
	case utf8.RuneCountInString(msg) > minFeedbackLen:
		if err := m.store.SubmitFeedback(ctx, userID, strings.TrimSpace(raw), m.clock.Timestamp()); err != nil {
			return Reply{}, err
		}
		m.log.Info("feedback received", "chat_id", userID)
		return text(messages.FeedbackThanks), nil
	case strings.Contains(msg, exitKeyword):
		if err := m.store.AbandonFeedback(ctx, userID); err != nil {
			return Reply{}, err
		}
		return text(messages.FeedbackQuit), nil
	default:
		return text(messages.FeedbackTooShort), nil
	}
}

func (m *Machine) handleStopCode(ctx context.Context, draft *model.Schedule, msg string) (Reply, error) {
	switch {
	case IsStopCode(msg):
		stop, ok := m.stops.Stop(msg)
		if !ok {
			return text(messages.ScheduleUnknownStop(msg)), nil
		}
		services, err := m.arrivals.Services(ctx, msg)
		if err != nil {
			m.log.Warn("list services for schedule", "chat_id", draft.UserID, "stop_code", msg, "error", err)
			return text(messages.Unavailable), nil
		}

		draft.StopCode = msg
		draft.Description = stop.Description
		draft.Services = services
		draft.Buses = model.BusSelection{}
		draft.Stage = model.StageAwaitingBuses
		if err := m.store.UpdateDraft(ctx, draft); err != nil {
			return Reply{}, err
		}
		return m.selectionReply(draft), nil
	case strings.Contains(msg, exitKeyword):
		return m.abortDraft(ctx, draft)
	default:
		return text(messages.ScheduleBadStopCode(msg)), nil
	}
}

func (m *Machine) handleBusesPending(ctx context.Context, draft *model.Schedule, msg string) (Reply, error) {
	if strings.Contains(msg, exitKeyword) {
		return m.abortDraft(ctx, draft)
	}
	return Reply{
		Text:    messages.ScheduleSelectHint,
		Buttons: selectionKeyboard(draft.Services, draft.Buses),
	}, nil
}

func (m *Machine) handleTime(ctx context.Context, draft *model.Schedule, msg string) (Reply, error) {
	if hhmm, ok := ParseTimeOfDay(msg); ok {
		created, err := m.store.FinalizeDraft(ctx, draft.ID, hhmm)
		if err != nil {
			return Reply{}, err
		}
		draft.TimeOfDay = hhmm
		draft.Stage = model.StageComplete
		if !created {
			return text(messages.ScheduleDuplicate(*draft)), nil
		}
		m.log.Info("schedule created", "chat_id", draft.UserID, "stop_code", draft.StopCode, "time", hhmm)
		return text(messages.ScheduleConfirmed(*draft)), nil
	}
	if strings.Contains(msg, exitKeyword) {
		return m.abortDraft(ctx, draft)
	}
	return text(messages.ScheduleTimeInvalid), nil
}

func (m *Machine) abortDraft(ctx context.Context, draft *model.Schedule) (Reply, error) {
	if err := m.store.DeleteDraft(ctx, draft.ID); err != nil {
		return Reply{}, err
	}
	return text(messages.ScheduleQuit), nil
}

func (m *Machine) selectionReply(draft *model.Schedule) Reply {
	return Reply{
		Text:    messages.ScheduleSelectBuses(draft.StopCode, draft.Buses),
		Buttons: selectionKeyboard(draft.Services, draft.Buses),
	}
}
