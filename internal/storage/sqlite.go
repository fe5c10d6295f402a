package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"sgbus_bot/internal/model"
	"sgbus_bot/migrations"
)

const (
	timeLayout = "2006-01-02T15:04:05Z"
	// preciseLayout sorts lexicographically, unlike RFC3339Nano.
	preciseLayout = "2006-01-02T15:04:05.000000000Z"
)

const scheduleColumns = `id, user_id, stop_code, description, time_of_day, stage,
	bus_1, bus_2, bus_3, bus_4, bus_5, services, created_at`

const favouriteColumns = `user_id, stop_code, description, custom_description, rename_state`

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A :memory: database exists per connection, and SQLite serialises writers anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// ---------- users ----------------------------------------------------------

// EnsureUser creates the user on first contact. Existing users are left untouched.
func (s *SQLite) EnsureUser(ctx context.Context, chatID int64, name string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (chat_id, name, alerts_opt_in, created_at) VALUES (?, ?, 1, ?)
		 ON CONFLICT (chat_id) DO NOTHING`,
		chatID, name, nowUTC(),
	)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetUser returns a user by chat ID.
func (s *SQLite) GetUser(ctx context.Context, chatID int64) (*model.User, error) {
	var u model.User
	var optIn int
	var created string
	err := s.db.QueryRowContext(ctx,
		`SELECT chat_id, name, alerts_opt_in, created_at FROM users WHERE chat_id = ?`, chatID,
	).Scan(&u.ChatID, &u.Name, &optIn, &created)
	if err != nil {
		return nil, wrapNotFound("scan user", err)
	}
	u.AlertsOptIn = optIn == 1
	u.CreatedAt, _ = time.Parse(timeLayout, created)
	return &u, nil
}

// SetAlertsOptIn records whether the user wants alert broadcasts.
func (s *SQLite) SetAlertsOptIn(ctx context.Context, chatID int64, optIn bool) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (chat_id, alerts_opt_in, created_at) VALUES (?, ?, ?)
		 ON CONFLICT (chat_id) DO UPDATE SET alerts_opt_in = excluded.alerts_opt_in`,
		chatID, boolToInt(optIn), nowUTC(),
	)
	if err != nil {
		return fmt.Errorf("update alerts opt-in: %w", err)
	}
	return nil
}

// ListAlertSubscribers returns the chat IDs of users opted in to alerts.
func (s *SQLite) ListAlertSubscribers(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT chat_id FROM users WHERE alerts_opt_in = 1 ORDER BY chat_id`)
	if err != nil {
		return nil, fmt.Errorf("query subscribers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan subscriber: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ---------- stop history ---------------------------------------------------

// RecordStopView remembers the latest stop a user looked up.
func (s *SQLite) RecordStopView(ctx context.Context, v model.ViewedStop) error {
	at := v.ViewedAt
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO stop_history (user_id, stop_code, description, viewed_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (user_id, stop_code) DO UPDATE SET
		   description = excluded.description, viewed_at = excluded.viewed_at`,
		v.UserID, v.StopCode, v.Description, at.UTC().Format(preciseLayout),
	)
	if err != nil {
		return fmt.Errorf("record stop view: %w", err)
	}
	return nil
}

// LastViewedStop returns the stop the user looked up most recently.
func (s *SQLite) LastViewedStop(ctx context.Context, userID int64) (*model.ViewedStop, error) {
	var v model.ViewedStop
	var at string
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, stop_code, description, viewed_at FROM stop_history
		 WHERE user_id = ? ORDER BY viewed_at DESC LIMIT 1`, userID,
	).Scan(&v.UserID, &v.StopCode, &v.Description, &at)
	if err != nil {
		return nil, wrapNotFound("scan stop view", err)
	}
	v.ViewedAt, _ = time.Parse(preciseLayout, at)
	return &v, nil
}

// ---------- favourites -----------------------------------------------------

// AddFavourite inserts a favourite if absent and reports whether a row was added.
// An empty CustomDescription defaults to the official description.
func (s *SQLite) AddFavourite(ctx context.Context, f *model.Favourite) (bool, error) {
	custom := f.CustomDescription
	if custom == "" {
		custom = f.Description
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO favourites (user_id, stop_code, description, custom_description, rename_state, created_at)
		 VALUES (?, ?, ?, ?, 0, ?)
		 ON CONFLICT (user_id, stop_code) DO NOTHING`,
		f.UserID, f.StopCode, f.Description, custom, nowUTC(),
	)
	if err != nil {
		return false, fmt.Errorf("insert favourite: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// GetFavourite returns one favourite of a user.
func (s *SQLite) GetFavourite(ctx context.Context, userID int64, stopCode string) (*model.Favourite, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+favouriteColumns+` FROM favourites WHERE user_id = ? AND stop_code = ?`,
		userID, stopCode,
	)
	return scanFavourite(row)
}

// ListFavourites returns all favourites of a user in the order they were added.
func (s *SQLite) ListFavourites(ctx context.Context, userID int64) ([]model.Favourite, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+favouriteColumns+` FROM favourites WHERE user_id = ? ORDER BY created_at, stop_code`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query favourites: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var favs []model.Favourite
	for rows.Next() {
		f, err := scanFavourite(rows)
		if err != nil {
			return nil, err
		}
		favs = append(favs, *f)
	}
	return favs, rows.Err()
}

// DeleteFavourite removes a favourite.
func (s *SQLite) DeleteFavourite(ctx context.Context, userID int64, stopCode string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM favourites WHERE user_id = ? AND stop_code = ?`, userID, stopCode)
	if err != nil {
		return fmt.Errorf("delete favourite: %w", err)
	}
	return nil
}

// BeginRename puts one favourite into the awaiting-name state. Any other
// favourite of the same user awaiting a name is reset first.
func (s *SQLite) BeginRename(ctx context.Context, userID int64, stopCode string) (*model.Favourite, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`UPDATE favourites SET rename_state = 0 WHERE user_id = ?`, userID); err != nil {
		return nil, fmt.Errorf("reset rename state: %w", err)
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE favourites SET rename_state = 1 WHERE user_id = ? AND stop_code = ?`, userID, stopCode)
	if err != nil {
		return nil, fmt.Errorf("set rename state: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	f, err := scanFavourite(tx.QueryRowContext(ctx,
		`SELECT `+favouriteColumns+` FROM favourites WHERE user_id = ? AND stop_code = ?`, userID, stopCode))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return f, nil
}

// PendingRename returns the favourite awaiting a new name, or ErrNotFound.
func (s *SQLite) PendingRename(ctx context.Context, userID int64) (*model.Favourite, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+favouriteColumns+` FROM favourites WHERE user_id = ? AND rename_state = 1 LIMIT 1`,
		userID,
	)
	return scanFavourite(row)
}

// CompleteRename stores the new name and returns the favourite to idle.
func (s *SQLite) CompleteRename(ctx context.Context, userID int64, stopCode, newName string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE favourites SET custom_description = ?, rename_state = 0
		 WHERE user_id = ? AND stop_code = ?`,
		newName, userID, stopCode,
	)
	if err != nil {
		return fmt.Errorf("rename favourite: %w", err)
	}
	return nil
}

// CancelRename returns every favourite of the user to idle without renaming.
func (s *SQLite) CancelRename(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE favourites SET rename_state = 0 WHERE user_id = ? AND rename_state = 1`, userID)
	if err != nil {
		return fmt.Errorf("cancel rename: %w", err)
	}
	return nil
}

// ---------- feedback -------------------------------------------------------

// StartFeedback opens a feedback session unless one is already open.
func (s *SQLite) StartFeedback(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO feedback (user_id, state)
		 SELECT ?, 1 WHERE NOT EXISTS (SELECT 1 FROM feedback WHERE user_id = ? AND state = 1)`,
		userID, userID,
	)
	if err != nil {
		return fmt.Errorf("start feedback: %w", err)
	}
	return nil
}

// HasPendingFeedback reports whether the user has an open feedback session.
func (s *SQLite) HasPendingFeedback(ctx context.Context, userID int64) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM feedback WHERE user_id = ? AND state = 1`, userID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check feedback: %w", err)
	}
	return count > 0, nil
}

// SubmitFeedback writes text into the open session and closes it.
func (s *SQLite) SubmitFeedback(ctx context.Context, userID int64, text, submittedAt string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE feedback SET text = ?, submitted_at = ?, state = 0 WHERE user_id = ? AND state = 1`,
		text, submittedAt, userID,
	)
	if err != nil {
		return fmt.Errorf("submit feedback: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// AbandonFeedback deletes the open session without recording anything.
func (s *SQLite) AbandonFeedback(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM feedback WHERE user_id = ? AND state = 1`, userID)
	if err != nil {
		return fmt.Errorf("abandon feedback: %w", err)
	}
	return nil
}

// ListFeedback returns the submitted feedback of a user, oldest first.
func (s *SQLite) ListFeedback(ctx context.Context, userID int64) ([]model.Feedback, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, text, submitted_at, state FROM feedback
		 WHERE user_id = ? AND state = 0 ORDER BY id`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query feedback: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Feedback
	for rows.Next() {
		var f model.Feedback
		var state int
		if err := rows.Scan(&f.ID, &f.UserID, &f.Text, &f.SubmittedAt, &state); err != nil {
			return nil, fmt.Errorf("scan feedback: %w", err)
		}
		f.State = model.FeedbackState(state)
		out = append(out, f)
	}
	return out, rows.Err()
}

// ---------- schedules ------------------------------------------------------

// StartDraft discards the user's unfinished drafts and opens a fresh one
// awaiting a stop code.
func (s *SQLite) StartDraft(ctx context.Context, userID int64) (*model.Schedule, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM schedules WHERE user_id = ? AND stage <> 0`, userID); err != nil {
		return nil, fmt.Errorf("delete stale drafts: %w", err)
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO schedules (user_id, stage, created_at) VALUES (?, ?, ?)`,
		userID, int(model.StageAwaitingStopCode), nowUTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert draft: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	draft, err := scanSchedule(tx.QueryRowContext(ctx,
		`SELECT `+scheduleColumns+` FROM schedules WHERE id = ?`, id))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return draft, nil
}

// ActiveDraft returns the user's unfinished draft at the earliest stage, or ErrNotFound.
func (s *SQLite) ActiveDraft(ctx context.Context, userID int64) (*model.Schedule, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+scheduleColumns+` FROM schedules
		 WHERE user_id = ? AND stage <> 0 ORDER BY stage ASC, id DESC LIMIT 1`,
		userID,
	)
	return scanSchedule(row)
}

// UpdateDraft persists the accumulated attributes and stage of a draft.
// Completed schedules cannot be changed through this method.
func (s *SQLite) UpdateDraft(ctx context.Context, sc *model.Schedule) error {
	if !sc.Stage.IsDraft() {
		return fmt.Errorf("update draft %d: stage %s is not a draft stage", sc.ID, sc.Stage)
	}
	slots := sc.Buses.Slots()
	res, err := s.db.ExecContext(ctx,
		`UPDATE schedules SET stop_code = ?, description = ?, stage = ?,
		   bus_1 = ?, bus_2 = ?, bus_3 = ?, bus_4 = ?, bus_5 = ?, services = ?
		 WHERE id = ? AND stage <> 0`,
		sc.StopCode, sc.Description, int(sc.Stage),
		slots[0], slots[1], slots[2], slots[3], slots[4], strings.Join(sc.Services, ","),
		sc.ID,
	)
	if err != nil {
		return fmt.Errorf("update draft: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// FinalizeDraft sets the time of a draft awaiting it and marks it complete.
// If the user already has an identical complete schedule, the draft is
// dropped instead and false is returned.
func (s *SQLite) FinalizeDraft(ctx context.Context, draftID int64, timeOfDay string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	draft, err := scanSchedule(tx.QueryRowContext(ctx,
		`SELECT `+scheduleColumns+` FROM schedules WHERE id = ? AND stage = ?`,
		draftID, int(model.StageAwaitingTime)))
	if err != nil {
		return false, err
	}

	var dup int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM schedules
		 WHERE user_id = ? AND stop_code = ? AND time_of_day = ? AND stage = 0`,
		draft.UserID, draft.StopCode, timeOfDay,
	).Scan(&dup); err != nil {
		return false, fmt.Errorf("check duplicate schedule: %w", err)
	}

	created := dup == 0
	if created {
		_, err = tx.ExecContext(ctx,
			`UPDATE schedules SET time_of_day = ?, stage = 0 WHERE id = ?`, timeOfDay, draftID)
	} else {
		_, err = tx.ExecContext(ctx, `DELETE FROM schedules WHERE id = ?`, draftID)
	}
	if err != nil {
		return false, fmt.Errorf("finalize draft: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return created, nil
}

// DeleteDraft destroys an unfinished draft. Completed schedules are not affected.
func (s *SQLite) DeleteDraft(ctx context.Context, draftID int64) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM schedules WHERE id = ? AND stage <> 0`, draftID)
	if err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	return nil
}

// ListSchedules returns the user's complete schedules ordered by time.
func (s *SQLite) ListSchedules(ctx context.Context, userID int64) ([]model.Schedule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+scheduleColumns+` FROM schedules
		 WHERE user_id = ? AND stage = 0 ORDER BY time_of_day, id`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query schedules: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanSchedules(rows)
}

// ListDueSchedules returns every complete schedule set for the given "HH:MM".
func (s *SQLite) ListDueSchedules(ctx context.Context, timeOfDay string) ([]model.Schedule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+scheduleColumns+` FROM schedules
		 WHERE stage = 0 AND time_of_day = ? ORDER BY id`, timeOfDay,
	)
	if err != nil {
		return nil, fmt.Errorf("query due schedules: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanSchedules(rows)
}

// DeleteSchedule removes a complete schedule owned by the user.
func (s *SQLite) DeleteSchedule(ctx context.Context, userID, id int64) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM schedules WHERE id = ? AND user_id = ? AND stage = 0`, id, userID)
	if err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	return nil
}

// ---------- alert log ------------------------------------------------------

// LatestAlert returns the most recently recorded alert, or ErrNotFound.
func (s *SQLite) LatestAlert(ctx context.Context) (*model.AlertEntry, error) {
	var a model.AlertEntry
	var at string
	err := s.db.QueryRowContext(ctx,
		`SELECT message, seen_at FROM alert_log ORDER BY seen_at DESC LIMIT 1`,
	).Scan(&a.Message, &at)
	if err != nil {
		return nil, wrapNotFound("scan alert", err)
	}
	a.SeenAt, _ = time.Parse(preciseLayout, at)
	return &a, nil
}

// AlertSeen reports whether an alert with this exact text was ever recorded.
func (s *SQLite) AlertSeen(ctx context.Context, message string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM alert_log WHERE message = ?`, message,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check alert: %w", err)
	}
	return count > 0, nil
}

// RecordAlert appends an alert text to the log. Duplicate texts are ignored.
func (s *SQLite) RecordAlert(ctx context.Context, message string, seenAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO alert_log (message, seen_at) VALUES (?, ?) ON CONFLICT (message) DO NOTHING`,
		message, seenAt.UTC().Format(preciseLayout),
	)
	if err != nil {
		return fmt.Errorf("record alert: %w", err)
	}
	return nil
}

// ---------- helpers --------------------------------------------------------

func nowUTC() string {
	return time.Now().UTC().Format(timeLayout)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func wrapNotFound(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

type scannable interface {
	Scan(dest ...any) error
}

func scanFavourite(row scannable) (*model.Favourite, error) {
	var f model.Favourite
	var state int
	err := row.Scan(&f.UserID, &f.StopCode, &f.Description, &f.CustomDescription, &state)
	if err != nil {
		return nil, wrapNotFound("scan favourite", err)
	}
	f.RenameState = model.RenameState(state)
	return &f, nil
}

func scanSchedule(row scannable) (*model.Schedule, error) {
	var sc model.Schedule
	var stage int
	var slots [model.MaxSelectedBuses]string
	var services, created string
	err := row.Scan(&sc.ID, &sc.UserID, &sc.StopCode, &sc.Description, &sc.TimeOfDay, &stage,
		&slots[0], &slots[1], &slots[2], &slots[3], &slots[4], &services, &created)
	if err != nil {
		return nil, wrapNotFound("scan schedule", err)
	}
	sc.Stage = model.Stage(stage)
	sc.Buses = model.SelectionFromSlots(slots)
	if services != "" {
		sc.Services = strings.Split(services, ",")
	}
	sc.CreatedAt, _ = time.Parse(timeLayout, created)
	return &sc, nil
}

func scanSchedules(rows *sql.Rows) ([]model.Schedule, error) {
	var out []model.Schedule
	for rows.Next() {
		sc, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sc)
	}
	return out, rows.Err()
}
