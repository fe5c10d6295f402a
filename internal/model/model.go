// Package model defines the domain types used across the application.
package model

import "time"

// User is a chat participant. Users are created on first contact and never deleted.
type User struct {
	ChatID      int64
	Name        string
	AlertsOptIn bool
	CreatedAt   time.Time
}

// RenameState tracks whether a favourite is waiting for a new name.
type RenameState int

// Supported rename states.
const (
	RenameIdle RenameState = iota
	RenameAwaitingName
)

// Favourite is a bus stop bookmarked by a user.
type Favourite struct {
	UserID            int64
	StopCode          string
	Description       string
	CustomDescription string
	RenameState       RenameState
}

// DisplayName returns the custom description, falling back to the official one.
func (f Favourite) DisplayName() string {
	if f.CustomDescription != "" {
		return f.CustomDescription
	}
	return f.Description
}

// FeedbackState tracks whether the bot is waiting for feedback text.
type FeedbackState int

// Supported feedback states.
const (
	FeedbackIdle FeedbackState = iota
	FeedbackAwaitingText
)

// Feedback is one feedback row. Rows in FeedbackIdle are submitted entries.
type Feedback struct {
	ID          int64
	UserID      int64
	Text        string
	SubmittedAt string
	State       FeedbackState
}

// Stage is the step a schedule has reached in the creation wizard.
// The numeric values are persisted.
type Stage int

// Schedule stages. Only StageComplete rows are delivered.
const (
	StageComplete         Stage = 0
	StageAwaitingStopCode Stage = 1
	StageAwaitingBuses    Stage = 2
	StageAwaitingTime     Stage = 3
)

func (s Stage) String() string {
	switch s {
	case StageComplete:
		return "complete"
	case StageAwaitingStopCode:
		return "awaiting_stop_code"
	case StageAwaitingBuses:
		return "awaiting_bus_selection"
	case StageAwaitingTime:
		return "awaiting_time"
	default:
		return "unknown"
	}
}

// IsDraft reports whether the stage is an in-progress wizard step.
func (s Stage) IsDraft() bool {
	return s == StageAwaitingStopCode || s == StageAwaitingBuses || s == StageAwaitingTime
}

// Schedule is a recurring daily arrival notification, or a draft of one.
type Schedule struct {
	ID          int64
	UserID      int64
	StopCode    string
	Description string
	TimeOfDay   string // "HH:MM", 24h, business timezone
	Stage       Stage
	Buses       BusSelection
	// Services lists the live services seen at the stop when the draft reached
	// StageAwaitingBuses. Used to render the selection keyboard.
	Services  []string
	CreatedAt time.Time
}

// AlertEntry is a previously broadcast alert text.
type AlertEntry struct {
	Message string
	SeenAt  time.Time
}

// BusStop is one row of the stop reference data.
type BusStop struct {
	Code        string
	RoadName    string
	Description string
	Latitude    float64
	Longitude   float64
}

// Route is one (service, stop) row of the route reference data.
// Times are "HHMM" strings as published upstream.
type Route struct {
	ServiceNo     string
	Direction     int
	StopCode      string
	StopName      string
	WeekdayFirst  string
	WeekdayLast   string
	SaturdayFirst string
	SaturdayLast  string
	SundayFirst   string
	SundayLast    string
}

// ViewedStop records the last time a user looked up a stop.
type ViewedStop struct {
	UserID      int64
	StopCode    string
	Description string
	ViewedAt    time.Time
}
