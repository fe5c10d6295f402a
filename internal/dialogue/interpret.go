package dialogue

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"sgbus_bot/internal/messages"
	"sgbus_bot/internal/model"
)

// MaxSearchResults caps the stops listed for a free-text search.
const MaxSearchResults = 10

var (
	stopCodeRe  = regexp.MustCompile(`^[0-9]{5}$`)
	timeOfDayRe = regexp.MustCompile(`^([01][0-9]|2[0-3])[0-5][0-9]$`)
)

// IsStopCode reports whether s is exactly five ASCII digits.
func IsStopCode(s string) bool {
	return stopCodeRe.MatchString(s)
}

// ParseTimeOfDay converts a 24-hour "HHMM" utterance to "HH:MM".
func ParseTimeOfDay(s string) (string, bool) {
	if !timeOfDayRe.MatchString(s) {
		return "", false
	}
	return s[:2] + ":" + s[2:], true
}

// QueryKind is the free-form classification of an utterance.
type QueryKind int

// Free-form query kinds.
const (
	QueryUnknown QueryKind = iota
	QueryStopCode
	QueryBusNumber
	QueryLocation
)

// Classify decides what a normalised utterance with no active flow refers to.
func Classify(msg string) QueryKind {
	switch {
	case IsStopCode(msg):
		return QueryStopCode
	case utf8.RuneCountInString(msg) <= 4 && strings.IndexFunc(msg, unicode.IsDigit) >= 0:
		return QueryBusNumber
	case utf8.RuneCountInString(msg) >= 5 && strings.IndexFunc(msg, isAlnum) >= 0:
		return QueryLocation
	default:
		return QueryUnknown
	}
}

func isAlnum(r rune) bool {
	return r < utf8.RuneSelf && (unicode.IsLetter(r) || unicode.IsDigit(r))
}

func (m *Machine) interpret(ctx context.Context, userID int64, msg string) (Reply, error) {
	switch Classify(msg) {
	case QueryStopCode:
		stop, ok := m.stops.Stop(msg)
		if !ok {
			return text(messages.InvalidStopCode(msg)), nil
		}
		return m.stopBoard(ctx, userID, stop)

	case QueryBusNumber:
		svc := strings.ToUpper(msg)
		if !m.stops.HasService(svc) {
			return text(messages.NoBusData(svc)), nil
		}
		return Reply{
			Text:    messages.BusPrompt(svc),
			Buttons: [][]Button{{{Text: "Bus Routes", Data: CbRoutes + svc}}},
		}, nil

	case QueryLocation:
		hits := m.stops.Search(msg, MaxSearchResults)
		if len(hits) == 0 {
			return text(messages.CannotUnderstand), nil
		}
		return Reply{Text: messages.FormatSearch(hits), Keys: stopKeys()}, nil
	}
	return text(messages.CannotUnderstand), nil
}

// Board renders the live board of a stop and remembers it as the user's
// last viewed stop.
func (m *Machine) Board(ctx context.Context, userID int64, code string) (Reply, error) {
	stop, ok := m.stops.Stop(code)
	if !ok {
		return text(messages.InvalidStopCode(code)), nil
	}
	r, err := m.stopBoard(ctx, userID, stop)
	r.Location = nil
	r.Keys = nil
	return r, err
}

func (m *Machine) stopBoard(ctx context.Context, userID int64, stop model.BusStop) (Reply, error) {
	board, err := m.arrivals.Board(ctx, stop.Code)
	if err != nil {
		m.log.Warn("build arrival board", "chat_id", userID, "stop_code", stop.Code, "error", err)
		return text(messages.Unavailable), nil
	}
	if board.StopName == "" {
		board.StopName = stop.Description
	}

	view := model.ViewedStop{UserID: userID, StopCode: stop.Code, Description: stop.Description, ViewedAt: m.clock.Now()}
	if err := m.store.RecordStopView(ctx, view); err != nil {
		return Reply{}, fmt.Errorf("record stop view: %w", err)
	}

	return Reply{
		Text:     messages.FormatBoard(*board),
		Buttons:  refreshButtons(stop.Code),
		Keys:     stopKeys(),
		Location: &stop,
	}, nil
}

// Route lists the stops served by a bus service.
func (m *Machine) Route(serviceNo string) Reply {
	svc := strings.ToUpper(serviceNo)
	return text(messages.FormatRoute(svc, m.stops.RouteStops(svc)))
}
