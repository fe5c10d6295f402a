// Package arrivals builds live arrival boards for bus stops.
package arrivals

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"sgbus_bot/internal/datamall"
	"sgbus_bot/internal/localtime"
	"sgbus_bot/internal/model"
)

// Source returns raw arrival data for a stop.
type Source interface {
	Arrivals(ctx context.Context, stopCode string) (*datamall.Arrivals, error)
}

// Directory resolves stop names and operating hours.
type Directory interface {
	Stop(code string) (model.BusStop, bool)
	Route(serviceNo, stopCode string) (model.Route, bool)
}

// Kind classifies an arrival estimate.
type Kind int

// Estimate kinds.
const (
	KindMinutes Kind = iota
	KindNoEstimation
	KindNotInOperation
)

// Estimate is the predicted arrival of one bus.
type Estimate struct {
	Kind    Kind
	Minutes int
	Load    string // SEA, SDA or LSD
	Feature string // WAB when wheelchair accessible
}

// ServiceBoard lists the next buses of one service.
type ServiceBoard struct {
	ServiceNo string
	Next      []Estimate
}

// Board is the arrival snapshot of a stop.
type Board struct {
	StopCode  string
	StopName  string
	Services  []ServiceBoard
	UpdatedAt time.Time
}

// Filter keeps only the services included by sel. An empty selection keeps all.
func (b Board) Filter(sel model.BusSelection) Board {
	if sel.IsAll() {
		return b
	}
	out := b
	out.Services = nil
	for _, s := range b.Services {
		if sel.Includes(s.ServiceNo) {
			out.Services = append(out.Services, s)
		}
	}
	return out
}

// Service produces boards from live data and the reference directory.
type Service struct {
	src   Source
	dir   Directory
	clock *localtime.Clock
}

// New creates an arrivals Service.
func New(src Source, dir Directory, clock *localtime.Clock) *Service {
	return &Service{src: src, dir: dir, clock: clock}
}

// Board fetches live arrivals for stopCode.
func (s *Service) Board(ctx context.Context, stopCode string) (*Board, error) {
	raw, err := s.src.Arrivals(ctx, stopCode)
	if err != nil {
		return nil, fmt.Errorf("fetch arrivals: %w", err)
	}

	now := s.clock.Now()
	board := &Board{StopCode: stopCode, UpdatedAt: now}
	if stop, ok := s.dir.Stop(stopCode); ok {
		board.StopName = stop.Description
	}
	for _, svc := range raw.Services {
		sb := ServiceBoard{ServiceNo: svc.ServiceNo}
		for _, nb := range []datamall.NextBus{svc.NextBus, svc.NextBus2, svc.NextBus3} {
			sb.Next = append(sb.Next, s.estimate(now, stopCode, svc.ServiceNo, nb))
		}
		board.Services = append(board.Services, sb)
	}
	return board, nil
}

// Services lists the service numbers currently reported at stopCode.
func (s *Service) Services(ctx context.Context, stopCode string) ([]string, error) {
	raw, err := s.src.Arrivals(ctx, stopCode)
	if err != nil {
		return nil, fmt.Errorf("fetch arrivals: %w", err)
	}
	out := make([]string, 0, len(raw.Services))
	for _, svc := range raw.Services {
		out = append(out, svc.ServiceNo)
	}
	return out, nil
}

func (s *Service) estimate(now time.Time, stopCode, serviceNo string, nb datamall.NextBus) Estimate {
	if nb.EstimatedArrival != "" {
		if at, err := time.Parse(time.RFC3339, nb.EstimatedArrival); err == nil {
			return Estimate{
				Kind:    KindMinutes,
				Minutes: int(math.Round(at.Sub(now).Minutes())),
				Load:    nb.Load,
				Feature: nb.Feature,
			}
		}
	}
	if s.inOperation(now, stopCode, serviceNo) {
		return Estimate{Kind: KindNoEstimation}
	}
	return Estimate{Kind: KindNotInOperation}
}

// inOperation reports whether now falls between the first and last bus of
// the service at the stop for today's day type. A service missing from the
// directory is assumed to run all day.
func (s *Service) inOperation(now time.Time, stopCode, serviceNo string) bool {
	first, last := "0000", "2359"
	if r, ok := s.dir.Route(serviceNo, stopCode); ok {
		first, last = OperatingWindow(r, now.Weekday())
	}
	return WithinWindow(now, first, last)
}

// OperatingWindow picks the first and last bus times for a day of week.
func OperatingWindow(r model.Route, day time.Weekday) (first, last string) {
	switch day {
	case time.Saturday:
		return r.SaturdayFirst, r.SaturdayLast
	case time.Sunday:
		return r.SundayFirst, r.SundayLast
	default:
		return r.WeekdayFirst, r.WeekdayLast
	}
}

// WithinWindow reports whether the local time of now lies in [first, last].
// A last bus before 12:00 belongs to the following early morning. Unparseable
// bounds, such as "-" for no service, mean the window is closed.
func WithinWindow(now time.Time, first, last string) bool {
	lo, ok := minuteOfDay(first)
	if !ok {
		return false
	}
	hi, ok := minuteOfDay(last)
	if !ok {
		return false
	}
	if hi < 12*60 {
		hi += 24 * 60
	}
	cur := now.Hour()*60 + now.Minute()
	return (lo <= cur && cur <= hi) || (lo <= cur+24*60 && cur+24*60 <= hi)
}

func minuteOfDay(hhmm string) (int, bool) {
	if len(hhmm) != 4 {
		return 0, false
	}
	n, err := strconv.Atoi(hhmm)
	if err != nil || n < 0 {
		return 0, false
	}
	h, m := n/100, n%100
	if h > 23 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}
