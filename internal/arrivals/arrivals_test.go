package arrivals

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"

	"sgbus_bot/internal/datamall"
	"sgbus_bot/internal/localtime"
	"sgbus_bot/internal/model"
)

var sgt = time.FixedZone("SGT", 8*60*60)

type fakeSource struct {
	arrivals *datamall.Arrivals
	err      error
}

func (f *fakeSource) Arrivals(context.Context, string) (*datamall.Arrivals, error) {
	return f.arrivals, f.err
}

type fakeDirectory struct {
	stops  map[string]model.BusStop
	routes map[string]model.Route
}

func (f *fakeDirectory) Stop(code string) (model.BusStop, bool) {
	s, ok := f.stops[code]
	return s, ok
}

func (f *fakeDirectory) Route(svc, code string) (model.Route, bool) {
	r, ok := f.routes[svc+"@"+code]
	return r, ok
}

func newDirectory() *fakeDirectory {
	return &fakeDirectory{
		stops: map[string]model.BusStop{"14141": {Code: "14141", Description: "HARBOURFRONT STN"}},
		routes: map[string]model.Route{
			"10@14141": {ServiceNo: "10", StopCode: "14141",
				WeekdayFirst: "0530", WeekdayLast: "2330",
				SaturdayFirst: "0600", SaturdayLast: "2330",
				SundayFirst: "-", SundayLast: "-"},
			"30@14141": {ServiceNo: "30", StopCode: "14141",
				WeekdayFirst: "0545", WeekdayLast: "0015",
				SaturdayFirst: "0545", SaturdayLast: "0015",
				SundayFirst: "0545", SundayLast: "0015"},
		},
	}
}

func clockAt(t time.Time) *localtime.Clock {
	return localtime.New(clockwork.NewFakeClockAt(t), sgt)
}

func TestBoard(t *testing.T) {
	// Monday 08:05 SGT.
	now := time.Date(2025, 1, 6, 8, 5, 0, 0, sgt)
	src := &fakeSource{arrivals: &datamall.Arrivals{
		BusStopCode: "14141",
		Services: []datamall.ServiceArrival{
			{
				ServiceNo: "10",
				NextBus:   datamall.NextBus{EstimatedArrival: "2025-01-06T08:09:20+08:00", Load: "SEA", Feature: "WAB"},
				NextBus2:  datamall.NextBus{EstimatedArrival: "2025-01-06T08:05:10+08:00", Load: "LSD"},
			},
			{ServiceNo: "99"},
		},
	}}

	svc := New(src, newDirectory(), clockAt(now))
	got, err := svc.Board(context.Background(), "14141")
	if err != nil {
		t.Fatalf("board: %v", err)
	}

	want := &Board{
		StopCode:  "14141",
		StopName:  "HARBOURFRONT STN",
		UpdatedAt: now,
		Services: []ServiceBoard{
			{ServiceNo: "10", Next: []Estimate{
				{Kind: KindMinutes, Minutes: 4, Load: "SEA", Feature: "WAB"},
				{Kind: KindMinutes, Minutes: 0, Load: "LSD"},
				{Kind: KindNoEstimation},
			}},
			{ServiceNo: "99", Next: []Estimate{
				{Kind: KindNoEstimation}, {Kind: KindNoEstimation}, {Kind: KindNoEstimation},
			}},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Board mismatch (-want +got):\n%s", diff)
	}
}

func TestBoardUpstreamError(t *testing.T) {
	svc := New(&fakeSource{err: errors.New("timeout")}, newDirectory(), clockAt(time.Now()))
	if _, err := svc.Board(context.Background(), "14141"); err == nil {
		t.Fatal("expected error")
	}
	if _, err := svc.Services(context.Background(), "14141"); err == nil {
		t.Fatal("expected error")
	}
}

func TestEstimateOutsideOperatingHours(t *testing.T) {
	tests := []struct {
		name    string
		now     time.Time
		service string
		want    Kind
	}{
		{name: "weekday before first bus", now: time.Date(2025, 1, 6, 5, 0, 0, 0, sgt), service: "10", want: KindNotInOperation},
		{name: "weekday in service", now: time.Date(2025, 1, 6, 12, 0, 0, 0, sgt), service: "10", want: KindNoEstimation},
		{name: "weekday after last bus", now: time.Date(2025, 1, 6, 23, 45, 0, 0, sgt), service: "10", want: KindNotInOperation},
		{name: "sunday no service", now: time.Date(2025, 1, 5, 12, 0, 0, 0, sgt), service: "10", want: KindNotInOperation},
		{name: "last bus after midnight", now: time.Date(2025, 1, 7, 0, 10, 0, 0, sgt), service: "30", want: KindNoEstimation},
		{name: "past after-midnight last bus", now: time.Date(2025, 1, 7, 0, 30, 0, 0, sgt), service: "30", want: KindNotInOperation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := New(nil, newDirectory(), clockAt(tt.now))
			got := svc.estimate(tt.now, "14141", tt.service, datamall.NextBus{})
			if diff := cmp.Diff(tt.want, got.Kind); diff != "" {
				t.Errorf("estimate kind mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFilter(t *testing.T) {
	b := Board{Services: []ServiceBoard{{ServiceNo: "10"}, {ServiceNo: "30"}, {ServiceNo: "65"}}}

	names := func(b Board) []string {
		var out []string
		for _, s := range b.Services {
			out = append(out, s.ServiceNo)
		}
		return out
	}

	if diff := cmp.Diff([]string{"10", "30", "65"}, names(b.Filter(model.BusSelection{}))); diff != "" {
		t.Errorf("empty selection should keep every service (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"30", "65"}, names(b.Filter(model.NewBusSelection("65", "30")))); diff != "" {
		t.Errorf("filtered services mismatch (-want +got):\n%s", diff)
	}
}

func TestServices(t *testing.T) {
	src := &fakeSource{arrivals: &datamall.Arrivals{Services: []datamall.ServiceArrival{
		{ServiceNo: "10"}, {ServiceNo: "30"},
	}}}
	got, err := New(src, newDirectory(), clockAt(time.Now())).Services(context.Background(), "14141")
	if err != nil {
		t.Fatalf("services: %v", err)
	}
	if diff := cmp.Diff([]string{"10", "30"}, got); diff != "" {
		t.Errorf("Services mismatch (-want +got):\n%s", diff)
	}
}
