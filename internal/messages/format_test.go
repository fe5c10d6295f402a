package messages

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"sgbus_bot/internal/arrivals"
	"sgbus_bot/internal/model"
)

func TestFormatEstimate(t *testing.T) {
	tests := []struct {
		name string
		in   arrivals.Estimate
		want string
	}{
		{name: "minutes with load and wheelchair", in: arrivals.Estimate{Minutes: 7, Load: "SEA", Feature: "WAB"}, want: "7mins🟢♿"},
		{name: "standing", in: arrivals.Estimate{Minutes: 3, Load: "SDA"}, want: "3mins🟡"},
		{name: "arriving", in: arrivals.Estimate{Minutes: 1, Load: "LSD"}, want: "Arriving🔴"},
		{name: "already departed", in: arrivals.Estimate{Minutes: -1}, want: "Arriving"},
		{name: "no estimation", in: arrivals.Estimate{Kind: arrivals.KindNoEstimation}, want: "No Estimation"},
		{name: "not in operation", in: arrivals.Estimate{Kind: arrivals.KindNotInOperation}, want: "Not In Operation ❌"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, FormatEstimate(tt.in)); diff != "" {
				t.Errorf("FormatEstimate() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFormatScheduledBoard(t *testing.T) {
	b := arrivals.Board{
		StopCode:  "14141",
		StopName:  "HARBOURFRONT STN",
		UpdatedAt: time.Date(2025, 1, 6, 8, 5, 0, 0, time.UTC),
		Services: []arrivals.ServiceBoard{
			{ServiceNo: "10", Next: []arrivals.Estimate{{Minutes: 4, Load: "SEA"}, {Kind: arrivals.KindNoEstimation}}},
		},
	}
	want := "This is a Scheduled Message\n" +
		"Bus Stop: HARBOURFRONT STN\nBus Stop Code: /14141\n\n" +
		"Bus /10\n  -4mins🟢\n  -No Estimation\n\n" +
		legend + "\n\nUpdated: 2025-01-06 08:05"
	if diff := cmp.Diff(want, FormatScheduledBoard(b)); diff != "" {
		t.Errorf("FormatScheduledBoard() mismatch (-want +got):\n%s", diff)
	}
}

func TestFormatRoute(t *testing.T) {
	routes := map[int][]model.Route{
		2: {{StopCode: "67729", StopName: "SENGKANG STN"}},
		1: {{StopCode: "14141", StopName: "HARBOURFRONT STN"}, {StopCode: "14139", StopName: "OPP HARBOURFRONT STN"}},
	}
	want := "Bus /10\n" +
		"\nFrom HARBOURFRONT STN:\nHARBOURFRONT STN (/14141)\nOPP HARBOURFRONT STN (/14139)\n" +
		"\nFrom SENGKANG STN:\nSENGKANG STN (/67729)"
	if diff := cmp.Diff(want, FormatRoute("10", routes)); diff != "" {
		t.Errorf("FormatRoute() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(NoBusData("999"), FormatRoute("999", nil)); diff != "" {
		t.Errorf("FormatRoute(unknown) mismatch (-want +got):\n%s", diff)
	}
}

func TestScheduleTexts(t *testing.T) {
	s := model.Schedule{
		StopCode:    "14141",
		Description: "HARBOURFRONT STN",
		TimeOfDay:   "07:30",
		Buses:       model.NewBusSelection("10", "30"),
	}
	want := "Bus Stop: HARBOURFRONT STN\nBus Stop Code: /14141\nBuses: 10, 30\nTime: 0730H\nFrequency: Daily"
	if diff := cmp.Diff(want, FormatSchedule(s)); diff != "" {
		t.Errorf("FormatSchedule() mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff("ALL", SelectionLabel(model.BusSelection{})); diff != "" {
		t.Errorf("SelectionLabel(empty) mismatch (-want +got):\n%s", diff)
	}
}
