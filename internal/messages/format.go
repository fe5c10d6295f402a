package messages

import (
	"fmt"
	"strings"

	"sgbus_bot/internal/arrivals"
	"sgbus_bot/internal/localtime"
	"sgbus_bot/internal/model"
	"sgbus_bot/internal/refdata"
)

const legend = "🟢: Seats Available\n🟡: Standing Available\n🔴: Limited Seating\n♿: Wheel-chair Accessible"

// FormatBoard renders a live arrival board.
func FormatBoard(b arrivals.Board) string {
	return formatBoard("", b)
}

// FormatScheduledBoard renders a board delivered by a schedule.
func FormatScheduledBoard(b arrivals.Board) string {
	return formatBoard("This is a Scheduled Message\n", b)
}

// FormatScheduledUnavailable tells a schedule owner that the board for the
// stop could not be fetched this time.
func FormatScheduledUnavailable(description, code string) string {
	return fmt.Sprintf("This is a Scheduled Message\nBus Stop: %s\nBus Stop Code: /%s\n\n%s",
		description, code, Unavailable)
}

func formatBoard(header string, b arrivals.Board) string {
	var sb strings.Builder
	sb.WriteString(header)
	name := b.StopName
	if name == "" {
		name = "Unknown"
	}
	fmt.Fprintf(&sb, "Bus Stop: %s\nBus Stop Code: /%s\n\n", name, b.StopCode)

	if len(b.Services) == 0 {
		sb.WriteString("No buses are reported at this stop right now.\n\n")
	}
	for _, svc := range b.Services {
		fmt.Fprintf(&sb, "Bus /%s\n", svc.ServiceNo)
		for _, e := range svc.Next {
			fmt.Fprintf(&sb, "  -%s\n", FormatEstimate(e))
		}
		sb.WriteString("\n")
	}

	sb.WriteString(legend)
	if !b.UpdatedAt.IsZero() {
		fmt.Fprintf(&sb, "\n\nUpdated: %s", b.UpdatedAt.Format("2006-01-02 "+localtime.TimeOfDayLayout))
	}
	return sb.String()
}

// FormatEstimate renders one estimate with its load and accessibility markers.
func FormatEstimate(e arrivals.Estimate) string {
	switch e.Kind {
	case arrivals.KindNoEstimation:
		return "No Estimation"
	case arrivals.KindNotInOperation:
		return "Not In Operation ❌"
	}

	timing := "Arriving"
	if e.Minutes > 1 {
		timing = fmt.Sprintf("%dmins", e.Minutes)
	}
	switch e.Load {
	case "SEA":
		timing += "🟢"
	case "SDA":
		timing += "🟡"
	case "LSD":
		timing += "🔴"
	}
	if e.Feature == "WAB" {
		timing += "♿"
	}
	return timing
}

// FormatSearch lists stops matching a free-text query.
func FormatSearch(stops []model.BusStop) string {
	var sb strings.Builder
	sb.WriteString("Possible Location:\n\nClick on any of the bus stop codes below to get the bus arrival timings for that bus stop!\n\n")
	for _, s := range stops {
		fmt.Fprintf(&sb, "%s\n%s (/%s)\n\n", s.Description, s.RoadName, s.Code)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// FormatRoute lists the stops of a service for each direction.
func FormatRoute(serviceNo string, byDirection map[int][]model.Route) string {
	if len(byDirection) == 0 {
		return NoBusData(serviceNo)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Bus /%s\n", serviceNo)
	for _, dir := range refdata.Directions(byDirection) {
		stops := byDirection[dir]
		fmt.Fprintf(&sb, "\nFrom %s:\n", stops[0].StopName)
		for _, r := range stops {
			fmt.Fprintf(&sb, "%s (/%s)\n", r.StopName, r.StopCode)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}
