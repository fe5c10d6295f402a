// Package alerts produces the current train service alert text.
package alerts

import (
	"context"
	"fmt"
	"strings"

	"sgbus_bot/internal/datamall"
)

// AllClear is the text reported when every line runs normally. It is never broadcast.
const AllClear = "All Train Services Working Normally 👍"

// Source returns the current alert text, or AllClear.
type Source interface {
	Current(ctx context.Context) (string, error)
}

// TrainAlertsAPI is the DataMall call used by DataMall.
type TrainAlertsAPI interface {
	TrainAlerts(ctx context.Context) (*datamall.TrainAlerts, error)
}

// DataMall renders LTA train service alerts.
type DataMall struct {
	api TrainAlertsAPI
}

// NewDataMall creates a DataMall alert source.
func NewDataMall(api TrainAlertsAPI) *DataMall {
	return &DataMall{api: api}
}

// Current fetches and renders the alert state.
func (d *DataMall) Current(ctx context.Context) (string, error) {
	a, err := d.api.TrainAlerts(ctx)
	if err != nil {
		return "", err
	}
	return Render(a), nil
}

// Render turns a TrainAlerts payload into message text. Affected segments
// take precedence over free-text messages.
func Render(a *datamall.TrainAlerts) string {
	if len(a.AffectedSegments) == 0 && len(a.Message) == 0 {
		return AllClear
	}

	var b strings.Builder
	if len(a.AffectedSegments) > 0 {
		b.WriteString("Train Disruption 😫:\n")
		for _, s := range a.AffectedSegments {
			fmt.Fprintf(&b, "Line: %s\nDirection: %s\nStations: %s\n", s.Line, s.Direction, s.Stations)
			fmt.Fprintf(&b, "Free Public Bus: %s\nFree MRT Shuttle: %s\nMRT Shuttle Direction: %s\n\n",
				s.FreePublicBus, s.FreeMRTShuttle, s.MRTShuttleDirection)
		}
		return strings.TrimRight(b.String(), "\n")
	}

	b.WriteString("Latest Updates:\n")
	for _, m := range a.Message {
		head, body, found := strings.Cut(m.Content, ":")
		if !found {
			fmt.Fprintf(&b, "%s\n\n", strings.TrimSpace(m.Content))
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n\n", strings.TrimSpace(head), strings.TrimSpace(body))
	}
	return strings.TrimRight(b.String(), "\n")
}
