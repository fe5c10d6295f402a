package dialogue

import (
	"strconv"
	"strings"

	"sgbus_bot/internal/messages"
	"sgbus_bot/internal/model"
)

// Reply-keyboard texts recognised from the free-form keyboard.
const (
	KeyChangeStop   = "Change Stop"
	KeyAddFavourite = "Add to Favourites ❤"
)

// Callback data prefixes and values carried by inline buttons.
const (
	CbFavSelect    = "fav_sel:"
	CbFavDelete    = "fav_del:"
	CbFavRename    = "fav_ren:"
	CbScheduleNew  = "sched_new"
	CbScheduleList = "sched_list"
	CbScheduleRm   = "sched_rm:"
	CbBus          = "bus:"
	CbBusConfirm   = "bus_ok"
	CbAlerts       = "alerts:"
	CbMRTStatus    = "mrt_alert"
	CbRefresh      = "refresh:"
	CbRoutes       = "routes:"
)

const busButtonsInRow = 3

// Button is an inline button.
type Button struct {
	Text string
	Data string
}

// Reply is what the bot should send back. Buttons become an inline keyboard;
// Keys become a one-time reply keyboard. When Location is set, the bot sends
// the location first, carrying Keys.
type Reply struct {
	Text       string
	Buttons    [][]Button
	Keys       [][]string
	Location   *model.BusStop
	ForceReply bool
}

func text(s string) Reply { return Reply{Text: s} }

func stopKeys() [][]string {
	return [][]string{{KeyChangeStop}, {KeyAddFavourite}}
}

func refreshButtons(code string) [][]Button {
	return [][]Button{{{Text: "Refresh", Data: CbRefresh + code}}}
}

func favouriteButtons(code string) [][]Button {
	return [][]Button{
		{{Text: "Select", Data: CbFavSelect + code}, {Text: "Delete", Data: CbFavDelete + code}},
		{{Text: "Rename", Data: CbFavRename + code}},
	}
}

func scheduleButtons(id int64) [][]Button {
	return [][]Button{{{Text: "Remove", Data: CbScheduleRm + strconv.FormatInt(id, 10)}}}
}

func alertButtons() [][]Button {
	return [][]Button{{{Text: "Yes", Data: CbAlerts + "on"}, {Text: "No", Data: CbAlerts + "off"}}}
}

func settingsButtons() [][]Button {
	return [][]Button{
		{{Text: "Schedule Message", Data: CbScheduleNew}},
		{{Text: "View Scheduled Messages", Data: CbScheduleList}},
	}
}

// MRTMenu offers the current MRT service status.
func MRTMenu() Reply {
	return Reply{Text: messages.MRTIntro, Buttons: [][]Button{{{Text: "MRT Alerts", Data: CbMRTStatus}}}}
}

// selectionKeyboard lays services out three per row, marking selected ones.
// The confirm button shares the last row when there is room.
func selectionKeyboard(services []string, sel model.BusSelection) [][]Button {
	var rows [][]Button
	var row []Button
	for _, svc := range services {
		label := svc
		if sel.Contains(svc) {
			label = "✅ " + svc
		}
		row = append(row, Button{Text: label, Data: CbBus + svc})
		if len(row) == busButtonsInRow {
			rows = append(rows, row)
			row = nil
		}
	}
	row = append(row, Button{Text: "Confirm", Data: CbBusConfirm})
	return append(rows, row)
}

// normalise strips slashes and lowercases, so "/14141" and "14141" match.
func normalise(s string) string {
	return strings.ToLower(strings.TrimSpace(strings.ReplaceAll(s, "/", "")))
}
