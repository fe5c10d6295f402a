package bot

import (
	"strings"

	"sgbus_bot/internal/dialogue"
)

// Callback is parsed inline button data: the action prefix and its argument.
type Callback struct {
	Action string
	Arg    string
}

var (
	callbackActions = []string{
		dialogue.CbFavSelect,
		dialogue.CbFavDelete,
		dialogue.CbFavRename,
		dialogue.CbScheduleRm,
		dialogue.CbBus,
		dialogue.CbAlerts,
		dialogue.CbRefresh,
		dialogue.CbRoutes,
	}
	callbackValues = []string{
		dialogue.CbScheduleNew,
		dialogue.CbScheduleList,
		dialogue.CbBusConfirm,
		dialogue.CbMRTStatus,
	}
)

// ParseCallback splits callback data into action and argument. Prefixed
// actions require a non-empty argument.
func ParseCallback(data string) (Callback, bool) {
	for _, v := range callbackValues {
		if data == v {
			return Callback{Action: v}, true
		}
	}
	for _, prefix := range callbackActions {
		if arg, ok := strings.CutPrefix(data, prefix); ok {
			arg = strings.TrimSpace(arg)
			if arg == "" {
				return Callback{}, false
			}
			return Callback{Action: prefix, Arg: arg}, true
		}
	}
	return Callback{}, false
}

// displayName joins a user's first and last name.
func displayName(first, last string) string {
	return strings.TrimSpace(first + " " + last)
}
