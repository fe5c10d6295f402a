// Package messages holds the user-facing texts of the bot.
package messages

import (
	"fmt"
	"strings"

	"sgbus_bot/internal/model"
)

// Fixed replies.
const (
	Welcome = `Welcome! This is a Singapore Bus Bot.

You can send me your:
   1. Bus Number
   2. Bus Stop Code
   3. Road or bus stop name
And I will tell you your bus arrival timings!

Type "/" to see what else this bot can do.
Use /stop to stop the bot.`

	Help = `Send a 5 digit bus stop code (e.g. 14141) to see arrival timings.
Send a bus number (e.g. 10) to see its route.
Send a road or stop name (e.g. Sengkang East) to search for stops.

/favourites - show your favourite stops
/add_favourites <code> - add a stop to favourites
/settings - scheduled messages and MRT alerts
/mrt - current MRT service status
/feedback - report a problem
/stop - stop the bot`

	CannotUnderstand = `Sorry😣! We could not understand what you just said.

If you had typed a bus stop code, ensure that it is 5 digits.
    e.g: 67729

If you had typed a bus number, ensure that it is less than 5 digits/alphabets.
    e.g: 88

If you had typed a location, ensure that it is more specific and accurate.
    e.g: Sengkang East Ave, not Singkang E`

	Unavailable = "Bus arrival data is temporarily unavailable. Please try again in a moment."

	Unauthorized = "Sorry, you are not authorized to use this bot."

	InternalError = "Something went wrong on our side. Please try again."

	ChangeStop = "Type in a bus stop code, bus number or road name to look up another stop."

	StopBot = `Bye!
You can use /start to start the bot again.
We hope to see you again :)`

	NoFavourites = `You do not have any favourite bus stop code.

To add a bus stop code to favourites, type: /add_favourites [BUS STOP CODE]

  e.g: /add_favourites 14141

Alternatively, you can type in your bus stop code and click on the "Add to Favourites ❤" KeyBoard Button!`

	AddFavouriteHelp = `To add a bus stop code to favourites, type: /add_favourites [BUS STOP CODE]

  e.g: /add_favourites 14141

Alternatively, you can type in your bus stop code and click on the "Add to Favourites ❤" KeyBoard Button!`

	NoRecentStop = "Send a bus stop code first, then tap \"Add to Favourites ❤\"."

	RenameQuit = "Quit Renaming Bus Stop..."

	FeedbackPrompt = `Please type in your feedback if there are any bugs/problems and we will look into it ASAP!

Click/Type /exit to stop giving feedback.`
	FeedbackThanks   = "Thank you for your feedback!"
	FeedbackQuit     = "Quit Feedback Section..."
	FeedbackTooShort = `Please type in a feedback that is appropriate/longer.

Click/Type /exit to stop giving feedback.`

	ScheduleQuit       = "Quit Scheduling Message..."
	ScheduleAskStop    = "Enter 5 digit bus stop code:\ne.g: 14141\n\nClick/Type /exit to stop scheduling message."
	ScheduleSelectHint = `Please select your bus timings you want to be notified on.

Click/Type /exit to stop scheduling message.`
	ScheduleTimeInvalid = `Invalid time format. Time should strictly follow the 24 hr format shown below.

Type 0630 to represent 6:30AM.
Type 1930 to represent 7:30PM.

Click/Type /exit to stop scheduling message.`
	ScheduleNotActive = "This schedule is no longer being set up. Use /settings to start again."
	NoSchedules       = `No Scheduled Messages.

To schedule a message, click on the "Schedule Message" button in /settings!`
	ScheduleRemoved = "Scheduled message removed."

	SettingsIntro  = "Set reminders for your bus timings at a scheduled time daily!"
	MRTIntro       = "Note that MRT Service Alerts will only be sent if there are breakdowns or delays."
	MRTUnavailable = "MRT service status is temporarily unavailable. Please try again later."
)

// InvalidStopCode is the free-form reply for an unknown 5-digit code.
func InvalidStopCode(code string) string {
	return fmt.Sprintf("%s is not a valid bus stop code. Please try again!", code)
}

// NoBusData is the reply for an unknown service number.
func NoBusData(serviceNo string) string {
	return fmt.Sprintf("There is currently no data for bus number %s!", serviceNo)
}

// BusPrompt introduces a service number with its route button.
func BusPrompt(serviceNo string) string {
	return "Bus /" + serviceNo
}

// RenamePrompt asks for the new name of a favourite.
func RenamePrompt(f model.Favourite) string {
	if f.CustomDescription == "" || f.CustomDescription == f.Description {
		return fmt.Sprintf("Renaming in process:\nPlease rename %s.\n\nClick/Type /exit to stop renaming.", f.Description)
	}
	return fmt.Sprintf("Renaming in process:\nOriginal: %s.\nCurrent: %s.\n\nClick/Type /exit to stop renaming.",
		f.Description, f.CustomDescription)
}

// RenameDone confirms a rename.
func RenameDone(original, renamed string) string {
	return fmt.Sprintf("Successful!\nOriginal: %s\nNew: %s", original, renamed)
}

// FavouriteAdded confirms a new favourite.
func FavouriteAdded(code string) string {
	return fmt.Sprintf("Bus Stop Code /%s has been added to your favourites!\nTo view all your favourites, type: /favourites", code)
}

// FavouriteInvalid rejects an /add_favourites argument.
func FavouriteInvalid(arg string) string {
	return fmt.Sprintf("%s is not a valid Bus Stop Code!\n\nTo add to favourites, type: /add_favourites [BUS STOP CODE]\n\n  e.g: /add_favourites 14141", arg)
}

// FavouriteDeleted confirms a removed favourite.
func FavouriteDeleted(code string) string {
	return fmt.Sprintf("Bus Stop Code /%s has been deleted!\n\nTo add another bus stop code, type: /add_favourites [BUS STOP CODE]\n\n  e.g: /add_favourites 14141", code)
}

// FormatFavourite renders one favourite entry.
func FormatFavourite(f model.Favourite) string {
	return fmt.Sprintf("%s\nBus Stop Code: /%s", f.DisplayName(), f.StopCode)
}

// ScheduleUnknownStop rejects a well-formed code missing from the directory.
func ScheduleUnknownStop(code string) string {
	return fmt.Sprintf("Bus Stop Code %s is not valid. Please check again.\n\nClick/Type /exit to stop scheduling message.", code)
}

// ScheduleBadStopCode rejects input that is not a 5-digit code.
func ScheduleBadStopCode(text string) string {
	return fmt.Sprintf("%s is not a valid bus stop code. Bus stop code should be 5 digits. Please try again!\n\nClick/Type /exit to stop scheduling message.", text)
}

// ScheduleSelectBuses explains the bus selection step.
func ScheduleSelectBuses(code string, sel model.BusSelection) string {
	return fmt.Sprintf(`Bus Stop Code %s
You can select the bus numbers that you want to receive their arrival timings.

If you did not select any, all bus timings will be shown on the scheduled message.

You can select up to %d buses per message.

Click confirm after selecting your bus numbers.

Click/Type /exit to stop scheduling message.

Bus Selected: %s`, code, model.MaxSelectedBuses, SelectionLabel(sel))
}

// ScheduleAskTime asks for the delivery time.
func ScheduleAskTime(code string) string {
	return fmt.Sprintf(`Bus Stop Code %s
Please type in the time you want your message to be scheduled. Time should strictly follow the 24 hr format shown below.

Type 0630 to represent 6:30AM.
Type 1930 to represent 7:30PM.

Click/Type /exit to stop scheduling message.`, code)
}

// ScheduleConfirmed confirms a finalized schedule.
func ScheduleConfirmed(s model.Schedule) string {
	return fmt.Sprintf(`You will receive message at %sH for %s (/%s).

Bus: %s

You can view all your schedules at /settings and clicking the "View Scheduled Messages" button`,
		compactTime(s.TimeOfDay), s.Description, s.StopCode, SelectionLabel(s.Buses))
}

// ScheduleDuplicate reports that an identical schedule already exists.
func ScheduleDuplicate(s model.Schedule) string {
	return fmt.Sprintf("You already receive a message at %sH for %s (/%s).", compactTime(s.TimeOfDay), s.Description, s.StopCode)
}

// FormatSchedule renders a stored schedule.
func FormatSchedule(s model.Schedule) string {
	return fmt.Sprintf("Bus Stop: %s\nBus Stop Code: /%s\nBuses: %s\nTime: %sH\nFrequency: Daily",
		s.Description, s.StopCode, SelectionLabel(s.Buses), compactTime(s.TimeOfDay))
}

// AlertsPrompt asks whether the user wants MRT alerts.
func AlertsPrompt(optIn bool) string {
	answer := "No"
	if optIn {
		answer = "Yes"
	}
	return fmt.Sprintf("Do you want to receive MRT alert messages in the event of MRT breakdowns/delays?\n\nYour current answer is: %s", answer)
}

// SelectionLabel renders a bus selection, "ALL" when empty.
func SelectionLabel(sel model.BusSelection) string {
	if sel.IsAll() {
		return "ALL"
	}
	return strings.Join(sel.Buses(), ", ")
}

func compactTime(hhmm string) string {
	if len(hhmm) == 5 && hhmm[2] == ':' {
		return hhmm[:2] + hhmm[3:]
	}
	return hhmm
}
