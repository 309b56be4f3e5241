package statemachine

import tele "gopkg.in/telebot.v3"

const (
	msgGreeting       = "Hi! You can get a track from Spotify or Youtube using this bot :)"
	msgUsage          = "Usage:\n/loadtrack _Spotify or YTMusic URL_ \\- Get a track \n"
	msgInvalidURL     = "Invalid URL. Check if you're trying to download a track, not an album or any other playlist"
	msgPleaseWait     = "Downloading the track can take up to a minute, please wait :)"
	msgDownloadFailed = "Couldn't download the track. Check your URL"
	msgInterrupted    = "Your previous download was interrupted. Please send the link again."
	msgCancelled      = "Cancelled. Send /loadtrack with a link to get a track."
	msgUnsupported    = "This message type is unsupported by the bot"
	msgConnect        = "Your connection phrase is:\n%s\n\nUse it to link your account in the MusicPipe app."
	msgUnavailable    = "The service is unavailable right now. Try later."
	msgAnotherTrack   = "Send /loadtrack with a link to get another track."
	msgFarewell       = "Enjoy your music!"

	msgHandlingFailed = "Error occurred on state handling. Try your request later."
	msgUpdateFailed   = "Unexpected error occurred on state updating. Try later"
	msgStateFailed    = "Failed to get or add user state"
)

// Post-processing buttons
var (
	btnAgain = tele.Btn{
		Unique: "pp_again",
		Text:   "Get another track",
	}
	btnDone = tele.Btn{
		Unique: "pp_done",
		Text:   "Done",
	}
)

// postProcessMarkup returns the keyboard attached to a delivered track
func postProcessMarkup() *tele.ReplyMarkup {
	menu := &tele.ReplyMarkup{}
	menu.Inline(
		menu.Row(btnAgain, btnDone),
	)
	return menu
}
