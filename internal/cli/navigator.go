package cli

import "compclient/internal/session"

// viewQuit ends the client loop
const viewQuit session.View = "quit"

// ChanNavigator hands navigation requests to the view loop. Sends never
// block; the first pending request wins.
type ChanNavigator chan session.View

func NewChanNavigator() ChanNavigator {
	return make(ChanNavigator, 1)
}

func (n ChanNavigator) Navigate(view session.View) {
	select {
	case n <- view:
	default:
	}
}
