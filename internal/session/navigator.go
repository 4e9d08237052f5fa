package session

// View is a client screen the session can send the user to
type View string

const (
	ViewLogin     View = "login"
	ViewDashboard View = "dashboard"
	ViewSession   View = "competition"
	ViewResults   View = "results"
)

// Navigator moves the user between views
type Navigator interface {
	Navigate(view View)
}

// NavigatorFunc adapts a function to Navigator
type NavigatorFunc func(View)

func (f NavigatorFunc) Navigate(view View) {
	f(view)
}
