package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"compclient/internal/api"
	"compclient/internal/app"
	"compclient/internal/model"
	"compclient/internal/session"
)

const (
	defaultUnloadGrace = 3 * time.Second

	dashboardHelp = `Commands: refresh, start, resume, results, logout, quit`
	resultsHelp   = `Commands: dashboard, logout, quit`
)

// Runner drives the client views over a line-oriented terminal
type Runner struct {
	app   *app.App
	out   io.Writer
	lines <-chan string

	username string
	password string

	// started carries a session from the dashboard into the session view
	started *app.Started

	// resumeFailed keeps the dashboard from bouncing straight back into a
	// session that could not be rebuilt
	resumeFailed bool

	UnloadGrace time.Duration
}

// NewRunner reads commands from in and writes views to out
func NewRunner(a *app.App, in io.Reader, out io.Writer) *Runner {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 64*1024), 1<<20)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	return &Runner{
		app:         a,
		out:         out,
		lines:       lines,
		username:    a.Config.Username,
		password:    a.Config.Password,
		UnloadGrace: defaultUnloadGrace,
	}
}

func (r *Runner) println(a ...interface{}) {
	fmt.Fprintln(r.out, a...)
}

func (r *Runner) prompt(ctx context.Context, label string) (string, bool) {
	fmt.Fprint(r.out, label)
	select {
	case <-ctx.Done():
		return "", false
	case line, ok := <-r.lines:
		return line, ok
	}
}

// Run moves between views until the user quits or ctx ends
func (r *Runner) Run(ctx context.Context) error {
	view := session.ViewLogin
	for view != viewQuit {
		if ctx.Err() != nil {
			return nil
		}
		log.Printf("[Client] View: %s", view)
		switch view {
		case session.ViewLogin:
			view = r.login(ctx)
		case session.ViewDashboard:
			view = r.dashboard(ctx)
		case session.ViewSession:
			view = r.competition(ctx)
		case session.ViewResults:
			view = r.results(ctx)
		default:
			view = session.ViewDashboard
		}
	}
	return nil
}

func (r *Runner) login(ctx context.Context) session.View {
	if user, err := r.app.Auth.CheckAuth(ctx); err == nil && user != nil {
		return session.ViewDashboard
	}

	username, password := r.username, r.password
	if username == "" {
		line, ok := r.prompt(ctx, "Username: ")
		if !ok {
			return viewQuit
		}
		username = line
	}
	if password == "" {
		line, ok := r.prompt(ctx, "Password: ")
		if !ok {
			return viewQuit
		}
		password = line
	}

	user, err := r.app.Auth.Login(ctx, username, password)
	if err != nil {
		if ctx.Err() != nil {
			return viewQuit
		}
		r.println(api.Message(err, "Login failed"))
		// configured credentials were wrong; ask from now on
		r.username, r.password = "", ""
		return session.ViewLogin
	}
	r.println("Welcome,", user.Username)
	return session.ViewDashboard
}

func (r *Runner) dashboard(ctx context.Context) session.View {
	dash := r.app.Dashboard
	o, err := dash.Load(ctx)
	switch {
	case err != nil && api.IsAuth(err):
		return session.ViewLogin
	case err != nil:
		if ctx.Err() != nil {
			return viewQuit
		}
		r.println(app.LoadFailedMessage)
	case o.Redirect == session.ViewSession && r.resumeFailed:
		r.resumeFailed = false
		r.println(RenderOverview(o, ""))
	case o.Redirect != "":
		return o.Redirect
	default:
		countdown, _ := dash.Countdown(time.Now())
		r.println(RenderOverview(o, countdown))
	}
	r.println(dashboardHelp)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return viewQuit

		case now := <-ticker.C:
			cur := dash.Overview()
			if cur == nil {
				continue
			}
			if _, ok := dash.Countdown(now); ok {
				continue
			}
			if cur.Config.Status != model.PhaseUpcoming && cur.Config.Status != model.PhaseInProgressCanEnter {
				continue
			}
			ran, err := dash.Refresh(ctx)
			if !ran || err != nil {
				continue
			}
			next := dash.Overview()
			if next.Redirect != "" {
				return next.Redirect
			}
			if next.Config.Status != cur.Config.Status {
				countdown, _ := dash.Countdown(now)
				r.println(RenderOverview(next, countdown))
			}

		case line, ok := <-r.lines:
			if !ok {
				return viewQuit
			}
			cmd, _ := splitCommand(line)
			switch cmd {
			case "":
			case "refresh", "show":
				return session.ViewDashboard
			case "start":
				started, err := dash.Start(ctx)
				if err != nil {
					if errors.Is(err, api.ErrUnauthorized) {
						return session.ViewLogin
					}
					r.println(app.StartMessage(err))
					continue
				}
				r.started = started
				return session.ViewSession
			case "resume":
				return session.ViewSession
			case "results":
				return session.ViewResults
			case "logout":
				r.app.Auth.Logout(ctx)
				return session.ViewLogin
			case "quit", "exit":
				return viewQuit
			default:
				r.println(dashboardHelp)
			}
		}
	}
}

func (r *Runner) competition(ctx context.Context) session.View {
	started := r.started
	r.started = nil
	if started == nil {
		resumed, err := r.app.Dashboard.Resume(ctx)
		if err != nil {
			if api.IsAuth(err) {
				return session.ViewLogin
			}
			r.println("No active competition session.")
			r.resumeFailed = true
			return session.ViewDashboard
		}
		started = resumed
	}

	nav := NewChanNavigator()
	ctrl := session.NewController(started.Session, started.Questions, r.app.API, r.app.API, r.app.Flags, nav, session.Options{
		PollInterval: r.app.Config.PollInterval,
		ResultsDelay: r.app.Config.ResultsDelay,
	})
	defer ctrl.Close()

	if err := ctrl.Mount(ctx); err != nil {
		if msg := ctrl.Err(); msg != "" {
			r.println(msg)
		}
		return session.ViewDashboard
	}

	sctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if r.app.Config.PushEnabled {
		if notices, err := r.app.API.SubscribeStatus(sctx); err != nil {
			log.Printf("[Client] Push channel unavailable, polling only: %v", err)
		} else {
			go ctrl.Reconciler().Watch(sctx, notices)
		}
	}

	commands := NewSessionCommands(ctrl)
	r.println(RenderQuestion(ctrl))

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	timeUpShown := false
	for {
		select {
		case <-ctx.Done():
			r.unload(ctrl)
			return viewQuit

		case view := <-nav:
			if view == session.ViewResults {
				r.println("Your answers have been submitted.")
			}
			return view

		case <-ticker.C:
			if !timeUpShown && ctrl.Countdown() == session.TimeUpText {
				timeUpShown = true
				r.println("Time Up! Submitting your answers...")
			}

		case line, ok := <-r.lines:
			if !ok {
				r.unload(ctrl)
				return viewQuit
			}
			out, quit := commands.Handle(ctx, line)
			if out != "" {
				r.println(out)
			}
			if quit {
				r.unload(ctrl)
				return viewQuit
			}
		}
	}
}

// unload fires the final sweep and waits a short grace period for it
func (r *Runner) unload(ctrl *session.Controller) {
	done := ctrl.Unload()
	if done == nil {
		return
	}
	select {
	case <-done:
	case <-time.After(r.UnloadGrace):
		log.Printf("[Client] Exiting before the final submission settled")
	}
}

func (r *Runner) results(ctx context.Context) session.View {
	for _, line := range r.app.Results.Lines(ctx) {
		r.println(line)
	}
	r.println(resultsHelp)

	for {
		select {
		case <-ctx.Done():
			return viewQuit
		case line, ok := <-r.lines:
			if !ok {
				return viewQuit
			}
			cmd, _ := splitCommand(line)
			switch cmd {
			case "":
			case "dashboard", "back":
				return session.ViewDashboard
			case "logout":
				r.app.Auth.Logout(ctx)
				return session.ViewLogin
			case "quit", "exit":
				return viewQuit
			default:
				r.println(resultsHelp)
			}
		}
	}
}
