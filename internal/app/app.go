package app

import (
	"compclient/internal/api"
	"compclient/internal/cache"
	"compclient/internal/config"
)

// App holds the client's long-lived dependencies
type App struct {
	Config    *config.ClientConfig
	API       *api.Client
	Flags     cache.FlagStore
	Auth      *Auth
	Dashboard *Dashboard
	Results   *Results
}

// New wires the client application around one API client and flag store
func New(cfg *config.ClientConfig, flags cache.FlagStore) *App {
	client := api.NewClient(cfg.APIBaseURL, cfg.RequestTimeout)
	return &App{
		Config:    cfg,
		API:       client,
		Flags:     flags,
		Auth:      NewAuth(client),
		Dashboard: NewDashboard(client, flags, cfg.CompetitionLength),
		Results:   NewResults(client),
	}
}
