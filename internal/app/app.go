// Package app provides the main application logic for the posture service: the
// Engine that turns frames into a stable posture status, and the App that feeds it
// from a pose source.
package app

import (
	"log/slog"
	"sync/atomic"

	"github.com/ayusman/posturecheck/internal/detector"
)

// DefaultMaxConsecutiveErrors is how many source errors in a row Run tolerates.
const DefaultMaxConsecutiveErrors = 10

// Config holds configuration options for the application.
type Config struct {
	Engine *Engine
	Source detector.Source
	// MaxConsecutiveErrors stops Run after this many source errors in a row.
	MaxConsecutiveErrors int
	Logger               *slog.Logger
}

// App drives an Engine from a pose source.
type App struct {
	config Config
	log    *slog.Logger
	frames atomic.Int64
}

// New creates a new App instance with the given configuration.
func New(config Config) *App {
	if config.MaxConsecutiveErrors <= 0 {
		config.MaxConsecutiveErrors = DefaultMaxConsecutiveErrors
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &App{config: config, log: config.Logger}
}

// Engine returns the engine the app feeds.
func (a *App) Engine() *Engine {
	return a.config.Engine
}

// Frames returns the number of frames processed so far.
func (a *App) Frames() int64 {
	return a.frames.Load()
}
