package engine

import (
	"context"
	"log/slog"

	"github.com/talgya/tradeworld/internal/agents"
)

// Event categories.
const (
	CategoryPayroll    = "payroll"
	CategoryProduction = "production"
	CategoryTrade      = "trade"
	CategoryOrders     = "orders"
	CategoryPricing    = "pricing"
	CategoryInvariant  = "invariant"
)

// Event is a notable occurrence, tagged with the day it happened.
type Event struct {
	Day         uint64         `json:"day"`
	Category    string         `json:"category"`
	Agent       agents.AgentID `json:"agent,omitempty"`
	Description string         `json:"description"`
}

// EventSink receives events as the pipeline emits them. Sinks are called
// from the simulation goroutine only.
type EventSink interface {
	Record(e Event)
}

// SinkFunc adapts a function to EventSink.
type SinkFunc func(e Event)

// Record implements EventSink.
func (f SinkFunc) Record(e Event) { f(e) }

// LogSink writes events to a slog logger. Invariant violations are logged
// at error level, payroll shortfalls at info, everything else at debug.
type LogSink struct {
	Logger *slog.Logger
}

// Record implements EventSink.
func (s LogSink) Record(e Event) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	level := slog.LevelDebug
	switch e.Category {
	case CategoryInvariant:
		level = slog.LevelError
	case CategoryPayroll:
		level = slog.LevelInfo
	}
	logger.Log(context.Background(), level, "event",
		"day", e.Day,
		"category", e.Category,
		"agent", e.Agent,
		"description", e.Description,
	)
}
