package handlers

import (
	"context"
	"strings"
	"sync"

	"github.com/ternarybob/arbor"
	arborlevels "github.com/ternarybob/arbor/levels"
	arbormodels "github.com/ternarybob/arbor/models"

	"github.com/ternarybob/scriptor/internal/common"
)

// Buffer of log batches between arbor and the broadcast goroutine. Arbor
// drops batches when the channel is full rather than blocking the logger.
const logChannelCapacity = 10

var defaultExcludePatterns = []string{
	"WebSocket client connected",
	"WebSocket client disconnected",
	"HTTP request",
	"HTTP response",
}

// WebSocketWriter drains arbor's log channel and streams matching entries to
// WebSocket clients. Level and pattern filters come from the websocket
// config section.
type WebSocketWriter struct {
	handler         *WebSocketHandler
	logger          arbor.ILogger
	channel         chan []arbormodels.LogEvent
	ctx             context.Context
	cancel          context.CancelFunc
	wg              sync.WaitGroup
	minLevel        arbor.LogLevel
	excludePatterns []string
}

// NewWebSocketWriter creates a stopped writer. Wire it up with
// logger.SetChannel(name, writer.Channel()) then call Start.
func NewWebSocketWriter(handler *WebSocketHandler, logger arbor.ILogger, wsConfig *common.WebSocketConfig) *WebSocketWriter {
	minLevel := arbor.InfoLevel
	excludePatterns := defaultExcludePatterns
	if wsConfig != nil {
		minLevel = parseLogLevel(wsConfig.MinLevel)
		if len(wsConfig.ExcludePatterns) > 0 {
			excludePatterns = wsConfig.ExcludePatterns
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &WebSocketWriter{
		handler:         handler,
		logger:          logger,
		channel:         make(chan []arbormodels.LogEvent, logChannelCapacity),
		ctx:             ctx,
		cancel:          cancel,
		minLevel:        minLevel,
		excludePatterns: excludePatterns,
	}
}

// Channel returns the channel for arbor to send log batches to
func (w *WebSocketWriter) Channel() chan []arbormodels.LogEvent {
	return w.channel
}

// Start launches the drain goroutine
func (w *WebSocketWriter) Start() {
	w.wg.Add(1)
	go w.drain()
}

// Stop shuts the writer down and waits for the drain goroutine to exit
func (w *WebSocketWriter) Stop() {
	w.cancel()
	w.wg.Wait()
}

func (w *WebSocketWriter) drain() {
	defer w.wg.Done()

	for {
		select {
		case batch, ok := <-w.channel:
			if !ok {
				return
			}
			for _, event := range batch {
				if !w.shouldStream(event) {
					continue
				}
				// Broadcast must not log through arbor: the entry would come
				// straight back through this channel.
				w.handler.BroadcastLog(LogEntry{
					Timestamp: event.Timestamp.Format("15:04:05"),
					Level:     mapLevel(arborlevels.FromLogLevel(event.Level)),
					Message:   event.Message,
				})
			}
		case <-w.ctx.Done():
			return
		}
	}
}

func (w *WebSocketWriter) shouldStream(event arbormodels.LogEvent) bool {
	if arborlevels.FromLogLevel(event.Level) < w.minLevel {
		return false
	}
	for _, pattern := range w.excludePatterns {
		if strings.Contains(event.Message, pattern) {
			return false
		}
	}
	return true
}

// parseLogLevel converts a config string to an arbor log level
func parseLogLevel(level string) arbor.LogLevel {
	switch strings.ToLower(level) {
	case "error":
		return arbor.ErrorLevel
	case "warn", "warning":
		return arbor.WarnLevel
	case "info":
		return arbor.InfoLevel
	case "debug":
		return arbor.DebugLevel
	default:
		return arbor.InfoLevel
	}
}

// mapLevel maps arbor log levels to UI strings
func mapLevel(level arbor.LogLevel) string {
	switch level {
	case arbor.ErrorLevel:
		return "error"
	case arbor.WarnLevel:
		return "warn"
	case arbor.InfoLevel:
		return "info"
	case arbor.DebugLevel:
		return "debug"
	default:
		return "info"
	}
}
