package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/eternisai/deepr-console/internal/backend"
	apierrors "github.com/eternisai/deepr-console/internal/errors"
	"github.com/eternisai/deepr-console/internal/logger"
	"github.com/eternisai/deepr-console/internal/markdown"
	"github.com/eternisai/deepr-console/internal/metrics"
	"github.com/eternisai/deepr-console/internal/protocol"
)

// Sender is the outbound half of the backend connection.
type Sender interface {
	Send(msg protocol.Outbound) error
	Ready() bool
}

// Exporter fetches the backend's rendered report for a session and
// saves it locally, returning the saved path.
type Exporter interface {
	Export(ctx context.Context, sessionID string) (string, error)
}

// Presenter renders state changes. The manager serializes all calls
// under its own lock, so implementations see them one at a time but
// must not call back into the manager.
type Presenter interface {
	ShowScreen(screen Screen, topic string)
	ShowDepth(depth protocol.Depth)
	ShowStatus(status string)
	ShowLogEntry(entry LogEntry)
	ShowPlanPlaceholder(message string)
	ShowPlan(plan protocol.Plan, html string, refined bool)
	ResetOutput()
	AppendOutput(chunk string, progress int)
	ShowResult(result protocol.Result, html string)
	ShowConnection(state backend.State)
	Notify(message string)
}

// Manager holds the client state and applies backend messages and user
// actions to it. At most one plan and one result are held at a time;
// the latest always replaces the previous.
type Manager struct {
	sender    Sender
	presenter Presenter
	exporter  Exporter
	logger    *logger.Logger
	metrics   *metrics.Metrics

	mu        sync.RWMutex
	sessionID string
	screen    Screen
	depth     protocol.Depth
	topic     string
	plan      *protocol.Plan
	result    *protocol.Result
	status    string
	output    strings.Builder
	progress  int
	logLines  []LogEntry
}

// NewManager creates a manager on the main screen with the given
// default depth.
func NewManager(sender Sender, presenter Presenter, exporter Exporter, log *logger.Logger, m *metrics.Metrics, defaultDepth protocol.Depth) *Manager {
	if !defaultDepth.Valid() {
		defaultDepth = protocol.DepthStandard
	}
	return &Manager{
		sender:    sender,
		presenter: presenter,
		exporter:  exporter,
		logger:    log.WithComponent("session"),
		metrics:   m,
		screen:    ScreenMain,
		depth:     defaultDepth,
	}
}

// Snapshot copies the current client state.
func (m *Manager) Snapshot() State {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st := State{
		SessionID: m.sessionID,
		Screen:    m.screen,
		Depth:     m.depth,
		Topic:     m.topic,
		Status:    m.status,
		Output:    m.output.String(),
		Progress:  m.progress,
		Log:       append([]LogEntry(nil), m.logLines...),
	}
	if m.plan != nil {
		plan := *m.plan
		st.Plan = &plan
	}
	if m.result != nil {
		result := *m.result
		st.Result = &result
	}
	return st
}

// HandleMessage applies one backend message. Messages arrive in
// connection order on a single goroutine; each variant maps to one
// state change plus its presentation.
func (m *Manager) HandleMessage(msg protocol.Inbound) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch msg := msg.(type) {
	case protocol.SessionAssigned:
		m.sessionID = msg.SessionID
		m.logger.Debug("session assigned", slog.String("session_id", msg.SessionID))

	case protocol.StatusUpdate:
		m.setStatusLocked(msg.Message)

	case protocol.PlanGenerated:
		m.applyPlanLocked(msg.Plan, false)

	case protocol.PlanRefined:
		m.applyPlanLocked(msg.Plan, true)

	case protocol.SynthesisStarted:
		m.output.Reset()
		m.progress = 0
		m.presenter.ResetOutput()
		m.setStatusLocked("Synthesizing report...")

	case protocol.SynthesisChunk:
		m.output.WriteString(msg.Chunk)
		if msg.Progress > 0 {
			m.progress = msg.Progress
		}
		m.metrics.ChunksReceived.Inc()
		m.presenter.AppendOutput(msg.Chunk, m.progress)

	case protocol.ResearchComplete:
		result := msg.Result
		m.result = &result
		m.metrics.ReportsCompleted.Inc()
		m.setStatusLocked("Research complete. Report ready to export.")
		m.presenter.ShowResult(result, markdown.RenderResult(result))

	case protocol.BackendError:
		m.setStatusLocked("Error: " + msg.Message)
		m.presenter.Notify(msg.Message)

	case protocol.SessionCleared:
		m.plan = nil
		m.result = nil
		m.output.Reset()
		m.progress = 0
		m.switchScreenLocked(ScreenMain)
		m.setStatusLocked("Session cleared.")
	}
}

// HandleConnectionState mirrors the connection state on the presenter
// and keeps the status line in step with the lifecycle.
func (m *Manager) HandleConnectionState(s backend.State) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.presenter.ShowConnection(s)
	switch s {
	case backend.StateConnecting:
		m.setStatusLocked("Connecting to research backend...")
	case backend.StateOpen:
		m.setStatusLocked("Connected to research backend.")
	case backend.StateClosedPendingRetry:
		m.setStatusLocked("Connection lost. Reconnecting...")
	}
}

// HandleDisconnect drops the session identifier. The backend issues a
// fresh one per connection, so exports must wait for the next
// session_id message.
func (m *Manager) HandleDisconnect(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessionID = ""
	if err != nil {
		m.logger.Debug("connection closed", slog.String("error", err.Error()))
	}
}

// SubmitQuery sends create_plan for a non-empty topic. The plan screen
// opens immediately with a placeholder while the backend works.
func (m *Manager) SubmitQuery(query string) error {
	query = strings.TrimSpace(query)
	if query == "" {
		return m.reject(apierrors.EmptyQuery())
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.topic = query
	if !m.sender.Ready() {
		return m.rejectLocked(apierrors.NotConnected())
	}

	m.switchScreenLocked(ScreenPlan)
	m.presenter.ShowPlanPlaceholder("Generating research plan...")
	if err := m.sender.Send(protocol.CreatePlan{Query: query, Depth: m.depth}); err != nil {
		return m.rejectLocked(err)
	}
	return nil
}

// RefinePlan sends the held plan back with the user's feedback.
func (m *Manager) RefinePlan(feedback string) error {
	feedback = strings.TrimSpace(feedback)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.plan == nil {
		return m.rejectLocked(apierrors.NoPlan())
	}
	if feedback == "" {
		return m.rejectLocked(apierrors.EmptyFeedback())
	}
	if !m.sender.Ready() {
		return m.rejectLocked(apierrors.NotConnected())
	}

	m.switchScreenLocked(ScreenPlan)
	m.presenter.ShowPlanPlaceholder("Refining research plan...")
	msg := protocol.RefinePlan{
		Query:       m.topic,
		Depth:       m.depth,
		Feedback:    feedback,
		CurrentPlan: *m.plan,
	}
	if err := m.sender.Send(msg); err != nil {
		return m.rejectLocked(err)
	}
	return nil
}

// StartResearch executes the held plan. Prior streamed output is
// cleared and the research screen opens; the previous result stays
// until the new one replaces it.
func (m *Manager) StartResearch() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.plan == nil {
		return m.rejectLocked(apierrors.NoPlan())
	}
	if !m.sender.Ready() {
		return m.rejectLocked(apierrors.NotConnected())
	}

	m.output.Reset()
	m.progress = 0
	m.presenter.ResetOutput()
	m.switchScreenLocked(ScreenResearch)
	m.setStatusLocked("Starting research...")
	if err := m.sender.Send(protocol.ExecuteResearch{Plan: *m.plan}); err != nil {
		return m.rejectLocked(err)
	}
	return nil
}

// ClearSession asks the backend to drop its session caches. Local
// state resets when the cleared confirmation arrives.
func (m *Manager) ClearSession() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.sender.Ready() {
		return m.rejectLocked(apierrors.NotConnected())
	}
	if err := m.sender.Send(protocol.ClearSession{}); err != nil {
		return m.rejectLocked(err)
	}
	return nil
}

// ToggleDepth flips between standard and deep and returns the new
// value.
func (m *Manager) ToggleDepth() protocol.Depth {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.depth = m.depth.Toggle()
	m.presenter.ShowDepth(m.depth)
	return m.depth
}

// SwitchScreen activates the named screen. Switching to the already
// active screen is a no-op.
func (m *Manager) SwitchScreen(s Screen) error {
	if !s.Valid() {
		return fmt.Errorf("unknown screen %q", s)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.switchScreenLocked(s)
	return nil
}

// ExportReport asks the backend for the rendered report file and saves
// it in the download directory. Requires a session identifier the
// backend has assigned on this connection.
func (m *Manager) ExportReport(ctx context.Context) (string, error) {
	m.mu.RLock()
	sessionID := m.sessionID
	m.mu.RUnlock()

	if sessionID == "" {
		return "", m.reject(apierrors.NoActiveSession())
	}

	// Tag the request so the export log lines carry correlation ids.
	ctx = logger.WithSessionID(ctx, sessionID)
	ctx = logger.WithRequestID(ctx, logger.GenerateRequestID())

	start := time.Now()
	path, err := m.exporter.Export(ctx, sessionID)
	m.metrics.ExportDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		m.metrics.Exports.WithLabelValues("failure").Inc()
		return "", m.reject(err)
	}
	m.metrics.Exports.WithLabelValues("success").Inc()

	m.mu.Lock()
	m.setStatusLocked("Report saved to " + path)
	m.mu.Unlock()
	return path, nil
}

func (m *Manager) applyPlanLocked(plan protocol.Plan, refined bool) {
	held := plan
	m.plan = &held
	m.presenter.ShowPlan(plan, markdown.RenderPlan(plan), refined)
}

// setStatusLocked updates the one-line status label and appends a
// timestamped entry to the append-only log.
func (m *Manager) setStatusLocked(status string) {
	m.status = status
	entry := LogEntry{Time: time.Now(), Message: status}
	m.logLines = append(m.logLines, entry)
	m.presenter.ShowStatus(status)
	m.presenter.ShowLogEntry(entry)
}

func (m *Manager) switchScreenLocked(s Screen) {
	if m.screen == s {
		return
	}
	m.screen = s
	m.presenter.ShowScreen(s, m.topic)
}

func (m *Manager) reject(err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rejectLocked(err)
}

// rejectLocked surfaces a failed action to the user and hands the
// error back to the caller. Nothing is queued for retry.
func (m *Manager) rejectLocked(err error) error {
	m.presenter.Notify(userMessage(err))
	return err
}

// userMessage prefers the display text of a ClientError over the
// technical error string.
func userMessage(err error) string {
	var clientErr *apierrors.ClientError
	if errors.As(err, &clientErr) && clientErr.UIMessage != "" {
		return clientErr.UIMessage
	}
	return err.Error()
}
