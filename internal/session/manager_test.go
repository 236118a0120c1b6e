package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/eternisai/deepr-console/internal/backend"
	apierrors "github.com/eternisai/deepr-console/internal/errors"
	"github.com/eternisai/deepr-console/internal/logger"
	"github.com/eternisai/deepr-console/internal/metrics"
	"github.com/eternisai/deepr-console/internal/protocol"
)

// fakeSender records outbound messages instead of writing to a socket.
type fakeSender struct {
	ready bool
	sent  []protocol.Outbound
	err   error
}

func (f *fakeSender) Send(msg protocol.Outbound) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeSender) Ready() bool { return f.ready }

// fakePresenter records every presentation call in order.
type fakePresenter struct {
	screens       []Screen
	depths        []protocol.Depth
	statuses      []string
	logEntries    []LogEntry
	placeholders  []string
	planHTML      []string
	planRefined   []bool
	outputResets  int
	outputChunks  []string
	resultHTML    []string
	connections   []backend.State
	notifications []string
}

func (f *fakePresenter) ShowScreen(s Screen, topic string)  { f.screens = append(f.screens, s) }
func (f *fakePresenter) ShowDepth(d protocol.Depth)         { f.depths = append(f.depths, d) }
func (f *fakePresenter) ShowStatus(status string)           { f.statuses = append(f.statuses, status) }
func (f *fakePresenter) ShowLogEntry(entry LogEntry)        { f.logEntries = append(f.logEntries, entry) }
func (f *fakePresenter) ShowPlanPlaceholder(message string) { f.placeholders = append(f.placeholders, message) }
func (f *fakePresenter) ShowPlan(plan protocol.Plan, html string, refined bool) {
	f.planHTML = append(f.planHTML, html)
	f.planRefined = append(f.planRefined, refined)
}
func (f *fakePresenter) ResetOutput() { f.outputResets++ }
func (f *fakePresenter) AppendOutput(chunk string, progress int) {
	f.outputChunks = append(f.outputChunks, chunk)
}
func (f *fakePresenter) ShowResult(result protocol.Result, html string) {
	f.resultHTML = append(f.resultHTML, html)
}
func (f *fakePresenter) ShowConnection(s backend.State) { f.connections = append(f.connections, s) }
func (f *fakePresenter) Notify(message string)          { f.notifications = append(f.notifications, message) }

// fakeExporter records the session id it was asked to export.
type fakeExporter struct {
	path      string
	err       error
	sessionID string
	calls     int
}

func (f *fakeExporter) Export(ctx context.Context, sessionID string) (string, error) {
	f.calls++
	f.sessionID = sessionID
	if f.err != nil {
		return "", f.err
	}
	return f.path, nil
}

func newTestManager() (*Manager, *fakeSender, *fakePresenter, *fakeExporter) {
	log := logger.New(logger.Config{Level: slog.LevelError}) // Reduce noise in tests
	sender := &fakeSender{ready: true}
	presenter := &fakePresenter{}
	exporter := &fakeExporter{path: "downloads/research_report.md"}
	m := NewManager(sender, presenter, exporter, log, metrics.New(), protocol.DepthStandard)
	return m, sender, presenter, exporter
}

func TestSubmitQuerySendsCreatePlan(t *testing.T) {
	m, sender, presenter, _ := newTestManager()

	if err := m.SubmitQuery("Future of fusion energy"); err != nil {
		t.Fatalf("SubmitQuery failed: %v", err)
	}

	if len(sender.sent) != 1 {
		t.Fatalf("expected 1 message sent, got %d", len(sender.sent))
	}
	create, ok := sender.sent[0].(protocol.CreatePlan)
	if !ok {
		t.Fatalf("expected CreatePlan, got %T", sender.sent[0])
	}
	if create.Query != "Future of fusion energy" {
		t.Errorf("expected query preserved, got %q", create.Query)
	}
	if create.Depth != protocol.DepthStandard {
		t.Errorf("expected depth standard, got %q", create.Depth)
	}

	if got := m.Snapshot().Screen; got != ScreenPlan {
		t.Errorf("expected plan screen, got %q", got)
	}
	if len(presenter.placeholders) != 1 || !strings.Contains(presenter.placeholders[0], "Generating") {
		t.Errorf("expected generating placeholder, got %v", presenter.placeholders)
	}
}

func TestSubmitQueryEmptyRejected(t *testing.T) {
	m, sender, presenter, _ := newTestManager()

	err := m.SubmitQuery("   ")
	if !errors.Is(err, apierrors.EmptyQuery()) {
		t.Fatalf("expected EmptyQuery, got %v", err)
	}
	if len(sender.sent) != 0 {
		t.Errorf("expected nothing sent, got %d messages", len(sender.sent))
	}
	if len(presenter.notifications) != 1 {
		t.Errorf("expected one notification, got %v", presenter.notifications)
	}
	if got := m.Snapshot().Screen; got != ScreenMain {
		t.Errorf("expected main screen, got %q", got)
	}
}

func TestSubmitQueryRejectedWhileDisconnected(t *testing.T) {
	m, sender, presenter, _ := newTestManager()
	sender.ready = false

	err := m.SubmitQuery("anything")
	if !errors.Is(err, apierrors.NotConnected()) {
		t.Fatalf("expected NotConnected, got %v", err)
	}
	if len(sender.sent) != 0 {
		t.Errorf("expected nothing sent, got %d messages", len(sender.sent))
	}
	if len(presenter.notifications) != 1 {
		t.Errorf("expected one notification, got %v", presenter.notifications)
	}
	if got := m.Snapshot().Screen; got != ScreenMain {
		t.Errorf("screen should not switch on a rejected send, got %q", got)
	}
}

func TestPlanGeneratedRendersSubTopicsInOrder(t *testing.T) {
	m, _, presenter, _ := newTestManager()

	m.HandleMessage(protocol.PlanGenerated{Plan: protocol.Plan{
		Query:     "Future of fusion energy",
		Depth:     protocol.DepthStandard,
		SubTopics: []string{"Tokamak design", "ITER project"},
	}})

	if len(presenter.planHTML) != 1 {
		t.Fatalf("expected one plan render, got %d", len(presenter.planHTML))
	}
	html := presenter.planHTML[0]
	first := strings.Index(html, "<li>Tokamak design</li>")
	second := strings.Index(html, "<li>ITER project</li>")
	if first == -1 || second == -1 {
		t.Fatalf("expected both list items, got %s", html)
	}
	if first > second {
		t.Errorf("expected sub-topics in order, got %s", html)
	}
	if presenter.planRefined[0] {
		t.Error("plan_generated must not be marked refined")
	}
	if m.Snapshot().Plan == nil {
		t.Error("plan not stored")
	}
}

func TestPlanRefinedReplacesPlan(t *testing.T) {
	m, _, presenter, _ := newTestManager()

	m.HandleMessage(protocol.PlanGenerated{Plan: protocol.Plan{SubTopics: []string{"old"}}})
	m.HandleMessage(protocol.PlanRefined{Plan: protocol.Plan{SubTopics: []string{"new"}}})

	snap := m.Snapshot()
	if len(snap.Plan.SubTopics) != 1 || snap.Plan.SubTopics[0] != "new" {
		t.Errorf("expected refined plan to replace the old one, got %v", snap.Plan.SubTopics)
	}
	if len(presenter.planRefined) != 2 || !presenter.planRefined[1] {
		t.Errorf("expected second render marked refined, got %v", presenter.planRefined)
	}
}

func TestRefinePlanPreconditions(t *testing.T) {
	m, sender, _, _ := newTestManager()

	if err := m.RefinePlan("shorter please"); !errors.Is(err, apierrors.NoPlan()) {
		t.Errorf("expected NoPlan without a plan, got %v", err)
	}

	m.HandleMessage(protocol.PlanGenerated{Plan: protocol.Plan{Query: "q", SubTopics: []string{"a"}}})
	if err := m.RefinePlan("   "); !errors.Is(err, apierrors.EmptyFeedback()) {
		t.Errorf("expected EmptyFeedback, got %v", err)
	}
	if len(sender.sent) != 0 {
		t.Fatalf("expected nothing sent yet, got %d", len(sender.sent))
	}
}

func TestRefinePlanEchoesHeldPlan(t *testing.T) {
	m, sender, _, _ := newTestManager()

	plan := protocol.Plan{
		Query:            "quantum sensing",
		Depth:            protocol.DepthDeep,
		SubTopics:        []string{"NV centers", "atom interferometry"},
		Reasoning:        "hardware first",
		EstimatedSources: 12,
	}
	if err := m.SubmitQuery("quantum sensing"); err != nil {
		t.Fatalf("SubmitQuery failed: %v", err)
	}
	m.HandleMessage(protocol.PlanGenerated{Plan: plan})

	if err := m.RefinePlan("focus on field deployments"); err != nil {
		t.Fatalf("RefinePlan failed: %v", err)
	}

	last := sender.sent[len(sender.sent)-1]
	refine, ok := last.(protocol.RefinePlan)
	if !ok {
		t.Fatalf("expected RefinePlan, got %T", last)
	}
	if refine.Feedback != "focus on field deployments" {
		t.Errorf("feedback not preserved: %q", refine.Feedback)
	}
	if refine.Query != "quantum sensing" {
		t.Errorf("expected topic echoed, got %q", refine.Query)
	}
	if refine.CurrentPlan.Reasoning != plan.Reasoning ||
		len(refine.CurrentPlan.SubTopics) != 2 ||
		refine.CurrentPlan.EstimatedSources != 12 {
		t.Errorf("held plan not echoed verbatim: %+v", refine.CurrentPlan)
	}
}

func TestStartResearchClearsOutputAndSwitchesScreen(t *testing.T) {
	m, sender, presenter, _ := newTestManager()

	m.HandleMessage(protocol.PlanGenerated{Plan: protocol.Plan{SubTopics: []string{"a"}}})
	m.HandleMessage(protocol.SynthesisChunk{Chunk: "stale output"})

	if err := m.StartResearch(); err != nil {
		t.Fatalf("StartResearch failed: %v", err)
	}

	snap := m.Snapshot()
	if snap.Output != "" {
		t.Errorf("expected output cleared, got %q", snap.Output)
	}
	if snap.Screen != ScreenResearch {
		t.Errorf("expected research screen, got %q", snap.Screen)
	}
	if presenter.outputResets == 0 {
		t.Error("expected output view reset")
	}

	last := sender.sent[len(sender.sent)-1]
	if _, ok := last.(protocol.ExecuteResearch); !ok {
		t.Fatalf("expected ExecuteResearch, got %T", last)
	}
}

func TestStartResearchWithoutPlan(t *testing.T) {
	m, sender, _, _ := newTestManager()

	if err := m.StartResearch(); !errors.Is(err, apierrors.NoPlan()) {
		t.Errorf("expected NoPlan, got %v", err)
	}
	if len(sender.sent) != 0 {
		t.Errorf("expected nothing sent, got %d", len(sender.sent))
	}
}

func TestSynthesisStreamAccumulates(t *testing.T) {
	m, _, presenter, _ := newTestManager()

	m.HandleMessage(protocol.SynthesisStarted{})
	m.HandleMessage(protocol.SynthesisChunk{Chunk: "# Rep", Progress: 25})
	m.HandleMessage(protocol.SynthesisChunk{Chunk: "ort\n\nBody"})
	m.HandleMessage(protocol.SynthesisChunk{Chunk: " text", Progress: 90})

	snap := m.Snapshot()
	if snap.Output != "# Report\n\nBody text" {
		t.Errorf("expected chunks appended verbatim, got %q", snap.Output)
	}
	if snap.Progress != 90 {
		t.Errorf("expected progress 90, got %d", snap.Progress)
	}
	if len(presenter.outputChunks) != 3 {
		t.Errorf("expected 3 incremental appends, got %d", len(presenter.outputChunks))
	}
	if presenter.outputResets == 0 {
		t.Error("synthesis_start should reset the output view")
	}
}

func TestResearchCompleteRendersReport(t *testing.T) {
	m, _, presenter, _ := newTestManager()

	m.HandleMessage(protocol.ResearchComplete{Result: protocol.Result{
		Query:      "test",
		ReportText: "# Title\n\nSome **bold** text [1].",
		Sources:    []protocol.Source{{ID: 1, URL: "http://x", Title: "X"}},
		Citations:  []int{1},
	}})

	if len(presenter.resultHTML) != 1 {
		t.Fatalf("expected one result render, got %d", len(presenter.resultHTML))
	}
	html := presenter.resultHTML[0]
	if !strings.Contains(html, "<h1>Title</h1>") {
		t.Errorf("expected h1 Title, got %s", html)
	}
	if !strings.Contains(html, "<strong>bold</strong>") {
		t.Errorf("expected bold emphasis, got %s", html)
	}
	if !strings.Contains(html, `href="http://x"`) {
		t.Errorf("expected citation link to source, got %s", html)
	}
	if got := strings.Count(html, "<li>[1] "); got != 1 {
		t.Errorf("expected exactly one reference entry, got %d in %s", got, html)
	}

	snap := m.Snapshot()
	if snap.Result == nil {
		t.Fatal("result not stored")
	}
	if !strings.Contains(snap.Status, "complete") {
		t.Errorf("expected completion status, got %q", snap.Status)
	}
}

func TestBackendErrorLeavesStateIntact(t *testing.T) {
	m, _, presenter, _ := newTestManager()

	m.HandleMessage(protocol.PlanGenerated{Plan: protocol.Plan{SubTopics: []string{"keep me"}}})
	m.HandleMessage(protocol.BackendError{Message: "rate limited"})

	if len(presenter.notifications) != 1 || presenter.notifications[0] != "rate limited" {
		t.Errorf("expected backend message surfaced verbatim, got %v", presenter.notifications)
	}
	snap := m.Snapshot()
	if snap.Status != "Error: rate limited" {
		t.Errorf("expected error status, got %q", snap.Status)
	}
	if snap.Plan == nil {
		t.Error("plan must survive a backend error")
	}
}

func TestSessionClearedResetsState(t *testing.T) {
	m, _, presenter, _ := newTestManager()

	if err := m.SubmitQuery("topic"); err != nil {
		t.Fatalf("SubmitQuery failed: %v", err)
	}
	m.HandleMessage(protocol.PlanGenerated{Plan: protocol.Plan{SubTopics: []string{"a"}}})
	m.HandleMessage(protocol.SynthesisChunk{Chunk: "partial"})
	m.HandleMessage(protocol.ResearchComplete{Result: protocol.Result{ReportText: "done"}})

	m.HandleMessage(protocol.SessionCleared{})

	snap := m.Snapshot()
	if snap.Plan != nil || snap.Result != nil || snap.Output != "" {
		t.Errorf("expected plan/result/output cleared, got %+v", snap)
	}
	if snap.Screen != ScreenMain {
		t.Errorf("expected main screen after clear, got %q", snap.Screen)
	}
	if len(presenter.screens) == 0 || presenter.screens[len(presenter.screens)-1] != ScreenMain {
		t.Errorf("expected main screen shown, got %v", presenter.screens)
	}
}

func TestSwitchScreenIdempotent(t *testing.T) {
	m, _, presenter, _ := newTestManager()

	if err := m.SwitchScreen(ScreenAbout); err != nil {
		t.Fatalf("SwitchScreen failed: %v", err)
	}
	if err := m.SwitchScreen(ScreenAbout); err != nil {
		t.Fatalf("repeat SwitchScreen failed: %v", err)
	}

	if got := m.Snapshot().Screen; got != ScreenAbout {
		t.Errorf("expected about screen, got %q", got)
	}
	if len(presenter.screens) != 1 {
		t.Errorf("switching to the active screen must be a no-op, got %d transitions", len(presenter.screens))
	}

	if err := m.SwitchScreen(Screen("settings")); err == nil {
		t.Error("expected error for unknown screen")
	}
}

func TestToggleDepthFlipsBothWays(t *testing.T) {
	m, _, presenter, _ := newTestManager()

	if got := m.ToggleDepth(); got != protocol.DepthDeep {
		t.Errorf("expected deep after first toggle, got %q", got)
	}
	if got := m.ToggleDepth(); got != protocol.DepthStandard {
		t.Errorf("expected standard after second toggle, got %q", got)
	}
	if len(presenter.depths) != 2 {
		t.Errorf("expected depth mirrored on each toggle, got %v", presenter.depths)
	}
}

func TestDisconnectInvalidatesSession(t *testing.T) {
	m, sender, _, exporter := newTestManager()

	m.HandleMessage(protocol.SessionAssigned{SessionID: "session-1"})
	if got := m.Snapshot().SessionID; got != "session-1" {
		t.Fatalf("expected session stored, got %q", got)
	}

	sender.ready = false
	m.HandleConnectionState(backend.StateClosedPendingRetry)
	m.HandleDisconnect(io.ErrUnexpectedEOF)

	if got := m.Snapshot().SessionID; got != "" {
		t.Errorf("expected session invalidated on disconnect, got %q", got)
	}
	if err := m.SubmitQuery("interim"); !errors.Is(err, apierrors.NotConnected()) {
		t.Errorf("expected interim send rejected, got %v", err)
	}
	if _, err := m.ExportReport(context.Background()); !errors.Is(err, apierrors.NoActiveSession()) {
		t.Errorf("expected export rejected without session, got %v", err)
	}
	if exporter.calls != 0 {
		t.Errorf("export must be rejected locally, got %d requests", exporter.calls)
	}

	sender.ready = true
	m.HandleConnectionState(backend.StateOpen)
	m.HandleMessage(protocol.SessionAssigned{SessionID: "session-2"})

	if _, err := m.ExportReport(context.Background()); err != nil {
		t.Fatalf("export after reconnect failed: %v", err)
	}
	if exporter.sessionID != "session-2" {
		t.Errorf("expected new session used for export, got %q", exporter.sessionID)
	}
}

func TestExportReportSuccessAndFailure(t *testing.T) {
	m, _, presenter, exporter := newTestManager()
	m.HandleMessage(protocol.SessionAssigned{SessionID: "session-9"})

	path, err := m.ExportReport(context.Background())
	if err != nil {
		t.Fatalf("ExportReport failed: %v", err)
	}
	if path != exporter.path {
		t.Errorf("expected %q, got %q", exporter.path, path)
	}
	if snap := m.Snapshot(); !strings.Contains(snap.Status, exporter.path) {
		t.Errorf("expected saved path in status, got %q", snap.Status)
	}

	exporter.err = errors.New("export failed: 404 Not Found: No report available")
	if _, err := m.ExportReport(context.Background()); err == nil {
		t.Fatal("expected export failure surfaced")
	}
	last := presenter.notifications[len(presenter.notifications)-1]
	if !strings.Contains(last, "404") {
		t.Errorf("expected status detail in notification, got %q", last)
	}
}

func TestClearSessionSendsClear(t *testing.T) {
	m, sender, _, _ := newTestManager()

	if err := m.ClearSession(); err != nil {
		t.Fatalf("ClearSession failed: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected clear sent, got %d messages", len(sender.sent))
	}
	if _, ok := sender.sent[0].(protocol.ClearSession); !ok {
		t.Fatalf("expected ClearSession, got %T", sender.sent[0])
	}

	sender.ready = false
	if err := m.ClearSession(); !errors.Is(err, apierrors.NotConnected()) {
		t.Errorf("expected NotConnected, got %v", err)
	}
}
