package tui

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/rndsolutions/HawkCD/internal/domain"
)

const requestTimeout = 15 * time.Second

// Source is the subset of the hawkd API the dashboard uses.
type Source interface {
	ListPipelines(ctx context.Context) ([]domain.Pipeline, error)
	GetPipeline(ctx context.Context, id string) (domain.Pipeline, error)
	PausePipeline(ctx context.Context, id string) (domain.Pipeline, error)
	CancelPipeline(ctx context.Context, id string) (domain.Pipeline, error)
	RerunStage(ctx context.Context, stageID string, jobDefinitionIDs []string) (domain.Pipeline, error)
}

// PipelinesLoadedMsg is sent when pipelines have been fetched from the server.
// It is exported so that tests can inject it directly into AppModel.Update.
type PipelinesLoadedMsg struct {
	Pipelines []domain.Pipeline
	Err       error
}

// PipelineDetailMsg is sent when a single pipeline has been re-fetched.
type PipelineDetailMsg struct {
	Pipeline domain.Pipeline
	Err      error
}

// tickMsg is sent by the auto-refresh ticker.
type tickMsg struct{}

// actionResultMsg is sent when a pause, cancel or rerun completes.
type actionResultMsg struct {
	action string
	err    error
}

type viewState int

const (
	viewPipelines viewState = iota
	viewStages
	viewJobs
)

// AppModel is the root Bubbletea model for hawkctl.
type AppModel struct {
	source  Source
	server  string
	refresh time.Duration

	view viewState
	// Pipeline level
	list             PipelineListModel
	selectedPipeline domain.Pipeline
	// Stage level
	stages        StageListModel
	selectedStage domain.Stage
	// Job level
	detail JobDetailModel

	loading bool
	err     error
	width   int
	height  int
	// Pending confirmation
	confirmAction string
	rerunStage    domain.Stage
	rerunJobs     []string
}

// NewAppModel creates the root application model. refresh is the polling
// interval while a run is active.
func NewAppModel(source Source, server string, refresh time.Duration) AppModel {
	if refresh <= 0 {
		refresh = 5 * time.Second
	}
	return AppModel{
		source:  source,
		server:  server,
		refresh: refresh,
		list:    NewPipelineListModel(nil),
		detail:  NewJobDetailModel(nil),
		loading: true,
	}
}

// Init triggers the initial pipeline load.
func (m AppModel) Init() tea.Cmd {
	return tea.Batch(m.loadPipelines(), tickEvery(m.refresh))
}

func (m AppModel) loadPipelines() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		pipelines, err := m.source.ListPipelines(ctx)
		return PipelinesLoadedMsg{Pipelines: pipelines, Err: err}
	}
}

func (m AppModel) loadPipelineDetail(id string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		pipeline, err := m.source.GetPipeline(ctx, id)
		return PipelineDetailMsg{Pipeline: pipeline, Err: err}
	}
}

func (m AppModel) pausePipeline(id string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		_, err := m.source.PausePipeline(ctx, id)
		return actionResultMsg{action: "pause", err: err}
	}
}

func (m AppModel) cancelPipeline(id string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		_, err := m.source.CancelPipeline(ctx, id)
		return actionResultMsg{action: "cancel", err: err}
	}
}

func (m AppModel) rerun(stageID string, jobDefinitionIDs []string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		_, err := m.source.RerunStage(ctx, stageID, jobDefinitionIDs)
		return actionResultMsg{action: "rerun", err: err}
	}
}

func tickEvery(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(_ time.Time) tea.Msg {
		return tickMsg{}
	})
}

// anyActive reports whether any listed run or rerun is in progress.
func anyActive(pipelines []domain.Pipeline) bool {
	for _, p := range pipelines {
		if p.IsActive() {
			return true
		}
	}
	return false
}

// Update handles all incoming messages and key events.
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case PipelinesLoadedMsg:
		m.loading = false
		if msg.Err != nil {
			m.err = msg.Err
			return m, nil
		}
		m.err = nil
		m.list = m.list.UpdatePipelines(msg.Pipelines)
		if m.view == viewPipelines || m.selectedPipeline.ID == "" {
			m.selectedPipeline = m.list.SelectedPipeline()
		}

	case PipelineDetailMsg:
		if msg.Err != nil {
			m.err = msg.Err
			return m, nil
		}
		m.setSelectedPipeline(msg.Pipeline)

	case tickMsg:
		interval := 6 * m.refresh
		if anyActive(m.list.Pipelines()) {
			interval = m.refresh
		}
		cmds := []tea.Cmd{m.loadPipelines(), tickEvery(interval)}
		if m.view != viewPipelines && m.selectedPipeline.ID != "" && m.selectedPipeline.IsActive() {
			cmds = append(cmds, m.loadPipelineDetail(m.selectedPipeline.ID))
		}
		return m, tea.Batch(cmds...)

	case actionResultMsg:
		if msg.err != nil {
			m.err = fmt.Errorf("%s failed: %w", msg.action, msg.err)
			return m, nil
		}
		cmds := []tea.Cmd{m.loadPipelines()}
		if m.view != viewPipelines && m.selectedPipeline.ID != "" {
			cmds = append(cmds, m.loadPipelineDetail(m.selectedPipeline.ID))
		}
		return m, tea.Batch(cmds...)

	case tea.KeyMsg:
		if m.confirmAction != "" {
			return m.updateConfirm(msg)
		}
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "ctrl+r":
			m.loading = true
			m.err = nil
			return m, m.loadPipelines()
		}
		switch m.view {
		case viewPipelines:
			return m.updatePipelines(msg)
		case viewStages:
			return m.updateStages(msg)
		case viewJobs:
			return m.updateJobs(msg)
		}
	}
	return m, nil
}

// setSelectedPipeline refreshes the stage and job panels from p, keeping
// both cursors in place.
func (m *AppModel) setSelectedPipeline(p domain.Pipeline) {
	m.selectedPipeline = p
	stageCursor, jobCursor := m.stages.Cursor(), m.detail.Cursor()
	m.stages = NewStageListModel(p.CurrentStages())
	for i := 0; i < stageCursor; i++ {
		m.stages = m.stages.MoveDown()
	}
	if m.view != viewJobs {
		return
	}
	for _, s := range p.CurrentStages() {
		if s.ID == m.selectedStage.ID {
			m.selectedStage = s
			m.detail = NewJobDetailModel(s.Jobs)
			for i := 0; i < jobCursor; i++ {
				m.detail = m.detail.MoveDown()
			}
			return
		}
	}
	// The stage belongs to a superseded run.
	m.view = viewStages
}

func (m AppModel) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y":
		action := m.confirmAction
		m.confirmAction = ""
		if m.selectedPipeline.ID == "" {
			return m, nil
		}
		if action == "rerun" {
			return m, m.rerun(m.rerunStage.ID, m.rerunJobs)
		}
		return m, m.cancelPipeline(m.selectedPipeline.ID)
	case "q", "ctrl+c":
		return m, tea.Quit
	default:
		m.confirmAction = ""
		return m, nil
	}
}

// confirmRerun asks before rerunning stage with the given job definitions.
func (m AppModel) confirmRerun(stage domain.Stage, jobs []domain.Job) AppModel {
	if stage.ID == "" {
		return m
	}
	ids := make([]string, len(jobs))
	for i, j := range jobs {
		ids[i] = j.JobDefinitionID
	}
	m.confirmAction = "rerun"
	m.rerunStage = stage
	m.rerunJobs = ids
	return m
}

func (m AppModel) updatePipelines(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "down":
		m.list = m.list.MoveDown()
		m.selectedPipeline = m.list.SelectedPipeline()
	case "up":
		m.list = m.list.MoveUp()
		m.selectedPipeline = m.list.SelectedPipeline()
	case "enter":
		if len(m.list.Pipelines()) > 0 {
			m.selectedPipeline = m.list.SelectedPipeline()
			m.stages = NewStageListModel(m.selectedPipeline.CurrentStages())
			m.view = viewStages
			return m, m.loadPipelineDetail(m.selectedPipeline.ID)
		}
	case "p":
		if m.selectedPipeline.ID != "" {
			return m, m.pausePipeline(m.selectedPipeline.ID)
		}
	case "r":
		if stages := m.selectedPipeline.CurrentStages(); len(stages) > 0 {
			m = m.confirmRerun(stages[0], stages[0].Jobs)
		}
	case "x":
		if m.selectedPipeline.ID != "" {
			m.confirmAction = "cancel"
		}
	}
	return m, nil
}

func (m AppModel) updateStages(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "down":
		m.stages = m.stages.MoveDown()
	case "up":
		m.stages = m.stages.MoveUp()
	case "enter":
		if stage, ok := m.stages.SelectedStage(); ok {
			m.selectedStage = stage
			m.detail = NewJobDetailModel(stage.Jobs)
			m.view = viewJobs
		}
	case "esc":
		m.view = viewPipelines
	case "p":
		return m, m.pausePipeline(m.selectedPipeline.ID)
	case "r":
		if stage, ok := m.stages.SelectedStage(); ok {
			m = m.confirmRerun(stage, stage.Jobs)
		}
	case "x":
		m.confirmAction = "cancel"
	}
	return m, nil
}

func (m AppModel) updateJobs(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "down":
		m.detail = m.detail.MoveDown()
	case "up":
		m.detail = m.detail.MoveUp()
	case "esc":
		m.view = viewStages
	case "p":
		return m, m.pausePipeline(m.selectedPipeline.ID)
	case "r":
		if jobs := m.detail.Jobs(); len(jobs) > 0 {
			m = m.confirmRerun(m.selectedStage, jobs[m.detail.Cursor():m.detail.Cursor()+1])
		}
	case "x":
		m.confirmAction = "cancel"
	}
	return m, nil
}

// View renders the full TUI.
func (m AppModel) View() string {
	if m.loading && m.confirmAction == "" {
		return "Loading pipelines...\n"
	}
	if m.err != nil {
		return fmt.Sprintf("Error: %v\n\nPress 'ctrl+r' to retry or 'q' to quit.\n", m.err)
	}

	header := fmt.Sprintf(" hawkctl | %s / %s #%d %s\n",
		m.server, m.selectedPipeline.PipelineDefinitionName,
		m.selectedPipeline.ExecutionID, m.selectedPipeline.Status)
	separator := "────────────────────────────────────────────────────────────\n"

	switch m.view {
	case viewPipelines:
		return m.renderPipelinesView(header, separator)
	case viewStages:
		return m.renderStagesView(header, separator)
	case viewJobs:
		return m.renderJobsView(header, separator)
	default:
		return header
	}
}

// confirmFooter returns the y/N prompt, or fallback when nothing awaits
// confirmation.
func (m AppModel) confirmFooter(fallback string) string {
	switch m.confirmAction {
	case "rerun":
		return fmt.Sprintf(" Rerun stage %s of %s #%d with %d job(s)? [y/N] \n",
			m.rerunStage.StageDefinitionName, m.selectedPipeline.PipelineDefinitionName,
			m.selectedPipeline.ExecutionID, len(m.rerunJobs))
	case "cancel":
		return fmt.Sprintf(" Cancel pipeline %s #%d? [y/N] \n",
			m.selectedPipeline.PipelineDefinitionName, m.selectedPipeline.ExecutionID)
	}
	return fallback
}

func (m AppModel) renderPipelinesView(header, separator string) string {
	title := " Pipelines\n"
	listView := m.list.View()
	statusBar := fmt.Sprintf(" %s started %s\n", m.selectedPipeline.ID, formatAge(m.selectedPipeline.StartTime))
	if m.selectedPipeline.TriggerReason != "" {
		statusBar = fmt.Sprintf(" %s started %s: %s\n", m.selectedPipeline.ID,
			formatAge(m.selectedPipeline.StartTime), m.selectedPipeline.TriggerReason)
	}
	footer := m.confirmFooter(" ↑/↓: navigate   enter: stages   ctrl+r: refresh   p: pause   r: rerun   x: cancel   q: quit\n")
	return header + separator + title + listView + "\n" + separator + statusBar + separator + footer
}

func (m AppModel) renderStagesView(header, separator string) string {
	run := len(m.selectedPipeline.StageRuns)
	title := fmt.Sprintf(" Stages of %s #%d (run %d)\n",
		m.selectedPipeline.PipelineDefinitionName, m.selectedPipeline.ExecutionID, run)
	footer := m.confirmFooter(" ↑/↓: navigate   enter: jobs   esc: back   p: pause   r: rerun stage   x: cancel   q: quit\n")
	return header + separator + title + m.stages.View() + "\n" + separator + footer
}

func (m AppModel) renderJobsView(header, separator string) string {
	title := fmt.Sprintf(" Jobs of stage %s\n", m.selectedStage.StageDefinitionName)
	footer := m.confirmFooter(" ↑/↓: navigate   esc: back   p: pause   r: rerun job   x: cancel   q: quit\n")
	return header + separator + title + m.detail.ViewFocused() + "\n" + separator + footer
}

// Run starts the Bubbletea program and blocks until the user quits.
func Run(source Source, server string, refresh time.Duration) error {
	p := tea.NewProgram(NewAppModel(source, server, refresh), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
