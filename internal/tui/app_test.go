package tui_test

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/rndsolutions/HawkCD/internal/domain"
	"github.com/rndsolutions/HawkCD/internal/tui"
)

// fakeSource satisfies tui.Source for TUI tests.
type fakeSource struct {
	pipelines    []domain.Pipeline
	pauseCalled  bool
	cancelCalled bool
	rerunStageID string
	rerunJobs    []string
}

func (f *fakeSource) ListPipelines(_ context.Context) ([]domain.Pipeline, error) {
	return f.pipelines, nil
}
func (f *fakeSource) GetPipeline(_ context.Context, id string) (domain.Pipeline, error) {
	for _, p := range f.pipelines {
		if p.ID == id {
			return p, nil
		}
	}
	return domain.Pipeline{}, domain.NotFound("pipeline", id)
}
func (f *fakeSource) PausePipeline(_ context.Context, _ string) (domain.Pipeline, error) {
	f.pauseCalled = true
	return domain.Pipeline{}, nil
}
func (f *fakeSource) CancelPipeline(_ context.Context, _ string) (domain.Pipeline, error) {
	f.cancelCalled = true
	return domain.Pipeline{}, nil
}
func (f *fakeSource) RerunStage(_ context.Context, stageID string, jobDefinitionIDs []string) (domain.Pipeline, error) {
	f.rerunStageID = stageID
	f.rerunJobs = jobDefinitionIDs
	return domain.Pipeline{}, nil
}

func preparedPipeline(id string, status domain.PipelineStatus) domain.Pipeline {
	return domain.Pipeline{
		ID:                     id,
		PipelineDefinitionName: "build-and-deploy",
		ExecutionID:            3,
		Status:                 status,
		StageRuns: []domain.StageRun{{ExecutionID: 1, Stages: []domain.Stage{
			{ID: id + "-build", StageDefinitionName: "build", Status: domain.StageInProgress, Jobs: []domain.Job{
				{ID: "j-1", JobDefinitionID: "jd-compile", JobDefinitionName: "compile", Status: domain.JobRunning},
				{ID: "j-2", JobDefinitionID: "jd-vet", JobDefinitionName: "vet", Status: domain.JobPending},
			}},
			{ID: id + "-deploy", StageDefinitionName: "deploy", Status: domain.StagePending, Jobs: []domain.Job{
				{ID: "j-3", JobDefinitionID: "jd-ship", JobDefinitionName: "ship", Status: domain.JobPending},
			}},
		}}},
	}
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func loaded(t *testing.T, source *fakeSource) tui.AppModel {
	t.Helper()
	m := tui.NewAppModel(source, "http://hawkd:8080", time.Second)
	m0, _ := m.Update(tui.PipelinesLoadedMsg{Pipelines: source.pipelines})
	return m0.(tui.AppModel)
}

func TestApp_RerunKey_ShowsConfirmPrompt(t *testing.T) {
	source := &fakeSource{pipelines: []domain.Pipeline{preparedPipeline("p-1", domain.StatusFailed)}}
	m := loaded(t, source)

	updated, _ := m.Update(key("r"))
	view := updated.(tui.AppModel).View()

	if !strings.Contains(view, "Rerun stage build") {
		t.Errorf("expected confirm prompt in view, got:\n%s", view)
	}
}

func TestApp_CancelKey_ShowsConfirmPrompt(t *testing.T) {
	source := &fakeSource{pipelines: []domain.Pipeline{preparedPipeline("p-1", domain.StatusInProgress)}}
	m := loaded(t, source)

	updated, _ := m.Update(key("x"))
	view := updated.(tui.AppModel).View()

	if !strings.Contains(view, "Cancel pipeline build-and-deploy #3") {
		t.Errorf("expected confirm prompt in view, got:\n%s", view)
	}
}

func TestApp_ConfirmRerun_DismissesPromptOnOtherKey(t *testing.T) {
	source := &fakeSource{pipelines: []domain.Pipeline{preparedPipeline("p-1", domain.StatusFailed)}}
	m := loaded(t, source)

	m1, _ := m.Update(key("r"))
	m2, cmd := m1.(tui.AppModel).Update(key("n"))
	view := m2.(tui.AppModel).View()

	if strings.Contains(view, "Rerun stage") {
		t.Errorf("expected confirm prompt to be dismissed after 'n', got:\n%s", view)
	}
	if cmd != nil {
		t.Error("expected no command after dismissing")
	}
}

func TestApp_ConfirmRerun_YKey_RerunsFirstStageWithAllJobs(t *testing.T) {
	source := &fakeSource{pipelines: []domain.Pipeline{preparedPipeline("p-1", domain.StatusFailed)}}
	m := loaded(t, source)

	m1, _ := m.Update(key("r"))
	_, cmd := m1.(tui.AppModel).Update(key("y"))
	if cmd == nil {
		t.Fatal("expected a rerun command")
	}
	cmd()

	if source.rerunStageID != "p-1-build" {
		t.Errorf("expected rerun of p-1-build, got %q", source.rerunStageID)
	}
	if len(source.rerunJobs) != 2 || source.rerunJobs[0] != "jd-compile" || source.rerunJobs[1] != "jd-vet" {
		t.Errorf("expected both job definitions, got %v", source.rerunJobs)
	}
}

func TestApp_RerunFromJobsView_SelectsSingleJob(t *testing.T) {
	source := &fakeSource{pipelines: []domain.Pipeline{preparedPipeline("p-1", domain.StatusFailed)}}
	m := loaded(t, source)

	steps := []tea.Msg{
		tea.KeyMsg{Type: tea.KeyEnter}, // stages
		tea.KeyMsg{Type: tea.KeyEnter}, // jobs of build
		tea.KeyMsg{Type: tea.KeyDown},
		key("r"),
	}
	var model tea.Model = m
	for _, msg := range steps {
		model, _ = model.(tui.AppModel).Update(msg)
	}
	if view := model.View(); !strings.Contains(view, "with 1 job(s)") {
		t.Errorf("expected single-job rerun prompt, got:\n%s", view)
	}
	_, cmd := model.(tui.AppModel).Update(key("y"))
	if cmd == nil {
		t.Fatal("expected a rerun command")
	}
	cmd()
	if len(source.rerunJobs) != 1 || source.rerunJobs[0] != "jd-vet" {
		t.Errorf("expected [jd-vet], got %v", source.rerunJobs)
	}
}

func TestApp_ConfirmCancel_YKey_CallsSource(t *testing.T) {
	source := &fakeSource{pipelines: []domain.Pipeline{preparedPipeline("p-1", domain.StatusInProgress)}}
	m := loaded(t, source)

	m1, _ := m.Update(key("x"))
	_, cmd := m1.(tui.AppModel).Update(key("y"))
	if cmd != nil {
		cmd()
	}

	if !source.cancelCalled {
		t.Error("expected CancelPipeline to be called after confirming with y")
	}
}

func TestApp_PauseKey_CallsSourceWithoutConfirm(t *testing.T) {
	source := &fakeSource{pipelines: []domain.Pipeline{preparedPipeline("p-1", domain.StatusInProgress)}}
	m := loaded(t, source)

	_, cmd := m.Update(key("p"))
	if cmd == nil {
		t.Fatal("expected a pause command")
	}
	cmd()
	if !source.pauseCalled {
		t.Error("expected PausePipeline to be called")
	}
}

func TestApp_EnterShowsStagesOfCurrentRun(t *testing.T) {
	source := &fakeSource{pipelines: []domain.Pipeline{preparedPipeline("p-1", domain.StatusInProgress)}}
	m := loaded(t, source)

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	view := updated.(tui.AppModel).View()
	if !strings.Contains(view, "Stages of build-and-deploy #3") {
		t.Errorf("expected stages title, got:\n%s", view)
	}
	if !strings.Contains(view, "deploy") {
		t.Errorf("expected deploy stage listed, got:\n%s", view)
	}
}

func TestApp_RefreshPreservesSelection(t *testing.T) {
	initial := []domain.Pipeline{
		{ID: "1", PipelineDefinitionName: "alpha", ExecutionID: 1, Status: domain.StatusSuccess},
		{ID: "2", PipelineDefinitionName: "beta", ExecutionID: 7, Status: domain.StatusInProgress},
		{ID: "3", PipelineDefinitionName: "gamma", ExecutionID: 2, Status: domain.StatusFailed},
	}
	source := &fakeSource{pipelines: initial}
	app := loaded(t, source)

	m1, _ := app.Update(tea.KeyMsg{Type: tea.KeyDown})
	app = m1.(tui.AppModel)

	refreshed := []domain.Pipeline{
		{ID: "0", PipelineDefinitionName: "delta", ExecutionID: 1, Status: domain.StatusInProgress},
		{ID: "1", PipelineDefinitionName: "alpha", ExecutionID: 1, Status: domain.StatusSuccess},
		{ID: "2", PipelineDefinitionName: "beta", ExecutionID: 7, Status: domain.StatusSuccess},
		{ID: "3", PipelineDefinitionName: "gamma", ExecutionID: 2, Status: domain.StatusFailed},
	}
	m2, _ := app.Update(tui.PipelinesLoadedMsg{Pipelines: refreshed})
	view := m2.(tui.AppModel).View()

	if !strings.Contains(view, "/ beta #7 SUCCESS") {
		t.Errorf("expected header to keep pipeline beta after refresh, got:\n%s", view)
	}
}

func TestApp_LoadErrorIsShown(t *testing.T) {
	m := tui.NewAppModel(&fakeSource{}, "http://hawkd:8080", time.Second)
	updated, _ := m.Update(tui.PipelinesLoadedMsg{Err: domain.Transient("listing pipelines", context.DeadlineExceeded)})
	view := updated.(tui.AppModel).View()
	if !strings.Contains(view, "Error:") {
		t.Errorf("expected error view, got:\n%s", view)
	}
}
