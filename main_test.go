package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"maestro-go-agents/agent"
	"maestro-go-agents/client"
	"maestro-go-agents/config"
	"maestro-go-agents/router"
	"maestro-go-agents/runlog"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeOpenAI answers chat completions the way each role expects: the worker
// call carries a system message, the refiner prompt starts with "Objective:".
type fakeOpenAI struct {
	mu              sync.Mutex
	controllerCalls int
	workerCalls     int
	status          int
	// tasks is how many sub-tasks the controller hands out before declaring
	// completion; zero means one.
	tasks int
	// workerFailsAt makes that worker call and every later one fail.
	workerFailsAt int
}

func (f *fakeOpenAI) next(counter *int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	*counter++
	return *counter
}

func (f *fakeOpenAI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if f.status != 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.status)
		io.WriteString(w, `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`)
		return
	}

	var body struct {
		Messages []struct {
			Role    string          `json:"role"`
			Content json.RawMessage `json:"content"`
		} `json:"messages"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var first string
	_ = json.Unmarshal(body.Messages[0].Content, &first)

	var text string
	switch {
	case body.Messages[0].Role == "system":
		if call := f.next(&f.workerCalls); f.workerFailsAt > 0 && call >= f.workerFailsAt {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			io.WriteString(w, `{"error":{"message":"The server had an error","type":"server_error"}}`)
			return
		}
		text = "Paris for three days, Rome for four"
	case strings.HasPrefix(first, "Objective:"):
		text = "# Itinerary\n\nParis then Rome."
	case first == "Hi":
		text = "Hello"
	default:
		call := f.next(&f.controllerCalls)
		text = "Split the days between the cities"
		if call > max(f.tasks, 1) {
			text = "The task is complete: itinerary ready"
		}
	}

	reply, _ := json.Marshal(text)
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"id":"chatcmpl-1","object":"chat.completion","created":1700000000,"model":"gpt-5",
"choices":[{"index":0,"message":{"role":"assistant","content":%s},"finish_reason":"stop"}],
"usage":{"prompt_tokens":12,"completion_tokens":6,"total_tokens":18}}`, reply)
}

func setupEnv(t *testing.T, baseURL string, keys string) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv(config.EnvOpenAIAPIKey, "")
	t.Setenv(config.EnvOpenAIAPIKeys, keys)
	t.Setenv(config.EnvOpenAIBaseURL, baseURL)
	t.Setenv(config.EnvWorkerTier, "")
	t.Setenv(config.EnvLogLevel, "error")
	t.Setenv(config.EnvOutputDir, "")
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRunCommandEndToEnd(t *testing.T) {
	srv := httptest.NewServer(&fakeOpenAI{})
	defer srv.Close()
	dir := setupEnv(t, srv.URL, "sk-test")

	out, err := execute(t, "run", "--output-dir", "runs", "--save-usage", "Plan a trip: Paris & Rome!")
	require.NoError(t, err)

	assert.Contains(t, out, "Split the days between the cities")
	assert.Contains(t, out, "Paris for three days, Rome for four")
	assert.Contains(t, out, "Objective achieved after 1 sub-task(s)")
	assert.Contains(t, out, "Paris then Rome.")
	assert.Contains(t, out, "Full exchange log saved to")

	matches, err := filepath.Glob(filepath.Join(dir, "runs", "Maestro_*_Plan_a_trip_Paris_Rome_.md"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	exchanges, err := runlog.ParseBreakdown(string(data))
	require.NoError(t, err)
	assert.Equal(t, []agent.SubTaskExchange{{
		Prompt: "Split the days between the cities",
		Result: "Paris for three days, Rome for four",
	}}, exchanges)

	usage, err := filepath.Glob(filepath.Join(dir, "runs", "*.usage.json"))
	require.NoError(t, err)
	assert.Len(t, usage, 1)
}

func TestRunCommandWorkerFailureKeepsCompletedTask(t *testing.T) {
	srv := httptest.NewServer(&fakeOpenAI{tasks: 2, workerFailsAt: 2})
	defer srv.Close()
	dir := setupEnv(t, srv.URL, "sk-test")

	out, err := execute(t, "run", "Plan a trip")
	require.NoError(t, err)
	assert.Contains(t, out, "Stopped after a worker failure")
	assert.Contains(t, out, "Paris then Rome.")

	matches, err := filepath.Glob(filepath.Join(dir, "Maestro_*_Plan_a_trip.md"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), "\nPrompt: "))
	exchanges, err := runlog.ParseBreakdown(string(data))
	require.NoError(t, err)
	assert.Equal(t, []agent.SubTaskExchange{{
		Prompt: "Split the days between the cities",
		Result: "Paris for three days, Rome for four",
	}}, exchanges)
}

func TestWorkerTierFlagOverridesInvalidEnv(t *testing.T) {
	srv := httptest.NewServer(&fakeOpenAI{})
	defer srv.Close()
	setupEnv(t, srv.URL, "sk-test")
	t.Setenv(config.EnvWorkerTier, "turbo")

	_, err := execute(t, "validate")
	require.ErrorContains(t, err, "invalid configuration")

	out, err := execute(t, "validate", "--worker-tier", "high")
	require.NoError(t, err)
	assert.Contains(t, out, "1 API key(s) accepted")
}

func TestRunCommandNoSave(t *testing.T) {
	srv := httptest.NewServer(&fakeOpenAI{})
	defer srv.Close()
	dir := setupEnv(t, srv.URL, "sk-test")

	out, err := execute(t, "run", "--no-save", "Plan a trip")
	require.NoError(t, err)
	assert.NotContains(t, out, "Full exchange log saved to")

	matches, _ := filepath.Glob(filepath.Join(dir, "*.md"))
	assert.Empty(t, matches)
}

func TestRunCommandRequiresObjective(t *testing.T) {
	srv := httptest.NewServer(&fakeOpenAI{})
	defer srv.Close()
	setupEnv(t, srv.URL, "sk-test")

	_, err := execute(t, "run")
	assert.ErrorContains(t, err, "please enter an objective")
}

func TestValidateCommand(t *testing.T) {
	srv := httptest.NewServer(&fakeOpenAI{})
	defer srv.Close()
	setupEnv(t, srv.URL, "sk-one,sk-two")

	out, err := execute(t, "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "2 API key(s) accepted")
}

func TestValidateCommandRejectsKey(t *testing.T) {
	srv := httptest.NewServer(&fakeOpenAI{status: http.StatusUnauthorized})
	defer srv.Close()
	setupEnv(t, srv.URL, "sk-bad")

	_, err := execute(t, "validate")
	var credErr *client.CredentialError
	require.ErrorAs(t, err, &credErr)
	assert.Equal(t, http.StatusUnauthorized, client.StatusCode(err))
}

func TestValidateCommandWithoutKey(t *testing.T) {
	setupEnv(t, "", "")
	_, err := execute(t, "validate")
	assert.ErrorIs(t, err, config.ErrNoAPIKey)
}

func TestConnectRoutesSeveralKeys(t *testing.T) {
	srv := httptest.NewServer(&fakeOpenAI{})
	defer srv.Close()

	cfg := config.Default()
	cfg.BaseURL = srv.URL
	logger := log.New(io.Discard)

	cfg.APIKeys = []string{"sk-one"}
	gw, closeGateway, err := connect(t.Context(), cfg, logger)
	require.NoError(t, err)
	assert.IsType(t, &client.APIClient{}, gw)
	closeGateway()

	cfg.APIKeys = []string{"sk-one", "sk-two"}
	gw, closeGateway, err = connect(t.Context(), cfg, logger)
	require.NoError(t, err)
	require.IsType(t, &router.Router{}, gw)
	assert.Equal(t, 2, gw.(*router.Router).Len())
	closeGateway()
}

func TestPrepareObjective(t *testing.T) {
	dir := t.TempDir()
	textPath := filepath.Join(dir, "notes.md")
	require.NoError(t, os.WriteFile(textPath, []byte("Budget: 2000 EUR"), 0o644))

	imagePath := filepath.Join(dir, "map.png")
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 2, 2))))
	require.NoError(t, os.WriteFile(imagePath, buf.Bytes(), 0o644))

	objective, bundle, err := prepareObjective("  Plan a trip ", textPath, imagePath)
	require.NoError(t, err)
	assert.Equal(t, "Plan a trip\n\nBudget: 2000 EUR", objective)
	assert.Equal(t, "notes.md", bundle.TextFileName())
	assert.Equal(t, "map.png", bundle.ImageName())
	assert.True(t, bundle.HasImage())

	objective, bundle, err = prepareObjective("Plain", "", "")
	require.NoError(t, err)
	assert.Equal(t, "Plain", objective)
	assert.Equal(t, "None", bundle.TextFileName())

	_, _, err = prepareObjective("Bad", filepath.Join(dir, "tool.exe"), "")
	assert.Error(t, err)
}

func TestSaveArtifactsSkipsUnrefined(t *testing.T) {
	cfg := config.Default()
	cfg.OutputDir = t.TempDir()
	logger := log.New(io.Discard)

	path, err := saveArtifacts(cfg, &agent.RunResult{Objective: "x"}, logger)
	require.NoError(t, err)
	assert.Empty(t, path)

	path, err = saveArtifacts(cfg, nil, logger)
	require.NoError(t, err)
	assert.Empty(t, path)
}

func TestFormatProgress(t *testing.T) {
	line := formatProgress(agent.ProgressUpdate{Role: agent.WorkerRole, Status: agent.StatusCompleted, Iteration: 2, Message: "a\nb"})
	assert.Contains(t, line, "[worker #2]")
	assert.Contains(t, line, "\n  a\n  b")

	assert.Empty(t, formatProgress(agent.ProgressUpdate{State: agent.StateDone}))
	assert.Contains(t, formatProgress(agent.ProgressUpdate{State: agent.StateCancelled, Message: "Run cancelled"}), "Run cancelled")
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "999", formatNumber(999))
	assert.Equal(t, "1,234,567", formatNumber(1234567))
}
