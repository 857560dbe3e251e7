package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"maestro-go-agents/agent"
	"maestro-go-agents/attachment"
	"maestro-go-agents/client"
	"maestro-go-agents/config"
	"maestro-go-agents/router"
	"maestro-go-agents/runlog"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/log"
)

func newLogger(w io.Writer, level string) *log.Logger {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	return log.NewWithOptions(w, log.Options{
		Level:           lvl,
		Prefix:          "maestro",
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
	})
}

// connect builds one API client per configured key, confirms each key with a
// one-token call on the fast tier and returns a single gateway over them.
func connect(ctx context.Context, cfg *config.Config, logger *log.Logger) (client.Gateway, func(), error) {
	if err := cfg.RequireAPIKey(); err != nil {
		return nil, nil, err
	}

	clients := make([]*client.APIClient, 0, len(cfg.APIKeys))
	closeAll := func() {
		for _, c := range clients {
			c.Close()
		}
	}

	gateways := make([]client.Gateway, 0, len(cfg.APIKeys))
	for i, key := range cfg.APIKeys {
		c := client.NewAPIClient(client.APIClientConfig{
			APIKey:            key,
			BaseURL:           cfg.BaseURL,
			RequestsPerMinute: cfg.RequestsPerMinute,
			TokensPerMinute:   cfg.TokensPerMinute,
			Timeout:           cfg.Timeout,
			Logger:            logger,
		})
		clients = append(clients, c)

		if _, err := client.ValidateCredential(ctx, c, cfg.Models.Fast); err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("API key %d of %d: %w", i+1, len(cfg.APIKeys), err)
		}
		logger.Debug("API key accepted", "key", i+1)
		gateways = append(gateways, c)
	}

	if len(gateways) == 1 {
		return gateways[0], closeAll, nil
	}
	return router.NewRouter(gateways, logger), closeAll, nil
}

// newLoop wires a fresh set of agents for one run.
func newLoop(cfg *config.Config, gw client.Gateway, tier agent.Tier, logger *log.Logger) (*agent.Loop, error) {
	return agent.New(gw, agent.Options{
		Models: agent.Models{
			Fast:     cfg.Models.Fast,
			Balanced: cfg.Models.Balanced,
			High:     cfg.Models.High,
		},
		WorkerTier:      tier,
		MaxOutputTokens: cfg.MaxOutputTokens,
		MaxIterations:   cfg.MaxIterations,
		CompletionMode:  cfg.CompletionMode,
		Logger:          logger,
	})
}

// prepareObjective folds the optional text document into the objective and
// loads the optional image.
func prepareObjective(objective, textPath, imagePath string) (string, attachment.Bundle, error) {
	var bundle attachment.Bundle
	objective = strings.TrimSpace(objective)

	if textPath = strings.TrimSpace(textPath); textPath != "" {
		name, content, err := attachment.LoadText(textPath)
		if err != nil {
			return "", bundle, err
		}
		bundle.TextFile = name
		objective = attachment.AppendToObjective(objective, content)
	}

	if imagePath = strings.TrimSpace(imagePath); imagePath != "" {
		img, err := attachment.LoadImage(imagePath)
		if err != nil {
			return "", bundle, err
		}
		bundle.Image = img
	}

	return objective, bundle, nil
}

// saveArtifacts writes the run log, and the usage report when enabled, for a
// refined run. It returns the log's absolute path or "" when nothing was saved.
func saveArtifacts(cfg *config.Config, result *agent.RunResult, logger *log.Logger) (string, error) {
	if result == nil || !result.HasRefined || !cfg.SaveLog {
		return "", nil
	}

	ws, err := runlog.NewWorkspace(cfg.OutputDir)
	if err != nil {
		return "", err
	}
	path, err := ws.Save(result, time.Now())
	if err != nil {
		return "", err
	}
	logger.Info("Run log saved", "run_id", result.ID, "path", path)

	if cfg.SaveUsage {
		usagePath, err := ws.SaveUsage(path, result.Usage)
		if err != nil {
			return path, err
		}
		logger.Info("Usage saved", "run_id", result.ID, "path", usagePath)
	}
	return path, nil
}

func renderMarkdown(text string, width int) (string, error) {
	if width <= 0 {
		width = 100
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create markdown renderer: %w", err)
	}
	rendered, err := renderer.Render(text)
	if err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return strings.TrimRight(rendered, "\n"), nil
}
