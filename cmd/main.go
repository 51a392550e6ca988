package main

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"lead-engine/handler"
	"lead-engine/internal/config"
	"lead-engine/internal/engine"
	"lead-engine/internal/integrations/openai"
	"lead-engine/internal/integrations/paramstore"
	"lead-engine/internal/integrations/webhook"
	"lead-engine/internal/lead"
	"lead-engine/internal/metrics"
	"lead-engine/internal/repository"
	"lead-engine/internal/usecase"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "err", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	// ---- AWS SDK config ----
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		slog.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	// ---- Clients ----
	ssmClient, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
	if err != nil {
		slog.Error("failed to create SSM client", "err", err)
		os.Exit(1)
	}
	stateClient, err := repository.New(awsdynamodb.NewFromConfig(awsCfg), cfg.StateTable, repository.WithLeadsIndex(cfg.LeadsIndex))
	if err != nil {
		slog.Error("failed to create state client", "err", err)
		os.Exit(1)
	}
	openaiClient, err := openai.NewClient(ssmClient, cfg.ParamPrefix)
	if err != nil {
		slog.Error("failed to create OpenAI client", "err", err)
		os.Exit(1)
	}

	// ---- Engine ----
	rules, err := loadRules(ctx, ssmClient, cfg.ScoringRulesParam)
	if err != nil {
		slog.Error("failed to load scoring rules", "err", err)
		os.Exit(1)
	}
	eng := engine.New(rules, engine.WithLogger(logger))
	recorder := metrics.New()

	// ---- Handler ----
	opts := []usecase.Option{usecase.WithLogger(logger), usecase.WithRecorder(recorder)}
	if cfg.NotifyWebhookURL != "" {
		notifier, err := webhook.New(cfg.NotifyWebhookURL)
		if err != nil {
			slog.Error("failed to create webhook notifier", "err", err)
			os.Exit(1)
		}
		opts = append(opts, usecase.WithNotifier(notifier))
	}
	chatService, err := usecase.NewChatService(ssmClient, openaiClient, eng, stateClient, cfg.ParamPrefix, usecase.Limits{
		MaxContextItems:      cfg.MaxContextItems,
		MaxMessageLength:     cfg.MaxMessageLength,
		MaxConversationTurns: cfg.MaxConversationTurns,
	}, opts...)
	if err != nil {
		slog.Error("failed to create chat service", "err", err)
		os.Exit(1)
	}

	h, err := handler.NewHandler(chatService, handler.WithMetrics(recorder), handler.WithLogger(logger))
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}

// loadRules reads the optional YAML overlay for the scoring rules. A missing
// parameter means the built-in table.
func loadRules(ctx context.Context, ps *paramstore.Client, name string) (lead.Rules, error) {
	if name == "" {
		return lead.DefaultRules(), nil
	}
	raw, err := ps.GetParameter(ctx, name)
	if errors.Is(err, paramstore.ErrNotFound) {
		slog.Warn("scoring rules parameter not found, using defaults", "name", name)
		return lead.DefaultRules(), nil
	}
	if err != nil {
		return lead.Rules{}, err
	}
	return lead.ParseRules([]byte(raw))
}
