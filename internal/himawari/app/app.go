// Package app assembles the assistant: storage, policy, NLU, the
// conversation orchestrator and the Matrix transport.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"maunium.net/go/mautrix/event"

	"github.com/bdobrica/Himawari/common/trace"
	"github.com/bdobrica/Himawari/internal/himawari/confirm"
	"github.com/bdobrica/Himawari/internal/himawari/deploy"
	"github.com/bdobrica/Himawari/internal/himawari/directory"
	"github.com/bdobrica/Himawari/internal/himawari/matrix"
	"github.com/bdobrica/Himawari/internal/himawari/nlu"
	"github.com/bdobrica/Himawari/internal/himawari/orchestrator"
	"github.com/bdobrica/Himawari/internal/himawari/params"
	"github.com/bdobrica/Himawari/internal/himawari/policy"
	"github.com/bdobrica/Himawari/internal/himawari/session"
	"github.com/bdobrica/Himawari/internal/himawari/store"
	"github.com/bdobrica/Himawari/internal/himawari/wizard"
)

// Config holds application configuration.
type Config struct {
	DatabasePath string
	Matrix       matrix.Config

	// PermissionsMatrixPath overrides the embedded permission matrix.
	PermissionsMatrixPath string

	// DirectoryFixturePath overrides the embedded AWS resource fixture
	// the networking wizard offers (VPCs, subnets, security groups,
	// keypairs).
	DirectoryFixturePath string

	// UsersFilePath overrides the embedded sender roster.
	UsersFilePath string

	// SessionTTL bounds how long a half-finished request survives
	// between messages. Zero uses the session store default.
	SessionTTL time.Duration

	// --- NLU ---

	// NLUAPIKey enables the OpenAI-compatible intent classifier. When
	// empty the deterministic keyword classifier handles everything.
	NLUAPIKey string

	// NLUEndpoint is the API base URL; empty means the public OpenAI
	// endpoint.
	NLUEndpoint string

	// NLUModel defaults to a cost-efficient chat model when empty.
	NLUModel string

	// --- Dispatch ---

	// PipelineEndpoint, when set, sends finished requests to an HTTP
	// provisioning pipeline.
	PipelineEndpoint string

	// PipelineToken is the bearer token for the pipeline endpoint.
	PipelineToken string

	// JobImage, when set and PipelineEndpoint is empty, launches a
	// one-shot provisioning container per request instead.
	JobImage string
}

// App is the assembled assistant.
type App struct {
	config *Config
	store  *store.Store
	matrix *matrix.Client
	orch   *orchestrator.Orchestrator
	roster *Roster
}

// New wires the application together. Optional subsystems degrade
// loudly: a missing NLU key falls back to keyword classification, a
// missing dispatcher falls back to dry-run logging.
func New(config *Config) (*App, error) {
	slog.Info("opening database", "path", config.DatabasePath)
	st, err := store.New(config.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Inject the DB so the Matrix client persists its sync position.
	matrixCfg := config.Matrix
	matrixCfg.DB = st.DB()
	slog.Info("connecting to Matrix", "homeserver", matrixCfg.Homeserver)
	matrixClient, err := matrix.New(&matrixCfg)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to initialize Matrix client: %w", err)
	}

	matrixData, err := policy.LoadFile(config.PermissionsMatrixPath)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to load permission matrix: %w", err)
	}
	provider := policy.NewProvider(matrixData)
	slog.Info("permission matrix loaded", "path", orDefault(config.PermissionsMatrixPath, "embedded"))

	dir, err := directory.NewStaticFile(config.DirectoryFixturePath)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to load resource directory: %w", err)
	}

	roster, err := LoadRoster(config.UsersFilePath)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to load user roster: %w", err)
	}

	// NLU provider is optional: without a key the keyword classifier
	// carries every turn.
	var nluProvider nlu.Provider
	if config.NLUAPIKey != "" {
		nluProvider = nlu.NewOpenAI(nlu.Config{
			APIKey:  config.NLUAPIKey,
			BaseURL: config.NLUEndpoint,
			Model:   config.NLUModel,
		})
		slog.Info("NLU: OpenAI-compatible classifier ready", "model", orDefault(config.NLUModel, "default"))
	} else {
		slog.Info("NLU: no API key configured, using keyword classification")
	}

	var dispatcher deploy.Dispatcher
	switch {
	case config.PipelineEndpoint != "":
		dispatcher = deploy.NewHTTP(config.PipelineEndpoint, config.PipelineToken)
		slog.Info("dispatcher: HTTP pipeline", "endpoint", config.PipelineEndpoint)
	case config.JobImage != "":
		d, derr := deploy.NewDocker(config.JobImage)
		if derr != nil {
			st.Close()
			return nil, fmt.Errorf("failed to initialize Docker dispatcher: %w", derr)
		}
		dispatcher = d
		slog.Info("dispatcher: one-shot Docker jobs", "image", config.JobImage)
	default:
		dispatcher = deploy.LogDispatcher{}
		slog.Warn("dispatcher: none configured, requests will be logged only")
	}

	orch := &orchestrator.Orchestrator{
		Sessions:   session.NewMemoryStore(config.SessionTTL),
		Locks:      session.NewLocks(),
		Classifier: nlu.NewClassifier(nluProvider),
		Policy:     provider,
		Validator:  &params.Validator{Policy: provider},
		Confirm:    confirm.NewManager(),
		Wizard:     wizard.New(dir),
		Dispatcher: dispatcher,
		Audit:      st,
	}

	return &App{
		config: config,
		store:  st,
		matrix: matrixClient,
		orch:   orch,
		roster: roster,
	}, nil
}

// Run starts the Matrix sync and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	slog.Info("starting Matrix sync")
	if err := a.matrix.Start(ctx, a.handleMessage); err != nil {
		return fmt.Errorf("failed to start Matrix client: %w", err)
	}

	for _, roomID := range a.config.Matrix.Rooms {
		if err := a.matrix.SendNotice(ctx, roomID, "Himawari is online. Tell me what you'd like to provision."); err != nil {
			slog.Warn("startup notice failed", "room", roomID, "err", err)
		}
	}

	slog.Info("Himawari is running; press Ctrl+C to stop")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	slog.Info("shutting down")
	return nil
}

// Stop tears the application down.
func (a *App) Stop() {
	slog.Info("stopping Matrix client")
	a.matrix.Stop()

	slog.Info("closing database")
	if err := a.store.Close(); err != nil {
		slog.Warn("closing database", "err", err)
	}
}

// handleMessage runs one conversation turn for an incoming room message.
func (a *App) handleMessage(ctx context.Context, evt *event.Event) {
	msgContent := evt.Content.AsMessage()
	if msgContent == nil {
		return
	}

	// Each turn gets a trace ID so logs from the orchestrator, the
	// dispatcher and the transport can be correlated.
	ctx = trace.WithTraceID(ctx, trace.GenerateID())

	roomID := evt.RoomID.String()
	user := a.roster.Resolve(evt.Sender.String())

	if err := a.matrix.SetTyping(ctx, roomID, true, 30*time.Second); err != nil {
		slog.Debug("typing indicator", "room", roomID, "err", err)
	}
	defer func() {
		if err := a.matrix.SetTyping(ctx, roomID, false, 0); err != nil {
			slog.Debug("typing indicator", "room", roomID, "err", err)
		}
	}()

	reply := a.orch.HandleTurn(ctx, user, msgContent.Body)
	if err := a.matrix.SendReply(ctx, roomID, reply); err != nil {
		slog.Error("failed to send reply", "room", roomID, "trace", trace.FromContext(ctx), "err", err)
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
