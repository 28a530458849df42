package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	orchestratorx "github.com/tanpawarit/flight-search-agent/agent/agents/orchestrator"
	requirementx "github.com/tanpawarit/flight-search-agent/agent/agents/requirement"
	visualizerx "github.com/tanpawarit/flight-search-agent/agent/agents/visualizer"
	llmx "github.com/tanpawarit/flight-search-agent/agent/llm"
	mcpx "github.com/tanpawarit/flight-search-agent/agent/mcp"
	promptx "github.com/tanpawarit/flight-search-agent/agent/prompt"
	serverx "github.com/tanpawarit/flight-search-agent/agent/server"
	statex "github.com/tanpawarit/flight-search-agent/agent/state"
	toolx "github.com/tanpawarit/flight-search-agent/agent/tool"
	"github.com/tanpawarit/flight-search-agent/pkg/airport"
	"github.com/tanpawarit/flight-search-agent/pkg/basemap"
	configx "github.com/tanpawarit/flight-search-agent/pkg/config"
	"github.com/tanpawarit/flight-search-agent/pkg/filestore"
	_ "github.com/tanpawarit/flight-search-agent/pkg/logger/autoload"
	openrouterx "github.com/tanpawarit/flight-search-agent/pkg/openrouter"
	"github.com/tanpawarit/flight-search-agent/pkg/render"
	"github.com/tanpawarit/flight-search-agent/pkg/route"
)

const version = "0.1.0"

type AppConfig struct {
	Host            string        `split_words:"true" default:"127.0.0.1"`
	Port            int           `split_words:"true" default:"8000"`
	PublicURL       string        `split_words:"true"`
	RequestTimeout  time.Duration `split_words:"true" default:"10m"`
	ShutdownTimeout time.Duration `split_words:"true" default:"15s"`
}

func (c AppConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c AppConfig) BaseURL() string {
	if u := strings.TrimSpace(c.PublicURL); u != "" {
		return strings.TrimRight(u, "/")
	}
	return "http://" + c.Addr()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatal().Err(err).Msg("flight search agent stopped")
	}
}

func run(ctx context.Context) error {
	appCfg := configx.MustNew[AppConfig]("")
	llmCfg := configx.MustNew[llmx.Config]("LLM")
	kiwiCfg := configx.MustNew[mcpx.Config]("KIWI")
	airportCfg := configx.MustNew[airport.Config]("AIRPORT")
	basemapCfg := configx.MustNew[basemap.Config]("BASEMAP")
	renderCfg := configx.MustNew[render.Config]("RENDER")
	filesCfg := configx.MustNew[filestore.Config]("FILES")
	historyCfg := configx.MustNew[statex.Config]("HISTORY")

	if err := llmCfg.Validate(); err != nil {
		return err
	}
	routerCfg := llmCfg.OpenRouter()
	if llmCfg.ProbeOnStart {
		if err := openrouterx.Probe(ctx, openrouterx.NewClient(routerCfg), routerCfg.Model); err != nil {
			return err
		}
	}
	chatModel, err := routerCfg.New(ctx)
	if err != nil {
		return err
	}

	systemPrompt, err := promptx.System()
	if err != nil {
		return err
	}
	agent, err := requirementx.New(chatModel,
		requirementx.Config{SystemPrompt: systemPrompt, MaxSteps: llmCfg.MaxSteps},
		requirementx.Rule{Tool: toolx.ToolEnsureAllData, ForceAtStep: 1},
		requirementx.Rule{Tool: toolx.ToolVisualizeFlights, ForceAfterRemote: true},
	)
	if err != nil {
		return err
	}

	airports, err := airport.Load(ctx, *airportCfg)
	if err != nil {
		return err
	}
	builder, err := route.NewBuilder(airports)
	if err != nil {
		return err
	}
	source, err := basemap.NewHTTPSource(*basemapCfg)
	if err != nil {
		return err
	}
	static, err := render.NewStaticRenderer(source, *renderCfg)
	if err != nil {
		return err
	}
	visualizer, err := visualizerx.New(builder, static, render.NewInteractiveRenderer())
	if err != nil {
		return err
	}

	kiwi, err := mcpx.NewProvider(*kiwiCfg)
	if err != nil {
		return err
	}

	store, closeStore, err := statex.Open(ctx, *historyCfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			log.Warn().Err(err).Msg("close history store")
		}
	}()
	history := statex.NewHistory(store)

	files, err := filestore.Open(*filesCfg, appCfg.BaseURL())
	if err != nil {
		return err
	}

	orchestrator, err := orchestratorx.New(agent, history, kiwi, visualizer, filestore.NewUploader(files))
	if err != nil {
		return err
	}

	opts := []serverx.Option{serverx.WithRequestTimeout(appCfg.RequestTimeout)}
	if mem, ok := files.(*filestore.MemoryStore); ok {
		opts = append(opts, serverx.WithFiles(mem))
	}
	srv, err := serverx.New(orchestrator, history, serverx.DefaultCard(appCfg.BaseURL(), version), opts...)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              appCfg.Addr(),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", httpServer.Addr).
			Str("model", routerCfg.Model).
			Str("history", historyCfg.Backend).
			Str("files", filesCfg.Backend).
			Msg("flight search agent listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), appCfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http: %w", err)
	}
	return nil
}
