// Command sreagentd runs the SRE agent platform's runtime as a standalone
// HTTP service: the registry, message bus, context store, inventory guard,
// and all eight specialists are wired up and fronted by the orchestrator.
// Grounded on the teacher's example/cmd/assistant/main.go: flag parsing,
// goa.design/clue logging setup, and a signal-driven graceful shutdown.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	mongooptions "go.mongodb.org/mongo-driver/v2/mongo/options"
	"goa.design/clue/log"

	"github.com/sre-agent-platform/sre-agent/internal/config"
	"github.com/sre-agent-platform/sre-agent/internal/telemetry"
	"github.com/sre-agent-platform/sre-agent/pkg/agent"
	"github.com/sre-agent-platform/sre-agent/pkg/bus"
	"github.com/sre-agent-platform/sre-agent/pkg/cache"
	"github.com/sre-agent-platform/sre-agent/pkg/contextstore"
	mongostore "github.com/sre-agent-platform/sre-agent/pkg/contextstore/mongo"
	"github.com/sre-agent-platform/sre-agent/pkg/interaction"
	"github.com/sre-agent-platform/sre-agent/pkg/inventory"
	"github.com/sre-agent-platform/sre-agent/pkg/llm"
	"github.com/sre-agent-platform/sre-agent/pkg/llm/anthropicllm"
	"github.com/sre-agent-platform/sre-agent/pkg/orchestrator"
	"github.com/sre-agent-platform/sre-agent/pkg/registry"
	"github.com/sre-agent-platform/sre-agent/pkg/specialist"
	"github.com/sre-agent-platform/sre-agent/pkg/stream/pulse"
	"github.com/sre-agent-platform/sre-agent/pkg/stream/pulse/pulseclient"
	"github.com/sre-agent-platform/sre-agent/pkg/toolproxy"
	"github.com/sre-agent-platform/sre-agent/pkg/toolproxy/mcp"
)

// categoryTools mirrors the tool sets pkg/orchestrator's intent table
// assigns each category, so every tool the router can dispatch has a
// registered owner. Kept here (rather than exported from pkg/orchestrator)
// since tool-to-specialist assignment is an operator wiring decision, not
// part of the orchestrator's own routing logic.
var categoryTools = map[string][]string{
	"health": {
		"check_resource_health", "check_container_app_health", "check_aks_cluster_health",
		"get_diagnostic_logs", "search_logs_by_error",
	},
	"incident": {
		"triage_incident", "generate_incident_summary", "correlate_alerts",
		"generate_postmortem_template", "analyze_activity_log",
	},
	"performance": {
		"get_performance_metrics", "identify_bottlenecks",
		"get_capacity_recommendations", "compare_baseline_metrics",
	},
	"cost": {
		"get_cost_analysis", "get_cost_recommendations",
		"identify_orphaned_resources", "analyze_idle_resources",
	},
	"slo": {
		"calculate_error_budget", "get_slo_dashboard", "define_slo",
	},
	"security": {
		"get_security_score", "list_security_recommendations", "check_compliance_status",
	},
	"remediation": {
		"plan_remediation", "execute_safe_restart", "scale_resource", "clear_cache",
	},
	"config": {
		"query_app_service_configuration", "query_container_app_configuration",
		"query_aks_configuration", "query_apim_configuration",
	},
}

func main() {
	var (
		httpPortF    = flag.String("http-port", envOr("HTTP_PORT", "8080"), "HTTP port to listen on")
		mcpEndpointF = flag.String("mcp-endpoint", os.Getenv("MCP_ENDPOINT"), "MCP tool server endpoint (JSON-RPC over HTTP)")
		configFileF  = flag.String("config", os.Getenv("SRE_AGENT_CONFIG_FILE"), "optional YAML config overlay path")
		dbgF         = flag.Bool("debug", os.Getenv("DEBUG") == "true", "enable debug logging")
	)
	flag.Parse()

	format := log.FormatJSON
	if log.IsTerminal() {
		format = log.FormatTerminal
	}
	ctx := log.Context(context.Background(), log.WithFormat(format))
	if *dbgF {
		ctx = log.Context(ctx, log.WithDebug())
	}

	cfg := config.FromEnv()
	if *configFileF != "" {
		data, err := os.ReadFile(*configFileF)
		if err != nil {
			log.Fatal(ctx, fmt.Errorf("read config overlay %s: %w", *configFileF, err))
		}
		cfg, err = config.LoadYAMLOverlay(cfg, data)
		if err != nil {
			log.Fatal(ctx, err)
		}
	}

	logger := telemetry.NewClueLogger()
	metrics := telemetry.NewClueMetrics()

	orch, cleanup := buildRuntime(ctx, cfg, logger, metrics, *mcpEndpointF)
	defer cleanup(ctx)

	srv := &http.Server{
		Addr:    ":" + *httpPortF,
		Handler: newRouter(orch, logger),
	}

	errc := make(chan error, 1)
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		errc <- fmt.Errorf("%s", <-c)
	}()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Printf(ctx, "listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
	}()

	log.Printf(ctx, "exiting (%v)", <-errc)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	wg.Wait()
	log.Printf(ctx, "exited")
}

// buildRuntime wires every runtime component (C1-C11) into a ready-to-serve
// Orchestrator, plus a cleanup function releasing agents and external
// connections on shutdown.
func buildRuntime(ctx context.Context, cfg config.Config, logger telemetry.Logger, metrics telemetry.Metrics, mcpEndpoint string) (*orchestrator.Orchestrator, func(context.Context)) {
	var cleanups []func(context.Context)

	toolCache := cache.New(cache.WithMaxEntries(cfg.CacheMaxEntries), cache.WithLogger(logger))
	msgBus := bus.New(bus.WithLogger(logger))

	ctxStoreOpts := []contextstore.Option{contextstore.WithLogger(logger)}
	if mongoURI := os.Getenv("MONGO_URI"); mongoURI != "" {
		mongoClient, err := mongodriver.Connect(ctx, mongooptions.Client().ApplyURI(mongoURI))
		if err != nil {
			log.Fatal(ctx, fmt.Errorf("connect to mongodb: %w", err))
		}
		docStore, err := mongostore.New(ctx, mongostore.Options{
			Client:   mongoClient,
			Database: envOr("MONGO_DATABASE", "sre_agent"),
		})
		if err != nil {
			log.Fatal(ctx, fmt.Errorf("init mongo document store: %w", err))
		}
		ctxStoreOpts = append(ctxStoreOpts, contextstore.WithDocumentStore(docStore))
		cleanups = append(cleanups, func(context.Context) { _ = mongoClient.Disconnect() })
	}
	ctxStore := contextstore.New(ctxStoreOpts...)

	reg := registry.New(registry.WithLogger(logger), registry.WithMetrics(metrics))

	agentOpts := []agent.Option{agent.WithLogger(logger), agent.WithMetrics(metrics)}

	var streamSink *pulse.Sink
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: redisAddr})
		pulseCli, err := pulseclient.New(pulseclient.Options{Redis: redisClient, OperationTimeout: 5 * time.Second})
		if err != nil {
			log.Fatal(ctx, fmt.Errorf("init pulse client: %w", err))
		}
		streamSink, err = pulse.NewSink(pulse.Options{Client: pulseCli, Logger: logger})
		if err != nil {
			log.Fatal(ctx, fmt.Errorf("init pulse sink: %w", err))
		}
		cleanups = append(cleanups, func(c context.Context) { _ = redisClient.Close() })
	}

	var transport toolproxy.Transport
	if mcpEndpoint != "" {
		mcpClient, err := mcp.New(ctx, mcp.Options{Endpoint: mcpEndpoint})
		if err != nil {
			log.Fatal(ctx, fmt.Errorf("connect to mcp tool server: %w", err))
		}
		transport = toolproxy.NewRateLimitedTransport(mcpClient, 10, 5)
	} else {
		log.Print(ctx, log.KV{K: "msg", V: "MCP_ENDPOINT not set; tool proxy runs with no live transport"})
		transport = unconfiguredTransport{}
	}

	toolProxy := toolproxy.New(transport, toolCache, agentOpts, toolproxy.WithLogger(logger))
	registerWithStream(ctx, reg, toolProxy.BaseAgent, nil, streamSink)

	ih := interaction.New(nil, interaction.WithLogger(logger))
	schemas := interaction.NewSchemaValidator()

	snapshot := inventory.NewStaticSnapshot(nil)
	mode := inventory.Strict
	if !cfg.InventoryStrictMode {
		mode = inventory.Lax
	}
	guard := inventory.New(snapshot, inventory.WithMode(mode), inventory.WithLogger(logger))

	constructors := map[string]func([]agent.Option, *contextstore.Store, specialist.ToolCaller) *specialist.Base{
		"health":      specialist.NewHealthMonitoring,
		"incident":    specialist.NewIncidentResponse,
		"performance": specialist.NewPerformanceAnalysis,
		"cost":        specialist.NewCostOptimization,
		"slo":         specialist.NewSLOManagement,
		"security":    specialist.NewSecurityCompliance,
		"remediation": specialist.NewRemediation,
		"config":      specialist.NewConfigurationManagement,
	}
	for category, newSpecialist := range constructors {
		sp := newSpecialist(agentOpts, ctxStore, toolProxy)
		if !sp.Initialize(ctx) {
			log.Fatal(ctx, fmt.Errorf("specialist %s failed to initialize", category))
		}
		registerWithStream(ctx, reg, sp.BaseAgent, categoryTools[category], streamSink)
	}

	var orch *orchestrator.Orchestrator
	generalAgent := agent.New("general-capabilities", agent.ExecutorFunc(func(_ context.Context, _ agent.Request) (agent.Result, error) {
		caps := orch.GetCapabilities()
		return agent.Result{
			"total_tools":       caps.TotalTools,
			"total_agents":      caps.TotalAgents,
			"categories":        caps.Categories,
			"tools_by_category": caps.ToolsByCategory,
		}, nil
	}), agentOpts...)
	if !generalAgent.Initialize(ctx) {
		log.Fatal(ctx, fmt.Errorf("general capabilities agent failed to initialize"))
	}
	registerWithStream(ctx, reg, generalAgent, []string{"describe_capabilities"}, streamSink)

	orchOpts := []orchestrator.Option{
		orchestrator.WithLogger(logger),
		orchestrator.WithInventoryGuard(guard),
		orchestrator.WithSchemaValidator(schemas),
	}
	if classifier := buildLLMClassifier(); classifier != nil {
		orchOpts = append(orchOpts, orchestrator.WithLLMClassifier(classifier))
	}
	orch = orchestrator.New(reg, msgBus, ctxStore, ih, cfg, orchOpts...)

	cleanup := func(c context.Context) {
		for _, fn := range cleanups {
			fn(c)
		}
	}
	return orch, cleanup
}

// registerWithStream registers a into the registry, wires tools (if any)
// to it, and installs the Pulse sink as its streaming callback when one is
// configured (multi-replica deployments only; the default is no sink, in
// which case HandleRequest's streaming events simply have no subscriber).
func registerWithStream(ctx context.Context, reg *registry.Registry, a *agent.BaseAgent, tools []string, sink *pulse.Sink) {
	reg.Register(ctx, a, nil)
	for _, tool := range tools {
		reg.RegisterTool(tool, a.AgentID(), registry.ToolDescriptor{Name: tool})
	}
	if sink != nil {
		a.SetStreamCallback(sink.Callback(ctx))
	}
}

// buildLLMClassifier constructs the orchestrator's optional free-text
// fallback classifier from whichever provider's credentials are present in
// the environment. Returns nil (no fallback) if none are configured.
func buildLLMClassifier() llm.Client {
	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		model := envOr("ANTHROPIC_MODEL", "claude-3-5-haiku-latest")
		client, err := anthropicllm.NewFromAPIKey(apiKey, model)
		if err != nil {
			return nil
		}
		return client
	}
	return nil
}

// unconfiguredTransport is the toolproxy.Transport used when no MCP
// endpoint is configured: every call fails clearly rather than the process
// refusing to start, so the orchestrator and specialists can still be
// exercised (capabilities, routing, caching) without a live tool server.
type unconfiguredTransport struct{}

func (unconfiguredTransport) CallTool(_ context.Context, req toolproxy.CallRequest) (toolproxy.CallResponse, error) {
	return toolproxy.CallResponse{}, fmt.Errorf("toolproxy: no MCP endpoint configured, cannot call %s", req.Tool)
}

func newRouter(orch *orchestrator.Orchestrator, logger telemetry.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	mux.HandleFunc("GET /v1/capabilities", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, orch.GetCapabilities())
	})

	mux.HandleFunc("POST /v1/execute", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Query       string         `json:"query"`
			Parameters  map[string]any `json:"parameters"`
			Context     map[string]any `json:"context"`
			WorkflowID  string         `json:"workflow_id"`
			Interactive bool           `json:"interactive"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		resp := orch.Execute(r.Context(), orchestrator.Request{
			Query:       body.Query,
			Parameters:  body.Parameters,
			Context:     body.Context,
			WorkflowID:  body.WorkflowID,
			Interactive: body.Interactive,
		})
		writeJSON(w, http.StatusOK, resp)
	})

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
