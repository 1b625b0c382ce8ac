package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/sirupsen/logrus"

	eventbus "github.com/hanpama/graphexec/internal/eventbus"
	executor "github.com/hanpama/graphexec/internal/executor"
	fixture "github.com/hanpama/graphexec/internal/fixture"
	language "github.com/hanpama/graphexec/internal/language"
	metrics "github.com/hanpama/graphexec/internal/metrics"
	otel "github.com/hanpama/graphexec/internal/otel"
	schema "github.com/hanpama/graphexec/internal/schema"
	server "github.com/hanpama/graphexec/internal/server"
)

const rootUsage = `graphexec - GraphQL execution engine & tools

USAGE:
  graphexec <command> [flags]

COMMANDS:
  serve            Serve a GraphQL endpoint backed by an SDL file and a JSON fixture
  exec             Execute one operation against an SDL file and a JSON fixture
  print-schema     Load, validate and print an SDL file
  help             Show help for any command
`

const serveUsage = `serve FLAGS:
  -schema <file>                  GraphQL SDL file (required)
  -data <file>                    JSON document used as the root value
  -watch                          Reload schema and data when the files change
  -server.addr <addr>             HTTP listen address (default: :8080)
  -server.pretty                  Pretty-print JSON responses
  -server.timeout <duration>      Per-request timeout, e.g. 10s (default: 10s)
  -server.max-body <bytes>        Maximum request body size (default: 1048576)
  -server.max-batch <n>           Maximum operations per batch, 0 for unlimited
  -server.cors-origin <origin>    Allowed CORS origin. Repeatable
  -server.graphiql <bool>         Serve GraphiQL to browsers (default: true)
  -metrics.addr <addr>            Serve Prometheus metrics on a separate address
  -exec.max-depth <n>             Maximum selection depth (default: 64)
  -exec.parallelism <n>           Concurrent resolvers per request, 0 for serial (default: 16)
  -otel.endpoint <addr>           OTLP collector endpoint
  -otel.service <name>            OpenTelemetry service name (default: graphexec)
  -log.level <level>              Log level (default: info)
`

const execUsage = `exec FLAGS:
  -schema <file>              GraphQL SDL file (required)
  -data <file>                JSON document used as the root value
  -query <file>               Query document, "-" for stdin (required)
  -operation <name>           Operation to execute
  -variables <json>           Variables as a JSON object
  -validate <bool>            Validate the document before executing (default: true)
  -pretty                     Pretty-print the JSON response
  -exec.max-depth <n>         Maximum selection depth (default: 64)
  -exec.parallelism <n>       Concurrent resolvers, 0 for serial (default: 16)
  -log.level <level>          Log level (default: warning)
`

const printSchemaUsage = `print-schema FLAGS:
  -schema <file>   GraphQL SDL file (required)
  -out <file>      Write rendered SDL to file (default: stdout)
`

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		logrus.WithError(err).Fatal("graphexec failed")
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	global := flag.NewFlagSet("graphexec", flag.ContinueOnError)
	global.SetOutput(new(bytes.Buffer)) // silence automatic output
	if err := global.Parse(args); err != nil {
		// print usage on parse error
		fmt.Fprint(stderr, rootUsage)
		return err
	}
	remaining := global.Args()
	if len(remaining) == 0 {
		fmt.Fprint(stderr, rootUsage)
		return fmt.Errorf("missing command")
	}

	cmd := remaining[0]
	cmdArgs := remaining[1:]
	switch cmd {
	case "serve":
		return cmdServe(ctx, cmdArgs, stderr)
	case "exec":
		return cmdExec(ctx, cmdArgs, stdin, stdout, stderr)
	case "print-schema":
		return cmdPrintSchema(cmdArgs, stdout, stderr)
	case "help":
		return cmdHelp(cmdArgs, stdout)
	default:
		fmt.Fprint(stderr, rootUsage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func cmdHelp(args []string, stdout io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stdout, rootUsage)
		return nil
	}
	switch args[0] {
	case "serve":
		fmt.Fprint(stdout, serveUsage)
	case "exec":
		fmt.Fprint(stdout, execUsage)
	case "print-schema":
		fmt.Fprint(stdout, printSchemaUsage)
	default:
		return fmt.Errorf("unknown help topic %q", args[0])
	}
	return nil
}

type stringListFlag []string

func (s *stringListFlag) String() string { return "" }

func (s *stringListFlag) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func newLogger(out io.Writer, level string) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	l := logrus.New()
	l.SetOutput(out)
	l.SetLevel(lvl)
	l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	return l, nil
}

func executorOptions(maxDepth, parallelism int, logger logrus.FieldLogger, bus *eventbus.Bus) []executor.Option {
	return []executor.Option{
		executor.WithMaxDepth(maxDepth),
		executor.WithParallelism(parallelism),
		executor.WithLogger(logger),
		executor.WithEventBus(bus),
	}
}

func cmdServe(ctx context.Context, args []string, stderr io.Writer) error {
	schemaPath := ""
	dataPath := ""
	watch := false
	addr := ":8080"
	pretty := false
	timeout := 10 * time.Second
	maxBody := int64(1 << 20)
	maxBatch := 0
	graphiql := true
	metricsAddr := ""
	maxDepth := executor.DefaultMaxDepth
	parallelism := 16
	otelEndpoint := ""
	otelService := "graphexec"
	logLevel := "info"
	var corsOrigins stringListFlag

	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&schemaPath, "schema", schemaPath, "GraphQL SDL file")
	fs.StringVar(&dataPath, "data", dataPath, "JSON root value")
	fs.BoolVar(&watch, "watch", watch, "Reload on change")
	fs.StringVar(&addr, "server.addr", addr, "HTTP listen address")
	fs.BoolVar(&pretty, "server.pretty", pretty, "Pretty-print JSON responses")
	fs.DurationVar(&timeout, "server.timeout", timeout, "Per-request timeout")
	fs.Int64Var(&maxBody, "server.max-body", maxBody, "Maximum request body size")
	fs.IntVar(&maxBatch, "server.max-batch", maxBatch, "Maximum operations per batch")
	fs.Var(&corsOrigins, "server.cors-origin", "Allowed CORS origin")
	fs.BoolVar(&graphiql, "server.graphiql", graphiql, "Serve GraphiQL")
	fs.StringVar(&metricsAddr, "metrics.addr", metricsAddr, "Prometheus metrics address")
	fs.IntVar(&maxDepth, "exec.max-depth", maxDepth, "Maximum selection depth")
	fs.IntVar(&parallelism, "exec.parallelism", parallelism, "Concurrent resolvers per request")
	fs.StringVar(&otelEndpoint, "otel.endpoint", otelEndpoint, "OTLP collector endpoint")
	fs.StringVar(&otelService, "otel.service", otelService, "OpenTelemetry service name")
	fs.StringVar(&logLevel, "log.level", logLevel, "Log level")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(stderr, serveUsage)
		return err
	}
	if schemaPath == "" {
		fmt.Fprint(stderr, serveUsage)
		return fmt.Errorf("-schema is required")
	}
	logger, err := newLogger(stderr, logLevel)
	if err != nil {
		return fmt.Errorf("-log.level: %w", err)
	}

	store, err := fixture.NewStore(schemaPath, dataPath, logger)
	if err != nil {
		return fmt.Errorf("load fixture: %w", err)
	}

	bus := eventbus.New()
	shutdown, err := otel.Setup(ctx, bus, otelEndpoint, otelService)
	if err != nil {
		return fmt.Errorf("otel setup: %w", err)
	}
	defer func() {
		logger.Info("flushing and shutting down telemetry")
		if err := shutdown(context.Background()); err != nil {
			logger.WithError(err).Error("shutting down telemetry")
		}
	}()
	m := metrics.New()
	m.Subscribe(bus)

	execOpts := executorOptions(maxDepth, parallelism, logger, bus)
	current := store.Current()
	sopts := []server.Option{
		server.WithTimeout(timeout),
		server.WithMaxBodyBytes(maxBody),
		server.WithMaxBatch(maxBatch),
		server.WithGraphiQL(graphiql),
		server.WithRootValue(current.Root),
		server.WithLogger(logger),
		server.WithEventBus(bus),
	}
	if pretty {
		sopts = append(sopts, server.WithPretty())
	}
	if len(corsOrigins) > 0 {
		sopts = append(sopts, server.WithCORS(corsOrigins...))
	}
	h, err := server.New(executor.NewExecutor(current.Schema, execOpts...), sopts...)
	if err != nil {
		return fmt.Errorf("server init: %w", err)
	}
	store.OnChange(func(f *fixture.Fixture) {
		h.Swap(executor.NewExecutor(f.Schema, execOpts...), f.Root)
	})
	if watch {
		go func() {
			if err := store.Watch(ctx); err != nil {
				logger.WithError(err).Error("fixture watcher stopped")
			}
		}()
	}

	mux := http.NewServeMux()
	mux.Handle("/graphql", h)
	var metricsMux *http.ServeMux
	if metricsAddr == "" || metricsAddr == addr {
		mux.Handle("/metrics", m.Handler())
	} else {
		metricsMux = http.NewServeMux()
		metricsMux.Handle("/metrics", m.Handler())
	}

	errc := make(chan error, 2)
	go func() { errc <- runHandler(ctx, logger, "graphql", addr, mux) }()
	if metricsMux != nil {
		go func() { errc <- runHandler(ctx, logger, "metrics", metricsAddr, metricsMux) }()
	}
	return <-errc
}

// runHandler serves handler on addr until ctx is done.
func runHandler(ctx context.Context, logger logrus.FieldLogger, name, addr string, handler http.Handler) error {
	srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}

	errc := make(chan error, 1)
	go func() {
		logger.WithField("addr", addr).Infof("serving %s handler", name)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("%s server: %w", name, err)
	case <-ctx.Done():
	}

	timeoutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	logger.Infof("shutting down %s handler", name)
	if err := srv.Shutdown(timeoutCtx); err != nil {
		return fmt.Errorf("shutting down %s server: %w", name, err)
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func cmdExec(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	schemaPath := ""
	dataPath := ""
	queryPath := ""
	operation := ""
	variables := ""
	validate := true
	pretty := false
	maxDepth := executor.DefaultMaxDepth
	parallelism := 16
	logLevel := "warning"

	fs := flag.NewFlagSet("exec", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&schemaPath, "schema", schemaPath, "GraphQL SDL file")
	fs.StringVar(&dataPath, "data", dataPath, "JSON root value")
	fs.StringVar(&queryPath, "query", queryPath, "Query document")
	fs.StringVar(&operation, "operation", operation, "Operation name")
	fs.StringVar(&variables, "variables", variables, "Variables JSON")
	fs.BoolVar(&validate, "validate", validate, "Validate before executing")
	fs.BoolVar(&pretty, "pretty", pretty, "Pretty-print the response")
	fs.IntVar(&maxDepth, "exec.max-depth", maxDepth, "Maximum selection depth")
	fs.IntVar(&parallelism, "exec.parallelism", parallelism, "Concurrent resolvers")
	fs.StringVar(&logLevel, "log.level", logLevel, "Log level")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(stderr, execUsage)
		return err
	}
	if schemaPath == "" || queryPath == "" {
		fmt.Fprint(stderr, execUsage)
		return fmt.Errorf("-schema and -query are required")
	}
	logger, err := newLogger(stderr, logLevel)
	if err != nil {
		return fmt.Errorf("-log.level: %w", err)
	}

	f, err := fixture.Load(schemaPath, dataPath)
	if err != nil {
		return fmt.Errorf("load fixture: %w", err)
	}
	var query []byte
	if queryPath == "-" {
		query, err = io.ReadAll(stdin)
	} else {
		query, err = os.ReadFile(queryPath)
	}
	if err != nil {
		return fmt.Errorf("read query: %w", err)
	}
	var vars map[string]any
	if variables != "" {
		v, err := fixture.DecodeJSON([]byte(variables))
		if err != nil {
			return fmt.Errorf("-variables: %w", err)
		}
		var ok bool
		if vars, ok = v.(map[string]any); !ok {
			return fmt.Errorf("-variables: expected a JSON object")
		}
	}

	res, err := execute(ctx, f, string(query), operation, vars, validate,
		executorOptions(maxDepth, parallelism, logger, nil)...)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(stdout)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(res)
}

func execute(
	ctx context.Context,
	f *fixture.Fixture,
	query, operation string,
	vars map[string]any,
	validate bool,
	opts ...executor.Option,
) (*executor.ExecutionResult, error) {
	doc, err := language.ParseQuery(query)
	if err != nil {
		return &executor.ExecutionResult{Errors: language.ErrorList{language.AsError(err)}}, nil
	}
	if validate {
		if errs := language.Validate(f.Schema.AST, doc); len(errs) > 0 {
			return &executor.ExecutionResult{Errors: errs}, nil
		}
	}
	res, err := executor.NewExecutor(f.Schema, opts...).ExecuteRequest(ctx, doc, operation, vars, f.Root)
	if err != nil {
		return nil, fmt.Errorf("execute: %w", err)
	}
	return res, nil
}

func cmdPrintSchema(args []string, stdout, stderr io.Writer) error {
	schemaPath := ""
	outFile := ""
	fs := flag.NewFlagSet("print-schema", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&schemaPath, "schema", schemaPath, "GraphQL SDL file")
	fs.StringVar(&outFile, "out", outFile, "Write rendered SDL to file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(stderr, printSchemaUsage)
		return err
	}
	if schemaPath == "" {
		fmt.Fprint(stderr, printSchemaUsage)
		return fmt.Errorf("-schema is required")
	}

	f, err := fixture.Load(schemaPath, "")
	if err != nil {
		return fmt.Errorf("load schema: %w", err)
	}
	sdl := schema.Render(f.Schema)
	if outFile == "" {
		_, err := fmt.Fprint(stdout, sdl)
		return err
	}
	return os.WriteFile(outFile, []byte(sdl), 0644)
}
