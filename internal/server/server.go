package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	"github.com/vektah/gqlparser/v2/gqlerror"

	eventbus "github.com/hanpama/graphexec/internal/eventbus"
	events "github.com/hanpama/graphexec/internal/events"
	executor "github.com/hanpama/graphexec/internal/executor"
	language "github.com/hanpama/graphexec/internal/language"
	reqid "github.com/hanpama/graphexec/internal/reqid"
)

// Handler is an http.Handler that serves a GraphQL endpoint.
// It parses requests, validates and executes them, and writes the
// execution result as JSON.
type Handler struct {
	target  atomic.Pointer[target]
	opt     Options
	handler http.Handler
}

// target is what requests execute against. It is replaced as a whole.
type target struct {
	exec *executor.Executor
	root any
}

type Options struct {
	// Timeout sets a default timeout if the incoming request context has none.
	// 0 means no default timeout.
	Timeout time.Duration

	// Pretty enables indented JSON responses (useful for dev).
	Pretty bool

	// MaxBodyBytes limits the size of the request body. 0 means unlimited.
	MaxBodyBytes int64

	// MaxBatch limits the number of operations in a batch. 0 means unlimited.
	MaxBatch int

	// CORS configuration. If AllowedOrigins is empty, CORS is disabled.
	CORS CORSOptions

	// GraphiQL enables the in-browser IDE when true.
	GraphiQL bool

	// RootValue is the initial value of every operation.
	RootValue any

	Logger logrus.FieldLogger
	Bus    *eventbus.Bus
}

type Option func(*Options)

func WithTimeout(d time.Duration) Option { return func(o *Options) { o.Timeout = d } }
func WithPretty() Option                 { return func(o *Options) { o.Pretty = true } }
func WithMaxBodyBytes(n int64) Option    { return func(o *Options) { o.MaxBodyBytes = n } }
func WithMaxBatch(n int) Option          { return func(o *Options) { o.MaxBatch = n } }
func WithCORS(origins ...string) Option {
	return func(o *Options) { o.CORS.AllowedOrigins = origins }
}
func WithGraphiQL(enable bool) Option        { return func(o *Options) { o.GraphiQL = enable } }
func WithRootValue(v any) Option             { return func(o *Options) { o.RootValue = v } }
func WithLogger(l logrus.FieldLogger) Option { return func(o *Options) { o.Logger = l } }
func WithEventBus(bus *eventbus.Bus) Option  { return func(o *Options) { o.Bus = bus } }
func WithCORSOptions(c CORSOptions) Option   { return func(o *Options) { o.CORS = c } }

// CORSOptions holds the CORS settings passed to rs/cors.
type CORSOptions struct {
	AllowedOrigins   []string
	AllowedHeaders   []string
	AllowCredentials bool
	MaxAge           int
}

// New creates a new GraphQL HTTP handler executing requests with exec.
func New(exec *executor.Executor, opts ...Option) (*Handler, error) {
	if exec == nil {
		return nil, errors.New("server: nil executor")
	}
	op := Options{Timeout: 10 * time.Second, GraphiQL: true}
	for _, f := range opts {
		f(&op)
	}
	if op.Logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		op.Logger = l
	}
	h := &Handler{opt: op}
	h.target.Store(&target{exec: exec, root: op.RootValue})

	h.handler = http.HandlerFunc(h.serve)
	if len(op.CORS.AllowedOrigins) > 0 {
		headers := op.CORS.AllowedHeaders
		if len(headers) == 0 {
			headers = []string{"*"}
		}
		h.handler = cors.New(cors.Options{
			AllowedOrigins:   op.CORS.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost},
			AllowedHeaders:   headers,
			ExposedHeaders:   []string{reqid.Header},
			AllowCredentials: op.CORS.AllowCredentials,
			MaxAge:           op.CORS.MaxAge,
		}).Handler(h.handler)
	}
	return h, nil
}

// Swap replaces the executor and root value used by subsequent requests.
// Requests already running keep the previous ones.
func (h *Handler) Swap(exec *executor.Executor, root any) {
	h.target.Store(&target{exec: exec, root: root})
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.handler.ServeHTTP(w, r)
}

func (h *Handler) serve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := ctx.Deadline(); !ok && h.opt.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opt.Timeout)
		defer cancel()
	}

	ctx, rid := reqid.WithID(ctx, r.Header.Get(reqid.Header))
	w.Header().Set(reqid.Header, rid)
	status := http.StatusOK
	operations := 0
	start := time.Now()
	eventbus.Publish(ctx, h.opt.Bus, events.HTTPStart{Request: r, RequestID: rid})
	defer func() {
		duration := time.Since(start)
		eventbus.Publish(ctx, h.opt.Bus, events.HTTPFinish{
			Request:    r,
			RequestID:  rid,
			Status:     status,
			Operations: operations,
			Duration:   duration,
		})
		h.opt.Logger.WithFields(logrus.Fields{
			"request_id": rid,
			"method":     r.Method,
			"status":     status,
			"operations": operations,
			"duration":   duration,
		}).Debug("request served")
	}()

	if r.Method == http.MethodOptions {
		status = http.StatusNoContent
		w.WriteHeader(status)
		return
	}

	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		status = http.StatusMethodNotAllowed
		w.Header().Set("Allow", "GET, POST, OPTIONS")
		writeJSON(w, status, errorResult("method not allowed"), h.opt.Pretty)
		return
	}

	// Serve GraphiQL IDE when enabled and the client expects HTML.
	if r.Method == http.MethodGet && h.opt.GraphiQL && acceptsHTML(r.Header.Get("Accept")) && r.URL.Query().Get("query") == "" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(graphiqlPage)
		return
	}

	req, batch, perr := parseRequest(r, h.opt.MaxBodyBytes)
	if perr != nil {
		status = perr.status
		writeJSON(w, status, errorResult(perr.message), h.opt.Pretty)
		return
	}

	t := h.target.Load()
	if batch != nil {
		if h.opt.MaxBatch > 0 && len(batch) > h.opt.MaxBatch {
			status = http.StatusBadRequest
			writeJSON(w, status, errorResult("too many operations in batch"), h.opt.Pretty)
			return
		}
		operations = len(batch)
		results := make([]*executor.ExecutionResult, len(batch))
		for i := range batch {
			results[i], _ = h.executeOne(ctx, t, r.Method, batch[i])
		}
		writeJSON(w, status, results, h.opt.Pretty)
		return
	}

	operations = 1
	res, code := h.executeOne(ctx, t, r.Method, req)
	status = code
	writeJSON(w, status, res, h.opt.Pretty)
}

// executeOne runs one request and returns its result with the HTTP status
// it would have on its own.
func (h *Handler) executeOne(ctx context.Context, t *target, method string, req GraphQLRequest) (*executor.ExecutionResult, int) {
	doc, err := language.ParseQuery(req.Query)
	if err != nil {
		return &executor.ExecutionResult{Errors: gqlerror.List{language.AsError(err)}}, http.StatusOK
	}

	sch := t.exec.Schema()
	if errs := language.Validate(sch.AST, doc); len(errs) > 0 {
		return &executor.ExecutionResult{Errors: errs}, http.StatusOK
	}

	if method == http.MethodGet {
		if op := selectOperation(doc, req.OperationName); op != nil && op.Operation != language.Query {
			return errorResult("GET requests only support query operations"), http.StatusMethodNotAllowed
		}
	}

	res, err := t.exec.ExecuteRequest(ctx, doc, req.OperationName, req.Variables, t.root)
	if err != nil {
		rid, _ := reqid.FromContext(ctx)
		h.opt.Logger.WithError(err).WithFields(logrus.Fields{
			"request_id": rid,
			"operation":  req.OperationName,
		}).Error("execution failed")
		return errorResult("internal server error"), http.StatusInternalServerError
	}
	return res, http.StatusOK
}

func selectOperation(doc *language.QueryDocument, name string) *language.OperationDefinition {
	if name == "" {
		if len(doc.Operations) == 1 {
			return doc.Operations[0]
		}
		return nil
	}
	return doc.Operations.ForName(name)
}

// ------------------ Request parsing ------------------

type GraphQLRequest struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
	Extensions    map[string]any `json:"extensions,omitempty"`
}

type requestError struct {
	status  int
	message string
}

func badRequest(msg string) *requestError {
	return &requestError{status: http.StatusBadRequest, message: msg}
}

func parseRequest(r *http.Request, maxBody int64) (GraphQLRequest, []GraphQLRequest, *requestError) {
	if r.Method == http.MethodGet {
		q := r.URL.Query().Get("query")
		if q == "" {
			return GraphQLRequest{}, nil, badRequest("missing 'query'")
		}
		vars := map[string]any{}
		if v := r.URL.Query().Get("variables"); v != "" {
			if err := decodeJSON([]byte(v), &vars); err != nil {
				return GraphQLRequest{}, nil, badRequest("invalid 'variables' JSON")
			}
		}
		op := r.URL.Query().Get("operationName")
		return GraphQLRequest{Query: q, Variables: vars, OperationName: op}, nil, nil
	}

	// POST
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		if err != nil || (mt != "application/json" && mt != "application/graphql-response+json") {
			return GraphQLRequest{}, nil, &requestError{status: http.StatusUnsupportedMediaType, message: "unsupported Content-Type"}
		}
	}
	defer r.Body.Close()
	reader := io.Reader(r.Body)
	if maxBody > 0 {
		reader = io.LimitReader(r.Body, maxBody+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return GraphQLRequest{}, nil, badRequest("failed to read body")
	}
	if maxBody > 0 && int64(len(body)) > maxBody {
		return GraphQLRequest{}, nil, &requestError{status: http.StatusRequestEntityTooLarge, message: "body too large"}
	}

	// Try array (batch)
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "[") {
		var arr []GraphQLRequest
		if err := decodeJSON(body, &arr); err != nil {
			return GraphQLRequest{}, nil, badRequest("invalid JSON")
		}
		if len(arr) == 0 {
			return GraphQLRequest{}, nil, badRequest("empty batch")
		}
		return GraphQLRequest{}, arr, nil
	}
	// Single
	var req GraphQLRequest
	if err := decodeJSON(body, &req); err != nil {
		return GraphQLRequest{}, nil, badRequest("invalid JSON")
	}
	if req.Query == "" {
		return GraphQLRequest{}, nil, badRequest("missing 'query'")
	}
	if req.Variables == nil {
		req.Variables = map[string]any{}
	}
	return req, nil, nil
}

// decodeJSON keeps numbers as json.Number so that integer variables are not
// widened to float64.
func decodeJSON(data []byte, v any) error {
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()
	return dec.Decode(v)
}

// ------------------ Response formatting ------------------

func errorResult(msg string) *executor.ExecutionResult {
	return &executor.ExecutionResult{Errors: gqlerror.List{{Message: msg}}}
}

func writeJSON(w http.ResponseWriter, status int, v any, pretty bool) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	_ = enc.Encode(v)
}

func acceptsHTML(accept string) bool {
	if accept == "" {
		return false
	}
	for _, p := range strings.Split(accept, ",") {
		p = strings.TrimSpace(p)
		if strings.HasPrefix(p, "text/html") {
			return true
		}
	}
	return false
}
