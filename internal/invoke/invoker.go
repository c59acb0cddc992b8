// Package invoke runs one probe invocation: connect, run one operation,
// release, and report a status code with a short body.
package invoke

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/willibrandon/rdsprobe/internal/db"
	"github.com/willibrandon/rdsprobe/internal/db/models"
	"github.com/willibrandon/rdsprobe/internal/logger"
)

// Response is what an invocation returns to its caller.
type Response struct {
	StatusCode int
	Body       string
}

// OK returns true for a success status.
func (r Response) OK() bool {
	return r.StatusCode == http.StatusOK
}

// Connector opens a handle for one invocation. *db.Bootstrapper satisfies it.
type Connector interface {
	ResolveConnection(ctx context.Context, opts db.Options) (*db.Handle, error)
}

// Recorder persists the outcome of an invocation.
type Recorder interface {
	RecordRun(ctx context.Context, run models.Run) error
}

// Invoker runs operations with a fixed set of connection options.
type Invoker struct {
	conn     Connector
	opts     db.Options
	recorder Recorder
	now      func() time.Time
	newID    func() string
}

// Option configures an Invoker.
type Option func(*Invoker)

// WithRecorder records every run.
func WithRecorder(r Recorder) Option {
	return func(i *Invoker) { i.recorder = r }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(i *Invoker) { i.now = now }
}

// New creates an Invoker.
func New(conn Connector, opts db.Options, options ...Option) *Invoker {
	i := &Invoker{
		conn:  conn,
		opts:  opts,
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, o := range options {
		o(i)
	}
	return i
}

// Invoke connects, runs op, and releases the connection on every path. It
// never returns an error: failures become a non-success Response.
func (i *Invoker) Invoke(ctx context.Context, op Operation) Response {
	resp, _ := i.InvokeRun(ctx, op)
	return resp
}

// InvokeRun is Invoke that also returns the run record.
func (i *Invoker) InvokeRun(ctx context.Context, op Operation) (Response, models.Run) {
	run := models.Run{
		ID:        i.newID(),
		Operation: op.Name,
		AuthMode:  string(i.opts.AuthMode),
		Proxied:   i.opts.ProxyEndpoint != "",
		StartedAt: i.now(),
	}
	log := logger.With("invocation_id", run.ID, "operation", op.Name)
	log.Info("Handler starting", "auth_mode", run.AuthMode, "proxied", run.Proxied)

	body, err := i.run(ctx, op, &run)

	run.Duration = i.now().Sub(run.StartedAt)
	run.Outcome, run.StatusCode = Classify(err)
	if err != nil {
		run.Body = ErrorBody(err)
		run.Error = err.Error()
		run.Err = err
		log.Error("Invocation failed",
			"outcome", run.Outcome,
			"target", run.Target,
			"duration", run.Duration,
			"error", err,
		)
	} else {
		run.Body = body
		log.Info("Invocation succeeded",
			"target", run.Target,
			"duration", run.Duration,
			"body", body,
		)
	}

	i.record(ctx, run, log)

	return Response{StatusCode: run.StatusCode, Body: run.Body}, run
}

func (i *Invoker) run(ctx context.Context, op Operation, run *models.Run) (string, error) {
	if op.Run == nil {
		return "", &db.ConfigurationError{Reason: "no operation configured"}
	}

	h, err := i.conn.ResolveConnection(ctx, i.opts)
	if err != nil {
		var connErr *db.ConnectionError
		if errors.As(err, &connErr) {
			run.Target = connErr.Target
		}
		return "", err
	}
	defer h.Release()

	params := h.Params()
	run.Target = params.Target()
	run.TLS = params.TLSRequired()

	logger.Debug("Has db connection", "invocation_id", run.ID, "target", run.Target)

	body, err := op.Run(ctx, h.Pool())
	if err != nil {
		var cfgErr *db.ConfigurationError
		if errors.As(err, &cfgErr) {
			return "", err
		}
		return "", &db.QueryError{Operation: op.Name, Err: err}
	}
	return body, nil
}

func (i *Invoker) record(ctx context.Context, run models.Run, log *slog.Logger) {
	if i.recorder == nil {
		return
	}
	if err := i.recorder.RecordRun(ctx, run); err != nil {
		log.Warn("Failed to record run", "error", err)
	}
}
