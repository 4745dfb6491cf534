package app

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/vk/agentgrid/internal/ctxlog"
	"github.com/vk/agentgrid/internal/scheduler"
	"github.com/vk/agentgrid/internal/task"
	"github.com/vk/agentgrid/internal/tools"
	"golang.org/x/sync/errgroup"
)

const maxRequestLine = 4 << 20

type runStats struct {
	submitted atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
}

// Run serves every request read from the configured source (stdin reads from
// in) and returns once all responses have been written. Failed requests are
// reported in their response line and do not fail the run.
func (a *App) Run(ctx context.Context, in io.Reader) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.ctx = ctx
	a.logger.Debug("App.Run method started.")
	defer a.closeModules()

	a.tasks = task.New(ctx, task.WithWorkers(a.config.TaskWorkers))
	defer a.tasks.Stop()

	if a.tools != nil && a.config.ToolsURL != "" {
		client, err := tools.DialSocketIO(ctx, tools.SocketIOConfig{
			URL:       a.config.ToolsURL,
			Namespace: a.config.ToolsNamespace,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to tool server: %w", err)
		}
		defer client.Close()
		a.tools.Client = client
	}

	a.sched = a.newScheduler(ctx)
	if err := a.registerHandlers(); err != nil {
		a.sched.Close()
		return err
	}
	a.logger.Info("Handlers registered:", "modules", a.sched.Modules())

	a.healthCheckServer()
	defer a.closeHealthCheckServer()

	src, err := a.openRequests(in)
	if err != nil {
		a.sched.Close()
		return err
	}
	defer src.Close()

	a.logger.Info("🚀 Serving requests...", "source", a.config.RequestsPath)
	out := newLineWriter(a.outW)
	stats := &runStats{}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer a.sched.Close()
		return a.readRequests(gctx, src, out, stats)
	})
	g.Go(func() error {
		return a.writeResponses(ctx, out, stats)
	})
	err = g.Wait()

	a.logger.Info("🏁 Requests finished.",
		"submitted", stats.submitted.Load(),
		"succeeded", stats.succeeded.Load(),
		"failed", stats.failed.Load(),
	)
	if err != nil {
		return fmt.Errorf("serving requests failed: %w", err)
	}
	a.logger.Debug("App.Run method finished.")
	return nil
}

func (a *App) openRequests(in io.Reader) (io.ReadCloser, error) {
	if a.config.RequestsPath == StdinPath {
		return io.NopCloser(in), nil
	}
	f, err := os.Open(a.config.RequestsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open requests: %w", err)
	}
	return f, nil
}

// readRequests enqueues one request per non-empty line. Lines that cannot be
// decoded or routed are answered immediately with an error line.
func (a *App) readRequests(ctx context.Context, src io.Reader, out *lineWriter, stats *runStats) error {
	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 0, 64*1024), maxRequestLine)

	lineNo := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		req, err := decodeRequest(line)
		if err == nil {
			var id string
			if id, err = a.sched.Enqueue(req); err == nil {
				req.ID = id
			}
		}
		if err != nil {
			a.logger.Warn("Request rejected.", "line", lineNo, "id", req.ID, "error", err)
			stats.failed.Add(1)
			rejected := responseLine{
				ID:     req.ID,
				Module: req.Module,
				Output: jsonNull,
				Error:  fmt.Sprintf("line %d: %v", lineNo, err),
			}
			if werr := out.write(rejected); werr != nil {
				return fmt.Errorf("writing response: %w", werr)
			}
			continue
		}
		stats.submitted.Add(1)
		a.logger.Debug("Request enqueued.", "line", lineNo, "id", req.ID, "module", req.Module)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading requests: %w", err)
	}
	return nil
}

// writeResponses drains the scheduler in completion order until it is closed.
func (a *App) writeResponses(ctx context.Context, out *lineWriter, stats *runStats) error {
	for resp := range a.sched.Responses(ctx) {
		if resp.Err != nil {
			stats.failed.Add(1)
			a.logger.Debug("Request failed.", "id", resp.ID, "module", resp.Module, "error", resp.Err)
		} else {
			stats.succeeded.Add(1)
		}
		if err := out.write(encodeResponse(resp)); err != nil {
			return fmt.Errorf("writing response: %w", err)
		}
	}
	return ctx.Err()
}

// Scheduler returns the running scheduler, or nil outside Run.
func (a *App) Scheduler() *scheduler.Scheduler {
	return a.sched
}
