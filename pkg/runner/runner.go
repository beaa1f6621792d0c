// Package runner executes the scripts behind published node versions. An
// execution runs on its own goroutine; the caller gets the persisted record
// back immediately and follows progress through the log and the broadcaster.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/nodeflow/nodeflow/pkg/broadcaster"
	"github.com/nodeflow/nodeflow/pkg/eventbus"
	"github.com/nodeflow/nodeflow/pkg/events"
	"github.com/nodeflow/nodeflow/pkg/models"
	"github.com/nodeflow/nodeflow/pkg/otelhelper"
	"github.com/nodeflow/nodeflow/pkg/persistence"
	"github.com/nodeflow/nodeflow/pkg/scripts"
	"github.com/nodeflow/nodeflow/pkg/services"
)

// Runner drives script executions.
type Runner struct {
	persistence persistence.Persistence
	resolver    *services.Resolver
	provider    scripts.Provider
	hub         *broadcaster.Hub
	bus         eventbus.EventPublisher
	tracer      trace.Tracer
	logger      *slog.Logger

	wg sync.WaitGroup
}

// Config carries the runner's collaborators. Hub, Bus, and Tracer are
// optional; a nil value disables the corresponding side channel.
type Config struct {
	Persistence persistence.Persistence
	Resolver    *services.Resolver
	Provider    scripts.Provider
	Hub         *broadcaster.Hub
	Bus         eventbus.EventPublisher
	Tracer      trace.Tracer
	Logger      *slog.Logger
}

// NewRunner creates an execution runner.
func NewRunner(cfg Config) *Runner {
	return &Runner{
		persistence: cfg.Persistence,
		resolver:    cfg.Resolver,
		provider:    cfg.Provider,
		hub:         cfg.Hub,
		bus:         cfg.Bus,
		tracer:      cfg.Tracer,
		logger:      cfg.Logger.With("module", "runner"),
	}
}

// ExecuteOptions carries the per-run inputs.
type ExecuteOptions struct {
	// SubNodeID layers a subnode's values into the resolution; empty runs
	// the bare version.
	SubNodeID string

	// Overrides are request-supplied values, the highest cascade level.
	// Keys matching a catalog parameter are checked and coerced under its
	// datatype; unknown keys pass through as strings.
	Overrides map[string]string

	TriggeredBy string
}

// Execute starts a run of a published version. The returned record is already
// persisted in the running state; the script body executes on its own
// goroutine, and script errors or panics end up in the record, never here.
func (r *Runner) Execute(ctx context.Context, versionID string, opts ExecuteOptions) (*models.NodeExecution, error) {
	version, err := r.persistence.Versions().GetByID(ctx, versionID)
	if err != nil {
		return nil, err
	}

	if version.State != models.VersionStatePublished {
		return nil, services.NewServiceError("Execute",
			fmt.Sprintf("version is %s", version.State), services.ErrVersionNotPublished)
	}

	params, err := r.resolveParams(ctx, versionID, opts)
	if err != nil {
		return nil, err
	}

	execution := &models.NodeExecution{
		ID:          uuid.New().String(),
		VersionID:   versionID,
		Status:      models.ExecutionStatusRunning,
		StartedAt:   time.Now().UTC(),
		TriggeredBy: opts.TriggeredBy,
	}

	if err := r.persistence.Executions().Create(ctx, execution); err != nil {
		return nil, fmt.Errorf("failed to create execution record: %w", err)
	}

	r.publish(ctx, &events.ExecutionStarted{
		BaseEvent:   r.baseEvent(events.ExecutionStartedEvent, version.FamilyID),
		ExecutionID: execution.ID,
		VersionID:   versionID,
		TriggeredBy: opts.TriggeredBy,
	})

	r.wg.Add(1)

	// The run outlives the request; only its values travel along.
	runCtx := context.WithoutCancel(ctx)

	go r.run(runCtx, version, execution, params)

	return execution, nil
}

// Wait blocks until every in-flight execution goroutine has finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Stop marks a running execution as stopped. The stop is advisory: the
// script goroutine is not preempted, but the record's terminal state is
// stopped and the late goroutine will not overwrite it.
func (r *Runner) Stop(ctx context.Context, executionID, stoppedBy string) (*models.NodeExecution, error) {
	execution, err := r.persistence.Executions().GetByID(ctx, executionID)
	if err != nil {
		return nil, err
	}

	if execution.Status != models.ExecutionStatusRunning {
		return nil, services.NewServiceError("Stop",
			fmt.Sprintf("execution is %s", execution.Status), services.ErrExecutionNotRunning)
	}

	r.appendLog(ctx, execution.ID, "manually stopped")

	execution.MarkStopped()

	if err := r.persistence.Executions().Update(ctx, execution); err != nil {
		// The script finished between the status check and the write.
		if errors.Is(err, persistence.ErrExecutionFinished) {
			return nil, services.NewServiceError("Stop",
				"execution finished before the stop landed", services.ErrExecutionNotRunning)
		}

		return nil, fmt.Errorf("failed to update execution: %w", err)
	}

	version, err := r.persistence.Versions().GetByID(ctx, execution.VersionID)
	if err == nil {
		r.publish(ctx, &events.ExecutionStopped{
			BaseEvent:   r.baseEvent(events.ExecutionStoppedEvent, version.FamilyID),
			ExecutionID: execution.ID,
			VersionID:   execution.VersionID,
			StoppedBy:   stoppedBy,
		})
	}

	return r.persistence.Executions().GetByID(ctx, executionID)
}

// resolveParams layers request overrides on top of the resolved, coerced
// cascade.
func (r *Runner) resolveParams(ctx context.Context, versionID string, opts ExecuteOptions) (map[string]any, error) {
	params, err := r.resolver.CoercedVersion(ctx, versionID, opts.SubNodeID)
	if err != nil {
		return nil, err
	}

	for key, value := range opts.Overrides {
		parameter, err := r.persistence.Parameters().GetByKey(ctx, key)
		if err != nil {
			if persistence.IsNotFound(err) {
				params[key] = value

				continue
			}

			return nil, err
		}

		coerced, err := parameter.Datatype.Coerce(value)
		if err != nil {
			return nil, services.NewServiceError("Execute",
				fmt.Sprintf("override %s", key), err)
		}

		params[key] = coerced
	}

	return params, nil
}

func (r *Runner) run(ctx context.Context, version *models.NodeVersion, execution *models.NodeExecution, params map[string]any) {
	defer r.wg.Done()

	var span trace.Span

	if r.tracer != nil {
		ctx, span = otelhelper.StartSpan(ctx, r.tracer, "execution.run",
			attribute.String(otelhelper.ExecutionIDKey, execution.ID),
			attribute.String(otelhelper.VersionIDKey, version.ID),
			attribute.String(otelhelper.FamilyIDKey, version.FamilyID),
			attribute.String(otelhelper.ScriptRefKey, version.ScriptRef),
		)
		defer span.End()
	}

	var (
		runErr    error
		artifacts map[string]any
	)

	defer func() {
		if recovered := recover(); recovered != nil {
			runErr = fmt.Errorf("script panicked: %v", recovered)
			r.logger.ErrorContext(ctx, "script panicked",
				"execution_id", execution.ID,
				"panic", recovered,
				"stack", string(debug.Stack()))
		}

		r.finish(ctx, version, execution, runErr, artifacts, span)
	}()

	logf := func(message string) {
		r.appendLog(ctx, execution.ID, message)
	}

	unit, err := r.provider.Load(ctx, version.ScriptRef)
	if err != nil {
		runErr = err

		logf(fmt.Sprintf("failed to load script %q: %v", version.ScriptRef, err))

		return
	}

	switch {
	case unit.Entry != nil:
		runErr = unit.Entry(ctx, params, logf)
	case unit.NewObject != nil:
		artifacts, runErr = runObject(ctx, unit.NewObject(), params, logf)
	default:
		logf("no entry point found in script")
	}
}

// finish settles the record exactly once. A stop that landed while the
// script was running wins; the late result is only logged.
func (r *Runner) finish(ctx context.Context, version *models.NodeVersion, execution *models.NodeExecution, runErr error, artifacts map[string]any, span trace.Span) {
	if runErr != nil {
		r.appendLog(ctx, execution.ID, fmt.Sprintf("execution failed: %v", runErr))

		if span != nil {
			otelhelper.SetError(span, runErr)
		}
	}

	current, err := r.persistence.Executions().GetByID(ctx, execution.ID)
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to load execution for completion",
			"execution_id", execution.ID,
			"error", err)

		return
	}

	if current.Status.IsTerminal() {
		return
	}

	if runErr != nil {
		current.MarkFailed()
	} else {
		current.MarkCompleted()
	}

	current.Artifacts = artifacts

	if err := r.persistence.Executions().Update(ctx, current); err != nil {
		// A stop that landed between the read above and this write settled
		// the record first; the repository refuses the second transition.
		if errors.Is(err, persistence.ErrExecutionFinished) {
			r.logger.InfoContext(ctx, "execution settled concurrently, keeping its state",
				"execution_id", execution.ID)

			return
		}

		r.logger.ErrorContext(ctx, "failed to update execution",
			"execution_id", execution.ID,
			"error", err)

		return
	}

	if runErr != nil {
		r.publish(ctx, &events.ExecutionFailed{
			BaseEvent:   r.baseEvent(events.ExecutionFailedEvent, version.FamilyID),
			ExecutionID: execution.ID,
			VersionID:   version.ID,
			Error:       runErr.Error(),
			Duration:    current.Duration(),
		})

		return
	}

	r.publish(ctx, &events.ExecutionCompleted{
		BaseEvent:   r.baseEvent(events.ExecutionCompletedEvent, version.FamilyID),
		ExecutionID: execution.ID,
		VersionID:   version.ID,
		Duration:    current.Duration(),
		Artifacts:   artifacts,
	})
}

// appendLog persists a log line and then offers it to the broadcaster.
// Persistence comes first so the stored log is complete even when every
// observer is gone; broadcaster failures never reach the script.
func (r *Runner) appendLog(ctx context.Context, executionID, message string) {
	now := time.Now().UTC()

	if err := r.persistence.Executions().AppendLog(ctx, executionID, models.LogLine(now, message)); err != nil {
		r.logger.ErrorContext(ctx, "failed to append execution log",
			"execution_id", executionID,
			"error", err)
	}

	if r.hub != nil {
		r.hub.Enqueue(broadcaster.Message{
			ExecutionID: executionID,
			Line:        message,
			At:          now,
		})
	}
}

func (r *Runner) publish(ctx context.Context, event eventbus.Event) {
	if r.bus == nil {
		return
	}

	if err := r.bus.Publish(ctx, uuid.New().String(), event); err != nil {
		r.logger.WarnContext(ctx, "failed to publish lifecycle event",
			"event_type", event.GetType(),
			"error", err)
	}
}

func (r *Runner) baseEvent(eventType events.EventType, familyID string) events.BaseEvent {
	return events.BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		FamilyID:  familyID,
	}
}
