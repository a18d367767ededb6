package engine

import (
	"context"
	"errors"
	"time"

	"github.com/algoflow/algoflow/common/crypto"
	"github.com/algoflow/algoflow/common/logger"
	"github.com/algoflow/algoflow/common/models"
	"github.com/algoflow/algoflow/common/repository"
)

// WorkflowStore loads workflow definitions
type WorkflowStore interface {
	GetByID(ctx context.Context, id int64) (*models.Workflow, error)
}

// ExecutionStore records execution lifecycles
type ExecutionStore interface {
	Create(ctx context.Context, workflowID int64, trigger string) (*models.Execution, error)
	Finish(ctx context.Context, id int64, status string, logs []models.LogEntry, errMsg *string) error
}

// SettingsStore loads gateway credentials
type SettingsStore interface {
	Get(ctx context.Context) (*models.Settings, error)
}

// Broadcaster publishes progress events to live subscribers
type Broadcaster interface {
	Broadcast(event models.ProgressEvent)
}

// GatewayFactory builds the gateway surfaces for one execution from the
// stored settings and the decrypted API key.
type GatewayFactory func(settings *models.Settings, apiKey string) (Gateway, Stream)

// Executor owns the workflow execution lifecycle: locking, the execution
// record, gateway construction, traversal and progress fanout.
type Executor struct {
	workflows  WorkflowStore
	executions ExecutionStore
	settings   SettingsStore
	cipher     *crypto.Cipher
	newGateway GatewayFactory
	broadcast  Broadcaster
	locks      *LockMap
	log        *logger.Logger

	now        func() time.Time
	streamWait time.Duration
}

// ExecutorOpts configures an Executor
type ExecutorOpts struct {
	Workflows   WorkflowStore
	Executions  ExecutionStore
	Settings    SettingsStore
	Cipher      *crypto.Cipher
	Gateway     GatewayFactory
	Broadcaster Broadcaster
	Logger      *logger.Logger

	// StreamWait overrides the streaming first-tick timeout, for tests
	StreamWait time.Duration
}

// NewExecutor creates a workflow executor
func NewExecutor(opts ExecutorOpts) *Executor {
	return &Executor{
		workflows:  opts.Workflows,
		executions: opts.Executions,
		settings:   opts.Settings,
		cipher:     opts.Cipher,
		newGateway: opts.Gateway,
		broadcast:  opts.Broadcaster,
		locks:      NewLockMap(),
		log:        opts.Logger,
		now:        time.Now,
		streamWait: opts.StreamWait,
	}
}

// ExecuteResponse is the envelope returned to every trigger source
type ExecuteResponse struct {
	Status         string            `json:"status"`
	Message        string            `json:"message,omitempty"`
	ExecutionID    int64             `json:"execution_id,omitempty"`
	AlreadyRunning bool              `json:"already_running,omitempty"`
	Logs           []models.LogEntry `json:"logs,omitempty"`
}

// Execute runs one workflow to completion. Business failures come back as
// error envelopes, never Go errors; the caller decides the transport
// mapping. A workflow that is already running returns immediately with
// AlreadyRunning set and no execution record.
func (e *Executor) Execute(ctx context.Context, workflowID int64, trigger string, payload any) *ExecuteResponse {
	wf, err := e.workflows.GetByID(ctx, workflowID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &ExecuteResponse{Status: "error", Message: "workflow not found"}
		}
		e.log.Error("failed to load workflow", "error", err, "workflow_id", workflowID)
		return &ExecuteResponse{Status: "error", Message: "failed to load workflow"}
	}

	release, ok := e.locks.TryAcquire(workflowID)
	if !ok {
		return &ExecuteResponse{
			Status:         "error",
			Message:        "workflow is already running",
			AlreadyRunning: true,
		}
	}
	defer release()

	exec, err := e.executions.Create(ctx, workflowID, trigger)
	if err != nil {
		e.log.Error("failed to create execution record", "error", err, "workflow_id", workflowID)
		return &ExecuteResponse{Status: "error", Message: "failed to create execution record"}
	}

	log := e.log.WithWorkflowID(workflowID).WithExecutionID(exec.ID)
	logs := NewLogBuffer(log)
	e.publish(models.ProgressEvent{
		WorkflowID:  workflowID,
		ExecutionID: exec.ID,
		Status:      models.ExecutionRunning,
		Message:     wf.Name,
	})

	fail := func(message string) *ExecuteResponse {
		logs.Append("error", "Error: "+message)
		if err := e.executions.Finish(ctx, exec.ID, models.ExecutionFailed, logs.Entries(), &message); err != nil {
			log.Error("failed to finish execution record", "error", err)
		}
		e.publish(models.ProgressEvent{
			WorkflowID:  workflowID,
			ExecutionID: exec.ID,
			Status:      models.ExecutionFailed,
			Message:     message,
		})
		return &ExecuteResponse{
			Status:      "error",
			Message:     message,
			ExecutionID: exec.ID,
			Logs:        logs.Entries(),
		}
	}

	settings, err := e.settings.Get(ctx)
	if err != nil {
		log.Error("failed to load settings", "error", err)
		return fail("failed to load settings")
	}
	if !settings.HasAPIKey() {
		return fail("gateway is not configured")
	}
	apiKey, err := e.cipher.Decrypt(settings.GatewayAPIKey)
	if err != nil {
		log.Error("failed to decrypt gateway key", "error", err)
		return fail("failed to decrypt gateway credentials")
	}
	gw, stream := e.newGateway(settings, apiKey)

	ectx := NewContext()
	if payload != nil {
		ectx.SetVariable("webhook", payload)
	}

	logs.Append("info", "Starting workflow: "+wf.Name)

	start, ok := wf.StartNode()
	if !ok {
		return fail("no start node found")
	}

	runner := NewRunner(RunnerOpts{
		Context:    ectx,
		Gateway:    gw,
		Stream:     stream,
		Logs:       logs,
		StreamWait: e.streamWait,
	})
	traverser := NewTraverser(TraverserOpts{
		Nodes:   wf.Nodes,
		Edges:   wf.Edges,
		Runner:  runner,
		Context: ectx,
		Logs:    logs,
		OnProgress: func(node models.Node, result Result) {
			status := models.ProgressNodeCompleted
			if !result.OK() {
				status = models.ProgressNodeFailed
			}
			e.publish(models.ProgressEvent{
				WorkflowID:  workflowID,
				ExecutionID: exec.ID,
				Status:      status,
				Message:     node.Label(),
			})
		},
	})

	if err := traverser.Run(ctx, start.ID); err != nil {
		return fail(err.Error())
	}

	logs.Append("info", "Workflow completed")
	if err := e.executions.Finish(ctx, exec.ID, models.ExecutionCompleted, logs.Entries(), nil); err != nil {
		log.Error("failed to finish execution record", "error", err)
	}
	e.publish(models.ProgressEvent{
		WorkflowID:  workflowID,
		ExecutionID: exec.ID,
		Status:      models.ExecutionCompleted,
		Message:     wf.Name,
	})

	return &ExecuteResponse{
		Status:      "success",
		Message:     "workflow executed successfully",
		ExecutionID: exec.ID,
		Logs:        logs.Entries(),
	}
}

func (e *Executor) publish(event models.ProgressEvent) {
	if e.broadcast == nil {
		return
	}
	event.Timestamp = e.now()
	e.broadcast.Broadcast(event)
}
