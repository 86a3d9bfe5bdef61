// internal/pipeline/pipeline.go
// Package pipeline orchestrates the three-stage answer flow: formulate a
// query, retrieve context through the knowledge tool, synthesize an answer
// grounded in that context. Stage sequencing is enforced here; the model
// never chooses whether retrieval happens.
package pipeline

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/google/uuid"

	"context-chat/internal/common/errors"
	"context-chat/internal/common/metrics"
	"context-chat/internal/history"
	"context-chat/internal/models"
	"context-chat/internal/pipeline/formulate"
	"context-chat/internal/pipeline/retrieve"
	"context-chat/internal/pipeline/synthesize"
)

// State names the orchestrator's position in a run.
type State string

const (
	StateIdle         State = "idle"
	StateFormulating  State = "formulating"
	StateRetrieving   State = "retrieving"
	StateSynthesizing State = "synthesizing"
	StateCompleted    State = "completed"
	StateFailed       State = "failed"
)

// A run emits at most a handful of events; the buffer lets the run goroutine
// finish even when the caller stops reading after the terminal event.
const eventBufferSize = 16

// Logger interface definition
type Logger interface {
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// Formulator produces a retrieval query from a user message.
type Formulator interface {
	Execute(ctx context.Context, input *formulate.Input) (*formulate.Output, error)
}

// Retriever produces a validated context set from a query.
type Retriever interface {
	Execute(ctx context.Context, input *retrieve.Input) (*retrieve.Output, error)
}

// Synthesizer produces a grounded answer from a message and a context set.
type Synthesizer interface {
	Execute(ctx context.Context, input *synthesize.Input) (*synthesize.Output, error)
}

// ToolSession is one knowledge-tool process session. Start and Stop bracket
// a run; CallTool is only valid in between.
type ToolSession interface {
	Start(ctx context.Context) error
	Stop()
	CallTool(ctx context.Context, name string, arguments map[string]interface{}) (string, error)
}

// SessionFactory creates a fresh tool session for one run.
type SessionFactory func() ToolSession

// RetrieverFactory binds a retriever to the run's tool session.
type RetrieverFactory func(tool retrieve.ToolCaller) Retriever

// Orchestrator runs the pipeline. It holds no per-run state; every Run gets
// its own session and event channel.
type Orchestrator struct {
	formulator   Formulator
	synthesizer  Synthesizer
	newSession   SessionFactory
	newRetriever RetrieverFactory
	store        history.Store
	logger       Logger
}

func NewOrchestrator(
	formulator Formulator,
	synthesizer Synthesizer,
	newSession SessionFactory,
	newRetriever RetrieverFactory,
	store history.Store,
	log Logger,
) *Orchestrator {
	return &Orchestrator{
		formulator:   formulator,
		synthesizer:  synthesizer,
		newSession:   newSession,
		newRetriever: newRetriever,
		store:        store,
		logger:       log,
	}
}

// Run executes one user turn and streams its events. The channel is closed
// after exactly one terminal event: an error event, or a content event
// followed by a complete event.
func (o *Orchestrator) Run(ctx context.Context, req models.ChatRequest) <-chan models.PipelineEvent {
	events := make(chan models.PipelineEvent, eventBufferSize)
	go func() {
		defer close(events)
		o.run(ctx, req, events)
	}()
	return events
}

func (o *Orchestrator) run(ctx context.Context, req models.ChatRequest, events chan<- models.PipelineEvent) {
	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = uuid.NewString()
	}

	// Formulating
	events <- models.StatusEvent(string(StateFormulating), "Formulating search query")
	formulated, err := o.runFormulate(ctx, req.Message)
	if err != nil {
		o.fail(events, conversationID, StateFormulating, err)
		return
	}

	session := o.newSession()
	released := false
	release := func() {
		if !released {
			released = true
			session.Stop()
		}
	}
	defer release()

	events <- models.StatusEvent(string(StateRetrieving), "Starting knowledge tool")
	if err := session.Start(ctx); err != nil {
		o.fail(events, conversationID, StateRetrieving, err)
		return
	}

	// Retrieving
	events <- models.StatusEvent(string(StateRetrieving), "Searching for relevant context")
	retrieved, err := o.runRetrieve(ctx, session, formulated.Query)
	if err != nil {
		o.fail(events, conversationID, StateRetrieving, err)
		return
	}
	// Synthesis does not touch the tool; let the process go early.
	release()

	// Synthesizing
	events <- models.StatusEvent(string(StateSynthesizing), "Synthesizing answer from context")
	synthesized, err := o.runSynthesize(ctx, req.Message, retrieved.Documents)
	if err != nil {
		o.fail(events, conversationID, StateSynthesizing, err)
		return
	}

	o.persist(models.ConversationRecord{
		ConversationID: conversationID,
		Message:        req.Message,
		Answer:         synthesized.Answer.Text,
		Timestamp:      synthesized.Answer.Timestamp,
	})

	metrics.RunsCompleted.Inc()
	o.logger.Info("run completed", map[string]interface{}{
		"conversationId": conversationID,
		"documents":      len(retrieved.Documents),
	})

	events <- models.ContentEvent(&synthesized.Answer)
	events <- models.CompleteEvent()
}

func (o *Orchestrator) runFormulate(ctx context.Context, message string) (*formulate.Output, error) {
	start := time.Now()
	defer func() {
		metrics.StageDuration.WithLabelValues(string(StateFormulating)).Observe(time.Since(start).Seconds())
	}()
	return o.formulator.Execute(ctx, &formulate.Input{Message: message})
}

func (o *Orchestrator) runRetrieve(ctx context.Context, session ToolSession, query models.SearchQuery) (*retrieve.Output, error) {
	start := time.Now()
	defer func() {
		metrics.StageDuration.WithLabelValues(string(StateRetrieving)).Observe(time.Since(start).Seconds())
	}()
	return o.newRetriever(session).Execute(ctx, &retrieve.Input{Query: query})
}

func (o *Orchestrator) runSynthesize(ctx context.Context, message string, docs []models.RetrievedDocument) (*synthesize.Output, error) {
	start := time.Now()
	defer func() {
		metrics.StageDuration.WithLabelValues(string(StateSynthesizing)).Observe(time.Since(start).Seconds())
	}()
	return o.synthesizer.Execute(ctx, &synthesize.Input{Message: message, Documents: docs})
}

// persist writes the completed exchange best-effort. Failures are logged and
// counted but never turn a completed run into a failed one.
func (o *Orchestrator) persist(record models.ConversationRecord) {
	if o.store == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := o.store.Append(ctx, record); err != nil {
		warning := errors.NewPersistenceWarning(err)
		metrics.HistoryWriteFailures.Inc()
		o.logger.Warn("history write failed", map[string]interface{}{
			"conversationId": record.ConversationID,
			"errorCode":      string(warning.Code),
			"details":        warning.Details,
		})
	}
}

// fail emits the single terminal error event for a run.
func (o *Orchestrator) fail(events chan<- models.PipelineEvent, conversationID string, state State, err error) {
	perr := classify(state, err)
	metrics.RunsFailed.WithLabelValues(string(perr.Code)).Inc()
	o.logger.Error("run failed", map[string]interface{}{
		"conversationId": conversationID,
		"state":          string(state),
		"errorCode":      string(perr.Code),
		"details":        perr.Details,
		"retryable":      perr.Retryable,
	})
	events <- models.ErrorEvent(string(perr.Code), errors.UserMessage(perr.Code))
}

// classify maps a stage failure onto the structured error taxonomy.
// Unrecognized errors inherit the failing stage's characteristic code, so
// cancellation mid-stage still yields exactly one well-formed terminal event.
func classify(state State, err error) *errors.PipelineError {
	switch {
	case stderrors.Is(err, formulate.ErrEmptyQuery):
		return errors.NewEmptyQueryError(err.Error())
	case stderrors.Is(err, retrieve.ErrToolUnavailable):
		return errors.NewToolUnavailableError(err)
	case stderrors.Is(err, retrieve.ErrNoRelevantContext):
		return errors.NewNoRelevantContextError(err.Error())
	case stderrors.Is(err, synthesize.ErrSynthesisFailed):
		return errors.NewSynthesisFailedError(err)
	}

	switch state {
	case StateFormulating:
		return errors.NewEmptyQueryError(err.Error())
	case StateRetrieving:
		return errors.NewToolUnavailableError(err)
	default:
		return errors.NewSynthesisFailedError(err)
	}
}
