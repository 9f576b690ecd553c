/*
Package coordinator runs the bank workflows as sagas over the command bus.

Every workflow call gets a fresh correlation id. The coordinator issues one
command at a time, waits for its success or failure event and either moves
on, stops and compensates, or (for degradable steps) records a warning.
*/
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/segmentio/encoding/json"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/shortlink-org/bank-saga/config"
	"github.com/shortlink-org/bank-saga/contract"
	"github.com/shortlink-org/bank-saga/cqrs/bus"
	"github.com/shortlink-org/bank-saga/cqrs/handlers"
	cqrsmessage "github.com/shortlink-org/bank-saga/cqrs/message"
	"github.com/shortlink-org/bank-saga/cqrs/router"
	"github.com/shortlink-org/bank-saga/failure"
	"github.com/shortlink-org/bank-saga/logger"
	"github.com/shortlink-org/bank-saga/saga"
)

// Group is the consumer group of the coordinator's event subscriptions.
const Group = "coordinator"

var errNilCommands = errors.New("coordinator: command sender is required")

// CommandSender publishes commands; *bus.CommandBus implements it.
type CommandSender interface {
	Send(ctx context.Context, cmd cqrsmessage.Envelope, opts ...bus.PublishOption) error
}

type Coordinator struct {
	commands CommandSender
	awaiter  *saga.Awaiter
	store    saga.InstanceStore
	log      logger.Logger
	tracer   trace.Tracer

	newID func() string
	now   func() time.Time

	workflows map[string]Workflow

	timeout             time.Duration
	compensationTimeout time.Duration
}

// New builds a coordinator. store may be nil to run without persisted instances.
func New(
	log logger.Logger,
	cfg *config.Config,
	commands CommandSender,
	store saga.InstanceStore,
	tracerProvider trace.TracerProvider,
) (*Coordinator, error) {
	if commands == nil {
		return nil, errNilCommands
	}

	if tracerProvider == nil {
		tracerProvider = noop.NewTracerProvider()
	}

	cfg.SetDefault("SAGA_TIMEOUT", "30s")
	cfg.SetDefault("SAGA_COMPENSATION_TIMEOUT", "10s")

	workflows := map[string]Workflow{}
	for _, wf := range Workflows() {
		workflows[wf.Kind] = wf
	}

	return &Coordinator{
		commands:            commands,
		awaiter:             saga.NewAwaiter(log, contract.CommandOf),
		store:               store,
		log:                 log,
		tracer:              tracerProvider.Tracer("github.com/shortlink-org/bank-saga/coordinator"),
		newID:               uuid.NewString,
		now:                 time.Now,
		workflows:           workflows,
		timeout:             cfg.GetDuration("SAGA_TIMEOUT"),
		compensationTimeout: cfg.GetDuration("SAGA_COMPENSATION_TIMEOUT"),
	}, nil
}

// EventKeys lists the terminal events of every command the workflows issue.
func (c *Coordinator) EventKeys() []string {
	set := map[string]struct{}{}

	for _, wf := range c.workflows {
		for _, command := range wf.Commands() {
			set[contract.SuccessEvents[command]] = struct{}{}
			set[cqrsmessage.FailureKey(command)] = struct{}{}
		}
	}

	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	return keys
}

// Register subscribes the coordinator to the terminal events it awaits.
func (c *Coordinator) Register(r *message.Router, source router.SubscriberSource, namer *cqrsmessage.Namer, marshaler cqrsmessage.Marshaler) error {
	registrations := make([]router.HandlerRegistration, 0, len(c.EventKeys()))
	for _, key := range c.EventKeys() {
		registrations = append(registrations, router.HandlerRegistration{
			RoutingKey: key,
			Handler:    handlers.NewEnvelopeHandler(c, marshaler),
		})
	}

	return router.Register(r, source, router.RouterConfig{
		Group:    Group,
		Namer:    namer,
		Handlers: registrations,
	})
}

// Handle offers a terminal event to the saga waiting on its correlation id.
// Events no saga waits for are logged and dropped.
func (c *Coordinator) Handle(ctx context.Context, env cqrsmessage.Envelope) error {
	if delivery := c.awaiter.Deliver(env); delivery == saga.Unknown {
		c.log.DebugWithContext(ctx, "event without a running saga dropped",
			slog.String("correlation_id", env.CorrelationID),
			slog.String("routing_key", env.Type),
		)
	}

	return nil
}

// ApproveClient approves a client, opens the account, creates the client's
// credentials and notifies the account manager.
func (c *Coordinator) ApproveClient(ctx context.Context, req ApproveClientRequest) Result {
	input, err := req.validate()
	if err != nil {
		return validationFailed(err)
	}

	return c.run(ctx, KindApproveClient, c.newID(), input)
}

// CreateManager creates a manager, its credentials and hands it an account
// from the most loaded manager.
func (c *Coordinator) CreateManager(ctx context.Context, req CreateManagerRequest) Result {
	input, err := req.validate(c.newID())
	if err != nil {
		return validationFailed(err)
	}

	return c.run(ctx, KindCreateManager, c.newID(), input)
}

// DeleteManager moves a manager's accounts to the remaining managers, then
// removes the manager and its credentials.
func (c *Coordinator) DeleteManager(ctx context.Context, req DeleteManagerRequest) Result {
	input, err := req.validate()
	if err != nil {
		return validationFailed(err)
	}

	return c.run(ctx, KindDeleteManager, c.newID(), input)
}

// UpdateProfile updates a client's profile and recalculates the account limit.
func (c *Coordinator) UpdateProfile(ctx context.Context, req UpdateProfileRequest) Result {
	input, err := req.validate()
	if err != nil {
		return validationFailed(err)
	}

	return c.run(ctx, KindUpdateProfile, c.newID(), input)
}

// Recover marks the instances a previous process left running as abandoned.
// They are not resumed.
func (c *Coordinator) Recover(ctx context.Context) ([]saga.Instance, error) {
	if c.store == nil {
		return nil, nil
	}

	running, err := c.store.ListByStatus(ctx, saga.StatusRunning)
	if err != nil {
		return nil, fmt.Errorf("list running sagas: %w", err)
	}

	for i := range running {
		running[i].Status = saga.StatusAbandoned
		running[i].Reason = "coordinator restarted during step " + running[i].Step
		running[i].UpdatedAt = c.now().UTC()

		if err := c.store.Save(ctx, running[i]); err != nil {
			return nil, fmt.Errorf("mark saga %s abandoned: %w", running[i].CorrelationID, err)
		}

		c.log.WarnWithContext(ctx, "saga abandoned",
			slog.String("correlation_id", running[i].CorrelationID),
			slog.String("saga", running[i].Kind),
			slog.String("step", running[i].Step),
		)
	}

	return running, nil
}

func (c *Coordinator) run(ctx context.Context, kind, correlationID string, input cqrsmessage.Payload) Result {
	wf := c.workflows[kind]

	ctx, span := c.tracer.Start(ctx, "saga."+kind, trace.WithAttributes(
		attribute.String("saga", kind),
		attribute.String("correlation_id", correlationID),
	))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	defer c.awaiter.Forget(correlationID)

	log := logger.Bind(c.log, correlationID, map[string]string{"saga": kind})

	state := newState(correlationID, input)
	instance := saga.Instance{
		CorrelationID: correlationID,
		Kind:          kind,
		Step:          wf.Steps[0].Name,
		Status:        saga.StatusRunning,
		StartedAt:     c.now().UTC(),
	}

	c.save(ctx, &instance)
	log.InfoWithContext(ctx, "saga started")

	var warnings []string

	s := saga.New(kind,
		saga.WithCompensationTimeout(c.compensationTimeout),
		saga.WithCompensateFailed(func(err error) bool {
			// the outcome of a timed out command is unknown
			return failure.KindOf(err) == failure.KindTimeout
		}),
	)

	for _, def := range wf.Steps {
		then := func(ctx context.Context) error {
			instance.Step = def.Name
			c.save(ctx, &instance)

			env, err := c.roundTrip(ctx, kind, correlationID, def.Command, def.Build(state))
			if err != nil {
				return &StepError{Err: err, Step: def.Name, Command: def.Command}
			}

			if !cqrsmessage.IsFailure(env.Type) {
				state.Results[def.Name] = env.Payload

				return nil
			}

			failed := decodeFailure(env)
			if def.Degradable {
				warnings = append(warnings, def.Name+": "+failed.Reason)
				log.WarnWithContext(ctx, "degradable step failed",
					slog.String("step", def.Name),
					slog.String("reason", failed.Reason),
				)

				return nil
			}

			return &StepError{
				Err:     failure.New(failure.ParseKind(failed.Kind), def.Command, errors.New(failed.Reason)),
				Failure: &failed,
				Step:    def.Name,
				Command: def.Command,
			}
		}

		var reject saga.RejectFunc
		if def.Compensation != "" {
			reject = func(ctx context.Context, _ error) error {
				log.InfoWithContext(ctx, "compensating step",
					slog.String("step", def.Name),
					slog.String("routing_key", def.Compensation),
				)

				env, err := c.roundTrip(ctx, kind, correlationID, def.Compensation, def.BuildCompensation(state))
				if err != nil {
					return err
				}

				if cqrsmessage.IsFailure(env.Type) {
					return errors.New(decodeFailure(env).Reason)
				}

				return nil
			}
		}

		s.AddStep(def.Name, then, reject)
	}

	failedStep, err := s.Play(ctx)

	// the forward deadline may be gone, the final state must still land
	finalCtx := context.WithoutCancel(ctx)

	if failedStep == nil && err == nil {
		last := wf.Steps[len(wf.Steps)-1].Name
		instance.Step = last
		instance.Status = saga.StatusCompleted
		c.save(finalCtx, &instance)
		log.InfoWithContext(ctx, "saga completed", slog.Int("warnings", len(warnings)))

		var detail any
		if wf.Output != nil {
			detail = wf.Output(state)
		}

		return succeeded(last, detail, warnings)
	}

	result := c.failed(wf, s, failedStep, err, correlationID)

	span.RecordError(err)
	span.SetStatus(codes.Error, result.Message)

	instance.Status = saga.StatusFailed
	instance.Step = result.Step
	instance.Reason = result.Message
	c.save(finalCtx, &instance)

	log.WarnWithContext(ctx, "saga failed",
		slog.String("step", result.Step),
		slog.Int("status", result.StatusCode),
		slog.String("reason", result.Message),
	)

	return result
}

// roundTrip issues command and waits for its terminal event. The wait is
// registered before the command is published.
func (c *Coordinator) roundTrip(
	ctx context.Context,
	kind, correlationID, command string,
	payload cqrsmessage.Payload,
) (cqrsmessage.Envelope, error) {
	success := contract.SuccessEvents[command]
	failureKey := cqrsmessage.FailureKey(command)

	wait, err := c.awaiter.Expect(correlationID, command, success, failureKey)
	if err != nil {
		return cqrsmessage.Envelope{}, failure.Internal(command, err)
	}
	defer c.awaiter.Cancel(correlationID, wait)

	cmd := cqrsmessage.NewCommand(command, correlationID, payload)
	if err := c.commands.Send(ctx, cmd, bus.WithMetadata(cqrsmessage.MetadataSaga, kind)); err != nil {
		return cqrsmessage.Envelope{}, failure.Internal(command, err)
	}

	select {
	case env := <-wait.C():
		return env, nil
	case <-ctx.Done():
		return cqrsmessage.Envelope{}, failure.Timeout(command, "no %s or %s received: %v", success, failureKey, ctx.Err())
	}
}

func (c *Coordinator) failed(wf Workflow, s *saga.Saga, failedStep *saga.Step, err error, correlationID string) Result {
	var stepErr *StepError
	if !errors.As(err, &stepErr) {
		name := ""
		if failedStep != nil {
			name = failedStep.Name()
		}

		stepErr = &StepError{Err: err, Step: name}
	}

	detail := FailureDetail{
		Reason:        stepErr.Reason(),
		Kind:          string(stepErr.Kind()),
		CorrelationID: correlationID,
	}

	if stepErr.Failure != nil {
		detail.Payload = stepErr.Failure.Payload
	}

	for i, step := range s.Steps() {
		if !step.HasCompensation() || (step.Status() != saga.ROLLBACK && step.Status() != saga.FAIL) {
			continue
		}

		outcome := CompensationOutcome{
			Step:    step.Name(),
			Command: wf.Steps[i].Compensation,
			Success: step.Status() == saga.ROLLBACK,
		}

		if rejectErr := step.RejectErr(); rejectErr != nil {
			outcome.Error = rejectErr.Error()
		}

		detail.Compensations = append(detail.Compensations, outcome)
	}

	// compensations ran newest first
	slices.Reverse(detail.Compensations)

	return Result{
		Success:    false,
		Step:       stepErr.Step,
		Message:    stepErr.Reason(),
		Detail:     detail,
		StatusCode: stepErr.StatusCode(),
	}
}

func (c *Coordinator) save(ctx context.Context, instance *saga.Instance) {
	if c.store == nil {
		return
	}

	instance.UpdatedAt = c.now().UTC()

	if err := c.store.Save(ctx, *instance); err != nil {
		c.log.ErrorWithContext(ctx, "failed to persist saga instance",
			slog.String("correlation_id", instance.CorrelationID),
			slog.String("saga", instance.Kind),
			slog.Any("error", err),
		)
	}
}

func decodeFailure(env cqrsmessage.Envelope) contract.Failure {
	var f contract.Failure
	if err := env.Payload.Decode(&f); err != nil || f.Reason == "" {
		raw, _ := json.Marshal(env.Payload)
		f.Reason = env.Type + ": " + string(raw)
	}

	return f
}

func validationFailed(err error) Result {
	return Result{
		Success:    false,
		Step:       stepValidation,
		Message:    err.Error(),
		StatusCode: failure.StatusCode(failure.KindValidation),
	}
}
