package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// ErrUnknownJob is returned by Dispatch for unrecognised job types.
var ErrUnknownJob = errors.New("unknown job type")

// JobMessage is the Pub/Sub payload that triggers a job.
type JobMessage struct {
	JobType string `json:"job_type"`
}

// Dispatcher runs the job named in a message payload.
type Dispatcher struct {
	job    *AssessmentJob
	logger zerolog.Logger
}

// NewDispatcher creates a dispatcher for job.
func NewDispatcher(job *AssessmentJob, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{job: job, logger: logger}
}

// Dispatch decodes data and runs the requested job. Malformed payloads and
// unknown job types return errors wrapping ErrUnknownJob; they are never
// worth redelivering.
func (d *Dispatcher) Dispatch(ctx context.Context, data []byte) error {
	var msg JobMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("%w: decode message: %v", ErrUnknownJob, err)
	}

	d.logger.Debug().Str("job_type", msg.JobType).Msg("dispatching job")

	switch msg.JobType {
	case JobAssessmentRefresh:
		result := d.job.Run(ctx)
		if result.Outcome() == OutcomeFailure {
			return fmt.Errorf("too many assessment failures: %d/%d", result.Failed, result.TotalPoints)
		}
		return nil
	case JobHealthCheck:
		return d.job.HealthCheck(ctx)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownJob, msg.JobType)
	}
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	Dispatcher       *Dispatcher
	Logger           zerolog.Logger
}

// PubSubHandler receives job messages from a Pub/Sub subscription.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	dispatcher       *Dispatcher
	logger           zerolog.Logger
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)
	// Assessment runs are long and not idempotent-cheap; take one at a time.
	subscriber.ReceiveSettings.MaxOutstandingMessages = 1
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		dispatcher:       cfg.Dispatcher,
		logger:           cfg.Logger,
	}, nil
}

// Start receives messages until ctx is canceled.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().Str("subscription", h.subscriptionName).Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		logger := h.logger.With().Str("message_id", msg.ID).Logger()
		start := time.Now()

		err := h.dispatcher.Dispatch(ctx, msg.Data)
		switch {
		case errors.Is(err, ErrUnknownJob):
			logger.Warn().Err(err).Msg("dropping message")
			msg.Ack()
		case err != nil:
			logger.Error().Err(err).Msg("job failed")
			msg.Nack()
		default:
			logger.Info().Dur("duration", time.Since(start)).Msg("job completed")
			msg.Ack()
		}
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}
