package webhook

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ghl-backend/internal/webhook/domain"
	"ghl-backend/internal/webhook/usecase"
	"ghl-backend/pkg/apperrors"

	"cloud.google.com/go/pubsub"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

// Subscriber consumes webhook payloads published to a Pub/Sub topic and
// dispatches them like HTTP webhooks.
type Subscriber struct {
	client     *pubsub.Client
	dispatcher usecase.Dispatcher
	topicName  string
	subName    string
	logger     zerolog.Logger
}

func NewSubscriber(ctx context.Context, projectID, topic, credentialsFile string, dispatcher usecase.Dispatcher, logger zerolog.Logger) (*Subscriber, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}

	// Accept the full resource name as well as the short topic name.
	if parts := strings.Split(topic, "/"); len(parts) > 1 {
		topic = parts[len(parts)-1]
	}

	return &Subscriber{
		client:     client,
		dispatcher: dispatcher,
		topicName:  topic,
		subName:    topic + "-sub",
		logger:     logger,
	}, nil
}

// Start blocks receiving messages until ctx is done.
func (s *Subscriber) Start(ctx context.Context) error {
	log := s.logger.With().Str("topic", s.topicName).Str("subscription", s.subName).Logger()

	sub := s.client.Subscription(s.subName)
	exists, err := sub.Exists(ctx)
	if err != nil {
		return fmt.Errorf("check subscription %s: %w", s.subName, err)
	}

	if !exists {
		topic := s.client.Topic(s.topicName)
		topicExists, err := topic.Exists(ctx)
		if err != nil {
			return fmt.Errorf("check topic %s: %w", s.topicName, err)
		}
		if !topicExists {
			return fmt.Errorf("topic %s does not exist", s.topicName)
		}

		sub, err = s.client.CreateSubscription(ctx, s.subName, pubsub.SubscriptionConfig{
			Topic:       topic,
			AckDeadline: 60 * time.Second,
		})
		if err != nil {
			return fmt.Errorf("create subscription %s: %w", s.subName, err)
		}
		log.Info().Msg("created subscription")
	}

	log.Info().Msg("listening for webhook messages")
	return sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if s.handle(ctx, msg.ID, msg.Data) {
			msg.Ack()
		} else {
			msg.Nack()
		}
	})
}

func (s *Subscriber) Close() error {
	return s.client.Close()
}

// handle dispatches one message and reports whether it should be acked.
// Payloads that can never succeed are acked so they are not redelivered.
func (s *Subscriber) handle(ctx context.Context, messageID string, data []byte) bool {
	log := s.logger.With().Str("message_id", messageID).Logger()

	event, err := domain.Parse(data)
	if err != nil {
		log.Warn().Err(err).Msg("dropping undecodable webhook message")
		return true
	}

	outcome, err := s.dispatcher.Dispatch(ctx, event)
	if err != nil {
		if permanent(err) {
			log.Warn().Err(err).Str("event", event.Type).Msg("dropping webhook message")
			return true
		}
		log.Error().Err(err).Str("event", event.Type).Msg("webhook message failed, will be redelivered")
		return false
	}

	log.Debug().Str("event", outcome.Type).Bool("handled", outcome.Handled).Msg("webhook message processed")
	return true
}

func permanent(err error) bool {
	return errors.Is(err, apperrors.ErrInvalidPayload) ||
		errors.Is(err, apperrors.ErrInvalidArgument) ||
		errors.Is(err, apperrors.ErrInvalidInstallRequest) ||
		errors.Is(err, apperrors.ErrCompanyTokenNotFound)
}
