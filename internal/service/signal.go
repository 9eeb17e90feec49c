package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/teknolab/repute/internal/domain"
)

// Channel carrying reputation change events.
const signalChannel = "repute:events"

// SignalService publishes reputation change events over redis and fans
// them back out to realtime subscribers.
type SignalService struct {
	rdb *redis.Client
}

func NewSignalService(redisClient *redis.Client) *SignalService {
	return &SignalService{
		rdb: redisClient,
	}
}

func (s *SignalService) Publish(ctx context.Context, event domain.ReputationEvent) error {
	jsonstr, err := json.Marshal(event)
	if err != nil {
		return err
	}

	err = s.rdb.Publish(ctx, signalChannel, jsonstr).Err()
	if err != nil {
		return err
	}

	return nil
}

// Realtime forwards published events for the users named on input to
// output until ctx is done or input closes. Each call holds its own redis
// subscription.
func (s *SignalService) Realtime(ctx context.Context, input <-chan []string, output chan<- domain.ReputationEvent) {
	pubsub := s.rdb.Subscribe(ctx, signalChannel)
	defer pubsub.Close()

	events := pubsub.Channel()
	users := make(map[string]struct{})

	for {
		select {
		case <-ctx.Done():
			return

		case targets, ok := <-input:
			if !ok {
				return
			}
			users = make(map[string]struct{}, len(targets))
			for _, target := range targets {
				users[target] = struct{}{}
			}

		case message, ok := <-events:
			if !ok {
				return
			}
			var event domain.ReputationEvent
			if err := json.Unmarshal([]byte(message.Payload), &event); err != nil {
				slog.ErrorContext(ctx, "failed to decode reputation event",
					slog.String("error", err.Error()),
					slog.String("module", "signal"),
				)
				continue
			}
			if _, listening := users[event.User]; listening {
				output <- event
			}
		}
	}
}
