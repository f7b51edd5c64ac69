package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/pestguard-backend/pkg/config"
	"github.com/angelmondragon/pestguard-backend/pkg/db/models"
	"github.com/angelmondragon/pestguard-backend/pkg/enums"
	"github.com/angelmondragon/pestguard-backend/pkg/logger"
	"github.com/angelmondragon/pestguard-backend/pkg/pubsub"
)

type fakeRepo struct {
	events    []models.OutboxEvent
	published []uuid.UUID
	failed    []uuid.UUID
	fetchErr  error
}

func (f *fakeRepo) FetchUnpublished(ctx context.Context, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.events, nil
}

func (f *fakeRepo) MarkPublished(ctx context.Context, id uuid.UUID) error {
	f.published = append(f.published, id)
	return nil
}

func (f *fakeRepo) MarkFailed(ctx context.Context, id uuid.UUID, cause error) error {
	f.failed = append(f.failed, id)
	return nil
}

type fakePublisher struct {
	failFor map[uuid.UUID]bool
	sent    []pubsub.Message
}

func (f *fakePublisher) Ping(context.Context) error { return nil }

func (f *fakePublisher) Publish(ctx context.Context, msg pubsub.Message) (string, error) {
	f.sent = append(f.sent, msg)
	id, _ := uuid.Parse(msg.ID)
	if f.failFor[id] {
		return "", errors.New("transient")
	}
	return "srv-" + msg.ID, nil
}

type okPinger struct{}

func (okPinger) Ping(context.Context) error { return nil }

func newTestService(t *testing.T, repo *fakeRepo, pub *fakePublisher) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Config:     &config.Config{Outbox: config.OutboxConfig{BatchSize: 10, PollIntervalMS: 10, MaxAttempts: 3}},
		Logger:     logger.Nop(),
		DB:         okPinger{},
		Publisher:  pub,
		Repository: repo,
	})
	require.NoError(t, err)
	return svc
}

func outboxEvent(aggregate uuid.UUID, eventType enums.OutboxEventType) models.OutboxEvent {
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     eventType,
		AggregateType: enums.AggregateBooking,
		AggregateID:   aggregate,
		Payload:       []byte(`{"version":1}`),
		CreatedAt:     time.Now(),
	}
}

func TestProcessBatchPublishesWithOrderingKeyAndAttributes(t *testing.T) {
	booking := uuid.New()
	repo := &fakeRepo{events: []models.OutboxEvent{outboxEvent(booking, enums.EventBookingCreated)}}
	pub := &fakePublisher{}
	svc := newTestService(t, repo, pub)

	n, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, []uuid.UUID{repo.events[0].ID}, repo.published)
	require.Len(t, pub.sent, 1)

	msg := pub.sent[0]
	require.Equal(t, booking.String(), msg.OrderingKey)
	require.Equal(t, string(enums.EventBookingCreated), msg.Attributes["event_type"])
	require.Equal(t, repo.events[0].ID.String(), msg.Attributes["event_id"])
	require.JSONEq(t, `{"version":1}`, string(msg.Data))
}

func TestProcessBatchHoldsBackLaterEventsOfFailedAggregate(t *testing.T) {
	first := uuid.New()
	other := uuid.New()
	created := outboxEvent(first, enums.EventBookingCreated)
	accepted := outboxEvent(first, enums.EventBookingStatusChanged)
	unrelated := outboxEvent(other, enums.EventBookingCreated)

	repo := &fakeRepo{events: []models.OutboxEvent{created, accepted, unrelated}}
	pub := &fakePublisher{failFor: map[uuid.UUID]bool{created.ID: true}}
	svc := newTestService(t, repo, pub)

	n, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, []uuid.UUID{created.ID}, repo.failed)
	require.Equal(t, []uuid.UUID{unrelated.ID}, repo.published)
	require.Len(t, pub.sent, 2, "the accepted event must wait for the created event")
}

func TestProcessBatchReportsFetchErrors(t *testing.T) {
	svc := newTestService(t, &fakeRepo{fetchErr: errors.New("db gone")}, &fakePublisher{})
	_, err := svc.processBatch(context.Background())
	require.Error(t, err)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	svc := newTestService(t, &fakeRepo{}, &fakePublisher{})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := svc.Run(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNextBackoffCaps(t *testing.T) {
	require.Equal(t, 2*time.Second, nextBackoff(time.Second, time.Second, maxBackoff))
	require.Equal(t, maxBackoff, nextBackoff(8*time.Second, time.Second, maxBackoff))
	require.Equal(t, 2*time.Second, nextBackoff(0, time.Second, maxBackoff))
}
