package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/studyline/studyline-api/internal/dto"
	"github.com/studyline/studyline-api/internal/models"
)

func TestLocalBrokerDeliversToExamSubscribers(t *testing.T) {
	publisher := NewExamEventPublisher(nil, "", nil, testLogger())
	ctx := context.Background()

	events, cancel := publisher.Subscribe(1)
	defer cancel()

	otherEvents, cancelOther := publisher.Subscribe(2)
	defer cancelOther()

	publisher.AnswerSubmitted(ctx, 1, 7, 5)

	select {
	case event := <-events:
		require.Equal(t, dto.EventAnswerSubmitted, event.Type)
		require.Equal(t, uint(1), event.ExamID)
		require.Equal(t, uint(7), event.AttemptID)
		require.Equal(t, uint(5), event.UserID)
		require.NotEmpty(t, event.NodeID)
		require.False(t, event.OccurredAt.IsZero())
	case <-time.After(time.Second):
		t.Fatal("expected event on exam 1 feed")
	}

	select {
	case event := <-otherEvents:
		t.Fatalf("exam 2 feed received event for exam %d", event.ExamID)
	default:
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	publisher := NewExamEventPublisher(nil, "", nil, testLogger())

	events, cancel := publisher.Subscribe(1)
	cancel()

	_, open := <-events
	require.False(t, open)

	// Emitting after unsubscribe must not panic or block.
	publisher.AttemptFinalized(context.Background(), 1, 7, 5, 12)
}

func TestStatusChangeEventCarriesTransition(t *testing.T) {
	publisher := NewExamEventPublisher(nil, "", nil, testLogger())

	events, cancel := publisher.Subscribe(3)
	defer cancel()

	exam := models.Exam{ID: 3, Status: models.ExamStatusStarted}
	publisher.ExamStatusChanged(context.Background(), exam, models.ExamStatusNotStarted)

	select {
	case event := <-events:
		require.Equal(t, dto.EventExamStatusChanged, event.Type)
		require.Equal(t, models.ExamStatusNotStarted, event.PreviousStatus)
		require.Equal(t, models.ExamStatusStarted, event.Status)
	case <-time.After(time.Second):
		t.Fatal("expected status change event")
	}
}

func TestRedisFanoutReachesOtherNodes(t *testing.T) {
	server := miniredis.RunT(t)
	clientA := redis.NewClient(&redis.Options{Addr: server.Addr()})
	clientB := redis.NewClient(&redis.Options{Addr: server.Addr()})

	nodeA := NewExamEventPublisher(clientA, "studyline", nil, testLogger())
	nodeB := NewExamEventPublisher(clientB, "studyline", nil, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	nodeB.Start(ctx)

	events, unsubscribe := nodeB.Subscribe(1)
	defer unsubscribe()

	received := make(chan dto.ExamEvent, 1)
	go func() {
		for event := range events {
			select {
			case received <- event:
			default:
			}
			return
		}
	}()

	// The subscription goroutine needs a moment to attach; keep publishing
	// until the event crosses.
	require.Eventually(t, func() bool {
		nodeA.AnswerSubmitted(ctx, 1, 7, 5)
		select {
		case event := <-received:
			require.Equal(t, dto.EventAnswerSubmitted, event.Type)
			require.Equal(t, uint(1), event.ExamID)
			return true
		default:
			return false
		}
	}, 3*time.Second, 50*time.Millisecond)
}
