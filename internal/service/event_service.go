package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/studyline/studyline-api/internal/dto"
	"github.com/studyline/studyline-api/internal/models"
)

const eventBufferSize = 16

// ExamEventPublisher fans out exam lifecycle events to local subscribers and,
// when configured, to Redis pub/sub and NATS so every node sees every event.
type ExamEventPublisher interface {
	ExamStatusChanged(ctx context.Context, exam models.Exam, previous string)
	AnswerSubmitted(ctx context.Context, examID, attemptID, userID uint)
	AttemptFinalized(ctx context.Context, examID, attemptID, userID uint, score float64)
	Subscribe(examID uint) (<-chan dto.ExamEvent, func())
	Start(ctx context.Context)
}

type examEventPublisher struct {
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	logger       zerolog.Logger
	broker       *examEventBroker
	nodeID       string
	now          func() time.Time
}

type examEventBroker struct {
	mu          sync.RWMutex
	subscribers map[uint]map[chan dto.ExamEvent]struct{}
}

// NewExamEventPublisher constructs the publisher. redisClient and natsConn may
// be nil; the local broker keeps working either way.
func NewExamEventPublisher(redisClient *redis.Client, channelBase string, natsConn *nats.Conn, logger zerolog.Logger) ExamEventPublisher {
	channel := ""
	subject := ""
	if channelBase != "" {
		channel = channelBase + ":exam-events"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".exam-events"
	}

	return &examEventPublisher{
		redis:        redisClient,
		redisChannel: channel,
		nats:         natsConn,
		natsSubject:  subject,
		logger:       logger.With().Str("component", "exam_event_publisher").Logger(),
		broker: &examEventBroker{
			subscribers: make(map[uint]map[chan dto.ExamEvent]struct{}),
		},
		nodeID: uuid.NewString(),
		now:    time.Now,
	}
}

func (p *examEventPublisher) Start(ctx context.Context) {
	if p.redis != nil && p.redisChannel != "" {
		go p.consumeRedis(ctx)
	}
	if p.nats != nil && p.natsSubject != "" {
		go p.consumeNATS(ctx)
	}
}

func (p *examEventPublisher) ExamStatusChanged(ctx context.Context, exam models.Exam, previous string) {
	p.emit(ctx, dto.ExamEvent{
		Type:           dto.EventExamStatusChanged,
		ExamID:         exam.ID,
		PreviousStatus: previous,
		Status:         exam.Status,
	})
}

func (p *examEventPublisher) AnswerSubmitted(ctx context.Context, examID, attemptID, userID uint) {
	p.emit(ctx, dto.ExamEvent{
		Type:      dto.EventAnswerSubmitted,
		ExamID:    examID,
		AttemptID: attemptID,
		UserID:    userID,
	})
}

func (p *examEventPublisher) AttemptFinalized(ctx context.Context, examID, attemptID, userID uint, score float64) {
	p.emit(ctx, dto.ExamEvent{
		Type:      dto.EventAttemptFinalized,
		ExamID:    examID,
		AttemptID: attemptID,
		UserID:    userID,
		Score:     score,
	})
}

func (p *examEventPublisher) Subscribe(examID uint) (<-chan dto.ExamEvent, func()) {
	channel := make(chan dto.ExamEvent, eventBufferSize)

	p.broker.subscribe(examID, channel)

	cleanup := func() {
		p.broker.unsubscribe(examID, channel)
	}

	return channel, cleanup
}

func (p *examEventPublisher) emit(ctx context.Context, event dto.ExamEvent) {
	event.NodeID = p.nodeID
	event.OccurredAt = p.now().UTC()

	p.broker.broadcast(event)

	if err := p.publish(ctx, event); err != nil {
		p.logger.Warn().Err(err).Str("type", event.Type).Msg("failed to publish exam event to broker")
	}
}

func (p *examEventPublisher) publish(ctx context.Context, event dto.ExamEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if p.redis != nil && p.redisChannel != "" {
		if err := p.redis.Publish(ctx, p.redisChannel, payload).Err(); err != nil {
			return err
		}
	}

	if p.nats != nil && p.natsSubject != "" {
		if err := p.nats.Publish(p.natsSubject, payload); err != nil {
			return err
		}
	}

	return nil
}

func (p *examEventPublisher) consumeRedis(ctx context.Context) {
	pubsub := p.redis.Subscribe(ctx, p.redisChannel)
	defer func() { _ = pubsub.Close() }()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			p.logger.Error().Err(err).Msg("exam event redis subscription closed")
			return
		}
		p.handleEvent([]byte(msg.Payload))
	}
}

func (p *examEventPublisher) consumeNATS(ctx context.Context) {
	sub, err := p.nats.QueueSubscribe(p.natsSubject, "studyline-exam-events", func(msg *nats.Msg) {
		p.handleEvent(msg.Data)
	})
	if err != nil {
		p.logger.Error().Err(err).Msg("failed to subscribe to nats exam events subject")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			p.logger.Warn().Err(err).Msg("failed to drain exam event nats subscription")
		}
	}()
}

func (p *examEventPublisher) handleEvent(payload []byte) {
	var event dto.ExamEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		p.logger.Warn().Err(err).Msg("invalid exam event payload")
		return
	}

	if event.NodeID == p.nodeID {
		return
	}

	p.broker.broadcast(event)
}

func (b *examEventBroker) subscribe(examID uint, ch chan dto.ExamEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscribers[examID]; !exists {
		b.subscribers[examID] = make(map[chan dto.ExamEvent]struct{})
	}
	b.subscribers[examID][ch] = struct{}{}
}

func (b *examEventBroker) unsubscribe(examID uint, ch chan dto.ExamEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if subscribers, ok := b.subscribers[examID]; ok {
		delete(subscribers, ch)
		close(ch)
		if len(subscribers) == 0 {
			delete(b.subscribers, examID)
		}
	}
}

func (b *examEventBroker) broadcast(event dto.ExamEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	subscribers := b.subscribers[event.ExamID]
	for ch := range subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}
