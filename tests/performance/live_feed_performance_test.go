package performance_test

import (
	"context"
	"errors"
	"math"
	"net"
	"net/http"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/studyline/studyline-api/internal/dto"
	"github.com/studyline/studyline-api/internal/handler"
	"github.com/studyline/studyline-api/internal/models"
	"github.com/studyline/studyline-api/internal/service"
)

type stubExamSource struct{}

func (stubExamSource) GetByID(_ context.Context, id uint) (models.Exam, error) {
	return models.Exam{
		ID:              id,
		Title:           "Load Exam",
		StartAt:         time.Now().Add(-time.Minute),
		DurationMinutes: 60,
		Status:          models.ExamStatusStarted,
	}, nil
}

func startFiberServer(t *testing.T, app *fiber.App) (string, func()) {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to create listener: %v", err)
	}

	done := make(chan struct{})
	go func() {
		if err := app.Listener(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.Logf("fiber listener stopped: %v", err)
		}
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)

	shutdown := func() {
		_ = app.Shutdown()
		_ = listener.Close()
		select {
		case <-done:
		case <-time.After(100 * time.Millisecond):
		}
	}

	return "http://" + listener.Addr().String(), shutdown
}

func percentile(values []time.Duration, pct float64) time.Duration {
	if len(values) == 0 {
		return 0
	}
	index := int(math.Ceil(pct*float64(len(values)))) - 1
	if index < 0 {
		index = 0
	}
	if index >= len(values) {
		index = len(values) - 1
	}
	return values[index]
}

func liveFeedApp(events service.ExamEventPublisher) *fiber.App {
	app := fiber.New()

	live := app.Group("/api/v1/live", func(c *fiber.Ctx) error {
		c.Locals("user_id", uint(42))
		c.Locals("user_role", "student")
		return c.Next()
	})
	handler.NewLiveFeedHandler(stubExamSource{}, events, zerolog.Nop()).Register(live)

	return app
}

func TestLiveFeedHandshakeP95Under250ms(t *testing.T) {
	events := service.NewExamEventPublisher(nil, "", nil, zerolog.Nop())
	app := liveFeedApp(events)

	baseURL, shutdown := startFiberServer(t, app)
	defer shutdown()

	url := "ws" + strings.TrimPrefix(baseURL, "http") + "/api/v1/live/ws?exam_id=1"
	dialer := websocket.Dialer{HandshakeTimeout: 3 * time.Second}

	clients := 200
	durations := make([]time.Duration, 0, clients)

	for i := 0; i < clients; i++ {
		start := time.Now()
		conn, resp, err := dialer.Dial(url, nil)
		if err != nil {
			t.Fatalf("websocket dial failed: %v", err)
		}
		if resp != nil {
			_ = resp.Body.Close()
		}

		durations = append(durations, time.Since(start))
		_ = conn.Close()
	}

	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })
	p95 := percentile(durations, 0.95)

	if p95 > 250*time.Millisecond {
		t.Fatalf("expected handshake P95 <= 250ms, got %s", p95)
	}
}

func TestLiveFeedDeliveryP95Under250ms(t *testing.T) {
	events := service.NewExamEventPublisher(nil, "", nil, zerolog.Nop())
	app := liveFeedApp(events)

	baseURL, shutdown := startFiberServer(t, app)
	defer shutdown()

	url := "ws" + strings.TrimPrefix(baseURL, "http") + "/api/v1/live/ws?exam_id=7"
	dialer := websocket.Dialer{HandshakeTimeout: 3 * time.Second}

	conn, resp, err := dialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("websocket dial failed: %v", err)
	}
	if resp != nil {
		_ = resp.Body.Close()
	}
	defer conn.Close()

	// The first frame is always the snapshot of the current exam state.
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var snapshot dto.ExamEvent
	if err := conn.ReadJSON(&snapshot); err != nil {
		t.Fatalf("failed to read snapshot frame: %v", err)
	}
	if snapshot.Type != dto.EventExamSnapshot {
		t.Fatalf("expected snapshot frame first, got %q", snapshot.Type)
	}
	if snapshot.RemainingSeconds <= 0 {
		t.Fatalf("expected positive remaining seconds, got %d", snapshot.RemainingSeconds)
	}

	ctx := context.Background()
	published := 100
	durations := make([]time.Duration, 0, published)

	go func() {
		// Give the server side a moment to attach its subscription, then pace
		// the publishes so the subscriber buffer never overflows.
		time.Sleep(100 * time.Millisecond)
		for i := 0; i < published; i++ {
			events.AnswerSubmitted(ctx, 7, uint(i+1), 42)
			time.Sleep(2 * time.Millisecond)
		}
	}()

	for i := 0; i < published; i++ {
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

		var event dto.ExamEvent
		if err := conn.ReadJSON(&event); err != nil {
			t.Fatalf("failed to read event %d: %v", i, err)
		}
		if event.Type != dto.EventAnswerSubmitted {
			t.Fatalf("unexpected event type %q", event.Type)
		}
		if event.ExamID != 7 {
			t.Fatalf("unexpected exam id %d", event.ExamID)
		}

		durations = append(durations, time.Since(event.OccurredAt))
	}

	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })
	p95 := percentile(durations, 0.95)

	if p95 > 250*time.Millisecond {
		t.Fatalf("expected delivery P95 <= 250ms, got %s", p95)
	}
}
