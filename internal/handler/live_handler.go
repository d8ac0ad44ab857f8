package handler

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/studyline/studyline-api/internal/dto"
	"github.com/studyline/studyline-api/internal/models"
	"github.com/studyline/studyline-api/internal/observability"
	"github.com/studyline/studyline-api/internal/service"
)

// ExamSnapshotSource loads the exam state sent as the first feed frame.
type ExamSnapshotSource interface {
	GetByID(ctx context.Context, id uint) (models.Exam, error)
}

// LiveFeedHandler streams exam lifecycle events over a websocket so proctors
// and dashboards can follow an exam in real time.
type LiveFeedHandler struct {
	exams  ExamSnapshotSource
	events service.ExamEventPublisher
	logger zerolog.Logger
}

// NewLiveFeedHandler constructs the handler.
func NewLiveFeedHandler(exams ExamSnapshotSource, events service.ExamEventPublisher, logger zerolog.Logger) *LiveFeedHandler {
	return &LiveFeedHandler{
		exams:  exams,
		events: events,
		logger: logger.With().Str("component", "live_feed_handler").Logger(),
	}
}

// Register binds the websocket upgrade route under the provided router group.
func (h *LiveFeedHandler) Register(router fiber.Router) {
	router.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	router.Get("/ws", websocket.New(h.handleConnection))
}

func (h *LiveFeedHandler) handleConnection(conn *websocket.Conn) {
	examID := parseExamID(conn.Query("exam_id"))
	if examID == 0 {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(fiber.StatusBadRequest, "exam_id required"))
		_ = conn.Close()
		return
	}

	events, cancel := h.events.Subscribe(examID)
	defer cancel()

	observability.LiveFeedClients().Inc()
	defer observability.LiveFeedClients().Dec()

	h.logger.Info().Uint("exam_id", examID).Msg("live feed client connected")

	if err := h.sendSnapshot(conn, examID); err != nil {
		h.logger.Debug().Err(err).Uint("exam_id", examID).Msg("live feed snapshot write failed")
		_ = conn.Close()
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			h.logger.Info().Uint("exam_id", examID).Msg("live feed client disconnected")
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				h.logger.Debug().Err(err).Uint("exam_id", examID).Msg("live feed write failed")
				_ = conn.Close()
				<-done
				return
			}
		}
	}
}

// sendSnapshot writes the current exam state as the first frame so clients
// render immediately instead of waiting for the next transition.
func (h *LiveFeedHandler) sendSnapshot(conn *websocket.Conn, examID uint) error {
	if h.exams == nil {
		return nil
	}

	exam, err := h.exams.GetByID(context.Background(), examID)
	if err != nil {
		// The feed stays open; an exam created later will still stream.
		h.logger.Debug().Err(err).Uint("exam_id", examID).Msg("no exam state for snapshot")
		return nil
	}

	remaining := int64(0)
	if exam.Status != models.ExamStatusEnded {
		if until := time.Until(exam.EndAt()); until > 0 {
			remaining = int64(until.Seconds())
		}
	}

	return conn.WriteJSON(dto.ExamEvent{
		Type:             dto.EventExamSnapshot,
		ExamID:           exam.ID,
		Status:           exam.Status,
		RemainingSeconds: remaining,
		OccurredAt:       time.Now().UTC(),
	})
}

func parseExamID(raw string) uint {
	parsed, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0
	}
	return uint(parsed)
}
