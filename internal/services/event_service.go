package services

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aegis-waf/aegis/internal/logger"
	"github.com/aegis-waf/aegis/internal/metrics"
	"github.com/aegis-waf/aegis/internal/models"
	"github.com/aegis-waf/aegis/internal/waf"
)

var (
	ErrEventNotFound   = errors.New("security event not found")
	ErrInvalidFeedback = errors.New("invalid event feedback")
)

// EventService persists security events asynchronously through a bounded
// queue drained by a single writer goroutine. When the queue is full the
// newest event is dropped: a logging backend outage must never apply
// backpressure to the decision path.
type EventService struct {
	db    *gorm.DB
	queue chan *models.SecurityEvent
	done  chan struct{}

	mu     sync.Mutex
	closed bool
}

func NewEventService(db *gorm.DB, queueSize int) *EventService {
	if queueSize <= 0 {
		queueSize = 1024
	}
	s := &EventService{
		db:    db,
		queue: make(chan *models.SecurityEvent, queueSize),
		done:  make(chan struct{}),
	}
	go s.drain()
	return s
}

// Record enqueues a decision for persistence. It never blocks; logging is
// fire-and-forget and not coupled to request cancellation.
func (s *EventService) Record(dec *waf.Decision, req *waf.Request) {
	event := &models.SecurityEvent{
		UUID:             uuid.NewString(),
		Action:           dec.Action,
		ThreatScore:      dec.ThreatScore,
		Reason:           dec.Reason,
		RuleMatches:      marshalUUIDs(dec.RuleMatches),
		ShadowMatches:    marshalUUIDs(dec.ShadowMatches),
		Method:           req.Method,
		Path:             req.URL.Path,
		Query:            req.URL.RawQuery,
		SourceIP:         req.SourceIP,
		UserAgent:        req.UserAgent,
		Country:          req.Country,
		ProcessingTimeMs: dec.ProcessingTimeMs,
		CreatedAt:        time.Now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		metrics.IncEventDropped()
		return
	}

	select {
	case s.queue <- event:
	default:
		metrics.IncEventDropped()
	}
}

func (s *EventService) drain() {
	defer close(s.done)
	for event := range s.queue {
		if err := s.db.Create(event).Error; err != nil {
			// Best effort: log locally and discard.
			logger.Log().WithError(err).Warn("failed to persist security event")
			continue
		}
		metrics.IncEventLogged()
	}
}

// Close stops accepting events and waits for the queue to drain. Records
// arriving after Close are counted as dropped rather than racing the
// channel close.
func (s *EventService) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()
	<-s.done
}

// ListRecent returns recent events, newest first.
func (s *EventService) ListRecent(limit int) ([]models.SecurityEvent, error) {
	var events []models.SecurityEvent
	q := s.db.Order("created_at desc, id desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// Feedback attaches operator ground truth to an event. Confirmed-threat
// and benign verdicts drive deployment promotion metrics.
func (s *EventService) Feedback(eventUUID, feedback string) (*models.SecurityEvent, error) {
	if feedback != models.FeedbackConfirmedThreat && feedback != models.FeedbackBenign {
		return nil, ErrInvalidFeedback
	}

	var event models.SecurityEvent
	if err := s.db.Where("uuid = ?", eventUUID).First(&event).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}

	event.Feedback = feedback
	if err := s.db.Save(&event).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

func marshalUUIDs(ids []string) string {
	if len(ids) == 0 {
		return "[]"
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return "[]"
	}
	return string(data)
}
