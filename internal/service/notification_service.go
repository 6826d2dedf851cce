package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/tutorlink-api/internal/dto"
	"github.com/noah-isme/tutorlink-api/internal/errdefs"
	"github.com/noah-isme/tutorlink-api/internal/models"
	"github.com/noah-isme/tutorlink-api/internal/observability"
	"github.com/noah-isme/tutorlink-api/internal/repository"
)

const (
	notificationBufferSize      = 16
	defaultNotificationQueue    = 256
	notificationDeliveryTimeout = 5 * time.Second
	// Remote events arrive once per transport; remember enough ids to
	// suppress the second copy.
	recentNotificationWindow = 1024
)

// Notice is a notification waiting to be persisted and pushed.
type Notice struct {
	UserID        uint
	Type          string
	Title         string
	Message       string
	Link          string
	Priority      string
	TuitionID     *uint
	ApplicationID *uint
}

// Notifier accepts notices without blocking the caller.
type Notifier interface {
	Notify(notice Notice)
}

// NotificationService persists notifications, pushes them to connected
// sockets and serves the notification inbox.
type NotificationService interface {
	Notifier
	List(ctx context.Context, userID uint, unreadOnly bool, page, pageSize int) (dto.NotificationListResponse, error)
	MarkRead(ctx context.Context, id, userID uint) (dto.NotificationResponse, error)
	MarkAllRead(ctx context.Context, userID uint) (int64, error)
	Delete(ctx context.Context, id, userID uint) error
	Subscribe(userID uint) (<-chan dto.NotificationResponse, func())
	Start(ctx context.Context)
}

type notificationService struct {
	repo         repository.NotificationRepository
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	logger       zerolog.Logger
	tracer       trace.Tracer
	sanitizer    *bluemonday.Policy
	broker       *notificationBroker
	queue        chan Notice
	nodeID       string
	remote       *recentIDs
}

type notificationEvent struct {
	Source       string                   `json:"source"`
	Notification dto.NotificationResponse `json:"notification"`
	SentAt       time.Time                `json:"sent_at"`
}

type notificationBroker struct {
	mu          sync.RWMutex
	subscribers map[uint]map[chan dto.NotificationResponse]struct{}
}

// NewNotificationService constructs a notification service. Redis and NATS are
// optional fan-out transports between API nodes.
func NewNotificationService(repo repository.NotificationRepository, redisClient *redis.Client, channelBase string, natsConn *nats.Conn, queueSize int, logger zerolog.Logger) NotificationService {
	channel := ""
	subject := ""
	if channelBase != "" {
		channel = channelBase + ":notifications"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".notifications"
	}
	if queueSize <= 0 {
		queueSize = defaultNotificationQueue
	}

	return &notificationService{
		repo:         repo,
		redis:        redisClient,
		redisChannel: channel,
		nats:         natsConn,
		natsSubject:  subject,
		logger:       logger.With().Str("component", "notification_service").Logger(),
		tracer:       observability.Tracer("internal/service/notification"),
		sanitizer:    bluemonday.StrictPolicy(),
		broker: &notificationBroker{
			subscribers: make(map[uint]map[chan dto.NotificationResponse]struct{}),
		},
		queue:  make(chan Notice, queueSize),
		nodeID: uuid.NewString(),
		remote: newRecentIDs(recentNotificationWindow),
	}
}

// Start runs the delivery worker and the cross-node consumers until ctx ends.
func (s *notificationService) Start(ctx context.Context) {
	go s.run(ctx)
	if s.redis != nil && s.redisChannel != "" {
		go s.consumeRedis(ctx)
	}
	if s.nats != nil && s.natsSubject != "" {
		go s.consumeNATS(ctx)
	}
}

func (s *notificationService) Notify(notice Notice) {
	if notice.UserID == 0 {
		return
	}

	select {
	case s.queue <- notice:
	default:
		observability.NotificationsDropped().Inc()
		s.logger.Warn().Uint("user_id", notice.UserID).Str("type", notice.Type).Msg("notification queue full, dropping notice")
	}
}

func (s *notificationService) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case notice := <-s.queue:
			deliveryCtx, cancel := context.WithTimeout(ctx, notificationDeliveryTimeout)
			if err := s.deliver(deliveryCtx, notice); err != nil {
				s.logger.Error().Err(err).Uint("user_id", notice.UserID).Str("type", notice.Type).Msg("failed to deliver notification")
			}
			cancel()
		}
	}
}

func (s *notificationService) deliver(ctx context.Context, notice Notice) error {
	spanCtx, span := s.tracer.Start(ctx, "notifications.deliver", trace.WithAttributes(
		attribute.Int64("notification.user_id", int64(notice.UserID)),
		attribute.String("notification.type", notice.Type),
	))
	defer span.End()

	message := strings.TrimSpace(s.sanitizer.Sanitize(notice.Message))
	if message == "" {
		return errors.New("notification message empty after sanitization")
	}

	priority := notice.Priority
	if priority == "" {
		priority = models.NotificationPriorityMedium
	}

	model := models.Notification{
		UserID:               notice.UserID,
		Type:                 notice.Type,
		Title:                strings.TrimSpace(s.sanitizer.Sanitize(notice.Title)),
		Message:              message,
		Link:                 notice.Link,
		Priority:             priority,
		RelatedTuitionID:     notice.TuitionID,
		RelatedApplicationID: notice.ApplicationID,
	}

	if err := s.repo.Create(spanCtx, &model); err != nil {
		span.RecordError(err)
		return err
	}

	response := dto.NewNotificationResponse(model)
	s.broker.broadcast(response.UserID, response)
	if err := s.publish(spanCtx, response); err != nil {
		s.logger.Warn().Err(err).Msg("failed to publish notification to broker")
	}

	observability.NotificationsPublishedTotal().WithLabelValues(response.Type).Inc()
	return nil
}

func (s *notificationService) List(ctx context.Context, userID uint, unreadOnly bool, page, pageSize int) (dto.NotificationListResponse, error) {
	page, pageSize = normalizePage(page, pageSize)

	notifications, total, err := s.repo.ListByUser(ctx, userID, unreadOnly, pageSize, (page-1)*pageSize)
	if err != nil {
		return dto.NotificationListResponse{}, err
	}

	unread, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return dto.NotificationListResponse{}, err
	}

	items := make([]dto.NotificationResponse, 0, len(notifications))
	for _, notification := range notifications {
		items = append(items, dto.NewNotificationResponse(notification))
	}

	return dto.NotificationListResponse{
		Items:       items,
		UnreadCount: unread,
		Pagination:  paginationMeta(page, pageSize, total),
	}, nil
}

func (s *notificationService) MarkRead(ctx context.Context, id, userID uint) (dto.NotificationResponse, error) {
	spanCtx, span := s.tracer.Start(ctx, "notifications.mark_read", trace.WithAttributes(
		attribute.Int64("notification.user_id", int64(userID)),
	))
	defer span.End()

	notification, err := s.repo.MarkRead(spanCtx, id, userID)
	if err != nil {
		span.RecordError(err)
		return dto.NotificationResponse{}, notFound(err, "notification not found")
	}

	return dto.NewNotificationResponse(notification), nil
}

func (s *notificationService) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	return s.repo.MarkAllRead(ctx, userID)
}

func (s *notificationService) Delete(ctx context.Context, id, userID uint) error {
	if err := s.repo.Delete(ctx, id, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errdefs.New(errdefs.ErrNotFound, "notification not found")
		}
		return err
	}
	return nil
}

func (s *notificationService) Subscribe(userID uint) (<-chan dto.NotificationResponse, func()) {
	channel := make(chan dto.NotificationResponse, notificationBufferSize)

	s.broker.subscribe(userID, channel)
	observability.WebsocketClientsActive().Inc()

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			s.broker.unsubscribe(userID, channel)
			observability.WebsocketClientsActive().Dec()
		})
	}

	return channel, cleanup
}

func (s *notificationService) publish(ctx context.Context, notification dto.NotificationResponse) error {
	event := notificationEvent{
		Source:       s.nodeID,
		Notification: notification,
		SentAt:       time.Now().UTC(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	var errs []error
	if s.redis != nil && s.redisChannel != "" {
		if err := s.redis.Publish(ctx, s.redisChannel, payload).Err(); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}
	if s.nats != nil && s.natsSubject != "" {
		if err := s.nats.Publish(s.natsSubject, payload); err != nil {
			errs = append(errs, fmt.Errorf("nats: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (s *notificationService) consumeRedis(ctx context.Context) {
	pubsub := s.redis.Subscribe(ctx, s.redisChannel)
	defer func() { _ = pubsub.Close() }()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			s.logger.Error().Err(err).Msg("notification redis subscription closed")
			return
		}
		s.handleEvent([]byte(msg.Payload))
	}
}

func (s *notificationService) consumeNATS(ctx context.Context) {
	sub, err := s.nats.Subscribe(s.natsSubject, func(msg *nats.Msg) {
		s.handleEvent(msg.Data)
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to subscribe to nats notifications subject")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain notification nats subscription")
		}
	}()
}

// handleEvent pushes notifications persisted by other nodes to local sockets.
func (s *notificationService) handleEvent(payload []byte) {
	var event notificationEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		s.logger.Warn().Err(err).Msg("invalid notification event payload")
		return
	}

	if event.Source == s.nodeID {
		return
	}
	if !s.remote.add(event.Notification.ID) {
		return
	}

	s.broker.broadcast(event.Notification.UserID, event.Notification)
}

func (b *notificationBroker) subscribe(userID uint, ch chan dto.NotificationResponse) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscribers[userID]; !exists {
		b.subscribers[userID] = make(map[chan dto.NotificationResponse]struct{})
	}
	b.subscribers[userID][ch] = struct{}{}
}

func (b *notificationBroker) unsubscribe(userID uint, ch chan dto.NotificationResponse) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if subscribers, ok := b.subscribers[userID]; ok {
		delete(subscribers, ch)
		close(ch)
		if len(subscribers) == 0 {
			delete(b.subscribers, userID)
		}
	}
}

func (b *notificationBroker) broadcast(userID uint, notification dto.NotificationResponse) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers[userID] {
		select {
		case ch <- notification:
		default:
		}
	}
}

// recentIDs is a fixed-size set of the most recently seen notification ids.
type recentIDs struct {
	mu   sync.Mutex
	seen map[uint]struct{}
	ring []uint
	next int
}

func newRecentIDs(size int) *recentIDs {
	return &recentIDs{
		seen: make(map[uint]struct{}, size),
		ring: make([]uint, size),
	}
}

// add records id and reports whether it was not already present.
func (r *recentIDs) add(id uint) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.seen[id]; ok {
		return false
	}
	if evicted := r.ring[r.next]; evicted != 0 {
		delete(r.seen, evicted)
	}
	r.ring[r.next] = id
	r.next = (r.next + 1) % len(r.ring)
	r.seen[id] = struct{}{}
	return true
}
