// Package notification keeps the recent status messages shown to the operator and forwards
// selected ones to push providers.
package notification

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AMEND09/ID-Scanner/internal/conf"
	"github.com/AMEND09/ID-Scanner/internal/logger"
	"github.com/AMEND09/ID-Scanner/internal/privacy"
)

// Type classifies a notification.
type Type string

const (
	TypeSuccess Type = "success"
	TypeError   Type = "error"
	TypeInfo    Type = "info"
)

const (
	// DefaultRecentLimit is how many notifications are kept when no limit is configured.
	DefaultRecentLimit = 50

	defaultPushTimeout = 10 * time.Second
	subscriberBuffer   = 16
)

// Notification is one status message.
type Notification struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	Message   string    `json:"message"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Provider delivers notifications outside the process.
type Provider interface {
	Name() string
	Send(ctx context.Context, n *Notification) error
}

// Option configures a Service.
type Option func(*Service)

// WithProvider adds a push provider.
func WithProvider(p Provider) Option {
	return func(s *Service) { s.providers = append(s.providers, p) }
}

// WithPushTypes restricts which notification types are pushed.
func WithPushTypes(types ...Type) Option {
	return func(s *Service) {
		s.pushTypes = make(map[Type]bool, len(types))
		for _, t := range types {
			s.pushTypes[t] = true
		}
	}
}

// WithRateLimit caps pushes to maxEvents per window.
func WithRateLimit(window time.Duration, maxEvents int) Option {
	return func(s *Service) { s.limiter = NewRateLimiter(window, maxEvents) }
}

// WithPushTimeout bounds each provider send.
func WithPushTimeout(d time.Duration) Option {
	return func(s *Service) { s.pushTimeout = d }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service stores the most recent notifications and fans them out.
type Service struct {
	mu          sync.RWMutex
	recent      []Notification // oldest first
	limit       int
	subscribers map[chan Notification]struct{}

	providers   []Provider
	pushTypes   map[Type]bool
	limiter     *RateLimiter
	pushTimeout time.Duration
	pushes      sync.WaitGroup

	now func() time.Time
	log logger.Logger
}

// NewService keeps up to limit notifications. A non-positive limit uses DefaultRecentLimit.
func NewService(limit int, opts ...Option) *Service {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	s := &Service{
		limit:       limit,
		subscribers: make(map[chan Notification]struct{}),
		pushTypes:   map[Type]bool{TypeSuccess: true, TypeError: true, TypeInfo: true},
		pushTimeout: defaultPushTimeout,
		now:         time.Now,
		log:         GetLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewFromSettings builds a Service with shoutrrr push when enabled in settings.
func NewFromSettings(settings *conf.NotificationSettings) (*Service, error) {
	opts := []Option{}
	if settings.Push.Enabled {
		provider, err := NewShoutrrrProvider("push", settings.Push.URLs, settings.Push.Timeout)
		if err != nil {
			return nil, err
		}
		var types []Type
		if settings.Push.Success {
			types = append(types, TypeSuccess)
		}
		if settings.Push.Errors {
			types = append(types, TypeError)
		}
		opts = append(opts,
			WithProvider(provider),
			WithPushTypes(types...),
			WithRateLimit(time.Minute, 30),
		)
		if settings.Push.Timeout > 0 {
			opts = append(opts, WithPushTimeout(settings.Push.Timeout))
		}
	}
	return NewService(settings.RecentLimit, opts...), nil
}

// GetLogger returns the notification module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("notification")
}

// Success records a positive status message.
func (s *Service) Success(msg string) {
	s.publish(Notification{Type: TypeSuccess, Message: msg})
}

// Failure records an error status message. err may be nil.
func (s *Service) Failure(msg string, err error) {
	n := Notification{Type: TypeError, Message: msg}
	if err != nil {
		n.Error = privacy.ScrubMessage(err.Error())
	}
	s.publish(n)
}

// Info records a neutral status message.
func (s *Service) Info(msg string) {
	s.publish(Notification{Type: TypeInfo, Message: msg})
}

// Recent returns stored notifications, newest first.
func (s *Service) Recent() []Notification {
	s.mu.RLock()
	out := slices.Clone(s.recent)
	s.mu.RUnlock()
	slices.Reverse(out)
	return out
}

// Latest returns the newest notification.
func (s *Service) Latest() (Notification, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.recent) == 0 {
		return Notification{}, false
	}
	return s.recent[len(s.recent)-1], true
}

// Subscribe returns a channel receiving new notifications and a function that closes it.
// Slow subscribers miss notifications rather than blocking publishers.
func (s *Service) Subscribe() (<-chan Notification, func()) {
	ch := make(chan Notification, subscriberBuffer)
	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subscribers, ch)
			s.mu.Unlock()
			close(ch)
		})
	}
}

// Close waits for pending pushes.
func (s *Service) Close() {
	s.pushes.Wait()
}

func (s *Service) publish(n Notification) {
	n.ID = uuid.NewString()
	n.Timestamp = s.now()

	s.mu.Lock()
	s.recent = append(s.recent, n)
	if over := len(s.recent) - s.limit; over > 0 {
		s.recent = slices.Delete(s.recent, 0, over)
	}
	for ch := range s.subscribers {
		select {
		case ch <- n:
		default:
			s.log.Debug("dropping notification for slow subscriber", logger.String("id", n.ID))
		}
	}
	s.mu.Unlock()

	s.push(n)
}

func (s *Service) push(n Notification) {
	if len(s.providers) == 0 || !s.pushTypes[n.Type] {
		return
	}
	if s.limiter != nil && !s.limiter.Allow() {
		s.log.Warn("push rate limit reached, notification not pushed",
			logger.String("type", string(n.Type)))
		return
	}

	for _, p := range s.providers {
		s.pushes.Go(func() {
			ctx, cancel := context.WithTimeout(context.Background(), s.pushTimeout)
			defer cancel()
			if err := p.Send(ctx, &n); err != nil {
				s.log.Warn("push failed",
					logger.String("provider", p.Name()),
					logger.Error(err))
			}
		})
	}
}
