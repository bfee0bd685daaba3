package alerts

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	"ridewatch/internal/eventbus"
	"ridewatch/internal/sched"
	logx "ridewatch/pkg/logx"
)

// Config controls the ops alert channel.
type Config struct {
	Enabled    bool
	MinGap     time.Duration // per-job dedup window
	RatePerSec int
}

func (c Config) withDefaults() Config {
	if c.MinGap <= 0 {
		c.MinGap = 15 * time.Minute
	}
	if c.RatePerSec <= 0 {
		c.RatePerSec = 1
	}
	return c
}

// Sender delivers one alert message.
type Sender interface {
	Send(ctx context.Context, text string) error
}

// TelegramSender sends alerts to a fixed chat via the Bot API.
type TelegramSender struct {
	bot  *tele.Bot
	chat tele.ChatID
}

func NewTelegramSender(token string, chatID int64) (*TelegramSender, error) {
	bot, err := tele.NewBot(tele.Settings{Token: token})
	if err != nil {
		return nil, fmt.Errorf("alerts: telegram bot: %w", err)
	}
	return &TelegramSender{bot: bot, chat: tele.ChatID(chatID)}, nil
}

func (t *TelegramSender) Send(ctx context.Context, text string) error {
	_ = ctx // telebot v4 manages its own HTTP timeouts
	_, err := t.bot.Send(t.chat, text)
	return err
}

// Service watches the bus and forwards job failures to the sender.
type Service struct {
	cfg     Config
	log     logx.Logger
	bus     eventbus.Bus
	sender  Sender
	limiter *rate.Limiter

	mu       sync.Mutex
	lastSent map[string]time.Time
	stopCh   chan struct{}
	done     chan struct{}
	unsub    func()
}

func New(cfg Config, sender Sender, log logx.Logger, bus eventbus.Bus) *Service {
	cfg = cfg.withDefaults()
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:      cfg,
		log:      log,
		bus:      bus,
		sender:   sender,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
		lastSent: map[string]time.Time{},
	}
}

func (s *Service) Enabled() bool { return s.cfg.Enabled && s.sender != nil && s.bus != nil }

// Start is idempotent; the watch loop runs until Stop.
func (s *Service) Start(ctx context.Context) {
	if !s.Enabled() {
		return
	}
	s.mu.Lock()
	if s.stopCh != nil {
		s.mu.Unlock()
		return
	}
	ch, unsub := s.bus.Subscribe(64)
	s.unsub = unsub
	s.stopCh = make(chan struct{})
	s.done = make(chan struct{})
	stopCh, done := s.stopCh, s.done
	s.mu.Unlock()

	go s.watch(ch, stopCh, done)
	s.log.Info("ops alerts started", logx.Duration("min_gap", s.cfg.MinGap))
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	if s.stopCh == nil {
		s.mu.Unlock()
		return
	}
	close(s.stopCh)
	if s.unsub != nil {
		s.unsub()
	}
	done := s.done
	s.stopCh = nil
	s.done = nil
	s.unsub = nil
	s.mu.Unlock()

	select {
	case <-done:
	case <-ctx.Done():
	}
}

func (s *Service) watch(ch <-chan eventbus.Event, stopCh <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-stopCh
		cancel()
	}()

	for {
		select {
		case <-stopCh:
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if ev.Type != eventbus.TypeJobFailed {
				continue
			}
			je, ok := ev.Data.(sched.JobEvent)
			if !ok {
				continue
			}
			s.handleFailure(ctx, je)
		}
	}
}

func (s *Service) handleFailure(ctx context.Context, je sched.JobEvent) {
	now := time.Now()
	s.mu.Lock()
	last, seen := s.lastSent[je.Name]
	if seen && now.Sub(last) < s.cfg.MinGap {
		s.mu.Unlock()
		return
	}
	s.lastSent[je.Name] = now
	s.mu.Unlock()

	if err := s.limiter.Wait(ctx); err != nil {
		return
	}
	text := fmt.Sprintf("⚠️ job %s failed after %d attempt(s) in %s: %s",
		je.Name, je.Attempts, je.Duration.Round(time.Millisecond), je.Error)
	if err := s.sender.Send(ctx, text); err != nil {
		s.log.Warn("alert send failed", logx.String("job", je.Name), logx.Err(err))
		// Let the next failure try again immediately.
		s.mu.Lock()
		delete(s.lastSent, je.Name)
		s.mu.Unlock()
	}
}
