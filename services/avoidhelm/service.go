package avoidhelm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"avoidance-core/internal/behavior"
	"avoidance-core/internal/config"
	"avoidance-core/internal/encounter"
	"avoidance-core/internal/eventbus"
	"avoidance-core/internal/schema"
)

type Config struct {
	VehicleID    string
	KafkaBrokers []string
	HTTPAddr     string
	CyclePeriod  time.Duration
	GroupID      string
	MailBuffer   int
}

// Bus is the message bus the service reads mail from and writes to.
type Bus interface {
	eventbus.Publisher
	Subscribe(ctx context.Context, topic, groupID string, handler func(eventbus.Event))
}

// Service runs one helm against the bus. Subscriptions only queue mail; the
// cycle goroutine applies queued mail and then steps the behaviors, so
// behaviors never see concurrent access.
type Service struct {
	cfg     Config
	helm    *Helm
	bus     Bus
	outputs *Outputs
	http    *HTTPServer
	hub     *VisualHub
	alerts  *schema.Validator
	mail    chan eventbus.Event
	reloads chan *config.Templates
	logger  *slog.Logger
}

func NewService(cfg Config, ts *config.Templates, bus Bus, recorder encounter.Recorder, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.VehicleID == "" {
		cfg.VehicleID = ts.Vehicle
	}
	if cfg.CyclePeriod <= 0 {
		cfg.CyclePeriod = 250 * time.Millisecond
	}
	if cfg.GroupID == "" {
		cfg.GroupID = "avoidhelm-" + cfg.VehicleID
	}
	if cfg.MailBuffer <= 0 {
		cfg.MailBuffer = 1024
	}
	logger = logger.With("vehicle", cfg.VehicleID)

	helm, err := NewHelm(cfg.VehicleID, ts, logger)
	if err != nil {
		return nil, err
	}
	alerts, err := schema.NewAlertValidator()
	if err != nil {
		return nil, fmt.Errorf("alert schema: %w", err)
	}
	hub := NewVisualHub(logger)
	s := &Service{
		cfg:     cfg,
		helm:    helm,
		bus:     bus,
		outputs: NewOutputs(cfg.VehicleID, bus, recorder, hub, logger),
		http:    NewHTTPServer(cfg.HTTPAddr, logger),
		hub:     hub,
		alerts:  alerts,
		mail:    make(chan eventbus.Event, cfg.MailBuffer),
		reloads: make(chan *config.Templates, 1),
		logger:  logger,
	}
	s.http.RegisterRoutes(helm, hub)
	return s, nil
}

// Helm exposes the helm, for status queries.
func (s *Service) Helm() *Helm { return s.helm }

// Reload queues new templates for the cycle goroutine. A reload not yet
// applied is replaced.
func (s *Service) Reload(ts *config.Templates) {
	for {
		select {
		case s.reloads <- ts:
			return
		default:
		}
		select {
		case <-s.reloads:
		default:
		}
	}
}

// Run subscribes to the inbound topics, serves HTTP and cycles until ctx is
// done or a component fails.
func (s *Service) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, topic := range eventbus.InboundTopics {
		topic := topic
		g.Go(func() error {
			s.bus.Subscribe(ctx, topic, s.cfg.GroupID, s.enqueue)
			return nil
		})
	}
	if s.cfg.HTTPAddr != "" {
		g.Go(func() error { return s.http.Run(ctx) })
	}
	g.Go(func() error { return s.loop(ctx) })

	s.logger.Info("avoidhelm running", "period", s.cfg.CyclePeriod, "brokers", s.cfg.KafkaBrokers)
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (s *Service) enqueue(ev eventbus.Event) {
	if ev.VehicleID != "" && ev.VehicleID != s.cfg.VehicleID {
		return
	}
	select {
	case s.mail <- ev:
	default:
		s.logger.Warn("mail queue full, dropping", "type", ev.EventType)
	}
}

func (s *Service) loop(ctx context.Context) error {
	s.outputs.Posts(ctx, 0, []behavior.Result{{Name: "helm", Posts: s.helm.Start()}})

	ticker := time.NewTicker(s.cfg.CyclePeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ts := <-s.reloads:
			if err := s.helm.SetTemplates(ts); err != nil {
				s.logger.Warn("template reload failed", "error", err)
			}
		case now := <-ticker.C:
			s.Step(ctx, now)
		}
	}
}

// Step applies all queued mail, runs one cycle and publishes its output.
func (s *Service) Step(ctx context.Context, now time.Time) CycleOutput {
	for drained := false; !drained; {
		select {
		case ev := <-s.mail:
			if err := s.helm.Apply(ev, s.alerts, now); err != nil {
				if errors.Is(err, ErrOutOfScope) {
					s.logger.Debug("mail ignored", "type", ev.EventType, "error", err)
				} else {
					s.logger.Warn("mail rejected", "type", ev.EventType, "error", err)
				}
			}
		default:
			drained = true
		}
	}
	out := s.helm.Cycle(now)
	s.outputs.Publish(ctx, out)
	return out
}
