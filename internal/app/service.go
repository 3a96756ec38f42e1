package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/relabs-tech/node_diagnosis/internal/accelrange"
	"github.com/relabs-tech/node_diagnosis/internal/diagnosis"
	"github.com/relabs-tech/node_diagnosis/internal/sensors"
	"github.com/relabs-tech/node_diagnosis/internal/window"
)

// ErrBadRequest wraps every error caused by the caller's input.
var ErrBadRequest = errors.New("bad request")

// Publisher sends a payload to a topic.
type Publisher interface {
	Publish(topic string, retained bool, payload []byte) error
}

// Topics are the publish destinations of the service.
type Topics struct {
	Verdict string
	Range   string
}

// WindowRequest is the payload accepted on the window topic. Fault takes
// a name ("trend") or a selection code as a string ("5").
type WindowRequest struct {
	Fault  diagnosis.Fault `json:"fault"`
	Window *window.Window  `json:"window"`
}

// Service diagnoses one window at a time, keeps the range register in
// sync with the shared range state and fans reports out to MQTT,
// WebSocket clients and metrics.
type Service struct {
	mu       sync.Mutex
	engine   *diagnosis.Engine
	ranges   *accelrange.Controller
	writer   sensors.RangeWriter
	registry *prometheus.Registry
	metrics  *serviceMetrics
	hub      *Hub
	pub      Publisher
	topics   Topics
	logger   *zap.Logger
	now      func() time.Time
}

// NewService wires an engine around state. A nil writer means no hardware.
func NewService(params diagnosis.Params, state *accelrange.State, writer sensors.RangeWriter, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if writer == nil {
		writer = sensors.NopRangeWriter{}
	}
	ranges := accelrange.NewController(state, logger)
	reg := prometheus.NewRegistry()

	s := &Service{
		engine:   diagnosis.NewEngine(params, ranges, logger.Named("diagnosis")),
		ranges:   ranges,
		writer:   writer,
		registry: reg,
		metrics:  newServiceMetrics(reg),
		hub:      NewHub(logger),
		logger:   logger,
		now:      time.Now,
	}
	s.metrics.rangeG.Set(state.G())
	return s
}

// SetPublisher enables MQTT output. Call before Start.
func (s *Service) SetPublisher(pub Publisher, topics Topics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pub, s.topics = pub, topics
}

// Hub returns the WebSocket hub reports are broadcast on.
func (s *Service) Hub() *Hub { return s.hub }

// Registry returns the prometheus registry of the service metrics.
func (s *Service) Registry() *prometheus.Registry { return s.registry }

// Range returns the active accelerometer range.
func (s *Service) Range() accelrange.Code {
	return s.ranges.State().Current()
}

// Start applies the initial range to the sensor and announces it.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	code := s.Range()
	if err := s.writer.ApplyAccelRange(code); err != nil {
		return err
	}
	if err := s.publishRange(code); err != nil {
		return err
	}
	s.logger.Info("diagnosis service started", zap.Stringer("range", code))
	return nil
}

// Diagnose runs the classifier for f on w.
func (s *Service) Diagnose(w *window.Window, f diagnosis.Fault) (Report, error) {
	return s.run(w, func(e *diagnosis.Engine) (diagnosis.Verdict, error) {
		return e.Diagnose(w, f)
	})
}

// Dispatch runs the classifier for an operator selection code.
func (s *Service) Dispatch(w *window.Window, code int) (Report, error) {
	return s.run(w, func(e *diagnosis.Engine) (diagnosis.Verdict, error) {
		return e.Dispatch(w, code)
	})
}

// HandleWindowMessage decodes a WindowRequest and diagnoses it.
func (s *Service) HandleWindowMessage(payload []byte) (Report, error) {
	var req WindowRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return Report{}, fmt.Errorf("%w: decode window request: %v", ErrBadRequest, err)
	}
	return s.Diagnose(req.Window, req.Fault)
}

func (s *Service) run(w *window.Window, classify func(*diagnosis.Engine) (diagnosis.Verdict, error)) (Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var warnings []string
	before := s.Range()
	// re-apply in case an earlier write failed
	if err := s.writer.ApplyAccelRange(before); err != nil {
		s.logger.Warn("range register write failed", zap.Error(err))
		warnings = append(warnings, err.Error())
	}

	v, err := classify(s.engine)
	if err != nil {
		return Report{}, fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	s.metrics.observeVerdict(v)

	after := s.Range()
	if after != before {
		warnings = append(warnings, s.rangeChanged(before, after)...)
	}

	rep := Report{
		ID:          uuid.NewString(),
		Time:        s.now().UTC(),
		Fault:       v.Fault,
		Kind:        v.Kind,
		Message:     v.Message,
		RangeBefore: rangeInfo(before),
		RangeAfter:  rangeInfo(after),
	}
	if rewritesAcceleration(v) {
		rep.Acceleration = w.Acceleration
	}

	if err := s.publishReport(&rep); err != nil {
		s.logger.Warn("report publish failed", zap.String("id", rep.ID), zap.Error(err))
		warnings = append(warnings, err.Error())
	}
	rep.Warnings = warnings
	s.hub.Broadcast(rep)

	s.logger.Info("window diagnosed",
		zap.String("id", rep.ID),
		zap.Stringer("fault", v.Fault),
		zap.Stringer("kind", v.Kind),
		zap.Stringer("range", after),
	)
	return rep, nil
}

// StepRange moves the range one step up or down on operator request.
func (s *Service) StepRange(up bool) accelrange.Step {
	s.mu.Lock()
	defer s.mu.Unlock()

	var step accelrange.Step
	if up {
		step = s.ranges.Increase()
	} else {
		step = s.ranges.Decrease()
	}
	if step.Changed {
		s.rangeChanged(step.From, step.To)
	}
	return step
}

// rangeChanged pushes a new range to the register and the range topic.
// Failures are logged and returned as warnings; the in-memory state stays
// authoritative and is re-applied on the next window.
func (s *Service) rangeChanged(from, to accelrange.Code) []string {
	s.metrics.observeRange(from, to)

	var warnings []string
	if err := s.writer.ApplyAccelRange(to); err != nil {
		s.logger.Warn("range register write failed", zap.Stringer("range", to), zap.Error(err))
		warnings = append(warnings, err.Error())
	}
	if err := s.publishRange(to); err != nil {
		s.logger.Warn("range publish failed", zap.Stringer("range", to), zap.Error(err))
		warnings = append(warnings, err.Error())
	}
	return warnings
}

func (s *Service) publishReport(rep *Report) error {
	if s.pub == nil || s.topics.Verdict == "" {
		return nil
	}
	payload, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := s.pub.Publish(s.topics.Verdict, false, payload); err != nil {
		return fmt.Errorf("publish %s: %w", s.topics.Verdict, err)
	}
	return nil
}

func (s *Service) publishRange(code accelrange.Code) error {
	if s.pub == nil || s.topics.Range == "" {
		return nil
	}
	payload, err := json.Marshal(rangeInfo(code))
	if err != nil {
		return fmt.Errorf("encode range: %w", err)
	}
	if err := s.pub.Publish(s.topics.Range, true, payload); err != nil {
		return fmt.Errorf("publish %s: %w", s.topics.Range, err)
	}
	return nil
}
