// Package scheduling runs recurring pin routines on cron expressions or
// fixed intervals. Each run hands an OperationRequest to the pin engine, so
// routines obey the same last-request-wins rules as HTTP callers.
package scheduling

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"pinengine/internal/domain"
	"pinengine/internal/infra/config"
	"pinengine/internal/usecase/pinengine"
)

// OperationScheduler is the part of the pin engine a routine drives.
type OperationScheduler interface {
	Schedule(ctx context.Context, req domain.OperationRequest) (pinengine.ScheduledOp, error)
}

// Routine is a validated recurring pin operation.
type Routine struct {
	Name     string
	Schedule string // cron expression "0 7 * * *" OR duration "30m"
	Request  domain.OperationRequest
	OneShot  bool // unregistered after its first firing
}

// RoutineInfo is the listing view of a registered routine.
type RoutineInfo struct {
	Name     string     `json:"name"`
	Schedule string     `json:"schedule"`
	GPIO     int        `json:"gpio"`
	State    string     `json:"state"`
	NextRun  *time.Time `json:"next_run,omitempty"`
	Runs     uint64     `json:"runs"`
	Failures uint64     `json:"failures"`
}

type entry struct {
	routine  Routine
	id       cron.EntryID
	runs     uint64
	failures uint64
}

// Scheduler runs routines on a recurring schedule using cron expressions or durations.
type Scheduler struct {
	cron    *cron.Cron
	engine  OperationScheduler
	bus     domain.EventBus
	entries map[string]*entry
	logger  *slog.Logger
	mu      sync.Mutex
	started bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewScheduler creates a scheduler that feeds engine. bus may be nil.
func NewScheduler(engine OperationScheduler, bus domain.EventBus, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		engine:  engine,
		bus:     bus,
		entries: make(map[string]*entry),
		logger:  logger,
	}
}

// RoutinesFromConfig converts and validates configured routines against pins.
func RoutinesFromConfig(cfgs []config.RoutineConfig, pins domain.PinRange) ([]Routine, error) {
	out := make([]Routine, 0, len(cfgs))
	for _, rc := range cfgs {
		if _, err := parseSchedule(rc.Schedule); err != nil {
			return nil, domain.NewSubSystemError("routine", "RoutinesFromConfig", domain.ErrInvalidInput,
				fmt.Sprintf("routine %q: %v", rc.Name, err))
		}
		req, err := domain.NewOperationRequest(pins, rc.GPIO, rc.State, rc.Delay, rc.Duration)
		if err != nil {
			return nil, fmt.Errorf("routine %q: %w", rc.Name, err)
		}
		out = append(out, Routine{Name: rc.Name, Schedule: rc.Schedule, Request: req, OneShot: rc.OneShot})
	}
	return out, nil
}

// AddRoutine registers r. Names must be unique.
func (s *Scheduler) AddRoutine(r Routine) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[r.Name]; exists {
		return domain.NewSubSystemError("routine", "Scheduler.AddRoutine", domain.ErrInvalidInput,
			fmt.Sprintf("routine %q already exists", r.Name))
	}
	schedule, err := parseSchedule(r.Schedule)
	if err != nil {
		return domain.NewSubSystemError("routine", "Scheduler.AddRoutine", domain.ErrInvalidInput,
			fmt.Sprintf("invalid schedule %q for routine %q: %v", r.Schedule, r.Name, err))
	}

	e := &entry{routine: r}
	name := r.Name
	e.id = s.cron.Schedule(schedule, cron.FuncJob(func() { s.run(name) }))
	s.entries[name] = e

	s.logger.Info("routine added", "name", r.Name, "schedule", r.Schedule,
		"gpio", r.Request.Pin, "state", r.Request.Mode.String())
	return nil
}

// RemoveRoutine unregisters a routine by name.
func (s *Scheduler) RemoveRoutine(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[name]
	if !ok {
		return domain.NewSubSystemError("routine", "Scheduler.RemoveRoutine", domain.ErrNotFound,
			fmt.Sprintf("routine %q", name))
	}
	s.cron.Remove(e.id)
	delete(s.entries, name)
	s.logger.Info("routine removed", "name", name)
	return nil
}

// Routines lists registered routines sorted by name.
func (s *Scheduler) Routines() []RoutineInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]RoutineInfo, 0, len(s.entries))
	for _, e := range s.entries {
		info := RoutineInfo{
			Name:     e.routine.Name,
			Schedule: e.routine.Schedule,
			GPIO:     e.routine.Request.Pin,
			State:    e.routine.Request.Mode.String(),
			Runs:     e.runs,
			Failures: e.failures,
		}
		if ce := s.cron.Entry(e.id); ce.ID != 0 && !ce.Next.IsZero() {
			next := ce.Next
			info.NextRun = &next
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Start begins running the scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.cron.Start()
	s.started = true
	return nil
}

// Stop signals the scheduler to stop and waits for running jobs to finish.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.ctx = nil
	s.started = false
	s.mu.Unlock()

	// Jobs take s.mu, so wait for them outside it.
	<-s.cron.Stop().Done()
	return nil
}

// run executes one firing of the named routine.
func (s *Scheduler) run(name string) {
	s.mu.Lock()
	ctx := s.ctx
	e, ok := s.entries[name]
	s.mu.Unlock()

	if ctx == nil || !ok {
		s.logger.Debug("scheduler stopped, skipping routine", "routine", name)
		return
	}
	r := e.routine

	runCtx, cancel := context.WithTimeout(pinengine.WithSource(ctx, pinengine.SourceRoutine), time.Minute)
	defer cancel()

	op, err := s.engine.Schedule(runCtx, r.Request)

	s.mu.Lock()
	if err != nil {
		e.failures++
	} else {
		e.runs++
	}
	if r.OneShot {
		s.cron.Remove(e.id)
		delete(s.entries, name)
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("routine rejected", "routine", name, "gpio", r.Request.Pin, "error", err)
		s.publish(ctx, domain.EventRoutineRejected, r, "", err)
		return
	}
	s.logger.Info("routine fired", "routine", name, "gpio", r.Request.Pin,
		"state", r.Request.Mode.String(), "operation_id", op.ID)
	s.publish(ctx, domain.EventRoutineFired, r, op.ID, nil)
}

func (s *Scheduler) publish(ctx context.Context, typ domain.EventType, r Routine, opID string, err error) {
	if s.bus == nil {
		return
	}
	p := domain.PinEventPayload{
		Mode:        r.Request.Mode.String(),
		Source:      pinengine.SourceRoutine,
		OperationID: opID,
		DelayMs:     r.Request.Delay.Milliseconds(),
		DurationMs:  r.Request.Duration.Milliseconds(),
	}
	if err != nil {
		p.Error = err.Error()
	}
	s.bus.Publish(ctx, domain.NewPinEvent(typ, time.Now(), r.Request.Pin, p))
}

// parseSchedule tries to parse a schedule string as a cron expression first,
// then falls back to time.ParseDuration.
func parseSchedule(schedule string) (cron.Schedule, error) {
	if schedule == "" {
		return nil, fmt.Errorf("empty schedule")
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if sched, err := parser.Parse(schedule); err == nil {
		return sched, nil
	}

	dur, err := time.ParseDuration(schedule)
	if err != nil {
		return nil, fmt.Errorf("not a valid cron expression or duration: %q", schedule)
	}
	if dur <= 0 {
		return nil, fmt.Errorf("duration must be positive: %q", schedule)
	}
	return &constantDelay{delay: dur}, nil
}

// constantDelay implements cron.Schedule for a fixed interval.
// Unlike cron.Every(), it supports sub-second durations.
type constantDelay struct {
	delay time.Duration
}

func (d *constantDelay) Next(t time.Time) time.Time {
	return t.Add(d.delay)
}
