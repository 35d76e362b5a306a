package service

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Cron specs with a seconds field.
const (
	hourlySpec = "0 0 * * * *"
	minuteSpec = "0 * * * * *"
)

// SchedulerService wraps cron-based jobs: the hourly pending check and one-shot
// alarms keyed by request code.
type SchedulerService struct {
	cron *cron.Cron

	mu      sync.Mutex
	alarms  map[int64]cron.EntryID
	running bool
}

func NewSchedulerService(loc *time.Location) *SchedulerService {
	if loc == nil {
		loc = time.Local
	}
	return &SchedulerService{
		cron:   cron.New(cron.WithLocation(loc), cron.WithSeconds()),
		alarms: make(map[int64]cron.EntryID),
	}
}

// ScheduleHourly registers a job at every :00 boundary.
func (s *SchedulerService) ScheduleHourly(job func()) (cron.EntryID, error) {
	id, err := s.cron.AddFunc(hourlySpec, job)
	if err != nil {
		return 0, fmt.Errorf("schedule hourly job: %w", err)
	}
	return id, nil
}

// ScheduleEveryMinute registers a job at the start of every minute. A run
// still in progress makes the next one skip.
func (s *SchedulerService) ScheduleEveryMinute(job func()) (cron.EntryID, error) {
	wrapped := cron.NewChain(cron.SkipIfStillRunning(cron.DiscardLogger)).Then(cron.FuncJob(job))
	id, err := s.cron.AddJob(minuteSpec, wrapped)
	if err != nil {
		return 0, fmt.Errorf("schedule minute job: %w", err)
	}
	return id, nil
}

// ArmAt registers job to run once at at, replacing any alarm armed under code.
func (s *SchedulerService) ArmAt(code int64, at time.Time, job func()) error {
	if job == nil {
		return fmt.Errorf("arm alarm %d: nil job", code)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.alarms[code]; ok {
		s.cron.Remove(prev)
		delete(s.alarms, code)
	}

	entry := &armedEntry{}
	entry.id = s.cron.Schedule(&onceAt{at: at}, cron.FuncJob(func() {
		s.release(code, entry)
		job()
	}))
	s.alarms[code] = entry.id
	return nil
}

// Disarm cancels the alarm armed under code. Unknown codes are ignored.
func (s *SchedulerService) Disarm(code int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.alarms[code]; ok {
		s.cron.Remove(id)
		delete(s.alarms, code)
	}
}

// Armed reports whether an alarm is pending under code.
func (s *SchedulerService) Armed(code int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.alarms[code]
	return ok
}

// CanScheduleExact reports whether armed alarms will actually fire.
func (s *SchedulerService) CanScheduleExact() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *SchedulerService) Start() {
	s.mu.Lock()
	s.running = true
	s.mu.Unlock()
	s.cron.Start()
}

func (s *SchedulerService) Stop() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// release drops a fired one-shot entry unless the code was re-armed meanwhile.
func (s *SchedulerService) release(code int64, entry *armedEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := entry.id
	if current, ok := s.alarms[code]; ok && current == id {
		delete(s.alarms, code)
	}
	s.cron.Remove(id)
}

type armedEntry struct {
	id cron.EntryID
}

// onceAt is a cron.Schedule that yields a single activation time.
type onceAt struct {
	at time.Time
}

func (o *onceAt) Next(t time.Time) time.Time {
	if t.Before(o.at) {
		return o.at
	}
	return time.Time{}
}
