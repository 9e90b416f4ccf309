package services

import (
	"context"
	"log"
	"sync"

	"github.com/robfig/cron/v3"

	"tickyai/internal/types/habit"
	"tickyai/utils"
)

// HabitReminderSender fires one habit reminder through the dedup-guarded
// send path. Implemented by NotificationService.
type HabitReminderSender interface {
	SendHabitReminder(ctx context.Context, habitID string)
}

type scheduleHabitLister interface {
	ListHabitsWithReminders(ctx context.Context) ([]*habit.Habit, error)
}

type broadcastRunner interface {
	RunMorningSweep(ctx context.Context)
	RunEveningSweep(ctx context.Context)
	RunReminderSweep(ctx context.Context)
}

type supportRunner interface {
	RunMorningSupport(ctx context.Context)
	RunEveningSupport(ctx context.Context)
}

// SchedulerService owns the single process-wide cron runner: every
// per-habit reminder entry plus the periodic sweep jobs live on it.
// The entry map is the sole owner of timer lifetimes.
type SchedulerService struct {
	cron      *cron.Cron
	sender    HabitReminderSender
	habits    scheduleHabitLister
	broadcast broadcastRunner
	support   supportRunner

	mu      sync.Mutex
	entries map[string]cron.EntryID
}

func NewSchedulerService(sender HabitReminderSender, habits scheduleHabitLister, broadcast broadcastRunner, support supportRunner) *SchedulerService {
	return &SchedulerService{
		cron:      cron.New(),
		sender:    sender,
		habits:    habits,
		broadcast: broadcast,
		support:   support,
		entries:   make(map[string]cron.EntryID),
	}
}

func habitScheduleKey(habitID string) string {
	return "habit_reminder_" + habitID
}

// Start registers the periodic sweeps, restores per-habit schedules from
// storage and starts the cron runner. Schedules created while the process
// was down are simply missed until the next edit or restart.
func (s *SchedulerService) Start(ctx context.Context) error {
	// The broadcast tick must be clock-aligned, not relative to process
	// start: the sweeps accept only local minute < 10 at the target hour,
	// so a drifting phase would miss the window on every tick.
	if _, err := s.cron.AddFunc("0,30 * * * *", func() {
		sweepCtx := context.Background()
		s.broadcast.RunMorningSweep(sweepCtx)
		s.broadcast.RunEveningSweep(sweepCtx)
	}); err != nil {
		return err
	}

	if _, err := s.cron.AddFunc("0,30 * * * *", func() {
		s.broadcast.RunReminderSweep(context.Background())
	}); err != nil {
		return err
	}

	// Support sweeps fire on server-local time, unlike the broadcast
	// loop which gates on each user's own timezone.
	if _, err := s.cron.AddFunc("0 9 * * *", func() {
		s.support.RunMorningSupport(context.Background())
	}); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("0 21 * * *", func() {
		s.support.RunEveningSupport(context.Background())
	}); err != nil {
		return err
	}

	if err := s.RestoreSchedules(ctx); err != nil {
		return err
	}

	s.cron.Start()
	log.Println("Scheduler started")
	return nil
}

// Stop halts the cron runner and waits for running jobs to finish. Timers
// are stopped, but a send already in flight is not cancelled.
func (s *SchedulerService) Stop() {
	<-s.cron.Stop().Done()
	log.Println("Scheduler stopped")
}

// ScheduleHabitReminder compiles the habit's reminder pattern and registers
// a cron entry for it. An existing entry for the same habit is cancelled
// first, so there is at most one live timer per habit at all times. An
// unparsable pattern is logged and skipped, never fatal.
func (s *SchedulerService) ScheduleHabitReminder(h *habit.Habit) {
	if h.ReminderTime == nil {
		return
	}

	expr, ok := utils.CompileReminderPattern(*h.ReminderTime, h.Frequency)
	if !ok {
		log.Printf("Habit %s: reminder pattern %q is unparsable, not scheduling", h.ID, *h.ReminderTime)
		return
	}

	habitID := h.ID

	s.mu.Lock()
	defer s.mu.Unlock()

	key := habitScheduleKey(habitID)
	if existing, ok := s.entries[key]; ok {
		s.cron.Remove(existing)
		delete(s.entries, key)
	}

	entryID, err := s.cron.AddFunc(expr, func() {
		s.sender.SendHabitReminder(context.Background(), habitID)
	})
	if err != nil {
		log.Printf("Habit %s: failed to register cron entry %q: %v", habitID, expr, err)
		return
	}

	s.entries[key] = entryID
}

// CancelHabitReminder removes the habit's timer if one exists. Idempotent.
func (s *SchedulerService) CancelHabitReminder(habitID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := habitScheduleKey(habitID)
	if entryID, ok := s.entries[key]; ok {
		s.cron.Remove(entryID)
		delete(s.entries, key)
	}
}

// RescheduleHabitReminder is Cancel then Schedule if still eligible.
func (s *SchedulerService) RescheduleHabitReminder(h *habit.Habit) {
	s.CancelHabitReminder(h.ID)
	if h.HasReminder() {
		s.ScheduleHabitReminder(h)
	}
}

// RestoreSchedules re-derives all live per-habit schedules from storage.
// This is the only recovery path after a restart.
func (s *SchedulerService) RestoreSchedules(ctx context.Context) error {
	habits, err := s.habits.ListHabitsWithReminders(ctx)
	if err != nil {
		return err
	}

	restored := 0
	for _, h := range habits {
		s.ScheduleHabitReminder(h)
		restored++
	}

	log.Printf("Restored %d habit reminder schedules", restored)
	return nil
}

// ScheduledCount reports how many per-habit timers are live.
func (s *SchedulerService) ScheduledCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
