package server

import (
	"context"
	"log"
	"time"
)

// Scheduler reruns the radar pipeline on a fixed interval so the latest
// stories stay fresh without a manual trigger. A distributed lock keeps
// replicas from running the pipeline at the same time.
type Scheduler struct {
	Runner   RadarRunner
	Store    RadarStore
	Locks    Locker
	Interval time.Duration
	Logger   *log.Logger
	Stop     chan struct{}
}

func (s *Scheduler) Start() {
	interval := s.Interval
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-s.Stop:
				ticker.Stop()
				return
			case <-ticker.C:
				s.tick()
			}
		}
	}()
}

func (s *Scheduler) tick() {
	ctx := context.Background()
	ok, err := s.Locks.AcquireLock(ctx, radarLockName, 10*time.Minute)
	if err != nil {
		s.Logger.Printf("scheduler: acquiring radar lock: %v", err)
		return
	}
	if !ok {
		return
	}
	defer func() {
		if err := s.Locks.ReleaseLock(ctx, radarLockName); err != nil {
			s.Logger.Printf("scheduler: releasing radar lock: %v", err)
		}
	}()

	started := time.Now()
	resp, err := s.Runner.Run(ctx)
	if err != nil {
		s.Logger.Printf("scheduler: radar run failed: %v", err)
		return
	}
	if _, err := s.Store.SaveRadarRun(ctx, resp); err != nil {
		s.Logger.Printf("scheduler: saving radar run: %v", err)
		return
	}
	s.Logger.Printf("scheduler: radar run finished, %d stories in %s", len(resp.Stories), time.Since(started).Round(time.Millisecond))
}
