// Package service provides the resumable bounded-concurrency backfill
// orchestrator
package service

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"gitrank/internal/platform/logger"
	"gitrank/internal/platform/retry"
	"gitrank/internal/services/backfill/domain"
	"gitrank/internal/services/backfill/repo"
	rollupdom "gitrank/internal/services/rollup/domain"
)

// Refresher is the pipeline surface one worker drives per candidate
type Refresher interface {
	RefreshAndSync(ctx context.Context, userID string, creds rollupdom.Credentials) (rollupdom.RefreshResult, error)
}

// Config for the backfill service
type Config struct {
	// WindowDays keys the completion set; one marker space per window length
	WindowDays int

	// MaxCandidates bounds undone work dispatched per cycle
	MaxCandidates int

	// Workers bounds concurrent refreshes
	Workers int

	// JitterMax is the politeness pacing ceiling applied before each item
	JitterMax time.Duration

	// ZeroSuccessCooldown is the extended wait after a cycle where nothing
	// succeeded, before trying once more
	ZeroSuccessCooldown time.Duration

	// GithubToken and GitlabToken are the process-level provider tokens
	// combined with per-user handles to form refresh credentials
	GithubToken   string
	GitlabToken   string
	GitlabBaseURL string
}

// Service implements domain.RunnerPort
type Service struct {
	progress repo.Progress
	pipeline Refresher
	policy   retry.Policy
	cfg      Config
	log      logger.Logger

	// seams for tests
	sleep  func(time.Duration)
	jitter func() time.Duration
}

// New constructs a new backfill service
func New(progress repo.Progress, pipeline Refresher, policy retry.Policy, cfg Config) *Service {
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = 365
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.ZeroSuccessCooldown <= 0 {
		cfg.ZeroSuccessCooldown = 30 * time.Second
	}
	s := &Service{
		progress: progress,
		pipeline: pipeline,
		policy:   policy,
		cfg:      cfg,
		log:      *logger.Named("backfill"),
		sleep:    time.Sleep,
	}
	s.jitter = func() time.Duration {
		if cfg.JitterMax <= 0 {
			return 0
		}
		return time.Duration(rand.Int63n(int64(cfg.JitterMax)))
	}
	return s
}

// Run drives cycles of discover -> filter -> dispatch -> mark until no
// undone candidate remains. Failures never abort a cycle; they stay
// undone and become eligible again on the next run. A cycle with zero
// successes triggers an extended cooldown, and a second zero-success
// cycle in a row stops the run so a dead upstream is not hammered
func (s *Service) Run(ctx context.Context) (domain.Summary, error) {
	var total domain.Summary
	zeroRuns := 0
	// failed filters this run's exhausted items out of the next cycle and is
	// cleared after a cooldown to give them one more chance; everFailed keeps
	// the distinct users so a repeat failure is never counted twice
	failed := map[string]bool{}
	everFailed := map[string]bool{}
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		cycle, err := s.runCycle(ctx, failed, everFailed)
		// Candidates and Skipped reflect the most recent cycle's discovery;
		// Dispatched and Succeeded accumulate across cycles
		total.Candidates = cycle.Candidates
		total.Skipped = cycle.Skipped
		total.Dispatched += cycle.Dispatched
		total.Succeeded += cycle.Succeeded
		total.Failed = len(everFailed)
		if err != nil {
			return total, err
		}

		if cycle.Dispatched == 0 {
			s.log.Info().
				Int("succeeded", total.Succeeded).
				Int("failed", total.Failed).
				Msg("backfill complete")
			return total, nil
		}
		if cycle.Succeeded == 0 {
			zeroRuns++
			if zeroRuns >= 2 {
				s.log.Warn().Int("failed", total.Failed).Msg("two zero-success cycles stopping run")
				return total, nil
			}
			s.log.Warn().Dur("cooldown", s.cfg.ZeroSuccessCooldown).Msg("zero-success cycle cooling down")
			s.sleep(s.cfg.ZeroSuccessCooldown)
			clear(failed)
			continue
		}
		zeroRuns = 0
	}
}

// runCycle performs one discover/filter/dispatch pass
func (s *Service) runCycle(ctx context.Context, failed, everFailed map[string]bool) (domain.Summary, error) {
	var sum domain.Summary

	candidates, err := s.progress.Candidates(ctx, 0)
	if err != nil {
		return sum, err
	}
	sum.Candidates = len(candidates)

	pending := make([]domain.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if failed[c.UserID] {
			continue
		}
		done, err := s.progress.IsDone(ctx, s.cfg.WindowDays, c.UserID)
		if err != nil {
			return sum, err
		}
		if done {
			sum.Skipped++
			continue
		}
		pending = append(pending, c)
	}
	// the cap bounds undone work per cycle; done users never eat into it,
	// so repeated runs still reach the tail of a large user set
	if s.cfg.MaxCandidates > 0 && len(pending) > s.cfg.MaxCandidates {
		pending = pending[:s.cfg.MaxCandidates]
	}
	sum.Dispatched = len(pending)
	if len(pending) == 0 {
		return sum, nil
	}

	// shared index claim so no candidate is dispatched twice
	var (
		next atomic.Int64
		wg   sync.WaitGroup
	)
	results := make([]bool, len(pending))
	workers := s.cfg.Workers
	if workers > len(pending) {
		workers = len(pending)
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(next.Add(1)) - 1
				if i >= len(pending) || ctx.Err() != nil {
					return
				}
				results[i] = s.processItem(ctx, pending[i])
			}
		}()
	}
	wg.Wait()

	for i, ok := range results {
		user := pending[i].UserID
		if ok {
			sum.Succeeded++
			delete(everFailed, user)
			continue
		}
		sum.Failed++
		failed[user] = true
		everFailed[user] = true
	}
	return sum, nil
}

// processItem refreshes one candidate under the shared retry policy and
// marks it done on success
func (s *Service) processItem(ctx context.Context, c domain.Candidate) bool {
	if d := s.jitter(); d > 0 {
		s.sleep(d)
	}

	creds := rollupdom.Credentials{
		GithubHandle:  c.GithubHandle,
		GithubToken:   s.cfg.GithubToken,
		GitlabHandle:  c.GitlabHandle,
		GitlabToken:   s.cfg.GitlabToken,
		GitlabBaseURL: s.cfg.GitlabBaseURL,
	}

	for attempt := 0; ; attempt++ {
		_, err := s.pipeline.RefreshAndSync(ctx, c.UserID, creds)
		if err == nil {
			if err := s.progress.MarkDone(ctx, s.cfg.WindowDays, c.UserID); err != nil {
				s.log.Error().Err(err).Str("user_id", c.UserID).Msg("mark done failed")
				return false
			}
			return true
		}

		class := retry.Classify(err)
		delay, again := s.policy.Delay(class, attempt)
		if !again {
			s.log.Warn().Err(err).
				Str("user_id", c.UserID).
				Int("attempts", attempt+1).
				Msg("backfill item failed")
			return false
		}
		s.log.Debug().Err(err).
			Str("user_id", c.UserID).
			Dur("delay", delay).
			Msg("backfill item retrying")
		s.sleep(delay)
	}
}
