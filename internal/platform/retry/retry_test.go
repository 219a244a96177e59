package retry

import (
	"errors"
	"testing"
	"time"

	perr "gitrank/internal/platform/errors"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Class
	}{
		{"conflict", perr.Conflictf("held"), ClassConflict},
		{"rate limited", perr.RateLimitedf("429"), ClassRateLimited},
		{"forbidden", perr.Forbiddenf("403"), ClassRateLimited},
		{"upstream", perr.Upstreamf("502"), ClassTransient},
		{"unavailable", perr.Unavailablef("down"), ClassTransient},
		{"db contention", perr.FromPostgres(&pgconn.PgError{Code: "40001"}, "tx failed"), ClassTransient},
		{"db non-retryable", perr.DBf("boom"), ClassFatal},
		{"config", perr.Configf("no token"), ClassFatal},
		{"validation", perr.Newf(perr.ErrorCodeValidation, "bad"), ClassFatal},
		{"not found", perr.NotFoundf("gone"), ClassFatal},
		{"raw transport", errors.New("connection reset"), ClassTransient},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.err); got != tc.want {
				t.Fatalf("Classify(%v) = %v want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestPolicyDelay(t *testing.T) {
	p := Policy{
		MaxAttempts:      3,
		ConflictCooldown: 2 * time.Second,
		RateLimitStep:    5 * time.Second,
		TransientStep:    time.Second,
	}

	if d, ok := p.Delay(ClassConflict, 0); !ok || d != 2*time.Second {
		t.Fatalf("conflict attempt 0 got (%v, %v)", d, ok)
	}
	if d, ok := p.Delay(ClassRateLimited, 0); !ok || d != 5*time.Second {
		t.Fatalf("rate limit attempt 0 got (%v, %v)", d, ok)
	}
	if d, ok := p.Delay(ClassRateLimited, 1); !ok || d != 10*time.Second {
		t.Fatalf("rate limit attempt 1 got (%v, %v), want linear growth", d, ok)
	}
	if d, ok := p.Delay(ClassTransient, 1); !ok || d != 2*time.Second {
		t.Fatalf("transient attempt 1 got (%v, %v)", d, ok)
	}

	// attempt ceiling
	if _, ok := p.Delay(ClassTransient, 2); ok {
		t.Fatal("attempt 2 of 3 should not retry again")
	}

	// fatal never retries
	if _, ok := p.Delay(ClassFatal, 0); ok {
		t.Fatal("fatal class should never retry")
	}
}

func TestPolicyDelayZeroAttempts(t *testing.T) {
	var p Policy
	if _, ok := p.Delay(ClassTransient, 0); ok {
		t.Fatal("MaxAttempts<=0 means a single attempt only")
	}
}
