package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

var errExpire = errors.New("i/o timeout")

// memCounter implements RateCounter in memory. Keys with a TTL vanish
// once advance moves the clock past it.
type memCounter struct {
	mu        sync.Mutex
	now       time.Time
	counts    map[string]int64
	ttls      map[string]time.Duration
	deadlines map[string]time.Time

	err         error // fails the whole transaction
	expireFails int   // EXPIRE commands still to fail
}

func newMemCounter() *memCounter {
	return &memCounter{
		now:       time.Unix(0, 0),
		counts:    map[string]int64{},
		ttls:      map[string]time.Duration{},
		deadlines: map[string]time.Time{},
	}
}

func (m *memCounter) TxPipelined(_ context.Context, fn func(redis.Pipeliner) error) ([]redis.Cmder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	p := &memPipe{m: m}
	if err := fn(p); err != nil {
		return nil, err
	}
	return p.cmds, p.firstErr
}

func (m *memCounter) advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}

func (m *memCounter) ttl(key string) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ttls[key]
}

func (m *memCounter) evict(key string) {
	if dl, ok := m.deadlines[key]; ok && !m.now.Before(dl) {
		delete(m.counts, key)
		delete(m.ttls, key)
		delete(m.deadlines, key)
	}
}

// memPipe applies commands straight to its memCounter. Commands other
// than INCR and EXPIRE NX are not implemented.
type memPipe struct {
	redis.Pipeliner
	m        *memCounter
	cmds     []redis.Cmder
	firstErr error
}

func (p *memPipe) Incr(_ context.Context, key string) *redis.IntCmd {
	p.m.evict(key)
	p.m.counts[key]++
	cmd := redis.NewIntResult(p.m.counts[key], nil)
	p.cmds = append(p.cmds, cmd)
	return cmd
}

func (p *memPipe) ExpireNX(_ context.Context, key string, d time.Duration) *redis.BoolCmd {
	var cmd *redis.BoolCmd
	switch _, hasTTL := p.m.deadlines[key]; {
	case p.m.expireFails > 0:
		p.m.expireFails--
		cmd = redis.NewBoolResult(false, errExpire)
		if p.firstErr == nil {
			p.firstErr = errExpire
		}
	case hasTTL:
		cmd = redis.NewBoolResult(false, nil)
	default:
		p.m.ttls[key] = d
		p.m.deadlines[key] = p.m.now.Add(d)
		cmd = redis.NewBoolResult(true, nil)
	}
	p.cmds = append(p.cmds, cmd)
	return cmd
}

func TestRateLimiter_Allow(t *testing.T) {
	counter := newMemCounter()
	rl := NewRateLimiter(counter, "graylogic:mfa", 2, time.Minute)
	ctx := context.Background()

	want := []struct {
		ok        bool
		remaining int
	}{{true, 1}, {true, 0}, {false, 0}}
	for i, w := range want {
		ok, remaining, err := rl.Allow(ctx, "login", "10.0.0.1")
		if err != nil {
			t.Fatalf("Allow() error = %v", err)
		}
		if ok != w.ok || remaining != w.remaining {
			t.Errorf("hit %d: Allow() = %v, %d; want %v, %d", i+1, ok, remaining, w.ok, w.remaining)
		}
	}

	if ok, _, _ := rl.Allow(ctx, "login", "10.0.0.2"); !ok {
		t.Error("a different key shares the window")
	}
	if d := counter.ttl("graylogic:mfa:ratelimit:login:10.0.0.1"); d != time.Minute {
		t.Errorf("expiry = %v, want 1m", d)
	}

	counter.advance(time.Minute)
	if ok, remaining, _ := rl.Allow(ctx, "login", "10.0.0.1"); !ok || remaining != 1 {
		t.Errorf("after window: Allow() = %v, %d; want true, 1", ok, remaining)
	}
}

func TestRateLimiter_FailedExpireDoesNotLockOut(t *testing.T) {
	counter := newMemCounter()
	counter.expireFails = 1
	rl := NewRateLimiter(counter, "graylogic:mfa", 2, time.Minute)
	ctx := context.Background()
	key := "graylogic:mfa:ratelimit:login:10.0.0.1"

	if _, _, err := rl.Allow(ctx, "login", "10.0.0.1"); !errors.Is(err, errExpire) {
		t.Fatalf("first Allow() error = %v, want expire failure", err)
	}
	if d := counter.ttl(key); d != 0 {
		t.Fatalf("ttl after failed expire = %v, want none", d)
	}

	if ok, _, err := rl.Allow(ctx, "login", "10.0.0.1"); err != nil || !ok {
		t.Fatalf("second Allow() = %v, %v; want true, nil", ok, err)
	}
	if d := counter.ttl(key); d != time.Minute {
		t.Errorf("ttl after second hit = %v, want 1m", d)
	}
	if ok, _, _ := rl.Allow(ctx, "login", "10.0.0.1"); ok {
		t.Error("third Allow() = true, want limit reached")
	}

	counter.advance(time.Minute + time.Second)
	if ok, _, err := rl.Allow(ctx, "login", "10.0.0.1"); err != nil || !ok {
		t.Errorf("Allow() after window = %v, %v; want true, nil", ok, err)
	}
}

func TestLoginRateLimit(t *testing.T) {
	env := newTestEnv(t)
	counter := newMemCounter()
	env.srv.limiter = NewRateLimiter(counter, "t", 2, time.Minute)
	env.router = env.srv.Handler()

	body := []byte(`{"username":"x","password":"y"}`)
	codes := make([]int, 0, 3)
	for range 3 {
		w := env.do(t, http.MethodPost, "/api/v1/auth/login", "", body)
		codes = append(codes, w.Code)
	}
	if codes[0] != http.StatusUnauthorized || codes[1] != http.StatusUnauthorized || codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v, want [401 401 429]", codes)
	}

	// Redis failures do not block logins.
	counter.err = errors.New("connection refused")
	w := env.do(t, http.MethodPost, "/api/v1/auth/login", "", body)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status with failing limiter = %d, want 401", w.Code)
	}
}
