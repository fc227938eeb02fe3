package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/goMFA/method"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const (
	methodName = "email"
	// hotCodes is the backup code count seeded for hot users.
	hotCodes = 256
)

func main() {
	var (
		users       = flag.Int("users", 10000, "number of users to seed with one active method")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 100000, "operations per phase")
		hot         = flag.Int("hot", 16, "users targeted by the contention phases")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", method.DefaultRedisPrefix, "method hash key prefix")
	)
	flag.Parse()

	if *users <= 0 || *concurrency <= 0 || *ops <= 0 || *hot <= 0 || *hot > *users {
		fmt.Fprintln(os.Stderr, "users, concurrency, ops and hot must be > 0 and hot <= users")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	registry := method.NewRegistry(method.NewRedisStore(client, *prefix), time.Now)

	fmt.Printf("seeding %d users...\n", *users)
	startSeed := time.Now()
	for i := 0; i < *users; i++ {
		uid := userID(i)
		if _, _, err := registry.CreateOrGetPending(ctx, uid, methodName, "JBSWY3DPEHPK3PXPJBSWY3DPEHPK3PXP"); err != nil {
			fmt.Fprintf(os.Stderr, "create failed: %v\n", err)
			os.Exit(1)
		}
		if _, err := registry.Activate(ctx, uid, methodName, backupCodes(i, *hot), ""); err != nil {
			fmt.Fprintf(os.Stderr, "activate failed: %v\n", err)
			os.Exit(1)
		}
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	listStats := runPhase(*ops, *concurrency, func(r *rand.Rand, _ int) error {
		_, err := registry.ListActive(ctx, userID(r.Intn(*users)))
		return err
	})

	counterStats := runPhase(*ops, *concurrency, func(r *rand.Rand, _ int) error {
		uid := userID(r.Intn(*hot))
		m, err := registry.AdvanceCounter(ctx, uid, methodName)
		if err != nil {
			return err
		}
		ok, err := registry.ConsumeCounterCode(ctx, uid, methodName, m.Counter)
		if err != nil {
			return err
		}
		if !ok {
			return errLostRace
		}
		return nil
	})

	var consumed int64
	backupStats := runPhase(*ops, *concurrency, func(r *rand.Rand, i int) error {
		u := r.Intn(*hot)
		// Two workers target each code so half the attempts lose.
		ok, err := registry.ConsumeBackupCode(ctx, userID(u), methodName, backupCode(u, (i/2)%hotCodes))
		if err != nil {
			return err
		}
		if ok {
			atomic.AddInt64(&consumed, 1)
		}
		return nil
	})

	fmt.Println("---- results ----")
	printStats("list-active", listStats)
	printStats("counter-cas", counterStats)
	printStats("backup-consume", backupStats)
	fmt.Printf("backup codes consumed: %d\n", consumed)
}

var errLostRace = errors.New("counter code consumed by another worker")

// runPhase runs ops calls of op across concurrency workers and collects
// per-call latencies. Calls returning an error count as failures.
func runPhase(ops, concurrency int, op func(r *rand.Rand, i int) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := op(r, i)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}

func userID(i int) string {
	return fmt.Sprintf("user-%d", i)
}

func backupCode(user, i int) string {
	return fmt.Sprintf("u%dc%d", user, i)
}

// backupCodes returns the plain codes stored for a user. Only the hot users
// need a full set.
func backupCodes(user, hot int) []string {
	n := 5
	if user < hot {
		n = hotCodes
	}
	out := make([]string, n)
	for i := range out {
		out[i] = backupCode(user, i)
	}
	return out
}
