package search

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/IshaanNene/rallybrief/internal/types"
)

// ResolveFunc looks up the article for a date offset.
type ResolveFunc func(ctx context.Context, offset int) (string, bool, error)

// Policy bounds the date-offset retry loop.
type Policy struct {
	// MaxAttempts is the number of offsets tried (0, -1, -2, ...).
	MaxAttempts int

	// DelayMin and DelayMax bound the random wait between attempts.
	DelayMin time.Duration
	DelayMax time.Duration

	// Rand drives the delay. A time-seeded source is used when nil.
	Rand *rand.Rand

	// Notify is called before each wait.
	Notify func(err error, wait time.Duration)
}

// Retry calls resolve with offsets 0, -1, -2, ... until it finds a URL, fails
// with an error, or MaxAttempts offsets have been tried. Exhaustion is a
// Resolution without URL and a nil error.
func Retry(ctx context.Context, policy Policy, resolve ResolveFunc) (types.Resolution, error) {
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var res types.Resolution
	next := 0
	op := func() error {
		offset := -next
		next++
		res.Tried = append(res.Tried, offset)

		link, ok, err := resolve(ctx, offset)
		if err != nil {
			return backoff.Permanent(err)
		}
		if !ok {
			return wrapAttempt(offset)
		}
		res.URL = link
		res.Offset = offset
		return nil
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(newJitter(policy), uint64(attempts-1)),
		ctx,
	)

	err := backoff.RetryNotify(op, b, policy.Notify)
	if err == nil || errors.Is(err, errNoArticle) {
		return res, nil
	}
	return res, err
}

// jitterBackOff waits a uniformly random duration in [min, max].
type jitterBackOff struct {
	mu  sync.Mutex
	rng *rand.Rand
	lo  time.Duration
	hi  time.Duration
}

func newJitter(p Policy) *jitterBackOff {
	rng := p.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &jitterBackOff{rng: rng, lo: p.DelayMin, hi: p.DelayMax}
}

func (j *jitterBackOff) NextBackOff() time.Duration {
	j.mu.Lock()
	defer j.mu.Unlock()
	return between(j.rng, j.lo, j.hi)
}

func (j *jitterBackOff) Reset() {}

// errNoArticle signals a not-found attempt to the retry loop.
var errNoArticle = errors.New("no article for offset")

func wrapAttempt(offset int) error {
	return fmt.Errorf("%w %d", errNoArticle, offset)
}
