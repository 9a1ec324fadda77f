// Package numerator issues sequential human-readable entry numbers backed
// by a per-namespace sys_sequences table. Sequence updates run on the
// caller's querier, so inside a transaction a rolled-back unit returns its
// number to the pool.
package numerator

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
)

// Strategy selects how numbers are drawn from the database.
type Strategy int

const (
	// StrategyStrict draws one number per call with UPDATE ... RETURNING.
	// Gap-free as long as the enclosing transaction commits. Use for
	// ledger entries and anything auditors read.
	StrategyStrict Strategy = iota

	// StrategyCached allocates ranges in memory and hands them out without
	// touching the database. Restarts leave gaps. Use for internal
	// references where throughput matters more than continuity.
	StrategyCached
)

// Options tunes number generation.
type Options struct {
	Strategy Strategy

	// RangeSize is how many numbers a cached allocation claims at once.
	RangeSize int64
}

// DefaultOptions returns the strict, gap-free configuration.
func DefaultOptions() *Options {
	return &Options{Strategy: StrategyStrict}
}

// Config describes the number format for one sequence family.
type Config struct {
	// Prefix leads the formatted number, e.g. "ADJ".
	Prefix string

	// Pad is the zero-padded width of the numeric part.
	Pad int

	// WithYear resets the sequence each calendar year and embeds the year
	// in the formatted number.
	WithYear bool
}

// DefaultConfig returns the standard yearly five-digit format.
func DefaultConfig(prefix string) Config {
	return Config{Prefix: prefix, Pad: 5, WithYear: true}
}

// Querier is the minimal query surface the service needs.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Provider resolves the querier for the current call, typically the
// transaction bound to the request context.
type Provider func(ctx context.Context) Querier

type cachedRange struct {
	current int64
	max     int64
}

// Service generates formatted sequential numbers.
type Service struct {
	provider Provider

	mu     sync.Mutex
	ranges map[string]*cachedRange
}

// New creates a service over a fixed querier.
func New(q Querier) *Service {
	return NewWithProvider(func(context.Context) Querier { return q })
}

// NewWithProvider creates a service that resolves its querier per call.
func NewWithProvider(p Provider) *Service {
	return &Service{
		provider: p,
		ranges:   make(map[string]*cachedRange),
	}
}

// GetNextNumber draws and formats the next number for the sequence family.
// A nil opts means strict.
func (s *Service) GetNextNumber(ctx context.Context, cfg Config, opts *Options, period time.Time) (string, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	key := s.buildKey(cfg, period)

	var (
		num int64
		err error
	)
	switch opts.Strategy {
	case StrategyCached:
		num, err = s.nextCached(ctx, key, opts)
	default:
		num, err = s.nextStrict(ctx, key)
	}
	if err != nil {
		return "", err
	}

	return s.formatNumber(cfg, period, num), nil
}

func (s *Service) nextStrict(ctx context.Context, key string) (int64, error) {
	const query = `
		INSERT INTO sys_sequences (sequence_key, current_val)
		VALUES ($1, 1)
		ON CONFLICT (sequence_key)
		DO UPDATE SET current_val = sys_sequences.current_val + 1
		RETURNING current_val`

	var val int64
	if err := s.provider(ctx).QueryRow(ctx, query, key).Scan(&val); err != nil {
		return 0, fmt.Errorf("next sequence value for %s: %w", key, err)
	}
	return val, nil
}

func (s *Service) nextCached(ctx context.Context, key string, opts *Options) (int64, error) {
	rangeSize := opts.RangeSize
	if rangeSize <= 0 {
		rangeSize = 50
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.ranges[key]
	if r == nil || r.current >= r.max {
		const query = `
			INSERT INTO sys_sequences (sequence_key, current_val)
			VALUES ($1, $2)
			ON CONFLICT (sequence_key)
			DO UPDATE SET current_val = sys_sequences.current_val + $2
			RETURNING current_val`

		var newMax int64
		if err := s.provider(ctx).QueryRow(ctx, query, key, rangeSize).Scan(&newMax); err != nil {
			return 0, fmt.Errorf("allocate sequence range for %s: %w", key, err)
		}
		r = &cachedRange{current: newMax - rangeSize, max: newMax}
		s.ranges[key] = r
	}

	r.current++
	return r.current, nil
}

// SetNextNumber pins the sequence so the next draw returns value. Cached
// ranges for the key are discarded.
func (s *Service) SetNextNumber(ctx context.Context, cfg Config, period time.Time, value int64) error {
	key := s.buildKey(cfg, period)

	const query = `
		INSERT INTO sys_sequences (sequence_key, current_val)
		VALUES ($1, $2)
		ON CONFLICT (sequence_key)
		DO UPDATE SET current_val = $2
		RETURNING current_val`

	var val int64
	if err := s.provider(ctx).QueryRow(ctx, query, key, value-1).Scan(&val); err != nil {
		return fmt.Errorf("set sequence value for %s: %w", key, err)
	}

	s.mu.Lock()
	delete(s.ranges, key)
	s.mu.Unlock()
	return nil
}

func (s *Service) buildKey(cfg Config, period time.Time) string {
	if cfg.WithYear {
		return fmt.Sprintf("%s:%d", cfg.Prefix, period.Year())
	}
	return cfg.Prefix
}

func (s *Service) formatNumber(cfg Config, period time.Time, num int64) string {
	pad := cfg.Pad
	if pad <= 0 {
		pad = 5
	}
	if cfg.WithYear {
		return fmt.Sprintf("%s-%d-%0*d", cfg.Prefix, period.Year(), pad, num)
	}
	return fmt.Sprintf("%s-%0*d", cfg.Prefix, pad, num)
}

// ParseNumber extracts the numeric part of a formatted number, or 0 when
// the input does not end in digits.
func ParseNumber(formatted string) int64 {
	idx := strings.LastIndex(formatted, "-")
	if idx < 0 || idx == len(formatted)-1 {
		return 0
	}
	num, err := strconv.ParseInt(formatted[idx+1:], 10, 64)
	if err != nil {
		return 0
	}
	return num
}
