// Package griefing converts a punishment amount into the cost the punisher
// pays, according to an immutable ratio and ratio type chosen when an
// agreement is created.
package griefing

import (
	"fmt"
	"math/big"
	"strings"
	"sync"

	"griefing/internal/errkind"
)

// RatioType selects the cost formula
type RatioType uint8

const (
	NaN RatioType = iota
	Inf
	Dec
)

// Scale is the fixed-point unit of a ratio (18 fractional decimal digits)
var Scale = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

var (
	ErrUnsupportedRatioType = errkind.New(errkind.InvalidArgument, "unsupported ratio type")
	ErrInvalidRatio         = errkind.New(errkind.InvalidArgument, "invalid ratio")
)

var ratioTypeNames = []string{"NaN", "Inf", "Dec"}

func (t RatioType) String() string {
	if int(t) < len(ratioTypeNames) {
		return ratioTypeNames[t]
	}
	return fmt.Sprintf("RatioType(%d)", uint8(t))
}

// ParseRatioType accepts the enum names used in agreement configuration
func ParseRatioType(s string) (RatioType, error) {
	for i, name := range ratioTypeNames {
		if strings.EqualFold(s, name) {
			return RatioType(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedRatioType, s)
}

// CostFunc maps a punishment amount to its cost for a given ratio.
// It must be pure.
type CostFunc func(ratio, punishment *big.Int) *big.Int

// DecCost is the fixed-multiplier formula: punishment * ratio / 1e18
func DecCost(ratio, punishment *big.Int) *big.Int {
	cost := new(big.Int).Mul(punishment, ratio)
	return cost.Quo(cost, Scale)
}

// Strategies maps ratio types to cost formulas
type Strategies struct {
	mu    sync.RWMutex
	funcs map[RatioType]CostFunc
}

// NewStrategies returns an empty strategy set
func NewStrategies() *Strategies {
	return &Strategies{funcs: make(map[RatioType]CostFunc)}
}

// DefaultStrategies registers the formulas with confirmed semantics.
// Only Dec qualifies; NaN and Inf stay unregistered.
func DefaultStrategies() *Strategies {
	s := NewStrategies()
	s.Register(Dec, DecCost)
	return s
}

// Register installs or replaces the formula for t
func (s *Strategies) Register(t RatioType, f CostFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.funcs[t] = f
}

// Lookup returns the formula for t
func (s *Strategies) Lookup(t RatioType) (CostFunc, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.funcs[t]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedRatioType, t)
	}
	return f, nil
}

// Cost evaluates the formula for t
func (s *Strategies) Cost(t RatioType, ratio, punishment *big.Int) (*big.Int, error) {
	f, err := s.Lookup(t)
	if err != nil {
		return nil, err
	}
	return f(ratio, punishment), nil
}
