package ticklist

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"

	"github.com/defistate/clamm-engine-go/pool/math/tickmath"
)

var (
	ErrInvalidTickHint = errors.New("tick hint is not the predecessor of the insertion point")
	ErrTickExists      = errors.New("tick already initialized")
	ErrTickNotFound    = errors.New("tick not initialized")
	ErrTickNotEmpty    = errors.New("tick still has gross liquidity")
	ErrTickSentinel    = errors.New("sentinel ticks cannot be removed")
)

// Tick is one initialized price coordinate. LiquidityNet is the signed delta
// applied to in-range liquidity when the price crosses upward through it; the
// growth-outside fields snapshot every accumulator on the far side of the tick.
// Growth values are Q128 and wrap mod 2^256.
type Tick struct {
	Index          int64
	LiquidityGross *big.Int
	LiquidityNet   *big.Int

	FeeGrowthOutside0     *uint256.Int
	FeeGrowthOutside1     *uint256.Int
	RewardGrowthOutside   *uint256.Int
	AirdropGrowthOutside0 *uint256.Int
	AirdropGrowthOutside1 *uint256.Int

	prev *Tick
	next *Tick
}

// Prev returns the nearest initialized tick below this one.
func (t *Tick) Prev() *Tick { return t.prev }

// Next returns the nearest initialized tick above this one.
func (t *Tick) Next() *Tick { return t.next }

// Sentinel reports whether the tick is one of the immovable bounds.
func (t *Tick) Sentinel() bool {
	return t.Index == tickmath.MinTick || t.Index == tickmath.MaxTick
}

func newTick(index int64) *Tick {
	return &Tick{
		Index:                 index,
		LiquidityGross:        new(big.Int),
		LiquidityNet:          new(big.Int),
		FeeGrowthOutside0:     new(uint256.Int),
		FeeGrowthOutside1:     new(uint256.Int),
		RewardGrowthOutside:   new(uint256.Int),
		AirdropGrowthOutside0: new(uint256.Int),
		AirdropGrowthOutside1: new(uint256.Int),
	}
}

// List is a sorted doubly linked set of initialized ticks with sentinel
// minimum/maximum bounds. Insertion takes a caller-supplied predecessor hint
// and fails closed when the hint is wrong, so a correct caller pays O(1) and
// a wrong one never triggers an unbounded traversal.
type List struct {
	head  *Tick // sentinel at tickmath.MinTick
	tail  *Tick // sentinel at tickmath.MaxTick
	nodes map[int64]*Tick
}

// New builds an empty list holding only the two sentinels.
func New() *List {
	head := newTick(tickmath.MinTick)
	tail := newTick(tickmath.MaxTick)
	head.next = tail
	tail.prev = head

	return &List{
		head: head,
		tail: tail,
		nodes: map[int64]*Tick{
			head.Index: head,
			tail.Index: tail,
		},
	}
}

// Len returns the number of ticks, sentinels included.
func (l *List) Len() int { return len(l.nodes) }

// Get returns the initialized tick at index, if any.
func (l *List) Get(index int64) (*Tick, bool) {
	t, ok := l.nodes[index]
	return t, ok
}

// Head returns the minimum sentinel.
func (l *List) Head() *Tick { return l.head }

// Tail returns the maximum sentinel.
func (l *List) Tail() *Tick { return l.tail }

// ValidateInsert checks that Insert(index, hintPrev) would succeed without
// touching the list. Callers that must stay all-or-nothing across several
// insertions validate every hint up front.
func (l *List) ValidateInsert(index int64, hintPrev int64) error {
	if _, exists := l.nodes[index]; exists {
		return ErrTickExists
	}
	prev, ok := l.nodes[hintPrev]
	if !ok {
		return ErrInvalidTickHint
	}
	if prev.Index >= index || prev.next == nil || prev.next.Index <= index {
		return ErrInvalidTickHint
	}
	return nil
}

// Insert links a new tick at index. hintPrev must be the index of the
// initialized tick immediately preceding the insertion point.
func (l *List) Insert(index int64, hintPrev int64) (*Tick, error) {
	if _, exists := l.nodes[index]; exists {
		return nil, ErrTickExists
	}

	prev, ok := l.nodes[hintPrev]
	if !ok {
		return nil, ErrInvalidTickHint
	}
	if prev.Index >= index || prev.next == nil || prev.next.Index <= index {
		return nil, ErrInvalidTickHint
	}

	t := newTick(index)
	t.prev = prev
	t.next = prev.next
	prev.next.prev = t
	prev.next = t
	l.nodes[index] = t
	return t, nil
}

// Remove unlinks the tick at index. Only empty, non-sentinel ticks may go.
func (l *List) Remove(index int64) error {
	t, ok := l.nodes[index]
	if !ok {
		return ErrTickNotFound
	}
	if t.Sentinel() {
		return ErrTickSentinel
	}
	if t.LiquidityGross.Sign() != 0 {
		return ErrTickNotEmpty
	}

	t.prev.next = t.next
	t.next.prev = t.prev
	t.prev, t.next = nil, nil
	delete(l.nodes, index)
	return nil
}

// AtOrBelow returns the highest tick with Index <= index. The minimum
// sentinel guarantees a result for any index in the valid tick domain.
func (l *List) AtOrBelow(index int64) *Tick {
	if t, ok := l.nodes[index]; ok {
		return t
	}
	// Walk down from the tail; callers on the hot path hold a cursor instead.
	for t := l.tail; t != nil; t = t.prev {
		if t.Index <= index {
			return t
		}
	}
	return l.head
}

// Above returns the lowest tick with Index > index, or the maximum sentinel.
func (l *List) Above(index int64) *Tick {
	for t := l.head; t != nil; t = t.next {
		if t.Index > index {
			return t
		}
	}
	return l.tail
}

// Clone deep-copies the list; the copy shares no memory with the original.
func (l *List) Clone() *List {
	c := New()
	prev := c.head
	for t := l.head.next; t != l.tail; t = t.next {
		n := newTick(t.Index)
		n.LiquidityGross.Set(t.LiquidityGross)
		n.LiquidityNet.Set(t.LiquidityNet)
		n.FeeGrowthOutside0.Set(t.FeeGrowthOutside0)
		n.FeeGrowthOutside1.Set(t.FeeGrowthOutside1)
		n.RewardGrowthOutside.Set(t.RewardGrowthOutside)
		n.AirdropGrowthOutside0.Set(t.AirdropGrowthOutside0)
		n.AirdropGrowthOutside1.Set(t.AirdropGrowthOutside1)

		n.prev = prev
		n.next = c.tail
		prev.next = n
		c.tail.prev = n
		c.nodes[n.Index] = n
		prev = n
	}

	// Sentinels can carry liquidity too; copy their payload in place.
	for _, idx := range [2]int64{l.head.Index, l.tail.Index} {
		src, dst := l.nodes[idx], c.nodes[idx]
		dst.LiquidityGross.Set(src.LiquidityGross)
		dst.LiquidityNet.Set(src.LiquidityNet)
		dst.FeeGrowthOutside0.Set(src.FeeGrowthOutside0)
		dst.FeeGrowthOutside1.Set(src.FeeGrowthOutside1)
		dst.RewardGrowthOutside.Set(src.RewardGrowthOutside)
		dst.AirdropGrowthOutside0.Set(src.AirdropGrowthOutside0)
		dst.AirdropGrowthOutside1.Set(src.AirdropGrowthOutside1)
	}
	return c
}

// Ascend calls fn on every tick in ascending order, sentinels included,
// until fn returns false.
func (l *List) Ascend(fn func(*Tick) bool) {
	for t := l.head; t != nil; t = t.next {
		if !fn(t) {
			return
		}
	}
}
