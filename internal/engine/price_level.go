package engine

import (
	"github.com/shopspring/decimal"

	"github.com/krxlab/stockcore/internal/domain"
)

// priceLevel holds every resting order at one exact price as a FIFO queue
// ordered by arrival. Only the head is ever consumed during matching,
// which is what preserves time priority inside the level.
type priceLevel struct {
	price  decimal.Decimal
	orders []*domain.Order
}

func (l *priceLevel) enqueue(o *domain.Order) {
	l.orders = append(l.orders, o)
}

func (l *priceLevel) head() *domain.Order {
	if len(l.orders) == 0 {
		return nil
	}
	return l.orders[0]
}

func (l *priceLevel) popHead() {
	if len(l.orders) > 0 {
		l.orders[0] = nil
		l.orders = l.orders[1:]
	}
}

func (l *priceLevel) empty() bool {
	return len(l.orders) == 0
}

func (l *priceLevel) totalQuantity() decimal.Decimal {
	total := decimal.Zero
	for _, o := range l.orders {
		total = total.Add(o.RemainingQuantity)
	}
	return total
}

// bookSide is one side of the book: price levels kept sorted best-first.
// Asks sort ascending (best = lowest), bids descending (best = highest).
// A level exists in the slice if and only if its queue is non-empty.
type bookSide struct {
	descending bool
	levels     []*priceLevel
}

func newBookSide(descending bool) *bookSide {
	return &bookSide{descending: descending}
}

// search returns the index at which price sorts into the side, and whether
// a level with that exact price already exists there.
func (s *bookSide) search(price decimal.Decimal) (int, bool) {
	lo, hi := 0, len(s.levels)
	for lo < hi {
		mid := (lo + hi) / 2
		cmp := s.levels[mid].price.Cmp(price)
		if s.descending {
			cmp = -cmp
		}
		switch {
		case cmp < 0:
			lo = mid + 1
		case cmp > 0:
			hi = mid
		default:
			return mid, true
		}
	}
	return lo, false
}

// best returns the best-priced level or nil when the side is empty.
func (s *bookSide) best() *priceLevel {
	if len(s.levels) == 0 {
		return nil
	}
	return s.levels[0]
}

// getOrCreate returns the level for price, inserting it in sorted position
// when absent.
func (s *bookSide) getOrCreate(price decimal.Decimal) *priceLevel {
	idx, ok := s.search(price)
	if ok {
		return s.levels[idx]
	}
	lvl := &priceLevel{price: price}
	s.levels = append(s.levels, nil)
	copy(s.levels[idx+1:], s.levels[idx:])
	s.levels[idx] = lvl
	return lvl
}

// removeBest drops the best level. Callers remove a level the moment its
// queue drains so the level-exists-iff-non-empty invariant holds.
func (s *bookSide) removeBest() {
	if len(s.levels) == 0 {
		return
	}
	s.levels[0] = nil
	s.levels = s.levels[1:]
}

func (s *bookSide) orderCount() int {
	n := 0
	for _, lvl := range s.levels {
		n += len(lvl.orders)
	}
	return n
}
