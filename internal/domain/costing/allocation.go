package costing

import (
	"cmp"
	"fmt"
	"slices"

	"lotcost/internal/core/id"
	"lotcost/internal/core/types"
	"lotcost/internal/domain/registers/lots"
)

// Take is the part of a request served by one lot.
type Take struct {
	LotID     id.ID          `json:"lotId"`
	Quantity  types.Quantity `json:"quantity"`
	CostPrice types.Money    `json:"costPrice"`
}

// Allocation is the plan for serving a quantity from a set of lots.
type Allocation struct {
	Method    Method         `json:"method"`
	Requested types.Quantity `json:"requested"`

	// Available is the total remaining across active lots.
	Available types.Quantity `json:"available"`

	// Takes are listed in depletion order.
	Takes []Take `json:"takes"`

	// Cost is the cost of Requested under Method. It is zero when the
	// allocation is short.
	Cost types.Money `json:"cost"`

	// AverageCost is totalValue/totalUnits over active lots (WAC only).
	AverageCost types.Money `json:"averageCost"`

	Shortfall types.Quantity `json:"shortfall"`
}

// Satisfied reports whether the lots cover the whole request.
func (a *Allocation) Satisfied() bool { return a.Shortfall.IsZero() }

// Allocate plans a greedy take of qty over the active lots in the method's
// depletion order. It does not mutate the lots.
func Allocate(list []*lots.Lot, qty types.Quantity, method Method) *Allocation {
	active := SortForDepletion(list, method.DepletionOrder())

	alloc := &Allocation{
		Method:      method,
		Requested:   qty,
		Cost:        types.ZeroMoney(),
		AverageCost: types.ZeroMoney(),
	}

	totalValue := types.ZeroMoney()
	need := qty
	lotCost := types.ZeroMoney()
	for _, l := range active {
		alloc.Available += l.Remaining
		totalValue = totalValue.Add(l.Value())

		if !need.IsPositive() {
			continue
		}
		take := types.MinQuantity(l.Remaining, need)
		alloc.Takes = append(alloc.Takes, Take{LotID: l.ID, Quantity: take, CostPrice: l.CostPrice})
		lotCost = lotCost.Add(types.CostOf(take, l.CostPrice))
		need -= take
	}

	if need.IsPositive() {
		alloc.Shortfall = need
		return alloc
	}

	switch method {
	case FIFO, LIFO:
		alloc.Cost = lotCost
	case WAC:
		if alloc.Available.IsPositive() {
			alloc.AverageCost = totalValue.Div(alloc.Available.Decimal())
		}
		alloc.Cost = alloc.AverageCost.Mul(qty.Decimal())
	default:
		panic(fmt.Sprintf("costing: allocate with %s", method))
	}

	return alloc
}

// SortForDepletion returns the lots with Remaining > 0 ordered by receivedAt
// (ascending for OldestFirst). Ties are broken by lot ID in the same direction.
func SortForDepletion(list []*lots.Lot, order Order) []*lots.Lot {
	active := make([]*lots.Lot, 0, len(list))
	for _, l := range list {
		if l.IsActive() {
			active = append(active, l)
		}
	}

	slices.SortFunc(active, func(a, b *lots.Lot) int {
		if order == NewestFirst {
			return compareReceived(b, a)
		}
		return compareReceived(a, b)
	})
	return active
}

func compareReceived(a, b *lots.Lot) int {
	return cmp.Or(a.ReceivedAt.Compare(b.ReceivedAt), id.Compare(a.ID, b.ID))
}

// sortLots orders lots oldest first in place.
func sortLots(list []*lots.Lot) {
	slices.SortFunc(list, compareReceived)
}
