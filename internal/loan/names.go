package loan

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"toolrental/internal/logger"
)

// nameResolver fills display names for one query. Lookups are memoized for
// the lifetime of the resolver and failures fall back to placeholders.
type nameResolver struct {
	catalog   CatalogClient
	customers CustomerClient
	groups    map[int64]string
	names     map[int64]string
}

func (s *service) newNameResolver() *nameResolver {
	return &nameResolver{
		catalog:   s.catalog,
		customers: s.customers,
		groups:    make(map[int64]string),
		names:     make(map[int64]string),
	}
}

func (r *nameResolver) customerName(ctx context.Context, id int64) string {
	if name, ok := r.names[id]; ok {
		return name
	}
	name := fmt.Sprintf("Customer #%d", id)
	if c, err := r.customers.GetCustomer(ctx, id); err != nil {
		logger.Ctx(ctx).Warn("Customer name lookup failed", zap.Int64("customer_id", id), zap.Error(err))
	} else {
		name = c.Name
	}
	r.names[id] = name
	return name
}

func (r *nameResolver) toolGroupName(ctx context.Context, id int64) string {
	if name, ok := r.groups[id]; ok {
		return name
	}
	name := fmt.Sprintf("Tool group #%d", id)
	if g, err := r.catalog.GetToolGroup(ctx, id); err != nil {
		logger.Ctx(ctx).Warn("Tool group name lookup failed", zap.Int64("tool_group_id", id), zap.Error(err))
	} else {
		name = g.Name
	}
	r.groups[id] = name
	return name
}

func (r *nameResolver) view(ctx context.Context, l *Loan, now time.Time) *LoanView {
	return &LoanView{
		Loan:            l,
		CustomerName:    r.customerName(ctx, l.CustomerID),
		ToolGroupName:   r.toolGroupName(ctx, l.ToolGroupID),
		EffectiveStatus: l.EffectiveStatus(now),
	}
}

func (r *nameResolver) views(ctx context.Context, loans []*Loan, now time.Time) []*LoanView {
	out := make([]*LoanView, 0, len(loans))
	for _, l := range loans {
		out = append(out, r.view(ctx, l, now))
	}
	return out
}
