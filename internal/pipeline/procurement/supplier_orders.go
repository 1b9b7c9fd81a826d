package procurement

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/andresuchdata/procurement-engine/internal/domain"
	"github.com/andresuchdata/procurement-engine/internal/masterdata"
)

// SupplierOrderResult is the output of supplier selection.
type SupplierOrderResult struct {
	Lines      []domain.SupplierOrderLine
	Exceptions []domain.Exception
}

// TotalCostByCurrency sums line costs per currency.
func (r SupplierOrderResult) TotalCostByCurrency() map[string]decimal.Decimal {
	totals := make(map[string]decimal.Decimal)
	for _, l := range r.Lines {
		totals[l.Currency] = totals[l.Currency].Add(l.TotalCost)
	}
	return totals
}

// SelectTerm picks the cheapest term; ties go to the shorter lead time, then
// the lower supplier code.
func SelectTerm(terms []domain.SupplierProductTerm) (domain.SupplierProductTerm, bool) {
	if len(terms) == 0 {
		return domain.SupplierProductTerm{}, false
	}
	best := terms[0]
	for _, t := range terms[1:] {
		if betterTerm(t, best) {
			best = t
		}
	}
	return best, true
}

func betterTerm(a, b domain.SupplierProductTerm) bool {
	if c := a.UnitPrice.Cmp(b.UnitPrice); c != 0 {
		return c < 0
	}
	if a.LeadTimeDays != b.LeadTimeDays {
		return a.LeadTimeDays < b.LeadTimeDays
	}
	return a.SupplierCode < b.SupplierCode
}

// OrderQuantity rounds max(net, moq) up to the next pack multiple, so the
// result is a pack multiple and at least both net and moq.
func OrderQuantity(net, moq, pack int64) int64 {
	if pack <= 0 {
		pack = 1
	}
	base := net
	if moq > base {
		base = moq
	}
	if base <= 0 {
		return 0
	}
	packs := (base + pack - 1) / pack
	return packs * pack
}

// FormatPOID returns PO-YYYYMMDD-NNNNN for a 1-based sequence.
func FormatPOID(businessDate time.Time, seq int) string {
	return fmt.Sprintf("PO-%s-%05d", businessDate.Format("20060102"), seq)
}

// GenerateSupplierOrders turns positive net requirements into purchase-order
// lines. Selection for each key runs on up to workers goroutines; results are
// written by index so the output does not depend on scheduling.
func GenerateSupplierOrders(ctx context.Context, md *masterdata.Snapshot, demand []domain.NetDemand, businessDate time.Time, workers int) (SupplierOrderResult, error) {
	date := domain.TruncateDate(businessDate)
	if workers < 1 {
		workers = 1
	}

	lines := make([]*domain.SupplierOrderLine, len(demand))
	misses := make([]*domain.Exception, len(demand))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range demand {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			row := demand[i]
			if row.NetRequirement <= 0 {
				return nil
			}
			term, ok := SelectTerm(md.ActiveTerms(row.SKUCode))
			if !ok {
				misses[i] = &domain.Exception{
					Stage:         domain.StageSupplierOrders,
					WarehouseCode: row.WarehouseCode,
					SKUCode:       row.SKUCode,
					Reason:        domain.ReasonUnfulfillableDemand,
					Detail:        fmt.Sprintf("no active supplier term for net requirement %d", row.NetRequirement),
				}
				return nil
			}
			lines[i] = buildOrderLine(md, row, term, date)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return SupplierOrderResult{}, err
	}

	var result SupplierOrderResult
	for i := range demand {
		if lines[i] != nil {
			result.Lines = append(result.Lines, *lines[i])
		}
		if misses[i] != nil {
			result.Exceptions = append(result.Exceptions, *misses[i])
		}
	}

	sort.SliceStable(result.Lines, func(i, j int) bool {
		a, b := result.Lines[i], result.Lines[j]
		if c := a.TotalCost.Cmp(b.TotalCost); c != 0 {
			return c > 0
		}
		return a.Key().Less(b.Key())
	})
	for i := range result.Lines {
		result.Lines[i].POID = FormatPOID(date, i+1)
	}
	domain.SortExceptions(result.Exceptions)

	return result, nil
}

func buildOrderLine(md *masterdata.Snapshot, row domain.NetDemand, term domain.SupplierProductTerm, date time.Time) *domain.SupplierOrderLine {
	qty := OrderQuantity(row.NetRequirement, term.MinOrderQty, term.PackSize)
	line := &domain.SupplierOrderLine{
		WarehouseCode:        row.WarehouseCode,
		SKUCode:              row.SKUCode,
		BusinessDate:         date,
		SupplierCode:         term.SupplierCode,
		ProductName:          row.ProductName,
		NetRequirement:       row.NetRequirement,
		OrderedQty:           qty,
		PackSize:             term.PackSize,
		MinOrderQty:          term.MinOrderQty,
		UnitPrice:            term.UnitPrice,
		Currency:             term.Currency,
		TotalCost:            term.UnitPrice.Mul(decimal.NewFromInt(qty)),
		LeadTimeDays:         term.LeadTimeDays,
		ExpectedDeliveryDate: date.AddDate(0, 0, term.LeadTimeDays),
		Status:               domain.POStatusPending,
	}
	if sup, ok := md.Supplier(term.SupplierCode); ok {
		line.SupplierName = sup.Name
	}
	return line
}
