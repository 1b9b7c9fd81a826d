// Package masterdata builds the immutable per-run view of products,
// warehouses, suppliers, supplier terms and safety-stock policy.
package masterdata

import (
	"fmt"
	"sort"

	"github.com/andresuchdata/procurement-engine/internal/domain"
)

// Snapshot is read-only after Build and safe for concurrent use.
type Snapshot struct {
	products         map[string]domain.Product
	warehouses       map[string]domain.Warehouse
	suppliers        map[string]domain.Supplier
	terms            map[string][]domain.SupplierProductTerm
	safety           map[domain.StockKey]int64
	globalSafety     map[string]int64
	activeWarehouses []domain.Warehouse
	termCount        int
}

type termKey struct {
	supplier string
	sku      string
}

// Build indexes the raw records by natural key. Invalid terms and safety-stock
// targets are left out and reported as exceptions.
func Build(records domain.MasterDataRecords) (*Snapshot, []domain.Exception) {
	s := &Snapshot{
		products:     make(map[string]domain.Product, len(records.Products)),
		warehouses:   make(map[string]domain.Warehouse, len(records.Warehouses)),
		suppliers:    make(map[string]domain.Supplier, len(records.Suppliers)),
		terms:        make(map[string][]domain.SupplierProductTerm),
		safety:       make(map[domain.StockKey]int64),
		globalSafety: make(map[string]int64),
	}
	var exceptions []domain.Exception

	for _, p := range records.Products {
		if p.SKUCode == "" {
			continue
		}
		s.products[p.SKUCode] = p
	}
	for _, w := range records.Warehouses {
		if w.Code == "" {
			continue
		}
		s.warehouses[w.Code] = w
	}
	for _, sup := range records.Suppliers {
		if sup.Code == "" {
			continue
		}
		s.suppliers[sup.Code] = sup
	}

	for _, w := range s.warehouses {
		if w.Active {
			s.activeWarehouses = append(s.activeWarehouses, w)
		}
	}
	sort.Slice(s.activeWarehouses, func(i, j int) bool {
		return s.activeWarehouses[i].Code < s.activeWarehouses[j].Code
	})

	selected := make(map[termKey]domain.SupplierProductTerm)
	for _, t := range records.Terms {
		if ex, ok := s.validateTerm(t); !ok {
			exceptions = append(exceptions, ex)
			continue
		}
		k := termKey{supplier: t.SupplierCode, sku: t.SKUCode}
		if cur, ok := selected[k]; !ok || supersedes(t, cur) {
			selected[k] = t
		}
	}
	// A newer inactive row withdraws the pair, so activity is checked only
	// after the latest row per pair is known.
	for k, t := range selected {
		if !t.Active || !s.suppliers[t.SupplierCode].Active {
			continue
		}
		s.terms[k.sku] = append(s.terms[k.sku], t)
	}
	for sku := range s.terms {
		list := s.terms[sku]
		sort.Slice(list, func(i, j int) bool { return list[i].SupplierCode < list[j].SupplierCode })
		s.termCount += len(list)
	}

	for _, t := range records.SafetyStocks {
		if ex, ok := s.validateSafetyStock(t); !ok {
			exceptions = append(exceptions, ex)
			continue
		}
		if t.IsGlobal() {
			if cur, ok := s.globalSafety[t.SKUCode]; !ok || t.Quantity > cur {
				s.globalSafety[t.SKUCode] = t.Quantity
			}
			continue
		}
		k := domain.StockKey{WarehouseCode: t.WarehouseCode, SKUCode: t.SKUCode}
		if cur, ok := s.safety[k]; !ok || t.Quantity > cur {
			s.safety[k] = t.Quantity
		}
	}

	domain.SortExceptions(exceptions)
	return s, exceptions
}

// supersedes reports whether candidate should replace current for the same
// (supplier, SKU): newest update first, then lower price, then shorter lead.
func supersedes(candidate, current domain.SupplierProductTerm) bool {
	if !candidate.UpdatedAt.Equal(current.UpdatedAt) {
		return candidate.UpdatedAt.After(current.UpdatedAt)
	}
	if c := candidate.UnitPrice.Cmp(current.UnitPrice); c != 0 {
		return c < 0
	}
	return candidate.LeadTimeDays < current.LeadTimeDays
}

func (s *Snapshot) validateTerm(t domain.SupplierProductTerm) (domain.Exception, bool) {
	ex := domain.Exception{
		Stage:     domain.StageMasterData,
		SKUCode:   t.SKUCode,
		Reference: t.SupplierCode,
	}
	if _, ok := s.suppliers[t.SupplierCode]; !ok {
		ex.Reason = domain.ReasonUnknownSupplier
		ex.Detail = fmt.Sprintf("term references unknown supplier %q", t.SupplierCode)
		return ex, false
	}
	if _, ok := s.products[t.SKUCode]; !ok {
		ex.Reason = domain.ReasonUnknownSKU
		ex.Detail = fmt.Sprintf("term references unknown sku %q", t.SKUCode)
		return ex, false
	}

	ex.Reason = domain.ReasonInvalidTerm
	switch {
	case t.PackSize <= 0:
		ex.Detail = fmt.Sprintf("pack size must be positive, got %d", t.PackSize)
	case t.MinOrderQty < 0:
		ex.Detail = fmt.Sprintf("min order qty must not be negative, got %d", t.MinOrderQty)
	case t.LeadTimeDays < 0:
		ex.Detail = fmt.Sprintf("lead time must not be negative, got %d", t.LeadTimeDays)
	case t.UnitPrice.IsNegative():
		ex.Detail = fmt.Sprintf("unit price must not be negative, got %s", t.UnitPrice.String())
	default:
		return domain.Exception{}, true
	}
	return ex, false
}

func (s *Snapshot) validateSafetyStock(t domain.SafetyStockTarget) (domain.Exception, bool) {
	ex := domain.Exception{
		Stage:         domain.StageMasterData,
		WarehouseCode: t.WarehouseCode,
		SKUCode:       t.SKUCode,
		Reference:     "safety_stock",
	}
	if _, ok := s.products[t.SKUCode]; !ok {
		ex.Reason = domain.ReasonUnknownSKU
		ex.Detail = "safety stock target references unknown sku"
		return ex, false
	}
	if !t.IsGlobal() {
		if _, ok := s.warehouses[t.WarehouseCode]; !ok {
			ex.Reason = domain.ReasonUnknownWarehouse
			ex.Detail = "safety stock target references unknown warehouse"
			return ex, false
		}
	}
	if t.Quantity < 0 {
		ex.Reason = domain.ReasonInvalidSafetyStock
		ex.Detail = fmt.Sprintf("safety stock must not be negative, got %d", t.Quantity)
		return ex, false
	}
	return domain.Exception{}, true
}

func (s *Snapshot) Product(sku string) (domain.Product, bool) {
	p, ok := s.products[sku]
	return p, ok
}

func (s *Snapshot) Warehouse(code string) (domain.Warehouse, bool) {
	w, ok := s.warehouses[code]
	return w, ok
}

func (s *Snapshot) Supplier(code string) (domain.Supplier, bool) {
	sup, ok := s.suppliers[code]
	return sup, ok
}

// ActiveTerms returns the usable terms for a SKU ordered by supplier code.
// The returned slice must not be modified.
func (s *Snapshot) ActiveTerms(sku string) []domain.SupplierProductTerm {
	return s.terms[sku]
}

// EffectiveSafetyStock resolves the warehouse-specific target, falling back to
// the global target for the SKU, then zero.
func (s *Snapshot) EffectiveSafetyStock(warehouse, sku string) int64 {
	if q, ok := s.safety[domain.StockKey{WarehouseCode: warehouse, SKUCode: sku}]; ok {
		return q
	}
	return s.globalSafety[sku]
}

// ActiveWarehouses returns active warehouses sorted by code.
func (s *Snapshot) ActiveWarehouses() []domain.Warehouse {
	out := make([]domain.Warehouse, len(s.activeWarehouses))
	copy(out, s.activeWarehouses)
	return out
}

// SafetyStockKeys expands the safety-stock policy into concrete keys: every
// warehouse-specific target plus each global target crossed with every active
// warehouse. Only active products and active warehouses are returned.
func (s *Snapshot) SafetyStockKeys() []domain.StockKey {
	seen := make(map[domain.StockKey]struct{})
	for k := range s.safety {
		if s.isActiveKey(k) {
			seen[k] = struct{}{}
		}
	}
	for sku := range s.globalSafety {
		for _, w := range s.activeWarehouses {
			k := domain.StockKey{WarehouseCode: w.Code, SKUCode: sku}
			if s.isActiveKey(k) {
				seen[k] = struct{}{}
			}
		}
	}

	keys := make([]domain.StockKey, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}

func (s *Snapshot) isActiveKey(k domain.StockKey) bool {
	p, ok := s.products[k.SKUCode]
	if !ok || !p.Active {
		return false
	}
	w, ok := s.warehouses[k.WarehouseCode]
	return ok && w.Active
}

// Stats is a count of indexed entities, used for logging.
type Stats struct {
	Products   int
	Warehouses int
	Suppliers  int
	Terms      int
}

func (s *Snapshot) Stats() Stats {
	return Stats{
		Products:   len(s.products),
		Warehouses: len(s.warehouses),
		Suppliers:  len(s.suppliers),
		Terms:      s.termCount,
	}
}
