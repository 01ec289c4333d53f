package service

import (
	"context"
	"errors"
	"log"

	"ewallet/internal/model"
	"ewallet/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CartLine struct {
	PackageID int64           `json:"package_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	LineTotal decimal.Decimal `json:"line_total"`
	Points    int             `json:"points"`

	pkg *model.Package
}

type CartSummary struct {
	Lines     []CartLine      `json:"lines"`
	ItemCount int             `json:"item_count"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Tax       decimal.Decimal `json:"tax"`
	Total     decimal.Decimal `json:"total"`
	Points    int             `json:"points"`
}

func (s *CartSummary) IsEmpty() bool {
	return len(s.Lines) == 0
}

// CalculateTax 税额 = subtotal * rate / 100，保留两位
func CalculateTax(subtotal, rate decimal.Decimal) decimal.Decimal {
	return subtotal.Mul(rate).Div(hundred).Round(2)
}

type CartService struct {
	store       CartStore
	packageRepo *repository.PackageRepository
	settings    SettingsSource
}

func NewCartService(db *gorm.DB, store CartStore, settings SettingsSource) *CartService {
	return &CartService{
		store:       store,
		packageRepo: repository.NewPackageRepository(db),
		settings:    settings,
	}
}

// availablePackage 上架且库存足够
func (s *CartService) availablePackage(ctx context.Context, packageID int64, qty int) (*model.Package, error) {
	pkg, err := s.packageRepo.GetByID(ctx, nil, packageID)
	if err != nil {
		return nil, err
	}
	if !pkg.IsActive {
		return nil, ErrPackageUnavailable
	}
	if !pkg.HasStock(qty) {
		return nil, ErrOutOfStock
	}
	return pkg, nil
}

// Add 加入购物车，已存在的套餐累加数量
func (s *CartService) Add(ctx context.Context, userID, packageID int64, qty int) (*CartSummary, error) {
	if qty < 1 {
		return nil, ErrInvalidQuantity
	}
	items, err := s.store.Load(ctx, userID)
	if err != nil {
		return nil, err
	}

	idx := -1
	for i, item := range items {
		if item.PackageID == packageID {
			idx = i
			break
		}
	}
	newQty := qty
	if idx >= 0 {
		newQty += items[idx].Quantity
	}
	if _, err := s.availablePackage(ctx, packageID, newQty); err != nil {
		return nil, err
	}

	if idx >= 0 {
		items[idx].Quantity = newQty
	} else {
		items = append(items, CartItem{PackageID: packageID, Quantity: qty})
	}
	if err := s.store.Save(ctx, userID, items); err != nil {
		return nil, err
	}
	return s.Summary(ctx, userID)
}

// Update 修改数量，qty 为 0 时等同 Remove
func (s *CartService) Update(ctx context.Context, userID, packageID int64, qty int) (*CartSummary, error) {
	if qty < 0 {
		return nil, ErrInvalidQuantity
	}
	if qty == 0 {
		return s.Remove(ctx, userID, packageID)
	}
	items, err := s.store.Load(ctx, userID)
	if err != nil {
		return nil, err
	}

	found := false
	for i := range items {
		if items[i].PackageID == packageID {
			items[i].Quantity = qty
			found = true
		}
	}
	if !found {
		return nil, ErrPackageNotFound
	}
	if _, err := s.availablePackage(ctx, packageID, qty); err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, userID, items); err != nil {
		return nil, err
	}
	return s.Summary(ctx, userID)
}

func (s *CartService) Remove(ctx context.Context, userID, packageID int64) (*CartSummary, error) {
	items, err := s.store.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	kept := items[:0]
	for _, item := range items {
		if item.PackageID != packageID {
			kept = append(kept, item)
		}
	}
	if err := s.store.Save(ctx, userID, kept); err != nil {
		return nil, err
	}
	return s.Summary(ctx, userID)
}

func (s *CartService) Clear(ctx context.Context, userID int64) error {
	return s.store.Clear(ctx, userID)
}

// Summary 按当前价格计算购物车，已下架或删除的套餐不计入
func (s *CartService) Summary(ctx context.Context, userID int64) (*CartSummary, error) {
	settings, err := s.settings.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	items, err := s.store.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.price(ctx, nil, items, settings.TaxRate, false)
}

// price 计算明细和合计；strict 为 true 时遇到不可售的套餐直接报错（结算用）
func (s *CartService) price(ctx context.Context, tx *gorm.DB, items []CartItem, taxRate decimal.Decimal, strict bool) (*CartSummary, error) {
	summary := &CartSummary{Lines: []CartLine{}, Subtotal: decimal.Zero}
	for _, item := range items {
		pkg, err := s.packageRepo.GetByID(ctx, tx, item.PackageID)
		if err == nil && !pkg.IsActive {
			err = ErrPackageUnavailable
		}
		if err != nil {
			if !strict && (errors.Is(err, ErrPackageNotFound) || errors.Is(err, ErrPackageUnavailable)) {
				log.Printf("[CartService] 购物车中的套餐不可售，已跳过: packageID=%d", item.PackageID)
				continue
			}
			return nil, err
		}

		line := CartLine{
			PackageID: pkg.ID,
			Name:      pkg.Name,
			UnitPrice: pkg.Price,
			Quantity:  item.Quantity,
			LineTotal: pkg.Price.Mul(decimal.NewFromInt(int64(item.Quantity))),
			Points:    pkg.Points * item.Quantity,
			pkg:       pkg,
		}
		summary.Lines = append(summary.Lines, line)
		summary.ItemCount += item.Quantity
		summary.Subtotal = summary.Subtotal.Add(line.LineTotal)
		summary.Points += line.Points
	}

	summary.Tax = CalculateTax(summary.Subtotal, taxRate)
	summary.Total = summary.Subtotal.Add(summary.Tax)
	return summary, nil
}
