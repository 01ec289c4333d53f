package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Package 商品套餐
type Package struct {
	ID                int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	Name              string          `gorm:"type:varchar(191);not null" json:"name"`
	Description       string          `gorm:"type:text" json:"description"`
	Price             decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"price"`
	Points            int             `gorm:"not null;default:0" json:"points"`
	QuantityAvailable *int            `json:"quantity_available"` // nil 表示不限量
	IsActive          bool            `gorm:"not null;default:true;index" json:"is_active"`
	SortOrder         int             `gorm:"not null;default:0" json:"sort_order"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Package) TableName() string {
	return "packages"
}

// HasStock 库存是否够 qty 件
func (p *Package) HasStock(qty int) bool {
	return p.QuantityAvailable == nil || *p.QuantityAvailable >= qty
}

func (p *Package) Snapshot() PackageSnapshot {
	return PackageSnapshot{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Points:      p.Points,
	}
}
