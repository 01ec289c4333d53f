package repository

import (
	"context"
	"errors"

	"ewallet/internal/model"

	"gorm.io/gorm"
)

type PackageRepository struct {
	db *gorm.DB
}

func NewPackageRepository(db *gorm.DB) *PackageRepository {
	return &PackageRepository{db: db}
}

func (r *PackageRepository) conn(tx *gorm.DB) *gorm.DB {
	if tx == nil {
		return r.db
	}
	return tx
}

func (r *PackageRepository) GetByID(ctx context.Context, tx *gorm.DB, id int64) (*model.Package, error) {
	var pkg model.Package
	err := r.conn(tx).WithContext(ctx).First(&pkg, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPackageNotFound
		}
		return nil, err
	}
	return &pkg, nil
}

func (r *PackageRepository) ListActive(ctx context.Context) ([]*model.Package, error) {
	var packages []*model.Package
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("sort_order ASC").
		Order("id ASC").
		Find(&packages).Error
	return packages, err
}

// DecrementStock 扣库存，不限量的套餐直接通过
//
// 和钱包扣款一样用条件更新：quantity_available >= qty 才扣
func (r *PackageRepository) DecrementStock(ctx context.Context, tx *gorm.DB, id int64, qty int) error {
	db := r.conn(tx)
	result := db.WithContext(ctx).
		Model(&model.Package{}).
		Where("id = ? AND quantity_available IS NOT NULL AND quantity_available >= ?", id, qty).
		Update("quantity_available", gorm.Expr("quantity_available - ?", qty))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}

	pkg, err := r.GetByID(ctx, db, id)
	if err != nil {
		return err
	}
	if pkg.QuantityAvailable == nil {
		return nil
	}
	return ErrOutOfStock
}

// RestoreStock 取消、超时关单时归还库存
func (r *PackageRepository) RestoreStock(ctx context.Context, tx *gorm.DB, id int64, qty int) error {
	return r.conn(tx).WithContext(ctx).
		Model(&model.Package{}).
		Where("id = ? AND quantity_available IS NOT NULL", id).
		Update("quantity_available", gorm.Expr("quantity_available + ?", qty)).Error
}
