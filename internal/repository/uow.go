package repository

import (
	"context"

	"gorm.io/gorm"
)

// UnitOfWork 工作单元：同一事务内的全部仓库
type UnitOfWork struct {
	db *gorm.DB

	Users           UserRepository
	Products        ProductRepository
	Categories      CategoryRepository
	Brands          BrandRepository
	Carts           CartRepository
	Wishlist        WishlistRepository
	Orders          OrderRepository
	EMIPlans        EMIPlanRepository
	EMIApplications EMIApplicationRepository
	EMIInstallments EMIInstallmentRepository
	Vendors         VendorRepository
	Shipping        ShippingRepository
	SMS             SMSRepository
	Notifications   NotificationRepository
	Payments        PaymentRepository
	Settings        SettingsRepository
}

// NewUnitOfWork 创建工作单元
func NewUnitOfWork(db *gorm.DB) *UnitOfWork {
	return &UnitOfWork{
		db:              db,
		Users:           NewUserRepository(db),
		Products:        NewProductRepository(db),
		Categories:      NewCategoryRepository(db),
		Brands:          NewBrandRepository(db),
		Carts:           NewCartRepository(db),
		Wishlist:        NewWishlistRepository(db),
		Orders:          NewOrderRepository(db),
		EMIPlans:        NewEMIPlanRepository(db),
		EMIApplications: NewEMIApplicationRepository(db),
		EMIInstallments: NewEMIInstallmentRepository(db),
		Vendors:         NewVendorRepository(db),
		Shipping:        NewShippingRepository(db),
		SMS:             NewSMSRepository(db),
		Notifications:   NewNotificationRepository(db),
		Payments:        NewPaymentRepository(db),
		Settings:        NewSettingsRepository(db),
	}
}

// Transaction 执行事务，fn 内的仓库全部绑定到同一个 tx
func (u *UnitOfWork) Transaction(ctx context.Context, fn func(uow *UnitOfWork) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewUnitOfWork(tx))
	})
}

// DB 底层连接（datafix 等需要原始查询的场景）
func (u *UnitOfWork) DB() *gorm.DB {
	return u.db
}
