package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"phonebay/internal/model"
	"phonebay/internal/repository"
	"phonebay/pkg/cache"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ==================== 测试辅助 ====================

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err, "连接测试数据库失败")

	// :memory: 每个连接一个库，固定单连接
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(model.AllModels()...))
	return db
}

// fakeSMS 记录发送内容；templates 中存在的模板按模板渲染，否则返回 ErrNotFound
type fakeSMS struct {
	mu        sync.Mutex
	templates map[string]string
	sent      []fakeSent
	err       error
}

type fakeSent struct {
	Phone, Message, Template string
}

func newFakeSMS() *fakeSMS {
	return &fakeSMS{templates: map[string]string{}}
}

func (f *fakeSMS) Send(_ context.Context, phone, message, templateCode string) (*model.SMSLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, fakeSent{Phone: phone, Message: message, Template: templateCode})
	return &model.SMSLog{Phone: phone, Message: message, Status: model.SMSStatusSent}, nil
}

func (f *fakeSMS) SendTemplate(ctx context.Context, code, phone string, vars map[string]string) (*model.SMSLog, error) {
	f.mu.Lock()
	body, ok := f.templates[code]
	f.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: 短信模板 %s", ErrNotFound, code)
	}
	return f.Send(ctx, phone, RenderTemplate(body, vars), code)
}

func (f *fakeSMS) messages() []fakeSent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]fakeSent(nil), f.sent...)
}

// lastCode 最后一条短信中的 6 位数字
func (f *fakeSMS) lastCode(t *testing.T) string {
	t.Helper()
	msgs := f.messages()
	require.NotEmpty(t, msgs)
	for _, w := range strings.Fields(msgs[len(msgs)-1].Message) {
		w = strings.Trim(w, ".,")
		if len(w) == 6 && strings.Trim(w, "0123456789") == "" {
			return w
		}
	}
	t.Fatalf("短信中没有验证码: %q", msgs[len(msgs)-1].Message)
	return ""
}

// testEnv 组装好的服务
type testEnv struct {
	db       *gorm.DB
	uow      *repository.UnitOfWork
	cache    *cache.Memory
	sms      *fakeSMS
	settings *SettingsService
	notifier *NotificationService
	shipping *ShippingService
	emi      *EMIService
	vendors  *VendorService
	cart     *CartService
	orders   *OrderService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := setupTestDB(t)
	uow := repository.NewUnitOfWork(db)
	c := cache.NewMemory(time.Minute)
	sms := newFakeSMS()

	settings := NewSettingsService(uow.Settings, c)
	notifier := NewNotificationService(uow.Notifications, uow.Users, sms, settings)
	shipping := NewShippingService(uow.Shipping, settings, c)
	emi := NewEMIService(uow, settings, notifier)
	vendors := NewVendorService(uow, settings, notifier)
	orders, err := NewOrderService(uow, settings, shipping, emi, notifier)
	require.NoError(t, err)

	return &testEnv{
		db:       db,
		uow:      uow,
		cache:    c,
		sms:      sms,
		settings: settings,
		notifier: notifier,
		shipping: shipping,
		emi:      emi,
		vendors:  vendors,
		cart:     NewCartService(uow),
		orders:   orders,
	}
}

// ==================== 数据准备 ====================

func (e *testEnv) seedUser(t *testing.T, phone, role string) *model.User {
	t.Helper()
	u := &model.User{Name: "User " + phone, Phone: phone, PasswordHash: "x", Role: role, IsActive: true}
	require.NoError(t, e.db.Create(u).Error)
	return u
}

func (e *testEnv) seedCategory(t *testing.T, slug string) *model.Category {
	t.Helper()
	c := &model.Category{Name: slug, Slug: slug, IsActive: true}
	require.NoError(t, e.db.Create(c).Error)
	return c
}

func (e *testEnv) seedProduct(t *testing.T, slug string, price int64, stock int, emi bool, vendorID *int64) *model.Product {
	t.Helper()
	cat := e.seedCategory(t, "cat-"+slug)
	p := &model.Product{
		VendorID:     vendorID,
		CategoryID:   cat.ID,
		Name:         slug,
		Slug:         slug,
		SKU:          "SKU-" + slug,
		Price:        decimal.NewFromInt(price),
		Stock:        stock,
		Weight:       decimal.RequireFromString("0.5"),
		IsActive:     true,
		EMIAvailable: emi,
	}
	require.NoError(t, e.db.Create(p).Error)
	return p
}

// seedShipping Dhaka 区域 + 默认区域，各一个标准配送方式
func (e *testEnv) seedShipping(t *testing.T) (dhaka, outside *model.ShippingZone, method *model.ShippingMethod) {
	t.Helper()
	dhaka = &model.ShippingZone{Name: "Inside Dhaka", Cities: datatypes.JSONSlice[string]{"Dhaka", "Dhaka City"}, IsActive: true}
	outside = &model.ShippingZone{Name: "Outside Dhaka", Cities: datatypes.JSONSlice[string]{}, IsDefault: true, IsActive: true}
	method = &model.ShippingMethod{Name: "Standard", Code: "standard", EstimatedDaysMin: 1, EstimatedDaysMax: 3, IsActive: true}
	require.NoError(t, e.db.Create(dhaka).Error)
	require.NoError(t, e.db.Create(outside).Error)
	require.NoError(t, e.db.Create(method).Error)
	require.NoError(t, e.db.Create(&model.ShippingRate{ZoneID: dhaka.ID, MethodID: method.ID, RateType: model.RateTypeFlat, Amount: decimal.NewFromInt(60)}).Error)
	require.NoError(t, e.db.Create(&model.ShippingRate{ZoneID: outside.ID, MethodID: method.ID, RateType: model.RateTypeFlat, Amount: decimal.NewFromInt(120)}).Error)
	return dhaka, outside, method
}

func (e *testEnv) seedPlan(t *testing.T, months int, rate string) *model.EMIPlan {
	t.Helper()
	plan := &model.EMIPlan{
		Name:         fmt.Sprintf("%d months", months),
		BankName:     "City Bank",
		Months:       months,
		InterestRate: decimal.RequireFromString(rate),
		MinAmount:    decimal.NewFromInt(5000),
		IsActive:     true,
	}
	require.NoError(t, e.db.Create(plan).Error)
	return plan
}

func (e *testEnv) seedVendor(t *testing.T, user *model.User, rate int64) *model.VendorProfile {
	t.Helper()
	v := &model.VendorProfile{
		UserID:         user.ID,
		ShopName:       "Shop " + user.Phone,
		Slug:           "shop-" + user.Phone,
		CommissionRate: decimal.NewFromInt(rate),
		Status:         model.VendorStatusApproved,
	}
	require.NoError(t, e.db.Create(v).Error)
	return v
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// seedOrder 直接写入一笔待确认订单（不经过结算）
func (e *testEnv) seedOrder(t *testing.T, userID int64, total int64, method string) *model.Order {
	t.Helper()
	o := &model.Order{
		OrderNumber:   fmt.Sprintf("PBTEST%d%d", userID, time.Now().UnixNano()%1000000),
		UserID:        userID,
		Status:        model.OrderStatusPending,
		PaymentMethod: method,
		PaymentStatus: model.PaymentStatusUnpaid,
		Subtotal:      decimal.NewFromInt(total),
		ShippingCost:  decimal.Zero,
		Discount:      decimal.Zero,
		Total:         decimal.NewFromInt(total),
		ShippingName:  "Rahim",
		ShippingPhone: "8801712345678",
		ShippingCity:  "Dhaka",
	}
	require.NoError(t, e.db.Create(o).Error)
	return o
}
