package model

// NonPartitionedModels AutoMigrate 管理的表（sms_logs 为分区表，由 database.Initializer 建表）
func NonPartitionedModels() []interface{} {
	return []interface{}{
		&User{},
		&Category{}, &Brand{}, &Product{}, &ProductImage{},
		&Cart{}, &CartItem{}, &WishlistItem{},
		&Order{}, &OrderItem{},
		&EMIPlan{}, &EMIApplication{}, &EMIInstallment{},
		&VendorProfile{},
		&ShippingZone{}, &ShippingMethod{}, &ShippingRate{},
		&SMSTemplate{},
		&Notification{},
		&PaymentTransaction{},
		&SiteSettings{},
	}
}

// AllModels 全部表，SQLite 测试直接 AutoMigrate
func AllModels() []interface{} {
	return append(NonPartitionedModels(), &SMSLog{})
}
