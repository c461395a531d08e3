package entity

import "gorm.io/gorm"

// Models 所有维修业务表
func Models() []interface{} {
	return []interface{}{
		// 基础数据
		&User{},
		&Customer{},
		&MinerModel{},
		&WarrantyProfile{},
		&Part{},
		&PartTransaction{},

		// 工单
		&Job{},
		&RepairRecord{},
		&JobPart{},
		&JobActivity{},

		// 通知
		&Notification{},
	}
}

// AutoMigrate 自动迁移所有维修业务表
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}
