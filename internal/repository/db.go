package repository

import (
	"gorm.io/gorm"
)

// pick 返回事务连接；tx 为 nil 时使用默认连接
// 事务内的所有读写都必须经由 tx，sqlite 单连接模式下混用默认连接会死锁
func pick(db, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return db
}
