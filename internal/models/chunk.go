package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ChunkRecord 分块向量记录
// 主键即分块ID，形如 {source}:{page}:{index}
type ChunkRecord struct {
	ID        string         `gorm:"primaryKey;size:512"` // 分块ID
	Source    string         `gorm:"not null;index"`      // 文档来源
	Page      int            `gorm:"not null"`            // 页码
	Text      string         `gorm:"type:text;not null"`  // 分块文本
	Vector    datatypes.JSON `gorm:"type:json;not null"`  // 向量，JSON数组
	Metadata  datatypes.JSON `gorm:"type:json"`           // 分块元数据
	CreatedAt time.Time      `gorm:"not null;index"`      // 写入时间
}

// BeforeCreate GORM的钩子函数，创建记录前自动设置时间
func (c *ChunkRecord) BeforeCreate(tx *gorm.DB) (err error) {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	return nil
}

// TableName 明确指定表名
func (ChunkRecord) TableName() string {
	return "chunks"
}
