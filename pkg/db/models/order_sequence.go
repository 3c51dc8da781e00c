package models

// OrderSequence backs the per-prefix, per-year order counter.
type OrderSequence struct {
	Prefix    string `gorm:"column:prefix;primaryKey"`
	Year      int    `gorm:"column:year;primaryKey;autoIncrement:false"`
	LastValue int64  `gorm:"column:last_value;not null;default:0"`
}

func (OrderSequence) TableName() string { return "order_sequences" }
