package models

// OrderNumberCounter backs the date-bucketed monotonic order number sequence.
// Bucket is the YYYYMMDD day the counter belongs to.
type OrderNumberCounter struct {
	Bucket    string `gorm:"column:bucket;primaryKey"`
	LastValue int64  `gorm:"column:last_value;not null;default:0"`
}
