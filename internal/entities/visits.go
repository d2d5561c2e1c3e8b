package entities

import "time"

// Visit marks the first time an identity was seen.
type Visit struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	VisitorID string    `gorm:"column:visitante_id;uniqueIndex;size:128;not null" json:"visitante_id"`
	IP        string    `gorm:"column:ip;size:128" json:"-"` // keyed digest, never the raw address
	CreatedAt time.Time `json:"created_at"`
}

func (Visit) TableName() string { return "visitas" }

// VisitCounter is a single-row table (ID 1) maintained by a trigger on visitas.
type VisitCounter struct {
	ID    uint  `gorm:"primaryKey"`
	Total int64 `gorm:"not null;default:0"`
}

func (VisitCounter) TableName() string { return "contador_visitas" }
