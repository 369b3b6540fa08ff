package models

import "time"

type HardwareModel string

const (
	ModelNotebook       HardwareModel = "Notebook"
	ModelMFF            HardwareModel = "MFF"
	ModelAllInOne       HardwareModel = "AllInOne"
	ModelBackpack       HardwareModel = "Backpack"
	ModelDockingStation HardwareModel = "DockingStation"
	ModelMonitor        HardwareModel = "Monitor"
)

// HardwareModels is the display order used by forms and stock summaries.
var HardwareModels = []HardwareModel{
	ModelNotebook,
	ModelMFF,
	ModelAllInOne,
	ModelBackpack,
	ModelDockingStation,
	ModelMonitor,
}

func (m HardwareModel) Valid() bool {
	for _, known := range HardwareModels {
		if m == known {
			return true
		}
	}
	return false
}

// DisplayName is the human label shown in stock alerts.
func (m HardwareModel) DisplayName() string {
	switch m {
	case ModelAllInOne:
		return "All-in-One PC"
	case ModelDockingStation:
		return "Docking Station"
	case ModelMFF:
		return "Micro Form Factor"
	default:
		return string(m)
	}
}

type HardwareStatus string

const (
	StatusInStock   HardwareStatus = "IN_STOCK"
	StatusReserved  HardwareStatus = "RESERVED"
	StatusImaging   HardwareStatus = "IMAGING"
	StatusShipped   HardwareStatus = "SHIPPED"
	StatusCompleted HardwareStatus = "COMPLETED"
)

// HardwareStatuses is also the lifecycle order used when cycling a device.
var HardwareStatuses = []HardwareStatus{
	StatusInStock,
	StatusReserved,
	StatusImaging,
	StatusShipped,
	StatusCompleted,
}

func (s HardwareStatus) Valid() bool {
	for _, known := range HardwareStatuses {
		if s == known {
			return true
		}
	}
	return false
}

func (s HardwareStatus) DisplayName() string {
	switch s {
	case StatusInStock:
		return "In Stock"
	case StatusReserved:
		return "Reserved"
	case StatusImaging:
		return "Imaging"
	case StatusShipped:
		return "Shipped"
	case StatusCompleted:
		return "Completed"
	default:
		return string(s)
	}
}

type Hardware struct {
	ID uint `gorm:"primaryKey"`

	Hostname     string         `gorm:"size:255;not null"`
	SerialNumber string         `gorm:"size:255;not null;uniqueIndex"`
	Model        HardwareModel  `gorm:"type:varchar(50);not null"`
	Status       HardwareStatus `gorm:"type:varchar(50);not null;index"`
	IP           string         `gorm:"size:255"`
	MAC          string         `gorm:"size:255"`
	UUID         string         `gorm:"size:255"`
	Center       string         `gorm:"size:255"`
	Enduser      string         `gorm:"size:255"`
	Ticket       string         `gorm:"size:255"`
	POTicket     string         `gorm:"size:255"`
	Admin        string         `gorm:"size:255;not null"` // last editor
	Comment      string         `gorm:"size:1000"`
	Missing      bool           `gorm:"not null;default:false"`

	CreatedAt time.Time
	UpdatedAt time.Time
	ShippedAt *time.Time
}

func (Hardware) TableName() string { return "hardware" }

func (h *Hardware) EntityName() string { return "Hardware" }

func (h *Hardware) PrimaryKey() string { return formatID(h.ID) }

// TrackedFields leaves out created_at/updated_at: GORM maintains them and they
// would show up in every change set.
func (h *Hardware) TrackedFields() []Field {
	return []Field{
		{Name: "hostname", Value: h.Hostname},
		{Name: "serial_number", Value: h.SerialNumber},
		{Name: "model", Value: h.Model},
		{Name: "status", Value: h.Status},
		{Name: "ip", Value: h.IP},
		{Name: "mac", Value: h.MAC},
		{Name: "uuid", Value: h.UUID},
		{Name: "center", Value: h.Center},
		{Name: "enduser", Value: h.Enduser},
		{Name: "ticket", Value: h.Ticket},
		{Name: "po_ticket", Value: h.POTicket},
		{Name: "admin", Value: h.Admin},
		{Name: "comment", Value: h.Comment},
		{Name: "missing", Value: h.Missing},
		{Name: "shipped_at", Value: h.ShippedAt},
	}
}
