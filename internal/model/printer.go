package model

import "github.com/google/uuid"

// Printer is a physical order printer reachable over the network.
// Address is "host[:port]"; the port defaults to 9100 (raw ESC/POS).
type Printer struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Name       string    `gorm:"not null"`
	Address    string    `gorm:"not null"`
	PrintWidth int       `gorm:"not null;default:32"`
	Emulation  string    `gorm:"type:varchar(20);not null;default:'escpos'"`
}

// Width returns the characters per line, defaulting to 58mm paper.
func (p Printer) Width() int {
	if p.PrintWidth <= 0 {
		return 32
	}
	return p.PrintWidth
}

// PrinterGroup routes items to one or more printers (e.g. "Kitchen", "Bar").
type PrinterGroup struct {
	ID   uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Name string    `gorm:"not null"`

	Printers []Printer `gorm:"many2many:printer_group_printers"`
}
