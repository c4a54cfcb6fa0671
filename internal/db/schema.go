package db

// Transfer is one outstanding outbound transfer. Parts holds the
// unacknowledged part numbers as comma separated ranges, e.g. "0-4,7".
type Transfer struct {
	ID          uint   `gorm:"primaryKey"`
	Destination string `gorm:"not null;uniqueIndex:idx_transfer_key"`
	FileName    string `gorm:"not null;uniqueIndex:idx_transfer_key"`
	SendTime    int64  `gorm:"not null"`
	Parts       string `gorm:"not null"`
}
