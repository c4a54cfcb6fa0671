package store

import (
	"context"
	"fmt"
	"time"

	"github.com/rudransh-shrivastava/peer-relay/internal/db"
	"gorm.io/gorm"
)

// SQLStore keeps the ledger in a SQLite table, one row per transfer.
type SQLStore struct {
	DB *gorm.DB
}

func NewSQLStore(gdb *gorm.DB) *SQLStore {
	return &SQLStore{DB: gdb}
}

func (s *SQLStore) Load(ctx context.Context) ([]Transfer, error) {
	var rows []db.Transfer
	if err := s.DB.WithContext(ctx).Order("destination, file_name").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("loading transfers: %w", err)
	}

	transfers := make([]Transfer, 0, len(rows))
	for _, row := range rows {
		parts, err := ParseParts(row.Parts)
		if err != nil {
			return nil, fmt.Errorf("transfer %s/%s: %w", row.Destination, row.FileName, err)
		}
		transfers = append(transfers, Transfer{
			Destination: row.Destination,
			FileName:    row.FileName,
			SendTime:    time.Unix(0, row.SendTime),
			Unacked:     parts,
		})
	}
	return transfers, nil
}

// Save replaces every row inside one transaction.
func (s *SQLStore) Save(ctx context.Context, transfers []Transfer) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&db.Transfer{}).Error; err != nil {
			return fmt.Errorf("clearing transfers: %w", err)
		}
		if len(transfers) == 0 {
			return nil
		}
		rows := make([]db.Transfer, 0, len(transfers))
		for _, t := range transfers {
			rows = append(rows, db.Transfer{
				Destination: t.Destination,
				FileName:    t.FileName,
				SendTime:    t.SendTime.UnixNano(),
				Parts:       FormatParts(t.Unacked),
			})
		}
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("inserting transfers: %w", err)
		}
		return nil
	})
}

func (s *SQLStore) Close() error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
