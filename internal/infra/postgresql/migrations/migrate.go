package migrations

import (
	"github.com/cupidlink/mail-dispatcher/internal/repository"
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// Migrate applies the schema this service owns. The notifications, users,
// email_templates and smtp_profiles tables belong to the platform; only the
// delivery ledger and the scan index are created here.
func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		createDeliveryTrackingTable(),
		addNotificationsScanIndex(),
	})
	return m.Migrate()
}

func createDeliveryTrackingTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_email_delivery_tracking",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.TrackingRecordModel{}); err != nil {
				return err
			}
			return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_tracking_status_updated ON email_delivery_tracking (status, updated_at)`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.TrackingRecordModel{})
		},
	}
}

func addNotificationsScanIndex() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_add_notifications_scan_index",
		Migrate: func(tx *gorm.DB) error {
			return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_notifications_created_at ON notifications (created_at)`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Exec(`DROP INDEX IF EXISTS idx_notifications_created_at`).Error
		},
	}
}
