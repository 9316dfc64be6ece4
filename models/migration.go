package models

import (
	"log"

	"github.com/Evan-ql/shuadan/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&User{},
		&Settlement{},
		&Setting{},
		&SyncFailure{},
		&TransferRecord{}, &TransferSettlement{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
