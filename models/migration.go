package models

import (
	"log"

	"github.com/mmlogistics/freight_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Client{},
		&DocumentSettings{},
		&Document{}, &DocumentLine{},
		&DocumentHistory{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
