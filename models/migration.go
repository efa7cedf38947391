package models

import (
	"log"

	"github.com/mmdatafocus/retail_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&UnitFamily{}, &MeasuringUnit{},
		&Product{}, &StandardInventory{}, &BatchLot{}, &BatchUnitPrice{}, &SerialUnit{},
		&InventoryLedgerEntry{},
		&Customer{}, &SalesInvoice{}, &SaleLine{},
		&DocumentSequence{}, &IdempotencyKey{},
		&OutboxMessage{},
		&ReconciliationReport{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
