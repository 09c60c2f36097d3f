package models

import (
	"log"

	"bitbucket.org/mmdatafocus/crm_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Business{},
		&Owner{},
		&Account{},
		&FollowUpTask{}, &Interaction{},
		&DeviceBatch{}, &DeviceUnit{},
		&CrmEventRecord{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
