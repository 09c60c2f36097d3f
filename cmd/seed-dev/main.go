// seed-dev creates a demo business with owners, accounts and pending
// follow-up tasks for local development.
//
// Usage (from backend directory):
//   DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/seed-dev
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"bitbucket.org/mmdatafocus/crm_backend/config"
	"bitbucket.org/mmdatafocus/crm_backend/models"
	"bitbucket.org/mmdatafocus/crm_backend/utils"
)

const demoBusinessName = "Demo Telecom"

func main() {
	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}
	models.MigrateTable()

	var existing models.Business
	err := db.WithContext(ctx).Model(&models.Business{}).Where("name = ?", demoBusinessName).First(&existing).Error
	if err == nil {
		fmt.Println("demo business already seeded:", existing.ID.String())
		return
	}

	seedCtx := utils.SetUserIdInContext(ctx, 1)
	seedCtx = utils.SetUserNameInContext(seedCtx, "Seed")
	seedCtx = utils.SetSkipTenantScopeInContext(seedCtx, true)

	business, err := models.CreateBusiness(seedCtx, &models.NewBusiness{
		Name:        demoBusinessName,
		ContactName: "Demo Admin",
		Email:       "admin@demo.example",
		Timezone:    "Asia/Yangon",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create business: %v\n", err)
		os.Exit(1)
	}
	seedCtx = utils.SetBusinessIdInContext(seedCtx, business.ID.String())

	ownerIds := make([]int, 0, 3)
	for _, name := range []string{"Aung Aung", "Su Su", "Kyaw Kyaw"} {
		owner, err := models.CreateOwner(seedCtx, &models.NewOwner{Name: name})
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to create owner %s: %v\n", name, err)
			os.Exit(1)
		}
		ownerIds = append(ownerIds, owner.ID)
	}

	three := 3
	now := time.Now()
	lastMonth := now.AddDate(0, -1, 0)
	priorities := []models.CrmPriority{
		models.CrmPriorityCritical,
		models.CrmPriorityHighValue,
		models.CrmPriorityNormal,
		models.CrmPriorityNormal,
		models.CrmPriorityNormal,
	}
	for i, priority := range priorities {
		account, err := models.CreateAccount(seedCtx, &models.NewAccount{
			Name:                    fmt.Sprintf("Demo Account %d", i+1),
			Priority:                priority,
			FollowUpFrequencyMonths: &three,
			LastContactDate:         &lastMonth,
			AccountOwnerId:          ownerIds[i%len(ownerIds)],
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to create account: %v\n", err)
			os.Exit(1)
		}

		if _, err := models.CreateFollowUpTask(seedCtx, &models.NewFollowUpTask{
			AccountId:  account.ID,
			AssigneeId: account.AccountOwnerId,
			DueDate:    now.AddDate(0, 0, i-2),
			Title:      "seeded follow-up",
		}); err != nil {
			fmt.Fprintf(os.Stderr, "failed to create follow-up task: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Println("seeded demo business:", business.ID.String())
}
