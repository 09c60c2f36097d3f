package models_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/crm_backend/config"
	"bitbucket.org/mmdatafocus/crm_backend/models"
	"bitbucket.org/mmdatafocus/crm_backend/utils"
)

// Regression: completing a follow-up task must log the interaction, close the
// task, roll the account schedule forward and queue an outbox event in one
// transaction. A second completion must fail without any further effects.
func TestCompleteFollowUpTaskLifecycle(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := setupIntegrationEnv(t)

	biz, err := models.CreateBusiness(ctx, &models.NewBusiness{
		Name:     "Lifecycle Telecom",
		Email:    "owner@lifecycle.test",
		Timezone: "UTC",
	})
	if err != nil {
		t.Fatalf("CreateBusiness: %v", err)
	}
	businessID := biz.ID.String()
	ctx = utils.SetBusinessIdInContext(ctx, businessID)

	owner, err := models.CreateOwner(ctx, &models.NewOwner{Name: "Aung Aung"})
	if err != nil {
		t.Fatalf("CreateOwner: %v", err)
	}

	freq := 3
	lastContact := time.Date(2026, time.May, 31, 0, 0, 0, 0, time.UTC)
	account, err := models.CreateAccount(ctx, &models.NewAccount{
		Name:                    "Golden Subscriber",
		Phone:                   "+959777000111",
		CrmStatus:               models.CrmStatusActive,
		Priority:                models.CrmPriorityHighValue,
		FollowUpFrequencyMonths: &freq,
		LastContactDate:         &lastContact,
		AccountOwnerId:          owner.ID,
	})
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	if account.NextFollowUpDate == nil {
		t.Fatalf("expected next follow-up date seeded at creation")
	}

	task, err := models.CreateFollowUpTask(ctx, &models.NewFollowUpTask{
		AccountId:  account.ID,
		AssigneeId: owner.ID,
		DueDate:    *account.NextFollowUpDate,
	})
	if err != nil {
		t.Fatalf("CreateFollowUpTask: %v", err)
	}

	// Short notes must be rejected before any state changes.
	_, err = models.CompleteFollowUpTask(ctx, task.ID, &models.CompleteFollowUpTaskInput{
		Notes:           "ok",
		InteractionType: models.InteractionTypeCall,
	})
	if !errors.Is(err, models.ErrorInteractionNotesRequired) {
		t.Fatalf("expected ErrorInteractionNotesRequired for short notes, got %v", err)
	}
	fresh, err := models.GetFollowUpTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetFollowUpTask: %v", err)
	}
	if fresh.Status != models.FollowUpTaskStatusPending {
		t.Fatalf("rejected completion must leave the task pending, got %s", fresh.Status)
	}

	contactedAt := time.Date(2026, time.August, 31, 10, 0, 0, 0, time.UTC)
	completed, err := models.CompleteFollowUpTask(ctx, task.ID, &models.CompleteFollowUpTaskInput{
		Notes:           "Renewed the annual data bundle",
		InteractionType: models.InteractionTypeCall,
		Channel:         models.InteractionChannelPhone,
		Outcome:         models.InteractionOutcomeReached,
		ContactedAt:     &contactedAt,
	})
	if err != nil {
		t.Fatalf("CompleteFollowUpTask: %v", err)
	}
	if completed.Status != models.FollowUpTaskStatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", completed.Status)
	}
	if completed.InteractionId == 0 {
		t.Fatalf("expected interaction linked to the completed task")
	}

	// 3-month cadence from Aug 31 clamps to Nov 30.
	refreshed, err := models.GetAccount(ctx, account.ID)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if refreshed.LastContactDate == nil || !refreshed.LastContactDate.Equal(contactedAt) {
		t.Fatalf("expected last contact date %s, got %v", contactedAt, refreshed.LastContactDate)
	}
	wantNext := time.Date(2026, time.November, 30, 10, 0, 0, 0, time.UTC)
	if refreshed.NextFollowUpDate == nil || !refreshed.NextFollowUpDate.Equal(wantNext) {
		t.Fatalf("expected next follow-up %s, got %v", wantNext, refreshed.NextFollowUpDate)
	}

	// The completion queued exactly one outbox event for the task.
	db := config.GetDB()
	var eventCount int64
	if err := db.WithContext(ctx).Model(&models.CrmEventRecord{}).
		Where("business_id = ? AND reference_type = ? AND reference_id = ?",
			businessID, models.CrmEventReferenceTypeFollowUpTask, task.ID).
		Count(&eventCount).Error; err != nil {
		t.Fatalf("count outbox events: %v", err)
	}
	if eventCount != 1 {
		t.Fatalf("expected 1 outbox event for the task, got %d", eventCount)
	}

	// Completing again must report the terminal state and change nothing.
	_, err = models.CompleteFollowUpTask(ctx, task.ID, &models.CompleteFollowUpTaskInput{
		Notes:           "Second completion attempt",
		InteractionType: models.InteractionTypeCall,
	})
	if !errors.Is(err, models.ErrorTaskAlreadyTerminal) {
		t.Fatalf("expected ErrorTaskAlreadyTerminal, got %v", err)
	}
	var interactionCount int64
	if err := db.WithContext(ctx).Model(&models.Interaction{}).
		Where("follow_up_task_id = ?", task.ID).
		Count(&interactionCount).Error; err != nil {
		t.Fatalf("count interactions: %v", err)
	}
	if interactionCount != 1 {
		t.Fatalf("second completion must not log another interaction, got %d", interactionCount)
	}
}

// Regression: cancelling a pending task voids it without touching the
// account's schedule.
func TestCancelFollowUpTaskLeavesScheduleAlone(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := setupIntegrationEnv(t)

	biz, err := models.CreateBusiness(ctx, &models.NewBusiness{
		Name:  "Cancel Telecom",
		Email: "owner@cancel.test",
	})
	if err != nil {
		t.Fatalf("CreateBusiness: %v", err)
	}
	ctx = utils.SetBusinessIdInContext(ctx, biz.ID.String())

	owner, err := models.CreateOwner(ctx, &models.NewOwner{Name: "Su Su"})
	if err != nil {
		t.Fatalf("CreateOwner: %v", err)
	}

	freq := 1
	account, err := models.CreateAccount(ctx, &models.NewAccount{
		Name:                    "Quiet Subscriber",
		CrmStatus:               models.CrmStatusActive,
		Priority:                models.CrmPriorityNormal,
		FollowUpFrequencyMonths: &freq,
		AccountOwnerId:          owner.ID,
	})
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	scheduledAt := *account.NextFollowUpDate

	task, err := models.CreateFollowUpTask(ctx, &models.NewFollowUpTask{
		AccountId:  account.ID,
		AssigneeId: owner.ID,
		DueDate:    scheduledAt,
	})
	if err != nil {
		t.Fatalf("CreateFollowUpTask: %v", err)
	}

	cancelled, err := models.CancelFollowUpTask(ctx, task.ID, "wrong number on file")
	if err != nil {
		t.Fatalf("CancelFollowUpTask: %v", err)
	}
	if cancelled.Status != models.FollowUpTaskStatusCancelled {
		t.Fatalf("expected CANCELLED, got %s", cancelled.Status)
	}

	refreshed, err := models.GetAccount(ctx, account.ID)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if refreshed.NextFollowUpDate == nil || !refreshed.NextFollowUpDate.Equal(scheduledAt) {
		t.Fatalf("cancellation must not move the schedule, want %s got %v",
			scheduledAt, refreshed.NextFollowUpDate)
	}

	_, err = models.CancelFollowUpTask(ctx, task.ID, "again")
	if !errors.Is(err, models.ErrorTaskAlreadyTerminal) {
		t.Fatalf("expected ErrorTaskAlreadyTerminal, got %v", err)
	}
}

// Regression: a batch registers only when the identifiers exactly cover the
// declared quantity, and identifiers stay unique across batches.
func TestRegisterDeviceBatchReconciliation(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := setupIntegrationEnv(t)

	biz, err := models.CreateBusiness(ctx, &models.NewBusiness{
		Name:  "Device Telecom",
		Email: "owner@device.test",
	})
	if err != nil {
		t.Fatalf("CreateBusiness: %v", err)
	}
	ctx = utils.SetBusinessIdInContext(ctx, biz.ID.String())

	batch, err := models.RegisterDeviceBatch(ctx, &models.NewDeviceBatch{
		BatchNumber:      "B-2026-001",
		DeclaredQuantity: 2,
		SupplierName:     "Golden Mobile",
		ReceivedDate:     time.Now(),
		Imeis:            []string{"860000000000001", "860000000000002"},
	})
	if err != nil {
		t.Fatalf("RegisterDeviceBatch: %v", err)
	}

	fetched, err := models.GetDeviceBatch(ctx, batch.ID)
	if err != nil {
		t.Fatalf("GetDeviceBatch: %v", err)
	}
	if len(fetched.Units) != 2 {
		t.Fatalf("expected 2 units, got %d", len(fetched.Units))
	}
	for _, unit := range fetched.Units {
		if unit.Status != models.DeviceUnitStatusAvailable {
			t.Fatalf("expected AVAILABLE unit, got %s", unit.Status)
		}
	}

	_, err = models.RegisterDeviceBatch(ctx, &models.NewDeviceBatch{
		BatchNumber:      "B-2026-002",
		DeclaredQuantity: 3,
		Imeis:            []string{"860000000000003", "860000000000004"},
	})
	if !errors.Is(err, models.ErrorQuantityMismatch) {
		t.Fatalf("expected ErrorQuantityMismatch, got %v", err)
	}

	// Reuse of an already registered identifier fails the whole batch.
	_, err = models.RegisterDeviceBatch(ctx, &models.NewDeviceBatch{
		BatchNumber:      "B-2026-003",
		DeclaredQuantity: 2,
		Imeis:            []string{"860000000000001", "860000000000005"},
	})
	if !errors.Is(err, models.ErrorDuplicateUnitIdentifier) {
		t.Fatalf("expected ErrorDuplicateUnitIdentifier, got %v", err)
	}
	if _, err := models.GetDeviceUnitByImei(ctx, "860000000000005"); err == nil {
		t.Fatalf("failed batch must not leave units behind")
	}
}

// Regression: round-robin bulk assignment covers every unassigned account and
// never reassigns an owned one.
func TestBulkAssignRoundRobin(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := setupIntegrationEnv(t)

	biz, err := models.CreateBusiness(ctx, &models.NewBusiness{
		Name:  "Assign Telecom",
		Email: "owner@assign.test",
	})
	if err != nil {
		t.Fatalf("CreateBusiness: %v", err)
	}
	ctx = utils.SetBusinessIdInContext(ctx, biz.ID.String())

	var owners []*models.Owner
	for _, name := range []string{"Aung Aung", "Su Su"} {
		o, err := models.CreateOwner(ctx, &models.NewOwner{Name: name})
		if err != nil {
			t.Fatalf("CreateOwner(%s): %v", name, err)
		}
		owners = append(owners, o)
	}

	for i := 0; i < 5; i++ {
		if _, err := models.CreateAccount(ctx, &models.NewAccount{
			Name:      fmt.Sprintf("Subscriber %d", i+1),
			CrmStatus: models.CrmStatusActive,
			Priority:  models.CrmPriorityNormal,
		}); err != nil {
			t.Fatalf("CreateAccount(%d): %v", i, err)
		}
	}

	report, err := models.BulkAssignAccounts(ctx, &models.BulkAssignInput{
		Strategy: models.AssignmentStrategyRoundRobin,
	})
	if err != nil {
		t.Fatalf("BulkAssignAccounts: %v", err)
	}
	if report.Assigned != 5 || report.Skipped != 0 || report.Failed != 0 {
		t.Fatalf("expected 5 assigned, got %+v", report)
	}

	perOwner := map[int]int{}
	for _, a := range report.Applied {
		perOwner[a.OwnerId]++
	}
	if perOwner[owners[0].ID] != 3 || perOwner[owners[1].ID] != 2 {
		t.Fatalf("expected 3/2 split across owners, got %+v", perOwner)
	}

	// A second run finds nothing left to assign.
	_, err = models.BulkAssignAccounts(ctx, &models.BulkAssignInput{
		Strategy: models.AssignmentStrategyRoundRobin,
	})
	if !errors.Is(err, models.ErrorNoEligibleAccounts) {
		t.Fatalf("expected ErrorNoEligibleAccounts on second run, got %v", err)
	}
}

func setupIntegrationEnv(t *testing.T) context.Context {
	t.Helper()

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "crm_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	ctx := context.Background()
	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUserNameInContext(ctx, "Test")
	return ctx
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("crm-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "redis-cli", "ping")
		if err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("crm-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=crm_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	// Example: "127.0.0.1:49154\n"
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
