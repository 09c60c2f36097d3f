package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"bitbucket.org/mmdatafocus/crm_backend/config"
	"bitbucket.org/mmdatafocus/crm_backend/middlewares"
	"bitbucket.org/mmdatafocus/crm_backend/models"
	"bitbucket.org/mmdatafocus/crm_backend/utils"
	"github.com/gin-gonic/gin"
)

// statusForError maps domain sentinels to HTTP statuses so the REST surface
// stays consistent across handlers.
func statusForError(err error) int {
	switch {
	case errors.Is(err, utils.ErrorRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrorTaskAlreadyTerminal),
		errors.Is(err, models.ErrorInvalidStatusTransition),
		errors.Is(err, models.ErrorAccountNotUnassigned),
		errors.Is(err, models.ErrorDuplicateUnitIdentifier):
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

func abortWithError(c *gin.Context, err error) {
	c.JSON(statusForError(err), gin.H{"error": err.Error()})
}

func pathId(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, name string) (*int, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s", name)
	}
	return &v, nil
}

/* businesses */

func createBusinessHandler(c *gin.Context) {
	var input models.NewBusiness
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
		return
	}
	business, err := models.CreateBusiness(c.Request.Context(), &input)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, business)
}

func getBusinessHandler(c *gin.Context) {
	business, err := models.GetBusiness(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, business)
}

/* owners */

func createOwnerHandler(c *gin.Context) {
	var input models.NewOwner
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
		return
	}
	owner, err := models.CreateOwner(c.Request.Context(), &input)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, owner)
}

func updateOwnerHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	var input models.NewOwner
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
		return
	}
	owner, err := models.UpdateOwner(c.Request.Context(), id, &input)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, owner)
}

func getOwnerHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	owner, err := models.GetOwner(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, owner)
}

func listOwnersHandler(c *gin.Context) {
	var name *string
	if raw := c.Query("name"); raw != "" {
		name = &raw
	}
	owners, err := models.GetOwners(c.Request.Context(), name)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, owners)
}

func toggleOwnerHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	var req struct {
		IsActive *bool `json:"is_active" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "is_active is required"})
		return
	}
	owner, err := models.ToggleActiveOwner(c.Request.Context(), id, *req.IsActive)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, owner)
}

/* accounts */

func createAccountHandler(c *gin.Context) {
	var input models.NewAccount
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
		return
	}
	account, err := models.CreateAccount(c.Request.Context(), &input)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, account)
}

func updateAccountHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	var input models.NewAccount
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
		return
	}
	account, err := models.UpdateAccount(c.Request.Context(), id, &input)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

func updateAccountCrmConfigHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	var input models.NewAccountCrmConfig
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
		return
	}
	account, err := models.UpdateAccountCrmConfig(c.Request.Context(), id, &input)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

func reassignAccountHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	var req struct {
		OwnerId int `json:"owner_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	account, err := models.ReassignAccount(c.Request.Context(), id, req.OwnerId)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

func getAccountHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	account, err := models.GetAccount(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

func listAccountsHandler(c *gin.Context) {
	var filter models.AccountFilter
	if raw := c.Query("name"); raw != "" {
		filter.Name = &raw
	}
	if raw := c.Query("crm_status"); raw != "" {
		status := models.CrmStatus(raw)
		if !status.IsValid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid crm_status"})
			return
		}
		filter.CrmStatus = &status
	}
	if raw := c.Query("priority"); raw != "" {
		priority := models.CrmPriority(raw)
		if !priority.IsValid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid priority"})
			return
		}
		filter.Priority = &priority
	}
	ownerId, err := queryInt(c, "owner_id")
	if err != nil {
		abortWithError(c, err)
		return
	}
	filter.AccountOwnerId = ownerId
	filter.UnassignedOnly = c.Query("unassigned") == "true"

	accounts, err := models.GetAccounts(c.Request.Context(), filter)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, accounts)
}

func paginateAccountsHandler(c *gin.Context) {
	limit := 20
	if v, err := queryInt(c, "limit"); err != nil {
		abortWithError(c, err)
		return
	} else if v != nil && *v > 0 {
		limit = *v
	}
	var after *string
	if raw := c.Query("after"); raw != "" {
		after = &raw
	}
	var name *string
	if raw := c.Query("name"); raw != "" {
		name = &raw
	}
	connection, err := models.PaginateAccounts(c.Request.Context(), &limit, after, name)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, connection)
}

func paginateFollowUpTasksHandler(c *gin.Context) {
	limit := 20
	if v, err := queryInt(c, "limit"); err != nil {
		abortWithError(c, err)
		return
	} else if v != nil && *v > 0 {
		limit = *v
	}
	var after *string
	if raw := c.Query("after"); raw != "" {
		after = &raw
	}
	var status *models.FollowUpTaskStatus
	if raw := c.Query("status"); raw != "" {
		s := models.FollowUpTaskStatus(raw)
		if !s.IsValid() {
			abortWithError(c, errors.New("invalid task status"))
			return
		}
		status = &s
	}
	connection, err := models.PaginateFollowUpTasks(c.Request.Context(), &limit, after, status)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, connection)
}

func accountInteractionsHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	interactions, err := models.GetInteractions(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, interactions)
}

/* follow-up dashboard */

func followUpDashboardHandler(c *gin.Context) {
	windowDays, err := queryInt(c, "window_days")
	if err != nil {
		abortWithError(c, err)
		return
	}
	ownerId, err := queryInt(c, "owner_id")
	if err != nil {
		abortWithError(c, err)
		return
	}
	ctx := c.Request.Context()
	queues, err := models.GetFollowUpDashboard(ctx, windowDays, ownerId)
	if err != nil {
		abortWithError(c, err)
		return
	}
	ownerNames := loadOwnerNames(ctx, queues)
	c.JSON(http.StatusOK, gin.H{
		"overdue":   dashboardEntries(queues.Overdue, ownerNames),
		"due_today": dashboardEntries(queues.DueToday, ownerNames),
		"upcoming":  dashboardEntries(queues.Upcoming, ownerNames),
	})
}

type dashboardEntry struct {
	*models.Account
	OwnerName string `json:"owner_name,omitempty"`
}

// loadOwnerNames batches the owner lookup for all three queues through the
// request's dataloader.
func loadOwnerNames(ctx context.Context, queues *models.FollowUpQueues) map[int]string {
	seen := make(map[int]bool)
	var ids []int
	for _, bucket := range [][]*models.Account{queues.Overdue, queues.DueToday, queues.Upcoming} {
		for _, account := range bucket {
			if account.AccountOwnerId != 0 && !seen[account.AccountOwnerId] {
				seen[account.AccountOwnerId] = true
				ids = append(ids, account.AccountOwnerId)
			}
		}
	}
	names := make(map[int]string, len(ids))
	if len(ids) == 0 {
		return names
	}
	owners, _ := middlewares.GetOwners(ctx, ids)
	for _, owner := range owners {
		if owner != nil {
			names[owner.ID] = owner.Name
		}
	}
	return names
}

func dashboardEntries(accounts []*models.Account, ownerNames map[int]string) []dashboardEntry {
	entries := make([]dashboardEntry, 0, len(accounts))
	for _, account := range accounts {
		entries = append(entries, dashboardEntry{
			Account:   account,
			OwnerName: ownerNames[account.AccountOwnerId],
		})
	}
	return entries
}

func followUpDashboardExportHandler(c *gin.Context) {
	windowDays, err := queryInt(c, "window_days")
	if err != nil {
		abortWithError(c, err)
		return
	}
	ownerId, err := queryInt(c, "owner_id")
	if err != nil {
		abortWithError(c, err)
		return
	}
	f, err := models.ExportFollowUpQueueXLSX(c.Request.Context(), windowDays, ownerId)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename=follow-up-queue.xlsx")
	if err := f.Write(c.Writer); err != nil {
		config.LogError(config.GetLogger(), "handlers.go", "followUpDashboardExportHandler", "write xlsx", nil, err)
	}
}

/* follow-up tasks */

func createFollowUpTaskHandler(c *gin.Context) {
	var input models.NewFollowUpTask
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
		return
	}
	task, err := models.CreateFollowUpTask(c.Request.Context(), &input)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

func completeFollowUpTaskHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	var input models.CompleteFollowUpTaskInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
		return
	}
	ctx, span := tracer.Start(c.Request.Context(), "followUpTask.complete")
	defer span.End()
	task, err := models.CompleteFollowUpTask(ctx, id, &input)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func cancelFollowUpTaskHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	task, err := models.CancelFollowUpTask(c.Request.Context(), id, req.Reason)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func getFollowUpTaskHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	task, err := models.GetFollowUpTask(ctx, id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	account, err := middlewares.GetAccount(ctx, task.AccountId)
	if err != nil {
		abortWithError(c, err)
		return
	}
	assignee, err := middlewares.GetOwner(ctx, task.AssigneeId)
	if err != nil {
		abortWithError(c, err)
		return
	}
	interactions, err := middlewares.GetAccountInteractions(ctx, task.AccountId)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, followUpTaskDetail{
		FollowUpTask: task,
		Account:      account,
		Assignee:     assignee,
		Interactions: interactions,
	})
}

type followUpTaskDetail struct {
	*models.FollowUpTask
	Account      *models.Account       `json:"account"`
	Assignee     *models.Owner         `json:"assignee"`
	Interactions []*models.Interaction `json:"interactions"`
}

func listFollowUpTasksHandler(c *gin.Context) {
	var filter models.FollowUpTaskFilter
	if raw := c.Query("status"); raw != "" {
		status := models.FollowUpTaskStatus(raw)
		if !status.IsValid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
			return
		}
		filter.Status = &status
	}
	assigneeId, err := queryInt(c, "assignee_id")
	if err != nil {
		abortWithError(c, err)
		return
	}
	filter.AssigneeId = assigneeId
	accountId, err := queryInt(c, "account_id")
	if err != nil {
		abortWithError(c, err)
		return
	}
	filter.AccountId = accountId
	if raw := c.Query("due_before"); raw != "" {
		dueBefore, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid due_before"})
			return
		}
		filter.DueBefore = &dueBefore
	}

	tasks, err := models.GetFollowUpTasks(c.Request.Context(), filter)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, tasks)
}

/* interactions */

func createInteractionHandler(c *gin.Context) {
	var input models.NewInteraction
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
		return
	}
	interaction, err := models.CreateInteraction(c.Request.Context(), &input)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, interaction)
}

/* assignments */

func ownerWorkloadHandler(c *gin.Context) {
	counts, err := models.GetOwnerOpenTaskCounts(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, counts)
}

func bulkAssignHandler(c *gin.Context) {
	var input models.BulkAssignInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
		return
	}
	report, err := models.BulkAssignAccounts(c.Request.Context(), &input)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

/* device batches */

func registerDeviceBatchHandler(c *gin.Context) {
	var input models.NewDeviceBatch
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
		return
	}
	batch, err := models.RegisterDeviceBatch(c.Request.Context(), &input)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, batch)
}

func importDeviceBatchHandler(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	declaredQuantity, err := strconv.Atoi(c.PostForm("declared_quantity"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "declared_quantity is required"})
		return
	}
	input := models.NewDeviceBatch{
		BatchNumber:      c.PostForm("batch_number"),
		DeclaredQuantity: declaredQuantity,
		SupplierName:     c.PostForm("supplier_name"),
		Notes:            c.PostForm("notes"),
	}
	if input.BatchNumber == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "batch_number is required"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read file"})
		return
	}
	defer file.Close()

	batch, err := models.ImportDeviceBatchFromXlsx(c.Request.Context(), fileHeader.Filename, file, &input)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, batch)
}

func listDeviceBatchesHandler(c *gin.Context) {
	batches, err := models.GetDeviceBatches(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, batches)
}

func getDeviceBatchHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	batch, err := models.GetDeviceBatch(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, batch)
}

func updateDeviceUnitStatusHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	var req struct {
		Status    models.DeviceUnitStatus `json:"status" binding:"required"`
		AccountId *int                    `json:"account_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
		return
	}
	unit, err := models.UpdateDeviceUnitStatus(c.Request.Context(), id, req.Status, req.AccountId)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, unit)
}

func lookupDeviceUnitHandler(c *gin.Context) {
	imei := c.Query("imei")
	if imei == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "imei is required"})
		return
	}
	unit, err := models.GetDeviceUnitByImei(c.Request.Context(), imei)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, unit)
}

/* cadence preview */

type cadencePreviewRequest struct {
	ReferenceDate   time.Time `json:"reference_date" binding:"required"`
	FrequencyMonths *int      `json:"frequency_months"`
	TimesPerYear    *int      `json:"times_per_year"`
}

func cadencePreviewHandler(c *gin.Context) {
	var req cadencePreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
		return
	}
	next, err := models.ComputeNextFollowUpDateWithDefault(
		req.ReferenceDate, req.FrequencyMonths, req.TimesPerYear,
		config.DefaultFollowUpFrequencyMonths())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"next_follow_up_date": next})
}
