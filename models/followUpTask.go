package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/crm_backend/config"
	"bitbucket.org/mmdatafocus/crm_backend/utils"
	"github.com/bsm/redislock"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FollowUpTask is one scheduled contact obligation. PENDING tasks move to
// exactly one of COMPLETED or CANCELLED and never change again.
type FollowUpTask struct {
	ID            int                `gorm:"primary_key" json:"id"`
	BusinessId    string             `gorm:"index;not null" json:"business_id"`
	AccountId     int                `gorm:"index;not null" json:"account_id"`
	AssigneeId    int                `gorm:"index;not null" json:"assignee_id"`
	Status        FollowUpTaskStatus `gorm:"type:enum('PENDING','COMPLETED','CANCELLED');not null;default:'PENDING';index" json:"status"`
	DueDate       time.Time          `gorm:"index;not null" json:"due_date"`
	Title         string             `gorm:"size:255" json:"title"`
	Priority      CrmPriority        `gorm:"type:enum('NORMAL','HIGH_VALUE','CRITICAL');not null;default:'NORMAL'" json:"priority"`
	InteractionId int                `gorm:"index" json:"interaction_id"`
	CancelReason  string             `gorm:"size:255" json:"cancel_reason"`
	CompletedAt   *time.Time         `json:"completed_at"`
	CancelledAt   *time.Time         `json:"cancelled_at"`
	CreatedAt     time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewFollowUpTask struct {
	AccountId  int       `json:"account_id" binding:"required"`
	AssigneeId int       `json:"assignee_id" binding:"required"`
	DueDate    time.Time `json:"due_date" binding:"required"`
	Title      string    `json:"title"`
	// empty means inherit the account's priority
	Priority CrmPriority `json:"priority"`
}

// CompleteFollowUpTask input. NextFollowUpDate overrides the cadence
// computation when set; otherwise the account's cadence decides.
type CompleteFollowUpTaskInput struct {
	Notes            string             `json:"notes" binding:"required"`
	InteractionType  InteractionType    `json:"interaction_type" binding:"required"`
	Channel          InteractionChannel `json:"channel"`
	Outcome          InteractionOutcome `json:"outcome"`
	ContactedAt      *time.Time         `json:"contacted_at"`
	NextFollowUpDate *time.Time         `json:"next_follow_up_date"`
}

func (t FollowUpTask) GetBusinessId() string {
	return t.BusinessId
}

func (t FollowUpTask) GetId() int {
	return t.ID
}

func (t FollowUpTask) GetCursor() string {
	return t.DueDate.Format(time.RFC3339)
}

func validateAssignee(ctx context.Context, businessId string, assigneeId int) error {
	if assigneeId == 0 {
		return ErrorInvalidAssignee
	}
	owner, err := utils.FetchModel[Owner](ctx, businessId, assigneeId)
	if err != nil {
		return ErrorInvalidAssignee
	}
	if owner.IsActive != nil && !*owner.IsActive {
		return ErrorInvalidAssignee
	}
	return nil
}

func CreateFollowUpTask(ctx context.Context, input *NewFollowUpTask) (*FollowUpTask, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := validateAssignee(ctx, businessId, input.AssigneeId); err != nil {
		return nil, err
	}
	account, err := utils.FetchModel[Account](ctx, businessId, input.AccountId)
	if err != nil {
		return nil, errors.New("account not found")
	}
	if input.DueDate.IsZero() {
		return nil, errors.New("due date is required")
	}

	priority := input.Priority
	if priority == "" {
		priority = account.Priority
	}
	if !priority.IsValid() {
		return nil, errors.New("invalid priority")
	}

	task := FollowUpTask{
		BusinessId: businessId,
		AccountId:  input.AccountId,
		AssigneeId: input.AssigneeId,
		Status:     FollowUpTaskStatusPending,
		DueDate:    input.DueDate,
		Title:      input.Title,
		Priority:   priority,
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&task).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

// CompleteFollowUpTask closes a pending task: it logs the interaction, flips
// the task to COMPLETED and rolls the account's follow-up schedule forward,
// all in one transaction. A redis lock keeps concurrent closers out; the
// in-transaction status re-check is the authority when the lock is skipped.
func CompleteFollowUpTask(ctx context.Context, id int, input *CompleteFollowUpTaskInput) (*FollowUpTask, error) {
	logger := config.GetLogger()

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := validateInteractionNotes(input.Notes); err != nil {
		return nil, err
	}
	if !input.InteractionType.IsValid() {
		return nil, errors.New("invalid interaction type")
	}

	// Best-effort lock; Redis being down must not block completions.
	locker := config.GetRedisLock()
	if locker != nil {
		lock, err := locker.Obtain(ctx, fmt.Sprintf("followUpTask:%d", id), 30*time.Second, nil)
		if err == redislock.ErrNotObtained {
			return nil, ErrorTaskAlreadyTerminal
		} else if err != nil {
			config.LogError(logger, "models", "CompleteFollowUpTask", "Error obtaining redis lock", id, err)
		} else {
			defer func() {
				_ = lock.Release(ctx)
			}()
		}
	}

	business, err := GetBusinessById(ctx, businessId)
	if err != nil {
		return nil, err
	}

	completedAt := time.Now()
	contactedAt := completedAt
	if input.ContactedAt != nil {
		contactedAt = *input.ContactedAt
	}
	if input.NextFollowUpDate != nil && !input.NextFollowUpDate.After(contactedAt) {
		return nil, errors.New("next follow-up date must be after the contact date")
	}

	var task FollowUpTask
	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {

		// row lock + status re-check decides the winner
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("business_id = ?", businessId).
			First(&task, id).Error; err != nil {
			return utils.ErrorRecordNotFound
		}
		if task.Status.IsTerminal() {
			return ErrorTaskAlreadyTerminal
		}

		var account Account
		if err := tx.Where("business_id = ?", businessId).First(&account, task.AccountId).Error; err != nil {
			return errors.New("account not found")
		}

		interaction := Interaction{
			BusinessId:      businessId,
			AccountId:       task.AccountId,
			FollowUpTaskId:  task.ID,
			OwnerId:         task.AssigneeId,
			InteractionType: input.InteractionType,
			Channel:         input.Channel,
			Outcome:         input.Outcome,
			Notes:           input.Notes,
			ContactedAt:     contactedAt,
		}
		if err := insertInteraction(ctx, tx, &interaction); err != nil {
			return err
		}

		oldTask := task
		if err := tx.Model(&task).Updates(map[string]interface{}{
			"Status":        FollowUpTaskStatusCompleted,
			"InteractionId": interaction.ID,
			"CompletedAt":   completedAt,
		}).Error; err != nil {
			return err
		}
		task.Status = FollowUpTaskStatusCompleted
		task.InteractionId = interaction.ID
		task.CompletedAt = &completedAt

		// roll the schedule forward
		var nextDate *time.Time
		if input.NextFollowUpDate != nil {
			nextDate = input.NextFollowUpDate
		} else if account.CrmStatus.IsSchedulable() {
			computed, err := ComputeNextFollowUpDateWithDefault(
				contactedAt,
				account.FollowUpFrequencyMonths,
				account.FollowUpTimesPerYear,
				business.FallbackFollowUpMonths(),
			)
			if err != nil {
				return err
			}
			nextDate = &computed
		}
		accountUpdates := map[string]interface{}{
			"LastContactDate":  contactedAt,
			"NextFollowUpDate": nextDate,
		}
		if err := tx.Model(&Account{}).Where("id = ?", account.ID).
			Updates(accountUpdates).Error; err != nil {
			return err
		}

		return PublishCrmEvent(ctx, tx, businessId, completedAt, task.ID,
			CrmEventReferenceTypeFollowUpTask, &task, &oldTask, CrmEventActionUpdate)
	})
	if err != nil {
		return nil, err
	}

	if err := utils.RemoveRedisItem[Account](task.AccountId); err != nil {
		return nil, err
	}
	return &task, nil
}

// CancelFollowUpTask voids a pending task without contact. The account's
// schedule is left alone.
func CancelFollowUpTask(ctx context.Context, id int, reason string) (*FollowUpTask, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	cancelledAt := time.Now()
	var task FollowUpTask
	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("business_id = ?", businessId).
			First(&task, id).Error; err != nil {
			return utils.ErrorRecordNotFound
		}
		if task.Status.IsTerminal() {
			return ErrorTaskAlreadyTerminal
		}

		oldTask := task
		if err := tx.Model(&task).Updates(map[string]interface{}{
			"Status":       FollowUpTaskStatusCancelled,
			"CancelReason": reason,
			"CancelledAt":  cancelledAt,
		}).Error; err != nil {
			return err
		}
		task.Status = FollowUpTaskStatusCancelled
		task.CancelReason = reason
		task.CancelledAt = &cancelledAt

		return PublishCrmEvent(ctx, tx, businessId, cancelledAt, task.ID,
			CrmEventReferenceTypeFollowUpTask, &task, &oldTask, CrmEventActionUpdate)
	})
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func GetFollowUpTask(ctx context.Context, id int) (*FollowUpTask, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchModel[FollowUpTask](ctx, businessId, id)
}

type FollowUpTaskFilter struct {
	Status     *FollowUpTaskStatus
	AssigneeId *int
	AccountId  *int
	DueBefore  *time.Time
}

func GetFollowUpTasks(ctx context.Context, filter FollowUpTaskFilter) ([]*FollowUpTask, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	if filter.Status != nil {
		dbCtx = dbCtx.Where("status = ?", *filter.Status)
	}
	if filter.AssigneeId != nil {
		dbCtx = dbCtx.Where("assignee_id = ?", *filter.AssigneeId)
	}
	if filter.AccountId != nil {
		dbCtx = dbCtx.Where("account_id = ?", *filter.AccountId)
	}
	if filter.DueBefore != nil {
		dbCtx = dbCtx.Where("due_date < ?", *filter.DueBefore)
	}

	var results []*FollowUpTask
	if err := dbCtx.Order("due_date, id").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

type FollowUpTasksEdge Edge[FollowUpTask]
type FollowUpTasksConnection struct {
	PageInfo *PageInfo            `json:"pageInfo"`
	Edges    []*FollowUpTasksEdge `json:"edges"`
}

func PaginateFollowUpTasks(ctx context.Context, limit *int, after *string, status *FollowUpTaskStatus) (*FollowUpTasksConnection, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	if status != nil {
		dbCtx.Where("status = ?", *status)
	}
	edges, pageInfo, err := FetchPageCompositeCursor[FollowUpTask](dbCtx, *limit, after, "due_date", ">")
	if err != nil {
		return nil, err
	}
	var connection FollowUpTasksConnection
	connection.PageInfo = pageInfo
	for _, edge := range edges {
		taskEdge := FollowUpTasksEdge(edge)
		connection.Edges = append(connection.Edges, &taskEdge)
	}
	return &connection, err
}
