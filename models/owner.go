package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/crm_backend/config"
	"bitbucket.org/mmdatafocus/crm_backend/utils"
)

// Owner is a team member accounts and follow-up tasks are assigned to.
type Owner struct {
	ID         int       `gorm:"primary_key" json:"id"`
	BusinessId string    `gorm:"index;not null" json:"business_id" binding:"required"`
	Name       string    `gorm:"size:100;not null" json:"name" binding:"required"`
	Email      string    `gorm:"size:100" json:"email"`
	Phone      string    `gorm:"size:20" json:"phone"`
	IsActive   *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewOwner struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

func (o Owner) GetBusinessId() string {
	return o.BusinessId
}

func (o Owner) GetId() int {
	return o.ID
}

func (o Owner) GetDefault(id int) any {
	return Owner{ID: id, Name: "Unknown Owner"}
}

// returns decoded cursor string
func (o Owner) GetCursor() string {
	return o.Name
}

// validate input for both create & update. (id = 0 for create)
func (input *NewOwner) validate(ctx context.Context, businessId string, id int) error {
	// name
	if err := utils.ValidateUnique[Owner](ctx, businessId, "name", input.Name, id); err != nil {
		return err
	}
	// email
	if len(input.Email) > 0 {
		if !utils.IsValidEmail(input.Email) {
			return errors.New("invalid email")
		}
		if err := utils.ValidateUnique[Owner](ctx, businessId, "email", input.Email, id); err != nil {
			return err
		}
	}
	// phone
	if len(input.Phone) > 0 {
		if err := utils.ValidatePhoneNumber(input.Phone, utils.CountryCode); err != nil {
			return errors.New("invalid phone number")
		}
	}
	return nil
}

func CreateOwner(ctx context.Context, input *NewOwner) (*Owner, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if err := input.validate(ctx, businessId, 0); err != nil {
		return nil, err
	}

	owner := Owner{
		BusinessId: businessId,
		Name:       input.Name,
		Email:      input.Email,
		Phone:      input.Phone,
	}

	db := config.GetDB()
	err := db.WithContext(ctx).Create(&owner).Error
	if err != nil {
		return nil, err
	}
	return &owner, nil
}

func UpdateOwner(ctx context.Context, id int, input *NewOwner) (*Owner, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if err := input.validate(ctx, businessId, id); err != nil {
		return nil, err
	}

	owner, err := utils.FetchModel[Owner](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(&owner).Updates(map[string]interface{}{
		"Name":  input.Name,
		"Email": input.Email,
		"Phone": input.Phone,
	}).Error
	if err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisItem[Owner](id); err != nil {
		return nil, err
	}
	return owner, nil
}

func GetOwner(ctx context.Context, id int) (*Owner, error) {

	return GetResource[Owner](ctx, id)
}

func GetOwners(ctx context.Context, name *string) ([]*Owner, error) {

	db := config.GetDB()
	var results []*Owner

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	if name != nil && len(*name) > 0 {
		dbCtx = dbCtx.Where("name LIKE ?", "%"+*name+"%")
	}
	err := dbCtx.Order("name").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func ToggleActiveOwner(ctx context.Context, id int, isActive bool) (*Owner, error) {
	// <owner>
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	return ToggleActiveModel[Owner](ctx, businessId, id, isActive)
}

// GetActiveOwnerIds returns the active-owner set used to validate assignees.
func GetActiveOwnerIds(ctx context.Context) (map[int]bool, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	var ids []int
	if err := db.WithContext(ctx).Model(&Owner{}).
		Where("business_id = ? AND is_active = true", businessId).
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	idSet := make(map[int]bool, len(ids))
	for _, id := range ids {
		idSet[id] = true
	}
	return idSet, nil
}

type OwnerTaskCount struct {
	OwnerId   int `json:"owner_id"`
	OpenTasks int `json:"open_tasks"`
}

// GetOwnerOpenTaskCounts returns pending-task counts per owner, used by
// load-aware dashboards. Owners with no open tasks are included with zero.
func GetOwnerOpenTaskCounts(ctx context.Context) ([]*OwnerTaskCount, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	var results []*OwnerTaskCount
	err := db.WithContext(ctx).Raw(`
		SELECT
			o.id AS owner_id,
			COUNT(t.id) AS open_tasks
		FROM
			owners o
			LEFT JOIN follow_up_tasks t ON t.assignee_id = o.id
				AND t.business_id = o.business_id
				AND t.status = 'PENDING'
		WHERE
			o.business_id = ?
		GROUP BY o.id
		ORDER BY o.id`, businessId).Scan(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
