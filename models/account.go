package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/crm_backend/config"
	"bitbucket.org/mmdatafocus/crm_backend/utils"
	"github.com/shopspring/decimal"
)

// Account is a customer relationship / subscription record. The CRM engine
// only reads the cadence fields and the cached NextFollowUpDate; the cache is
// maintained by task completion and by crm-config updates.
type Account struct {
	ID                     int             `gorm:"primary_key" json:"id"`
	BusinessId             string          `gorm:"index;not null" json:"business_id" binding:"required"`
	Name                   string          `gorm:"size:100;not null" json:"name" binding:"required"`
	Email                  string          `gorm:"size:100" json:"email"`
	Phone                  string          `gorm:"size:20" json:"phone"`
	CrmStatus              CrmStatus       `gorm:"type:enum('ACTIVE','PAUSED','AT_RISK','CANCELLED');not null;default:'ACTIVE'" json:"crm_status"`
	Priority               CrmPriority     `gorm:"type:enum('NORMAL','HIGH_VALUE','CRITICAL');not null;default:'NORMAL'" json:"priority"`
	FollowUpFrequencyMonths *int           `json:"follow_up_frequency_months"`
	FollowUpTimesPerYear   *int            `json:"follow_up_times_per_year"`
	LastContactDate        *time.Time      `json:"last_contact_date"`
	NextFollowUpDate       *time.Time      `gorm:"index" json:"next_follow_up_date"`
	AccountOwnerId         int             `gorm:"index;default:0" json:"account_owner_id"`
	LifetimeValue          decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"lifetime_value"`
	Notes                  string          `gorm:"type:text" json:"notes"`
	IsActive               *bool           `gorm:"not null;default:true" json:"is_active"`
	// bumped on every owner/cadence write; stale-version updates are rejected
	Version   int       `gorm:"not null;default:0" json:"version"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewAccount struct {
	Name                    string          `json:"name" binding:"required"`
	Email                   string          `json:"email"`
	Phone                   string          `json:"phone"`
	CrmStatus               CrmStatus       `json:"crm_status"`
	Priority                CrmPriority     `json:"priority"`
	FollowUpFrequencyMonths *int            `json:"follow_up_frequency_months"`
	FollowUpTimesPerYear    *int            `json:"follow_up_times_per_year"`
	LastContactDate         *time.Time      `json:"last_contact_date"`
	AccountOwnerId          int             `json:"account_owner_id"`
	LifetimeValue           decimal.Decimal `json:"lifetime_value"`
	Notes                   string          `json:"notes"`
}

// NewAccountCrmConfig updates only the scheduling-relevant fields.
type NewAccountCrmConfig struct {
	CrmStatus               CrmStatus   `json:"crm_status" binding:"required"`
	Priority                CrmPriority `json:"priority" binding:"required"`
	FollowUpFrequencyMonths *int        `json:"follow_up_frequency_months"`
	FollowUpTimesPerYear    *int        `json:"follow_up_times_per_year"`
}

func (a Account) GetBusinessId() string {
	return a.BusinessId
}

func (a Account) GetId() int {
	return a.ID
}

func (a Account) GetDefault(id int) any {
	return Account{ID: id, Name: "Unknown Account"}
}

// returns decoded cursor string
func (a Account) GetCursor() string {
	return a.CreatedAt.String()
}

func validateCadenceInput(frequencyMonths *int, timesPerYear *int) error {
	if frequencyMonths != nil && *frequencyMonths < 1 {
		return ErrorInvalidCadenceConfig
	}
	if timesPerYear != nil && *timesPerYear < 1 {
		return ErrorInvalidCadenceConfig
	}
	return nil
}

func (input *NewAccount) validate(ctx context.Context, businessId string, id int) error {
	// validate unique name
	if err := utils.ValidateUnique[Account](ctx, businessId, "name", input.Name, id); err != nil {
		return err
	}
	// validate email
	if input.Email != "" {
		if !utils.IsValidEmail(input.Email) {
			return errors.New("invalid email")
		}
		if err := utils.ValidateUnique[Account](ctx, businessId, "email", input.Email, id); err != nil {
			return err
		}
	}
	// validate phone
	if input.Phone != "" {
		if err := utils.ValidatePhoneNumber(input.Phone, utils.CountryCode); err != nil {
			return errors.New("invalid phone number")
		}
	}
	// validate owner
	if input.AccountOwnerId != 0 {
		if err := utils.ValidateResourceId[Owner](ctx, businessId, input.AccountOwnerId); err != nil {
			return errors.New("owner not found")
		}
	}
	return validateCadenceInput(input.FollowUpFrequencyMonths, input.FollowUpTimesPerYear)
}

func CreateAccount(ctx context.Context, input *NewAccount) (*Account, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, 0); err != nil {
		return nil, err
	}

	business, err := GetBusinessById(ctx, businessId)
	if err != nil {
		return nil, err
	}

	crmStatus := input.CrmStatus
	if crmStatus == "" {
		crmStatus = CrmStatusActive
	}
	priority := input.Priority
	if priority == "" {
		priority = CrmPriorityNormal
	}

	account := Account{
		BusinessId:              businessId,
		Name:                    input.Name,
		Email:                   input.Email,
		Phone:                   input.Phone,
		CrmStatus:               crmStatus,
		Priority:                priority,
		FollowUpFrequencyMonths: input.FollowUpFrequencyMonths,
		FollowUpTimesPerYear:    input.FollowUpTimesPerYear,
		LastContactDate:         input.LastContactDate,
		AccountOwnerId:          input.AccountOwnerId,
		LifetimeValue:           input.LifetimeValue,
		Notes:                   input.Notes,
		IsActive:                utils.NewTrue(),
	}

	// seed the follow-up cache at creation (from last contact when known)
	if crmStatus.IsSchedulable() {
		reference := time.Now()
		if input.LastContactDate != nil {
			reference = *input.LastContactDate
		}
		nextDate, err := ComputeNextFollowUpDateWithDefault(
			reference,
			input.FollowUpFrequencyMonths,
			input.FollowUpTimesPerYear,
			business.FallbackFollowUpMonths(),
		)
		if err == nil {
			account.NextFollowUpDate = &nextDate
		} else if !errors.Is(err, ErrorInvalidCadenceConfig) {
			return nil, err
		}
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func UpdateAccount(ctx context.Context, id int, input *NewAccount) (*Account, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, id); err != nil {
		return nil, err
	}

	account, err := utils.FetchModel[Account](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(&account).Updates(map[string]interface{}{
		"Name":           input.Name,
		"Email":          input.Email,
		"Phone":          input.Phone,
		"AccountOwnerId": input.AccountOwnerId,
		"LifetimeValue":  input.LifetimeValue,
		"Notes":          input.Notes,
	}).Error
	if err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisItem[Account](id); err != nil {
		return nil, err
	}
	return account, nil
}

// UpdateAccountCrmConfig changes status/priority/cadence and recomputes the
// cached next follow-up date from the account's last contact (or from now when
// the account has never been contacted).
func UpdateAccountCrmConfig(ctx context.Context, id int, input *NewAccountCrmConfig) (*Account, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if err := validateCadenceInput(input.FollowUpFrequencyMonths, input.FollowUpTimesPerYear); err != nil {
		return nil, err
	}

	account, err := utils.FetchModel[Account](ctx, businessId, id)
	if err != nil {
		return nil, err
	}
	business, err := GetBusinessById(ctx, businessId)
	if err != nil {
		return nil, err
	}

	var nextDate *time.Time
	if input.CrmStatus.IsSchedulable() {
		reference := time.Now()
		if account.LastContactDate != nil {
			reference = *account.LastContactDate
		}
		computed, err := ComputeNextFollowUpDateWithDefault(
			reference,
			input.FollowUpFrequencyMonths,
			input.FollowUpTimesPerYear,
			business.FallbackFollowUpMonths(),
		)
		if err != nil {
			return nil, err
		}
		nextDate = &computed
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(&account).Updates(map[string]interface{}{
		"CrmStatus":               input.CrmStatus,
		"Priority":                input.Priority,
		"FollowUpFrequencyMonths": input.FollowUpFrequencyMonths,
		"FollowUpTimesPerYear":    input.FollowUpTimesPerYear,
		"NextFollowUpDate":        nextDate,
		"Version":                 account.Version + 1,
	}).Error
	if err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisItem[Account](id); err != nil {
		return nil, err
	}
	return utils.FetchModel[Account](ctx, businessId, id)
}

// ReassignAccount moves one account to a new owner (0 clears the owner).
func ReassignAccount(ctx context.Context, id int, ownerId int) (*Account, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if ownerId != 0 {
		if err := utils.ValidateResourceId[Owner](ctx, businessId, ownerId); err != nil {
			return nil, errors.New("owner not found")
		}
	}

	account, err := utils.FetchModel[Account](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(&account).Updates(map[string]interface{}{
		"AccountOwnerId": ownerId,
		"Version":        account.Version + 1,
	}).Error
	if err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisItem[Account](id); err != nil {
		return nil, err
	}
	return account, nil
}

func GetAccount(ctx context.Context, id int) (*Account, error) {

	return GetResource[Account](ctx, id)
}

type AccountFilter struct {
	Name           *string
	CrmStatus      *CrmStatus
	Priority       *CrmPriority
	AccountOwnerId *int
	UnassignedOnly bool
}

func GetAccounts(ctx context.Context, filter AccountFilter) ([]*Account, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	if filter.Name != nil && len(*filter.Name) > 0 {
		dbCtx = dbCtx.Where("name LIKE ?", "%"+*filter.Name+"%")
	}
	if filter.CrmStatus != nil {
		dbCtx = dbCtx.Where("crm_status = ?", *filter.CrmStatus)
	}
	if filter.Priority != nil {
		dbCtx = dbCtx.Where("priority = ?", *filter.Priority)
	}
	if filter.AccountOwnerId != nil {
		dbCtx = dbCtx.Where("account_owner_id = ?", *filter.AccountOwnerId)
	}
	if filter.UnassignedOnly {
		dbCtx = dbCtx.Where("account_owner_id = 0")
	}

	var results []*Account
	if err := dbCtx.Order("name").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

type AccountsEdge Edge[Account]
type AccountsConnection struct {
	PageInfo *PageInfo       `json:"pageInfo"`
	Edges    []*AccountsEdge `json:"edges"`
}

func PaginateAccounts(ctx context.Context, limit *int, after *string, name *string) (*AccountsConnection, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	if name != nil && *name != "" {
		dbCtx.Where("name LIKE ?", "%"+*name+"%")
	}
	edges, pageInfo, err := FetchPagePureCursor[Account](dbCtx, *limit, after, "created_at", ">")
	if err != nil {
		return nil, err
	}
	var connection AccountsConnection
	connection.PageInfo = pageInfo
	for _, edge := range edges {
		accountEdge := AccountsEdge(edge)
		connection.Edges = append(connection.Edges, &accountEdge)
	}
	return &connection, err
}
