package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/crm_backend/config"
	"bitbucket.org/mmdatafocus/crm_backend/utils"
	"github.com/google/uuid"
)

type Business struct {
	ID          uuid.UUID `gorm:"primary_key" json:"id"`
	Name        string    `gorm:"index;size:100;not null" json:"name" binding:"required"`
	ContactName string    `gorm:"size:100" json:"contact_name"`
	Email       string    `gorm:"size:255" json:"email"`
	Phone       string    `gorm:"size:20" json:"phone"`
	Address     string    `gorm:"type:text" json:"address"`
	Timezone    string    `gorm:"size:50" json:"timezone"`
	// 0 falls back to the deployment default (config.DefaultFollowUpFrequencyMonths).
	DefaultFollowUpMonths int       `gorm:"default:0" json:"default_follow_up_months"`
	UpcomingWindowDays    int       `gorm:"not null;default:7" json:"upcoming_window_days"`
	IsActive              *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt             time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewBusiness struct {
	Name                  string `json:"name" binding:"required"`
	ContactName           string `json:"contact_name"`
	Email                 string `json:"email" binding:"required"`
	Phone                 string `json:"phone"`
	Address               string `json:"address"`
	Timezone              string `json:"timezone"`
	DefaultFollowUpMonths int    `json:"default_follow_up_months"`
	UpcomingWindowDays    int    `json:"upcoming_window_days"`
}

func (b *Business) StoreRedis() error {
	return config.SetRedisObject("Business:"+b.ID.String(), b, 0)
}

func (input *NewBusiness) validate(ctx context.Context) error {
	if input.Email != "" && !utils.IsValidEmail(input.Email) {
		return errors.New("invalid email")
	}
	if input.DefaultFollowUpMonths < 0 {
		return errors.New("default follow up months cannot be negative")
	}
	if input.UpcomingWindowDays < 0 {
		return errors.New("upcoming window days cannot be negative")
	}
	return nil
}

func CreateBusiness(ctx context.Context, input *NewBusiness) (*Business, error) {
	// only admin have access
	if err := input.validate(ctx); err != nil {
		return nil, err
	}

	timezone := "Asia/Yangon"
	if input.Timezone != "" {
		timezone = input.Timezone
	}
	windowDays := input.UpcomingWindowDays
	if windowDays == 0 {
		windowDays = 7
	}

	business := Business{
		ID:                    uuid.New(),
		Name:                  input.Name,
		ContactName:           input.ContactName,
		Email:                 input.Email,
		Phone:                 input.Phone,
		Address:               input.Address,
		Timezone:              timezone,
		DefaultFollowUpMonths: input.DefaultFollowUpMonths,
		UpcomingWindowDays:    windowDays,
		IsActive:              utils.NewTrue(),
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&business).Error; err != nil {
		return nil, err
	}
	return &business, nil
}

func GetBusinessById(ctx context.Context, id string) (*Business, error) {

	var result Business

	exists, err := config.GetRedisObject("Business:"+id, &result)
	if err != nil {
		return nil, err
	}

	if !exists {
		db := config.GetDB()
		// db query
		err := db.WithContext(ctx).Where("id = ?", id).First(&result).Error
		if err != nil {
			return nil, utils.ErrorRecordNotFound
		}
		// caching
		if err := result.StoreRedis(); err != nil {
			return nil, err
		}
	}
	return &result, nil
}

func GetBusiness(ctx context.Context) (*Business, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return GetBusinessById(ctx, businessId)
}

// effective fallback cadence for the business (env default when unset)
func (b *Business) FallbackFollowUpMonths() int {
	if b != nil && b.DefaultFollowUpMonths > 0 {
		return b.DefaultFollowUpMonths
	}
	return config.DefaultFollowUpFrequencyMonths()
}
