package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/crm_backend/config"
	"bitbucket.org/mmdatafocus/crm_backend/utils"
	"gorm.io/gorm"
)

// Interaction is an append-only log entry of one owner/account contact.
// Rows are never updated or deleted after creation.
type Interaction struct {
	ID              int                `gorm:"primary_key" json:"id"`
	BusinessId      string             `gorm:"index;not null" json:"business_id"`
	AccountId       int                `gorm:"index;not null" json:"account_id"`
	FollowUpTaskId  int                `gorm:"index" json:"follow_up_task_id"`
	OwnerId         int                `gorm:"index" json:"owner_id"`
	InteractionType InteractionType    `gorm:"type:enum('Call','Email','Meeting','Message','Visit','Other');not null" json:"interaction_type"`
	Channel         InteractionChannel `gorm:"type:enum('Phone','Email','InPerson','Sms','Viber','Other')" json:"channel"`
	Outcome         InteractionOutcome `gorm:"type:enum('Reached','NoAnswer','Callback','NotRelevant')" json:"outcome"`
	Notes           string             `gorm:"type:text;not null" json:"notes"`
	ContactedAt     time.Time          `gorm:"index;not null" json:"contacted_at"`
	CreatedByName   string             `gorm:"size:100" json:"created_by_name"`
	CreatedAt       time.Time          `gorm:"autoCreateTime" json:"created_at"`
}

type NewInteraction struct {
	AccountId       int                `json:"account_id" binding:"required"`
	InteractionType InteractionType    `json:"interaction_type" binding:"required"`
	Channel         InteractionChannel `json:"channel"`
	Outcome         InteractionOutcome `json:"outcome"`
	Notes           string             `json:"notes" binding:"required"`
	ContactedAt     *time.Time         `json:"contacted_at"`
}

func (i Interaction) GetBusinessId() string {
	return i.BusinessId
}

func (i Interaction) GetReferenceId() int {
	return i.AccountId
}

// notes must carry real content, not placeholder keystrokes
func validateInteractionNotes(notes string) error {
	if len(strings.TrimSpace(notes)) <= 2 {
		return ErrorInteractionNotesRequired
	}
	return nil
}

// insertInteraction writes one log row inside the caller's transaction.
func insertInteraction(ctx context.Context, tx *gorm.DB, interaction *Interaction) error {
	if err := validateInteractionNotes(interaction.Notes); err != nil {
		return err
	}
	if !interaction.InteractionType.IsValid() {
		return errors.New("invalid interaction type")
	}
	if interaction.ContactedAt.IsZero() {
		interaction.ContactedAt = time.Now()
	}
	if name, ok := utils.GetUserNameFromContext(ctx); ok && interaction.CreatedByName == "" {
		interaction.CreatedByName = name
	}
	return tx.Create(interaction).Error
}

// CreateInteraction records a standalone contact that is not tied to closing a
// follow-up task. The account's last contact date moves forward when this
// contact is newer.
func CreateInteraction(ctx context.Context, input *NewInteraction) (*Interaction, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	account, err := utils.FetchModel[Account](ctx, businessId, input.AccountId)
	if err != nil {
		return nil, errors.New("account not found")
	}

	contactedAt := time.Now()
	if input.ContactedAt != nil {
		contactedAt = *input.ContactedAt
	}
	interaction := Interaction{
		BusinessId:      businessId,
		AccountId:       input.AccountId,
		OwnerId:         account.AccountOwnerId,
		InteractionType: input.InteractionType,
		Channel:         input.Channel,
		Outcome:         input.Outcome,
		Notes:           input.Notes,
		ContactedAt:     contactedAt,
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := insertInteraction(ctx, tx, &interaction); err != nil {
			return err
		}
		if account.LastContactDate == nil || account.LastContactDate.Before(contactedAt) {
			if err := tx.Model(&Account{}).Where("id = ?", account.ID).
				Update("last_contact_date", contactedAt).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisItem[Account](account.ID); err != nil {
		return nil, err
	}
	return &interaction, nil
}

// GetInteractions lists an account's contact history, newest first.
func GetInteractions(ctx context.Context, accountId int) ([]*Interaction, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	var results []*Interaction
	err := db.WithContext(ctx).
		Where("business_id = ? AND account_id = ?", businessId, accountId).
		Order("contacted_at DESC, id DESC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
