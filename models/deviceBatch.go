package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/crm_backend/config"
	"bitbucket.org/mmdatafocus/crm_backend/utils"
	"gorm.io/gorm"
)

// DeviceBatch is one received shipment of subscriber devices. A batch is only
// accepted when the registered unit identifiers exactly account for the
// declared quantity.
type DeviceBatch struct {
	ID               int           `gorm:"primary_key" json:"id"`
	BusinessId       string        `gorm:"index;not null" json:"business_id"`
	BatchNumber      string        `gorm:"size:100;not null" json:"batch_number"`
	DeclaredQuantity int           `gorm:"not null" json:"declared_quantity"`
	IsUnitTracked    *bool         `gorm:"not null;default:true" json:"is_unit_tracked"`
	SupplierName     string        `gorm:"size:100" json:"supplier_name"`
	ReceivedDate     time.Time     `gorm:"index" json:"received_date"`
	Notes            string        `gorm:"type:text" json:"notes"`
	Units            []*DeviceUnit `gorm:"foreignKey:BatchId" json:"units,omitempty"`
	CreatedAt        time.Time     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
}

// DeviceUnit is one physical device identified by IMEI.
type DeviceUnit struct {
	ID         int              `gorm:"primary_key" json:"id"`
	BusinessId string           `gorm:"index;not null" json:"business_id"`
	BatchId    int              `gorm:"index;not null" json:"batch_id"`
	Imei       string           `gorm:"size:32;not null;uniqueIndex:idx_device_units_imei" json:"imei"`
	Status     DeviceUnitStatus `gorm:"type:enum('AVAILABLE','ISSUED','ACTIVE','DAMAGED','RETURNED','INACTIVE');not null;default:'AVAILABLE';index" json:"status"`
	AccountId  int              `gorm:"index" json:"account_id"`
	CreatedAt  time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewDeviceBatch struct {
	BatchNumber      string    `json:"batch_number" binding:"required"`
	DeclaredQuantity int       `json:"declared_quantity" binding:"required"`
	IsUnitTracked    *bool     `json:"is_unit_tracked"`
	SupplierName     string    `json:"supplier_name"`
	ReceivedDate     time.Time `json:"received_date"`
	Notes            string    `json:"notes"`
	Imeis            []string  `json:"imeis"`
}

func (b DeviceBatch) GetBusinessId() string {
	return b.BusinessId
}

func (u DeviceUnit) GetBusinessId() string {
	return u.BusinessId
}

// reconcileUnits checks a batch's identifiers against its declared quantity.
// Unit-tracked batches must account for every declared unit exactly; batches
// tracked by aggregate quantity register no units and accept any count.
// Identifiers are trimmed; blanks count toward the quantity check but fail it.
func reconcileUnits(declaredQuantity int, unitTracked bool, imeis []string) ([]string, error) {
	if !unitTracked {
		if declaredQuantity < 0 {
			return nil, errors.New("declared quantity must not be negative")
		}
		return nil, nil
	}
	if declaredQuantity < 1 {
		return nil, errors.New("declared quantity must be positive")
	}
	if len(imeis) != declaredQuantity {
		return nil, fmt.Errorf("%w: declared %d, got %d", ErrorQuantityMismatch, declaredQuantity, len(imeis))
	}

	cleaned := make([]string, 0, len(imeis))
	seen := make(map[string]bool, len(imeis))
	for _, imei := range imeis {
		imei = strings.TrimSpace(imei)
		if imei == "" {
			return nil, errors.New("unit identifier must not be empty")
		}
		if seen[imei] {
			return nil, fmt.Errorf("%w: %s", ErrorDuplicateUnitIdentifier, imei)
		}
		seen[imei] = true
		cleaned = append(cleaned, imei)
	}
	return cleaned, nil
}

// RegisterDeviceBatch validates and stores a batch with all of its units in
// one transaction. Every unit starts AVAILABLE. Identifiers must also be new
// across the whole business, not just within the batch.
func RegisterDeviceBatch(ctx context.Context, input *NewDeviceBatch) (*DeviceBatch, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	unitTracked := input.IsUnitTracked == nil || *input.IsUnitTracked
	imeis, err := reconcileUnits(input.DeclaredQuantity, unitTracked, input.Imeis)
	if err != nil {
		return nil, err
	}
	if err := utils.ValidateUnique[DeviceBatch](ctx, businessId, "batch_number", input.BatchNumber, 0); err != nil {
		return nil, err
	}

	receivedDate := input.ReceivedDate
	if receivedDate.IsZero() {
		receivedDate = time.Now()
	}

	batch := DeviceBatch{
		BusinessId:       businessId,
		BatchNumber:      input.BatchNumber,
		DeclaredQuantity: input.DeclaredQuantity,
		IsUnitTracked:    &unitTracked,
		SupplierName:     input.SupplierName,
		ReceivedDate:     receivedDate,
		Notes:            input.Notes,
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {

		if len(imeis) > 0 {
			var taken []string
			if err := tx.Model(&DeviceUnit{}).
				Where("business_id = ? AND imei IN ?", businessId, imeis).
				Pluck("imei", &taken).Error; err != nil {
				return err
			}
			if len(taken) > 0 {
				return fmt.Errorf("%w: %s", ErrorDuplicateUnitIdentifier, taken[0])
			}
		}

		if err := tx.Create(&batch).Error; err != nil {
			return err
		}
		if len(imeis) > 0 {
			units := make([]*DeviceUnit, 0, len(imeis))
			for _, imei := range imeis {
				units = append(units, &DeviceUnit{
					BusinessId: businessId,
					BatchId:    batch.ID,
					Imei:       imei,
					Status:     DeviceUnitStatusAvailable,
				})
			}
			if err := tx.Create(&units).Error; err != nil {
				return err
			}
			batch.Units = units
		}

		return PublishCrmEvent(ctx, tx, businessId, time.Now(), batch.ID,
			CrmEventReferenceTypeDeviceBatch, &batch, nil, CrmEventActionCreate)
	})
	if err != nil {
		return nil, err
	}
	return &batch, nil
}

// UpdateDeviceUnitStatus moves one unit along the lifecycle. Illegal moves
// (for example RETURNED back to ISSUED) are rejected.
func UpdateDeviceUnitStatus(ctx context.Context, id int, status DeviceUnitStatus, accountId *int) (*DeviceUnit, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if !status.IsValid() {
		return nil, errors.New("invalid device unit status")
	}

	unit, err := utils.FetchModel[DeviceUnit](ctx, businessId, id)
	if err != nil {
		return nil, err
	}
	if !unit.Status.CanTransitionTo(status) {
		return nil, ErrorInvalidStatusTransition
	}

	updates := map[string]interface{}{"Status": status}
	if accountId != nil {
		if *accountId != 0 {
			if err := utils.ValidateResourceId[Account](ctx, businessId, *accountId); err != nil {
				return nil, errors.New("account not found")
			}
		}
		updates["AccountId"] = *accountId
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Model(&unit).Updates(updates).Error; err != nil {
		return nil, err
	}
	return unit, nil
}

func GetDeviceBatch(ctx context.Context, id int) (*DeviceBatch, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchModel[DeviceBatch](ctx, businessId, id, "Units")
}

func GetDeviceBatches(ctx context.Context) ([]*DeviceBatch, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	db := config.GetDB()
	var results []*DeviceBatch
	err := db.WithContext(ctx).
		Where("business_id = ?", businessId).
		Order("received_date DESC, id DESC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// GetDeviceUnitByImei looks one unit up by its identifier.
func GetDeviceUnitByImei(ctx context.Context, imei string) (*DeviceUnit, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	db := config.GetDB()
	var unit DeviceUnit
	err := db.WithContext(ctx).
		Where("business_id = ? AND imei = ?", businessId, strings.TrimSpace(imei)).
		First(&unit).Error
	if err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &unit, nil
}
