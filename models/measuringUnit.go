package models

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/retail_backend/config"
	"github.com/mmdatafocus/retail_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// UnitFamily groups units that can be converted into one another (count, mass, volume...).
type UnitFamily struct {
	ID             int       `gorm:"primary_key" json:"id"`
	OrganizationId string    `gorm:"size:64;index;not null" json:"organization_id"`
	Name           string    `gorm:"size:100;not null" json:"name" binding:"required"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// MeasuringUnit.MultiplierToBase is how many base units one of this unit holds.
type MeasuringUnit struct {
	ID               int             `gorm:"primary_key" json:"id"`
	OrganizationId   string          `gorm:"size:64;index;not null" json:"organization_id"`
	FamilyId         int             `gorm:"index;not null" json:"family_id"`
	Name             string          `gorm:"size:100;not null" json:"name"`
	Abbreviation     string          `gorm:"size:20" json:"abbreviation"`
	MultiplierToBase decimal.Decimal `gorm:"type:decimal(20,6);not null" json:"multiplier_to_base"`
	IsBase           *bool           `gorm:"not null;default:false" json:"is_base"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewUnitFamily struct {
	Name string `json:"name" binding:"required,max=100"`
}

type NewMeasuringUnit struct {
	FamilyId         int             `json:"family_id" binding:"required"`
	Name             string          `json:"name" binding:"required,max=100"`
	Abbreviation     string          `json:"abbreviation" binding:"max=20"`
	MultiplierToBase decimal.Decimal `json:"multiplier_to_base"`
	IsBase           bool            `json:"is_base"`
}

// UnitLookup resolves unit master data. A missing unit is (nil, nil).
type UnitLookup interface {
	LookupUnit(ctx context.Context, id int) (*MeasuringUnit, error)
}

// ConvertToBase expresses qty of fromUnitId in baseUnitId.
func ConvertToBase(ctx context.Context, lookup UnitLookup, qty decimal.Decimal, fromUnitId int, baseUnitId int) (decimal.Decimal, error) {
	if !qty.IsPositive() {
		return decimal.Zero, ErrInvalidQuantity
	}
	if fromUnitId == baseUnitId {
		return qty, nil
	}
	from, err := lookup.LookupUnit(ctx, fromUnitId)
	if err != nil {
		return decimal.Zero, err
	}
	if from == nil {
		return decimal.Zero, ErrInvalidUnit.about("MeasuringUnit", fromUnitId)
	}
	base, err := lookup.LookupUnit(ctx, baseUnitId)
	if err != nil {
		return decimal.Zero, err
	}
	if base == nil {
		return decimal.Zero, ErrInvalidUnit.about("MeasuringUnit", baseUnitId)
	}
	if from.FamilyId != base.FamilyId {
		return decimal.Zero, ErrIncompatibleUnits.withMessage("unit %s cannot be converted to %s", from.Name, base.Name)
	}
	return qty.Mul(from.MultiplierToBase), nil
}

// unitMultiplier is 1 for a nil unit (the base unit itself).
func unitMultiplier(u *MeasuringUnit) decimal.Decimal {
	if u == nil || !u.MultiplierToBase.IsPositive() {
		return decimal.NewFromInt(1)
	}
	return u.MultiplierToBase
}

type dbUnitLookup struct {
	db             *gorm.DB
	organizationId string
}

// NewUnitLookup reads units of one organization, through the redis cache.
func NewUnitLookup(db *gorm.DB, organizationId string) UnitLookup {
	return &dbUnitLookup{db: db, organizationId: organizationId}
}

func (l *dbUnitLookup) LookupUnit(ctx context.Context, id int) (*MeasuringUnit, error) {
	if id <= 0 {
		return nil, nil
	}
	cached, err := utils.RetrieveRedis[MeasuringUnit](id)
	if err != nil {
		config.LogError(config.GetLogger(), "measuringUnit.go", "LookupUnit", "RetrieveRedis", id, err)
	}
	if cached != nil && cached.OrganizationId == l.organizationId {
		return cached, nil
	}

	var unit MeasuringUnit
	err = l.db.WithContext(ctx).
		Where("organization_id = ? AND id = ?", l.organizationId, id).
		First(&unit).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if err := utils.StoreRedis[MeasuringUnit](&unit, unit.ID); err != nil {
		config.LogError(config.GetLogger(), "measuringUnit.go", "LookupUnit", "StoreRedis", id, err)
	}
	return &unit, nil
}

func CreateUnitFamily(ctx context.Context, input *NewUnitFamily) (*UnitFamily, error) {
	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}
	if err := utils.Validate.Struct(input); err != nil {
		return nil, NewValidationError(err)
	}
	if err := utils.ValidateUnique[UnitFamily](ctx, organizationId, "name", input.Name, 0); err != nil {
		return nil, validationMessage("name", err.Error())
	}

	family := UnitFamily{
		OrganizationId: organizationId,
		Name:           input.Name,
	}
	if err := config.GetDB().WithContext(ctx).Create(&family).Error; err != nil {
		config.LogError(config.GetLogger(), "measuringUnit.go", "CreateUnitFamily", "Create", input, err)
		return nil, err
	}
	return &family, nil
}

func (input *NewMeasuringUnit) validate(ctx context.Context, organizationId string) error {
	if err := utils.Validate.Struct(input); err != nil {
		return NewValidationError(err)
	}
	if err := utils.ValidateResourceId[UnitFamily](ctx, organizationId, input.FamilyId); err != nil {
		return validationMessage("family_id", "unit family not found")
	}
	if input.IsBase {
		if !input.MultiplierToBase.IsZero() && !input.MultiplierToBase.Equal(decimal.NewFromInt(1)) {
			return validationMessage("multiplier_to_base", "base unit multiplier must be 1")
		}
		count, err := utils.ResourceCountWhere[MeasuringUnit](ctx, organizationId, "family_id = ? AND is_base = ?", input.FamilyId, true)
		if err != nil {
			return err
		}
		if count > 0 {
			return validationMessage("is_base", "unit family already has a base unit")
		}
	} else if !input.MultiplierToBase.IsPositive() {
		return validationMessage("multiplier_to_base", "multiplier must be greater than zero")
	}
	return nil
}

func CreateMeasuringUnit(ctx context.Context, input *NewMeasuringUnit) (*MeasuringUnit, error) {
	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}
	if err := input.validate(ctx, organizationId); err != nil {
		return nil, err
	}

	multiplier := input.MultiplierToBase
	if input.IsBase {
		multiplier = decimal.NewFromInt(1)
	}
	unit := MeasuringUnit{
		OrganizationId:   organizationId,
		FamilyId:         input.FamilyId,
		Name:             input.Name,
		Abbreviation:     input.Abbreviation,
		MultiplierToBase: multiplier,
		IsBase:           &input.IsBase,
	}
	if err := config.GetDB().WithContext(ctx).Create(&unit).Error; err != nil {
		config.LogError(config.GetLogger(), "measuringUnit.go", "CreateMeasuringUnit", "Create", input, err)
		return nil, err
	}
	return &unit, nil
}

func ListMeasuringUnits(ctx context.Context) ([]*MeasuringUnit, error) {
	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}
	return utils.FetchAllModels[MeasuringUnit](ctx, organizationId)
}
