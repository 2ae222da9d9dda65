package repository

import (
	"context"

	"estimator/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type WorkRepository interface {
	Create(ctx context.Context, work *model.Work) error
	Update(ctx context.Context, work *model.Work) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Work, error)
	FindByIDWithTree(ctx context.Context, id uuid.UUID) (*model.Work, error)
	ExistsByWorkNo(ctx context.Context, workNo string, excludeID *uuid.UUID) (bool, error)
	List(ctx context.Context, search string, page, limit int) ([]model.Work, int64, error)

	CreateSubWork(ctx context.Context, sub *model.SubWork) error
	UpdateSubWork(ctx context.Context, sub *model.SubWork) error
	DeleteSubWork(ctx context.Context, id uuid.UUID) error
	FindSubWork(ctx context.Context, id uuid.UUID) (*model.SubWork, error)
	ListSubWorks(ctx context.Context, workID uuid.UUID) ([]model.SubWork, error)
	NextSubWorkNo(ctx context.Context, workID uuid.UUID) (int, error)
	UpdateSubWorkTotal(ctx context.Context, id uuid.UUID) error
}

type workRepository struct {
	db *gorm.DB
}

func NewWorkRepository(db *gorm.DB) WorkRepository {
	return &workRepository{db: db}
}

func (r *workRepository) Create(ctx context.Context, work *model.Work) error {
	return GetDB(ctx, r.db).Create(work).Error
}

func (r *workRepository) Update(ctx context.Context, work *model.Work) error {
	return GetDB(ctx, r.db).Omit("SubWorks").Save(work).Error
}

func (r *workRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.Work{}).Error
}

func (r *workRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Work, error) {
	var work model.Work
	if err := GetDB(ctx, r.db).First(&work, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &work, nil
}

func (r *workRepository) FindByIDWithTree(ctx context.Context, id uuid.UUID) (*model.Work, error) {
	var work model.Work
	err := GetDB(ctx, r.db).
		Preload("SubWorks", func(db *gorm.DB) *gorm.DB { return db.Order("sub_work_no ASC") }).
		Preload("SubWorks.Items", func(db *gorm.DB) *gorm.DB { return db.Order("item_no ASC") }).
		Preload("SubWorks.Items.Rates", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		First(&work, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &work, nil
}

func (r *workRepository) ExistsByWorkNo(ctx context.Context, workNo string, excludeID *uuid.UUID) (bool, error) {
	var count int64
	// soft-deleted works keep their number
	query := GetDB(ctx, r.db).Unscoped().Model(&model.Work{}).Where("work_no = ?", workNo)
	if excludeID != nil {
		query = query.Where("id != ?", *excludeID)
	}
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *workRepository) List(ctx context.Context, search string, page, limit int) ([]model.Work, int64, error) {
	var works []model.Work
	var total int64

	query := GetDB(ctx, r.db).Model(&model.Work{})
	if search != "" {
		like := "%" + search + "%"
		query = query.Where("work_no LIKE ? OR name LIKE ?", like, like)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&works).Error; err != nil {
		return nil, 0, err
	}
	return works, total, nil
}

func (r *workRepository) CreateSubWork(ctx context.Context, sub *model.SubWork) error {
	return GetDB(ctx, r.db).Create(sub).Error
}

func (r *workRepository) UpdateSubWork(ctx context.Context, sub *model.SubWork) error {
	return GetDB(ctx, r.db).Omit("Items").Save(sub).Error
}

func (r *workRepository) DeleteSubWork(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.SubWork{}).Error
}

func (r *workRepository) FindSubWork(ctx context.Context, id uuid.UUID) (*model.SubWork, error) {
	var sub model.SubWork
	if err := GetDB(ctx, r.db).First(&sub, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *workRepository) ListSubWorks(ctx context.Context, workID uuid.UUID) ([]model.SubWork, error) {
	var subs []model.SubWork
	if err := GetDB(ctx, r.db).Where("work_id = ?", workID).Order("sub_work_no ASC").Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}

func (r *workRepository) NextSubWorkNo(ctx context.Context, workID uuid.UUID) (int, error) {
	return nextNumber(GetDB(ctx, r.db).Model(&model.SubWork{}).Where("work_id = ?", workID), "sub_work_no")
}

// UpdateSubWorkTotal re-sums the item amounts of a sub-work.
func (r *workRepository) UpdateSubWorkTotal(ctx context.Context, id uuid.UUID) error {
	db := GetDB(ctx, r.db)
	var items []model.LineItem
	if err := db.Select("total_amount").Where("sub_work_id = ?", id).Find(&items).Error; err != nil {
		return err
	}
	total := sumItemAmounts(items)
	return db.Model(&model.SubWork{}).Where("id = ?", id).Update("total_amount", total).Error
}
