package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rentledger/internal/tenant/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const tenantColumns = `id, unit_id, full_name, email, phone, id_number, deposit,
	lease_start_date, lease_end_date, credit_balance, created_at, updated_at`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, tenant *domain.Tenant) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO tenants (`+tenantColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tenant.ID,
		tenant.UnitID,
		tenant.FullName,
		tenant.Email,
		tenant.Phone,
		tenant.IDNumber,
		tenant.Deposit,
		tenant.LeaseStartDate,
		tenant.LeaseEndDate,
		tenant.CreditBalance,
		tenant.CreatedAt,
		tenant.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Tenant, error) {
	return r.findOne(ctx, db, `SELECT `+tenantColumns+` FROM tenants WHERE id = ?`, id)
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Tenant, error) {
	return r.findOne(ctx, db, `SELECT `+tenantColumns+` FROM tenants WHERE id = ? FOR UPDATE`, id)
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, query string, id snowflake.ID) (*domain.Tenant, error) {
	var tenant domain.Tenant
	err := db.WithContext(ctx).Raw(query, id).Scan(&tenant).Error
	if err != nil {
		return nil, err
	}
	if tenant.ID == 0 {
		return nil, nil
	}
	return &tenant, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListTenantFilter) ([]*domain.Tenant, error) {
	var tenants []*domain.Tenant
	stmt := db.WithContext(ctx).Model(&domain.Tenant{})
	if filter.ApartmentID != 0 {
		stmt = stmt.Where("unit_id IN (?)",
			db.Session(&gorm.Session{NewDB: true}).Table("units").Select("id").Where("apartment_id = ?", filter.ApartmentID),
		)
	}
	if filter.ActiveOn != nil {
		stmt = stmt.Where("(lease_end_date IS NULL OR lease_end_date > ?)", *filter.ActiveOn)
	}
	err := stmt.Order("id asc").Find(&tenants).Error
	if err != nil {
		return nil, err
	}
	return tenants, nil
}

func (r *repo) UpdateLeaseEnd(ctx context.Context, db *gorm.DB, tenant *domain.Tenant) error {
	return db.WithContext(ctx).Exec(
		`UPDATE tenants SET lease_end_date = ?, updated_at = ? WHERE id = ?`,
		tenant.LeaseEndDate,
		tenant.UpdatedAt,
		tenant.ID,
	).Error
}
