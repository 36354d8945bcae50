// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/gigmarket/internal/db"
	"github.com/Windi-Fikriyansyah/gigmarket/internal/models"
)

// NewDB returns a migrated, private in-memory sqlite database.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", uuid.NewString())
	gdb, err := db.Connect("sqlite", dsn)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))

	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return gdb
}

// Profile inserts a profile with the given role and a unique username.
func Profile(t *testing.T, gdb *gorm.DB, role models.Role) *models.Profile {
	t.Helper()
	id := uuid.New()
	short := id.String()[:8]
	p := &models.Profile{
		ID:       id,
		Email:    short + "@example.com",
		Password: "x",
		Username: string(role) + "_" + short,
		FullName: "User " + short,
		Role:     role,
		IsActive: true,
	}
	require.NoError(t, gdb.Create(p).Error)
	return p
}

// Gig inserts a published gig owned by seller.
func Gig(t *testing.T, gdb *gorm.DB, seller *models.Profile, price int64) *models.Gig {
	t.Helper()
	g := &models.Gig{
		SellerID:    seller.ID,
		Title:       "Logo design",
		Description: "A clean vector logo",
		Price:       price,
		Category:    "design",
		Status:      models.GigPublished,
	}
	require.NoError(t, gdb.Create(g).Error)
	return g
}
