package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/prismbi/prism-backend/internal/domain"
)

func SeedUser(tb testing.TB, ctx context.Context, tx *gorm.DB, email string) *types.User {
	tb.Helper()
	u := &types.User{
		Email:     email,
		FirstName: "A",
		LastName:  "B",
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := tx.WithContext(ctx).Create(u).Error; err != nil {
		tb.Fatalf("seed user: %v", err)
	}
	return u
}

func SeedDashboard(tb testing.TB, ctx context.Context, tx *gorm.DB, title string) *types.Dashboard {
	tb.Helper()
	d := &types.Dashboard{
		UUID:           uuid.New(),
		DashboardTitle: title,
		PositionJSON:   datatypes.JSON([]byte("{}")),
		Metadata:       datatypes.JSON([]byte("{}")),
		CreatedAt:      time.Now().UTC(),
		UpdatedAt:      time.Now().UTC(),
	}
	if err := tx.WithContext(ctx).Create(d).Error; err != nil {
		tb.Fatalf("seed dashboard: %v", err)
	}
	return d
}

func SeedSlice(tb testing.TB, ctx context.Context, tx *gorm.DB, name string) *types.Slice {
	tb.Helper()
	s := &types.Slice{
		UUID:      uuid.New(),
		SliceName: name,
		VizType:   "table",
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := tx.WithContext(ctx).Create(s).Error; err != nil {
		tb.Fatalf("seed slice: %v", err)
	}
	return s
}

func SeedVersion(tb testing.TB, ctx context.Context, tx *gorm.DB, dashboardID int64, number int, position, metadata string) *types.DashboardVersion {
	tb.Helper()
	v := &types.DashboardVersion{
		DashboardID:   dashboardID,
		VersionNumber: number,
		PositionJSON:  datatypes.JSON([]byte(position)),
		MetadataJSON:  datatypes.JSON([]byte(metadata)),
		CreatedAt:     time.Now().UTC(),
	}
	if err := tx.WithContext(ctx).Create(v).Error; err != nil {
		tb.Fatalf("seed version: %v", err)
	}
	return v
}
