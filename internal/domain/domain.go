package domain

import (
	"github.com/prismbi/prism-backend/internal/domain/bi"
	"github.com/prismbi/prism-backend/internal/domain/user"
)

type User = user.User

type Dashboard = bi.Dashboard
type DashboardSlice = bi.DashboardSlice
type DashboardVersion = bi.DashboardVersion
type Slice = bi.Slice
type Dataset = bi.Dataset
type Database = bi.Database
