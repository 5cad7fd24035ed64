package sqlite_test

import (
	"testing"

	"github.com/vellankikoti/cutover/internal/domain"
	"github.com/vellankikoti/cutover/internal/domain/switchoprepotest"
	"github.com/vellankikoti/cutover/internal/domain/trafficrepotest"
	"github.com/vellankikoti/cutover/internal/infrastructure/sqlite"
)

func TestTrafficStateRepo(t *testing.T) {
	trafficrepotest.Run(t, func(t *testing.T) domain.TrafficStateRepository {
		db := sqlite.OpenTestDB(t)
		return &sqlite.TrafficStateRepo{DB: db}
	})
}

func TestSwitchOperationRepo(t *testing.T) {
	switchoprepotest.Run(t, func(t *testing.T) domain.SwitchOperationRepository {
		db := sqlite.OpenTestDB(t)
		return &sqlite.SwitchOperationRepo{DB: db}
	})
}
