package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ton-apicha/ibit-repair2-sub001/internal/apperr"
	"github.com/ton-apicha/ibit-repair2-sub001/internal/notify"
	"github.com/ton-apicha/ibit-repair2-sub001/internal/repair/entity"
	"github.com/ton-apicha/ibit-repair2-sub001/internal/repair/repository"
	"github.com/ton-apicha/ibit-repair2-sub001/internal/repair/service"
	"github.com/ton-apicha/ibit-repair2-sub001/internal/repair/testutil"
)

func boolPtr(v bool) *bool { return &v }

func TestCustomerLifecycle(t *testing.T) {
	env := testutil.NewEnv(t)
	shop := testutil.SeedShop(t, env.DB)
	ctx := context.Background()
	desk := testutil.ActorOf(shop.Receptionist)

	c, err := env.Services.Customer.Create(ctx, desk, &service.CreateCustomerRequest{
		Name:  "Northern Hash Farm",
		Phone: "0812345678",
		Email: "ops@northernhash.example",
	})
	require.NoError(t, err)
	assert.Regexp(t, `^CUS-\d{4}$`, c.CustomerCode)
	assert.Equal(t, shop.Receptionist.ID, c.CreatedBy)

	_, err = env.Services.Customer.Create(ctx, desk, &service.CreateCustomerRequest{Name: "Bad Mail", Email: "not-an-email"})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	_, err = env.Services.Customer.Create(ctx, testutil.ActorOf(shop.Technician), &service.CreateCustomerRequest{Name: "Nope"})
	assert.True(t, apperr.IsKind(err, apperr.KindAuthorization))

	updated, err := env.Services.Customer.Update(ctx, desk, c.ID, &service.UpdateCustomerRequest{LineID: strPtr("@northernhash")})
	require.NoError(t, err)
	assert.Equal(t, "@northernhash", updated.LineID)
	assert.Equal(t, "Northern Hash Farm", updated.Name)

	list, total, err := env.Services.Customer.List(ctx, desk, 1, 20, "northern")
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, c.ID, list[0].ID)

	require.NoError(t, env.Services.Customer.Delete(ctx, desk, c.ID))
	_, err = env.Services.Customer.Get(ctx, desk, c.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestDeleteCustomerWithJobs(t *testing.T) {
	env := testutil.NewEnv(t)
	shop := testutil.SeedShop(t, env.DB)
	ctx := context.Background()
	testutil.SeedJob(t, env.DB, shop.Customer, shop.Model, entity.JobStatusCompleted, nil)

	err := env.Services.Customer.Delete(ctx, testutil.ActorOf(shop.Manager), shop.Customer.ID)
	require.True(t, apperr.IsKind(err, apperr.KindInvalidState), "got %v", err)
	e, _ := apperr.As(err)
	assert.EqualValues(t, 1, e.Details["job_count"])

	_, err = env.Services.Customer.Get(ctx, testutil.ActorOf(shop.Manager), shop.Customer.ID)
	assert.NoError(t, err)
}

func TestCatalog(t *testing.T) {
	env := testutil.NewEnv(t)
	shop := testutil.SeedShop(t, env.DB)
	ctx := context.Background()
	manager := testutil.ActorOf(shop.Manager)

	m, err := env.Services.Catalog.CreateMinerModel(ctx, manager, &service.MinerModelRequest{
		Brand: "MicroBT", Model: "Whatsminer M30S", Hashrate: "88TH/s", PowerWatts: 3344,
	})
	require.NoError(t, err)
	assert.True(t, m.Active)

	_, err = env.Services.Catalog.CreateMinerModel(ctx, testutil.ActorOf(shop.Receptionist), &service.MinerModelRequest{Brand: "X", Model: "Y"})
	assert.True(t, apperr.IsKind(err, apperr.KindAuthorization))

	_, err = env.Services.Catalog.UpdateMinerModel(ctx, manager, m.ID, &service.MinerModelRequest{
		Brand: "MicroBT", Model: "Whatsminer M30S", Active: boolPtr(false),
	})
	require.NoError(t, err)

	active, err := env.Services.Catalog.ListMinerModels(ctx, manager, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, shop.Model.ID, active[0].ID)

	all, err := env.Services.Catalog.ListMinerModels(ctx, manager, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	w, err := env.Services.Catalog.CreateWarrantyProfile(ctx, manager, &service.WarrantyProfileRequest{Name: "No warranty"})
	require.NoError(t, err)
	_, err = env.Services.Catalog.UpdateWarrantyProfile(ctx, manager, w.ID, &service.WarrantyProfileRequest{Name: "No warranty", DurationDays: -1})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestPartCreateRestockAndLedger(t *testing.T) {
	env := testutil.NewEnv(t)
	shop := testutil.SeedShop(t, env.DB)
	ctx := context.Background()
	manager := testutil.ActorOf(shop.Manager)

	p, err := env.Services.Part.Create(ctx, manager, &service.CreatePartRequest{
		PartNumber: "PSU-APW12", Name: "APW12 power supply", UnitPrice: 6900, StockQty: 3, MinStockQty: 1,
	})
	require.NoError(t, err)

	_, err = env.Services.Part.Create(ctx, manager, &service.CreatePartRequest{PartNumber: "PSU-APW12", Name: "Duplicate"})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation), "got %v", err)

	restocked, err := env.Services.Part.Restock(ctx, manager, p.ID, &service.RestockRequest{Quantity: 4, Notes: "PO-7781"})
	require.NoError(t, err)
	assert.Equal(t, 7, restocked.StockQty)

	_, err = env.Services.Part.Restock(ctx, manager, p.ID, &service.RestockRequest{Quantity: 0})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	_, err = env.Services.Part.Restock(ctx, testutil.ActorOf(shop.Technician), p.ID, &service.RestockRequest{Quantity: 1})
	assert.True(t, apperr.IsKind(err, apperr.KindAuthorization))

	ledger, total, err := env.Services.Part.Ledger(ctx, manager, p.ID, 1, 20)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	types := []string{ledger[0].Type, ledger[1].Type}
	assert.ElementsMatch(t, []string{entity.PartTxAdjust, entity.PartTxRestock}, types)

	deactivated, err := env.Services.Part.Update(ctx, manager, p.ID, &service.UpdatePartRequest{Active: boolPtr(false)})
	require.NoError(t, err)
	assert.False(t, deactivated.Active)

	reloaded, err := env.Repos.Part.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, reloaded.Active)
	assert.Equal(t, 7, reloaded.StockQty)
}

func TestAddJobPartInactivePart(t *testing.T) {
	env := testutil.NewEnv(t)
	shop := testutil.SeedShop(t, env.DB)
	ctx := context.Background()
	manager := testutil.ActorOf(shop.Manager)
	job := testutil.SeedJob(t, env.DB, shop.Customer, shop.Model, entity.JobStatusInRepair, shop.Technician)

	_, err := env.Services.Part.Update(ctx, manager, shop.Part.ID, &service.UpdatePartRequest{Active: boolPtr(false)})
	require.NoError(t, err)

	_, err = env.Services.Job.AddJobPart(ctx, manager, job.ID, &service.AddJobPartRequest{PartID: shop.Part.ID, Quantity: 1})
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidState))
}

func TestNotifyLowStock(t *testing.T) {
	env := testutil.NewEnv(t)
	shop := testutil.SeedShop(t, env.DB)
	ctx := context.Background()
	testutil.SeedPart(t, env.DB, "FAN-12038", 1, 4, 350)
	testutil.SeedPart(t, env.DB, "CB-S19", 5, 5, 2800)

	n, err := env.Services.Part.NotifyLowStock(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	events := env.Notifier.OfType(notify.EventLowStock)
	require.Len(t, events, 2)
	for _, ev := range events {
		assert.NotEqual(t, shop.Part.ID, ev.PartID)
		assert.ElementsMatch(t, []string{shop.Admin.ID, shop.Manager.ID}, ev.UserIDs)
	}
}

func TestUserManagement(t *testing.T) {
	env := testutil.NewEnv(t)
	shop := testutil.SeedShop(t, env.DB)
	ctx := context.Background()
	admin := testutil.ActorOf(shop.Admin)

	u, err := env.Services.User.Create(ctx, admin, &service.CreateUserRequest{
		Username: "tech3", Name: "Tech Three", Role: string(entity.RoleTechnician),
	})
	require.NoError(t, err)
	assert.True(t, u.Active)
	assert.NotEmpty(t, u.ID)

	_, err = env.Services.User.Create(ctx, admin, &service.CreateUserRequest{Username: "tech3", Name: "Again", Role: "TECHNICIAN"})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	_, err = env.Services.User.Create(ctx, admin, &service.CreateUserRequest{Username: "boss", Name: "Boss", Role: "OWNER"})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	_, err = env.Services.User.Create(ctx, testutil.ActorOf(shop.Manager), &service.CreateUserRequest{Username: "x1x", Name: "X", Role: "TECHNICIAN"})
	assert.True(t, apperr.IsKind(err, apperr.KindAuthorization))

	_, err = env.Services.User.Update(ctx, admin, shop.Admin.ID, &service.UpdateUserRequest{Active: boolPtr(false)})
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidState))

	off, err := env.Services.User.Update(ctx, admin, u.ID, &service.UpdateUserRequest{Active: boolPtr(false)})
	require.NoError(t, err)
	assert.False(t, off.Active)

	techs, err := env.Services.User.List(ctx, testutil.ActorOf(shop.Manager), string(entity.RoleTechnician), true)
	require.NoError(t, err)
	assert.Len(t, techs, 2)

	_, err = env.Services.User.List(ctx, admin, "OWNER", false)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	me, err := env.Services.User.Me(ctx, testutil.ActorOf(shop.Technician))
	require.NoError(t, err)
	assert.Equal(t, "Tech One", me.Name)
}

func TestDashboardSummary(t *testing.T) {
	env := testutil.NewEnv(t)
	shop := testutil.SeedShop(t, env.DB)
	ctx := context.Background()

	testutil.SeedJob(t, env.DB, shop.Customer, shop.Model, entity.JobStatusInRepair, shop.Technician)
	testutil.SeedJob(t, env.DB, shop.Customer, shop.Model, entity.JobStatusInRepair, shop.Technician)
	testutil.SeedJob(t, env.DB, shop.Customer, shop.Model, entity.JobStatusDiagnosed, shop.Technician2)
	testutil.SeedJob(t, env.DB, shop.Customer, shop.Model, entity.JobStatusCompleted, shop.Technician2)
	testutil.SeedPart(t, env.DB, "FAN-12038", 0, 4, 350)

	summary, err := env.Services.Dashboard.Summary(ctx, testutil.ActorOf(shop.Receptionist))
	require.NoError(t, err)

	assert.Len(t, summary.StatusCounts, len(entity.AllJobStatuses))
	assert.EqualValues(t, 2, summary.StatusCounts[entity.JobStatusInRepair])
	assert.EqualValues(t, 1, summary.StatusCounts[entity.JobStatusCompleted])
	assert.EqualValues(t, 0, summary.StatusCounts[entity.JobStatusTesting])
	assert.EqualValues(t, 3, summary.OpenJobs)
	assert.Equal(t, 0, summary.OverdueJobs)
	assert.EqualValues(t, 1, summary.LowStockParts)

	load := map[string]int64{}
	for _, l := range summary.TechnicianLoad {
		load[l.TechnicianID] = l.OpenJobs
	}
	assert.EqualValues(t, 2, load[shop.Technician.ID])
	assert.EqualValues(t, 1, load[shop.Technician2.ID])
}

func TestInAppNotifications(t *testing.T) {
	env := testutil.NewEnv(t)
	shop := testutil.SeedShop(t, env.DB)
	ctx := context.Background()
	sink := env.Services.Notification

	require.NoError(t, sink.Send(ctx, notify.Event{
		Type:       notify.EventJobCompleted,
		JobID:      "job-1",
		CustomerID: shop.Customer.ID,
		UserIDs:    []string{shop.Technician.ID, shop.Technician.ID, ""},
		Title:      "Your repair JOB-20261019-0001 is complete",
		Message:    "ready for collection",
		OccurredAt: testutil.Epoch,
	}))

	rows, err := env.Repos.Notification.FindByType(ctx, notify.EventJobCompleted)
	require.NoError(t, err)
	require.Len(t, rows, 2, "one per distinct user plus the customer")

	tech := testutil.ActorOf(shop.Technician)
	list, total, err := sink.List(ctx, tech, true, 1, 20)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, list, 1)
	assert.Nil(t, list[0].ReadAt)

	require.NoError(t, sink.MarkRead(ctx, tech, list[0].ID))
	require.NoError(t, sink.MarkRead(ctx, tech, list[0].ID), "marking twice is allowed")

	unread, _, err := sink.List(ctx, tech, true, 1, 20)
	require.NoError(t, err)
	assert.Empty(t, unread)

	err = sink.MarkRead(ctx, testutil.ActorOf(shop.Technician2), list[0].ID)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestJobListFilters(t *testing.T) {
	env := testutil.NewEnv(t)
	shop := testutil.SeedShop(t, env.DB)
	ctx := context.Background()
	desk := testutil.ActorOf(shop.Receptionist)
	testutil.SeedJob(t, env.DB, shop.Customer, shop.Model, entity.JobStatusInRepair, shop.Technician)
	testutil.SeedJob(t, env.DB, shop.Customer, shop.Model, entity.JobStatusCompleted, nil)

	jobs, total, err := env.Services.Job.List(ctx, desk, 1, 20, repository.JobFilter{OpenOnly: true})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, entity.JobStatusInRepair, jobs[0].Status)

	_, _, err = env.Services.Job.List(ctx, desk, 1, 20, repository.JobFilter{Status: "FIXED"})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestJobListHidesDevicePassword(t *testing.T) {
	env := testutil.NewEnv(t)
	shop := testutil.SeedShop(t, env.DB)
	ctx := context.Background()
	desk := testutil.ActorOf(shop.Receptionist)

	created, err := env.Services.Job.Create(ctx, desk, &service.CreateJobRequest{
		CustomerID:         shop.Customer.ID,
		MinerModelID:       shop.Model.ID,
		ProblemDescription: "Control board does not boot after firmware update",
		DevicePassword:     "root:admin123",
	})
	require.NoError(t, err)
	assert.Equal(t, "root:admin123", created.DevicePassword)

	jobs, _, err := env.Services.Job.List(ctx, desk, 1, 20, repository.JobFilter{})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Empty(t, jobs[0].DevicePassword)
	assert.Equal(t, created.JobNumber, jobs[0].JobNumber)

	detail, err := env.Services.Job.Get(ctx, desk, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "root:admin123", detail.DevicePassword)
}
