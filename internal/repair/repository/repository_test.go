package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ton-apicha/ibit-repair2-sub001/internal/repair/entity"
	"github.com/ton-apicha/ibit-repair2-sub001/internal/repair/repository"
	"github.com/ton-apicha/ibit-repair2-sub001/internal/repair/testutil"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestJobUpdateWithVersion(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	ctx := context.Background()

	customer := testutil.SeedCustomer(t, db, "Khun Anan", "")
	model := testutil.SeedMinerModel(t, db, "MicroBT", "Whatsminer M30S")
	seeded := testutil.SeedJob(t, db, customer, model, entity.JobStatusReceived, nil)

	first, err := repos.Job.FindByID(ctx, seeded.ID)
	require.NoError(t, err)
	stale, err := repos.Job.FindByID(ctx, seeded.ID)
	require.NoError(t, err)

	require.NoError(t, repos.Job.UpdateWithVersion(ctx, first, map[string]interface{}{"status": entity.JobStatusDiagnosed}))
	assert.Equal(t, 2, first.Version)

	err = repos.Job.UpdateWithVersion(ctx, stale, map[string]interface{}{"status": entity.JobStatusCancelled})
	assert.ErrorIs(t, err, repository.ErrVersionConflict)

	got, err := repos.Job.FindByID(ctx, seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.JobStatusDiagnosed, got.Status)
	assert.Equal(t, 2, got.Version)
}

func TestJobFindByIDNotFound(t *testing.T) {
	repos := repository.NewRepositories(testutil.SetupTestDB(t))
	_, err := repos.Job.FindByID(context.Background(), "0b5d8b2e-6a7c-4f0e-9d36-2f4c0b1e7a11")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestJobFindAllFilters(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	ctx := context.Background()

	tech := testutil.SeedUser(t, db, entity.RoleTechnician, "Tech")
	customer := testutil.SeedCustomer(t, db, "Khun Anan", "")
	model := testutil.SeedMinerModel(t, db, "Bitmain", "S19")
	testutil.SeedJob(t, db, customer, model, entity.JobStatusReceived, nil)
	testutil.SeedJob(t, db, customer, model, entity.JobStatusInRepair, tech)
	testutil.SeedJob(t, db, customer, model, entity.JobStatusCompleted, tech)

	items, total, err := repos.Job.FindAll(ctx, 1, 20, repository.JobFilter{TechnicianID: tech.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, items, 2)

	_, total, err = repos.Job.FindAll(ctx, 1, 20, repository.JobFilter{OpenOnly: true})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)

	items, _, err = repos.Job.FindAll(ctx, 1, 20, repository.JobFilter{Status: entity.JobStatusInRepair})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.NotNil(t, items[0].Technician)
	assert.Equal(t, "Tech", items[0].Technician.Name)

	_, total, err = repos.Job.FindAll(ctx, 1, 20, repository.JobFilter{Keyword: "HASHBOARD"})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)

	load, err := repos.Job.CountOpenByTechnician(ctx)
	require.NoError(t, err)
	require.Len(t, load, 1)
	assert.EqualValues(t, 1, load[0].OpenJobs)
}

func TestDecrementStockNeverNegative(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	ctx := context.Background()
	part := testutil.SeedPart(t, db, "PSU-APW12", 3, 1, 5200)

	require.NoError(t, repos.Part.DecrementStock(ctx, part.ID, 3))
	assert.ErrorIs(t, repos.Part.DecrementStock(ctx, part.ID, 1), repository.ErrInsufficient)

	got, err := repos.Part.FindByID(ctx, part.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.StockQty)

	low, err := repos.Part.CountLowStock(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, low)
}

func TestLockByIDInsideTransaction(t *testing.T) {
	db := testutil.SetupTestDB(t)
	part := testutil.SeedPart(t, db, "FAN-12038", 8, 2, 350)

	err := db.Transaction(func(tx *gorm.DB) error {
		p, err := repository.NewPartRepository(tx).LockByID(context.Background(), part.ID)
		if err != nil {
			return err
		}
		assert.Equal(t, 8, p.StockQty)
		return nil
	})
	require.NoError(t, err)
}

func TestCustomerGenerateCode(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	ctx := context.Background()

	code, err := repos.Customer.GenerateCode(ctx)
	require.NoError(t, err)
	assert.Equal(t, "CUS-0001", code)

	require.NoError(t, repos.Customer.Create(ctx, &entity.Customer{CustomerCode: "CUS-0041", Name: "A"}))
	code, err = repos.Customer.GenerateCode(ctx)
	require.NoError(t, err)
	assert.Equal(t, "CUS-0042", code)
}

func TestNotificationMarkRead(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	ctx := context.Background()

	uid := "u-1"
	n := &entity.Notification{UserID: &uid, Type: "job.assigned", Title: "Assigned"}
	require.NoError(t, repos.Notification.Create(ctx, n))

	assert.ErrorIs(t, repos.Notification.MarkRead(ctx, n.ID, "someone-else", time.Now()), repository.ErrNotFound)
	require.NoError(t, repos.Notification.MarkRead(ctx, n.ID, uid, time.Now()))
	require.NoError(t, repos.Notification.MarkRead(ctx, n.ID, uid, time.Now()))

	unread, total, err := repos.Notification.FindByUser(ctx, uid, true, 1, 20)
	require.NoError(t, err)
	assert.Empty(t, unread)
	assert.EqualValues(t, 0, total)
}

func TestDBJobNumbers(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	ctx := context.Background()
	now := time.Date(2026, 10, 19, 15, 0, 0, 0, time.UTC)

	gen := repository.NewDBJobNumbers(repos.Job)
	number, err := gen.Next(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, "JOB-20261019-0001", number)

	customer := testutil.SeedCustomer(t, db, "A", "")
	model := testutil.SeedMinerModel(t, db, "Bitmain", "S19")
	job := testutil.SeedJob(t, db, customer, model, entity.JobStatusReceived, nil)
	require.NoError(t, db.Model(job).Update("job_number", "JOB-20261019-0007").Error)

	number, err = gen.Next(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, "JOB-20261019-0008", number)
}

func TestRedisJobNumbers(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	mr, rdb := testutil.SetupRedis(t)
	ctx := context.Background()
	now := time.Date(2026, 10, 19, 15, 0, 0, 0, time.UTC)

	gen := repository.NewRedisJobNumbers(rdb, repos.Job, zap.NewNop())
	first, err := gen.Next(ctx, now)
	require.NoError(t, err)
	second, err := gen.Next(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, "JOB-20261019-0001", first)
	assert.Equal(t, "JOB-20261019-0002", second)
	assert.True(t, mr.TTL("repair:jobno:20261019") > 0)

	next, err := gen.Next(ctx, now.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, "JOB-20261020-0001", next)

	// sequence lost: realign with numbers already stored
	customer := testutil.SeedCustomer(t, db, "A", "")
	model := testutil.SeedMinerModel(t, db, "Bitmain", "S19")
	job := testutil.SeedJob(t, db, customer, model, entity.JobStatusReceived, nil)
	require.NoError(t, db.Model(job).Update("job_number", "JOB-20261019-0005").Error)
	mr.FlushAll()

	realigned, err := gen.Next(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, "JOB-20261019-0006", realigned)

	// redis down: fall back to the database
	mr.Close()
	fallback, err := gen.Next(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, "JOB-20261019-0006", fallback)
}

func TestCustomerGenerateCodePastFourDigits(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	ctx := context.Background()

	require.NoError(t, repos.Customer.Create(ctx, &entity.Customer{CustomerCode: "CUS-9999", Name: "A"}))
	require.NoError(t, repos.Customer.Create(ctx, &entity.Customer{CustomerCode: "CUS-10000", Name: "B"}))

	code, err := repos.Customer.GenerateCode(ctx)
	require.NoError(t, err)
	assert.Equal(t, "CUS-10001", code)
	require.NoError(t, repos.Customer.Create(ctx, &entity.Customer{CustomerCode: code, Name: "C"}))
}

func TestDBJobNumbersPastFourDigits(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	ctx := context.Background()
	now := time.Date(2026, 10, 19, 15, 0, 0, 0, time.UTC)

	customer := testutil.SeedCustomer(t, db, "A", "")
	model := testutil.SeedMinerModel(t, db, "Bitmain", "S19")
	for _, number := range []string{"JOB-20261019-9999", "JOB-20261019-10000"} {
		job := testutil.SeedJob(t, db, customer, model, entity.JobStatusReceived, nil)
		require.NoError(t, db.Model(job).Update("job_number", number).Error)
	}

	number, err := repository.NewDBJobNumbers(repos.Job).Next(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, "JOB-20261019-10001", number)
}

func TestCustomerDeleteIfNoJobs(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	ctx := context.Background()

	busy := testutil.SeedCustomer(t, db, "Busy", "")
	idle := testutil.SeedCustomer(t, db, "Idle", "")
	model := testutil.SeedMinerModel(t, db, "Bitmain", "S19")
	testutil.SeedJob(t, db, busy, model, entity.JobStatusReceived, nil)

	// the job guard is part of the DELETE itself, so a job created after any earlier check still blocks it
	deleted, err := repos.Customer.DeleteIfNoJobs(ctx, busy.ID)
	require.NoError(t, err)
	assert.False(t, deleted)
	_, err = repos.Customer.FindByID(ctx, busy.ID)
	require.NoError(t, err)

	deleted, err = repos.Customer.DeleteIfNoJobs(ctx, idle.ID)
	require.NoError(t, err)
	assert.True(t, deleted)
	_, err = repos.Customer.FindByID(ctx, idle.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
