package processor

import (
	"context"
	"errors"
	"testing"

	"prosterio-go/internal/constants"
	"prosterio-go/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRecord(name, email, title string) types.EmployeeRecord {
	return types.EmployeeRecord{
		FullName: name,
		Email:    email,
		JobTitle: title,
		Skills:   []string{"Go", "SQL"},
		ProfessionalExperiences: []types.ProfessionalExperience{
			{Company: types.StringPtr("Acme"), JobTitle: types.StringPtr(title), Description: types.StringList{"Built APIs"}},
		},
		Certifications: []string{"CKA"},
	}
}

func newEmployeeService(repo *memEmployeeRepo, cache *memCache) *EmployeeService {
	// nil *memCache 不能直接放进接口
	var inv AnalyticsInvalidator
	if cache != nil {
		inv = cache
	}
	return NewEmployeeService(repo, inv, "employee.events")
}

func TestBulkUpsert_MixedValidity(t *testing.T) {
	repo, cache := newMemEmployeeRepo(), newMemCache()
	svc := newEmployeeService(repo, cache)

	records := []types.EmployeeRecord{
		newRecord("Ann", "ann@x.com", "Engineer"),
		{FullName: "No Email", JobTitle: "QA"},
		newRecord("Bob", "bob@x.com", "Designer"),
	}
	res, err := svc.BulkUpsert(context.Background(), 7, 7, records)
	require.NoError(t, err)

	require.Len(t, res.Results, 3)
	assert.Equal(t, 2, res.Succeeded)
	assert.Equal(t, StatusInserted, res.Results[0].Status)
	assert.Equal(t, "unknown_1", res.Results[1].Email)
	assert.Equal(t, StatusFailed, res.Results[1].Status)
	assert.Equal(t, types.ErrMissingRequiredFields.Error(), res.Results[1].Error)
	assert.Equal(t, StatusInserted, res.Results[2].Status)

	// INFORMATION + SKILLS + 1 experience + CERTIFICATIONS
	annID := res.Results[0].EmployeeID
	chunks := repo.chunksOf(annID)
	require.Len(t, chunks, 4)
	assert.Equal(t, uint64(7), chunks[0].UserID)
	assert.Equal(t, "INFORMATION", chunks[0].Type)

	assert.Len(t, repo.outbox, 2)
	assert.Equal(t, constants.EventEmployeeUpserted, repo.outbox[0].EventType)
	assert.Equal(t, 1, cache.bumps)
}

func TestBulkUpsert_MergesOwnEmployeeByEmail(t *testing.T) {
	repo := newMemEmployeeRepo()
	svc := newEmployeeService(repo, nil)
	ctx := context.Background()

	first, err := svc.BulkUpsert(ctx, 1, 1, []types.EmployeeRecord{newRecord("Ann", "ann@x.com", "Engineer")})
	require.NoError(t, err)
	id := first.Results[0].EmployeeID

	rec := newRecord("Ann Smith", "ann@x.com", "Lead")
	rec.Skills = []string{"Rust"}
	second, err := svc.BulkUpsert(ctx, 1, 1, []types.EmployeeRecord{rec})
	require.NoError(t, err)
	assert.Equal(t, StatusUpdated, second.Results[0].Status)
	assert.Equal(t, id, second.Results[0].EmployeeID)

	e, err := repo.GetEmployee(ctx, 0, id)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), e.UserID)
	assert.Equal(t, "Lead", e.JobTitle)

	chunks := repo.chunksOf(id)
	require.Len(t, chunks, 4)
	assert.Contains(t, chunks[1].ChunkText, "Rust")
}

func TestBulkUpsert_RejectsForeignEmployee(t *testing.T) {
	repo := newMemEmployeeRepo()
	cache := newMemCache()
	svc := newEmployeeService(repo, cache)
	ctx := context.Background()

	id := seedEmployee(t, svc, 1, "ann@x.com")
	before := repo.chunksOf(id)
	bumps := cache.bumps

	byID := newRecord("Mallory", "mallory@x.com", "Engineer")
	byID.ID = id
	res, err := svc.BulkUpsert(ctx, 2, 2, []types.EmployeeRecord{
		byID,
		newRecord("Mallory", "ann@x.com", "Engineer"),
	})
	require.NoError(t, err)
	require.Len(t, res.Results, 2)
	assert.Zero(t, res.Succeeded)
	for _, r := range res.Results {
		assert.Equal(t, StatusFailed, r.Status)
		assert.Equal(t, ErrMsgForeignEmployee, r.Error)
		assert.Zero(t, r.EmployeeID)
	}
	assert.Equal(t, bumps, cache.bumps)

	got, err := svc.Get(ctx, 1, id)
	require.NoError(t, err)
	assert.Equal(t, "Ann", got.FullName)
	assert.Equal(t, uint64(1), got.UserID)
	assert.Equal(t, before, repo.chunksOf(id))

	// 同一批次中合法的记录照常写入
	res, err = svc.BulkUpsert(ctx, 2, 2, []types.EmployeeRecord{
		newRecord("Mallory", "ann@x.com", "Engineer"),
		newRecord("Bob", "bob@x.com", "Designer"),
	})
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, res.Results[0].Status)
	assert.Equal(t, StatusInserted, res.Results[1].Status)
	assert.Equal(t, 1, res.Succeeded)
}

func TestBulkUpsert_SuperuserMergeKeepsOwner(t *testing.T) {
	repo := newMemEmployeeRepo()
	svc := newEmployeeService(repo, nil)
	ctx := context.Background()
	id := seedEmployee(t, svc, 1, "ann@x.com")

	res, err := svc.BulkUpsert(ctx, 9, 0, []types.EmployeeRecord{newRecord("Ann", "ann@x.com", "Lead")})
	require.NoError(t, err)
	assert.Equal(t, StatusUpdated, res.Results[0].Status)

	e, err := repo.GetEmployee(ctx, 1, id)
	require.NoError(t, err)
	assert.Equal(t, "Lead", e.JobTitle)
	for _, c := range repo.chunksOf(id) {
		assert.Equal(t, uint64(1), c.UserID)
	}
}

func TestBulkUpsert_DuplicateEmailInBatchLastWins(t *testing.T) {
	repo := newMemEmployeeRepo()
	svc := newEmployeeService(repo, nil)

	a := newRecord("Ann", "ann@x.com", "Engineer")
	b := newRecord("Ann", "ann@x.com", "Manager")
	b.Skills = nil
	res, err := svc.BulkUpsert(context.Background(), 1, 1, []types.EmployeeRecord{a, b})
	require.NoError(t, err)
	assert.Equal(t, StatusInserted, res.Results[0].Status)
	assert.Equal(t, StatusUpdated, res.Results[1].Status)

	chunks := repo.chunksOf(res.Results[0].EmployeeID)
	require.Len(t, chunks, 3)
	assert.Contains(t, chunks[0].ChunkText, "Manager")
}

func TestBulkUpsert_RollbackOnStoreFailure(t *testing.T) {
	repo := newMemEmployeeRepo()
	repo.failOn = "chunks"
	cache := newMemCache()
	svc := newEmployeeService(repo, cache)

	res, err := svc.BulkUpsert(context.Background(), 1, 1, []types.EmployeeRecord{
		newRecord("Ann", "ann@x.com", "Engineer"),
		newRecord("Bob", "bob@x.com", "Engineer"),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStore))
	assert.Zero(t, res.Succeeded)
	for _, r := range res.Results {
		assert.Equal(t, StatusFailed, r.Status)
	}

	list, _ := repo.ListEmployees(context.Background(), 0)
	assert.Empty(t, list)
	assert.Empty(t, repo.outbox)
	assert.Zero(t, cache.bumps)
}

func TestBulkUpsert_NoInput(t *testing.T) {
	svc := newEmployeeService(newMemEmployeeRepo(), nil)

	_, err := svc.BulkUpsert(context.Background(), 1, 1, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))
	assert.Equal(t, "No employees data provided", Message(err))

	_, err = svc.BulkUpsert(context.Background(), 1, 1, []types.EmployeeRecord{{Email: "a@x.com"}})
	assert.Equal(t, "No valid employees to process", Message(err))
}

func TestBulkUpsert_NoOutboxWithoutExchange(t *testing.T) {
	repo := newMemEmployeeRepo()
	svc := NewEmployeeService(repo, nil, "")

	_, err := svc.BulkUpsert(context.Background(), 1, 1, []types.EmployeeRecord{newRecord("Ann", "ann@x.com", "Engineer")})
	require.NoError(t, err)
	assert.Empty(t, repo.outbox)
}

func seedEmployee(t *testing.T, svc *EmployeeService, owner uint64, email string) uint64 {
	t.Helper()
	res, err := svc.BulkUpsert(context.Background(), owner, owner, []types.EmployeeRecord{newRecord("Ann", email, "Engineer")})
	require.NoError(t, err)
	return res.Results[0].EmployeeID
}

func TestUpdate_RegeneratesChunksAndKeepsOwner(t *testing.T) {
	repo := newMemEmployeeRepo()
	svc := newEmployeeService(repo, nil)
	ctx := context.Background()
	id := seedEmployee(t, svc, 3, "ann@x.com")

	rec := newRecord("Ann", "ann@x.com", "Staff Engineer")
	rec.Skills = nil
	rec.Certifications = nil
	out, err := svc.Update(ctx, 3, id, rec)
	require.NoError(t, err)
	assert.Equal(t, "Staff Engineer", out.JobTitle)
	assert.Equal(t, uint64(3), out.UserID)
	assert.Len(t, repo.chunksOf(id), 2)
}

func TestUpdate_ForeignAndMissing(t *testing.T) {
	repo := newMemEmployeeRepo()
	svc := newEmployeeService(repo, nil)
	id := seedEmployee(t, svc, 3, "ann@x.com")

	_, err := svc.Update(context.Background(), 4, id, newRecord("Ann", "ann@x.com", "QA"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, "Employee not found", Message(err))

	_, err = svc.Update(context.Background(), 3, id, types.EmployeeRecord{Email: "ann@x.com"})
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestUpdate_EmailConflict(t *testing.T) {
	repo := newMemEmployeeRepo()
	svc := newEmployeeService(repo, nil)
	id := seedEmployee(t, svc, 1, "ann@x.com")
	seedEmployee(t, svc, 1, "bob@x.com")

	_, err := svc.Update(context.Background(), 1, id, newRecord("Ann", "bob@x.com", "QA"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConflict))
	assert.Equal(t, "Email already exists", Message(err))
}

func TestResign_DropsChunksAndStaysChunkless(t *testing.T) {
	repo := newMemEmployeeRepo()
	svc := newEmployeeService(repo, nil)
	ctx := context.Background()
	id := seedEmployee(t, svc, 1, "ann@x.com")

	require.NoError(t, svc.Resign(ctx, 1, id))
	assert.Empty(t, repo.chunksOf(id))

	got, err := svc.Get(ctx, 1, id)
	require.NoError(t, err)
	assert.True(t, got.ResignStatus)
	assert.NotNil(t, got.ResignDate)

	_, err = svc.Update(ctx, 1, id, newRecord("Ann", "ann@x.com", "Engineer"))
	require.NoError(t, err)
	assert.Empty(t, repo.chunksOf(id))

	res, err := svc.BulkUpsert(ctx, 1, 1, []types.EmployeeRecord{newRecord("Ann", "ann@x.com", "Engineer")})
	require.NoError(t, err)
	assert.Equal(t, StatusUpdated, res.Results[0].Status)
	assert.Empty(t, repo.chunksOf(id))

	last := repo.outbox[len(repo.outbox)-1]
	assert.Equal(t, constants.EventEmployeeUpserted, last.EventType)
	assert.Equal(t, constants.EventEmployeeResigned, repo.outbox[1].EventType)
}

func TestDelete(t *testing.T) {
	repo := newMemEmployeeRepo()
	svc := newEmployeeService(repo, nil)
	ctx := context.Background()
	id := seedEmployee(t, svc, 1, "ann@x.com")
	other := seedEmployee(t, svc, 1, "bob@x.com")
	otherChunks := repo.chunksOf(other)
	require.NotEmpty(t, otherChunks)

	err := svc.Delete(ctx, 2, id)
	assert.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, svc.Delete(ctx, 0, id))
	assert.Empty(t, repo.chunksOf(id))
	assert.Equal(t, otherChunks, repo.chunksOf(other))
	_, err = svc.Get(ctx, 0, id)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, constants.EventEmployeeDeleted, repo.outbox[len(repo.outbox)-1].EventType)
}

func TestResign_LeavesOtherEmployeesChunks(t *testing.T) {
	repo := newMemEmployeeRepo()
	svc := newEmployeeService(repo, nil)
	ctx := context.Background()
	id := seedEmployee(t, svc, 1, "ann@x.com")
	other := seedEmployee(t, svc, 1, "bob@x.com")
	otherChunks := repo.chunksOf(other)
	require.NotEmpty(t, otherChunks)

	require.NoError(t, svc.Resign(ctx, 1, id))
	assert.Empty(t, repo.chunksOf(id))
	assert.Equal(t, otherChunks, repo.chunksOf(other))
}

func TestList_Scoped(t *testing.T) {
	repo := newMemEmployeeRepo()
	svc := newEmployeeService(repo, nil)
	seedEmployee(t, svc, 1, "ann@x.com")
	seedEmployee(t, svc, 2, "bob@x.com")

	mine, err := svc.List(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "ann@x.com", mine[0].Email)

	all, err := svc.List(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
