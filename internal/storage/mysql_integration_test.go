package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"testing"
	"time"

	"prosterio-go/internal/config"
	"prosterio-go/internal/storage/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 需要真实 MySQL 8：设置 MYSQL_TEST_HOST 后运行
func newTestMySQL(t *testing.T) *MySQL {
	t.Helper()
	host := os.Getenv("MYSQL_TEST_HOST")
	if testing.Short() || host == "" {
		t.Skip("MYSQL_TEST_HOST 未设置，跳过 MySQL 集成测试")
	}
	port, _ := strconv.Atoi(os.Getenv("MYSQL_TEST_PORT"))
	if port == 0 {
		port = 3306
	}
	cfg := &config.MySQLConfig{
		Host:                  host,
		Port:                  port,
		Username:              envOr("MYSQL_TEST_USER", "root"),
		Password:              os.Getenv("MYSQL_TEST_PASSWORD"),
		Database:              envOr("MYSQL_TEST_DATABASE", "prosterio_test"),
		MaxIdleConns:          2,
		MaxOpenConns:          4,
		ConnectTimeoutSeconds: 5,
		ReadTimeoutSeconds:    10,
		WriteTimeoutSeconds:   10,
		LogLevel:              1,
	}
	m, err := NewMySQL(cfg)
	if err != nil {
		t.Skipf("MySQL 不可用: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func uniqueEmail(prefix string) string {
	return fmt.Sprintf("%s-%d@it.example", prefix, time.Now().UnixNano())
}

func TestMySQLEmployeeTransaction(t *testing.T) {
	m := newTestMySQL(t)
	ctx := context.Background()
	email := uniqueEmail("ann")

	var empID uint64
	err := m.InTx(ctx, func(tx EmployeeTx) error {
		e := &models.Employee{UserID: 9001, FullName: "Ann", Email: email, JobTitle: "Senior Engineer"}
		if err := tx.CreateEmployee(ctx, e); err != nil {
			return err
		}
		empID = e.ID
		return tx.ReplaceChunks(ctx, []uint64{e.ID}, []models.ContentChunk{
			{EmployeeID: e.ID, UserID: 9001, Type: "INFORMATION", ChunkText: "Ann"},
			{EmployeeID: e.ID, UserID: 9001, Type: "SKILLS", ChunkText: "Go"},
		})
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = m.InTx(ctx, func(tx EmployeeTx) error { return tx.DeleteEmployee(ctx, empID) })
	})

	chunks, err := m.ListChunks(ctx, 9001)
	require.NoError(t, err)
	assert.Len(t, chunksOf(chunks, empID), 2)

	// 事务内失败时分块替换整体回滚
	boom := errors.New("boom")
	err = m.InTx(ctx, func(tx EmployeeTx) error {
		if err := tx.ReplaceChunks(ctx, []uint64{empID}, nil); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	chunks, err = m.ListChunks(ctx, 9001)
	require.NoError(t, err)
	assert.Len(t, chunksOf(chunks, empID), 2)

	err = m.InTx(ctx, func(tx EmployeeTx) error {
		found, err := tx.FindForMerge(ctx, 0, email)
		if err != nil {
			return err
		}
		assert.Equal(t, empID, found.ID)
		_, err = tx.FindForMerge(ctx, 0, uniqueEmail("nobody"))
		assert.ErrorIs(t, err, ErrNotFound)
		return nil
	})
	require.NoError(t, err)

	_, err = m.GetEmployee(ctx, 9002, empID)
	assert.ErrorIs(t, err, ErrNotFound)
	got, err := m.GetEmployee(ctx, 0, empID)
	require.NoError(t, err)
	assert.Equal(t, "Ann", got.FullName)

	err = m.InTx(ctx, func(tx EmployeeTx) error {
		return tx.CreateEmployee(ctx, &models.Employee{UserID: 9001, FullName: "Dup", Email: email, JobTitle: "x"})
	})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestMySQLSaveEmbeddings(t *testing.T) {
	m := newTestMySQL(t)
	ctx := context.Background()

	var empID uint64
	require.NoError(t, m.InTx(ctx, func(tx EmployeeTx) error {
		e := &models.Employee{UserID: 9003, FullName: "Bob", Email: uniqueEmail("bob"), JobTitle: "Designer"}
		if err := tx.CreateEmployee(ctx, e); err != nil {
			return err
		}
		empID = e.ID
		return tx.ReplaceChunks(ctx, []uint64{e.ID}, []models.ContentChunk{{EmployeeID: e.ID, UserID: 9003, Type: "INFORMATION", ChunkText: "Bob"}})
	}))
	t.Cleanup(func() {
		_ = m.InTx(ctx, func(tx EmployeeTx) error { return tx.DeleteEmployee(ctx, empID) })
	})

	chunks, err := m.ListChunks(ctx, 9003)
	require.NoError(t, err)
	require.Len(t, chunks, 1)

	require.NoError(t, m.SaveEmbeddings(ctx, "test-model", map[uint64][]float64{chunks[0].ID: {0.5, 0.25}}))
	chunks, err = m.ListChunks(ctx, 9003)
	require.NoError(t, err)
	assert.Equal(t, "test-model", chunks[0].EmbeddingModel)
	assert.JSONEq(t, `[0.5,0.25]`, string(chunks[0].Embedding))
}

func TestMySQLUsersAndRecords(t *testing.T) {
	m := newTestMySQL(t)
	ctx := context.Background()

	u := &models.User{Name: "HR", Email: uniqueEmail("hr"), PasswordHash: "hash", Role: "HR"}
	require.NoError(t, m.CreateUser(ctx, u))
	assert.ErrorIs(t, m.CreateUser(ctx, &models.User{Name: "HR", Email: u.Email, PasswordHash: "x"}), ErrDuplicate)

	require.NoError(t, m.SetOTP(ctx, u.ID, "123456", time.Now().Add(time.Minute)))
	found, err := m.FindByEmail(ctx, u.Email)
	require.NoError(t, err)
	require.NotNil(t, found.OTP)
	assert.Equal(t, "123456", *found.OTP)

	require.NoError(t, m.ResetPassword(ctx, u.ID, "new-hash"))
	found, err = m.FindByEmail(ctx, u.Email)
	require.NoError(t, err)
	assert.Nil(t, found.OTP)
	assert.Equal(t, "new-hash", found.PasswordHash)

	r := &models.Record{UserID: u.ID, Kind: "interview", Data: []byte(`{"status":"scheduled"}`)}
	require.NoError(t, m.CreateRecord(ctx, r))
	_, err = m.GetRecord(ctx, u.ID+1, "interview", r.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = m.GetRecord(ctx, u.ID, "chat", r.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	updated, err := m.UpdateRecord(ctx, u.ID, "interview", r.ID, []byte(`{"status":"done"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"done"}`, string(updated.Data))

	list, err := m.ListRecords(ctx, u.ID, "interview")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func chunksOf(rows []models.ContentChunk, employeeID uint64) []models.ContentChunk {
	var out []models.ContentChunk
	for _, r := range rows {
		if r.EmployeeID == employeeID {
			out = append(out, r)
		}
	}
	return out
}
