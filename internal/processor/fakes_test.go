package processor

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"prosterio-go/internal/extractor"
	"prosterio-go/internal/storage"
	"prosterio-go/internal/storage/models"

	"gorm.io/datatypes"
)

// memEmployeeRepo 内存实现，InTx 失败时恢复快照
type memEmployeeRepo struct {
	mu        sync.Mutex
	nextID    uint64
	nextChunk uint64
	employees map[uint64]models.Employee
	chunks    []models.ContentChunk
	outbox    []models.OutboxMessage

	// failOn 非空时，对应操作返回 errFake
	failOn string
}

var errFake = errors.New("fake store failure")

func newMemEmployeeRepo() *memEmployeeRepo {
	return &memEmployeeRepo{employees: map[uint64]models.Employee{}}
}

type memTx struct{ r *memEmployeeRepo }

func (r *memEmployeeRepo) InTx(ctx context.Context, fn func(tx storage.EmployeeTx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapEmployees := make(map[uint64]models.Employee, len(r.employees))
	for k, v := range r.employees {
		snapEmployees[k] = v
	}
	snapChunks := append([]models.ContentChunk(nil), r.chunks...)
	snapOutbox := append([]models.OutboxMessage(nil), r.outbox...)
	snapNext, snapNextChunk := r.nextID, r.nextChunk

	if err := fn(memTx{r: r}); err != nil {
		r.employees, r.chunks, r.outbox = snapEmployees, snapChunks, snapOutbox
		r.nextID, r.nextChunk = snapNext, snapNextChunk
		return err
	}
	return nil
}

func (r *memEmployeeRepo) ListEmployees(ctx context.Context, userID uint64) ([]models.Employee, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Employee
	for _, e := range r.employees {
		if userID == 0 || e.UserID == userID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memEmployeeRepo) GetEmployee(ctx context.Context, userID, id uint64) (*models.Employee, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.get(userID, id)
}

func (r *memEmployeeRepo) get(userID, id uint64) (*models.Employee, error) {
	e, ok := r.employees[id]
	if !ok || (userID != 0 && e.UserID != userID) {
		return nil, storage.ErrNotFound
	}
	return &e, nil
}

func (r *memEmployeeRepo) chunksOf(employeeID uint64) []models.ContentChunk {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.ContentChunk
	for _, c := range r.chunks {
		if c.EmployeeID == employeeID {
			out = append(out, c)
		}
	}
	return out
}

func (t memTx) FindForMerge(ctx context.Context, id uint64, email string) (*models.Employee, error) {
	if id != 0 {
		if e, ok := t.r.employees[id]; ok {
			return &e, nil
		}
	}
	for _, e := range t.r.employees {
		if e.Email == email {
			e := e
			return &e, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (t memTx) GetEmployee(ctx context.Context, userID, id uint64) (*models.Employee, error) {
	return t.r.get(userID, id)
}

func (t memTx) CreateEmployee(ctx context.Context, e *models.Employee) error {
	if t.r.failOn == "create" {
		return errFake
	}
	for _, other := range t.r.employees {
		if other.Email == e.Email {
			return storage.ErrDuplicate
		}
	}
	t.r.nextID++
	e.ID = t.r.nextID
	t.r.employees[e.ID] = *e
	return nil
}

func (t memTx) UpdateEmployee(ctx context.Context, e *models.Employee) error {
	if _, ok := t.r.employees[e.ID]; !ok {
		return storage.ErrNotFound
	}
	for _, other := range t.r.employees {
		if other.ID != e.ID && other.Email == e.Email {
			return storage.ErrDuplicate
		}
	}
	t.r.employees[e.ID] = *e
	return nil
}

func (t memTx) MarkResigned(ctx context.Context, id uint64, at time.Time) error {
	e, ok := t.r.employees[id]
	if !ok {
		return storage.ErrNotFound
	}
	e.ResignStatus, e.ResignDate = true, &at
	t.r.employees[id] = e
	return nil
}

func (t memTx) DeleteEmployee(ctx context.Context, id uint64) error {
	delete(t.r.employees, id)
	return nil
}

func (t memTx) ReplaceChunks(ctx context.Context, employeeIDs []uint64, chunks []models.ContentChunk) error {
	if t.r.failOn == "chunks" {
		return errFake
	}
	drop := make(map[uint64]bool, len(employeeIDs))
	for _, id := range employeeIDs {
		drop[id] = true
	}
	kept := t.r.chunks[:0:0]
	for _, c := range t.r.chunks {
		if !drop[c.EmployeeID] {
			kept = append(kept, c)
		}
	}
	for _, c := range chunks {
		t.r.nextChunk++
		c.ID = t.r.nextChunk
		kept = append(kept, c)
	}
	t.r.chunks = kept
	return nil
}

func (t memTx) DeleteChunks(ctx context.Context, employeeID uint64) (int64, error) {
	var n int64
	kept := t.r.chunks[:0:0]
	for _, c := range t.r.chunks {
		if c.EmployeeID == employeeID {
			n++
			continue
		}
		kept = append(kept, c)
	}
	t.r.chunks = kept
	return n, nil
}

func (t memTx) EnqueueOutbox(ctx context.Context, msg *models.OutboxMessage) error {
	t.r.outbox = append(t.r.outbox, *msg)
	return nil
}

// memCache 统计缓存
type memCache struct {
	mu    sync.Mutex
	gen   int64
	data  map[string]any
	bumps int
	sets  int
}

func newMemCache() *memCache { return &memCache{data: map[string]any{}} }

func (c *memCache) BumpAnalyticsGeneration(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.bumps++
	return nil
}

func (c *memCache) AnalyticsGeneration(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen, nil
}

func (c *memCache) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return false, nil
	}
	*(dst.(*Analytics)) = *(v.(*Analytics))
	return true, nil
}

func (c *memCache) SetJSON(ctx context.Context, key string, v any, expiration time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = v
	c.sets++
	return nil
}

// memUserRepo 用户存储
type memUserRepo struct {
	users  map[string]*models.User
	nextID uint64
}

func newMemUserRepo() *memUserRepo { return &memUserRepo{users: map[string]*models.User{}} }

func (r *memUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	u, ok := r.users[email]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *memUserRepo) CreateUser(ctx context.Context, u *models.User) error {
	if _, ok := r.users[u.Email]; ok {
		return storage.ErrDuplicate
	}
	r.nextID++
	u.ID = r.nextID
	cp := *u
	r.users[u.Email] = &cp
	return nil
}

func (r *memUserRepo) byID(id uint64) *models.User {
	for _, u := range r.users {
		if u.ID == id {
			return u
		}
	}
	return nil
}

func (r *memUserRepo) SetOTP(ctx context.Context, userID uint64, otp string, expiry time.Time) error {
	u := r.byID(userID)
	if u == nil {
		return storage.ErrNotFound
	}
	u.OTP, u.OTPExpiry = &otp, &expiry
	return nil
}

func (r *memUserRepo) ResetPassword(ctx context.Context, userID uint64, passwordHash string) error {
	u := r.byID(userID)
	if u == nil {
		return storage.ErrNotFound
	}
	u.PasswordHash, u.OTP, u.OTPExpiry = passwordHash, nil, nil
	return nil
}

// memRecordRepo 通用记录存储
type memRecordRepo struct {
	rows   []models.Record
	nextID uint64
}

func (r *memRecordRepo) CreateRecord(ctx context.Context, rec *models.Record) error {
	r.nextID++
	rec.ID = r.nextID
	r.rows = append(r.rows, *rec)
	return nil
}

func (r *memRecordRepo) ListRecords(ctx context.Context, userID uint64, kind string) ([]models.Record, error) {
	var out []models.Record
	for _, row := range r.rows {
		if row.Kind == kind && (userID == 0 || row.UserID == userID) {
			out = append(out, row)
		}
	}
	return out, nil
}

func (r *memRecordRepo) GetRecord(ctx context.Context, userID uint64, kind string, id uint64) (*models.Record, error) {
	for _, row := range r.rows {
		if row.ID == id && row.Kind == kind && (userID == 0 || row.UserID == userID) {
			cp := row
			return &cp, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (r *memRecordRepo) UpdateRecord(ctx context.Context, userID uint64, kind string, id uint64, data datatypes.JSON) (*models.Record, error) {
	for i, row := range r.rows {
		if row.ID == id && row.Kind == kind && (userID == 0 || row.UserID == userID) {
			r.rows[i].Data = data
			cp := r.rows[i]
			return &cp, nil
		}
	}
	return nil, storage.ErrNotFound
}

// memAnalyticsRepo 统计查询，calls 记录调用次数
type memAnalyticsRepo struct {
	calls int
	err   error
}

func (r *memAnalyticsRepo) JobTitleDistribution(ctx context.Context, userID uint64) ([]storage.JobTitleCount, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return []storage.JobTitleCount{{JobTitle: "Engineer", TotalEmployees: 2}}, nil
}

func (r *memAnalyticsRepo) ExperienceLevelDistribution(ctx context.Context, userID uint64) ([]storage.ExperienceLevelCount, error) {
	return []storage.ExperienceLevelCount{{ExperienceLevel: "Junior", TotalEmployees: 2}}, nil
}

func (r *memAnalyticsRepo) TopSkills(ctx context.Context, userID uint64, limit int) ([]storage.SkillCount, error) {
	return nil, nil
}

func (r *memAnalyticsRepo) EducationToJobTitle(ctx context.Context, userID uint64) ([]storage.EducationJobTitleCount, error) {
	return nil, nil
}

// stubMailer 记录发出的邮件
type stubMailer struct {
	err  error
	sent []string
	body string
}

func (m *stubMailer) Send(ctx context.Context, to, subject, body string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, to)
	m.body = body
	return nil
}

// stubBatch 按文件名返回预设结果
type stubBatch struct {
	seen []string
}

func (b *stubBatch) Batch(ctx context.Context, files []extractor.File, workers int) []extractor.FileResult {
	out := make([]extractor.FileResult, len(files))
	for i, f := range files {
		b.seen = append(b.seen, f.Name)
		if f.Name == "broken.pdf" {
			out[i] = extractor.FileResult{Filename: f.Name, Error: "no text", Err: extractor.ErrNoTextExtracted}
			continue
		}
		rec := newRecord("Jane "+f.Name, f.Name+"@x.com", "Engineer")
		out[i] = extractor.FileResult{Filename: f.Name, Data: &rec}
	}
	return out
}
