package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"alumnet/internal/models"

	"gorm.io/gorm"
)

// fakeUserRepo is an in-memory UserRepository for tests.
type fakeUserRepo struct {
	mu     sync.Mutex
	nextID uint
	users  map[uint]*models.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[uint]*models.User)}
}

func (r *fakeUserRepo) addUser(username string, role models.UserRole, approved bool) *models.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	user := &models.User{
		BaseModel: models.BaseModel{ID: r.nextID},
		Username:  username,
		Nickname:  username + "-nick",
		Role:      role,
		Approved:  approved,
	}
	r.users[user.ID] = user
	return user
}

func (r *fakeUserRepo) Create(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Username == user.Username {
			return gorm.ErrDuplicatedKey
		}
	}
	r.nextID++
	user.ID = r.nextID
	r.users[user.ID] = user
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id uint) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return user, nil
}

func (r *fakeUserRepo) GetByUsername(_ context.Context, username string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Username == username {
			return user, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == email && email != "" {
			return user, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeUserRepo) Update(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	r.users[user.ID] = user
	return nil
}

func (r *fakeUserRepo) Delete(_ context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, id)
	return nil
}

func (r *fakeUserRepo) SearchDirectory(_ context.Context, query string, role models.UserRole, currentUserID uint, limit int) ([]models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.User
	for _, user := range r.users {
		if user.ID == currentUserID || !user.Approved {
			continue
		}
		if role != "" && user.Role != role {
			continue
		}
		out = append(out, *user)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeUserRepo) ListPendingApproval(_ context.Context) ([]models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.User
	for _, user := range r.users {
		if !user.Approved && user.Role != models.RoleAdmin {
			out = append(out, *user)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeUserRepo) SetApproved(_ context.Context, id uint, approved bool) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return false, nil
	}
	user.Approved = approved
	return true, nil
}

func (r *fakeUserRepo) GetBasicInfoByID(_ context.Context, id uint) (*models.UserBasicInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return basicInfo(user), nil
}

func (r *fakeUserRepo) GetMultipleBasicInfoByIDs(_ context.Context, userIDs []uint) ([]*models.UserBasicInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.UserBasicInfo
	for _, id := range userIDs {
		if user, ok := r.users[id]; ok {
			out = append(out, basicInfo(user))
		}
	}
	return out, nil
}

func basicInfo(user *models.User) *models.UserBasicInfo {
	return &models.UserBasicInfo{
		ID:        user.ID,
		Username:  user.Username,
		Nickname:  user.Nickname,
		AvatarURL: user.AvatarURL,
		Role:      user.Role,
	}
}

// fakeConnectionRepo mirrors the store's semantics: canonical pair
// uniqueness on insert and conditional single-statement transitions.
type fakeConnectionRepo struct {
	mu     sync.Mutex
	nextID uint
	conns  map[uint]*models.Connection
	clock  time.Time

	// onCreate runs inside the next Create call, before the uniqueness
	// check, and is then cleared. It simulates a concurrent writer that
	// lands between the service's pre-check and its insert. It runs with
	// the lock held, so it must use insertLocked.
	onCreate func()
}

func newFakeConnectionRepo() *fakeConnectionRepo {
	return &fakeConnectionRepo{
		conns: make(map[uint]*models.Connection),
		clock: time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (r *fakeConnectionRepo) Create(_ context.Context, conn *models.Connection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.onCreate != nil {
		hook := r.onCreate
		r.onCreate = nil
		hook()
	}
	conn.EnsurePairOrder()
	for _, existing := range r.conns {
		if existing.PairLowID == conn.PairLowID && existing.PairHighID == conn.PairHighID {
			return gorm.ErrDuplicatedKey
		}
	}
	r.insertLocked(conn)
	return nil
}

// insertLocked stores a connection. Caller must hold the lock.
func (r *fakeConnectionRepo) insertLocked(conn *models.Connection) {
	conn.EnsurePairOrder()
	r.nextID++
	conn.ID = r.nextID
	r.clock = r.clock.Add(time.Second)
	conn.CreatedAt = r.clock
	conn.UpdatedAt = r.clock
	stored := *conn
	r.conns[conn.ID] = &stored
}

func (r *fakeConnectionRepo) FindBetween(_ context.Context, userID1, userID2 uint) (*models.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lo, hi := userID1, userID2
	if lo > hi {
		lo, hi = hi, lo
	}
	for _, conn := range r.conns {
		if conn.PairLowID == lo && conn.PairHighID == hi {
			copied := *conn
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeConnectionRepo) GetByID(_ context.Context, id uint) (*models.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn, ok := r.conns[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *conn
	return &copied, nil
}

func (r *fakeConnectionRepo) ListByParticipant(_ context.Context, userID uint) ([]models.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Connection
	for _, conn := range r.conns {
		if conn.Involves(userID) {
			out = append(out, *conn)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *fakeConnectionRepo) AcceptPending(_ context.Context, id, receiverID uint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn, ok := r.conns[id]
	if !ok || conn.ReceiverID != receiverID || conn.Status != models.ConnectionStatusPending {
		return false, nil
	}
	conn.Status = models.ConnectionStatusAccepted
	r.clock = r.clock.Add(time.Second)
	conn.UpdatedAt = r.clock
	return true, nil
}

func (r *fakeConnectionRepo) DeletePending(_ context.Context, id, receiverID uint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn, ok := r.conns[id]
	if !ok || conn.ReceiverID != receiverID || conn.Status != models.ConnectionStatusPending {
		return false, nil
	}
	delete(r.conns, id)
	return true, nil
}

func (r *fakeConnectionRepo) DeleteAccepted(_ context.Context, id, participantID uint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn, ok := r.conns[id]
	if !ok || !conn.Involves(participantID) || conn.Status != models.ConnectionStatusAccepted {
		return false, nil
	}
	delete(r.conns, id)
	return true, nil
}

// fakeMessageRepo is an in-memory MessageRepository for tests.
type fakeMessageRepo struct {
	mu       sync.Mutex
	nextID   uint
	messages map[uint]*models.Message
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{messages: make(map[uint]*models.Message)}
}

func (r *fakeMessageRepo) Create(_ context.Context, message *models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	message.ID = r.nextID
	message.CreatedAt = time.Now()
	stored := *message
	r.messages[message.ID] = &stored
	return nil
}

func (r *fakeMessageRepo) GetByID(_ context.Context, id uint) (*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	message, ok := r.messages[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *message
	return &copied, nil
}

func (r *fakeMessageRepo) ListBetween(_ context.Context, userID1, userID2 uint, limit, offset int) ([]*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Message
	for _, message := range r.messages {
		between := (message.SenderID == userID1 && message.RecipientID == userID2) ||
			(message.SenderID == userID2 && message.RecipientID == userID1)
		if between {
			copied := *message
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *fakeMessageRepo) MarkRead(_ context.Context, readerID, peerID uint) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	var count int64
	for _, message := range r.messages {
		if message.RecipientID == readerID && message.SenderID == peerID && message.ReadAt == nil {
			message.ReadAt = &now
			count++
		}
	}
	return count, nil
}

func (r *fakeMessageRepo) CountUnread(_ context.Context, recipientID uint) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, message := range r.messages {
		if message.RecipientID == recipientID && message.ReadAt == nil {
			count++
		}
	}
	return count, nil
}

// recordedEvent captures one produced Kafka payload.
type recordedEvent struct {
	Topic   string
	Key     string
	Payload []byte
}

// fakeProducer records produced events instead of talking to Kafka.
type fakeProducer struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (p *fakeProducer) SendMessage(_ context.Context, topic string, key []byte, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{Topic: topic, Key: string(key), Payload: payload})
	return nil
}

func (p *fakeProducer) Close() {}

func (p *fakeProducer) recorded() []recordedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]recordedEvent, len(p.events))
	copy(out, p.events)
	return out
}
