// Package repotest provides in-memory repositories for tests.
package repotest

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"vesper/internal/domain"
	"vesper/internal/repository"
	apperrors "vesper/pkg/errors"
)

// Store bundles the in-memory repositories so they can share users.
type Store struct {
	Users     *Users
	Messages  *Messages
	Activity  *Activity
	RateLimit *RateLimit
	Blob      *Blob
}

func NewStore() *Store {
	clock := &clock{}
	users := &Users{byID: make(map[int64]*domain.User), clock: clock}
	return &Store{
		Users:     users,
		Messages:  &Messages{users: users, clock: clock},
		Activity:  &Activity{users: users, clock: clock},
		RateLimit: &RateLimit{hits: make(map[string]*window)},
		Blob:      &Blob{objects: make(map[string]blobObject)},
	}
}

func (s *Store) Repositories() *repository.Repositories {
	return &repository.Repositories{
		User:      s.Users,
		Message:   s.Messages,
		Activity:  s.Activity,
		RateLimit: s.RateLimit,
		Blob:      s.Blob,
	}
}

// clock hands out strictly increasing timestamps so ordering by created_at is stable.
type clock struct {
	mu   sync.Mutex
	last time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := time.Now()
	if !t.After(c.last) {
		t = c.last.Add(time.Microsecond)
	}
	c.last = t
	return t
}

// Users

type Users struct {
	mu     sync.RWMutex
	byID   map[int64]*domain.User
	nextID int64
	clock  *clock
}

var _ repository.UserRepository = (*Users)(nil)

// Add stores a user as is, assigning an id and timestamp when missing.
func (r *Users) Add(user *domain.User) *domain.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.insert(user)
	return user
}

func (r *Users) insert(user *domain.User) {
	if user.ID == 0 {
		r.nextID++
		user.ID = r.nextID
	} else if user.ID > r.nextID {
		r.nextID = user.ID
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = r.clock.now()
	}
	if user.Status == "" {
		user.Status = domain.UserStatusActive
	}
	if user.Role == "" {
		user.Role = domain.RoleClient
	}
	r.byID[user.ID] = user
}

func (r *Users) Create(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byID {
		if u.Email == user.Email || u.Username == user.Username {
			return apperrors.ErrUserAlreadyExists
		}
		if user.TelegramID != nil && u.TelegramID != nil && *u.TelegramID == *user.TelegramID {
			return apperrors.ErrUserAlreadyExists
		}
	}
	r.insert(user)
	return nil
}

func (r *Users) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if u, ok := r.byID[id]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, apperrors.ErrUserNotFound
}

func (r *Users) find(match func(*domain.User) bool) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.byID {
		if match(u) {
			copied := *u
			return &copied, nil
		}
	}
	return nil, apperrors.ErrUserNotFound
}

func (r *Users) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.find(func(u *domain.User) bool { return u.Email == email })
}

func (r *Users) GetByTelegramID(ctx context.Context, telegramID string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.TelegramID != nil && *u.TelegramID == telegramID })
}

func (r *Users) ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error) {
	email = strings.ToLower(email)
	_, err := r.find(func(u *domain.User) bool { return u.Email == email || u.Username == username })
	return err == nil, nil
}

func (r *Users) UpdateAvatar(ctx context.Context, id int64, avatarURL string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return apperrors.ErrUserNotFound
	}
	u.AvatarURL = &avatarURL
	return nil
}

func (r *Users) List(ctx context.Context) ([]*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	users := make([]*domain.User, 0, len(r.byID))
	for _, u := range r.byID {
		copied := *u
		users = append(users, &copied)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.After(users[j].CreatedAt) })
	return users, nil
}

func (r *Users) Search(ctx context.Context, query string, excludeID int64, limit int) ([]*domain.UserSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	q := strings.ToLower(query)
	out := make([]*domain.UserSummary, 0)
	for _, u := range r.byID {
		if u.ID == excludeID || !u.IsActive() {
			continue
		}
		if strings.Contains(strings.ToLower(u.Username), q) || strings.Contains(strings.ToLower(u.DisplayName), q) {
			summary := u.Summary()
			out = append(out, &summary)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *Users) CountByStatus(ctx context.Context, status string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var n int64
	for _, u := range r.byID {
		if u.Status == status {
			n++
		}
	}
	return n, nil
}

func (r *Users) summary(id int64) domain.UserSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if u, ok := r.byID[id]; ok {
		return u.Summary()
	}
	return domain.UserSummary{ID: id}
}

// Messages

type Messages struct {
	mu       sync.RWMutex
	messages []domain.Message
	nextID   int64
	users    *Users
	clock    *clock

	// CreateErr, when set, fails every Create.
	CreateErr error
	// CreateHook runs before every Create; tests use it to block or observe appends.
	CreateHook func(ctx context.Context, m *domain.Message) error
}

var _ repository.MessageRepository = (*Messages)(nil)

func (r *Messages) view(m domain.Message) *domain.MessageView {
	sender := r.users.summary(m.SenderID)
	return &domain.MessageView{
		Message:        m,
		SenderName:     sender.DisplayName,
		SenderAvatar:   sender.AvatarURL,
		SenderUsername: sender.Username,
	}
}

func (r *Messages) Create(ctx context.Context, message *domain.Message) (*domain.MessageView, error) {
	if r.CreateHook != nil {
		if err := r.CreateHook(ctx, message); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.CreateErr != nil {
		return nil, r.CreateErr
	}

	r.mu.Lock()
	r.nextID++
	message.ID = r.nextID
	message.CreatedAt = r.clock.now()
	message.Read = false
	r.messages = append(r.messages, *message)
	r.mu.Unlock()

	return r.view(*message), nil
}

func (r *Messages) ListByChat(ctx context.Context, chatID string, limit int) ([]*domain.MessageView, error) {
	r.mu.RLock()
	var matched []domain.Message
	for _, m := range r.messages {
		if m.ChatID == chatID {
			matched = append(matched, m)
		}
	}
	r.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})
	if limit > 0 && len(matched) > limit {
		matched = matched[len(matched)-limit:]
	}

	out := make([]*domain.MessageView, 0, len(matched))
	for _, m := range matched {
		out = append(out, r.view(m))
	}
	return out, nil
}

func (r *Messages) ListByParticipant(ctx context.Context, userID int64) ([]*domain.ParticipantMessage, error) {
	r.mu.RLock()
	var matched []domain.Message
	for _, m := range r.messages {
		if m.SenderID == userID || m.ReceiverID == userID {
			matched = append(matched, m)
		}
	}
	r.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	out := make([]*domain.ParticipantMessage, 0, len(matched))
	for _, m := range matched {
		out = append(out, &domain.ParticipantMessage{
			Message:  m,
			Sender:   r.users.summary(m.SenderID),
			Receiver: r.users.summary(m.ReceiverID),
		})
	}
	return out, nil
}

func (r *Messages) CountUnread(ctx context.Context, chatID string, userID int64) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, m := range r.messages {
		if m.ChatID == chatID && m.ReceiverID == userID && !m.Read {
			n++
		}
	}
	return n, nil
}

func (r *Messages) CountUnreadByChat(ctx context.Context, userID int64) (map[string]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := make(map[string]int)
	for _, m := range r.messages {
		if m.ReceiverID == userID && !m.Read {
			counts[m.ChatID]++
		}
	}
	return counts, nil
}

func (r *Messages) MarkRead(ctx context.Context, chatID string, userID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for i := range r.messages {
		m := &r.messages[i]
		if m.ChatID == chatID && m.ReceiverID == userID && !m.Read {
			m.Read = true
			n++
		}
	}
	return n, nil
}

func (r *Messages) Count(ctx context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.messages)), nil
}

// Activity

type Activity struct {
	mu      sync.RWMutex
	entries []domain.ActivityLog
	nextID  int64
	users   *Users
	clock   *clock

	// CreateErr, when set, fails every Create.
	CreateErr error
	// CreateHook runs before every Create; a non-nil error is returned as is.
	CreateHook func(ctx context.Context, entry *domain.ActivityLog) error
}

var _ repository.ActivityRepository = (*Activity)(nil)

func (r *Activity) Create(ctx context.Context, entry *domain.ActivityLog) error {
	if r.CreateHook != nil {
		if err := r.CreateHook(ctx, entry); err != nil {
			return err
		}
	}
	if r.CreateErr != nil {
		return r.CreateErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	entry.ID = r.nextID
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = r.clock.now()
	}
	r.entries = append(r.entries, *entry)
	return nil
}

// Entries returns a copy of the log, oldest first.
func (r *Activity) Entries() []domain.ActivityLog {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.ActivityLog(nil), r.entries...)
}

func (r *Activity) ListRecent(ctx context.Context, limit int) ([]*domain.ActivityView, error) {
	entries := r.Entries()
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].CreatedAt.After(entries[j].CreatedAt) })
	if len(entries) > limit {
		entries = entries[:limit]
	}
	out := make([]*domain.ActivityView, 0, len(entries))
	for _, e := range entries {
		out = append(out, &domain.ActivityView{ActivityLog: e, User: r.users.summary(e.UserID)})
	}
	return out, nil
}

func (r *Activity) CountByActionSince(ctx context.Context, action string, since time.Time) (int64, error) {
	var n int64
	for _, e := range r.Entries() {
		if e.Action == action && !e.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (r *Activity) CountByStatus(ctx context.Context, status string) (int64, error) {
	var n int64
	for _, e := range r.Entries() {
		if e.Status == status {
			n++
		}
	}
	return n, nil
}

// RateLimit

type window struct {
	count   int64
	expires time.Time
}

type RateLimit struct {
	mu   sync.Mutex
	hits map[string]*window
}

var _ repository.RateLimitRepository = (*RateLimit)(nil)

func (r *RateLimit) Hit(ctx context.Context, key string, d time.Duration) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	w, ok := r.hits[key]
	if !ok || now.After(w.expires) {
		w = &window{expires: now.Add(d)}
		r.hits[key] = w
	}
	w.count++
	return w.count, nil
}

// Blob

type blobObject struct {
	data        []byte
	contentType string
	modTime     time.Time
}

type Blob struct {
	mu      sync.RWMutex
	objects map[string]blobObject
}

var _ repository.BlobRepository = (*Blob)(nil)

func (r *Blob) Put(ctx context.Context, name, contentType string, data io.Reader) (*repository.BlobInfo, error) {
	b, err := io.ReadAll(data)
	if err != nil {
		return nil, err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	obj := blobObject{data: b, contentType: contentType, modTime: time.Now()}

	r.mu.Lock()
	r.objects[name] = obj
	r.mu.Unlock()

	return &repository.BlobInfo{Name: name, Size: uint64(len(b)), ContentType: contentType, ModTime: obj.modTime}, nil
}

func (r *Blob) Open(ctx context.Context, name string) (io.ReadCloser, *repository.BlobInfo, error) {
	r.mu.RLock()
	obj, ok := r.objects[name]
	r.mu.RUnlock()
	if !ok {
		return nil, nil, apperrors.ErrNotFound
	}
	info := &repository.BlobInfo{Name: name, Size: uint64(len(obj.data)), ContentType: obj.contentType, ModTime: obj.modTime}
	return io.NopCloser(bytes.NewReader(obj.data)), info, nil
}

func (r *Blob) Delete(ctx context.Context, name string) error {
	r.mu.Lock()
	delete(r.objects, name)
	r.mu.Unlock()
	return nil
}

func (r *Blob) Ping() bool { return true }

// Names lists the stored object names.
func (r *Blob) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.objects))
	for name := range r.objects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
