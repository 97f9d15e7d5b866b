package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/digkill/visionhub/internal/models"
	"github.com/digkill/visionhub/internal/provider"
	"github.com/digkill/visionhub/internal/repository"
)

// memStore is an in-memory stand-in for the MySQL repositories. A single
// mutex gives it the same all-or-nothing behaviour as the SQL transactions.
type memStore struct {
	mu        sync.Mutex
	credits   map[string]int
	items     map[string]models.MediaItem
	payments  map[string]*models.PaymentSubmission
	insertErr error
}

func newMemStore() *memStore {
	return &memStore{
		credits:  map[string]int{},
		items:    map[string]models.MediaItem{},
		payments: map[string]*models.PaymentSubmission{},
	}
}

func (m *memStore) balance(uid string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.credits[uid]
}

func (m *memStore) Credits(_ context.Context, uid string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.credits[uid]
	if !ok {
		return 0, repository.ErrUserNotFound
	}
	return c, nil
}

func (m *memStore) DebitCredits(_ context.Context, uid string, amount int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.debitLocked(uid, amount), nil
}

func (m *memStore) debitLocked(uid string, amount int) bool {
	if m.credits[uid] < amount {
		return false
	}
	m.credits[uid] -= amount
	return true
}

func (m *memStore) AddCredits(_ context.Context, uid string, amount int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.credits[uid]; !ok {
		return repository.ErrUserNotFound
	}
	m.credits[uid] += amount
	return nil
}

func (m *memStore) Insert(_ context.Context, item *models.MediaItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	m.items[item.ID] = *item
	return nil
}

func (m *memStore) InsertCharged(_ context.Context, item *models.MediaItem, cost int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return false, m.insertErr
	}
	if !m.debitLocked(item.UserID, cost) {
		return false, nil
	}
	m.items[item.ID] = *item
	return true, nil
}

func (m *memStore) ListByUser(_ context.Context, kind models.MediaKind, uid string) ([]models.MediaItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.MediaItem
	for _, item := range m.items {
		if item.Kind == kind && item.UserID == uid {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) GetByID(_ context.Context, kind models.MediaKind, id string) (*models.MediaItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok || item.Kind != kind {
		return nil, nil
	}
	return &item, nil
}

func (m *memStore) FindGroup(_ context.Context, uid, key string) ([]models.MediaItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.MediaItem
	for _, item := range m.items {
		if item.UserID != uid {
			continue
		}
		if item.PromptID == key || (item.PromptID == "" && item.Prompt == key) {
			out = append(out, item)
		}
	}
	return out, nil
}

func (m *memStore) DeleteItems(_ context.Context, items []models.MediaItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, item := range items {
		delete(m.items, item.ID)
	}
	return nil
}

func (m *memStore) itemCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

func (m *memStore) Create(_ context.Context, sub *models.PaymentSubmission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *sub
	m.payments[sub.ID] = &cp
	return nil
}

func (m *memStore) GetByIDPayment(id string) *models.PaymentSubmission {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.payments[id]
}

func (m *memStore) FindByReference(_ context.Context, reference string) (*models.PaymentSubmission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sub := range m.payments {
		if sub.ReferenceID == reference {
			cp := *sub
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) List(_ context.Context, pendingOnly bool) ([]models.PaymentSubmission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.PaymentSubmission
	for _, sub := range m.payments {
		if pendingOnly && sub.Approved {
			continue
		}
		out = append(out, *sub)
	}
	return out, nil
}

func (p paymentStore) ListByUser(_ context.Context, uid string) ([]models.PaymentSubmission, error) {
	m := p.memStore
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.PaymentSubmission
	for _, sub := range m.payments {
		if sub.UserID == uid {
			out = append(out, *sub)
		}
	}
	return out, nil
}

func (m *memStore) Approve(_ context.Context, id string) (*models.PaymentSubmission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.payments[id]
	if !ok {
		return nil, repository.ErrPaymentNotFound
	}
	if sub.Approved {
		return nil, repository.ErrPaymentAlreadyApproved
	}
	if _, ok := m.credits[sub.UserID]; !ok {
		return nil, repository.ErrUserNotFound
	}
	sub.Approved = true
	m.credits[sub.UserID] += sub.Credits
	cp := *sub
	return &cp, nil
}

// paymentStore adapts memStore to PaymentStore, whose GetByID clashes with MediaStore's.
type paymentStore struct{ *memStore }

func (p paymentStore) GetByID(_ context.Context, id string) (*models.PaymentSubmission, error) {
	return p.GetByIDPayment(id), nil
}

type memObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
	public  map[string]bool
	fail    error
}

func newMemObjects() *memObjects {
	return &memObjects{objects: map[string][]byte{}, public: map[string]bool{}}
}

func (o *memObjects) Upload(_ context.Context, data []byte, objectPath, _ string) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.fail != nil {
		return "", o.fail
	}
	o.objects[objectPath] = data
	return "https://cdn.test/" + objectPath, nil
}

func (o *memObjects) MakePublic(_ context.Context, objectPath string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.objects[objectPath]; !ok {
		return errors.New("no such object")
	}
	o.public[objectPath] = true
	return nil
}

func (o *memObjects) Delete(_ context.Context, objectPath string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.objects, objectPath)
	delete(o.public, objectPath)
	return nil
}

func (o *memObjects) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.objects)
}

func (o *memObjects) has(objectPath string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.objects[objectPath]
	return ok && o.public[objectPath]
}

// fakeProvider returns canned media or err. When block is set it waits for
// cancellation instead, which lets tests observe fail-fast behaviour.
type fakeProvider struct {
	mime     string
	err      error
	block    bool
	calls    atomic.Int32
	mu       sync.Mutex
	requests []provider.Request
	onCall   func()
}

func (p *fakeProvider) Generate(ctx context.Context, req provider.Request) (*provider.Media, error) {
	p.calls.Add(1)
	p.mu.Lock()
	p.requests = append(p.requests, req)
	p.mu.Unlock()
	if p.onCall != nil {
		p.onCall()
	}
	if p.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if p.err != nil {
		return nil, p.err
	}
	mime := p.mime
	if mime == "" {
		mime = "image/png"
	}
	return &provider.Media{Data: []byte("bytes:" + req.Model), MIMEType: mime}, nil
}

func (p *fakeProvider) lastRequest() provider.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.requests[len(p.requests)-1]
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) Notify(_ context.Context, kind models.MediaKind, uid string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, kind.Collection()+":"+uid)
	return nil
}

func (n *recordingNotifier) PaymentSubmitted(_ context.Context, sub *models.PaymentSubmission) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, "submitted:"+sub.ID)
	return nil
}

func (n *recordingNotifier) PaymentApproved(_ context.Context, sub *models.PaymentSubmission) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, "approved:"+sub.ID)
	return nil
}

func (n *recordingNotifier) list() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.events...)
}
