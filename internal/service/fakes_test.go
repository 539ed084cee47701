package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cupidlink/mail-dispatcher/internal/channel"
	"github.com/cupidlink/mail-dispatcher/internal/domain"
	"github.com/cupidlink/mail-dispatcher/internal/repository"
)

type fakeTrackingRepo struct {
	mu      sync.Mutex
	records map[string]*domain.TrackingRecord
	failAll bool
	calls   []string
}

func newFakeTrackingRepo() *fakeTrackingRepo {
	return &fakeTrackingRepo{records: map[string]*domain.TrackingRecord{}}
}

func (f *fakeTrackingRepo) record(call string) error {
	f.calls = append(f.calls, call)
	if f.failAll {
		return fmt.Errorf("tracking store unavailable")
	}
	return nil
}

func (f *fakeTrackingRepo) GetByNotificationID(_ context.Context, notificationID string) (*domain.TrackingRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("get"); err != nil {
		return nil, err
	}
	record, ok := f.records[notificationID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *record
	return &copied, nil
}

func (f *fakeTrackingRepo) MarkPending(_ context.Context, notificationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("pending"); err != nil {
		return err
	}
	existing, ok := f.records[notificationID]
	if ok {
		if existing.Status.IsTerminal() {
			return domain.ErrConflict
		}
		existing.Status = domain.StatusPending
		return nil
	}
	f.records[notificationID] = &domain.TrackingRecord{
		ID:             "rec-" + notificationID,
		NotificationID: notificationID,
		Status:         domain.StatusPending,
	}
	return nil
}

func (f *fakeTrackingRepo) MarkSent(_ context.Context, notificationID string, sentAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("sent"); err != nil {
		return err
	}
	record, ok := f.records[notificationID]
	if !ok || record.Status.IsTerminal() {
		return domain.ErrConflict
	}
	record.Status = domain.StatusSent
	record.SentAt = &sentAt
	return nil
}

func (f *fakeTrackingRepo) MarkFailed(_ context.Context, notificationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("failed"); err != nil {
		return err
	}
	record, ok := f.records[notificationID]
	if !ok || record.Status.IsTerminal() {
		return domain.ErrConflict
	}
	record.Status = domain.StatusFailed
	return nil
}

func (f *fakeTrackingRepo) MarkRetry(_ context.Context, notificationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("retry"); err != nil {
		return err
	}
	record, ok := f.records[notificationID]
	if !ok || record.Status.IsTerminal() {
		return domain.ErrConflict
	}
	record.Status = domain.StatusRetry
	record.RetryCount++
	return nil
}

func (f *fakeTrackingRepo) statusOf(notificationID string) (domain.DeliveryStatus, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.records[notificationID]
	if !ok {
		return "", false
	}
	return record.Status, true
}

func (f *fakeTrackingRepo) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeDirectory struct {
	emails map[string]string
	err    error
}

func (f *fakeDirectory) GetEmail(_ context.Context, userID string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	email, ok := f.emails[userID]
	if !ok {
		return "", domain.ErrNotFound
	}
	return email, nil
}

type fakeTemplateRepo struct {
	templates map[string]*domain.EmailTemplate
	err       error
}

func templateKey(name, language string) string {
	return name + "/" + language
}

func (f *fakeTemplateRepo) GetActiveByName(_ context.Context, name, language string) (*domain.EmailTemplate, error) {
	if f.err != nil {
		return nil, f.err
	}
	tpl, ok := f.templates[templateKey(name, language)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return tpl, nil
}

type fakeProfileRepo struct {
	byID map[string]*domain.OutboundProfile
	def  *domain.OutboundProfile
	err  error
}

func (f *fakeProfileRepo) GetByID(_ context.Context, id string) (*domain.OutboundProfile, error) {
	if f.err != nil {
		return nil, f.err
	}
	profile, ok := f.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return profile, nil
}

func (f *fakeProfileRepo) GetDefault(_ context.Context) (*domain.OutboundProfile, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.def == nil {
		return nil, domain.ErrNotFound
	}
	return f.def, nil
}

type fakeSender struct {
	mu        sync.Mutex
	requests  []channel.SendRequest
	err       error
	result    *channel.SendResult
	nilResult bool
	block     chan struct{}
}

func (f *fakeSender) Send(_ context.Context, req channel.SendRequest) (*channel.SendResult, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	err, result, nilResult, block := f.err, f.result, f.nilResult, f.block
	f.mu.Unlock()

	if block != nil {
		<-block
	}
	if err != nil {
		return nil, err
	}
	if nilResult {
		return nil, nil
	}
	if result != nil {
		return result, nil
	}
	return &channel.SendResult{Method: "relay", MessageID: "msg-1"}, nil
}

func (f *fakeSender) sendCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeSender) lastRequest() (channel.SendRequest, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		return channel.SendRequest{}, false
	}
	return f.requests[len(f.requests)-1], true
}

type fakeLimiter struct {
	mu    sync.Mutex
	waits int
	err   error
}

func (f *fakeLimiter) Allow(context.Context, string) (bool, error) {
	return true, nil
}

func (f *fakeLimiter) Wait(_ context.Context, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.waits++
	return f.err
}

type fakeEnricher struct {
	vars map[string]any
}

func (f *fakeEnricher) Variables(context.Context, domain.Notification) map[string]any {
	return f.vars
}

type fakeNotificationRepo struct {
	mu            sync.Mutex
	notifications []domain.Notification
	err           error
	lastSince     time.Time
	lastScope     repository.ListScope
	lastLimit     int
	listCalls     int
}

func (f *fakeNotificationRepo) setNotifications(batch []domain.Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notifications = batch
}

func (f *fakeNotificationRepo) listCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}

func (f *fakeNotificationRepo) ListCreatedSince(
	_ context.Context,
	since time.Time,
	scope repository.ListScope,
	limit int,
) ([]domain.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	f.lastSince = since
	f.lastScope = scope
	f.lastLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	if limit > 0 && len(f.notifications) > limit {
		return f.notifications[:limit], nil
	}
	return f.notifications, nil
}
