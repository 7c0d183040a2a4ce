package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"letsconnect/internal/models"
	"letsconnect/internal/repositories"
)

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*models.Identity
	err   error
}

func newFakeUserRepo(identities ...*models.Identity) *fakeUserRepo {
	r := &fakeUserRepo{users: make(map[string]*models.Identity)}
	for _, i := range identities {
		r.users[i.Email] = i
	}
	return r
}

func (r *fakeUserRepo) FindByEmail(_ context.Context, email string) (*models.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	u, ok := r.users[email]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

type fakeOTPRepo struct {
	mu        sync.Mutex
	records   map[string]*models.OTPRecord
	createErr error
}

func newFakeOTPRepo() *fakeOTPRepo {
	return &fakeOTPRepo{records: make(map[string]*models.OTPRecord)}
}

func otpKey(email, token string) string {
	return email + "|" + token
}

func (r *fakeOTPRepo) Create(_ context.Context, rec *models.OTPRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	if _, ok := r.records[otpKey(rec.Email, rec.SessionToken)]; ok {
		return repositories.ErrConflict
	}
	for _, existing := range r.records {
		if existing.Email == rec.Email && existing.Status == models.OTPStatusPending && rec.Status == models.OTPStatusPending {
			return repositories.ErrConflict
		}
	}
	cp := *rec
	r.records[otpKey(rec.Email, rec.SessionToken)] = &cp
	return nil
}

func (r *fakeOTPRepo) FindByEmailAndToken(_ context.Context, email, token string) (*models.OTPRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[otpKey(email, token)]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (r *fakeOTPRepo) TransitionStatus(_ context.Context, email, token string, from, to models.OTPStatus, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[otpKey(email, token)]
	if !ok || rec.Status != from {
		return false, nil
	}
	rec.Status = to
	rec.UpdatedAt = at
	if to == models.OTPStatusVerified {
		t := at
		rec.VerifiedAt = &t
	}
	return true, nil
}

func (r *fakeOTPRepo) RevokePending(_ context.Context, email string, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, rec := range r.records {
		if rec.Email == email && rec.Status == models.OTPStatusPending {
			rec.Status = models.OTPStatusRevoked
			rec.UpdatedAt = at
			n++
		}
	}
	return n, nil
}

func (r *fakeOTPRepo) ClearExpiredUnverified(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, rec := range r.records {
		if rec.Status == models.OTPStatusVerified || now.Before(rec.ExpiresAt) {
			continue
		}
		if rec.Code == "" && rec.Status != models.OTPStatusPending {
			continue
		}
		rec.Code = ""
		if rec.Status == models.OTPStatusPending {
			rec.Status = models.OTPStatusExpired
		}
		rec.UpdatedAt = now
		n++
	}
	return n, nil
}

func (r *fakeOTPRepo) byEmail(email string) []*models.OTPRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.OTPRecord
	for _, rec := range r.records {
		if rec.Email == email {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out
}

type fakeActivityRepo struct {
	mu      sync.Mutex
	entries []models.Activity
	err     error
}

func (r *fakeActivityRepo) Create(_ context.Context, a *models.Activity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.entries = append(r.entries, *a)
	return nil
}

func (r *fakeActivityRepo) types() []models.ActivityType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.ActivityType, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Type)
	}
	return out
}

type sentEmail struct {
	to, subject, body string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentEmail
	err  error
}

func (m *fakeMailer) SendEmail(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentEmail{to: to, subject: subject, body: body})
	return nil
}

func (m *fakeMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

var errBoom = errors.New("boom")
