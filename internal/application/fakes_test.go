package application

import (
	"context"
	"errors"
	"sync"
	"time"

	"slack-salesforce-link/internal/domain"
	"slack-salesforce-link/internal/ports"
)

// memStore is an in-memory CredentialStore for tests. It honors the same
// contract as the Mongo store: atomic single-use consume, expiry checked at
// consume time, ErrNotFound sentinels.
type memStore struct {
	mu       sync.Mutex
	installs map[string]*domain.Installation
	auths    map[string]*domain.CrmAuthorization
	requests map[string]*domain.LinkRequest
	now      func() time.Time

	// failing simulates a backend outage on every call; failAuthPuts only
	// on PutAuthorization, for testing failures after the state is spent.
	failing      bool
	failAuthPuts bool
}

func newMemStore() *memStore {
	return &memStore{
		installs: make(map[string]*domain.Installation),
		auths:    make(map[string]*domain.CrmAuthorization),
		requests: make(map[string]*domain.LinkRequest),
		now:      time.Now,
	}
}

func (s *memStore) fail() error {
	if s.failing {
		return domain.StoreUnavailable(errors.New("backend down"))
	}
	return nil
}

func (s *memStore) PutInstallation(_ context.Context, inst *domain.Installation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return err
	}
	cp := *inst
	cp.UpdatedAt = s.now()
	if existing, ok := s.installs[inst.WorkspaceID]; ok {
		cp.CreatedAt = existing.CreatedAt
	} else {
		cp.CreatedAt = cp.UpdatedAt
	}
	s.installs[inst.WorkspaceID] = &cp
	return nil
}

func (s *memStore) GetInstallation(_ context.Context, workspaceID string) (*domain.Installation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return nil, err
	}
	inst, ok := s.installs[workspaceID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *inst
	return &cp, nil
}

func (s *memStore) DeleteInstallation(_ context.Context, workspaceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return err
	}
	if _, ok := s.installs[workspaceID]; !ok {
		return domain.ErrNotFound
	}
	delete(s.installs, workspaceID)
	return nil
}

func (s *memStore) PutAuthorization(_ context.Context, auth *domain.CrmAuthorization) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return err
	}
	if s.failAuthPuts {
		return domain.StoreUnavailable(errors.New("backend down"))
	}
	cp := *auth
	s.auths[auth.WorkspaceID] = &cp
	return nil
}

func (s *memStore) GetAuthorization(_ context.Context, workspaceID string) (*domain.CrmAuthorization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return nil, err
	}
	auth, ok := s.auths[workspaceID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *auth
	return &cp, nil
}

func (s *memStore) ClearAuthorization(_ context.Context, workspaceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return err
	}
	delete(s.auths, workspaceID)
	return nil
}

func (s *memStore) CreateLinkRequest(_ context.Context, req *domain.LinkRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return err
	}
	cp := *req
	s.requests[req.State] = &cp
	return nil
}

func (s *memStore) ConsumeLinkRequest(_ context.Context, state string) (*domain.LinkRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return nil, err
	}
	req, ok := s.requests[state]
	if !ok || req.Expired(s.now()) {
		return nil, domain.ErrNotFound
	}
	delete(s.requests, state)
	cp := *req
	return &cp, nil
}

func (s *memStore) SweepExpiredLinkRequests(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return 0, err
	}
	var swept int64
	for state, req := range s.requests {
		if req.Expired(s.now()) {
			delete(s.requests, state)
			swept++
		}
	}
	return swept, nil
}

var _ ports.CredentialStore = (*memStore)(nil)

// fakeSalesforce is a scripted SalesforceClient.
type fakeSalesforce struct {
	exchangeToken *ports.OAuthToken
	exchangeErr   error

	refreshToken *ports.OAuthToken
	refreshErr   error
	refreshCalls int

	identity    *domain.CrmIdentity
	identityErr error

	record *domain.CrmUserRecord
	// recordErrs is consumed one per GetUserRecord call; nil entries mean
	// success. Once drained, calls succeed.
	recordErrs  []error
	recordCalls int
}

func (f *fakeSalesforce) BuildAuthorizeURL(state string) string {
	return "https://login.salesforce.example/authorize?state=" + state
}

func (f *fakeSalesforce) ExchangeCode(context.Context, string) (*ports.OAuthToken, error) {
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	return f.exchangeToken, nil
}

func (f *fakeSalesforce) Refresh(context.Context, string) (*ports.OAuthToken, error) {
	f.refreshCalls++
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return f.refreshToken, nil
}

func (f *fakeSalesforce) UserInfo(context.Context, string, string) (*domain.CrmIdentity, error) {
	if f.identityErr != nil {
		return nil, f.identityErr
	}
	return f.identity, nil
}

func (f *fakeSalesforce) GetUserRecord(context.Context, *domain.CrmAuthorization) (*domain.CrmUserRecord, error) {
	idx := f.recordCalls
	f.recordCalls++
	if idx < len(f.recordErrs) && f.recordErrs[idx] != nil {
		return nil, f.recordErrs[idx]
	}
	return f.record, nil
}

var _ ports.SalesforceClient = (*fakeSalesforce)(nil)

// fakeSlack is a scripted SlackClient that records posted messages.
type fakeSlack struct {
	installPayload *domain.InstallPayload
	installErr     error

	postErr error

	mu     sync.Mutex
	posted []postedMessage
}

type postedMessage struct {
	token   string
	channel string
	text    string
}

func (f *fakeSlack) BuildAuthorizeURL(state string) string {
	return "https://slack.example/oauth/v2/authorize?state=" + state
}

func (f *fakeSlack) ExchangeCode(context.Context, string) (*ports.OAuthToken, error) {
	return nil, errors.New("not used")
}

func (f *fakeSlack) Refresh(context.Context, string) (*ports.OAuthToken, error) {
	return nil, errors.New("not used")
}

func (f *fakeSlack) ExchangeInstallCode(context.Context, string) (*domain.InstallPayload, error) {
	if f.installErr != nil {
		return nil, f.installErr
	}
	return f.installPayload, nil
}

func (f *fakeSlack) PostMessage(_ context.Context, token, channelID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.postErr != nil {
		return f.postErr
	}
	f.posted = append(f.posted, postedMessage{token: token, channel: channelID, text: text})
	return nil
}

func (f *fakeSlack) messages() []postedMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]postedMessage(nil), f.posted...)
}

var _ ports.SlackClient = (*fakeSlack)(nil)
