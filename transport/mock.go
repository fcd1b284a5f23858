package transport

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockTransport is a testify mock of Transport.
type MockTransport struct {
	mock.Mock
}

var _ Transport = (*MockTransport)(nil)

func NewMockTransport() *MockTransport {
	return &MockTransport{}
}

func (m *MockTransport) CreateSession(ctx context.Context, endpoint string) (Session, error) {
	args := m.Called(ctx, endpoint)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(Session), args.Error(1)
}

func (m *MockTransport) OpenLink(ctx context.Context, session Session, params LinkParams) (*Link, error) {
	args := m.Called(ctx, session, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*Link), args.Error(1)
}

func (m *MockTransport) CloseLink(ctx context.Context, session Session, link *Link) error {
	args := m.Called(ctx, session, link)
	return args.Error(0)
}

func (m *MockTransport) DestroySession(session Session) {
	m.Called(session)
}

func (m *MockTransport) Write(ctx context.Context, session Session, link *Link, params WriteParams) (*WriteResponse, error) {
	args := m.Called(ctx, session, link, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*WriteResponse), args.Error(1)
}

func (m *MockTransport) Read(ctx context.Context, session Session, link *Link, params ReadParams) (*ReadResponse, error) {
	args := m.Called(ctx, session, link, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*ReadResponse), args.Error(1)
}

// MockSession is a Session carrying only its endpoint.
type MockSession struct {
	Addr string
}

var _ Session = (*MockSession)(nil)

func (s *MockSession) Endpoint() string { return s.Addr }
