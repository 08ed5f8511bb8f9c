// Package mocks provides test doubles for the github client.
package mocks

import (
	"context"

	github "github.com/maroofsyyed/Duesense1/pkg/github"
	mock "github.com/stretchr/testify/mock"
)

// MockClient is a mock type for the Client interface.
type MockClient struct {
	mock.Mock
}

// GetAccount provides a mock function with given fields: ctx, login
func (_m *MockClient) GetAccount(ctx context.Context, login string) (*github.Account, error) {
	ret := _m.Called(ctx, login)

	if len(ret) == 0 {
		panic("no return value specified for GetAccount")
	}

	var r0 *github.Account
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*github.Account)
	}
	return r0, ret.Error(1)
}

// SearchOrgs provides a mock function with given fields: ctx, query
func (_m *MockClient) SearchOrgs(ctx context.Context, query string) ([]github.Account, error) {
	ret := _m.Called(ctx, query)

	if len(ret) == 0 {
		panic("no return value specified for SearchOrgs")
	}

	var r0 []github.Account
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]github.Account)
	}
	return r0, ret.Error(1)
}

// ListRepos provides a mock function with given fields: ctx, login, limit
func (_m *MockClient) ListRepos(ctx context.Context, login string, limit int) ([]github.Repo, error) {
	ret := _m.Called(ctx, login, limit)

	if len(ret) == 0 {
		panic("no return value specified for ListRepos")
	}

	var r0 []github.Repo
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]github.Repo)
	}
	return r0, ret.Error(1)
}

// NewMockClient creates a new instance of MockClient. It also registers a
// testing interface on the mock and a cleanup function to assert the mocks
// expectations.
func NewMockClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockClient {
	m := &MockClient{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
