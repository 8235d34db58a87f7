// Package mocks provides test doubles for the fetcher package.
package mocks

import (
	"context"

	fetcher "github.com/sells-group/tradewatch/internal/fetcher"
	mock "github.com/stretchr/testify/mock"
)

// MockRetriever is a mock type for the Retriever interface.
type MockRetriever struct {
	mock.Mock
}

// FetchDocument provides a mock function with given fields: ctx, url
func (_m *MockRetriever) FetchDocument(ctx context.Context, url string) ([]byte, string, error) {
	ret := _m.Called(ctx, url)

	if len(ret) == 0 {
		panic("no return value specified for FetchDocument")
	}

	var r0 []byte
	var r1 string
	var r2 error
	if rf, ok := ret.Get(0).(func(context.Context, string) ([]byte, string, error)); ok {
		return rf(ctx, url)
	}
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]byte)
	}
	r1 = ret.String(1)
	r2 = ret.Error(2)

	return r0, r1, r2
}

// FetchBulkIndex provides a mock function with given fields: ctx, year
func (_m *MockRetriever) FetchBulkIndex(ctx context.Context, year int) ([]byte, error) {
	ret := _m.Called(ctx, year)

	if len(ret) == 0 {
		panic("no return value specified for FetchBulkIndex")
	}

	var r0 []byte
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, int) ([]byte, error)); ok {
		return rf(ctx, year)
	}
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]byte)
	}
	r1 = ret.Error(1)

	return r0, r1
}

// FetchSearchPage provides a mock function with given fields: ctx, params
func (_m *MockRetriever) FetchSearchPage(ctx context.Context, params fetcher.SearchParams) (string, error) {
	ret := _m.Called(ctx, params)

	if len(ret) == 0 {
		panic("no return value specified for FetchSearchPage")
	}

	var r0 string
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, fetcher.SearchParams) (string, error)); ok {
		return rf(ctx, params)
	}
	r0 = ret.String(0)
	r1 = ret.Error(1)

	return r0, r1
}

// NewMockRetriever creates a new instance of MockRetriever. It also registers
// a testing interface on the mock and a cleanup function to assert the mocks
// expectations.
func NewMockRetriever(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockRetriever {
	m := &MockRetriever{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
