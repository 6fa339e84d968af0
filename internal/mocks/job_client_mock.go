package mocks

import (
	"context"

	"dataset-generator/internal/dataset"
	"dataset-generator/internal/kandinsky"

	"github.com/stretchr/testify/mock"
)

// MockJobClient is a mock type for the JobClient type
type MockJobClient struct {
	mock.Mock
}

// DiscoverPipeline provides a mock function with given fields: ctx
func (_m *MockJobClient) DiscoverPipeline(ctx context.Context) (kandinsky.PipelineID, error) {
	ret := _m.Called(ctx)

	var r0 kandinsky.PipelineID
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context) (kandinsky.PipelineID, error)); ok {
		return rf(ctx)
	}
	if v, ok := ret.Get(0).(kandinsky.PipelineID); ok {
		r0 = v
	}
	r1 = ret.Error(1)

	return r0, r1
}

// Submit provides a mock function with given fields: ctx, r
func (_m *MockJobClient) Submit(ctx context.Context, r kandinsky.SubmitRequest) (kandinsky.JobID, error) {
	ret := _m.Called(ctx, r)

	var r0 kandinsky.JobID
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, kandinsky.SubmitRequest) (kandinsky.JobID, error)); ok {
		return rf(ctx, r)
	}
	if v, ok := ret.Get(0).(kandinsky.JobID); ok {
		r0 = v
	}
	r1 = ret.Error(1)

	return r0, r1
}

// Poll provides a mock function with given fields: ctx, id, opts
func (_m *MockJobClient) Poll(ctx context.Context, id kandinsky.JobID, opts kandinsky.PollOptions) (kandinsky.PollResult, error) {
	ret := _m.Called(ctx, id, opts)

	var r0 kandinsky.PollResult
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, kandinsky.JobID, kandinsky.PollOptions) (kandinsky.PollResult, error)); ok {
		return rf(ctx, id, opts)
	}
	if v, ok := ret.Get(0).(kandinsky.PollResult); ok {
		r0 = v
	}
	r1 = ret.Error(1)

	return r0, r1
}

// NewMockJobClient creates a new instance of MockJobClient. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
func NewMockJobClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockJobClient {
	m := &MockJobClient{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

var _ dataset.JobClient = (*MockJobClient)(nil)
