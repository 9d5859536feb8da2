// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Namath Provider Contributors

package namath_test

import (
	"context"
	"encoding/json"

	"github.com/stretchr/testify/mock"

	"github.com/jancy-plugins/namath-provider/internal/cart"
	"github.com/jancy-plugins/namath-provider/internal/host"
	"github.com/jancy-plugins/namath-provider/internal/namath"
)

type mockFactory struct {
	mock.Mock
	id      string
	show    bool
	persist bool
}

func (m *mockFactory) ID() string             { return m.id }
func (m *mockFactory) Description() string    { return "mock factory" }
func (m *mockFactory) ShowToUser() bool       { return m.show }
func (m *mockFactory) PersistProviders() bool { return m.persist }

func (m *mockFactory) CreateProvider(state json.RawMessage) (namath.Provider, error) {
	args := m.Called(state)
	p, _ := args.Get(0).(namath.Provider)
	return p, args.Error(1)
}

func (m *mockFactory) AddProvider(ctx context.Context, parent host.Window) error {
	return m.Called(ctx, parent).Error(0)
}

type mockProvider struct {
	mock.Mock
	name string
}

func (m *mockProvider) Name() string { return m.name }
func (m *mockProvider) Info() string { return "mock provider" }

func (m *mockProvider) State() (json.RawMessage, error) {
	args := m.Called()
	s, _ := args.Get(0).(json.RawMessage)
	return s, args.Error(1)
}

func (m *mockProvider) BumpCart(ctx context.Context, c cart.Cart) error {
	return m.Called(ctx, c).Error(0)
}

func (m *mockProvider) ExpireCart(ctx context.Context, c cart.Cart) error {
	return m.Called(ctx, c).Error(0)
}

func (m *mockProvider) SendCart(ctx context.Context, c cart.Cart, respond namath.RespondFunc) (bool, error) {
	args := m.Called(ctx, c, respond)
	return args.Bool(0), args.Error(1)
}

func (m *mockProvider) EditProvider(ctx context.Context, parent host.Window) error {
	return m.Called(ctx, parent).Error(0)
}
