// Package mocks provides mock implementations of the ports used by the session guard, the
// notification relay and the HTTP gateway.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for the port interfaces.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	store := mocks.NewMockTokenStore(ctrl)
//	store.EXPECT().Get(gomock.Any()).Return("abc", nil)
package mocks

//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=ports_mock.go github.com/sidesa/desa-admin/internal/ports TokenStore,SessionStore,IdentityLookup,Authenticator,ChannelDialer,NotificationJournal
