package auth

import (
	"context"
	"testing"
	"time"

	domainauth "github.com/sidesa/desa-admin/internal/domain/auth"
	"github.com/sidesa/desa-admin/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockLookup_Table(t *testing.T) {
	lookup := NewMockLookup(map[string]domainauth.Identity{
		"abc": {UserID: "1", Username: "admin"},
	})

	id, err := lookup.Lookup(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "admin", id.Username)

	_, err = lookup.Lookup(context.Background(), "nope")
	require.ErrorIs(t, err, ErrRejected)
	assert.Equal(t, []string{"abc", "nope"}, lookup.Calls())
}

func TestControlledLookup_AnswersInChosenOrder(t *testing.T) {
	lookup := NewControlledLookup()
	results := make(chan string, 2)

	for _, tok := range []string{"first", "second"} {
		go func() {
			id, _ := lookup.Lookup(context.Background(), tok)
			results <- id.Username
		}()
	}

	a, ok := lookup.Next(time.Second)
	require.True(t, ok)
	b, ok := lookup.Next(time.Second)
	require.True(t, ok)

	b.Succeed(domainauth.Identity{Username: b.Token})
	assert.Equal(t, b.Token, <-results)
	a.Succeed(domainauth.Identity{Username: a.Token})
	assert.Equal(t, a.Token, <-results)
}

func TestControlledLookup_NextTimesOut(t *testing.T) {
	_, ok := NewControlledLookup().Next(10 * time.Millisecond)
	assert.False(t, ok)
}

func TestMockAuthenticator(t *testing.T) {
	a := &MockAuthenticator{Tokens: map[string]string{"admin:secret": "tok"}}

	tok, err := a.Login(context.Background(), ports.Credentials{Username: "admin", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, "tok", tok)

	_, err = a.Login(context.Background(), ports.Credentials{Username: "admin", Password: "bad"})
	assert.ErrorIs(t, err, ErrRejected)
}

func TestRecordingNavigator(t *testing.T) {
	var nav RecordingNavigator
	assert.Empty(t, nav.Last())
	nav.Navigate("/login")
	nav.Navigate("/dashboard")
	assert.Equal(t, []string{"/login", "/dashboard"}, nav.Routes())
	assert.Equal(t, "/dashboard", nav.Last())
}

func TestStaticRoleMapper(t *testing.T) {
	assert.Equal(t, domainauth.RoleGuest, StaticRoleMapper{}.Map(nil))
	assert.Equal(t, domainauth.RoleAdmin, StaticRoleMapper{Role: domainauth.RoleAdmin}.Map([]string{"x"}))
}
