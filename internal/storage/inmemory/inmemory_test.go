package inmemory_test

import (
	"context"
	"testing"

	"github.com/idpkit/idp/internal/storage/inmemory"
	"github.com/idpkit/idp/pkg/idp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientManager(t *testing.T) {
	manager := inmemory.NewClientManager()
	ctx := context.Background()

	client := &idp.ClientConfiguration{ID: "client_id", Issuer: "https://idp.example.com"}
	require.NoError(t, manager.Save(ctx, client))

	found, err := manager.Get(ctx, "https://idp.example.com", "client_id")
	require.NoError(t, err)
	assert.Equal(t, client, found)

	// Clients are scoped by issuer.
	_, err = manager.Get(ctx, "https://other.example.com", "client_id")
	assert.Error(t, err)

	require.NoError(t, manager.Delete(ctx, "https://idp.example.com", "client_id"))
	_, err = manager.Get(ctx, "https://idp.example.com", "client_id")
	assert.Error(t, err)
}

func TestAuthorizationRequestManager(t *testing.T) {
	manager := inmemory.NewAuthorizationRequestManager()
	ctx := context.Background()

	request := &idp.AuthorizationRequest{ID: "request_id", ClientID: "client_id"}
	require.NoError(t, manager.Register(ctx, request))

	found, err := manager.Find(ctx, "request_id")
	require.NoError(t, err)
	assert.Equal(t, request, found)

	require.NoError(t, manager.Delete(ctx, "request_id"))
	_, err = manager.Find(ctx, "request_id")
	assert.Error(t, err)
}

func TestCibaGrantManager_Update(t *testing.T) {
	manager := inmemory.NewCibaGrantManager()
	ctx := context.Background()

	grant := &idp.CibaGrant{
		AuthReqID: "auth_req_id",
		Status:    idp.GrantStatusPending,
		ExpiresAt: 1000,
	}
	require.NoError(t, manager.Register(ctx, grant))

	// Two transitions read the same pending grant.
	stored, err := manager.FindByAuthReqID(ctx, "auth_req_id")
	require.NoError(t, err)

	authorized, err := stored.Authorize(idp.User{Subject: "sub"}, idp.AuthorizationGrant{})
	require.NoError(t, err)
	denied, err := stored.Deny()
	require.NoError(t, err)

	require.NoError(t, manager.Update(ctx, &authorized))

	// The second write carries a stale version and must lose.
	err = manager.Update(ctx, &denied)
	require.Error(t, err)

	final, err := manager.FindByAuthReqID(ctx, "auth_req_id")
	require.NoError(t, err)
	assert.Equal(t, idp.GrantStatusAuthorized, final.Status)
}

func TestCibaGrantManager_RegisterTwice(t *testing.T) {
	manager := inmemory.NewCibaGrantManager()
	ctx := context.Background()

	grant := &idp.CibaGrant{AuthReqID: "auth_req_id", Status: idp.GrantStatusPending}
	require.NoError(t, manager.Register(ctx, grant))
	assert.Error(t, manager.Register(ctx, grant))
}

func TestCibaGrantManager_FindReturnsACopy(t *testing.T) {
	manager := inmemory.NewCibaGrantManager()
	ctx := context.Background()

	grant := &idp.CibaGrant{AuthReqID: "auth_req_id", Status: idp.GrantStatusPending}
	require.NoError(t, manager.Register(ctx, grant))

	found, err := manager.FindByAuthReqID(ctx, "auth_req_id")
	require.NoError(t, err)
	found.Status = idp.GrantStatusAccessDenied

	stored, err := manager.FindByAuthReqID(ctx, "auth_req_id")
	require.NoError(t, err)
	assert.Equal(t, idp.GrantStatusPending, stored.Status,
		"mutating a returned grant must not touch the stored one")
}

func TestCibaGrantManager_ExpireBefore(t *testing.T) {
	manager := inmemory.NewCibaGrantManager()
	ctx := context.Background()

	pending := &idp.CibaGrant{AuthReqID: "pending", Status: idp.GrantStatusPending, ExpiresAt: 100}
	live := &idp.CibaGrant{AuthReqID: "live", Status: idp.GrantStatusPending, ExpiresAt: 1000}
	authorized := &idp.CibaGrant{AuthReqID: "authorized", Status: idp.GrantStatusAuthorized, ExpiresAt: 100}
	require.NoError(t, manager.Register(ctx, pending))
	require.NoError(t, manager.Register(ctx, live))
	require.NoError(t, manager.Register(ctx, authorized))

	require.NoError(t, manager.ExpireBefore(ctx, 500))

	expired, _ := manager.FindByAuthReqID(ctx, "pending")
	assert.Equal(t, idp.GrantStatusExpired, expired.Status)

	stillLive, _ := manager.FindByAuthReqID(ctx, "live")
	assert.Equal(t, idp.GrantStatusPending, stillLive.Status)

	stillAuthorized, _ := manager.FindByAuthReqID(ctx, "authorized")
	assert.Equal(t, idp.GrantStatusAuthorized, stillAuthorized.Status)
}
