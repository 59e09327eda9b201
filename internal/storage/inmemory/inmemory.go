// Package inmemory provides map backed repositories, mainly for tests and
// single node deployments.
package inmemory

import (
	"context"
	"errors"
	"sync"

	"github.com/idpkit/idp/pkg/idp"
)

var errNotFound = errors.New("entity not found")

func clientKey(tokenIssuer, clientID string) string {
	return tokenIssuer + "/" + clientID
}

type ServerManager struct {
	mu      sync.RWMutex
	servers map[string]*idp.ServerConfiguration
}

func NewServerManager() *ServerManager {
	return &ServerManager{servers: make(map[string]*idp.ServerConfiguration)}
}

func (m *ServerManager) Save(_ context.Context, server *idp.ServerConfiguration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.servers[server.Issuer] = server
	return nil
}

func (m *ServerManager) Get(_ context.Context, tokenIssuer string) (*idp.ServerConfiguration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	server, ok := m.servers[tokenIssuer]
	if !ok {
		return nil, errNotFound
	}
	return server, nil
}

type ClientManager struct {
	mu      sync.RWMutex
	clients map[string]*idp.ClientConfiguration
}

func NewClientManager() *ClientManager {
	return &ClientManager{clients: make(map[string]*idp.ClientConfiguration)}
}

func (m *ClientManager) Save(_ context.Context, client *idp.ClientConfiguration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.clients[clientKey(client.Issuer, client.ID)] = client
	return nil
}

func (m *ClientManager) Get(
	_ context.Context,
	tokenIssuer, clientID string,
) (
	*idp.ClientConfiguration,
	error,
) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	client, ok := m.clients[clientKey(tokenIssuer, clientID)]
	if !ok {
		return nil, errNotFound
	}
	return client, nil
}

func (m *ClientManager) Delete(_ context.Context, tokenIssuer, clientID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.clients, clientKey(tokenIssuer, clientID))
	return nil
}

type AuthorizationRequestManager struct {
	mu       sync.RWMutex
	requests map[string]*idp.AuthorizationRequest
}

func NewAuthorizationRequestManager() *AuthorizationRequestManager {
	return &AuthorizationRequestManager{requests: make(map[string]*idp.AuthorizationRequest)}
}

func (m *AuthorizationRequestManager) Register(_ context.Context, request *idp.AuthorizationRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests[request.ID] = request
	return nil
}

func (m *AuthorizationRequestManager) Find(_ context.Context, id string) (*idp.AuthorizationRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	request, ok := m.requests[id]
	if !ok {
		return nil, errNotFound
	}
	return request, nil
}

func (m *AuthorizationRequestManager) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.requests, id)
	return nil
}

type BackchannelRequestManager struct {
	mu       sync.RWMutex
	requests map[string]*idp.BackchannelAuthenticationRequest
}

func NewBackchannelRequestManager() *BackchannelRequestManager {
	return &BackchannelRequestManager{requests: make(map[string]*idp.BackchannelAuthenticationRequest)}
}

func (m *BackchannelRequestManager) Register(
	_ context.Context,
	request *idp.BackchannelAuthenticationRequest,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests[request.ID] = request
	return nil
}

func (m *BackchannelRequestManager) Find(
	_ context.Context,
	id string,
) (
	*idp.BackchannelAuthenticationRequest,
	error,
) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	request, ok := m.requests[id]
	if !ok {
		return nil, errNotFound
	}
	return request, nil
}

func (m *BackchannelRequestManager) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.requests, id)
	return nil
}

type CibaGrantManager struct {
	mu     sync.RWMutex
	grants map[string]idp.CibaGrant
}

func NewCibaGrantManager() *CibaGrantManager {
	return &CibaGrantManager{grants: make(map[string]idp.CibaGrant)}
}

func (m *CibaGrantManager) Register(_ context.Context, grant *idp.CibaGrant) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.grants[grant.AuthReqID]; ok {
		return errors.New("auth_req_id already taken")
	}
	m.grants[grant.AuthReqID] = *grant
	return nil
}

func (m *CibaGrantManager) FindByAuthReqID(_ context.Context, authReqID string) (*idp.CibaGrant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	grant, ok := m.grants[authReqID]
	if !ok {
		return nil, errNotFound
	}
	return &grant, nil
}

// Update applies a copy-on-write transition. The stored version must be
// exactly one behind the incoming one, so only the first of two racing
// transitions lands.
func (m *CibaGrantManager) Update(_ context.Context, grant *idp.CibaGrant) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.grants[grant.AuthReqID]
	if !ok {
		return errNotFound
	}

	if stored.Version != grant.Version-1 {
		return errors.New("the grant was modified concurrently")
	}

	m.grants[grant.AuthReqID] = *grant
	return nil
}

func (m *CibaGrantManager) ExpireBefore(_ context.Context, timestamp int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, grant := range m.grants {
		if grant.IsPending() && grant.ExpiresAt < timestamp {
			expired, err := grant.Expire()
			if err != nil {
				continue
			}
			m.grants[id] = expired
		}
	}
	return nil
}
