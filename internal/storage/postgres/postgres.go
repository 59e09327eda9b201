// Package postgres provides repositories over database/sql with the pq
// driver. Entities are stored as json documents next to the columns the
// queries filter on; grant updates are guarded by a version column.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/idpkit/idp/pkg/idp"
	_ "github.com/lib/pq"
)

// Open connects and verifies the connection.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}
	return db, nil
}

type ServerManager struct {
	DB *sql.DB
}

func NewServerManager(db *sql.DB) ServerManager {
	return ServerManager{DB: db}
}

func (m ServerManager) Save(ctx context.Context, server *idp.ServerConfiguration) error {
	data, err := json.Marshal(server)
	if err != nil {
		return err
	}

	_, err = m.DB.ExecContext(ctx,
		`INSERT INTO servers (issuer, data) VALUES ($1, $2)
		 ON CONFLICT (issuer) DO UPDATE SET data = EXCLUDED.data`,
		server.Issuer, data)
	return err
}

func (m ServerManager) Get(ctx context.Context, tokenIssuer string) (*idp.ServerConfiguration, error) {
	var data []byte
	err := m.DB.QueryRowContext(ctx,
		`SELECT data FROM servers WHERE issuer = $1`, tokenIssuer).Scan(&data)
	if err != nil {
		return nil, err
	}

	var server idp.ServerConfiguration
	if err := json.Unmarshal(data, &server); err != nil {
		return nil, err
	}
	return &server, nil
}

type ClientManager struct {
	DB *sql.DB
}

func NewClientManager(db *sql.DB) ClientManager {
	return ClientManager{DB: db}
}

func (m ClientManager) Save(ctx context.Context, client *idp.ClientConfiguration) error {
	data, err := json.Marshal(client)
	if err != nil {
		return err
	}

	_, err = m.DB.ExecContext(ctx,
		`INSERT INTO clients (issuer, id, data) VALUES ($1, $2, $3)
		 ON CONFLICT (issuer, id) DO UPDATE SET data = EXCLUDED.data`,
		client.Issuer, client.ID, data)
	return err
}

func (m ClientManager) Get(
	ctx context.Context,
	tokenIssuer, clientID string,
) (
	*idp.ClientConfiguration,
	error,
) {
	var data []byte
	err := m.DB.QueryRowContext(ctx,
		`SELECT data FROM clients WHERE issuer = $1 AND id = $2`,
		tokenIssuer, clientID).Scan(&data)
	if err != nil {
		return nil, err
	}

	var client idp.ClientConfiguration
	if err := json.Unmarshal(data, &client); err != nil {
		return nil, err
	}
	return &client, nil
}

func (m ClientManager) Delete(ctx context.Context, tokenIssuer, clientID string) error {
	_, err := m.DB.ExecContext(ctx,
		`DELETE FROM clients WHERE issuer = $1 AND id = $2`, tokenIssuer, clientID)
	return err
}

type AuthorizationRequestManager struct {
	DB *sql.DB
}

func NewAuthorizationRequestManager(db *sql.DB) AuthorizationRequestManager {
	return AuthorizationRequestManager{DB: db}
}

func (m AuthorizationRequestManager) Register(ctx context.Context, request *idp.AuthorizationRequest) error {
	data, err := json.Marshal(request)
	if err != nil {
		return err
	}

	_, err = m.DB.ExecContext(ctx,
		`INSERT INTO authorization_requests (id, data) VALUES ($1, $2)`,
		request.ID, data)
	return err
}

func (m AuthorizationRequestManager) Find(ctx context.Context, id string) (*idp.AuthorizationRequest, error) {
	var data []byte
	err := m.DB.QueryRowContext(ctx,
		`SELECT data FROM authorization_requests WHERE id = $1`, id).Scan(&data)
	if err != nil {
		return nil, err
	}

	var request idp.AuthorizationRequest
	if err := json.Unmarshal(data, &request); err != nil {
		return nil, err
	}
	return &request, nil
}

func (m AuthorizationRequestManager) Delete(ctx context.Context, id string) error {
	_, err := m.DB.ExecContext(ctx,
		`DELETE FROM authorization_requests WHERE id = $1`, id)
	return err
}

type BackchannelRequestManager struct {
	DB *sql.DB
}

func NewBackchannelRequestManager(db *sql.DB) BackchannelRequestManager {
	return BackchannelRequestManager{DB: db}
}

func (m BackchannelRequestManager) Register(
	ctx context.Context,
	request *idp.BackchannelAuthenticationRequest,
) error {
	data, err := json.Marshal(request)
	if err != nil {
		return err
	}

	_, err = m.DB.ExecContext(ctx,
		`INSERT INTO backchannel_requests (id, data) VALUES ($1, $2)`,
		request.ID, data)
	return err
}

func (m BackchannelRequestManager) Find(
	ctx context.Context,
	id string,
) (
	*idp.BackchannelAuthenticationRequest,
	error,
) {
	var data []byte
	err := m.DB.QueryRowContext(ctx,
		`SELECT data FROM backchannel_requests WHERE id = $1`, id).Scan(&data)
	if err != nil {
		return nil, err
	}

	var request idp.BackchannelAuthenticationRequest
	if err := json.Unmarshal(data, &request); err != nil {
		return nil, err
	}
	return &request, nil
}

func (m BackchannelRequestManager) Delete(ctx context.Context, id string) error {
	_, err := m.DB.ExecContext(ctx,
		`DELETE FROM backchannel_requests WHERE id = $1`, id)
	return err
}

type CibaGrantManager struct {
	DB *sql.DB
}

func NewCibaGrantManager(db *sql.DB) CibaGrantManager {
	return CibaGrantManager{DB: db}
}

func (m CibaGrantManager) Register(ctx context.Context, grant *idp.CibaGrant) error {
	data, err := json.Marshal(grant)
	if err != nil {
		return err
	}

	_, err = m.DB.ExecContext(ctx,
		`INSERT INTO ciba_grants (auth_req_id, status, expires_at, version, data)
		 VALUES ($1, $2, $3, $4, $5)`,
		grant.AuthReqID, grant.Status, grant.ExpiresAt, grant.Version, data)
	return err
}

func (m CibaGrantManager) FindByAuthReqID(ctx context.Context, authReqID string) (*idp.CibaGrant, error) {
	var data []byte
	err := m.DB.QueryRowContext(ctx,
		`SELECT data FROM ciba_grants WHERE auth_req_id = $1`, authReqID).Scan(&data)
	if err != nil {
		return nil, err
	}

	var grant idp.CibaGrant
	if err := json.Unmarshal(data, &grant); err != nil {
		return nil, err
	}
	return &grant, nil
}

// Update lands only when the stored version is the one the transition was
// derived from, so at most one of two racing transitions succeeds.
func (m CibaGrantManager) Update(ctx context.Context, grant *idp.CibaGrant) error {
	data, err := json.Marshal(grant)
	if err != nil {
		return err
	}

	result, err := m.DB.ExecContext(ctx,
		`UPDATE ciba_grants SET status = $1, expires_at = $2, version = $3, data = $4
		 WHERE auth_req_id = $5 AND version = $6`,
		grant.Status, grant.ExpiresAt, grant.Version, data, grant.AuthReqID, grant.Version-1)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errors.New("the grant was modified concurrently")
	}
	return nil
}

func (m CibaGrantManager) ExpireBefore(ctx context.Context, timestamp int64) error {
	_, err := m.DB.ExecContext(ctx,
		`UPDATE ciba_grants
		 SET status = $1, version = version + 1,
		     data = jsonb_set(data::jsonb, '{status}', to_jsonb($1::text))
		 WHERE status = $2 AND expires_at < $3`,
		idp.GrantStatusExpired, idp.GrantStatusPending, timestamp)
	return err
}
