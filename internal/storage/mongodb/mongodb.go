// Package mongodb provides repositories on top of a mongo database. Grant
// updates are version filtered so that racing transitions cannot both land.
package mongodb

import (
	"context"
	"errors"

	"github.com/idpkit/idp/pkg/idp"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	collectionServers             = "servers"
	collectionClients             = "clients"
	collectionRequests            = "authorization_requests"
	collectionBackchannelRequests = "backchannel_authentication_requests"
	collectionGrants              = "ciba_grants"
)

type ServerManager struct {
	Database *mongo.Database
}

func NewServerManager(database *mongo.Database) ServerManager {
	return ServerManager{Database: database}
}

func (m ServerManager) Save(ctx context.Context, server *idp.ServerConfiguration) error {
	collection := m.Database.Collection(collectionServers)
	filter := bson.D{{Key: "_id", Value: server.Issuer}}
	opts := replaceUpsert()
	_, err := collection.ReplaceOne(ctx, filter, server, opts)
	return err
}

func (m ServerManager) Get(ctx context.Context, tokenIssuer string) (*idp.ServerConfiguration, error) {
	collection := m.Database.Collection(collectionServers)
	filter := bson.D{{Key: "_id", Value: tokenIssuer}}

	var server idp.ServerConfiguration
	if err := collection.FindOne(ctx, filter).Decode(&server); err != nil {
		return nil, err
	}
	return &server, nil
}

type ClientManager struct {
	Database *mongo.Database
}

func NewClientManager(database *mongo.Database) ClientManager {
	return ClientManager{Database: database}
}

func (m ClientManager) Save(ctx context.Context, client *idp.ClientConfiguration) error {
	collection := m.Database.Collection(collectionClients)
	filter := bson.D{
		{Key: "_id", Value: client.ID},
		{Key: "issuer", Value: client.Issuer},
	}
	_, err := collection.ReplaceOne(ctx, filter, client, replaceUpsert())
	return err
}

func (m ClientManager) Get(
	ctx context.Context,
	tokenIssuer, clientID string,
) (
	*idp.ClientConfiguration,
	error,
) {
	collection := m.Database.Collection(collectionClients)
	filter := bson.D{
		{Key: "_id", Value: clientID},
		{Key: "issuer", Value: tokenIssuer},
	}

	var client idp.ClientConfiguration
	if err := collection.FindOne(ctx, filter).Decode(&client); err != nil {
		return nil, err
	}
	return &client, nil
}

func (m ClientManager) Delete(ctx context.Context, tokenIssuer, clientID string) error {
	collection := m.Database.Collection(collectionClients)
	filter := bson.D{
		{Key: "_id", Value: clientID},
		{Key: "issuer", Value: tokenIssuer},
	}
	_, err := collection.DeleteOne(ctx, filter)
	return err
}

type AuthorizationRequestManager struct {
	Database *mongo.Database
}

func NewAuthorizationRequestManager(database *mongo.Database) AuthorizationRequestManager {
	return AuthorizationRequestManager{Database: database}
}

func (m AuthorizationRequestManager) Register(ctx context.Context, request *idp.AuthorizationRequest) error {
	collection := m.Database.Collection(collectionRequests)
	_, err := collection.InsertOne(ctx, request)
	return err
}

func (m AuthorizationRequestManager) Find(ctx context.Context, id string) (*idp.AuthorizationRequest, error) {
	collection := m.Database.Collection(collectionRequests)
	filter := bson.D{{Key: "_id", Value: id}}

	var request idp.AuthorizationRequest
	if err := collection.FindOne(ctx, filter).Decode(&request); err != nil {
		return nil, err
	}
	return &request, nil
}

func (m AuthorizationRequestManager) Delete(ctx context.Context, id string) error {
	collection := m.Database.Collection(collectionRequests)
	filter := bson.D{{Key: "_id", Value: id}}
	_, err := collection.DeleteOne(ctx, filter)
	return err
}

type BackchannelRequestManager struct {
	Database *mongo.Database
}

func NewBackchannelRequestManager(database *mongo.Database) BackchannelRequestManager {
	return BackchannelRequestManager{Database: database}
}

func (m BackchannelRequestManager) Register(
	ctx context.Context,
	request *idp.BackchannelAuthenticationRequest,
) error {
	collection := m.Database.Collection(collectionBackchannelRequests)
	_, err := collection.InsertOne(ctx, request)
	return err
}

func (m BackchannelRequestManager) Find(
	ctx context.Context,
	id string,
) (
	*idp.BackchannelAuthenticationRequest,
	error,
) {
	collection := m.Database.Collection(collectionBackchannelRequests)
	filter := bson.D{{Key: "_id", Value: id}}

	var request idp.BackchannelAuthenticationRequest
	if err := collection.FindOne(ctx, filter).Decode(&request); err != nil {
		return nil, err
	}
	return &request, nil
}

func (m BackchannelRequestManager) Delete(ctx context.Context, id string) error {
	collection := m.Database.Collection(collectionBackchannelRequests)
	filter := bson.D{{Key: "_id", Value: id}}
	_, err := collection.DeleteOne(ctx, filter)
	return err
}

type CibaGrantManager struct {
	Database *mongo.Database
}

func NewCibaGrantManager(database *mongo.Database) CibaGrantManager {
	return CibaGrantManager{Database: database}
}

func (m CibaGrantManager) Register(ctx context.Context, grant *idp.CibaGrant) error {
	collection := m.Database.Collection(collectionGrants)
	_, err := collection.InsertOne(ctx, grant)
	return err
}

func (m CibaGrantManager) FindByAuthReqID(ctx context.Context, authReqID string) (*idp.CibaGrant, error) {
	collection := m.Database.Collection(collectionGrants)
	filter := bson.D{{Key: "_id", Value: authReqID}}

	var grant idp.CibaGrant
	if err := collection.FindOne(ctx, filter).Decode(&grant); err != nil {
		return nil, err
	}
	return &grant, nil
}

// Update replaces the grant only when the stored version is the one the
// transition was derived from.
func (m CibaGrantManager) Update(ctx context.Context, grant *idp.CibaGrant) error {
	collection := m.Database.Collection(collectionGrants)
	filter := bson.D{
		{Key: "_id", Value: grant.AuthReqID},
		{Key: "version", Value: grant.Version - 1},
	}

	result, err := collection.ReplaceOne(ctx, filter, grant)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return errors.New("the grant was modified concurrently")
	}
	return nil
}

func (m CibaGrantManager) ExpireBefore(ctx context.Context, timestamp int64) error {
	collection := m.Database.Collection(collectionGrants)
	filter := bson.D{
		{Key: "status", Value: idp.GrantStatusPending},
		{Key: "expires_at", Value: bson.D{{Key: "$lt", Value: timestamp}}},
	}
	update := bson.D{
		{Key: "$set", Value: bson.D{{Key: "status", Value: idp.GrantStatusExpired}}},
		{Key: "$inc", Value: bson.D{{Key: "version", Value: 1}}},
	}
	_, err := collection.UpdateMany(ctx, filter, update)
	return err
}

func replaceUpsert() *options.ReplaceOptions {
	return options.Replace().SetUpsert(true)
}
