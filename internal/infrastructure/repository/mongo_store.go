package repository

import (
	"context"
	"fmt"
	"time"

	"slack-salesforce-link/internal/domain"
	"slack-salesforce-link/internal/infrastructure/repository/entity"
	"slack-salesforce-link/internal/ports"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoCredentialStore implements CredentialStore using MongoDB. It is the
// only owner of durable state; everything else in the process can restart
// without loss.
type MongoCredentialStore struct {
	installations  *mongo.Collection
	authorizations *mongo.Collection
	linkRequests   *mongo.Collection
}

// NewMongoCredentialStore creates a new MongoDB credential store.
func NewMongoCredentialStore(db *mongo.Database) *MongoCredentialStore {
	return &MongoCredentialStore{
		installations:  db.Collection("installations"),
		authorizations: db.Collection("crm_authorizations"),
		linkRequests:   db.Collection("link_requests"),
	}
}

// EnsureIndexes creates the unique workspace indexes. Called once at startup.
func (s *MongoCredentialStore) EnsureIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)
	for _, coll := range []*mongo.Collection{s.installations, s.authorizations} {
		_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys:    bson.D{{Key: "workspaceId", Value: 1}},
			Options: unique,
		})
		if err != nil {
			return fmt.Errorf("failed to create workspace index: %w", domain.StoreUnavailable(err))
		}
	}
	_, err := s.linkRequests.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "expiresAt", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create expiry index: %w", domain.StoreUnavailable(err))
	}
	return nil
}

// PutInstallation creates or replaces an installation, preserving CreatedAt
// on re-install.
func (s *MongoCredentialStore) PutInstallation(ctx context.Context, inst *domain.Installation) error {
	doc := entity.MongoInstallationDocFromDomain(inst)
	now := time.Now()

	update := bson.M{
		"$set": bson.M{
			"teamName":         doc.TeamName,
			"installToken":     doc.InstallToken,
			"defaultChannelId": doc.DefaultChannelID,
			"updatedAt":        now,
		},
		"$setOnInsert": bson.M{
			"_id":       uuid.NewString(),
			"createdAt": now,
		},
	}

	opts := options.Update().SetUpsert(true)
	_, err := s.installations.UpdateOne(ctx, bson.M{"workspaceId": doc.WorkspaceID}, update, opts)
	if err != nil {
		return fmt.Errorf("failed to save installation: %w", domain.StoreUnavailable(err))
	}
	return nil
}

// GetInstallation retrieves an installation by workspace ID.
func (s *MongoCredentialStore) GetInstallation(ctx context.Context, workspaceID string) (*domain.Installation, error) {
	var doc entity.MongoInstallationDoc
	err := s.installations.FindOne(ctx, bson.M{"workspaceId": workspaceID}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get installation: %w", domain.StoreUnavailable(err))
	}
	return doc.ToDomain(), nil
}

// DeleteInstallation removes an installation by workspace ID.
func (s *MongoCredentialStore) DeleteInstallation(ctx context.Context, workspaceID string) error {
	result, err := s.installations.DeleteOne(ctx, bson.M{"workspaceId": workspaceID})
	if err != nil {
		return fmt.Errorf("failed to delete installation: %w", domain.StoreUnavailable(err))
	}
	if result.DeletedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// PutAuthorization creates or replaces a Salesforce authorization.
func (s *MongoCredentialStore) PutAuthorization(ctx context.Context, auth *domain.CrmAuthorization) error {
	doc := entity.MongoCrmAuthorizationDocFromDomain(auth)
	now := time.Now()

	update := bson.M{
		"$set": bson.M{
			"accessToken":  doc.AccessToken,
			"refreshToken": doc.RefreshToken,
			"instanceUrl":  doc.InstanceURL,
			"crmUserId":    doc.CrmUserID,
			"crmOrgId":     doc.CrmOrgID,
			"issuedAt":     doc.IssuedAt,
			"updatedAt":    now,
		},
		"$setOnInsert": bson.M{
			"_id": uuid.NewString(),
		},
	}

	opts := options.Update().SetUpsert(true)
	_, err := s.authorizations.UpdateOne(ctx, bson.M{"workspaceId": doc.WorkspaceID}, update, opts)
	if err != nil {
		return fmt.Errorf("failed to save authorization: %w", domain.StoreUnavailable(err))
	}
	return nil
}

// GetAuthorization retrieves a Salesforce authorization by workspace ID.
func (s *MongoCredentialStore) GetAuthorization(ctx context.Context, workspaceID string) (*domain.CrmAuthorization, error) {
	var doc entity.MongoCrmAuthorizationDoc
	err := s.authorizations.FindOne(ctx, bson.M{"workspaceId": workspaceID}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get authorization: %w", domain.StoreUnavailable(err))
	}
	return doc.ToDomain(), nil
}

// ClearAuthorization removes a Salesforce authorization. Clearing a missing
// key is not an error.
func (s *MongoCredentialStore) ClearAuthorization(ctx context.Context, workspaceID string) error {
	_, err := s.authorizations.DeleteOne(ctx, bson.M{"workspaceId": workspaceID})
	if err != nil {
		return fmt.Errorf("failed to clear authorization: %w", domain.StoreUnavailable(err))
	}
	return nil
}

// CreateLinkRequest stores a pending state token.
func (s *MongoCredentialStore) CreateLinkRequest(ctx context.Context, req *domain.LinkRequest) error {
	doc := entity.MongoLinkRequestDocFromDomain(req)
	_, err := s.linkRequests.InsertOne(ctx, doc)
	if err != nil {
		return fmt.Errorf("failed to create link request: %w", domain.StoreUnavailable(err))
	}
	return nil
}

// ConsumeLinkRequest atomically returns and deletes the request for a state.
// The expiry filter is part of the same operation, so an expired request is
// never consumable even before the sweep removes it.
func (s *MongoCredentialStore) ConsumeLinkRequest(ctx context.Context, state string) (*domain.LinkRequest, error) {
	filter := bson.M{
		"_id":       state,
		"expiresAt": bson.M{"$gt": time.Now()},
	}

	var doc entity.MongoLinkRequestDoc
	err := s.linkRequests.FindOneAndDelete(ctx, filter).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to consume link request: %w", domain.StoreUnavailable(err))
	}
	return doc.ToDomain(), nil
}

// SweepExpiredLinkRequests removes requests past their expiry.
func (s *MongoCredentialStore) SweepExpiredLinkRequests(ctx context.Context) (int64, error) {
	result, err := s.linkRequests.DeleteMany(ctx, bson.M{"expiresAt": bson.M{"$lte": time.Now()}})
	if err != nil {
		return 0, fmt.Errorf("failed to sweep link requests: %w", domain.StoreUnavailable(err))
	}
	return result.DeletedCount, nil
}

var _ ports.CredentialStore = (*MongoCredentialStore)(nil)
