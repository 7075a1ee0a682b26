package entity

import (
	"time"

	"slack-salesforce-link/internal/domain"
)

// MongoLinkRequestDoc represents a pending OAuth state token in MongoDB.
// The state itself is the document key so consume-and-delete can target it
// in one atomic operation.
type MongoLinkRequestDoc struct {
	State       string    `bson:"_id"`
	Kind        string    `bson:"kind"`
	WorkspaceID string    `bson:"workspaceId"`
	CreatedAt   time.Time `bson:"createdAt"`
	ExpiresAt   time.Time `bson:"expiresAt"`
}

// ToDomain converts the MongoDB document to a domain entity.
func (d *MongoLinkRequestDoc) ToDomain() *domain.LinkRequest {
	return &domain.LinkRequest{
		State:       d.State,
		Kind:        domain.LinkRequestKind(d.Kind),
		WorkspaceID: d.WorkspaceID,
		CreatedAt:   d.CreatedAt,
		ExpiresAt:   d.ExpiresAt,
	}
}

// MongoLinkRequestDocFromDomain converts a domain entity to a MongoDB document.
func MongoLinkRequestDocFromDomain(req *domain.LinkRequest) *MongoLinkRequestDoc {
	return &MongoLinkRequestDoc{
		State:       req.State,
		Kind:        string(req.Kind),
		WorkspaceID: req.WorkspaceID,
		CreatedAt:   req.CreatedAt,
		ExpiresAt:   req.ExpiresAt,
	}
}
