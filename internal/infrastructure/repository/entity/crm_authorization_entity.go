package entity

import (
	"time"

	"slack-salesforce-link/internal/domain"
)

// MongoCrmAuthorizationDoc represents a Salesforce authorization in MongoDB.
type MongoCrmAuthorizationDoc struct {
	ID           string    `bson:"_id,omitempty"`
	WorkspaceID  string    `bson:"workspaceId"`
	AccessToken  string    `bson:"accessToken"`
	RefreshToken string    `bson:"refreshToken"`
	InstanceURL  string    `bson:"instanceUrl"`
	CrmUserID    string    `bson:"crmUserId"`
	CrmOrgID     string    `bson:"crmOrgId"`
	IssuedAt     time.Time `bson:"issuedAt"`
	UpdatedAt    time.Time `bson:"updatedAt"`
}

// ToDomain converts the MongoDB document to a domain entity.
func (d *MongoCrmAuthorizationDoc) ToDomain() *domain.CrmAuthorization {
	return &domain.CrmAuthorization{
		WorkspaceID:  d.WorkspaceID,
		AccessToken:  d.AccessToken,
		RefreshToken: d.RefreshToken,
		InstanceURL:  d.InstanceURL,
		CrmUserID:    d.CrmUserID,
		CrmOrgID:     d.CrmOrgID,
		IssuedAt:     d.IssuedAt,
	}
}

// MongoCrmAuthorizationDocFromDomain converts a domain entity to a MongoDB document.
func MongoCrmAuthorizationDocFromDomain(auth *domain.CrmAuthorization) *MongoCrmAuthorizationDoc {
	return &MongoCrmAuthorizationDoc{
		WorkspaceID:  auth.WorkspaceID,
		AccessToken:  auth.AccessToken,
		RefreshToken: auth.RefreshToken,
		InstanceURL:  auth.InstanceURL,
		CrmUserID:    auth.CrmUserID,
		CrmOrgID:     auth.CrmOrgID,
		IssuedAt:     auth.IssuedAt,
	}
}
