package entity

import (
	"time"

	"slack-salesforce-link/internal/domain"
)

// MongoInstallationDoc represents a workspace installation in MongoDB.
type MongoInstallationDoc struct {
	ID               string    `bson:"_id,omitempty"`
	WorkspaceID      string    `bson:"workspaceId"`
	TeamName         string    `bson:"teamName"`
	InstallToken     string    `bson:"installToken"`
	DefaultChannelID string    `bson:"defaultChannelId"`
	CreatedAt        time.Time `bson:"createdAt"`
	UpdatedAt        time.Time `bson:"updatedAt"`
}

// ToDomain converts the MongoDB document to a domain entity.
func (d *MongoInstallationDoc) ToDomain() *domain.Installation {
	return &domain.Installation{
		WorkspaceID:      d.WorkspaceID,
		TeamName:         d.TeamName,
		InstallToken:     d.InstallToken,
		DefaultChannelID: d.DefaultChannelID,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}
}

// MongoInstallationDocFromDomain converts a domain entity to a MongoDB document.
func MongoInstallationDocFromDomain(inst *domain.Installation) *MongoInstallationDoc {
	return &MongoInstallationDoc{
		WorkspaceID:      inst.WorkspaceID,
		TeamName:         inst.TeamName,
		InstallToken:     inst.InstallToken,
		DefaultChannelID: inst.DefaultChannelID,
		CreatedAt:        inst.CreatedAt,
		UpdatedAt:        inst.UpdatedAt,
	}
}
