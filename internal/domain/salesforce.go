package domain

// CrmIdentity is the Salesforce identity behind an authorization, resolved
// through the userinfo endpoint right after the code exchange.
type CrmIdentity struct {
	UserID string
	OrgID  string
}

// CrmUserRecord is the Salesforce User record behind the /whoami command.
type CrmUserRecord struct {
	ID          string
	Name        string
	Email       string
	Phone       string
	ProfileName string
}
