package domain

import "time"

// Shop is the persisted record of one merchant installation.
// AccessToken is stored encrypted; only the gateway decrypts it.
type Shop struct {
	Domain        string     `json:"domain" bson:"domain"`
	AccessToken   string     `json:"-" bson:"access_token"`
	Scopes        []string   `json:"scopes" bson:"scopes"`
	Active        bool       `json:"active" bson:"active"`
	InstalledAt   time.Time  `json:"installed_at" bson:"installed_at"`
	UninstalledAt *time.Time `json:"uninstalled_at,omitempty" bson:"uninstalled_at,omitempty"`
}
