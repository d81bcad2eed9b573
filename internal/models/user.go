package models

import "time"

// WalletType distinguishes how a user's wallet keys are held.
type WalletType string

const (
	WalletTypeNonCustodial WalletType = "non-custodial"
	WalletTypeCustodial    WalletType = "custodial"
)

// User represents an identity record in the system.
//
// A user may exist with only a twitter handle: the bot creates such stubs
// when a tip names someone we have never seen. Completing authentication
// later merges into the stub (matched by twitter id, then by handle), it
// never replaces it. A wallet may be connected independently of
// authentication, and a wallet address is unique across users.
type User struct {
	// ID is the internal identifier (UUID).
	ID string `json:"id" gorm:"column:id;primaryKey;size:36"`
	// TwitterHandle is the public social handle, unique when set.
	TwitterHandle string `json:"twitter_handle" gorm:"column:twitter_handle;size:50;uniqueIndex"`
	// TwitterID is the numeric id assigned by the social platform.
	// Empty for bot-created stubs that never authenticated.
	TwitterID string `json:"twitter_id" gorm:"column:twitter_id;size:50;index"`
	// WalletAddress is the ledger account id ("0.0.x"), nil until connected.
	WalletAddress *string `json:"wallet_address" gorm:"column:wallet_address;size:66;uniqueIndex"`
	// WalletType indicates custody of the connected wallet.
	WalletType WalletType `json:"wallet_type" gorm:"column:wallet_type;size:20;default:non-custodial"`
	// Name is the display name from the social profile.
	Name string `json:"name" gorm:"column:name;size:100"`
	// ProfileImageURL is the avatar URL from the social profile.
	ProfileImageURL string `json:"profile_image_url" gorm:"column:profile_image_url"`
	// Description is the profile bio.
	Description string `json:"description" gorm:"column:description"`
	// AccessToken and RefreshToken hold OAuth credential material.
	AccessToken  string `json:"-" gorm:"column:access_token"`
	RefreshToken string `json:"-" gorm:"column:refresh_token"`
	// TokenExpiresAt is when the access token expires.
	TokenExpiresAt *time.Time `json:"-" gorm:"column:token_expires_at"`
	// CreatedAt is when the record was created.
	CreatedAt time.Time `json:"created_at" gorm:"column:created_at"`
}

// Authenticated reports whether the user has completed account linking.
func (u *User) Authenticated() bool {
	return u.TwitterID != "" && u.AccessToken != ""
}

// HasWallet reports whether the user has a connected wallet address.
func (u *User) HasWallet() bool {
	return u.WalletAddress != nil && *u.WalletAddress != ""
}
