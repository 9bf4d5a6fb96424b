package models

import "time"

// Principal is a registered user as persisted by a PrincipalStore.
// RefreshTokenHash is the SHA-256 digest of the single live refresh token,
// empty when no session is active.
type Principal struct {
	ID               string    `bson:"_id"`
	Username         string    `bson:"username"`
	Email            string    `bson:"email"`
	FullName         string    `bson:"fullName"`
	PasswordHash     string    `json:"-" bson:"passwordHash"`
	RefreshTokenHash string    `json:"-" bson:"refreshTokenHash,omitempty"`
	CreatedAt        time.Time `bson:"createdAt"`
	UpdatedAt        time.Time `bson:"updatedAt"`
}

// PrincipalView is the sanitized projection handed to handlers and clients.
type PrincipalView struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	FullName  string    `json:"fullName"`
	CreatedAt time.Time `json:"createdAt"`
}

func (p *Principal) View() PrincipalView {
	return PrincipalView{
		ID:        p.ID,
		Username:  p.Username,
		Email:     p.Email,
		FullName:  p.FullName,
		CreatedAt: p.CreatedAt,
	}
}
