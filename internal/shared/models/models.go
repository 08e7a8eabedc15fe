package models

import "time"

// Account is the public view of a registered user. The password verifier
// is never part of it.
type Account struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      *string   `json:"name"`
	CreatedAt time.Time `json:"-"`
}

type TokenResponse struct {
	Token string `json:"token"`
}

// Game is a single collection entry owned by exactly one account.
type Game struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Platform    *string   `json:"platform"`
	Description *string   `json:"description"`
	Status      *string   `json:"status"`
	HoursPlayed float64   `json:"hoursPlayed"`
	Favorite    bool      `json:"favorite"`
	CreatedAt   time.Time `json:"createdAt"`
	OwnerID     string    `json:"ownerId"`
}

type ListMeta struct {
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

type GameList struct {
	Data []Game   `json:"data"`
	Meta ListMeta `json:"meta"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
