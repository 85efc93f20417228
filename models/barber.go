package models

import "github.com/shopspring/decimal"

type Barber struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	IsAvailable bool   `json:"is_available"`
	PhotoURL    string `json:"photo_url,omitempty"`
}

type Service struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	DurationMinutes int             `json:"duration_minutes"`
	Price           decimal.Decimal `json:"price"`
}

type Account struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	IsBarber bool   `json:"is_barber"`
	Token    string `json:"token"`
}
