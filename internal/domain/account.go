package domain

import "time"

// Account is a login identity created from an active cardholder. Personal
// data is copied from the cardholder row at creation time, never taken
// from the request.
type Account struct {
	ID           int64     `json:"id"`
	Nombre       string    `json:"nombre"`
	Apellidos    string    `json:"apellidos"`
	CURP         string    `json:"curp"`
	Email        string    `json:"email"`
	Telefono     *string   `json:"telefono"`
	MunicipioID  *int64    `json:"-"`
	Municipio    string    `json:"municipio,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewAccount is what the provisioner inserts: cardholder-sourced personal
// data plus the requested login identity.
type NewAccount struct {
	Nombre       string
	Apellidos    string
	CURP         string
	Email        string
	MunicipioID  *int64
	PasswordHash string
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (r *LoginRequest) Validate() error {
	if r.Username == "" || r.Password == "" {
		return Validation("username y password son obligatorios.")
	}
	return nil
}

type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}
