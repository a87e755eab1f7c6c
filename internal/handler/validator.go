package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/ferhatb/linkstats/internal"
)

// Validator plugs go-playground/validator into echo. Struct tag failures
// all surface as one validation error; params are checked before any data
// access happens.
type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	return &Validator{validate: validator.New()}
}

func (v *Validator) Validate(i any) error {
	if err := v.validate.Struct(i); err != nil {
		log.Debug().Err(err).Msg("request validation failed")
		return internal.Validationf("invalid or missing parameters")
	}
	return nil
}
