package handler

import "github.com/go-playground/validator/v10"

// validate is shared by all handlers; validator instances cache struct info.
var validate = validator.New()
