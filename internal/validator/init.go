package validator

import (
	"fmt"
	"regexp"
	"unicode"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"ctchen222/tictactoe-history/internal/bot"
	"ctchen222/tictactoe-history/internal/game"
)

var validate *validator.Validate

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

func init() {
	// Initialize validation
	validate = validator.New(validator.WithRequiredStructEnabled())
	// same tag gin binds with, so request models validate identically
	validate.SetTagName("binding")
	if err := RegisterCustom(validate); err != nil {
		panic(err)
	}
}

func GetValidator() *validator.Validate {
	return validate
}

// RegisterCustom adds the game and account tags to v.
func RegisterCustom(v *validator.Validate) error {
	tags := map[string]validator.Func{
		"mark":           validateMark,
		"outcome":        validateOutcome,
		"username":       validateUsername,
		"strongpassword": validateStrongPassword,
		"difficulty":     validateDifficulty,
	}
	for tag, fn := range tags {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("failed to register %s validation: %w", tag, err)
		}
	}
	return nil
}

// RegisterGinValidations installs the custom tags on gin's binding validator
// so they apply to ShouldBindJSON and ShouldBindQuery.
func RegisterGinValidations() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected gin validator engine %T", binding.Validator.Engine())
	}
	return RegisterCustom(v)
}

func validateMark(fl validator.FieldLevel) bool {
	return game.PlayerMark(fl.Field().String()).Valid()
}

func validateOutcome(fl validator.FieldLevel) bool {
	return game.Outcome(fl.Field().String()).Valid()
}

// validateDifficulty accepts an empty value, which selects the default level.
func validateDifficulty(fl validator.FieldLevel) bool {
	return bot.ValidDifficulty(fl.Field().String())
}

func validateUsername(fl validator.FieldLevel) bool {
	return usernamePattern.MatchString(fl.Field().String())
}

// validateStrongPassword requires a lowercase letter, an uppercase letter, a
// digit and a special character.
func validateStrongPassword(fl validator.FieldLevel) bool {
	var lower, upper, digit, special bool
	for _, r := range fl.Field().String() {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			special = true
		}
	}
	return lower && upper && digit && special
}
