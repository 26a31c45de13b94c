package security

import (
	"fmt"
	"strings"
	"unicode"

	zxcvbn "github.com/nbutton23/zxcvbn-go"

	"github.com/arklim/storefront-iam/internal/core/port"
)

// PasswordViolation describes the first policy rule a password broke.
type PasswordViolation struct {
	Code    string
	Message string
}

func (v *PasswordViolation) Error() string {
	return v.Message
}

// PasswordPolicyConfig selects which rules are enforced. Zero values disable a rule.
type PasswordPolicyConfig struct {
	MinLength           int
	MaxLength           int
	MinCharacterClasses int
	MinStrengthScore    int
}

type passwordRule func(password string, userInputs []string) *PasswordViolation

// PasswordPolicy checks passwords against length, character class and zxcvbn strength rules.
type PasswordPolicy struct {
	rules []passwordRule
}

// NewPasswordPolicy builds a policy from cfg.
func NewPasswordPolicy(cfg PasswordPolicyConfig) *PasswordPolicy {
	var rules []passwordRule
	if cfg.MinLength > 0 {
		rules = append(rules, minLength(cfg.MinLength))
	}
	if cfg.MaxLength > 0 {
		rules = append(rules, maxLength(cfg.MaxLength))
	}
	if cfg.MinCharacterClasses > 0 {
		rules = append(rules, characterClasses(cfg.MinCharacterClasses))
	}
	if cfg.MinStrengthScore > 0 {
		rules = append(rules, strength(min(cfg.MinStrengthScore, 4)))
	}
	return &PasswordPolicy{rules: rules}
}

// Validate returns a *PasswordViolation for the first failing rule. userInputs such as
// the name and email make passwords derived from them score lower.
func (p *PasswordPolicy) Validate(password string, userInputs ...string) error {
	inputs := make([]string, 0, len(userInputs))
	for _, in := range userInputs {
		if in = strings.TrimSpace(in); in != "" {
			inputs = append(inputs, in)
		}
	}

	for _, rule := range p.rules {
		if v := rule(password, inputs); v != nil {
			return v
		}
	}
	return nil
}

func minLength(n int) passwordRule {
	return func(password string, _ []string) *PasswordViolation {
		if len([]rune(password)) < n {
			return &PasswordViolation{Code: "min_length", Message: fmt.Sprintf("password must be at least %d characters long", n)}
		}
		return nil
	}
}

func maxLength(n int) passwordRule {
	return func(password string, _ []string) *PasswordViolation {
		if len([]rune(password)) > n {
			return &PasswordViolation{Code: "max_length", Message: fmt.Sprintf("password must be at most %d characters long", n)}
		}
		return nil
	}
}

func characterClasses(n int) passwordRule {
	return func(password string, _ []string) *PasswordViolation {
		var upper, lower, digit, symbol int
		for _, r := range password {
			switch {
			case unicode.IsUpper(r):
				upper = 1
			case unicode.IsLower(r):
				lower = 1
			case unicode.IsDigit(r):
				digit = 1
			case unicode.IsSymbol(r) || unicode.IsPunct(r):
				symbol = 1
			}
		}
		if upper+lower+digit+symbol < n {
			return &PasswordViolation{Code: "character_classes", Message: fmt.Sprintf("password must include at least %d character types", n)}
		}
		return nil
	}
}

func strength(score int) passwordRule {
	return func(password string, inputs []string) *PasswordViolation {
		if zxcvbn.PasswordStrength(password, inputs).Score < score {
			return &PasswordViolation{Code: "weak_password", Message: "password is too weak; choose a more complex value"}
		}
		return nil
	}
}

var _ port.PasswordPolicyValidator = (*PasswordPolicy)(nil)
