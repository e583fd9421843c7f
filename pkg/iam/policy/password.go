package policy

import (
	"fmt"
	"strings"
	"unicode"
)

// Strength labels one scoring band.
type Strength string

const (
	StrengthVeryWeak  Strength = "very_weak"
	StrengthWeak      Strength = "weak"
	StrengthFair      Strength = "fair"
	StrengthGood      Strength = "good"
	StrengthStrong    Strength = "strong"
	StrengthExcellent Strength = "excellent"
)

// PasswordReport is the outcome of one validation. The score is a pure
// function of (password, policy, userInputs); no randomness, no clock.
type PasswordReport struct {
	Valid    bool     `json:"valid"`
	Score    int      `json:"score"`
	Strength Strength `json:"strength"`
	Issues   []string `json:"issues"`
}

// commonPasswords is the embedded deny-list. Matching is case-insensitive
// and exact.
var commonPasswords = map[string]struct{}{
	"password": {}, "password1": {}, "password123": {}, "passw0rd": {},
	"123456": {}, "1234567": {}, "12345678": {}, "123456789": {}, "1234567890": {},
	"qwerty": {}, "qwerty123": {}, "abc123": {}, "letmein": {}, "welcome": {},
	"admin": {}, "iloveyou": {}, "monkey": {}, "dragon": {}, "sunshine": {},
	"princess": {}, "football": {}, "baseball": {}, "master": {}, "superman": {},
	"trustno1": {}, "login": {}, "passwort": {}, "secret": {}, "whatever": {},
}

// CheckPassword validates a plaintext candidate against the policy.
// userInputs carry identifiers (email, username, names) that must not appear
// inside the password when the policy bans user-info substrings.
func CheckPassword(pw string, pol PasswordPolicy, userInputs ...string) *PasswordReport {
	issues := []string{}

	if len(pw) < pol.MinLength {
		issues = append(issues, fmt.Sprintf("must be at least %d characters", pol.MinLength))
	}
	if pol.MaxLength > 0 && len(pw) > pol.MaxLength {
		issues = append(issues, fmt.Sprintf("must be at most %d characters", pol.MaxLength))
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range pw {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case strings.ContainsRune(pol.SpecialChars, r):
			hasSpecial = true
		}
	}

	if pol.RequireUpper && !hasUpper {
		issues = append(issues, "must contain an uppercase letter")
	}
	if pol.RequireLower && !hasLower {
		issues = append(issues, "must contain a lowercase letter")
	}
	if pol.RequireDigit && !hasDigit {
		issues = append(issues, "must contain a digit")
	}
	if pol.RequireSpecial && !hasSpecial {
		issues = append(issues, "must contain a special character")
	}

	lower := strings.ToLower(pw)
	isCommon := false
	if pol.DenyCommon {
		if _, ok := commonPasswords[lower]; ok {
			isCommon = true
			issues = append(issues, "is a commonly used password")
		}
	}

	containsUserInfo := false
	if pol.DenyUserInfo {
		for _, input := range userInputs {
			for _, part := range splitUserInput(input) {
				if len(part) >= 3 && strings.Contains(lower, part) {
					containsUserInfo = true
				}
			}
		}
		if containsUserInfo {
			issues = append(issues, "must not contain your name, email, or username")
		}
	}

	score := scorePassword(pw, hasUpper, hasLower, hasDigit, hasSpecial, isCommon, containsUserInfo)

	return &PasswordReport{
		Valid:    len(issues) == 0,
		Score:    score,
		Strength: strengthFor(score),
		Issues:   issues,
	}
}

// scorePassword maps a candidate to [0, 100]. Length earns up to 40 points,
// character classes up to 40, character variety up to 20; structural
// weaknesses subtract from that.
func scorePassword(pw string, upper, lower, digit, special, isCommon, userInfo bool) int {
	if len(pw) == 0 {
		return 0
	}
	if isCommon {
		return 5
	}

	score := 0

	length := len(pw)
	if length > 20 {
		length = 20
	}
	score += length * 2

	for _, has := range []bool{upper, lower, digit, special} {
		if has {
			score += 10
		}
	}

	unique := make(map[rune]struct{}, len(pw))
	for _, r := range pw {
		unique[r] = struct{}{}
	}
	score += (len(unique) * 20) / len([]rune(pw))

	if hasTripleRepeat(pw) {
		score -= 10
	}
	if hasSequentialRun(pw) {
		score -= 10
	}
	if userInfo {
		score -= 20
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}

func strengthFor(score int) Strength {
	switch {
	case score < 20:
		return StrengthVeryWeak
	case score < 40:
		return StrengthWeak
	case score < 60:
		return StrengthFair
	case score < 75:
		return StrengthGood
	case score < 90:
		return StrengthStrong
	default:
		return StrengthExcellent
	}
}

// hasTripleRepeat reports any run of three identical characters.
func hasTripleRepeat(pw string) bool {
	runes := []rune(pw)
	for i := 2; i < len(runes); i++ {
		if runes[i] == runes[i-1] && runes[i-1] == runes[i-2] {
			return true
		}
	}
	return false
}

// hasSequentialRun reports any ascending run of three (abc, 123) ignoring
// case.
func hasSequentialRun(pw string) bool {
	runes := []rune(strings.ToLower(pw))
	for i := 2; i < len(runes); i++ {
		if runes[i] == runes[i-1]+1 && runes[i-1] == runes[i-2]+1 {
			return true
		}
	}
	return false
}

// splitUserInput breaks an identifier into comparable lowercase fragments:
// "Alice.Smith@x.io" contributes "alice", "smith", "alice.smith".
func splitUserInput(input string) []string {
	lower := strings.ToLower(strings.TrimSpace(input))
	if lower == "" {
		return nil
	}

	parts := strings.FieldsFunc(lower, func(r rune) bool {
		return r == '@' || r == '.' || r == '_' || r == '-' || r == '+' || r == ' '
	})
	return append(parts, strings.SplitN(lower, "@", 2)[0])
}
