package policy

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/axonlabs/axongate/pkg/errx"
)

// Document is the single tenant-wide policy object. It lives under one fixed
// key in the key-value store and is initialized to Defaults() on first read.
type Document struct {
	Password  PasswordPolicy `json:"password"`
	IP        IPPolicy       `json:"ip"`
	Lockout   LockoutPolicy  `json:"lockout"`
	Session   SessionPolicy  `json:"session"`
	Retention Retention      `json:"retention"`

	UpdatedAt time.Time `json:"updated_at"`
}

type PasswordPolicy struct {
	MinLength      int    `json:"min_length"`
	MaxLength      int    `json:"max_length"`
	RequireUpper   bool   `json:"require_upper"`
	RequireLower   bool   `json:"require_lower"`
	RequireDigit   bool   `json:"require_digit"`
	RequireSpecial bool   `json:"require_special"`
	SpecialChars   string `json:"special_chars"`
	DenyCommon     bool   `json:"deny_common"`
	DenyUserInfo   bool   `json:"deny_user_info"`
}

type IPPolicy struct {
	// DenyCIDRs always reject. AllowCIDRs, when exclusive, reject anything
	// outside them; when not exclusive the list is advisory only.
	DenyCIDRs          []string `json:"deny_cidrs"`
	AllowCIDRs         []string `json:"allow_cidrs"`
	AllowListExclusive bool     `json:"allow_list_exclusive"`
}

type LockoutPolicy struct {
	AutoBanEnabled bool `json:"auto_ban_enabled"`
	MaxFailed      int  `json:"max_failed"`
	BanMinutes     int  `json:"ban_minutes"`
}

type SessionPolicy struct {
	TimeoutMinutes int `json:"timeout_minutes"`
}

type Retention struct {
	Days int `json:"days"`
}

// Defaults is the document written on first read of an empty store.
func Defaults() *Document {
	return &Document{
		Password: PasswordPolicy{
			MinLength:      8,
			MaxLength:      128,
			RequireUpper:   true,
			RequireLower:   true,
			RequireDigit:   true,
			RequireSpecial: false,
			SpecialChars:   "!@#$%^&*()-_=+[]{};:,.<>?",
			DenyCommon:     true,
			DenyUserInfo:   true,
		},
		IP: IPPolicy{},
		Lockout: LockoutPolicy{
			AutoBanEnabled: true,
			MaxFailed:      10,
			BanMinutes:     15,
		},
		Session:   SessionPolicy{TimeoutMinutes: 30},
		Retention: Retention{Days: 90},
		UpdatedAt: time.Now(),
	}
}

// Validate bounds-checks an incoming document before it replaces the stored
// one. Limits are fixed, not configurable.
func (d *Document) Validate() error {
	check := func(field string, v, lo, hi int) error {
		if v < lo || v > hi {
			return ErrInvalidPolicy(fmt.Sprintf("%s must be between %d and %d, got %d", field, lo, hi, v))
		}
		return nil
	}

	if err := check("password.min_length", d.Password.MinLength, 4, 256); err != nil {
		return err
	}
	if err := check("password.max_length", d.Password.MaxLength, 4, 256); err != nil {
		return err
	}
	if d.Password.MinLength > d.Password.MaxLength {
		return ErrInvalidPolicy("password.min_length exceeds password.max_length")
	}
	if err := check("session.timeout_minutes", d.Session.TimeoutMinutes, 5, 1440); err != nil {
		return err
	}
	if err := check("lockout.max_failed", d.Lockout.MaxFailed, 1, 50); err != nil {
		return err
	}
	if err := check("retention.days", d.Retention.Days, 1, 2555); err != nil {
		return err
	}
	if d.Lockout.BanMinutes < 1 {
		return ErrInvalidPolicy("lockout.ban_minutes must be at least 1")
	}

	for _, cidr := range append(append([]string{}, d.IP.DenyCIDRs...), d.IP.AllowCIDRs...) {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			return ErrInvalidPolicy(fmt.Sprintf("invalid CIDR %q", cidr))
		}
	}
	return nil
}

// ============================================================================
// Error Registry
// ============================================================================

var ErrRegistry = errx.NewRegistry("policy")

var (
	CodeWeakPassword  = ErrRegistry.Register(1003, errx.TypeValidation, http.StatusBadRequest, "Password does not meet the password policy")
	CodeInvalidPolicy = ErrRegistry.Register(1004, errx.TypeValidation, http.StatusBadRequest, "Invalid policy document")
	CodeIPBanned      = ErrRegistry.Register(2016, errx.TypeAuthorization, http.StatusForbidden, "IP address is temporarily banned")
	CodeIPNotAllowed  = ErrRegistry.Register(2017, errx.TypeAuthorization, http.StatusForbidden, "IP address is not allowed")
)

func ErrWeakPassword(issues []string) *errx.Error {
	return ErrRegistry.New(CodeWeakPassword).WithDetail("issues", issues)
}

func ErrInvalidPolicy(reason string) *errx.Error {
	return ErrRegistry.New(CodeInvalidPolicy).WithDetail("reason", reason)
}

func ErrIPBanned(until time.Time) *errx.Error {
	return ErrRegistry.New(CodeIPBanned).WithDetail("unban_at", until.UTC().Format(time.RFC3339))
}

func ErrIPNotAllowed() *errx.Error { return ErrRegistry.New(CodeIPNotAllowed) }
