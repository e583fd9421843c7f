package tokensrv

import (
	"context"
	"errors"
	"time"

	"github.com/axonlabs/axongate/pkg/iam/token"
	"github.com/axonlabs/axongate/pkg/iam/user"
	"github.com/axonlabs/axongate/pkg/kernel"
	"github.com/axonlabs/axongate/pkg/logx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// JWTService implements token.Service with golang-jwt. Signing material and
// lifetimes are fixed at construction; all mutable state lives in the
// blacklist store.
type JWTService struct {
	keys       *token.Keys
	blacklist  token.Blacklist
	bindings   token.SessionBindings
	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewJWTService wires the token service.
func NewJWTService(
	keys *token.Keys,
	blacklist token.Blacklist,
	issuer, audience string,
	accessTTL, refreshTTL time.Duration,
) *JWTService {
	if accessTTL == 0 {
		accessTTL = 30 * time.Minute
	}
	if refreshTTL == 0 {
		refreshTTL = 7 * 24 * time.Hour
	}

	return &JWTService{
		keys:       keys,
		blacklist:  blacklist,
		issuer:     issuer,
		audience:   audience,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// SetSessionBindings attaches the session registry slice after construction.
// The registry itself needs the token service for revocation, so this one
// link is wired late by the composition root.
func (s *JWTService) SetSessionBindings(b token.SessionBindings) {
	s.bindings = b
}

// Mint issues one signed token of the given kind for a user snapshot.
func (s *JWTService) Mint(snap *user.Snapshot, kind token.Kind, sessionID string) (string, string, time.Time, error) {
	now := time.Now()

	ttl := s.accessTTL
	if kind == token.KindRefresh {
		ttl = s.refreshTTL
	}
	exp := now.Add(ttl)
	jti := uuid.NewString()

	perms := snap.Permissions
	if perms == nil {
		perms = []string{}
	}

	claims := token.Claims{
		TenantID:    snap.TenantID,
		Email:       snap.Email,
		Role:        snap.Role,
		Permissions: perms,
		IsActive:    snap.IsActive,
		MFAVerified: snap.MFAVerified,
		Kind:        kind,
		SessionID:   sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Audience:  []string{s.audience},
			Subject:   snap.UserID.String(),
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        jti,
		},
	}

	signed, err := jwt.NewWithClaims(s.keys.Method(), claims).SignedString(s.keys.SignKey())
	if err != nil {
		return "", "", time.Time{}, token.ErrSigningFailed().WithDetail("error", err.Error())
	}

	return signed, jti, exp, nil
}

// MintPair issues an access+refresh pair bound to one session.
func (s *JWTService) MintPair(snap *user.Snapshot, sessionID string) (*token.Pair, error) {
	access, accessJTI, accessExp, err := s.Mint(snap, token.KindAccess, sessionID)
	if err != nil {
		return nil, err
	}

	refresh, refreshJTI, refreshExp, err := s.Mint(snap, token.KindRefresh, sessionID)
	if err != nil {
		return nil, err
	}

	return &token.Pair{
		AccessToken:      access,
		RefreshToken:     refresh,
		TokenType:        "bearer",
		ExpiresIn:        int64(s.accessTTL.Seconds()),
		AccessJTI:        accessJTI,
		RefreshJTI:       refreshJTI,
		SessionID:        sessionID,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// Verify checks signature, issuer, audience, expiry, kind, and blacklist
// membership, and maps every failure to the closed error set.
func (s *JWTService) Verify(ctx context.Context, tokenString string, expected token.Kind) (*token.Claims, error) {
	claims, err := s.parse(tokenString, true)
	if err != nil {
		return nil, err
	}

	if claims.Kind != expected {
		return nil, token.ErrWrongKind().
			WithDetail("expected", string(expected)).
			WithDetail("got", string(claims.Kind))
	}

	// Blacklist lookup fails open: when the revocation store is down we
	// prefer serving sound tokens over rejecting everyone, and alert on it.
	revoked, err := s.blacklist.Contains(ctx, claims.JTI())
	if err != nil {
		logx.WithError(err).WithField("jti", claims.JTI()).
			Warn("blacklist check failed, admitting token")
	} else if revoked {
		return nil, token.ErrTokenRevoked()
	}

	return claims, nil
}

// Revoke parses the token without expiry checking and blacklists its jti
// until the token's own exp. Idempotent; failure is non-fatal at logout.
func (s *JWTService) Revoke(ctx context.Context, tokenString, reason string) bool {
	claims, err := s.parse(tokenString, false)
	if err != nil {
		return false
	}
	return s.RevokeJTI(ctx, claims.JTI(), reason, claims.ExpiresAt.Time)
}

// RevokeJTI blacklists a jti directly; already-expired tokens are a no-op
// success because there is nothing left to replay.
func (s *JWTService) RevokeJTI(ctx context.Context, jti, reason string, exp time.Time) bool {
	ttl := time.Until(exp)
	if ttl <= 0 {
		return true
	}

	if _, err := s.blacklist.Add(ctx, jti, reason, ttl); err != nil {
		logx.WithError(err).WithField("jti", jti).Warn("failed to blacklist token")
		return false
	}
	return true
}

// RevokeAllFor enumerates the user's bound jtis from the session registry
// and revokes each. Returns the number revoked.
func (s *JWTService) RevokeAllFor(ctx context.Context, userID kernel.UserID, reason string) int {
	if s.bindings == nil {
		return 0
	}

	jtis, err := s.bindings.JTIsForUser(ctx, userID)
	if err != nil {
		logx.WithError(err).WithField("user_id", userID.String()).
			Warn("failed to enumerate user tokens")
		return 0
	}

	revoked := 0
	exp := time.Now().Add(s.refreshTTL)
	for _, jti := range jtis {
		if s.RevokeJTI(ctx, jti, reason, exp) {
			revoked++
		}
	}
	return revoked
}

// Refresh rotates a refresh token: verify, then atomically claim the old
// jti on the blacklist, then mint the replacement pair. The SET NX claim is
// the tie-break: of N concurrent refreshers exactly one inserts the entry,
// the rest observe Revoked.
func (s *JWTService) Refresh(ctx context.Context, oldRefresh string, snap *user.Snapshot) (*token.Pair, error) {
	claims, err := s.Verify(ctx, oldRefresh, token.KindRefresh)
	if err != nil {
		return nil, err
	}

	ttl := time.Until(claims.ExpiresAt.Time)
	inserted, err := s.blacklist.Add(ctx, claims.JTI(), "rotated", ttl)
	if err != nil {
		// The store is down; we cannot arbitrate the rotation race, so
		// proceed (fail open) and let operators know.
		logx.WithError(err).WithField("jti", claims.JTI()).
			Warn("blacklist insert failed during refresh rotation")
	} else if !inserted {
		return nil, token.ErrTokenRevoked().WithDetail("reason", "refresh token already used")
	}

	pair, err := s.MintPair(snap, claims.SessionID)
	if err != nil {
		return nil, err
	}

	if s.bindings != nil {
		oldAccessJTI, err := s.bindings.Rebind(ctx, claims.SessionID, pair.AccessJTI, pair.RefreshJTI)
		if err != nil {
			logx.WithError(err).WithField("session_id", claims.SessionID).
				Warn("failed to rebind session after refresh")
		} else if oldAccessJTI != "" {
			s.RevokeJTI(ctx, oldAccessJTI, "rotated", time.Now().Add(s.accessTTL))
		}
	}

	return pair, nil
}

// parse verifies signature, issuer, and audience. With checkExpiry false an
// expired token still parses, which Revoke needs to blacklist correctly.
func (s *JWTService) parse(tokenString string, checkExpiry bool) (*token.Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithValidMethods([]string{s.keys.Method().Alg()}),
	}
	if !checkExpiry {
		opts = append(opts, jwt.WithoutClaimsValidation())
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &token.Claims{}, func(t *jwt.Token) (interface{}, error) {
		return s.keys.VerifyKey(), nil
	}, opts...)

	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, token.ErrTokenExpired()
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, token.ErrBadSignature()
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, token.ErrTokenMalformed()
		default:
			return nil, token.ErrTokenInvalid().WithDetail("error", err.Error())
		}
	}

	claims, ok := parsed.Claims.(*token.Claims)
	if !ok || !parsed.Valid {
		return nil, token.ErrTokenInvalid()
	}
	return claims, nil
}
