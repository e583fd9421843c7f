package token

import (
	"crypto/rand"
	"crypto/rsa"

	"github.com/axonlabs/axongate/pkg/config"
	"github.com/axonlabs/axongate/pkg/errx"
	"github.com/axonlabs/axongate/pkg/logx"
	"github.com/golang-jwt/jwt/v5"
)

// Keys holds the signing material, read-only after startup.
type Keys struct {
	method    jwt.SigningMethod
	signKey   interface{}
	verifyKey interface{}
}

// NewKeys builds the signing material from configuration. HS256 uses the
// shared secret; RS256 parses the configured PEM keypair. If RS256 is
// selected with no key outside production, a process-lifetime keypair is
// generated: tokens minted with it die with the process, so this path logs
// loudly and config.Load rejects it in production.
func NewKeys(cfg config.AuthConfig, production bool) (*Keys, error) {
	switch cfg.Algorithm {
	case "HS256":
		return &Keys{
			method:    jwt.SigningMethodHS256,
			signKey:   []byte(cfg.SecretKey),
			verifyKey: []byte(cfg.SecretKey),
		}, nil

	case "RS256":
		if cfg.RSAPrivateKeyPEM == "" {
			if production {
				return nil, errx.New("RS256 requires configured keys in production", errx.TypeInternal)
			}
			logx.Warn("no RSA key configured; generating an ephemeral keypair, tokens will not survive a restart")
			key, err := rsa.GenerateKey(rand.Reader, 2048)
			if err != nil {
				return nil, errx.Wrap(err, "failed to generate ephemeral RSA keypair", errx.TypeInternal)
			}
			return &Keys{method: jwt.SigningMethodRS256, signKey: key, verifyKey: &key.PublicKey}, nil
		}

		priv, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(cfg.RSAPrivateKeyPEM))
		if err != nil {
			return nil, errx.Wrap(err, "failed to parse JWT_RSA_PRIVATE_KEY", errx.TypeInternal)
		}

		verify := interface{}(&priv.PublicKey)
		if cfg.RSAPublicKeyPEM != "" {
			pub, err := jwt.ParseRSAPublicKeyFromPEM([]byte(cfg.RSAPublicKeyPEM))
			if err != nil {
				return nil, errx.Wrap(err, "failed to parse JWT_RSA_PUBLIC_KEY", errx.TypeInternal)
			}
			verify = pub
		}
		return &Keys{method: jwt.SigningMethodRS256, signKey: priv, verifyKey: verify}, nil

	default:
		return nil, errx.New("unsupported signing algorithm "+cfg.Algorithm, errx.TypeInternal)
	}
}

// Method returns the signing method
func (k *Keys) Method() jwt.SigningMethod { return k.method }

// SignKey returns the private signing key
func (k *Keys) SignKey() interface{} { return k.signKey }

// VerifyKey returns the public verification key
func (k *Keys) VerifyKey() interface{} { return k.verifyKey }
