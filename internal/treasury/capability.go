// Package treasury models the program-controlled authority over the treasury
// holding as an internal capability token. The governance service mints a
// Grant scoped to exactly one execution tuple and presents it to the ledger;
// the ledger verifies it before any treasury debit. No external key ever
// signs a treasury transfer.
package treasury

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"time"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// pbkdf2Iterations matches the OWASP-recommended minimum for HMAC-SHA256.
	pbkdf2Iterations = 480_000
	derivedKeyLen    = 32

	// grantTTL bounds how long a minted grant stays presentable. Grants are
	// minted and consumed within a single execution call; the TTL only
	// guards against a stalled caller replaying one much later.
	grantTTL = 30 * time.Second
)

// keySalt is a fixed derivation context, not a secret. The passphrase is.
var keySalt = []byte("metadao/treasury/v1")

// Vault holds the derived signing key shared by the grant minter and the
// ledger-side verifier. Construct one per process and wire the same instance
// to both sides.
type Vault struct {
	key []byte
}

// NewVault derives the vault signing key from the configured passphrase.
func NewVault(passphrase string) (*Vault, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("treasury: passphrase must not be empty")
	}
	key := pbkdf2.Key([]byte(passphrase), keySalt, pbkdf2Iterations, derivedKeyLen, sha512.New)
	return &Vault{key: key}, nil
}

// Grant authorizes one treasury execution. The signature field is
// unexported: a Grant is only mintable through a Vault and cannot be
// fabricated or persisted by other packages.
type Grant struct {
	ProposalID  uint64
	Recipient   string
	TokenAsset  string
	Amount      uint64
	TokenAmount uint64
	IssuedAt    time.Time

	sig []byte
}

// Mint issues a grant for the given execution tuple.
func (v *Vault) Mint(proposalID uint64, recipient, tokenAsset string, amount, tokenAmount uint64) Grant {
	g := Grant{
		ProposalID:  proposalID,
		Recipient:   recipient,
		TokenAsset:  tokenAsset,
		Amount:      amount,
		TokenAmount: tokenAmount,
		IssuedAt:    time.Now().UTC(),
	}
	g.sig = v.sign(g)
	return g
}

// Verify reports whether the grant was minted by this vault for exactly the
// tuple it carries and is still within its TTL.
func (v *Vault) Verify(g Grant) bool {
	if len(g.sig) == 0 {
		return false
	}
	if time.Since(g.IssuedAt) > grantTTL || g.IssuedAt.After(time.Now().Add(time.Minute)) {
		return false
	}
	return hmac.Equal(g.sig, v.sign(g))
}

// sign computes HMAC-SHA256 over the canonical grant message.
func (v *Vault) sign(g Grant) []byte {
	mac := hmac.New(sha256.New, v.key)
	fmt.Fprintf(mac, "%d|%s|%s|%d|%d|%d",
		g.ProposalID, g.Recipient, g.TokenAsset, g.Amount, g.TokenAmount, g.IssuedAt.UnixNano())
	return mac.Sum(nil)
}
