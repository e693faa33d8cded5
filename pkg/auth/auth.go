// Copyright 2018-2026 Gaia Hub Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package auth parses and verifies the bearer tokens storage clients sign
// with their secp256k1 keys. Only verification lives here; minting tokens
// is a client concern and appears in this package solely through the
// signing half of the ES256K method, which the tests use.
package auth

import (
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/golang-jwt/jwt/v5"

	"github.com/gaiahub/hub/pkg/address"
	"github.com/gaiahub/hub/pkg/auth/scope"
	"github.com/gaiahub/hub/pkg/errtypes"
)

// LatestAuthVersion is the token version this hub understands.
const LatestAuthVersion = "v1"

// ChallengeText returns the canonical challenge clients must sign into
// their tokens for the given server name.
func ChallengeText(serverName string) string {
	b, _ := json.Marshal([]string{"gaiahub", "0", serverName, "blockstack_storage_please_sign"})
	return string(b)
}

// ValidChallenges lists the challenge texts currently accepted by a hub
// named serverName.
func ValidChallenges(serverName string) []string {
	return []string{ChallengeText(serverName)}
}

// Claims is the token payload. The same shape carries both the outer
// bearer token and the nested association token.
type Claims struct {
	Issuer           string           `json:"iss"`
	GaiaChallenge    string           `json:"gaiaChallenge,omitempty"`
	HubURL           string           `json:"hubUrl,omitempty"`
	GaiaHubURL       string           `json:"gaiaHubUrl,omitempty"`
	Salt             string           `json:"salt,omitempty"`
	Scopes           []scope.Entry    `json:"scopes,omitempty"`
	AssociationToken string           `json:"associationToken,omitempty"`
	ChildToAssociate string           `json:"childToAssociate,omitempty"`
	ExpiresAt        *jwt.NumericDate `json:"exp,omitempty"`
	IssuedAt         *jwt.NumericDate `json:"iat,omitempty"`
}

// GetExpirationTime implements the jwt.Claims interface.
func (c *Claims) GetExpirationTime() (*jwt.NumericDate, error) { return c.ExpiresAt, nil }

// GetIssuedAt implements the jwt.Claims interface.
func (c *Claims) GetIssuedAt() (*jwt.NumericDate, error) { return c.IssuedAt, nil }

// GetNotBefore implements the jwt.Claims interface.
func (c *Claims) GetNotBefore() (*jwt.NumericDate, error) { return nil, nil }

// GetIssuer implements the jwt.Claims interface.
func (c *Claims) GetIssuer() (string, error) { return c.Issuer, nil }

// GetSubject implements the jwt.Claims interface.
func (c *Claims) GetSubject() (string, error) { return "", nil }

// GetAudience implements the jwt.Claims interface.
func (c *Claims) GetAudience() (jwt.ClaimStrings, error) { return nil, nil }

// Token is a parsed Authorization header.
type Token struct {
	Version string
	Raw     string
}

// ParseAuthHeader splits a "bearer v1:<jwt>" header. The scheme is case
// insensitive; the version prefix is mandatory.
func ParseAuthHeader(header string) (*Token, error) {
	if header == "" {
		return nil, errtypes.Validation("Failed to parse authentication header.")
	}
	fields := strings.SplitN(header, " ", 2)
	if len(fields) != 2 || !strings.EqualFold(fields[0], "bearer") {
		return nil, errtypes.Validation("Failed to parse authentication header.")
	}
	rest := fields[1]
	idx := strings.Index(rest, ":")
	if idx < 0 {
		return nil, errtypes.Validation("Failed to parse authentication header: missing token version.")
	}
	version, raw := rest[:idx], rest[idx+1:]
	if version != LatestAuthVersion {
		return nil, errtypes.Validation("Unsupported authentication token version " + version)
	}
	if raw == "" {
		return nil, errtypes.Validation("Failed to parse authentication header: empty token.")
	}
	return &Token{Version: version, Raw: raw}, nil
}

// VerifyOptions carries the per request verification policy.
type VerifyOptions struct {
	// RequireCorrectHubURL demands a hubUrl claim matching ValidHubURLs.
	RequireCorrectHubURL bool
	ValidHubURLs         []string
	// OldestValidTokenTimestamp is the bucket's revocation floor in unix
	// seconds; zero disables the check.
	OldestValidTokenTimestamp int64
	// Whitelist restricts the effective signer when non empty.
	Whitelist []string
}

// Identity is the authenticated principal of a request.
type Identity struct {
	// Address is the bucket address derived from the token issuer.
	Address string
	// AssociationIssuer is the address of the association token signer,
	// empty when the token carries no association.
	AssociationIssuer string
	Claims            *Claims
}

// EffectiveSigner is the address consulted for whitelist membership and
// recorded on file logs.
func (i *Identity) EffectiveSigner() string {
	if i.AssociationIssuer != "" {
		return i.AssociationIssuer
	}
	return i.Address
}

// Scopes parses the token's scope entries into the authorization sets.
func (i *Identity) Scopes() (*scope.Set, error) {
	return scope.Parse(i.Claims.Scopes)
}

// Verify checks tok against the bucket address and the accepted challenge
// texts and resolves the effective principal. Claims that gate on request
// routing (issuer address, hub URL, scope shape) are inspected before the
// signature so the caller sees the specific failure; the revocation floor
// applies only after the signature proves possession of the issuer key.
func Verify(tok *Token, bucketAddress string, challenges []string, opts VerifyOptions) (*Identity, error) {
	parser := jwt.NewParser()
	claims := &Claims{}
	t, parts, err := parser.ParseUnverified(tok.Raw, claims)
	if err != nil {
		return nil, errtypes.Validation("Failed to parse the authentication token.")
	}
	if t.Method.Alg() != AlgES256K {
		return nil, errtypes.Validation("Unsupported signing algorithm " + t.Method.Alg())
	}
	if claims.Issuer == "" {
		return nil, errtypes.Validation("Must provide a token with an iss claim")
	}
	issuerAddress, err := address.FromPublicKey(claims.Issuer)
	if err != nil {
		return nil, errtypes.Validation("Failed to parse the token issuer public key")
	}
	if issuerAddress != bucketAddress {
		return nil, errtypes.Validation("Token issuer " + issuerAddress + " is not allowed to write on this path")
	}
	if opts.RequireCorrectHubURL {
		hubURL := claims.HubURL
		if hubURL == "" {
			hubURL = claims.GaiaHubURL
		}
		if hubURL == "" {
			return nil, errtypes.Validation("Tokens must provide a hubUrl claim")
		}
		if !containsURL(opts.ValidHubURLs, hubURL) {
			return nil, errtypes.Validation("Invalid hubUrl claim " + hubURL)
		}
	}
	if claims.Scopes != nil {
		if err := scope.ValidateEntries(claims.Scopes); err != nil {
			return nil, err
		}
	}
	if err := verifySignature(parser, t, parts, claims.Issuer); err != nil {
		return nil, err
	}
	if !contains(challenges, claims.GaiaChallenge) {
		return nil, errtypes.Validation("Invalid gaiaChallenge text in supplied token")
	}
	now := time.Now()
	if claims.ExpiresAt != nil && claims.ExpiresAt.Before(now) {
		return nil, errtypes.Validation("Expired authentication token")
	}
	if opts.OldestValidTokenTimestamp > 0 && claims.IssuedAt != nil &&
		claims.IssuedAt.Unix() < opts.OldestValidTokenTimestamp {
		return nil, errtypes.NewAuthTokenTimestamp(opts.OldestValidTokenTimestamp)
	}

	identity := &Identity{Address: bucketAddress, Claims: claims}
	if claims.AssociationToken != "" {
		assocIssuer, err := verifyAssociation(parser, claims.AssociationToken, bucketAddress, opts, now)
		if err != nil {
			return nil, err
		}
		identity.AssociationIssuer = assocIssuer
	}

	if len(opts.Whitelist) > 0 && !contains(opts.Whitelist, identity.EffectiveSigner()) {
		return nil, errtypes.Validation("Address " + identity.EffectiveSigner() + " is not authorized for writes")
	}
	return identity, nil
}

func verifyAssociation(parser *jwt.Parser, raw, bucketAddress string, opts VerifyOptions, now time.Time) (string, error) {
	claims := &Claims{}
	t, parts, err := parser.ParseUnverified(raw, claims)
	if err != nil {
		return "", errtypes.Validation("Failed to parse the association token.")
	}
	if t.Method.Alg() != AlgES256K {
		return "", errtypes.Validation("Unsupported signing algorithm " + t.Method.Alg())
	}
	if claims.Issuer == "" {
		return "", errtypes.Validation("Must provide an association token with an iss claim")
	}
	if claims.ChildToAssociate == "" {
		return "", errtypes.Validation("Must provide a childToAssociate claim in the association token")
	}
	if claims.ExpiresAt == nil {
		return "", errtypes.Validation("Must provide an exp claim in the association token")
	}
	if err := verifySignature(parser, t, parts, claims.Issuer); err != nil {
		return "", err
	}
	if claims.ExpiresAt.Before(now) {
		return "", errtypes.Validation("Expired association token")
	}
	childAddress, err := address.FromPublicKey(claims.ChildToAssociate)
	if err != nil {
		return "", errtypes.Validation("Failed to parse the childToAssociate public key")
	}
	if childAddress != bucketAddress {
		return "", errtypes.Validation("Association token child key does not match the bucket address")
	}
	if opts.OldestValidTokenTimestamp > 0 && claims.IssuedAt != nil &&
		claims.IssuedAt.Unix() < opts.OldestValidTokenTimestamp {
		return "", errtypes.NewAuthTokenTimestamp(opts.OldestValidTokenTimestamp)
	}
	return address.FromPublicKey(claims.Issuer)
}

func verifySignature(parser *jwt.Parser, t *jwt.Token, parts []string, issuerHex string) error {
	rawKey, err := hex.DecodeString(issuerHex)
	if err != nil {
		return errtypes.Validation("Failed to parse the token issuer public key")
	}
	pub, err := secp256k1.ParsePubKey(rawKey)
	if err != nil {
		return errtypes.Validation("Failed to parse the token issuer public key")
	}
	sig, err := parser.DecodeSegment(parts[2])
	if err != nil {
		return errtypes.Validation("Failed to verify the supplied authentication token")
	}
	if err := t.Method.Verify(strings.Join(parts[0:2], "."), sig, pub); err != nil {
		return errtypes.Validation("Failed to verify the supplied authentication token")
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, c := range list {
		if c == v {
			return true
		}
	}
	return false
}

func containsURL(urls []string, u string) bool {
	nu := strings.TrimSuffix(u, "/")
	for _, candidate := range urls {
		if strings.TrimSuffix(candidate, "/") == nu {
			return true
		}
	}
	return false
}
