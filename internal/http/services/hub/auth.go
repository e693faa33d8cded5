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

package hub

import (
	"context"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/gaiahub/hub/pkg/auth"
	"github.com/gaiahub/hub/pkg/blacklist"
	"github.com/gaiahub/hub/pkg/errtypes"
)

// authorize runs the full admission machinery of a request: the revocation
// floor read and the blacklist check fan out concurrently, then the bearer
// token is verified against the floor. The verified identity carries the
// effective signer for scope checks and file logs.
func (s *svc) authorize(ctx context.Context, r *http.Request, bucketAddress string, op blacklist.PerformType) (*auth.Identity, error) {
	var floor int64
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		floor, err = s.revocation.Get(gctx, bucketAddress)
		return err
	})
	g.Go(func() error {
		blocked, err := s.blacklist.IsBlacklisted(gctx, bucketAddress, op)
		if err != nil {
			return err
		}
		if blocked {
			return errtypes.Validation("Address " + bucketAddress + " is not allowed to modify files")
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	identity, err := s.verify(r, bucketAddress, floor)
	if err != nil {
		return nil, err
	}

	if s.conf.CheckAssocBlacklist && identity.AssociationIssuer != "" {
		blocked, err := s.blacklist.IsBlacklisted(ctx, identity.AssociationIssuer, op)
		if err != nil {
			return nil, err
		}
		if blocked {
			return nil, errtypes.Validation("Association issuer " + identity.AssociationIssuer + " is not allowed to modify files")
		}
	}
	return identity, nil
}

// verify checks the bearer token. A zero floor disables the revocation
// check; the revoke endpoint uses that to avoid locking out the very token
// that carries the new floor.
func (s *svc) verify(r *http.Request, bucketAddress string, floor int64) (*auth.Identity, error) {
	tok, err := auth.ParseAuthHeader(r.Header.Get("Authorization"))
	if err != nil {
		return nil, err
	}
	return auth.Verify(tok, bucketAddress, s.challenges, auth.VerifyOptions{
		RequireCorrectHubURL:      s.conf.RequireCorrectHubURL,
		ValidHubURLs:              s.validHubURLs,
		OldestValidTokenTimestamp: floor,
		Whitelist:                 s.conf.Whitelist,
	})
}
