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

// Package proof gates writes on a bucket owner's social proof count.
// Proof validation itself happens outside the hub; deployments wire a
// counter in. A zero requirement, the default, admits everyone.
package proof

import (
	"context"

	"github.com/pkg/errors"

	"github.com/gaiahub/hub/pkg/errtypes"
)

// Checker verifies the proof requirement before a mutation is admitted.
type Checker struct {
	// Required is the number of proofs a bucket owner must present;
	// zero disables checking.
	Required int
	// Count returns the number of valid proofs for address. Left nil no
	// proofs can be found, so any positive requirement rejects.
	Count func(ctx context.Context, address string) (int, error)
}

// CheckProofs returns errtypes.NotEnoughProof when address falls short of
// the requirement. A nil Checker admits everyone.
func (c *Checker) CheckProofs(ctx context.Context, address string) error {
	if c == nil || c.Required <= 0 {
		return nil
	}
	n := 0
	if c.Count != nil {
		var err error
		n, err = c.Count(ctx, address)
		if err != nil {
			return errors.Wrap(err, "proof: counting proofs")
		}
	}
	if n < c.Required {
		return errtypes.NotEnoughProof("Not enough social proofs for writes")
	}
	return nil
}
