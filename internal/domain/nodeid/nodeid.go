// Package nodeid derives node identifiers from an origin pair and a secret.
package nodeid

import (
	"fmt"

	"github.com/GriffinCanCode/plugstore/internal/shared/types"
	"github.com/GriffinCanCode/plugstore/internal/shared/utils"
)

// Mode tags keep the persistent and private id spaces disjoint
const (
	persistentTag = "gmp-node/persistent"
	privateTag    = "gmp-node/private"
)

// Deriver computes NodeIDs. It holds no state and is safe for concurrent use.
type Deriver struct {
	hasher *utils.Hasher
}

// New returns a deriver using keyed BLAKE2b-256
func New() *Deriver {
	return &Deriver{hasher: utils.NewHasher(utils.BLAKE2b)}
}

// Derive returns the NodeID for (origin, topLevelOrigin, mode) under secret.
// Equal inputs always give equal ids; swapping the two origins, changing the
// mode or changing the secret gives a different id.
func (d *Deriver) Derive(origin, topLevelOrigin string, mode types.Mode, secret []byte) (types.NodeID, error) {
	if err := types.ValidateOrigin(origin); err != nil {
		return "", fmt.Errorf("origin: %w", err)
	}
	if err := types.ValidateOrigin(topLevelOrigin); err != nil {
		return "", fmt.Errorf("top-level origin: %w", err)
	}
	if len(secret) == 0 {
		return "", fmt.Errorf("derive node id: empty secret")
	}

	tag := persistentTag
	if mode == types.ModePrivate {
		tag = privateTag
	}

	return types.NodeID(d.hasher.KeyedFields(secret, tag, origin, topLevelOrigin)), nil
}
