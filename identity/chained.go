package identity

import (
	"context"
	"sync"

	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"

	"github.com/nimbuscloud/nimbus-go-sdk/core"
)

// ChainedTokenCredential tries a list of credentials in order and
// remembers the first one that succeeds, consulting only it afterward.
type ChainedTokenCredential struct {
	sources []core.TokenCredential

	mu     sync.Mutex
	winner core.TokenCredential
}

// NewChainedTokenCredential chains the given credentials.
func NewChainedTokenCredential(sources ...core.TokenCredential) (*ChainedTokenCredential, error) {
	if len(sources) == 0 {
		return nil, errors.New("at least one credential is required")
	}
	for _, s := range sources {
		if s == nil {
			return nil, errors.New("credential sources cannot be nil")
		}
	}
	return &ChainedTokenCredential{sources: sources}, nil
}

// GetToken implements core.TokenCredential.
func (c *ChainedTokenCredential) GetToken(ctx context.Context, opts core.TokenRequestOptions) (core.AccessToken, error) {
	c.mu.Lock()
	winner := c.winner
	c.mu.Unlock()

	if winner != nil {
		return winner.GetToken(ctx, opts)
	}

	catcher := grip.NewBasicCatcher()
	for i, source := range c.sources {
		token, err := source.GetToken(ctx, opts)
		if err == nil {
			c.mu.Lock()
			c.winner = source
			c.mu.Unlock()
			return token, nil
		}
		catcher.Wrapf(err, "credential %d", i)
		grip.Debug(message.WrapError(err, message.Fields{
			"message":    "credential in chain failed",
			"credential": i,
			"remaining":  len(c.sources) - i - 1,
		}))
	}
	return core.AccessToken{}, errors.Wrap(catcher.Resolve(), "all credentials in the chain failed")
}
