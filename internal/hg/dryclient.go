package hg

import (
	"context"

	"go.uber.org/zap"

	"github.com/simplesurance/mergekeeper/internal/logfields"
)

// DryClient is a client that does not change the repository history or the
// remote repository.
// Commit and Push are simulated and always succeed, all other operations are
// forwarded to the wrapped Client.
// A simulated commit discards the changes in the working directory, to allow
// the next Update to succeed.
type DryClient struct {
	*Client
	logger *zap.Logger
}

func NewDryClient(clt *Client) *DryClient {
	return &DryClient{
		Client: clt,
		logger: clt.logger.Named("dry"),
	}
}

func (c *DryClient) Commit(ctx context.Context, message string) error {
	c.logger.Info(
		"simulated commit, discarding working directory changes",
		logfields.Event("hg_commit_simulated"),
		zap.String("commit_message", message),
	)

	return c.Client.UpdateClean(ctx, ".")
}

func (c *DryClient) Push(_ context.Context, branches ...string) (string, error) {
	c.logger.Info(
		"simulated push, no changes pushed",
		logfields.Event("hg_push_simulated"),
		zap.Strings("branches", branches),
	)

	return "", nil
}
