// Package action defines the interface of actions that are run when a
// tracker event matches a trigger rule.
package action

import (
	"context"

	"go.uber.org/zap"
)

type Runner interface {
	Run(ctx context.Context) error
	String() string
	LogFields() []zap.Field
}
