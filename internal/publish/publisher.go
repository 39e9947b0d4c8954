// Package publish delivers finished posts to their destination channel.
package publish

import (
	"context"
)

// Publisher delivers generated text to a destination. An empty destination
// means the configured default channel. A non-nil error marks the delivery
// as failed; the pipeline sets the unit to failed and moves on.
type Publisher interface {
	Publish(ctx context.Context, text, destination string) error
}
