package match

import "context"

// Client is the transport to the external matching service. One call
// covers one batch; the matcher never issues per-item requests.
type Client interface {
	// Complete sends the prompt and returns the raw completion text.
	Complete(ctx context.Context, prompt string) (string, error)
	// SetModel selects the model variant for subsequent calls. The
	// matcher uses this to switch between the fast and thorough
	// request variants.
	SetModel(model string)
}
