package match

import "context"

// MockClient is a deterministic Client for tests and dry runs. It
// records the last prompt and model it saw and replays a canned
// response or error.
type MockClient struct {
	Response string
	Err      error

	LastPrompt string
	LastModel  string
	Calls      int
}

// Complete replays the canned response.
func (m *MockClient) Complete(_ context.Context, prompt string) (string, error) {
	m.Calls++
	m.LastPrompt = prompt
	if m.Err != nil {
		return "", m.Err
	}
	return m.Response, nil
}

// SetModel records the selected model.
func (m *MockClient) SetModel(model string) {
	m.LastModel = model
}
