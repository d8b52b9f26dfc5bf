package httpclient

import (
	"testing"

	"github.com/jarcoal/httpmock"
)

const testBaseURL = "https://backend.test/api"

// newMockClient creates a Client backed by an httpmock transport and
// registers cleanup.
func newMockClient(t *testing.T) (*Client, *httpmock.MockTransport) {
	t.Helper()
	mock := httpmock.NewMockTransport()
	client := New(&Config{BaseURL: testBaseURL + "/", Transport: mock})
	t.Cleanup(client.Close)
	return client, mock
}

func staticToken(token string) TokenSource {
	return TokenFunc(func() (string, bool) { return token, token != "" })
}
