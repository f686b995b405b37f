package testutil

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewChatBackend(t *testing.T) {
	backend := NewChatBackend(t)
	require.NotEmpty(t, backend.ThreadID)

	req, err := http.NewRequest(http.MethodGet, backend.URL+"/chat/threads/"+backend.ThreadID+"/messages", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+BobToken)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
