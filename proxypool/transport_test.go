package proxypool

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransport_Direct(t *testing.T) {
	tr, err := Transport(nil, time.Second)
	require.NoError(t, err)
	assert.Nil(t, tr.Proxy)
	assert.NotNil(t, tr.DialContext)
}

func TestTransport_HTTPProxyCarriesCredentials(t *testing.T) {
	e := &Entry{Host: "10.0.0.1", Port: 3128, Protocol: "http", Username: "u", Password: "p"}
	tr, err := Transport(e, time.Second)
	require.NoError(t, err)
	require.NotNil(t, tr.Proxy)

	req, err := http.NewRequest(http.MethodGet, "http://example.com/", nil)
	require.NoError(t, err)
	u, err := tr.Proxy(req)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1:3128", u.Host)
	pw, _ := u.User.Password()
	assert.Equal(t, "u", u.User.Username())
	assert.Equal(t, "p", pw)
}

func TestTransport_SOCKS5UsesContextDialer(t *testing.T) {
	e := &Entry{Host: "10.0.0.1", Port: 1080, Protocol: "socks5"}
	tr, err := Transport(e, time.Second)
	require.NoError(t, err)
	assert.Nil(t, tr.Proxy)
	assert.NotNil(t, tr.DialContext)
}

func TestHTTPClient_Timeout(t *testing.T) {
	c, err := HTTPClient(nil, 7*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 7*time.Second, c.Timeout)
}
