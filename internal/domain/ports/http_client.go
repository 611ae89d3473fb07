package ports

import "net/http"

// HTTPClient lets adapters take a stub transport in tests
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}
