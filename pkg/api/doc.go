// Package api is a small JSON-over-HTTP client for the discussion REST API.
//
// Requests carry an OpenTelemetry client span named after the method and
// path, and the configured timeout applies per request. Non-2xx responses
// become *HTTPError values that match ErrStatus with errors.Is.
//
//	c := api.New("https://discuss.example.com/api", api.WithTimeout(10*time.Second))
//	if err := c.Delete(ctx, "/comments/42"); err != nil {
//	    var herr *api.HTTPError
//	    if errors.As(err, &herr) && herr.StatusCode == http.StatusNotFound {
//	        // already gone
//	    }
//	}
package api
