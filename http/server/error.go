package httpserver

// TimeoutMessage is the response body for request timeouts.
const TimeoutMessage = `{"error":"context deadline exceeded"}`
