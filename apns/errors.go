package apns

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sideshow/apns2"
	"github.com/tinywideclouds/go-apns-dispatcher/internal/codec"
)

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("apns dispatcher is closed")

// DeliveryError reports a notification APNs did not accept.
//
// For a rejected request StatusCode and Body hold the HTTP status and the raw
// response text; Reason and Timestamp are decoded from Body when it is the usual
// APNs JSON object. For a transport failure StatusCode is 0 and Err holds the
// underlying error.
//
// The dispatcher never retries. Whether a status such as 429 TooManyRequests
// or 503 is worth retrying is the caller's decision.
type DeliveryError struct {
	// The HTTP status code:
	//  400 - Bad request
	//  403 - There was an error with the certificate or with the provider token.
	//  405 - The request used a bad :method value. Only POST requests are supported.
	//  410 - The device token is no longer active for the topic.
	//  413 - The notification payload was too large.
	//  429 - The server received too many requests for the same device token.
	//  500 - Internal server error
	//  503 - The server is shutting down and unavailable.
	StatusCode int
	Body       string
	Reason     string
	// Milliseconds since the epoch. Set with 410 responses to the last time
	// APNs confirmed the token was no longer valid for the topic.
	Timestamp int64
	// APNsID is the apns-id echoed by the server, if any.
	APNsID string
	Err    error
}

type errorBody struct {
	Reason    string `json:"reason"`
	Timestamp int64  `json:"timestamp"`
}

func newDeliveryError(status int, body []byte, apnsID string) *DeliveryError {
	e := &DeliveryError{
		StatusCode: status,
		Body:       string(body),
		APNsID:     apnsID,
	}
	var decoded errorBody
	if len(body) > 0 && codec.Unmarshal(body, &decoded) == nil {
		e.Reason = decoded.Reason
		e.Timestamp = decoded.Timestamp
	}
	return e
}

func (e *DeliveryError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("APNs transport failed: %v", e.Err)
	}
	if e.Reason != "" {
		return fmt.Sprintf("APNs rejected notification (status %d): %s", e.StatusCode, e.Reason)
	}
	return fmt.Sprintf("APNs rejected notification (status %d): %q", e.StatusCode, e.Body)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// Time returns Timestamp as a time, or the zero time when absent.
func (e *DeliveryError) Time() time.Time {
	if e.Timestamp == 0 {
		return time.Time{}
	}
	return time.UnixMilli(e.Timestamp)
}

// DeviceTokenInvalid reports whether APNs says the device token is dead for the
// topic. Callers should stop sending to it.
func (e *DeliveryError) DeviceTokenInvalid() bool {
	switch e.Reason {
	case apns2.ReasonBadDeviceToken, apns2.ReasonUnregistered, apns2.ReasonDeviceTokenNotForTopic:
		return true
	}
	return e.StatusCode == http.StatusGone
}

// ProviderTokenRejected reports whether APNs refused the bearer token itself.
// The dispatcher drops such a token so the next Send signs a new one.
func (e *DeliveryError) ProviderTokenRejected() bool {
	switch e.Reason {
	case apns2.ReasonExpiredProviderToken, apns2.ReasonInvalidProviderToken:
		return true
	}
	return false
}

// Temporary reports whether the same request may succeed later: transport
// failures, throttling and server-side errors. Configuration errors such as
// TopicDisallowed are not temporary.
func (e *DeliveryError) Temporary() bool {
	if e.StatusCode == 0 {
		return true
	}
	switch e.Reason {
	case apns2.ReasonTooManyRequests, apns2.ReasonInternalServerError,
		apns2.ReasonServiceUnavailable, apns2.ReasonShutdown:
		return true
	}
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}
