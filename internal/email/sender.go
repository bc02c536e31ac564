// Package email is the outbound-mail collaborator: an opaque
// send(to, subject, html) surface whose only failure mode the caller cares
// about is "retryable or not". Delivery itself happens out of process; the
// request that triggered a send is never blocked on the mail transport.
package email

import (
	"context"
	"errors"
)

// ErrRetryable classifies a send failure as transient. Callers report it to
// the user as a service error worth retrying rather than dropping it
// silently.
var ErrRetryable = errors.New("email send failed, retryable")

// Sender is injected wherever a flow needs to produce mail.
type Sender interface {
	Send(ctx context.Context, to, subject, html string) error
}

// Message is the job payload exchanged over the broker.
type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}
