package utils

import "errors"

// ErrDropMessage tells the push handler to ack the Pub/Sub message without
// retrying. Workflows return it (wrapped) for events that are permanently
// unprocessable, for example a movement whose serial matches nothing under
// the skip policy.
var ErrDropMessage = errors.New("drop message")
