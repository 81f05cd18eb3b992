package push

import (
	"context"

	"bitbucket.org/vmgroup/dealer_backend/config"
	"firebase.google.com/go/v4/messaging"
)

// Messenger abstracts the push provider so the dispatcher and its tests do
// not depend on a live FCM project.
type Messenger interface {
	// SendMulticast delivers one message to a set of device tokens and
	// returns the tokens the provider reported as dead. A dead token is a
	// pruning signal, not an error.
	SendMulticast(ctx context.Context, tokens []string, title, body string, data map[string]string) (success int, failure int, invalid []string, err error)
}

type fcmMessenger struct {
	client *messaging.Client
}

// NewFCMMessenger wraps the shared Firebase messaging client.
func NewFCMMessenger(ctx context.Context) (Messenger, error) {
	client, err := config.GetMessagingClient(ctx)
	if err != nil {
		return nil, err
	}
	return &fcmMessenger{client: client}, nil
}

func (m *fcmMessenger) SendMulticast(ctx context.Context, tokens []string, title, body string, data map[string]string) (int, int, []string, error) {
	if len(tokens) == 0 {
		return 0, 0, nil, nil
	}

	success, failure := 0, 0
	var invalid []string

	// FCM caps multicast at 500 tokens per call.
	for start := 0; start < len(tokens); start += 500 {
		end := start + 500
		if end > len(tokens) {
			end = len(tokens)
		}
		batch := tokens[start:end]

		resp, err := m.client.SendEachForMulticast(ctx, &messaging.MulticastMessage{
			Tokens: batch,
			Notification: &messaging.Notification{
				Title: title,
				Body:  body,
			},
			Data: data,
		})
		if err != nil {
			return success, failure, invalid, err
		}

		success += resp.SuccessCount
		failure += resp.FailureCount
		for i, r := range resp.Responses {
			if r.Success || r.Error == nil {
				continue
			}
			if messaging.IsRegistrationTokenNotRegistered(r.Error) || messaging.IsUnregistered(r.Error) || messaging.IsInvalidArgument(r.Error) {
				invalid = append(invalid, batch[i])
			}
		}
	}
	return success, failure, invalid, nil
}
