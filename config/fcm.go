package config

import (
	"context"
	"errors"
	"log"
	"os"
	"sync"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

var (
	fcmClient   *messaging.Client
	fcmClientMu sync.Mutex
)

// GetMessagingClient returns the Firebase Cloud Messaging client, initializing
// with retries if needed. Uses Application Default Credentials unless
// FCM_CREDENTIALS_JSON is provided.
func GetMessagingClient(ctx context.Context) (*messaging.Client, error) {
	fcmClientMu.Lock()
	if fcmClient != nil {
		c := fcmClient
		fcmClientMu.Unlock()
		return c, nil
	}
	fcmClientMu.Unlock()

	projectID := getPubSubProjectID()
	if projectID == "" {
		return nil, errors.New("PUBSUB_PROJECT_ID/GOOGLE_CLOUD_PROJECT not set")
	}

	credJSON := os.Getenv("FCM_CREDENTIALS_JSON")

	var attempt int
	for {
		attempt++

		var opts []option.ClientOption
		if credJSON != "" {
			opts = append(opts, option.WithCredentialsJSON([]byte(credJSON)))
		}
		app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
		if err == nil {
			var c *messaging.Client
			c, err = app.Messaging(ctx)
			if err == nil {
				fcmClientMu.Lock()
				if fcmClient == nil {
					fcmClient = c
				}
				c2 := fcmClient
				fcmClientMu.Unlock()

				log.Printf("fcm client ready (project_id=%s attempt=%d)", projectID, attempt)
				return c2, nil
			}
		}

		sleep := time.Second * time.Duration(1<<min(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		log.Printf("failed to init fcm client (project_id=%s attempt=%d): %v; retrying in %s", projectID, attempt, err, sleep)
		time.Sleep(sleep)
	}
}
