package notify

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// fcmBatchLimit is the most tokens FCM accepts in one multicast message.
const fcmBatchLimit = 500

type multicaster interface {
	SendEachForMulticast(ctx context.Context, msg *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// FCMTransport sends data messages through Firebase Cloud Messaging.
type FCMTransport struct {
	client multicaster
}

// FCMConfig selects the Firebase project and service account. An empty
// CredentialsFile uses application default credentials.
type FCMConfig struct {
	ProjectID       string
	CredentialsFile string
}

// NewFCMTransport initializes a Firebase app and its messaging client.
func NewFCMTransport(ctx context.Context, cfg FCMConfig) (*FCMTransport, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	var fbCfg *firebase.Config
	if cfg.ProjectID != "" {
		fbCfg = &firebase.Config{ProjectID: cfg.ProjectID}
	}

	app, err := firebase.NewApp(ctx, fbCfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase messaging: %w", err)
	}
	return &FCMTransport{client: client}, nil
}

// MulticastSend sends data to tokens in batches of at most 500. Counts are
// summed across batches. A batch error aborts the remaining batches.
func (t *FCMTransport) MulticastSend(ctx context.Context, tokens []string, data map[string]string) (Result, error) {
	var res Result
	for start := 0; start < len(tokens); start += fcmBatchLimit {
		end := min(start+fcmBatchLimit, len(tokens))
		resp, err := t.client.SendEachForMulticast(ctx, &messaging.MulticastMessage{
			Tokens: tokens[start:end],
			Data:   data,
		})
		if err != nil {
			return res, fmt.Errorf("multicast tokens %d-%d: %w", start, end, err)
		}
		res.SuccessCount += resp.SuccessCount
		res.FailureCount += resp.FailureCount
	}
	return res, nil
}
