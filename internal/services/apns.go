package services

import (
	"context"
	"fmt"

	"github.com/sideshow/apns2"
	apnspayload "github.com/sideshow/apns2/payload"
	"github.com/sideshow/apns2/token"
)

// APNSProvider implements Multicaster on the Apple push service.
type APNSProvider struct {
	client *apns2.Client
	topic  string
}

var _ Multicaster = (*APNSProvider)(nil)

// NewAPNSProvider creates an APNs-backed push provider from a token auth key.
func NewAPNSProvider(keyPath, keyID, teamID, topic string, production bool) (*APNSProvider, error) {
	authKey, err := token.AuthKeyFromFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load APNs auth key: %w", err)
	}

	client := apns2.NewTokenClient(&token.Token{
		AuthKey: authKey,
		KeyID:   keyID,
		TeamID:  teamID,
	})
	if production {
		client = client.Production()
	} else {
		client = client.Development()
	}

	return &APNSProvider{client: client, topic: topic}, nil
}

// SendMulticast pushes the payload to each token. APNs has no true batch
// call, so a batch is a sequential series of per-token pushes; rejected
// tokens with an unregistered-style reason are reported as invalid.
func (p *APNSProvider) SendMulticast(ctx context.Context, tokens []string, payload PushPayload) (BatchResult, error) {
	builder := apnspayload.NewPayload().
		AlertTitle(payload.Title).
		AlertBody(payload.Body).
		Sound("default")
	for k, v := range payload.Data {
		builder = builder.Custom(k, v)
	}

	var result BatchResult
	for _, t := range tokens {
		notification := &apns2.Notification{
			DeviceToken: t,
			Topic:       p.topic,
			Payload:     builder,
			Priority:    apns2.PriorityHigh,
		}

		res, err := p.client.PushWithContext(ctx, notification)
		if err != nil {
			result.FailureCount++
			return result, fmt.Errorf("apns push failed: %w", err)
		}
		if res.Sent() {
			result.SuccessCount++
			continue
		}

		result.FailureCount++
		if isInvalidTokenReason(res.Reason) {
			result.InvalidTokens = append(result.InvalidTokens, t)
		}
	}
	return result, nil
}

func isInvalidTokenReason(reason string) bool {
	switch reason {
	case apns2.ReasonUnregistered,
		apns2.ReasonBadDeviceToken,
		apns2.ReasonDeviceTokenNotForTopic:
		return true
	}
	return false
}
