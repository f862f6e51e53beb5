// Package gmail implements source.Provider over the Gmail API.
package gmail

import (
	"context"

	gmailv1 "google.golang.org/api/gmail/v1"
)

const userID = "me"

// MessagesAPI is the subset of the Gmail messages API the provider uses.
type MessagesAPI interface {
	List(ctx context.Context, max int64) ([]*gmailv1.Message, error)
	Get(ctx context.Context, id string) (*gmailv1.Message, error)
	Send(ctx context.Context, msg *gmailv1.Message) (*gmailv1.Message, error)
}

type serviceAPI struct {
	svc *gmailv1.Service
}

// NewMessagesAPI adapts an authorized *gmailv1.Service.
func NewMessagesAPI(svc *gmailv1.Service) MessagesAPI {
	return &serviceAPI{svc: svc}
}

func (a *serviceAPI) List(ctx context.Context, max int64) ([]*gmailv1.Message, error) {
	resp, err := a.svc.Users.Messages.List(userID).MaxResults(max).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

func (a *serviceAPI) Get(ctx context.Context, id string) (*gmailv1.Message, error) {
	return a.svc.Users.Messages.Get(userID, id).Format("full").Context(ctx).Do()
}

func (a *serviceAPI) Send(ctx context.Context, msg *gmailv1.Message) (*gmailv1.Message, error) {
	return a.svc.Users.Messages.Send(userID, msg).Context(ctx).Do()
}
