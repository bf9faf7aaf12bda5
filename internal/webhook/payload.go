package webhook

import (
	"encoding/json"
	"fmt"

	"github.com/temirov/cascade/internal/cascade"
	"github.com/temirov/cascade/internal/repository"
)

// Event and action names the handler routes on.
const (
	EventPing         = "ping"
	EventPullRequest  = "pull_request"
	ActionOpened      = "opened"
	ActionSynchronize = "synchronize"
	ActionClosed      = "closed"
)

const (
	payloadDecodeErrorTemplateConstant = "malformed %s payload: %v"
	payloadFieldErrorTemplateConstant  = "malformed %s payload: %s is required"
	repositoryFieldConstant            = "repository.owner.login and repository.name"
	pullRequestFieldConstant           = "pull_request"
	actionFieldConstant                = "action"
)

// PayloadError reports a delivery whose body cannot be turned into an event.
type PayloadError struct {
	Event   string
	Message string
	Cause   error
}

// Error describes the payload problem.
func (payloadError PayloadError) Error() string {
	if payloadError.Cause != nil {
		return fmt.Sprintf(payloadDecodeErrorTemplateConstant, payloadError.Event, payloadError.Cause)
	}
	return fmt.Sprintf(payloadFieldErrorTemplateConstant, payloadError.Event, payloadError.Message)
}

// Unwrap exposes the decoding error.
func (payloadError PayloadError) Unwrap() error {
	return payloadError.Cause
}

type pullRequestPayload struct {
	Action       string               `json:"action"`
	Installation *installationPayload `json:"installation"`
	Repository   repositoryPayload    `json:"repository"`
	PullRequest  *pullRequestDetails  `json:"pull_request"`
}

type installationPayload struct {
	ID int64 `json:"id"`
}

type repositoryPayload struct {
	Name     string       `json:"name"`
	FullName string       `json:"full_name"`
	Owner    ownerPayload `json:"owner"`
}

type ownerPayload struct {
	Login string `json:"login"`
}

type pullRequestDetails struct {
	ID     int64         `json:"id"`
	Number int           `json:"number"`
	Head   branchPayload `json:"head"`
}

type branchPayload struct {
	Ref string `json:"ref"`
}

// decodePullRequestEvent validates a pull_request delivery. A missing
// installation is not a payload error: it yields InstallationID zero and is
// rejected by the dispatch target as a misconfiguration.
func decodePullRequestEvent(body []byte) (cascade.PullRequestEvent, error) {
	var payload pullRequestPayload
	if decodeError := json.Unmarshal(body, &payload); decodeError != nil {
		return cascade.PullRequestEvent{}, PayloadError{Event: EventPullRequest, Cause: decodeError}
	}
	if len(payload.Action) == 0 {
		return cascade.PullRequestEvent{}, PayloadError{Event: EventPullRequest, Message: actionFieldConstant}
	}

	identity, identityError := repository.NewIdentity(payload.Repository.Owner.Login, payload.Repository.Name)
	if identityError != nil {
		return cascade.PullRequestEvent{}, PayloadError{Event: EventPullRequest, Message: repositoryFieldConstant}
	}
	if payload.PullRequest == nil {
		return cascade.PullRequestEvent{}, PayloadError{Event: EventPullRequest, Message: pullRequestFieldConstant}
	}

	event := cascade.PullRequestEvent{
		Action:     payload.Action,
		Repository: identity,
		PullRequest: cascade.PullRequest{
			ID:      payload.PullRequest.ID,
			Number:  payload.PullRequest.Number,
			HeadRef: payload.PullRequest.Head.Ref,
		},
	}
	if payload.Installation != nil {
		event.InstallationID = payload.Installation.ID
	}
	return event, nil
}
