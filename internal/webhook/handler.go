package webhook

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Header names GitHub sets on every delivery.
const (
	HeaderEvent     = "X-GitHub-Event"
	HeaderDelivery  = "X-GitHub-Delivery"
	HeaderSignature = "X-Hub-Signature-256"
)

const (
	// DefaultMaxBodyBytes matches the largest payload GitHub delivers.
	DefaultMaxBodyBytes = int64(25 * 1024 * 1024)

	secretMissingMessageConstant      = "webhook secret must be provided"
	dispatcherMissingMessageConstant  = "webhook dispatcher must be provided"
	bodyReadFailedMessageConstant     = "webhook body could not be read"
	bodyTooLargeMessageConstant       = "webhook body exceeds size limit"
	bodyEmptyMessageConstant          = "webhook body is empty"
	signatureRejectedMessageConstant  = "webhook signature rejected"
	eventMissingMessageConstant       = "webhook event header missing"
	deliveryReceivedMessageConstant   = "webhook received"
	deliveryIgnoredMessageConstant    = "webhook ignored"
	payloadRejectedMessageConstant    = "webhook payload rejected"
	dispatchFailedMessageConstant     = "webhook dispatch failed"
	dispatchCompletedMessageConstant  = "webhook handled"
	logFieldDeliveryIDConstant        = "delivery_id"
	logFieldEventConstant             = "event"
	logFieldActionConstant            = "action"
	logFieldRepositoryConstant        = "repository"
	logFieldInstallationIDConstant    = "installation_id"
	logFieldRemoteAddressConstant     = "remote_addr"
	logFieldGeneratedDeliveryConstant = "delivery_id_generated"
)

var (
	// ErrSecretMissing indicates a handler configured without a webhook secret.
	ErrSecretMissing = errors.New(secretMissingMessageConstant)
	// ErrDispatcherMissing indicates a handler configured without a dispatch target.
	ErrDispatcherMissing = errors.New(dispatcherMissingMessageConstant)
)

// HandlerConfiguration wires the webhook handler.
type HandlerConfiguration struct {
	Secret       []byte
	Dispatcher   Dispatcher
	MaxBodyBytes int64
}

// Handler is the http.Handler GitHub delivers webhooks to.
type Handler struct {
	secret       []byte
	dispatcher   Dispatcher
	maxBodyBytes int64
	logger       *zap.Logger
}

// NewHandler validates the configuration and constructs a Handler.
func NewHandler(configuration HandlerConfiguration, logger *zap.Logger) (*Handler, error) {
	if len(configuration.Secret) == 0 {
		return nil, ErrSecretMissing
	}
	if configuration.Dispatcher == nil {
		return nil, ErrDispatcherMissing
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	maxBodyBytes := configuration.MaxBodyBytes
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	return &Handler{
		secret:       append([]byte(nil), configuration.Secret...),
		dispatcher:   configuration.Dispatcher,
		maxBodyBytes: maxBodyBytes,
		logger:       logger,
	}, nil
}

// ServeHTTP authenticates and routes a single delivery.
func (handler *Handler) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	if request.Method != http.MethodPost {
		writer.Header().Set("Allow", http.MethodPost)
		writeStatus(writer, http.StatusMethodNotAllowed)
		return
	}

	deliveryID := strings.TrimSpace(request.Header.Get(HeaderDelivery))
	deliveryLogger := handler.logger.With(zap.String(logFieldDeliveryIDConstant, deliveryID))
	if len(deliveryID) == 0 {
		deliveryLogger = handler.logger.With(
			zap.String(logFieldDeliveryIDConstant, uuid.NewString()),
			zap.Bool(logFieldGeneratedDeliveryConstant, true),
		)
	}

	body, readError := io.ReadAll(io.LimitReader(request.Body, handler.maxBodyBytes+1))
	if readError != nil {
		deliveryLogger.Warn(bodyReadFailedMessageConstant, zap.Error(readError))
		writeStatus(writer, http.StatusBadRequest)
		return
	}
	if int64(len(body)) > handler.maxBodyBytes {
		deliveryLogger.Warn(bodyTooLargeMessageConstant)
		writeStatus(writer, http.StatusRequestEntityTooLarge)
		return
	}
	if len(body) == 0 {
		deliveryLogger.Warn(bodyEmptyMessageConstant)
		writeStatus(writer, http.StatusBadRequest)
		return
	}

	if verificationError := VerifySignature(handler.secret, body, request.Header.Get(HeaderSignature)); verificationError != nil {
		deliveryLogger.Warn(
			signatureRejectedMessageConstant,
			zap.String(logFieldRemoteAddressConstant, request.RemoteAddr),
			zap.Error(verificationError),
		)
		writeStatus(writer, http.StatusUnauthorized)
		return
	}

	eventName := strings.TrimSpace(request.Header.Get(HeaderEvent))
	if len(eventName) == 0 {
		deliveryLogger.Warn(eventMissingMessageConstant)
		writeStatus(writer, http.StatusBadRequest)
		return
	}
	deliveryLogger = deliveryLogger.With(zap.String(logFieldEventConstant, eventName))

	switch eventName {
	case EventPing:
		deliveryLogger.Info(deliveryReceivedMessageConstant)
		writeStatus(writer, http.StatusOK)
		return
	case EventPullRequest:
	default:
		deliveryLogger.Debug(deliveryIgnoredMessageConstant)
		writeStatus(writer, http.StatusAccepted)
		return
	}

	event, decodeError := decodePullRequestEvent(body)
	if decodeError != nil {
		deliveryLogger.Warn(payloadRejectedMessageConstant, zap.Error(decodeError))
		writeStatus(writer, http.StatusBadRequest)
		return
	}
	deliveryLogger = deliveryLogger.With(
		zap.String(logFieldActionConstant, event.Action),
		zap.String(logFieldRepositoryConstant, event.Repository.Slug()),
		zap.Int64(logFieldInstallationIDConstant, event.InstallationID),
	)
	deliveryLogger.Info(deliveryReceivedMessageConstant)

	// Dispatch outlives a sender that disconnects early.
	dispatchContext := context.WithoutCancel(request.Context())

	var dispatchError error
	switch event.Action {
	case ActionOpened, ActionSynchronize:
		dispatchError = handler.dispatcher.Cascade(dispatchContext, event)
	case ActionClosed:
		dispatchError = handler.dispatcher.ApplyConfiguration(dispatchContext, event.InstallationID, event.Repository)
	default:
		deliveryLogger.Debug(deliveryIgnoredMessageConstant)
		writeStatus(writer, http.StatusAccepted)
		return
	}

	if dispatchError != nil {
		deliveryLogger.Error(dispatchFailedMessageConstant, zap.Error(dispatchError))
		writeStatus(writer, http.StatusInternalServerError)
		return
	}
	deliveryLogger.Info(dispatchCompletedMessageConstant)
	writeStatus(writer, http.StatusOK)
}

func writeStatus(writer http.ResponseWriter, statusCode int) {
	http.Error(writer, http.StatusText(statusCode), statusCode)
}
