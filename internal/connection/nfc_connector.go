// internal/connection/nfc_connector.go
package connection

import (
	"context"
	"time"

	"terminal-service/internal/model"
)

// ReaderSession is the payment SDK's hold on the terminal's built-in card
// reader. Reader connectivity is session-scoped inside the SDK rather than
// a raw byte channel, so the connector wraps it instead of exposing I/O.
type ReaderSession interface {
	ConnectReader(ctx context.Context, descriptor model.DeviceDescriptor) error
	DisconnectReader(ctx context.Context) error
}

// NFCConnector attaches the payment terminal slot to the device's internal
// NFC reader through the payment SDK session.
type NFCConnector struct {
	session ReaderSession
}

func NewNFCConnector(session ReaderSession) *NFCConnector {
	return &NFCConnector{session: session}
}

func (c *NFCConnector) Transport() model.TransportKind {
	return model.TransportInternalNFC
}

func (c *NFCConnector) Dial(ctx context.Context, descriptor model.DeviceDescriptor) (Link, error) {
	if err := checkTransport(descriptor, model.TransportInternalNFC); err != nil {
		return nil, err
	}
	if err := c.session.ConnectReader(ctx, descriptor); err != nil {
		if model.KindOf(err) != "" {
			return nil, err
		}
		return nil, model.WrapFailure(model.FailureHandshakeFailed,
			"failed to attach reader "+descriptor.ID, err)
	}
	return &readerLink{session: c.session}, nil
}

// readerLink carries no byte traffic; closing it releases the SDK session.
type readerLink struct {
	session ReaderSession
}

func (l *readerLink) Transport() model.TransportKind {
	return model.TransportInternalNFC
}

func (l *readerLink) Write(ctx context.Context, data []byte) error {
	return model.NewFailure(model.FailureTransportUnsupported,
		"the internal reader does not accept raw writes")
}

func (l *readerLink) Read(ctx context.Context, maxBytes int) ([]byte, error) {
	return nil, model.NewFailure(model.FailureTransportUnsupported,
		"the internal reader does not produce raw reads")
}

func (l *readerLink) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return l.session.DisconnectReader(ctx)
}
