// internal/printing/submitter_test.go
package printing

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"terminal-service/internal/connection"
	"terminal-service/internal/model"
)

type fakePrinterLink struct {
	written  [][]byte
	writeErr error
	readErr  error
	ack      []byte
}

func (l *fakePrinterLink) Transport() model.TransportKind { return model.TransportUSB }

func (l *fakePrinterLink) Write(ctx context.Context, data []byte) error {
	if l.writeErr != nil {
		return l.writeErr
	}
	l.written = append(l.written, append([]byte(nil), data...))
	return nil
}

func (l *fakePrinterLink) Read(ctx context.Context, maxBytes int) ([]byte, error) {
	if l.readErr != nil {
		return nil, l.readErr
	}
	return l.ack, nil
}

func (l *fakePrinterLink) Close() error { return nil }

type fakePrinterSource struct {
	record *model.ConnectivityRecord
	link   connection.Link
}

func (s *fakePrinterSource) Record(ctx context.Context, slot model.Slot) (*model.ConnectivityRecord, error) {
	if s.record == nil {
		return &model.ConnectivityRecord{Slot: slot, Status: model.StatusDisconnected}, nil
	}
	return s.record, nil
}

func (s *fakePrinterSource) Link(slot model.Slot) (connection.Link, error) {
	if s.link == nil {
		return nil, model.NewFailure(model.FailureSlotNotConnected, "not connected")
	}
	return s.link, nil
}

func connectedSource(link connection.Link) *fakePrinterSource {
	id := "/dev/ttyUSB0"
	name := "TM-T88V"
	return &fakePrinterSource{
		record: &model.ConnectivityRecord{
			Slot:                model.SlotPrinter,
			ConnectedDeviceID:   &id,
			ConnectedDeviceName: &name,
			Status:              model.StatusConnected,
		},
		link: link,
	}
}

func testJob() model.ReceiptJob {
	return model.ReceiptJob{
		TargetDeviceID: "/dev/ttyUSB0",
		Payload:        []byte("receipt bytes"),
	}
}

func TestSubmitAccepted(t *testing.T) {
	link := &fakePrinterLink{ack: []byte{0x16}}
	sub := NewSubmitter(connectedSource(link), zap.NewNop(), time.Second)

	result, err := sub.Submit(context.Background(), testJob())
	require.NoError(t, err)
	assert.Equal(t, model.SubmitAccepted, result.Outcome)
	assert.Empty(t, result.FailureKind)

	// payload first, then the status probe
	require.Len(t, link.written, 2)
	assert.Equal(t, []byte("receipt bytes"), link.written[0])
	assert.Equal(t, []byte{0x10, 0x04, 0x01}, link.written[1])
}

func TestSubmitNoPrinterConnected(t *testing.T) {
	link := &fakePrinterLink{ack: []byte{0x16}}
	sub := NewSubmitter(&fakePrinterSource{link: link}, zap.NewNop(), time.Second)

	result, err := sub.Submit(context.Background(), testJob())
	require.NoError(t, err)
	assert.Equal(t, model.SubmitRejected, result.Outcome)
	assert.Equal(t, model.FailurePrinterNotConnected, result.FailureKind)
	// fail-fast: nothing was transmitted
	assert.Empty(t, link.written)
}

func TestSubmitWrongTargetDevice(t *testing.T) {
	link := &fakePrinterLink{ack: []byte{0x16}}
	sub := NewSubmitter(connectedSource(link), zap.NewNop(), time.Second)

	job := testJob()
	job.TargetDeviceID = "/dev/ttyUSB9"
	result, err := sub.Submit(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, model.SubmitRejected, result.Outcome)
	assert.Equal(t, model.FailurePrinterNotConnected, result.FailureKind)
	assert.Empty(t, link.written)
}

func TestSubmitTransmissionFailed(t *testing.T) {
	link := &fakePrinterLink{writeErr: errors.New("broken pipe")}
	sub := NewSubmitter(connectedSource(link), zap.NewNop(), time.Second)

	result, err := sub.Submit(context.Background(), testJob())
	require.NoError(t, err)
	assert.Equal(t, model.SubmitRejected, result.Outcome)
	assert.Equal(t, model.FailureTransmissionFailed, result.FailureKind)
}

func TestSubmitPrinterNotResponding(t *testing.T) {
	link := &fakePrinterLink{readErr: errors.New("read timeout")}
	sub := NewSubmitter(connectedSource(link), zap.NewNop(), time.Second)

	result, err := sub.Submit(context.Background(), testJob())
	require.NoError(t, err)
	assert.Equal(t, model.SubmitRejected, result.Outcome)
	assert.Equal(t, model.FailurePrinterNotResponding, result.FailureKind)
	// the payload did get transmitted before the probe failed
	require.NotEmpty(t, link.written)
	assert.Equal(t, []byte("receipt bytes"), link.written[0])
}

func TestSubmitEmptyPayload(t *testing.T) {
	link := &fakePrinterLink{ack: []byte{0x16}}
	sub := NewSubmitter(connectedSource(link), zap.NewNop(), time.Second)

	result, err := sub.Submit(context.Background(), model.ReceiptJob{TargetDeviceID: "/dev/ttyUSB0"})
	require.NoError(t, err)
	assert.Equal(t, model.SubmitRejected, result.Outcome)
	assert.Equal(t, model.FailureTransmissionFailed, result.FailureKind)
}

func TestRenderReceipt(t *testing.T) {
	now := time.Date(2025, 3, 14, 12, 30, 0, 0, time.UTC)
	payload := RenderReceipt(ReceiptContent{
		Header: "CORNER CAFE",
		Items: []ReceiptItem{
			{Label: "Espresso", Value: "3.50"},
			{Label: "Croissant", Value: "4.25"},
		},
		Total:     "7.75",
		Footer:    "Thank you!",
		Timestamp: &now,
	}, model.Paper58mm)

	assert.True(t, bytes.HasPrefix(payload, []byte{0x1B, 0x40}), "payload starts with printer init")
	assert.Contains(t, string(payload), "CORNER CAFE")
	assert.Contains(t, string(payload), "Espresso")
	assert.Contains(t, string(payload), "TOTAL")
	assert.True(t, bytes.HasSuffix(payload, []byte{0x1D, 0x56, 0x01}), "payload ends with a cut")
}

func TestRenderReceiptPairWidth(t *testing.T) {
	doc := NewDocument(model.Paper58mm)
	doc.Pair("TOTAL", "7.75")
	line := doc.Bytes()

	// strip the init and width prefix, drop the trailing LF
	body := line[len(line)-33 : len(line)-1]
	assert.Len(t, body, 32)
	assert.Equal(t, byte('T'), body[0])
	assert.Equal(t, byte('5'), body[31])
}
