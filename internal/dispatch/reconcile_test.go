package dispatch

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blue-raster/workforce-bridge/pkg/arcgis"
)

func TestReconcile_LengthMismatchIsFatal(t *testing.T) {
	client := newFakeClient()
	sender := &fakeSender{}
	r := newTestRunner(t, client, sender, newFakeStore())

	sources := []sourceRecord{{ObjectID: 1}, {ObjectID: 2}}
	results := []arcgis.AddResult{{ObjectID: 101, Success: true}}

	_, _, err := r.reconcile(context.Background(), sources, results)
	require.Error(t, err)

	var ue *UploadError
	require.ErrorAs(t, err, &ue)
	assert.Contains(t, err.Error(), "submitted 2 assignments but got 1 results")
	assert.Empty(t, sender.sent())
}

func TestReconcile_PartitionsAndReportsFailures(t *testing.T) {
	client := newFakeClient()
	sender := &fakeSender{}
	r := newTestRunner(t, client, sender, newFakeStore())

	sources := []sourceRecord{{ObjectID: 1}, {ObjectID: 2}, {ObjectID: 3}}
	results := []arcgis.AddResult{
		{ObjectID: 101, Success: true},
		{Success: false, Error: &arcgis.ResultError{Code: 1000, Description: "geometry out of bounds"}},
		{Success: false},
	}

	uploaded, failed, err := r.reconcile(context.Background(), sources, results)
	require.NoError(t, err)
	assert.Equal(t, 1, uploaded)
	assert.Equal(t, 2, failed)

	bodies := sender.sent()
	require.Len(t, bodies, 1, "exactly one failure report for the whole batch")
	body := bodies[0]
	assert.True(t, strings.HasPrefix(body, "Could not upload assignments:\n"))
	assert.Contains(t, body, "2: geometry out of bounds")
	assert.Contains(t, body, "3: unknown error")

	// Failure lines keep batch order.
	assert.Less(t, strings.Index(body, "2:"), strings.Index(body, "3:"))
}

func TestReconcile_TransfersAttachmentsForSuccesses(t *testing.T) {
	client := newFakeClient()
	sender := &fakeSender{}
	r := newTestRunner(t, client, sender, newFakeStore())

	client.attachments[1] = []arcgis.AttachmentInfo{
		{ID: 10, Name: "before.jpg", ContentType: "image/jpeg"},
		{ID: 11, Name: "after.jpg", ContentType: "image/jpeg"},
	}
	client.attachments[2] = []arcgis.AttachmentInfo{
		{ID: 12, Name: "ignored.jpg", ContentType: "image/jpeg"},
	}

	sources := []sourceRecord{{ObjectID: 1}, {ObjectID: 2}}
	results := []arcgis.AddResult{
		{ObjectID: 101, Success: true},
		{Success: false, Error: &arcgis.ResultError{Description: "rejected"}},
	}

	uploaded, failed, err := r.reconcile(context.Background(), sources, results)
	require.NoError(t, err)
	assert.Equal(t, 1, uploaded)
	assert.Equal(t, 1, failed)

	assert.ElementsMatch(t, []string{"before.jpg", "after.jpg"}, client.uploadedTo[101])
	assert.Empty(t, client.fetched[2], "failed uploads get no attachment transfer")
}

func TestReconcile_NoFailuresNoEmail(t *testing.T) {
	client := newFakeClient()
	sender := &fakeSender{}
	r := newTestRunner(t, client, sender, newFakeStore())

	sources := []sourceRecord{{ObjectID: 1}}
	results := []arcgis.AddResult{{ObjectID: 101, Success: true}}

	uploaded, failed, err := r.reconcile(context.Background(), sources, results)
	require.NoError(t, err)
	assert.Equal(t, 1, uploaded)
	assert.Equal(t, 0, failed)
	assert.Empty(t, sender.sent())
}
