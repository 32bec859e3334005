package service

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"dormdesk/internal/events"
	"dormdesk/internal/models"
	"dormdesk/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newComplianceFixture(t *testing.T) (*ComplianceService, *store.Memory, *recordingPublisher) {
	t.Helper()
	m := newTestStore()
	pub := &recordingPublisher{}
	svc := NewComplianceService(m, m, testCols, testBuckets, pub, nil)
	svc.now = fixedNow
	return svc, m, pub
}

func ticketInput(t *testing.T, raw string) models.TicketInput {
	t.Helper()
	var in models.TicketInput
	require.NoError(t, json.Unmarshal([]byte(raw), &in))
	return in
}

func TestComplianceTotalCost(t *testing.T) {
	svc, _, _ := newComplianceFixture(t)
	ctx := context.Background()

	in := ticketInput(t, `{"title":"Leaking tap","category":"plumbing","workCost":"150.5","toolsCost":"abc"}`)
	ticket, err := svc.CreateTicket(ctx, in, nil, admin)
	require.NoError(t, err)
	assert.Equal(t, models.Amount(150.5), ticket.TotalCost)
	assert.Equal(t, models.TicketOpen, ticket.Status)
	assert.Equal(t, models.PriorityMedium, ticket.Priority)
	assert.Equal(t, models.PayerManagement, ticket.PayerType)

	in = ticketInput(t, `{"title":"Leaking tap","category":"plumbing","workCost":150.5,"toolsCost":"20"}`)
	updated, err := svc.UpdateTicket(ctx, ticket.ID, in, nil, admin)
	require.NoError(t, err)
	assert.Equal(t, models.Amount(170.5), updated.TotalCost)

	assert.Equal(t, models.Amount(7), TotalCost(3, 4))

	for _, raw := range []string{"NaN", "Inf", "-Infinity"} {
		t.Run("NonFinite"+raw, func(t *testing.T) {
			in := ticketInput(t, `{"title":"Leaking tap","category":"plumbing","workCost":"`+raw+`","toolsCost":"5"}`)
			ticket, err := svc.CreateTicket(ctx, in, nil, admin)
			require.NoError(t, err)
			assert.Zero(t, ticket.WorkCost)
			assert.Equal(t, models.Amount(5), ticket.TotalCost)
		})
	}
}

func TestComplianceUpdateClearsFields(t *testing.T) {
	svc, m, _ := newComplianceFixture(t)
	ctx := context.Background()

	ticket, err := svc.CreateTicket(ctx, models.TicketInput{
		Title:          "Broken heater",
		Category:       "appliance",
		Building:       "A",
		Floor:          "2",
		RoomNumber:     "204",
		PayerType:      models.PayerStudent,
		PayerStudentID: "stu-1",
		AssignedTo:     "bob",
		Notes:          "old note",
	}, nil, admin)
	require.NoError(t, err)

	updated, err := svc.UpdateTicket(ctx, ticket.ID, models.TicketInput{
		Title:     "Broken heater",
		Category:  "appliance",
		PayerType: models.PayerManagement,
	}, nil, admin)
	require.NoError(t, err)
	assert.Equal(t, models.PayerManagement, updated.PayerType)
	assert.Empty(t, updated.PayerStudentID)
	assert.Empty(t, updated.AssignedTo)
	assert.Empty(t, updated.Notes)
	assert.Empty(t, updated.Building)

	doc, err := m.Get(ctx, testCols.ComplianceTickets, ticket.ID)
	require.NoError(t, err)
	for _, attr := range []string{"payerStudentId", "assignedTo", "notes", "building", "floor", "roomNumber"} {
		assert.Equal(t, "", doc[attr], attr)
	}
}

func TestComplianceValidation(t *testing.T) {
	svc, m, _ := newComplianceFixture(t)
	counting := &countingDocs{Documents: m}
	svc.docs = counting

	_, err := svc.CreateTicket(context.Background(), models.TicketInput{
		Category:  "gardening",
		Priority:  "whenever",
		PayerType: models.PayerStudent,
		WorkCost:  -5,
	}, nil, admin)
	requireFieldErrors(t, err, "title", "category", "priority", "payerStudentId", "workCost")
	assert.Zero(t, counting.calls.Load())
}

func TestComplianceImagesAndUploads(t *testing.T) {
	svc, m, _ := newComplianceFixture(t)
	ctx := context.Background()

	in := ticketInput(t, `{"title":"Broken window","category":"safety","images":"[\"legacy1\"]"}`)
	uploads := []models.Upload{{Name: "crack.jpg", ContentType: "image/jpeg", Body: strings.NewReader("jpeg-bytes")}}

	ticket, err := svc.CreateTicket(ctx, in, uploads, admin)
	require.NoError(t, err)
	require.Len(t, ticket.Images, 2)
	assert.Equal(t, "legacy1", ticket.Images[0].ID)
	assert.Equal(t, "http://localhost:8080/api/v1/files/compliance_images/legacy1", ticket.Images[0].URL)
	assert.Contains(t, ticket.Images[1].URL, "/api/v1/files/compliance_images/"+ticket.Images[1].ID)

	_, body, err := m.OpenFile(ctx, testBuckets.Compliance, ticket.Images[1].ID)
	require.NoError(t, err)
	defer body.Close()

	t.Run("UpdateWithoutImagesKeepsThem", func(t *testing.T) {
		in := ticketInput(t, `{"title":"Broken window","category":"safety"}`)
		updated, err := svc.UpdateTicket(ctx, ticket.ID, in, nil, admin)
		require.NoError(t, err)
		assert.Len(t, updated.Images, 2)
	})

	t.Run("LegacyStoredShape", func(t *testing.T) {
		m.Seed(testCols.ComplianceTickets, store.Document{
			store.FieldID: "legacy",
			"title":       "Old ticket",
			"category":    "other",
			"priority":    "low",
			"status":      "closed",
			"workCost":    "12",
			"images":      "https://baas.test/v1/storage/buckets/b/files/f9/view",
		})
		got, err := svc.GetTicket(ctx, "legacy")
		require.NoError(t, err)
		assert.Equal(t, []models.ImageRef{{ID: "f9", URL: "https://baas.test/v1/storage/buckets/b/files/f9/view"}}, got.Images)
		assert.Equal(t, models.Amount(12), got.WorkCost)
	})
}

func TestComplianceSanitizesText(t *testing.T) {
	svc, _, _ := newComplianceFixture(t)

	ticket, err := svc.CreateTicket(context.Background(), models.TicketInput{
		Title:       "Sparks",
		Category:    "electrical",
		Description: "<p>Socket sparks</p><script>alert('x')</script>",
		Notes:       `<a href="javascript:alert(1)">call</a>`,
	}, nil, admin)
	require.NoError(t, err)
	assert.Equal(t, "<p>Socket sparks</p>", ticket.Description)
	assert.NotContains(t, ticket.Notes, "javascript")
}

func TestComplianceWriteFailureLogsOrphans(t *testing.T) {
	m := newTestStore()
	logger, buf := bufferLogger()
	svc := NewComplianceService(&countingDocs{Documents: m, failWrites: true}, m, testCols, testBuckets, nil, logger)

	uploads := []models.Upload{{Name: "a.png", ContentType: "image/png", Body: strings.NewReader("png")}}
	_, err := svc.CreateTicket(context.Background(), models.TicketInput{Title: "Mould", Category: "cleaning"}, uploads, admin)
	assert.ErrorIs(t, err, errBoom)
	assert.Contains(t, buf.String(), "orphaned_files")
}

func TestComplianceStatusChange(t *testing.T) {
	svc, _, pub := newComplianceFixture(t)
	ctx := context.Background()

	ticket, err := svc.CreateTicket(ctx, models.TicketInput{Title: "Fridge", Category: "appliance"}, nil, admin)
	require.NoError(t, err)

	changed, err := svc.ChangeTicketStatus(ctx, ticket.ID, models.TicketResolved, "Replaced the compressor", admin)
	require.NoError(t, err)
	assert.Equal(t, models.TicketResolved, changed.Status)
	assert.Equal(t, admin.ID, changed.StatusChangedBy)
	require.NotNil(t, changed.StatusChangedAt)
	assert.True(t, changed.StatusChangedAt.Equal(testNow))
	assert.Equal(t, "Replaced the compressor", changed.StatusNotes)
	assert.Contains(t, pub.Events(), events.EventTicketStatusChanged)

	_, err = svc.ChangeTicketStatus(ctx, ticket.ID, "done", "", admin)
	requireFieldErrors(t, err, "status")

	_, err = svc.ChangeTicketStatus(ctx, "missing", models.TicketClosed, "", admin)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestComplianceList(t *testing.T) {
	svc, _, _ := newComplianceFixture(t)
	ctx := context.Background()

	for _, in := range []models.TicketInput{
		{Title: "Leak under sink", Category: "plumbing", Priority: models.PriorityUrgent, Building: "A"},
		{Title: "Loose handle", Category: "furniture", Building: "B"},
		{Title: "Leak in roof", Category: "plumbing", Building: "B"},
	} {
		_, err := svc.CreateTicket(ctx, in, nil, admin)
		require.NoError(t, err)
	}

	tickets, total, err := svc.ListTickets(ctx, models.TicketFilter{Search: "leak"})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, tickets, 2)

	tickets, total, err = svc.ListTickets(ctx, models.TicketFilter{Building: "B", Category: "plumbing"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "Leak in roof", tickets[0].Title)

	tickets, total, err = svc.ListTickets(ctx, models.TicketFilter{Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, tickets, 1)

	_, total, err = svc.ListTickets(ctx, models.TicketFilter{Priority: models.PriorityUrgent})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}
