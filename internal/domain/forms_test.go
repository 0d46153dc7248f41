package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartsprint/internal/domain"
)

func TestTicketDraftDefaultsNeedTitleAndDescription(t *testing.T) {
	draft := domain.NewTicketDraft()
	assert.Equal(t, domain.PriorityMedium, draft.Priority)
	assert.Equal(t, 8.0, draft.EstimatedHours)

	err := domain.ValidateForm(draft)
	require.Error(t, err)
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "title", ve.Field)
	assert.Equal(t, "is required", ve.Reason)
}

func TestTicketDraftValidation(t *testing.T) {
	cases := []struct {
		name  string
		draft domain.TicketDraft
		field string
	}{
		{"blank title", domain.TicketDraft{Title: "   ", Description: "d", Priority: "low", EstimatedHours: 2}, "title"},
		{"missing description", domain.TicketDraft{Title: "t", Priority: "low", EstimatedHours: 2}, "description"},
		{"bad priority", domain.TicketDraft{Title: "t", Description: "d", Priority: "urgent", EstimatedHours: 2}, "priority"},
		{"hours below one", domain.TicketDraft{Title: "t", Description: "d", Priority: "high", EstimatedHours: 0.5}, "estimated_hours"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := domain.ValidateForm(tc.draft)
			var ve *domain.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tc.field, ve.Field)
		})
	}

	ok := domain.TicketDraft{Title: "Login page", Description: "Build it", Priority: domain.PriorityCritical, EstimatedHours: 1}
	assert.NoError(t, domain.ValidateForm(ok))
}

func TestCompletionFormValidation(t *testing.T) {
	assert.NoError(t, domain.ValidateForm(domain.NewCompletionForm()))

	form := domain.NewCompletionForm()
	form.SentimentScore = 1.4
	err := domain.ValidateForm(form)
	require.True(t, domain.IsValidation(err))
	assert.Contains(t, err.Error(), "sentiment_score")

	form = domain.NewCompletionForm()
	form.CompletionTime = 0
	err = domain.ValidateForm(form)
	require.True(t, domain.IsValidation(err))
	assert.Contains(t, err.Error(), "completion_time")

	form = domain.NewCompletionForm()
	form.Revisions = -1
	require.True(t, domain.IsValidation(domain.ValidateForm(form)))
}

func TestStatusOrdering(t *testing.T) {
	assert.True(t, domain.StatusBacklog.CanAdvanceTo(domain.StatusInProgress))
	assert.True(t, domain.StatusInProgress.CanAdvanceTo(domain.StatusCompleted))
	assert.False(t, domain.StatusBacklog.CanAdvanceTo(domain.StatusCompleted))
	assert.False(t, domain.StatusCompleted.CanAdvanceTo(domain.StatusBacklog))
	assert.False(t, domain.Status("archived").CanAdvanceTo(domain.StatusBacklog))
}

func TestDeveloperUtilization(t *testing.T) {
	assert.Equal(t, 0.5, domain.Developer{Availability: 40, CurrentWorkload: 20}.Utilization())
	assert.Equal(t, 0.0, domain.Developer{Availability: 0, CurrentWorkload: 20}.Utilization())
}
