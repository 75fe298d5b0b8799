package validation

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChuLiYu/labelmaker/pkg/types"
)

func countLabel(text string, count interface{}) types.CountLabel {
	return types.CountLabel{ID: types.NewItemID(), Text: text, Count: types.Quantity(count)}
}

func aliquotLabel(text string, aliquots ...types.Aliquot) types.AliquotLabel {
	return types.AliquotLabel{ID: types.NewItemID(), Text: text, Aliquots: aliquots}
}

func aliquot(text string, number interface{}) types.Aliquot {
	return types.Aliquot{ID: types.NewItemID(), Text: text, Number: types.Quantity(number)}
}

func requireValidationError(t *testing.T, err error) *Error {
	t.Helper()
	var verr *Error
	require.True(t, errors.As(err, &verr), "expected *validation.Error, got %v", err)
	return verr
}

func TestValidateSubmission_EndToEnd(t *testing.T) {
	sub := types.Submission{
		Labels:     []types.Label{countLabel("Sample", "5")},
		StartLabel: "B3",
		SkipLabels: "1:A1-A3",
	}

	job, err := ValidateSubmission(sub)
	require.NoError(t, err)

	want := types.PrintJob{
		Labels: []types.NormalizedLabel{
			{Name: "Sample", UseAliquots: false, Count: 5, Aliquots: []types.NormalizedAliquot{}},
		},
		StartLabel: "B3",
		SkipLabels: "1:A1-A3",
	}
	if diff := cmp.Diff(want, job); diff != "" {
		t.Errorf("ValidateSubmission() mismatch (-want +got):\n%s", diff)
	}
}

func TestValidateSubmission_AliquotMode(t *testing.T) {
	sub := types.Submission{
		Labels: []types.Label{
			aliquotLabel("  Plasma ", aliquot("1 mL", "2"), aliquot("skip me", "0"), aliquot("0.5 mL", 3)),
		},
	}

	job, err := ValidateSubmission(sub)
	require.NoError(t, err)

	want := []types.NormalizedLabel{{
		Name:        "Plasma",
		UseAliquots: true,
		Count:       0,
		Aliquots: []types.NormalizedAliquot{
			{Text: "1 mL", Number: 2},
			{Text: "0.5 mL", Number: 3},
		},
	}}
	if diff := cmp.Diff(want, job.Labels); diff != "" {
		t.Errorf("labels mismatch (-want +got):\n%s", diff)
	}
}

func TestValidateSubmission_DropsEmptyLabels(t *testing.T) {
	sub := types.Submission{
		Labels: []types.Label{
			countLabel("Zero", "0"),
			aliquotLabel("No aliquots", aliquot("a", 0), aliquot("b", 0)),
			countLabel("   ", "4"),
			countLabel("Keep", 1),
		},
	}

	job, err := ValidateSubmission(sub)
	require.NoError(t, err)
	require.Len(t, job.Labels, 1)
	assert.Equal(t, "Keep", job.Labels[0].Name)
}

func TestValidateSubmission_NoLabelsToPrint(t *testing.T) {
	testCases := []struct {
		name   string
		labels []types.Label
	}{
		{"empty list", nil},
		{"only zero counts", []types.Label{countLabel("A", "0"), countLabel("B", 0)}},
		{"only zero aliquots", []types.Label{aliquotLabel("A", aliquot("x", 0), aliquot("y", "0"))}},
		{"blank names", []types.Label{countLabel("", 3)}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ValidateSubmission(types.Submission{Labels: tc.labels})
			require.ErrorIs(t, err, ErrNoLabelsToPrint)

			verr := requireValidationError(t, err)
			assert.Equal(t, []string{"No labels to print"}, verr.Job())
			assert.Empty(t, verr.Fields())
			assert.True(t, verr.HasJobLevel())
			assert.False(t, verr.HasFieldLevel())
		})
	}
}

func TestValidateSubmission_FieldErrorsAreIndependent(t *testing.T) {
	sub := types.Submission{
		Labels: []types.Label{
			countLabel("A", "-1"),
			aliquotLabel("B", aliquot("ok", 1), aliquot("bad", "1.5")),
			countLabel("C", 2),
		},
		StartLabel: "AA1",
		SkipLabels: "1:A1;B2",
	}

	_, err := ValidateSubmission(sub)
	verr := requireValidationError(t, err)

	want := map[string][]string{
		"labels.0.count":             {"Quantity can't be negative"},
		"labels.1.aliquots.1.number": {"Quantity must be an integer"},
		"startLabel":                 {"Label coordinates start with the column letter followed by the row number."},
		"skipLabels":                 {"Format => Page#: Labels to skip (See About Page)"},
	}
	if diff := cmp.Diff(want, verr.Fields()); diff != "" {
		t.Errorf("Fields() mismatch (-want +got):\n%s", diff)
	}
	assert.Empty(t, verr.Job(), "job-level error must not appear when labels carry field errors")

	assert.ErrorIs(t, err, ErrNegative)
	assert.ErrorIs(t, err, ErrNotInteger)
	assert.ErrorIs(t, err, ErrBadCoordinateFormat)
	assert.ErrorIs(t, err, ErrBadSkipFormat)
	assert.NotErrorIs(t, err, ErrNoLabelsToPrint)
}

func TestValidateSubmission_StartErrorDoesNotHideNoLabels(t *testing.T) {
	sub := types.Submission{
		Labels:     []types.Label{countLabel("A", 0)},
		StartLabel: "ZZ",
	}

	_, err := ValidateSubmission(sub)
	verr := requireValidationError(t, err)
	assert.Equal(t, []string{"startLabel"}, verr.Paths())
	assert.Equal(t, []string{"No labels to print"}, verr.Job())
}

func TestValidateSubmission_NilLabel(t *testing.T) {
	_, err := ValidateSubmission(types.Submission{Labels: []types.Label{nil}})
	assert.ErrorIs(t, err, ErrBadLabelMode)
}

func TestNormalize_Idempotent(t *testing.T) {
	sub := types.Submission{
		Labels: []types.Label{
			countLabel(" Sample ", "5"),
			aliquotLabel("Serum", aliquot("1 mL", "2"), aliquot("", 0)),
			countLabel("Dropped", 0),
		},
		StartLabel: "c4",
		SkipLabels: "\n 1 : A1 , B2-B5\n\n2:C3\n",
	}

	first, err := ValidateSubmission(sub)
	require.NoError(t, err)

	second, err := Normalize(first)
	require.NoError(t, err)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("Normalize() not idempotent (-first +second):\n%s", diff)
	}
}

func TestErrorTree(t *testing.T) {
	verr := &Error{Issues: []Issue{
		{Path: "labels.0.count", Kind: ErrTooLarge, Message: "Max quantity is 1000"},
		{Path: JobPath, Kind: ErrNoLabelsToPrint, Message: "No labels to print"},
	}}

	tree := verr.Tree()
	assert.Equal(t, []string{"No labels to print"}, tree["_errors"])

	labels := tree["labels"].(map[string]interface{})
	first := labels["0"].(map[string]interface{})
	count := first["count"].(map[string]interface{})
	assert.Equal(t, []string{"Max quantity is 1000"}, count["_errors"])

	_, err := json.Marshal(tree)
	assert.NoError(t, err)
}

func TestSubmissionJSON(t *testing.T) {
	input := `{
		"labels": [
			{"text": "Sample", "mode": "count", "count": "5"},
			{"text": "Plasma", "useAliquots": true, "aliquots": [{"text": "1 mL", "number": 2}]},
			{"text": "Legacy", "count": 3}
		],
		"startLabel": "B3",
		"skipLabels": "1:A1-A3"
	}`

	var sub types.Submission
	require.NoError(t, json.Unmarshal([]byte(input), &sub))
	require.Len(t, sub.Labels, 3)
	assert.Equal(t, types.ModeCount, sub.Labels[0].Mode())
	assert.Equal(t, types.ModeAliquots, sub.Labels[1].Mode())
	assert.Equal(t, types.ModeCount, sub.Labels[2].Mode())

	job, err := ValidateSubmission(sub)
	require.NoError(t, err)
	assert.Len(t, job.Labels, 3)
	assert.Equal(t, 3, job.Labels[2].Count)

	var bad types.Submission
	err = json.Unmarshal([]byte(`{"labels":[{"text":"x","mode":"sheets"}]}`), &bad)
	assert.Error(t, err)
}
