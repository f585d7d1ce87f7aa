// cmd/tools/model-tool/main_test.go
package main

import (
	"testing"

	apperrors "career-predictor/internal/common/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testProfile = `{
	"fieldOfStudy": "Law", "currentOccupation": "Lawyer", "gender": "Male",
	"educationLevel": "PhD", "industryGrowthRate": "Low", "familyInfluence": "High",
	"age": 44, "yearsOfExperience": 20, "jobSatisfaction": 8, "workLifeBalance": 6,
	"jobOpportunities": 40, "salary": 95000, "jobSecurity": 8, "careerChangeInterest": 0,
	"skillsGap": 2, "mentorshipAvailable": 0, "certifications": 1, "freelancingExperience": 0,
	"geographicMobility": 0, "professionalNetworks": 9, "careerChangeEvents": 0,
	"technologyAdoption": 3
}`

func TestReadProfiles(t *testing.T) {
	profiles, single, err := readProfiles([]byte(testProfile))
	require.NoError(t, err)
	assert.True(t, single)
	require.Len(t, profiles, 1)
	assert.Equal(t, 44, profiles[0].Age)

	profiles, single, err = readProfiles([]byte(`[` + testProfile + `,` + testProfile + `]`))
	require.NoError(t, err)
	assert.False(t, single)
	assert.Len(t, profiles, 2)

	profiles, single, err = readProfiles([]byte(`{"records": [` + testProfile + `]}`))
	require.NoError(t, err)
	assert.False(t, single)
	assert.Len(t, profiles, 1)
}

func TestReadProfiles_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		code  apperrors.ErrorCode
	}{
		{"malformed", `{"age":`, apperrors.ErrCodeMalformedBody},
		{"scalar", `42`, apperrors.ErrCodeInvalidInput},
		{"empty array", `[]`, apperrors.ErrCodeEmptyBatch},
		{"missing fields", `{"age": 30}`, apperrors.ErrCodeInvalidInput},
		{"bad record in batch", `[` + testProfile + `, {"gender": 1}]`, apperrors.ErrCodeInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := readProfiles([]byte(tt.input))
			require.Error(t, err)
			assert.Equal(t, tt.code, apperrors.Normalize(err).Code)
		})
	}
}
