// internal/models/career_test.go
package models

import (
	"bytes"
	"encoding/json"
	"math"
	"testing"

	"career-predictor/internal/common/validation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestProfileMap() map[string]interface{} {
	return map[string]interface{}{
		"fieldOfStudy":          "Computer Science",
		"currentOccupation":     "Data Scientist",
		"gender":                "Female",
		"educationLevel":        "Master's",
		"industryGrowthRate":    "High",
		"familyInfluence":       "Low",
		"age":                   31,
		"yearsOfExperience":     7,
		"jobSatisfaction":       4,
		"workLifeBalance":       6,
		"jobOpportunities":      80,
		"salary":                95000,
		"jobSecurity":           7,
		"careerChangeInterest":  1,
		"skillsGap":             3,
		"mentorshipAvailable":   1,
		"certifications":        2,
		"freelancingExperience": 0,
		"geographicMobility":    1,
		"professionalNetworks":  6,
		"careerChangeEvents":    1,
		"technologyAdoption":    8,
	}
}

func TestColumns(t *testing.T) {
	assert.Len(t, CategoricalColumns, 6)
	assert.Len(t, NumericColumns, 16)

	p := &CareerProfile{Gender: "Male", Age: 40, TechnologyAdoption: 9}
	assert.Len(t, p.Categorical(), 6)
	assert.Equal(t, "Male", p.Categorical()[2])

	nums := p.Numeric()
	require.Len(t, nums, 16)
	assert.Equal(t, 40.0, nums[0])
	assert.Equal(t, 9.0, nums[15])
}

func TestProfileFromMap(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(m map[string]interface{})
		wantErr bool
		check   func(t *testing.T, p *CareerProfile)
	}{
		{
			name: "native ints",
			check: func(t *testing.T, p *CareerProfile) {
				assert.Equal(t, "Computer Science", p.FieldOfStudy)
				assert.Equal(t, 95000, p.Salary)
				assert.Equal(t, 8, p.TechnologyAdoption)
			},
		},
		{
			name:   "integral float accepted",
			mutate: func(m map[string]interface{}) { m["age"] = 31.0 },
			check: func(t *testing.T, p *CareerProfile) {
				assert.Equal(t, 31, p.Age)
			},
		},
		{
			name:   "json number accepted",
			mutate: func(m map[string]interface{}) { m["salary"] = json.Number("120000") },
			check: func(t *testing.T, p *CareerProfile) {
				assert.Equal(t, 120000, p.Salary)
			},
		},
		{
			name:   "extra fields ignored",
			mutate: func(m map[string]interface{}) { m["nickname"] = "ada" },
		},
		{
			name:    "fractional number rejected",
			mutate:  func(m map[string]interface{}) { m["age"] = 31.5 },
			wantErr: true,
		},
		{
			name:   "largest int64 accepted",
			mutate: func(m map[string]interface{}) { m["salary"] = json.Number("9223372036854775807") },
			check: func(t *testing.T, p *CareerProfile) {
				assert.Equal(t, math.MaxInt64, p.Salary)
			},
		},
		{
			name:    "2^63 as float literal rejected",
			mutate:  func(m map[string]interface{}) { m["age"] = json.Number("9223372036854775807.0") },
			wantErr: true,
		},
		{
			name:    "2^63 as integer literal rejected",
			mutate:  func(m map[string]interface{}) { m["age"] = json.Number("9223372036854775808") },
			wantErr: true,
		},
		{
			name:    "2^63 as float64 rejected",
			mutate:  func(m map[string]interface{}) { m["age"] = float64(math.MaxInt64) },
			wantErr: true,
		},
		{
			name:   "smallest int64 accepted",
			mutate: func(m map[string]interface{}) { m["age"] = float64(math.MinInt64) },
			check: func(t *testing.T, p *CareerProfile) {
				assert.Equal(t, math.MinInt64, p.Age)
			},
		},
		{
			name:    "string for integer rejected",
			mutate:  func(m map[string]interface{}) { m["age"] = "31" },
			wantErr: true,
		},
		{
			name:    "number for string rejected",
			mutate:  func(m map[string]interface{}) { m["gender"] = 1 },
			wantErr: true,
		},
		{
			name:    "missing field",
			mutate:  func(m map[string]interface{}) { delete(m, "skillsGap") },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := createTestProfileMap()
			if tt.mutate != nil {
				tt.mutate(m)
			}
			p, err := ProfileFromMap(m)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.check != nil {
				tt.check(t, p)
			}
		})
	}
}

func TestProfileFromMap_DecodedWithUseNumber(t *testing.T) {
	body, err := json.Marshal(createTestProfileMap())
	require.NoError(t, err)

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var m map[string]interface{}
	require.NoError(t, dec.Decode(&m))

	p, err := ProfileFromMap(m)
	require.NoError(t, err)
	assert.Equal(t, 31, p.Age)
}

func TestCareerProfileSchema(t *testing.T) {
	v, err := validation.NewValidator(CareerProfileSchema)
	require.NoError(t, err)

	res, err := v.ValidateGo(createTestProfileMap())
	require.NoError(t, err)
	assert.True(t, res.Valid, res.GetErrorMessages())

	m := createTestProfileMap()
	delete(m, "gender")
	m["age"] = "old"
	res, err = v.ValidateGo(m)
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.True(t, res.HasErrors("gender"))
	assert.True(t, res.HasErrors("age"))
}
