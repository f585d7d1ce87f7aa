// internal/models/career.go
package models

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"math"
)

// CategoricalColumns are the string-valued survey fields, in vector order.
var CategoricalColumns = []string{
	"fieldOfStudy",
	"currentOccupation",
	"gender",
	"educationLevel",
	"industryGrowthRate",
	"familyInfluence",
}

// NumericColumns are the integer-valued survey fields, in vector order.
var NumericColumns = []string{
	"age",
	"yearsOfExperience",
	"jobSatisfaction",
	"workLifeBalance",
	"jobOpportunities",
	"salary",
	"jobSecurity",
	"careerChangeInterest",
	"skillsGap",
	"mentorshipAvailable",
	"certifications",
	"freelancingExperience",
	"geographicMobility",
	"professionalNetworks",
	"careerChangeEvents",
	"technologyAdoption",
}

// CareerProfileSchema is the JSON Schema every incoming profile is checked
// against before it is decoded.
//
//go:embed career_profile.schema.json
var CareerProfileSchema []byte

// CareerProfile is one survey record describing a person's career situation.
type CareerProfile struct {
	FieldOfStudy       string `json:"fieldOfStudy"`
	CurrentOccupation  string `json:"currentOccupation"`
	Gender             string `json:"gender"`
	EducationLevel     string `json:"educationLevel"`
	IndustryGrowthRate string `json:"industryGrowthRate"`
	FamilyInfluence    string `json:"familyInfluence"`

	Age                   int `json:"age"`
	YearsOfExperience     int `json:"yearsOfExperience"`
	JobSatisfaction       int `json:"jobSatisfaction"`
	WorkLifeBalance       int `json:"workLifeBalance"`
	JobOpportunities      int `json:"jobOpportunities"`
	Salary                int `json:"salary"`
	JobSecurity           int `json:"jobSecurity"`
	CareerChangeInterest  int `json:"careerChangeInterest"`
	SkillsGap             int `json:"skillsGap"`
	MentorshipAvailable   int `json:"mentorshipAvailable"`
	Certifications        int `json:"certifications"`
	FreelancingExperience int `json:"freelancingExperience"`
	GeographicMobility    int `json:"geographicMobility"`
	ProfessionalNetworks  int `json:"professionalNetworks"`
	CareerChangeEvents    int `json:"careerChangeEvents"`
	TechnologyAdoption    int `json:"technologyAdoption"`
}

// Categorical returns the string fields in CategoricalColumns order.
func (p *CareerProfile) Categorical() []string {
	return []string{
		p.FieldOfStudy,
		p.CurrentOccupation,
		p.Gender,
		p.EducationLevel,
		p.IndustryGrowthRate,
		p.FamilyInfluence,
	}
}

// Numeric returns the integer fields in NumericColumns order.
func (p *CareerProfile) Numeric() []float64 {
	return []float64{
		float64(p.Age),
		float64(p.YearsOfExperience),
		float64(p.JobSatisfaction),
		float64(p.WorkLifeBalance),
		float64(p.JobOpportunities),
		float64(p.Salary),
		float64(p.JobSecurity),
		float64(p.CareerChangeInterest),
		float64(p.SkillsGap),
		float64(p.MentorshipAvailable),
		float64(p.Certifications),
		float64(p.FreelancingExperience),
		float64(p.GeographicMobility),
		float64(p.ProfessionalNetworks),
		float64(p.CareerChangeEvents),
		float64(p.TechnologyAdoption),
	}
}

// PredictionOutput is the response body of a single prediction.
type PredictionOutput struct {
	Prediction   int     `json:"prediction"`
	Probability0 float64 `json:"probability_0"`
	Probability  float64 `json:"probability"`
}

type BatchRequest struct {
	Records []CareerProfile `json:"records"`
}

// BatchOutput pairs predictions for the scored records with the positions
// of records that were dropped for carrying unseen labels.
type BatchOutput struct {
	Predictions []PredictionOutput `json:"predictions"`
	Skipped     []int              `json:"skipped"`
}

// ProfileFromMap builds a profile from a decoded JSON object. Integer fields
// accept any integral number (36 and 36.0 alike); unknown keys are ignored.
func ProfileFromMap(m map[string]interface{}) (*CareerProfile, error) {
	strs := make([]string, len(CategoricalColumns))
	for i, col := range CategoricalColumns {
		v, ok := m[col]
		if !ok {
			return nil, fmt.Errorf("missing field %s", col)
		}
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("field %s must be a string", col)
		}
		strs[i] = s
	}

	ints := make([]int, len(NumericColumns))
	for i, col := range NumericColumns {
		v, ok := m[col]
		if !ok {
			return nil, fmt.Errorf("missing field %s", col)
		}
		n, err := toInt(v)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", col, err)
		}
		ints[i] = n
	}

	return &CareerProfile{
		FieldOfStudy:          strs[0],
		CurrentOccupation:     strs[1],
		Gender:                strs[2],
		EducationLevel:        strs[3],
		IndustryGrowthRate:    strs[4],
		FamilyInfluence:       strs[5],
		Age:                   ints[0],
		YearsOfExperience:     ints[1],
		JobSatisfaction:       ints[2],
		WorkLifeBalance:       ints[3],
		JobOpportunities:      ints[4],
		Salary:                ints[5],
		JobSecurity:           ints[6],
		CareerChangeInterest:  ints[7],
		SkillsGap:             ints[8],
		MentorshipAvailable:   ints[9],
		Certifications:        ints[10],
		FreelancingExperience: ints[11],
		GeographicMobility:    ints[12],
		ProfessionalNetworks:  ints[13],
		CareerChangeEvents:    ints[14],
		TechnologyAdoption:    ints[15],
	}, nil
}

func toInt(v interface{}) (int, error) {
	var f float64
	switch n := v.(type) {
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case float64:
		f = n
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i), nil
		}
		parsed, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("not a number: %s", n)
		}
		f = parsed
	default:
		return 0, fmt.Errorf("must be an integer, got %T", v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, fmt.Errorf("must be an integer, got %v", f)
	}
	if f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, fmt.Errorf("out of range: %v", f)
	}
	return int(f), nil
}
