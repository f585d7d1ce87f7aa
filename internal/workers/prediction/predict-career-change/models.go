// internal/workers/prediction/predict-career-change/models.go
package predictcareerchange

// ProfileVariable is the process variable holding the profile. When absent,
// the job's variables are read as the profile itself.
const ProfileVariable = "profile"

type Output struct {
	Prediction   int     `json:"prediction"`
	Probability0 float64 `json:"probability_0"`
	Probability  float64 `json:"probability"`
	ModelVersion string  `json:"modelVersion"`
}
