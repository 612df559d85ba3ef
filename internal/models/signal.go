package models

import "time"

// VersionStatus represents the lifecycle status of a model version.
type VersionStatus string

const (
	VersionCandidate VersionStatus = "CANDIDATE"
	VersionShadow    VersionStatus = "SHADOW"
	VersionActive    VersionStatus = "ACTIVE"
	VersionRetired   VersionStatus = "RETIRED"
)

// ModelVersion describes one trained generation of the ensemble. At most one
// version is ACTIVE at any time; the registry in the model pool enforces it.
type ModelVersion struct {
	ID            int64
	Status        VersionStatus
	CreatedAt     time.Time
	TrainAccuracy float64
	TestAccuracy  float64
}

// BaseVote is one base model's prediction for a feature vector.
type BaseVote struct {
	ModelID     string
	Class       Class
	Probability float64
}

// EnsembleSignal is the combined trading decision derived from all base
// votes of a model version.
//
// RawDirection is the pre-threshold consensus and is what accuracy tracking
// scores; Direction is RawDirection after the confidence filter, which forces
// HOLD on weak consensus and is the only field the risk gate acts on.
type EnsembleSignal struct {
	Direction    Direction
	RawDirection Direction
	Confidence   float64
	Votes        []BaseVote
	Timestamp    time.Time
	VersionID    int64
}
