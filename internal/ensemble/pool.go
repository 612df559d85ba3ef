package ensemble

import (
	"fmt"
	"sync"
	"time"

	"ensemble-trader/internal/models"
)

// Version pairs a registry entry with its trained model artifacts.
type Version struct {
	Meta   models.ModelVersion
	Models []Model
}

// Pool owns every model version and the active-version pointer. Exactly one
// version is ACTIVE at any time. The pointer is read on every live tick and
// written only inside Promote, which swaps under the write lock so readers
// observe either the old or the new version, never a partial update.
type Pool struct {
	mu       sync.RWMutex
	active   *Version
	shadow   *Version
	versions []*Version
	nextID   int64
}

// NewPool creates a pool whose first version is immediately ACTIVE.
func NewPool(initial []Model, trainAcc, testAcc float64) *Pool {
	p := &Pool{nextID: 1}
	v := &Version{
		Meta: models.ModelVersion{
			ID:            p.nextID,
			Status:        models.VersionActive,
			CreatedAt:     time.Now(),
			TrainAccuracy: trainAcc,
			TestAccuracy:  testAcc,
		},
		Models: initial,
	}
	p.nextID++
	p.active = v
	p.versions = append(p.versions, v)
	return p
}

// Active returns the current active version.
func (p *Pool) Active() *Version {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.active
}

// Shadow returns the version under shadow evaluation, or nil.
func (p *Pool) Shadow() *Version {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.shadow
}

// AddCandidate registers a freshly trained version with CANDIDATE status.
func (p *Pool) AddCandidate(trained []Model, trainAcc, testAcc float64) *Version {
	p.mu.Lock()
	defer p.mu.Unlock()

	v := &Version{
		Meta: models.ModelVersion{
			ID:            p.nextID,
			Status:        models.VersionCandidate,
			CreatedAt:     time.Now(),
			TrainAccuracy: trainAcc,
			TestAccuracy:  testAcc,
		},
		Models: trained,
	}
	p.nextID++
	p.versions = append(p.versions, v)
	return v
}

// BeginShadow moves a candidate into shadow evaluation. Only one version
// shadows at a time; a previous shadow is retired first.
func (p *Pool) BeginShadow(v *Version) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.shadow != nil && p.shadow != v {
		p.shadow.Meta.Status = models.VersionRetired
	}
	v.Meta.Status = models.VersionShadow
	p.shadow = v
}

// Promote atomically makes the shadow candidate the active version and
// retires the previous active. The whole swap happens under one write lock:
// no reader can observe two ACTIVE versions or an ACTIVE candidate.
func (p *Pool) Promote(v *Version) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.shadow != v {
		return fmt.Errorf("version %d is not under shadow evaluation", v.Meta.ID)
	}

	previous := p.active
	v.Meta.Status = models.VersionActive
	p.active = v
	p.shadow = nil
	if previous != nil {
		previous.Meta.Status = models.VersionRetired
	}
	return nil
}

// Retire marks a version RETIRED and clears the shadow pointer if it was
// shadowing.
func (p *Pool) Retire(v *Version) {
	p.mu.Lock()
	defer p.mu.Unlock()

	v.Meta.Status = models.VersionRetired
	if p.shadow == v {
		p.shadow = nil
	}
}

// Registry returns a snapshot of all version metadata, oldest first.
func (p *Pool) Registry() []models.ModelVersion {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]models.ModelVersion, len(p.versions))
	for i, v := range p.versions {
		out[i] = v.Meta
	}
	return out
}

// Predict gathers one vote per base model in the version.
func (p *Pool) Predict(v *Version, fv models.FeatureVector) ([]models.BaseVote, error) {
	if v == nil {
		return nil, fmt.Errorf("nil version")
	}

	votes := make([]models.BaseVote, 0, len(v.Models))
	for _, m := range v.Models {
		vote, err := m.Predict(fv)
		if err != nil {
			return nil, fmt.Errorf("model %s: %w", m.ID(), err)
		}
		votes = append(votes, vote)
	}
	return votes, nil
}
