package gamify

import (
	"fmt"
	"time"

	"github.com/lazypower/palace/internal/palace"
)

// ProfileKey is the key the local profile is stored under.
const ProfileKey = "default"

// Profile is one user's progress in both modes. Both are kept up to date
// so switching modes loses nothing.
type Profile struct {
	Gamified *Stats        `json:"gamified"`
	Utility  *UtilityStats `json:"utility"`
}

// ProfileStore persists profiles as JSON. LoadProfile reports false when
// key has never been saved.
type ProfileStore interface {
	LoadProfile(key string, v any) (bool, error)
	SaveProfile(key string, v any, at time.Time) error
}

// LoadProfile reads the stored profile, or a fresh one started at now.
func LoadProfile(ps ProfileStore, now time.Time) (*Profile, error) {
	p := &Profile{}
	if _, err := ps.LoadProfile(ProfileKey, p); err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	if p.Gamified == nil {
		p.Gamified = NewStats()
	}
	if p.Utility == nil {
		p.Utility = NewUtilityStats(now)
	}
	return p, nil
}

// RecordRecall credits one recall to both modes, refreshes utility goals
// and saves the profile.
// Confidence 5 counts as a perfect recall; a positive confidence feeds the
// retention average as confidence/5.
func RecordRecall(ps ProfileStore, confidence int, at time.Time) (Award, error) {
	p, err := LoadProfile(ps, at)
	if err != nil {
		return Award{}, err
	}

	action := ActionReview
	if confidence == palace.MaxConfidence {
		action = ActionPerfectRecall
	}
	award, err := p.Gamified.Award(action, at)
	if err != nil {
		return Award{}, err
	}

	r := ReviewLog{At: at}
	if confidence > 0 {
		v := float64(confidence) / palace.MaxConfidence
		r.Retention = &v
	}
	p.Utility.LogReview(r)
	p.Utility.RefreshGoals(at)

	if err := ps.SaveProfile(ProfileKey, p, at); err != nil {
		return Award{}, fmt.Errorf("save profile: %w", err)
	}
	return award, nil
}
