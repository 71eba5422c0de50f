package memory

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Health statuses.
const (
	StatusOK       = "ok"
	StatusError    = "error"
	StatusDisabled = "disabled"
)

// TierHealth is the status of one dependency.
type TierHealth struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Health reports every dependency. OK is true when the hard dependencies are
// reachable.
type Health struct {
	OK        bool                  `json:"ok"`
	ShortTerm TierHealth            `json:"short_term"`
	Durable   TierHealth            `json:"durable"`
	Index     TierHealth            `json:"index"`
	Tiers     map[string]TierHealth `json:"tiers"`
}

func tierHealth(err error) TierHealth {
	if err != nil {
		return TierHealth{Status: StatusError, Error: err.Error()}
	}
	return TierHealth{Status: StatusOK}
}

// Health checks short-term, the durable database and the search index
// concurrently.
func (m *Manager) Health(ctx context.Context) Health {
	var shortErr, durableErr, indexErr error

	var g errgroup.Group
	g.Go(func() error {
		shortErr = m.shortTerm.Connect(ctx)
		return nil
	})
	g.Go(func() error {
		durableErr = m.longTerm.db.Ping(ctx)
		return nil
	})
	g.Go(func() error {
		indexErr = m.longTerm.Diagnose(ctx)
		return nil
	})
	g.Wait()

	h := Health{
		ShortTerm: tierHealth(shortErr),
		Durable:   tierHealth(durableErr),
		Index:     tierHealth(indexErr),
		Tiers:     map[string]TierHealth{},
	}
	h.OK = shortErr == nil && durableErr == nil

	enabled := map[Tier]bool{
		TierEpisodic:   m.episodic != nil,
		TierSemantic:   m.semantic != nil,
		TierProcedural: m.procedural != nil,
		TierOffload:    m.offload != nil,
	}
	for tier, on := range enabled {
		if on {
			h.Tiers[string(tier)] = TierHealth{Status: StatusOK}
		} else {
			h.Tiers[string(tier)] = TierHealth{Status: StatusDisabled}
		}
	}
	return h
}
