package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"towline/internal/config"
	"towline/internal/faults"
	"towline/internal/identity"
	"towline/internal/logging"
	"towline/internal/tasks"
)

// Verdict is the resolver's recommendation for a request.
type Verdict string

const (
	// VerdictFresh means no usable match exists; start a new transfer.
	VerdictFresh Verdict = "fresh"
	// VerdictReuse means an existing task covers the request.
	VerdictReuse Verdict = "reuse"
	// VerdictNeedsDecision means the caller must choose; Decision carries
	// the match details needed to present the choice.
	VerdictNeedsDecision Verdict = "needs_decision"
)

// MatchKind ranks how a candidate task was matched, strongest first.
type MatchKind string

const (
	// MatchExactKey means the fingerprint and destination both match.
	MatchExactKey MatchKind = "exact_key"
	// MatchContentHash means the fingerprint matches at another destination.
	MatchContentHash MatchKind = "content_hash"
	// MatchFuzzyName means only the destination filenames are similar.
	MatchFuzzyName MatchKind = "fuzzy_name"
)

// Candidate is one possible duplicate, ranked by match strength.
type Candidate struct {
	Task       *tasks.Task
	Match      MatchKind
	Similarity float64
}

// Decision is the resolver's answer for one request. Existing is the
// strongest candidate; Candidates carries the full ranked list when the
// verdict defers to the caller.
type Decision struct {
	Verdict    Verdict
	Existing   *tasks.Task
	Match      MatchKind
	Similarity float64
	Candidates []Candidate
}

// Resolver applies duplicate policies against the task store.
type Resolver struct {
	store     *tasks.Store
	threshold float64
	logger    *slog.Logger
}

// New builds a resolver using the configured fuzzy threshold.
func New(cfg *config.Config, store *tasks.Store, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Resolver{
		store:     store,
		threshold: cfg.Dedup.FuzzyThreshold,
		logger:    logging.NewComponentLogger(logger, "resolver"),
	}
}

// Resolve inspects existing tasks for the identity key and applies the
// policy. A nil error with VerdictNeedsDecision defers to the caller;
// RejectOnDuplicate surfaces matches as a policy violation error.
func (r *Resolver) Resolve(ctx context.Context, key identity.Key, policy Policy) (Decision, error) {
	match, err := r.findMatch(ctx, key, policy)
	if err != nil {
		return Decision{}, err
	}

	if match.Existing == nil {
		return Decision{Verdict: VerdictFresh}, nil
	}

	r.logger.Debug("duplicate candidate found",
		logging.String(logging.FieldTaskID, match.Existing.ID),
		logging.String("match_kind", string(match.Match)),
		logging.String("policy", string(policy)),
	)

	switch policy {
	case NeverReuse:
		return Decision{Verdict: VerdictFresh}, nil

	case AlwaysReuse:
		if match.Existing.State == tasks.StateCompleted && !r.payloadExists(match.Existing) {
			return Decision{Verdict: VerdictFresh}, nil
		}
		match.Verdict = VerdictReuse
		return match, nil

	case ReuseIfComplete:
		if match.Existing.State == tasks.StateCompleted && r.payloadExists(match.Existing) {
			match.Verdict = VerdictReuse
			return match, nil
		}
		return Decision{Verdict: VerdictFresh}, nil

	case ReuseIfIncomplete:
		if match.Existing.State.IsUnfinished() || match.Existing.State == tasks.StateFailed {
			match.Verdict = VerdictReuse
			return match, nil
		}
		return Decision{Verdict: VerdictFresh}, nil

	case PromptCaller:
		match.Verdict = VerdictNeedsDecision
		candidates, err := r.enumerateCandidates(ctx, key)
		if err != nil {
			return Decision{}, err
		}
		match.Candidates = candidates
		return match, nil

	case RejectOnDuplicate:
		return Decision{}, faults.Wrap(faults.ErrPolicyViolation, "resolver", "resolve",
			fmt.Sprintf("task %s already covers this request (%s match)", match.Existing.ID, match.Match), nil)

	default:
		return Decision{}, faults.Wrap(faults.ErrPolicyViolation, "resolver", "resolve",
			fmt.Sprintf("unknown policy %q", policy), nil)
	}
}

// findMatch locates the strongest candidate: an exact identity-key match
// wins, then a same-fingerprint match at another destination. Fuzzy filename
// matches are weakest and only consulted when the caller will see the match
// and can judge it.
func (r *Resolver) findMatch(ctx context.Context, key identity.Key, policy Policy) (Decision, error) {
	exact, err := r.store.FindByKey(ctx, key.Fingerprint, key.Destination)
	if err != nil {
		return Decision{}, err
	}
	if len(exact) > 0 {
		return Decision{Existing: exact[0], Match: MatchExactKey, Similarity: 1}, nil
	}

	sameContent, err := r.store.FindByFingerprint(ctx, key.Fingerprint)
	if err != nil {
		return Decision{}, err
	}
	if len(sameContent) > 0 {
		return Decision{Existing: sameContent[0], Match: MatchContentHash, Similarity: 1}, nil
	}

	if policy != PromptCaller {
		return Decision{}, nil
	}
	return r.findFuzzyMatch(ctx, key)
}

// enumerateCandidates builds the full ranked candidate list a deferred
// decision presents: exact key matches first, then same-content matches at
// other destinations, then fuzzy filename neighbors above the threshold.
func (r *Resolver) enumerateCandidates(ctx context.Context, key identity.Key) ([]Candidate, error) {
	var candidates []Candidate
	seen := make(map[string]struct{})

	exact, err := r.store.FindByKey(ctx, key.Fingerprint, key.Destination)
	if err != nil {
		return nil, err
	}
	for _, task := range exact {
		seen[task.ID] = struct{}{}
		candidates = append(candidates, Candidate{Task: task, Match: MatchExactKey, Similarity: 1})
	}

	sameContent, err := r.store.FindByFingerprint(ctx, key.Fingerprint)
	if err != nil {
		return nil, err
	}
	for _, task := range sameContent {
		if _, dup := seen[task.ID]; dup {
			continue
		}
		seen[task.ID] = struct{}{}
		candidates = append(candidates, Candidate{Task: task, Match: MatchContentHash, Similarity: 1})
	}

	neighbors, err := r.store.ListByDestinationDir(ctx, filepath.Dir(key.Destination))
	if err != nil {
		return nil, err
	}
	name := filepath.Base(key.Destination)
	var fuzzy []Candidate
	for _, task := range neighbors {
		if _, dup := seen[task.ID]; dup {
			continue
		}
		score := similarity(name, filepath.Base(task.Destination))
		if score >= r.threshold {
			fuzzy = append(fuzzy, Candidate{Task: task, Match: MatchFuzzyName, Similarity: score})
		}
	}
	sort.SliceStable(fuzzy, func(i, j int) bool { return fuzzy[i].Similarity > fuzzy[j].Similarity })

	return append(candidates, fuzzy...), nil
}

func (r *Resolver) findFuzzyMatch(ctx context.Context, key identity.Key) (Decision, error) {
	neighbors, err := r.store.ListByDestinationDir(ctx, filepath.Dir(key.Destination))
	if err != nil {
		return Decision{}, err
	}

	name := filepath.Base(key.Destination)
	best := Decision{}
	for _, candidate := range neighbors {
		score := similarity(name, filepath.Base(candidate.Destination))
		if score >= r.threshold && score > best.Similarity {
			best = Decision{Existing: candidate, Match: MatchFuzzyName, Similarity: score}
		}
	}
	return best, nil
}

// payloadExists reports whether a completed task's file is still on disk.
// Completed tasks whose payload was deleted behind the store's back are not
// reusable; the caller has to download again.
func (r *Resolver) payloadExists(task *tasks.Task) bool {
	info, err := os.Stat(task.Destination)
	return err == nil && !info.IsDir()
}
