package services

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/yoockh/yootherapy/internal/models"
	"github.com/yoockh/yootherapy/internal/repositories/postgres"
	"github.com/yoockh/yootherapy/internal/utils"
)

// AccessGate decides whether a caller may work with a child: the child must
// exist, the caller must be assigned (unless privileged) and, when enforced,
// every required consent must be active.
type AccessGate struct {
	children postgres.ChildRepository
	enforce  bool
	required []string
}

func NewAccessGate(children postgres.ChildRepository, enforceConsent bool, required []string) *AccessGate {
	return &AccessGate{children: children, enforce: enforceConsent, required: required}
}

func (g *AccessGate) Child(ctx context.Context, caller models.Caller, childID string) (*models.ChildProfile, error) {
	const op = "AccessGate.Child"

	if strings.TrimSpace(childID) == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "child_id is required", nil)
	}
	child, err := g.children.GetActive(ctx, childID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "Child not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to load child", err)
	}

	if err := g.assigned(ctx, caller, child.ID); err != nil {
		return nil, err
	}
	if err := g.consent(ctx, child.ID); err != nil {
		return nil, err
	}
	return child, nil
}

// Session checks a caller against an existing session: the owning therapist
// or any therapist assigned to the session's child may proceed.
func (g *AccessGate) Session(ctx context.Context, caller models.Caller, s *models.TherapySession) error {
	if caller.CanAccess(s.TherapistID) {
		return nil
	}
	return g.assigned(ctx, caller, s.ChildID)
}

func (g *AccessGate) assigned(ctx context.Context, caller models.Caller, childID string) error {
	const op = "AccessGate.assigned"

	if caller.Privileged {
		return nil
	}
	ok, err := g.children.IsAssigned(ctx, caller.ID, childID)
	if err != nil {
		return utils.E(utils.CodeInternal, op, "failed to check assignment", err)
	}
	if !ok {
		return utils.E(utils.CodeForbidden, op, "Therapist is not assigned to this child", nil)
	}
	return nil
}

func (g *AccessGate) consent(ctx context.Context, childID string) error {
	const op = "AccessGate.consent"

	if !g.enforce || len(g.required) == 0 {
		return nil
	}
	active, err := g.children.ActiveConsentTypes(ctx, childID)
	if err != nil {
		return utils.E(utils.CodeInternal, op, "failed to load consents", err)
	}
	have := make(map[string]bool, len(active))
	for _, t := range active {
		have[t] = true
	}

	var missing []string
	for _, t := range g.required {
		if !have[t] {
			missing = append(missing, t)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return utils.E(utils.CodeForbidden, op, "Missing active consent: "+strings.Join(missing, ", "), nil)
	}
	return nil
}
