package services

import (
	"context"
	"errors"
	"strings"

	"github.com/ledgerkraft/bookkeeping/internal/model"
	"github.com/ledgerkraft/bookkeeping/internal/repository"
)

type IdentityRepository interface {
	FindByName(ctx context.Context, name string) (*model.Identity, error)
	Create(ctx context.Context, identity *model.Identity) (*model.Identity, error)
}

// IdentityResolver maps payee/payer details to identity ids, creating
// identities on first reference. Lookup and insert are not atomic, so
// concurrent imports may create duplicate identities.
type IdentityResolver struct {
	repo IdentityRepository
}

func NewIdentityResolver(repo IdentityRepository) *IdentityResolver {
	return &IdentityResolver{repo: repo}
}

// IdentityDisplayName disambiguates a payee name with its bank details.
// An account number without a bank code is not appended.
func IdentityDisplayName(name, acctNo, bankCode string) string {
	switch {
	case bankCode != "" && acctNo != "":
		return name + " (" + bankCode + "/" + acctNo + ")"
	case bankCode != "":
		return name + " (" + bankCode + ")"
	default:
		return name
	}
}

func trimmed(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Resolve returns nil when name is missing or blank.
func (r *IdentityResolver) Resolve(ctx context.Context, name, acctNo, bankCode *string) (*int64, error) {
	return r.resolve(ctx, nil, name, acctNo, bankCode)
}

// resolve consults and fills seen, keyed by display name, before touching storage.
func (r *IdentityResolver) resolve(ctx context.Context, seen map[string]int64, name, acctNo, bankCode *string) (*int64, error) {
	n := trimmed(name)
	if n == "" {
		return nil, nil
	}
	acct, bank := trimmed(acctNo), trimmed(bankCode)
	display := IdentityDisplayName(n, acct, bank)

	if id, ok := seen[display]; ok {
		return &id, nil
	}

	existing, err := r.repo.FindByName(ctx, display)
	switch {
	case err == nil:
		r.remember(seen, display, existing.ID)
		return &existing.ID, nil
	case !errors.Is(err, repository.ErrIdentityNotFound):
		return nil, err
	}

	created, err := r.repo.Create(ctx, &model.Identity{
		Name:          display,
		BankCode:      optional(bank),
		AccountNumber: optional(acct),
	})
	if err != nil {
		return nil, err
	}
	r.remember(seen, display, created.ID)
	return &created.ID, nil
}

func (r *IdentityResolver) remember(seen map[string]int64, display string, id int64) {
	if seen != nil {
		seen[display] = id
	}
}
