package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"testops/internal/metrics"
	"testops/internal/models"
	"testops/internal/repository"
)

// resolver turns payload references into rows, creating tags and suites named
// by the payload. It works on the caller's transaction so created rows roll
// back with the write.
type resolver struct {
	tx      *repository.Store
	log     *slog.Logger
	metrics *metrics.Collector
}

func (r *resolver) warn(ctx context.Context, w Warning) Warning {
	r.log.WarnContext(ctx, "reference skipped", "kind", w.Kind, "ref", w.Ref, "reason", w.Message)
	r.metrics.ResolutionWarning(w.Kind)
	return w
}

// resolveTag dispatches on the ref variant. A nil tag with a nil error means
// the ref was skipped.
func (r *resolver) resolveTag(ctx context.Context, ref TagRef) (*models.Tag, *Warning, error) {
	switch ref.Kind {
	case TagByID:
		if ref.ID == 0 {
			w := r.warn(ctx, Warning{Kind: "tag", Ref: ref.String(), Message: "tag id must be a positive integer"})
			return nil, &w, nil
		}
		tag, err := r.tx.Tags.FindByID(ctx, ref.ID)
		if errors.Is(err, repository.ErrNotFound) {
			w := r.warn(ctx, Warning{Kind: "tag", Ref: ref.String(), Message: fmt.Sprintf("tag %d does not exist", ref.ID)})
			return nil, &w, nil
		}
		return tag, nil, err

	case TagByName, TagByNameObject:
		if ref.Skip() {
			return nil, nil, nil
		}
		tag, err := r.tx.Tags.FindByName(ctx, ref.Name)
		if err == nil {
			return tag, nil, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, nil, err
		}
		tag = &models.Tag{Name: ref.Name}
		if err := r.tx.Tags.Create(ctx, tag); err != nil {
			return nil, nil, mapStoreError(err, "tag", 0, fmt.Sprintf("tag %q was created concurrently", ref.Name))
		}
		return tag, nil, nil

	default:
		return nil, nil, invalid("tags", "unsupported tag reference")
	}
}

// resolveTags returns the distinct tag ids in first-seen order.
func (r *resolver) resolveTags(ctx context.Context, refs []TagRef) ([]uint, []Warning, error) {
	var ids []uint
	var warnings []Warning
	seen := make(map[uint]bool)
	for _, ref := range refs {
		tag, w, err := r.resolveTag(ctx, ref)
		if err != nil {
			return nil, nil, err
		}
		if w != nil {
			warnings = append(warnings, *w)
		}
		if tag == nil || seen[tag.ID] {
			continue
		}
		seen[tag.ID] = true
		ids = append(ids, tag.ID)
	}
	return ids, warnings, nil
}

func (r *resolver) resolveSuite(ctx context.Context, ref SuiteRef) (*models.TestSuite, *Warning, error) {
	if ref.ByID() {
		if ref.ID == 0 {
			w := r.warn(ctx, Warning{Kind: "suite", Ref: ref.String(), Message: "suite id must be a positive integer"})
			return nil, &w, nil
		}
		suite, err := r.tx.Suites.FindByID(ctx, ref.ID, false)
		if errors.Is(err, repository.ErrNotFound) {
			w := r.warn(ctx, Warning{Kind: "suite", Ref: ref.String(), Message: fmt.Sprintf("suite %d does not exist", ref.ID)})
			return nil, &w, nil
		}
		return suite, nil, err
	}

	suite, err := r.tx.Suites.FindActiveByName(ctx, ref.Name)
	if err == nil {
		return suite, nil, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, nil, err
	}
	suite = &models.TestSuite{Name: ref.Name}
	if err := r.tx.Suites.Create(ctx, suite); err != nil {
		return nil, nil, mapStoreError(err, "suite", 0, fmt.Sprintf("suite %q was created concurrently", ref.Name))
	}
	return suite, nil, nil
}

// resolveSuites builds the new link set for caseID (0 for a new case). An
// omitted position keeps the one the case already had in that suite, or
// appends after the last case in the suite.
func (r *resolver) resolveSuites(ctx context.Context, caseID uint, refs []SuiteRef) ([]models.TestCaseSuite, []Warning, error) {
	previous := make(map[uint]int)
	if caseID != 0 && len(refs) > 0 {
		links, err := r.tx.TestCases.SuiteLinks(ctx, caseID)
		if err != nil {
			return nil, nil, err
		}
		for _, l := range links {
			previous[l.SuiteID] = l.Position
		}
	}

	var links []models.TestCaseSuite
	var warnings []Warning
	seen := make(map[uint]bool)
	for _, ref := range refs {
		suite, w, err := r.resolveSuite(ctx, ref)
		if err != nil {
			return nil, nil, err
		}
		if w != nil {
			warnings = append(warnings, *w)
		}
		if suite == nil || seen[suite.ID] {
			continue
		}
		seen[suite.ID] = true

		var pos int
		switch p, ok := previous[suite.ID]; {
		case ref.Position != nil:
			pos = *ref.Position
		case ok:
			pos = p
		default:
			last, err := r.tx.Suites.MaxPosition(ctx, suite.ID)
			if err != nil {
				return nil, nil, err
			}
			pos = last + 1
		}
		links = append(links, models.TestCaseSuite{TestCaseID: caseID, SuiteID: suite.ID, Position: pos})
	}
	return links, warnings, nil
}
