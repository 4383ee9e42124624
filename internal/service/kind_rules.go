package service

import (
	"context"
	"strings"

	"github.com/iliyamo/visit-reservation/internal/model"
)

// kindRule describes what a visitor kind requires from a submission.
type kindRule struct {
	// adminOnly kinds are created through the administrative surface
	// only and are refused on public submission.
	adminOnly bool
	// initialStatus is the status a newly admitted reservation gets.
	initialStatus model.Status
	// keepsInstitution retains the institution fields on the stored row.
	keepsInstitution bool
	// validate runs after the capacity check, inside the admission
	// transaction.  flags holds the settings snapshot taken before it.
	validate func(ctx context.Context, req *model.SubmitReservationRequest, flags admissionFlags) error
}

// admissionFlags is the settings snapshot an admission decision uses.
type admissionFlags struct {
	defaultCapacity    int
	educationalEnabled bool
}

var kindRules = map[model.VisitorKind]kindRule{
	model.KindIndividual: {
		initialStatus: model.StatusPending,
	},
	model.KindEducationalInstitution: {
		initialStatus:    model.StatusPending,
		keepsInstitution: true,
		validate:         validateInstitution,
	},
	model.KindEvent: {
		adminOnly:     true,
		initialStatus: model.StatusConfirmed,
	},
}

func validateInstitution(_ context.Context, req *model.SubmitReservationRequest, flags admissionFlags) error {
	if !flags.educationalEnabled {
		return newError(KindFeatureDisabled, "educational institution reservations are disabled")
	}
	if req.Institution == nil || strings.TrimSpace(req.Institution.Name) == "" {
		return newError(KindInvalidRequest, "institution name is required")
	}
	if req.Institution.Students <= 0 {
		return newError(KindInvalidRequest, "institution students must be greater than zero")
	}
	return nil
}
