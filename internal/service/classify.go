package service

import (
	"errors"
	"math"
	"strings"

	"github.com/digkill/ValuationAPI/internal/models"
)

// Classifier turns an unusable provider result into a ProviderValidation error.
type Classifier struct {
	// MaxRangeRatio bounds (max-min)/midpoint. Zero disables the check.
	MaxRangeRatio float64
	MinConfidence float64
}

var suggestionsByFailure = map[ProviderFailure][]string{
	FailureTooWide: {
		"Add the property address so recent comparable sales can be used",
		"Include the property size, bedrooms and bathrooms",
	},
	FailureTooTight: {
		"Add photos of more rooms",
		"Include exterior shots from different angles",
	},
	FailureLowConfidence: {
		"Use sharper, well-lit photos",
		"Avoid heavily zoomed or filtered images",
	},
	FailureMalformedResponse: {
		"Please try again in a moment",
	},
}

var messageByFailure = map[ProviderFailure]string{
	FailureTooWide:           "The estimated value range is too wide to be useful.",
	FailureTooTight:          "The photos do not show enough of the property.",
	FailureLowConfidence:     "A confident valuation could not be produced from these photos.",
	FailureMalformedResponse: "The valuation service returned an incomplete result.",
}

func providerValidation(failure ProviderFailure, details string, cause error) *Error {
	suggestions := append([]string(nil), suggestionsByFailure[failure]...)
	return &Error{
		Kind:        KindProviderValidation,
		Subkind:     failure,
		Message:     messageByFailure[failure],
		Details:     details,
		Suggestions: suggestions,
		Cause:       cause,
	}
}

// Classify returns nil when v is usable. Checks run in order: structure,
// image diversity, range width, confidence.
func (c Classifier) Classify(v *models.Valuation) *Error {
	if v == nil {
		return providerValidation(FailureMalformedResponse, "empty valuation", nil)
	}
	r := v.EstimatedValueRange
	switch {
	case r == nil:
		return providerValidation(FailureMalformedResponse, "missing value range", nil)
	case strings.TrimSpace(v.Reasoning) == "":
		return providerValidation(FailureMalformedResponse, "missing reasoning", nil)
	case !finite(r.Min) || !finite(r.Max) || r.Min <= 0 || r.Max < r.Min:
		return providerValidation(FailureMalformedResponse, "invalid value range", nil)
	case !finite(v.ConfidenceScore) || v.ConfidenceScore < 0 || v.ConfidenceScore > 100:
		return providerValidation(FailureMalformedResponse, "confidence score out of range", nil)
	}

	if v.LowImageDiversity {
		return providerValidation(FailureTooTight, "photos cover too little of the property", nil)
	}

	if c.MaxRangeRatio > 0 {
		mid := (r.Min + r.Max) / 2
		if (r.Max-r.Min)/mid > c.MaxRangeRatio {
			return providerValidation(FailureTooWide, "value range is too wide relative to its midpoint", nil)
		}
	}

	if v.ConfidenceScore < c.MinConfidence {
		return providerValidation(FailureLowConfidence, "confidence below usable threshold", nil)
	}
	return nil
}

// classifyProviderError maps a failed provider call. Only undecodable output
// is a validation failure; everything else is treated as the upstream being unavailable.
func classifyProviderError(err error) *Error {
	if errors.Is(err, models.ErrMalformedValuation) {
		return providerValidation(FailureMalformedResponse, "provider output could not be parsed", err)
	}
	return upstreamError(err)
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
